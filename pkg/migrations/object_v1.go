package migrations

import (
	"fmt"

	"github.com/gipvcs/gip/pkg/object"
	"github.com/gipvcs/gip/pkg/wire"
)

// ObjectV1 is the protocol-v1 object shape: identical metadata, but no
// self-describing git hash. The metadata schema never changed, so the
// current codec decodes it.
type ObjectV1 struct {
	RawLink string
	Meta    object.Metadata
}

type objectV1Payload struct {
	RawLink string          `cbor:"raw_link"`
	Kind    string          `cbor:"kind"`
	Meta    wire.RawMessage `cbor:"meta"`
}

// DecodeObjectV1 deserializes header ++ payload bytes of a v1 object,
// demanding version 1 exactly.
func DecodeObjectV1(data []byte) (*ObjectV1, error) {
	version, err := wire.ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if version != 1 {
		return nil, fmt.Errorf("unsupported protocol version %d (ObjectV1 needs 1)", version)
	}
	return decodeObjectV1Payload(data[wire.HeaderLen:])
}

func decodeObjectV1Payload(payload []byte) (*ObjectV1, error) {
	var p objectV1Payload
	if err := wire.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode v1 object payload: %w", err)
	}
	meta, err := object.UnmarshalMeta(p.Kind, p.Meta)
	if err != nil {
		return nil, err
	}
	return &ObjectV1{RawLink: p.RawLink, Meta: meta}, nil
}

// ToCurrent produces the current object shape, synthesizing the git hash
// the v1 payload lacked from the caller's context.
func (o *ObjectV1) ToCurrent(gitHash string) *object.Object {
	return &object.Object{
		GitHash: gitHash,
		RawLink: o.RawLink,
		Meta:    o.Meta,
	}
}
