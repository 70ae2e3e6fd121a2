// Package index implements the repository-wide root structure of a gip
// remote and the push/fetch graph algorithms that operate on it. Every
// top-level gip link points at an encoded Index.
package index

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gipvcs/gip/pkg/remote"
	"github.com/gipvcs/gip/pkg/store"
	"github.com/gipvcs/gip/pkg/wire"
)

// SubmoduleTipMarker is the reserved objects-table value marking a hash as
// a submodule tip: recorded, never traversed into, never fetched. It cannot
// collide with a legitimate content link, which is always 46 base58
// characters behind an "/ipfs/" prefix.
const SubmoduleTipMarker = "submodule-tip"

// Index maps a repository's refs and git hashes into the content store.
// It is mutated only by pushes and superseded by each publish; the chain of
// PrevIndexLink values is the persisted history.
type Index struct {
	// Refs maps ref names to git object hashes.
	Refs map[string]string

	// Objects maps git object hashes to content-store links of their
	// encoded Objects, or to SubmoduleTipMarker.
	Objects map[string]string

	// PrevIndexLink is the content link of the index this one superseded;
	// empty for a first publish.
	PrevIndexLink string
}

type indexPayload struct {
	Refs    map[string]string `cbor:"refs"`
	Objects map[string]string `cbor:"objects"`
	Prev    string            `cbor:"prev_idx,omitempty"`
}

// New returns an empty index, the starting point for a placeholder remote.
func New() *Index {
	return &Index{
		Refs:    make(map[string]string),
		Objects: make(map[string]string),
	}
}

// Encode serializes the index as header ++ deterministic CBOR payload at
// the current protocol version. Map keys encode sorted, so an unchanged
// index always produces identical bytes.
func (x *Index) Encode() ([]byte, error) {
	payload, err := wire.Marshal(indexPayload{
		Refs:    x.Refs,
		Objects: x.Objects,
		Prev:    x.PrevIndexLink,
	})
	if err != nil {
		return nil, fmt.Errorf("encode index: %w", err)
	}
	return append(wire.Header(wire.ProtocolVersion), payload...), nil
}

// Decode deserializes header ++ payload bytes, demanding the current
// protocol version exactly. Older artifacts go through pkg/migrations.
func Decode(data []byte) (*Index, error) {
	version, err := wire.ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if version != wire.ProtocolVersion {
		return nil, &wire.VersionMismatchError{Found: version}
	}
	return DecodePayload(data[wire.HeaderLen:])
}

// DecodePayload deserializes a headerless index payload. Exported for
// pkg/migrations: the payload schema happens to be shared across versions
// 1 and 2.
func DecodePayload(payload []byte) (*Index, error) {
	var p indexPayload
	if err := wire.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode index payload: %w", err)
	}
	x := &Index{Refs: p.Refs, Objects: p.Objects, PrevIndexLink: p.Prev}
	if x.Refs == nil {
		x.Refs = make(map[string]string)
	}
	if x.Objects == nil {
		x.Objects = make(map[string]string)
	}
	return x, nil
}

// Publish uploads the index and returns the new remote address. The
// previous remote decides both the chained PrevIndexLink (an existing IPNS
// remote is dereferenced to its underlying content link first) and whether
// the mutable name gets republished at the new index.
func (x *Index) Publish(ctx context.Context, s store.Store, prev remote.Remote) (remote.Remote, error) {
	switch {
	case prev.IsNew():
		x.PrevIndexLink = ""
	case prev.IsIPNS():
		hash, _ := prev.Hash()
		link, err := s.ResolveName(ctx, hash)
		if err != nil {
			return remote.Remote{}, fmt.Errorf("dereference previous remote %s: %w", prev, err)
		}
		x.PrevIndexLink = link
	default:
		x.PrevIndexLink = prev.String()
	}

	data, err := x.Encode()
	if err != nil {
		return remote.Remote{}, err
	}
	link, err := s.Put(ctx, data)
	if err != nil {
		return remote.Remote{}, fmt.Errorf("upload index: %w", err)
	}
	logrus.WithField("link", link).Debug("uploaded index")

	if !prev.IsIPNS() {
		return remote.Parse(link)
	}

	name, err := s.PublishName(ctx, link)
	if err != nil {
		return remote.Remote{}, fmt.Errorf("republish name for %s: %w", link, err)
	}
	return remote.ExistingIPNS(name)
}
