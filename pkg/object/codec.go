package object

import (
	"fmt"
	"sort"

	"github.com/gipvcs/gip/pkg/odb"
	"github.com/gipvcs/gip/pkg/wire"
)

// objectPayload is the protocol-v2 wire shape of an Object. Field tags are
// the compatibility unit: they stay stable for the lifetime of a protocol
// version.
type objectPayload struct {
	GitHash string          `cbor:"git_hash"`
	RawLink string          `cbor:"raw_link"`
	Kind    string          `cbor:"kind"`
	Meta    wire.RawMessage `cbor:"meta"`
}

type commitMetaPayload struct {
	Parents []string `cbor:"parents"`
	Tree    string   `cbor:"tree"`
}

type treeMetaPayload struct {
	Entries []string `cbor:"entries"`
}

type tagMetaPayload struct {
	Target string `cbor:"target"`
}

// marshalMeta encodes the variant payload and returns its kind tag.
func marshalMeta(m Metadata) (string, wire.RawMessage, error) {
	var payload any
	switch v := m.(type) {
	case CommitMeta:
		payload = commitMetaPayload{Parents: v.Parents, Tree: v.Tree}
	case TreeMeta:
		payload = treeMetaPayload{Entries: v.Entries}
	case TagMeta:
		payload = tagMetaPayload{Target: v.Target}
	case BlobMeta:
		payload = struct{}{}
	default:
		// Metadata is sealed; a fifth variant cannot exist.
		return "", nil, fmt.Errorf("unknown metadata variant %T", m)
	}
	raw, err := wire.Marshal(payload)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s metadata: %w", m.Kind(), err)
	}
	return string(m.Kind()), raw, nil
}

// UnmarshalMeta decodes a variant payload by its kind tag. Exported for
// pkg/migrations, which shares the metadata schema across versions.
func UnmarshalMeta(kind string, raw wire.RawMessage) (Metadata, error) {
	switch odb.Kind(kind) {
	case odb.KindCommit:
		var p commitMetaPayload
		if err := wire.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode commit metadata: %w", err)
		}
		return CommitMeta{Parents: p.Parents, Tree: p.Tree}, nil
	case odb.KindTree:
		var p treeMetaPayload
		if err := wire.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode tree metadata: %w", err)
		}
		return TreeMeta{Entries: p.Entries}, nil
	case odb.KindTag:
		var p tagMetaPayload
		if err := wire.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode tag metadata: %w", err)
		}
		return TagMeta{Target: p.Target}, nil
	case odb.KindBlob:
		return BlobMeta{}, nil
	}
	return nil, &odb.UnsupportedKindError{Kind: kind}
}

// DecodePayload deserializes a headerless object payload at the current
// schema. Exported for pkg/migrations.
func DecodePayload(payload []byte) (*Object, error) {
	var p objectPayload
	if err := wire.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode object payload: %w", err)
	}
	meta, err := UnmarshalMeta(p.Kind, p.Meta)
	if err != nil {
		return nil, err
	}
	return &Object{GitHash: p.GitHash, RawLink: p.RawLink, Meta: meta}, nil
}

// sortedUnique copies hashes, deduplicates and sorts them so encoded sets
// are deterministic.
func sortedUnique(hashes []string) []string {
	seen := make(map[string]struct{}, len(hashes))
	out := make([]string, 0, len(hashes))
	for _, h := range hashes {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}
