// Package object models one git object's representation in the content
// store: a link to its verbatim raw bytes plus just enough structural
// metadata (parents, tree, target, entries) to traverse the graph without
// downloading the raw bytes.
package object

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gipvcs/gip/pkg/odb"
	"github.com/gipvcs/gip/pkg/store"
	"github.com/gipvcs/gip/pkg/wire"
)

// Object is a single git object as stored remotely. Objects are created
// once on first push and are immutable afterwards.
type Object struct {
	// GitHash is the object's git content address. Redundant with the index
	// key that points here; carried since protocol version 2 so an object
	// is self-describing on its own.
	GitHash string

	// RawLink is the content-store link to the object's exact raw byte
	// representation, as git itself would produce it.
	RawLink string

	// Meta is the kind-tagged relationship metadata.
	Meta Metadata
}

// Metadata is a closed sum over the four object kinds. The variant must
// match the actual kind of the raw bytes; a mismatch is a constructed-data
// bug, not a recoverable state.
type Metadata interface {
	Kind() odb.Kind

	// Refs returns the git hashes this object references, the ones the
	// fetch walk recurses into.
	Refs() []string

	sealed()
}

// CommitMeta links a commit to its tree and parents.
type CommitMeta struct {
	Parents []string
	Tree    string
}

func (CommitMeta) Kind() odb.Kind { return odb.KindCommit }
func (CommitMeta) sealed()        {}

func (m CommitMeta) Refs() []string {
	refs := make([]string, 0, 1+len(m.Parents))
	refs = append(refs, m.Tree)
	refs = append(refs, m.Parents...)
	return refs
}

// TreeMeta links a tree to its entries. Submodule (gitlink) entries are
// excluded at construction time; recording them is the pusher's job.
type TreeMeta struct {
	Entries []string
}

func (TreeMeta) Kind() odb.Kind   { return odb.KindTree }
func (TreeMeta) sealed()          {}
func (m TreeMeta) Refs() []string { return append([]string(nil), m.Entries...) }

// TagMeta links an annotated tag to its target.
type TagMeta struct {
	Target string
}

func (TagMeta) Kind() odb.Kind   { return odb.KindTag }
func (TagMeta) sealed()          {}
func (m TagMeta) Refs() []string { return []string{m.Target} }

// BlobMeta carries no relationship data.
type BlobMeta struct{}

func (BlobMeta) Kind() odb.Kind { return odb.KindBlob }
func (BlobMeta) sealed()        {}
func (BlobMeta) Refs() []string { return nil }

// uploadRaw reads hash's raw bytes from the database, verifies the kind,
// and uploads the bytes verbatim to the content store.
func uploadRaw(ctx context.Context, hash string, want odb.Kind, db odb.Database, s store.Store) (string, error) {
	kind, raw, err := db.Read(hash)
	if err != nil {
		return "", err
	}
	if kind != want {
		return "", fmt.Errorf("object %s: database says %s, expected %s", hash, kind, want)
	}
	link, err := s.Put(ctx, raw)
	if err != nil {
		return "", fmt.Errorf("upload raw %s: %w", hash, err)
	}
	logrus.WithFields(logrus.Fields{"hash": hash, "link": link}).Trace("uploaded raw object")
	return link, nil
}

// FromCommit uploads a commit's raw bytes and builds its Object from the
// commit's structural fields.
func FromCommit(ctx context.Context, c *odb.Commit, db odb.Database, s store.Store) (*Object, error) {
	link, err := uploadRaw(ctx, c.Hash, odb.KindCommit, db, s)
	if err != nil {
		return nil, err
	}
	return &Object{
		GitHash: c.Hash,
		RawLink: link,
		Meta:    CommitMeta{Parents: sortedUnique(c.Parents), Tree: c.Tree},
	}, nil
}

// FromTree uploads a tree's raw bytes and builds its Object. Gitlink
// entries (submodule tips) are filtered out of the entry set.
func FromTree(ctx context.Context, t *odb.Tree, db odb.Database, s store.Store) (*Object, error) {
	link, err := uploadRaw(ctx, t.Hash, odb.KindTree, db, s)
	if err != nil {
		return nil, err
	}
	entries := make([]string, 0, len(t.Entries))
	for _, e := range t.Entries {
		if e.IsSubmodule() {
			continue
		}
		entries = append(entries, e.Hash)
	}
	return &Object{
		GitHash: t.Hash,
		RawLink: link,
		Meta:    TreeMeta{Entries: sortedUnique(entries)},
	}, nil
}

// FromBlob uploads a blob's raw bytes and builds its Object.
func FromBlob(ctx context.Context, hash string, db odb.Database, s store.Store) (*Object, error) {
	link, err := uploadRaw(ctx, hash, odb.KindBlob, db, s)
	if err != nil {
		return nil, err
	}
	return &Object{GitHash: hash, RawLink: link, Meta: BlobMeta{}}, nil
}

// FromTag uploads an annotated tag's raw bytes and builds its Object.
func FromTag(ctx context.Context, t *odb.Tag, db odb.Database, s store.Store) (*Object, error) {
	link, err := uploadRaw(ctx, t.Hash, odb.KindTag, db, s)
	if err != nil {
		return nil, err
	}
	return &Object{GitHash: t.Hash, RawLink: link, Meta: TagMeta{Target: t.Target}}, nil
}

// WriteRaw downloads RawLink from the content store and writes the bytes
// into the local database under the kind implied by the metadata variant.
// The returned hash is the locally computed content address; the caller
// compares it against the expected one.
func (o *Object) WriteRaw(ctx context.Context, db odb.Database, s store.Store) (string, error) {
	raw, err := s.Get(ctx, o.RawLink)
	if err != nil {
		return "", fmt.Errorf("download raw %s: %w", o.RawLink, err)
	}
	return db.Write(o.Meta.Kind(), raw)
}

// Encode serializes the object as header ++ deterministic CBOR payload at
// the current protocol version.
func (o *Object) Encode() ([]byte, error) {
	kind, meta, err := marshalMeta(o.Meta)
	if err != nil {
		return nil, err
	}
	payload, err := wire.Marshal(objectPayload{
		GitHash: o.GitHash,
		RawLink: o.RawLink,
		Kind:    kind,
		Meta:    meta,
	})
	if err != nil {
		return nil, fmt.Errorf("encode object %s: %w", o.GitHash, err)
	}
	return append(wire.Header(wire.ProtocolVersion), payload...), nil
}

// Decode deserializes header ++ payload bytes. The header version must
// equal the current protocol version exactly; older artifacts go through
// pkg/migrations instead.
func Decode(data []byte) (*Object, error) {
	version, err := wire.ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if version != wire.ProtocolVersion {
		return nil, &wire.VersionMismatchError{Found: version}
	}
	return DecodePayload(data[wire.HeaderLen:])
}

// Get downloads and decodes an Object.
func Get(ctx context.Context, link string, s store.Store) (*Object, error) {
	data, err := s.Get(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", link, err)
	}
	obj, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", link, err)
	}
	return obj, nil
}

// Add encodes the object and uploads it, returning its content-store link.
func (o *Object) Add(ctx context.Context, s store.Store) (string, error) {
	data, err := o.Encode()
	if err != nil {
		return "", err
	}
	link, err := s.Put(ctx, data)
	if err != nil {
		return "", fmt.Errorf("add object %s: %w", o.GitHash, err)
	}
	return link, nil
}
