package index

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/gipvcs/gip/pkg/object"
	"github.com/gipvcs/gip/pkg/odb"
	"github.com/gipvcs/gip/pkg/store"
)

// EnumerateForFetch walks the index's object table from hash and adds every
// hash missing from the local database into needed. Submodule-marker
// entries end their branch without being added; a hash absent from the
// table entirely is a NotIndexedError. The needed set is caller-owned and
// doubles as the walk's dedup set.
func (x *Index) EnumerateForFetch(ctx context.Context, hash string, needed map[string]struct{}, db odb.Database, s store.Store) error {
	stack := []string{hash}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if db.Has(h) {
			logrus.WithField("hash", h).Trace("object already present locally")
			continue
		}
		if _, ok := needed[h]; ok {
			continue
		}

		link, ok := x.Objects[h]
		if !ok {
			return &NotIndexedError{Hash: h}
		}
		if link == SubmoduleTipMarker {
			logrus.WithField("hash", h).Debug("skipping submodule tip")
			continue
		}
		needed[h] = struct{}{}

		obj, err := object.Get(ctx, link, s)
		if err != nil {
			return err
		}
		stack = append(stack, obj.Meta.Refs()...)
	}
	return nil
}

// FetchObjects downloads every needed Object and materializes its raw
// bytes in the local database, verifying that the written content hashes
// back to the expected identifier. Objects that appeared locally in the
// meantime are skipped with a warning.
func (x *Index) FetchObjects(ctx context.Context, needed map[string]struct{}, db odb.Database, s store.Store) error {
	total := len(needed)
	i := 0
	for hash := range needed {
		i++
		link, ok := x.Objects[hash]
		if !ok {
			return &NotIndexedError{Hash: hash}
		}

		obj, err := object.Get(ctx, link, s)
		if err != nil {
			return err
		}
		if db.Has(hash) {
			logrus.WithField("hash", hash).Warn("fetch: object already present locally")
			continue
		}

		written, err := obj.WriteRaw(ctx, db, s)
		if err != nil {
			return err
		}
		if written != hash {
			return &InconsistencyError{Expected: hash, Written: written, Link: link}
		}
		logrus.WithFields(logrus.Fields{
			"progress": fmt.Sprintf("%d/%d", i, total),
			"hash":     hash,
			"link":     link,
		}).Debug("fetched object")
	}
	return nil
}

// FetchRef materializes hash and everything it references locally, then
// points refName at it. Lightweight-tag-shaped names and annotated tag
// objects get no ref update; git maintains those refs itself. Any other
// kind at the tip is an UnsupportedKindError.
func (x *Index) FetchRef(ctx context.Context, hash, refName string, db odb.Database, refs odb.RefStore, s store.Store) error {
	logrus.WithFields(logrus.Fields{"hash": hash, "ref": refName}).Debug("fetching ref")

	needed := make(map[string]struct{})
	if err := x.EnumerateForFetch(ctx, hash, needed, db, s); err != nil {
		return err
	}
	logrus.WithField("objects", len(needed)).Debug("counted objects for fetch")

	if err := x.FetchObjects(ctx, needed, db, s); err != nil {
		return err
	}

	kind, _, err := db.Read(hash)
	if err != nil {
		return fmt.Errorf("fetch ref %s: %w", refName, err)
	}
	switch kind {
	case odb.KindCommit:
		if strings.HasPrefix(refName, "refs/tags") {
			logrus.WithField("ref", refName).Debug("not setting ref for lightweight tag")
			return nil
		}
		return refs.Update(refName, hash)
	case odb.KindTag:
		logrus.WithField("ref", refName).Debug("not setting ref for tag")
		return nil
	default:
		return &odb.UnsupportedKindError{Kind: string(kind)}
	}
}
