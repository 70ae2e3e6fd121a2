package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gipvcs/gip/pkg/object"
	"github.com/gipvcs/gip/pkg/odb"
	"github.com/gipvcs/gip/pkg/store"
)

// EnumerateForPush walks the local object graph from root and adds every
// hash missing from both the index and pushed into pushed. Submodule tips
// discovered along the way land in submodules and are not traversed into.
// Both sets are caller-owned so several roots can share one walk's work.
func (x *Index) EnumerateForPush(root string, pushed, submodules map[string]struct{}, db odb.Database) error {
	stack := []string{root}
	for len(stack) > 0 {
		hash := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, ok := x.Objects[hash]; ok {
			logrus.WithField("hash", hash).Trace("object already in index")
			continue
		}
		if _, ok := pushed[hash]; ok {
			continue
		}

		kind, raw, err := db.Read(hash)
		if err != nil {
			return fmt.Errorf("enumerate for push: %w", err)
		}
		pushed[hash] = struct{}{}

		switch kind {
		case odb.KindCommit:
			commit, err := odb.ParseCommit(hash, raw)
			if err != nil {
				return err
			}
			stack = append(stack, commit.Tree)
			stack = append(stack, commit.Parents...)
		case odb.KindTree:
			tree, err := odb.ParseTree(hash, raw)
			if err != nil {
				return err
			}
			for _, entry := range tree.Entries {
				if entry.IsSubmodule() {
					logrus.WithFields(logrus.Fields{"tree": hash, "tip": entry.Hash}).
						Debug("recording submodule tip")
					submodules[entry.Hash] = struct{}{}
					continue
				}
				stack = append(stack, entry.Hash)
			}
		case odb.KindTag:
			tag, err := odb.ParseTag(hash, raw)
			if err != nil {
				return err
			}
			stack = append(stack, tag.Target)
		case odb.KindBlob:
			// Leaf.
		default:
			return &odb.UnsupportedKindError{Kind: string(kind)}
		}
	}
	return nil
}

// PushObjects constructs and uploads an Object for every hash not already
// present in the index's object table, recording the resulting links.
// Hashes already present are skipped with a warning; re-runs are idempotent.
func (x *Index) PushObjects(ctx context.Context, hashes map[string]struct{}, db odb.Database, s store.Store) error {
	total := len(hashes)
	i := 0
	for hash := range hashes {
		i++
		if _, ok := x.Objects[hash]; ok {
			logrus.WithField("hash", hash).Warn("push: object already in index")
			continue
		}

		kind, raw, err := db.Read(hash)
		if err != nil {
			return fmt.Errorf("push objects: %w", err)
		}

		var obj *object.Object
		switch kind {
		case odb.KindCommit:
			commit, err := odb.ParseCommit(hash, raw)
			if err != nil {
				return err
			}
			obj, err = object.FromCommit(ctx, commit, db, s)
			if err != nil {
				return err
			}
		case odb.KindTree:
			tree, err := odb.ParseTree(hash, raw)
			if err != nil {
				return err
			}
			obj, err = object.FromTree(ctx, tree, db, s)
			if err != nil {
				return err
			}
		case odb.KindTag:
			tag, err := odb.ParseTag(hash, raw)
			if err != nil {
				return err
			}
			obj, err = object.FromTag(ctx, tag, db, s)
			if err != nil {
				return err
			}
		case odb.KindBlob:
			obj, err = object.FromBlob(ctx, hash, db, s)
			if err != nil {
				return err
			}
		default:
			return &odb.UnsupportedKindError{Kind: string(kind)}
		}

		link, err := obj.Add(ctx, s)
		if err != nil {
			return err
		}
		x.Objects[hash] = link
		logrus.WithFields(logrus.Fields{
			"progress": fmt.Sprintf("%d/%d", i, total),
			"kind":     kind,
			"hash":     hash,
			"link":     link,
		}).Debug("uploaded object")
	}
	return nil
}

// PushRef resolves srcRef locally and records it in the index as dstRef,
// uploading every object the remote lacks. An empty srcRef deletes dstRef
// from the ref table; a missing ref to delete is a warning, not an error.
// Unless force is set, overwriting an existing dstRef requires its current
// ancestry to be fully present locally, otherwise ErrFetchFirst.
func (x *Index) PushRef(ctx context.Context, srcRef, dstRef string, force bool, db odb.Database, refs odb.RefStore, s store.Store) error {
	if srcRef == "" {
		if _, ok := x.Refs[dstRef]; !ok {
			logrus.WithField("ref", dstRef).Warn("delete: ref not in index, nothing to do")
			return nil
		}
		delete(x.Refs, dstRef)
		logrus.WithField("ref", dstRef).Debug("deleted ref from index")
		return nil
	}

	// A ref file holds the annotated tag object's own hash when one
	// exists, which is exactly the preference push wants: the tag form
	// over the dereferenced commit.
	hash, err := refs.Resolve(srcRef)
	if err != nil {
		return fmt.Errorf("push %s: %w", srcRef, err)
	}
	logrus.WithFields(logrus.Fields{"src": srcRef, "dst": dstRef, "hash": hash}).Debug("pushing ref")

	if !force {
		if err := x.checkFetched(ctx, dstRef, db, s); err != nil {
			return err
		}
	}

	pushed := make(map[string]struct{})
	submodules := make(map[string]struct{})
	if err := x.EnumerateForPush(hash, pushed, submodules, db); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"objects": len(pushed), "submodules": len(submodules)}).
		Debug("counted objects for push")

	if err := x.PushObjects(ctx, pushed, db, s); err != nil {
		return err
	}
	for tip := range submodules {
		x.Objects[tip] = SubmoduleTipMarker
	}
	x.Refs[dstRef] = hash
	return nil
}

// checkFetched verifies that everything reachable from dstRef's current
// index target exists locally. The check is advisory: nothing stops a
// concurrent publish between it and ours.
func (x *Index) checkFetched(ctx context.Context, dstRef string, db odb.Database, s store.Store) error {
	oldHash, ok := x.Refs[dstRef]
	if !ok {
		return nil
	}
	needed := make(map[string]struct{})
	if err := x.EnumerateForFetch(ctx, oldHash, needed, db, s); err != nil {
		var notIndexed *NotIndexedError
		if errors.As(err, &notIndexed) {
			// The old target's history is not even fully indexed local
			// knowledge; the pusher certainly never fetched it.
			return fmt.Errorf("%w: %s", ErrFetchFirst, notIndexed)
		}
		return err
	}
	if len(needed) > 0 {
		return fmt.Errorf("%w: %s is missing %d object(s) locally", ErrFetchFirst, dstRef, len(needed))
	}
	return nil
}
