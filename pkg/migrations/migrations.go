// Package migrations keeps older encoded gip artifacts readable. It is the
// single place version tolerance lives: the strict decoders in pkg/index
// and pkg/object demand the current protocol version, and everything older
// funnels through the per-version upgrade steps here.
package migrations

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gipvcs/gip/pkg/index"
	"github.com/gipvcs/gip/pkg/object"
	"github.com/gipvcs/gip/pkg/remote"
	"github.com/gipvcs/gip/pkg/store"
	"github.com/gipvcs/gip/pkg/wire"
)

// ErrInvalidVersion reports protocol version 0, which was never issued.
var ErrInvalidVersion = errors.New("version 0 is invalid")

// TooNewError reports an artifact from a newer protocol version than this
// build understands. Guessing at undefined wire shapes is not an option;
// the user upgrades instead.
type TooNewError struct {
	Version uint16
}

func (e *TooNewError) Error() string {
	return fmt.Sprintf("version %d is too new, please upgrade gip", e.Version)
}

// indexSteps maps a protocol version to the step upgrading an index of
// that version to the next one. Steps are pure value transforms (plus the
// content-store round-trips re-encoding requires) and compose in version
// order.
var indexSteps = map[uint16]func(context.Context, *index.Index, store.Store) (*index.Index, error){
	1: indexV1ToV2,
}

// MigrateIndex takes a headerless index payload of the declared version
// and returns its present-day equivalent.
func MigrateIndex(ctx context.Context, payload []byte, version uint16, s store.Store) (*index.Index, error) {
	switch {
	case version == 0:
		return nil, ErrInvalidVersion
	case version > wire.ProtocolVersion:
		return nil, &TooNewError{Version: version}
	case version == wire.ProtocolVersion:
		logrus.WithField("version", version).Debug("index is current, deserializing directly")
		return index.DecodePayload(payload)
	}

	// The payload schema is shared by every shipped version so far; the
	// differences live in the object encodings the table links to.
	idx, err := index.DecodePayload(payload)
	if err != nil {
		return nil, err
	}
	for v := version; v < wire.ProtocolVersion; v++ {
		step, ok := indexSteps[v]
		if !ok {
			return nil, fmt.Errorf("no migration step for index version %d", v)
		}
		logrus.WithFields(logrus.Fields{"from": v, "to": v + 1}).Debug("migrating index")
		idx, err = step(ctx, idx, s)
		if err != nil {
			return nil, fmt.Errorf("migrate index v%d: %w", v, err)
		}
	}
	return idx, nil
}

// indexV1ToV2 re-encodes every object the table links to in the v2 shape,
// which gained the self-describing git hash. Submodule markers carry no
// encoded object and pass through untouched.
func indexV1ToV2(ctx context.Context, idx *index.Index, s store.Store) (*index.Index, error) {
	for gitHash, link := range idx.Objects {
		if link == index.SubmoduleTipMarker {
			logrus.WithField("hash", gitHash).Trace("skipping submodule tip")
			continue
		}
		data, err := s.Get(ctx, link)
		if err != nil {
			return nil, fmt.Errorf("object %s: %w", link, err)
		}
		v1, err := DecodeObjectV1(data)
		if err != nil {
			return nil, fmt.Errorf("object %s: %w", link, err)
		}
		newLink, err := v1.ToCurrent(gitHash).Add(ctx, s)
		if err != nil {
			return nil, err
		}
		logrus.WithFields(logrus.Fields{"hash": gitHash, "old": link, "new": newLink}).
			Trace("re-encoded object")
		idx.Objects[gitHash] = newLink
	}
	return idx, nil
}

// MigrateObject takes a headerless object payload of the declared version
// and returns its present-day equivalent. The git hash comes from the
// caller (the index key that pointed here) because the v1 payload did not
// carry it.
func MigrateObject(payload []byte, gitHash string, version uint16) (*object.Object, error) {
	switch {
	case version == 0:
		return nil, ErrInvalidVersion
	case version > wire.ProtocolVersion:
		return nil, &TooNewError{Version: version}
	case version == wire.ProtocolVersion:
		return object.DecodePayload(payload)
	case version == 1:
		v1, err := decodeObjectV1Payload(payload)
		if err != nil {
			return nil, err
		}
		return v1.ToCurrent(gitHash), nil
	default:
		return nil, fmt.Errorf("no migration step for object version %d", version)
	}
}

// OpenIndex resolves a remote to its index: placeholders start empty,
// names are dereferenced first, and older encodings are migrated to the
// current shape on the way in.
func OpenIndex(ctx context.Context, r remote.Remote, s store.Store) (*index.Index, error) {
	if r.IsNew() {
		logrus.Debug("creating new empty index")
		return index.New(), nil
	}

	hash, _ := r.Hash()
	link := r.String()
	if r.IsIPNS() {
		resolved, err := s.ResolveName(ctx, hash)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", r, err)
		}
		logrus.WithFields(logrus.Fields{"name": hash, "link": resolved}).Debug("dereferenced name")
		link = resolved
	}

	data, err := s.Get(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("fetch index %s: %w", link, err)
	}
	version, err := wire.ParseHeader(data)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"link": link, "version": version}).Debug("fetched index")
	return MigrateIndex(ctx, data[wire.HeaderLen:], version, s)
}
