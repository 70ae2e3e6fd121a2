package index

import (
	"errors"
	"fmt"
)

// ErrFetchFirst reports a non-forced push over a destination ref whose
// current ancestry the pusher has never fetched. Pushing anyway would
// silently diverge the remote; fetch first, or force.
var ErrFetchFirst = errors.New("destination ref has history you have not fetched (fetch first, or push with force)")

// NotIndexedError reports a hash the fetch walk needed but the index's
// object table does not contain.
type NotIndexedError struct {
	Hash string
}

func (e *NotIndexedError) Error() string {
	return fmt.Sprintf("object %s not found in the index", e.Hash)
}

// InconsistencyError reports downloaded raw bytes that do not reproduce
// the hash the index claims they belong to: a corrupted or tampered
// remote.
type InconsistencyError struct {
	Expected string
	Written  string
	Link     string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("object tree inconsistency: fetched %s from %s, but write result hashes to %s",
		e.Expected, e.Link, e.Written)
}
