// Package odb is gip's view of a local git object database: a narrow
// Database interface for raw object access, a RefStore for ref resolution
// and updates, structured parsers for the raw commit/tree/tag formats, and
// filesystem implementations of both interfaces compatible with git's
// loose-object layout.
package odb

import (
	"errors"
	"fmt"
)

// Kind identifies one of the four git object kinds gip mirrors.
type Kind string

const (
	KindCommit Kind = "commit"
	KindTree   Kind = "tree"
	KindBlob   Kind = "blob"
	KindTag    Kind = "tag"
)

// HashHexLen is the length of a hex-encoded SHA-1 object hash.
const HashHexLen = 40

// ErrNotFound reports a hash absent from the database.
var ErrNotFound = errors.New("object not found")

// UnsupportedKindError reports an object kind the graph algorithms do not
// know how to traverse, or an unexpected kind at a ref tip.
type UnsupportedKindError struct {
	Kind string
}

func (e *UnsupportedKindError) Error() string {
	return fmt.Sprintf("unsupported object kind %q", e.Kind)
}

// ParseKind validates a kind string read from storage.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindCommit, KindTree, KindBlob, KindTag:
		return Kind(s), nil
	}
	return "", &UnsupportedKindError{Kind: s}
}

// Database is the local object database collaborator. Write must compute
// hashes exactly the way git does, since fetch verification compares its
// result against index-recorded hashes.
type Database interface {
	// Read returns an object's kind and raw bytes, or an error wrapping
	// ErrNotFound.
	Read(hash string) (Kind, []byte, error)

	// Write stores raw bytes under the given kind and returns the computed
	// content hash.
	Write(kind Kind, data []byte) (string, error)

	// Has reports whether the database contains hash.
	Has(hash string) bool
}

// RefStore resolves and updates the local repository's refs.
type RefStore interface {
	// Resolve follows symbolic refs and returns the object hash a ref
	// points at. Resolving an annotated tag ref yields the tag object's own
	// hash, not its target.
	Resolve(name string) (string, error)

	// Update points ref name at hash, creating it if needed.
	Update(name, hash string) error
}

// Commit is the structural view of a commit object: exactly the fields the
// graph walk needs.
type Commit struct {
	Hash    string
	Tree    string
	Parents []string
}

// Tag is the structural view of an annotated tag object.
type Tag struct {
	Hash       string
	Target     string
	TargetKind Kind
	Name       string
}

// TreeEntry is one entry of a tree object.
type TreeEntry struct {
	Mode string
	Name string
	Hash string
}

// IsSubmodule reports whether the entry is a gitlink: a commit embedded in
// a tree, git's implicit signal for a submodule tip.
func (e TreeEntry) IsSubmodule() bool {
	return e.Mode == "160000"
}

// Kind returns the object kind the entry points at, derived from its mode.
func (e TreeEntry) Kind() Kind {
	switch e.Mode {
	case "40000":
		return KindTree
	case "160000":
		return KindCommit
	default:
		return KindBlob
	}
}

// Tree is the structural view of a tree object.
type Tree struct {
	Hash    string
	Entries []TreeEntry
}
