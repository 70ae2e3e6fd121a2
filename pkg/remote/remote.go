// Package remote models the four addressing forms a gip remote can take: an
// existing /ipfs/ content link, an existing /ipns/ name link, or the
// placeholder tokens new-ipfs / new-ipns for remotes that do not have a
// published index yet.
package remote

import (
	"fmt"
	"strings"
)

// HashLen is the exact length of an IPFS multihash in the base58 text
// encoding this package accepts (a "Qm..." CIDv0 string).
const HashLen = 46

type kind uint8

const (
	kindExistingIPFS kind = iota
	kindExistingIPNS
	kindNewIPFS
	kindNewIPNS
)

// Remote identifies where a gip index lives. The zero value is not valid;
// construct one with Parse, ExistingIPFS, ExistingIPNS, NewIPFS or NewIPNS.
// Remote is comparable: Parse(r.String()) == r for every valid value.
type Remote struct {
	kind kind
	hash string
}

// NewIPFS returns the placeholder for a content-addressed remote with no
// index published yet.
func NewIPFS() Remote { return Remote{kind: kindNewIPFS} }

// NewIPNS returns the placeholder for a name-addressed remote with no index
// published yet.
func NewIPNS() Remote { return Remote{kind: kindNewIPNS} }

// ExistingIPFS returns a remote pointing at a published index by content
// address. The hash is validated for length.
func ExistingIPFS(hash string) (Remote, error) {
	if len(hash) != HashLen {
		return Remote{}, &InvalidHashLengthError{Got: len(hash), Want: HashLen}
	}
	return Remote{kind: kindExistingIPFS, hash: hash}, nil
}

// ExistingIPNS returns a remote pointing at a published index through a
// mutable name. The hash is validated for length.
func ExistingIPNS(hash string) (Remote, error) {
	if len(hash) != HashLen {
		return Remote{}, &InvalidHashLengthError{Got: len(hash), Want: HashLen}
	}
	return Remote{kind: kindExistingIPNS, hash: hash}, nil
}

// Parse reads a remote in its textual form: "/ipfs/<hash>", "/ipns/<hash>",
// "new-ipfs" or "new-ipns".
func Parse(s string) (Remote, error) {
	switch {
	case s == "new-ipfs":
		return NewIPFS(), nil
	case s == "new-ipns":
		return NewIPNS(), nil
	case strings.HasPrefix(s, "/ipfs/"):
		return parseExisting(s, "/ipfs/", ExistingIPFS)
	case strings.HasPrefix(s, "/ipns/"):
		return parseExisting(s, "/ipns/", ExistingIPNS)
	default:
		return Remote{}, &InvalidLinkFormatError{Input: s}
	}
}

func parseExisting(s, prefix string, build func(string) (Remote, error)) (Remote, error) {
	hash := strings.TrimPrefix(s, prefix)
	if hash == "" || strings.Contains(hash, "/") {
		return Remote{}, &InvalidLinkFormatError{Input: s}
	}
	return build(hash)
}

// String renders the remote in the form Parse accepts.
func (r Remote) String() string {
	switch r.kind {
	case kindExistingIPFS:
		return "/ipfs/" + r.hash
	case kindExistingIPNS:
		return "/ipns/" + r.hash
	case kindNewIPFS:
		return "new-ipfs"
	case kindNewIPNS:
		return "new-ipns"
	}
	return fmt.Sprintf("remote(invalid kind %d)", r.kind)
}

// IsIPNS reports whether the remote uses name addressing (existing or new).
// Publishing to an IPNS remote republishes the mutable name.
func (r Remote) IsIPNS() bool {
	return r.kind == kindExistingIPNS || r.kind == kindNewIPNS
}

// IsNew reports whether the remote is one of the placeholder forms.
func (r Remote) IsNew() bool {
	return r.kind == kindNewIPFS || r.kind == kindNewIPNS
}

// Hash returns the bare hash for the existing forms. ok is false for the
// placeholder forms, which carry no hash.
func (r Remote) Hash() (hash string, ok bool) {
	if r.IsNew() {
		return "", false
	}
	return r.hash, true
}

// InvalidLinkFormatError reports input that matches none of the four
// textual remote forms.
type InvalidLinkFormatError struct {
	Input string
}

func (e *InvalidLinkFormatError) Error() string {
	return fmt.Sprintf("invalid link format for string %q", e.Input)
}

// InvalidHashLengthError reports a hash of the wrong length in an otherwise
// well-formed link.
type InvalidHashLengthError struct {
	Got  int
	Want int
}

func (e *InvalidHashLengthError) Error() string {
	return fmt.Sprintf("got a hash %d chars long, expected %d", e.Got, e.Want)
}
