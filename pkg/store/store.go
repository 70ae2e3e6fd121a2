// Package store abstracts the content-addressed blob store gip publishes
// to. The production implementation speaks the IPFS daemon HTTP API; the
// in-memory implementation backs tests and offline tooling.
package store

import "context"

// Store is the narrow collaborator interface the core algorithms call. All
// four operations are assumed network-backed and fallible; errors propagate
// to the caller unchanged.
type Store interface {
	// Put uploads data and returns its content-addressed link in the form
	// "/ipfs/<hash>". Putting identical bytes twice returns the same link.
	Put(ctx context.Context, data []byte) (string, error)

	// Get downloads the bytes behind a link. It accepts both "/ipfs/<hash>"
	// links and bare hashes.
	Get(ctx context.Context, link string) ([]byte, error)

	// ResolveName dereferences a mutable name to its current "/ipfs/<hash>"
	// link.
	ResolveName(ctx context.Context, name string) (string, error)

	// PublishName points this node's mutable name at link and returns the
	// name it published under.
	PublishName(ctx context.Context, link string) (string, error)
}
