package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
)

// Mem is an in-memory Store. Addresses are 46 characters like the real
// network's ("Qm" plus 44 hex characters of a SHA-256 digest), so address
// validation behaves identically against it. Safe for concurrent use.
type Mem struct {
	mu     sync.Mutex
	blocks map[string][]byte
	names  map[string]string
	self   string
}

// NewMem creates an empty in-memory store. Its PublishName always publishes
// under the given self name; pass "" for a derived default.
func NewMem(selfName string) *Mem {
	if selfName == "" {
		selfName = memAddress([]byte("mem-store-self"))
	}
	return &Mem{
		blocks: make(map[string][]byte),
		names:  make(map[string]string),
		self:   selfName,
	}
}

// memAddress derives a 46-char address from content.
func memAddress(data []byte) string {
	sum := sha256.Sum256(data)
	return "Qm" + hex.EncodeToString(sum[:22])
}

// Put stores data under its derived address.
func (m *Mem) Put(_ context.Context, data []byte) (string, error) {
	hash := memAddress(data)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blocks[hash]; !ok {
		m.blocks[hash] = append([]byte(nil), data...)
	}
	return "/ipfs/" + hash, nil
}

// Get returns the bytes behind a "/ipfs/<hash>" link or bare hash.
func (m *Mem) Get(_ context.Context, link string) ([]byte, error) {
	hash := strings.TrimPrefix(link, "/ipfs/")
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blocks[hash]
	if !ok {
		return nil, fmt.Errorf("block %s not found", link)
	}
	return append([]byte(nil), data...), nil
}

// ResolveName returns the link the given name currently points at.
func (m *Mem) ResolveName(_ context.Context, name string) (string, error) {
	name = strings.TrimPrefix(name, "/ipns/")
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.names[name]
	if !ok {
		return "", fmt.Errorf("name %s not published", name)
	}
	return link, nil
}

// PublishName points the store's self name at link.
func (m *Mem) PublishName(_ context.Context, link string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[m.self] = link
	return m.self, nil
}

// Len reports the number of stored blocks.
func (m *Mem) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blocks)
}
