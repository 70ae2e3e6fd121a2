package odb

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zlib"
)

// Loose is a Database over git's loose-object layout: zlib-deflated
// "<kind> <len>\x00<content>" envelopes under objects/ab/cdef... with a
// 2-character fan-out, addressed by SHA-1 of the uncompressed envelope.
type Loose struct {
	root string
}

// NewLoose creates a Loose database rooted at a git directory (the one
// containing objects/). The fan-out directories are created lazily.
func NewLoose(root string) *Loose {
	return &Loose{root: root}
}

// HashObject computes the git content address of an object.
func HashObject(kind Kind, data []byte) string {
	h := sha1.New()
	fmt.Fprintf(h, "%s %d\x00", kind, len(data))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func (l *Loose) objectPath(hash string) string {
	return filepath.Join(l.root, "objects", hash[:2], hash[2:])
}

// Has reports whether the database contains hash.
func (l *Loose) Has(hash string) bool {
	if len(hash) != HashHexLen {
		return false
	}
	_, err := os.Stat(l.objectPath(hash))
	return err == nil
}

// Write stores an object and returns its computed hash. Writes are atomic:
// deflated bytes land in a temp file which is then renamed into place.
func (l *Loose) Write(kind Kind, data []byte) (string, error) {
	hash := HashObject(kind, data)
	if l.Has(hash) {
		return hash, nil
	}

	dir := filepath.Join(l.root, "objects", hash[:2])
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("odb write mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("odb write tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	zw := zlib.NewWriter(tmp)
	fmt.Fprintf(zw, "%s %d\x00", kind, len(data))
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("odb write %s: %w", hash, err)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("odb write %s: %w", hash, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("odb write %s: %w", hash, err)
	}
	if err := os.Rename(tmpName, l.objectPath(hash)); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("odb write rename: %w", err)
	}
	return hash, nil
}

// Read retrieves an object by hash, returning its kind and raw content.
func (l *Loose) Read(hash string) (Kind, []byte, error) {
	if len(hash) != HashHexLen {
		return "", nil, fmt.Errorf("odb read %q: %w", hash, ErrNotFound)
	}
	f, err := os.Open(l.objectPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, fmt.Errorf("odb read %s: %w", hash, ErrNotFound)
		}
		return "", nil, fmt.Errorf("odb read %s: %w", hash, err)
	}
	defer f.Close()

	zr, err := zlib.NewReader(f)
	if err != nil {
		return "", nil, fmt.Errorf("odb read %s: inflate: %w", hash, err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return "", nil, fmt.Errorf("odb read %s: inflate: %w", hash, err)
	}

	nul := bytes.IndexByte(raw, 0)
	if nul < 0 {
		return "", nil, fmt.Errorf("odb read %s: invalid envelope (no NUL)", hash)
	}
	kindStr, lenStr, ok := strings.Cut(string(raw[:nul]), " ")
	if !ok {
		return "", nil, fmt.Errorf("odb read %s: invalid envelope header %q", hash, raw[:nul])
	}
	kind, err := ParseKind(kindStr)
	if err != nil {
		return "", nil, fmt.Errorf("odb read %s: %w", hash, err)
	}
	length, err := strconv.Atoi(lenStr)
	if err != nil {
		return "", nil, fmt.Errorf("odb read %s: invalid length %q: %w", hash, lenStr, err)
	}
	content := raw[nul+1:]
	if len(content) != length {
		return "", nil, fmt.Errorf("odb read %s: length mismatch (header=%d, actual=%d)", hash, length, len(content))
	}
	return kind, content, nil
}
