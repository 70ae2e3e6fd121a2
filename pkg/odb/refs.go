package odb

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const maxSymrefDepth = 10

// FileRefs is a RefStore over loose ref files: refs/heads/main holds a
// hash, HEAD may hold "ref: refs/heads/main". Packed refs are not read;
// repositories gip syncs keep the refs it touches loose.
type FileRefs struct {
	root string
}

// NewFileRefs creates a FileRefs rooted at a git directory.
func NewFileRefs(root string) *FileRefs {
	return &FileRefs{root: root}
}

func (r *FileRefs) refPath(name string) string {
	return filepath.Join(r.root, filepath.FromSlash(name))
}

// Resolve follows symbolic refs and returns the object hash name points
// at. For an annotated tag ref this is the tag object's own hash; callers
// wanting the target peel it themselves.
func (r *FileRefs) Resolve(name string) (string, error) {
	current := name
	for depth := 0; depth < maxSymrefDepth; depth++ {
		data, err := os.ReadFile(r.refPath(current))
		if err != nil {
			if os.IsNotExist(err) {
				return "", fmt.Errorf("ref %s: %w", current, ErrNotFound)
			}
			return "", fmt.Errorf("ref %s: %w", current, err)
		}
		value := strings.TrimSpace(string(data))
		if target, ok := strings.CutPrefix(value, "ref: "); ok {
			current = target
			continue
		}
		if len(value) != HashHexLen {
			return "", fmt.Errorf("ref %s: malformed value %q", current, value)
		}
		return value, nil
	}
	return "", fmt.Errorf("ref %s: symref chain deeper than %d", name, maxSymrefDepth)
}

// Update points ref name at hash, creating parent directories as needed.
func (r *FileRefs) Update(name, hash string) error {
	path := r.refPath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ref %s: mkdir: %w", name, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".ref-tmp-*")
	if err != nil {
		return fmt.Errorf("ref %s: tmpfile: %w", name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(hash + "\n"); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("ref %s: write: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ref %s: close: %w", name, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ref %s: rename: %w", name, err)
	}
	return nil
}
