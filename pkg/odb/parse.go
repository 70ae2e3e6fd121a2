package odb

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

// ParseCommit extracts the tree and parent hashes from raw commit bytes.
// Only the header fields the graph walk needs are read; author, committer
// and message are left untouched.
func ParseCommit(hash string, data []byte) (*Commit, error) {
	c := &Commit{Hash: hash}
	for _, line := range headerLines(data) {
		field, value, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		switch field {
		case "tree":
			if len(value) != HashHexLen {
				return nil, fmt.Errorf("commit %s: bad tree hash %q", hash, value)
			}
			c.Tree = value
		case "parent":
			if len(value) != HashHexLen {
				return nil, fmt.Errorf("commit %s: bad parent hash %q", hash, value)
			}
			c.Parents = append(c.Parents, value)
		}
	}
	if c.Tree == "" {
		return nil, fmt.Errorf("commit %s: missing tree header", hash)
	}
	return c, nil
}

// ParseTag extracts the target hash and kind from raw annotated-tag bytes.
func ParseTag(hash string, data []byte) (*Tag, error) {
	t := &Tag{Hash: hash}
	for _, line := range headerLines(data) {
		field, value, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		switch field {
		case "object":
			if len(value) != HashHexLen {
				return nil, fmt.Errorf("tag %s: bad object hash %q", hash, value)
			}
			t.Target = value
		case "type":
			kind, err := ParseKind(value)
			if err != nil {
				return nil, fmt.Errorf("tag %s: %w", hash, err)
			}
			t.TargetKind = kind
		case "tag":
			t.Name = value
		}
	}
	if t.Target == "" || t.TargetKind == "" {
		return nil, fmt.Errorf("tag %s: missing object/type headers", hash)
	}
	return t, nil
}

// headerLines returns the lines before the first blank line.
func headerLines(data []byte) []string {
	header := data
	if idx := bytes.Index(data, []byte("\n\n")); idx >= 0 {
		header = data[:idx]
	}
	return strings.Split(strings.TrimRight(string(header), "\n"), "\n")
}

// ParseTree decodes raw tree bytes: a sequence of
// "<mode> <name>\x00<20-byte hash>" records.
func ParseTree(hash string, data []byte) (*Tree, error) {
	t := &Tree{Hash: hash}
	rest := data
	for len(rest) > 0 {
		nul := bytes.IndexByte(rest, 0)
		if nul < 0 || len(rest) < nul+1+20 {
			return nil, fmt.Errorf("tree %s: truncated entry", hash)
		}
		mode, name, ok := strings.Cut(string(rest[:nul]), " ")
		if !ok || mode == "" || name == "" {
			return nil, fmt.Errorf("tree %s: malformed entry header %q", hash, rest[:nul])
		}
		t.Entries = append(t.Entries, TreeEntry{
			Mode: mode,
			Name: name,
			Hash: hex.EncodeToString(rest[nul+1 : nul+1+20]),
		})
		rest = rest[nul+1+20:]
	}
	return t, nil
}

// FormatCommit renders raw commit bytes from structural fields. The
// identity line is fixed; gip only ever formats objects for fixtures and
// round-trip checks, real history always enters through Write verbatim.
func FormatCommit(tree string, parents []string, message string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", tree)
	for _, p := range parents {
		fmt.Fprintf(&buf, "parent %s\n", p)
	}
	buf.WriteString("author gip <gip@localhost> 1700000000 +0000\n")
	buf.WriteString("committer gip <gip@localhost> 1700000000 +0000\n")
	buf.WriteString("\n")
	buf.WriteString(message)
	return buf.Bytes()
}

// FormatTag renders raw annotated-tag bytes.
func FormatTag(target string, targetKind Kind, name, message string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "object %s\n", target)
	fmt.Fprintf(&buf, "type %s\n", targetKind)
	fmt.Fprintf(&buf, "tag %s\n", name)
	buf.WriteString("tagger gip <gip@localhost> 1700000000 +0000\n")
	buf.WriteString("\n")
	buf.WriteString(message)
	return buf.Bytes()
}

// FormatTree renders raw tree bytes from entries, in the order given.
func FormatTree(entries []TreeEntry) ([]byte, error) {
	var buf bytes.Buffer
	for _, e := range entries {
		raw, err := hex.DecodeString(e.Hash)
		if err != nil || len(raw) != 20 {
			return nil, fmt.Errorf("tree entry %q: bad hash %q", e.Name, e.Hash)
		}
		fmt.Fprintf(&buf, "%s %s\x00", e.Mode, e.Name)
		buf.Write(raw)
	}
	return buf.Bytes(), nil
}
