package index

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gipvcs/gip/pkg/odb"
	"github.com/gipvcs/gip/pkg/remote"
	"github.com/gipvcs/gip/pkg/store"
	"github.com/gipvcs/gip/pkg/wire"
)

// repo bundles the local collaborators one test repository needs.
type repo struct {
	db   *odb.Loose
	refs *odb.FileRefs
}

func newRepo(t *testing.T) *repo {
	t.Helper()
	dir := t.TempDir()
	return &repo{db: odb.NewLoose(dir), refs: odb.NewFileRefs(dir)}
}

func (r *repo) writeBlob(t *testing.T, content string) string {
	t.Helper()
	hash, err := r.db.Write(odb.KindBlob, []byte(content))
	if err != nil {
		t.Fatal(err)
	}
	return hash
}

func (r *repo) writeTree(t *testing.T, entries []odb.TreeEntry) string {
	t.Helper()
	raw, err := odb.FormatTree(entries)
	if err != nil {
		t.Fatal(err)
	}
	hash, err := r.db.Write(odb.KindTree, raw)
	if err != nil {
		t.Fatal(err)
	}
	return hash
}

func (r *repo) writeCommit(t *testing.T, tree string, parents []string, msg string) string {
	t.Helper()
	hash, err := r.db.Write(odb.KindCommit, odb.FormatCommit(tree, parents, msg))
	if err != nil {
		t.Fatal(err)
	}
	return hash
}

func (r *repo) writeTag(t *testing.T, target string, targetKind odb.Kind, name string) string {
	t.Helper()
	hash, err := r.db.Write(odb.KindTag, odb.FormatTag(target, targetKind, name, "tagged\n"))
	if err != nil {
		t.Fatal(err)
	}
	return hash
}

// singleCommit writes blob -> tree -> commit and points refs/heads/main at
// the commit. Returns commit, tree, blob hashes.
func (r *repo) singleCommit(t *testing.T, content string) (string, string, string) {
	t.Helper()
	blob := r.writeBlob(t, content)
	tree := r.writeTree(t, []odb.TreeEntry{{Mode: "100644", Name: "file.txt", Hash: blob}})
	commit := r.writeCommit(t, tree, nil, "initial\n")
	if err := r.refs.Update("refs/heads/main", commit); err != nil {
		t.Fatal(err)
	}
	return commit, tree, blob
}

func TestPushRefSingleCommit(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	mem := store.NewMem("")
	idx := New()

	commit, tree, blob := r.singleCommit(t, "hello\n")
	if err := idx.PushRef(ctx, "refs/heads/main", "refs/heads/main", false, r.db, r.refs, mem); err != nil {
		t.Fatal(err)
	}

	if len(idx.Objects) != 3 {
		t.Errorf("objects table: got %d entries, want 3", len(idx.Objects))
	}
	for _, h := range []string{commit, tree, blob} {
		link, ok := idx.Objects[h]
		if !ok {
			t.Errorf("hash %s missing from objects table", h)
		}
		if !strings.HasPrefix(link, "/ipfs/") {
			t.Errorf("hash %s has link %q", h, link)
		}
	}
	if len(idx.Refs) != 1 || idx.Refs["refs/heads/main"] != commit {
		t.Errorf("refs table: got %v, want main -> %s", idx.Refs, commit)
	}
}

func TestEnumerateForPushIdempotent(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	mem := store.NewMem("")
	idx := New()

	commit, _, _ := r.singleCommit(t, "content\n")

	pushed := make(map[string]struct{})
	subs := make(map[string]struct{})
	if err := idx.EnumerateForPush(commit, pushed, subs, r.db); err != nil {
		t.Fatal(err)
	}
	if len(pushed) != 3 {
		t.Fatalf("first walk: got %d hashes, want 3", len(pushed))
	}

	if err := idx.PushObjects(ctx, pushed, r.db, mem); err != nil {
		t.Fatal(err)
	}

	// Second walk against an index that now contains everything.
	again := make(map[string]struct{})
	subs = make(map[string]struct{})
	if err := idx.EnumerateForPush(commit, again, subs, r.db); err != nil {
		t.Fatal(err)
	}
	if len(again) != 0 {
		t.Errorf("second walk: got %d hashes, want 0", len(again))
	}
}

func TestEnumerateForPushDiamond(t *testing.T) {
	r := newRepo(t)
	idx := New()

	// Two commits sharing one tree: the tree and blob are visited once.
	blob := r.writeBlob(t, "shared\n")
	tree := r.writeTree(t, []odb.TreeEntry{{Mode: "100644", Name: "f", Hash: blob}})
	c1 := r.writeCommit(t, tree, nil, "one\n")
	c2 := r.writeCommit(t, tree, []string{c1}, "two\n")

	pushed := make(map[string]struct{})
	subs := make(map[string]struct{})
	if err := idx.EnumerateForPush(c2, pushed, subs, r.db); err != nil {
		t.Fatal(err)
	}
	if len(pushed) != 4 {
		t.Errorf("got %d hashes, want 4 (c1, c2, tree, blob)", len(pushed))
	}
}

func TestSubmoduleTipRecordedNotTraversed(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	mem := store.NewMem("")
	idx := New()

	blob := r.writeBlob(t, "regular file\n")
	subTip := strings.Repeat("d", 40) // not present in the odb, like real submodule tips
	tree := r.writeTree(t, []odb.TreeEntry{
		{Mode: "100644", Name: "file", Hash: blob},
		{Mode: "160000", Name: "submod", Hash: subTip},
	})
	commit := r.writeCommit(t, tree, nil, "with submodule\n")
	if err := r.refs.Update("refs/heads/main", commit); err != nil {
		t.Fatal(err)
	}

	pushed := make(map[string]struct{})
	subs := make(map[string]struct{})
	if err := idx.EnumerateForPush(commit, pushed, subs, r.db); err != nil {
		t.Fatal(err)
	}
	if _, ok := pushed[subTip]; ok {
		t.Error("submodule tip appeared in the push set")
	}
	if _, ok := subs[subTip]; !ok {
		t.Error("submodule tip missing from the submodule set")
	}

	if err := idx.PushRef(ctx, "refs/heads/main", "refs/heads/main", false, r.db, r.refs, mem); err != nil {
		t.Fatal(err)
	}
	if idx.Objects[subTip] != SubmoduleTipMarker {
		t.Errorf("submodule tip recorded as %q, want marker", idx.Objects[subTip])
	}

	// The marker can never be mistaken for a content link.
	if strings.HasPrefix(SubmoduleTipMarker, "/ipfs/") || len(SubmoduleTipMarker) == remote.HashLen {
		t.Error("marker collides with the content address shape")
	}
	if _, err := remote.Parse(SubmoduleTipMarker); err == nil {
		t.Error("marker parses as a remote link")
	}
}

func TestEnumerateForFetchSkipsMarkerAndLocal(t *testing.T) {
	ctx := context.Background()
	src := newRepo(t)
	mem := store.NewMem("")
	idx := New()

	blob := src.writeBlob(t, "file\n")
	subTip := strings.Repeat("e", 40)
	tree := src.writeTree(t, []odb.TreeEntry{
		{Mode: "100644", Name: "f", Hash: blob},
		{Mode: "160000", Name: "sub", Hash: subTip},
	})
	commit := src.writeCommit(t, tree, nil, "msg\n")
	if err := src.refs.Update("refs/heads/main", commit); err != nil {
		t.Fatal(err)
	}
	if err := idx.PushRef(ctx, "refs/heads/main", "refs/heads/main", false, src.db, src.refs, mem); err != nil {
		t.Fatal(err)
	}

	// Fetch into a repo that already has the blob.
	dst := newRepo(t)
	dst.writeBlob(t, "file\n")

	needed := make(map[string]struct{})
	if err := idx.EnumerateForFetch(ctx, commit, needed, dst.db, mem); err != nil {
		t.Fatal(err)
	}
	if _, ok := needed[subTip]; ok {
		t.Error("submodule tip in fetch set")
	}
	if _, ok := needed[blob]; ok {
		t.Error("locally present blob in fetch set")
	}
	if len(needed) != 2 {
		t.Errorf("fetch set: got %d, want 2 (commit, tree)", len(needed))
	}
}

func TestEnumerateForFetchNotIndexed(t *testing.T) {
	ctx := context.Background()
	dst := newRepo(t)
	mem := store.NewMem("")
	idx := New()

	err := idx.EnumerateForFetch(ctx, strings.Repeat("1", 40), make(map[string]struct{}), dst.db, mem)
	var notIndexed *NotIndexedError
	if !errors.As(err, &notIndexed) {
		t.Fatalf("got %v, want NotIndexedError", err)
	}
	if notIndexed.Hash != strings.Repeat("1", 40) {
		t.Errorf("error hash: %s", notIndexed.Hash)
	}
}

func TestFetchRefEndToEnd(t *testing.T) {
	ctx := context.Background()
	src := newRepo(t)
	mem := store.NewMem("")
	idx := New()

	commit, tree, blob := src.singleCommit(t, "round trip\n")
	if err := idx.PushRef(ctx, "refs/heads/main", "refs/heads/main", false, src.db, src.refs, mem); err != nil {
		t.Fatal(err)
	}

	dst := newRepo(t)
	if err := idx.FetchRef(ctx, commit, "refs/heads/main", dst.db, dst.refs, mem); err != nil {
		t.Fatal(err)
	}

	for _, h := range []string{commit, tree, blob} {
		if !dst.db.Has(h) {
			t.Errorf("hash %s not materialized locally", h)
		}
	}

	// The written commit re-hashes to the original.
	kind, raw, err := dst.db.Read(commit)
	if err != nil {
		t.Fatal(err)
	}
	if kind != odb.KindCommit {
		t.Errorf("kind: got %s", kind)
	}
	if got := odb.HashObject(odb.KindCommit, raw); got != commit {
		t.Errorf("recomputed hash %s, want %s", got, commit)
	}

	got, err := dst.refs.Resolve("refs/heads/main")
	if err != nil {
		t.Fatal(err)
	}
	if got != commit {
		t.Errorf("local ref: got %s, want %s", got, commit)
	}
}

func TestFetchObjectsInconsistency(t *testing.T) {
	ctx := context.Background()
	src := newRepo(t)
	mem := store.NewMem("")
	idx := New()

	blobA := src.writeBlob(t, "aaa\n")
	blobB := src.writeBlob(t, "bbb\n")
	for _, h := range []string{blobA, blobB} {
		if err := idx.PushObjects(ctx, map[string]struct{}{h: {}}, src.db, mem); err != nil {
			t.Fatal(err)
		}
	}

	// Cross the links: the index now claims blobA's bytes live where
	// blobB's object is.
	idx.Objects[blobA], idx.Objects[blobB] = idx.Objects[blobB], idx.Objects[blobA]

	dst := newRepo(t)
	err := idx.FetchObjects(ctx, map[string]struct{}{blobA: {}}, dst.db, mem)
	var inconsistency *InconsistencyError
	if !errors.As(err, &inconsistency) {
		t.Fatalf("got %v, want InconsistencyError", err)
	}
	if inconsistency.Expected != blobA || inconsistency.Written != blobB {
		t.Errorf("inconsistency: %+v", inconsistency)
	}
}

func TestPushRefDelete(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	mem := store.NewMem("")
	idx := New()

	commit, _, _ := r.singleCommit(t, "x\n")
	if err := idx.PushRef(ctx, "refs/heads/main", "refs/heads/main", false, r.db, r.refs, mem); err != nil {
		t.Fatal(err)
	}

	if err := idx.PushRef(ctx, "", "refs/heads/main", false, r.db, r.refs, mem); err != nil {
		t.Fatal(err)
	}
	if _, ok := idx.Refs["refs/heads/main"]; ok {
		t.Error("ref still present after delete")
	}
	if _, ok := idx.Objects[commit]; !ok {
		t.Error("delete touched the objects table")
	}

	// Deleting a missing ref is a non-fatal no-op.
	if err := idx.PushRef(ctx, "", "refs/heads/gone", false, r.db, r.refs, mem); err != nil {
		t.Errorf("deleting absent ref: %v", err)
	}
}

func TestPushRefFetchFirst(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMem("")
	idx := New()

	// Publisher A pushes main.
	a := newRepo(t)
	a.singleCommit(t, "history A\n")
	if err := idx.PushRef(ctx, "refs/heads/main", "refs/heads/main", false, a.db, a.refs, mem); err != nil {
		t.Fatal(err)
	}

	// Pusher B never fetched A's history and tries to overwrite main.
	b := newRepo(t)
	bCommit, _, _ := b.singleCommit(t, "history B\n")

	err := idx.PushRef(ctx, "refs/heads/main", "refs/heads/main", false, b.db, b.refs, mem)
	if !errors.Is(err, ErrFetchFirst) {
		t.Fatalf("got %v, want ErrFetchFirst", err)
	}

	// Forced push overwrites regardless.
	if err := idx.PushRef(ctx, "refs/heads/main", "refs/heads/main", true, b.db, b.refs, mem); err != nil {
		t.Fatal(err)
	}
	if idx.Refs["refs/heads/main"] != bCommit {
		t.Errorf("ref after force: got %s, want %s", idx.Refs["refs/heads/main"], bCommit)
	}
}

func TestPushRefPrefersAnnotatedTag(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	mem := store.NewMem("")
	idx := New()

	commit, _, _ := r.singleCommit(t, "taggable\n")
	tag := r.writeTag(t, commit, odb.KindCommit, "v1.0")
	if err := r.refs.Update("refs/tags/v1.0", tag); err != nil {
		t.Fatal(err)
	}

	if err := idx.PushRef(ctx, "refs/tags/v1.0", "refs/tags/v1.0", false, r.db, r.refs, mem); err != nil {
		t.Fatal(err)
	}
	if idx.Refs["refs/tags/v1.0"] != tag {
		t.Errorf("ref points at %s, want tag object %s", idx.Refs["refs/tags/v1.0"], tag)
	}
	// The tag's whole target graph came along.
	if len(idx.Objects) != 4 {
		t.Errorf("objects: got %d, want 4 (tag, commit, tree, blob)", len(idx.Objects))
	}
}

func TestFetchRefTagRules(t *testing.T) {
	ctx := context.Background()
	src := newRepo(t)
	mem := store.NewMem("")
	idx := New()

	commit, _, _ := src.singleCommit(t, "tags\n")
	tag := src.writeTag(t, commit, odb.KindCommit, "v2.0")
	if err := src.refs.Update("refs/tags/v2.0", tag); err != nil {
		t.Fatal(err)
	}
	if err := idx.PushRef(ctx, "refs/tags/v2.0", "refs/tags/v2.0", false, src.db, src.refs, mem); err != nil {
		t.Fatal(err)
	}

	// Annotated tag: objects materialize, no local ref update.
	dst := newRepo(t)
	if err := idx.FetchRef(ctx, tag, "refs/tags/v2.0", dst.db, dst.refs, mem); err != nil {
		t.Fatal(err)
	}
	if !dst.db.Has(tag) || !dst.db.Has(commit) {
		t.Error("tag graph not materialized")
	}
	if _, err := dst.refs.Resolve("refs/tags/v2.0"); !errors.Is(err, odb.ErrNotFound) {
		t.Errorf("tag ref should not be set, Resolve returned %v", err)
	}

	// Lightweight tag shape: commit at a refs/tags name, also no update.
	if err := idx.PushRef(ctx, "", "refs/tags/v2.0", false, src.db, src.refs, mem); err != nil {
		t.Fatal(err)
	}
	idx.Refs["refs/tags/light"] = commit
	dst2 := newRepo(t)
	if err := idx.FetchRef(ctx, commit, "refs/tags/light", dst2.db, dst2.refs, mem); err != nil {
		t.Fatal(err)
	}
	if _, err := dst2.refs.Resolve("refs/tags/light"); !errors.Is(err, odb.ErrNotFound) {
		t.Errorf("lightweight tag ref should not be set, Resolve returned %v", err)
	}

	// A blob at a ref tip is a constructed-data problem.
	blobOnly := New()
	blob := src.writeBlob(t, "tip\n")
	if err := blobOnly.PushObjects(ctx, map[string]struct{}{blob: {}}, src.db, mem); err != nil {
		t.Fatal(err)
	}
	dst3 := newRepo(t)
	err := blobOnly.FetchRef(ctx, blob, "refs/heads/odd", dst3.db, dst3.refs, mem)
	var kindErr *odb.UnsupportedKindError
	if !errors.As(err, &kindErr) {
		t.Errorf("got %v, want UnsupportedKindError", err)
	}
}

func TestIndexCodecRoundTrip(t *testing.T) {
	idx := New()
	idx.Refs["refs/heads/main"] = strings.Repeat("a", 40)
	idx.Objects[strings.Repeat("a", 40)] = "/ipfs/QmSomeLinkSomeLinkSomeLinkSomeLinkSomeLink"
	idx.Objects[strings.Repeat("b", 40)] = SubmoduleTipMarker
	idx.PrevIndexLink = "/ipfs/QmPrevIndexPrevIndexPrevIndexPrevIndexPrev"

	data, err := idx.Encode()
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Refs["refs/heads/main"] != idx.Refs["refs/heads/main"] ||
		decoded.Objects[strings.Repeat("b", 40)] != SubmoduleTipMarker ||
		decoded.PrevIndexLink != idx.PrevIndexLink {
		t.Errorf("round trip mismatch: %+v", decoded)
	}

	// Deterministic bytes for an unchanged index.
	again, err := idx.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if string(again) != string(data) {
		t.Error("encoding not deterministic")
	}

	// Strict version check.
	copy(data[:wire.HeaderLen], wire.Header(1))
	_, err = Decode(data)
	var mismatch *wire.VersionMismatchError
	if !errors.As(err, &mismatch) || mismatch.Found != 1 {
		t.Errorf("got %v, want VersionMismatchError{1}", err)
	}
}

func TestPublishChainsAndRepublishes(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMem("")

	first := New()
	firstRemote, err := first.Publish(ctx, mem, remote.NewIPFS())
	if err != nil {
		t.Fatal(err)
	}
	if first.PrevIndexLink != "" {
		t.Errorf("first publish chained %q", first.PrevIndexLink)
	}
	hash, ok := firstRemote.Hash()
	if !ok || firstRemote.IsIPNS() {
		t.Fatalf("first publish remote: %s", firstRemote)
	}

	// Fetch it back and verify it decodes.
	data, err := mem.Get(ctx, "/ipfs/"+hash)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(data); err != nil {
		t.Fatal(err)
	}

	second := New()
	second.Refs["refs/heads/main"] = strings.Repeat("c", 40)
	secondRemote, err := second.Publish(ctx, mem, firstRemote)
	if err != nil {
		t.Fatal(err)
	}
	if second.PrevIndexLink != firstRemote.String() {
		t.Errorf("chained %q, want %q", second.PrevIndexLink, firstRemote.String())
	}
	if secondRemote == firstRemote {
		t.Error("publish of a different index returned the same remote")
	}
}

func TestPublishIPNS(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMem("")

	first := New()
	firstRemote, err := first.Publish(ctx, mem, remote.NewIPNS())
	if err != nil {
		t.Fatal(err)
	}
	if !firstRemote.IsIPNS() {
		t.Fatalf("publish under new-ipns returned %s", firstRemote)
	}
	name, _ := firstRemote.Hash()

	underlying, err := mem.ResolveName(ctx, name)
	if err != nil {
		t.Fatal(err)
	}

	// Publishing over an existing IPNS remote chains the underlying
	// content link, not the name.
	second := New()
	second.Refs["refs/heads/dev"] = strings.Repeat("d", 40)
	secondRemote, err := second.Publish(ctx, mem, firstRemote)
	if err != nil {
		t.Fatal(err)
	}
	if second.PrevIndexLink != underlying {
		t.Errorf("chained %q, want underlying %q", second.PrevIndexLink, underlying)
	}
	if !secondRemote.IsIPNS() {
		t.Errorf("republish returned %s", secondRemote)
	}

	// The name now resolves to the new index.
	resolved, err := mem.ResolveName(ctx, name)
	if err != nil {
		t.Fatal(err)
	}
	if resolved == underlying {
		t.Error("name still resolves to the superseded index")
	}
}
