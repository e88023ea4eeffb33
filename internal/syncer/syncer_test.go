package syncer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/filetree"
	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/github"
)

// fakeFetcher serves a canned tree and counts calls.
type fakeFetcher struct {
	entries []github.RemoteEntry
	err     error
	calls   int
}

func (f *fakeFetcher) FetchTree(ctx context.Context, repoFullName, ref string) ([]github.RemoteEntry, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

// testOptions disables the timing guards that make tests slow. Cooldown
// stays on where a test exercises it.
func testOptions() Options {
	return Options{
		Cooldown:     time.Nanosecond,
		BatchSize:    10,
		BatchPause:   time.Nanosecond,
		ReleaseDelay: -1, // immediate release
		Denylist:     DefaultDenylist,
	}
}

func newTestTree(t *testing.T) *filetree.Store {
	t.Helper()
	s, err := filetree.NewStore(context.Background(), filetree.NewMemoryBackend(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func folder(path string) github.RemoteEntry {
	return github.RemoteEntry{Path: path, Type: github.EntryFolder}
}

func file(path, content string) github.RemoteEntry {
	return github.RemoteEntry{Path: path, Type: github.EntryFile, Content: content}
}

func TestSyncCreatesTree(t *testing.T) {
	tree := newTestTree(t)
	fetcher := &fakeFetcher{entries: []github.RemoteEntry{
		// Deliberately unordered: files before their folders, deep before
		// shallow. The engine must re-order.
		file("/src/app/main.go", "package main"),
		folder("/src/app"),
		file("/README.md", "# readme"),
		folder("/src"),
	}}

	s := New(fetcher, tree, testOptions())
	res, err := s.SyncRepo(context.Background(), "alice", "project", "main")
	if err != nil {
		t.Fatalf("SyncRepo failed: %v", err)
	}

	if res.FoldersCreated != 2 {
		t.Errorf("FoldersCreated = %d, want 2", res.FoldersCreated)
	}
	if res.FilesCreated != 2 {
		t.Errorf("FilesCreated = %d, want 2", res.FilesCreated)
	}
	if len(res.FailedPaths) != 0 {
		t.Errorf("FailedPaths = %v, want none", res.FailedPaths)
	}

	got := tree.GetByPath("/src/app/main.go")
	if got == nil {
		t.Fatal("synced file missing")
	}
	if got.IsModified {
		t.Error("freshly pulled file must start clean")
	}
	if got.Content == nil || *got.Content != "package main" {
		t.Error("synced content wrong")
	}
}

func TestSyncCreatesMissingAncestors(t *testing.T) {
	tree := newTestTree(t)
	// The listing names a deep file but no folder entries at all.
	fetcher := &fakeFetcher{entries: []github.RemoteEntry{
		file("/a/b/c/deep.txt", "x"),
	}}

	s := New(fetcher, tree, testOptions())
	res, err := s.SyncRepo(context.Background(), "alice", "project", "main")
	if err != nil {
		t.Fatalf("SyncRepo failed: %v", err)
	}

	for _, p := range []string{"/a", "/a/b", "/a/b/c"} {
		e := tree.GetByPath(p)
		if e == nil || e.Type != filetree.TypeFolder {
			t.Errorf("ancestor %s not created", p)
		}
	}
	if res.FoldersCreated != 3 || res.FilesCreated != 1 {
		t.Errorf("counts = (%d folders, %d files), want (3, 1)", res.FoldersCreated, res.FilesCreated)
	}
	if len(res.FailedPaths) != 0 {
		t.Errorf("no parent-missing failure expected, got %v", res.FailedPaths)
	}
}

func TestSyncIdempotentFolders(t *testing.T) {
	tree := newTestTree(t)
	entries := []github.RemoteEntry{
		folder("/src"),
		file("/src/main.go", "package main"),
	}

	s := New(&fakeFetcher{entries: entries}, tree, testOptions())
	if _, err := s.SyncRepo(context.Background(), "alice", "project", "main"); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}

	s2 := New(&fakeFetcher{entries: entries}, tree, testOptions())
	res, err := s2.SyncRepo(context.Background(), "alice", "project", "main")
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if res.FoldersCreated != 0 {
		t.Errorf("second run recreated %d folders, want 0", res.FoldersCreated)
	}
	if res.FilesCreated != 1 {
		t.Errorf("second run refreshed %d files, want 1", res.FilesCreated)
	}
	if tree.GetByPath("/src/main.go").IsModified {
		t.Error("refreshed clean file must stay clean")
	}
}

func TestSyncPreservesDirtyFiles(t *testing.T) {
	tree := newTestTree(t)
	ctx := context.Background()

	if _, err := tree.CreateFile(ctx, "/", "notes.md", "local edit", filetree.OriginLocal); err != nil {
		t.Fatal(err)
	}

	fetcher := &fakeFetcher{entries: []github.RemoteEntry{
		file("/notes.md", "remote content"),
		file("/other.md", "other"),
	}}
	s := New(fetcher, tree, testOptions())
	res, err := s.SyncRepo(ctx, "alice", "project", "main")
	if err != nil {
		t.Fatalf("SyncRepo failed: %v", err)
	}

	got := tree.GetByPath("/notes.md")
	if !got.IsModified {
		t.Error("sync reset the modified flag of a dirty file")
	}
	if got.Content == nil || *got.Content != "local edit" {
		t.Error("sync overwrote a dirty file's content")
	}
	if len(res.SkippedDirty) != 1 || res.SkippedDirty[0] != "/notes.md" {
		t.Errorf("SkippedDirty = %v, want [/notes.md]", res.SkippedDirty)
	}
	if res.FilesCreated != 1 {
		t.Errorf("FilesCreated = %d, want 1 (the clean file)", res.FilesCreated)
	}
}

func TestSyncPartialFailureForwardProgress(t *testing.T) {
	tree := newTestTree(t)
	fetcher := &fakeFetcher{entries: []github.RemoteEntry{
		folder("/docs"),
		folder("/src"),
		file("/docs/a.md", "a"),
		file("/src/b.go", "b"),
		{Path: "/src/broken.go", Type: github.EntryFile, FetchErr: fmt.Errorf("boom")},
	}}

	s := New(fetcher, tree, testOptions())
	res, err := s.SyncRepo(context.Background(), "alice", "project", "main")
	if err != nil {
		t.Fatalf("SyncRepo failed: %v", err)
	}

	if res.FoldersCreated != 2 {
		t.Errorf("FoldersCreated = %d, want 2", res.FoldersCreated)
	}
	if res.FilesCreated != 2 {
		t.Errorf("FilesCreated = %d, want 2", res.FilesCreated)
	}
	if len(res.FailedPaths) != 1 || res.FailedPaths[0] != "/src/broken.go" {
		t.Errorf("FailedPaths = %v, want exactly [/src/broken.go]", res.FailedPaths)
	}
	if tree.GetByPath("/src/broken.go") != nil {
		t.Error("unreadable file must not be created locally")
	}
}

func TestSyncCooldownRejectsWithoutNetwork(t *testing.T) {
	tree := newTestTree(t)
	fetcher := &fakeFetcher{entries: []github.RemoteEntry{file("/a.txt", "a")}}

	opts := testOptions()
	opts.Cooldown = time.Hour
	s := New(fetcher, tree, opts)

	if _, err := s.SyncRepo(context.Background(), "alice", "project", "main"); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}
	if fetcher.calls != 1 {
		t.Fatalf("fetcher calls = %d, want 1", fetcher.calls)
	}

	_, err := s.SyncRepo(context.Background(), "alice", "project", "main")
	if !errors.Is(err, ErrCooldown) {
		t.Errorf("second sync: got %v, want ErrCooldown", err)
	}
	if fetcher.calls != 1 {
		t.Errorf("cooldown rejection made a network call (calls = %d)", fetcher.calls)
	}
}

func TestSyncMutualExclusion(t *testing.T) {
	tree := newTestTree(t)

	started := make(chan struct{})
	proceed := make(chan struct{})
	blocking := &blockingFetcher{started: started, proceed: proceed}

	opts := testOptions()
	s := New(blocking, tree, opts)

	done := make(chan error, 1)
	go func() {
		_, err := s.SyncRepo(context.Background(), "alice", "project", "main")
		done <- err
	}()

	<-started
	if s.State() != StateSyncing {
		t.Error("State() should report Syncing while in flight")
	}
	_, err := s.SyncRepo(context.Background(), "alice", "project", "main")
	if !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("overlapping sync: got %v, want ErrSyncInProgress", err)
	}

	close(proceed)
	if err := <-done; err != nil {
		t.Fatalf("first sync failed: %v", err)
	}
}

type blockingFetcher struct {
	started chan struct{}
	proceed chan struct{}
}

func (b *blockingFetcher) FetchTree(ctx context.Context, repoFullName, ref string) ([]github.RemoteEntry, error) {
	close(b.started)
	<-b.proceed
	return []github.RemoteEntry{{Path: "/x.txt", Type: github.EntryFile, Content: "x"}}, nil
}

func TestSyncEmptyRepository(t *testing.T) {
	tree := newTestTree(t)
	s := New(&fakeFetcher{}, tree, testOptions())

	res, err := s.SyncRepo(context.Background(), "alice", "empty", "main")
	var emptyErr *github.EmptyResultError
	if !errors.As(err, &emptyErr) {
		t.Fatalf("empty repo: got %v, want EmptyResultError", err)
	}
	if res != nil {
		t.Error("empty repo must not produce a success result")
	}
}

func TestSyncNothingCreatedIsFailure(t *testing.T) {
	tree := newTestTree(t)
	ctx := context.Background()
	// Every remote file corresponds to a dirty local file, so the pass
	// writes nothing.
	if _, err := tree.CreateFile(ctx, "/", "a.txt", "edit", filetree.OriginLocal); err != nil {
		t.Fatal(err)
	}

	s := New(&fakeFetcher{entries: []github.RemoteEntry{file("/a.txt", "remote")}}, tree, testOptions())
	res, err := s.SyncRepo(ctx, "alice", "project", "main")
	if !errors.Is(err, ErrNothingSynced) {
		t.Fatalf("got %v, want ErrNothingSynced", err)
	}
	if res == nil || len(res.SkippedDirty) != 1 {
		t.Error("result should still report the skipped path")
	}
}

func TestSyncDenylistFiltering(t *testing.T) {
	tree := newTestTree(t)
	fetcher := &fakeFetcher{entries: []github.RemoteEntry{
		folder("/assets"),
		file("/assets/.emptyFolderPlaceholder", ""),
		file("/assets/logo.svg", "<svg/>"),
	}}

	s := New(fetcher, tree, testOptions())
	res, err := s.SyncRepo(context.Background(), "alice", "project", "main")
	if err != nil {
		t.Fatalf("SyncRepo failed: %v", err)
	}
	if tree.GetByPath("/assets/.emptyFolderPlaceholder") != nil {
		t.Error("denylisted file was created")
	}
	if res.FilesCreated != 1 {
		t.Errorf("FilesCreated = %d, want 1", res.FilesCreated)
	}
}

func TestSyncFolderFailureDoesNotCascade(t *testing.T) {
	tree := newTestTree(t)
	ctx := context.Background()
	// A file already occupies the folder's path, so folder creation fails.
	if _, err := tree.CreateFile(ctx, "/", "src", "i am a file", filetree.OriginRemote); err != nil {
		t.Fatal(err)
	}

	fetcher := &fakeFetcher{entries: []github.RemoteEntry{
		folder("/src"),
		folder("/docs"),
		file("/docs/ok.md", "fine"),
	}}
	s := New(fetcher, tree, testOptions())
	res, err := s.SyncRepo(ctx, "alice", "project", "main")
	if err != nil {
		t.Fatalf("SyncRepo failed: %v", err)
	}

	if len(res.FailedPaths) == 0 {
		t.Error("conflicting folder should be recorded as failed")
	}
	if tree.GetByPath("/docs/ok.md") == nil {
		t.Error("unrelated subtree must still sync")
	}
	if res.FoldersCreated != 1 || res.FilesCreated != 1 {
		t.Errorf("counts = (%d folders, %d files), want (1, 1)", res.FoldersCreated, res.FilesCreated)
	}
}

func TestSyncFetchErrorPropagates(t *testing.T) {
	tree := newTestTree(t)
	boom := fmt.Errorf("network down")
	s := New(&fakeFetcher{err: boom}, tree, testOptions())

	_, err := s.SyncRepo(context.Background(), "alice", "project", "main")
	if !errors.Is(err, boom) {
		t.Errorf("got %v, want wrapped fetch error", err)
	}
}
