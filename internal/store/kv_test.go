package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/filetree"
)

func openTestKV(t *testing.T) *KV {
	t.Helper()
	kv, err := OpenKV(filepath.Join(t.TempDir(), "travis.db"))
	if err != nil {
		t.Fatalf("OpenKV failed: %v", err)
	}
	t.Cleanup(func() { kv.Close() })
	return kv
}

func strptr(s string) *string { return &s }

func TestFileRowRoundTrip(t *testing.T) {
	kv := openTestKV(t)
	ctx := context.Background()

	rec := filetree.Record{
		ID:           "id-1",
		Name:         "main.go",
		Path:         "/src/main.go",
		Type:         filetree.TypeFile,
		Content:      strptr("package main\n"),
		LastModified: time.Unix(1700000000, 0).UTC(),
		IsModified:   true,
	}
	if err := kv.UpsertEntry(ctx, "alice", rec); err != nil {
		t.Fatalf("UpsertEntry failed: %v", err)
	}

	got, err := kv.LoadEntries(ctx, "alice")
	if err != nil {
		t.Fatalf("LoadEntries failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("LoadEntries returned %d rows, want 1", len(got))
	}
	r := got[0]
	if r.ID != rec.ID || r.Path != rec.Path || r.Type != rec.Type || !r.IsModified {
		t.Errorf("round-tripped row mismatch: %+v", r)
	}
	if r.Content == nil || *r.Content != "package main\n" {
		t.Error("content did not survive compression round trip")
	}
	if !r.LastModified.Equal(rec.LastModified) {
		t.Errorf("LastModified = %v, want %v", r.LastModified, rec.LastModified)
	}

	// Rows are scoped per user.
	other, err := kv.LoadEntries(ctx, "bob")
	if err != nil {
		t.Fatalf("LoadEntries(bob) failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("rows leaked across users: %d", len(other))
	}
}

func TestSetModifiedAndDelete(t *testing.T) {
	kv := openTestKV(t)
	ctx := context.Background()

	rec := filetree.Record{ID: "id-1", Name: "a", Path: "/a", Type: filetree.TypeFile, IsModified: true}
	if err := kv.UpsertEntry(ctx, "alice", rec); err != nil {
		t.Fatal(err)
	}

	if err := kv.SetModified(ctx, "alice", "id-1", false); err != nil {
		t.Fatalf("SetModified failed: %v", err)
	}
	rows, _ := kv.LoadEntries(ctx, "alice")
	if rows[0].IsModified {
		t.Error("SetModified(false) not persisted")
	}

	if err := kv.SetModified(ctx, "alice", "missing", false); !errors.Is(err, filetree.ErrNotFound) {
		t.Errorf("SetModified on missing row: got %v, want ErrNotFound", err)
	}

	if err := kv.DeleteEntries(ctx, "alice", []string{"id-1"}); err != nil {
		t.Fatalf("DeleteEntries failed: %v", err)
	}
	rows, _ = kv.LoadEntries(ctx, "alice")
	if len(rows) != 0 {
		t.Errorf("row survived delete: %d", len(rows))
	}
}

func TestTokens(t *testing.T) {
	kv := openTestKV(t)
	ctx := context.Background()

	if _, _, err := kv.GetToken(ctx, "alice"); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("GetToken on empty store: got %v, want ErrTokenNotFound", err)
	}

	if err := kv.SaveToken(ctx, "alice", Token{Token: "ghp_x", Username: "alice-gh"}); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}
	token, username, err := kv.GetToken(ctx, "alice")
	if err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	if token != "ghp_x" || username != "alice-gh" {
		t.Errorf("token round trip mismatch: %q %q", token, username)
	}

	if err := kv.DeleteToken(ctx, "alice"); err != nil {
		t.Fatalf("DeleteToken failed: %v", err)
	}
	if _, _, err := kv.GetToken(ctx, "alice"); !errors.Is(err, ErrTokenNotFound) {
		t.Error("token survived delete")
	}
}

func TestState(t *testing.T) {
	kv := openTestKV(t)
	ctx := context.Background()

	sel := Selection{RepoFullName: "alice/project", Branch: "main"}
	if err := kv.PutState(ctx, "alice", StateSelection, sel); err != nil {
		t.Fatalf("PutState failed: %v", err)
	}

	var got Selection
	if err := kv.GetState(ctx, "alice", StateSelection, &got); err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if got != sel {
		t.Errorf("state round trip mismatch: %+v", got)
	}

	var missing Selection
	if err := kv.GetState(ctx, "alice", "nope", &missing); !errors.Is(err, ErrStateNotFound) {
		t.Errorf("GetState on missing key: got %v, want ErrStateNotFound", err)
	}

	if err := kv.DeleteState(ctx, "alice", StateSelection); err != nil {
		t.Fatalf("DeleteState failed: %v", err)
	}
	if err := kv.GetState(ctx, "alice", StateSelection, &got); !errors.Is(err, ErrStateNotFound) {
		t.Error("state survived delete")
	}
}

func TestStoreThroughFiletree(t *testing.T) {
	kv := openTestKV(t)
	ctx := context.Background()

	s, err := filetree.NewStore(ctx, kv, "alice")
	if err != nil {
		t.Fatalf("NewStore over KV failed: %v", err)
	}
	if _, err := s.CreateFolder(ctx, "/", "src"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateFile(ctx, "/src", "main.go", "package main", filetree.OriginLocal); err != nil {
		t.Fatal(err)
	}

	reloaded, err := filetree.NewStore(ctx, kv, "alice")
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	got := reloaded.GetByPath("/src/main.go")
	if got == nil || !got.IsModified {
		t.Error("file tree did not survive a reload through the bolt backend")
	}
}
