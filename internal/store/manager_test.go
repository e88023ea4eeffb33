package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/filetree"
)

func TestSharedKVReferenceCounting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "travis.db")
	ctx := context.Background()

	first, err := GetSharedKV(path)
	if err != nil {
		t.Fatalf("GetSharedKV failed: %v", err)
	}
	second, err := GetSharedKV(path)
	if err != nil {
		t.Fatalf("second GetSharedKV failed: %v", err)
	}
	if first.KV != second.KV {
		t.Fatal("same path must share one underlying connection")
	}

	rec := filetree.Record{ID: "id-1", Name: "a", Path: "/a", Type: filetree.TypeFile}
	if err := first.UpsertEntry(ctx, "alice", rec); err != nil {
		t.Fatal(err)
	}

	// Dropping one reference must keep the connection open.
	if err := first.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	rows, err := second.LoadEntries(ctx, "alice")
	if err != nil {
		t.Fatalf("connection closed while a reference remained: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("got %d rows, want 1", len(rows))
	}

	if err := second.Close(); err != nil {
		t.Fatalf("last Close failed: %v", err)
	}

	// A fresh handle after the last close reopens the file.
	reopened, err := GetSharedKV(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()
	rows, err = reopened.LoadEntries(ctx, "alice")
	if err != nil || len(rows) != 1 {
		t.Errorf("data lost across close/reopen: %d rows, %v", len(rows), err)
	}
}
