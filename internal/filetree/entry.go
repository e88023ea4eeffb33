// Package filetree implements the virtual file tree: an in-memory
// hierarchical representation of a user's files backed by durable storage.
package filetree

import (
	"context"
	"errors"
	"time"
)

// EntryType is the node kind. Only folders have children; only files have
// content.
type EntryType string

const (
	TypeFile   EntryType = "file"
	TypeFolder EntryType = "folder"
)

// Entry is a node in the virtual filesystem.
type Entry struct {
	ID           string
	Name         string
	Path         string
	Type         EntryType
	Content      *string // nil for folders and unread files
	Children     []*Entry
	LastModified time.Time
	// IsModified is true when content changed locally since the last
	// successful commit. It resets only on confirmed commit success or a
	// fresh pull with no local edits.
	IsModified bool
}

// Record is the durable row shape for an entry, as persisted by a Backend.
type Record struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Type         EntryType `json:"type"`
	Content      *string   `json:"content,omitempty"`
	LastModified time.Time `json:"last_modified"`
	IsModified   bool      `json:"is_modified"`
}

// Backend is the durable store beneath a Store. All rows are scoped to a
// user.
type Backend interface {
	LoadEntries(ctx context.Context, user string) ([]Record, error)
	UpsertEntry(ctx context.Context, user string, rec Record) error
	DeleteEntries(ctx context.Context, user string, ids []string) error
	SetModified(ctx context.Context, user, id string, modified bool) error
}

// Origin marks who is writing: a pull from the remote repository or a local
// edit by the user or assistant.
type Origin int

const (
	OriginLocal Origin = iota
	OriginRemote
)

var (
	// ErrNotFound is returned when a path or id does not resolve.
	ErrNotFound = errors.New("entry not found")
	// ErrExists is returned on a name collision under the same parent.
	ErrExists = errors.New("entry already exists")
	// ErrNotFile is returned when a content operation targets a folder.
	ErrNotFile = errors.New("entry is not a file")
)
