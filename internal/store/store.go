// Package store provides the durable backends beneath the virtual file
// tree: an embedded bbolt key/value store (default) and PostgreSQL. Both
// persist file rows, GitHub tokens and per-user session state.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/filetree"
)

// ErrTokenNotFound is returned when no GitHub token is stored for a user.
var ErrTokenNotFound = errors.New("github token not found")

// ErrStateNotFound is returned when a session-state key is absent.
var ErrStateNotFound = errors.New("state key not found")

// Token is a stored GitHub credential row.
type Token struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Selection is the persisted remote target: repository full name and
// branch. It is remembered across sessions but never trusted; callers
// re-validate it against the live repository list.
type Selection struct {
	RepoFullName string `json:"repo_full_name"`
	Branch       string `json:"branch"`
}

// State keys used by the CLI.
const (
	StateSelection = "selection"
	StateLastSync  = "last_sync"
)

// Store is the full durable surface: the filetree backend plus token and
// session-state storage.
type Store interface {
	filetree.Backend

	SaveToken(ctx context.Context, user string, tok Token) error
	GetToken(ctx context.Context, user string) (token, username string, err error)
	DeleteToken(ctx context.Context, user string) error

	PutState(ctx context.Context, user, key string, v any) error
	GetState(ctx context.Context, user, key string, v any) error
	DeleteState(ctx context.Context, user, key string) error

	Close() error
}

// Options selects and configures a backend driver.
type Options struct {
	Driver      string // "bolt" or "postgres"
	Path        string // bolt database file
	DatabaseURL string // postgres connection string
}

// Open opens the configured backend. The bolt driver hands out a shared
// handle: bbolt locks the database file exclusively, so concurrent
// components in one process must share the connection.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", "bolt":
		return GetSharedKV(opts.Path)
	case "postgres":
		return OpenPostgres(ctx, opts.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
