package github

import (
	"fmt"
	"time"
)

// AuthError indicates a bad or expired credential. It is fatal to the
// current operation; the caller should prompt for re-authentication.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (HTTP %d): %s", e.Status, e.Message)
}

// NotFoundError indicates a path, repository or branch that does not exist
// at the requested revision.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.Resource)
}

// ConflictError indicates a name collision on create, or a stale write: the
// remote file moved past the revision marker the caller last read.
type ConflictError struct {
	Path    string
	Message string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: %s", e.Path, e.Message)
}

// RateLimitError indicates provider throttling. The client does not retry
// internally; callers are responsible for backoff.
type RateLimitError struct {
	Reset time.Time
}

func (e *RateLimitError) Error() string {
	if e.Reset.IsZero() {
		return "rate limited by GitHub API"
	}
	return fmt.Sprintf("rate limited by GitHub API until %s", e.Reset.Format(time.RFC3339))
}

// EmptyResultError indicates that fetching a repository tree returned no
// entries at all. An empty or inaccessible repository is a distinct,
// user-visible failure, never a silent no-op.
type EmptyResultError struct {
	Repo string
	Ref  string
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("repository %s@%s returned no entries (empty or inaccessible)", e.Repo, e.Ref)
}
