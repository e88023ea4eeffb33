package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/filetree"
	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/fspath"
	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/github"
	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/logging"
)

var (
	// ErrCommitInProgress rejects a commit pass requested while one runs.
	ErrCommitInProgress = errors.New("commit already in progress")
	// ErrCommitCooldown rejects a commit requested inside the cooldown window.
	ErrCommitCooldown = errors.New("commit requested too soon after the previous attempt")
	// ErrEmptyMessage rejects a commit with a blank message.
	ErrEmptyMessage = errors.New("commit message must not be empty")
	// ErrNothingToCommit rejects a pass with zero modified files.
	ErrNothingToCommit = errors.New("no modified files to commit")
)

// RemoteCommitter is the slice of the repository client the commit engine
// needs: a revision-marker read and a conditional single-file commit.
type RemoteCommitter interface {
	GetFileSHA(ctx context.Context, repoFullName, path, ref string) (string, error)
	CreateOrUpdateFile(ctx context.Context, repoFullName, path, content, message, branch, priorSHA string) (string, error)
}

// Committer pushes locally modified files back to the remote repository,
// one commit per file. Commits are not atomic across files.
type Committer struct {
	mu          sync.Mutex
	inFlight    bool
	lastAttempt time.Time

	remote   RemoteCommitter
	files    *filetree.Store
	cooldown time.Duration
}

// NewCommitter creates a commit engine. cooldown zero selects the default.
func NewCommitter(remote RemoteCommitter, files *filetree.Store, cooldown time.Duration) *Committer {
	if cooldown == 0 {
		cooldown = DefaultCooldown
	}
	return &Committer{remote: remote, files: files, cooldown: cooldown}
}

// guard enforces the single-flight and cooldown rules before any network
// activity.
func (c *Committer) guard() error {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight {
		return ErrCommitInProgress
	}
	if !c.lastAttempt.IsZero() && now.Sub(c.lastAttempt) < c.cooldown {
		return ErrCommitCooldown
	}
	c.inFlight = true
	c.lastAttempt = now
	return nil
}

func (c *Committer) release() {
	c.mu.Lock()
	c.inFlight = false
	c.mu.Unlock()
}

// CommitModified pushes every file flagged modified to (repoFullName,
// branch). Per-file failures are counted and leave the file's flag intact
// so a retry remains possible; the flag clears only on confirmed success.
func (c *Committer) CommitModified(ctx context.Context, repoFullName, branch, message string) (*CommitResult, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}
	if err := c.guard(); err != nil {
		return nil, err
	}
	defer c.release()

	modified := c.files.ListModified()
	if len(modified) == 0 {
		return nil, ErrNothingToCommit
	}

	res := &CommitResult{}
	for _, f := range modified {
		c.commitOne(ctx, repoFullName, branch, message, f, res)
	}

	logging.Info("commit finished",
		logging.String("repo", repoFullName),
		logging.Int("succeeded", res.Succeeded),
		logging.Int("failed", res.Failed))
	return res, nil
}

// SaveFile writes content to path in the local tree (creating missing
// ancestor folders) and immediately commits that one file. The cooldown
// and single-flight guards apply as for a full pass.
func (c *Committer) SaveFile(ctx context.Context, repoFullName, branch, path, content, message string) error {
	if strings.TrimSpace(message) == "" {
		return ErrEmptyMessage
	}

	path = fspath.Clean(path)
	entry := c.files.GetByPath(path)
	if entry == nil {
		for _, ancestor := range fspath.Ancestors(path) {
			if c.files.GetByPath(ancestor) == nil {
				if _, err := c.files.CreateFolder(ctx, fspath.Parent(ancestor), fspath.Name(ancestor)); err != nil {
					return fmt.Errorf("create folder %s: %w", ancestor, err)
				}
			}
		}
		created, err := c.files.CreateFile(ctx, fspath.Parent(path), fspath.Name(path), content, filetree.OriginLocal)
		if err != nil {
			return fmt.Errorf("create file %s: %w", path, err)
		}
		entry = created
	} else {
		if err := c.files.UpdateContent(ctx, entry.ID, content, filetree.OriginLocal); err != nil {
			return fmt.Errorf("update file %s: %w", path, err)
		}
	}

	if err := c.guard(); err != nil {
		return err
	}
	defer c.release()

	res := &CommitResult{}
	c.commitOne(ctx, repoFullName, branch, message, c.files.GetByPath(path), res)
	if res.Failed > 0 {
		return fmt.Errorf("commit %s failed", path)
	}
	return nil
}

// commitOne pushes a single file: re-read the remote revision marker, push
// the content conditionally, clear the modified flag only on confirmed
// success.
func (c *Committer) commitOne(ctx context.Context, repoFullName, branch, message string, f *filetree.Entry, res *CommitResult) {
	if f == nil {
		res.Failed++
		return
	}
	if f.Content == nil {
		// Nothing meaningful to commit.
		logging.Warn("skipping file with no content", logging.String("path", f.Path))
		res.Failed++
		res.FailedPaths = append(res.FailedPaths, f.Path)
		return
	}

	remotePath := fspath.ForRemote(f.Path)

	priorSHA, err := c.remote.GetFileSHA(ctx, repoFullName, remotePath, branch)
	if err != nil {
		var notFound *github.NotFoundError
		if !errors.As(err, &notFound) {
			logging.Warn("revision read failed",
				logging.String("path", f.Path),
				logging.Err(err))
			res.Failed++
			res.FailedPaths = append(res.FailedPaths, f.Path)
			return
		}
		priorSHA = "" // new file on the remote
	}

	if _, err := c.remote.CreateOrUpdateFile(ctx, repoFullName, remotePath, *f.Content, message, branch, priorSHA); err != nil {
		logging.Warn("commit failed",
			logging.String("path", f.Path),
			logging.Err(err))
		res.Failed++
		res.FailedPaths = append(res.FailedPaths, f.Path)
		return
	}

	if err := c.files.ClearModified(ctx, f.ID); err != nil {
		// The remote accepted the commit; a flag-clear failure must not
		// recount the file as a failed push.
		logging.Error("failed to clear modified flag after commit",
			logging.String("path", f.Path),
			logging.Err(err))
	}
	res.Succeeded++
}
