package syncer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/filetree"
	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/fspath"
	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/github"
	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/logging"
)

// State is the sync engine's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateSyncing
)

var (
	// ErrSyncInProgress rejects a sync requested while one is in flight.
	// Requests are not queued.
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrCooldown rejects a sync requested inside the cooldown window.
	ErrCooldown = errors.New("sync requested too soon after the previous attempt")
	// ErrNothingSynced reports a pass that created nothing: indistinguishable
	// from a sync that did nothing useful, so it is surfaced as a failure.
	ErrNothingSynced = errors.New("sync created no files or folders")
)

// TreeFetcher flattens a remote repository into RemoteEntry values.
type TreeFetcher interface {
	FetchTree(ctx context.Context, repoFullName, ref string) ([]github.RemoteEntry, error)
}

// Options tunes the sync engine. Zero values select the defaults.
type Options struct {
	Cooldown     time.Duration // minimum interval between attempt starts
	BatchSize    int           // files written concurrently per batch
	BatchPause   time.Duration // pause between batches
	ReleaseDelay time.Duration // trailing hold on the lock after a pass
	Denylist     []string      // filenames excluded from sync
}

const (
	DefaultCooldown     = 10 * time.Second
	DefaultBatchSize    = 10
	DefaultBatchPause   = 200 * time.Millisecond
	DefaultReleaseDelay = 1500 * time.Millisecond
)

// DefaultDenylist names files previously seen corrupting pulled trees:
// placeholder objects some storage layers create inside "empty" folders.
var DefaultDenylist = []string{".emptyFolderPlaceholder"}

func (o *Options) withDefaults() {
	if o.Cooldown == 0 {
		o.Cooldown = DefaultCooldown
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.BatchPause == 0 {
		o.BatchPause = DefaultBatchPause
	}
	if o.ReleaseDelay == 0 {
		o.ReleaseDelay = DefaultReleaseDelay
	}
	if o.Denylist == nil {
		o.Denylist = DefaultDenylist
	}
}

// Syncer pulls a remote repository into the local file tree. At most one
// sync runs at a time; the state machine is queryable via State.
type Syncer struct {
	mu          sync.Mutex
	state       State
	lastAttempt time.Time
	lastResult  *SyncResult

	fetcher TreeFetcher
	files   *filetree.Store
	opts    Options
}

// New creates a sync engine over the given fetcher and file tree.
func New(fetcher TreeFetcher, files *filetree.Store, opts Options) *Syncer {
	opts.withDefaults()
	return &Syncer{fetcher: fetcher, files: files, opts: opts}
}

// State reports whether a sync is in flight.
func (s *Syncer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastResult returns the most recent finalized result, or nil.
func (s *Syncer) LastResult() *SyncResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastResult
}

// SyncRepo pulls (owner, repo, branch) into the file tree. Guard
// rejections (ErrSyncInProgress, ErrCooldown) happen before any network
// call. Individual folder and file failures are recorded on the result and
// never abort the pass; only a failed tree fetch propagates as an error.
func (s *Syncer) SyncRepo(ctx context.Context, owner, repo, branch string) (*SyncResult, error) {
	now := time.Now()

	s.mu.Lock()
	if s.state == StateSyncing {
		s.mu.Unlock()
		return nil, ErrSyncInProgress
	}
	if !s.lastAttempt.IsZero() && now.Sub(s.lastAttempt) < s.opts.Cooldown {
		s.mu.Unlock()
		return nil, ErrCooldown
	}
	s.state = StateSyncing
	s.lastAttempt = now
	s.mu.Unlock()

	// The trailing delay absorbs immediately-following duplicate triggers.
	defer func() {
		release := func() {
			s.mu.Lock()
			s.state = StateIdle
			s.mu.Unlock()
		}
		if s.opts.ReleaseDelay > 0 {
			time.AfterFunc(s.opts.ReleaseDelay, release)
		} else {
			release()
		}
	}()

	repoFullName := owner + "/" + repo
	logging.Info("sync started",
		logging.String("repo", repoFullName),
		logging.String("branch", branch))

	entries, err := s.fetcher.FetchTree(ctx, repoFullName, branch)
	if err != nil {
		return nil, fmt.Errorf("fetch tree for %s@%s: %w", repoFullName, branch, err)
	}
	if len(entries) == 0 {
		return nil, &github.EmptyResultError{Repo: repoFullName, Ref: branch}
	}

	entries = s.filterDenylisted(entries)

	res := &SyncResult{Timestamp: now}
	run := &syncRun{s: s, ctx: ctx, res: res, created: map[string]bool{"/": true}}

	folders, files := partition(entries)

	// Shallowest first, so /a exists before /a/b is attempted.
	sort.SliceStable(folders, func(i, j int) bool {
		return fspath.Depth(folders[i].Path) < fspath.Depth(folders[j].Path)
	})
	for _, f := range folders {
		if f.FetchErr != nil {
			run.fail(f.Path)
			run.markCreated(f.Path)
			continue
		}
		run.ensureFolder(f.Path)
	}

	s.writeFiles(run, files)

	sort.Strings(res.FailedPaths)
	sort.Strings(res.SkippedDirty)

	s.mu.Lock()
	s.lastResult = res
	s.mu.Unlock()

	logging.Info("sync finished",
		logging.String("repo", repoFullName),
		logging.Int("files", res.FilesCreated),
		logging.Int("folders", res.FoldersCreated),
		logging.Int("failed", len(res.FailedPaths)),
		logging.Int("skipped_dirty", len(res.SkippedDirty)))

	if res.FilesCreated == 0 && res.FoldersCreated == 0 {
		return res, ErrNothingSynced
	}
	return res, nil
}

// filterDenylisted drops entries whose leaf name matches the denylist.
func (s *Syncer) filterDenylisted(entries []github.RemoteEntry) []github.RemoteEntry {
	if len(s.opts.Denylist) == 0 {
		return entries
	}
	out := entries[:0]
	for _, e := range entries {
		if s.denied(fspath.Name(e.Path)) {
			logging.Warn("skipping denylisted entry", logging.String("path", e.Path))
			continue
		}
		out = append(out, e)
	}
	return out
}

func (s *Syncer) denied(name string) bool {
	for _, d := range s.opts.Denylist {
		if name == d {
			return true
		}
	}
	return false
}

func partition(entries []github.RemoteEntry) (folders, files []github.RemoteEntry) {
	for _, e := range entries {
		if e.Type == github.EntryFolder {
			folders = append(folders, e)
		} else {
			files = append(files, e)
		}
	}
	return folders, files
}

// writeFiles creates or refreshes files in bounded concurrent batches.
// Batch N+1 starts only after batch N's fan-out settles. Parent folders are
// ensured serially before each batch so within-batch concurrency never
// races on folder creation.
func (s *Syncer) writeFiles(run *syncRun, files []github.RemoteEntry) {
	for start := 0; start < len(files); start += s.opts.BatchSize {
		if run.ctx.Err() != nil {
			for _, f := range files[start:] {
				run.fail(f.Path)
			}
			return
		}

		end := start + s.opts.BatchSize
		if end > len(files) {
			end = len(files)
		}
		batch := files[start:end]

		for _, f := range batch {
			run.ensureFolder(fspath.Parent(f.Path))
		}

		var wg sync.WaitGroup
		for _, f := range batch {
			wg.Add(1)
			go func(entry github.RemoteEntry) {
				defer wg.Done()
				run.writeFile(entry)
			}(f)
		}
		wg.Wait()

		if end < len(files) && s.opts.BatchPause > 0 {
			time.Sleep(s.opts.BatchPause)
		}
	}
}

// syncRun carries one pass's mutable bookkeeping. created tracks folder
// paths already handled this pass, seeded with the root; a failed folder is
// still marked so descendants keep trying instead of cascading into total
// failure.
type syncRun struct {
	s   *Syncer
	ctx context.Context

	mu      sync.Mutex
	res     *SyncResult
	created map[string]bool
	failed  map[string]bool
}

func (r *syncRun) fail(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failed == nil {
		r.failed = make(map[string]bool)
	}
	if r.failed[path] {
		return
	}
	r.failed[path] = true
	r.res.FailedPaths = append(r.res.FailedPaths, path)
}

func (r *syncRun) markCreated(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created[path] = true
}

func (r *syncRun) isCreated(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created[path]
}

// ensureFolder guarantees path and every missing ancestor has been
// attempted, walking down from the shallowest missing segment.
func (r *syncRun) ensureFolder(path string) {
	path = fspath.Clean(path)
	for _, ancestor := range append(fspath.Ancestors(path), path) {
		if ancestor == "/" || r.isCreated(ancestor) {
			continue
		}
		r.createFolder(ancestor)
	}
}

func (r *syncRun) createFolder(path string) {
	if existing := r.s.files.GetByPath(path); existing != nil {
		// Idempotence: an existing folder is detected, not recreated.
		if existing.Type != filetree.TypeFolder {
			r.fail(path)
		}
		r.markCreated(path)
		return
	}

	_, err := r.s.files.CreateFolder(r.ctx, fspath.Parent(path), fspath.Name(path))
	if err != nil && !errors.Is(err, filetree.ErrExists) {
		logging.Warn("folder creation failed",
			logging.String("path", path),
			logging.Err(err))
		r.fail(path)
		r.markCreated(path)
		return
	}
	if err == nil {
		r.mu.Lock()
		r.res.FoldersCreated++
		r.mu.Unlock()
	}
	r.markCreated(path)
}

// writeFile applies one remote file to the local tree. A dirty local file
// is skipped entirely: content untouched, modified flag untouched. An
// unsaved local edit is never silently discarded by an incoming sync.
func (r *syncRun) writeFile(entry github.RemoteEntry) {
	if entry.FetchErr != nil {
		r.fail(entry.Path)
		return
	}

	local := r.s.files.GetByPath(entry.Path)
	switch {
	case local != nil && local.Type != filetree.TypeFile:
		r.fail(entry.Path)
	case local != nil && local.IsModified:
		r.mu.Lock()
		r.res.SkippedDirty = append(r.res.SkippedDirty, entry.Path)
		r.mu.Unlock()
	case local != nil:
		if err := r.s.files.UpdateContent(r.ctx, local.ID, entry.Content, filetree.OriginRemote); err != nil {
			logging.Warn("file refresh failed",
				logging.String("path", entry.Path),
				logging.Err(err))
			r.fail(entry.Path)
			return
		}
		r.mu.Lock()
		r.res.FilesCreated++
		r.mu.Unlock()
	default:
		_, err := r.s.files.CreateFile(r.ctx,
			fspath.Parent(entry.Path), fspath.Name(entry.Path),
			entry.Content, filetree.OriginRemote)
		if err != nil {
			logging.Warn("file creation failed",
				logging.String("path", entry.Path),
				logging.Err(err))
			r.fail(entry.Path)
			return
		}
		r.mu.Lock()
		r.res.FilesCreated++
		r.mu.Unlock()
	}
}
