package filetree

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"lukechampine.com/blake3"

	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/fspath"
)

// Store is the authoritative in-session representation of a user's files.
// Every mutation is written through to the Backend before the in-memory
// tree is updated. All methods are safe for concurrent use; the sync and
// commit engines and the CLI share one Store.
type Store struct {
	mu      sync.RWMutex
	backend Backend
	user    string
	root    *Entry
	byPath  map[string]*Entry
	byID    map[string]*Entry
}

// NewStore loads the user's rows from the backend and builds the tree.
// Orphan rows whose parent folder is missing are attached to the nearest
// existing ancestor's position by path; a missing root is synthesized.
func NewStore(ctx context.Context, backend Backend, user string) (*Store, error) {
	recs, err := backend.LoadEntries(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}

	s := &Store{
		backend: backend,
		user:    user,
		byPath:  make(map[string]*Entry),
		byID:    make(map[string]*Entry),
	}
	s.root = &Entry{ID: "root", Name: "", Path: "/", Type: TypeFolder}
	s.byPath["/"] = s.root
	s.byID[s.root.ID] = s.root

	// Parents before children.
	sort.Slice(recs, func(i, j int) bool {
		return fspath.Depth(recs[i].Path) < fspath.Depth(recs[j].Path)
	})

	for _, r := range recs {
		p := fspath.Clean(r.Path)
		if p == "/" {
			continue
		}
		e := &Entry{
			ID:           r.ID,
			Name:         r.Name,
			Path:         p,
			Type:         r.Type,
			Content:      r.Content,
			LastModified: r.LastModified,
			IsModified:   r.IsModified,
		}
		parent, ok := s.byPath[fspath.Parent(p)]
		if !ok || parent.Type != TypeFolder {
			// Orphan row; keep it reachable under the root so the user
			// can still see and delete it.
			parent = s.root
		}
		parent.Children = append(parent.Children, e)
		s.byPath[p] = e
		s.byID[e.ID] = e
	}

	return s, nil
}

// User returns the user the store is scoped to.
func (s *Store) User() string { return s.user }

// Root returns the root folder.
func (s *Store) Root() *Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root
}

// GetByPath returns the entry at path, or nil when absent.
func (s *Store) GetByPath(path string) *Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byPath[fspath.Clean(path)]
}

// GetByID returns the entry with the given id, or nil when absent.
func (s *Store) GetByID(id string) *Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byID[id]
}

// CreateFolder creates a folder under parentPath. Fails with ErrNotFound if
// the parent does not resolve to a folder and ErrExists on a name
// collision.
func (s *Store) CreateFolder(ctx context.Context, parentPath, name string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(ctx, parentPath, name, TypeFolder, nil, false)
}

// CreateFile creates a file under parentPath with the given content.
// Entries created by pull-from-remote flows start clean; entries created by
// the user or assistant start modified.
func (s *Store) CreateFile(ctx context.Context, parentPath, name, content string, origin Origin) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(ctx, parentPath, name, TypeFile, &content, origin == OriginLocal)
}

func (s *Store) createLocked(ctx context.Context, parentPath, name string, typ EntryType, content *string, modified bool) (*Entry, error) {
	parent, ok := s.byPath[fspath.Clean(parentPath)]
	if !ok || parent.Type != TypeFolder {
		return nil, fmt.Errorf("parent %s: %w", parentPath, ErrNotFound)
	}
	path := fspath.Join(parent.Path, name)
	if _, exists := s.byPath[path]; exists {
		return nil, fmt.Errorf("%s: %w", path, ErrExists)
	}

	e := &Entry{
		ID:           uuid.NewString(),
		Name:         name,
		Path:         path,
		Type:         typ,
		Content:      content,
		LastModified: time.Now(),
		IsModified:   modified,
	}
	if err := s.backend.UpsertEntry(ctx, s.user, recordOf(e)); err != nil {
		return nil, fmt.Errorf("persist %s: %w", path, err)
	}

	parent.Children = append(parent.Children, e)
	s.byPath[path] = e
	s.byID[e.ID] = e
	return e, nil
}

// UpdateContent sets a file's content. Local writes mark the file modified;
// remote-origin pulls leave the modified flag exactly as it was. A write
// whose content hash matches the current content is a no-op for local
// origin, so re-saving an unchanged file does not dirty it.
func (s *Store) UpdateContent(ctx context.Context, id, content string, origin Origin) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("id %s: %w", id, ErrNotFound)
	}
	if e.Type != TypeFile {
		return fmt.Errorf("%s: %w", e.Path, ErrNotFile)
	}

	if e.Content != nil && blake3.Sum256([]byte(*e.Content)) == blake3.Sum256([]byte(content)) {
		if origin == OriginLocal {
			return nil
		}
	}

	modified := e.IsModified
	if origin == OriginLocal {
		modified = true
	}

	updated := *e
	updated.Content = &content
	updated.LastModified = time.Now()
	updated.IsModified = modified
	if err := s.backend.UpsertEntry(ctx, s.user, recordOf(&updated)); err != nil {
		return fmt.Errorf("persist %s: %w", e.Path, err)
	}

	e.Content = &content
	e.LastModified = updated.LastModified
	e.IsModified = modified
	return nil
}

// DeleteEntry removes an entry; deleting a folder cascades to all
// descendants.
func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("id %s: %w", id, ErrNotFound)
	}
	if e == s.root {
		return fmt.Errorf("cannot delete the root folder")
	}

	var doomed []*Entry
	collect(e, &doomed)

	ids := make([]string, len(doomed))
	for i, d := range doomed {
		ids[i] = d.ID
	}
	if err := s.backend.DeleteEntries(ctx, s.user, ids); err != nil {
		return fmt.Errorf("delete %s: %w", e.Path, err)
	}

	parent := s.byPath[fspath.Parent(e.Path)]
	if parent != nil {
		for i, c := range parent.Children {
			if c == e {
				parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
				break
			}
		}
	}
	for _, d := range doomed {
		delete(s.byPath, d.Path)
		delete(s.byID, d.ID)
	}
	return nil
}

func collect(e *Entry, out *[]*Entry) {
	*out = append(*out, e)
	for _, c := range e.Children {
		collect(c, out)
	}
}

// ListModified returns every file with IsModified set, in path order. This
// is the commit engine's working set.
func (s *Store) ListModified() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Entry
	var walk func(*Entry)
	walk = func(e *Entry) {
		if e.Type == TypeFile && e.IsModified {
			out = append(out, e)
		}
		for _, c := range e.Children {
			walk(c)
		}
	}
	walk(s.root)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// ClearModified marks a file clean after a confirmed commit, in both the
// durable store and the in-memory tree.
func (s *Store) ClearModified(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("id %s: %w", id, ErrNotFound)
	}
	if err := s.backend.SetModified(ctx, s.user, id, false); err != nil {
		return fmt.Errorf("persist flag %s: %w", e.Path, err)
	}
	e.IsModified = false
	return nil
}

func recordOf(e *Entry) Record {
	return Record{
		ID:           e.ID,
		Name:         e.Name,
		Path:         e.Path,
		Type:         e.Type,
		Content:      e.Content,
		LastModified: e.LastModified,
		IsModified:   e.IsModified,
	}
}
