package github

import (
	"context"
	"sort"
	"sync"

	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/fspath"
	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/logging"
)

// EntryType distinguishes files from folders in a fetched tree.
type EntryType string

const (
	EntryFile   EntryType = "file"
	EntryFolder EntryType = "folder"
)

// RemoteEntry is one node of a flattened repository tree. Path is absolute
// in the virtual filesystem ("/src/main.go"). For files, FetchErr records a
// content-fetch failure explicitly so callers can distinguish an empty file
// from an unreadable one; the entry is still emitted either way.
type RemoteEntry struct {
	Path     string
	Type     EntryType
	Content  string
	FetchErr error
}

const (
	DefaultMaxDepth = 20
	DefaultFanOut   = 8
)

// TreeFetcher flattens an entire repository subtree into a list of
// RemoteEntry, recursively expanding folders and eagerly fetching file
// content.
type TreeFetcher struct {
	client   *Client
	maxDepth int
	fanOut   int
}

// NewTreeFetcher creates a fetcher. maxDepth bounds the recursion and
// fanOut bounds concurrent content downloads; zero values select defaults.
func NewTreeFetcher(client *Client, maxDepth, fanOut int) *TreeFetcher {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if fanOut <= 0 {
		fanOut = DefaultFanOut
	}
	return &TreeFetcher{client: client, maxDepth: maxDepth, fanOut: fanOut}
}

// listed pairs a directory entry with the depth it was found at.
type listed struct {
	entry DirEntry
	path  string // virtual absolute path
}

// FetchTree walks the repository tree at ref and returns every folder and
// file beneath root ("" for the whole repository). A content-fetch failure
// for one file never aborts the walk; the failing entry carries FetchErr.
// Output ordering does not respect folder-then-file precedence; the sync
// engine re-orders before use.
func (tf *TreeFetcher) FetchTree(ctx context.Context, repoFullName, ref string) ([]RemoteEntry, error) {
	var (
		folders []RemoteEntry
		files   []listed
	)

	err := tf.walk(ctx, repoFullName, "", ref, 0, &folders, &files)
	if err != nil {
		return nil, err
	}

	entries := folders
	entries = append(entries, tf.fetchContents(ctx, repoFullName, ref, files)...)
	return entries, nil
}

// walk lists one directory and recurses depth-first into subfolders.
// Listing failures below the root are recorded on the folder entry and do
// not abort the walk.
func (tf *TreeFetcher) walk(ctx context.Context, repoFullName, dir, ref string, depth int, folders *[]RemoteEntry, files *[]listed) error {
	if depth > tf.maxDepth {
		logging.Warn("max walk depth reached, skipping subtree",
			logging.String("repo", repoFullName),
			logging.String("path", dir),
			logging.Int("depth", depth))
		return nil
	}

	children, err := tf.client.FetchDirectoryListing(ctx, repoFullName, dir, ref)
	if err != nil {
		if dir == "" {
			return err
		}
		*folders = append(*folders, RemoteEntry{
			Path:     fspath.Clean(dir),
			Type:     EntryFolder,
			FetchErr: err,
		})
		return nil
	}

	if dir != "" {
		*folders = append(*folders, RemoteEntry{Path: fspath.Clean(dir), Type: EntryFolder})
	}

	for _, child := range children {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		switch child.Type {
		case "dir":
			if err := tf.walk(ctx, repoFullName, child.Path, ref, depth+1, folders, files); err != nil {
				return err
			}
		case "file":
			*files = append(*files, listed{entry: child, path: fspath.Clean(child.Path)})
		default:
			// Symlinks and submodules are not part of the virtual tree.
		}
	}
	return nil
}

// fetchContents downloads file content with a bounded worker pool,
// attempting the direct-download URL first and falling back to the contents
// endpoint. An unreadable file is emitted with empty content and FetchErr
// set rather than omitted, so its presence is still visible downstream.
func (tf *TreeFetcher) fetchContents(ctx context.Context, repoFullName, ref string, files []listed) []RemoteEntry {
	if len(files) == 0 {
		return nil
	}

	out := make([]RemoteEntry, len(files))
	jobs := make(chan int, len(files))

	var wg sync.WaitGroup
	workers := tf.fanOut
	if workers > len(files) {
		workers = len(files)
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				f := files[idx]
				content, err := tf.fetchOne(ctx, repoFullName, ref, f.entry)
				out[idx] = RemoteEntry{
					Path:     f.path,
					Type:     EntryFile,
					Content:  content,
					FetchErr: err,
				}
				if err != nil {
					logging.Warn("file content fetch failed",
						logging.String("path", f.path),
						logging.Err(err))
				}
			}
		}()
	}

	for i := range files {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	// Stable output for the same input listing.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// fetchOne downloads one file's content.
func (tf *TreeFetcher) fetchOne(ctx context.Context, repoFullName, ref string, entry DirEntry) (string, error) {
	if entry.DownloadURL != "" {
		if content, err := tf.client.fetchRaw(ctx, entry.DownloadURL); err == nil {
			return content, nil
		}
	}

	content, ok, err := tf.client.FetchFileContent(ctx, repoFullName, entry.Path, ref)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return content, nil
}
