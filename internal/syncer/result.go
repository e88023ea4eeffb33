// Package syncer implements the two engines at the heart of the system:
// the sync engine, which pulls a remote repository into the virtual file
// tree, and the commit engine, which pushes locally modified files back.
// Both return structured results and leave user notification to the caller.
package syncer

import "time"

// SyncResult is the aggregate outcome of one sync attempt. It is created
// fresh at the start of every attempt and finalized at the end; the most
// recent one is cached for display but not otherwise persisted by the
// engine.
type SyncResult struct {
	FilesCreated   int       `json:"files_created"`
	FoldersCreated int       `json:"folders_created"`
	FailedPaths    []string  `json:"failed_paths,omitempty"`
	SkippedDirty   []string  `json:"skipped_dirty,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// CommitResult is the aggregate outcome of one commit pass.
type CommitResult struct {
	Succeeded   int      `json:"succeeded"`
	Failed      int      `json:"failed"`
	FailedPaths []string `json:"failed_paths,omitempty"`
}
