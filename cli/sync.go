package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/colors"
	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/github"
	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/store"
	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/syncer"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull the selected repository into the virtual file tree",
	Long: `Fetch the selected repository's full tree and write it into the local
virtual file tree. Files with unsaved local edits are skipped, never
overwritten. Individual failures are reported at the end without aborting
the pass.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		sel, err := e.selection(ctx)
		if err != nil {
			return err
		}

		client, err := e.newClient(ctx)
		if err != nil {
			return err
		}

		fetcher := github.NewTreeFetcher(client, cfg.Sync.MaxDepth, cfg.Sync.FanOut)
		s := syncer.New(fetcher, e.files, syncer.Options{
			Cooldown:     cfg.SyncCooldown(),
			BatchSize:    cfg.Sync.BatchSize,
			BatchPause:   cfg.BatchPause(),
			ReleaseDelay: cfg.ReleaseDelay(),
			Denylist:     cfg.Sync.Denylist,
		})

		owner, repo, ok := strings.Cut(sel.RepoFullName, "/")
		if !ok {
			return fmt.Errorf("stored selection %q is malformed", sel.RepoFullName)
		}

		fmt.Printf("Syncing %s @ %s ...\n", colors.Bold(sel.RepoFullName), sel.Branch)
		res, err := s.SyncRepo(ctx, owner, repo, sel.Branch)
		if err != nil && !errors.Is(err, syncer.ErrNothingSynced) {
			var emptyErr *github.EmptyResultError
			if errors.As(err, &emptyErr) {
				return fmt.Errorf("repository %s@%s has no syncable files", sel.RepoFullName, sel.Branch)
			}
			return err
		}

		printSyncResult(res)

		if perr := e.store.PutState(ctx, e.user, store.StateLastSync, res); perr != nil {
			fmt.Printf("%s failed to record sync time: %v\n", colors.Yellow("[WARN]"), perr)
		}

		if errors.Is(err, syncer.ErrNothingSynced) {
			return fmt.Errorf("sync completed but created nothing")
		}
		return nil
	},
}

func printSyncResult(res *syncer.SyncResult) {
	if res == nil {
		return
	}
	fmt.Printf("%s %d files, %d folders\n",
		colors.Green("[OK]"), res.FilesCreated, res.FoldersCreated)
	if len(res.SkippedDirty) > 0 {
		fmt.Printf("%s %d files with unsaved edits left untouched:\n",
			colors.Yellow("[SKIP]"), len(res.SkippedDirty))
		for _, p := range res.SkippedDirty {
			fmt.Printf("  %s\n", p)
		}
	}
	if len(res.FailedPaths) > 0 {
		fmt.Printf("%s %d paths failed:\n", colors.Red("[FAIL]"), len(res.FailedPaths))
		for _, p := range res.FailedPaths {
			fmt.Printf("  %s\n", p)
		}
	}
}
