// Package cli implements the travis command tree: authentication,
// repository selection, sync, commit and virtual file tree operations.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/config"
	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/filetree"
	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/github"
	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/logging"
	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "travis",
	Short: "Travis syncs GitHub repositories into a virtual file tree",
	Long: `Travis pulls a GitHub repository into a locally stored virtual file tree,
lets you edit files in that tree, and commits modified files back to the
repository one file at a time.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig()
		if err != nil {
			return err
		}
		return logging.Init(logging.Config{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
		})
	},
}

// cfg is loaded once per invocation by the root PersistentPreRunE.
var cfg *config.Config

func Execute() {
	defer logging.Sync()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSetCmd, authStatusCmd, authRemoveCmd)

	rootCmd.AddCommand(portalCmd)
	portalCmd.AddCommand(portalAddCmd, portalListCmd, portalRemoveCmd)

	rootCmd.AddCommand(reposCmd)
	rootCmd.AddCommand(branchesCmd)

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(statusCmd)

	rootCmd.AddCommand(filesCmd)
	filesCmd.AddCommand(filesLsCmd, filesCatCmd, filesWriteCmd, filesMkdirCmd, filesRmCmd)
}

// env bundles the open backend and the loaded file tree for one command.
type env struct {
	store store.Store
	files *filetree.Store
	user  string
}

func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		logging.Warn("store close failed", logging.Err(err))
	}
}

// openEnv opens the configured storage backend and loads the user's file
// tree from it.
func openEnv(ctx context.Context) (*env, error) {
	opts := store.Options{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		DatabaseURL: cfg.Storage.DatabaseURL,
	}
	if opts.Driver != "postgres" && opts.Path == "" {
		path, err := config.DataPath()
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		opts.Path = path
	}

	st, err := store.Open(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	files, err := filetree.NewStore(ctx, st, cfg.User)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to load file tree: %w", err)
	}

	return &env{store: st, files: files, user: cfg.User}, nil
}

// newClient builds a GitHub client from the environment or stored token.
func (e *env) newClient(ctx context.Context) (*github.Client, error) {
	token, err := github.ResolveToken(ctx, e.store, e.user)
	if err != nil {
		return nil, err
	}
	return github.NewClient(token), nil
}

// selection loads the persisted repository/branch target.
func (e *env) selection(ctx context.Context) (store.Selection, error) {
	var sel store.Selection
	err := e.store.GetState(ctx, e.user, store.StateSelection, &sel)
	if errors.Is(err, store.ErrStateNotFound) || (err == nil && sel.RepoFullName == "") {
		return sel, fmt.Errorf("no repository selected: run 'travis portal add owner/repo' first")
	}
	return sel, err
}
