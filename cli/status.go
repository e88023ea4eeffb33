package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/colors"
	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/store"
	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/syncer"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the connection, last sync and modified files",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		sel, err := e.selection(ctx)
		if err != nil {
			fmt.Println("Repository: " + colors.Gray("none selected"))
		} else {
			fmt.Printf("Repository: %s @ %s\n", colors.Bold(sel.RepoFullName), sel.Branch)
		}

		var last syncer.SyncResult
		err = e.store.GetState(ctx, e.user, store.StateLastSync, &last)
		switch {
		case errors.Is(err, store.ErrStateNotFound):
			fmt.Println("Last sync:  " + colors.Gray("never"))
		case err != nil:
			return err
		default:
			fmt.Printf("Last sync:  %s (%d files, %d folders",
				last.Timestamp.Local().Format("2006-01-02 15:04:05"),
				last.FilesCreated, last.FoldersCreated)
			if len(last.FailedPaths) > 0 {
				fmt.Printf(", %s", colors.Red(fmt.Sprintf("%d failed", len(last.FailedPaths))))
			}
			fmt.Println(")")
		}

		modified := e.files.ListModified()
		if len(modified) == 0 {
			fmt.Println("Modified:   " + colors.Gray("none"))
			return nil
		}
		fmt.Printf("Modified:   %d files\n", len(modified))
		for _, f := range modified {
			fmt.Printf("  %s %s\n", colors.Yellow("*"), f.Path)
		}
		return nil
	},
}
