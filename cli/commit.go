package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/colors"
	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/syncer"
)

var commitMessage string

func init() {
	commitCmd.Flags().StringVarP(&commitMessage, "message", "m", "", "commit message (required)")
	commitCmd.MarkFlagRequired("message")
}

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Commit modified files back to the repository",
	Long: `Push every file flagged as modified to the selected repository, one
commit per file. A file's modified flag clears only when its commit is
confirmed; failed files stay flagged for retry.`,
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

		c := syncer.NewCommitter(client, e.files, cfg.CommitCooldown())
		res, err := c.CommitModified(ctx, sel.RepoFullName, sel.Branch, commitMessage)
		if err != nil {
			return err
		}

		fmt.Printf("%s %d committed, %d failed\n", colors.Green("[OK]"), res.Succeeded, res.Failed)
		for _, p := range res.FailedPaths {
			fmt.Printf("  %s %s\n", colors.Red("[FAIL]"), p)
		}
		if res.Failed > 0 {
			return fmt.Errorf("%d files failed to commit", res.Failed)
		}
		return nil
	},
}
