package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/colors"
)

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "List repositories visible to the credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		client, err := e.newClient(ctx)
		if err != nil {
			return err
		}

		repos, err := client.FetchRepositories(ctx)
		if err != nil {
			return err
		}
		if len(repos) == 0 {
			fmt.Println("No repositories visible to this token.")
			return nil
		}

		for _, r := range repos {
			visibility := ""
			if r.Private {
				visibility = colors.Gray(" (private)")
			}
			fmt.Printf("%s%s\n", r.FullName, visibility)
		}
		return nil
	},
}

var branchesCmd = &cobra.Command{
	Use:   "branches [owner/repo]",
	Short: "List branches of a repository",
	Long:  `List branches of the given repository, or of the selected one when omitted.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		repoFullName := ""
		if len(args) == 1 {
			repoFullName = args[0]
		} else {
			sel, err := e.selection(ctx)
			if err != nil {
				return err
			}
			repoFullName = sel.RepoFullName
		}

		client, err := e.newClient(ctx)
		if err != nil {
			return err
		}

		branches, err := client.FetchBranches(ctx, repoFullName)
		if err != nil {
			return err
		}

		for _, b := range branches {
			mark := ""
			if b.Protected {
				mark = colors.Yellow(" [protected]")
			}
			fmt.Printf("%s %s%s\n", b.Name, colors.Gray(shortSHA(b.Commit.SHA)), mark)
		}
		return nil
	},
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
