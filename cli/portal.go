package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/colors"
	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/github"
	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/store"
)

var portalCmd = &cobra.Command{
	Use:   "portal",
	Short: "Manage the repository connection",
	Long: `Select which GitHub repository and branch the sync and commit engines
operate on. The selection is remembered across sessions and re-validated
against the live repository list every time it is set.`,
}

var portalBranch string

func init() {
	portalAddCmd.Flags().StringVarP(&portalBranch, "branch", "b", "", "branch to track (defaults to the repository's default branch)")
}

var portalAddCmd = &cobra.Command{
	Use:   "add <owner/repo>",
	Short: "Select a GitHub repository",
	Long: `Select the GitHub repository to sync and commit against.
Examples:
  travis portal add myuser/myproject
  travis portal add myuser/myproject --branch develop`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		repoArg := strings.TrimPrefix(args[0], "github:")
		parts := strings.Split(repoArg, "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return fmt.Errorf("invalid repository format. Use: owner/repo")
		}

		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		client, err := e.newClient(ctx)
		if err != nil {
			return err
		}

		repo, err := findRepository(ctx, client, repoArg)
		if err != nil {
			return err
		}

		branch := portalBranch
		if branch == "" {
			branch = repo.DefaultBranch
		}
		if err := validateBranch(ctx, client, repo.FullName, branch); err != nil {
			return err
		}

		sel := store.Selection{RepoFullName: repo.FullName, Branch: branch}
		if err := e.store.PutState(ctx, e.user, store.StateSelection, sel); err != nil {
			return fmt.Errorf("failed to save selection: %w", err)
		}

		fmt.Printf("%s tracking %s @ %s\n", colors.Green("[OK]"), colors.Bold(repo.FullName), branch)
		return nil
	},
}

var portalListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the current repository connection",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		sel, err := e.selection(ctx)
		if err != nil {
			fmt.Println("No repository connection configured.")
			fmt.Println("Use 'travis portal add owner/repo' to add one.")
			return nil
		}

		fmt.Println("Repository Connection:")
		fmt.Printf("  Repository: %s\n", colors.Bold(sel.RepoFullName))
		fmt.Printf("  Branch:     %s\n", sel.Branch)
		return nil
	},
}

var portalRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the repository connection",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.store.DeleteState(ctx, e.user, store.StateSelection); err != nil {
			return fmt.Errorf("failed to remove selection: %w", err)
		}
		fmt.Printf("%s repository connection removed\n", colors.Green("[OK]"))
		return nil
	},
}

// findRepository resolves fullName against the credential's visible
// repositories. A stale or mistyped name fails here instead of surfacing
// as a confusing 404 later.
func findRepository(ctx context.Context, client *github.Client, fullName string) (*github.Repository, error) {
	repos, err := client.FetchRepositories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	for i := range repos {
		if strings.EqualFold(repos[i].FullName, fullName) {
			return &repos[i], nil
		}
	}
	return nil, fmt.Errorf("repository %s not found among the %d repositories visible to this token", fullName, len(repos))
}

func validateBranch(ctx context.Context, client *github.Client, repoFullName, branch string) error {
	branches, err := client.FetchBranches(ctx, repoFullName)
	if err != nil {
		return fmt.Errorf("failed to list branches: %w", err)
	}
	for _, b := range branches {
		if b.Name == branch {
			return nil
		}
	}
	return fmt.Errorf("branch %s not found in %s", branch, repoFullName)
}
