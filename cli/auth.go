package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/colors"
	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/github"
	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/store"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the GitHub credential",
}

var authSetCmd = &cobra.Command{
	Use:   "set <token>",
	Short: "Store a GitHub personal access token",
	Long: `Validate a GitHub personal access token against the API and store it.
The GITHUB_TOKEN environment variable, when set, takes priority over the
stored token.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		token := strings.TrimSpace(args[0])
		if token == "" {
			return fmt.Errorf("token must not be empty")
		}

		// Validate before storing: a bad token is rejected here, not at
		// first use.
		user, err := github.NewClient(token).FetchUserInfo(ctx)
		if err != nil {
			var authErr *github.AuthError
			if errors.As(err, &authErr) {
				return fmt.Errorf("token rejected by GitHub: %s", authErr.Message)
			}
			return fmt.Errorf("failed to validate token: %w", err)
		}

		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.store.SaveToken(ctx, e.user, store.Token{Token: token, Username: user.Login}); err != nil {
			return fmt.Errorf("failed to store token: %w", err)
		}

		fmt.Printf("%s authenticated as %s\n", colors.Green("[OK]"), colors.Bold(user.Login))
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		_, username, err := e.store.GetToken(ctx, e.user)
		if errors.Is(err, store.ErrTokenNotFound) {
			fmt.Println("No token stored. Run 'travis auth set <token>' or set GITHUB_TOKEN.")
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Printf("Authenticated as %s\n", colors.Bold(username))
		return nil
	},
}

var authRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Delete the stored credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.store.DeleteToken(ctx, e.user); err != nil {
			return fmt.Errorf("failed to delete token: %w", err)
		}
		fmt.Printf("%s token removed\n", colors.Green("[OK]"))
		return nil
	},
}
