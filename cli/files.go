package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/colors"
	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/filetree"
	"github.com/sabrinaorban/sabrina-and-travis-code-sub001/internal/fspath"
)

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Inspect and edit the virtual file tree",
}

var filesLsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List a folder in the virtual file tree",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		path := "/"
		if len(args) == 1 {
			path = fspath.Clean(args[0])
		}

		entry := e.files.GetByPath(path)
		if entry == nil {
			return fmt.Errorf("no such path: %s", path)
		}
		if entry.Type != filetree.TypeFolder {
			fmt.Println(formatEntry(entry))
			return nil
		}

		children := append([]*filetree.Entry(nil), entry.Children...)
		sort.Slice(children, func(i, j int) bool {
			// Folders first, then by name.
			if children[i].Type != children[j].Type {
				return children[i].Type == filetree.TypeFolder
			}
			return children[i].Name < children[j].Name
		})
		for _, c := range children {
			fmt.Println(formatEntry(c))
		}
		return nil
	},
}

func formatEntry(e *filetree.Entry) string {
	name := e.Name
	if e.Type == filetree.TypeFolder {
		return colors.Blue(name + "/")
	}
	if e.IsModified {
		return fmt.Sprintf("%s %s", name, colors.Yellow("*"))
	}
	return name
}

var filesCatCmd = &cobra.Command{
	Use:   "cat <path>",
	Short: "Print a file's content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		path := fspath.Clean(args[0])
		entry := e.files.GetByPath(path)
		if entry == nil {
			return fmt.Errorf("no such file: %s", path)
		}
		if entry.Type != filetree.TypeFile {
			return fmt.Errorf("%s is a folder", path)
		}
		if entry.Content == nil {
			return fmt.Errorf("%s has no content", path)
		}
		fmt.Print(*entry.Content)
		return nil
	},
}

var filesWriteCmd = &cobra.Command{
	Use:   "write <path> <content>",
	Short: "Write content to a file, flagging it as modified",
	Long: `Write content to a file in the virtual file tree, creating it and any
missing parent folders as needed. The file is flagged modified until the
next successful commit. Writing identical content is a no-op.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		path := fspath.Clean(args[0])
		content := args[1]

		entry := e.files.GetByPath(path)
		if entry != nil {
			if err := e.files.UpdateContent(ctx, entry.ID, content, filetree.OriginLocal); err != nil {
				return err
			}
			fmt.Printf("%s updated %s\n", colors.Green("[OK]"), path)
			return nil
		}

		for _, ancestor := range fspath.Ancestors(path) {
			if e.files.GetByPath(ancestor) == nil {
				if _, err := e.files.CreateFolder(ctx, fspath.Parent(ancestor), fspath.Name(ancestor)); err != nil {
					return fmt.Errorf("create folder %s: %w", ancestor, err)
				}
			}
		}
		if _, err := e.files.CreateFile(ctx, fspath.Parent(path), fspath.Name(path), content, filetree.OriginLocal); err != nil {
			return err
		}
		fmt.Printf("%s created %s\n", colors.Green("[OK]"), path)
		return nil
	},
}

var filesMkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		path := fspath.Clean(args[0])
		for _, p := range append(fspath.Ancestors(path), path) {
			if p == "/" || e.files.GetByPath(p) != nil {
				continue
			}
			if _, err := e.files.CreateFolder(ctx, fspath.Parent(p), fspath.Name(p)); err != nil {
				return fmt.Errorf("create folder %s: %w", p, err)
			}
		}
		fmt.Printf("%s created %s\n", colors.Green("[OK]"), path)
		return nil
	},
}

var filesRmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Delete a file or folder from the virtual tree",
	Long: `Delete an entry from the virtual file tree. Deleting a folder removes
its entire subtree. The remote repository is not touched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		path := fspath.Clean(args[0])
		if path == "/" {
			return fmt.Errorf("refusing to delete the root")
		}
		entry := e.files.GetByPath(path)
		if entry == nil {
			return fmt.Errorf("no such path: %s", path)
		}
		if err := e.files.DeleteEntry(ctx, entry.ID); err != nil {
			return err
		}
		fmt.Printf("%s deleted %s\n", colors.Green("[OK]"), path)
		return nil
	},
}
