package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var foldersCmd = &cobra.Command{
	Use:     "folders",
	Aliases: []string{"folder"},
	Short:   "Manage folders",
	Long:    `List, create, rename, and delete folders. Deleting a folder keeps its pages.`,
}

var foldersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List folders, oldest first",
	Args:  cobra.NoArgs,
	RunE:  runFoldersList,
}

var foldersNewCmd = &cobra.Command{
	Use:   "new [name]",
	Short: "Create a folder",
	Args:  cobra.ExactArgs(1),
	RunE:  runFoldersNew,
}

var foldersRenameCmd = &cobra.Command{
	Use:   "rename [folder-id] [name]",
	Short: "Rename a folder",
	Args:  cobra.ExactArgs(2),
	RunE:  runFoldersRename,
}

var foldersRemoveCmd = &cobra.Command{
	Use:     "rm [folder-id]",
	Aliases: []string{"delete"},
	Short:   "Delete a folder and unfile its pages",
	Args:    cobra.ExactArgs(1),
	RunE:    runFoldersRemove,
}

func init() {
	foldersCmd.AddCommand(foldersListCmd)
	foldersCmd.AddCommand(foldersNewCmd)
	foldersCmd.AddCommand(foldersRenameCmd)
	foldersCmd.AddCommand(foldersRemoveCmd)
	rootCmd.AddCommand(foldersCmd)
}

func runFoldersList(cmd *cobra.Command, _ []string) error {
	return withSession(cmd.Context(), func(o *oneShot) error {
		folders := o.session.Folders()
		if len(folders) == 0 {
			cmd.Println("No folders found.")
			return nil
		}

		counts := make(map[string]int)
		for _, p := range o.session.Pages() {
			if p.FolderID != nil {
				counts[*p.FolderID]++
			}
		}
		for _, f := range folders {
			cmd.Printf("  %s  %-30s  %d page(s)\n", f.ID, f.Name, counts[f.ID])
		}
		return nil
	})
}

func runFoldersNew(cmd *cobra.Command, args []string) error {
	return withSession(cmd.Context(), func(o *oneShot) error {
		folder, err := o.session.NewFolder(args[0])
		if err != nil {
			return fmt.Errorf("failed to create folder: %w", err)
		}
		o.drain()

		id, ok := o.session.DurableID(folder.ID)
		if !ok {
			return firstAlert(o.session)
		}
		cmd.Printf("Created folder %s\n", id)
		return nil
	})
}

func runFoldersRename(cmd *cobra.Command, args []string) error {
	return withSession(cmd.Context(), func(o *oneShot) error {
		if err := o.session.RenameFolder(args[0], args[1]); err != nil {
			return err
		}
		cmd.Printf("Renamed folder %s\n", args[0])
		return nil
	})
}

func runFoldersRemove(cmd *cobra.Command, args []string) error {
	return withSession(cmd.Context(), func(o *oneShot) error {
		if err := o.session.DeleteFolder(args[0]); err != nil {
			return err
		}
		cmd.Printf("Deleted folder %s\n", args[0])
		return nil
	})
}
