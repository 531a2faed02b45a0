package cli

import (
	"github.com/spf13/cobra"
)

var openCmd = &cobra.Command{
	Use:   "open [page-id]",
	Short: "Open a page",
	Long:  `Opens a page and records it as the last opened page on this device.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runOpen,
}

var homeCmd = &cobra.Command{
	Use:   "home",
	Short: "Go to the home view",
	Args:  cobra.NoArgs,
	RunE:  runHome,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what a new session would open",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(homeCmd)
	rootCmd.AddCommand(statusCmd)
}

func runOpen(cmd *cobra.Command, args []string) error {
	return withSession(cmd.Context(), func(o *oneShot) error {
		if err := o.session.OpenPage(args[0]); err != nil {
			return err
		}
		page, _ := o.session.CurrentPage()
		cmd.Printf("Opened %s (%s)\n", page.DisplayTitle(), page.ID)
		return nil
	})
}

func runHome(cmd *cobra.Command, _ []string) error {
	return withSession(cmd.Context(), func(o *oneShot) error {
		if err := o.session.GoHome(); err != nil {
			return err
		}
		cmd.Println("Home")
		return nil
	})
}

func runStatus(cmd *cobra.Command, _ []string) error {
	owner, err := resolveOwner()
	if err != nil {
		return err
	}

	return withSession(cmd.Context(), func(o *oneShot) error {
		cmd.Printf("Owner:   %s\n", owner)
		cmd.Printf("Pages:   %d\n", len(o.session.Pages()))
		cmd.Printf("Folders: %d\n", len(o.session.Folders()))

		if page, ok := o.session.CurrentPage(); ok {
			cmd.Printf("Open:    %s (%s)\n", page.DisplayTitle(), page.ID)
		} else {
			cmd.Printf("Open:    %s\n", o.session.Phase())
		}

		if prefs, err := o.session.Preferences().Get(); err == nil {
			cmd.Printf("Startup: %s\n", prefs.Startup.Description())
		}
		return nil
	})
}
