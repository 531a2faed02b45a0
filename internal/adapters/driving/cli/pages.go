package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mirae/internal/core/domain"
)

var (
	pagesJSON      bool
	pagesFolder    string
	pagesFavorites bool
	pageTitle      string
	pageContent    string
	favoriteOff    bool
)

var pagesCmd = &cobra.Command{
	Use:     "pages",
	Aliases: []string{"page"},
	Short:   "Manage pages",
	Long:    `List, create, edit, move, and delete pages.`,
}

var pagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pages, most recently updated first",
	Args:  cobra.NoArgs,
	RunE:  runPagesList,
}

var pagesSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search page titles",
	Long:  `Case-insensitive substring match on page titles. Untitled pages match "Untitled Page".`,
	Args:  cobra.ExactArgs(1),
	RunE:  runPagesSearch,
}

var pagesShowCmd = &cobra.Command{
	Use:   "show [page-id]",
	Short: "Print a page",
	Args:  cobra.ExactArgs(1),
	RunE:  runPagesShow,
}

var pagesNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a page",
	Args:  cobra.NoArgs,
	RunE:  runPagesNew,
}

var pagesEditCmd = &cobra.Command{
	Use:   "edit [page-id]",
	Short: "Edit a page's title or content",
	Args:  cobra.ExactArgs(1),
	RunE:  runPagesEdit,
}

var pagesRenameCmd = &cobra.Command{
	Use:   "rename [page-id] [title]",
	Short: "Rename a page",
	Args:  cobra.ExactArgs(2),
	RunE:  runPagesRename,
}

var pagesRemoveCmd = &cobra.Command{
	Use:     "rm [page-id]",
	Aliases: []string{"delete"},
	Short:   "Delete a page",
	Args:    cobra.ExactArgs(1),
	RunE:    runPagesRemove,
}

var pagesMoveCmd = &cobra.Command{
	Use:   "mv [page-id] [folder-id]",
	Short: "Move a page into a folder, or out of its folder when no folder is given",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runPagesMove,
}

var pagesFavoriteCmd = &cobra.Command{
	Use:   "fav [page-id]",
	Short: "Mark a page as a favourite",
	Args:  cobra.ExactArgs(1),
	RunE:  runPagesFavorite,
}

func init() {
	pagesListCmd.Flags().BoolVar(&pagesJSON, "json", false, "output as JSON")
	pagesListCmd.Flags().StringVar(&pagesFolder, "folder", "", "only pages in this folder")
	pagesListCmd.Flags().BoolVar(&pagesFavorites, "favorites", false, "only favourite pages")
	pagesSearchCmd.Flags().BoolVar(&pagesJSON, "json", false, "output as JSON")

	pagesNewCmd.Flags().StringVar(&pageTitle, "title", "", "page title")
	pagesNewCmd.Flags().StringVar(&pageContent, "content", "", "page content")
	pagesNewCmd.Flags().StringVar(&pagesFolder, "folder", "", "folder to create the page in")

	pagesEditCmd.Flags().StringVar(&pageTitle, "title", "", "new title")
	pagesEditCmd.Flags().StringVar(&pageContent, "content", "", "new content")

	pagesFavoriteCmd.Flags().BoolVar(&favoriteOff, "off", false, "remove the favourite mark")

	pagesCmd.AddCommand(pagesListCmd)
	pagesCmd.AddCommand(pagesSearchCmd)
	pagesCmd.AddCommand(pagesShowCmd)
	pagesCmd.AddCommand(pagesNewCmd)
	pagesCmd.AddCommand(pagesEditCmd)
	pagesCmd.AddCommand(pagesRenameCmd)
	pagesCmd.AddCommand(pagesRemoveCmd)
	pagesCmd.AddCommand(pagesMoveCmd)
	pagesCmd.AddCommand(pagesFavoriteCmd)
	rootCmd.AddCommand(pagesCmd)
}

func runPagesList(cmd *cobra.Command, _ []string) error {
	return withSession(cmd.Context(), func(o *oneShot) error {
		pages := o.session.Pages()
		if pagesFavorites {
			pages = o.session.Favorites()
		}
		if pagesFolder != "" {
			pages = filterFolder(pages, pagesFolder)
		}
		return outputPages(cmd, pages, o.timeLayout())
	})
}

func runPagesSearch(cmd *cobra.Command, args []string) error {
	return withSession(cmd.Context(), func(o *oneShot) error {
		return outputPages(cmd, o.session.SearchPages(args[0]), o.timeLayout())
	})
}

func runPagesShow(cmd *cobra.Command, args []string) error {
	return withSession(cmd.Context(), func(o *oneShot) error {
		page, ok := o.session.Page(args[0])
		if !ok {
			return fmt.Errorf("page %s: %w", args[0], domain.ErrNotFound)
		}

		cmd.Printf("Page: %s\n\n", page.ID)
		cmd.Printf("  Title:    %s\n", page.DisplayTitle())
		if page.FolderID != nil {
			cmd.Printf("  Folder:   %s\n", folderName(o, *page.FolderID))
		}
		if page.IsFavorite {
			cmd.Println("  Favorite: yes")
		}
		cmd.Printf("  Updated:  %s\n", page.UpdatedAt.Local().Format(o.timeLayout()))
		cmd.Println()
		cmd.Println(page.Content)
		return nil
	})
}

func runPagesNew(cmd *cobra.Command, _ []string) error {
	return withSession(cmd.Context(), func(o *oneShot) error {
		input := domain.NewPageInput{Title: pageTitle, Content: pageContent}
		if pagesFolder != "" {
			input.FolderID = &pagesFolder
		}
		page, err := o.session.NewPage(input)
		if err != nil {
			return fmt.Errorf("failed to create page: %w", err)
		}
		o.drain()

		id, ok := o.session.DurableID(page.ID)
		if !ok {
			return firstAlert(o.session)
		}
		cmd.Printf("Created page %s\n", id)
		return nil
	})
}

func runPagesEdit(cmd *cobra.Command, args []string) error {
	titleSet := cmd.Flags().Changed("title")
	contentSet := cmd.Flags().Changed("content")
	if !titleSet && !contentSet {
		return errors.New("nothing to change: pass --title or --content")
	}

	return withSession(cmd.Context(), func(o *oneShot) error {
		if err := o.session.OpenPage(args[0]); err != nil {
			return err
		}
		if titleSet {
			if err := o.session.EditTitle(pageTitle); err != nil {
				return err
			}
		}
		if contentSet {
			if err := o.session.EditContent(pageContent); err != nil {
				return err
			}
		}
		if err := o.session.Save(); err != nil {
			return err
		}
		o.drain()
		cmd.Printf("Saved page %s\n", args[0])
		return nil
	})
}

func runPagesRename(cmd *cobra.Command, args []string) error {
	return withSession(cmd.Context(), func(o *oneShot) error {
		if err := o.session.RenamePage(args[0], args[1]); err != nil {
			return err
		}
		cmd.Printf("Renamed page %s\n", args[0])
		return nil
	})
}

func runPagesRemove(cmd *cobra.Command, args []string) error {
	return withSession(cmd.Context(), func(o *oneShot) error {
		if err := o.session.DeletePage(args[0]); err != nil {
			return err
		}
		cmd.Printf("Deleted page %s\n", args[0])
		return nil
	})
}

func runPagesMove(cmd *cobra.Command, args []string) error {
	folderID := ""
	if len(args) == 2 {
		folderID = args[1]
	}

	return withSession(cmd.Context(), func(o *oneShot) error {
		if err := o.session.MovePage(args[0], folderID); err != nil {
			return err
		}
		if folderID == "" {
			cmd.Printf("Unfiled page %s\n", args[0])
		} else {
			cmd.Printf("Moved page %s to %s\n", args[0], folderName(o, folderID))
		}
		return nil
	})
}

func runPagesFavorite(cmd *cobra.Command, args []string) error {
	return withSession(cmd.Context(), func(o *oneShot) error {
		return o.session.SetFavorite(args[0], !favoriteOff)
	})
}

// pageJSON is the JSON shape of a listed page.
type pageJSON struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	FolderID   *string `json:"folderId,omitempty"`
	IsFavorite bool    `json:"isFavorite"`
	UpdatedAt  string  `json:"updatedAt"`
}

func outputPages(cmd *cobra.Command, pages []domain.Page, layout string) error {
	if pagesJSON {
		out := make([]pageJSON, len(pages))
		for i, p := range pages {
			out[i] = pageJSON{
				ID:         p.ID,
				Title:      p.Title,
				FolderID:   p.FolderID,
				IsFavorite: p.IsFavorite,
				UpdatedAt:  p.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			}
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal pages: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(pages) == 0 {
		cmd.Println("No pages found.")
		return nil
	}
	for i := range pages {
		star := " "
		if pages[i].IsFavorite {
			star = "*"
		}
		cmd.Printf("%s %s  %-40s  %s\n", star, pages[i].ID, pages[i].DisplayTitle(),
			pages[i].UpdatedAt.Local().Format(layout))
	}
	return nil
}

func filterFolder(pages []domain.Page, folderID string) []domain.Page {
	var out []domain.Page
	for _, p := range pages {
		if p.InFolder(folderID) {
			out = append(out, p)
		}
	}
	return out
}

func folderName(o *oneShot, id string) string {
	for _, f := range o.session.Folders() {
		if f.ID == id {
			return f.Name
		}
	}
	return id
}

// timeLayout returns the date and clock layout from preferences.
func (o *oneShot) timeLayout() string {
	format := domain.DefaultPreferences().TimeFormat
	if prefs, err := o.session.Preferences().Get(); err == nil {
		format = prefs.TimeFormat
	}
	return "2006-01-02 " + format.Layout()
}
