package driven

import (
	"context"

	"github.com/custodia-labs/mirae/internal/core/domain"
)

// EntityStore is the remote store of pages and folders.
// Every call is scoped by owner. Stores assign durable ids.
// Retry and timeout policy belong to the implementation.
type EntityStore interface {
	// ListPages returns the owner's pages, most recently updated first.
	ListPages(ctx context.Context, ownerID string) ([]domain.Page, error)

	// ListFolders returns the owner's folders, oldest first.
	ListFolders(ctx context.Context, ownerID string) ([]domain.Folder, error)

	// CreatePage stores a new page and returns it with a durable id.
	CreatePage(ctx context.Context, ownerID string, input domain.NewPageInput) (*domain.Page, error)

	// UpdatePage applies a partial update and returns the stored page.
	// Returns domain.ErrNotFound if the page does not exist.
	UpdatePage(ctx context.Context, id, ownerID string, fields domain.PageFields) (*domain.Page, error)

	// DeletePage removes a page.
	DeletePage(ctx context.Context, id, ownerID string) error

	// MovePage files the page under folderID, or unfiles it when folderID is nil.
	MovePage(ctx context.Context, pageID, ownerID string, folderID *string) (*domain.Page, error)

	// SetFavorite marks or unmarks the page as a favourite.
	SetFavorite(ctx context.Context, pageID, ownerID string, favorite bool) (*domain.Page, error)

	// CreateFolder stores a new folder and returns it with a durable id.
	CreateFolder(ctx context.Context, ownerID, name string) (*domain.Folder, error)

	// UpdateFolder renames a folder.
	UpdateFolder(ctx context.Context, id, ownerID string, fields domain.FolderFields) (*domain.Folder, error)

	// DeleteFolder removes a folder and unfiles its pages. Pages are never deleted.
	DeleteFolder(ctx context.Context, id, ownerID string) error
}
