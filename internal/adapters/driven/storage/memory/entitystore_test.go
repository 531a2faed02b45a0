package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mirae/internal/core/domain"
)

func newTestEntityStore() (*EntityStore, *time.Time) {
	store := NewEntityStore()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time {
		now = now.Add(time.Second)
		return now
	})
	return store, &now
}

func TestNewEntityStore(t *testing.T) {
	store := NewEntityStore()
	require.NotNil(t, store)
	assert.NotNil(t, store.pages)
	assert.NotNil(t, store.folders)
}

func TestEntityStore_CreatePage(t *testing.T) {
	store, _ := newTestEntityStore()
	ctx := context.Background()

	page, err := store.CreatePage(ctx, "owner-1", domain.NewPageInput{Title: "Journal", Content: "<p>hi</p>"})

	require.NoError(t, err)
	assert.NotEmpty(t, page.ID)
	assert.False(t, domain.IsProvisional(page.ID))
	assert.Equal(t, "owner-1", page.OwnerID)
	assert.Equal(t, "Journal", page.Title)
	assert.False(t, page.IsFavorite)
	assert.False(t, page.CreatedAt.IsZero())
}

func TestEntityStore_CreatePage_UnknownFolder(t *testing.T) {
	store, _ := newTestEntityStore()

	_, err := store.CreatePage(context.Background(), "owner-1", domain.NewPageInput{FolderID: domain.Ptr("nope")})

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEntityStore_ListPages_ScopedAndOrdered(t *testing.T) {
	store, _ := newTestEntityStore()
	ctx := context.Background()

	first, err := store.CreatePage(ctx, "owner-1", domain.NewPageInput{Title: "first"})
	require.NoError(t, err)
	second, err := store.CreatePage(ctx, "owner-1", domain.NewPageInput{Title: "second"})
	require.NoError(t, err)
	_, err = store.CreatePage(ctx, "owner-2", domain.NewPageInput{Title: "other"})
	require.NoError(t, err)

	pages, err := store.ListPages(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, second.ID, pages[0].ID)
	assert.Equal(t, first.ID, pages[1].ID)

	// Touching the older page moves it to the front.
	_, err = store.UpdatePage(ctx, first.ID, "owner-1", domain.PageFields{Content: domain.Ptr("edited")})
	require.NoError(t, err)

	pages, err = store.ListPages(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, pages[0].ID)
}

func TestEntityStore_UpdatePage_WrongOwner(t *testing.T) {
	store, _ := newTestEntityStore()
	ctx := context.Background()

	page, err := store.CreatePage(ctx, "owner-1", domain.NewPageInput{Title: "mine"})
	require.NoError(t, err)

	_, err = store.UpdatePage(ctx, page.ID, "owner-2", domain.PageFields{Title: domain.Ptr("stolen")})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = store.DeletePage(ctx, page.ID, "owner-2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEntityStore_MoveAndFavorite(t *testing.T) {
	store, _ := newTestEntityStore()
	ctx := context.Background()

	folder, err := store.CreateFolder(ctx, "owner-1", "Work")
	require.NoError(t, err)
	page, err := store.CreatePage(ctx, "owner-1", domain.NewPageInput{Title: "todo"})
	require.NoError(t, err)

	moved, err := store.MovePage(ctx, page.ID, "owner-1", &folder.ID)
	require.NoError(t, err)
	assert.True(t, moved.InFolder(folder.ID))

	unfiled, err := store.MovePage(ctx, page.ID, "owner-1", nil)
	require.NoError(t, err)
	assert.Nil(t, unfiled.FolderID)

	fav, err := store.SetFavorite(ctx, page.ID, "owner-1", true)
	require.NoError(t, err)
	assert.True(t, fav.IsFavorite)
}

func TestEntityStore_DeleteFolder_UnfilesPages(t *testing.T) {
	store, _ := newTestEntityStore()
	ctx := context.Background()

	f1, err := store.CreateFolder(ctx, "owner-1", "F1")
	require.NoError(t, err)
	f2, err := store.CreateFolder(ctx, "owner-1", "F2")
	require.NoError(t, err)
	p, err := store.CreatePage(ctx, "owner-1", domain.NewPageInput{Title: "p", FolderID: &f1.ID})
	require.NoError(t, err)
	q, err := store.CreatePage(ctx, "owner-1", domain.NewPageInput{Title: "q", FolderID: &f2.ID})
	require.NoError(t, err)

	require.NoError(t, store.DeleteFolder(ctx, f1.ID, "owner-1"))

	pages, err := store.ListPages(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, pages, 2)
	for _, page := range pages {
		switch page.ID {
		case p.ID:
			assert.Nil(t, page.FolderID)
		case q.ID:
			assert.True(t, page.InFolder(f2.ID))
		}
	}

	folders, err := store.ListFolders(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, f2.ID, folders[0].ID)
}

func TestEntityStore_ListFolders_OldestFirst(t *testing.T) {
	store, _ := newTestEntityStore()
	ctx := context.Background()

	a, err := store.CreateFolder(ctx, "owner-1", "A")
	require.NoError(t, err)
	b, err := store.CreateFolder(ctx, "owner-1", "B")
	require.NoError(t, err)

	renamed, err := store.UpdateFolder(ctx, a.ID, "owner-1", domain.FolderFields{Name: domain.Ptr("A2")})
	require.NoError(t, err)
	assert.Equal(t, "A2", renamed.Name)

	folders, err := store.ListFolders(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, folders, 2)
	assert.Equal(t, a.ID, folders[0].ID)
	assert.Equal(t, b.ID, folders[1].ID)
}

func TestEntityStore_ReturnsCopies(t *testing.T) {
	store, _ := newTestEntityStore()
	ctx := context.Background()

	folder, err := store.CreateFolder(ctx, "owner-1", "F")
	require.NoError(t, err)
	page, err := store.CreatePage(ctx, "owner-1", domain.NewPageInput{FolderID: &folder.ID})
	require.NoError(t, err)

	*page.FolderID = "tampered"

	pages, err := store.ListPages(ctx, "owner-1")
	require.NoError(t, err)
	assert.True(t, pages[0].InFolder(folder.ID))
}
