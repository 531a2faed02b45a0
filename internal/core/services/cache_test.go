package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mirae/internal/core/domain"
)

func newLoadedCache(t *testing.T) (*EntityCache, *testStore) {
	t.Helper()
	store := newTestStore()
	cache := NewEntityCache(store)
	_, _, err := cache.Load(context.Background(), "alice")
	require.NoError(t, err)
	return cache, store
}

func TestEntityCache_Load(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()
	first, _ := store.EntityStore.CreatePage(ctx, "alice", domain.NewPageInput{Title: "first"})
	second, _ := store.EntityStore.CreatePage(ctx, "alice", domain.NewPageInput{Title: "second"})
	_, _ = store.EntityStore.CreatePage(ctx, "bob", domain.NewPageInput{Title: "not mine"})
	folder, _ := store.EntityStore.CreateFolder(ctx, "alice", "Work")

	cache := NewEntityCache(store)
	pages, folders, err := cache.Load(ctx, "alice")

	require.NoError(t, err)
	assert.Equal(t, []string{second.ID, first.ID}, pageIDs(pages))
	require.Len(t, folders, 1)
	assert.Equal(t, folder.ID, folders[0].ID)
	assert.True(t, cache.Loaded("alice"))
	assert.False(t, cache.Loaded("bob"))
}

func TestEntityCache_Load_NoOwner(t *testing.T) {
	cache := NewEntityCache(newTestStore())

	_, _, err := cache.Load(context.Background(), "")

	assert.ErrorIs(t, err, domain.ErrNoOwner)
}

func TestEntityCache_Load_FailureKeepsContents(t *testing.T) {
	cache, store := newLoadedCache(t)
	cache.UpsertPage(domain.Page{ID: "p1", OwnerID: "alice", Title: "kept"})

	store.failOn("ListPages", assert.AnError)
	_, _, err := cache.Load(context.Background(), "alice")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrLoadFailed)
	assert.ErrorIs(t, err, assert.AnError)
	page, ok := cache.FindPage("p1")
	require.True(t, ok)
	assert.Equal(t, "kept", page.Title)
}

func TestEntityCache_Load_FolderFailure(t *testing.T) {
	store := newTestStore()
	store.failOn("ListFolders", assert.AnError)
	cache := NewEntityCache(store)

	_, _, err := cache.Load(context.Background(), "alice")

	assert.ErrorIs(t, err, domain.ErrLoadFailed)
	assert.False(t, cache.Loaded("alice"))
}

func TestEntityCache_UpsertOrdering(t *testing.T) {
	cache, _ := newLoadedCache(t)

	cache.UpsertPage(domain.Page{ID: "p1"})
	cache.UpsertPage(domain.Page{ID: "p2"})
	cache.UpsertFolder(domain.Folder{ID: "f1"})
	cache.UpsertFolder(domain.Folder{ID: "f2"})

	assert.Equal(t, []string{"p2", "p1"}, pageIDs(cache.Pages()))
	folders := cache.Folders()
	require.Len(t, folders, 2)
	assert.Equal(t, "f1", folders[0].ID)
	assert.Equal(t, "f2", folders[1].ID)

	cache.UpsertPage(domain.Page{ID: "p1", Title: "edited"})
	assert.Equal(t, []string{"p2", "p1"}, pageIDs(cache.Pages()), "update keeps position")
}

func TestEntityCache_UpsertPage_UnknownFolderIsUnfiled(t *testing.T) {
	cache, _ := newLoadedCache(t)

	cache.UpsertPage(domain.Page{ID: "p1", FolderID: domain.Ptr("ghost")})

	page, _ := cache.FindPage("p1")
	assert.Nil(t, page.FolderID)
}

func TestEntityCache_FindPage_ReturnsCopy(t *testing.T) {
	cache, _ := newLoadedCache(t)
	cache.UpsertFolder(domain.Folder{ID: "f1"})
	cache.UpsertPage(domain.Page{ID: "p1", FolderID: domain.Ptr("f1")})

	page, _ := cache.FindPage("p1")
	*page.FolderID = "changed"

	again, _ := cache.FindPage("p1")
	assert.Equal(t, "f1", *again.FolderID)
}

func TestEntityCache_ReplacePageID(t *testing.T) {
	cache, _ := newLoadedCache(t)
	cache.UpsertPage(domain.Page{ID: "a"})
	cache.UpsertPage(domain.Page{ID: "tmp-1", Title: "draft"})
	cache.UpsertPage(domain.Page{ID: "b"})

	ok := cache.ReplacePageID("tmp-1", domain.Page{ID: "durable", Title: "draft"})

	require.True(t, ok)
	assert.Equal(t, []string{"b", "durable", "a"}, pageIDs(cache.Pages()))
	_, found := cache.FindPage("tmp-1")
	assert.False(t, found)
	assert.False(t, cache.ReplacePageID("missing", domain.Page{ID: "x"}))
}

func TestEntityCache_ReplaceFolderID_RepointsPages(t *testing.T) {
	cache, _ := newLoadedCache(t)
	cache.UpsertFolder(domain.Folder{ID: "tmp-f"})
	cache.UpsertPage(domain.Page{ID: "p1", FolderID: domain.Ptr("tmp-f")})

	require.True(t, cache.ReplaceFolderID("tmp-f", domain.Folder{ID: "f1"}))

	page, _ := cache.FindPage("p1")
	require.NotNil(t, page.FolderID)
	assert.Equal(t, "f1", *page.FolderID)
}

func TestEntityCache_RemoveFolder_UnfilesPages(t *testing.T) {
	cache, _ := newLoadedCache(t)
	cache.UpsertFolder(domain.Folder{ID: "f1"})
	cache.UpsertPage(domain.Page{ID: "p1", FolderID: domain.Ptr("f1")})
	cache.UpsertPage(domain.Page{ID: "p2"})

	unfiled, ok := cache.RemoveFolder("f1")

	require.True(t, ok)
	assert.Equal(t, []string{"p1"}, unfiled)
	page, found := cache.FindPage("p1")
	require.True(t, found, "pages survive their folder")
	assert.Nil(t, page.FolderID)

	_, ok = cache.RemoveFolder("f1")
	assert.False(t, ok)
}

func TestEntityCache_Replace_KeepsProvisionalEntities(t *testing.T) {
	cache, _ := newLoadedCache(t)
	cache.UpsertFolder(domain.Folder{ID: "tmp-f"})
	cache.UpsertPage(domain.Page{ID: "tmp-p", FolderID: domain.Ptr("tmp-f")})
	cache.UpsertPage(domain.Page{ID: "old"})

	cache.Replace("alice", []domain.Page{{ID: "remote"}}, []domain.Folder{{ID: "rf"}})

	assert.Equal(t, []string{"tmp-p", "remote"}, pageIDs(cache.Pages()))
	folders := cache.Folders()
	require.Len(t, folders, 2)
	assert.Equal(t, "tmp-f", folders[1].ID)
	page, _ := cache.FindPage("tmp-p")
	require.NotNil(t, page.FolderID)
}

func TestEntityCache_Replace_NewOwnerDropsEverything(t *testing.T) {
	cache, _ := newLoadedCache(t)
	cache.UpsertPage(domain.Page{ID: "tmp-p"})
	gen := cache.Generation()

	cache.Replace("bob", []domain.Page{{ID: "b1"}}, nil)

	assert.Equal(t, []string{"b1"}, pageIDs(cache.Pages()))
	assert.NotEqual(t, gen, cache.Generation())
	assert.Equal(t, "bob", cache.OwnerID())
}

func TestEntityCache_ResetAndClear(t *testing.T) {
	cache, _ := newLoadedCache(t)
	cache.UpsertPage(domain.Page{ID: "p1"})
	gen := cache.Generation()

	cache.Reset("bob")

	assert.Empty(t, cache.Pages())
	assert.Equal(t, "bob", cache.OwnerID())
	assert.False(t, cache.Loaded("bob"))
	assert.Greater(t, cache.Generation(), gen)

	cache.Clear()
	assert.Equal(t, "", cache.OwnerID())
	assert.False(t, cache.Loaded(""))
}

func TestEntityCache_Subscribe(t *testing.T) {
	cache, _ := newLoadedCache(t)
	var events []CacheEvent
	unsubscribe := cache.Subscribe(func(ev CacheEvent) { events = append(events, ev) })

	cache.UpsertPage(domain.Page{ID: "tmp-1"})
	cache.ReplacePageID("tmp-1", domain.Page{ID: "p1"})
	cache.RemovePage("p1")
	unsubscribe()
	cache.UpsertPage(domain.Page{ID: "p2"})

	require.Len(t, events, 3)
	assert.Equal(t, CacheUpserted, events[0].Kind)
	assert.Equal(t, domain.KindPage, events[0].EntityKind)
	assert.Equal(t, CacheReplaced, events[1].Kind)
	assert.Equal(t, "tmp-1", events[1].PreviousID)
	assert.Equal(t, "p1", events[1].ID)
	assert.Equal(t, CacheRemoved, events[2].Kind)
}
