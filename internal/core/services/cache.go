package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/mirae/internal/core/domain"
	"github.com/custodia-labs/mirae/internal/core/ports/driven"
	"github.com/custodia-labs/mirae/internal/logger"
)

var cacheLog = logger.Scope("cache")

// CacheEventKind identifies a change to the entity cache.
type CacheEventKind int

// Cache events.
const (
	// CacheLoaded fires when contents are replaced by a remote listing.
	CacheLoaded CacheEventKind = iota
	// CacheCleared fires when the owner signs out or changes.
	CacheCleared
	// CacheUpserted fires when an entity is added or changed locally.
	CacheUpserted
	// CacheRemoved fires when an entity is removed locally.
	CacheRemoved
	// CacheReplaced fires when a provisional id is swapped for a durable one.
	CacheReplaced
)

// CacheEvent describes a change to the entity cache.
type CacheEvent struct {
	Kind CacheEventKind

	// EntityKind and ID identify the changed entity. Empty for CacheLoaded and CacheCleared.
	EntityKind domain.EntityKind
	ID         string

	// PreviousID is the provisional id for CacheReplaced.
	PreviousID string
}

// EntityCache holds the client-side copy of the owner's pages and folders.
// It is the only source UI code reads entities from.
//
// Pages are kept most recently updated first and new pages go to the
// front. Folders are kept oldest first and new folders go to the back.
// Every method runs on the event loop except Fetch.
type EntityCache struct {
	store driven.EntityStore

	ownerID    string
	loaded     bool
	generation uint64

	pages   []domain.Page
	folders []domain.Folder

	listeners    map[int]func(CacheEvent)
	nextListener int
}

// NewEntityCache creates an empty cache backed by store.
func NewEntityCache(store driven.EntityStore) *EntityCache {
	return &EntityCache{
		store:     store,
		listeners: make(map[int]func(CacheEvent)),
	}
}

// OwnerID returns the owner the cache is scoped to, or "".
func (c *EntityCache) OwnerID() string {
	return c.ownerID
}

// Loaded returns true once a listing for ownerID has been applied.
func (c *EntityCache) Loaded(ownerID string) bool {
	return c.loaded && ownerID != "" && c.ownerID == ownerID
}

// Generation changes every time the cache is cleared or rescoped.
// Remote responses captured under an older generation are stale.
func (c *EntityCache) Generation() uint64 {
	return c.generation
}

// Fetch lists the owner's entities without touching the cache.
// It blocks and is safe to call off the event loop.
func (c *EntityCache) Fetch(ctx context.Context, ownerID string) ([]domain.Page, []domain.Folder, error) {
	pages, err := c.store.ListPages(ctx, ownerID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: list pages: %w", domain.ErrLoadFailed, err)
	}
	folders, err := c.store.ListFolders(ctx, ownerID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: list folders: %w", domain.ErrLoadFailed, err)
	}
	return pages, folders, nil
}

// Load fetches and applies the owner's entities, blocking the caller.
// On failure the cache keeps its prior contents.
func (c *EntityCache) Load(ctx context.Context, ownerID string) ([]domain.Page, []domain.Folder, error) {
	if ownerID == "" {
		return nil, nil, domain.ErrNoOwner
	}
	pages, folders, err := c.Fetch(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}
	c.Replace(ownerID, pages, folders)
	return c.Pages(), c.Folders(), nil
}

// Reset clears the cache and scopes it to ownerID, not yet loaded.
func (c *EntityCache) Reset(ownerID string) {
	c.ownerID = ownerID
	c.loaded = false
	c.generation++
	c.pages = nil
	c.folders = nil
	c.emit(CacheEvent{Kind: CacheCleared})
}

// Clear empties the cache on sign-out.
func (c *EntityCache) Clear() {
	c.Reset("")
}

// Replace swaps the contents wholesale with a remote listing.
// Provisional entities of the same owner survive the swap, since their
// creates have not resolved yet.
func (c *EntityCache) Replace(ownerID string, pages []domain.Page, folders []domain.Folder) {
	var keptPages []domain.Page
	var keptFolders []domain.Folder
	if ownerID == c.ownerID {
		for _, p := range c.pages {
			if domain.IsProvisional(p.ID) {
				keptPages = append(keptPages, p)
			}
		}
		for _, f := range c.folders {
			if domain.IsProvisional(f.ID) {
				keptFolders = append(keptFolders, f)
			}
		}
	} else {
		c.generation++
	}

	c.ownerID = ownerID
	c.loaded = true

	c.folders = make([]domain.Folder, 0, len(folders)+len(keptFolders))
	c.folders = append(c.folders, folders...)
	c.folders = append(c.folders, keptFolders...)

	c.pages = make([]domain.Page, 0, len(pages)+len(keptPages))
	c.pages = append(c.pages, keptPages...)
	for _, p := range pages {
		c.pages = append(c.pages, p.Clone())
	}
	for i := range c.pages {
		c.pages[i] = c.detachMissingFolder(c.pages[i])
	}

	cacheLog.Debug("loaded %d pages, %d folders for %s", len(c.pages), len(c.folders), ownerID)
	c.emit(CacheEvent{Kind: CacheLoaded})
}

// UpsertPage adds p at the front, or updates it in place.
func (c *EntityCache) UpsertPage(p domain.Page) {
	p = c.detachMissingFolder(p.Clone())
	if i := c.pageIndex(p.ID); i >= 0 {
		c.pages[i] = p
	} else {
		c.pages = append([]domain.Page{p}, c.pages...)
	}
	c.emit(CacheEvent{Kind: CacheUpserted, EntityKind: domain.KindPage, ID: p.ID})
}

// UpsertFolder adds f at the back, or updates it in place.
func (c *EntityCache) UpsertFolder(f domain.Folder) {
	if i := c.folderIndex(f.ID); i >= 0 {
		c.folders[i] = f
	} else {
		c.folders = append(c.folders, f)
	}
	c.emit(CacheEvent{Kind: CacheUpserted, EntityKind: domain.KindFolder, ID: f.ID})
}

// ReplacePageID swaps the page stored under oldID for p, keeping its position.
// Returns false if oldID is not cached.
func (c *EntityCache) ReplacePageID(oldID string, p domain.Page) bool {
	i := c.pageIndex(oldID)
	if i < 0 {
		return false
	}
	c.pages[i] = c.detachMissingFolder(p.Clone())
	c.emit(CacheEvent{Kind: CacheReplaced, EntityKind: domain.KindPage, ID: p.ID, PreviousID: oldID})
	return true
}

// ReplaceFolderID swaps the folder stored under oldID for f and repoints
// pages filed under oldID. Returns false if oldID is not cached.
func (c *EntityCache) ReplaceFolderID(oldID string, f domain.Folder) bool {
	i := c.folderIndex(oldID)
	if i < 0 {
		return false
	}
	c.folders[i] = f
	for j := range c.pages {
		if c.pages[j].InFolder(oldID) {
			id := f.ID
			c.pages[j].FolderID = &id
		}
	}
	c.emit(CacheEvent{Kind: CacheReplaced, EntityKind: domain.KindFolder, ID: f.ID, PreviousID: oldID})
	return true
}

// RemovePage drops a page. Returns false if it was not cached.
func (c *EntityCache) RemovePage(id string) bool {
	i := c.pageIndex(id)
	if i < 0 {
		return false
	}
	c.pages = append(c.pages[:i], c.pages[i+1:]...)
	c.emit(CacheEvent{Kind: CacheRemoved, EntityKind: domain.KindPage, ID: id})
	return true
}

// RemoveFolder drops a folder and unfiles its pages.
// Returns the ids of the unfiled pages, or false if the folder was not cached.
func (c *EntityCache) RemoveFolder(id string) ([]string, bool) {
	i := c.folderIndex(id)
	if i < 0 {
		return nil, false
	}
	c.folders = append(c.folders[:i], c.folders[i+1:]...)

	var unfiled []string
	for j := range c.pages {
		if c.pages[j].InFolder(id) {
			c.pages[j].FolderID = nil
			unfiled = append(unfiled, c.pages[j].ID)
		}
	}
	c.emit(CacheEvent{Kind: CacheRemoved, EntityKind: domain.KindFolder, ID: id})
	return unfiled, true
}

// FindPage returns a copy of the cached page.
func (c *EntityCache) FindPage(id string) (domain.Page, bool) {
	if i := c.pageIndex(id); i >= 0 {
		return c.pages[i].Clone(), true
	}
	return domain.Page{}, false
}

// FindFolder returns the cached folder.
func (c *EntityCache) FindFolder(id string) (domain.Folder, bool) {
	if i := c.folderIndex(id); i >= 0 {
		return c.folders[i], true
	}
	return domain.Folder{}, false
}

// Pages returns a copy of the cached pages in display order.
func (c *EntityCache) Pages() []domain.Page {
	out := make([]domain.Page, len(c.pages))
	for i, p := range c.pages {
		out[i] = p.Clone()
	}
	return out
}

// Folders returns a copy of the cached folders in display order.
func (c *EntityCache) Folders() []domain.Folder {
	out := make([]domain.Folder, len(c.folders))
	copy(out, c.folders)
	return out
}

// Subscribe registers fn for cache changes.
func (c *EntityCache) Subscribe(fn func(CacheEvent)) (unsubscribe func()) {
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	return func() { delete(c.listeners, id) }
}

func (c *EntityCache) emit(ev CacheEvent) {
	for i := 0; i < c.nextListener; i++ {
		if fn, ok := c.listeners[i]; ok {
			fn(ev)
		}
	}
}

func (c *EntityCache) pageIndex(id string) int {
	for i := range c.pages {
		if c.pages[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *EntityCache) folderIndex(id string) int {
	for i := range c.folders {
		if c.folders[i].ID == id {
			return i
		}
	}
	return -1
}

// detachMissingFolder unfiles p if its folder is not cached.
func (c *EntityCache) detachMissingFolder(p domain.Page) domain.Page {
	if p.FolderID != nil && c.folderIndex(*p.FolderID) < 0 {
		cacheLog.Debug("page %s references unknown folder %s, unfiling", p.ID, *p.FolderID)
		p.FolderID = nil
	}
	return p
}
