package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/custodia-labs/mirae/internal/core/domain"
	"github.com/custodia-labs/mirae/internal/core/ports/driven"
)

// Ensure EntityStore implements the interface.
var _ driven.EntityStore = (*EntityStore)(nil)

// EntityStore is an in-memory implementation of driven.EntityStore.
type EntityStore struct {
	mu      sync.RWMutex
	pages   map[string]domain.Page
	folders map[string]domain.Folder
	now     func() time.Time
}

// NewEntityStore creates a new in-memory entity store.
func NewEntityStore() *EntityStore {
	return &EntityStore{
		pages:   make(map[string]domain.Page),
		folders: make(map[string]domain.Folder),
		now:     time.Now,
	}
}

// SetClock replaces the clock used for timestamps.
func (s *EntityStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// ListPages returns the owner's pages, most recently updated first.
func (s *EntityStore) ListPages(_ context.Context, ownerID string) ([]domain.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Page
	for _, page := range s.pages {
		if page.OwnerID == ownerID {
			result = append(result, page.Clone())
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

// ListFolders returns the owner's folders, oldest first.
func (s *EntityStore) ListFolders(_ context.Context, ownerID string) ([]domain.Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Folder
	for _, folder := range s.folders {
		if folder.OwnerID == ownerID {
			result = append(result, folder)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// CreatePage stores a new page with a durable id.
func (s *EntityStore) CreatePage(_ context.Context, ownerID string, input domain.NewPageInput) (*domain.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if input.FolderID != nil {
		if err := s.checkFolder(*input.FolderID, ownerID); err != nil {
			return nil, err
		}
	}

	now := s.now()
	page := domain.Page{
		ID:        ulid.Make().String(),
		OwnerID:   ownerID,
		Title:     input.Title,
		Content:   input.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if input.FolderID != nil {
		page.FolderID = domain.Ptr(*input.FolderID)
	}
	s.pages[page.ID] = page
	result := page.Clone()
	return &result, nil
}

// UpdatePage applies a partial update.
func (s *EntityStore) UpdatePage(_ context.Context, id, ownerID string, fields domain.PageFields) (*domain.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	page, err := s.getPage(id, ownerID)
	if err != nil {
		return nil, err
	}
	if fields.FolderID != nil && *fields.FolderID != "" {
		if err := s.checkFolder(*fields.FolderID, ownerID); err != nil {
			return nil, err
		}
	}

	page = fields.Apply(page)
	page.UpdatedAt = s.now()
	s.pages[id] = page
	result := page.Clone()
	return &result, nil
}

// DeletePage removes a page.
func (s *EntityStore) DeletePage(_ context.Context, id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getPage(id, ownerID); err != nil {
		return err
	}
	delete(s.pages, id)
	return nil
}

// MovePage files the page under folderID, or unfiles it.
func (s *EntityStore) MovePage(ctx context.Context, pageID, ownerID string, folderID *string) (*domain.Page, error) {
	target := ""
	if folderID != nil {
		target = *folderID
	}
	return s.UpdatePage(ctx, pageID, ownerID, domain.PageFields{FolderID: &target})
}

// SetFavorite marks or unmarks the page as a favourite.
func (s *EntityStore) SetFavorite(ctx context.Context, pageID, ownerID string, favorite bool) (*domain.Page, error) {
	return s.UpdatePage(ctx, pageID, ownerID, domain.PageFields{IsFavorite: &favorite})
}

// CreateFolder stores a new folder with a durable id.
func (s *EntityStore) CreateFolder(_ context.Context, ownerID, name string) (*domain.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	folder := domain.Folder{
		ID:        ulid.Make().String(),
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.folders[folder.ID] = folder
	return &folder, nil
}

// UpdateFolder renames a folder.
func (s *EntityStore) UpdateFolder(_ context.Context, id, ownerID string, fields domain.FolderFields) (*domain.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	folder, ok := s.folders[id]
	if !ok || folder.OwnerID != ownerID {
		return nil, fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
	}
	if fields.Name != nil {
		folder.Name = *fields.Name
	}
	folder.UpdatedAt = s.now()
	s.folders[id] = folder
	return &folder, nil
}

// DeleteFolder removes a folder and unfiles its pages.
func (s *EntityStore) DeleteFolder(_ context.Context, id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkFolder(id, ownerID); err != nil {
		return err
	}
	for pageID, page := range s.pages {
		if page.OwnerID == ownerID && page.InFolder(id) {
			page.FolderID = nil
			s.pages[pageID] = page
		}
	}
	delete(s.folders, id)
	return nil
}

// getPage returns a page owned by ownerID (caller must hold lock).
func (s *EntityStore) getPage(id, ownerID string) (domain.Page, error) {
	page, ok := s.pages[id]
	if !ok || page.OwnerID != ownerID {
		return domain.Page{}, fmt.Errorf("page %s: %w", id, domain.ErrNotFound)
	}
	return page, nil
}

// checkFolder verifies a folder exists for ownerID (caller must hold lock).
func (s *EntityStore) checkFolder(id, ownerID string) error {
	folder, ok := s.folders[id]
	if !ok || folder.OwnerID != ownerID {
		return fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
