package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mirae/internal/adapters/driven/eventloop"
	"github.com/custodia-labs/mirae/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/mirae/internal/core/domain"
	"github.com/custodia-labs/mirae/internal/core/ports/driving"
)

var testEpoch = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// testStore wraps the in-memory store with injectable failures and call counts.
type testStore struct {
	*memory.EntityStore

	mu       sync.Mutex
	failures map[string]error
	calls    map[string]int
}

func newTestStore() *testStore {
	s := &testStore{
		EntityStore: memory.NewEntityStore(),
		failures:    make(map[string]error),
		calls:       make(map[string]int),
	}
	clock := testEpoch
	s.SetClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	})
	return s
}

func (s *testStore) failOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = err
}

func (s *testStore) clearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]error)
}

func (s *testStore) count(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *testStore) hit(method string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[method]++
	return s.failures[method]
}

func (s *testStore) ListPages(ctx context.Context, ownerID string) ([]domain.Page, error) {
	if err := s.hit("ListPages"); err != nil {
		return nil, err
	}
	return s.EntityStore.ListPages(ctx, ownerID)
}

func (s *testStore) ListFolders(ctx context.Context, ownerID string) ([]domain.Folder, error) {
	if err := s.hit("ListFolders"); err != nil {
		return nil, err
	}
	return s.EntityStore.ListFolders(ctx, ownerID)
}

func (s *testStore) CreatePage(ctx context.Context, ownerID string, input domain.NewPageInput) (*domain.Page, error) {
	if err := s.hit("CreatePage"); err != nil {
		return nil, err
	}
	return s.EntityStore.CreatePage(ctx, ownerID, input)
}

func (s *testStore) UpdatePage(ctx context.Context, id, ownerID string, fields domain.PageFields) (*domain.Page, error) {
	if err := s.hit("UpdatePage"); err != nil {
		return nil, err
	}
	return s.EntityStore.UpdatePage(ctx, id, ownerID, fields)
}

func (s *testStore) DeletePage(ctx context.Context, id, ownerID string) error {
	if err := s.hit("DeletePage"); err != nil {
		return err
	}
	return s.EntityStore.DeletePage(ctx, id, ownerID)
}

func (s *testStore) MovePage(ctx context.Context, pageID, ownerID string, folderID *string) (*domain.Page, error) {
	if err := s.hit("MovePage"); err != nil {
		return nil, err
	}
	return s.EntityStore.MovePage(ctx, pageID, ownerID, folderID)
}

func (s *testStore) SetFavorite(ctx context.Context, pageID, ownerID string, favorite bool) (*domain.Page, error) {
	if err := s.hit("SetFavorite"); err != nil {
		return nil, err
	}
	return s.EntityStore.SetFavorite(ctx, pageID, ownerID, favorite)
}

func (s *testStore) CreateFolder(ctx context.Context, ownerID, name string) (*domain.Folder, error) {
	if err := s.hit("CreateFolder"); err != nil {
		return nil, err
	}
	return s.EntityStore.CreateFolder(ctx, ownerID, name)
}

func (s *testStore) UpdateFolder(
	ctx context.Context, id, ownerID string, fields domain.FolderFields,
) (*domain.Folder, error) {
	if err := s.hit("UpdateFolder"); err != nil {
		return nil, err
	}
	return s.EntityStore.UpdateFolder(ctx, id, ownerID, fields)
}

func (s *testStore) DeleteFolder(ctx context.Context, id, ownerID string) error {
	if err := s.hit("DeleteFolder"); err != nil {
		return err
	}
	return s.EntityStore.DeleteFolder(ctx, id, ownerID)
}

// testLoop is a manual loop that can hold remote calls in flight.
type testLoop struct {
	*eventloop.Manual
	hold bool
	held []func()
}

func (l *testLoop) Go(fn func()) {
	if l.hold {
		l.held = append(l.held, fn)
		return
	}
	l.Manual.Go(fn)
}

// release runs every held remote call and drains the queue.
func (l *testLoop) release() {
	l.hold = false
	for len(l.held) > 0 {
		fn := l.held[0]
		l.held = l.held[1:]
		fn()
	}
	l.RunUntilIdle()
}

type harness struct {
	t       *testing.T
	loop    *testLoop
	store   *testStore
	device  *memory.ConfigStore
	tab     *memory.ConfigStore
	session *Session
	events  []driving.EventKind
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		loop:   &testLoop{Manual: eventloop.NewManual(testEpoch)},
		store:  newTestStore(),
		device: memory.NewConfigStore(),
		tab:    memory.NewConfigStore(),
	}
	h.start()
	return h
}

// start creates a fresh session over the harness stores, as a new tab would.
func (h *harness) start() {
	h.t.Helper()
	session, err := NewSession(context.Background(), SessionConfig{
		Store:  h.store,
		Loop:   h.loop,
		Device: h.device,
		Tab:    h.tab,
	})
	require.NoError(h.t, err)
	h.session = session
	h.events = nil
	session.Subscribe(func(ev driving.Event) { h.events = append(h.events, ev.Kind) })
}

func (h *harness) signIn(ownerID string) {
	h.t.Helper()
	h.session.IdentityLoading(false)
	h.session.OwnerChanged(ownerID)
	h.loop.RunUntilIdle()
}

// seedPage writes a page straight to the remote store.
func (h *harness) seedPage(ownerID, title, content string) domain.Page {
	h.t.Helper()
	page, err := h.store.EntityStore.CreatePage(context.Background(), ownerID, domain.NewPageInput{
		Title:   title,
		Content: content,
	})
	require.NoError(h.t, err)
	return *page
}

// seedFolder writes a folder straight to the remote store.
func (h *harness) seedFolder(ownerID, name string) domain.Folder {
	h.t.Helper()
	folder, err := h.store.EntityStore.CreateFolder(context.Background(), ownerID, name)
	require.NoError(h.t, err)
	return *folder
}

func (h *harness) remotePage(ownerID, id string) (domain.Page, bool) {
	pages, err := h.store.EntityStore.ListPages(context.Background(), ownerID)
	require.NoError(h.t, err)
	for _, p := range pages {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Page{}, false
}

func (h *harness) remotePageCount(ownerID string) int {
	pages, err := h.store.EntityStore.ListPages(context.Background(), ownerID)
	require.NoError(h.t, err)
	return len(pages)
}

func (h *harness) currentID() string {
	id, _ := h.session.Phase().CurrentPageID()
	return id
}

func pageIDs(pages []domain.Page) []string {
	ids := make([]string, len(pages))
	for i, p := range pages {
		ids[i] = p.ID
	}
	return ids
}
