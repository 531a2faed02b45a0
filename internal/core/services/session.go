package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/mirae/internal/core/domain"
	"github.com/custodia-labs/mirae/internal/core/ports/driven"
	"github.com/custodia-labs/mirae/internal/core/ports/driving"
	"github.com/custodia-labs/mirae/internal/logger"
)

var sessionLog = logger.Scope("session")

// Ensure Session implements the interface.
var _ driving.Session = (*Session)(nil)

// SessionConfig holds the ports a session runs on.
type SessionConfig struct {
	// Store is the remote entity store.
	Store driven.EntityStore

	// Loop runs every session callback.
	Loop driven.EventLoop

	// Device holds per-device preferences and the last opened page.
	Device driven.ConfigStore

	// Tab holds the navigation intent of this tab or process.
	Tab driven.ConfigStore

	// ResolveTimeout bounds startup navigation. Zero uses DefaultResolveTimeout.
	ResolveTimeout time.Duration
}

// Session wires the entity cache, mutation coordinator, autosave,
// navigator and guard into one document session.
// It must be created and used on cfg.Loop.
type Session struct {
	ctx   context.Context
	loop  driven.EventLoop
	prefs *PreferencesService

	cache    *EntityCache
	coord    *MutationCoordinator
	autosave *Autosave
	nav      *Navigator
	guard    *Guard

	ownerKnown bool
	ownerID    string
	loadSeq    uint64

	alerts       []driving.Alert
	listeners    map[int]func(driving.Event)
	nextListener int
	unsubscribe  func()
}

// NewSession creates a session waiting for identity.
func NewSession(ctx context.Context, cfg SessionConfig) (*Session, error) {
	if cfg.Store == nil || cfg.Loop == nil || cfg.Device == nil || cfg.Tab == nil {
		return nil, fmt.Errorf("session needs a store, loop, device and tab store: %w", domain.ErrInvalidInput)
	}

	prefs := NewPreferencesService(cfg.Device)
	settings := domain.DefaultPreferences().Autosave
	if p, err := prefs.Get(); err == nil {
		settings = p.Autosave
	}

	s := &Session{
		ctx:       ctx,
		loop:      cfg.Loop,
		prefs:     prefs,
		listeners: make(map[int]func(driving.Event)),
	}
	s.cache = NewEntityCache(cfg.Store)
	s.nav = NewNavigator(cfg.Loop, s.cache, prefs, cfg.Tab, cfg.ResolveTimeout)
	s.coord = NewMutationCoordinator(ctx, cfg.Store, s.cache, cfg.Loop, s.nav)
	s.autosave = NewAutosave(cfg.Loop, s.coord, settings)
	s.guard = NewGuard(s.cache, s.coord, s.autosave, s.nav)

	s.coord.OnAlert(s.raise)
	s.coord.OnTeardown(s.autosave.Teardown)
	s.coord.OnRepoint(s.autosave.Repoint)
	s.autosave.OnChange(func(domain.SaveState) { s.emit(driving.EventSaveStateChanged) })
	s.nav.OnChange(s.phaseChanged)
	s.unsubscribe = s.cache.Subscribe(func(ev CacheEvent) {
		s.nav.CacheChanged(ev)
		s.emit(driving.EventEntitiesChanged)
	})

	return s, nil
}

// Preferences returns the device preferences service.
func (s *Session) Preferences() *PreferencesService {
	return s.prefs
}

// IdentityLoading reports whether the identity provider is still resolving.
func (s *Session) IdentityLoading(loading bool) {
	s.nav.SetIdentityLoading(loading)
}

// OwnerChanged rescopes the session to ownerID. Entities of the previous
// owner are dropped and startup navigation runs again.
func (s *Session) OwnerChanged(ownerID string) {
	if s.ownerKnown && ownerID == s.ownerID {
		return
	}
	sessionLog.Debug("owner %q -> %q", s.ownerID, ownerID)
	s.ownerKnown = true
	s.ownerID = ownerID

	s.guard.Clear()
	s.autosave.Open("")
	s.coord.Reset()
	s.loadSeq++
	if ownerID == "" {
		s.cache.Clear()
	} else {
		s.cache.Reset(ownerID)
	}
	s.nav.SetOwner(ownerID)

	if ownerID != "" {
		s.load(ownerID)
	}
}

// Reload re-lists entities for the current owner.
func (s *Session) Reload() error {
	if s.ownerID == "" {
		return domain.ErrNoOwner
	}
	s.load(s.ownerID)
	return nil
}

func (s *Session) load(ownerID string) {
	s.loadSeq++
	seq := s.loadSeq
	sessionLog.Debug("loading entities for %s", ownerID)

	s.loop.Go(func() {
		pages, folders, err := s.cache.Fetch(s.ctx, ownerID)
		s.loop.Post(func() { s.finishLoad(seq, ownerID, pages, folders, err) })
	})
}

func (s *Session) finishLoad(seq uint64, ownerID string, pages []domain.Page, folders []domain.Folder, err error) {
	if seq != s.loadSeq || ownerID != s.ownerID {
		sessionLog.Debug("discarding stale load for %s", ownerID)
		return
	}
	if err != nil {
		s.raise(err)
		return
	}

	live := pages[:0:0]
	for _, p := range pages {
		if !s.coord.IsPendingDelete(p.ID) {
			live = append(live, p)
		}
	}
	liveFolders := folders[:0:0]
	for _, f := range folders {
		if !s.coord.IsPendingDelete(f.ID) {
			liveFolders = append(liveFolders, f)
		}
	}
	s.cache.Replace(ownerID, live, liveFolders)
}

// Phase returns what is being displayed.
func (s *Session) Phase() domain.SessionPhase {
	return s.nav.Phase()
}

// CurrentPage returns the open page with unsaved edits applied.
func (s *Session) CurrentPage() (domain.Page, bool) {
	id, ok := s.nav.Phase().CurrentPageID()
	if !ok {
		return domain.Page{}, false
	}
	return s.Page(id)
}

// Page returns a cached page with unsaved edits applied.
func (s *Session) Page(id string) (domain.Page, bool) {
	page, ok := s.cache.FindPage(id)
	if !ok {
		return domain.Page{}, false
	}
	return s.autosave.Overlay(page), true
}

// Pages returns cached pages in display order.
func (s *Session) Pages() []domain.Page {
	pages := s.cache.Pages()
	for i := range pages {
		pages[i] = s.autosave.Overlay(pages[i])
	}
	return pages
}

// Folders returns cached folders in display order.
func (s *Session) Folders() []domain.Folder {
	return s.cache.Folders()
}

// SaveState returns the autosave state of the open page.
func (s *Session) SaveState() domain.SaveState {
	return s.autosave.State()
}

// DurableID returns the store-assigned id a provisional id resolved to.
// Durable ids are returned unchanged.
func (s *Session) DurableID(id string) (string, bool) {
	return s.coord.DurableID(id)
}

// NewPage creates a page optimistically and opens it. A blank open page
// is deleted first. Unsaved edits of the open page are committed.
func (s *Session) NewPage(input domain.NewPageInput) (domain.Page, error) {
	if input.FolderID != nil && *input.FolderID != "" {
		if err := s.coord.checkFolder(input.FolderID); err != nil {
			return domain.Page{}, err
		}
	}
	s.guard.Clear()
	s.guard.DiscardBlank()
	page, _, err := s.coord.CreatePage(input)
	return page, err
}

// OpenPage navigates to a page.
func (s *Session) OpenPage(id string) error {
	return s.guard.Navigate(domain.PageIntent(id))
}

// GoHome navigates to the home view.
func (s *Session) GoHome() error {
	return s.guard.Navigate(domain.HomeIntent())
}

// NextPage opens the page after the current one, or the first page from Home.
func (s *Session) NextPage() error {
	return s.step(1)
}

// PrevPage opens the page before the current one, or the last page from Home.
func (s *Session) PrevPage() error {
	return s.step(-1)
}

func (s *Session) step(delta int) error {
	pages := s.cache.Pages()
	if len(pages) == 0 {
		return nil
	}

	target := -1
	if id, ok := s.nav.Phase().CurrentPageID(); ok {
		for i := range pages {
			if pages[i].ID == id {
				target = i + delta
				break
			}
		}
	} else if delta > 0 {
		target = 0
	} else {
		target = len(pages) - 1
	}

	if target < 0 || target >= len(pages) {
		return nil
	}
	return s.guard.Navigate(domain.PageIntent(pages[target].ID))
}

// PendingNavigation returns the held navigation target.
func (s *Session) PendingNavigation() (domain.NavigationIntent, bool) {
	return s.guard.Pending()
}

// ConfirmDiscard drops unsaved edits and completes the held navigation.
func (s *Session) ConfirmDiscard() error {
	return s.guard.ConfirmDiscard()
}

// CancelNavigation abandons the held navigation.
func (s *Session) CancelNavigation() error {
	return s.guard.Cancel()
}

// EditTitle records a title edit on the open page.
func (s *Session) EditTitle(title string) error {
	if err := s.requireOpen(); err != nil {
		return err
	}
	return s.autosave.EditTitle(title)
}

// EditContent records a content edit on the open page.
func (s *Session) EditContent(content string) error {
	if err := s.requireOpen(); err != nil {
		return err
	}
	return s.autosave.EditContent(content)
}

// Save commits pending edits of the open page now.
func (s *Session) Save() error {
	if err := s.requireOpen(); err != nil {
		return err
	}
	return s.autosave.Commit()
}

func (s *Session) requireOpen() error {
	id, ok := s.nav.Phase().CurrentPageID()
	if !ok || id != s.autosave.DocumentID() {
		return domain.ErrNoOpenPage
	}
	return nil
}

// DeletePage deletes a page optimistically.
func (s *Session) DeletePage(id string) error {
	_, err := s.coord.DeletePage(id)
	return err
}

// RenamePage sets a page title. The open page is renamed through autosave
// so the rename and pending edits commit together.
func (s *Session) RenamePage(id, title string) error {
	if id != "" && id == s.autosave.DocumentID() {
		if err := s.autosave.EditTitle(title); err != nil {
			return err
		}
		return s.autosave.Commit()
	}
	_, err := s.coord.UpdatePage(id, domain.PageFields{Title: &title})
	return err
}

// MovePage files a page under folderID, or unfiles it when folderID is "".
func (s *Session) MovePage(id, folderID string) error {
	_, err := s.coord.MovePage(id, folderID)
	return err
}

// SetFavorite marks or unmarks a page as a favourite.
func (s *Session) SetFavorite(id string, favorite bool) error {
	_, err := s.coord.SetFavorite(id, favorite)
	return err
}

// NewFolder creates a folder optimistically.
func (s *Session) NewFolder(name string) (domain.Folder, error) {
	folder, _, err := s.coord.CreateFolder(name)
	return folder, err
}

// RenameFolder renames a folder.
func (s *Session) RenameFolder(id, name string) error {
	_, err := s.coord.RenameFolder(id, name)
	return err
}

// DeleteFolder deletes a folder and unfiles its pages.
func (s *Session) DeleteFolder(id string) error {
	_, err := s.coord.DeleteFolder(id)
	return err
}

// SearchPages returns pages whose display title contains query, ignoring case.
// An empty query matches every page.
func (s *Session) SearchPages(query string) []domain.Page {
	query = strings.ToLower(strings.TrimSpace(query))
	pages := s.Pages()
	if query == "" {
		return pages
	}

	var matches []domain.Page
	for _, p := range pages {
		if strings.Contains(strings.ToLower(p.DisplayTitle()), query) {
			matches = append(matches, p)
		}
	}
	return matches
}

// Favorites returns favourite pages in display order.
func (s *Session) Favorites() []domain.Page {
	var favorites []domain.Page
	for _, p := range s.Pages() {
		if p.IsFavorite {
			favorites = append(favorites, p)
		}
	}
	return favorites
}

// SetAutosave toggles autosave for this session.
func (s *Session) SetAutosave(enabled bool) {
	settings := s.autosave.Settings()
	settings.Enabled = enabled
	s.autosave.SetSettings(settings)
}

// SetAutosaveDelays changes the debounce delays for this session.
func (s *Session) SetAutosaveDelays(title, content time.Duration) {
	settings := s.autosave.Settings()
	if title > 0 {
		settings.TitleDelay = title
	}
	if content > 0 {
		settings.ContentDelay = content
	}
	s.autosave.SetSettings(settings)
}

// Alerts returns alerts not yet dismissed, oldest first.
func (s *Session) Alerts() []driving.Alert {
	out := make([]driving.Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

// DismissAlerts clears all alerts.
func (s *Session) DismissAlerts() {
	s.alerts = nil
}

// Subscribe registers fn for session change notifications.
func (s *Session) Subscribe(fn func(driving.Event)) (unsubscribe func()) {
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	return func() { delete(s.listeners, id) }
}

// Close commits pending edits of the open page and stops listening.
func (s *Session) Close() {
	s.autosave.Open("")
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

func (s *Session) phaseChanged(phase domain.SessionPhase) {
	id, _ := phase.CurrentPageID()
	s.autosave.Open(id)
	s.emit(driving.EventPhaseChanged)
}

func (s *Session) raise(err error) {
	retryable := errors.Is(err, domain.ErrLoadFailed) || errors.Is(err, domain.ErrUpdateFailed)
	s.alerts = append(s.alerts, driving.Alert{Err: err, At: s.loop.Now(), Retryable: retryable})
	sessionLog.Debug("alert: %v", err)
	s.emit(driving.EventAlert)
}

func (s *Session) emit(kind driving.EventKind) {
	for i := 0; i < s.nextListener; i++ {
		if fn, ok := s.listeners[i]; ok {
			fn(driving.Event{Kind: kind})
		}
	}
}
