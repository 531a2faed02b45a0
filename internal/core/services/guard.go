package services

import (
	"fmt"

	"github.com/custodia-labs/mirae/internal/core/domain"
	"github.com/custodia-labs/mirae/internal/logger"
)

var guardLog = logger.Scope("guard")

// Guard intercepts navigation away from the open page.
//
// A blank page is deleted silently. Unsaved edits hold the navigation
// until the user confirms discarding them or cancels. A save already in
// flight does not hold it.
type Guard struct {
	cache    *EntityCache
	coord    *MutationCoordinator
	autosave *Autosave
	nav      *Navigator

	pending *domain.NavigationIntent
}

// NewGuard creates a guard.
func NewGuard(cache *EntityCache, coord *MutationCoordinator, autosave *Autosave, nav *Navigator) *Guard {
	return &Guard{
		cache:    cache,
		coord:    coord,
		autosave: autosave,
		nav:      nav,
	}
}

// Pending returns the held navigation, if any.
func (g *Guard) Pending() (domain.NavigationIntent, bool) {
	if g.pending == nil {
		return domain.NavigationIntent{}, false
	}
	return *g.pending, true
}

// Navigate moves to target unless unsaved edits hold it, in which case
// it returns domain.ErrNavigationPending.
func (g *Guard) Navigate(target domain.NavigationIntent) error {
	if target.Kind == domain.IntentPage {
		if _, ok := g.cache.FindPage(target.PageID); !ok {
			return fmt.Errorf("page %s: %w", target.PageID, domain.ErrNotFound)
		}
	}

	phase := g.nav.Phase()
	if current, ok := phase.Intent(); ok && current == target {
		return nil
	}

	if g.DiscardBlank() {
		g.complete(target)
		return nil
	}
	if g.autosave.State() == domain.SaveDirty {
		g.pending = &target
		guardLog.Debug("holding navigation to %s", target)
		return domain.ErrNavigationPending
	}

	g.complete(target)
	return nil
}

// DiscardBlank deletes the open page if it has no title and no content,
// counting unsaved edits. It reports whether a page was deleted.
func (g *Guard) DiscardBlank() bool {
	id, ok := g.nav.Phase().CurrentPageID()
	if !ok {
		return false
	}
	page, found := g.cache.FindPage(id)
	if !found || !g.autosave.Overlay(page).IsBlank() {
		return false
	}
	guardLog.Debug("discarding blank page %s", id)
	if _, err := g.coord.DiscardDraft(id); err != nil {
		guardLog.Debug("discard %s: %v", id, err)
	}
	return true
}

// ConfirmDiscard drops unsaved edits and completes the held navigation.
func (g *Guard) ConfirmDiscard() error {
	if g.pending == nil {
		return domain.ErrNoPendingNavigation
	}
	target := *g.pending
	g.autosave.Discard()

	if target.Kind == domain.IntentPage {
		if _, ok := g.cache.FindPage(target.PageID); !ok {
			target = domain.HomeIntent()
		}
	}
	g.complete(target)
	return nil
}

// Cancel abandons the held navigation.
func (g *Guard) Cancel() error {
	if g.pending == nil {
		return domain.ErrNoPendingNavigation
	}
	g.pending = nil
	return nil
}

// Clear forgets a held navigation without completing it.
func (g *Guard) Clear() {
	g.pending = nil
}

func (g *Guard) complete(target domain.NavigationIntent) {
	g.pending = nil
	if target.Kind == domain.IntentPage {
		g.nav.Show(domain.Viewing(target.PageID))
		return
	}
	g.nav.Show(domain.Home())
}
