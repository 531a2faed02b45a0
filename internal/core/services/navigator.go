package services

import (
	"time"

	"github.com/custodia-labs/mirae/internal/core/domain"
	"github.com/custodia-labs/mirae/internal/core/ports/driven"
	"github.com/custodia-labs/mirae/internal/core/ports/driving"
	"github.com/custodia-labs/mirae/internal/logger"
)

var navLog = logger.Scope("navigation")

// keyNavigationIntent is the tab-scoped key holding the last explicit navigation.
const keyNavigationIntent = "navigation.intent"

// DefaultResolveTimeout bounds how long startup resolution may stay in
// Initializing before falling back to Home.
const DefaultResolveTimeout = 10 * time.Second

// Navigator decides which page or view the session displays.
//
// It starts in Initializing and resolves exactly once per owner, after
// identity, the owner and the cache are known, using the tab intent, then the
// device startup preference, then the first cached page. Explicit
// navigation afterwards goes through Show.
type Navigator struct {
	loop    driven.EventLoop
	cache   *EntityCache
	prefs   driving.PreferencesService
	tab     driven.ConfigStore
	timeout time.Duration

	phase           domain.SessionPhase
	identityLoading bool
	ownerKnown      bool
	ownerID         string
	fallback        driven.Timer

	onChange func(domain.SessionPhase)
}

// NewNavigator creates a navigator in Initializing, waiting for identity.
func NewNavigator(
	loop driven.EventLoop,
	cache *EntityCache,
	prefs driving.PreferencesService,
	tab driven.ConfigStore,
	timeout time.Duration,
) *Navigator {
	if timeout <= 0 {
		timeout = DefaultResolveTimeout
	}
	n := &Navigator{
		loop:            loop,
		cache:           cache,
		prefs:           prefs,
		tab:             tab,
		timeout:         timeout,
		phase:           domain.Initializing(),
		identityLoading: true,
	}
	n.armFallback()
	return n
}

// OnChange registers fn to run whenever the phase changes.
func (n *Navigator) OnChange(fn func(domain.SessionPhase)) {
	n.onChange = fn
}

// Phase returns the current phase.
func (n *Navigator) Phase() domain.SessionPhase {
	return n.phase
}

// SetIdentityLoading records whether identity is still resolving.
func (n *Navigator) SetIdentityLoading(loading bool) {
	n.identityLoading = loading
	n.evaluate()
}

// SetOwner records the owner and restarts startup resolution when it
// changes. "" means signed out. Until the first call the owner is unknown
// and resolution waits.
func (n *Navigator) SetOwner(ownerID string) {
	if n.ownerKnown && ownerID == n.ownerID && !n.phase.IsInitializing() {
		return
	}
	n.ownerKnown = true
	n.ownerID = ownerID
	n.set(domain.Initializing())
	n.armFallback()
	n.evaluate()
}

// CacheChanged reacts to cache updates. During startup it retries
// resolution. Afterwards it leaves a page that a reload removed.
func (n *Navigator) CacheChanged(ev CacheEvent) {
	if n.phase.IsInitializing() {
		n.evaluate()
		return
	}
	if ev.Kind != CacheLoaded {
		return
	}
	if id, ok := n.phase.CurrentPageID(); ok {
		if _, found := n.cache.FindPage(id); !found {
			navLog.Debug("page %s vanished on reload", id)
			n.set(domain.Home())
		}
	}
}

// Show displays phase as an explicit navigation and persists it.
func (n *Navigator) Show(phase domain.SessionPhase) {
	n.stopFallback()
	n.persist(phase)
	n.set(phase)
}

// Repoint follows the open page from a provisional id to its durable id.
func (n *Navigator) Repoint(oldID, newID string) {
	if id, ok := n.phase.CurrentPageID(); ok && id == oldID {
		n.Show(domain.Viewing(newID))
	}
}

// Intent returns the stored tab intent, if any.
func (n *Navigator) Intent() (domain.NavigationIntent, bool) {
	return domain.ParseNavigationIntent(n.tab.GetString(keyNavigationIntent))
}

func (n *Navigator) evaluate() {
	if !n.phase.IsInitializing() || n.identityLoading || !n.ownerKnown {
		return
	}
	if n.ownerID == "" {
		n.resolve(domain.Home(), "signed out")
		return
	}
	if !n.cache.Loaded(n.ownerID) {
		return
	}

	intent, ok := n.startupIntent()
	if !ok {
		if pages := n.cache.Pages(); len(pages) > 0 {
			n.resolve(domain.Viewing(pages[0].ID), "first page")
			return
		}
		n.resolve(domain.Home(), "no pages")
		return
	}

	if intent.Kind == domain.IntentPage {
		if _, found := n.cache.FindPage(intent.PageID); found {
			n.resolve(domain.Viewing(intent.PageID), "intent")
			return
		}
		n.resolve(domain.Home(), "intent page missing")
		return
	}
	n.resolve(domain.Home(), "intent")
}

// startupIntent picks the tab intent, then the device preference.
func (n *Navigator) startupIntent() (domain.NavigationIntent, bool) {
	if intent, ok := n.Intent(); ok {
		return intent, true
	}

	prefs, err := n.prefs.Get()
	if err != nil {
		navLog.Debug("reading preferences: %v", err)
		return domain.NavigationIntent{}, false
	}
	if prefs.Startup == domain.StartupHome {
		return domain.HomeIntent(), true
	}
	if id := n.prefs.LastOpenedPage(); id != "" {
		return domain.PageIntent(id), true
	}
	return domain.HomeIntent(), true
}

func (n *Navigator) resolve(phase domain.SessionPhase, reason string) {
	n.stopFallback()
	navLog.Debug("resolved %s (%s)", phase, reason)
	n.set(phase)
}

func (n *Navigator) persist(phase domain.SessionPhase) {
	intent, ok := phase.Intent()
	if !ok || (intent.Kind == domain.IntentPage && domain.IsProvisional(intent.PageID)) {
		return
	}
	if err := n.tab.Set(keyNavigationIntent, intent.String()); err != nil {
		navLog.Warn("failed to persist navigation intent: %v", err)
	}
	if intent.Kind == domain.IntentPage {
		if err := n.prefs.SetLastOpenedPage(intent.PageID); err != nil {
			navLog.Warn("failed to persist last opened page: %v", err)
		}
	}
}

func (n *Navigator) armFallback() {
	n.stopFallback()
	n.fallback = n.loop.AfterFunc(n.timeout, func() {
		n.fallback = nil
		if !n.phase.IsInitializing() {
			return
		}
		navLog.Warn("resolution timed out after %s, showing home", n.timeout)
		n.set(domain.Home())
	})
}

func (n *Navigator) stopFallback() {
	if n.fallback != nil {
		n.fallback.Stop()
		n.fallback = nil
	}
}

func (n *Navigator) set(phase domain.SessionPhase) {
	if n.phase == phase {
		return
	}
	n.phase = phase
	if n.onChange != nil {
		n.onChange(phase)
	}
}
