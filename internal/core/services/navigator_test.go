package services

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mirae/internal/core/domain"
	"github.com/custodia-labs/mirae/internal/core/ports/driving"
	"github.com/custodia-labs/mirae/internal/logger"
)

func TestNavigator_WaitsForIdentityAndCache(t *testing.T) {
	h := newHarness(t)
	page := h.seedPage("alice", "p", "x")
	require.NoError(t, h.tab.Set(keyNavigationIntent, "page:"+page.ID))

	assert.True(t, h.session.Phase().IsInitializing())

	h.loop.hold = true
	h.session.OwnerChanged("alice")
	h.loop.RunUntilIdle()
	assert.True(t, h.session.Phase().IsInitializing(), "identity still loading")

	h.session.IdentityLoading(false)
	assert.True(t, h.session.Phase().IsInitializing(), "cache not loaded")

	h.loop.release()
	assert.Equal(t, domain.Viewing(page.ID), h.session.Phase())
}

// recordPhases collects every phase the session shows.
func recordPhases(h *harness) *[]domain.SessionPhase {
	phases := []domain.SessionPhase{h.session.Phase()}
	h.session.Subscribe(func(ev driving.Event) {
		if ev.Kind == driving.EventPhaseChanged {
			phases = append(phases, h.session.Phase())
		}
	})
	return &phases
}

func TestNavigator_StartupNeverShowsHomeOnTheWay(t *testing.T) {
	tests := []struct {
		name  string
		start func(h *harness)
	}{
		{
			name: "identity before owner",
			start: func(h *harness) {
				h.session.IdentityLoading(false)
				h.session.OwnerChanged("alice")
			},
		},
		{
			name: "owner before identity",
			start: func(h *harness) {
				h.session.OwnerChanged("alice")
				h.session.IdentityLoading(false)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			page := h.seedPage("alice", "p", "x")
			h.seedPage("alice", "newer", "x")
			require.NoError(t, h.device.Set(keyStartupPosition, "last"))
			require.NoError(t, h.device.Set(keyLastOpenedPage, page.ID))
			phases := recordPhases(h)

			tt.start(h)
			h.loop.RunUntilIdle()

			assert.Equal(t, []domain.SessionPhase{domain.Initializing(), domain.Viewing(page.ID)}, *phases)
		})
	}
}

func TestNavigator_IdentityWithoutOwnerWaits(t *testing.T) {
	h := newHarness(t)
	phases := recordPhases(h)

	h.session.IdentityLoading(false)
	h.loop.RunUntilIdle()

	assert.True(t, h.session.Phase().IsInitializing())
	assert.Len(t, *phases, 1)
}

func TestNavigator_StartupResolution(t *testing.T) {
	tests := []struct {
		name    string
		tab     string
		startup string
		last    func(page domain.Page) string
		want    func(page domain.Page) domain.SessionPhase
	}{
		{
			name: "tab intent page",
			tab:  "page:",
			want: func(p domain.Page) domain.SessionPhase { return domain.Viewing(p.ID) },
		},
		{
			name: "tab intent home wins over last opened",
			tab:  "home",
			last: func(p domain.Page) string { return p.ID },
			want: func(domain.Page) domain.SessionPhase { return domain.Home() },
		},
		{
			name: "last opened page",
			last: func(p domain.Page) string { return p.ID },
			want: func(p domain.Page) domain.SessionPhase { return domain.Viewing(p.ID) },
		},
		{
			name:    "startup home ignores last opened",
			startup: "home",
			last:    func(p domain.Page) string { return p.ID },
			want:    func(domain.Page) domain.SessionPhase { return domain.Home() },
		},
		{
			name: "last opened page was deleted",
			last: func(domain.Page) string { return "01GONE" },
			want: func(domain.Page) domain.SessionPhase { return domain.Home() },
		},
		{
			name: "nothing recorded",
			want: func(domain.Page) domain.SessionPhase { return domain.Home() },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			page := h.seedPage("alice", "p", "x")
			h.seedPage("alice", "newer", "x")
			if tt.tab == "page:" {
				require.NoError(t, h.tab.Set(keyNavigationIntent, "page:"+page.ID))
			} else if tt.tab != "" {
				require.NoError(t, h.tab.Set(keyNavigationIntent, tt.tab))
			}
			if tt.startup != "" {
				require.NoError(t, h.device.Set(keyStartupPosition, tt.startup))
			}
			if tt.last != nil {
				require.NoError(t, h.device.Set(keyLastOpenedPage, tt.last(page)))
			}

			h.signIn("alice")

			assert.Equal(t, tt.want(page), h.session.Phase())
		})
	}
}

func TestNavigator_SignedOutShowsHome(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.tab.Set(keyNavigationIntent, "page:01ANY"))

	h.signIn("")

	assert.True(t, h.session.Phase().ViewingHome())
}

func TestNavigator_FallbackTimeout(t *testing.T) {
	h := newHarness(t)
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(os.Stderr)

	h.loop.hold = true
	h.signIn("alice")
	require.True(t, h.session.Phase().IsInitializing())

	h.loop.Advance(DefaultResolveTimeout)

	assert.True(t, h.session.Phase().ViewingHome())
	assert.Contains(t, buf.String(), "[WARN] navigation: resolution timed out")

	// A late load does not yank the user off Home.
	h.loop.release()
	assert.True(t, h.session.Phase().ViewingHome())
}

func TestNavigator_LoadFailureFallsBackToHome(t *testing.T) {
	h := newHarness(t)
	h.store.failOn("ListPages", assert.AnError)

	h.signIn("alice")
	require.True(t, h.session.Phase().IsInitializing())
	alerts := h.session.Alerts()
	require.Len(t, alerts, 1)
	assert.ErrorIs(t, alerts[0].Err, domain.ErrLoadFailed)
	assert.True(t, alerts[0].Retryable)

	h.loop.Advance(DefaultResolveTimeout)
	assert.True(t, h.session.Phase().ViewingHome())
}

func TestNavigator_OwnerChangeReresolves(t *testing.T) {
	h := newHarness(t)
	alicePage := h.seedPage("alice", "a", "x")
	bobPage := h.seedPage("bob", "b", "x")
	h.signIn("alice")
	require.NoError(t, h.session.OpenPage(alicePage.ID))

	h.session.OwnerChanged("bob")
	assert.True(t, h.session.Phase().IsInitializing())
	h.loop.RunUntilIdle()

	// The tab intent names alice's page, which bob cannot see.
	assert.True(t, h.session.Phase().ViewingHome())
	assert.Equal(t, []string{bobPage.ID}, pageIDs(h.session.Pages()))

	h.session.OwnerChanged("")
	h.loop.RunUntilIdle()
	assert.True(t, h.session.Phase().ViewingHome())
	assert.Empty(t, h.session.Pages())
}

func TestNavigator_ExplicitNavigationPersists(t *testing.T) {
	h := newHarness(t)
	page := h.seedPage("alice", "p", "x")
	h.signIn("alice")

	require.NoError(t, h.session.OpenPage(page.ID))
	assert.Equal(t, "page:"+page.ID, h.tab.GetString(keyNavigationIntent))
	assert.Equal(t, page.ID, h.device.GetString(keyLastOpenedPage))

	require.NoError(t, h.session.GoHome())
	assert.Equal(t, "home", h.tab.GetString(keyNavigationIntent))
	assert.Equal(t, page.ID, h.device.GetString(keyLastOpenedPage), "home does not clear the last page")
}

func TestNavigator_NewTabRestoresIntent(t *testing.T) {
	h := newHarness(t)
	first := h.seedPage("alice", "first", "x")
	h.seedPage("alice", "second", "x")
	h.signIn("alice")
	require.NoError(t, h.session.OpenPage(first.ID))

	// Same tab store: a reload of the tab.
	h.start()
	h.signIn("alice")
	assert.Equal(t, domain.Viewing(first.ID), h.session.Phase())
}

func TestNavigator_ReloadRemovingOpenPageShowsHome(t *testing.T) {
	h := newHarness(t)
	page := h.seedPage("alice", "p", "x")
	h.signIn("alice")
	require.NoError(t, h.session.OpenPage(page.ID))

	require.NoError(t, h.store.EntityStore.DeletePage(t.Context(), page.ID, "alice"))
	require.NoError(t, h.session.Reload())
	h.loop.RunUntilIdle()

	assert.True(t, h.session.Phase().ViewingHome())
}

func TestNavigator_ReloadWithoutOwner(t *testing.T) {
	h := newHarness(t)
	h.signIn("")

	assert.ErrorIs(t, h.session.Reload(), domain.ErrNoOwner)
}
