package driving

import (
	"time"

	"github.com/custodia-labs/mirae/internal/core/domain"
)

// Session is the document session a UI drives. Every method must be called
// from the session's event loop.
type Session interface {
	// IdentityLoading reports whether the identity provider is still resolving.
	IdentityLoading(loading bool)

	// OwnerChanged reports a new owner. An empty id means signed out.
	OwnerChanged(ownerID string)

	// Reload re-lists entities for the current owner.
	Reload() error

	// Phase returns what is being displayed.
	Phase() domain.SessionPhase

	// CurrentPage returns the open page including unsaved edits.
	CurrentPage() (domain.Page, bool)

	// Page returns a cached page by id.
	Page(id string) (domain.Page, bool)

	// Pages returns cached pages in display order.
	Pages() []domain.Page

	// Folders returns cached folders in display order.
	Folders() []domain.Folder

	// SaveState returns the autosave state of the open page.
	SaveState() domain.SaveState

	// DurableID returns the store-assigned id a provisional id resolved to.
	DurableID(id string) (string, bool)

	// NewPage creates a page optimistically and opens it.
	NewPage(input domain.NewPageInput) (domain.Page, error)

	// OpenPage navigates to a page. Returns domain.ErrNavigationPending
	// when unsaved changes hold the navigation.
	OpenPage(id string) error

	// GoHome navigates to the home view.
	GoHome() error

	// NextPage opens the page after the current one in display order.
	NextPage() error

	// PrevPage opens the page before the current one in display order.
	PrevPage() error

	// PendingNavigation returns the held navigation target, if any.
	PendingNavigation() (domain.NavigationIntent, bool)

	// ConfirmDiscard drops unsaved changes and completes the held navigation.
	ConfirmDiscard() error

	// CancelNavigation abandons the held navigation.
	CancelNavigation() error

	// EditTitle records a title edit on the open page.
	EditTitle(title string) error

	// EditContent records a content edit on the open page.
	EditContent(content string) error

	// Save commits pending edits now.
	Save() error

	// DeletePage deletes a page optimistically.
	DeletePage(id string) error

	// RenamePage sets the title of any page.
	RenamePage(id, title string) error

	// MovePage files a page under folderID, or unfiles it when folderID is "".
	MovePage(id, folderID string) error

	// SetFavorite marks or unmarks a page as a favourite.
	SetFavorite(id string, favorite bool) error

	// NewFolder creates a folder optimistically.
	NewFolder(name string) (domain.Folder, error)

	// RenameFolder renames a folder.
	RenameFolder(id, name string) error

	// DeleteFolder deletes a folder and unfiles its pages.
	DeleteFolder(id string) error

	// SearchPages returns pages whose display title contains query.
	SearchPages(query string) []domain.Page

	// Favorites returns favourite pages in display order.
	Favorites() []domain.Page

	// SetAutosave toggles autosave for this session.
	SetAutosave(enabled bool)

	// SetAutosaveDelays changes the debounce delays for this session.
	SetAutosaveDelays(title, content time.Duration)

	// Alerts returns user-visible errors not yet dismissed.
	Alerts() []Alert

	// DismissAlerts clears all alerts.
	DismissAlerts()

	// Subscribe registers fn for session change notifications.
	Subscribe(fn func(Event)) (unsubscribe func())

	// Close flushes pending edits.
	Close()
}

// Alert is a user-visible, non-fatal error.
type Alert struct {
	// Err is the underlying error; use errors.Is against domain errors.
	Err error

	// At is when the alert was raised.
	At time.Time

	// Retryable indicates a manual retry is available.
	Retryable bool
}

// EventKind enumerates session change notifications.
type EventKind int

// Session events.
const (
	EventEntitiesChanged EventKind = iota
	EventPhaseChanged
	EventSaveStateChanged
	EventAlert
)

// Event is a session change notification.
type Event struct {
	Kind EventKind
}
