package driving

import (
	"time"

	"github.com/custodia-labs/mirae/internal/core/domain"
)

// PreferencesService manages per-device user preferences.
type PreferencesService interface {
	// Get retrieves current preferences. Invalid stored values fall back to defaults.
	Get() (*domain.Preferences, error)

	// Save persists preferences.
	Save(prefs *domain.Preferences) error

	// SetStartupPosition updates what a new tab opens.
	SetStartupPosition(position domain.StartupPosition) error

	// SetAutosave enables or disables autosave.
	SetAutosave(enabled bool) error

	// SetAutosaveDelays updates the title and content debounce delays.
	SetAutosaveDelays(title, content time.Duration) error

	// SetTimeFormat updates the clock format.
	SetTimeFormat(format domain.TimeFormat) error

	// SetTheme updates the colour theme.
	SetTheme(theme domain.Theme) error

	// GetDefaults returns default preferences.
	GetDefaults() domain.Preferences

	// LastOpenedPage returns the persisted last opened page id, or "".
	LastOpenedPage() string

	// SetLastOpenedPage persists the last opened page id. "" clears it.
	SetLastOpenedPage(id string) error
}
