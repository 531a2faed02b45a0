package services

import (
	"fmt"
	"time"

	"github.com/custodia-labs/mirae/internal/core/domain"
	"github.com/custodia-labs/mirae/internal/core/ports/driven"
	"github.com/custodia-labs/mirae/internal/core/ports/driving"
)

// Ensure PreferencesService implements the interface.
var _ driving.PreferencesService = (*PreferencesService)(nil)

// Config keys for device preference storage.
const (
	keyStartupPosition = "startup.position"
	keyLastOpenedPage  = "navigation.last_opened_page"
	keyAutosave        = "editor.autosave"
	keyTitleDelayMS    = "editor.title_delay_ms"
	keyContentDelayMS  = "editor.content_delay_ms"
	keyTimeFormat      = "display.time_format"
	keyTheme           = "display.theme"
)

// PreferencesService manages per-device preferences.
type PreferencesService struct {
	configStore driven.ConfigStore
}

// NewPreferencesService creates a new preferences service.
func NewPreferencesService(configStore driven.ConfigStore) *PreferencesService {
	return &PreferencesService{
		configStore: configStore,
	}
}

// Get retrieves current preferences.
func (s *PreferencesService) Get() (*domain.Preferences, error) {
	defaults := domain.DefaultPreferences()

	prefs := &domain.Preferences{
		Startup: s.getStartupPosition(defaults.Startup),
		Autosave: domain.AutosaveSettings{
			Enabled:      s.getBool(keyAutosave, defaults.Autosave.Enabled),
			TitleDelay:   s.getDelay(keyTitleDelayMS, defaults.Autosave.TitleDelay),
			ContentDelay: s.getDelay(keyContentDelayMS, defaults.Autosave.ContentDelay),
		},
		TimeFormat: s.getTimeFormat(defaults.TimeFormat),
		Theme:      s.getTheme(defaults.Theme),
	}

	return prefs, nil
}

// Save persists preferences.
func (s *PreferencesService) Save(prefs *domain.Preferences) error {
	if err := s.configStore.Set(keyStartupPosition, prefs.Startup.String()); err != nil {
		return fmt.Errorf("save startup position: %w", err)
	}

	if err := s.configStore.Set(keyAutosave, prefs.Autosave.Enabled); err != nil {
		return fmt.Errorf("save autosave: %w", err)
	}
	if err := s.configStore.Set(keyTitleDelayMS, prefs.Autosave.TitleDelay.Milliseconds()); err != nil {
		return fmt.Errorf("save title delay: %w", err)
	}
	if err := s.configStore.Set(keyContentDelayMS, prefs.Autosave.ContentDelay.Milliseconds()); err != nil {
		return fmt.Errorf("save content delay: %w", err)
	}

	if err := s.configStore.Set(keyTimeFormat, prefs.TimeFormat.String()); err != nil {
		return fmt.Errorf("save time format: %w", err)
	}
	if err := s.configStore.Set(keyTheme, prefs.Theme.String()); err != nil {
		return fmt.Errorf("save theme: %w", err)
	}

	return nil
}

// SetStartupPosition updates what a new tab opens.
func (s *PreferencesService) SetStartupPosition(position domain.StartupPosition) error {
	if !position.IsValid() {
		return fmt.Errorf("invalid startup position %q: %w", position, domain.ErrInvalidInput)
	}

	prefs, err := s.Get()
	if err != nil {
		return err
	}
	prefs.Startup = position
	return s.Save(prefs)
}

// SetAutosave enables or disables autosave.
func (s *PreferencesService) SetAutosave(enabled bool) error {
	prefs, err := s.Get()
	if err != nil {
		return err
	}
	prefs.Autosave.Enabled = enabled
	return s.Save(prefs)
}

// SetAutosaveDelays updates both debounce delays.
func (s *PreferencesService) SetAutosaveDelays(title, content time.Duration) error {
	if title < time.Millisecond || content < time.Millisecond {
		return fmt.Errorf("autosave delays must be at least 1ms: %w", domain.ErrInvalidInput)
	}

	prefs, err := s.Get()
	if err != nil {
		return err
	}
	prefs.Autosave.TitleDelay = title
	prefs.Autosave.ContentDelay = content
	return s.Save(prefs)
}

// SetTimeFormat updates the clock format.
func (s *PreferencesService) SetTimeFormat(format domain.TimeFormat) error {
	if !format.IsValid() {
		return fmt.Errorf("invalid time format %q: %w", format, domain.ErrInvalidInput)
	}

	prefs, err := s.Get()
	if err != nil {
		return err
	}
	prefs.TimeFormat = format
	return s.Save(prefs)
}

// SetTheme updates the colour theme.
func (s *PreferencesService) SetTheme(theme domain.Theme) error {
	if !theme.IsValid() {
		return fmt.Errorf("invalid theme %q: %w", theme, domain.ErrInvalidInput)
	}

	prefs, err := s.Get()
	if err != nil {
		return err
	}
	prefs.Theme = theme
	return s.Save(prefs)
}

// GetDefaults returns default preferences.
func (s *PreferencesService) GetDefaults() domain.Preferences {
	return domain.DefaultPreferences()
}

// LastOpenedPage returns the persisted last opened page id.
func (s *PreferencesService) LastOpenedPage() string {
	return s.configStore.GetString(keyLastOpenedPage)
}

// SetLastOpenedPage persists the last opened page id.
// Provisional ids are never persisted.
func (s *PreferencesService) SetLastOpenedPage(id string) error {
	if id == "" {
		return s.configStore.Delete(keyLastOpenedPage)
	}
	if domain.IsProvisional(id) {
		return fmt.Errorf("provisional id %s: %w", id, domain.ErrInvalidInput)
	}
	if s.configStore.GetString(keyLastOpenedPage) == id {
		return nil
	}
	if err := s.configStore.Set(keyLastOpenedPage, id); err != nil {
		return fmt.Errorf("save last opened page: %w", err)
	}
	return nil
}

// Helper methods for reading config with defaults.

func (s *PreferencesService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *PreferencesService) getDelay(key string, defaultVal time.Duration) time.Duration {
	ms := s.configStore.GetInt(key)
	if ms <= 0 {
		return defaultVal
	}
	return time.Duration(ms) * time.Millisecond
}

func (s *PreferencesService) getStartupPosition(defaultVal domain.StartupPosition) domain.StartupPosition {
	val := s.configStore.GetString(keyStartupPosition)
	if val == "" {
		return defaultVal
	}
	position := domain.StartupPosition(val)
	if !position.IsValid() {
		return defaultVal
	}
	return position
}

func (s *PreferencesService) getTimeFormat(defaultVal domain.TimeFormat) domain.TimeFormat {
	format := domain.TimeFormat(s.configStore.GetString(keyTimeFormat))
	if !format.IsValid() {
		return defaultVal
	}
	return format
}

func (s *PreferencesService) getTheme(defaultVal domain.Theme) domain.Theme {
	theme := domain.Theme(s.configStore.GetString(keyTheme))
	if !theme.IsValid() {
		return defaultVal
	}
	return theme
}
