package domain

import "time"

const unknownDescription = "Unknown"

// StartupPosition decides what opens when a new tab starts.
type StartupPosition string

// Available startup positions.
const (
	// StartupLastOpened reopens the last opened page.
	StartupLastOpened StartupPosition = "last"

	// StartupHome always starts on the home view.
	StartupHome StartupPosition = "home"
)

// IsValid returns true if the startup position is recognised.
func (p StartupPosition) IsValid() bool {
	switch p {
	case StartupLastOpened, StartupHome:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (p StartupPosition) String() string {
	return string(p)
}

// Description returns a human-readable description of the position.
func (p StartupPosition) Description() string {
	switch p {
	case StartupLastOpened:
		return "Last opened page"
	case StartupHome:
		return "Home"
	default:
		return unknownDescription
	}
}

// TimeFormat selects 12 or 24 hour clocks.
type TimeFormat string

// Available time formats.
const (
	TimeFormat12h TimeFormat = "12h"
	TimeFormat24h TimeFormat = "24h"
)

// IsValid returns true if the time format is recognised.
func (f TimeFormat) IsValid() bool {
	return f == TimeFormat12h || f == TimeFormat24h
}

// String returns the string representation.
func (f TimeFormat) String() string {
	return string(f)
}

// Layout returns the time layout for the format.
func (f TimeFormat) Layout() string {
	if f == TimeFormat24h {
		return "15:04"
	}
	return "3:04 PM"
}

// Theme is the colour theme.
type Theme string

// Available themes.
const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
	ThemeGlass Theme = "glass"
)

// IsValid returns true if the theme is recognised.
func (t Theme) IsValid() bool {
	switch t {
	case ThemeLight, ThemeDark, ThemeGlass:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t Theme) String() string {
	return string(t)
}

// AutosaveSettings holds autosave behaviour.
type AutosaveSettings struct {
	// Enabled arms debounce timers on every edit.
	// When disabled, saving is manual.
	Enabled bool

	// TitleDelay is the debounce delay for title edits.
	TitleDelay time.Duration

	// ContentDelay is the debounce delay for body content edits.
	ContentDelay time.Duration
}

// Preferences holds per-device user preferences.
type Preferences struct {
	// Startup decides what a new tab opens.
	Startup StartupPosition

	// Autosave holds autosave settings.
	Autosave AutosaveSettings

	// TimeFormat is the clock format.
	TimeFormat TimeFormat

	// Theme is the colour theme.
	Theme Theme
}

// Default delays for autosave debouncing.
const (
	DefaultTitleDelay   = 400 * time.Millisecond
	DefaultContentDelay = 800 * time.Millisecond
)

// DefaultPreferences returns preferences with sensible defaults.
func DefaultPreferences() Preferences {
	return Preferences{
		Startup: StartupLastOpened,
		Autosave: AutosaveSettings{
			Enabled:      true,
			TitleDelay:   DefaultTitleDelay,
			ContentDelay: DefaultContentDelay,
		},
		TimeFormat: TimeFormat12h,
		Theme:      ThemeLight,
	}
}

// AllStartupPositions returns all available startup positions.
func AllStartupPositions() []StartupPosition {
	return []StartupPosition{StartupLastOpened, StartupHome}
}

// AllThemes returns all available themes.
func AllThemes() []Theme {
	return []Theme{ThemeLight, ThemeDark, ThemeGlass}
}
