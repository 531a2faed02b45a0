// Package domain defines the core business entities for Mirae.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Page: A rich-text note owned by a single owner
//   - Folder: A named grouping of pages
//   - NavigationIntent: What the session should display
//   - SessionPhase: What the session is displaying right now
//   - SaveState: Autosave progress for the open document
//   - Preferences: Per-device user preferences
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
