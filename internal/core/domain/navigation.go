package domain

import "strings"

// IntentKind distinguishes the two navigation intents.
type IntentKind int

// Intent kinds.
const (
	IntentHome IntentKind = iota
	IntentPage
)

// NavigationIntent is what the session should display,
// independent of whether the target still exists.
type NavigationIntent struct {
	Kind   IntentKind
	PageID string
}

// HomeIntent returns the intent to show the home view.
func HomeIntent() NavigationIntent {
	return NavigationIntent{Kind: IntentHome}
}

// PageIntent returns the intent to open page id.
func PageIntent(id string) NavigationIntent {
	return NavigationIntent{Kind: IntentPage, PageID: id}
}

const (
	intentHomeValue  = "home"
	intentPagePrefix = "page:"
)

// String encodes the intent for the durable client store.
func (i NavigationIntent) String() string {
	if i.Kind == IntentPage {
		return intentPagePrefix + i.PageID
	}
	return intentHomeValue
}

// ParseNavigationIntent decodes a stored intent.
// Returns false for empty or unrecognised values.
func ParseNavigationIntent(s string) (NavigationIntent, bool) {
	switch {
	case s == intentHomeValue:
		return HomeIntent(), true
	case strings.HasPrefix(s, intentPagePrefix) && len(s) > len(intentPagePrefix):
		return PageIntent(strings.TrimPrefix(s, intentPagePrefix)), true
	default:
		return NavigationIntent{}, false
	}
}

// PhaseKind enumerates the session phases.
type PhaseKind int

// Session phases.
const (
	PhaseInitializing PhaseKind = iota
	PhaseHome
	PhasePage
)

// String returns the string representation.
func (k PhaseKind) String() string {
	switch k {
	case PhaseInitializing:
		return "initializing"
	case PhaseHome:
		return "home"
	case PhasePage:
		return "page"
	default:
		return unknownDescription
	}
}

// SessionPhase is the single source of truth for what is displayed.
// Its fields are unexported so that only the constructors below can build
// one; a phase is never both home and a page.
type SessionPhase struct {
	kind   PhaseKind
	pageID string
}

// Initializing returns the phase before the first navigation decision.
// No document content may render in this phase.
func Initializing() SessionPhase {
	return SessionPhase{kind: PhaseInitializing}
}

// Home returns the home view phase.
func Home() SessionPhase {
	return SessionPhase{kind: PhaseHome}
}

// Viewing returns the phase with page id open.
func Viewing(id string) SessionPhase {
	return SessionPhase{kind: PhasePage, pageID: id}
}

// Kind returns the phase kind.
func (p SessionPhase) Kind() PhaseKind {
	return p.kind
}

// IsInitializing returns true until the first navigation decision.
func (p SessionPhase) IsInitializing() bool {
	return p.kind == PhaseInitializing
}

// ViewingHome returns true when the home view is shown.
func (p SessionPhase) ViewingHome() bool {
	return p.kind == PhaseHome
}

// CurrentPageID returns the open page id, if any.
func (p SessionPhase) CurrentPageID() (string, bool) {
	if p.kind != PhasePage {
		return "", false
	}
	return p.pageID, true
}

// Intent returns the navigation intent that produces this phase.
// Returns false while initializing.
func (p SessionPhase) Intent() (NavigationIntent, bool) {
	switch p.kind {
	case PhaseHome:
		return HomeIntent(), true
	case PhasePage:
		return PageIntent(p.pageID), true
	default:
		return NavigationIntent{}, false
	}
}

// String returns a human-readable description.
func (p SessionPhase) String() string {
	if p.kind == PhasePage {
		return "page(" + p.pageID + ")"
	}
	return p.kind.String()
}
