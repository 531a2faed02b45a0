package domain

// SaveState is the autosave state of the open document.
type SaveState int

// Save states.
const (
	SaveClean SaveState = iota
	SaveDirty
	SaveSaving
)

// String returns the string representation.
func (s SaveState) String() string {
	switch s {
	case SaveClean:
		return "clean"
	case SaveDirty:
		return "dirty"
	case SaveSaving:
		return "saving"
	default:
		return unknownDescription
	}
}

// Description returns the status line text for the state.
func (s SaveState) Description() string {
	switch s {
	case SaveClean:
		return "● Synced"
	case SaveDirty:
		return "● Unsaved changes"
	case SaveSaving:
		return "● Saving..."
	default:
		return unknownDescription
	}
}

// MutationOp identifies the kind of optimistic mutation.
type MutationOp string

// Mutation operations.
const (
	OpCreate MutationOp = "create"
	OpUpdate MutationOp = "update"
	OpDelete MutationOp = "delete"
)

// MutationState tracks an optimistic mutation.
//
//	Idle -> Optimistic -> {Committed | Reverted | CommittedWithWarning}
//
// Only creates revert. Updates and deletes keep the local change and warn.
type MutationState int

// Mutation states.
const (
	MutationIdle MutationState = iota
	MutationOptimistic
	MutationCommitted
	MutationReverted
	MutationCommittedWithWarning
)

// String returns the string representation.
func (s MutationState) String() string {
	switch s {
	case MutationIdle:
		return "idle"
	case MutationOptimistic:
		return "optimistic"
	case MutationCommitted:
		return "committed"
	case MutationReverted:
		return "reverted"
	case MutationCommittedWithWarning:
		return "committed_with_warning"
	default:
		return unknownDescription
	}
}

// IsSettled returns true once the remote call has resolved.
func (s MutationState) IsSettled() bool {
	return s == MutationCommitted || s == MutationReverted || s == MutationCommittedWithWarning
}
