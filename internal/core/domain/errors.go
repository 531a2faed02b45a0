package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoOwner indicates an operation needs an authenticated owner and none is known.
	ErrNoOwner = errors.New("no owner")

	// Remote Store Errors.

	// ErrLoadFailed indicates listing entities from the remote store failed.
	// The cache keeps its last-known contents.
	ErrLoadFailed = errors.New("load failed")

	// ErrCreateFailed indicates a remote create failed and the optimistic entity was reverted.
	ErrCreateFailed = errors.New("create failed")

	// ErrUpdateFailed indicates a remote update failed.
	// The optimistic change is kept locally.
	ErrUpdateFailed = errors.New("update failed")

	// ErrDeleteFailed indicates a remote delete failed.
	// The local removal is kept; a refresh resynchronises.
	ErrDeleteFailed = errors.New("delete failed")

	// ErrStaleResponse indicates a remote response arrived after the owner or
	// cache generation it was issued for was replaced, and was discarded.
	ErrStaleResponse = errors.New("stale response")

	// Navigation Errors.

	// ErrNavigationPending indicates a navigation is held until the user
	// confirms or cancels discarding unsaved changes.
	ErrNavigationPending = errors.New("navigation pending: unsaved changes")

	// ErrNoPendingNavigation indicates there is no held navigation to confirm or cancel.
	ErrNoPendingNavigation = errors.New("no pending navigation")

	// ErrNoOpenPage indicates an editing operation was attempted while no page is open.
	ErrNoOpenPage = errors.New("no open page")
)
