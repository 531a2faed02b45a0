// Package driving defines the interfaces a front end drives: the document
// session and device preferences. These are the "driving" ports in
// hexagonal architecture terminology.
//
// Implementations live in internal/core/services. Session methods are
// confined to the session's event loop.
package driving
