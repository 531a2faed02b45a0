// Package services implements the driving port interfaces.
// Services hold the document session logic and orchestrate
// calls to driven ports (adapters).
//
// Every service is confined to a single event loop and takes no locks.
// Blocking port calls run through the loop's Go and report back with Post.
package services
