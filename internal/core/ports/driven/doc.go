// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - EntityStore: The remote store of pages and folders. Calls block,
//     can fail, and have unspecified latency.
//   - ConfigStore: Durable client-side key/value storage. One instance is
//     scoped to the device (preferences, last opened page) and one to the
//     tab or process (navigation intent).
//   - EventLoop: The single-threaded loop every core service runs on.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
