// Package memory provides in-memory implementations of driven port interfaces.
//
// Adapters:
//   - EntityStore: Pages and folders held in maps, with durable ULID ids.
//     Used by tests.
//   - ConfigStore: A key/value store that lives as long as the process.
//     Backs the tab-scoped navigation intent.
package memory
