// Package realtime groups the room service: a WebSocket event channel where
// clients share presence, a bounded chat log, and game-action deltas scoped
// to rooms.
//
// Subpackages, leaf-first:
//
//   - room: label canonicalization and the member registry.
//   - history: the process-wide chat log and its durable sinks.
//   - hub: presence, chat fan-out, and action relay over the registry.
//   - identity: resolves an upgrade request to an optional display name.
//   - app: the WebSocket transport and process lifecycle.
package realtime
