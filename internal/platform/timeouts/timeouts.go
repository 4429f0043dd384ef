// Package timeouts defines the timeout constants shared by the realtime
// process so HTTP, identity, and persistence boundaries agree on durations.
package timeouts

import "time"

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long the HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// IdentityRequest caps a single identity resolution made during the
// WebSocket upgrade.
const IdentityRequest = 3 * time.Second

// HistoryFlush caps the final chat history write on shutdown.
const HistoryFlush = 5 * time.Second

// HistoryPersist caps one background chat history write.
const HistoryPersist = 10 * time.Second
