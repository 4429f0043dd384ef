// Package history owns the process-wide chat log: a bounded, ordered
// sequence of messages replayed to joining connections and persisted to a
// durable sink off the append path.
package history

import "context"

// Capacity is the maximum number of messages retained.
const Capacity = 100

// Message is one chat line as stored, replayed, and persisted.
type Message struct {
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Sink persists and reloads full history snapshots.
//
// Load returns an empty slice and nil error when nothing was persisted yet.
// Save replaces whatever was stored before.
type Sink interface {
	Load(ctx context.Context) ([]Message, error)
	Save(ctx context.Context, messages []Message) error
}

// Trim keeps the newest Capacity messages of messages, preserving order.
func Trim(messages []Message) []Message {
	if len(messages) <= Capacity {
		return messages
	}
	return messages[len(messages)-Capacity:]
}
