// Package redis keeps the chat history snapshot under a single Redis key so
// several realtime processes can share one durable log.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/partyline/internal/platform/errors"
	"github.com/louisbranch/partyline/internal/services/realtime/history"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultKey is where the snapshot lives unless configured otherwise.
const DefaultKey = "partyline:chat_history"

// Store reads and writes the snapshot as a JSON array.
type Store struct {
	client goredis.UniversalClient
	key    string
	owned  bool
}

var _ history.Sink = (*Store)(nil)

// New wraps an existing client. The caller keeps ownership of client.
func New(client goredis.UniversalClient, key string) *Store {
	key = strings.TrimSpace(key)
	if key == "" {
		key = DefaultKey
	}
	return &Store{client: client, key: key}
}

// Dial connects to addr and verifies the server answers PING. Close releases
// the connection.
func Dial(ctx context.Context, addr, key string) (*Store, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, apperrors.New(apperrors.CodeConfigInvalid, "redis address is required")
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, apperrors.WrapWithMetadata(apperrors.CodeHistoryUnavailable, "ping redis",
			map[string]string{"addr": addr}, err)
	}
	store := New(client, key)
	store.owned = true
	return store, nil
}

// Key returns the Redis key holding the snapshot.
func (s *Store) Key() string {
	return s.key
}

// Close releases the client when the store created it.
func (s *Store) Close() error {
	if s == nil || s.client == nil || !s.owned {
		return nil
	}
	return s.client.Close()
}

// Load reads the snapshot. A missing key is an empty history.
func (s *Store) Load(ctx context.Context) ([]history.Message, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return []history.Message{}, nil
	}
	if err != nil {
		return nil, apperrors.WrapWithMetadata(apperrors.CodeHistoryUnavailable, "get history key",
			map[string]string{"key": s.key}, err)
	}

	var messages []history.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, apperrors.WrapWithMetadata(apperrors.CodeHistoryCorrupt, "decode history key",
			map[string]string{"key": s.key}, err)
	}
	if messages == nil {
		messages = []history.Message{}
	}
	return messages, nil
}

// Save overwrites the snapshot. The key never expires.
func (s *Store) Save(ctx context.Context, messages []history.Message) error {
	if messages == nil {
		messages = []history.Message{}
	}
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("set history key: %w", err)
	}
	return nil
}
