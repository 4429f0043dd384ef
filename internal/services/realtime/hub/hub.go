// Package hub applies presence, chat, and action semantics on top of the
// room registry and the chat history store.
//
// Every operation that fans out runs under one sequence lock. Peers only
// enqueue in Send, so the lock is never held across network writes, and
// all members observe chat messages in history order.
package hub

import (
	"bytes"
	"encoding/json"
	"sync"
	"time"

	"github.com/louisbranch/partyline/internal/services/realtime/history"
	"github.com/louisbranch/partyline/internal/services/realtime/room"
)

// TimestampLayout formats server-side chat timestamps (HH:MM:SS, local time).
const TimestampLayout = "15:04:05"

// Peer is one connection as the hub sees it.
type Peer interface {
	// ID is unique per connection, independent of identity.
	ID() string
	// Identity returns the bound display name, if any.
	Identity() (string, bool)
	// Send enqueues ev without blocking on the network. An error means the
	// event was not delivered to this peer; it never affects other peers.
	Send(ev Event) error
}

// Option configures a Hub.
type Option func(*Hub)

// WithClock overrides the clock used for server timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		if now != nil {
			h.now = now
		}
	}
}

// WithTrustClientTimestamps controls whether a client-supplied timestamp is
// stored verbatim. When false every message is stamped by the server.
func WithTrustClientTimestamps(trust bool) Option {
	return func(h *Hub) {
		h.trustClientTimestamps = trust
	}
}

// Stats is a point-in-time summary for health endpoints.
type Stats struct {
	Peers   int `json:"peers"`
	Rooms   int `json:"rooms"`
	History int `json:"history"`
}

// Hub routes events between peers.
type Hub struct {
	registry *room.Registry
	store    *history.Store

	now                   func() time.Time
	trustClientTimestamps bool

	sequence sync.Mutex

	peersMu sync.RWMutex
	peers   map[string]Peer
}

// New builds a hub over registry and store.
func New(registry *room.Registry, store *history.Store, opts ...Option) *Hub {
	if registry == nil {
		registry = room.NewRegistry()
	}
	if store == nil {
		store = history.NewStore(nil)
	}
	h := &Hub{
		registry:              registry,
		store:                 store,
		now:                   time.Now,
		trustClientTimestamps: true,
		peers:                 make(map[string]Peer),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Stats reports connected peers, non-empty rooms, and retained history.
func (h *Hub) Stats() Stats {
	h.peersMu.RLock()
	peers := len(h.peers)
	h.peersMu.RUnlock()
	return Stats{
		Peers:   peers,
		Rooms:   h.registry.Len(),
		History: h.store.Len(),
	}
}

// SendMessage appends a chat line and broadcasts it to the canonical room,
// sender included. Anonymous peers are ignored.
func (h *Hub) SendMessage(p Peer, rawRoom, text string, clientTimestamp *string) {
	username, ok := identityOf(p)
	if !ok {
		return
	}
	canonical := room.Canonicalize(room.OpSendMessage, rawRoom)

	h.sequence.Lock()
	defer h.sequence.Unlock()

	timestamp := h.now().Format(TimestampLayout)
	if clientTimestamp != nil && h.trustClientTimestamps {
		timestamp = *clientTimestamp
	}
	msg := history.Message{Username: username, Message: text, Timestamp: timestamp}
	h.store.Append(msg)
	h.broadcast(canonical, ReceiveMessage(msg), nil)
}

// RelayAction forwards a game-state delta to the canonical room, excluding
// the sending connection. Nothing is persisted.
func (h *Hub) RelayAction(p Peer, rawRoom, action string, data json.RawMessage) {
	username, ok := identityOf(p)
	if !ok {
		return
	}
	canonical := room.Canonicalize(room.OpUserAction, rawRoom)
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		data = json.RawMessage("{}")
	}

	h.sequence.Lock()
	defer h.sequence.Unlock()
	h.broadcast(canonical, ActionUpdate{Username: username, Action: action, Data: data}, p)
}

// broadcast fans ev out to the members of canonical, skipping exclude.
// Callers hold the sequence lock.
func (h *Hub) broadcast(canonical string, ev Event, exclude Peer) {
	for _, member := range h.registry.MembersOf(canonical) {
		peer, ok := member.(Peer)
		if !ok {
			continue
		}
		if exclude != nil && peer.ID() == exclude.ID() {
			continue
		}
		_ = peer.Send(ev)
	}
}

func identityOf(p Peer) (string, bool) {
	if p == nil {
		return "", false
	}
	username, ok := p.Identity()
	if !ok || username == "" {
		return "", false
	}
	return username, true
}
