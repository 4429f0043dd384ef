// Package room resolves client room labels and tracks which connections are
// joined to which rooms.
package room

import (
	"sort"
	"sync"
)

// Member is a connection that can be placed in rooms. Members are compared
// by value, so implementations are expected to be pointers.
type Member interface {
	ID() string
}

// Registry is the bidirectional room membership index. Both directions are
// guarded by one lock, so a member listed in a room always lists that room.
type Registry struct {
	mu      sync.RWMutex
	members map[string]map[Member]struct{}
	rooms   map[Member]map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		members: make(map[string]map[Member]struct{}),
		rooms:   make(map[Member]map[string]struct{}),
	}
}

// Join adds m to room. It reports whether membership changed.
func (r *Registry) Join(m Member, room string) bool {
	if m == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.members[room]
	if !ok {
		set = make(map[Member]struct{})
		r.members[room] = set
	}
	if _, already := set[m]; already {
		return false
	}
	set[m] = struct{}{}

	joined, ok := r.rooms[m]
	if !ok {
		joined = make(map[string]struct{})
		r.rooms[m] = joined
	}
	joined[room] = struct{}{}
	return true
}

// Leave removes m from room. It reports whether membership changed.
func (r *Registry) Leave(m Member, room string) bool {
	if m == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(m, room)
}

// DropAll removes m from every room and returns the rooms it left, sorted.
func (r *Registry) DropAll(m Member) []string {
	if m == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	joined := r.rooms[m]
	left := make([]string, 0, len(joined))
	for room := range joined {
		left = append(left, room)
	}
	for _, room := range left {
		r.removeLocked(m, room)
	}
	sort.Strings(left)
	return left
}

func (r *Registry) removeLocked(m Member, room string) bool {
	set, ok := r.members[room]
	if !ok {
		return false
	}
	if _, present := set[m]; !present {
		return false
	}
	delete(set, m)
	if len(set) == 0 {
		delete(r.members, room)
	}
	if joined, ok := r.rooms[m]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(r.rooms, m)
		}
	}
	return true
}

// MembersOf returns a copy of room's members, ordered by ID. Unknown rooms
// are empty.
func (r *Registry) MembersOf(room string) []Member {
	r.mu.RLock()
	set := r.members[room]
	out := make([]Member, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// RoomsOf returns the rooms m is joined to, sorted.
func (r *Registry) RoomsOf(m Member) []string {
	r.mu.RLock()
	joined := r.rooms[m]
	out := make([]string, 0, len(joined))
	for room := range joined {
		out = append(out, room)
	}
	r.mu.RUnlock()

	sort.Strings(out)
	return out
}

// Len returns the number of non-empty rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}
