package hub

import "github.com/louisbranch/partyline/internal/services/realtime/room"

// Connect registers p. Identified peers are announced to every connected
// peer, p included.
func (h *Hub) Connect(p Peer) {
	if p == nil {
		return
	}
	h.sequence.Lock()
	defer h.sequence.Unlock()

	h.peersMu.Lock()
	h.peers[p.ID()] = p
	h.peersMu.Unlock()

	if username, ok := identityOf(p); ok {
		h.broadcastAll(UserConnected{Username: username})
	}
}

// Disconnect unregisters p and removes it from every room. It is safe to
// call more than once; only the first call announces the departure. When
// Disconnect returns, p is a member of no room.
func (h *Hub) Disconnect(p Peer) {
	if p == nil {
		return
	}
	h.sequence.Lock()
	defer h.sequence.Unlock()

	h.peersMu.Lock()
	_, present := h.peers[p.ID()]
	delete(h.peers, p.ID())
	h.peersMu.Unlock()

	if username, ok := identityOf(p); ok && present {
		h.broadcastAll(UserDisconnected{Username: username})
	}
	h.registry.DropAll(p)
}

// Join adds p to the canonical room, replays history to p alone, then
// announces p to the room including p. The replay is taken under the
// sequence lock, so it matches history exactly at the moment of joining.
func (h *Hub) Join(p Peer, rawRoom string) {
	username, ok := identityOf(p)
	if !ok {
		return
	}
	canonical := room.Canonicalize(room.OpJoin, rawRoom)

	h.sequence.Lock()
	defer h.sequence.Unlock()

	h.registry.Join(p, canonical)
	_ = p.Send(ChatHistory{Messages: h.store.Snapshot()})
	h.broadcast(canonical, UserJoined{Username: username, Room: canonical}, nil)
}

// Leave removes p from the canonical room and announces it to the members
// that remain.
func (h *Hub) Leave(p Peer, rawRoom string) {
	username, ok := identityOf(p)
	if !ok {
		return
	}
	canonical := room.Canonicalize(room.OpLeave, rawRoom)

	h.sequence.Lock()
	defer h.sequence.Unlock()

	h.registry.Leave(p, canonical)
	h.broadcast(canonical, UserLeft{Username: username, Room: canonical}, nil)
}

// RoomsOf returns the canonical rooms p is joined to.
func (h *Hub) RoomsOf(p Peer) []string {
	return h.registry.RoomsOf(p)
}

func (h *Hub) broadcastAll(ev Event) {
	h.peersMu.RLock()
	peers := make([]Peer, 0, len(h.peers))
	for _, peer := range h.peers {
		peers = append(peers, peer)
	}
	h.peersMu.RUnlock()

	for _, peer := range peers {
		_ = peer.Send(ev)
	}
}
