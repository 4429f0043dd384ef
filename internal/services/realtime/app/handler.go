package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	apperrors "github.com/louisbranch/partyline/internal/platform/errors"
	"github.com/louisbranch/partyline/internal/platform/requestctx"
	"github.com/louisbranch/partyline/internal/services/realtime/hub"
	"github.com/louisbranch/partyline/internal/services/realtime/identity"
	"golang.org/x/net/websocket"
)

const (
	maxFramePayloadBytes   = 16 * 1024
	maxFrameEnvelopeBytes  = maxFramePayloadBytes + 1024
	maxDecodeErrorsPerConn = 3

	defaultMaxFramesPerSecond = 120
)

// HandlerOptions tunes the WebSocket boundary.
type HandlerOptions struct {
	// RequireIdentity rejects upgrades that do not resolve to a user.
	RequireIdentity bool
	// MaxFramesPerSecond closes connections that exceed it. Zero uses 120.
	MaxFramesPerSecond int
}

// Handler serves /ws, /up, and /stats, and tracks live sessions so they can
// be closed on shutdown.
type Handler struct {
	hub      *hub.Hub
	identity identity.Provider
	opts     HandlerOptions
	mux      *http.ServeMux

	mu       sync.Mutex
	sessions map[*wsSession]struct{}
	closed   bool
	// active counts serveConn calls that have not finished their
	// disconnect path.
	active sync.WaitGroup
}

// NewHandler wires routes over h. A nil provider serves everyone anonymously.
func NewHandler(h *hub.Hub, provider identity.Provider, opts HandlerOptions) *Handler {
	if provider == nil {
		provider = identity.Anonymous{}
	}
	if opts.MaxFramesPerSecond <= 0 {
		opts.MaxFramesPerSecond = defaultMaxFramesPerSecond
	}
	handler := &Handler{
		hub:      h,
		identity: provider,
		opts:     opts,
		sessions: make(map[*wsSession]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/stats", handler.serveStats)

	wsHandler := websocket.Handler(handler.serveConn)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		r, ok := handler.resolveIdentity(w, r)
		if !ok {
			return
		}
		wsHandler.ServeHTTP(w, r)
	})
	handler.mux = mux
	return handler
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) serveStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.hub.Stats())
}

// resolveIdentity attaches the resolved username to the request context.
// Without RequireIdentity, every failure degrades to an anonymous session.
func (h *Handler) resolveIdentity(w http.ResponseWriter, r *http.Request) (*http.Request, bool) {
	username, err := h.identity.Resolve(r.Context(), r)
	switch {
	case err == nil && username != "":
		return r.WithContext(requestctx.WithIdentity(r.Context(), username)), true
	case err == nil, errors.Is(err, identity.ErrNoIdentity):
		if h.opts.RequireIdentity {
			log.Printf("realtime: websocket unauthorized: no credentials remote=%s", r.RemoteAddr)
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return nil, false
		}
		return r, true
	default:
		code := apperrors.CodeOf(err)
		if h.opts.RequireIdentity {
			log.Printf("realtime: websocket unauthorized: code=%s remote=%s err=%v", code, r.RemoteAddr, err)
			status := code.HTTPStatus()
			if status == http.StatusInternalServerError {
				status = http.StatusUnauthorized
			}
			http.Error(w, "authentication required", status)
			return nil, false
		}
		log.Printf("realtime: identity resolution failed, serving anonymously code=%s remote=%s err=%v", code, r.RemoteAddr, err)
		return r, true
	}
}

func (h *Handler) serveConn(conn *websocket.Conn) {
	conn.MaxPayloadBytes = maxFrameEnvelopeBytes
	username := ""
	if request := conn.Request(); request != nil {
		username, _ = requestctx.IdentityFromContext(request.Context())
	}

	session := newWSSession(conn, username)
	if !h.track(session) {
		session.close()
		return
	}
	go session.writeLoop()

	h.hub.Connect(session)
	defer func() {
		h.hub.Disconnect(session)
		session.close()
		h.untrack(session)
	}()

	h.readLoop(session)
}

// readLoop dispatches frames until the peer goes away or trips a guard.
func (h *Handler) readLoop(session *wsSession) {
	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		var frame wsFrame
		if err := websocket.JSON.Receive(session.conn, &frame); err != nil {
			switch {
			case errors.Is(err, io.EOF):
				return
			case errors.Is(err, websocket.ErrFrameTooLarge):
				log.Printf("realtime: session=%s dropped oversized frame", session.id)
				continue
			}
			select {
			case <-session.done:
				return
			default:
			}
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if !errors.As(err, &syntaxErr) && !errors.As(err, &typeErr) {
				return
			}
			decodeErrors++
			if decodeErrors >= maxDecodeErrorsPerConn {
				log.Printf("realtime: session=%s closing after %d decode errors", session.id, decodeErrors)
				return
			}
			continue
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > h.opts.MaxFramesPerSecond {
			log.Printf("realtime: session=%s rate limit exceeded, closing", session.id)
			return
		}

		if len(frame.Payload) > maxFramePayloadBytes {
			log.Printf("realtime: session=%s dropped %s frame: payload too large", session.id, frame.Type)
			continue
		}

		if err := h.dispatch(session, frame); err != nil {
			decodeErrors++
			log.Printf("realtime: session=%s invalid %s payload: %v", session.id, frame.Type, err)
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0
	}
}

func (h *Handler) dispatch(session *wsSession, frame wsFrame) error {
	switch frame.Type {
	case frameJoinRoom:
		var payload roomPayload
		if err := decodePayload(frame.Payload, &payload); err != nil {
			return err
		}
		h.hub.Join(session, payload.Room.or(""))
	case frameLeaveRoom:
		var payload roomPayload
		if err := decodePayload(frame.Payload, &payload); err != nil {
			return err
		}
		h.hub.Leave(session, payload.Room.or(""))
	case frameSendMessage:
		var payload sendPayload
		if err := decodePayload(frame.Payload, &payload); err != nil {
			return err
		}
		h.hub.SendMessage(session, payload.Room.or(""), payload.Message.or(""), payload.Timestamp.ptr())
	case frameUserAction:
		var payload actionPayload
		if err := decodePayload(frame.Payload, &payload); err != nil {
			return err
		}
		h.hub.RelayAction(session, payload.Room.or(""), payload.Action.or(""), payload.Data)
	default:
		log.Printf("realtime: session=%s ignoring unknown frame type %q", session.id, frame.Type)
	}
	return nil
}

func (h *Handler) track(session *wsSession) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.sessions[session] = struct{}{}
	h.active.Add(1)
	return true
}

func (h *Handler) untrack(session *wsSession) {
	h.mu.Lock()
	delete(h.sessions, session)
	h.mu.Unlock()
	h.active.Done()
}

// CloseSessions closes every live connection and refuses new ones. Each
// closed session runs its normal disconnect path.
func (h *Handler) CloseSessions() {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*wsSession, 0, len(h.sessions))
	for session := range h.sessions {
		sessions = append(sessions, session)
	}
	h.mu.Unlock()

	for _, session := range sessions {
		session.close()
	}
}

// WaitSessions blocks until every tracked session has run its disconnect
// path, including any frame it was dispatching. Call it after
// CloseSessions.
func (h *Handler) WaitSessions(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.active.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SessionCount reports live connections.
func (h *Handler) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}
