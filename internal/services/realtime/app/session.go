package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/louisbranch/partyline/internal/services/realtime/hub"
	"golang.org/x/net/websocket"
)

const (
	outboundQueueSize = 256
	writeTimeout      = 10 * time.Second
)

var (
	errSessionClosed = errors.New("session closed")
	errQueueFull     = errors.New("outbound queue full")
)

// wsSession is one client connection. It satisfies hub.Peer: Send only
// enqueues, and a dedicated writer drains the queue onto the socket.
type wsSession struct {
	id       string
	username string
	conn     *websocket.Conn

	outbound  chan wsFrame
	done      chan struct{}
	closeOnce sync.Once
	failed    atomic.Bool
}

var _ hub.Peer = (*wsSession)(nil)

func newWSSession(conn *websocket.Conn, username string) *wsSession {
	return &wsSession{
		id:       uuid.NewString(),
		username: username,
		conn:     conn,
		outbound: make(chan wsFrame, outboundQueueSize),
		done:     make(chan struct{}),
	}
}

func (s *wsSession) ID() string { return s.id }

func (s *wsSession) Identity() (string, bool) {
	return s.username, s.username != ""
}

// Send enqueues ev. A full queue means the client is not keeping up; the
// session is marked failed and closed instead of stalling the hub.
func (s *wsSession) Send(ev hub.Event) error {
	if s.failed.Load() {
		return errSessionClosed
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.EventName(), err)
	}
	frame := wsFrame{Type: ev.EventName(), Payload: payload}

	select {
	case <-s.done:
		return errSessionClosed
	default:
	}
	select {
	case s.outbound <- frame:
		return nil
	default:
		log.Printf("realtime: session=%s outbound queue full, closing", s.id)
		s.fail()
		return errQueueFull
	}
}

// writeLoop runs until the session closes or a write fails.
func (s *wsSession) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case frame := <-s.outbound:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := websocket.JSON.Send(s.conn, frame); err != nil {
				s.fail()
				return
			}
		}
	}
}

func (s *wsSession) fail() {
	s.failed.Store(true)
	s.close()
}

func (s *wsSession) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.conn != nil {
			_ = s.conn.Close()
		}
	})
}
