// Package app hosts the realtime room process: the WebSocket transport over
// the hub, history persistence lifecycle, and the optional gRPC health
// endpoint.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	platformgrpc "github.com/louisbranch/partyline/internal/platform/grpc"
	"github.com/louisbranch/partyline/internal/platform/timeouts"
	"github.com/louisbranch/partyline/internal/services/realtime/history"
	"github.com/louisbranch/partyline/internal/services/realtime/hub"
	"github.com/louisbranch/partyline/internal/services/realtime/room"
)

// HealthService is the gRPC health service name reported while serving.
const HealthService = "realtime.rooms"

// Config defines the inputs for the realtime process.
type Config struct {
	HTTPAddr string
	// GRPCAddr enables the gRPC health endpoint when set.
	GRPCAddr string

	HistoryBackend string
	HistoryPath    string
	HistoryDBPath  string
	RedisAddr      string
	RedisKey       string

	IdentityMode       string
	SessionSecret      string
	SessionIssuer      string
	AuthBaseURL        string
	AuthResourceSecret string
	RequireIdentity    bool

	TrustClientTimestamps bool
	MaxFramesPerSecond    int

	ReadHeaderTimeout   time.Duration
	ShutdownTimeout     time.Duration
	HistoryFlushTimeout time.Duration
}

// Server hosts the realtime HTTP/WebSocket process.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	flushTimeout    time.Duration

	listener   net.Listener
	httpServer *http.Server
	handler    *Handler
	hub        *hub.Hub
	store      *history.Store
	sinkCloser io.Closer
	health     *platformgrpc.HealthServer

	stopPersist context.CancelFunc
	closeOnce   sync.Once
}

// NewServer restores history, binds listeners, and wires the hub.
func NewServer(ctx context.Context, config Config) (*Server, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}
	if config.HistoryFlushTimeout <= 0 {
		config.HistoryFlushTimeout = timeouts.HistoryFlush
	}

	provider, err := newIdentityProvider(config)
	if err != nil {
		return nil, fmt.Errorf("configure identity: %w", err)
	}

	sink, sinkCloser, err := openHistorySink(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("open history sink: %w", err)
	}
	store := history.NewStore(sink)
	restoreCtx, cancelRestore := context.WithTimeout(ctx, timeouts.HistoryPersist)
	if err := store.Restore(restoreCtx); err != nil {
		log.Printf("history: restore failed, starting empty backend=%s err=%v", backendName(config), err)
	} else {
		log.Printf("history: restored %d messages backend=%s", store.Len(), backendName(config))
	}
	cancelRestore()

	listener, err := net.Listen("tcp", httpAddr)
	if err != nil {
		closeQuietly(sinkCloser)
		return nil, fmt.Errorf("listen on %s: %w", httpAddr, err)
	}

	var health *platformgrpc.HealthServer
	if grpcAddr := strings.TrimSpace(config.GRPCAddr); grpcAddr != "" {
		health, err = platformgrpc.ListenHealth(grpcAddr, HealthService)
		if err != nil {
			_ = listener.Close()
			closeQuietly(sinkCloser)
			return nil, err
		}
	}

	persistCtx, stopPersist := context.WithCancel(context.Background())
	store.Start(persistCtx)

	roomHub := hub.New(room.NewRegistry(), store, hub.WithTrustClientTimestamps(config.TrustClientTimestamps))
	handler := NewHandler(roomHub, provider, HandlerOptions{
		RequireIdentity:    config.RequireIdentity,
		MaxFramesPerSecond: config.MaxFramesPerSecond,
	})

	return &Server{
		httpAddr:        listener.Addr().String(),
		shutdownTimeout: config.ShutdownTimeout,
		flushTimeout:    config.HistoryFlushTimeout,
		listener:        listener,
		httpServer: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: config.ReadHeaderTimeout,
		},
		handler:     handler,
		hub:         roomHub,
		store:       store,
		sinkCloser:  sinkCloser,
		health:      health,
		stopPersist: stopPersist,
	}, nil
}

// Run creates and serves a realtime server until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := NewServer(ctx, config)
	if err != nil {
		return fmt.Errorf("init realtime server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve realtime: %w", err)
	}
	return nil
}

// Addr returns the bound HTTP address.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.httpAddr
}

// HealthAddr returns the bound gRPC health address, or "" when disabled.
func (s *Server) HealthAddr() string {
	if s == nil {
		return ""
	}
	return s.health.Addr()
}

// Hub exposes the room hub, mainly for stats.
func (s *Server) Hub() *hub.Hub {
	return s.hub
}

// ListenAndServe serves HTTP (and gRPC health when configured) until the
// context ends, then drains connections.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("realtime server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 2)
	log.Printf("realtime server listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()
	if s.health != nil {
		log.Printf("realtime gRPC health listening on %s", s.health.Addr())
		go func() {
			if err := s.health.Serve(); err != nil {
				serveErr <- err
			}
		}()
		s.health.SetServing(true)
	}

	select {
	case <-ctx.Done():
		s.health.SetServing(false)
		s.handler.CloseSessions()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close disconnects clients, waits for their in-flight frames, stops the
// health endpoint, and flushes history to the sink before releasing it.
func (s *Server) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		s.handler.CloseSessions()
		_ = s.httpServer.Close()
		_ = s.listener.Close()
		s.health.Stop()

		flushCtx, cancel := context.WithTimeout(context.Background(), s.flushTimeout)
		if err := s.handler.WaitSessions(flushCtx); err != nil {
			log.Printf("realtime: sessions still closing at flush: %v", err)
		}
		if err := s.store.Close(flushCtx); err != nil {
			log.Printf("history: final flush failed: %v", err)
		}
		cancel()
		s.stopPersist()
		closeQuietly(s.sinkCloser)
	})
}

func closeQuietly(c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		log.Printf("realtime: close: %v", err)
	}
}
