// Package grpc holds the gRPC health plumbing shared by partyline processes.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer exposes grpc.health.v1 for a process that has no other gRPC
// surface. The empty service name and every named service share one status.
type HealthServer struct {
	server   *gogrpc.Server
	health   *health.Server
	listener net.Listener
	services []string

	stopOnce sync.Once
}

// ListenHealth binds addr and registers the health service. Call Serve to
// start accepting and Stop to drain.
func ListenHealth(addr string, services ...string) (*HealthServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	server := gogrpc.NewServer(gogrpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)

	h := &HealthServer{
		server:   server,
		health:   healthServer,
		listener: listener,
		services: append([]string{""}, services...),
	}
	h.SetServing(false)
	return h, nil
}

// Addr returns the bound listener address.
func (h *HealthServer) Addr() string {
	if h == nil || h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

// SetServing flips every registered service between SERVING and NOT_SERVING.
func (h *HealthServer) SetServing(serving bool) {
	if h == nil {
		return
	}
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	for _, service := range h.services {
		h.health.SetServingStatus(service, status)
	}
}

// Serve blocks until the server stops. A clean Stop returns nil.
func (h *HealthServer) Serve() error {
	if h == nil {
		return errors.New("health server is not configured")
	}
	if err := h.server.Serve(h.listener); err != nil && !errors.Is(err, gogrpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC health: %w", err)
	}
	return nil
}

// Stop marks all services NOT_SERVING and drains in-flight checks.
func (h *HealthServer) Stop() {
	if h == nil {
		return
	}
	h.stopOnce.Do(func() {
		h.health.Shutdown()
		h.server.GracefulStop()
	})
}

// WaitForHealth blocks until the gRPC health check reports SERVING or the context ends.
func WaitForHealth(ctx context.Context, conn *gogrpc.ClientConn, service string, logf func(string, ...any)) error {
	if conn == nil {
		return fmt.Errorf("gRPC connection is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	healthClient := grpc_health_v1.NewHealthClient(conn)
	backoff := 100 * time.Millisecond
	for {
		callCtx, cancel := context.WithTimeout(ctx, time.Second)
		response, err := healthClient.Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
		cancel()
		if err == nil && response.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING {
			return nil
		}
		if logf != nil {
			if err != nil {
				logf("waiting for gRPC health: %v", err)
			} else {
				logf("waiting for gRPC health: status %s", response.GetStatus().String())
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for gRPC health: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, time.Second)
	}
}
