// Package cmd holds the startup plumbing shared by service commands: env
// then flag configuration, and a telemetry-scoped run loop.
package cmd

import (
	"context"
	"errors"
	"flag"
	"log"
	"strings"

	"github.com/louisbranch/partyline/internal/platform/config"
	"github.com/louisbranch/partyline/internal/platform/otel"
	"github.com/louisbranch/partyline/internal/platform/timeouts"
)

// ServiceRealtime names the realtime room process in telemetry and CLI output.
const ServiceRealtime = "realtime"

var (
	errNoConfigTarget = errors.New("config target is required")
	errNoFlagSet      = errors.New("flag parser is required")
	errNoServiceName  = errors.New("service name is required")
	errNoRunFunc      = errors.New("run function is required")
)

// ParseConfig fills cfg from PARTYLINE_ environment variables. Flags bound
// afterwards default to these values.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errNoConfigTarget
	}
	return config.ParseEnv(cfg)
}

// ParseArgs parses args into fs. A nil slice parses as no arguments.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errNoFlagSet
	}
	return fs.Parse(append([]string{}, args...))
}

// RunWithTelemetry installs the tracer provider for service, calls run, and
// flushes pending spans within timeouts.Shutdown once run returns.
func RunWithTelemetry(ctx context.Context, service string, run func(context.Context) error) error {
	if service = strings.TrimSpace(service); service == "" {
		return errNoServiceName
	}
	if run == nil {
		return errNoRunFunc
	}
	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return err
	}
	defer flushTelemetry(service, shutdown)
	return run(ctx)
}

func flushTelemetry(service string, shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Printf("%s: otel shutdown: %v", service, err)
	}
}
