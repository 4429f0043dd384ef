// Package main starts the realtime room service and handles termination.
//
// The process relays chat and game-state deltas between WebSocket clients
// grouped into rooms, and keeps a bounded shared chat history.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	realtimecmd "github.com/louisbranch/partyline/internal/cmd/realtime"
	entrypoint "github.com/louisbranch/partyline/internal/platform/cmd"
	"github.com/louisbranch/partyline/internal/platform/config"
)

func main() {
	cfg, err := realtimecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf(entrypoint.ServiceRealtime, "parse flags: %v", err)
	}
	log.SetPrefix("[REALTIME] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := realtimecmd.Run(ctx, cfg); err != nil {
		stop()
		config.Exitf(entrypoint.ServiceRealtime, "failed to serve: %v", err)
	}
}
