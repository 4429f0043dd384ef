// Package realtime parses realtime command flags and composes the room
// server entrypoint.
package realtime

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/partyline/internal/platform/cmd"
	platformgrpc "github.com/louisbranch/partyline/internal/platform/grpc"
	server "github.com/louisbranch/partyline/internal/services/realtime/app"
)

const healthcheckTimeout = 3 * time.Second

// Config holds realtime command configuration.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":5000"`
	GRPCAddr string `env:"GRPC_ADDR"`

	HistoryBackend string `env:"HISTORY_BACKEND" envDefault:"json"`
	HistoryPath    string `env:"HISTORY_PATH"    envDefault:"chat_history.json"`
	HistoryDBPath  string `env:"HISTORY_DB_PATH" envDefault:"data/history.db"`
	RedisAddr      string `env:"REDIS_ADDR"      envDefault:"localhost:6379"`
	RedisKey       string `env:"REDIS_KEY"       envDefault:"partyline:chat_history"`

	IdentityMode string `env:"IDENTITY_MODE"        envDefault:"jwt"`
	// SessionSecret is required by the default jwt mode; startup fails
	// without it.
	SessionSecret      string `env:"SESSION_SECRET"`
	SessionIssuer      string `env:"SESSION_ISSUER"`
	AuthBaseURL        string `env:"AUTH_BASE_URL"`
	AuthResourceSecret string `env:"AUTH_RESOURCE_SECRET"`
	RequireIdentity    bool   `env:"REQUIRE_IDENTITY"     envDefault:"false"`

	TrustClientTimestamps bool `env:"TRUST_CLIENT_TIMESTAMPS" envDefault:"true"`
	MaxFramesPerSecond    int  `env:"MAX_FRAMES_PER_SECOND"   envDefault:"120"`

	// Healthcheck probes GRPCAddr and exits instead of serving.
	Healthcheck bool
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP/WebSocket listen address")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "gRPC health listen address (disabled when empty)")
	fs.StringVar(&cfg.HistoryBackend, "history-backend", cfg.HistoryBackend, "chat history backend: json, sqlite, or redis")
	fs.StringVar(&cfg.HistoryPath, "history-path", cfg.HistoryPath, "chat history JSON file")
	fs.StringVar(&cfg.HistoryDBPath, "history-db-path", cfg.HistoryDBPath, "chat history SQLite database")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for the redis history backend")
	fs.StringVar(&cfg.RedisKey, "redis-key", cfg.RedisKey, "Redis key holding chat history")
	fs.StringVar(&cfg.IdentityMode, "identity-mode", cfg.IdentityMode, "identity resolution: jwt (requires PARTYLINE_SESSION_SECRET), introspect, or anonymous")
	fs.StringVar(&cfg.AuthBaseURL, "auth-base-url", cfg.AuthBaseURL, "auth service base URL for introspection")
	fs.BoolVar(&cfg.RequireIdentity, "require-identity", cfg.RequireIdentity, "reject WebSocket upgrades without an identity")
	fs.BoolVar(&cfg.TrustClientTimestamps, "trust-client-timestamps", cfg.TrustClientTimestamps, "keep client-supplied message timestamps")
	fs.IntVar(&cfg.MaxFramesPerSecond, "max-frames-per-second", cfg.MaxFramesPerSecond, "per-connection inbound frame limit")
	fs.BoolVar(&cfg.Healthcheck, "healthcheck", false, "probe the gRPC health endpoint and exit")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the realtime app and serves until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Healthcheck {
		return Healthcheck(ctx, cfg)
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceRealtime, func(context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr:              cfg.HTTPAddr,
			GRPCAddr:              cfg.GRPCAddr,
			HistoryBackend:        cfg.HistoryBackend,
			HistoryPath:           cfg.HistoryPath,
			HistoryDBPath:         cfg.HistoryDBPath,
			RedisAddr:             cfg.RedisAddr,
			RedisKey:              cfg.RedisKey,
			IdentityMode:          cfg.IdentityMode,
			SessionSecret:         cfg.SessionSecret,
			SessionIssuer:         cfg.SessionIssuer,
			AuthBaseURL:           cfg.AuthBaseURL,
			AuthResourceSecret:    cfg.AuthResourceSecret,
			RequireIdentity:       cfg.RequireIdentity,
			TrustClientTimestamps: cfg.TrustClientTimestamps,
			MaxFramesPerSecond:    cfg.MaxFramesPerSecond,
		}); err != nil {
			return fmt.Errorf("serve realtime: %w", err)
		}
		return nil
	})
}

// Healthcheck probes the gRPC health endpoint of a running process.
func Healthcheck(ctx context.Context, cfg Config) error {
	addr := strings.TrimSpace(cfg.GRPCAddr)
	if addr == "" {
		return errors.New("healthcheck requires a grpc address")
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return platformgrpc.Probe(ctx, addr, server.HealthService, healthcheckTimeout)
}
