package app

import (
	"context"
	"io"
	"strings"

	apperrors "github.com/louisbranch/partyline/internal/platform/errors"
	"github.com/louisbranch/partyline/internal/services/realtime/history"
	"github.com/louisbranch/partyline/internal/services/realtime/history/storage/jsonfile"
	historyredis "github.com/louisbranch/partyline/internal/services/realtime/history/storage/redis"
	historysqlite "github.com/louisbranch/partyline/internal/services/realtime/history/storage/sqlite"
)

// History backends selectable through Config.HistoryBackend.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

func backendName(config Config) string {
	backend := strings.ToLower(strings.TrimSpace(config.HistoryBackend))
	if backend == "" {
		return BackendJSON
	}
	return backend
}

// openHistorySink returns the configured sink and, when it holds a
// connection, the closer that releases it.
func openHistorySink(ctx context.Context, config Config) (history.Sink, io.Closer, error) {
	switch backend := backendName(config); backend {
	case BackendJSON:
		path := config.HistoryPath
		if strings.TrimSpace(path) == "" {
			path = "chat_history.json"
		}
		sink, err := jsonfile.New(path)
		if err != nil {
			return nil, nil, err
		}
		return sink, nil, nil
	case BackendSQLite:
		store, err := historysqlite.Open(ctx, config.HistoryDBPath)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	case BackendRedis:
		store, err := historyredis.Dial(ctx, config.RedisAddr, config.RedisKey)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return nil, nil, apperrors.WithMetadata(apperrors.CodeConfigInvalid, "unknown history backend",
			map[string]string{"backend": backend})
	}
}
