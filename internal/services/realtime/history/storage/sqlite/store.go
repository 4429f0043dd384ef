// Package sqlite persists chat history snapshots in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/louisbranch/partyline/internal/platform/errors"
	"github.com/louisbranch/partyline/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/partyline/internal/services/realtime/history"
	"github.com/louisbranch/partyline/internal/services/realtime/history/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed history persistence.
type Store struct {
	sqlDB *sql.DB
}

var _ history.Sink = (*Store)(nil)

// Open opens a history database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, apperrors.New(apperrors.CodeConfigInvalid, "history db path is required")
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history db dir: %w", err)
		}
	}
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Load returns the stored snapshot in position order.
func (s *Store) Load(ctx context.Context) ([]history.Message, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT username, message, timestamp FROM chat_history ORDER BY position ASC`)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeHistoryUnavailable, "query chat history", err)
	}
	defer rows.Close()

	messages := []history.Message{}
	for rows.Next() {
		var m history.Message
		if err := rows.Scan(&m.Username, &m.Message, &m.Timestamp); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeHistoryCorrupt, "scan chat history row", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeHistoryUnavailable, "iterate chat history", err)
	}
	return messages, nil
}

// Save replaces the stored snapshot with messages in one transaction.
func (s *Store) Save(ctx context.Context, messages []history.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_history`); err != nil {
		return fmt.Errorf("clear chat history: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chat_history (position, username, message, timestamp) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chat history insert: %w", err)
	}
	defer stmt.Close()

	for i, m := range messages {
		if _, err := stmt.ExecContext(ctx, i, m.Username, m.Message, m.Timestamp); err != nil {
			return fmt.Errorf("insert chat history row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chat history: %w", err)
	}
	return nil
}
