// Package jsonfile persists chat history as an indented JSON array on local
// disk, replacing the whole file on every save.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/louisbranch/partyline/internal/platform/errors"
	"github.com/louisbranch/partyline/internal/services/realtime/history"
)

// Sink reads and writes one history file.
type Sink struct {
	path string
}

var _ history.Sink = (*Sink)(nil)

// New returns a sink for path. The file does not need to exist yet.
func New(path string) (*Sink, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, apperrors.New(apperrors.CodeConfigInvalid, "history path is required")
	}
	return &Sink{path: filepath.Clean(path)}, nil
}

// Path returns the file the sink writes.
func (s *Sink) Path() string {
	return s.path
}

// Load reads the file. A missing file is an empty history.
func (s *Sink) Load(ctx context.Context) ([]history.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []history.Message{}, nil
	}
	if err != nil {
		return nil, apperrors.WrapWithMetadata(apperrors.CodeHistoryUnavailable, "read history file",
			map[string]string{"path": s.path}, err)
	}

	var messages []history.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, apperrors.WrapWithMetadata(apperrors.CodeHistoryCorrupt, "decode history file",
			map[string]string{"path": s.path}, err)
	}
	if messages == nil {
		messages = []history.Message{}
	}
	return messages, nil
}

// Save writes messages to a temp file in the same directory and renames it
// over the previous file, so readers never observe a partial write.
func (s *Sink) Save(ctx context.Context, messages []history.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if messages == nil {
		messages = []history.Message{}
	}
	data, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp history file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp history file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp history file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp history file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace history file: %w", err)
	}
	return nil
}
