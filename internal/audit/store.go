// Package audit persists a best-effort record of every tool invocation.
// Recording failures are logged and never affect the invocation result.
package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/mcpify/mcpify/pkg/executor"
)

const schema = `
CREATE TABLE IF NOT EXISTS executions (
	id TEXT PRIMARY KEY,
	tool TEXT NOT NULL,
	arguments TEXT,
	success INTEGER NOT NULL,
	error TEXT,
	duration_ms INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_executions_tool ON executions(tool);
`

// Store is a SQLite-backed execution log.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open creates or opens the execution log at path.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}

	logger.Info().Str("path", path).Msg("Audit store opened")
	return &Store{db: db, logger: logger}, nil
}

// Record stores one execution result. Best effort: failures are logged
// and swallowed.
func (s *Store) Record(result executor.Result, args map[string]interface{}) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		argsJSON = []byte("{}")
	}

	_, err = s.db.Exec(
		`INSERT INTO executions (id, tool, arguments, success, error, duration_ms, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(),
		result.ToolName,
		string(argsJSON),
		result.Success,
		result.Error,
		result.ExecutionTimeMs,
		time.Now().UTC(),
	)
	if err != nil {
		s.logger.Warn().Err(err).Str("tool", result.ToolName).Msg("Failed to record execution")
	}
}

// Count returns the number of recorded executions.
func (s *Store) Count() (int64, error) {
	var count int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM executions`).Scan(&count)
	return count, err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
