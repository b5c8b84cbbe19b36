package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// schemaVersion is bumped whenever the table layout changes.
const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS dispatch_history (
    id         TEXT PRIMARY KEY,
    task_id    TEXT NOT NULL,
    ts         INTEGER NOT NULL,
    limiters   TEXT NOT NULL,
    success    INTEGER NOT NULL,
    error      TEXT NOT NULL DEFAULT '',
    retries    INTEGER NOT NULL DEFAULT 0,
    wait_ns    INTEGER NOT NULL DEFAULT 0,
    degraded   INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_dispatch_history_ts ON dispatch_history(ts);
CREATE INDEX IF NOT EXISTS idx_dispatch_history_task ON dispatch_history(task_id);

CREATE TABLE IF NOT EXISTS schema_meta (
    version INTEGER NOT NULL
);
`

// SQLiteConfig contains configuration for the SQLite backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// WALMode enables Write-Ahead Logging for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/history.db",
		MaxOpenConns: 10,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteBackend implements Backend using SQLite.
type SQLiteBackend struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteBackend opens (or creates) the database at config.Path and
// initializes the schema.
func NewSQLiteBackend(config *SQLiteConfig) (*SQLiteBackend, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, &StorageError{Backend: "sqlite", Op: "open", Err: err}
	}
	db.SetMaxOpenConns(config.MaxOpenConns)

	s := &SQLiteBackend{
		db:     db,
		config: config,
		logger: slog.Default().With("component", "history.sqlite"),
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("history storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)
	return s, nil
}

// initialize applies pragmas and creates the schema.
func (s *SQLiteBackend) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return &StorageError{Backend: "sqlite", Op: "enable_wal", Err: err}
		}
	}

	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return &StorageError{Backend: "sqlite", Op: "set_busy_timeout", Err: err}
	}

	if _, err := s.db.Exec(schema); err != nil {
		return &StorageError{Backend: "sqlite", Op: "create_schema", Err: err}
	}

	var version int
	err := s.db.QueryRow("SELECT version FROM schema_meta LIMIT 1").Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		if _, err := s.db.Exec("INSERT INTO schema_meta (version) VALUES (?)", schemaVersion); err != nil {
			return &StorageError{Backend: "sqlite", Op: "insert_schema_version", Err: err}
		}
	case err != nil:
		return &StorageError{Backend: "sqlite", Op: "get_schema_version", Err: err}
	case version != schemaVersion:
		return &StorageError{Backend: "sqlite", Op: "schema_version_mismatch",
			Err: fmt.Errorf("expected schema version %d, got %d", schemaVersion, version)}
	}

	return nil
}

// Store persists a record.
func (s *SQLiteBackend) Store(ctx context.Context, record *Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dispatch_history
		    (id, task_id, ts, limiters, success, error, retries, wait_ns, degraded)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.TaskID,
		record.Timestamp.UnixNano(),
		strings.Join(record.Limiters, ","),
		boolToInt(record.Success),
		record.Error,
		record.Retries,
		record.WaitTime.Nanoseconds(),
		boolToInt(record.Degraded),
	)
	if err != nil {
		return &StorageError{Backend: "sqlite", Op: "store", Err: err}
	}
	return nil
}

// Query returns records matching the filter, newest first.
func (s *SQLiteBackend) Query(ctx context.Context, filter Filter) ([]*Record, error) {
	query := "SELECT id, task_id, ts, limiters, success, error, retries, wait_ns, degraded FROM dispatch_history WHERE 1=1"
	var args []any

	if !filter.Since.IsZero() {
		query += " AND ts >= ?"
		args = append(args, filter.Since.UnixNano())
	}
	if !filter.Until.IsZero() {
		query += " AND ts < ?"
		args = append(args, filter.Until.UnixNano())
	}
	if filter.OnlyFailures {
		query += " AND success = 0"
	}
	query += " ORDER BY ts DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StorageError{Backend: "sqlite", Op: "query", Err: err}
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var (
			r        Record
			ts       int64
			limiters string
			success  int
			waitNS   int64
			degraded int
		)
		if err := rows.Scan(&r.ID, &r.TaskID, &ts, &limiters, &success, &r.Error, &r.Retries, &waitNS, &degraded); err != nil {
			return nil, &StorageError{Backend: "sqlite", Op: "scan", Err: err}
		}
		r.Timestamp = time.Unix(0, ts)
		if limiters != "" {
			r.Limiters = strings.Split(limiters, ",")
		}
		r.Success = success != 0
		r.WaitTime = time.Duration(waitNS)
		r.Degraded = degraded != 0
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Backend: "sqlite", Op: "query", Err: err}
	}
	return records, nil
}

// Prune deletes records older than the given time.
func (s *SQLiteBackend) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM dispatch_history WHERE ts < ?", before.UnixNano())
	if err != nil {
		return 0, &StorageError{Backend: "sqlite", Op: "prune", Err: err}
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, &StorageError{Backend: "sqlite", Op: "prune", Err: err}
	}
	return deleted, nil
}

// Close closes the database.
func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}

// boolToInt converts a bool to the 0/1 encoding used in the schema.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
