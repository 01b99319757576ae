package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"scoreline/metrics"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// DefaultQueryTimeout bounds a single query when no timeout is configured.
const DefaultQueryTimeout = 3 * time.Second

// SQLite holds the read and write pools for the match database. WAL mode lets
// the read pool run concurrently with the single writer.
type SQLite struct {
	WriteDB      *sql.DB
	ReadDB       *sql.DB
	Path         string
	Logger       *zap.SugaredLogger
	queryTimeout time.Duration
}

// configureSQLiteConnection sets WAL, foreign keys and busy timeout on a pool.
func configureSQLiteConnection(db *sql.DB, dbPath, poolType string, logger *zap.SugaredLogger) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}

	var fkEnabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		return fmt.Errorf("failed to verify foreign keys: %w", err)
	}
	if fkEnabled != 1 {
		return fmt.Errorf("foreign keys not enabled on %s pool", poolType)
	}

	// in-memory databases report "memory" instead of "wal"
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to query journal mode: %w", err)
	}
	if dbPath != ":memory:" && journalMode != "wal" {
		return fmt.Errorf("WAL mode not enabled on %s pool (got %s)", poolType, journalMode)
	}
	logger.Debugf("SQLite %s pool configured, journal mode %s", poolType, journalMode)
	return nil
}

// NewSQLite opens the database at dbPath and creates the schema.
func NewSQLite(dbPath string, queryTimeout time.Duration, logger *zap.SugaredLogger) (*SQLite, error) {
	if err := ValidateDatabasePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}
	if queryTimeout <= 0 {
		queryTimeout = DefaultQueryTimeout
	}

	actualPath := dbPath
	if dbPath == ":memory:" {
		// both pools must see the same in-memory database
		actualPath = "file::memory:?cache=shared"
	} else if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	writeDB, err := sql.Open("sqlite", actualPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite write database: %w", err)
	}
	if err := configureSQLiteConnection(writeDB, dbPath, "write", logger); err != nil {
		_ = writeDB.Close()
		return nil, fmt.Errorf("failed to configure write connection: %w", err)
	}
	writeDB.SetMaxOpenConns(1)
	writeDB.SetMaxIdleConns(1)
	writeDB.SetConnMaxLifetime(0)

	readDB, err := sql.Open("sqlite", actualPath)
	if err != nil {
		_ = writeDB.Close()
		return nil, fmt.Errorf("failed to open SQLite read database: %w", err)
	}
	if err := configureSQLiteConnection(readDB, dbPath, "read", logger); err != nil {
		_ = writeDB.Close()
		_ = readDB.Close()
		return nil, fmt.Errorf("failed to configure read connection: %w", err)
	}
	readDB.SetMaxOpenConns(10)
	readDB.SetMaxIdleConns(5)
	readDB.SetConnMaxLifetime(5 * time.Minute)

	s := &SQLite{
		WriteDB:      writeDB,
		ReadDB:       readDB,
		Path:         dbPath,
		Logger:       logger,
		queryTimeout: queryTimeout,
	}
	if err := s.createTables(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Infow("SQLite database initialized", "path", dbPath, "query_timeout", queryTimeout)
	return s, nil
}

func (s *SQLite) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS matches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sport TEXT NOT NULL,
		home_team TEXT NOT NULL,
		away_team TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'scheduled' CHECK (status IN ('scheduled', 'live', 'finished')),
		start_time DATETIME NOT NULL,
		end_time DATETIME NOT NULL,
		home_score INTEGER NOT NULL DEFAULT 0,
		away_score INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_matches_created_at ON matches(created_at DESC);

	CREATE TABLE IF NOT EXISTS commentary (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		match_id INTEGER NOT NULL,
		minute INTEGER NOT NULL,
		sequence INTEGER NOT NULL,
		period TEXT NOT NULL,
		event_type TEXT NOT NULL,
		actor TEXT NOT NULL,
		team TEXT NOT NULL,
		message TEXT NOT NULL,
		metadata TEXT, -- JSON object
		tags TEXT, -- JSON array
		created_at DATETIME NOT NULL,
		FOREIGN KEY (match_id) REFERENCES matches(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_commentary_match_created ON commentary(match_id, created_at DESC);
	`
	if _, err := s.WriteDB.Exec(schema); err != nil {
		return err
	}
	return nil
}

// queryContext derives the per-query context and returns a func that records
// the query duration and releases the context.
func (s *SQLite) queryContext(ctx context.Context, operation string) (context.Context, func()) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	return ctx, func() {
		cancel()
		metrics.StorageQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// wrapError tags err with operation and maps timeouts and closed pools onto
// the package sentinels.
func wrapError(ctx context.Context, operation string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", operation, ErrQueryTimeout)
	case errors.Is(err, sql.ErrConnDone) || strings.Contains(err.Error(), "database is closed"):
		return fmt.Errorf("%s: %w", operation, ErrDatabaseClosed)
	case strings.Contains(err.Error(), "constraint failed"):
		return fmt.Errorf("%s: %w: %v", operation, ErrConstraintViolation, err)
	}
	return fmt.Errorf("%s: %w", operation, err)
}

// WithTransaction runs fn in a write transaction, rolling back on error or
// panic.
func (s *SQLite) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.WriteDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("failed to rollback transaction (original error: %w, rollback error: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// HealthCheck verifies the database connection is alive
func (s *SQLite) HealthCheck(ctx context.Context) error {
	return s.ReadDB.PingContext(ctx)
}

// Close closes both connection pools.
func (s *SQLite) Close() error {
	var writeErr, readErr error
	if s.WriteDB != nil {
		writeErr = s.WriteDB.Close()
	}
	if s.ReadDB != nil {
		readErr = s.ReadDB.Close()
	}
	if writeErr != nil {
		return fmt.Errorf("failed to close write pool: %w", writeErr)
	}
	if readErr != nil {
		return fmt.Errorf("failed to close read pool: %w", readErr)
	}
	return nil
}

// ValidateDatabasePath rejects paths that could escape the working
// directory. Temp directories are allowed for tests.
func ValidateDatabasePath(dbPath string) error {
	if dbPath == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if dbPath == ":memory:" {
		return nil
	}
	if len(dbPath) > 512 {
		return fmt.Errorf("database path exceeds maximum length of 512 characters")
	}
	if strings.Contains(dbPath, "\x00") {
		return fmt.Errorf("null bytes not allowed in path")
	}
	if strings.Contains(dbPath, "..") {
		return fmt.Errorf("path traversal not allowed (..): %s", dbPath)
	}
	if filepath.IsAbs(dbPath) && !strings.HasPrefix(dbPath, os.TempDir()) {
		return fmt.Errorf("absolute paths not allowed: %s", dbPath)
	}
	return nil
}
