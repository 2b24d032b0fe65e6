package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/gameledger/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added partial index on game_events.conflict_id
const currentSchemaVersion = 1

// Defaults for transaction retries.
const (
	DefaultMaxTxAttempts = 3
	DefaultRetryBackoff  = 25 * time.Millisecond
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrTransient is returned when a transaction kept hitting lock
	// contention after every retry.
	ErrTransient = errors.New("transaction retries exhausted")
)

// Store provides durable storage for the game event ledger.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db  *sql.DB // single writer connection
	rdb *sql.DB // readers; same as db for in-memory databases

	locks       *keyedMutex
	maxAttempts int
	backoff     time.Duration
	now         func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithRetry sets how many times a transaction is attempted on lock
// contention and the base delay between attempts (multiplied by attempt).
func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(s *Store) {
		if maxAttempts < 1 {
			maxAttempts = 1
		}
		s.maxAttempts = maxAttempts
		s.backoff = backoff
	}
}

// WithClock overrides the time source used for created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//   - BEGIN IMMEDIATE transactions, so writers take the lock up front
//
// Use ":memory:" for an ephemeral store.
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{
		db:          db,
		rdb:         db,
		locks:       newKeyedMutex(),
		maxAttempts: DefaultMaxTxAttempts,
		backoff:     DefaultRetryBackoff,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}

	if !isMemoryPath(path) {
		rdb, err := sql.Open("sqlite3", path+"?_query_only=1&_busy_timeout=5000")
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to open read pool: %w", err)
		}
		if err := rdb.Ping(); err != nil {
			rdb.Close()
			db.Close()
			return nil, fmt.Errorf("failed to connect read pool: %w", err)
		}
		s.rdb = rdb
	}

	return s, nil
}

func isMemoryPath(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

// Close closes the database connections.
// Should be called when the store is no longer needed.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	var rerr error
	if s.rdb != nil && s.rdb != s.db {
		rerr = s.rdb.Close()
	}
	if err := s.db.Close(); err != nil {
		return err
	}
	return rerr
}

// DB returns the underlying writer sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the partial conflict_id index used by conflict lookups.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_game_events_conflict
		ON game_events(conflict_id) WHERE conflict_id IS NOT NULL
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

// RegisterGameTeam records one side of a fixture. Re-registering the same
// game team id updates its team, game and date.
func (s *Store) RegisterGameTeam(ctx context.Context, gt model.GameTeam) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO game_teams (game_team_id, team_id, game_id, played_on)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(game_team_id) DO UPDATE SET
			team_id = excluded.team_id,
			game_id = excluded.game_id,
			played_on = excluded.played_on
	`, gt.GameTeamID, gt.TeamID, gt.GameID, formatTime(gt.PlayedOn))
	if err != nil {
		return fmt.Errorf("register game team: %w", err)
	}
	return nil
}
