package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
)

// querier is satisfied by *sql.DB and *sql.Tx so read helpers serve both the
// snapshot read pool and in-transaction reads.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx is a write transaction scoped to one game team.
//
// A Tx is only valid inside the RunInGameTeam callback that created it.
type Tx struct {
	tx         *sql.Tx
	gameTeamID string
	now        time.Time

	afterCommit []func()
}

// GameTeamID returns the game team this transaction is serialized on.
func (t *Tx) GameTeamID() string {
	return t.gameTeamID
}

// AfterCommit registers fn to run once the transaction commits, in
// registration order, while the game team lock is still held. Nothing runs
// if the transaction rolls back or is retried.
func (t *Tx) AfterCommit(fn func()) {
	t.afterCommit = append(t.afterCommit, fn)
}

// RunInGameTeam runs fn inside a single transaction serialized against every
// other writer for gameTeamID. If fn returns an error the transaction rolls
// back and the error is returned unchanged. Lock contention is retried up to
// the configured attempt count, re-running fn from scratch each time; after
// that an error wrapping ErrTransient is returned.
func (s *Store) RunInGameTeam(ctx context.Context, gameTeamID string, fn func(*Tx) error) error {
	unlock := s.locks.lock(gameTeamID)
	defer unlock()

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		tx, err := s.attempt(ctx, gameTeamID, fn)
		if err == nil {
			for _, hook := range tx.afterCommit {
				hook()
			}
			return nil
		}
		if !isRetryable(err) {
			return err
		}

		lastErr = err
		slog.Debug("retrying game team transaction",
			"game_team_id", gameTeamID,
			"attempt", attempt,
			"error", err,
		)
		if attempt < s.maxAttempts && s.backoff > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.backoff * time.Duration(attempt)):
			}
		}
	}

	return fmt.Errorf("%w: game team %s after %d attempts: %v", ErrTransient, gameTeamID, s.maxAttempts, lastErr)
}

func (s *Store) attempt(ctx context.Context, gameTeamID string, fn func(*Tx) error) (*Tx, error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer sqlTx.Rollback() // No-op if committed

	tx := &Tx{tx: sqlTx, gameTeamID: gameTeamID, now: s.now()}
	if err := fn(tx); err != nil {
		return nil, err
	}
	if err := sqlTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return tx, nil
}

// isRetryable reports whether err is SQLite lock contention.
func isRetryable(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// lock blocks until key is held and returns the matching unlock.
func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
