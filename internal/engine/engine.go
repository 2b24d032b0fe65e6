package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/gameledger/internal/conflict"
	"github.com/roach88/gameledger/internal/model"
	"github.com/roach88/gameledger/internal/notify"
	"github.com/roach88/gameledger/internal/store"
)

// Engine executes ledger commands and queries against a store.
//
// Thread-safety: all methods are safe for concurrent use. Writers for the
// same game team are serialized by the store; readers never block writers.
type Engine struct {
	store    *store.Store
	hub      *notify.Hub
	ids      IDGenerator
	detector conflict.Detector
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger. Default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithConflictWindow sets the PeriodSecond tolerance, in seconds, within
// which two events may collide.
//
// Default: 5 seconds (conflict.DefaultWindow).
// Use WithConflictWindow(0) to require an exact second match.
func WithConflictWindow(seconds int) Option {
	return func(e *Engine) {
		e.detector = conflict.New(seconds)
	}
}

// WithIDGenerator overrides the event and conflict id source.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithHub publishes changes to an existing hub instead of a private one.
func WithHub(h *notify.Hub) Option {
	return func(e *Engine) {
		e.hub = h
	}
}

// New creates an Engine over s.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		ids:      UUIDv7Generator{},
		detector: conflict.New(conflict.DefaultWindow),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.hub == nil {
		e.hub = notify.NewHub(e.logger)
	}
	return e
}

// Subscribe opens a change feed for the given game teams. A game-level
// subscriber passes both sides' ids.
func (e *Engine) Subscribe(gameTeamIDs ...string) *notify.Subscription {
	return e.hub.Subscribe(gameTeamIDs...)
}

// Hub returns the hub changes are published to.
func (e *Engine) Hub() *notify.Hub {
	return e.hub
}

// ConflictWindow returns the configured collision tolerance in seconds.
func (e *Engine) ConflictWindow() int {
	return e.detector.Window
}

// Result reports what a command wrote.
//
// A conflict is not an error: the write succeeds and the affected groups are
// listed in Conflicts.
type Result struct {
	// Events are the events the command created or updated, in write order,
	// as they stand after the command.
	Events []model.GameEvent `json:"events"`

	// Conflicts are the conflict groups the command created or grew.
	Conflicts []model.ConflictInfo `json:"conflicts,omitempty"`

	// Duplicates are ids of created events that repeat an occurrence the
	// same recorder had already logged.
	Duplicates []string `json:"duplicates,omitempty"`

	// Deleted are ids of events the command removed.
	Deleted []string `json:"deleted,omitempty"`
}

// RegisterGameTeam records one side of a fixture so events can reference it.
// Called by the team administration collaborator, not by recorders.
func (e *Engine) RegisterGameTeam(ctx context.Context, gt model.GameTeam) error {
	const op = "registerGameTeam"
	switch {
	case strings.TrimSpace(gt.GameTeamID) == "":
		return invalid(op, "game_team_id is required")
	case strings.TrimSpace(gt.TeamID) == "":
		return invalid(op, "team_id is required")
	case strings.TrimSpace(gt.GameID) == "":
		return invalid(op, "game_id is required")
	}
	if err := e.store.RegisterGameTeam(ctx, gt); err != nil {
		return e.fail(op, err)
	}
	e.logger.Info("registered game team", "game_team_id", gt.GameTeamID, "team_id", gt.TeamID, "game_id", gt.GameID)
	return nil
}

// write runs fn as one transaction on gameTeamID and publishes the messages
// it produced once the transaction commits.
func (e *Engine) write(ctx context.Context, op, gameTeamID string, fn func(w *writer) error) (Result, error) {
	if strings.TrimSpace(gameTeamID) == "" {
		return Result{}, invalid(op, "game_team_id is required")
	}

	var res Result
	err := e.store.RunInGameTeam(ctx, gameTeamID, func(tx *store.Tx) error {
		if _, err := tx.GameTeam(ctx, gameTeamID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return notFound(op, "game team", gameTeamID)
			}
			return err
		}

		w, err := newWriter(ctx, e, tx, op)
		if err != nil {
			return err
		}
		if err := fn(w); err != nil {
			return err
		}
		if res, err = w.result(); err != nil {
			return err
		}

		messages := w.messages
		tx.AfterCommit(func() {
			for _, m := range messages {
				e.hub.Publish(m)
			}
		})
		return nil
	})
	if err != nil {
		e.logger.Debug("command failed", "op", op, "game_team_id", gameTeamID, "error", err)
		return Result{}, e.fail(op, err)
	}

	e.logger.Info("command applied",
		"op", op,
		"game_team_id", gameTeamID,
		"events", len(res.Events),
		"deleted", len(res.Deleted),
		"conflicts", len(res.Conflicts),
	)
	return res, nil
}

// fail normalizes an error escaping a command or query.
func (e *Engine) fail(op string, err error) error {
	var ee *Error
	if errors.As(err, &ee) {
		return err
	}
	if errors.Is(err, store.ErrTransient) {
		return transientError(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
