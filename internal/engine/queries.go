package engine

import (
	"context"
	"errors"

	"github.com/roach88/gameledger/internal/model"
	"github.com/roach88/gameledger/internal/projection"
	"github.com/roach88/gameledger/internal/store"
)

// Queries read from the store's read pool and never block writers. Each one
// replays the log afresh; nothing is cached.

// GameLineup returns the replayed lineup of a game team.
func (e *Engine) GameLineup(ctx context.Context, gameTeamID string, opts ...projection.LineupOption) (projection.GameLineup, error) {
	const op = "gameLineup"
	events, err := e.gameTeamEvents(ctx, op, gameTeamID)
	if err != nil {
		return projection.GameLineup{}, err
	}
	return projection.Lineup(gameTeamID, events, opts...), nil
}

// PlayerPositionStats returns per-player time, position and event counts for
// one game team.
func (e *Engine) PlayerPositionStats(ctx context.Context, gameTeamID string, opts ...projection.StatsOption) ([]projection.PlayerStats, error) {
	const op = "playerPositionStats"
	events, err := e.gameTeamEvents(ctx, op, gameTeamID)
	if err != nil {
		return nil, err
	}
	return projection.PositionStats(events, opts...), nil
}

// PlayerStatsQuery scopes PlayerStats.
type PlayerStatsQuery struct {
	TeamID string
	// GameID limits the result to one fixture. Empty means every game.
	GameID string
	Range  model.DateRange
}

// PlayerStats aggregates a team's per-player statistics across the game
// teams it played in, optionally limited to one game or a date range.
func (e *Engine) PlayerStats(ctx context.Context, q PlayerStatsQuery) ([]projection.PlayerStats, error) {
	const op = "playerStats"
	if q.TeamID == "" {
		return nil, invalid(op, "team id is required")
	}
	teams, err := e.store.GameTeamsForTeam(ctx, q.TeamID, q.Range)
	if err != nil {
		return nil, e.fail(op, err)
	}

	var games [][]projection.PlayerStats
	for _, gt := range teams {
		if q.GameID != "" && gt.GameID != q.GameID {
			continue
		}
		events, err := e.store.EventsFor(ctx, gt.GameTeamID)
		if err != nil {
			return nil, e.fail(op, err)
		}
		games = append(games, projection.PositionStats(events))
	}
	return projection.Aggregate(games...), nil
}

// Events returns a game team's log in seq order, optionally for one period.
func (e *Engine) Events(ctx context.Context, gameTeamID, period string) ([]model.GameEvent, error) {
	const op = "events"
	if period == "" {
		return e.gameTeamEvents(ctx, op, gameTeamID)
	}
	if err := model.ValidatePeriod(period); err != nil {
		return nil, validationError(op, err)
	}
	if err := e.requireGameTeam(ctx, op, gameTeamID); err != nil {
		return nil, err
	}
	events, err := e.store.EventsInPeriod(ctx, gameTeamID, period)
	if err != nil {
		return nil, e.fail(op, err)
	}
	return events, nil
}

// Conflicts lists a game team's unresolved conflict groups.
func (e *Engine) Conflicts(ctx context.Context, gameTeamID string) ([]model.ConflictInfo, error) {
	const op = "conflicts"
	if err := e.requireGameTeam(ctx, op, gameTeamID); err != nil {
		return nil, err
	}
	conflicts, err := e.store.ConflictsFor(ctx, gameTeamID)
	if err != nil {
		return nil, e.fail(op, err)
	}
	return conflicts, nil
}

// Event returns one event by id.
func (e *Engine) Event(ctx context.Context, eventID string) (model.GameEvent, error) {
	const op = "event"
	ev, err := e.store.Get(ctx, eventID)
	if err != nil {
		return model.GameEvent{}, e.readErr(op, "event", eventID, err)
	}
	return ev, nil
}

func (e *Engine) gameTeamEvents(ctx context.Context, op, gameTeamID string) ([]model.GameEvent, error) {
	if err := e.requireGameTeam(ctx, op, gameTeamID); err != nil {
		return nil, err
	}
	events, err := e.store.EventsFor(ctx, gameTeamID)
	if err != nil {
		return nil, e.fail(op, err)
	}
	return events, nil
}

func (e *Engine) requireGameTeam(ctx context.Context, op, gameTeamID string) error {
	if gameTeamID == "" {
		return invalid(op, "game_team_id is required")
	}
	if _, err := e.store.GameTeam(ctx, gameTeamID); err != nil {
		return e.readErr(op, "game team", gameTeamID, err)
	}
	return nil
}

func (e *Engine) readErr(op, kind, id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound(op, kind, id)
	}
	return e.fail(op, err)
}
