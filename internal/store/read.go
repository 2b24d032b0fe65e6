package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/gameledger/internal/model"
)

// Every read exists twice: on Store, against the read pool, and on Tx,
// against the open write transaction. Both delegate to the functions below.
//
// All event lists are ordered by seq ASC and are never nil.

// Get returns one event by id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (model.GameEvent, error) {
	return getEvent(ctx, s.rdb, id)
}

// Get returns one event by id, or ErrNotFound.
func (t *Tx) Get(ctx context.Context, id string) (model.GameEvent, error) {
	return getEvent(ctx, t.tx, id)
}

// EventsFor returns the whole log for a game team.
func (s *Store) EventsFor(ctx context.Context, gameTeamID string) ([]model.GameEvent, error) {
	return eventsFor(ctx, s.rdb, gameTeamID)
}

// EventsFor returns the whole log for a game team.
func (t *Tx) EventsFor(ctx context.Context, gameTeamID string) ([]model.GameEvent, error) {
	return eventsFor(ctx, t.tx, gameTeamID)
}

// EventsInPeriod returns the log for one period of a game team.
func (s *Store) EventsInPeriod(ctx context.Context, gameTeamID, period string) ([]model.GameEvent, error) {
	return eventsInPeriod(ctx, s.rdb, gameTeamID, period)
}

// EventsInPeriod returns the log for one period of a game team.
func (t *Tx) EventsInPeriod(ctx context.Context, gameTeamID, period string) ([]model.GameEvent, error) {
	return eventsInPeriod(ctx, t.tx, gameTeamID, period)
}

// ChildrenOf returns the direct children of an event.
func (s *Store) ChildrenOf(ctx context.Context, id string) ([]model.GameEvent, error) {
	return childrenOf(ctx, s.rdb, id)
}

// ChildrenOf returns the direct children of an event.
func (t *Tx) ChildrenOf(ctx context.Context, id string) ([]model.GameEvent, error) {
	return childrenOf(ctx, t.tx, id)
}

// Descendants returns every transitive child of an event, excluding the
// event itself.
func (s *Store) Descendants(ctx context.Context, id string) ([]model.GameEvent, error) {
	return descendants(ctx, s.rdb, id)
}

// Descendants returns every transitive child of an event, excluding the
// event itself.
func (t *Tx) Descendants(ctx context.Context, id string) ([]model.GameEvent, error) {
	return descendants(ctx, t.tx, id)
}

// ConflictMembers returns the events carrying conflictID.
func (s *Store) ConflictMembers(ctx context.Context, conflictID string) ([]model.GameEvent, error) {
	return conflictMembers(ctx, s.rdb, conflictID)
}

// ConflictMembers returns the events carrying conflictID.
func (t *Tx) ConflictMembers(ctx context.Context, conflictID string) ([]model.GameEvent, error) {
	return conflictMembers(ctx, t.tx, conflictID)
}

// ConflictsFor groups a game team's conflicting events by conflict id, in
// order of each group's first member.
func (s *Store) ConflictsFor(ctx context.Context, gameTeamID string) ([]model.ConflictInfo, error) {
	return conflictsFor(ctx, s.rdb, gameTeamID)
}

// GameTeam returns a registered game team, or ErrNotFound.
func (s *Store) GameTeam(ctx context.Context, gameTeamID string) (model.GameTeam, error) {
	return gameTeam(ctx, s.rdb, gameTeamID)
}

// GameTeam returns a registered game team, or ErrNotFound.
func (t *Tx) GameTeam(ctx context.Context, gameTeamID string) (model.GameTeam, error) {
	return gameTeam(ctx, t.tx, gameTeamID)
}

// GameTeamsForTeam returns a team's fixtures played within r, oldest first.
func (s *Store) GameTeamsForTeam(ctx context.Context, teamID string, r model.DateRange) ([]model.GameTeam, error) {
	rows, err := s.rdb.QueryContext(ctx, `
		SELECT game_team_id, team_id, game_id, played_on
		FROM game_teams
		WHERE team_id = ?
		ORDER BY played_on ASC, game_team_id ASC
	`, teamID)
	if err != nil {
		return nil, fmt.Errorf("query game teams: %w", err)
	}
	defer rows.Close()

	out := []model.GameTeam{}
	for rows.Next() {
		gt, err := scanGameTeam(rows)
		if err != nil {
			return nil, err
		}
		if r.Contains(gt.PlayedOn) {
			out = append(out, gt)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate game teams: %w", err)
	}
	return out, nil
}

func getEvent(ctx context.Context, q querier, id string) (model.GameEvent, error) {
	row := q.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM game_events WHERE id = ?`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.GameEvent{}, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.GameEvent{}, fmt.Errorf("get event %s: %w", id, err)
	}
	return ev, nil
}

func eventsFor(ctx context.Context, q querier, gameTeamID string) ([]model.GameEvent, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM game_events
		WHERE game_team_id = ?
		ORDER BY seq ASC
	`, gameTeamID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return scanEvents(rows)
}

func eventsInPeriod(ctx context.Context, q querier, gameTeamID, period string) ([]model.GameEvent, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM game_events
		WHERE game_team_id = ? AND period = ?
		ORDER BY seq ASC
	`, gameTeamID, period)
	if err != nil {
		return nil, fmt.Errorf("query period events: %w", err)
	}
	return scanEvents(rows)
}

func childrenOf(ctx context.Context, q querier, id string) ([]model.GameEvent, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM game_events
		WHERE parent_event_id = ?
		ORDER BY seq ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query children: %w", err)
	}
	return scanEvents(rows)
}

func descendants(ctx context.Context, q querier, id string) ([]model.GameEvent, error) {
	// UNION (not UNION ALL) stops the walk if a cycle ever slipped in.
	rows, err := q.QueryContext(ctx, `
		WITH RECURSIVE subtree(id) AS (
			SELECT id FROM game_events WHERE parent_event_id = ?
			UNION
			SELECT e.id FROM game_events e JOIN subtree s ON e.parent_event_id = s.id
		)
		SELECT `+eventColumns+`
		FROM game_events
		WHERE id IN (SELECT id FROM subtree)
		ORDER BY seq ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query descendants: %w", err)
	}
	return scanEvents(rows)
}

func conflictMembers(ctx context.Context, q querier, conflictID string) ([]model.GameEvent, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM game_events
		WHERE conflict_id = ?
		ORDER BY seq ASC
	`, conflictID)
	if err != nil {
		return nil, fmt.Errorf("query conflict members: %w", err)
	}
	return scanEvents(rows)
}

func conflictsFor(ctx context.Context, q querier, gameTeamID string) ([]model.ConflictInfo, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM game_events
		WHERE game_team_id = ? AND conflict_id IS NOT NULL
		ORDER BY seq ASC
	`, gameTeamID)
	if err != nil {
		return nil, fmt.Errorf("query conflicts: %w", err)
	}
	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}

	out := []model.ConflictInfo{}
	index := make(map[string]int)
	for _, ev := range events {
		i, ok := index[ev.ConflictID]
		if !ok {
			i = len(out)
			index[ev.ConflictID] = i
			out = append(out, model.ConflictInfo{ConflictID: ev.ConflictID, GameTeamID: gameTeamID})
		}
		out[i].Events = append(out[i].Events, ev)
	}
	return out, nil
}

func gameTeam(ctx context.Context, q querier, gameTeamID string) (model.GameTeam, error) {
	row := q.QueryRowContext(ctx, `
		SELECT game_team_id, team_id, game_id, played_on
		FROM game_teams
		WHERE game_team_id = ?
	`, gameTeamID)
	gt, err := scanGameTeam(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.GameTeam{}, fmt.Errorf("game team %s: %w", gameTeamID, ErrNotFound)
	}
	if err != nil {
		return model.GameTeam{}, fmt.Errorf("get game team %s: %w", gameTeamID, err)
	}
	return gt, nil
}

func scanGameTeam(row rowScanner) (model.GameTeam, error) {
	var (
		gt       model.GameTeam
		playedOn string
	)
	if err := row.Scan(&gt.GameTeamID, &gt.TeamID, &gt.GameID, &playedOn); err != nil {
		return model.GameTeam{}, err
	}
	t, err := parseTime(playedOn)
	if err != nil {
		return model.GameTeam{}, err
	}
	gt.PlayedOn = t
	return gt, nil
}
