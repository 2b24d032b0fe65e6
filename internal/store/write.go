package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/gameledger/internal/model"
)

// Insert appends ev to the log and returns it with Seq, CreatedAt and
// UpdatedAt filled in. Any Seq or timestamps on the input are ignored.
//
// The parent row (if any) and the game team must already exist; the foreign
// keys are enforced by SQLite.
func (t *Tx) Insert(ctx context.Context, ev model.GameEvent) (model.GameEvent, error) {
	ts := formatTime(t.now)
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO game_events
		(id, game_team_id, event_type, period, period_second,
		 player_id, external_player_name, external_player_number,
		 position, formation, parent_event_id, recorded_by_user_id, conflict_id,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.ID,
		ev.GameTeamID,
		string(ev.EventType),
		ev.Period,
		ev.PeriodSecond,
		nullString(ev.PlayerID),
		nullString(ev.ExternalPlayerName),
		nullString(ev.ExternalPlayerNumber),
		nullString(ev.Position),
		nullString(ev.Formation),
		nullString(ev.ParentEventID),
		ev.RecordedByUserID,
		nullString(ev.ConflictID),
		ts,
		ts,
	)
	if err != nil {
		return model.GameEvent{}, fmt.Errorf("insert event %s: %w", ev.ID, err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return model.GameEvent{}, fmt.Errorf("insert event %s: last insert id: %w", ev.ID, err)
	}

	ev.Seq = seq
	ev.CreatedAt = t.now.UTC()
	ev.UpdatedAt = ev.CreatedAt
	return ev, nil
}

// UpdateEvent rewrites the correctable fields of an existing event: period,
// second, subject and position. Type, parent link, recorder and conflict
// marker are left alone. Returns ErrNotFound if the id is unknown.
func (t *Tx) UpdateEvent(ctx context.Context, ev model.GameEvent) (model.GameEvent, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE game_events SET
			period = ?,
			period_second = ?,
			player_id = ?,
			external_player_name = ?,
			external_player_number = ?,
			position = ?,
			updated_at = ?
		WHERE id = ?
	`,
		ev.Period,
		ev.PeriodSecond,
		nullString(ev.PlayerID),
		nullString(ev.ExternalPlayerName),
		nullString(ev.ExternalPlayerNumber),
		nullString(ev.Position),
		formatTime(t.now),
		ev.ID,
	)
	if err != nil {
		return model.GameEvent{}, fmt.Errorf("update event %s: %w", ev.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.GameEvent{}, fmt.Errorf("update event %s: %w", ev.ID, ErrNotFound)
	}
	return t.Get(ctx, ev.ID)
}

// SetConflictID stamps conflictID on every listed event. An empty
// conflictID clears the marker.
func (t *Tx) SetConflictID(ctx context.Context, ids []string, conflictID string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+2)
	args = append(args, nullString(conflictID), formatTime(t.now))
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := t.tx.ExecContext(ctx, `
		UPDATE game_events SET conflict_id = ?, updated_at = ?
		WHERE id IN (`+placeholders(len(ids))+`)
	`, args...)
	if err != nil {
		return fmt.Errorf("set conflict id: %w", err)
	}
	return nil
}

// RenameConflict moves every member of conflict group from into group to.
// Used when one incoming event bridges two existing groups.
func (t *Tx) RenameConflict(ctx context.Context, from, to string) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE game_events SET conflict_id = ?, updated_at = ?
		WHERE game_team_id = ? AND conflict_id = ?
	`, to, formatTime(t.now), t.gameTeamID, from)
	if err != nil {
		return fmt.Errorf("rename conflict %s: %w", from, err)
	}
	return nil
}

// ClearConflict removes conflictID from every event still carrying it.
func (t *Tx) ClearConflict(ctx context.Context, conflictID string) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE game_events SET conflict_id = NULL, updated_at = ?
		WHERE game_team_id = ? AND conflict_id = ?
	`, formatTime(t.now), t.gameTeamID, conflictID)
	if err != nil {
		return fmt.Errorf("clear conflict %s: %w", conflictID, err)
	}
	return nil
}

// DeleteEvents removes every listed event in one statement and returns how
// many rows went away. A parent and its children must be deleted together;
// foreign keys are checked at the end of the statement, so a set that leaves
// an orphan fails as a whole.
func (t *Tx) DeleteEvents(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := t.tx.ExecContext(ctx,
		`DELETE FROM game_events WHERE id IN (`+placeholders(len(ids))+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("delete events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete events: rows affected: %w", err)
	}
	return n, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
