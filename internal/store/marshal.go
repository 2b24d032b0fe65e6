package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/gameledger/internal/model"
)

// eventColumns is the column list every event query selects, in scanEvent order.
const eventColumns = `seq, id, game_team_id, event_type, period, period_second,
	player_id, external_player_name, external_player_number,
	position, formation, parent_event_id, recorded_by_user_id, conflict_id,
	created_at, updated_at`

// Timestamps are stored as RFC 3339 TEXT in UTC so they sort lexically.
const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

// nullString maps "" to SQL NULL so optional columns stay NULL rather than
// empty, which the subject CHECK constraint relies on.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (model.GameEvent, error) {
	var (
		ev                 model.GameEvent
		eventType          string
		playerID           sql.NullString
		extName, extNumber sql.NullString
		position           sql.NullString
		formation          sql.NullString
		parentID           sql.NullString
		conflictID         sql.NullString
		createdAt          string
		updatedAt          string
	)
	err := row.Scan(
		&ev.Seq, &ev.ID, &ev.GameTeamID, &eventType, &ev.Period, &ev.PeriodSecond,
		&playerID, &extName, &extNumber,
		&position, &formation, &parentID, &ev.RecordedByUserID, &conflictID,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return model.GameEvent{}, err
	}

	ev.EventType = model.EventType(eventType)
	ev.PlayerID = playerID.String
	ev.ExternalPlayerName = extName.String
	ev.ExternalPlayerNumber = extNumber.String
	ev.Position = position.String
	ev.Formation = formation.String
	ev.ParentEventID = parentID.String
	ev.ConflictID = conflictID.String

	if ev.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.GameEvent{}, err
	}
	if ev.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return model.GameEvent{}, err
	}
	return ev, nil
}

// scanEvents drains rows into a non-nil slice.
func scanEvents(rows *sql.Rows) ([]model.GameEvent, error) {
	defer rows.Close()

	events := []model.GameEvent{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
