package notify

import "github.com/roach88/gameledger/internal/model"

// Action is the kind of change a Message reports.
type Action string

const (
	ActionCreated           Action = "CREATED"
	ActionUpdated           Action = "UPDATED"
	ActionDeleted           Action = "DELETED"
	ActionConflictDetected  Action = "CONFLICT_DETECTED"
	ActionDuplicateDetected Action = "DUPLICATE_DETECTED"
)

// Message is one entry in the change feed.
//
// CREATED and UPDATED carry Event. DELETED carries DeletedEventID.
// CONFLICT_DETECTED carries the whole group in Conflict, each member with its
// recorder. DUPLICATE_DETECTED carries the new Event and, in Conflict, the
// earlier same-recorder events it matched.
type Message struct {
	Action         Action              `json:"action"`
	GameTeamID     string              `json:"game_team_id"`
	Event          *model.GameEvent    `json:"event,omitempty"`
	DeletedEventID string              `json:"deleted_event_id,omitempty"`
	Conflict       *model.ConflictInfo `json:"conflict,omitempty"`
}

// Created reports a new event.
func Created(ev model.GameEvent) Message {
	return Message{Action: ActionCreated, GameTeamID: ev.GameTeamID, Event: &ev}
}

// Updated reports an event whose fields or conflict marker changed.
func Updated(ev model.GameEvent) Message {
	return Message{Action: ActionUpdated, GameTeamID: ev.GameTeamID, Event: &ev}
}

// Deleted reports a removed event.
func Deleted(gameTeamID, eventID string) Message {
	return Message{Action: ActionDeleted, GameTeamID: gameTeamID, DeletedEventID: eventID}
}

// ConflictDetected reports a conflict group in its current shape.
func ConflictDetected(c model.ConflictInfo) Message {
	return Message{Action: ActionConflictDetected, GameTeamID: c.GameTeamID, Conflict: &c}
}

// DuplicateDetected reports that ev repeats events its own recorder already
// logged.
func DuplicateDetected(ev model.GameEvent, matches []model.GameEvent) Message {
	return Message{
		Action:     ActionDuplicateDetected,
		GameTeamID: ev.GameTeamID,
		Event:      &ev,
		Conflict:   &model.ConflictInfo{GameTeamID: ev.GameTeamID, Events: matches},
	}
}
