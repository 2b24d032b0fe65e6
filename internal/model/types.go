package model

import (
	"fmt"
	"time"
)

// EventType categorizes a game event.
type EventType string

const (
	EventPeriodStart     EventType = "PERIOD_START"
	EventPeriodEnd       EventType = "PERIOD_END"
	EventSubstitutionIn  EventType = "SUBSTITUTION_IN"
	EventSubstitutionOut EventType = "SUBSTITUTION_OUT"
	EventGoal            EventType = "GOAL"
	EventAssist          EventType = "ASSIST"
	EventYellowCard      EventType = "YELLOW_CARD"
	EventRedCard         EventType = "RED_CARD"
	EventFormationChange EventType = "FORMATION_CHANGE"
	EventPositionChange  EventType = "POSITION_CHANGE"
	EventGameRoster      EventType = "GAME_ROSTER"
)

// AllEventTypes lists every known event type in a stable order.
var AllEventTypes = []EventType{
	EventPeriodStart,
	EventPeriodEnd,
	EventSubstitutionIn,
	EventSubstitutionOut,
	EventGoal,
	EventAssist,
	EventYellowCard,
	EventRedCard,
	EventFormationChange,
	EventPositionChange,
	EventGameRoster,
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	for _, known := range AllEventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// RequiresSubject reports whether events of this type must name a player.
func (t EventType) RequiresSubject() bool {
	switch t {
	case EventPeriodStart, EventPeriodEnd, EventFormationChange:
		return false
	default:
		return true
	}
}

// IsPeriodBoundary reports whether t opens or closes a period.
func (t EventType) IsPeriodBoundary() bool {
	return t == EventPeriodStart || t == EventPeriodEnd
}

// IsSubstitution reports whether t moves a player on or off the field.
func (t EventType) IsSubstitution() bool {
	return t == EventSubstitutionIn || t == EventSubstitutionOut
}

// IsCard reports whether t is a disciplinary card.
func (t EventType) IsCard() bool {
	return t == EventYellowCard || t == EventRedCard
}

// Time bounds for PeriodSecond, inclusive.
const (
	MinPeriodSecond = 0
	MaxPeriodSecond = 5999
)

// Subject identifies who an event is about. Exactly one of PlayerID or the
// external identity is set for subject-bearing events; both are empty for
// subject-less events.
type Subject struct {
	PlayerID             string `json:"player_id,omitempty" yaml:"player_id,omitempty"`
	ExternalPlayerName   string `json:"external_player_name,omitempty" yaml:"external_player_name,omitempty"`
	ExternalPlayerNumber string `json:"external_player_number,omitempty" yaml:"external_player_number,omitempty"`
}

// Player returns a subject for a managed roster member.
func Player(id string) Subject {
	return Subject{PlayerID: id}
}

// External returns a subject for an unmanaged (e.g. opponent) player.
func External(name, number string) Subject {
	return Subject{ExternalPlayerName: name, ExternalPlayerNumber: number}
}

// IsZero reports whether no subject fields are set.
func (s Subject) IsZero() bool {
	return s.PlayerID == "" && s.ExternalPlayerName == "" && s.ExternalPlayerNumber == ""
}

// IsExternal reports whether the subject uses the external identity.
func (s Subject) IsExternal() bool {
	return s.ExternalPlayerName != "" || s.ExternalPlayerNumber != ""
}

// String renders the subject for logs and error messages.
func (s Subject) String() string {
	switch {
	case s.PlayerID != "":
		return s.PlayerID
	case s.IsExternal():
		if s.ExternalPlayerNumber == "" {
			return s.ExternalPlayerName
		}
		return s.ExternalPlayerName + " #" + s.ExternalPlayerNumber
	default:
		return "<none>"
	}
}

// GameEvent is an immutable record of something that happened for one side of
// a fixture. Only the store assigns Seq, CreatedAt and UpdatedAt.
type GameEvent struct {
	ID         string    `json:"id"`
	GameTeamID string    `json:"game_team_id"`
	EventType  EventType `json:"event_type"`

	Period       string `json:"period"`
	PeriodSecond int    `json:"period_second"`

	Subject

	Position  string `json:"position,omitempty"`
	Formation string `json:"formation,omitempty"`

	ParentEventID string `json:"parent_event_id,omitempty"`

	RecordedByUserID string `json:"recorded_by_user_id"`
	ConflictID       string `json:"conflict_id,omitempty"`

	// Seq is the store-assigned insertion order. Within a game team it is
	// the total order of the log, independent of PeriodSecond.
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InConflict reports whether the event belongs to an unresolved conflict.
func (e GameEvent) InConflict() bool {
	return e.ConflictID != ""
}

// ConflictInfo groups two or more events, each from a different recorder,
// judged to describe the same real-world occurrence.
type ConflictInfo struct {
	ConflictID string      `json:"conflict_id"`
	GameTeamID string      `json:"game_team_id"`
	Events     []GameEvent `json:"events"`
}

// Recorders returns the distinct recorder ids in event order.
func (c ConflictInfo) Recorders() []string {
	seen := make(map[string]bool, len(c.Events))
	var out []string
	for _, ev := range c.Events {
		if seen[ev.RecordedByUserID] {
			continue
		}
		seen[ev.RecordedByUserID] = true
		out = append(out, ev.RecordedByUserID)
	}
	return out
}

// DependentEventsResult describes what a cascade delete of Event would remove.
type DependentEventsResult struct {
	Event      GameEvent   `json:"event"`
	Dependents []GameEvent `json:"dependents"`
	Count      int         `json:"count"`
	CanDelete  bool        `json:"can_delete"`
	Warning    string      `json:"warning,omitempty"`
}

// IDs returns the root id followed by every dependent id.
func (r DependentEventsResult) IDs() []string {
	ids := make([]string, 0, len(r.Dependents)+1)
	ids = append(ids, r.Event.ID)
	for _, d := range r.Dependents {
		ids = append(ids, d.ID)
	}
	return ids
}

// PeriodState is the lifecycle position of one period for one game team.
type PeriodState string

const (
	PeriodNotStarted PeriodState = "NOT_STARTED"
	PeriodInProgress PeriodState = "IN_PROGRESS"
	PeriodEnded      PeriodState = "ENDED"
)

// GameTeam is one side's participation in a fixture, registered by the
// external team administration collaborator.
type GameTeam struct {
	GameTeamID string    `json:"game_team_id"`
	TeamID     string    `json:"team_id"`
	GameID     string    `json:"game_id"`
	PlayedOn   time.Time `json:"played_on"`
}

// DateRange bounds a stats query. Zero values leave that side open.
type DateRange struct {
	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`
}

// Contains reports whether t falls inside the range, inclusive.
func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// String renders the event for logs; it shadows the embedded Subject's.
func (e GameEvent) String() string {
	return fmt.Sprintf("%s %s [%s %s@%d]", e.EventType, e.ID, e.Subject.String(), e.Period, e.PeriodSecond)
}
