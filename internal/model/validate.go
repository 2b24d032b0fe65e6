package model

import (
	"fmt"
	"regexp"
	"strings"
)

// FieldError reports a hard invariant violation on a single event field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var (
	periodPattern    = regexp.MustCompile(`^[A-Za-z0-9]{1,8}$`)
	formationPattern = regexp.MustCompile(`^[1-9](-[1-9]){1,5}$`)
)

// MaxPositionLen bounds the length of a formation slot code.
const MaxPositionLen = 16

// ValidatePeriod checks a period identifier such as "1", "2" or "OT1".
func ValidatePeriod(period string) error {
	if !periodPattern.MatchString(period) {
		return &FieldError{Field: "period", Message: fmt.Sprintf("invalid period %q: must be 1-8 letters or digits", period)}
	}
	return nil
}

// ValidatePeriodSecond rejects values outside [MinPeriodSecond, MaxPeriodSecond].
func ValidatePeriodSecond(sec int) error {
	if sec < MinPeriodSecond || sec > MaxPeriodSecond {
		return &FieldError{Field: "period_second", Message: fmt.Sprintf("%d out of range [%d, %d]", sec, MinPeriodSecond, MaxPeriodSecond)}
	}
	return nil
}

// ValidateSubject checks subject exclusivity for the given event type.
func ValidateSubject(t EventType, s Subject) error {
	if s.PlayerID != "" && s.IsExternal() {
		return &FieldError{Field: "subject", Message: "player_id and external player identity are mutually exclusive"}
	}
	if !t.RequiresSubject() {
		if !s.IsZero() {
			return &FieldError{Field: "subject", Message: fmt.Sprintf("%s events carry no player", t)}
		}
		return nil
	}
	if s.IsZero() {
		return &FieldError{Field: "subject", Message: fmt.Sprintf("%s requires a player_id or external player name", t)}
	}
	if s.IsExternal() && strings.TrimSpace(s.ExternalPlayerName) == "" {
		return &FieldError{Field: "external_player_name", Message: "external player requires a name"}
	}
	return nil
}

// ValidateFormation checks a formation code such as "4-4-2".
func ValidateFormation(formation string) error {
	if !formationPattern.MatchString(formation) {
		return &FieldError{Field: "formation", Message: fmt.Sprintf("invalid formation %q", formation)}
	}
	return nil
}

// Validate enforces every invariant that can be checked without the store.
// Events failing Validate must never be persisted.
func Validate(ev GameEvent) error {
	if ev.ID == "" {
		return &FieldError{Field: "id", Message: "required"}
	}
	if ev.GameTeamID == "" {
		return &FieldError{Field: "game_team_id", Message: "required"}
	}
	if !ev.EventType.Valid() {
		return &FieldError{Field: "event_type", Message: fmt.Sprintf("unknown event type %q", ev.EventType)}
	}
	if ev.RecordedByUserID == "" {
		return &FieldError{Field: "recorded_by_user_id", Message: "required"}
	}
	if err := ValidatePeriod(ev.Period); err != nil {
		return err
	}
	if err := ValidatePeriodSecond(ev.PeriodSecond); err != nil {
		return err
	}
	if err := ValidateSubject(ev.EventType, ev.Subject); err != nil {
		return err
	}
	if len(ev.Position) > MaxPositionLen {
		return &FieldError{Field: "position", Message: fmt.Sprintf("longer than %d characters", MaxPositionLen)}
	}
	if ev.EventType == EventFormationChange {
		if err := ValidateFormation(ev.Formation); err != nil {
			return err
		}
	} else if ev.Formation != "" {
		return &FieldError{Field: "formation", Message: fmt.Sprintf("only allowed on %s", EventFormationChange)}
	}
	if ev.ParentEventID != "" && ev.ParentEventID == ev.ID {
		return &FieldError{Field: "parent_event_id", Message: "event cannot be its own parent"}
	}
	return nil
}
