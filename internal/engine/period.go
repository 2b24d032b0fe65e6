package engine

import (
	"context"

	"github.com/roach88/gameledger/internal/model"
)

// LineupEntry places one player at the start of a period.
type LineupEntry struct {
	model.Subject `yaml:",inline"`
	Position string `json:"position,omitempty" yaml:"position,omitempty"`
}

// StartPeriodInput is the input to StartPeriod.
type StartPeriodInput struct {
	GameTeamID   string        `json:"game_team_id"`
	Period       string        `json:"period"`
	PeriodSecond int           `json:"period_second"`
	Lineup       []LineupEntry `json:"lineup"`
	RecordedBy   string        `json:"recorded_by_user_id"`
}

// StartPeriod opens a period: one PERIOD_START plus one SUBSTITUTION_IN
// child per lineup entry, in lineup order.
//
// The period must be NOT_STARTED and no other period may be in progress.
func (e *Engine) StartPeriod(ctx context.Context, in StartPeriodInput) (Result, error) {
	const op = "startPeriod"
	return e.write(ctx, op, in.GameTeamID, func(w *writer) error {
		if err := model.ValidatePeriod(in.Period); err != nil {
			return validationError(op, err)
		}
		if err := model.ValidatePeriodSecond(in.PeriodSecond); err != nil {
			return validationError(op, err)
		}
		if st := w.periodState(in.Period); st != model.PeriodNotStarted {
			return stateError(op, string(st), "period %s has already started", in.Period)
		}
		if active := w.lineup().ActivePeriod; active != "" {
			return stateError(op, string(model.PeriodInProgress), "period %s is still in progress", active)
		}

		seen := make(map[string]bool, len(in.Lineup))
		for i, entry := range in.Lineup {
			key := model.SubjectKey(entry.Subject)
			if key == "" {
				continue // Validate reports the missing subject
			}
			if seen[key] {
				return invalid(op, "lineup entry %d repeats player %s", i, entry.Subject)
			}
			seen[key] = true
		}

		start, err := w.append(model.GameEvent{
			EventType:        model.EventPeriodStart,
			Period:           in.Period,
			PeriodSecond:     in.PeriodSecond,
			RecordedByUserID: in.RecordedBy,
		})
		if err != nil {
			return err
		}
		for _, entry := range in.Lineup {
			_, err := w.append(model.GameEvent{
				EventType:        model.EventSubstitutionIn,
				Period:           in.Period,
				PeriodSecond:     in.PeriodSecond,
				Subject:          entry.Subject,
				Position:         entry.Position,
				ParentEventID:    start.ID,
				RecordedByUserID: in.RecordedBy,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// EndPeriodInput is the input to EndPeriod.
type EndPeriodInput struct {
	GameTeamID   string `json:"game_team_id"`
	Period       string `json:"period"`
	PeriodSecond int    `json:"period_second"`
	RecordedBy   string `json:"recorded_by_user_id"`
}

// EndPeriod closes a period in progress: one PERIOD_END plus one
// SUBSTITUTION_OUT child for every player the replayed log has on the field.
// The caller never supplies that set.
func (e *Engine) EndPeriod(ctx context.Context, in EndPeriodInput) (Result, error) {
	const op = "endPeriod"
	return e.write(ctx, op, in.GameTeamID, func(w *writer) error {
		if err := model.ValidatePeriod(in.Period); err != nil {
			return validationError(op, err)
		}
		if err := model.ValidatePeriodSecond(in.PeriodSecond); err != nil {
			return validationError(op, err)
		}
		if st := w.periodState(in.Period); st != model.PeriodInProgress {
			return stateError(op, string(st), "period %s is not in progress", in.Period)
		}

		onField := w.lineup().CurrentOnField
		end, err := w.append(model.GameEvent{
			EventType:        model.EventPeriodEnd,
			Period:           in.Period,
			PeriodSecond:     in.PeriodSecond,
			RecordedByUserID: in.RecordedBy,
		})
		if err != nil {
			return err
		}
		for _, p := range onField {
			_, err := w.append(model.GameEvent{
				EventType:        model.EventSubstitutionOut,
				Period:           in.Period,
				PeriodSecond:     in.PeriodSecond,
				Subject:          p.Subject,
				Position:         p.Position,
				ParentEventID:    end.ID,
				RecordedByUserID: in.RecordedBy,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}
