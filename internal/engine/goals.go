package engine

import (
	"context"
	"errors"

	"github.com/roach88/gameledger/internal/model"
	"github.com/roach88/gameledger/internal/store"
)

// RecordGoalInput is the input to RecordGoal.
type RecordGoalInput struct {
	GameTeamID string `json:"game_team_id"`
	// Period defaults to the period in progress. A period that has ended is
	// accepted, so goals can be entered after the fact.
	Period       string         `json:"period,omitempty"`
	PeriodSecond int            `json:"period_second"`
	Scorer       model.Subject  `json:"scorer"`
	Assist       *model.Subject `json:"assist,omitempty"`
	Position     string         `json:"position,omitempty"`
	RecordedBy   string         `json:"recorded_by_user_id"`
}

// RecordGoal records a GOAL and, when Assist is set, an ASSIST child of it.
func (e *Engine) RecordGoal(ctx context.Context, in RecordGoalInput) (Result, error) {
	const op = "recordGoal"
	return e.write(ctx, op, in.GameTeamID, func(w *writer) error {
		period, err := w.startedPeriod(in.Period)
		if err != nil {
			return err
		}
		goal, err := w.append(model.GameEvent{
			EventType:        model.EventGoal,
			Period:           period,
			PeriodSecond:     in.PeriodSecond,
			Subject:          in.Scorer,
			Position:         in.Position,
			RecordedByUserID: in.RecordedBy,
		})
		if err != nil {
			return err
		}
		if in.Assist != nil {
			return w.appendAssist(goal, *in.Assist)
		}
		return nil
	})
}

// UpdateGoalInput is the input to UpdateGoal.
type UpdateGoalInput struct {
	EventID string `json:"event_id"`
	// Period keeps the goal's period when empty.
	Period       string        `json:"period,omitempty"`
	PeriodSecond int           `json:"period_second"`
	Scorer       model.Subject `json:"scorer"`
	// Assist replaces the goal's assist. Nil removes it.
	Assist     *model.Subject `json:"assist,omitempty"`
	RecordedBy string         `json:"recorded_by_user_id"`
}

// UpdateGoal corrects a goal's time and scorer in place and replaces its
// assist. The goal keeps its id, parent and recorder. Conflict detection runs
// again for the corrected goal.
func (e *Engine) UpdateGoal(ctx context.Context, in UpdateGoalInput) (Result, error) {
	const op = "updateGoal"
	gameTeamID, err := e.gameTeamOf(ctx, op, in.EventID)
	if err != nil {
		return Result{}, err
	}
	return e.write(ctx, op, gameTeamID, func(w *writer) error {
		goal, err := w.event(in.EventID)
		if err != nil {
			return err
		}
		if goal.EventType != model.EventGoal {
			return stateError(op, string(goal.EventType), "event %s is not a GOAL", goal.ID)
		}
		if in.Period != "" && in.Period != goal.Period {
			if goal.Period, err = w.startedPeriod(in.Period); err != nil {
				return err
			}
		}
		goal.PeriodSecond = in.PeriodSecond
		goal.Subject = in.Scorer

		var assists []string
		for _, ev := range w.log {
			if ev.ParentEventID == goal.ID && ev.EventType == model.EventAssist {
				assists = append(assists, ev.ID)
			}
		}
		if len(assists) > 0 {
			ids, err := w.subtreeIDs(assists)
			if err != nil {
				return err
			}
			if err := w.remove(ids); err != nil {
				return err
			}
			// remove may have cleared the goal's own conflict marker.
			fresh, _ := w.find(goal.ID)
			goal.ConflictID = fresh.ConflictID
		}

		updated, err := w.update(goal)
		if err != nil {
			return err
		}
		if in.Assist != nil {
			if in.RecordedBy != "" {
				updated.RecordedByUserID = in.RecordedBy
			}
			return w.appendAssist(updated, *in.Assist)
		}
		return nil
	})
}

func (w *writer) appendAssist(goal model.GameEvent, assist model.Subject) error {
	if model.SubjectKey(assist) != "" && model.SubjectKey(assist) == model.SubjectKey(goal.Subject) {
		return invalid(w.op, "a scorer cannot assist their own goal")
	}
	_, err := w.append(model.GameEvent{
		EventType:        model.EventAssist,
		Period:           goal.Period,
		PeriodSecond:     goal.PeriodSecond,
		Subject:          assist,
		ParentEventID:    goal.ID,
		RecordedByUserID: goal.RecordedByUserID,
	})
	return err
}

// RecordCardInput is the input to RecordCard.
type RecordCardInput struct {
	GameTeamID   string          `json:"game_team_id"`
	Period       string          `json:"period,omitempty"`
	PeriodSecond int             `json:"period_second"`
	Card         model.EventType `json:"card"`
	Player       model.Subject   `json:"player"`
	RecordedBy   string          `json:"recorded_by_user_id"`
}

// RecordCard records a YELLOW_CARD or RED_CARD. A red card does not take the
// player off; callers follow it with RemovePlayerFromField.
func (e *Engine) RecordCard(ctx context.Context, in RecordCardInput) (Result, error) {
	const op = "recordCard"
	return e.write(ctx, op, in.GameTeamID, func(w *writer) error {
		if !in.Card.IsCard() {
			return &Error{Code: ErrCodeValidation, Op: op, Message: "card must be YELLOW_CARD or RED_CARD", Details: map[string]string{"field": "card"}}
		}
		period, err := w.startedPeriod(in.Period)
		if err != nil {
			return err
		}
		_, err = w.append(model.GameEvent{
			EventType:        in.Card,
			Period:           period,
			PeriodSecond:     in.PeriodSecond,
			Subject:          in.Player,
			RecordedByUserID: in.RecordedBy,
		})
		return err
	})
}

// RecordFormationChangeInput is the input to RecordFormationChange.
type RecordFormationChangeInput struct {
	GameTeamID   string `json:"game_team_id"`
	Period       string `json:"period,omitempty"`
	PeriodSecond int    `json:"period_second"`
	Formation    string `json:"formation"`
	RecordedBy   string `json:"recorded_by_user_id"`
}

// RecordFormationChange records the team's new shape, e.g. "4-3-3".
func (e *Engine) RecordFormationChange(ctx context.Context, in RecordFormationChangeInput) (Result, error) {
	const op = "recordFormationChange"
	return e.write(ctx, op, in.GameTeamID, func(w *writer) error {
		period, err := w.livePeriod(in.Period)
		if err != nil {
			return err
		}
		_, err = w.append(model.GameEvent{
			EventType:        model.EventFormationChange,
			Period:           period,
			PeriodSecond:     in.PeriodSecond,
			Formation:        in.Formation,
			RecordedByUserID: in.RecordedBy,
		})
		return err
	})
}

// gameTeamOf looks up the game team owning eventID, for commands addressed
// by event id alone.
func (e *Engine) gameTeamOf(ctx context.Context, op, eventID string) (string, error) {
	if eventID == "" {
		return "", invalid(op, "event id is required")
	}
	ev, err := e.store.Get(ctx, eventID)
	if errors.Is(err, store.ErrNotFound) {
		return "", notFound(op, "event", eventID)
	}
	if err != nil {
		return "", e.fail(op, err)
	}
	return ev.GameTeamID, nil
}
