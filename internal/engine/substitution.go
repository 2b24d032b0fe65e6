package engine

import (
	"context"

	"github.com/roach88/gameledger/internal/model"
)

// BringPlayerOntoFieldInput is the input to BringPlayerOntoField.
type BringPlayerOntoFieldInput struct {
	GameTeamID   string        `json:"game_team_id"`
	Period       string        `json:"period,omitempty"`
	PeriodSecond int           `json:"period_second"`
	Player       model.Subject `json:"player"`
	Position     string        `json:"position,omitempty"`
	RecordedBy   string        `json:"recorded_by_user_id"`
}

// BringPlayerOntoField records a lone SUBSTITUTION_IN for a late arrival or
// an empty slot. Nobody goes off.
//
// A player already on the field is not refused: when two recorders log the
// same arrival, both writes land and the conflict detector groups them.
func (e *Engine) BringPlayerOntoField(ctx context.Context, in BringPlayerOntoFieldInput) (Result, error) {
	const op = "bringPlayerOntoField"
	return e.write(ctx, op, in.GameTeamID, func(w *writer) error {
		period, err := w.livePeriod(in.Period)
		if err != nil {
			return err
		}
		_, err = w.append(model.GameEvent{
			EventType:        model.EventSubstitutionIn,
			Period:           period,
			PeriodSecond:     in.PeriodSecond,
			Subject:          in.Player,
			Position:         in.Position,
			RecordedByUserID: in.RecordedBy,
		})
		return err
	})
}

// SubstitutePlayerInput is the input to SubstitutePlayer.
type SubstitutePlayerInput struct {
	GameTeamID       string        `json:"game_team_id"`
	Period           string        `json:"period,omitempty"`
	PeriodSecond     int           `json:"period_second"`
	PlayerOutEventID string        `json:"player_out_event_id"`
	PlayerIn         model.Subject `json:"player_in"`
	// Position defaults to the outgoing player's position.
	Position   string `json:"position,omitempty"`
	RecordedBy string `json:"recorded_by_user_id"`
}

// SubstitutePlayer takes the player named by PlayerOutEventID off and puts
// PlayerIn on: a SUBSTITUTION_OUT and a SUBSTITUTION_IN at the same period
// and second, with no parent. The outgoing player must be on the field and
// the incoming one must not be.
func (e *Engine) SubstitutePlayer(ctx context.Context, in SubstitutePlayerInput) (Result, error) {
	const op = "substitutePlayer"
	return e.write(ctx, op, in.GameTeamID, func(w *writer) error {
		st, err := w.stage(in.Period, in.PeriodSecond, in.RecordedBy)
		if err != nil {
			return err
		}
		if err := st.substitute(in.PlayerOutEventID, in.PlayerIn, in.Position); err != nil {
			return err
		}
		return st.commit()
	})
}

// SwapPositionsInput is the input to SwapPositions.
type SwapPositionsInput struct {
	GameTeamID     string `json:"game_team_id"`
	Period         string `json:"period,omitempty"`
	PeriodSecond   int    `json:"period_second"`
	Player1EventID string `json:"player1_event_id"`
	Player2EventID string `json:"player2_event_id"`
	RecordedBy     string `json:"recorded_by_user_id"`
}

// SwapPositions exchanges the positions of two on-field players. The events
// that put them on the field are left alone.
func (e *Engine) SwapPositions(ctx context.Context, in SwapPositionsInput) (Result, error) {
	const op = "swapPositions"
	return e.write(ctx, op, in.GameTeamID, func(w *writer) error {
		st, err := w.stage(in.Period, in.PeriodSecond, in.RecordedBy)
		if err != nil {
			return err
		}
		a, err := st.resolveEvent(in.Player1EventID)
		if err != nil {
			return err
		}
		b, err := st.resolveEvent(in.Player2EventID)
		if err != nil {
			return err
		}
		if err := st.swap(a, b); err != nil {
			return err
		}
		return st.commit()
	})
}

// RemovePlayerFromFieldInput is the input to RemovePlayerFromField.
type RemovePlayerFromFieldInput struct {
	GameTeamID    string `json:"game_team_id"`
	Period        string `json:"period,omitempty"`
	PeriodSecond  int    `json:"period_second"`
	PlayerEventID string `json:"player_event_id"`
	RecordedBy    string `json:"recorded_by_user_id"`
}

// RemovePlayerFromField records a lone SUBSTITUTION_OUT (injury, red card)
// with nobody coming on.
func (e *Engine) RemovePlayerFromField(ctx context.Context, in RemovePlayerFromFieldInput) (Result, error) {
	const op = "removePlayerFromField"
	return e.write(ctx, op, in.GameTeamID, func(w *writer) error {
		period, err := w.livePeriod(in.Period)
		if err != nil {
			return err
		}
		p, err := w.onField(in.PlayerEventID)
		if err != nil {
			return err
		}
		_, err = w.append(model.GameEvent{
			EventType:        model.EventSubstitutionOut,
			Period:           period,
			PeriodSecond:     in.PeriodSecond,
			Subject:          p.Subject,
			Position:         p.Position,
			RecordedByUserID: in.RecordedBy,
		})
		return err
	})
}

// RecordPositionChangeInput is the input to RecordPositionChange.
type RecordPositionChangeInput struct {
	GameTeamID    string `json:"game_team_id"`
	Period        string `json:"period,omitempty"`
	PeriodSecond  int    `json:"period_second"`
	PlayerEventID string `json:"player_event_id"`
	Position      string `json:"position"`
	RecordedBy    string `json:"recorded_by_user_id"`
}

// RecordPositionChange moves one on-field player to a new position. The
// POSITION_CHANGE is a child of the player's on-field SUBSTITUTION_IN, so it
// goes away with that entry.
func (e *Engine) RecordPositionChange(ctx context.Context, in RecordPositionChangeInput) (Result, error) {
	const op = "recordPositionChange"
	return e.write(ctx, op, in.GameTeamID, func(w *writer) error {
		if in.Position == "" {
			return &Error{Code: ErrCodeValidation, Op: op, Message: "position is required", Details: map[string]string{"field": "position"}}
		}
		period, err := w.livePeriod(in.Period)
		if err != nil {
			return err
		}
		p, err := w.onField(in.PlayerEventID)
		if err != nil {
			return err
		}
		_, err = w.append(model.GameEvent{
			EventType:        model.EventPositionChange,
			Period:           period,
			PeriodSecond:     in.PeriodSecond,
			Subject:          p.Subject,
			Position:         in.Position,
			ParentEventID:    p.EventID,
			RecordedByUserID: in.RecordedBy,
		})
		return err
	})
}
