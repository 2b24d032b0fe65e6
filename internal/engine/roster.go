package engine

import (
	"context"

	"github.com/roach88/gameledger/internal/model"
)

// DefaultRosterPeriod is the period roster entries are filed under when the
// caller names none.
const DefaultRosterPeriod = "1"

// AddPlayerToGameRosterInput is the input to AddPlayerToGameRoster.
type AddPlayerToGameRosterInput struct {
	GameTeamID string        `json:"game_team_id"`
	Player     model.Subject `json:"player"`
	// Position marks a planned starter. Empty puts the player on the bench.
	Position string `json:"position,omitempty"`
	// Period defaults to DefaultRosterPeriod.
	Period     string `json:"period,omitempty"`
	RecordedBy string `json:"recorded_by_user_id"`
}

// AddPlayerToGameRoster records a GAME_ROSTER entry. Adding a player again
// replaces the earlier entry in the lineup view; nothing is deleted.
func (e *Engine) AddPlayerToGameRoster(ctx context.Context, in AddPlayerToGameRosterInput) (Result, error) {
	const op = "addPlayerToGameRoster"
	return e.write(ctx, op, in.GameTeamID, func(w *writer) error {
		period := in.Period
		if period == "" {
			period = DefaultRosterPeriod
		}
		_, err := w.append(model.GameEvent{
			EventType:        model.EventGameRoster,
			Period:           period,
			PeriodSecond:     0,
			Subject:          in.Player,
			Position:         in.Position,
			RecordedByUserID: in.RecordedBy,
		})
		return err
	})
}
