package engine

import (
	"context"

	"github.com/roach88/gameledger/internal/model"
	"github.com/roach88/gameledger/internal/projection"
)

// BatchSubstitution replaces one on-field player.
type BatchSubstitution struct {
	PlayerOutEventID string        `json:"player_out_event_id" yaml:"player_out_event_id"`
	PlayerIn         model.Subject `json:"player_in" yaml:"player_in"`
	// Position defaults to the outgoing player's position.
	Position string `json:"position,omitempty" yaml:"position,omitempty"`
}

// SwapRef names one side of a swap: an event of a player already on the
// field, or the incoming player of a substitution earlier in the same batch.
// Exactly one field must be set.
type SwapRef struct {
	EventID           string `json:"event_id,omitempty" yaml:"event_id,omitempty"`
	SubstitutionIndex *int   `json:"substitution_index,omitempty" yaml:"substitution_index,omitempty"`
}

// BatchSwap exchanges two on-field players' positions.
type BatchSwap struct {
	Player1 SwapRef `json:"player1" yaml:"player1"`
	Player2 SwapRef `json:"player2" yaml:"player2"`
}

// BatchLineupInput is the input to BatchLineupChanges.
type BatchLineupInput struct {
	GameTeamID string `json:"game_team_id"`
	// Period defaults to the period in progress.
	Period        string              `json:"period,omitempty"`
	PeriodSecond  int                 `json:"period_second"`
	Substitutions []BatchSubstitution `json:"substitutions"`
	Swaps         []BatchSwap         `json:"swaps"`
	RecordedBy    string              `json:"recorded_by_user_id"`
}

// BatchLineupChanges applies substitutions in order, then swaps, as one
// atomic write. A swap may name a player brought on by this batch through
// SwapRef.SubstitutionIndex. Any failure leaves the log untouched.
func (e *Engine) BatchLineupChanges(ctx context.Context, in BatchLineupInput) (Result, error) {
	const op = "batchLineupChanges"
	return e.write(ctx, op, in.GameTeamID, func(w *writer) error {
		if len(in.Substitutions) == 0 && len(in.Swaps) == 0 {
			return invalid(op, "batch is empty")
		}
		st, err := w.stage(in.Period, in.PeriodSecond, in.RecordedBy)
		if err != nil {
			return err
		}
		for _, sub := range in.Substitutions {
			if err := st.substitute(sub.PlayerOutEventID, sub.PlayerIn, sub.Position); err != nil {
				return err
			}
		}
		for i, sw := range in.Swaps {
			a, err := st.resolveRef(i, sw.Player1)
			if err != nil {
				return err
			}
			b, err := st.resolveRef(i, sw.Player2)
			if err != nil {
				return err
			}
			if err := st.swap(a, b); err != nil {
				return err
			}
		}
		return st.commit()
	})
}

// staging builds a lineup change in memory: ids are assigned and operands
// resolved against a staged copy of the field before anything is written.
type staging struct {
	w        *writer
	period   string
	second   int
	recorder string

	field    []projection.LineupPlayer
	events   []model.GameEvent
	incoming []model.GameEvent // SUBSTITUTION_IN per substitution index
}

func (w *writer) stage(period string, second int, recorder string) (*staging, error) {
	p, err := w.livePeriod(period)
	if err != nil {
		return nil, err
	}
	if err := model.ValidatePeriodSecond(second); err != nil {
		return nil, validationError(w.op, err)
	}
	return &staging{
		w:        w,
		period:   p,
		second:   second,
		recorder: recorder,
		field:    w.lineup().CurrentOnField,
	}, nil
}

func (s *staging) indexOf(subject model.Subject) int {
	key := model.SubjectKey(subject)
	for i, p := range s.field {
		if model.SubjectKey(p.Subject) == key {
			return i
		}
	}
	return -1
}

// resolveEvent maps an event id, staged or stored, to the player's staged
// field entry.
func (s *staging) resolveEvent(eventID string) (projection.LineupPlayer, error) {
	var subject model.Subject
	found := false
	for _, ev := range s.events {
		if ev.ID == eventID {
			subject, found = ev.Subject, true
			break
		}
	}
	if !found {
		ev, err := s.w.event(eventID)
		if err != nil {
			return projection.LineupPlayer{}, err
		}
		if !ev.EventType.RequiresSubject() {
			return projection.LineupPlayer{}, invalid(s.w.op, "event %s (%s) does not name a player", ev.ID, ev.EventType)
		}
		subject = ev.Subject
	}

	i := s.indexOf(subject)
	if i < 0 {
		return projection.LineupPlayer{}, &Error{
			Code:    ErrCodeState,
			Op:      s.w.op,
			State:   "OFF_FIELD",
			EventID: eventID,
			Message: "player " + subject.String() + " is not on the field",
		}
	}
	return s.field[i], nil
}

func (s *staging) resolveRef(swap int, ref SwapRef) (projection.LineupPlayer, error) {
	switch {
	case ref.SubstitutionIndex != nil && ref.EventID != "":
		return projection.LineupPlayer{}, invalid(s.w.op, "swap %d: set event_id or substitution_index, not both", swap)
	case ref.SubstitutionIndex != nil:
		idx := *ref.SubstitutionIndex
		if idx < 0 || idx >= len(s.incoming) {
			return projection.LineupPlayer{}, invalid(s.w.op, "swap %d: substitution_index %d out of range [0, %d)", swap, idx, len(s.incoming))
		}
		return s.resolveEvent(s.incoming[idx].ID)
	case ref.EventID != "":
		return s.resolveEvent(ref.EventID)
	default:
		return projection.LineupPlayer{}, invalid(s.w.op, "swap %d: a player reference is required", swap)
	}
}

// substitute stages SUBSTITUTION_OUT for the player behind outEventID and
// SUBSTITUTION_IN for in. The pair shares period and second and has no
// parent.
func (s *staging) substitute(outEventID string, in model.Subject, position string) error {
	out, err := s.resolveEvent(outEventID)
	if err != nil {
		return err
	}
	if err := model.ValidateSubject(model.EventSubstitutionIn, in); err != nil {
		return validationError(s.w.op, err)
	}
	if s.indexOf(in) >= 0 {
		return &Error{
			Code:    ErrCodeState,
			Op:      s.w.op,
			State:   "ON_FIELD",
			Message: "player " + in.String() + " is already on the field",
		}
	}
	if position == "" {
		position = out.Position
	}

	outEv := model.GameEvent{
		ID:               s.w.e.ids.Generate(),
		EventType:        model.EventSubstitutionOut,
		Period:           s.period,
		PeriodSecond:     s.second,
		Subject:          out.Subject,
		Position:         out.Position,
		RecordedByUserID: s.recorder,
	}
	inEv := model.GameEvent{
		ID:               s.w.e.ids.Generate(),
		EventType:        model.EventSubstitutionIn,
		Period:           s.period,
		PeriodSecond:     s.second,
		Subject:          in,
		Position:         position,
		RecordedByUserID: s.recorder,
	}
	s.events = append(s.events, outEv, inEv)
	s.incoming = append(s.incoming, inEv)

	s.field[s.indexOf(out.Subject)] = projection.LineupPlayer{
		EventID:      inEv.ID,
		Subject:      in,
		Position:     position,
		Period:       s.period,
		PeriodSecond: s.second,
	}
	return nil
}

// swap stages two POSITION_CHANGE events: a takes b's position as a child of
// a's on-field SUBSTITUTION_IN, and b takes a's as a child of the first, so
// the swap is one deletable subtree.
func (s *staging) swap(a, b projection.LineupPlayer) error {
	if model.SubjectKey(a.Subject) == model.SubjectKey(b.Subject) {
		return invalid(s.w.op, "cannot swap player %s with themselves", a.Subject)
	}

	first := model.GameEvent{
		ID:               s.w.e.ids.Generate(),
		EventType:        model.EventPositionChange,
		Period:           s.period,
		PeriodSecond:     s.second,
		Subject:          a.Subject,
		Position:         b.Position,
		ParentEventID:    a.EventID,
		RecordedByUserID: s.recorder,
	}
	second := model.GameEvent{
		ID:               s.w.e.ids.Generate(),
		EventType:        model.EventPositionChange,
		Period:           s.period,
		PeriodSecond:     s.second,
		Subject:          b.Subject,
		Position:         a.Position,
		ParentEventID:    first.ID,
		RecordedByUserID: s.recorder,
	}
	s.events = append(s.events, first, second)

	s.field[s.indexOf(a.Subject)].Position = b.Position
	s.field[s.indexOf(b.Subject)].Position = a.Position
	return nil
}

// commit appends every staged event in order.
func (s *staging) commit() error {
	for _, ev := range s.events {
		if _, err := s.w.append(ev); err != nil {
			return err
		}
	}
	return nil
}
