package engine

import (
	"context"
	"fmt"

	"github.com/roach88/gameledger/internal/model"
)

// assessDelete builds the pre-flight view for deleting root together with
// dependents. log is the game team's whole log.
//
// A delete is blocked when it would leave the log in a state the period
// machine cannot reach:
//   - a PERIOD_END with no PERIOD_START for its period
//   - two periods in progress at once
func assessDelete(root model.GameEvent, dependents []model.GameEvent, log []model.GameEvent) model.DependentEventsResult {
	if dependents == nil {
		dependents = []model.GameEvent{}
	}
	r := model.DependentEventsResult{
		Event:      root,
		Dependents: dependents,
		Count:      len(dependents),
		CanDelete:  true,
	}

	removed := make(map[string]bool, len(dependents)+1)
	removed[root.ID] = true
	for _, d := range dependents {
		removed[d.ID] = true
	}

	switch root.EventType {
	case model.EventPeriodStart:
		otherStart, endRemains := false, false
		for _, ev := range log {
			if removed[ev.ID] || ev.Period != root.Period {
				continue
			}
			switch ev.EventType {
			case model.EventPeriodStart:
				otherStart = true
			case model.EventPeriodEnd:
				endRemains = true
			}
		}
		if endRemains && !otherStart {
			r.CanDelete = false
			r.Warning = fmt.Sprintf("period %s has ended; delete its PERIOD_END before its PERIOD_START", root.Period)
		}
	case model.EventPeriodEnd:
		for _, ev := range log {
			if removed[ev.ID] || ev.EventType != model.EventPeriodStart || ev.Period == root.Period {
				continue
			}
			if ev.Seq > root.Seq {
				r.CanDelete = false
				r.Warning = fmt.Sprintf("period %s has started since; reopening period %s would leave two periods in progress", ev.Period, root.Period)
				break
			}
		}
	}

	if r.CanDelete && r.Count > 0 {
		r.Warning = fmt.Sprintf("deleting this %s also deletes %d dependent event(s)", root.EventType, r.Count)
	}
	return r
}

// subtreeIDs returns each root followed by its descendants, without repeats.
func (w *writer) subtreeIDs(roots []string) ([]string, error) {
	var ids []string
	seen := make(map[string]bool)
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, root := range roots {
		add(root)
		desc, err := w.tx.Descendants(w.ctx, root)
		if err != nil {
			return nil, err
		}
		for _, d := range desc {
			add(d.ID)
		}
	}
	return ids, nil
}

// deleteTrees deletes every root with its whole subtree in one statement,
// after checking each subtree may go.
func (w *writer) deleteTrees(roots ...model.GameEvent) error {
	var ids []string
	seen := make(map[string]bool)
	for _, root := range roots {
		desc, err := w.tx.Descendants(w.ctx, root.ID)
		if err != nil {
			return err
		}
		r := assessDelete(root, desc, w.log)
		if !r.CanDelete {
			return integrityBlock(w.op, r)
		}
		for _, id := range r.IDs() {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return w.remove(ids)
}

// DeleteEventInput is the input to DeleteEventWithCascade.
type DeleteEventInput struct {
	EventID string `json:"event_id"`
	// ExpectedType guards against stale clients. Empty skips the check.
	ExpectedType model.EventType `json:"expected_event_type,omitempty"`
}

// DeleteEventWithCascade deletes an event and every event that depends on
// it, exactly the set DependentEvents reports, in one transaction.
func (e *Engine) DeleteEventWithCascade(ctx context.Context, in DeleteEventInput) (Result, error) {
	return e.deleteTyped(ctx, "deleteEventWithCascade", in.EventID, func(ev model.GameEvent) bool {
		return in.ExpectedType == "" || ev.EventType == in.ExpectedType
	}, string(in.ExpectedType), nil)
}

// DeleteGoal deletes a GOAL and its ASSIST.
func (e *Engine) DeleteGoal(ctx context.Context, eventID string) (Result, error) {
	return e.deleteTyped(ctx, "deleteGoal", eventID, isType(model.EventGoal), string(model.EventGoal), nil)
}

// DeleteSubstitution deletes a SUBSTITUTION_IN or SUBSTITUTION_OUT. When the
// event is one half of a substitution pair (an OUT immediately followed by an
// IN at the same second by the same recorder, neither with a parent), the
// other half goes too.
func (e *Engine) DeleteSubstitution(ctx context.Context, eventID string) (Result, error) {
	isSub := func(ev model.GameEvent) bool { return ev.EventType.IsSubstitution() }
	return e.deleteTyped(ctx, "deleteSubstitution", eventID, isSub, "SUBSTITUTION_IN|SUBSTITUTION_OUT", substitutionPartner)
}

// DeletePositionSwap deletes a swap. Either POSITION_CHANGE of the swap may
// be given; the delete starts from the first one.
func (e *Engine) DeletePositionSwap(ctx context.Context, eventID string) (Result, error) {
	return e.deleteTyped(ctx, "deletePositionSwap", eventID, isType(model.EventPositionChange), string(model.EventPositionChange), swapRoot)
}

// DeleteStarterEntry deletes a starter: a SUBSTITUTION_IN created by
// StartPeriod.
func (e *Engine) DeleteStarterEntry(ctx context.Context, eventID string) (Result, error) {
	const op = "deleteStarterEntry"
	gameTeamID, err := e.gameTeamOf(ctx, op, eventID)
	if err != nil {
		return Result{}, err
	}
	return e.write(ctx, op, gameTeamID, func(w *writer) error {
		ev, err := w.event(eventID)
		if err != nil {
			return err
		}
		parent, hasParent := w.find(ev.ParentEventID)
		if ev.EventType != model.EventSubstitutionIn || !hasParent || parent.EventType != model.EventPeriodStart {
			return stateError(op, string(ev.EventType), "event %s is not a starter entry", ev.ID)
		}
		return w.deleteTrees(ev)
	})
}

// RemoveFromLineup deletes a GAME_ROSTER entry. It is refused while the
// player is on the field.
func (e *Engine) RemoveFromLineup(ctx context.Context, eventID string) (Result, error) {
	const op = "removeFromLineup"
	gameTeamID, err := e.gameTeamOf(ctx, op, eventID)
	if err != nil {
		return Result{}, err
	}
	return e.write(ctx, op, gameTeamID, func(w *writer) error {
		ev, err := w.event(eventID)
		if err != nil {
			return err
		}
		if ev.EventType != model.EventGameRoster {
			return stateError(op, string(ev.EventType), "event %s is not a GAME_ROSTER entry", ev.ID)
		}
		if _, on := w.lineup().OnField(ev.Subject); on {
			return &Error{
				Code:    ErrCodeState,
				Op:      op,
				State:   "ON_FIELD",
				EventID: ev.ID,
				Message: "player " + ev.Subject.String() + " is on the field; take them off first",
			}
		}
		return w.deleteTrees(ev)
	})
}

func isType(t model.EventType) func(model.GameEvent) bool {
	return func(ev model.GameEvent) bool { return ev.EventType == t }
}

// deleteTyped checks the target's type, optionally expands it to related
// roots, and cascades. A type mismatch means the caller's view is stale, so
// it is a STATE error carrying the actual type.
func (e *Engine) deleteTyped(
	ctx context.Context,
	op, eventID string,
	accept func(model.GameEvent) bool,
	want string,
	expand func(log []model.GameEvent, ev model.GameEvent) []model.GameEvent,
) (Result, error) {
	gameTeamID, err := e.gameTeamOf(ctx, op, eventID)
	if err != nil {
		return Result{}, err
	}
	return e.write(ctx, op, gameTeamID, func(w *writer) error {
		ev, err := w.event(eventID)
		if err != nil {
			return err
		}
		if !accept(ev) {
			return &Error{
				Code:    ErrCodeState,
				Op:      op,
				State:   string(ev.EventType),
				EventID: ev.ID,
				Message: fmt.Sprintf("expected %s, found %s", want, ev.EventType),
			}
		}
		roots := []model.GameEvent{ev}
		if expand != nil {
			roots = expand(w.log, ev)
		}
		return w.deleteTrees(roots...)
	})
}

// substitutionPartner returns ev plus the other half of its pair, if any.
func substitutionPartner(log []model.GameEvent, ev model.GameEvent) []model.GameEvent {
	if ev.ParentEventID != "" {
		return []model.GameEvent{ev}
	}
	want, seq := model.EventSubstitutionIn, ev.Seq+1
	if ev.EventType == model.EventSubstitutionIn {
		want, seq = model.EventSubstitutionOut, ev.Seq-1
	}
	for _, other := range log {
		if other.Seq != seq {
			continue
		}
		if other.EventType == want &&
			other.ParentEventID == "" &&
			other.Period == ev.Period &&
			other.PeriodSecond == ev.PeriodSecond &&
			other.RecordedByUserID == ev.RecordedByUserID {
			if want == model.EventSubstitutionOut {
				return []model.GameEvent{other, ev}
			}
			return []model.GameEvent{ev, other}
		}
		break
	}
	return []model.GameEvent{ev}
}

// swapRoot walks up POSITION_CHANGE parents to the first event of the swap.
func swapRoot(log []model.GameEvent, ev model.GameEvent) []model.GameEvent {
	byID := make(map[string]model.GameEvent, len(log))
	for _, e := range log {
		byID[e.ID] = e
	}
	root := ev
	for steps := 0; steps < len(log); steps++ {
		parent, ok := byID[root.ParentEventID]
		if !ok || parent.EventType != model.EventPositionChange {
			break
		}
		root = parent
	}
	return []model.GameEvent{root}
}

// DependentEvents reports what DeleteEventWithCascade would remove for
// eventID and whether it is allowed. Nothing is changed.
func (e *Engine) DependentEvents(ctx context.Context, eventID string) (model.DependentEventsResult, error) {
	const op = "dependentEvents"
	root, err := e.store.Get(ctx, eventID)
	if err != nil {
		return model.DependentEventsResult{}, e.readErr(op, "event", eventID, err)
	}
	desc, err := e.store.Descendants(ctx, eventID)
	if err != nil {
		return model.DependentEventsResult{}, e.fail(op, err)
	}
	log, err := e.store.EventsFor(ctx, root.GameTeamID)
	if err != nil {
		return model.DependentEventsResult{}, e.fail(op, err)
	}
	return assessDelete(root, desc, log), nil
}

