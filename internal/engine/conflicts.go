package engine

import (
	"context"

	"github.com/roach88/gameledger/internal/model"
	"github.com/roach88/gameledger/internal/notify"
)

// ResolveConflictInput is the input to ResolveEventConflict.
type ResolveConflictInput struct {
	ConflictID string `json:"conflict_id"`
	// SelectedEventID is the member to keep. Ignored when KeepAll is set.
	SelectedEventID string `json:"selected_event_id,omitempty"`
	// KeepAll keeps every member and just dissolves the group.
	KeepAll    bool   `json:"keep_all,omitempty"`
	RecordedBy string `json:"recorded_by_user_id,omitempty"`
}

// ResolveEventConflict is a human's ruling on a conflict group.
//
// With KeepAll, every member stays and loses its conflict marker. Otherwise
// SelectedEventID stays, unmarked, and every other member is deleted with its
// dependents. Either way the group is gone afterwards.
func (e *Engine) ResolveEventConflict(ctx context.Context, in ResolveConflictInput) (Result, error) {
	const op = "resolveEventConflict"
	if in.ConflictID == "" {
		return Result{}, invalid(op, "conflict id is required")
	}
	if !in.KeepAll && in.SelectedEventID == "" {
		return Result{}, invalid(op, "selected event id is required unless keep_all is set")
	}

	members, err := e.store.ConflictMembers(ctx, in.ConflictID)
	if err != nil {
		return Result{}, e.fail(op, err)
	}
	if len(members) == 0 {
		return Result{}, notFound(op, "conflict", in.ConflictID)
	}

	return e.write(ctx, op, members[0].GameTeamID, func(w *writer) error {
		group := w.conflict(in.ConflictID)
		if len(group.Events) == 0 {
			return notFound(op, "conflict", in.ConflictID)
		}

		if in.KeepAll {
			for _, m := range group.Events {
				w.written = append(w.written, m.ID)
			}
			return w.dissolve(in.ConflictID)
		}

		var keep model.GameEvent
		var drop []model.GameEvent
		for _, m := range group.Events {
			if m.ID == in.SelectedEventID {
				keep = m
			} else {
				drop = append(drop, m)
			}
		}
		if keep.ID == "" {
			return invalid(op, "event %s is not a member of conflict %s", in.SelectedEventID, in.ConflictID)
		}

		if err := w.tx.SetConflictID(w.ctx, []string{keep.ID}, ""); err != nil {
			return err
		}
		fresh, err := w.tx.Get(w.ctx, keep.ID)
		if err != nil {
			return err
		}
		w.replace(fresh)
		w.written = append(w.written, fresh.ID)
		w.messages = append(w.messages, notify.Updated(fresh))

		for _, d := range drop {
			desc, err := w.tx.Descendants(w.ctx, d.ID)
			if err != nil {
				return err
			}
			for _, ev := range desc {
				if ev.ID == keep.ID {
					return stateError(op, "DEPENDENT", "event %s depends on %s; select %s instead", keep.ID, d.ID, d.ID)
				}
			}
		}
		if err := w.deleteTrees(drop...); err != nil {
			return err
		}

		e.logger.Info("conflict resolved",
			"conflict_id", in.ConflictID,
			"kept", keep.ID,
			"deleted", len(w.deleted),
			"resolved_by", in.RecordedBy,
		)
		return nil
	})
}
