package engine

import (
	"context"
	"errors"

	"github.com/roach88/gameledger/internal/conflict"
	"github.com/roach88/gameledger/internal/model"
	"github.com/roach88/gameledger/internal/notify"
	"github.com/roach88/gameledger/internal/projection"
	"github.com/roach88/gameledger/internal/store"
)

// writer carries one command's transaction and its view of the log.
//
// log mirrors the game team's rows inside the transaction. Every append,
// update and delete goes to the store first and is then applied to log, so
// state checks later in the same command see earlier writes.
type writer struct {
	ctx        context.Context
	e          *Engine
	tx         *store.Tx
	op         string
	gameTeamID string

	log []model.GameEvent

	written    []string // created or updated ids, in write order
	deleted    []string
	duplicates []string
	conflicts  []string // conflict ids created or grown
	messages   []notify.Message
}

func newWriter(ctx context.Context, e *Engine, tx *store.Tx, op string) (*writer, error) {
	log, err := tx.EventsFor(ctx, tx.GameTeamID())
	if err != nil {
		return nil, err
	}
	return &writer{
		ctx:        ctx,
		e:          e,
		tx:         tx,
		op:         op,
		gameTeamID: tx.GameTeamID(),
		log:        log,
	}, nil
}

func (w *writer) find(id string) (model.GameEvent, bool) {
	for _, ev := range w.log {
		if ev.ID == id {
			return ev, true
		}
	}
	return model.GameEvent{}, false
}

// event returns an event of this game team. An id that belongs to another
// game team is a validation error, an unknown id is NOT_FOUND.
func (w *writer) event(id string) (model.GameEvent, error) {
	if id == "" {
		return model.GameEvent{}, invalid(w.op, "event id is required")
	}
	if ev, ok := w.find(id); ok {
		return ev, nil
	}
	ev, err := w.tx.Get(w.ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return model.GameEvent{}, notFound(w.op, "event", id)
	}
	if err != nil {
		return model.GameEvent{}, err
	}
	return model.GameEvent{}, invalid(w.op, "event %s belongs to game team %s", id, ev.GameTeamID)
}

func (w *writer) lineup() projection.GameLineup {
	return projection.Lineup(w.gameTeamID, w.log)
}

func (w *writer) periodState(period string) model.PeriodState {
	return projection.PeriodState(w.log, period)
}

// livePeriod resolves the period a mid-game command applies to: the given
// one, or the period in progress when empty. The result must be in progress.
func (w *writer) livePeriod(period string) (string, error) {
	if period == "" {
		active, ok := projection.ActivePeriod(w.log)
		if !ok {
			return "", stateError(w.op, string(model.PeriodNotStarted), "no period is in progress")
		}
		return active, nil
	}
	if err := model.ValidatePeriod(period); err != nil {
		return "", validationError(w.op, err)
	}
	if st := w.periodState(period); st != model.PeriodInProgress {
		return "", stateError(w.op, string(st), "period %s is not in progress", period)
	}
	return period, nil
}

// startedPeriod resolves the period for events that may be logged after the
// fact (goals, cards): the period must have started, and may have ended.
func (w *writer) startedPeriod(period string) (string, error) {
	if period == "" {
		return w.livePeriod("")
	}
	if err := model.ValidatePeriod(period); err != nil {
		return "", validationError(w.op, err)
	}
	if st := w.periodState(period); st == model.PeriodNotStarted {
		return "", stateError(w.op, string(st), "period %s has not started", period)
	}
	return period, nil
}

// onField resolves an event id naming a player to that player's current
// on-field entry.
func (w *writer) onField(eventID string) (projection.LineupPlayer, error) {
	ev, err := w.event(eventID)
	if err != nil {
		return projection.LineupPlayer{}, err
	}
	if !ev.EventType.RequiresSubject() {
		return projection.LineupPlayer{}, invalid(w.op, "event %s (%s) does not name a player", ev.ID, ev.EventType)
	}
	p, ok := w.lineup().OnField(ev.Subject)
	if !ok {
		return projection.LineupPlayer{}, &Error{
			Code:    ErrCodeState,
			Op:      w.op,
			State:   "OFF_FIELD",
			EventID: ev.ID,
			Message: "player " + ev.Subject.String() + " is not on the field",
		}
	}
	return p, nil
}

// append validates ev, runs conflict detection and inserts it. Empty ids are
// generated.
func (w *writer) append(ev model.GameEvent) (model.GameEvent, error) {
	if ev.ID == "" {
		ev.ID = w.e.ids.Generate()
	}
	ev.GameTeamID = w.gameTeamID
	ev.ConflictID = ""

	if err := model.Validate(ev); err != nil {
		return model.GameEvent{}, validationError(w.op, err)
	}
	if _, ok := w.find(ev.ID); ok {
		return model.GameEvent{}, invalid(w.op, "event id %s already exists", ev.ID)
	}
	if ev.ParentEventID != "" {
		if _, err := w.event(ev.ParentEventID); err != nil {
			return model.GameEvent{}, err
		}
	}

	dec := w.e.detector.Detect(w.log, ev)
	if dec.HasConflict() {
		ev.ConflictID = dec.ConflictID
		if ev.ConflictID == "" {
			ev.ConflictID = w.e.ids.Generate()
		}
	}

	inserted, err := w.tx.Insert(w.ctx, ev)
	if err != nil {
		return model.GameEvent{}, err
	}
	w.log = append(w.log, inserted)
	w.written = append(w.written, inserted.ID)
	w.messages = append(w.messages, notify.Created(inserted))

	if err := w.settle(inserted, dec); err != nil {
		return model.GameEvent{}, err
	}
	return inserted, nil
}

// update rewrites a goal-like event in place and re-runs conflict detection
// for it: it leaves its old group and joins whatever it now collides with.
func (w *writer) update(ev model.GameEvent) (model.GameEvent, error) {
	if err := model.Validate(ev); err != nil {
		return model.GameEvent{}, validationError(w.op, err)
	}

	if old := ev.ConflictID; old != "" {
		if err := w.tx.SetConflictID(w.ctx, []string{ev.ID}, ""); err != nil {
			return model.GameEvent{}, err
		}
		w.setLocal(ev.ID, "")
		if err := w.pruneConflict(old); err != nil {
			return model.GameEvent{}, err
		}
	}

	updated, err := w.tx.UpdateEvent(w.ctx, ev)
	if err != nil {
		return model.GameEvent{}, err
	}
	w.replace(updated)

	dec := w.e.detector.Detect(w.log, updated)
	if dec.HasConflict() {
		cid := dec.ConflictID
		if cid == "" {
			cid = w.e.ids.Generate()
		}
		if err := w.tx.SetConflictID(w.ctx, []string{updated.ID}, cid); err != nil {
			return model.GameEvent{}, err
		}
		if updated, err = w.tx.Get(w.ctx, updated.ID); err != nil {
			return model.GameEvent{}, err
		}
		w.replace(updated)
	}

	w.written = append(w.written, updated.ID)
	w.messages = append(w.messages, notify.Updated(updated))
	if err := w.settle(updated, dec); err != nil {
		return model.GameEvent{}, err
	}
	return updated, nil
}

// settle applies a detection decision for ev, which is already stored with
// its conflict id.
func (w *writer) settle(ev model.GameEvent, dec conflict.Decision) error {
	if dec.HasDuplicates() {
		w.duplicates = append(w.duplicates, ev.ID)
		w.messages = append(w.messages, notify.DuplicateDetected(ev, dec.Duplicates))
		w.e.logger.Warn("duplicate event",
			"event_id", ev.ID,
			"event_type", ev.EventType,
			"recorded_by", ev.RecordedByUserID,
			"matches", len(dec.Duplicates),
		)
	}
	if !dec.HasConflict() {
		return nil
	}

	cid := ev.ConflictID
	for _, from := range dec.Merged {
		if err := w.tx.RenameConflict(w.ctx, from, cid); err != nil {
			return err
		}
	}
	var mark []string
	for _, other := range dec.Conflicting {
		if other.ConflictID == "" {
			mark = append(mark, other.ID)
		}
	}
	if err := w.tx.SetConflictID(w.ctx, mark, cid); err != nil {
		return err
	}

	merged := make(map[string]bool, len(dec.Merged))
	for _, m := range dec.Merged {
		merged[m] = true
	}
	marked := make(map[string]bool, len(mark))
	for _, id := range mark {
		marked[id] = true
	}
	for _, other := range w.log {
		if !marked[other.ID] && !(other.ConflictID != "" && merged[other.ConflictID]) {
			continue
		}
		fresh, err := w.tx.Get(w.ctx, other.ID)
		if err != nil {
			return err
		}
		w.replace(fresh)
		w.messages = append(w.messages, notify.Updated(fresh))
	}

	info := w.conflict(cid)
	w.touchConflict(cid)
	w.messages = append(w.messages, notify.ConflictDetected(info))
	w.e.logger.Info("conflict detected",
		"conflict_id", cid,
		"game_team_id", w.gameTeamID,
		"event_type", ev.EventType,
		"events", len(info.Events),
		"recorders", info.Recorders(),
	)
	return nil
}

// remove deletes ids in one statement, then clears the marker from any
// conflict group the delete left without two recorders.
func (w *writer) remove(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := w.tx.DeleteEvents(w.ctx, ids); err != nil {
		return err
	}

	gone := make(map[string]bool, len(ids))
	for _, id := range ids {
		gone[id] = true
	}
	var affected []string
	seen := make(map[string]bool)
	kept := make([]model.GameEvent, 0, len(w.log))
	for _, ev := range w.log {
		if !gone[ev.ID] {
			kept = append(kept, ev)
			continue
		}
		if ev.ConflictID != "" && !seen[ev.ConflictID] {
			seen[ev.ConflictID] = true
			affected = append(affected, ev.ConflictID)
		}
	}
	w.log = kept

	for _, id := range ids {
		w.deleted = append(w.deleted, id)
		w.messages = append(w.messages, notify.Deleted(w.gameTeamID, id))
	}
	for _, cid := range affected {
		if err := w.pruneConflict(cid); err != nil {
			return err
		}
	}
	return nil
}

// pruneConflict dissolves group cid if it no longer spans two recorders.
func (w *writer) pruneConflict(cid string) error {
	info := w.conflict(cid)
	if len(info.Events) >= 2 && len(info.Recorders()) >= 2 {
		return nil
	}
	return w.dissolve(cid)
}

// dissolve clears cid from every member still carrying it.
func (w *writer) dissolve(cid string) error {
	members := w.conflict(cid).Events
	if err := w.tx.ClearConflict(w.ctx, cid); err != nil {
		return err
	}
	for _, m := range members {
		fresh, err := w.tx.Get(w.ctx, m.ID)
		if err != nil {
			return err
		}
		w.replace(fresh)
		w.messages = append(w.messages, notify.Updated(fresh))
	}
	w.e.logger.Info("conflict cleared", "conflict_id", cid, "game_team_id", w.gameTeamID)
	return nil
}

// conflict returns the current members of group cid from the log.
func (w *writer) conflict(cid string) model.ConflictInfo {
	info := model.ConflictInfo{ConflictID: cid, GameTeamID: w.gameTeamID}
	for _, ev := range w.log {
		if ev.ConflictID == cid {
			info.Events = append(info.Events, ev)
		}
	}
	return info
}

func (w *writer) touchConflict(cid string) {
	for _, c := range w.conflicts {
		if c == cid {
			return
		}
	}
	w.conflicts = append(w.conflicts, cid)
}

func (w *writer) replace(ev model.GameEvent) {
	for i := range w.log {
		if w.log[i].ID == ev.ID {
			w.log[i] = ev
			return
		}
	}
}

func (w *writer) setLocal(id, cid string) {
	for i := range w.log {
		if w.log[i].ID == id {
			w.log[i].ConflictID = cid
			return
		}
	}
}

// result summarizes the command from the final state of the log.
func (w *writer) result() (Result, error) {
	res := Result{Events: []model.GameEvent{}, Deleted: w.deleted, Duplicates: w.duplicates}
	seen := make(map[string]bool, len(w.written))
	for _, id := range w.written {
		if seen[id] {
			continue
		}
		seen[id] = true
		if ev, ok := w.find(id); ok {
			res.Events = append(res.Events, ev)
		}
	}
	for _, cid := range w.conflicts {
		if info := w.conflict(cid); len(info.Events) >= 2 {
			res.Conflicts = append(res.Conflicts, info)
		}
	}
	return res, nil
}
