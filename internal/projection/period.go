package projection

import (
	"sort"

	"github.com/roach88/gameledger/internal/model"
)

// PeriodStates returns the lifecycle state of every period that has a
// boundary event. Periods absent from the map are NOT_STARTED.
func PeriodStates(events []model.GameEvent) map[string]model.PeriodState {
	states := make(map[string]model.PeriodState)
	for _, ev := range sortedBySeq(events) {
		switch ev.EventType {
		case model.EventPeriodStart:
			if states[ev.Period] != model.PeriodEnded {
				states[ev.Period] = model.PeriodInProgress
			}
		case model.EventPeriodEnd:
			states[ev.Period] = model.PeriodEnded
		}
	}
	return states
}

// PeriodState returns the state of one period.
func PeriodState(events []model.GameEvent, period string) model.PeriodState {
	if st, ok := PeriodStates(events)[period]; ok {
		return st
	}
	return model.PeriodNotStarted
}

// ActivePeriod returns the period currently in progress, if any. When the log
// holds several (only possible through conflicting writes) the one started
// last wins.
func ActivePeriod(events []model.GameEvent) (string, bool) {
	states := PeriodStates(events)
	active := ""
	for _, ev := range sortedBySeq(events) {
		if ev.EventType == model.EventPeriodStart && states[ev.Period] == model.PeriodInProgress {
			active = ev.Period
		}
	}
	return active, active != ""
}

// PeriodBoundary returns the PERIOD_START or PERIOD_END event for a period.
// The earliest by seq wins when a conflict left more than one.
func PeriodBoundary(events []model.GameEvent, period string, t model.EventType) (model.GameEvent, bool) {
	for _, ev := range sortedBySeq(events) {
		if ev.EventType == t && ev.Period == period {
			return ev, true
		}
	}
	return model.GameEvent{}, false
}

// sortedBySeq returns events ordered by seq without touching the input.
// Store reads are already ordered; this guards callers that merge slices.
func sortedBySeq(events []model.GameEvent) []model.GameEvent {
	if sort.SliceIsSorted(events, func(i, j int) bool { return events[i].Seq < events[j].Seq }) {
		return events
	}
	out := make([]model.GameEvent, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}
