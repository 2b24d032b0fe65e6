// Package conflict decides whether a new game event collides with events
// already in the ledger.
//
// Detection is a pure function of the existing events for a game team and the
// incoming event. It never rejects: colliding writes are persisted and flagged
// so a human can adjudicate later (merge-then-flag rather than
// reject-then-retry).
//
// Two events collide when they share game team, event type and period, and
//   - for PERIOD_START/PERIOD_END: always (one boundary per period)
//   - for other subject-less types: PeriodSecond differs by at most Window
//   - for subject-bearing types: PeriodSecond differs by at most Window and
//     both resolve to the same model.SubjectKey
//
// A collision with an event from a different recorder is a conflict; with an
// event from the same recorder it is a duplicate.
package conflict

import (
	"sort"

	"github.com/roach88/gameledger/internal/model"
)

// DefaultWindow is the default PeriodSecond tolerance, in seconds.
const DefaultWindow = 5

// Detector holds the collision tolerance.
type Detector struct {
	// Window is the maximum PeriodSecond distance, inclusive, at which two
	// events may describe the same occurrence.
	Window int
}

// New returns a detector with the given window. Negative windows are
// treated as exact-match.
func New(window int) Detector {
	if window < 0 {
		window = 0
	}
	return Detector{Window: window}
}

// Decision is the outcome of checking one incoming event.
type Decision struct {
	// ConflictID is an existing conflict id the group should reuse. Empty
	// when the group is new (the caller allocates one) or there is no
	// conflict.
	ConflictID string

	// Conflicting are colliding events recorded by someone else, in seq order.
	Conflicting []model.GameEvent

	// Duplicates are colliding events by the same recorder, in seq order.
	Duplicates []model.GameEvent

	// Merged lists other conflict ids whose members now belong to ConflictID.
	Merged []string
}

// HasConflict reports whether the incoming event joins a conflict group.
func (d Decision) HasConflict() bool {
	return len(d.Conflicting) > 0
}

// HasDuplicates reports whether the recorder already logged this occurrence.
func (d Decision) HasDuplicates() bool {
	return len(d.Duplicates) > 0
}

// Collides reports whether a and b describe the same occurrence.
func (d Detector) Collides(a, b model.GameEvent) bool {
	if a.ID != "" && a.ID == b.ID {
		return false
	}
	if a.GameTeamID != b.GameTeamID || a.EventType != b.EventType || a.Period != b.Period {
		return false
	}
	if a.EventType.IsPeriodBoundary() {
		return true
	}
	if abs(a.PeriodSecond-b.PeriodSecond) > d.Window {
		return false
	}
	if !a.EventType.RequiresSubject() {
		return true
	}
	key := model.SubjectKey(a.Subject)
	return key != "" && key == model.SubjectKey(b.Subject)
}

// Detect checks incoming against existing. existing may contain events from
// other game teams; they are ignored.
func (d Detector) Detect(existing []model.GameEvent, incoming model.GameEvent) Decision {
	var dec Decision
	for _, ev := range existing {
		if !d.Collides(incoming, ev) {
			continue
		}
		if ev.RecordedByUserID == incoming.RecordedByUserID {
			dec.Duplicates = append(dec.Duplicates, ev)
		} else {
			dec.Conflicting = append(dec.Conflicting, ev)
		}
	}
	sortBySeq(dec.Duplicates)
	sortBySeq(dec.Conflicting)

	if !dec.HasConflict() {
		return dec
	}

	// Reuse the oldest group; fold any others into it.
	seen := make(map[string]bool)
	for _, ev := range dec.Conflicting {
		if ev.ConflictID == "" || seen[ev.ConflictID] {
			continue
		}
		seen[ev.ConflictID] = true
		if dec.ConflictID == "" {
			dec.ConflictID = ev.ConflictID
			continue
		}
		dec.Merged = append(dec.Merged, ev.ConflictID)
	}
	return dec
}

func sortBySeq(evs []model.GameEvent) {
	sort.SliceStable(evs, func(i, j int) bool { return evs[i].Seq < evs[j].Seq })
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
