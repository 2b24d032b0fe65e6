package harness

import (
	"context"
	"fmt"

	"github.com/roach88/gameledger/internal/engine"
	"github.com/roach88/gameledger/internal/model"
)

// CheckPrinciples checks the rules every ledger must satisfy after every
// command, whatever the recorders did:
//
//   - no subject is on the field twice;
//   - at most one period is in progress;
//   - every parent reference points at an event of the same game team;
//   - every conflict group has two or more members from two or more
//     recorders, all carrying the group's id.
//
// It returns one message per violation.
func CheckPrinciples(ctx context.Context, eng *engine.Engine, gameTeams []string) []string {
	var violations []string
	for _, gt := range gameTeams {
		violations = append(violations, checkGameTeam(ctx, eng, gt)...)
	}
	return violations
}

func checkGameTeam(ctx context.Context, eng *engine.Engine, gameTeamID string) []string {
	var out []string
	fail := func(format string, args ...any) {
		out = append(out, gameTeamID+": "+fmt.Sprintf(format, args...))
	}

	lineup, err := eng.GameLineup(ctx, gameTeamID)
	if err != nil {
		fail("lineup: %v", err)
		return out
	}
	seen := make(map[string]bool)
	for _, p := range lineup.CurrentOnField {
		key := model.SubjectKey(p.Subject)
		if seen[key] {
			fail("%s is on the field twice", p.Subject)
		}
		seen[key] = true
	}
	inProgress := 0
	for _, state := range lineup.Periods {
		if state == model.PeriodInProgress {
			inProgress++
		}
	}
	if inProgress > 1 {
		fail("%d periods in progress", inProgress)
	}

	events, err := eng.Events(ctx, gameTeamID, "")
	if err != nil {
		fail("events: %v", err)
		return out
	}
	byID := make(map[string]model.GameEvent, len(events))
	for _, ev := range events {
		byID[ev.ID] = ev
	}
	for _, ev := range events {
		if ev.ParentEventID == "" {
			continue
		}
		if _, ok := byID[ev.ParentEventID]; !ok {
			fail("%s has missing parent %s", ev.ID, ev.ParentEventID)
		}
	}

	conflicts, err := eng.Conflicts(ctx, gameTeamID)
	if err != nil {
		fail("conflicts: %v", err)
		return out
	}
	for _, c := range conflicts {
		recorders := make(map[string]bool)
		for _, ev := range c.Events {
			recorders[ev.RecordedByUserID] = true
			if ev.ConflictID != c.ConflictID {
				fail("conflict %s lists %s tagged %q", c.ConflictID, ev.ID, ev.ConflictID)
			}
		}
		if len(c.Events) < 2 || len(recorders) < 2 {
			fail("conflict %s has %d members from %d recorders", c.ConflictID, len(c.Events), len(recorders))
		}
	}
	return out
}
