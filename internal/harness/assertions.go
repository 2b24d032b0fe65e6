package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/gameledger/internal/model"
	"github.com/roach88/gameledger/internal/projection"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	GameTeam string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.GameTeam != "" {
		fmt.Fprintf(&buf, " [%s]", e.GameTeam)
	}
	fmt.Fprintf(&buf, "\n  Expected: %s\n  Actual: %s", e.Expected, e.Actual)
	return buf.String()
}

// EvaluateAssertions runs each assertion against h's ledger and returns one
// message per failure.
func EvaluateAssertions(ctx context.Context, h *Harness, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(ctx, h, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(ctx context.Context, h *Harness, a Assertion) error {
	switch a.Type {
	case AssertOnField, AssertStarters:
		return assertPositions(ctx, h, a)
	case AssertPeriodState:
		return assertPeriodState(ctx, h, a)
	case AssertEventCount:
		return assertEventCount(ctx, h, a)
	case AssertConflictCount:
		return assertConflictCount(ctx, h, a)
	case AssertDependents:
		return assertDependents(ctx, h, a)
	case AssertPlayerStats:
		return assertPlayerStats(ctx, h, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

// assertPositions compares the exact set of on-field players (or planned
// starters) and their positions.
func assertPositions(ctx context.Context, h *Harness, a Assertion) error {
	lineup, err := h.engine.GameLineup(ctx, a.GameTeam)
	if err != nil {
		return err
	}
	players := lineup.CurrentOnField
	if a.Type == AssertStarters {
		players = lineup.Starters
	}
	got := make(map[string]string, len(players))
	for _, p := range players {
		got[p.Subject.String()] = p.Position
	}
	if !maps.Equal(got, a.Positions) {
		return &AssertionError{
			Type:     a.Type,
			GameTeam: a.GameTeam,
			Expected: formatPositions(a.Positions),
			Actual:   formatPositions(got),
		}
	}
	return nil
}

func formatPositions(m map[string]string) string {
	keys := slices.Sorted(maps.Keys(m))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + m[k]
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func assertPeriodState(ctx context.Context, h *Harness, a Assertion) error {
	lineup, err := h.engine.GameLineup(ctx, a.GameTeam)
	if err != nil {
		return err
	}
	state, ok := lineup.Periods[a.Period]
	if !ok {
		state = model.PeriodNotStarted
	}
	if string(state) != a.State {
		return &AssertionError{
			Type:     a.Type,
			GameTeam: a.GameTeam,
			Expected: fmt.Sprintf("period %s %s", a.Period, a.State),
			Actual:   string(state),
		}
	}
	return nil
}

func assertEventCount(ctx context.Context, h *Harness, a Assertion) error {
	events, err := h.engine.Events(ctx, a.GameTeam, "")
	if err != nil {
		return err
	}
	n := 0
	for _, ev := range events {
		if a.EventType == "" || string(ev.EventType) == a.EventType {
			n++
		}
	}
	if n != *a.Count {
		what := "events"
		if a.EventType != "" {
			what = a.EventType + " events"
		}
		return &AssertionError{
			Type:     a.Type,
			GameTeam: a.GameTeam,
			Expected: fmt.Sprintf("%d %s", *a.Count, what),
			Actual:   fmt.Sprintf("%d", n),
		}
	}
	return nil
}

func assertConflictCount(ctx context.Context, h *Harness, a Assertion) error {
	conflicts, err := h.engine.Conflicts(ctx, a.GameTeam)
	if err != nil {
		return err
	}
	if len(conflicts) != *a.Count {
		ids := make([]string, len(conflicts))
		for i, c := range conflicts {
			ids[i] = c.ConflictID
		}
		return &AssertionError{
			Type:     a.Type,
			GameTeam: a.GameTeam,
			Expected: fmt.Sprintf("%d open conflicts", *a.Count),
			Actual:   fmt.Sprintf("%d %v", len(conflicts), ids),
		}
	}
	return nil
}

func assertDependents(ctx context.Context, h *Harness, a Assertion) error {
	ref, err := h.resolve(a.Event)
	if err != nil {
		return err
	}
	deps, err := h.engine.DependentEvents(ctx, ref.(string))
	if err != nil {
		return err
	}
	if a.Count != nil && deps.Count != *a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d dependents of %s", *a.Count, ref),
			Actual:   fmt.Sprintf("%d %v", deps.Count, deps.IDs()),
		}
	}
	if a.CanDelete != nil && deps.CanDelete != *a.CanDelete {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("can_delete=%t for %s", *a.CanDelete, ref),
			Actual:   fmt.Sprintf("can_delete=%t (%s)", deps.CanDelete, deps.Warning),
		}
	}
	return nil
}

// assertPlayerStats matches Expect as a subset of the player's stats in
// their JSON form, e.g. {seconds_on_field: 2700, goals: 1}.
func assertPlayerStats(ctx context.Context, h *Harness, a Assertion) error {
	stats, err := h.engine.PlayerPositionStats(ctx, a.GameTeam)
	if err != nil {
		return err
	}
	var player *projection.PlayerStats
	for i := range stats {
		if stats[i].Subject.String() == a.Player {
			player = &stats[i]
			break
		}
	}
	if player == nil {
		return &AssertionError{Type: a.Type, GameTeam: a.GameTeam, Expected: "stats for " + a.Player, Actual: "no stats"}
	}

	actual, err := jsonMap(player)
	if err != nil {
		return err
	}
	expected, err := jsonMap(a.Expect)
	if err != nil {
		return err
	}
	for k, want := range expected {
		if got := actual[k]; !reflect.DeepEqual(got, want) {
			return &AssertionError{
				Type:     a.Type,
				GameTeam: a.GameTeam,
				Expected: fmt.Sprintf("%s %s=%v", a.Player, k, want),
				Actual:   fmt.Sprintf("%v", got),
			}
		}
	}
	return nil
}

// jsonMap round-trips v through JSON so YAML ints and Go ints compare equal.
func jsonMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
