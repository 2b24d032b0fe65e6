package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gameledger/internal/engine"
	"github.com/roach88/gameledger/internal/model"
	"github.com/roach88/gameledger/internal/store"
)

func runYAML(t *testing.T, src string) *Result {
	t.Helper()
	s, err := ParseScenario([]byte(src))
	require.NoError(t, err)
	result, err := Run(s)
	require.NoError(t, err)
	return result
}

func TestRun_SubstitutionWithReferences(t *testing.T) {
	result := runYAML(t, `
name: late_sub
description: "A substitute comes on for the striker and takes the same slot"
game_teams:
  - {game_team_id: gt-home, team_id: team-home, game_id: game-1}
flow:
  - invoke: startPeriod
    as: coach-a
    label: kickoff
    args:
      game_team_id: gt-home
      period: "1"
      lineup:
        - {player_id: p1, position: GK}
        - {player_id: p7, position: ST}
  - invoke: substitutePlayer
    as: coach-a
    label: sub
    args:
      game_team_id: gt-home
      period_second: 1800
      player_out_event_id: "${kickoff.SUBSTITUTION_IN:p7}"
      player_in: {player_id: p9}
    expect: {events: 2}
  - invoke: recordPositionChange
    as: coach-a
    args:
      game_team_id: gt-home
      period_second: 2000
      player_event_id: "${sub.SUBSTITUTION_IN:p9}"
      position: LW
assertions:
  - {type: on_field, game_team: gt-home, positions: {p1: GK, p9: LW}}
  - {type: dependents, event: "${sub.1}", count: 1}
  - type: player_stats
    game_team: gt-home
    player: p7
    expect: {seconds_on_field: 1800, position_seconds: {ST: 1800}}
`)

	require.True(t, result.Pass, result.Errors)
	require.Len(t, result.Trace, 3)
	assert.Equal(t, "kickoff", result.Trace[0].Label)
	assert.Equal(t, "ev-0004", result.Trace[1].Events[0].ID, "the outgoing half is written first")
	assert.Equal(t, "SUBSTITUTION_OUT", result.Trace[1].Events[0].Type)
	assert.Equal(t, "p9", result.Trace[1].Events[1].Subject)
	assert.Equal(t, "ST", result.Trace[1].Events[1].Position)
	assert.Equal(t, map[string]string{"p1": "GK", "p9": "LW"}, result.Lineups["gt-home"])
}

func TestRun_ConflictResolution(t *testing.T) {
	result := runYAML(t, `
name: two_recorders_one_goal
description: "Two coaches log the same goal two seconds apart and one is kept"
game_teams:
  - {game_team_id: gt-home, team_id: team-home, game_id: game-1}
flow:
  - invoke: startPeriod
    as: coach-a
    args:
      game_team_id: gt-home
      period: "1"
      lineup: [{player_id: p1, position: ST}]
  - invoke: recordGoal
    as: coach-a
    label: a
    args: {game_team_id: gt-home, period_second: 300, scorer: {player_id: p1}}
    expect: {conflicts: 0}
  - invoke: recordGoal
    as: coach-b
    label: b
    args: {game_team_id: gt-home, period_second: 302, scorer: {player_id: p1}}
    expect: {conflicts: 1}
  - invoke: resolveEventConflict
    as: coach-a
    args:
      conflict_id: "${b.conflict}"
      selected_event_id: "${a.0}"
    expect: {deleted: 1}
assertions:
  - {type: conflict_count, game_team: gt-home, count: 0}
  - {type: event_count, game_team: gt-home, event_type: GOAL, count: 1}
  - {type: player_stats, game_team: gt-home, player: p1, expect: {goals: 1}}
`)

	require.True(t, result.Pass, result.Errors)
	assert.Len(t, result.Trace[2].Conflicts, 1)
	assert.Equal(t, []string{result.Trace[2].Events[0].ID}, result.Trace[3].Deleted)
}

func TestRun_ConflictWindowOverride(t *testing.T) {
	result := runYAML(t, `
name: exact_seconds_only
description: "With a zero window, goals two seconds apart do not collide"
conflict_window: 0
game_teams:
  - {game_team_id: gt-home, team_id: team-home, game_id: game-1}
flow:
  - invoke: startPeriod
    as: coach-a
    args: {game_team_id: gt-home, period: "1", lineup: [{player_id: p1, position: ST}]}
  - invoke: recordGoal
    as: coach-a
    args: {game_team_id: gt-home, period_second: 300, scorer: {player_id: p1}}
  - invoke: recordGoal
    as: coach-b
    args: {game_team_id: gt-home, period_second: 302, scorer: {player_id: p1}}
    expect: {conflicts: 0}
assertions:
  - {type: conflict_count, game_team: gt-home, count: 0}
  - {type: event_count, game_team: gt-home, event_type: GOAL, count: 2}
`)

	assert.True(t, result.Pass, result.Errors)
}

func TestRun_ReportsFailures(t *testing.T) {
	result := runYAML(t, `
name: wrong_expectations
description: "Every kind of failure is reported and the flow keeps going"
game_teams:
  - {game_team_id: gt-home, team_id: team-home, game_id: game-1}
flow:
  - invoke: recordGoal
    as: coach-a
    args: {game_team_id: gt-home, period_second: 10, scorer: {player_id: p1}}
  - invoke: startPeriod
    as: coach-a
    args: {game_team_id: gt-home, period: "1"}
    expect: {error: STATE}
  - invoke: startPeriod
    as: coach-a
    args: {game_team_id: gt-home, period: "1"}
    expect: {error: STATE, state: ENDED}
  - invoke: endPeriod
    as: coach-a
    args: {game_team_id: gt-home, period: "1", period_second: 60}
    expect: {events: 5}
assertions:
  - {type: on_field, game_team: gt-home, positions: {p1: GK}}
  - {type: period_state, game_team: gt-home, period: "2", state: ENDED}
  - {type: event_count, game_team: gt-home, count: 0}
  - {type: conflict_count, game_team: gt-home, count: 3}
`)

	assert.False(t, result.Pass)
	require.Len(t, result.Trace, 4)
	assert.Equal(t, "STATE", result.Trace[0].Error)
	assert.Equal(t, "", result.Trace[1].Error)

	require.Len(t, result.Errors, 8)
	assert.Contains(t, result.Errors[0], "flow[0] recordGoal: unexpected error")
	assert.Contains(t, result.Errors[1], "expected STATE error, got success")
	assert.Contains(t, result.Errors[2], "expected state ENDED")
	assert.Contains(t, result.Errors[3], "expected 5 events, got 1")
	assert.Contains(t, result.Errors[4], "Expected: {p1=GK}")
	assert.Contains(t, result.Errors[5], "period 2 ENDED")
	assert.Contains(t, result.Errors[6], "0 events")
	assert.Contains(t, result.Errors[7], "3 open conflicts")
}

func TestRun_UnresolvedReferenceStopsFlow(t *testing.T) {
	result := runYAML(t, `
name: bad_reference
description: "A reference to a missing label stops the flow"
game_teams:
  - {game_team_id: gt-home, team_id: team-home, game_id: game-1}
flow:
  - invoke: startPeriod
    as: coach-a
    label: kickoff
    args: {game_team_id: gt-home, period: "1"}
  - invoke: removePlayerFromField
    as: coach-a
    args: {game_team_id: gt-home, period_second: 5, player_event_id: "${kickoff.1}"}
  - invoke: endPeriod
    as: coach-a
    args: {game_team_id: gt-home, period: "1", period_second: 60}
`)

	assert.False(t, result.Pass)
	assert.Len(t, result.Trace, 1, "later steps do not run")
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "kickoff wrote 1 events, no index 1")
}

func TestHarness_Ref(t *testing.T) {
	h := &Harness{labels: map[string]engine.Result{}}
	h.labels["start"] = engine.Result{}

	tests := []struct {
		ref  string
		want string
	}{
		{"${nobody.0}", `unknown label "nobody"`},
		{"${start.conflict}", "reported no conflict"},
		{"${start.GOAL:p1}", "wrote no GOAL for p1"},
		{"${start.first}", `bad selector "first"`},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			_, err := h.resolve(tt.ref)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	v, err := h.resolve(map[string]any{"plain": "${not a ref", "list": []any{"x", 3}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"plain": "${not a ref", "list": []any{"x", 3}}, v)
}

func TestCheckPrinciples(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()
	eng := engine.New(st)
	require.NoError(t, eng.RegisterGameTeam(ctx, model.GameTeam{GameTeamID: "gt-home", TeamID: "team-home", GameID: "game-1"}))
	_, err = eng.StartPeriod(ctx, engine.StartPeriodInput{
		GameTeamID: "gt-home",
		Period:     "1",
		Lineup:     []engine.LineupEntry{{Subject: model.Player("p1"), Position: "GK"}},
		RecordedBy: "coach-a",
	})
	require.NoError(t, err)

	assert.Empty(t, CheckPrinciples(ctx, eng, []string{"gt-home"}))

	violations := CheckPrinciples(ctx, eng, []string{"ghost"})
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "ghost: lineup:")
}
