// Package harness runs scripted matches against the ledger engine.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: late_sub_and_goal
//	description: "A substitute scores after coming on"
//	game_teams:
//	  - {game_team_id: gt-home, team_id: team-home, game_id: game-1}
//	flow:
//	  - invoke: startPeriod
//	    as: coach-a
//	    label: kickoff
//	    args:
//	      game_team_id: gt-home
//	      period: "1"
//	      lineup: [{player_id: p1, position: ST}]
//	  - invoke: substitutePlayer
//	    as: coach-a
//	    args:
//	      game_team_id: gt-home
//	      period_second: 1800
//	      player_out_event_id: ${kickoff.SUBSTITUTION_IN:p1}
//	      player_in: {player_id: p9}
//	    expect: {events: 2}
//	assertions:
//	  - {type: on_field, game_team: gt-home, positions: {p9: ST}}
//
// Step args are the command's JSON input. Steps without expect must succeed;
// expect.error names the error code a step must fail with.
//
// # Assertion Types
//
//   - on_field, starters: exact player to position map
//   - period_state: NOT_STARTED, IN_PROGRESS or ENDED for one period
//   - event_count: events of one type, or all events
//   - conflict_count: open conflict groups
//   - dependents: cascade size and can_delete for an event
//   - player_stats: subset match on one player's stats
//
// After every step the harness also checks the ledger principles (see
// CheckPrinciples).
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory SQLite database, a deterministic clock
// and sequential ids, so the same scenario always produces the same trace.
// Traces are compared against golden files with goldie.
package harness
