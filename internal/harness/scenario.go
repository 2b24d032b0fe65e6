package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/gameledger/internal/engine"
)

// Scenario is a scripted match: the game teams involved, the commands the
// recorders issued in order, and what the ledger must look like afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// ConflictWindow overrides the collision window, in seconds.
	ConflictWindow *int `yaml:"conflict_window,omitempty"`

	// GameTeams are registered before the flow runs.
	GameTeams []GameTeamSpec `yaml:"game_teams"`

	// Flow is the command sequence.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final ledger.
	Assertions []Assertion `yaml:"assertions"`
}

// GameTeamSpec registers one side of a fixture.
type GameTeamSpec struct {
	GameTeamID string `yaml:"game_team_id"`
	TeamID     string `yaml:"team_id"`
	GameID     string `yaml:"game_id"`
	// PlayedOn is a YYYY-MM-DD date. Empty means the harness epoch.
	PlayedOn string `yaml:"played_on,omitempty"`
}

// FlowStep issues one command.
//
// String args of the form ${label.selector} are replaced with ids from the
// result of the step labelled label. Selectors:
//
//	${start.0}                   the first event the step wrote
//	${start.SUBSTITUTION_IN:p7}  the step's SUBSTITUTION_IN for player p7
//	${goal.conflict}             the first conflict group the step reported
type FlowStep struct {
	// Invoke is the command name, e.g. "substitutePlayer".
	Invoke string `yaml:"invoke"`

	// As is the recording user.
	As string `yaml:"as,omitempty"`

	// Label names the step for later references.
	Label string `yaml:"label,omitempty"`

	// Args is the command input, keyed by its JSON field names.
	Args map[string]any `yaml:"args"`

	// Expect checks the outcome. Nil expects success.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Error is the expected error code, e.g. "STATE". Empty expects success.
	Error string `yaml:"error,omitempty"`

	// State is the expected state of a STATE error.
	State string `yaml:"state,omitempty"`

	// Counts of the result's slices. Nil skips the check.
	Events     *int `yaml:"events,omitempty"`
	Deleted    *int `yaml:"deleted,omitempty"`
	Conflicts  *int `yaml:"conflicts,omitempty"`
	Duplicates *int `yaml:"duplicates,omitempty"`
}

// Assertion validates the final ledger of one game team.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	GameTeam string `yaml:"game_team,omitempty"`

	// Positions maps player id to position (on_field, starters).
	Positions map[string]string `yaml:"positions,omitempty"`

	// Period and State are used by period_state.
	Period string `yaml:"period,omitempty"`
	State  string `yaml:"state,omitempty"`

	// EventType narrows event_count. Empty counts every event.
	EventType string `yaml:"event_type,omitempty"`

	// Count is used by event_count, conflict_count and dependents.
	Count *int `yaml:"count,omitempty"`

	// Event is a ${label.selector} reference (dependents).
	Event     string `yaml:"event,omitempty"`
	CanDelete *bool  `yaml:"can_delete,omitempty"`

	// Player and Expect are used by player_stats; Expect is a subset of the
	// player's JSON stats.
	Player string         `yaml:"player,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertOnField       = "on_field"
	AssertStarters      = "starters"
	AssertPeriodState   = "period_state"
	AssertEventCount    = "event_count"
	AssertConflictCount = "conflict_count"
	AssertDependents    = "dependents"
	AssertPlayerStats   = "player_stats"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.GameTeams) == 0 {
		return fmt.Errorf("game_teams list is required and must be non-empty")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if s.ConflictWindow != nil && *s.ConflictWindow < 0 {
		return fmt.Errorf("conflict_window must be non-negative")
	}

	known := make(map[string]bool)
	for i, gt := range s.GameTeams {
		if gt.GameTeamID == "" || gt.TeamID == "" || gt.GameID == "" {
			return fmt.Errorf("game_teams[%d]: game_team_id, team_id and game_id are required", i)
		}
		if gt.PlayedOn != "" {
			if _, err := time.Parse(time.DateOnly, gt.PlayedOn); err != nil {
				return fmt.Errorf("game_teams[%d]: played_on: %w", i, err)
			}
		}
		known[gt.GameTeamID] = true
	}

	labels := make(map[string]bool)
	names := make(map[string]bool)
	for _, n := range engine.CommandNames() {
		names[n] = true
	}
	for i, step := range s.Flow {
		if !names[step.Invoke] {
			return fmt.Errorf("flow[%d]: unknown command %q", i, step.Invoke)
		}
		if step.Args == nil {
			return fmt.Errorf("flow[%d]: args is required (use empty map if no args)", i)
		}
		if engine.RecordsEvents(step.Invoke) && step.As == "" {
			return fmt.Errorf("flow[%d]: as is required for %s", i, step.Invoke)
		}
		if step.Label != "" {
			if labels[step.Label] {
				return fmt.Errorf("flow[%d]: duplicate label %q", i, step.Label)
			}
			labels[step.Label] = true
		}
		if step.Expect != nil && step.Expect.State != "" && step.Expect.Error == "" {
			return fmt.Errorf("flow[%d].expect: state needs an error code", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], known); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion, gameTeams map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Type != AssertDependents && !gameTeams[a.GameTeam] {
		return fmt.Errorf("assertions[%d]: game_team %q is not registered", index, a.GameTeam)
	}

	switch a.Type {
	case AssertOnField, AssertStarters:
		if a.Positions == nil {
			return fmt.Errorf("assertions[%d]: positions is required for %s (use {} for none)", index, a.Type)
		}
	case AssertPeriodState:
		if a.Period == "" || a.State == "" {
			return fmt.Errorf("assertions[%d]: period and state are required for period_state", index)
		}
	case AssertEventCount, AssertConflictCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: a non-negative count is required for %s", index, a.Type)
		}
	case AssertDependents:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for dependents", index)
		}
	case AssertPlayerStats:
		if a.Player == "" || len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: player and expect are required for player_stats", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
