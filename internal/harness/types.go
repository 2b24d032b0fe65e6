package harness

import (
	"github.com/roach88/gameledger/internal/engine"
	"github.com/roach88/gameledger/internal/model"
)

// TraceEvent records one flow step and what it did to the ledger.
type TraceEvent struct {
	Step    int    `json:"step"`
	Command string `json:"command"`
	Label   string `json:"label,omitempty"`
	User    string `json:"user,omitempty"`

	// Error is the error code when the step failed.
	Error string `json:"error,omitempty"`

	Events     []TraceRecord `json:"events,omitempty"`
	Deleted    []string      `json:"deleted,omitempty"`
	Conflicts  []string      `json:"conflicts,omitempty"`
	Duplicates []string      `json:"duplicates,omitempty"`
}

// TraceRecord is the stable part of a written event. Timestamps and seq are
// left out so traces compare across runs.
type TraceRecord struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	GameTeamID string `json:"game_team_id"`
	Subject    string `json:"subject,omitempty"`
	Period     string `json:"period"`
	Second     int    `json:"second"`
	Position   string `json:"position,omitempty"`
	Formation  string `json:"formation,omitempty"`
	Parent     string `json:"parent,omitempty"`
	ConflictID string `json:"conflict_id,omitempty"`
}

func traceRecord(ev model.GameEvent) TraceRecord {
	rec := TraceRecord{
		ID:         ev.ID,
		Type:       string(ev.EventType),
		GameTeamID: ev.GameTeamID,
		Period:     ev.Period,
		Second:     ev.PeriodSecond,
		Position:   ev.Position,
		Formation:  ev.Formation,
		Parent:     ev.ParentEventID,
		ConflictID: ev.ConflictID,
	}
	if !ev.Subject.IsZero() {
		rec.Subject = ev.Subject.String()
	}
	return rec
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step met its expectation and every assertion
	// and ledger principle held.
	Pass bool `json:"pass"`

	// Trace has one entry per flow step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors describes each failure. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Lineups is the final on-field position map per game team.
	Lineups map[string]map[string]string `json:"lineups"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Errors:  []string{},
		Lineups: make(map[string]map[string]string),
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStep appends the trace of a step.
func (r *Result) AddStep(step int, fs FlowStep, res engine.Result, err error) {
	te := TraceEvent{
		Step:       step,
		Command:    fs.Invoke,
		Label:      fs.Label,
		User:       fs.As,
		Error:      string(engine.CodeOf(err)),
		Deleted:    res.Deleted,
		Duplicates: res.Duplicates,
	}
	if err != nil && te.Error == "" {
		te.Error = "INTERNAL"
	}
	for _, ev := range res.Events {
		te.Events = append(te.Events, traceRecord(ev))
	}
	for _, c := range res.Conflicts {
		te.Conflicts = append(te.Conflicts, c.ConflictID)
	}
	r.Trace = append(r.Trace, te)
}
