package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/gameledger/internal/engine"
	"github.com/roach88/gameledger/internal/model"
	"github.com/roach88/gameledger/internal/store"
	"github.com/roach88/gameledger/internal/testutil"
)

// refPattern matches a ${label.selector} reference to an earlier step.
var refPattern = regexp.MustCompile(`^\$\{([A-Za-z0-9_-]+)\.([^}]+)\}$`)

// Harness runs one scenario against a private engine.
type Harness struct {
	engine    *engine.Engine
	gameTeams []string
	labels    map[string]engine.Result
	logger    *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each run gets a fresh in-memory database, a deterministic clock and
// sequential ids ("ev-0001", ...) so traces are reproducible. The returned
// error covers harness failures only; scenario failures are in Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with engine logging sent to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	clock := testutil.NewDeterministicClock()
	st, err := store.Open(":memory:", store.WithClock(clock.Now))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	opts := []engine.Option{
		engine.WithIDGenerator(testutil.NewSequentialIDs("ev")),
		engine.WithLogger(logger),
	}
	if scenario.ConflictWindow != nil {
		opts = append(opts, engine.WithConflictWindow(*scenario.ConflictWindow))
	}
	h := &Harness{
		engine: engine.New(st, opts...),
		labels: make(map[string]engine.Result),
		logger: logger,
	}

	ctx := context.Background()
	if err := h.registerGameTeams(ctx, scenario.GameTeams); err != nil {
		return nil, err
	}

	result := NewResult()
	h.executeFlow(ctx, scenario.Flow, result)

	for _, msg := range EvaluateAssertions(ctx, h, scenario.Assertions) {
		result.AddError(msg)
	}
	for _, gt := range h.gameTeams {
		lineup, err := h.engine.GameLineup(ctx, gt)
		if err != nil {
			return nil, fmt.Errorf("final lineup of %s: %w", gt, err)
		}
		positions := make(map[string]string, len(lineup.CurrentOnField))
		for _, p := range lineup.CurrentOnField {
			positions[p.Subject.String()] = p.Position
		}
		result.Lineups[gt] = positions
	}
	return result, nil
}

func (h *Harness) registerGameTeams(ctx context.Context, teams []GameTeamSpec) error {
	for _, gt := range teams {
		playedOn := testutil.Epoch
		if gt.PlayedOn != "" {
			day, err := time.Parse(time.DateOnly, gt.PlayedOn)
			if err != nil {
				return fmt.Errorf("game team %s: %w", gt.GameTeamID, err)
			}
			playedOn = day
		}
		err := h.engine.RegisterGameTeam(ctx, model.GameTeam{
			GameTeamID: gt.GameTeamID,
			TeamID:     gt.TeamID,
			GameID:     gt.GameID,
			PlayedOn:   playedOn,
		})
		if err != nil {
			return fmt.Errorf("failed to register game team: %w", err)
		}
		h.gameTeams = append(h.gameTeams, gt.GameTeamID)
	}
	return nil
}

// executeFlow runs the steps in order. A step whose references cannot be
// resolved stops the flow; any other failure is recorded and the flow goes on.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) {
	for i, step := range flow {
		args, err := h.resolve(step.Args)
		if err != nil {
			result.AddError(fmt.Sprintf("flow[%d] %s: %v", i, step.Invoke, err))
			return
		}
		data, err := json.Marshal(args)
		if err != nil {
			result.AddError(fmt.Sprintf("flow[%d] %s: encode args: %v", i, step.Invoke, err))
			return
		}

		res, err := h.engine.Dispatch(ctx, step.Invoke, func(v any) error {
			return json.Unmarshal(data, v)
		}, step.As)
		h.logger.Debug("scenario step", "step", i, "command", step.Invoke, "events", len(res.Events), "error", err)

		result.AddStep(i, step, res, err)
		if msg := checkExpect(step.Expect, res, err); msg != "" {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Invoke, msg))
		}
		if step.Label != "" {
			h.labels[step.Label] = res
		}
		for _, v := range CheckPrinciples(ctx, h.engine, h.gameTeams) {
			result.AddError(fmt.Sprintf("after flow[%d] %s: %s", i, step.Invoke, v))
		}
	}
}

func checkExpect(exp *ExpectClause, res engine.Result, err error) string {
	if exp == nil || exp.Error == "" {
		if err != nil {
			return "unexpected error: " + err.Error()
		}
	} else {
		if err == nil {
			return fmt.Sprintf("expected %s error, got success", exp.Error)
		}
		if code := string(engine.CodeOf(err)); code != exp.Error {
			return fmt.Sprintf("expected %s error, got %v", exp.Error, err)
		}
		if exp.State != "" {
			var ee *engine.Error
			if !errors.As(err, &ee) || ee.State != exp.State {
				return fmt.Sprintf("expected state %s, got %v", exp.State, err)
			}
		}
		return ""
	}
	if exp == nil {
		return ""
	}

	var msgs []string
	check := func(name string, want *int, got int) {
		if want != nil && *want != got {
			msgs = append(msgs, fmt.Sprintf("expected %d %s, got %d", *want, name, got))
		}
	}
	check("events", exp.Events, len(res.Events))
	check("deleted", exp.Deleted, len(res.Deleted))
	check("conflicts", exp.Conflicts, len(res.Conflicts))
	check("duplicates", exp.Duplicates, len(res.Duplicates))
	return strings.Join(msgs, "; ")
}

// resolve replaces ${label.selector} strings anywhere in v.
func (h *Harness) resolve(v any) (any, error) {
	switch x := v.(type) {
	case string:
		m := refPattern.FindStringSubmatch(x)
		if m == nil {
			return x, nil
		}
		return h.ref(m[1], m[2])
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			r, err := h.resolve(e)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			r, err := h.resolve(e)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	default:
		return v, nil
	}
}

// ref looks up one reference; see FlowStep for the selector forms.
func (h *Harness) ref(label, selector string) (string, error) {
	res, ok := h.labels[label]
	if !ok {
		return "", fmt.Errorf("reference to unknown label %q", label)
	}
	if n, err := strconv.Atoi(selector); err == nil {
		if n < 0 || n >= len(res.Events) {
			return "", fmt.Errorf("%s wrote %d events, no index %d", label, len(res.Events), n)
		}
		return res.Events[n].ID, nil
	}
	if selector == "conflict" {
		if len(res.Conflicts) == 0 {
			return "", fmt.Errorf("%s reported no conflict", label)
		}
		return res.Conflicts[0].ConflictID, nil
	}
	if typ, subject, ok := strings.Cut(selector, ":"); ok {
		for _, ev := range res.Events {
			if string(ev.EventType) == typ && ev.Subject.String() == subject {
				return ev.ID, nil
			}
		}
		return "", fmt.Errorf("%s wrote no %s for %s", label, typ, subject)
	}
	return "", fmt.Errorf("bad selector %q", selector)
}
