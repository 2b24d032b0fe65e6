package engine

import (
	"context"
	"slices"
)

// Decoder fills a command input, e.g. json.Unmarshal bound to a body.
type Decoder func(v any) error

// EventRef is the input of the commands that take a single event id.
type EventRef struct {
	EventID string `json:"event_id"`
}

type command struct {
	records bool
	run     func(e *Engine, ctx context.Context, decode Decoder, user string) (Result, error)
}

// recording builds a command whose events are attributed to a recorder.
func recording[T any](exec func(*Engine, context.Context, T) (Result, error), stamp func(*T, string)) command {
	return command{
		records: true,
		run: func(e *Engine, ctx context.Context, decode Decoder, user string) (Result, error) {
			var in T
			if err := decode(&in); err != nil {
				return Result{}, badInput(err)
			}
			if user != "" {
				stamp(&in, user)
			}
			return exec(e, ctx, in)
		},
	}
}

func deleting[T any](exec func(*Engine, context.Context, T) (Result, error)) command {
	return command{
		run: func(e *Engine, ctx context.Context, decode Decoder, _ string) (Result, error) {
			var in T
			if err := decode(&in); err != nil {
				return Result{}, badInput(err)
			}
			return exec(e, ctx, in)
		},
	}
}

func byEventID(exec func(*Engine, context.Context, string) (Result, error)) command {
	return deleting(func(e *Engine, ctx context.Context, in EventRef) (Result, error) {
		return exec(e, ctx, in.EventID)
	})
}

func badInput(err error) *Error {
	return &Error{Code: ErrCodeValidation, Op: "dispatch", Message: "invalid input: " + err.Error(), Err: err}
}

var commands = map[string]command{
	"addPlayerToGameRoster": recording((*Engine).AddPlayerToGameRoster, func(in *AddPlayerToGameRosterInput, u string) { in.RecordedBy = u }),
	"bringPlayerOntoField":  recording((*Engine).BringPlayerOntoField, func(in *BringPlayerOntoFieldInput, u string) { in.RecordedBy = u }),
	"substitutePlayer":      recording((*Engine).SubstitutePlayer, func(in *SubstitutePlayerInput, u string) { in.RecordedBy = u }),
	"swapPositions":         recording((*Engine).SwapPositions, func(in *SwapPositionsInput, u string) { in.RecordedBy = u }),
	"batchLineupChanges":    recording((*Engine).BatchLineupChanges, func(in *BatchLineupInput, u string) { in.RecordedBy = u }),
	"startPeriod":           recording((*Engine).StartPeriod, func(in *StartPeriodInput, u string) { in.RecordedBy = u }),
	"endPeriod":             recording((*Engine).EndPeriod, func(in *EndPeriodInput, u string) { in.RecordedBy = u }),
	"recordGoal":            recording((*Engine).RecordGoal, func(in *RecordGoalInput, u string) { in.RecordedBy = u }),
	"updateGoal":            recording((*Engine).UpdateGoal, func(in *UpdateGoalInput, u string) { in.RecordedBy = u }),
	"recordCard":            recording((*Engine).RecordCard, func(in *RecordCardInput, u string) { in.RecordedBy = u }),
	"recordFormationChange": recording((*Engine).RecordFormationChange, func(in *RecordFormationChangeInput, u string) { in.RecordedBy = u }),
	"recordPositionChange":  recording((*Engine).RecordPositionChange, func(in *RecordPositionChangeInput, u string) { in.RecordedBy = u }),
	"removePlayerFromField": recording((*Engine).RemovePlayerFromField, func(in *RemovePlayerFromFieldInput, u string) { in.RecordedBy = u }),
	"resolveEventConflict":  recording((*Engine).ResolveEventConflict, func(in *ResolveConflictInput, u string) { in.RecordedBy = u }),

	"deleteEventWithCascade": deleting((*Engine).DeleteEventWithCascade),
	"deleteGoal":             byEventID((*Engine).DeleteGoal),
	"deleteSubstitution":     byEventID((*Engine).DeleteSubstitution),
	"deletePositionSwap":     byEventID((*Engine).DeletePositionSwap),
	"deleteStarterEntry":     byEventID((*Engine).DeleteStarterEntry),
	"removeFromLineup":       byEventID((*Engine).RemoveFromLineup),
}

// Dispatch runs the command called name with an input filled by decode.
// A non-empty user overrides the input's recorder. Unknown names are
// NOT_FOUND; inputs decode fails on are VALIDATION.
func (e *Engine) Dispatch(ctx context.Context, name string, decode Decoder, user string) (Result, error) {
	c, ok := commands[name]
	if !ok {
		return Result{}, notFound("dispatch", "command", name)
	}
	return c.run(e, ctx, decode, user)
}

// CommandNames lists the names Dispatch accepts, sorted.
func CommandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// RecordsEvents reports whether the named command attributes the events it
// writes to a recorder. Deletes do not.
func RecordsEvents(name string) bool {
	return commands[name].records
}
