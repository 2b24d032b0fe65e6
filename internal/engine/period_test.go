package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gameledger/internal/model"
)

func TestStartPeriod_WritesStartAndStarters(t *testing.T) {
	e := newTestEngine(t)

	res := startPeriod(t, e, "1", 0, starter("p1", "GK"), starter("p2", "CB"))

	require.Len(t, res.Events, 3)
	start := res.Events[0]
	assert.Equal(t, model.EventPeriodStart, start.EventType)
	assert.Equal(t, "ev-0001", start.ID)
	for _, ev := range res.Events[1:] {
		assert.Equal(t, model.EventSubstitutionIn, ev.EventType)
		assert.Equal(t, start.ID, ev.ParentEventID)
		assert.Equal(t, "1", ev.Period)
		assert.Equal(t, coachA, ev.RecordedByUserID)
	}
	assert.Empty(t, res.Conflicts)

	l := lineup(t, e)
	assert.Equal(t, map[string]string{"p1": "GK", "p2": "CB"}, onFieldPositions(l))
	assert.Equal(t, model.PeriodInProgress, l.Periods["1"])
	assert.Equal(t, "1", l.ActivePeriod)
}

func TestStartPeriod_EmptyLineup(t *testing.T) {
	e := newTestEngine(t)

	res := startPeriod(t, e, "1", 0)

	require.Len(t, res.Events, 1)
	assert.Empty(t, lineup(t, e).CurrentOnField)
}

func TestStartPeriod_RejectsStartedPeriod(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	startPeriod(t, e, "1", 0, starter("p1", "GK"))

	_, err := e.StartPeriod(ctx, StartPeriodInput{GameTeamID: homeTeam, Period: "1", RecordedBy: coachA})
	require.Error(t, err)
	assert.True(t, IsState(err))
	assert.Equal(t, string(model.PeriodInProgress), asError(t, err).State)

	endPeriod(t, e, "1", 2700)
	_, err = e.StartPeriod(ctx, StartPeriodInput{GameTeamID: homeTeam, Period: "1", RecordedBy: coachA})
	require.Error(t, err)
	assert.Equal(t, string(model.PeriodEnded), asError(t, err).State)
}

func TestStartPeriod_RejectsWhileAnotherInProgress(t *testing.T) {
	e := newTestEngine(t)
	startPeriod(t, e, "1", 0)

	_, err := e.StartPeriod(context.Background(), StartPeriodInput{GameTeamID: homeTeam, Period: "2", RecordedBy: coachA})

	require.Error(t, err)
	assert.True(t, IsState(err))
	assert.Len(t, allEvents(t, e), 1)
}

func TestStartPeriod_RejectsRepeatedPlayer(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.StartPeriod(context.Background(), StartPeriodInput{
		GameTeamID: homeTeam,
		Period:     "1",
		Lineup:     []LineupEntry{starter("p1", "GK"), starter("p1", "CB")},
		RecordedBy: coachA,
	})

	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Empty(t, allEvents(t, e))
}

func TestStartPeriod_UnknownGameTeam(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.StartPeriod(context.Background(), StartPeriodInput{GameTeamID: "gt-nope", Period: "1", RecordedBy: coachA})

	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.True(t, IsValidation(err), "NOT_FOUND is a kind of validation failure")
}

func TestStartPeriod_FailedStarterRollsBackStart(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.StartPeriod(context.Background(), StartPeriodInput{
		GameTeamID: homeTeam,
		Period:     "1",
		Lineup: []LineupEntry{
			starter("p1", "GK"),
			{Subject: model.Subject{PlayerID: "p2", ExternalPlayerName: "Someone"}},
		},
		RecordedBy: coachA,
	})

	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Empty(t, allEvents(t, e))
}

func TestEndPeriod_RequiresPeriodInProgress(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.EndPeriod(context.Background(), EndPeriodInput{GameTeamID: homeTeam, Period: "1", PeriodSecond: 10, RecordedBy: coachA})

	require.Error(t, err)
	assert.True(t, IsState(err))
	assert.Equal(t, string(model.PeriodNotStarted), asError(t, err).State)
}

func TestEndPeriod_TakesEveryoneOff(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	start := startPeriod(t, e, "1", 0, starter("p1", "GK"), starter("p2", "CB"))
	p1 := eventFor(t, start, model.EventSubstitutionIn, "p1")
	p2 := eventFor(t, start, model.EventSubstitutionIn, "p2")

	_, err := e.SubstitutePlayer(ctx, SubstitutePlayerInput{
		GameTeamID: homeTeam, PeriodSecond: 600, PlayerOutEventID: p1.ID,
		PlayerIn: model.Player("p3"), RecordedBy: coachA,
	})
	require.NoError(t, err)
	_, err = e.BringPlayerOntoField(ctx, BringPlayerOntoFieldInput{
		GameTeamID: homeTeam, PeriodSecond: 700, Player: model.External("Guest", "99"),
		Position: "ST", RecordedBy: coachA,
	})
	require.NoError(t, err)
	_, err = e.RemovePlayerFromField(ctx, RemovePlayerFromFieldInput{
		GameTeamID: homeTeam, PeriodSecond: 800, PlayerEventID: p2.ID, RecordedBy: coachA,
	})
	require.NoError(t, err)

	res := endPeriod(t, e, "1", 2700)

	end := res.Events[0]
	assert.Equal(t, model.EventPeriodEnd, end.EventType)
	outs := ofType(res.Events, model.EventSubstitutionOut)
	require.Len(t, outs, 2)
	assert.Equal(t, "p3", outs[0].PlayerID)
	assert.Equal(t, "GK", outs[0].Position)
	assert.Equal(t, "Guest", outs[1].ExternalPlayerName)
	for _, out := range outs {
		assert.Equal(t, end.ID, out.ParentEventID)
		assert.Equal(t, 2700, out.PeriodSecond)
	}

	l := lineup(t, e)
	assert.Empty(t, l.CurrentOnField)
	assert.Equal(t, model.PeriodEnded, l.Periods["1"])
	assert.Empty(t, l.ActivePeriod)
	assert.Len(t, l.PreviousPeriodLineup, 2)
}

// A keeper substituted at 600 must be the one taken off at the whistle.
func TestEndPeriod_UsesReplayedField(t *testing.T) {
	e := newTestEngine(t)
	start := startPeriod(t, e, "1", 0, starter("p1", "GK"))
	p1 := eventFor(t, start, model.EventSubstitutionIn, "p1")

	_, err := e.SubstitutePlayer(context.Background(), SubstitutePlayerInput{
		GameTeamID: homeTeam, PeriodSecond: 600, PlayerOutEventID: p1.ID,
		PlayerIn: model.Player("p2"), RecordedBy: coachA,
	})
	require.NoError(t, err)

	res := endPeriod(t, e, "1", 2700)

	outs := ofType(res.Events, model.EventSubstitutionOut)
	require.Len(t, outs, 1)
	assert.Equal(t, "p2", outs[0].PlayerID)
	assert.Equal(t, "GK", outs[0].Position)
	assert.Equal(t, res.Events[0].ID, outs[0].ParentEventID)
}

func TestStartThenEnd_LeavesFieldEmpty(t *testing.T) {
	lineups := [][]LineupEntry{
		nil,
		{starter("p1", "GK")},
		{starter("p1", "GK"), starter("p2", "LB"), starter("p3", "RB"), {Subject: model.External("Loan", "7")}},
	}
	for _, entries := range lineups {
		e := newTestEngine(t)
		startPeriod(t, e, "1", 0, entries...)
		endPeriod(t, e, "1", 2700)

		assert.Empty(t, lineup(t, e).CurrentOnField)
	}
}

func TestSecondPeriod_AfterFirstEnded(t *testing.T) {
	e := newTestEngine(t)
	startPeriod(t, e, "1", 0, starter("p1", "GK"))
	endPeriod(t, e, "1", 2700)

	startPeriod(t, e, "2", 0, starter("p2", "GK"))

	l := lineup(t, e)
	assert.Equal(t, map[string]string{"p2": "GK"}, onFieldPositions(l))
	assert.Equal(t, "2", l.ActivePeriod)
	require.Len(t, l.PreviousPeriodLineup, 1)
	assert.Equal(t, "p1", l.PreviousPeriodLineup[0].PlayerID)
}

func TestPeriodSecondOutOfRange_RejectedByEveryCommand(t *testing.T) {
	ctx := context.Background()
	commands := map[string]func(e *Engine, sec int, playerEvent string) error{
		"startPeriod": func(e *Engine, sec int, _ string) error {
			_, err := e.StartPeriod(ctx, StartPeriodInput{GameTeamID: homeTeam, Period: "2", PeriodSecond: sec, RecordedBy: coachA})
			return err
		},
		"endPeriod": func(e *Engine, sec int, _ string) error {
			_, err := e.EndPeriod(ctx, EndPeriodInput{GameTeamID: homeTeam, Period: "1", PeriodSecond: sec, RecordedBy: coachA})
			return err
		},
		"bringPlayerOntoField": func(e *Engine, sec int, _ string) error {
			_, err := e.BringPlayerOntoField(ctx, BringPlayerOntoFieldInput{GameTeamID: homeTeam, PeriodSecond: sec, Player: model.Player("p9"), RecordedBy: coachA})
			return err
		},
		"substitutePlayer": func(e *Engine, sec int, ev string) error {
			_, err := e.SubstitutePlayer(ctx, SubstitutePlayerInput{GameTeamID: homeTeam, PeriodSecond: sec, PlayerOutEventID: ev, PlayerIn: model.Player("p9"), RecordedBy: coachA})
			return err
		},
		"removePlayerFromField": func(e *Engine, sec int, ev string) error {
			_, err := e.RemovePlayerFromField(ctx, RemovePlayerFromFieldInput{GameTeamID: homeTeam, PeriodSecond: sec, PlayerEventID: ev, RecordedBy: coachA})
			return err
		},
		"recordPositionChange": func(e *Engine, sec int, ev string) error {
			_, err := e.RecordPositionChange(ctx, RecordPositionChangeInput{GameTeamID: homeTeam, PeriodSecond: sec, PlayerEventID: ev, Position: "ST", RecordedBy: coachA})
			return err
		},
		"recordGoal": func(e *Engine, sec int, _ string) error {
			_, err := e.RecordGoal(ctx, RecordGoalInput{GameTeamID: homeTeam, PeriodSecond: sec, Scorer: model.Player("p1"), RecordedBy: coachA})
			return err
		},
		"recordCard": func(e *Engine, sec int, _ string) error {
			_, err := e.RecordCard(ctx, RecordCardInput{GameTeamID: homeTeam, PeriodSecond: sec, Card: model.EventYellowCard, Player: model.Player("p1"), RecordedBy: coachA})
			return err
		},
		"recordFormationChange": func(e *Engine, sec int, _ string) error {
			_, err := e.RecordFormationChange(ctx, RecordFormationChangeInput{GameTeamID: homeTeam, PeriodSecond: sec, Formation: "4-4-2", RecordedBy: coachA})
			return err
		},
	}

	for name, run := range commands {
		for _, sec := range []int{model.MinPeriodSecond - 1, model.MaxPeriodSecond + 1} {
			t.Run(name, func(t *testing.T) {
				e := newTestEngine(t)
				start := startPeriod(t, e, "1", 0, starter("p1", "GK"))
				before := len(allEvents(t, e))

				err := run(e, sec, eventFor(t, start, model.EventSubstitutionIn, "p1").ID)

				require.Error(t, err, "second %d", sec)
				assert.True(t, IsValidation(err), "second %d: %v", sec, err)
				assert.Len(t, allEvents(t, e), before)
			})
		}
	}
}

func TestPeriodSecondBounds_Accepted(t *testing.T) {
	e := newTestEngine(t)
	startPeriod(t, e, "1", model.MinPeriodSecond)

	_, err := e.RecordGoal(context.Background(), RecordGoalInput{
		GameTeamID: homeTeam, PeriodSecond: model.MaxPeriodSecond, Scorer: model.Player("p1"), RecordedBy: coachA,
	})
	require.NoError(t, err)
}
