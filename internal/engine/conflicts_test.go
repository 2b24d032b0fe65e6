package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xorcare/pointer"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/gameledger/internal/model"
	"github.com/roach88/gameledger/internal/notify"
)

func recordGoal(t *testing.T, e *Engine, recorder string, second int, scorer string) Result {
	t.Helper()
	res, err := e.RecordGoal(context.Background(), RecordGoalInput{
		GameTeamID: homeTeam, PeriodSecond: second, Scorer: model.Player(scorer), RecordedBy: recorder,
	})
	require.NoError(t, err)
	return res
}

func conflicts(t *testing.T, e *Engine) []model.ConflictInfo {
	t.Helper()
	c, err := e.Conflicts(context.Background(), homeTeam)
	require.NoError(t, err)
	return c
}

func TestConflict_TwoRecordersSameGoal(t *testing.T) {
	e := newTestEngine(t)
	startPeriod(t, e, "1", 0)
	sub := e.Subscribe(homeTeam, awayTeam)
	defer sub.Close()

	first := recordGoal(t, e, coachA, 300, "p9")
	assert.Empty(t, first.Conflicts)
	drain(t, sub)

	second := recordGoal(t, e, coachB, 302, "p9")

	require.Len(t, second.Conflicts, 1)
	group := second.Conflicts[0]
	assert.NotEmpty(t, group.ConflictID)
	assert.Equal(t, []string{first.Events[0].ID, second.Events[0].ID}, idsOf(group.Events))
	assert.Equal(t, []string{coachA, coachB}, group.Recorders())

	events := ofType(allEvents(t, e), model.EventGoal)
	require.Len(t, events, 2, "both writes persist")
	for _, ev := range events {
		assert.Equal(t, group.ConflictID, ev.ConflictID)
	}

	msgs := drain(t, sub)
	assert.Equal(t, []notify.Action{notify.ActionCreated, notify.ActionUpdated, notify.ActionConflictDetected}, actions(msgs))
	detected := msgs[2].Conflict
	require.NotNil(t, detected)
	assert.Equal(t, group.ConflictID, detected.ConflictID)
	assert.Equal(t, []string{coachA, coachB}, detected.Recorders())

	stored := conflicts(t, e)
	require.Len(t, stored, 1)
	assert.Equal(t, group.ConflictID, stored[0].ConflictID)
	assert.Equal(t, idsOf(group.Events), idsOf(stored[0].Events))
}

func TestConflict_ConcurrentSubstitutionIn(t *testing.T) {
	e := newTestEngine(t)
	startPeriod(t, e, "1", 0)

	var g errgroup.Group
	for i, recorder := range []string{coachA, coachB} {
		g.Go(func() error {
			_, err := e.BringPlayerOntoField(context.Background(), BringPlayerOntoFieldInput{
				GameTeamID: homeTeam, PeriodSecond: 100 + 3*i, Player: model.Player("p5"), Position: "ST", RecordedBy: recorder,
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	ins := ofType(allEvents(t, e), model.EventSubstitutionIn)
	require.Len(t, ins, 2)
	assert.NotEmpty(t, ins[0].ConflictID)
	assert.Equal(t, ins[0].ConflictID, ins[1].ConflictID)

	on := lineup(t, e).CurrentOnField
	require.Len(t, on, 1, "the player is on the field once")
	assert.Equal(t, ins[0].ID, on[0].EventID)
}

func TestConflict_ManyRecordersFormOneGroup(t *testing.T) {
	e := newTestEngine(t)
	startPeriod(t, e, "1", 0)

	const recorders = 6
	var g errgroup.Group
	for i := range recorders {
		g.Go(func() error {
			_, err := e.RecordGoal(context.Background(), RecordGoalInput{
				GameTeamID: homeTeam, PeriodSecond: 600, Scorer: model.Player("p9"), RecordedBy: fmt.Sprintf("coach-%d", i),
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	c := conflicts(t, e)
	require.Len(t, c, 1)
	assert.Len(t, c[0].Events, recorders)
	assert.Len(t, c[0].Recorders(), recorders)
}

func TestConflict_SameRecorderIsDuplicate(t *testing.T) {
	e := newTestEngine(t)
	startPeriod(t, e, "1", 0)
	sub := e.Subscribe(homeTeam)
	defer sub.Close()

	recordGoal(t, e, coachA, 300, "p9")
	again := recordGoal(t, e, coachA, 301, "p9")

	assert.Equal(t, idsOf(again.Events), again.Duplicates)
	assert.Empty(t, again.Conflicts)
	assert.Empty(t, again.Events[0].ConflictID)
	assert.Empty(t, conflicts(t, e))
	assert.Len(t, ofType(allEvents(t, e), model.EventGoal), 2)

	var dup *notify.Message
	for _, m := range drain(t, sub) {
		if m.Action == notify.ActionDuplicateDetected {
			dup = &m
		}
	}
	require.NotNil(t, dup)
	assert.Equal(t, again.Events[0].ID, dup.Event.ID)
	require.Len(t, dup.Conflict.Events, 1)
}

func TestConflict_Window(t *testing.T) {
	tests := []struct {
		name   string
		window *int
		gap    int
		want   bool
	}{
		{name: "default window edge", gap: 5, want: true},
		{name: "outside default window", gap: 6, want: false},
		{name: "wider window", window: pointer.Int(10), gap: 6, want: true},
		{name: "exact match only", window: pointer.Int(0), gap: 1, want: false},
		{name: "exact match", window: pointer.Int(0), gap: 0, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.window != nil {
				opts = append(opts, WithConflictWindow(*tt.window))
			}
			e := newTestEngine(t, opts...)
			startPeriod(t, e, "1", 0)

			recordGoal(t, e, coachA, 300, "p9")
			res := recordGoal(t, e, coachB, 300+tt.gap, "p9")

			assert.Equal(t, tt.want, len(res.Conflicts) == 1)
		})
	}
}

func TestConflict_NeedsSameSubjectTypeAndTeam(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	startPeriod(t, e, "1", 0)
	_, err := e.StartPeriod(ctx, StartPeriodInput{GameTeamID: awayTeam, Period: "1", RecordedBy: coachB})
	require.NoError(t, err)

	recordGoal(t, e, coachA, 300, "p9")

	res := recordGoal(t, e, coachB, 300, "p8")
	assert.Empty(t, res.Conflicts, "different scorer")

	card, err := e.RecordCard(ctx, RecordCardInput{GameTeamID: homeTeam, PeriodSecond: 300, Card: model.EventYellowCard, Player: model.Player("p9"), RecordedBy: coachB})
	require.NoError(t, err)
	assert.Empty(t, card.Conflicts, "different type")

	away, err := e.RecordGoal(ctx, RecordGoalInput{GameTeamID: awayTeam, PeriodSecond: 300, Scorer: model.Player("p9"), RecordedBy: coachB})
	require.NoError(t, err)
	assert.Empty(t, away.Conflicts, "different game team")
}

func TestConflict_ExternalNamesNormalize(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	startPeriod(t, e, "1", 0)

	_, err := e.RecordGoal(ctx, RecordGoalInput{GameTeamID: homeTeam, PeriodSecond: 50, Scorer: model.External("José  Díaz", "9"), RecordedBy: coachA})
	require.NoError(t, err)
	res, err := e.RecordGoal(ctx, RecordGoalInput{GameTeamID: homeTeam, PeriodSecond: 52, Scorer: model.External("JOSÉ DÍAZ", "9"), RecordedBy: coachB})
	require.NoError(t, err)

	assert.Len(t, res.Conflicts, 1)
}

func TestConflict_GroupsMerge(t *testing.T) {
	e := newTestEngine(t)
	startPeriod(t, e, "1", 0)

	x := recordGoal(t, e, coachA, 300, "p9")
	recordGoal(t, e, coachB, 300, "p9")
	recordGoal(t, e, "coach-c", 310, "p9")
	recordGoal(t, e, "coach-d", 310, "p9")
	require.Len(t, conflicts(t, e), 2)

	bridge := recordGoal(t, e, "coach-e", 305, "p9")

	c := conflicts(t, e)
	require.Len(t, c, 1)
	assert.Len(t, c[0].Events, 5)
	assert.Equal(t, c[0].ConflictID, bridge.Events[0].ConflictID)

	first, err := e.Event(context.Background(), x.Events[0].ID)
	require.NoError(t, err)
	assert.Equal(t, c[0].ConflictID, first.ConflictID, "the oldest group's id survives")
}

func TestConflict_DeletingMemberDissolvesPair(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	startPeriod(t, e, "1", 0)
	a := recordGoal(t, e, coachA, 300, "p9")
	b := recordGoal(t, e, coachB, 300, "p9")

	_, err := e.DeleteGoal(ctx, b.Events[0].ID)
	require.NoError(t, err)

	survivor, err := e.Event(ctx, a.Events[0].ID)
	require.NoError(t, err)
	assert.Empty(t, survivor.ConflictID)
	assert.Empty(t, conflicts(t, e))
}

func TestConflict_DeletingMemberKeepsLargerGroup(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	startPeriod(t, e, "1", 0)
	recordGoal(t, e, coachA, 300, "p9")
	b := recordGoal(t, e, coachB, 300, "p9")
	c := recordGoal(t, e, "coach-c", 300, "p9")

	_, err := e.DeleteGoal(ctx, c.Events[0].ID)
	require.NoError(t, err)

	groups := conflicts(t, e)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Events, 2)
	assert.Equal(t, b.Events[0].ConflictID, groups[0].ConflictID)
}

func TestResolveEventConflict_KeepAll(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	startPeriod(t, e, "1", 0)
	recordGoal(t, e, coachA, 300, "p9")
	b := recordGoal(t, e, coachB, 300, "p9")
	cid := b.Conflicts[0].ConflictID

	res, err := e.ResolveEventConflict(ctx, ResolveConflictInput{ConflictID: cid, KeepAll: true, RecordedBy: "ref"})
	require.NoError(t, err)

	assert.Empty(t, res.Deleted)
	assert.Len(t, res.Events, 2)
	for _, ev := range res.Events {
		assert.Empty(t, ev.ConflictID)
	}
	assert.Empty(t, conflicts(t, e))
	assert.Len(t, ofType(allEvents(t, e), model.EventGoal), 2)
}

func TestResolveEventConflict_SelectOne(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	startPeriod(t, e, "1", 0)
	a := recordGoal(t, e, coachA, 300, "p9")
	b, err := e.RecordGoal(ctx, RecordGoalInput{
		GameTeamID: homeTeam, PeriodSecond: 301, Scorer: model.Player("p9"), Assist: &model.Subject{PlayerID: "p4"}, RecordedBy: coachB,
	})
	require.NoError(t, err)
	cid := b.Conflicts[0].ConflictID
	sub := e.Subscribe(homeTeam)
	defer sub.Close()

	res, err := e.ResolveEventConflict(ctx, ResolveConflictInput{ConflictID: cid, SelectedEventID: a.Events[0].ID, RecordedBy: "ref"})
	require.NoError(t, err)

	assert.ElementsMatch(t, idsOf(b.Events), res.Deleted, "the losing goal goes with its assist")
	require.Len(t, res.Events, 1)
	assert.Equal(t, a.Events[0].ID, res.Events[0].ID)
	assert.Empty(t, res.Events[0].ConflictID)
	assert.Equal(t, []string{a.Events[0].ID}, idsOf(ofType(allEvents(t, e), model.EventGoal)))
	assert.Empty(t, conflicts(t, e))

	assert.Contains(t, actions(drain(t, sub)), notify.ActionDeleted)
}

func TestResolveEventConflict_Errors(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	startPeriod(t, e, "1", 0)
	recordGoal(t, e, coachA, 300, "p9")
	b := recordGoal(t, e, coachB, 300, "p9")
	other := recordGoal(t, e, coachA, 900, "p2")
	cid := b.Conflicts[0].ConflictID

	_, err := e.ResolveEventConflict(ctx, ResolveConflictInput{ConflictID: "nope", KeepAll: true})
	assert.True(t, IsNotFound(err))

	_, err = e.ResolveEventConflict(ctx, ResolveConflictInput{ConflictID: cid})
	assert.True(t, IsValidation(err), "a selection or keep_all is required")

	_, err = e.ResolveEventConflict(ctx, ResolveConflictInput{ConflictID: ""})
	assert.True(t, IsValidation(err))

	_, err = e.ResolveEventConflict(ctx, ResolveConflictInput{ConflictID: cid, SelectedEventID: other.Events[0].ID})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.False(t, IsNotFound(err))

	assert.Len(t, conflicts(t, e), 1, "failed rulings change nothing")
}

func TestUpdateGoal_RedetectsConflicts(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	startPeriod(t, e, "1", 0)
	a := recordGoal(t, e, coachA, 300, "p9")
	b := recordGoal(t, e, coachB, 300, "p9")
	require.Len(t, conflicts(t, e), 1)

	// Moving B's goal away leaves A alone, so the group dissolves.
	res, err := e.UpdateGoal(ctx, UpdateGoalInput{EventID: b.Events[0].ID, PeriodSecond: 1500, Scorer: model.Player("p9"), RecordedBy: coachB})
	require.NoError(t, err)
	assert.Empty(t, res.Conflicts)
	assert.Empty(t, conflicts(t, e))
	survivor, err := e.Event(ctx, a.Events[0].ID)
	require.NoError(t, err)
	assert.Empty(t, survivor.ConflictID)

	// Moving it back makes them collide again.
	res, err = e.UpdateGoal(ctx, UpdateGoalInput{EventID: b.Events[0].ID, PeriodSecond: 303, Scorer: model.Player("p9"), RecordedBy: coachB})
	require.NoError(t, err)
	require.Len(t, res.Conflicts, 1)
	assert.ElementsMatch(t, []string{a.Events[0].ID, b.Events[0].ID}, idsOf(res.Conflicts[0].Events))
}
