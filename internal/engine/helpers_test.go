package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/gameledger/internal/model"
	"github.com/roach88/gameledger/internal/notify"
	"github.com/roach88/gameledger/internal/projection"
	"github.com/roach88/gameledger/internal/store"
	"github.com/roach88/gameledger/internal/testutil"
)

const (
	homeTeam = "gt-home"
	awayTeam = "gt-away"
	coachA   = "coach-a"
	coachB   = "coach-b"
)

// newTestEngine creates an engine over a temp-dir database with two
// registered game teams (home and away sides of game-1) and sequential ids.
func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	clock := testutil.NewDeterministicClock()
	s, err := store.Open(path, store.WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	opts = append([]Option{WithIDGenerator(testutil.NewSequentialIDs("ev"))}, opts...)
	e := New(s, opts...)

	ctx := context.Background()
	for _, id := range []string{homeTeam, awayTeam} {
		require.NoError(t, e.RegisterGameTeam(ctx, model.GameTeam{
			GameTeamID: id,
			TeamID:     "team-" + id,
			GameID:     "game-1",
			PlayedOn:   testutil.Epoch,
		}))
	}
	return e
}

func starter(playerID, position string) LineupEntry {
	return LineupEntry{Subject: model.Player(playerID), Position: position}
}

// startPeriod starts a period for the home team as coachA.
func startPeriod(t *testing.T, e *Engine, period string, second int, lineup ...LineupEntry) Result {
	t.Helper()
	res, err := e.StartPeriod(context.Background(), StartPeriodInput{
		GameTeamID:   homeTeam,
		Period:       period,
		PeriodSecond: second,
		Lineup:       lineup,
		RecordedBy:   coachA,
	})
	require.NoError(t, err)
	return res
}

func endPeriod(t *testing.T, e *Engine, period string, second int) Result {
	t.Helper()
	res, err := e.EndPeriod(context.Background(), EndPeriodInput{
		GameTeamID:   homeTeam,
		Period:       period,
		PeriodSecond: second,
		RecordedBy:   coachA,
	})
	require.NoError(t, err)
	return res
}

func lineup(t *testing.T, e *Engine) projection.GameLineup {
	t.Helper()
	l, err := e.GameLineup(context.Background(), homeTeam)
	require.NoError(t, err)
	return l
}

func allEvents(t *testing.T, e *Engine) []model.GameEvent {
	t.Helper()
	events, err := e.Events(context.Background(), homeTeam, "")
	require.NoError(t, err)
	return events
}

// onFieldPositions maps player id to position for the current field.
func onFieldPositions(l projection.GameLineup) map[string]string {
	out := make(map[string]string, len(l.CurrentOnField))
	for _, p := range l.CurrentOnField {
		out[p.PlayerID] = p.Position
	}
	return out
}

// eventFor returns the first event of a type for a player in res.
func eventFor(t *testing.T, res Result, typ model.EventType, playerID string) model.GameEvent {
	t.Helper()
	for _, ev := range res.Events {
		if ev.EventType == typ && ev.PlayerID == playerID {
			return ev
		}
	}
	t.Fatalf("no %s event for %q in result", typ, playerID)
	return model.GameEvent{}
}

func ofType(events []model.GameEvent, typ model.EventType) []model.GameEvent {
	var out []model.GameEvent
	for _, ev := range events {
		if ev.EventType == typ {
			out = append(out, ev)
		}
	}
	return out
}

func idsOf(events []model.GameEvent) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.ID
	}
	return out
}

// drain reads messages until none arrives within a short wait.
func drain(t *testing.T, sub *notify.Subscription) []notify.Message {
	t.Helper()
	var out []notify.Message
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		m, err := sub.Next(ctx)
		cancel()
		if err != nil {
			return out
		}
		out = append(out, m)
	}
}

func actions(msgs []notify.Message) []notify.Action {
	out := make([]notify.Action, len(msgs))
	for i, m := range msgs {
		out[i] = m.Action
	}
	return out
}

// scriptedIDs hands out the given ids first, then "auto-N".
type scriptedIDs struct {
	mu  sync.Mutex
	ids []string
	n   int
}

func (g *scriptedIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	if len(g.ids) > 0 {
		id := g.ids[0]
		g.ids = g.ids[1:]
		return id
	}
	return fmt.Sprintf("auto-%d", g.n)
}

func asError(t *testing.T, err error) *Error {
	t.Helper()
	var ee *Error
	require.True(t, errors.As(err, &ee), "want *Error, got %T: %v", err, err)
	return ee
}
