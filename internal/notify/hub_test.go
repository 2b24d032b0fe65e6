package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gameledger/internal/model"
)

func event(id, gameTeamID string) model.GameEvent {
	return model.GameEvent{ID: id, GameTeamID: gameTeamID, EventType: model.EventGoal}
}

func TestQueue_FIFO(t *testing.T) {
	q := newQueue()
	for _, id := range []string{"A", "B", "C"} {
		require.True(t, q.enqueue(Created(event(id, "gt"))))
	}

	for _, want := range []string{"A", "B", "C"} {
		m, ok := q.tryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, m.Event.ID)
	}
	_, ok := q.tryDequeue()
	assert.False(t, ok)
}

func TestQueue_ClosedRefusesEnqueue(t *testing.T) {
	q := newQueue()
	q.close()
	q.close() // idempotent

	assert.False(t, q.enqueue(Deleted("gt", "e1")))
	assert.Equal(t, 0, q.len())
}

func TestHub_RoutesByGameTeam(t *testing.T) {
	h := NewHub(nil)
	home := h.Subscribe("gt-home")
	game := h.Subscribe("gt-home", "gt-away", "gt-home")
	defer home.Close()
	defer game.Close()

	assert.Equal(t, []string{"gt-home", "gt-away"}, game.GameTeamIDs())

	h.Publish(Created(event("e1", "gt-home")))
	h.Publish(Created(event("e2", "gt-away")))
	h.Publish(Created(event("e3", "gt-other")))

	assert.Equal(t, 1, home.Pending())
	assert.Equal(t, 2, game.Pending())

	ctx := context.Background()
	m, err := game.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "e1", m.Event.ID)
	m, err = game.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "e2", m.Event.ID)
}

func TestHub_PreservesPublishOrder(t *testing.T) {
	h := NewHub(nil)
	sub := h.Subscribe("gt")
	defer sub.Close()

	for i := 0; i < 100; i++ {
		h.Publish(Deleted("gt", string(rune('a'+i%26))))
	}
	for i := 0; i < 100; i++ {
		m, err := sub.Next(context.Background())
		require.NoError(t, err)
		assert.Equal(t, string(rune('a'+i%26)), m.DeletedEventID)
	}
}

func TestSubscription_NextBlocksUntilPublish(t *testing.T) {
	h := NewHub(nil)
	sub := h.Subscribe("gt")
	defer sub.Close()

	got := make(chan Message, 1)
	go func() {
		m, err := sub.Next(context.Background())
		if err == nil {
			got <- m
		}
	}()

	time.Sleep(10 * time.Millisecond)
	h.Publish(Created(event("late", "gt")))

	select {
	case m := <-got:
		assert.Equal(t, "late", m.Event.ID)
	case <-time.After(time.Second):
		t.Fatal("Next did not return after publish")
	}
}

func TestSubscription_NextHonorsContext(t *testing.T) {
	h := NewHub(nil)
	sub := h.Subscribe("gt")
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := sub.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubscription_CloseDrainsThenStops(t *testing.T) {
	h := NewHub(nil)
	sub := h.Subscribe("gt")
	h.Publish(Created(event("e1", "gt")))

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, h.Subscribers("gt"))

	m, err := sub.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "e1", m.Event.ID)

	_, err = sub.Next(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestHub_CloseEndsSubscriptions(t *testing.T) {
	h := NewHub(nil)
	sub := h.Subscribe("gt")
	h.Close()

	_, err := sub.Next(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	late := h.Subscribe("gt")
	_, err = late.Next(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestHub_ConcurrentPublish(t *testing.T) {
	h := NewHub(nil)
	sub := h.Subscribe("gt")
	defer sub.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.Publish(Deleted("gt", "x"))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 500, sub.Pending())
}

func TestDuplicateDetected_CarriesMatches(t *testing.T) {
	first := event("e1", "gt")
	m := DuplicateDetected(event("e2", "gt"), []model.GameEvent{first})

	assert.Equal(t, ActionDuplicateDetected, m.Action)
	assert.Equal(t, "e2", m.Event.ID)
	require.NotNil(t, m.Conflict)
	assert.Equal(t, "e1", m.Conflict.Events[0].ID)
	assert.Empty(t, m.Conflict.ConflictID)
}
