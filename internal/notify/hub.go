package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
)

// ErrClosed is returned by Subscription.Next once the subscription or its hub
// has been closed and every queued message has been read.
var ErrClosed = errors.New("subscription closed")

// Hub routes messages to the subscribers of each game team.
//
// Thread-safety: all methods are safe for concurrent use.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	closed bool
	logger *slog.Logger
}

// NewHub creates an empty hub. A nil logger discards output.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Hub{
		topics: make(map[string]map[*Subscription]struct{}),
		logger: logger,
	}
}

// Subscription receives the messages of one or more game teams in publish
// order.
type Subscription struct {
	hub         *Hub
	gameTeamIDs []string
	q           *queue
	once        sync.Once
}

// Subscribe registers a subscriber for the given game teams. Duplicate ids
// are collapsed. The caller must Close the subscription when done.
func (h *Hub) Subscribe(gameTeamIDs ...string) *Subscription {
	sub := &Subscription{hub: h, q: newQueue()}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		sub.q.close()
		return sub
	}

	seen := make(map[string]bool, len(gameTeamIDs))
	for _, id := range gameTeamIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		sub.gameTeamIDs = append(sub.gameTeamIDs, id)

		subs, ok := h.topics[id]
		if !ok {
			subs = make(map[*Subscription]struct{})
			h.topics[id] = subs
		}
		subs[sub] = struct{}{}
	}
	return sub
}

// Publish delivers m to every subscriber of m.GameTeamID. It never blocks on
// a slow subscriber.
func (h *Hub) Publish(m Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for sub := range h.topics[m.GameTeamID] {
		if sub.q.enqueue(m) {
			delivered++
		}
	}
	h.logger.Debug("published change",
		"action", m.Action,
		"game_team_id", m.GameTeamID,
		"subscribers", delivered,
	)
}

// Subscribers returns how many subscriptions watch gameTeamID.
func (h *Hub) Subscribers(gameTeamID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[gameTeamID])
}

// Close ends every subscription. Later Subscribe calls return subscriptions
// that are already closed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, subs := range h.topics {
		for sub := range subs {
			sub.q.close()
		}
		delete(h.topics, id)
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, id := range sub.gameTeamIDs {
		subs := h.topics[id]
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.topics, id)
		}
	}
}

// GameTeamIDs returns the game teams this subscription watches.
func (s *Subscription) GameTeamIDs() []string {
	return append([]string(nil), s.gameTeamIDs...)
}

// Next blocks until a message is available, the context is done, or the
// subscription is closed and drained.
func (s *Subscription) Next(ctx context.Context) (Message, error) {
	for {
		if m, ok := s.q.tryDequeue(); ok {
			return m, nil
		}
		if s.q.isClosed() {
			return Message{}, ErrClosed
		}

		select {
		case <-ctx.Done():
			return Message{}, ctx.Err()
		case <-s.q.wait():
		}
	}
}

// Pending returns how many messages are queued.
func (s *Subscription) Pending() int {
	return s.q.len()
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
		s.q.close()
	})
}
