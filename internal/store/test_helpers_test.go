package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/gameledger/internal/model"
)

var fixedNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

// createTestStore creates a file-backed store in a temp dir with one
// registered game team, "gt-1".
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	gt := model.GameTeam{GameTeamID: "gt-1", TeamID: "team-1", GameID: "game-1", PlayedOn: fixedNow}
	if err := s.RegisterGameTeam(context.Background(), gt); err != nil {
		t.Fatalf("RegisterGameTeam() failed: %v", err)
	}
	return s
}

// createTestEvent creates a minimal valid event on gt-1.
func createTestEvent(id string, typ model.EventType, parent string) model.GameEvent {
	ev := model.GameEvent{
		ID:               id,
		GameTeamID:       "gt-1",
		EventType:        typ,
		Period:           "1",
		ParentEventID:    parent,
		RecordedByUserID: "user-a",
	}
	if typ.RequiresSubject() {
		ev.Subject = model.Player("p-" + id)
	}
	return ev
}

// insertAll writes events in order inside one transaction.
func insertAll(t *testing.T, s *Store, events ...model.GameEvent) []model.GameEvent {
	t.Helper()
	var out []model.GameEvent
	err := s.RunInGameTeam(context.Background(), "gt-1", func(tx *Tx) error {
		for _, ev := range events {
			written, err := tx.Insert(context.Background(), ev)
			if err != nil {
				return err
			}
			out = append(out, written)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	return out
}
