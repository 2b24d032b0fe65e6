package projection

import (
	"github.com/roach88/gameledger/internal/model"
)

// LineupPlayer is one player's slot in a lineup view.
type LineupPlayer struct {
	// EventID is the event that placed the player: the SUBSTITUTION_IN for
	// on-field players, the GAME_ROSTER entry for starters and bench, the
	// SUBSTITUTION_OUT for the previous period lineup.
	EventID string `json:"event_id"`
	model.Subject
	Position     string `json:"position,omitempty"`
	Period       string `json:"period"`
	PeriodSecond int    `json:"period_second"`
}

// GameLineup is the replayed lineup of one game team.
type GameLineup struct {
	GameTeamID           string                       `json:"game_team_id"`
	Starters             []LineupPlayer               `json:"starters"`
	Bench                []LineupPlayer               `json:"bench"`
	CurrentOnField       []LineupPlayer               `json:"current_on_field"`
	PreviousPeriodLineup []LineupPlayer               `json:"previous_period_lineup"`
	Periods              map[string]model.PeriodState `json:"periods"`
	ActivePeriod         string                       `json:"active_period,omitempty"`
	// AsOfSeq is the last seq replayed; 0 for an empty log.
	AsOfSeq int64 `json:"as_of_seq"`
}

// OnField returns the on-field entry for a subject.
func (l GameLineup) OnField(s model.Subject) (LineupPlayer, bool) {
	key := model.SubjectKey(s)
	for _, p := range l.CurrentOnField {
		if model.SubjectKey(p.Subject) == key {
			return p, true
		}
	}
	return LineupPlayer{}, false
}

// LineupOption adjusts a lineup replay.
type LineupOption func(*lineupConfig)

type lineupConfig struct {
	asOfSeq int64
}

// AsOfSeq stops the replay after the event with the given seq, yielding the
// lineup at that point in the log.
func AsOfSeq(seq int64) LineupOption {
	return func(c *lineupConfig) { c.asOfSeq = seq }
}

// Lineup replays events in seq order:
//   - SUBSTITUTION_IN puts a player on the field
//   - SUBSTITUTION_OUT takes them off
//   - POSITION_CHANGE moves an on-field player
//   - GAME_ROSTER with a position is a planned starter, without one is bench
//     (the latest roster entry per player wins; bench excludes players on
//     the field)
//
// Lineup is idempotent and never mutates its input.
func Lineup(gameTeamID string, events []model.GameEvent, opts ...LineupOption) GameLineup {
	var cfg lineupConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	onField := newRoster()
	roster := newRoster()
	var previous []LineupPlayer
	lastEndID := ""
	var replayed []model.GameEvent
	var lastSeq int64

	for _, ev := range sortedBySeq(events) {
		if ev.GameTeamID != gameTeamID {
			continue
		}
		if cfg.asOfSeq > 0 && ev.Seq > cfg.asOfSeq {
			break
		}
		replayed = append(replayed, ev)
		lastSeq = ev.Seq

		key := model.SubjectKey(ev.Subject)
		switch ev.EventType {
		case model.EventSubstitutionIn:
			if _, ok := onField.get(key); ok {
				continue
			}
			onField.put(key, playerFrom(ev))
		case model.EventSubstitutionOut:
			p, ok := onField.get(key)
			onField.remove(key)
			if ev.ParentEventID != "" && ev.ParentEventID == lastEndID {
				out := playerFrom(ev)
				if out.Position == "" && ok {
					out.Position = p.Position
				}
				previous = append(previous, out)
			}
		case model.EventPositionChange:
			if p, ok := onField.get(key); ok {
				p.Position = ev.Position
				onField.put(key, p)
			}
		case model.EventGameRoster:
			roster.put(key, playerFrom(ev))
		case model.EventPeriodEnd:
			lastEndID = ev.ID
			previous = nil
		}
	}

	lineup := GameLineup{
		GameTeamID:           gameTeamID,
		Starters:             []LineupPlayer{},
		Bench:                []LineupPlayer{},
		CurrentOnField:       onField.list(),
		PreviousPeriodLineup: previous,
		Periods:              PeriodStates(replayed),
		AsOfSeq:              lastSeq,
	}
	if lineup.PreviousPeriodLineup == nil {
		lineup.PreviousPeriodLineup = []LineupPlayer{}
	}
	if active, ok := ActivePeriod(replayed); ok {
		lineup.ActivePeriod = active
	}
	for _, p := range roster.list() {
		if p.Position != "" {
			lineup.Starters = append(lineup.Starters, p)
			continue
		}
		if _, ok := onField.get(model.SubjectKey(p.Subject)); !ok {
			lineup.Bench = append(lineup.Bench, p)
		}
	}
	return lineup
}

func playerFrom(ev model.GameEvent) LineupPlayer {
	return LineupPlayer{
		EventID:      ev.ID,
		Subject:      ev.Subject,
		Position:     ev.Position,
		Period:       ev.Period,
		PeriodSecond: ev.PeriodSecond,
	}
}

// roster is an insertion-ordered set of players keyed by subject key.
type roster struct {
	order   []string
	players map[string]LineupPlayer
}

func newRoster() *roster {
	return &roster{players: make(map[string]LineupPlayer)}
}

func (r *roster) get(key string) (LineupPlayer, bool) {
	p, ok := r.players[key]
	return p, ok
}

func (r *roster) put(key string, p LineupPlayer) {
	if _, ok := r.players[key]; !ok {
		r.order = append(r.order, key)
	}
	r.players[key] = p
}

func (r *roster) remove(key string) {
	if _, ok := r.players[key]; !ok {
		return
	}
	delete(r.players, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *roster) list() []LineupPlayer {
	out := make([]LineupPlayer, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.players[k])
	}
	return out
}
