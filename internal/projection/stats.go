package projection

import (
	"github.com/roach88/gameledger/internal/model"
)

// PlayerStats is one player's derived statistics.
type PlayerStats struct {
	model.Subject
	SecondsOnField  int            `json:"seconds_on_field"`
	PositionSeconds map[string]int `json:"position_seconds"`
	Goals           int            `json:"goals"`
	Assists         int            `json:"assists"`
	YellowCards     int            `json:"yellow_cards"`
	RedCards        int            `json:"red_cards"`
	Starts          int            `json:"starts"`
	GamesPlayed     int            `json:"games_played"`
}

// StatsOption adjusts a stats replay.
type StatsOption func(*statsConfig)

type statsConfig struct {
	nowSecond int
	hasNow    bool
}

// AsOfSecond closes open intervals in periods still in progress at the given
// second rather than at the latest second recorded in that period.
func AsOfSecond(sec int) StatsOption {
	return func(c *statsConfig) {
		c.nowSecond = sec
		c.hasNow = true
	}
}

// UnknownPosition buckets on-field time recorded without a slot code.
const UnknownPosition = "UNKNOWN"

type stint struct {
	period   string
	start    int
	position string
}

type statsBuilder struct {
	order []string
	stats map[string]*PlayerStats
}

func (b *statsBuilder) get(s model.Subject) *PlayerStats {
	key := model.SubjectKey(s)
	ps, ok := b.stats[key]
	if !ok {
		ps = &PlayerStats{Subject: s, PositionSeconds: map[string]int{}}
		b.stats[key] = ps
		b.order = append(b.order, key)
	}
	return ps
}

func (ps *PlayerStats) addTime(position string, secs int) {
	if secs <= 0 {
		return
	}
	if position == "" {
		position = UnknownPosition
	}
	ps.SecondsOnField += secs
	ps.PositionSeconds[position] += secs
}

// PositionStats replays one game team's log into per-player statistics, in
// order of each player's first appearance. On-field time is the sum of
// SUBSTITUTION_IN→SUBSTITUTION_OUT intervals split by POSITION_CHANGE; an
// interval still open is closed at its period's PERIOD_END second or, for a
// period in progress, at the latest second recorded in it (or AsOfSecond).
func PositionStats(events []model.GameEvent, opts ...StatsOption) []PlayerStats {
	var cfg statsConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	ordered := sortedBySeq(events)
	b := &statsBuilder{stats: make(map[string]*PlayerStats)}
	open := make(map[string]stint)
	latest := make(map[string]int)
	ended := make(map[string]int)
	startIDs := make(map[string]bool)
	firstStart := ""

	for _, ev := range ordered {
		if sec, ok := latest[ev.Period]; !ok || ev.PeriodSecond > sec {
			latest[ev.Period] = ev.PeriodSecond
		}
		key := model.SubjectKey(ev.Subject)

		switch ev.EventType {
		case model.EventPeriodStart:
			startIDs[ev.ID] = true
			if firstStart == "" {
				firstStart = ev.ID
			}
		case model.EventPeriodEnd:
			if _, ok := ended[ev.Period]; !ok {
				ended[ev.Period] = ev.PeriodSecond
			}
		case model.EventSubstitutionIn:
			ps := b.get(ev.Subject)
			if ev.ParentEventID != "" && ev.ParentEventID == firstStart {
				ps.Starts++
			}
			ps.GamesPlayed = 1
			if _, ok := open[key]; ok {
				continue
			}
			open[key] = stint{period: ev.Period, start: ev.PeriodSecond, position: ev.Position}
		case model.EventSubstitutionOut:
			ps := b.get(ev.Subject)
			if st, ok := open[key]; ok {
				ps.addTime(st.position, ev.PeriodSecond-st.start)
				delete(open, key)
			}
		case model.EventPositionChange:
			ps := b.get(ev.Subject)
			if st, ok := open[key]; ok {
				ps.addTime(st.position, ev.PeriodSecond-st.start)
				open[key] = stint{period: st.period, start: ev.PeriodSecond, position: ev.Position}
			}
		case model.EventGoal:
			b.get(ev.Subject).Goals++
		case model.EventAssist:
			b.get(ev.Subject).Assists++
		case model.EventYellowCard:
			b.get(ev.Subject).YellowCards++
		case model.EventRedCard:
			b.get(ev.Subject).RedCards++
		}
	}

	for _, key := range b.order {
		st, ok := open[key]
		if !ok {
			continue
		}
		end, done := ended[st.period]
		if !done {
			end = latest[st.period]
			if cfg.hasNow && cfg.nowSecond > end {
				end = cfg.nowSecond
			}
		}
		b.stats[key].addTime(st.position, end-st.start)
	}

	out := make([]PlayerStats, 0, len(b.order))
	for _, key := range b.order {
		out = append(out, *b.stats[key])
	}
	return out
}

// Aggregate merges per-game stats into season totals keyed by player, in
// order of first appearance. GamesPlayed sums across games.
func Aggregate(games ...[]PlayerStats) []PlayerStats {
	b := &statsBuilder{stats: make(map[string]*PlayerStats)}
	for _, game := range games {
		for _, gs := range game {
			ps := b.get(gs.Subject)
			ps.SecondsOnField += gs.SecondsOnField
			for pos, secs := range gs.PositionSeconds {
				ps.PositionSeconds[pos] += secs
			}
			ps.Goals += gs.Goals
			ps.Assists += gs.Assists
			ps.YellowCards += gs.YellowCards
			ps.RedCards += gs.RedCards
			ps.Starts += gs.Starts
			ps.GamesPlayed += gs.GamesPlayed
		}
	}
	out := make([]PlayerStats, 0, len(b.order))
	for _, key := range b.order {
		out = append(out, *b.stats[key])
	}
	return out
}
