package cli

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/gameledger/internal/engine"
	"github.com/roach88/gameledger/internal/model"
	"github.com/roach88/gameledger/internal/projection"
)

// InspectOptions holds flags shared by the read-only commands.
type InspectOptions struct {
	*RootOptions
	Period     string
	AsOfSeq    int64
	AsOfSecond int
	GameID     string
	From       string
	To         string
}

const dateLayout = "2006-01-02"

// withEngine opens the configured ledger for one read-only command.
func (o *InspectOptions) withEngine(cmd *cobra.Command, fn func(ctx context.Context, eng *engine.Engine, out *OutputFormatter) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	st, eng, err := openEngine(cfg, o.logger(cfg, cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer st.Close()

	out := &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
	out.VerboseLog("database: %s", cfg.DatabasePath)
	return fn(cmd.Context(), eng, out)
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events <game-team-id>",
		Short: "List a game team's event log",
		Long: `List the event log of one game team in recording order.

Examples:
  gameledger events gt-home --db ./season.db
  gameledger events gt-home --period 2 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEngine(cmd, func(ctx context.Context, eng *engine.Engine, out *OutputFormatter) error {
				events, err := eng.Events(ctx, args[0], opts.Period)
				if err != nil {
					return ledgerError("failed to list events", err)
				}
				if events == nil {
					events = []model.GameEvent{}
				}
				return out.Success(events, func(w io.Writer) { writeEvents(w, events) })
			})
		},
	}

	cmd.Flags().StringVar(&opts.Period, "period", "", "only events of this period")

	return cmd
}

// NewLineupCommand creates the lineup command.
func NewLineupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "lineup <game-team-id>",
		Short: "Show a game team's replayed lineup",
		Long: `Replay the event log into the current lineup: who is on the field and
where, the starters and bench, and the state of every period.

--as-of-seq replays only the events up to and including that seq.

Examples:
  gameledger lineup gt-home
  gameledger lineup gt-home --as-of-seq 12 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.AsOfSeq < 0 {
				return NewExitError(ExitCommandError, "--as-of-seq must be positive")
			}
			return opts.withEngine(cmd, func(ctx context.Context, eng *engine.Engine, out *OutputFormatter) error {
				var lopts []projection.LineupOption
				if opts.AsOfSeq > 0 {
					lopts = append(lopts, projection.AsOfSeq(opts.AsOfSeq))
				}
				lineup, err := eng.GameLineup(ctx, args[0], lopts...)
				if err != nil {
					return ledgerError("failed to replay lineup", err)
				}
				return out.Success(lineup, func(w io.Writer) { writeLineup(w, lineup) })
			})
		},
	}

	cmd.Flags().Int64Var(&opts.AsOfSeq, "as-of-seq", 0, "replay up to this seq")

	return cmd
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stats <game-team-id | team-id>",
		Short: "Show playing time and player stats",
		Long: `Show per-player time on field, time per position, goals, assists
and cards.

With --team the argument is a team id and stats are aggregated over its
games, optionally limited to one game or a date range.

Examples:
  gameledger stats gt-home
  gameledger stats gt-home --as-of-second 1200
  gameledger stats team-home --team --from 2026-03-01 --to 2026-03-31`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			team, _ := cmd.Flags().GetBool("team")
			var q engine.PlayerStatsQuery
			if team {
				r, err := parseRange(opts.From, opts.To)
				if err != nil {
					return err
				}
				q = engine.PlayerStatsQuery{TeamID: args[0], GameID: opts.GameID, Range: r}
			}
			return opts.withEngine(cmd, func(ctx context.Context, eng *engine.Engine, out *OutputFormatter) error {
				var (
					stats []projection.PlayerStats
					err   error
				)
				if team {
					stats, err = eng.PlayerStats(ctx, q)
				} else {
					var sopts []projection.StatsOption
					if cmd.Flags().Changed("as-of-second") {
						sopts = append(sopts, projection.AsOfSecond(opts.AsOfSecond))
					}
					stats, err = eng.PlayerPositionStats(ctx, args[0], sopts...)
				}
				if err != nil {
					return ledgerError("failed to compute stats", err)
				}
				if stats == nil {
					stats = []projection.PlayerStats{}
				}
				return out.Success(stats, func(w io.Writer) { writeStats(w, stats) })
			})
		},
	}

	cmd.Flags().Bool("team", false, "treat the argument as a team id and aggregate across games")
	cmd.Flags().IntVar(&opts.AsOfSecond, "as-of-second", 0, "count time up to this period second")
	cmd.Flags().StringVar(&opts.GameID, "game", "", "with --team, only this game")
	cmd.Flags().StringVar(&opts.From, "from", "", "with --team, first day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.To, "to", "", "with --team, last day (YYYY-MM-DD)")

	return cmd
}

// NewDependentsCommand creates the dependents command.
func NewDependentsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dependents <event-id>",
		Short: "Show what deleting an event would remove",
		Long: `Show every event a cascade delete of the given event would remove and
whether the delete is allowed.

Example:
  gameledger dependents 0190f5c2-8a1e-7b3c-9d4e-2f6a8b0c1d3e`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEngine(cmd, func(ctx context.Context, eng *engine.Engine, out *OutputFormatter) error {
				res, err := eng.DependentEvents(ctx, args[0])
				if err != nil {
					return ledgerError("failed to inspect dependents", err)
				}
				return out.Success(res, func(w io.Writer) { writeDependents(w, res) })
			})
		},
	}

	return cmd
}

// parseRange parses inclusive calendar days. To covers the whole day.
func parseRange(from, to string) (model.DateRange, error) {
	var r model.DateRange
	if from != "" {
		t, err := time.Parse(dateLayout, from)
		if err != nil {
			return r, WrapExitError(ExitCommandError, "invalid --from", err)
		}
		r.From = t
	}
	if to != "" {
		t, err := time.Parse(dateLayout, to)
		if err != nil {
			return r, WrapExitError(ExitCommandError, "invalid --to", err)
		}
		r.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return r, NewExitError(ExitCommandError, "--to is before --from")
	}
	return r, nil
}

func writeEvents(w io.Writer, events []model.GameEvent) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tTYPE\tPERIOD\tSECOND\tSUBJECT\tDETAIL\tID")
	for _, ev := range events {
		subject := "-"
		if !ev.Subject.IsZero() {
			subject = ev.Subject.String()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\t%s\n",
			ev.Seq, ev.EventType, ev.Period, ev.PeriodSecond, subject, eventDetail(ev), ev.ID)
	}
	tw.Flush()
}

func eventDetail(ev model.GameEvent) string {
	var parts []string
	if ev.Position != "" {
		parts = append(parts, "pos="+ev.Position)
	}
	if ev.Formation != "" {
		parts = append(parts, "formation="+ev.Formation)
	}
	if ev.ParentEventID != "" {
		parts = append(parts, "parent="+ev.ParentEventID)
	}
	if ev.InConflict() {
		parts = append(parts, "conflict="+ev.ConflictID)
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}

func writeLineup(w io.Writer, l projection.GameLineup) {
	fmt.Fprintf(w, "Game team %s (as of seq %d)\n", l.GameTeamID, l.AsOfSeq)

	periods := make([]string, 0, len(l.Periods))
	for p := range l.Periods {
		periods = append(periods, p)
	}
	slices.Sort(periods)
	for _, p := range periods {
		marker := ""
		if p == l.ActivePeriod {
			marker = " *"
		}
		fmt.Fprintf(w, "  period %s: %s%s\n", p, l.Periods[p], marker)
	}

	section := func(title string, players []projection.LineupPlayer) {
		fmt.Fprintf(w, "%s (%d)\n", title, len(players))
		for _, p := range players {
			pos := p.Position
			if pos == "" {
				pos = "-"
			}
			fmt.Fprintf(w, "  %-6s %s\n", pos, p.Subject.String())
		}
	}
	section("On field", l.CurrentOnField)
	section("Starters", l.Starters)
	section("Bench", l.Bench)
}

func writeStats(w io.Writer, stats []projection.PlayerStats) {
	if len(stats) == 0 {
		fmt.Fprintln(w, "No players.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PLAYER\tMINUTES\tPOSITIONS\tG\tA\tYC\tRC\tSTARTS\tGAMES")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%d:%02d\t%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
			s.Subject.String(), s.SecondsOnField/60, s.SecondsOnField%60, positionSummary(s.PositionSeconds),
			s.Goals, s.Assists, s.YellowCards, s.RedCards, s.Starts, s.GamesPlayed)
	}
	tw.Flush()
}

func positionSummary(secs map[string]int) string {
	if len(secs) == 0 {
		return "-"
	}
	positions := make([]string, 0, len(secs))
	for p := range secs {
		positions = append(positions, p)
	}
	slices.Sort(positions)
	parts := make([]string, len(positions))
	for i, p := range positions {
		parts[i] = fmt.Sprintf("%s=%ds", p, secs[p])
	}
	return strings.Join(parts, ",")
}

func writeDependents(w io.Writer, r model.DependentEventsResult) {
	fmt.Fprintf(w, "%s\n", r.Event)
	fmt.Fprintf(w, "Dependents: %d\n", r.Count)
	for _, d := range r.Dependents {
		fmt.Fprintf(w, "  %s\n", d)
	}
	if r.CanDelete {
		fmt.Fprintln(w, "Can delete: yes")
	} else {
		fmt.Fprintln(w, "Can delete: no")
	}
	if r.Warning != "" {
		fmt.Fprintf(w, "Warning: %s\n", r.Warning)
	}
}
