package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"unitimeline/internal/aggregator"
	"unitimeline/internal/config"
	"unitimeline/internal/participation"
	"unitimeline/internal/timeline"
)

func rcCommand() *cli.Command {
	return &cli.Command{
		Name:  "rc",
		Usage: "Print a one-line summary of the enabled widgets, for shell startup files.",
		Action: func(c *cli.Context) error {
			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			w := c.App.Writer
			if len(e.cfg.Widgets) == 0 {
				return nil
			}
			if e.cfg.LMS.Token == "" {
				fmt.Fprintln(w, "Not logged in. Set TUWEL_TOKEN.")
				return nil
			}

			var snap aggregator.Snapshot
			if needsTimeline(e.cfg) {
				agg, err := e.aggregator()
				if err != nil {
					return err
				}
				// Fetch errors never fail rc.
				if snap, err = agg.Fetch(c.Context, e.now()); err != nil {
					e.logger.Warn("Timeline unavailable.", "error", err)
					fmt.Fprintln(w, "Timeline unavailable.")
					return nil
				}
			}

			var stats []participation.Summary
			if e.cfg.WidgetEnabled(config.WidgetParticipation) {
				stats = participationSummaries(e)
			}

			fmt.Fprintln(w, summaryLine(e.cfg, snap, stats, e.now()))
			return nil
		},
	}
}

func needsTimeline(cfg *config.Config) bool {
	return cfg.WidgetEnabled(config.WidgetTimeline) ||
		cfg.WidgetEnabled(config.WidgetWeekly) ||
		cfg.WidgetEnabled(config.WidgetTodo) ||
		cfg.WidgetEnabled(config.WidgetExamAlerts)
}

// participationSummaries skips corrupt histories; they are reported by
// participation-stats.
func participationSummaries(e *env) []participation.Summary {
	histories, err := e.store().AllHistories()
	if err != nil {
		e.logger.Warn("Some participation histories are unreadable.", "error", err)
	}
	def := e.cfg.Participation.DefaultGroupSize
	var out []participation.Summary
	for _, h := range histories {
		if h.Total() == 0 {
			continue
		}
		s, err := participation.Summarize(h, h.GroupSize(def))
		if err != nil {
			continue
		}
		out = append(out, s)
	}
	return out
}

// summaryLine renders one segment per enabled widget, in widget order.
// Widgets with nothing to report are left out.
func summaryLine(cfg *config.Config, snap aggregator.Snapshot, stats []participation.Summary, now time.Time) string {
	var parts []string
	for _, widget := range cfg.Widgets {
		switch widget {
		case config.WidgetTimeline:
			upcoming := 0
			for _, e := range snap.Entries {
				if !e.DueAt.Before(now) {
					upcoming++
				}
			}
			if upcoming > 0 {
				parts = append(parts, plural(upcoming, "upcoming event", "upcoming events"))
			}
		case config.WidgetWeekly:
			if n := len(timeline.Weekly(snap.Entries, now)); n > 0 {
				parts = append(parts, plural(n, "deadline this week", "deadlines this week"))
			}
		case config.WidgetTodo:
			if n := len(timeline.UrgentUnaddressed(snap.Entries, snap.Ticks)); n > 0 {
				parts = append(parts, fmt.Sprintf("%d urgent", n))
			}
		case config.WidgetExamAlerts:
			if n := len(timeline.RegistrationAlerts(snap.Entries, now)); n > 0 {
				parts = append(parts, plural(n, "exam registration", "exam registrations"))
			}
		case config.WidgetParticipation:
			if best, ok := mostLikely(stats); ok {
				parts = append(parts, fmt.Sprintf("%.0f%% call chance in %s", best.Adjusted*100, best.CourseID))
			}
		}
	}
	if snap.Incomplete() {
		parts = append(parts, "(incomplete)")
	}
	if len(parts) == 0 {
		return "All clear."
	}
	return strings.Join(parts, " | ")
}

// mostLikely picks the course with the highest adjusted probability; ties
// go to the lexically smaller course id.
func mostLikely(stats []participation.Summary) (participation.Summary, bool) {
	var (
		best  participation.Summary
		found bool
	)
	for _, s := range stats {
		if !found || s.Adjusted > best.Adjusted || (s.Adjusted == best.Adjusted && s.CourseID < best.CourseID) {
			best, found = s, true
		}
	}
	return best, found
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}
