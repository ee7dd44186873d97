package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"unitimeline/internal/aggregator"
	"unitimeline/internal/ics"
	"unitimeline/internal/timeline"
)

const dateLayout = "2006-01-02 15:04"

func timelineCommand() *cli.Command {
	return &cli.Command{
		Name:  "timeline",
		Usage: "Show the unified timeline of assignments, calendar events and exams.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "export", Usage: "Write the timeline to an .ics file instead of printing it."},
			&cli.StringFlag{Name: "output-file", Usage: "Path of the .ics file. Defaults to export.path from the config."},
		},
		Action: func(c *cli.Context) error {
			e, snap, err := fetch(c)
			if err != nil {
				return err
			}
			if c.Bool("export") {
				return exportSnapshot(c, e, snap)
			}
			printEntries(c.App.Writer, snap.Entries, e.now())
			return nil
		},
	}
}

func weeklyCommand() *cli.Command {
	return &cli.Command{
		Name:  "weekly",
		Usage: "Show everything due within the next seven days.",
		Action: func(c *cli.Context) error {
			e, snap, err := fetch(c)
			if err != nil {
				return err
			}
			now := e.now()
			printEntries(c.App.Writer, timeline.Weekly(snap.Entries, now), now)
			return nil
		},
	}
}

func todoCommand() *cli.Command {
	return &cli.Command{
		Name:  "todo",
		Usage: "List deadlines due today or overdue in courses with no ticked checkmarks.",
		Action: func(c *cli.Context) error {
			e, snap, err := fetch(c)
			if err != nil {
				return err
			}
			now := e.now()
			urgent := timeline.UrgentUnaddressed(snap.Entries, snap.Ticks)
			w := c.App.Writer
			if len(urgent) == 0 {
				fmt.Fprintln(w, "No urgent checkmark alerts. You're good!")
				return nil
			}
			for _, u := range urgent {
				fmt.Fprintf(w, "[URGENT] You haven't ticked any examples for %s in %s.\n", u.Title, courseLabel(u.CourseCode, u.CourseTitle))
				fmt.Fprintf(w, "         Deadline: %s (%s).\n", u.DueAt.In(now.Location()).Format(dateLayout), relative(u.DueAt, now))
			}
			return nil
		},
	}
}

func examAlertsCommand() *cli.Command {
	return &cli.Command{
		Name:  "exam-alerts",
		Usage: "Show exams whose registration opens soon or opened recently.",
		Action: func(c *cli.Context) error {
			e, snap, err := fetch(c)
			if err != nil {
				return err
			}
			now := e.now()
			alerts := timeline.RegistrationAlerts(snap.Entries, now)
			w := c.App.Writer
			if len(alerts) == 0 {
				fmt.Fprintln(w, "No exam registrations opening soon.")
				return nil
			}
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "COURSE\tEXAM\tDATE\tREGISTRATION")
			for _, a := range alerts {
				reg := fmt.Sprintf("opens in %d days", a.DaysToRegistration)
				if a.DaysToRegistration <= 0 {
					reg = fmt.Sprintf("opened %d days ago", -a.DaysToRegistration)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", courseLabel(a.CourseCode, a.CourseTitle), a.Title, a.DueAt.In(now.Location()).Format(dateLayout), reg)
			}
			return tw.Flush()
		},
	}
}

func exportCalendarCommand() *cli.Command {
	return &cli.Command{
		Name:  "export-calendar",
		Usage: "Export the unified timeline to an .ics file.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output-file", Usage: "Path of the .ics file. Defaults to export.path from the config."},
		},
		Action: func(c *cli.Context) error {
			e, snap, err := fetch(c)
			if err != nil {
				return err
			}
			return exportSnapshot(c, e, snap)
		},
	}
}

// fetch runs one fetch+merge cycle and reports degraded sources to stderr.
func fetch(c *cli.Context) (*env, aggregator.Snapshot, error) {
	e, err := loadEnv(c)
	if err != nil {
		return nil, aggregator.Snapshot{}, err
	}
	agg, err := e.aggregator()
	if err != nil {
		return nil, aggregator.Snapshot{}, err
	}
	snap, err := agg.Fetch(c.Context, e.now())
	if err != nil {
		return nil, aggregator.Snapshot{}, err
	}

	w := c.App.ErrWriter
	if snap.Incomplete() {
		fmt.Fprintln(w, "Warning: the timeline is incomplete, these sources failed:")
		for _, f := range snap.Failures {
			fmt.Fprintf(w, "  - %s\n", f.Error())
		}
	}
	if n := len(snap.Skipped); n > 0 {
		fmt.Fprintf(w, "Skipped %d malformed records.\n", n)
	}
	return e, snap, nil
}

func exportSnapshot(c *cli.Context, e *env, snap aggregator.Snapshot) error {
	doc, err := ics.Export(timeline.Events(snap.Entries), time.Now(), ics.Options{
		CalendarName:   e.cfg.Export.CalendarName,
		RequireEntries: e.cfg.Export.RequireEntries,
		EventDuration:  e.cfg.Export.EventDuration,
	})
	if errors.Is(err, ics.ErrEmptyTimeline) {
		return fmt.Errorf("nothing to export: %w", err)
	}
	if err != nil {
		return err
	}

	path := c.String("output-file")
	if path == "" {
		path = e.cfg.Export.Path
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("failed to write calendar: %w", err)
	}

	e.logger.Info("Exported timeline.", "file", path, "events", len(snap.Entries))
	fmt.Fprintf(c.App.Writer, "Timeline exported to %s (%d events).\n", path, len(snap.Entries))
	return nil
}

func printEntries(w io.Writer, entries []timeline.Entry, now time.Time) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No upcoming events found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "URGENCY\tWHEN\tDUE\tTITLE\tCOURSE\tSOURCE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Urgency, relative(e.DueAt, now), e.DueAt.In(now.Location()).Format(dateLayout),
			e.Title, courseLabel(e.CourseCode, e.CourseTitle), e.Source)
	}
	tw.Flush()
}

func courseLabel(code, title string) string {
	switch {
	case code == "" && title == "":
		return "-"
	case title == "":
		return code
	case code == "":
		return title
	default:
		return code + " " + title
	}
}

// relative renders the distance from now to due the way a person would say it.
func relative(due, now time.Time) string {
	d := due.Sub(now)
	switch {
	case d < 0:
		return fmt.Sprintf("%s ago", roundDuration(-d))
	case d < 24*time.Hour:
		return fmt.Sprintf("in %dh %dm", int(d.Hours()), int(d.Minutes())%60)
	case d < 48*time.Hour:
		return "tomorrow"
	default:
		return fmt.Sprintf("in %d days", int(d.Hours()/24))
	}
}

func roundDuration(d time.Duration) string {
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	return fmt.Sprintf("%d days", int(d.Hours()/24))
}
