package main

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/urfave/cli/v2"

	"unitimeline/internal/participation"
)

func trackParticipationCommand() *cli.Command {
	return &cli.Command{
		Name:      "track-participation",
		Usage:     "Record whether you were called in an exercise session.",
		ArgsUsage: "<course-id> <session-label>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "was-called", Usage: "You were called to present in this session."},
			&cli.IntFlag{Name: "group-size", Usage: "Students in the group. Defaults to the last recorded size."},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return errors.New("usage: track-participation [--was-called] [--group-size N] <course-id> <session-label>")
			}
			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			rec := participation.Record{
				CourseID:     c.Args().Get(0),
				SessionLabel: c.Args().Get(1),
				WasCalled:    c.Bool("was-called"),
			}
			if c.IsSet("group-size") {
				rec.GroupSize = c.Int("group-size")
				if rec.GroupSize < 1 {
					return fmt.Errorf("%w: got %d", participation.ErrInvalidGroupSize, rec.GroupSize)
				}
			}

			store := e.store()
			if err := store.Append(rec); err != nil {
				return fmt.Errorf("failed to record session: %w", err)
			}

			h, err := store.History(rec.CourseID)
			if err != nil {
				return err
			}
			status := "not called"
			if rec.WasCalled {
				status = "called"
			}
			fmt.Fprintf(c.App.Writer, "Recorded %s for %s (%s). %d sessions tracked.\n", rec.SessionLabel, h.CourseID, status, h.Total())
			return nil
		},
	}
}

func participationStatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "participation-stats",
		Usage: "Show the estimated probability of being called next session.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "course-id", Usage: "Only show this course."},
		},
		Action: func(c *cli.Context) error {
			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			store := e.store()
			def := e.cfg.Participation.DefaultGroupSize

			histories := map[string]participation.History{}
			var loadErr error
			if id := strings.TrimSpace(c.String("course-id")); id != "" {
				h, err := store.History(id)
				if err != nil {
					return err
				}
				histories[id] = h
			} else {
				histories, loadErr = store.AllHistories()
			}

			w := c.App.Writer
			ids := make([]string, 0, len(histories))
			for id, h := range histories {
				if h.Total() > 0 {
					ids = append(ids, id)
				}
			}
			slices.Sort(ids)
			if len(ids) == 0 {
				fmt.Fprintln(w, "No participation data yet. Use track-participation to add sessions.")
			}
			for _, id := range ids {
				h := histories[id]
				s, err := participation.Summarize(h, h.GroupSize(def))
				if err != nil {
					return err
				}
				printSummary(w, s)
			}

			if loadErr != nil {
				var corrupt *participation.CorruptError
				if errors.As(loadErr, &corrupt) {
					fmt.Fprintln(c.App.ErrWriter, "Some participation files could not be read and were left untouched:")
				}
				return loadErr
			}
			return nil
		},
	}
}

func printSummary(w io.Writer, s participation.Summary) {
	fmt.Fprintf(w, "%s\n", s.CourseID)
	fmt.Fprintf(w, "  sessions: %d, called: %d, group size: %d\n", s.Total, s.Called, s.GroupSize)
	fmt.Fprintf(w, "  fair share: %.1f%%, expected calls: %.2f, deficit: %+.2f\n", s.Base*100, s.Expected, s.Deficit)
	fmt.Fprintf(w, "  chance of being called next: %.1f%%\n", s.Adjusted*100)
	if len(s.Recent) > 0 {
		fmt.Fprintln(w, "  recent sessions:")
		for _, r := range s.Recent {
			mark := " "
			if r.WasCalled {
				mark = "x"
			}
			fmt.Fprintf(w, "    [%s] %s\n", mark, r.SessionLabel)
		}
	}
}
