package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"unitimeline/internal/publish"
	"unitimeline/internal/timeline"
)

func publishCalendarCommand() *cli.Command {
	return &cli.Command{
		Name:  "publish-calendar",
		Usage: "Upload the unified timeline to a CalDAV calendar.",
		Action: func(c *cli.Context) error {
			e, snap, err := fetch(c)
			if err != nil {
				return err
			}
			dav := e.cfg.CalDAV
			publisher, err := publish.NewCalDAVPublisher(c.Context, e.logger, dav.Endpoint, dav.Username, dav.Password, dav.Calendar, e.cfg.Export.EventDuration)
			if err != nil {
				return err
			}

			n, err := publisher.Publish(c.Context, timeline.Events(snap.Entries), time.Now())
			fmt.Fprintf(c.App.Writer, "Published %d of %d events to %q.\n", n, len(snap.Entries), dav.Calendar)
			return err
		},
	}
}
