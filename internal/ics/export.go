package ics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"unitimeline/internal/models"
)

// ErrEmptyTimeline is returned when Options.RequireEntries is set and there
// is nothing to export.
var ErrEmptyTimeline = errors.New("timeline has no entries to export")

const (
	DefaultProductID    = "-//unitimeline//Unified Timeline//EN"
	DefaultCalendarName = "Uni Timeline"
	DefaultDuration     = time.Hour

	// PropGeneratedAt is the only property whose value changes between
	// exports of the same timeline.
	PropGeneratedAt = "X-GENERATED-AT"

	uidDomain = "unitimeline"
	utcLayout = "20060102T150405Z"
)

// uidNamespace seeds the name-based UIDs; changing it re-keys every exported event.
var uidNamespace = uuid.MustParse("6f1d3a52-9c3e-4b7a-8f0e-2d5c7b1a9e44")

// Options controls the exported document.
type Options struct {
	CalendarName   string
	ProductID      string
	RequireEntries bool
	// EventDuration is DTEND - DTSTART for each entry.
	EventDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.CalendarName == "" {
		o.CalendarName = DefaultCalendarName
	}
	if o.ProductID == "" {
		o.ProductID = DefaultProductID
	}
	if o.EventDuration <= 0 {
		o.EventDuration = DefaultDuration
	}
	return o
}

// UID derives the calendar UID of an event from its identity key with a
// one-way hash, so re-imports update entries instead of duplicating them.
func UID(identityKey string) string {
	return uuid.NewSHA1(uidNamespace, []byte(identityKey)).String() + "@" + uidDomain
}

// Export renders events, in the given order, as an iCalendar document.
// All times are written in UTC. Apart from the X-GENERATED-AT value taken
// from generatedAt, the output depends only on events and opts.
func Export(events []models.Event, generatedAt time.Time, opts Options) (string, error) {
	opts = opts.withDefaults()
	if opts.RequireEntries && len(events) == 0 {
		return "", ErrEmptyTimeline
	}

	cal := ical.NewCalendar()
	cal.SetProductId(opts.ProductID)
	cal.SetCalscale("GREGORIAN")
	cal.SetMethod(ical.MethodPublish)
	cal.SetXWRCalName(opts.CalendarName)
	cal.CalendarProperties = append(cal.CalendarProperties, ical.CalendarProperty{
		BaseProperty: ical.BaseProperty{
			IANAToken: PropGeneratedAt,
			Value:     generatedAt.UTC().Format(utcLayout),
		},
	})

	for _, ev := range events {
		if ev.IdentityKey == "" {
			ev = ev.WithIdentity()
		}
		start := ev.DueAt.UTC()

		ve := cal.AddEvent(UID(ev.IdentityKey))
		// DTSTAMP is pinned to the due instant so that it is stable across exports.
		ve.SetDtStampTime(start)
		ve.SetStartAt(start)
		ve.SetEndAt(start.Add(opts.EventDuration))
		ve.SetSummary(summary(ev))
		ve.SetDescription(description(ev))
		ve.SetProperty(ical.ComponentPropertyCategories, string(ev.Kind))
	}

	return cal.Serialize(), nil
}

func summary(ev models.Event) string {
	if ev.CourseCode == "" {
		return ev.Title
	}
	return fmt.Sprintf("%s (%s)", ev.Title, ev.CourseCode)
}

func description(ev models.Event) string {
	var parts []string
	if ev.CourseTitle != "" {
		parts = append(parts, ev.CourseTitle)
	}
	parts = append(parts, "Source: "+string(ev.Source))
	if !ev.RegistrationStart.IsZero() {
		parts = append(parts, "Registration opens: "+ev.RegistrationStart.UTC().Format(time.RFC3339))
	}
	if !ev.RegistrationEnd.IsZero() {
		parts = append(parts, "Registration closes: "+ev.RegistrationEnd.UTC().Format(time.RFC3339))
	}
	return strings.Join(parts, "\n")
}
