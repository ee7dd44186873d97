package timeline

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"unitimeline/internal/models"
)

const (
	day  = 24 * time.Hour
	week = 7 * day
)

// Entry is an Event annotated with its urgency relative to a reference time.
type Entry struct {
	models.Event
	Urgency models.Urgency
}

// Merge combines the given event lists into one ordered timeline.
//
//   - Events sharing an identity key collapse into one; the higher source
//     priority (EXAM > ASSIGNMENT > CALENDAR) wins, ties keep the first seen.
//   - The result is sorted by due time, then title, then course code, then
//     identity key.
//   - Every entry is classified against now.
//
// Merge never reads the clock; identical inputs give identical output.
func Merge(now time.Time, lists ...[]models.Event) []Entry {
	chosen := make(map[string]int)
	events := make([]models.Event, 0)

	for _, list := range lists {
		for _, ev := range list {
			if ev.IdentityKey == "" {
				ev = ev.WithIdentity()
			}
			if i, ok := chosen[ev.IdentityKey]; ok {
				if ev.Source.Priority() > events[i].Source.Priority() {
					events[i] = ev
				}
				continue
			}
			chosen[ev.IdentityKey] = len(events)
			events = append(events, ev)
		}
	}

	slices.SortStableFunc(events, compare)

	out := make([]Entry, 0, len(events))
	for _, ev := range events {
		out = append(out, Entry{Event: ev, Urgency: Classify(ev.DueAt, now)})
	}
	return out
}

func compare(a, b models.Event) int {
	if c := a.DueAt.Compare(b.DueAt); c != 0 {
		return c
	}
	if c := strings.Compare(a.Title, b.Title); c != 0 {
		return c
	}
	if c := strings.Compare(a.CourseCode, b.CourseCode); c != 0 {
		return c
	}
	return cmp.Compare(a.IdentityKey, b.IdentityKey)
}

// Classify buckets due relative to now. "Today" is the calendar date of
// now in now's location.
func Classify(due, now time.Time) models.Urgency {
	switch {
	case due.Before(now):
		return models.UrgencyOverdue
	case sameDay(due.In(now.Location()), now):
		return models.UrgencyToday
	case due.Sub(now) <= day:
		return models.UrgencySoon
	case due.Sub(now) <= week:
		return models.UrgencyThisWeek
	default:
		return models.UrgencyLater
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Events strips the urgency annotation.
func Events(entries []Entry) []models.Event {
	out := make([]models.Event, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Event)
	}
	return out
}
