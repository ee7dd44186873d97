package timeline

import (
	"slices"
	"time"

	"unitimeline/internal/models"
)

// Alert windows for exam registrations, in calendar days relative to today.
const (
	RegistrationAlertDaysBefore = 14
	RegistrationAlertDaysAfter  = 7
)

// UrgentUnaddressed returns the entries that are due today or already
// overdue while their course has a completion count of zero. Courses
// missing from ticks carry no completion signal and are never flagged.
func UrgentUnaddressed(entries []Entry, ticks map[string]int) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.Urgency != models.UrgencyOverdue && e.Urgency != models.UrgencyToday {
			continue
		}
		n, ok := ticks[e.CourseCode]
		if !ok || n != 0 {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Weekly returns the entries due within the next seven days, inclusive.
func Weekly(entries []Entry, now time.Time) []Entry {
	limit := now.Add(week)
	var out []Entry
	for _, e := range entries {
		if e.DueAt.Before(now) || e.DueAt.After(limit) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// RegistrationAlert is an exam whose registration opens soon or opened recently.
type RegistrationAlert struct {
	Entry
	// DaysToRegistration is negative once registration has opened.
	DaysToRegistration int
}

// RegistrationAlerts lists exams whose registration start lies between
// RegistrationAlertDaysAfter days ago and RegistrationAlertDaysBefore days
// ahead, soonest first.
func RegistrationAlerts(entries []Entry, now time.Time) []RegistrationAlert {
	var out []RegistrationAlert
	for _, e := range entries {
		if e.Kind != models.KindExam || e.RegistrationStart.IsZero() {
			continue
		}
		days := daysBetween(now, e.RegistrationStart)
		if days < -RegistrationAlertDaysAfter || days > RegistrationAlertDaysBefore {
			continue
		}
		out = append(out, RegistrationAlert{Entry: e, DaysToRegistration: days})
	}
	slices.SortStableFunc(out, func(a, b RegistrationAlert) int {
		return a.RegistrationStart.Compare(b.RegistrationStart)
	})
	return out
}

// daysBetween counts calendar days from now's date to t's date in now's zone.
func daysBetween(now, t time.Time) int {
	loc := now.Location()
	y, m, d := now.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	y, m, d = t.In(loc).Date()
	to := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from) / day)
}
