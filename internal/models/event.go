package models

import (
	"strings"
	"time"
	_ "time/tzdata" // Europe/Vienna must resolve on hosts without a zoneinfo database.
)

// InstitutionZone is the zone in which timestamps without an explicit offset are read.
const InstitutionZone = "Europe/Vienna"

// Source is the system an Event was fetched from.
type Source string

const (
	SourceAssignment Source = "ASSIGNMENT"
	SourceCalendar   Source = "CALENDAR"
	SourceExam       Source = "EXAM"
)

// Priority orders sources when two events describe the same occurrence.
// Higher wins.
func (s Source) Priority() int {
	switch s {
	case SourceExam:
		return 3
	case SourceAssignment:
		return 2
	case SourceCalendar:
		return 1
	default:
		return 0
	}
}

// Kind is the category of an Event, independent of where it came from.
type Kind string

const (
	KindAssignment Kind = "ASSIGNMENT"
	KindEvent      Kind = "EVENT"
	KindExam       Kind = "EXAM"
)

// Urgency buckets an Event by how close it is to a reference time.
type Urgency string

const (
	UrgencyOverdue  Urgency = "OVERDUE"
	UrgencyToday    Urgency = "TODAY"
	UrgencySoon     Urgency = "SOON"
	UrgencyThisWeek Urgency = "THIS_WEEK"
	UrgencyLater    Urgency = "LATER"
)

// Event represents one deadline-like occurrence on the timeline.
// This is an internal representation, independent of the LMS or catalog payloads.
type Event struct {
	Title       string    // Display text
	CourseCode  string    // Catalog course number or LMS short name; empty for non-course events
	CourseTitle string    // Full course name; may be empty
	DueAt       time.Time // When the occurrence becomes irrelevant or overdue
	Source      Source
	Kind        Kind

	// RegistrationStart / RegistrationEnd bound the exam registration
	// window. Zero when the source did not provide one.
	RegistrationStart time.Time
	RegistrationEnd   time.Time

	// IdentityKey is derived from immutable fields only; see IdentityKey.
	IdentityKey string
}

// IdentityKey derives the deduplication key for an occurrence. The source
// is deliberately not part of the key: a calendar mirror of an exam must
// collide with the exam itself.
func IdentityKey(courseCode, title string, dueAt time.Time) string {
	var b strings.Builder
	b.WriteString("v1|")
	b.WriteString(strings.ToLower(strings.TrimSpace(courseCode)))
	b.WriteByte('|')
	b.WriteString(strings.Join(strings.Fields(title), " "))
	b.WriteByte('|')
	b.WriteString(dueAt.UTC().Format(time.RFC3339))
	return b.String()
}

// WithIdentity returns a copy of e with IdentityKey filled in from its fields.
func (e Event) WithIdentity() Event {
	e.IdentityKey = IdentityKey(e.CourseCode, e.Title, e.DueAt)
	return e
}

// Vienna returns the institution's zone.
func Vienna() *time.Location {
	loc, err := time.LoadLocation(InstitutionZone)
	if err != nil {
		// tzdata is embedded, so this only happens if the zone name is wrong.
		panic(err)
	}
	return loc
}
