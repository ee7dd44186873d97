package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"unitimeline/internal/models"
)

// ErrMalformedRecord is returned when a required field is missing or unparsable.
var ErrMalformedRecord = errors.New("malformed record")

// MalformedRecordError describes which field of which record was rejected.
type MalformedRecordError struct {
	Source models.Source
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed %s record: %s %s", strings.ToLower(string(e.Source)), e.Field, e.Reason)
}

func (e *MalformedRecordError) Unwrap() error { return ErrMalformedRecord }

// Normalizer maps raw records to events. Loc is the zone used for
// timestamps that carry no offset; nil means Europe/Vienna.
type Normalizer struct {
	Loc *time.Location
}

// New returns a Normalizer reading naive timestamps in loc.
func New(loc *time.Location) Normalizer {
	return Normalizer{Loc: loc}
}

func (n Normalizer) location() *time.Location {
	if n.Loc == nil {
		return models.Vienna()
	}
	return n.Loc
}

// Normalize produces exactly one Event for r, or a *MalformedRecordError.
func (n Normalizer) Normalize(r Record) (models.Event, error) {
	switch rec := r.(type) {
	case AssignmentRecord:
		return n.Assignment(rec)
	case CalendarRecord:
		return n.Calendar(rec)
	case CheckmarkRecord:
		return n.Checkmark(rec)
	case ExamRecord:
		return n.Exam(rec)
	default:
		return models.Event{}, fmt.Errorf("unsupported record type %T", r)
	}
}

// Batch is the outcome of normalizing many records: the events that were
// produced and the errors for the records that were skipped.
type Batch struct {
	Events  []models.Event
	Skipped []error
}

// All normalizes every record, skipping the malformed ones.
func (n Normalizer) All(records []Record) Batch {
	var b Batch
	for _, r := range records {
		ev, err := n.Normalize(r)
		if err != nil {
			b.Skipped = append(b.Skipped, err)
			continue
		}
		b.Events = append(b.Events, ev)
	}
	return b
}

func (n Normalizer) Assignment(r AssignmentRecord) (models.Event, error) {
	return n.build(models.SourceAssignment, models.KindAssignment, r.Title, r.Due, r.CourseCode, r.CourseTitle)
}

func (n Normalizer) Calendar(r CalendarRecord) (models.Event, error) {
	kind := r.Kind
	if kind == "" {
		kind = models.KindEvent
	}
	return n.build(models.SourceCalendar, kind, r.Title, r.Start, r.CourseCode, r.CourseTitle)
}

func (n Normalizer) Checkmark(r CheckmarkRecord) (models.Event, error) {
	return n.build(models.SourceAssignment, models.KindAssignment, r.Title, r.Due, r.CourseCode, r.CourseTitle)
}

// Exam titles are derived from the exam mode, so only the date is required.
func (n Normalizer) Exam(r ExamRecord) (models.Event, error) {
	title := "Exam"
	if mode := strings.TrimSpace(r.Mode); mode != "" {
		title = fmt.Sprintf("Exam (%s)", mode)
	}
	ev, err := n.build(models.SourceExam, models.KindExam, title, r.Date, r.CourseCode, r.CourseTitle)
	if err != nil {
		return ev, err
	}

	// The registration window is optional; an unreadable bound is dropped.
	if t, err := ParseTime(r.RegistrationStart, n.location()); err == nil {
		ev.RegistrationStart = t
	}
	if t, err := ParseTime(r.RegistrationEnd, n.location()); err == nil {
		ev.RegistrationEnd = t
	}
	return ev, nil
}

func (n Normalizer) build(src models.Source, kind models.Kind, title, due, courseCode, courseTitle string) (models.Event, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Event{}, &MalformedRecordError{Source: src, Field: "title", Reason: "is empty"}
	}
	if strings.TrimSpace(due) == "" {
		return models.Event{}, &MalformedRecordError{Source: src, Field: "due", Reason: "is empty"}
	}
	dueAt, err := ParseTime(due, n.location())
	if err != nil {
		return models.Event{}, &MalformedRecordError{Source: src, Field: "due", Reason: err.Error()}
	}

	ev := models.Event{
		Title:       title,
		CourseCode:  strings.TrimSpace(courseCode),
		CourseTitle: strings.TrimSpace(courseTitle),
		DueAt:       dueAt,
		Source:      src,
		Kind:        kind,
	}
	return ev.WithIdentity(), nil
}

// offsetLayouts carry their own zone and are tried before localLayouts.
var offsetLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime parses a raw timestamp. Values with an offset keep it; values
// without one are read in loc. Bare numbers are rejected, so a compact
// date such as "20250310" is never mistaken for Unix seconds.
func ParseTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", v)
}

var (
	dottedNumber = regexp.MustCompile(`(\d{3})\.(\d{3})`)
	plainNumber  = regexp.MustCompile(`\b(\d{6})\b`)
)

// CourseNumber extracts a catalog course number ("192.167") from an LMS
// short name such as "VU 192.167 - Maths" or "192167-2024W". It returns ""
// when the short name carries none.
func CourseNumber(shortName string) string {
	if m := dottedNumber.FindStringSubmatch(shortName); m != nil {
		return m[1] + "." + m[2]
	}
	if m := plainNumber.FindStringSubmatch(shortName); m != nil {
		return m[1][:3] + "." + m[1][3:]
	}
	return ""
}

// CourseCode is the course code used on the timeline: the catalog number
// when the short name carries one, the short name otherwise.
func CourseCode(shortName string) string {
	if n := CourseNumber(shortName); n != "" {
		return n
	}
	return strings.TrimSpace(shortName)
}
