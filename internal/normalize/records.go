package normalize

import "unitimeline/internal/models"

// Record is a raw record from one of the supported sources. The set is
// closed: AssignmentRecord, CalendarRecord, CheckmarkRecord and ExamRecord.
type Record interface {
	source() models.Source
}

// Timestamps in raw records are strings in one of the forms accepted by
// ParseTime: RFC 3339 (seconds optional), or a local date/date-time
// without offset.

// AssignmentRecord is an LMS assignment.
type AssignmentRecord struct {
	Title       string
	CourseCode  string
	CourseTitle string
	Due         string
	Submitted   bool
}

// CalendarRecord is an LMS calendar entry. Kind defaults to EVENT.
type CalendarRecord struct {
	Title       string
	CourseCode  string
	CourseTitle string
	Start       string
	Kind        models.Kind
}

// CheckmarkRecord is a checkmark exercise set with its completion tally.
type CheckmarkRecord struct {
	Title       string
	CourseCode  string
	CourseTitle string
	Due         string
	Ticked      int
	Total       int
}

// ExamRecord is an exam date from the course catalog.
type ExamRecord struct {
	CourseCode        string
	CourseTitle       string
	Date              string
	Mode              string
	RegistrationStart string
	RegistrationEnd   string
}

func (AssignmentRecord) source() models.Source { return models.SourceAssignment }
func (CalendarRecord) source() models.Source   { return models.SourceCalendar }
func (CheckmarkRecord) source() models.Source  { return models.SourceAssignment }
func (ExamRecord) source() models.Source       { return models.SourceExam }

// Tallies maps course code to the number of ticked checkmark examples,
// summed over all checkmark sets of the course.
func Tallies(checkmarks []CheckmarkRecord) map[string]int {
	out := make(map[string]int, len(checkmarks))
	for _, cm := range checkmarks {
		out[cm.CourseCode] += cm.Ticked
	}
	return out
}

// CourseRecord is an LMS course the user is enrolled in.
type CourseRecord struct {
	ID        int64
	ShortName string
	FullName  string
}

// Code is the timeline course code of the course.
func (c CourseRecord) Code() string { return CourseCode(c.ShortName) }

// Number is the catalog course number, or "" when the short name has none.
func (c CourseRecord) Number() string { return CourseNumber(c.ShortName) }
