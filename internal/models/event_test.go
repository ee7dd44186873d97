package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIdentityKeyIsStable(t *testing.T) {
	due := time.Date(2025, 3, 10, 23, 59, 0, 0, Vienna())

	a := IdentityKey("192.167", "HW1", due)
	b := IdentityKey("192.167", "HW1", due)
	assert.Equal(t, a, b)
	assert.Equal(t, "v1|192.167|HW1|2025-03-10T22:59:00Z", a)
}

func TestIdentityKeyNormalizesFields(t *testing.T) {
	due := time.Date(2025, 3, 10, 23, 59, 0, 0, Vienna())

	assert.Equal(t,
		IdentityKey("VU 192.167", "Exam   (written)", due),
		IdentityKey("  vu 192.167 ", " Exam (written) ", due.UTC()),
	)
	assert.NotEqual(t,
		IdentityKey("192.167", "HW1", due),
		IdentityKey("192.167", "HW2", due),
	)
}

func TestWithIdentity(t *testing.T) {
	e := Event{Title: "HW1", CourseCode: "192.167", DueAt: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}.WithIdentity()
	assert.Equal(t, IdentityKey("192.167", "HW1", e.DueAt), e.IdentityKey)
}

func TestSourcePriority(t *testing.T) {
	assert.Greater(t, SourceExam.Priority(), SourceAssignment.Priority())
	assert.Greater(t, SourceAssignment.Priority(), SourceCalendar.Priority())
	assert.Zero(t, Source("OTHER").Priority())
}
