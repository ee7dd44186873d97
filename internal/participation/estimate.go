package participation

import (
	"errors"
	"fmt"
)

// AdjustmentFactor controls how strongly an under-called student's
// probability is raised above the fair share (and an over-called one's
// lowered below it).
const AdjustmentFactor = 0.5

// ErrInvalidGroupSize is returned for a group size below one.
var ErrInvalidGroupSize = errors.New("group size must be a positive integer")

// Estimate returns the probability of being called in the next session.
//
// The model is a fairness heuristic, not a statistical posterior. With
// base = 1/groupSize and expected = total/groupSize calls so far,
//
//	p = base + AdjustmentFactor * (expected - called) / max(total, 1)
//
// clamped to [0, 1]. An empty history yields exactly base.
func Estimate(h History, groupSize int) (float64, error) {
	if groupSize < 1 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidGroupSize, groupSize)
	}
	return estimate(h.Called(), h.Total(), groupSize), nil
}

func estimate(called, total, groupSize int) float64 {
	base := 1 / float64(groupSize)
	expected := float64(total) / float64(groupSize)
	deficit := expected - float64(called)
	p := base + AdjustmentFactor*deficit/float64(max(total, 1))
	return min(1, max(0, p))
}

// Summary is the breakdown shown by participation-stats.
type Summary struct {
	CourseID  string
	GroupSize int
	Total     int
	Called    int
	Base      float64
	Expected  float64
	Deficit   float64
	Adjusted  float64
	// Recent holds at most the last five sessions, oldest first.
	Recent []Record
}

const recentSessions = 5

// Summarize computes the probability breakdown for h.
func Summarize(h History, groupSize int) (Summary, error) {
	p, err := Estimate(h, groupSize)
	if err != nil {
		return Summary{}, err
	}
	total, called := h.Total(), h.Called()
	expected := float64(total) / float64(groupSize)

	recent := h.Records
	if len(recent) > recentSessions {
		recent = recent[len(recent)-recentSessions:]
	}

	return Summary{
		CourseID:  h.CourseID,
		GroupSize: groupSize,
		Total:     total,
		Called:    called,
		Base:      1 / float64(groupSize),
		Expected:  expected,
		Deficit:   expected - float64(called),
		Adjusted:  p,
		Recent:    append([]Record(nil), recent...),
	}, nil
}
