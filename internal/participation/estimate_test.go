package participation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func history(called, total int) History {
	h := History{CourseID: "192.167"}
	for i := 0; i < total; i++ {
		h.Records = append(h.Records, Record{
			CourseID:     "192.167",
			SessionLabel: fmt.Sprintf("Exercise %d", i+1),
			WasCalled:    i < called,
		})
	}
	return h
}

func TestEstimateScenario(t *testing.T) {
	p, err := Estimate(history(0, 4), 10)
	require.NoError(t, err)
	assert.InDelta(t, 0.15, p, 1e-12)
}

func TestEstimateEmptyHistoryIsFair(t *testing.T) {
	for _, n := range []int{1, 2, 3, 10, 25} {
		p, err := Estimate(History{}, n)
		require.NoError(t, err)
		assert.InDelta(t, 1/float64(n), p, 1e-12)
	}
}

func TestEstimateInvalidGroupSize(t *testing.T) {
	for _, n := range []int{0, -1} {
		_, err := Estimate(history(1, 3), n)
		assert.True(t, errors.Is(err, ErrInvalidGroupSize))
	}
}

func TestEstimateBounds(t *testing.T) {
	for total := 0; total <= 12; total++ {
		for called := 0; called <= total; called++ {
			for _, n := range []int{1, 2, 3, 5, 8, 30} {
				p, err := Estimate(history(called, total), n)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, p, 0.0)
				assert.LessOrEqual(t, p, 1.0)
			}
		}
	}
}

func TestEstimateMonotonicInCalls(t *testing.T) {
	for _, n := range []int{1, 2, 4, 10} {
		for total := 1; total <= 10; total++ {
			prev := -1.0
			for called := total; called >= 0; called-- {
				p, err := Estimate(history(called, total), n)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, p, prev, "n=%d total=%d called=%d", n, total, called)
				prev = p
			}
		}
	}
}

func TestEstimateOverCalledDropsBelowFair(t *testing.T) {
	p, err := Estimate(history(3, 4), 4)
	require.NoError(t, err)
	// base 0.25, expected 1, deficit -2, adjustment -0.25
	assert.InDelta(t, 0.0, p, 1e-12)
}

func TestSummarize(t *testing.T) {
	s, err := Summarize(history(1, 7), 5)
	require.NoError(t, err)

	assert.Equal(t, 7, s.Total)
	assert.Equal(t, 1, s.Called)
	assert.InDelta(t, 0.2, s.Base, 1e-12)
	assert.InDelta(t, 1.4, s.Expected, 1e-12)
	assert.InDelta(t, 0.4, s.Deficit, 1e-12)
	assert.InDelta(t, 0.2+0.5*0.4/7, s.Adjusted, 1e-12)
	require.Len(t, s.Recent, 5)
	assert.Equal(t, "Exercise 3", s.Recent[0].SessionLabel)
	assert.Equal(t, "Exercise 7", s.Recent[4].SessionLabel)

	_, err = Summarize(History{}, 0)
	assert.True(t, errors.Is(err, ErrInvalidGroupSize))
}
