package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unitimeline/internal/participation"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(append([]string{"unitimeline"}, args...))
	return out.String(), err
}

func TestTrackAndStats(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.yaml")

	out, err := run(t, "--config", cfg, "track-participation", "--was-called", "--group-size", "4", "192.167", "Week 1")
	require.NoError(t, err)
	assert.Equal(t, "Recorded Week 1 for 192.167 (called). 1 sessions tracked.\n", out)

	out, err = run(t, "--config", cfg, "track-participation", "192.167", "Week 2")
	require.NoError(t, err)
	assert.Contains(t, out, "(not called). 2 sessions tracked.")

	out, err = run(t, "--config", cfg, "participation-stats")
	require.NoError(t, err)
	assert.Contains(t, out, "192.167\n")
	assert.Contains(t, out, "sessions: 2, called: 1, group size: 4")
	// base 0.25, deficit 0.5-1 = -0.5, p = 0.25 + 0.5*(-0.5)/2 = 0.125
	assert.Contains(t, out, "chance of being called next: 12.5%")
	assert.Contains(t, out, "[x] Week 1")
	assert.Contains(t, out, "[ ] Week 2")
}

func TestTrackRejectsNonPositiveGroupSize(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.yaml")

	for _, size := range []string{"0", "-3"} {
		_, err := run(t, "--config", cfg, "track-participation", "--group-size", size, "192.167", "Week 1")
		require.Error(t, err, size)
		assert.ErrorIs(t, err, participation.ErrInvalidGroupSize)
	}

	out, err := run(t, "--config", cfg, "participation-stats", "--course-id", "192.167")
	require.NoError(t, err)
	assert.Contains(t, out, "No participation data yet.")
}

func TestStatsWithoutData(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.yaml")

	out, err := run(t, "--config", cfg, "participation-stats", "--course-id", "nothing")
	require.NoError(t, err)
	assert.Contains(t, out, "No participation data yet.")
}

func TestTrackRequiresArgs(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.yaml")

	_, err := run(t, "--config", cfg, "track-participation", "192.167")
	assert.Error(t, err)
}

func TestTimelineRequiresToken(t *testing.T) {
	t.Setenv("TUWEL_TOKEN", "")
	cfg := filepath.Join(t.TempDir(), "config.yaml")

	_, err := run(t, "--config", cfg, "timeline")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no LMS token configured")
}

func TestRelative(t *testing.T) {
	now := time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "in 2h 30m", relative(now.Add(150*time.Minute), now))
	assert.Equal(t, "tomorrow", relative(now.Add(30*time.Hour), now))
	assert.Equal(t, "in 3 days", relative(now.Add(80*time.Hour), now))
	assert.Equal(t, "1h 0m ago", relative(now.Add(-time.Hour), now))
	assert.Equal(t, "2 days ago", relative(now.Add(-50*time.Hour), now))
}

func TestCourseLabel(t *testing.T) {
	assert.Equal(t, "192.167 Maths", courseLabel("192.167", "Maths"))
	assert.Equal(t, "192.167", courseLabel("192.167", ""))
	assert.Equal(t, "Maths", courseLabel("", "Maths"))
	assert.Equal(t, "-", courseLabel("", ""))
}
