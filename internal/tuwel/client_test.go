package tuwel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unitimeline/internal/models"
	"unitimeline/internal/normalize"
)

func newTestServer(t *testing.T, responses map[string]string) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, restPath, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "secret", r.PostForm.Get("wstoken"))
		assert.Equal(t, "json", r.PostForm.Get("moodlewsrestformat"))

		body, ok := responses[r.PostForm.Get("wsfunction")]
		if !ok {
			http.Error(w, "unknown function", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(logger, server.URL, "secret", time.Second)
}

func TestCourses(t *testing.T) {
	c := newTestServer(t, map[string]string{
		"core_course_get_enrolled_courses_by_timeline_classification": `{"courses":[{"id":7,"shortname":"VU 192.167 - Maths","fullname":"Mathematics"}]}`,
	})

	courses, err := c.Courses(context.Background())
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, int64(7), courses[0].ID)
	assert.Equal(t, "192.167", courses[0].Code())
}

func TestAssignments(t *testing.T) {
	c := newTestServer(t, map[string]string{
		"mod_assign_get_assignments": `{"courses":[{"id":7,"shortname":"192167-2024W","fullname":"Mathematics","assignments":[
			{"name":"HW1","duedate":1741647540},
			{"name":"Draft","duedate":0}
		]}]}`,
	})

	got, err := c.Assignments(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, normalize.AssignmentRecord{Title: "HW1", CourseCode: "192.167", CourseTitle: "Mathematics", Due: "2025-03-10T22:59:00Z"}, got[0])
	assert.Empty(t, got[1].Due)
}

func TestCalendarEvents(t *testing.T) {
	c := newTestServer(t, map[string]string{
		"core_calendar_get_calendar_upcoming_view": `{"events":[
			{"name":"HW1 is due","timestart":1741647540,"eventtype":"due","course":{"id":7,"shortname":"192.167","fullname":"Mathematics"}},
			{"name":"Holiday","timestart":1741647000,"eventtype":"site"}
		]}`,
	})

	got, err := c.CalendarEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.KindAssignment, got[0].Kind)
	assert.Equal(t, "192.167", got[0].CourseCode)
	assert.Equal(t, "2025-03-10T22:59:00Z", got[0].Start)
	assert.Equal(t, models.KindEvent, got[1].Kind)
	assert.Empty(t, got[1].CourseCode)
}

func TestCheckmarks(t *testing.T) {
	c := newTestServer(t, map[string]string{
		"mod_checkmark_get_checkmarks_by_courses": `{"checkmarks":[
			{"name":"Übung 1","course":7,"duedate":1741647540,"examples":[{"checked":true},{"checked":false},{"checked":true}]},
			{"name":"Übung X","course":9,"duedate":1741647540,"examples":[]}
		]}`,
	})

	got, err := c.Checkmarks(context.Background(), []normalize.CourseRecord{{ID: 7, ShortName: "192.167", FullName: "Mathematics"}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].Ticked)
	assert.Equal(t, 3, got[0].Total)
	assert.Equal(t, "192.167", got[0].CourseCode)
	assert.Equal(t, "9", got[1].CourseCode)
}

func TestMoodleException(t *testing.T) {
	c := newTestServer(t, map[string]string{
		"mod_assign_get_assignments": `{"exception":"moodle_exception","errorcode":"invalidtoken","message":"Invalid token"}`,
	})

	_, err := c.Assignments(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "invalidtoken", apiErr.ErrorCode)
}

func TestHTTPError(t *testing.T) {
	c := newTestServer(t, map[string]string{})

	_, err := c.CalendarEvents(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
