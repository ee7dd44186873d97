package tiss

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(slog.New(slog.NewTextHandler(io.Discard, nil)), server.URL+"/api", time.Second)
}

func TestExamDates(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/course/192167/examDates", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[
			{"date":"2025-03-09T09:00:00","mode":"written","registrationStart":"2025-02-20T00:00:00","registrationEnd":"2025-03-05T23:59:00"},
			{"date":"2025-06-30T14:00:00","mode":"oral"}
		]`)
	})

	got, err := c.ExamDates(context.Background(), "192.167")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "192.167", got[0].CourseCode)
	assert.Equal(t, "2025-03-09T09:00:00", got[0].Date)
	assert.Equal(t, "written", got[0].Mode)
	assert.Equal(t, "2025-02-20T00:00:00", got[0].RegistrationStart)
	assert.Empty(t, got[1].RegistrationStart)
}

func TestExamDatesEmptyBody(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {})

	got, err := c.ExamDates(context.Background(), "192167")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExamDatesErrors(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})

	_, err := c.ExamDates(context.Background(), "192.167")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")

	_, err = c.ExamDates(context.Background(), " ")
	assert.Error(t, err)
}

func TestExamDatesBadJSON(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"error":"not a list"}`)
	})

	_, err := c.ExamDates(context.Background(), "192.167")
	assert.ErrorContains(t, err, "decode response")
}
