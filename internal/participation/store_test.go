package participation

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, defaultGroupSize int) (*Store, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "participation")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStore(logger, dir, defaultGroupSize), dir
}

func TestAppendThenHistory(t *testing.T) {
	s, _ := newStore(t, 1)
	at := time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(Record{CourseID: "192.167", SessionLabel: "Exercise 1", RecordedAt: at}))
	rec := Record{CourseID: "192.167", SessionLabel: "Exercise 2", WasCalled: true, GroupSize: 12, RecordedAt: at.Add(time.Hour)}
	require.NoError(t, s.Append(rec))

	h, err := s.History("192.167")
	require.NoError(t, err)
	require.Len(t, h.Records, 2)
	assert.Equal(t, rec, h.Records[len(h.Records)-1])
	assert.Equal(t, "192.167", h.CourseID)
}

func TestHistoryOfUnknownCourseIsEmpty(t *testing.T) {
	s, _ := newStore(t, 1)

	h, err := s.History("nope")
	require.NoError(t, err)
	assert.Equal(t, "nope", h.CourseID)
	assert.Empty(t, h.Records)

	all, err := s.AllHistories()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestGroupSizeDefaults(t *testing.T) {
	s, _ := newStore(t, 8)

	require.NoError(t, s.Append(Record{CourseID: "A", SessionLabel: "1"}))
	require.NoError(t, s.Append(Record{CourseID: "A", SessionLabel: "2", GroupSize: 15}))
	require.NoError(t, s.Append(Record{CourseID: "A", SessionLabel: "3"}))

	h, err := s.History("A")
	require.NoError(t, err)
	require.Len(t, h.Records, 3)
	assert.Equal(t, 8, h.Records[0].GroupSize)
	assert.Equal(t, 15, h.Records[1].GroupSize)
	assert.Equal(t, 15, h.Records[2].GroupSize)
	assert.False(t, h.Records[0].RecordedAt.IsZero())
	assert.Equal(t, 15, h.GroupSize(1))
}

func TestAppendRejectsBadInput(t *testing.T) {
	s, _ := newStore(t, 1)

	assert.Error(t, s.Append(Record{CourseID: "  "}))
	err := s.Append(Record{CourseID: "A", GroupSize: -2})
	assert.True(t, errors.Is(err, ErrInvalidGroupSize))
}

func TestCorruptHistoryIsSurfaced(t *testing.T) {
	s, dir := newStore(t, 1)
	require.NoError(t, s.Append(Record{CourseID: "good", SessionLabel: "1"}))
	require.NoError(t, s.Append(Record{CourseID: "bad", SessionLabel: "1"}))

	badPath := s.path("bad")
	require.NoError(t, os.WriteFile(badPath, []byte("{not json"), 0o600))

	_, err := s.History("bad")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreCorrupt))
	var ce *CorruptError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "bad", ce.CourseID)

	// Appending must not paper over the corruption.
	err = s.Append(Record{CourseID: "bad", SessionLabel: "2"})
	assert.True(t, errors.Is(err, ErrStoreCorrupt))
	data, readErr := os.ReadFile(badPath)
	require.NoError(t, readErr)
	assert.Equal(t, "{not json", string(data))

	all, err := s.AllHistories()
	assert.True(t, errors.Is(err, ErrStoreCorrupt))
	require.Contains(t, all, "good")
	assert.NotContains(t, all, "bad")
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "bad", ce.CourseID)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestAllHistories(t *testing.T) {
	s, dir := newStore(t, 3)
	for _, id := range []string{"192.167", "Analysis/2 (VO)", "104.271"} {
		require.NoError(t, s.Append(Record{CourseID: id, SessionLabel: "Exercise 1", WasCalled: true}))
	}

	all, err := s.AllHistories()
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, 1, all["Analysis/2 (VO)"].Called())

	// No temp files are left behind by the atomic writes.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.Equal(t, ".json", filepath.Ext(e.Name()))
	}
}

func TestStoredFilesArePrivate(t *testing.T) {
	s, _ := newStore(t, 1)
	require.NoError(t, s.Append(Record{CourseID: "A", SessionLabel: "1"}))

	info, err := os.Stat(s.path("A"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
