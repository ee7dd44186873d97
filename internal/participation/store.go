package participation

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrStoreCorrupt is returned when a persisted history cannot be parsed.
var ErrStoreCorrupt = errors.New("participation store is corrupt")

// CorruptError names the course whose history could not be read.
type CorruptError struct {
	CourseID string
	Path     string
	Err      error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("participation history for %q at %s is unreadable: %v", e.CourseID, e.Path, e.Err)
}

func (e *CorruptError) Unwrap() []error { return []error{ErrStoreCorrupt, e.Err} }

// Record is one exercise session outcome.
type Record struct {
	CourseID     string    `json:"course_id"`
	SessionLabel string    `json:"session_label"`
	WasCalled    bool      `json:"was_called"`
	GroupSize    int       `json:"group_size"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// History is the ordered, append-only session log of one course.
type History struct {
	CourseID string   `json:"course_id"`
	Records  []Record `json:"records"`
}

func (h History) Total() int { return len(h.Records) }

func (h History) Called() int {
	n := 0
	for _, r := range h.Records {
		if r.WasCalled {
			n++
		}
	}
	return n
}

// GroupSize returns the most recently recorded group size, or fallback
// when no record carries one.
func (h History) GroupSize(fallback int) int {
	for i := len(h.Records) - 1; i >= 0; i-- {
		if h.Records[i].GroupSize > 0 {
			return h.Records[i].GroupSize
		}
	}
	return fallback
}

const fileExt = ".json"

// Store keeps one JSON document per course under dir. It assumes exclusive
// access for the duration of one command.
type Store struct {
	dir              string
	defaultGroupSize int
	logger           *slog.Logger
}

// NewStore creates a Store rooted at dir. defaultGroupSize applies to
// records that name no group size in a course without history; values
// below one are treated as one.
func NewStore(logger *slog.Logger, dir string, defaultGroupSize int) *Store {
	return &Store{dir: dir, defaultGroupSize: max(defaultGroupSize, 1), logger: logger}
}

// Append adds rec to its course's history. A zero GroupSize is resolved
// from the history or the default; a zero RecordedAt is set to now. The
// file is replaced atomically, so a crash leaves the previous history intact.
func (s *Store) Append(rec Record) error {
	rec.CourseID = strings.TrimSpace(rec.CourseID)
	if rec.CourseID == "" {
		return errors.New("course id is empty")
	}
	if rec.GroupSize < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidGroupSize, rec.GroupSize)
	}

	h, err := s.History(rec.CourseID)
	if err != nil {
		return err
	}

	if rec.GroupSize == 0 {
		rec.GroupSize = h.GroupSize(s.defaultGroupSize)
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now()
	}
	rec.RecordedAt = rec.RecordedAt.UTC()

	h.Records = append(h.Records, rec)
	if err := s.write(h); err != nil {
		return fmt.Errorf("failed to save participation history: %w", err)
	}

	s.logger.Debug("Recorded participation.", "course", rec.CourseID, "session", rec.SessionLabel, "called", rec.WasCalled)
	return nil
}

// History returns the history of courseID. A course that was never
// recorded has an empty history.
func (s *Store) History(courseID string) (History, error) {
	courseID = strings.TrimSpace(courseID)
	path := s.path(courseID)

	h, err := readHistory(path)
	if errors.Is(err, fs.ErrNotExist) {
		return History{CourseID: courseID}, nil
	}
	if err != nil {
		var ce *CorruptError
		if errors.As(err, &ce) {
			ce.CourseID = courseID
		}
		return History{}, err
	}
	return h, nil
}

// AllHistories returns every readable history keyed by course id. Corrupt
// files are reported in the returned error, never dropped silently; the
// map still holds the courses that could be read.
func (s *Store) AllHistories() (map[string]History, error) {
	out := make(map[string]History)

	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list participation store: %w", err)
	}

	var errs []error
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
			continue
		}
		path := filepath.Join(s.dir, name)
		h, err := readHistory(path)
		if err != nil {
			var ce *CorruptError
			if errors.As(err, &ce) {
				ce.CourseID = courseIDFromFile(name)
			}
			errs = append(errs, err)
			continue
		}
		out[h.CourseID] = h
	}
	return out, errors.Join(errs...)
}

func (s *Store) path(courseID string) string {
	return filepath.Join(s.dir, base64.RawURLEncoding.EncodeToString([]byte(courseID))+fileExt)
}

func courseIDFromFile(name string) string {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimSuffix(name, fileExt))
	if err != nil {
		return name
	}
	return string(b)
}

func readHistory(path string) (History, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return History{}, err
	}
	var h History
	if err := json.Unmarshal(data, &h); err != nil {
		return History{}, &CorruptError{Path: path, Err: err}
	}
	if h.CourseID == "" {
		return History{}, &CorruptError{Path: path, Err: errors.New("missing course_id")}
	}
	return h, nil
}

// write replaces the course file via a temp file in the same directory.
func (s *Store) write(h History) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".participation-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path(h.CourseID))
}
