package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"unitimeline/internal/models"
	"unitimeline/internal/normalize"
	"unitimeline/internal/timeline"
)

// maxConcurrentFetches caps in-flight requests per invocation.
const maxConcurrentFetches = 6

// LMS supplies the learning-platform records.
type LMS interface {
	Courses(ctx context.Context) ([]normalize.CourseRecord, error)
	Assignments(ctx context.Context) ([]normalize.AssignmentRecord, error)
	CalendarEvents(ctx context.Context) ([]normalize.CalendarRecord, error)
	Checkmarks(ctx context.Context, courses []normalize.CourseRecord) ([]normalize.CheckmarkRecord, error)
}

// Catalog supplies exam dates per catalog course number.
type Catalog interface {
	ExamDates(ctx context.Context, courseNumber string) ([]normalize.ExamRecord, error)
}

// SourceFailure records a fetch that did not contribute to the snapshot.
type SourceFailure struct {
	Source string
	Err    error
}

func (f SourceFailure) Error() string { return fmt.Sprintf("%s: %v", f.Source, f.Err) }

func (f SourceFailure) Unwrap() error { return f.Err }

// Snapshot is the merged, point-in-time view produced by one Fetch.
type Snapshot struct {
	Entries []timeline.Entry
	// Ticks maps course code to ticked checkmark examples.
	Ticks map[string]int
	// Skipped holds one error per malformed record left out of Entries.
	Skipped  []error
	Failures []SourceFailure
}

// Incomplete reports whether any source failed.
func (s Snapshot) Incomplete() bool { return len(s.Failures) > 0 }

// Aggregator orchestrates fetching from all sources and merging the result.
type Aggregator struct {
	logger     *slog.Logger
	lms        LMS
	catalog    Catalog
	normalizer normalize.Normalizer
}

// New creates an Aggregator. catalog may be nil, in which case no exam
// dates are fetched.
func New(logger *slog.Logger, lms LMS, catalog Catalog, n normalize.Normalizer) *Aggregator {
	return &Aggregator{logger: logger, lms: lms, catalog: catalog, normalizer: n}
}

// fetched holds the raw records of one invocation. Exam records are kept
// per course, in course order, so that the merge input is deterministic.
type fetched struct {
	mu          sync.Mutex
	assignments []normalize.AssignmentRecord
	calendar    []normalize.CalendarRecord
	checkmarks  []normalize.CheckmarkRecord
	exams       [][]normalize.ExamRecord
	attempted   int
	failures    []SourceFailure
}

func (f *fetched) fail(source string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, SourceFailure{Source: source, Err: err})
}

// Fetch performs one fetch, normalize and merge cycle. It only returns an
// error when every source failed; otherwise failures are reported on the
// snapshot and the timeline is built from what succeeded.
func (a *Aggregator) Fetch(ctx context.Context, now time.Time) (Snapshot, error) {
	a.logger.Info("Starting fetch cycle.")
	f := &fetched{}

	f.attempted++
	courses, err := a.lms.Courses(ctx)
	if err != nil {
		a.logger.Error("Could not fetch courses", "error", err)
		f.fail("courses", err)
	}

	var g errgroup.Group
	g.SetLimit(maxConcurrentFetches)

	f.attempted += 3
	g.Go(func() error {
		recs, err := a.lms.Assignments(ctx)
		if err != nil {
			a.logger.Error("Could not fetch assignments", "error", err)
			f.fail("assignments", err)
			return nil
		}
		f.assignments = recs
		return nil
	})
	g.Go(func() error {
		recs, err := a.lms.CalendarEvents(ctx)
		if err != nil {
			a.logger.Error("Could not fetch calendar events", "error", err)
			f.fail("calendar", err)
			return nil
		}
		f.calendar = recs
		return nil
	})
	g.Go(func() error {
		recs, err := a.lms.Checkmarks(ctx, courses)
		if err != nil {
			a.logger.Error("Could not fetch checkmarks", "error", err)
			f.fail("checkmarks", err)
			return nil
		}
		f.checkmarks = recs
		return nil
	})

	if a.catalog != nil {
		f.exams = make([][]normalize.ExamRecord, len(courses))
		seen := make(map[string]bool)
		for i, crs := range courses {
			number := crs.Number()
			if number == "" || seen[number] {
				continue
			}
			seen[number] = true
			f.attempted++
			i, crs := i, crs
			g.Go(func() error {
				recs, err := a.catalog.ExamDates(ctx, number)
				if err != nil {
					a.logger.Error("Could not fetch exam dates", "course", number, "error", err)
					f.fail("exams "+number, err)
					return nil
				}
				for j := range recs {
					recs[j].CourseCode = crs.Code()
					recs[j].CourseTitle = crs.FullName
				}
				f.exams[i] = recs
				return nil
			})
		}
	}

	// Nothing is merged before every fetch of this invocation has finished.
	_ = g.Wait()
	slices.SortFunc(f.failures, func(x, y SourceFailure) int { return strings.Compare(x.Source, y.Source) })

	if len(f.failures) == f.attempted {
		errs := make([]error, 0, len(f.failures))
		for _, fl := range f.failures {
			errs = append(errs, fl)
		}
		return Snapshot{}, fmt.Errorf("all sources failed: %w", errors.Join(errs...))
	}

	snap := a.build(f, now)
	a.logger.Info("Fetch cycle finished.", "entries", len(snap.Entries), "skipped", len(snap.Skipped), "failed_sources", len(snap.Failures))
	return snap, nil
}

func (a *Aggregator) build(f *fetched, now time.Time) Snapshot {
	var skipped []error
	collect := func(records []normalize.Record) []models.Event {
		b := a.normalizer.All(records)
		for _, err := range b.Skipped {
			a.logger.Debug("Skipping malformed record", "error", err)
		}
		skipped = append(skipped, b.Skipped...)
		return b.Events
	}

	assignments := collect(asRecords(f.assignments))
	checkmarks := collect(asRecords(f.checkmarks))
	calendar := collect(asRecords(f.calendar))
	var exams []normalize.Record
	for _, recs := range f.exams {
		exams = append(exams, asRecords(recs)...)
	}
	examEvents := collect(exams)

	return Snapshot{
		Entries:  timeline.Merge(now, examEvents, assignments, checkmarks, calendar),
		Ticks:    normalize.Tallies(f.checkmarks),
		Skipped:  skipped,
		Failures: f.failures,
	}
}

func asRecords[T normalize.Record](in []T) []normalize.Record {
	out := make([]normalize.Record, 0, len(in))
	for _, r := range in {
		out = append(out, r)
	}
	return out
}
