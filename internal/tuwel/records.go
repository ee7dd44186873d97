package tuwel

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"unitimeline/internal/models"
	"unitimeline/internal/normalize"
)

type course struct {
	ID        int64  `json:"id"`
	ShortName string `json:"shortname"`
	FullName  string `json:"fullname"`
}

func (c course) record() normalize.CourseRecord {
	return normalize.CourseRecord{ID: c.ID, ShortName: c.ShortName, FullName: c.FullName}
}

// Courses fetches the courses currently in progress.
func (c *Client) Courses(ctx context.Context) ([]normalize.CourseRecord, error) {
	var resp struct {
		Courses []course `json:"courses"`
	}
	params := url.Values{"classification": {"inprogress"}, "sort": {"fullname"}}
	if err := c.call(ctx, "core_course_get_enrolled_courses_by_timeline_classification", params, &resp); err != nil {
		return nil, err
	}

	out := make([]normalize.CourseRecord, 0, len(resp.Courses))
	for _, crs := range resp.Courses {
		out = append(out, crs.record())
	}
	c.logger.Info("Fetched LMS courses.", "count", len(out))
	return out, nil
}

// Assignments fetches the assignments of all enrolled courses.
func (c *Client) Assignments(ctx context.Context) ([]normalize.AssignmentRecord, error) {
	var resp struct {
		Courses []struct {
			course
			Assignments []struct {
				Name    string `json:"name"`
				DueDate int64  `json:"duedate"`
			} `json:"assignments"`
		} `json:"courses"`
	}
	if err := c.call(ctx, "mod_assign_get_assignments", nil, &resp); err != nil {
		return nil, err
	}

	var out []normalize.AssignmentRecord
	for _, crs := range resp.Courses {
		for _, a := range crs.Assignments {
			out = append(out, normalize.AssignmentRecord{
				Title:       a.Name,
				CourseCode:  normalize.CourseCode(crs.ShortName),
				CourseTitle: crs.FullName,
				Due:         timestamp(a.DueDate),
			})
		}
	}
	c.logger.Info("Fetched LMS assignments.", "count", len(out))
	return out, nil
}

// CalendarEvents fetches the upcoming calendar view. Assignment due and
// close events are declared as KindAssignment, everything else as KindEvent.
func (c *Client) CalendarEvents(ctx context.Context) ([]normalize.CalendarRecord, error) {
	var resp struct {
		Events []struct {
			Name      string  `json:"name"`
			TimeStart int64   `json:"timestart"`
			EventType string  `json:"eventtype"`
			Course    *course `json:"course"`
		} `json:"events"`
	}
	if err := c.call(ctx, "core_calendar_get_calendar_upcoming_view", nil, &resp); err != nil {
		return nil, err
	}

	out := make([]normalize.CalendarRecord, 0, len(resp.Events))
	for _, ev := range resp.Events {
		rec := normalize.CalendarRecord{
			Title: ev.Name,
			Start: timestamp(ev.TimeStart),
			Kind:  models.KindEvent,
		}
		if ev.EventType == "due" || ev.EventType == "close" {
			rec.Kind = models.KindAssignment
		}
		if ev.Course != nil {
			rec.CourseCode = normalize.CourseCode(ev.Course.ShortName)
			rec.CourseTitle = ev.Course.FullName
		}
		out = append(out, rec)
	}
	c.logger.Info("Fetched LMS calendar events.", "count", len(out))
	return out, nil
}

// Checkmarks fetches the checkmark exercise sets of the given courses with
// their completion tallies. Courses not in the list are labelled by id.
func (c *Client) Checkmarks(ctx context.Context, courses []normalize.CourseRecord) ([]normalize.CheckmarkRecord, error) {
	byID := make(map[int64]normalize.CourseRecord, len(courses))
	ids := make([]int64, 0, len(courses))
	for _, crs := range courses {
		byID[crs.ID] = crs
		ids = append(ids, crs.ID)
	}

	var resp struct {
		Checkmarks []struct {
			Name     string `json:"name"`
			Course   int64  `json:"course"`
			DueDate  int64  `json:"duedate"`
			Examples []struct {
				Checked bool `json:"checked"`
			} `json:"examples"`
		} `json:"checkmarks"`
	}
	if err := c.call(ctx, "mod_checkmark_get_checkmarks_by_courses", courseIDs(ids), &resp); err != nil {
		return nil, err
	}

	out := make([]normalize.CheckmarkRecord, 0, len(resp.Checkmarks))
	for _, cm := range resp.Checkmarks {
		rec := normalize.CheckmarkRecord{
			Title: cm.Name,
			Due:   timestamp(cm.DueDate),
			Total: len(cm.Examples),
		}
		for _, ex := range cm.Examples {
			if ex.Checked {
				rec.Ticked++
			}
		}
		if crs, ok := byID[cm.Course]; ok {
			rec.CourseCode = crs.Code()
			rec.CourseTitle = crs.FullName
		} else {
			rec.CourseCode = strconv.FormatInt(cm.Course, 10)
			rec.CourseTitle = fmt.Sprintf("Course %d", cm.Course)
		}
		out = append(out, rec)
	}
	c.logger.Info("Fetched LMS checkmarks.", "count", len(out))
	return out, nil
}
