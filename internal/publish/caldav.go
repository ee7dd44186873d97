package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"

	"unitimeline/internal/ics"
	"unitimeline/internal/models"
)

// basicAuthTransport adds Basic Auth and the client's User-Agent to each request.
type basicAuthTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "unitimeline/1.0")
	return t.Transport.RoundTrip(req)
}

// CalDAVPublisher uploads timeline events to one calendar of a CalDAV server.
type CalDAVPublisher struct {
	caldavClient *caldav.Client
	webdavClient *webdav.Client
	logger       *slog.Logger
	endpoint     string
	calendarPath string
	duration     time.Duration
}

// NewCalDAVPublisher connects to endpoint and resolves the calendar named
// calendarName. duration is the length given to each uploaded event.
func NewCalDAVPublisher(ctx context.Context, logger *slog.Logger, endpoint, username, password, calendarName string, duration time.Duration) (*CalDAVPublisher, error) {
	if endpoint == "" {
		return nil, errors.New("caldav endpoint is not configured")
	}
	if duration <= 0 {
		duration = ics.DefaultDuration
	}

	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &basicAuthTransport{
			Username:  username,
			Password:  password,
			Transport: http.DefaultTransport,
		},
	}

	caldavClient, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}
	webdavClient, err := webdav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create webdav client: %w", err)
	}

	p := &CalDAVPublisher{
		caldavClient: caldavClient,
		webdavClient: webdavClient,
		logger:       logger,
		endpoint:     endpoint,
		duration:     duration,
	}

	logger.Info("Finding CalDAV calendar", "calendarName", calendarName)
	calendarPath, err := p.findCalendar(ctx, calendarName)
	if err != nil {
		return nil, fmt.Errorf("could not find calendar '%s': %w", calendarName, err)
	}
	p.calendarPath = calendarPath
	logger.Info("Found CalDAV calendar", "path", calendarPath)

	return p, nil
}

// Publish uploads every event as "<uid>.ics". The UID matches the file
// export, so publishing again overwrites instead of duplicating. Failed
// uploads are logged and skipped; the number of uploaded events and the
// joined upload errors are returned.
func (p *CalDAVPublisher) Publish(ctx context.Context, events []models.Event, generatedAt time.Time) (int, error) {
	var (
		published int
		errs      []error
	)
	for _, ev := range events {
		if err := p.put(ctx, ev, generatedAt); err != nil {
			p.logger.Error("Failed to publish event", "title", ev.Title, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", ev.Title, err))
			continue
		}
		published++
	}
	p.logger.Info("Published timeline.", "published", published, "failed", len(errs))
	return published, errors.Join(errs...)
}

func (p *CalDAVPublisher) put(ctx context.Context, ev models.Event, generatedAt time.Time) error {
	cal := Calendar(ev, generatedAt, p.duration)
	uid := ics.UID(ev.IdentityKey)
	objectPath := path.Join(p.calendarPath, url.PathEscape(uid)+".ics")

	writer, err := p.webdavClient.Create(ctx, objectPath)
	if err != nil {
		return fmt.Errorf("failed to create event on CalDAV server: %w", err)
	}
	if err := ical.NewEncoder(writer).Encode(cal); err != nil {
		writer.Close()
		return fmt.Errorf("failed to encode event to iCal format: %w", err)
	}
	return writer.Close()
}

// Calendar wraps one event in a single-event calendar object.
func Calendar(ev models.Event, generatedAt time.Time, duration time.Duration) *ical.Calendar {
	if ev.IdentityKey == "" {
		ev = ev.WithIdentity()
	}
	start := ev.DueAt.UTC()

	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, ics.UID(ev.IdentityKey))
	ve.Props.SetText(ical.PropSummary, ev.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, generatedAt.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, start)
	ve.Props.SetDateTime(ical.PropDateTimeEnd, start.Add(duration))
	ve.Props.SetText(ical.PropCategories, string(ev.Kind))
	if ev.CourseTitle != "" {
		ve.Props.SetText(ical.PropDescription, ev.CourseTitle)
	}
	if ev.CourseCode != "" {
		ve.Props.SetText(ical.PropLocation, ev.CourseCode)
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ics.DefaultProductID)
	cal.Children = append(cal.Children, ve)
	return cal
}

// findCalendar discovers the user's calendars and returns the path of the one with the matching name.
func (p *CalDAVPublisher) findCalendar(ctx context.Context, name string) (string, error) {
	principalPath, err := p.caldavClient.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := p.caldavClient.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := p.caldavClient.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if cal.Name == name {
			return strings.TrimSuffix(cal.Path, "/"), nil
		}
	}

	return "", fmt.Errorf("no calendar found with name '%s'", name)
}
