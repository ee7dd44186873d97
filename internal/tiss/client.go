package tiss

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"unitimeline/internal/normalize"
)

const DefaultBaseURL = "https://tiss.tuwien.ac.at/api"

// Client reads exam dates from the public course catalog.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
}

// NewClient creates a new catalog client.
func NewClient(logger *slog.Logger, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

type examDate struct {
	Date              string `json:"date"`
	Mode              string `json:"mode"`
	RegistrationStart string `json:"registrationStart"`
	RegistrationEnd   string `json:"registrationEnd"`
}

// ExamDates fetches the exam dates of a course. courseNumber may be given
// with or without the dot ("192.167" or "192167"); the returned records
// carry it as their course code.
func (c *Client) ExamDates(ctx context.Context, courseNumber string) ([]normalize.ExamRecord, error) {
	number := strings.ReplaceAll(strings.TrimSpace(courseNumber), ".", "")
	if number == "" {
		return nil, fmt.Errorf("course number is empty")
	}
	endpoint := fmt.Sprintf("%s/course/%s/examDates", c.baseURL, url.PathEscape(number))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("Fetching exam dates", "course", courseNumber)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch exam dates for %s: %w", courseNumber, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch exam dates for %s: read body: %w", courseNumber, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch exam dates for %s: unexpected status %s", courseNumber, resp.Status)
	}

	// An empty body means the course has no exams scheduled.
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var dates []examDate
	if err := json.Unmarshal(body, &dates); err != nil {
		return nil, fmt.Errorf("fetch exam dates for %s: decode response: %w", courseNumber, err)
	}

	out := make([]normalize.ExamRecord, 0, len(dates))
	for _, d := range dates {
		out = append(out, normalize.ExamRecord{
			CourseCode:        courseNumber,
			Date:              d.Date,
			Mode:              d.Mode,
			RegistrationStart: d.RegistrationStart,
			RegistrationEnd:   d.RegistrationEnd,
		})
	}
	c.logger.Debug("Fetched exam dates", "course", courseNumber, "count", len(out))
	return out, nil
}
