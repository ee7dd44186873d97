package tuwel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://tuwel.tuwien.ac.at"
	restPath       = "/webservice/rest/server.php"
	userAgent      = "unitimeline/1.0"
)

// APIError is an exception reported by the Moodle web service.
type APIError struct {
	Function  string
	ErrorCode string
	Message   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("moodle %s failed: %s (%s)", e.Function, e.Message, e.ErrorCode)
}

// Client is a read-only client for the LMS web service. The token is
// acquired elsewhere; the client never manages sessions.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
	token      string
}

// NewClient creates a new LMS client.
func NewClient(logger *slog.Logger, baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		endpoint:   strings.TrimSuffix(baseURL, "/") + restPath,
		token:      token,
	}
}

// call invokes one web service function and decodes the JSON result into out.
func (c *Client) call(ctx context.Context, function string, params url.Values, out any) error {
	form := url.Values{}
	for k, v := range params {
		form[k] = v
	}
	form.Set("wstoken", c.token)
	form.Set("wsfunction", function)
	form.Set("moodlewsrestformat", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	c.logger.Debug("Calling LMS web service", "function", function)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("moodle %s: %w", function, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("moodle %s: read body: %w", function, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("moodle %s: unexpected status %s", function, resp.Status)
	}

	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '{' {
		var exc struct {
			Exception string `json:"exception"`
			ErrorCode string `json:"errorcode"`
			Message   string `json:"message"`
		}
		if err := json.Unmarshal(trimmed, &exc); err == nil && exc.Exception != "" {
			return &APIError{Function: function, ErrorCode: exc.ErrorCode, Message: exc.Message}
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("moodle %s: decode response: %w", function, err)
	}
	return nil
}

// timestamp renders a Moodle Unix timestamp as RFC 3339 UTC; zero means "not set".
func timestamp(ts int64) string {
	if ts <= 0 {
		return ""
	}
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

func courseIDs(ids []int64) url.Values {
	params := url.Values{}
	for i, id := range ids {
		params.Set(fmt.Sprintf("courseids[%d]", i), strconv.FormatInt(id, 10))
	}
	return params
}
