// Package httpapi is the HTTP client of the LinguaLab API.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/mrdawstar/LinguaLab-sub000/core/attendance"
	"github.com/mrdawstar/LinguaLab-sub000/core/usage"
)

const apiKeyHeader = "apikey"

// ErrUnauthorized is returned when the API still rejects the credentials after a refresh.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx response of the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

type (
	Client struct {
		baseURL string
		tokens  TokenProvider
		apiKey  string
		http    *http.Client
	}

	Option func(c *Client)
)

// WithAPIKey sets the service API key sent to privileged endpoints.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(baseURL string, tokens TokenProvider, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListAttendance returns the attendance records of a lesson.
func (c *Client) ListAttendance(ctx context.Context, lessonID string) ([]attendance.Record, error) {
	var recs []attendance.Record
	path := fmt.Sprintf("/v1/lessons/%s/attendance", url.PathEscape(lessonID))
	if err := c.do(ctx, http.MethodGet, path, nil, false, &recs); err != nil {
		return nil, errors.Wrap(err, "listing attendance")
	}
	return recs, nil
}

// MarkAttendance creates or updates the attendance record of (lesson, student).
func (c *Client) MarkAttendance(ctx context.Context, ma attendance.MarkAttendance) (attendance.Record, error) {
	var rec attendance.Record
	path := fmt.Sprintf("/v1/lessons/%s/attendance/%s", url.PathEscape(ma.LessonID), url.PathEscape(ma.StudentID))
	body := map[string]interface{}{"attended": ma.Attended}
	// an absent comment keeps the stored one
	if ma.Comment != nil {
		body["comment"] = ma.Comment
	}
	if err := c.do(ctx, http.MethodPut, path, body, false, &rec); err != nil {
		return attendance.Record{}, errors.Wrap(err, "marking attendance")
	}
	return rec, nil
}

// Reconcile asks the API to reconcile package usage for an attendance mark.
func (c *Client) Reconcile(ctx context.Context, ev usage.Event) (usage.Result, error) {
	var res usage.Result
	if err := c.do(ctx, http.MethodPost, "/v1/usage/reconcile", ev, true, &res); err != nil {
		return usage.Result{}, errors.Wrap(err, "reconciling usage")
	}
	return res, nil
}

// do sends the request, refreshing the bearer token and retrying once on 401.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, privileged bool, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return errors.Wrap(err, "encoding body")
		}
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	for attempt := 0; ; attempt++ {
		resp, err := c.send(ctx, method, path, payload, token, privileged)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			drain(resp)
			if attempt > 0 {
				return ErrUnauthorized
			}
			if token, err = c.tokens.Refresh(ctx); err != nil {
				return errors.Wrap(err, "refreshing token")
			}
			continue
		}
		return decodeResponse(resp, out)
	}
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, token string, privileged bool) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if privileged && c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	return resp, nil
}

func decodeResponse(resp *http.Response, out interface{}) error {
	defer drain(resp)

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var msg struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &msg) == nil && msg.Error != "" {
			apiErr.Message = msg.Error
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decoding response")
	}
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
