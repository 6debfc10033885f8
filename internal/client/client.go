// Package client talks to the portal's JSON API and keeps a local query cache
// consistent with the writes it sends.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jw6ventures/volunteerportal/internal/portal"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
)

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	Status int
	Errors []portal.FieldError
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("api: %s", http.StatusText(e.Status))
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fe.Message)
	}
	return fmt.Sprintf("api: %d: %s", e.Status, strings.Join(msgs, "; "))
}

// Is maps HTTP statuses onto the package's sentinel errors.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// Validation returns the field errors of a 422 response, or nil.
func (e *APIError) Validation() *portal.ValidationError {
	if e.Status != http.StatusUnprocessableEntity {
		return nil
	}
	return portal.ValidationErrorFrom(e.Errors)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Email      string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client is a thin HTTP client for /api authenticated with an API token.
type Client struct {
	base  *url.URL
	email string
	token string
	http  *http.Client
}

func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", opts.BaseURL)
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{base: base, email: opts.Email, token: opts.Token, http: hc}, nil
}

func (c *Client) Lookups(ctx context.Context) (portal.Lookups, error) {
	var out portal.Lookups
	err := c.do(ctx, http.MethodGet, "/api/lookups", nil, nil, &out)
	return out, err
}

// CurrentUser fetches the caller and their individual events.
func (c *Client) CurrentUser(ctx context.Context) (portal.CurrentUser, error) {
	var out portal.CurrentUser
	err := c.do(ctx, http.MethodGet, "/api/individual-events", nil, nil, &out)
	return out, err
}

func (c *Client) SaveIndividualEvent(ctx context.Context, in portal.IndividualEventInput) (portal.IndividualEvent, error) {
	var out portal.IndividualEvent
	err := c.do(ctx, http.MethodPost, "/api/individual-events", nil, in, &out)
	return out, err
}

func (c *Client) DeleteIndividualEvent(ctx context.Context, id int64) (int64, error) {
	var out portal.DeletedID
	err := c.do(ctx, http.MethodDelete, "/api/individual-events/"+strconv.FormatInt(id, 10), nil, nil, &out)
	return out.ID, err
}

// EventQuery selects admin events. OfficeID is portal.CurrentOffice, a
// numeric id, or empty for all offices; Title and Organization are substring
// filters.
type EventQuery struct {
	OfficeID     string
	Title        string
	Organization string
	Sort         portal.EventSort
}

func (q EventQuery) values() url.Values {
	v := url.Values{}
	if q.OfficeID != "" {
		v.Set("officeId", q.OfficeID)
	}
	if q.Title != "" {
		v.Set("title", q.Title)
	}
	if q.Organization != "" {
		v.Set("organization", q.Organization)
	}
	if q.Sort != "" {
		v.Set("sortBy", string(q.Sort))
	}
	return v
}

func (c *Client) Events(ctx context.Context, q EventQuery) ([]portal.Event, error) {
	var out []portal.Event
	err := c.do(ctx, http.MethodGet, "/api/events", q.values(), nil, &out)
	return out, err
}

func (c *Client) DeleteEvent(ctx context.Context, id int64) (portal.Event, error) {
	var out portal.Event
	err := c.do(ctx, http.MethodDelete, "/api/events/"+strconv.FormatInt(id, 10), nil, nil, &out)
	return out, err
}

// ExportICS downloads the caller's individual events as iCalendar data.
func (c *Client) ExportICS(ctx context.Context) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/individual-events.ics", nil, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) newRequest(ctx context.Context, method, path string, q url.Values, body any) (*http.Request, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = q.Encode()

	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), r)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.email, c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out any) error {
	req, err := c.newRequest(ctx, method, path, q, body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	env := portal.Envelope[json.RawMessage]{}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(env.Errors) > 0 {
		return &APIError{Status: resp.StatusCode, Errors: env.Errors}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

// decodeError reads an error envelope, falling back to the plain-text body
// written by middleware such as the auth and rate-limit layers.
func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode}

	var env portal.Envelope[json.RawMessage]
	if json.Unmarshal(data, &env) == nil && len(env.Errors) > 0 {
		apiErr.Errors = env.Errors
		return apiErr
	}
	if msg := strings.TrimSpace(string(data)); msg != "" {
		apiErr.Errors = []portal.FieldError{{Message: msg}}
	}
	return apiErr
}
