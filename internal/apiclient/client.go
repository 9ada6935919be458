// Package apiclient is the HTTP backend of the agenda controller.
package apiclient

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

	"github.com/rs/zerolog"

	"github.com/ambulatorio/ambulatorio/internal/agenda"
	"github.com/ambulatorio/ambulatorio/internal/domain/clinic"
)

// maxErrorBody bounds how much of a failed response is read for its detail.
const maxErrorBody = 4096

type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Client talks to the REST backend under baseURL, e.g.
// http://localhost:8001/api. It implements agenda.Backend.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  zerolog.Logger
}

var _ agenda.Backend = (*Client)(nil)

func New(baseURL, token string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
		logger:  zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ForSession builds a client that authenticates as the given session.
func ForSession(baseURL string, s agenda.SessionContext, timeout time.Duration, opts ...Option) *Client {
	return New(baseURL, s.Token, timeout, opts...)
}

func (c *Client) ListAppointments(ctx context.Context, site clinic.Site, date string) ([]agenda.Appointment, error) {
	q := url.Values{"ambulatorio": {string(site)}, "data": {date}}
	var out []agenda.Appointment
	if err := c.do(ctx, agenda.OpListAppointments, http.MethodGet, "/appointments", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateAppointment(ctx context.Context, req agenda.NewAppointment) (*agenda.Appointment, error) {
	var out agenda.Appointment
	if err := c.do(ctx, agenda.OpCreateAppointment, http.MethodPost, "/appointments", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteAppointment(ctx context.Context, id string) error {
	return c.do(ctx, agenda.OpDeleteAppointment, http.MethodDelete, "/appointments/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) ListPatients(ctx context.Context, site clinic.Site, status clinic.PatientStatus) ([]agenda.Patient, error) {
	q := url.Values{"ambulatorio": {string(site)}}
	if status != "" {
		q.Set("status", string(status))
	}
	var out []agenda.Patient
	if err := c.do(ctx, agenda.OpListPatients, http.MethodGet, "/patients", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreatePatient(ctx context.Context, req agenda.NewPatient) (*agenda.Patient, error) {
	var out agenda.Patient
	if err := c.do(ctx, agenda.OpCreatePatient, http.MethodPost, "/patients", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Holidays(ctx context.Context, year int) ([]string, error) {
	q := url.Values{"anno": {strconv.Itoa(year)}}
	var out []string
	if err := c.do(ctx, agenda.OpHolidays, http.MethodGet, "/calendar/holidays", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// do sends one request and decodes a 2xx body into out. Every failure comes
// back as an *agenda.RemoteError.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return unavailable(op, fmt.Errorf("encode request: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return unavailable(op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("op", op).Str("method", method).Str("path", path).
			Bool("timeout", isTimeout(err)).Msg("backend unreachable")
		return unavailable(op, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("op", op).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("backend call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return agenda.RemoteFromStatus(op, resp.StatusCode, readDetail(resp.Body))
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &agenda.RemoteError{Kind: agenda.Unavailable, Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// readDetail extracts {"detail": "..."} from an error body. Anything else
// yields an empty detail.
func readDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil {
		return s
	}
	return string(body.Detail)
}

func unavailable(op string, err error) error {
	return &agenda.RemoteError{Kind: agenda.Unavailable, Op: op, Err: err}
}

// isTimeout reports whether err is a backend call that ran out of time.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
