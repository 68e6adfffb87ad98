package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lox/climareport/internal/httputil"
	"github.com/lox/climareport/internal/metrics"
	"github.com/lox/climareport/internal/session"
)

const (
	DefaultBaseURL = "https://admin.farmcommand.com"
	DefaultSeason  = 1083
)

// ErrAuth is returned when re-authentication fails. It aborts the run.
var ErrAuth = session.ErrAuth

// PayloadFunc receives every successful upstream response body.
type PayloadFunc func(endpoint, stationID string, fetchedAt time.Time, body []byte)

type Config struct {
	BaseURL            string
	Season             int
	HistoryTimeout     time.Duration
	ForecastTimeout    time.Duration
	WindowPause        time.Duration
	ForecastAttempts   int
	ForecastRetryDelay time.Duration
	Location           *time.Location
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.HistoryTimeout == 0 {
		c.HistoryTimeout = httputil.HistoryTimeout
	}
	if c.ForecastTimeout == 0 {
		c.ForecastTimeout = httputil.ForecastTimeout
	}
	if c.ForecastAttempts == 0 {
		c.ForecastAttempts = 3
	}
	if c.ForecastRetryDelay == 0 {
		c.ForecastRetryDelay = 2 * time.Second
	}
	if c.WindowPause == 0 {
		c.WindowPause = 100 * time.Millisecond
	}
	if c.Season == 0 {
		c.Season = DefaultSeason
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	return c
}

// Client talks to the farm data API through a session provider.
type Client struct {
	cfg       Config
	sessions  session.Provider
	onPayload PayloadFunc
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewClient(sessions session.Provider, cfg Config) *Client {
	return &Client{
		cfg:      cfg.withDefaults(),
		sessions: sessions,
		sleep:    sleepContext,
	}
}

// OnPayload registers a hook that sees raw response bodies, used for archiving.
func (c *Client) OnPayload(fn PayloadFunc) {
	c.onPayload = fn
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.code, e.body)
}

func isUnauthorized(err error) bool {
	var se *statusError
	return errors.As(err, &se) && (se.code == http.StatusUnauthorized || se.code == http.StatusForbidden)
}

// getWithReauth issues a GET using the current session handle. A 401 or 403
// triggers one session refresh and one retry with the new handle. A failed
// refresh is returned as ErrAuth; every other failure is returned wrapped.
func (c *Client) getWithReauth(ctx context.Context, endpoint, stationID, rawURL string) ([]byte, error) {
	var body []byte
	refreshed := false
	operation := func() error {
		handle, err := c.sessions.Client(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		b, err := c.do(ctx, httputil.WithTimeout(handle, c.cfg.HistoryTimeout), endpoint, http.MethodGet, rawURL, nil)
		if err == nil {
			body = b
			return nil
		}
		if !isUnauthorized(err) || refreshed {
			return backoff.Permanent(err)
		}
		log.Printf("ingest: %s: session rejected, re-authenticating", endpoint)
		metrics.Reauthentications.Inc()
		refreshed = true
		if _, rerr := c.sessions.Refresh(ctx); rerr != nil {
			return backoff.Permanent(fmt.Errorf("re-authenticate: %w", rerr))
		}
		return err
	}

	bo := backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 1)
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	if c.onPayload != nil {
		c.onPayload(endpoint, stationID, time.Now().UTC(), body)
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, client *http.Client, endpoint, method, rawURL string, payload io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, payload)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := client.Do(req)
	metrics.UpstreamLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamCallsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()
	metrics.UpstreamCallsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, &statusError{code: resp.StatusCode, body: snippet})
	}
	return body, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
