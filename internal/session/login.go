package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lox/climareport/internal/httputil"
)

const (
	csrfCookie    = "csrftoken"
	sessionCookie = "sessionid"
)

// Credentials configures a form login against a Django-style admin.
type Credentials struct {
	LoginURL string
	Username string
	Password string
	Timeout  time.Duration
	// MaxElapsed bounds retries of transient login failures.
	MaxElapsed time.Duration
}

// Login returns an ObtainFunc that performs a cookie-based form login.
// Transient failures are retried; rejected credentials are not.
func Login(creds Credentials) ObtainFunc {
	return func(ctx context.Context) (*http.Client, error) {
		if creds.Username == "" || creds.Password == "" {
			return nil, fmt.Errorf("%w: username and password required", ErrAuth)
		}
		loginURL, err := url.Parse(creds.LoginURL)
		if err != nil {
			return nil, fmt.Errorf("%w: parse login url: %v", ErrAuth, err)
		}

		timeout := creds.Timeout
		if timeout == 0 {
			timeout = httputil.DefaultTimeout
		}

		var client *http.Client
		operation := func() error {
			jar, err := cookiejar.New(nil)
			if err != nil {
				return backoff.Permanent(err)
			}
			c := httputil.NewClientWithTimeout(timeout)
			c.Jar = jar
			if err := login(ctx, c, loginURL, creds); err != nil {
				return err
			}
			client = c
			return nil
		}

		bo := backoff.NewExponentialBackOff()
		bo.MaxElapsedTime = creds.MaxElapsed
		if bo.MaxElapsedTime == 0 {
			bo.MaxElapsedTime = time.Minute
		}
		if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
			return nil, err
		}
		return client, nil
	}
}

func login(ctx context.Context, c *http.Client, loginURL *url.URL, creds Credentials) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loginURL.String(), nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("fetch login page: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("fetch login page: status %d", resp.StatusCode)
	}

	csrf := cookieValue(c.Jar, loginURL, csrfCookie)

	form := url.Values{}
	form.Set("username", creds.Username)
	form.Set("password", creds.Password)
	if csrf != "" {
		form.Set("csrfmiddlewaretoken", csrf)
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodPost, loginURL.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", loginURL.String())
	if csrf != "" {
		req.Header.Set("X-CSRFToken", csrf)
	}

	resp, err = c.Do(req)
	if err != nil {
		return fmt.Errorf("post login: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return backoff.Permanent(fmt.Errorf("%w: status %d", ErrAuth, resp.StatusCode))
	case resp.StatusCode >= 500:
		return fmt.Errorf("post login: status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return backoff.Permanent(fmt.Errorf("%w: status %d", ErrAuth, resp.StatusCode))
	}

	if cookieValue(c.Jar, loginURL, sessionCookie) == "" {
		return backoff.Permanent(fmt.Errorf("%w: no session cookie issued", ErrAuth))
	}
	return nil
}

func cookieValue(jar http.CookieJar, u *url.URL, name string) string {
	for _, c := range jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}
