package httputil

import (
	"net/http"
	"time"
)

const (
	DefaultTimeout  = 30 * time.Second
	HistoryTimeout  = 180 * time.Second
	ForecastTimeout = 60 * time.Second
)

func NewClientWithTimeout(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}

// WithTimeout returns a shallow copy of c that shares its transport and
// cookie jar but uses the given timeout.
func WithTimeout(c *http.Client, timeout time.Duration) *http.Client {
	if c == nil {
		return NewClientWithTimeout(timeout)
	}
	cp := *c
	cp.Timeout = timeout
	return &cp
}
