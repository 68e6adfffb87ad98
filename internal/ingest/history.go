package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/lox/climareport/internal/metrics"
)

// WindowDays is the inclusive length of one history request.
const WindowDays = 61

const (
	EndpointHistory = "history"
	dateLayout      = "2006-01-02"
)

// Window is an inclusive range of calendar days.
type Window struct {
	Start time.Time
	End   time.Time
}

// Windows splits the inclusive day range [start, end] into consecutive
// windows of at most days days. Each window starts the day after the
// previous one ended.
func Windows(start, end time.Time, days int) []Window {
	start = truncateDay(start)
	end = truncateDay(end)
	if days < 1 {
		days = 1
	}
	var out []Window
	for cur := start; !cur.After(end); {
		chunkEnd := cur.AddDate(0, 0, days-1)
		if chunkEnd.After(end) {
			chunkEnd = end
		}
		out = append(out, Window{Start: cur, End: chunkEnd})
		cur = chunkEnd.AddDate(0, 0, 1)
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type historyResponse struct {
	Results []RawObservation `json:"results"`
}

// FetchHistory returns every hourly record for a station over the inclusive
// day range, fetched one window at a time, and the number of windows that
// failed. A window that fails for any reason other than authentication
// contributes no records. ErrAuth is returned if the session cannot be
// re-established.
func (c *Client) FetchHistory(ctx context.Context, stationID string, start, end time.Time) ([]RawObservation, int, error) {
	windows := Windows(start, end, WindowDays)
	log.Printf("history: station %s: %d windows from %s to %s", stationID, len(windows), start.Format(dateLayout), end.Format(dateLayout))

	var all []RawObservation
	failed := 0
	for i, w := range windows {
		if i > 0 {
			if err := c.sleep(ctx, c.cfg.WindowPause); err != nil {
				return all, failed, err
			}
		}
		records, err := c.fetchWindow(ctx, stationID, w)
		if err != nil {
			if errors.Is(err, ErrAuth) {
				return nil, failed, err
			}
			if ctx.Err() != nil {
				return all, failed, ctx.Err()
			}
			failed++
			log.Printf("history: station %s window %s..%s: %v", stationID, w.Start.Format(dateLayout), w.End.Format(dateLayout), err)
			metrics.WindowsFailed.WithLabelValues(stationID).Inc()
			continue
		}
		all = append(all, records...)
	}

	metrics.RecordsFetched.WithLabelValues(stationID).Add(float64(len(all)))
	log.Printf("history: station %s: %d hourly records, %d failed windows", stationID, len(all), failed)
	return all, failed, nil
}

func (c *Client) historyURL(stationID string, w Window) string {
	q := url.Values{}
	q.Set("startDate", w.Start.Format(dateLayout)+"T00:00:00")
	q.Set("endDate", w.End.Format(dateLayout)+"T23:59:59")
	q.Set("format", "json")
	return fmt.Sprintf("%s/weather/%s/historical-summary-hourly/?%s", c.cfg.BaseURL, url.PathEscape(stationID), q.Encode())
}

func (c *Client) fetchWindow(ctx context.Context, stationID string, w Window) ([]RawObservation, error) {
	body, err := c.getWithReauth(ctx, EndpointHistory, stationID, c.historyURL(stationID, w))
	if err != nil {
		return nil, err
	}
	var data historyResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("unmarshal history: %w", err)
	}
	return data.Results, nil
}
