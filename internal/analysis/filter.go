// Package analysis derives the report's aggregates from cleaned observation
// rows. Every function is pure and is recomputed whenever the filter changes.
package analysis

import (
	"sort"
	"time"

	"github.com/lox/climareport/internal/models"
)

// AllStations selects every station.
const AllStations = "all"

// Filter selects rows by inclusive calendar-day range and station name.
// A zero Start or End leaves that side open.
type Filter struct {
	Start   time.Time
	End     time.Time
	Station string
}

func (f Filter) AllStations() bool {
	return f.Station == "" || f.Station == AllStations
}

func (f Filter) from() time.Time {
	y, m, d := f.Start.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (f Filter) to() time.Time {
	y, m, d := f.End.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, time.UTC)
}

func (f Filter) Match(r models.ObservationRow) bool {
	if !f.AllStations() && r.StationName != f.Station {
		return false
	}
	ts := r.ObservedAt.UTC()
	if !f.Start.IsZero() && ts.Before(f.from()) {
		return false
	}
	if !f.End.IsZero() && ts.After(f.to()) {
		return false
	}
	return true
}

// Apply returns the rows matching f in their original order.
func Apply(rows []models.ObservationRow, f Filter) []models.ObservationRow {
	out := make([]models.ObservationRow, 0, len(rows))
	for _, r := range rows {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Divisor is the number of stations daily rainfall is averaged over: every
// station present in the data set when unfiltered, one otherwise.
func Divisor(f Filter, stationCount int) int {
	if f.AllStations() && stationCount > 0 {
		return stationCount
	}
	return 1
}

// StationNames returns the distinct station names in rows, sorted.
func StationNames(rows []models.ObservationRow) []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range rows {
		if !seen[r.StationName] {
			seen[r.StationName] = true
			names = append(names, r.StationName)
		}
	}
	sort.Strings(names)
	return names
}

// Span returns the first and last calendar day covered by rows.
func Span(rows []models.ObservationRow) (time.Time, time.Time, bool) {
	if len(rows) == 0 {
		return time.Time{}, time.Time{}, false
	}
	first, last := rows[0].ObservedAt, rows[0].ObservedAt
	for _, r := range rows[1:] {
		if r.ObservedAt.Before(first) {
			first = r.ObservedAt
		}
		if r.ObservedAt.After(last) {
			last = r.ObservedAt
		}
	}
	return first.UTC().Truncate(24 * time.Hour), last.UTC().Truncate(24 * time.Hour), true
}
