package analysis

import (
	"time"

	"github.com/lox/climareport/internal/models"
)

// View is every filter-dependent aggregate the dashboard shows.
type View struct {
	Start      string           `json:"start"`
	End        string           `json:"end"`
	Station    string           `json:"station"`
	Rows       int              `json:"rows"`
	Stations   []string         `json:"stations"`
	KPIs       KPIs             `json:"kpis"`
	Daily      []Daily          `json:"daily"`
	Monthly    []Monthly        `json:"monthly"`
	HourOfDay  []HourProfile    `json:"hour_of_day"`
	Directions []DirectionShare `json:"directions"`
	WindRose   WindRose         `json:"wind_rose"`
}

type ViewOptions struct {
	// StationCount is the number of stations with rows in the unfiltered
	// data set, not the number configured.
	StationCount   int
	RadiationSince time.Time
}

// BuildView filters rows and derives every aggregate from the result.
func BuildView(rows []models.ObservationRow, f Filter, opts ViewOptions) View {
	filtered := Apply(rows, f)
	daily := DailyRollup(filtered, Divisor(f, opts.StationCount))

	v := View{
		Station:    f.Station,
		Rows:       len(filtered),
		Stations:   StationNames(filtered),
		KPIs:       ComputeKPIs(filtered, daily, opts.RadiationSince),
		Daily:      daily,
		Monthly:    MonthlyRollup(daily, filtered),
		HourOfDay:  HourOfDay(filtered),
		Directions: DirectionHistogram(filtered),
		WindRose:   BuildWindRose(filtered),
	}
	if v.Station == "" {
		v.Station = AllStations
	}
	if !f.Start.IsZero() {
		v.Start = f.Start.Format("2006-01-02")
	}
	if !f.End.IsZero() {
		v.End = f.End.Format("2006-01-02")
	}
	return v
}
