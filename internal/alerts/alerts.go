// Package alerts flags days and forecast periods that cross fixed weather
// thresholds.
package alerts

import (
	"fmt"
	"sort"
	"time"

	"github.com/lox/climareport/internal/htmlutil"
	"github.com/lox/climareport/internal/models"
)

// Thresholds are strict: a value must be above (or below, for the low
// thresholds) to trigger.
type Thresholds struct {
	Rain        float64
	Gust        float64
	TempHigh    float64
	TempLow     float64
	HumidityLow float64
	DeltaTHigh  float64
}

var DefaultThresholds = Thresholds{
	Rain:        50,
	Gust:        50,
	TempHigh:    40,
	TempLow:     5,
	HumidityLow: 20,
	DeltaTHigh:  9,
}

var icons = map[models.AlertKind]string{
	models.AlertRain:     "🌧️",
	models.AlertGust:     "💨",
	models.AlertTempHigh: "🌡️",
	models.AlertTempLow:  "🧊",
	models.AlertHumLow:   "💧",
	models.AlertDeltaT:   "☀️",
}

func newAlert(kind models.AlertKind, date time.Time, label, station, title, description string, value float64) models.Alert {
	return models.Alert{
		Kind:        kind,
		Date:        date,
		DateLabel:   label,
		Station:     station,
		Icon:        icons[kind],
		Title:       title,
		Description: description,
		Value:       value,
	}
}

// Text renders an alert as a single plain-text line.
func Text(a models.Alert) string {
	return fmt.Sprintf("%s %s (%s): %s", a.DateLabel, a.Title, a.Station, htmlutil.ToText(a.Description))
}

func sortByDateStation(list []models.Alert) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Station != b.Station {
			return a.Station < b.Station
		}
		return a.Kind.Order() < b.Kind.Order()
	})
}
