package alerts

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lox/climareport/internal/locale"
	"github.com/lox/climareport/internal/models"
)

var localLayouts = []string{
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// parseLocal keeps the wall clock of the forecast's own offset.
func parseLocal(s string) (time.Time, bool) {
	for _, layout := range localLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func calendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Forecast evaluates the daily thresholds per station and day, and groups
// hourly delta-T exceedances per station and local day. Alerts are sorted by
// date, then station.
func Forecast(f models.Forecasts, th Thresholds) []models.Alert {
	var out []models.Alert
	for station, days := range f.Daily {
		for _, d := range days {
			date := calendarDay(d.ValidAt)
			if d.PrecipAmount > th.Rain {
				out = append(out, newAlert(models.AlertRain, date, d.Date, station, "Previsão de Chuva Intensa",
					fmt.Sprintf("Previsto acumulado de <strong>%s mm</strong>.", locale.Number(d.PrecipAmount, 1)), d.PrecipAmount))
			}
			if d.WindSpeed > th.Gust {
				out = append(out, newAlert(models.AlertGust, date, d.Date, station, "Previsão de Vento Forte",
					fmt.Sprintf("Ventos de até <strong>%s km/h</strong> previstos.", locale.Number(d.WindSpeed, 0)), d.WindSpeed))
			}
			if d.TempMax != nil && *d.TempMax > th.TempHigh {
				out = append(out, newAlert(models.AlertTempHigh, date, d.Date, station, "Previsão de Temperatura Alta",
					fmt.Sprintf("Máxima prevista de <strong>%s °C</strong>.", locale.Number(*d.TempMax, 1)), *d.TempMax))
			}
			if d.TempMin != nil && *d.TempMin < th.TempLow {
				out = append(out, newAlert(models.AlertTempLow, date, d.Date, station, "Previsão de Temperatura Baixa",
					fmt.Sprintf("Mínima prevista de <strong>%s °C</strong>.", locale.Number(*d.TempMin, 1)), *d.TempMin))
			}
		}
	}
	out = append(out, deltaTAlerts(f.Hourly, th.DeltaTHigh)...)
	sortByDateStation(out)
	return out
}

type deltaTGroup struct {
	station string
	date    time.Time
	hours   []int
	peak    float64
}

func deltaTAlerts(hourly map[string][]models.HourlyForecast, limit float64) []models.Alert {
	groups := make(map[string]*deltaTGroup)
	for station, hours := range hourly {
		for _, h := range hours {
			if h.DeltaT == nil || *h.DeltaT <= limit {
				continue
			}
			t, ok := parseLocal(h.ValidLocal)
			if !ok {
				continue
			}
			day := calendarDay(t)
			key := station + "|" + day.Format("2006-01-02")
			g, ok := groups[key]
			if !ok {
				g = &deltaTGroup{station: station, date: day}
				groups[key] = g
			}
			g.hours = append(g.hours, t.Hour())
			if *h.DeltaT > g.peak {
				g.peak = *h.DeltaT
			}
		}
	}

	out := make([]models.Alert, 0, len(groups))
	for _, g := range groups {
		sort.Ints(g.hours)
		labels := make([]string, len(g.hours))
		for i, h := range g.hours {
			labels[i] = fmt.Sprintf("%dh", h)
		}
		a := newAlert(models.AlertDeltaT, g.date, g.date.Format("02/01"), g.station, "Delta T Elevado",
			fmt.Sprintf("Condições de Delta T acima de <strong>%s°C</strong> previstas para as horas: <strong>%s</strong>.",
				locale.Number(limit, 0), strings.Join(labels, ", ")), g.peak)
		a.Hours = g.hours
		out = append(out, a)
	}
	return out
}
