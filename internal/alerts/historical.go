package alerts

import (
	"fmt"
	"sort"
	"time"

	"github.com/lox/climareport/internal/locale"
	"github.com/lox/climareport/internal/models"
)

// MonthGroup holds one month's historical alerts, oldest day first.
type MonthGroup struct {
	Month  string         `json:"month"`
	Label  string         `json:"label"`
	Alerts []models.Alert `json:"alerts"`
}

type dayStation struct {
	day     string
	station string
}

type dayStationAcc struct {
	precip  float64
	gust    stat
	tempMax stat
	tempMin stat
	humMin  stat
}

type stat struct {
	v  float64
	ok bool
}

func (s *stat) max(v float64) {
	if !s.ok || v > s.v {
		s.v, s.ok = v, true
	}
}

func (s *stat) min(v float64) {
	if !s.ok || v < s.v {
		s.v, s.ok = v, true
	}
}

// Historical evaluates thresholds per (day, station) and groups the alerts by
// month, most recent month first. Missing readings never trigger an alert.
func Historical(rows []models.ObservationRow, th Thresholds) []MonthGroup {
	accs := make(map[dayStation]*dayStationAcc)
	for _, r := range rows {
		key := dayStation{day: r.Day(), station: r.StationName}
		acc, ok := accs[key]
		if !ok {
			acc = &dayStationAcc{}
			accs[key] = acc
		}
		if r.Precip.Valid && r.Precip.Float64 > 0 {
			acc.precip += r.Precip.Float64
		}
		if r.WindGust.Valid {
			acc.gust.max(r.WindGust.Float64)
		}
		if r.TempMax.Valid {
			acc.tempMax.max(r.TempMax.Float64)
		}
		if r.TempMin.Valid {
			acc.tempMin.min(r.TempMin.Float64)
		}
		if r.HumidityMin.Valid {
			acc.humMin.min(r.HumidityMin.Float64)
		}
	}

	byMonth := make(map[string][]models.Alert)
	for key, acc := range accs {
		date, err := time.Parse("2006-01-02", key.day)
		if err != nil {
			continue
		}
		label := locale.Date(date)
		month := key.day[:7]
		var list []models.Alert
		if acc.precip > th.Rain {
			list = append(list, newAlert(models.AlertRain, date, label, key.station, "Chuva Volumosa",
				fmt.Sprintf("Acumulado de <strong>%s mm</strong> no dia.", locale.Number(acc.precip, 1)), acc.precip))
		}
		if acc.gust.ok && acc.gust.v > th.Gust {
			list = append(list, newAlert(models.AlertGust, date, label, key.station, "Rajada de Vento Forte",
				fmt.Sprintf("Rajada máxima de <strong>%s km/h</strong> registrada.", locale.Number(acc.gust.v, 0)), acc.gust.v))
		}
		if acc.tempMax.ok && acc.tempMax.v > th.TempHigh {
			list = append(list, newAlert(models.AlertTempHigh, date, label, key.station, "Temperatura Alta",
				fmt.Sprintf("Máxima de <strong>%s °C</strong> registrada.", locale.Number(acc.tempMax.v, 1)), acc.tempMax.v))
		}
		if acc.tempMin.ok && acc.tempMin.v < th.TempLow {
			list = append(list, newAlert(models.AlertTempLow, date, label, key.station, "Temperatura Baixa",
				fmt.Sprintf("Mínima de <strong>%s °C</strong> registrada.", locale.Number(acc.tempMin.v, 1)), acc.tempMin.v))
		}
		if acc.humMin.ok && acc.humMin.v < th.HumidityLow {
			list = append(list, newAlert(models.AlertHumLow, date, label, key.station, "Umidade Baixa",
				fmt.Sprintf("Umidade relativa mínima de <strong>%s%%</strong>.", locale.Number(acc.humMin.v, 0)), acc.humMin.v))
		}
		if len(list) > 0 {
			byMonth[month] = append(byMonth[month], list...)
		}
	}

	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(months)))

	groups := make([]MonthGroup, 0, len(months))
	for _, m := range months {
		list := byMonth[m]
		sortByDateStation(list)
		groups = append(groups, MonthGroup{Month: m, Label: locale.MonthLabel(m), Alerts: list})
	}
	return groups
}
