package analysis

import (
	"database/sql"
	"fmt"

	"github.com/lox/climareport/internal/models"
)

type HourProfile struct {
	Hour      int      `json:"hour"`
	Label     string   `json:"label"`
	WindAvg   *float64 `json:"wind_avg_kph"`
	DeltaT    *float64 `json:"delta_t"`
	GFDI      *float64 `json:"gfdi"`
	Radiation *float64 `json:"radiation"`
	Temp      *float64 `json:"temp_avg_c"`
	Humidity  *float64 `json:"humidity_avg_pct"`
}

// HourOfDay averages rows into 24 UTC hour buckets. A bucket with no values
// for a metric reports nil.
func HourOfDay(rows []models.ObservationRow) []HourProfile {
	var wind, delta, gfdi, rad, temp, hum [24]stat
	for _, r := range rows {
		h := r.ObservedAt.UTC().Hour()
		wind[h].add(r.WindAvg)
		delta[h].add(r.DeltaT)
		gfdi[h].add(r.GFDI)
		rad[h].add(r.SolarRadiation)
		temp[h].add(r.TempAvg)
		hum[h].add(r.HumidityAvg)
	}
	out := make([]HourProfile, 24)
	for h := 0; h < 24; h++ {
		out[h] = HourProfile{
			Hour:      h,
			Label:     hourLabel(h),
			WindAvg:   wind[h].mean(),
			DeltaT:    delta[h].mean(),
			GFDI:      gfdi[h].mean(),
			Radiation: rad[h].mean(),
			Temp:      temp[h].mean(),
			Humidity:  hum[h].mean(),
		}
	}
	return out
}

func hourLabel(h int) string {
	return fmt.Sprintf("%02d:00", h)
}

type DayDetail struct {
	Date     string      `json:"date"`
	Hours    []string    `json:"hours"`
	Rain     []*float64  `json:"rain_mm"`
	Temp     []*float64  `json:"temp_c"`
	Humidity []*float64  `json:"humidity_pct"`
	Wind     []*float64  `json:"wind_kph"`
	DeltaT   []*float64  `json:"delta_t"`
	Rose     WindRose    `json:"wind_rose"`
	Spray    SprayWindow `json:"spray"`
}

// BuildDayDetail builds the hourly series for one UTC day (YYYY-MM-DD). Rain
// is summed per hour; the other series keep the last row seen in each hour.
// The second return is false when no row falls on day.
func BuildDayDetail(rows []models.ObservationRow, day string) (DayDetail, bool) {
	var dayRows []models.ObservationRow
	for _, r := range rows {
		if r.Day() == day {
			dayRows = append(dayRows, r)
		}
	}
	if len(dayRows) == 0 {
		return DayDetail{}, false
	}

	var seen [24]bool
	var rain [24]float64
	var temp, hum, wind, delta [24]sql.NullFloat64
	for _, r := range dayRows {
		h := r.ObservedAt.UTC().Hour()
		seen[h] = true
		if r.Precip.Valid {
			rain[h] += r.Precip.Float64
		}
		temp[h] = r.TempAvg
		hum[h] = r.HumidityAvg
		wind[h] = r.WindAvg
		delta[h] = r.DeltaT
	}

	d := DayDetail{
		Date:     day,
		Hours:    make([]string, 24),
		Rain:     make([]*float64, 24),
		Temp:     make([]*float64, 24),
		Humidity: make([]*float64, 24),
		Wind:     make([]*float64, 24),
		DeltaT:   make([]*float64, 24),
		Rose:     BuildWindRose(dayRows),
		Spray:    BuildSprayWindow(wind, delta),
	}
	for h := 0; h < 24; h++ {
		d.Hours[h] = hourLabel(h)
		if seen[h] {
			d.Rain[h] = ptr(rain[h])
		}
		d.Temp[h] = ptrOf(temp[h])
		d.Humidity[h] = ptrOf(hum[h])
		d.Wind[h] = ptrOf(wind[h])
		d.DeltaT[h] = ptrOf(delta[h])
	}
	return d, true
}
