package analysis

import (
	"time"

	"github.com/lox/climareport/internal/models"
)

// RainyDayThreshold is the per-station mean rainfall (mm) above which a day counts as rainy.
const RainyDayThreshold = 1.0

type KPIs struct {
	RainAccumulated    float64  `json:"rain_accumulated_mm"`
	RainDailyMean      float64  `json:"rain_daily_mean_mm"`
	RainMax24h         float64  `json:"rain_max_24h_mm"`
	RainyDays          int      `json:"rainy_days"`
	TempMax            *float64 `json:"temp_max_c"`
	TempMean           *float64 `json:"temp_mean_c"`
	TempMin            *float64 `json:"temp_min_c"`
	HumidityMax        *float64 `json:"humidity_max_pct"`
	HumidityMean       *float64 `json:"humidity_mean_pct"`
	HumidityMin        *float64 `json:"humidity_min_pct"`
	WindMean           *float64 `json:"wind_mean_kph"`
	GustMax            *float64 `json:"gust_max_kph"`
	RadiationTotal     float64  `json:"radiation_total"`
	RadiationDailyMean float64  `json:"radiation_daily_mean"`
	RadiationPeak      float64  `json:"radiation_peak"`
}

// ComputeKPIs summarises the filtered rows and their daily rollup. Radiation
// figures only consider data on or after radiationSince; a zero value
// includes everything.
func ComputeKPIs(rows []models.ObservationRow, daily []Daily, radiationSince time.Time) KPIs {
	var k KPIs

	byStation := make(map[string]float64)
	for _, r := range rows {
		if r.Precip.Valid && r.Precip.Float64 > 0 {
			byStation[r.StationName] += r.Precip.Float64
		}
	}
	if len(byStation) > 0 {
		var sum float64
		for _, v := range byStation {
			sum += v
		}
		k.RainAccumulated = sum / float64(len(byStation))
	}

	var meanSum float64
	var tempMax, tempMean, tempMin, humMax, humMean, humMin stat
	for _, d := range daily {
		meanSum += d.PrecipMean
		if d.PrecipMean > RainyDayThreshold {
			k.RainyDays++
		}
		for _, v := range d.PrecipByStation {
			if v > k.RainMax24h {
				k.RainMax24h = v
			}
		}
		if d.TempAvg != nil {
			tempMean.addValue(*d.TempAvg)
			tempMax.addPtr(d.TempMax)
			tempMin.addPtr(d.TempMin)
		}
		if d.HumidityAvg != nil {
			humMean.addValue(*d.HumidityAvg)
			humMax.addPtr(d.HumidityMax)
			humMin.addPtr(d.HumidityMin)
		}
	}
	days := len(daily)
	if days == 0 {
		days = 1
	}
	k.RainDailyMean = meanSum / float64(days)
	k.TempMax, k.TempMean, k.TempMin = tempMax.maximum(), tempMean.mean(), tempMin.minimum()
	k.HumidityMax, k.HumidityMean, k.HumidityMin = humMax.maximum(), humMean.mean(), humMin.minimum()

	var wind, gust stat
	for _, r := range rows {
		wind.add(r.WindAvg)
		gust.add(r.WindGust)
	}
	k.WindMean = wind.mean()
	k.GustMax = gust.maximum()

	since := ""
	if !radiationSince.IsZero() {
		since = radiationSince.UTC().Format("2006-01-02")
	}
	radDays := 0
	for _, d := range daily {
		if d.Day >= since {
			k.RadiationTotal += d.Radiation
			radDays++
		}
	}
	if radDays > 0 {
		k.RadiationDailyMean = k.RadiationTotal / float64(radDays)
	}
	for _, r := range rows {
		if !radiationSince.IsZero() && r.ObservedAt.Before(radiationSince) {
			continue
		}
		if r.SolarRadiation.Valid && r.SolarRadiation.Float64 > k.RadiationPeak {
			k.RadiationPeak = r.SolarRadiation.Float64
		}
	}
	return k
}
