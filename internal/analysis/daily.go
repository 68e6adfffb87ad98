package analysis

import (
	"sort"

	"github.com/lox/climareport/internal/models"
)

type Daily struct {
	Day             string             `json:"date"`
	PrecipByStation map[string]float64 `json:"precip_by_station"`
	Precip          float64            `json:"precip_mm"`
	PrecipMean      float64            `json:"precip_mean_mm"`
	TempMin         *float64           `json:"temp_min_c"`
	TempMax         *float64           `json:"temp_max_c"`
	TempAvg         *float64           `json:"temp_avg_c"`
	HumidityMin     *float64           `json:"humidity_min_pct"`
	HumidityMax     *float64           `json:"humidity_max_pct"`
	HumidityAvg     *float64           `json:"humidity_avg_pct"`
	WindAvg         *float64           `json:"wind_avg_kph"`
	GustMax         *float64           `json:"gust_max_kph"`
	Radiation       float64            `json:"radiation_total"`
}

type dailyAcc struct {
	precip    map[string]float64
	tempMin   stat
	tempMax   stat
	tempAvg   stat
	humMin    stat
	humMax    stat
	humAvg    stat
	wind      stat
	gust      stat
	radiation float64
}

// DailyRollup groups rows by UTC calendar day. Only positive precipitation
// counts toward a station's daily total; the per-station mean divides the
// day's total by divisor.
func DailyRollup(rows []models.ObservationRow, divisor int) []Daily {
	if divisor < 1 {
		divisor = 1
	}
	days := make(map[string]*dailyAcc)
	for _, r := range rows {
		day := r.Day()
		acc, ok := days[day]
		if !ok {
			acc = &dailyAcc{precip: make(map[string]float64)}
			days[day] = acc
		}
		if r.Precip.Valid && r.Precip.Float64 > 0 {
			acc.precip[r.StationName] += r.Precip.Float64
		}
		acc.tempMin.add(r.TempMin)
		acc.tempMax.add(r.TempMax)
		acc.tempAvg.add(r.TempAvg)
		acc.humMin.add(r.HumidityMin)
		acc.humMax.add(r.HumidityMax)
		acc.humAvg.add(r.HumidityAvg)
		acc.wind.add(r.WindAvg)
		acc.gust.add(r.WindGust)
		if r.SolarRadiation.Valid {
			acc.radiation += r.SolarRadiation.Float64
		}
	}

	keys := make([]string, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Daily, 0, len(keys))
	for _, k := range keys {
		acc := days[k]
		var total float64
		for _, v := range acc.precip {
			total += v
		}
		out = append(out, Daily{
			Day:             k,
			PrecipByStation: acc.precip,
			Precip:          total,
			PrecipMean:      total / float64(divisor),
			TempMin:         acc.tempMin.minimum(),
			TempMax:         acc.tempMax.maximum(),
			TempAvg:         acc.tempAvg.mean(),
			HumidityMin:     acc.humMin.minimum(),
			HumidityMax:     acc.humMax.maximum(),
			HumidityAvg:     acc.humAvg.mean(),
			WindAvg:         acc.wind.mean(),
			GustMax:         acc.gust.maximum(),
			Radiation:       acc.radiation,
		})
	}
	return out
}
