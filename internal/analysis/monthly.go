package analysis

import (
	"sort"

	"github.com/lox/climareport/internal/models"
)

type Monthly struct {
	Month           string             `json:"month"`
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
	Spray           SprayShares        `json:"spray"`
}

type monthlyAcc struct {
	precip     map[string]float64
	precipMean float64
	tempMin    stat
	tempMax    stat
	tempAvg    stat
	humMin     stat
	humMax     stat
	humAvg     stat
	wind       stat
	gust       stat
	radiation  float64
	spray      sprayCounter
}

// MonthlyRollup groups daily rollups by month. Wind and spray shares come
// from the month's hourly rows rather than from daily values.
func MonthlyRollup(daily []Daily, rows []models.ObservationRow) []Monthly {
	months := make(map[string]*monthlyAcc)
	get := func(key string) *monthlyAcc {
		acc, ok := months[key]
		if !ok {
			acc = &monthlyAcc{precip: make(map[string]float64), spray: make(sprayCounter)}
			months[key] = acc
		}
		return acc
	}

	for _, d := range daily {
		acc := get(d.Day[:7])
		for station, v := range d.PrecipByStation {
			acc.precip[station] += v
		}
		acc.precipMean += d.PrecipMean
		acc.tempMin.addPtr(d.TempMin)
		acc.tempMax.addPtr(d.TempMax)
		acc.tempAvg.addPtr(d.TempAvg)
		acc.humMin.addPtr(d.HumidityMin)
		acc.humMax.addPtr(d.HumidityMax)
		acc.humAvg.addPtr(d.HumidityAvg)
		acc.gust.addPtr(d.GustMax)
		acc.radiation += d.Radiation
	}
	for _, r := range rows {
		acc := get(r.Month())
		acc.wind.add(r.WindAvg)
		acc.spray[ClassifySpray(r.WindAvg, r.DeltaT)]++
	}

	keys := make([]string, 0, len(months))
	for k := range months {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Monthly, 0, len(keys))
	for _, k := range keys {
		acc := months[k]
		var total float64
		for _, v := range acc.precip {
			total += v
		}
		out = append(out, Monthly{
			Month:           k,
			PrecipByStation: acc.precip,
			Precip:          total,
			PrecipMean:      acc.precipMean,
			TempMin:         acc.tempMin.minimum(),
			TempMax:         acc.tempMax.maximum(),
			TempAvg:         acc.tempAvg.mean(),
			HumidityMin:     acc.humMin.minimum(),
			HumidityMax:     acc.humMax.maximum(),
			HumidityAvg:     acc.humAvg.mean(),
			WindAvg:         acc.wind.mean(),
			GustMax:         acc.gust.maximum(),
			Radiation:       acc.radiation,
			Spray:           acc.spray.shares(),
		})
	}
	return out
}
