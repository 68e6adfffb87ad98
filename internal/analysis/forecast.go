package analysis

import (
	"sort"

	"github.com/lox/climareport/internal/models"
)

// AverageLabel is the pseudo-station name for the cross-station forecast average.
const AverageLabel = "Média Geral"

// forecastStations lists the stations of m, those named in order first and
// the rest sorted by name.
func forecastStations[T any](m map[string][]T, order []string) []string {
	names := make([]string, 0, len(m))
	seen := make(map[string]bool, len(m))
	for _, name := range order {
		if _, ok := m[name]; ok && !seen[name] {
			names = append(names, name)
			seen[name] = true
		}
	}
	var rest []string
	for name := range m {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// AverageDaily averages every numeric field per horizon index across
// stations. Text fields come from the first station in order and the horizon
// length follows that station too.
func AverageDaily(daily map[string][]models.DailyForecast, order []string) []models.DailyForecast {
	names := forecastStations(daily, order)
	if len(names) == 0 {
		return []models.DailyForecast{}
	}
	template := daily[names[0]]
	out := make([]models.DailyForecast, len(template))
	for i := range template {
		var tmin, tmax, pop, qpf, wspd stat
		for _, name := range names {
			entries := daily[name]
			if i >= len(entries) {
				continue
			}
			e := entries[i]
			tmin.addPtr(e.TempMin)
			tmax.addPtr(e.TempMax)
			pop.addValue(e.PrecipChance)
			qpf.addValue(e.PrecipAmount)
			wspd.addValue(e.WindSpeed)
		}
		avg := template[i]
		if v := tmin.mean(); v != nil {
			avg.TempMin = v
		}
		if v := tmax.mean(); v != nil {
			avg.TempMax = v
		}
		avg.PrecipChance = *pop.mean()
		avg.PrecipAmount = *qpf.mean()
		avg.WindSpeed = *wspd.mean()
		out[i] = avg
	}
	return out
}

// AverageHourly is AverageDaily for hourly forecasts. The spray condition is
// reclassified from the averaged wind and delta-T.
func AverageHourly(hourly map[string][]models.HourlyForecast, order []string) []models.HourlyForecast {
	names := forecastStations(hourly, order)
	if len(names) == 0 {
		return []models.HourlyForecast{}
	}
	template := hourly[names[0]]
	out := make([]models.HourlyForecast, len(template))
	for i := range template {
		var temp, rh, wspd, dt, pop, qpf stat
		for _, name := range names {
			entries := hourly[name]
			if i >= len(entries) {
				continue
			}
			e := entries[i]
			temp.addPtr(e.Temp)
			rh.addPtr(e.Humidity)
			wspd.addPtr(e.WindSpeed)
			dt.addPtr(e.DeltaT)
			pop.addValue(e.PrecipChance)
			qpf.addValue(e.PrecipAmount)
		}
		avg := template[i]
		if v := temp.mean(); v != nil {
			avg.Temp = v
		}
		if v := rh.mean(); v != nil {
			avg.Humidity = v
		}
		if v := wspd.mean(); v != nil {
			avg.WindSpeed = v
		}
		if v := dt.mean(); v != nil {
			avg.DeltaT = v
		}
		avg.PrecipChance = *pop.mean()
		avg.PrecipAmount = *qpf.mean()
		avg.Spray = string(ClassifySprayPtr(avg.WindSpeed, avg.DeltaT))
		out[i] = avg
	}
	return out
}

// ClassifyHourly fills in the spray condition of each hourly forecast.
func ClassifyHourly(hourly []models.HourlyForecast) {
	for i := range hourly {
		hourly[i].Spray = string(ClassifySprayPtr(hourly[i].WindSpeed, hourly[i].DeltaT))
	}
}
