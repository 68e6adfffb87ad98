package analysis

import (
	"database/sql"
)

type SprayCondition string

const (
	SprayIdeal     SprayCondition = "Ideal"
	SprayAttention SprayCondition = "Atenção"
	SprayAvoid     SprayCondition = "Evitar"
	SprayNoData    SprayCondition = "NoData"
)

const (
	sprayWindLow    = 2.0
	sprayWindIdeal  = 8.0
	sprayWindHigh   = 9.0
	sprayDeltaLow   = 2.0
	sprayDeltaHigh  = 10.0
	restrictionMinN = 3
)

// ClassifySpray rates an hour for spraying from wind speed (km/h) and delta-T (°C).
func ClassifySpray(wind, deltaT sql.NullFloat64) SprayCondition {
	if !wind.Valid || !deltaT.Valid {
		return SprayNoData
	}
	w, dt := wind.Float64, deltaT.Float64
	if w > sprayWindHigh || dt > sprayDeltaHigh {
		return SprayAvoid
	}
	if w >= sprayWindLow && w <= sprayWindIdeal && dt >= sprayDeltaLow && dt <= sprayDeltaHigh {
		return SprayIdeal
	}
	return SprayAttention
}

func ClassifySprayPtr(wind, deltaT *float64) SprayCondition {
	return ClassifySpray(nullOf(wind), nullOf(deltaT))
}

// Restriction names, in tie-break order: on equal counts the later one wins.
const (
	RestrictionWindLow   = "wind_low"
	RestrictionWindHigh  = "wind_high"
	RestrictionDeltaLow  = "delta_low"
	RestrictionDeltaHigh = "delta_high"
)

var restrictionOrder = []string{RestrictionWindLow, RestrictionWindHigh, RestrictionDeltaLow, RestrictionDeltaHigh}

var restrictionMessages = map[string]string{
	RestrictionWindHigh:  "Principal restrição do dia: Vento forte (>9 km/h).",
	RestrictionDeltaHigh: "Principal restrição do dia: Delta T elevado (>10°C), alto risco de evaporação.",
	RestrictionDeltaLow:  "Principal restrição do dia: Delta T baixo (<2°C), risco de escorrimento.",
	RestrictionWindLow:   "Atenção: Períodos de vento muito baixo (<2 km/h), risco de inversão térmica.",
}

const sprayDefaultSummary = "Condições ideais na maior parte do dia."

type SprayHour struct {
	Hour      int            `json:"hour"`
	Wind      *float64       `json:"wind_kph"`
	DeltaT    *float64       `json:"delta_t"`
	Condition SprayCondition `json:"condition"`
}

type SprayWindow struct {
	Hours       []SprayHour    `json:"hours"`
	Counts      map[string]int `json:"counts"`
	Restriction string         `json:"restriction,omitempty"`
	Summary     string         `json:"summary"`
}

// BuildSprayWindow classifies 24 hourly slots and names the day's main
// restriction. Restrictions are counted over Evitar and Atenção hours only and
// reported when the leading count exceeds three.
func BuildSprayWindow(wind, deltaT [24]sql.NullFloat64) SprayWindow {
	w := SprayWindow{
		Hours:   make([]SprayHour, 24),
		Counts:  make(map[string]int, len(restrictionOrder)),
		Summary: sprayDefaultSummary,
	}
	for _, k := range restrictionOrder {
		w.Counts[k] = 0
	}
	for h := 0; h < 24; h++ {
		cond := ClassifySpray(wind[h], deltaT[h])
		w.Hours[h] = SprayHour{Hour: h, Wind: ptrOf(wind[h]), DeltaT: ptrOf(deltaT[h]), Condition: cond}
		if cond != SprayAvoid && cond != SprayAttention {
			continue
		}
		ws, dt := wind[h].Float64, deltaT[h].Float64
		if ws < sprayWindLow {
			w.Counts[RestrictionWindLow]++
		}
		if ws > sprayWindHigh {
			w.Counts[RestrictionWindHigh]++
		}
		if dt < sprayDeltaLow {
			w.Counts[RestrictionDeltaLow]++
		}
		if dt > sprayDeltaHigh {
			w.Counts[RestrictionDeltaHigh]++
		}
	}

	top := restrictionOrder[0]
	for _, k := range restrictionOrder[1:] {
		if w.Counts[k] >= w.Counts[top] {
			top = k
		}
	}
	if w.Counts[top] > restrictionMinN {
		w.Restriction = top
		w.Summary = restrictionMessages[top]
	}
	return w
}

// SprayShares are percentages of classified hours; NoData hours are excluded.
type SprayShares struct {
	Ideal     float64 `json:"ideal"`
	Attention float64 `json:"attention"`
	Avoid     float64 `json:"avoid"`
}

type sprayCounter map[SprayCondition]int

func (c sprayCounter) shares() SprayShares {
	classified := c[SprayIdeal] + c[SprayAttention] + c[SprayAvoid]
	return SprayShares{
		Ideal:     percent(c[SprayIdeal], classified),
		Attention: percent(c[SprayAttention], classified),
		Avoid:     percent(c[SprayAvoid], classified),
	}
}
