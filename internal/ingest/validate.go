package ingest

import (
	"database/sql"
	"sort"

	"github.com/lox/climareport/internal/models"
)

const (
	RuleTemperature = "temperature_invalid"
	RuleHumidity    = "humidity_invalid"
	RuleWind        = "wind_unlikely"
	RuleRegionCold  = "region_cold"
)

const (
	MaxPlausibleTemp = 50.0
	MaxPlausibleWind = 150.0
	MinRegionTemp    = 10.0
)

// Region is an inclusive lat/lon bounding box.
type Region struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// MatoGrosso is the default region for the cold-reading rule.
var MatoGrosso = Region{MinLat: -18.2, MaxLat: -7.5, MinLon: -61.8, MaxLon: -50.0}

func (r Region) Contains(lat, lon float64) bool {
	return lat >= r.MinLat && lat <= r.MaxLat && lon >= r.MinLon && lon <= r.MaxLon
}

// Rule nulls a group of fields on rows matching its predicate.
type Rule struct {
	Name  string
	Match func(st models.Station, row *models.ObservationRow) bool
	Clear func(row *models.ObservationRow)
}

type Validator struct {
	rules []Rule
}

// NewValidator returns the standard rule chain. Rules run in order and each
// sees the effect of the ones before it.
func NewValidator(region Region) *Validator {
	return &Validator{rules: []Rule{
		{
			Name: RuleTemperature,
			Match: func(_ models.Station, r *models.ObservationRow) bool {
				return gt(r.TempAvg, MaxPlausibleTemp) || eq(r.TempAvg, 0) || eq(r.TempAvg, 1)
			},
			Clear: func(r *models.ObservationRow) {
				clearTemps(r)
				r.DeltaT = sql.NullFloat64{}
				r.GFDI = sql.NullFloat64{}
			},
		},
		{
			Name: RuleHumidity,
			Match: func(_ models.Station, r *models.ObservationRow) bool {
				return eq(r.HumidityAvg, 0) || eq(r.HumidityMin, 0) || eq(r.HumidityMax, 0)
			},
			Clear: func(r *models.ObservationRow) {
				r.HumidityAvg = sql.NullFloat64{}
				r.HumidityMin = sql.NullFloat64{}
				r.HumidityMax = sql.NullFloat64{}
				r.DeltaT = sql.NullFloat64{}
				r.GFDI = sql.NullFloat64{}
			},
		},
		{
			Name: RuleWind,
			Match: func(_ models.Station, r *models.ObservationRow) bool {
				return gt(r.WindAvg, MaxPlausibleWind) || gt(r.WindGust, MaxPlausibleWind)
			},
			Clear: func(r *models.ObservationRow) {
				r.WindAvg = sql.NullFloat64{}
				r.WindGust = sql.NullFloat64{}
			},
		},
		{
			Name: RuleRegionCold,
			Match: func(st models.Station, r *models.ObservationRow) bool {
				return region.Contains(st.Latitude, st.Longitude) && r.TempAvg.Valid && r.TempAvg.Float64 < MinRegionTemp
			},
			Clear: clearTemps,
		},
	}}
}

// Rules returns the rule names in evaluation order.
func (v *Validator) Rules() []string {
	names := make([]string, len(v.rules))
	for i, r := range v.rules {
		names[i] = r.Name
	}
	return names
}

type ValidationStats struct {
	Nulled  map[string]int
	Dropped int
	Kept    int
}

// Validate applies every rule to every row, then drops rows that are left
// without an average temperature or average humidity.
func (v *Validator) Validate(st models.Station, rows []models.ObservationRow) ([]models.ObservationRow, ValidationStats) {
	stats := ValidationStats{Nulled: make(map[string]int)}
	kept := make([]models.ObservationRow, 0, len(rows))
	for i := range rows {
		row := rows[i]
		for _, rule := range v.rules {
			if rule.Match(st, &row) {
				rule.Clear(&row)
				stats.Nulled[rule.Name]++
			}
		}
		if !row.TempAvg.Valid || !row.HumidityAvg.Valid {
			stats.Dropped++
			continue
		}
		kept = append(kept, row)
	}
	stats.Kept = len(kept)
	return kept, stats
}

// SortRows orders rows by timestamp. Rows with equal timestamps keep their
// relative order.
func SortRows(rows []models.ObservationRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].ObservedAt.Before(rows[j].ObservedAt)
	})
}

func clearTemps(r *models.ObservationRow) {
	r.TempAvg = sql.NullFloat64{}
	r.TempMin = sql.NullFloat64{}
	r.TempMax = sql.NullFloat64{}
}

func eq(v sql.NullFloat64, x float64) bool {
	return v.Valid && v.Float64 == x
}

func gt(v sql.NullFloat64, x float64) bool {
	return v.Valid && v.Float64 > x
}
