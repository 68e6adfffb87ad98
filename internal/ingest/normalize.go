package ingest

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lox/climareport/internal/models"
)

// TimezoneCorrection is applied to every upstream timestamp after conversion
// to UTC. The history endpoint reports station-local times as if they were UTC.
const TimezoneCorrection = -4 * time.Hour

// FlexFloat decodes a JSON number or numeric string. Anything else, including
// null, decodes as missing without failing the surrounding record.
type FlexFloat struct {
	Value float64
	Valid bool
}

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	*f = FlexFloat{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		f.set(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			f.set(v)
		}
	}
	return nil
}

func (f *FlexFloat) set(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	f.Value = v
	f.Valid = true
}

func (f FlexFloat) Null() sql.NullFloat64 {
	return sql.NullFloat64{Float64: f.Value, Valid: f.Valid}
}

func (f FlexFloat) Ptr() *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// WindDirection accepts either a scalar or an object carrying an avg member.
type WindDirection struct {
	FlexFloat
}

func (w *WindDirection) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var nested struct {
			Avg FlexFloat `json:"avg"`
		}
		w.FlexFloat = FlexFloat{}
		if err := json.Unmarshal(data, &nested); err != nil {
			return nil
		}
		w.FlexFloat = nested.Avg
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		// Direction strings are not coerced.
		w.FlexFloat = FlexFloat{}
		return nil
	}
	return w.FlexFloat.UnmarshalJSON(data)
}

// GustSummary is the nested gust block; only the max is used.
type GustSummary struct {
	Max FlexFloat `json:"max"`
}

func (g *GustSummary) UnmarshalJSON(data []byte) error {
	*g = GustSummary{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil
	}
	var raw struct {
		Max FlexFloat `json:"max"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	g.Max = raw.Max
	return nil
}

// RawObservation is one record from the historical-summary-hourly endpoint.
type RawObservation struct {
	LocalTime       string          `json:"local_time"`
	TotalPrecip     FlexFloat       `json:"total_precip_mm"`
	AvgTemp         FlexFloat       `json:"avg_temp_c"`
	MinTemp         FlexFloat       `json:"min_temp_c"`
	MaxTemp         FlexFloat       `json:"max_temp_c"`
	AvgHumidity     FlexFloat       `json:"avg_relative_humidity"`
	MinHumidity     FlexFloat       `json:"min_relative_humidity"`
	MaxHumidity     FlexFloat       `json:"max_relative_humidity"`
	AvgWindSpeed    FlexFloat       `json:"avg_windspeed_kph"`
	WindGust        GustSummary     `json:"wind_gust_kph"`
	WindDirection   WindDirection   `json:"wind_direction_deg"`
	AvgDeltaT       FlexFloat       `json:"avgDeltaT"`
	AvgGFDI         FlexFloat       `json:"avgGFDI"`
	SolarRadiation  *FlexFloat      `json:"sumSolarRadiation"`
	solarRadPresent bool
}

func (r *RawObservation) UnmarshalJSON(data []byte) error {
	type plain RawObservation
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = RawObservation(p)

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err == nil {
		_, r.solarRadPresent = keys["sumSolarRadiation"]
		// Flattened exports carry the gust under a dotted key.
		if v, ok := keys["wind_gust_kph.max"]; ok && !r.WindGust.Max.Valid {
			r.WindGust.Max.UnmarshalJSON(v)
		}
	}
	return nil
}

// SolarRadiationValue applies the absent-key default: a record without the key
// reports 0.0, while an explicit null is missing.
func (r RawObservation) SolarRadiationValue() sql.NullFloat64 {
	if !r.solarRadPresent {
		return sql.NullFloat64{Float64: 0, Valid: true}
	}
	if r.SolarRadiation == nil {
		return sql.NullFloat64{}
	}
	return r.SolarRadiation.Null()
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseLocalTime parses an upstream timestamp and applies the timezone
// correction. Offset-aware values are converted to UTC first; naive values
// are treated as UTC.
func ParseLocalTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC().Add(TimezoneCorrection), nil
	}
	// Offsets without a colon, e.g. 2024-01-01T10:00:00-0400.
	if t, err := time.Parse("2006-01-02T15:04:05.999999999Z0700", s); err == nil {
		return t.UTC().Add(TimezoneCorrection), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.Add(TimezoneCorrection), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q", s)
}

// Normalize projects raw records onto the canonical row schema for one
// station. Records with unparseable timestamps are dropped; the count of
// dropped records is returned.
func Normalize(raw []RawObservation, station models.Station) ([]models.ObservationRow, int) {
	rows := make([]models.ObservationRow, 0, len(raw))
	dropped := 0
	for _, r := range raw {
		ts, err := ParseLocalTime(r.LocalTime)
		if err != nil {
			dropped++
			continue
		}
		rows = append(rows, models.ObservationRow{
			ObservedAt:     ts,
			StationID:      station.StationID,
			StationName:    station.Name,
			Precip:         r.TotalPrecip.Null(),
			TempAvg:        r.AvgTemp.Null(),
			TempMin:        r.MinTemp.Null(),
			TempMax:        r.MaxTemp.Null(),
			HumidityAvg:    r.AvgHumidity.Null(),
			HumidityMin:    r.MinHumidity.Null(),
			HumidityMax:    r.MaxHumidity.Null(),
			WindAvg:        r.AvgWindSpeed.Null(),
			WindGust:       r.WindGust.Max.Null(),
			WindDir:        r.WindDirection.Null(),
			DeltaT:         r.AvgDeltaT.Null(),
			GFDI:           r.AvgGFDI.Null(),
			SolarRadiation: r.SolarRadiationValue(),
		})
	}
	return rows, dropped
}
