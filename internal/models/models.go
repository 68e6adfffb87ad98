package models

import (
	"database/sql"
	"time"
)

type Station struct {
	StationID string  `json:"id_estacao"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ObservationRow is one cleaned hourly reading for one station.
// Invalid readings are stored as NULL rather than dropping the row.
type ObservationRow struct {
	ObservedAt     time.Time
	StationID      string
	StationName    string
	Precip         sql.NullFloat64
	TempAvg        sql.NullFloat64
	TempMin        sql.NullFloat64
	TempMax        sql.NullFloat64
	HumidityAvg    sql.NullFloat64
	HumidityMin    sql.NullFloat64
	HumidityMax    sql.NullFloat64
	WindAvg        sql.NullFloat64
	WindGust       sql.NullFloat64
	WindDir        sql.NullFloat64
	DeltaT         sql.NullFloat64
	GFDI           sql.NullFloat64
	SolarRadiation sql.NullFloat64
}

// Day returns the UTC calendar day of the row as YYYY-MM-DD.
func (r ObservationRow) Day() string {
	return r.ObservedAt.UTC().Format("2006-01-02")
}

// Month returns the UTC calendar month of the row as YYYY-MM.
func (r ObservationRow) Month() string {
	return r.ObservedAt.UTC().Format("2006-01")
}

type DailyForecast struct {
	ValidAt      time.Time `json:"fcst_valid"`
	Date         string    `json:"data"`
	Weekday      string    `json:"dia_semana"`
	TempMin      *float64  `json:"min_temp"`
	TempMax      *float64  `json:"max_temp"`
	Description  string    `json:"descricao"`
	PrecipChance float64   `json:"prob_precip"`
	PrecipAmount float64   `json:"qtd_precip"`
	WindSpeed    float64   `json:"vento_vel"`
	WindDir      string    `json:"vento_dir"`
}

type HourlyForecast struct {
	ValidLocal   string   `json:"fcst_valid_local"`
	Temp         *float64 `json:"temp"`
	Humidity     *float64 `json:"rh"`
	WindSpeed    *float64 `json:"wspd"`
	DeltaT       *float64 `json:"delta_t"`
	PrecipChance float64  `json:"pop"`
	PrecipAmount float64  `json:"qpf"`
	Spray        string   `json:"spray"`
}

// Forecasts holds every station's forecast keyed by station name.
type Forecasts struct {
	Daily  map[string][]DailyForecast  `json:"daily"`
	Hourly map[string][]HourlyForecast `json:"hourly"`
}

func NewForecasts() Forecasts {
	return Forecasts{
		Daily:  make(map[string][]DailyForecast),
		Hourly: make(map[string][]HourlyForecast),
	}
}

// Polygon is a single-ring polygon with [lat, lon] vertices, the order the map widget expects.
type Polygon struct {
	Type        string         `json:"type"`
	Coordinates [][][2]float64 `json:"coordinates"`
}

type FieldGeometry struct {
	FieldID  int64      `json:"field_id"`
	Name     string     `json:"field_name"`
	Centroid [2]float64 `json:"centroid"`
	Geometry Polygon    `json:"geometry"`
}

// GeoData is the geographic context embedded in the report page.
type GeoData struct {
	GrowerName string          `json:"grower_name"`
	Fields     []FieldGeometry `json:"fields"`
	Stations   []Station       `json:"stations"`
}

type AlertKind string

const (
	AlertRain     AlertKind = "rain"
	AlertGust     AlertKind = "gust"
	AlertTempHigh AlertKind = "temp_high"
	AlertTempLow  AlertKind = "temp_low"
	AlertHumLow   AlertKind = "hum_low"
	AlertDeltaT   AlertKind = "delta_t"
)

// Order is the display order of alert kinds within a single day and station.
func (k AlertKind) Order() int {
	switch k {
	case AlertRain:
		return 0
	case AlertGust:
		return 1
	case AlertTempHigh:
		return 2
	case AlertTempLow:
		return 3
	case AlertHumLow:
		return 4
	default:
		return 5
	}
}

type Alert struct {
	Kind        AlertKind `json:"type"`
	Date        time.Time `json:"-"`
	DateLabel   string    `json:"date"`
	Station     string    `json:"station"`
	Icon        string    `json:"icon"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Value       float64   `json:"value"`
	Hours       []int     `json:"hours,omitempty"`
}
