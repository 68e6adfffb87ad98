package geo

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/lox/climareport/internal/locale"
	"github.com/lox/climareport/internal/models"
)

type Aggregation string

const (
	AggSum Aggregation = "sum"
	AggAvg Aggregation = "avg"
	AggMax Aggregation = "max"
)

// NoDataColor is used for fields without an estimate.
const NoDataColor = "grey"

type Metric struct {
	Key    string      `json:"key"`
	Label  string      `json:"label"`
	Unit   string      `json:"unit"`
	Agg    Aggregation `json:"agg"`
	Colors []string    `json:"colors"`
	value  func(models.ObservationRow) sql.NullFloat64
}

// MetricOrder is the selector order of map metrics.
var MetricOrder = []string{"chuva", "temp_media", "umidade_media", "vento_medio", "rajada_max"}

var Metrics = map[string]Metric{
	"chuva": {
		Key: "chuva", Label: "Chuva Acumulada", Unit: "mm", Agg: AggSum,
		Colors: []string{"#f7fbff", "#deebf7", "#c6dbef", "#9ecae1", "#6baed6", "#4292c6", "#2171b5", "#08519c", "#08306b"},
		value:  func(r models.ObservationRow) sql.NullFloat64 { return r.Precip },
	},
	"temp_media": {
		Key: "temp_media", Label: "Temperatura Média", Unit: "°C", Agg: AggAvg,
		Colors: []string{"#fff5f0", "#fee0d2", "#fcbba1", "#fc9272", "#fb6a4a", "#ef3b2c", "#cb181d", "#a50f15", "#67000d"},
		value:  func(r models.ObservationRow) sql.NullFloat64 { return r.TempAvg },
	},
	"umidade_media": {
		Key: "umidade_media", Label: "Umidade Média", Unit: "%", Agg: AggAvg,
		Colors: []string{"#f7fcf5", "#e5f5e0", "#c7e9c0", "#a1d99b", "#74c476", "#41ab5d", "#238b45", "#006d2c", "#00441b"},
		value:  func(r models.ObservationRow) sql.NullFloat64 { return r.HumidityAvg },
	},
	"vento_medio": {
		Key: "vento_medio", Label: "Vento Médio", Unit: "km/h", Agg: AggAvg,
		Colors: []string{"#fcfbfd", "#efedf5", "#dadaeb", "#bcbddc", "#9e9ac8", "#807dba", "#6a51a3", "#54278f", "#3f007d"},
		value:  func(r models.ObservationRow) sql.NullFloat64 { return r.WindAvg },
	},
	"rajada_max": {
		Key: "rajada_max", Label: "Rajada Máxima", Unit: "km/h", Agg: AggMax,
		Colors: []string{"#ffffe5", "#fff7bc", "#fee391", "#fec44f", "#fe9929", "#ec7014", "#cc4c02", "#993404", "#662506"},
		value:  func(r models.ObservationRow) sql.NullFloat64 { return r.WindGust },
	},
}

// ColorScale maps values in [min, max] onto colors. Values at or beyond the
// ends take the end colours; a degenerate range uses the middle colour.
func ColorScale(min, max float64, colors []string) func(float64) string {
	return func(v float64) string {
		if len(colors) == 0 {
			return NoDataColor
		}
		if v <= min {
			return colors[0]
		}
		if v >= max {
			return colors[len(colors)-1]
		}
		r := max - min
		if r < 1e-9 {
			return colors[len(colors)/2]
		}
		p := (v - min) / r
		i := int(math.Floor(p * float64(len(colors))))
		if i > len(colors)-1 {
			i = len(colors) - 1
		}
		return colors[i]
	}
}

type StationValue struct {
	Name  string   `json:"name"`
	Lat   float64  `json:"lat"`
	Lon   float64  `json:"lon"`
	Value *float64 `json:"value"`
	Popup string   `json:"popup"`
}

type FieldValue struct {
	FieldID int64    `json:"field_id"`
	Name    string   `json:"field_name"`
	Value   *float64 `json:"value"`
	Color   string   `json:"color"`
	Popup   string   `json:"popup"`
}

type LegendGrade struct {
	Color string `json:"color"`
	Label string `json:"label"`
}

type Layer struct {
	Metric   string         `json:"metric"`
	Label    string         `json:"label"`
	Unit     string         `json:"unit"`
	Period   string         `json:"period"`
	Min      float64        `json:"min"`
	Max      float64        `json:"max"`
	Stations []StationValue `json:"stations"`
	Fields   []FieldValue   `json:"fields"`
	Legend   []LegendGrade  `json:"legend"`
}

// StationAggregates reduces each station's rows to one value for the metric.
// Stations without any defined value are omitted from the samples but still
// listed with a nil value.
func StationAggregates(m Metric, rows []models.ObservationRow, stations []models.Station) ([]StationValue, []Sample) {
	values := make(map[string][]float64, len(stations))
	for _, r := range rows {
		if v := m.value(r); v.Valid {
			values[r.StationName] = append(values[r.StationName], v.Float64)
		}
	}

	out := make([]StationValue, 0, len(stations))
	var samples []Sample
	for _, st := range stations {
		sv := StationValue{Name: st.Name, Lat: st.Latitude, Lon: st.Longitude}
		if vals := values[st.Name]; len(vals) > 0 {
			agg := aggregate(m.Agg, vals)
			sv.Value = &agg
			sv.Popup = fmt.Sprintf("<b>Estação: %s</b><br>%s: %s %s", st.Name, m.Label, locale.Number(agg, 1), m.Unit)
			samples = append(samples, Sample{Lat: st.Latitude, Lon: st.Longitude, Value: agg})
		}
		out = append(out, sv)
	}
	return out, samples
}

func aggregate(agg Aggregation, vals []float64) float64 {
	switch agg {
	case AggSum:
		var s float64
		for _, v := range vals {
			s += v
		}
		return s
	case AggMax:
		m := vals[0]
		for _, v := range vals[1:] {
			if v > m {
				m = v
			}
		}
		return m
	default:
		var s float64
		for _, v := range vals {
			s += v
		}
		return s / float64(len(vals))
	}
}

// BuildLayer interpolates the metric at every field centroid from rows that
// are already restricted to the date range. Fields are coloured between the
// smallest and largest field estimate.
func BuildLayer(metric string, rows []models.ObservationRow, stations []models.Station, fields []models.FieldGeometry, start, end time.Time) (Layer, error) {
	m, ok := Metrics[metric]
	if !ok {
		return Layer{}, fmt.Errorf("unknown map metric %q", metric)
	}
	layer := Layer{
		Metric: m.Key,
		Label:  m.Label,
		Unit:   m.Unit,
		Fields: make([]FieldValue, 0, len(fields)),
	}
	if !start.IsZero() && !end.IsZero() {
		layer.Period = fmt.Sprintf("Período: %s a %s", locale.Date(start), locale.Date(end))
	}

	var samples []Sample
	layer.Stations, samples = StationAggregates(m, rows, stations)

	estimates := make([]*float64, len(fields))
	var have []float64
	for i, f := range fields {
		if v, ok := IDW(f.Centroid[0], f.Centroid[1], samples); ok {
			estimates[i] = &v
			have = append(have, v)
		}
	}
	if len(have) > 0 {
		layer.Min, layer.Max = have[0], have[0]
		for _, v := range have[1:] {
			layer.Min = math.Min(layer.Min, v)
			layer.Max = math.Max(layer.Max, v)
		}
	}
	scale := ColorScale(layer.Min, layer.Max, m.Colors)

	for i, f := range fields {
		fv := FieldValue{FieldID: f.FieldID, Name: f.Name, Value: estimates[i], Color: NoDataColor}
		if estimates[i] != nil {
			fv.Color = scale(*estimates[i])
		}
		fv.Popup = fmt.Sprintf("<b>Talhão: %s</b><br>%s (estimado): %s %s", f.Name, m.Label, locale.NumberPtr(estimates[i], 1), m.Unit)
		layer.Fields = append(layer.Fields, fv)
	}
	layer.Legend = legend(layer.Min, layer.Max, scale, m.Unit)
	return layer, nil
}

func legend(min, max float64, scale func(float64) string, unit string) []LegendGrade {
	step := (max - min) / 5
	if step < 1e-9 || min == max {
		return []LegendGrade{{Color: scale(min), Label: fmt.Sprintf("%s %s", locale.Number(min, 1), unit)}}
	}
	grades := make([]LegendGrade, 0, 5)
	for i := 0; i < 5; i++ {
		from := min + float64(i)*step
		to := min + float64(i+1)*step
		grades = append(grades, LegendGrade{
			Color: scale(from + step/2),
			Label: fmt.Sprintf("%s – %s %s", locale.Number(from, 1), locale.Number(to, 1), unit),
		})
	}
	return grades
}
