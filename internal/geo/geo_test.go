package geo

import (
	"database/sql"
	"math"
	"testing"
	"time"

	"github.com/lox/climareport/internal/models"
)

func TestHaversine(t *testing.T) {
	if d := Haversine(-12.4, -55.7, -12.4, -55.7); d != 0 {
		t.Errorf("expected zero distance, got %v", d)
	}
	// One degree of latitude is about 111.19 km on a 6371 km sphere.
	d := Haversine(0, 0, 1, 0)
	if math.Abs(d-111.19) > 0.01 {
		t.Errorf("expected ~111.19km, got %v", d)
	}
	if math.Abs(Haversine(-12, -55, -13, -56)-Haversine(-13, -56, -12, -55)) > 1e-9 {
		t.Error("expected symmetric distance")
	}
}

func TestIDW(t *testing.T) {
	t.Run("coincident station returns its value", func(t *testing.T) {
		samples := []Sample{{Lat: -12.4, Lon: -55.7, Value: 42}, {Lat: -12.5, Lon: -55.8, Value: 0}}
		got, ok := IDW(-12.4, -55.7, samples)
		if !ok || got != 42 {
			t.Errorf("expected 42, got %v (%v)", got, ok)
		}
	})

	t.Run("equidistant stations average", func(t *testing.T) {
		samples := []Sample{{Lat: 0, Lon: 1, Value: 10}, {Lat: 0, Lon: -1, Value: 20}}
		got, ok := IDW(0, 0, samples)
		if !ok || math.Abs(got-15) > 1e-9 {
			t.Errorf("expected 15, got %v", got)
		}
	})

	t.Run("closer station weighs more", func(t *testing.T) {
		samples := []Sample{{Lat: 0, Lon: 0.1, Value: 10}, {Lat: 0, Lon: -1, Value: 20}}
		got, _ := IDW(0, 0, samples)
		if got >= 15 || got <= 10 {
			t.Errorf("expected estimate pulled toward 10, got %v", got)
		}
	})

	t.Run("no stations is undefined", func(t *testing.T) {
		got, ok := IDW(0, 0, nil)
		if ok || !math.IsNaN(got) {
			t.Errorf("expected undefined, got %v (%v)", got, ok)
		}
	})
}

func TestColorScale(t *testing.T) {
	colors := []string{"c0", "c1", "c2", "c3", "c4", "c5", "c6", "c7", "c8"}
	scale := ColorScale(0, 90, colors)
	tests := []struct {
		v    float64
		want string
	}{
		{-5, "c0"},
		{0, "c0"},
		{9.99, "c0"},
		{10.5, "c1"},
		{45, "c4"},
		{89.9, "c8"},
		{90, "c8"},
		{200, "c8"},
	}
	for _, tt := range tests {
		if got := scale(tt.v); got != tt.want {
			t.Errorf("scale(%v) = %s, want %s", tt.v, got, tt.want)
		}
	}

	flat := ColorScale(5, 5, colors)
	if got := flat(5); got != "c0" {
		t.Errorf("expected value at min to take the first colour, got %s", got)
	}
}

func TestBuildLayer(t *testing.T) {
	stations := []models.Station{
		{Name: "A", Latitude: 0, Longitude: 1},
		{Name: "B", Latitude: 0, Longitude: -1},
		{Name: "C", Latitude: 5, Longitude: 5},
	}
	rows := []models.ObservationRow{
		{StationName: "A", Precip: sql.NullFloat64{Float64: 4, Valid: true}},
		{StationName: "A", Precip: sql.NullFloat64{Float64: 6, Valid: true}},
		{StationName: "B", Precip: sql.NullFloat64{Float64: 20, Valid: true}},
		{StationName: "C"},
	}
	fields := []models.FieldGeometry{
		{FieldID: 1, Name: "Talhão 1", Centroid: [2]float64{0, 0}},
		{FieldID: 2, Name: "Talhão 2", Centroid: [2]float64{0, 1}},
	}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	layer, err := BuildLayer("chuva", rows, stations, fields, start, start)
	if err != nil {
		t.Fatalf("BuildLayer: %v", err)
	}
	if *layer.Stations[0].Value != 10 || *layer.Stations[1].Value != 20 {
		t.Errorf("expected summed station values, got %v %v", *layer.Stations[0].Value, *layer.Stations[1].Value)
	}
	if layer.Stations[2].Value != nil {
		t.Error("expected station without data to have no value")
	}
	if math.Abs(*layer.Fields[0].Value-15) > 1e-9 {
		t.Errorf("expected midpoint estimate 15, got %v", *layer.Fields[0].Value)
	}
	if *layer.Fields[1].Value != 10 {
		t.Errorf("expected field on station A to take its value, got %v", *layer.Fields[1].Value)
	}
	if layer.Min != 10 || math.Abs(layer.Max-15) > 1e-9 {
		t.Errorf("unexpected range %v..%v", layer.Min, layer.Max)
	}
	if layer.Fields[0].Color != Metrics["chuva"].Colors[8] {
		t.Errorf("expected max colour for the max field, got %s", layer.Fields[0].Color)
	}
	if len(layer.Legend) != 5 {
		t.Errorf("expected 5 legend grades, got %d", len(layer.Legend))
	}
	if layer.Period != "Período: 01/01/2024 a 01/01/2024" {
		t.Errorf("unexpected period %q", layer.Period)
	}

	gust, err := BuildLayer("rajada_max", rows, stations, fields, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("BuildLayer: %v", err)
	}
	for _, f := range gust.Fields {
		if f.Value != nil || f.Color != NoDataColor {
			t.Errorf("expected no estimate without gust data, got %+v", f)
		}
	}

	if _, err := BuildLayer("bogus", rows, stations, fields, start, start); err == nil {
		t.Error("expected error for unknown metric")
	}
}
