package report

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lox/climareport/internal/alerts"
	"github.com/lox/climareport/internal/analysis"
	"github.com/lox/climareport/internal/geo"
	"github.com/lox/climareport/internal/models"
)

func nf(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }

func fp(v float64) *float64 { return &v }

func testInput() Input {
	stations := []models.Station{
		{StationID: "80977", Name: "Santa Ernestina T05", Latitude: -12.4756, Longitude: -55.6867},
		{StationID: "80978", Name: "Sede", Latitude: -12.5, Longitude: -55.7},
	}
	base := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	rows := []models.ObservationRow{
		{ObservedAt: base, StationID: "80977", StationName: "Santa Ernestina T05",
			Precip: nf(60), TempAvg: nf(25.46), HumidityAvg: nf(70), WindAvg: nf(5), DeltaT: nf(4)},
		{ObservedAt: base, StationID: "80978", StationName: "Sede",
			Precip: nf(2), TempAvg: nf(26), HumidityAvg: nf(65)},
		{ObservedAt: base.Add(24 * time.Hour), StationID: "80978", StationName: "Sede",
			TempAvg: nf(27), HumidityAvg: nf(60)},
	}
	f := models.NewForecasts()
	f.Daily["Sede"] = []models.DailyForecast{{Date: "05/03", TempMax: fp(33), TempMin: fp(21), PrecipAmount: 70}}
	f.Hourly["Sede"] = []models.HourlyForecast{{ValidLocal: "2024-03-05T10:00:00-0400", WindSpeed: fp(5), DeltaT: fp(6), Spray: "Ideal"}}

	return Input{
		RunID:       "run-1",
		GeneratedAt: time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC),
		GrowerName:  "Clayton Sheiki Tessaro",
		Stations:    stations,
		Fields: []models.FieldGeometry{{
			FieldID: 10, Name: "T01", Centroid: [2]float64{-12.48, -55.69},
			Geometry: models.Polygon{Type: "Polygon", Coordinates: [][][2]float64{{{-12.4, -55.6}, {-12.5, -55.7}, {-12.4, -55.6}}}},
		}},
		Rows:       rows,
		Forecasts:  f,
		Thresholds: alerts.DefaultThresholds,
	}
}

func TestNewDataset(t *testing.T) {
	in := testInput()
	ds := NewDataset(in.Rows)

	if len(ds.Columns) != 16 || ds.Columns[0] != "datetime" || ds.Columns[15] != "station_id" {
		t.Fatalf("unexpected columns %v", ds.Columns)
	}
	if len(ds.Data) != 3 {
		t.Fatalf("len(data) = %d, want 3", len(ds.Data))
	}
	row := ds.Data[0]
	if len(row) != len(ds.Columns) {
		t.Fatalf("row has %d values for %d columns", len(row), len(ds.Columns))
	}
	if row[0] != "2024-03-01T06:00:00.000Z" {
		t.Errorf("datetime = %v", row[0])
	}
	if v := row[2].(*float64); v == nil || *v != 25.5 {
		t.Errorf("temp_media_c = %v, want 25.5", v)
	}
	if v := row[3].(*float64); v != nil {
		t.Errorf("missing temp_min_c should be nil, got %v", *v)
	}
	if row[14] != "Santa Ernestina T05" || row[15] != "80977" {
		t.Errorf("station columns = %v, %v", row[14], row[15])
	}
}

func TestWriteDatasetSplitFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDataset(&buf, testInput().Rows[:1]); err != nil {
		t.Fatal(err)
	}

	var decoded struct {
		Columns []string `json:"columns"`
		Data    [][]any  `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(decoded.Data) != 1 {
		t.Fatalf("len(data) = %d", len(decoded.Data))
	}
	if decoded.Data[0][3] != nil {
		t.Errorf("missing value encoded as %v, want null", decoded.Data[0][3])
	}
	if decoded.Data[0][1] != 60.0 {
		t.Errorf("precipitacao_mm = %v", decoded.Data[0][1])
	}
}

func TestWriteDatasetEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDataset(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"data":[]`) {
		t.Errorf("expected empty data array, got %s", buf.String())
	}
}

func TestBuild(t *testing.T) {
	page, err := Build(testInput())
	if err != nil {
		t.Fatal(err)
	}

	if !page.HasData() || page.View.Rows != 3 {
		t.Errorf("View.Rows = %d, want 3", page.View.Rows)
	}
	if page.View.Start != "2024-03-01" || page.View.End != "2024-03-02" {
		t.Errorf("default view range = %s..%s", page.View.Start, page.View.End)
	}
	if page.Period != "01/03/2024 a 02/03/2024" {
		t.Errorf("Period = %q", page.Period)
	}
	if len(page.Layers) != len(geo.MetricOrder) {
		t.Errorf("len(Layers) = %d, want %d", len(page.Layers), len(geo.MetricOrder))
	}
	if page.Layers[0].Metric != "chuva" || len(page.Layers[0].Fields) != 1 || page.Layers[0].Fields[0].Value == nil {
		t.Errorf("unexpected rain layer %+v", page.Layers[0])
	}

	want := []string{analysis.AverageLabel, "Santa Ernestina T05", "Sede"}
	if strings.Join(page.ForecastStations, "|") != strings.Join(want, "|") {
		t.Errorf("ForecastStations = %v, want %v", page.ForecastStations, want)
	}
	if avg := page.Forecasts.Daily[analysis.AverageLabel]; len(avg) != 1 || *avg[0].TempMax != 33 {
		t.Errorf("unexpected average daily forecast %+v", avg)
	}

	if len(page.Historical) != 1 || len(page.Historical[0].Alerts) != 1 || page.Historical[0].Alerts[0].Kind != models.AlertRain {
		t.Errorf("unexpected historical alerts %+v", page.Historical)
	}
	if len(page.ForecastAlerts) != 1 || page.ForecastAlerts[0].Kind != models.AlertRain {
		t.Errorf("unexpected forecast alerts %+v", page.ForecastAlerts)
	}
}

func TestBuildDividesRainByReportingStations(t *testing.T) {
	in := testInput()
	// Sede is configured but has no history.
	in.Rows = in.Rows[:1]

	page, err := Build(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.View.Daily) != 1 || page.View.Daily[0].PrecipMean != 60 {
		t.Errorf("daily rain mean = %+v, want 60", page.View.Daily)
	}
	if page.View.KPIs.RainDailyMean != 60 || page.View.KPIs.RainyDays != 1 {
		t.Errorf("unexpected KPIs %+v", page.View.KPIs)
	}
}

func TestWithAverageLeavesInputUntouched(t *testing.T) {
	f := testInput().Forecasts
	out := WithAverage(f, []string{"Sede"})
	if _, ok := f.Daily[analysis.AverageLabel]; ok {
		t.Error("input forecasts were modified")
	}
	if _, ok := out.Hourly[analysis.AverageLabel]; !ok {
		t.Error("expected hourly average")
	}
}

func TestRender(t *testing.T) {
	page, err := Build(testInput())
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := Render(&buf, page); err != nil {
		t.Fatalf("Render: %v", err)
	}
	body := buf.String()

	for _, want := range []string{
		"<title>Relatório Climático - Clayton Sheiki Tessaro</title>",
		`const DATA_FILE = "dados_climaticos.json";`,
		"Chuva Volumosa",
		"<strong>60,0 mm</strong>",
		"Previsão de Chuva Intensa",
		"Março de 2024",
		`<option value="Média Geral">`,
		`value="2024-03-01"`,
		`id="calendar"`,
		`id="day-detail"`,
		`<canvas id="chart-rose">`,
		`<canvas id="chart-monthly-rain">`,
		`<canvas id="chart-radiation">`,
		`"api/day?"`,
		`"api/alerts?"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(body, "Nenhum dado histórico") {
		t.Error("page reports no data")
	}
}

func TestRenderEmpty(t *testing.T) {
	page, err := Build(Input{RunID: "run-empty", GrowerName: "Fazenda", Forecasts: models.NewForecasts()})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := Render(&buf, page); err != nil {
		t.Fatalf("Render: %v", err)
	}
	body := buf.String()
	for _, want := range []string{
		"Nenhum dado histórico disponível",
		"Nenhum alerta para os próximos dias.",
		"Nenhum alerta registrado no período.",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dist")
	if _, err := Write(dir, testInput()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	for _, name := range []string{DataFile, PageFile} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("stat %s: %v", name, err)
		}
		if info.Size() == 0 {
			t.Errorf("%s is empty", name)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("expected only the two artifacts, found %d entries", len(entries))
	}
}
