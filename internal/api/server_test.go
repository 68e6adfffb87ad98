package api_test

import (
	"database/sql"
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lox/climareport/internal/alerts"
	"github.com/lox/climareport/internal/analysis"
	"github.com/lox/climareport/internal/api"
	"github.com/lox/climareport/internal/geo"
	"github.com/lox/climareport/internal/models"
	"github.com/lox/climareport/internal/store"
)

const growerID = 92088

func nf(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }

func fp(v float64) *float64 { return &v }

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seed stores two stations with rain on 1 March and a dry 2 March.
func seed(t *testing.T, s *store.Store) {
	t.Helper()
	stations := []models.Station{
		{StationID: "80977", Name: "Santa Ernestina T05", Latitude: -12.4756, Longitude: -55.6867},
		{StationID: "80978", Name: "Sede", Latitude: -12.5, Longitude: -55.7},
	}
	if err := s.UpsertStations(stations); err != nil {
		t.Fatal(err)
	}

	base := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	rows := []models.ObservationRow{
		{ObservedAt: base, StationID: "80977", StationName: "Santa Ernestina T05",
			Precip: nf(60), TempAvg: nf(25), HumidityAvg: nf(70), WindAvg: nf(5), DeltaT: nf(4), WindDir: nf(90)},
		{ObservedAt: base, StationID: "80978", StationName: "Sede",
			Precip: nf(20), TempAvg: nf(26), HumidityAvg: nf(65), WindAvg: nf(3), DeltaT: nf(3)},
		{ObservedAt: base.Add(24 * time.Hour), StationID: "80978", StationName: "Sede",
			TempAvg: nf(27), HumidityAvg: nf(60)},
	}
	if _, err := s.InsertObservations(rows); err != nil {
		t.Fatal(err)
	}

	f := models.NewForecasts()
	f.Daily["Sede"] = []models.DailyForecast{{ValidAt: time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC), Date: "05/03", TempMax: fp(42), TempMin: fp(21)}}
	f.Hourly["Sede"] = []models.HourlyForecast{{ValidLocal: "2024-03-05T10:00:00-0400", WindSpeed: fp(5), DeltaT: fp(6), Spray: "Ideal"}}
	if err := s.SaveForecasts("run-1", f, base); err != nil {
		t.Fatal(err)
	}

	fields := []models.FieldGeometry{{
		FieldID: 10, Name: "T01", Centroid: [2]float64{-12.48, -55.69},
		Geometry: models.Polygon{Type: "Polygon", Coordinates: [][][2]float64{{{-12.4, -55.6}, {-12.5, -55.7}, {-12.4, -55.6}}}},
	}}
	if err := s.ReplaceFields(growerID, fields); err != nil {
		t.Fatal(err)
	}

	run, err := s.StartIngestRun("run-1", "history", nil)
	if err != nil {
		t.Fatal(err)
	}
	run.Success = true
	run.RecordsStored = sql.NullInt64{Int64: 3, Valid: true}
	if err := s.CompleteIngestRun(run); err != nil {
		t.Fatal(err)
	}

	hist := alerts.Historical(rows, alerts.DefaultThresholds)
	if err := s.SaveAlerts("run-1", store.AlertSourceHistorical, hist[0].Alerts); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveAlerts("run-1", store.AlertSourceForecast, alerts.Forecast(f, alerts.DefaultThresholds)); err != nil {
		t.Fatal(err)
	}
}

func newServer(t *testing.T, dir string) *api.Server {
	t.Helper()
	s := setupTestStore(t)
	seed(t, s)
	return api.NewServer(s, api.Config{Port: "8080", Dir: dir, GrowerID: growerID, Thresholds: alerts.DefaultThresholds})
}

func get(t *testing.T, srv *api.Server, target string, wantCode int) []byte {
	t.Helper()
	req := httptest.NewRequest("GET", target, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != wantCode {
		t.Fatalf("GET %s: expected %d, got %d: %s", target, wantCode, w.Code, w.Body.String())
	}
	return w.Body.Bytes()
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	srv := newServer(t, t.TempDir())

	var health map[string]any
	if err := json.Unmarshal(get(t, srv, "/health", 200), &health); err != nil {
		t.Fatal(err)
	}
	if health["status"] != "ok" || health["run_id"] != "run-1" {
		t.Errorf("unexpected health %v", health)
	}
}

func TestServesArtifacts(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>Relatório</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "dados_climaticos.json"), []byte(`{"columns":[],"data":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	srv := newServer(t, dir)

	if body := get(t, srv, "/", 200); !strings.Contains(string(body), "Relatório") {
		t.Errorf("unexpected index body %s", body)
	}
	if body := get(t, srv, "/dados_climaticos.json", 200); !strings.Contains(string(body), `"columns"`) {
		t.Errorf("unexpected dataset body %s", body)
	}
	get(t, srv, "/missing.json", 404)
}

func TestViewEndpoint(t *testing.T) {
	t.Parallel()
	srv := newServer(t, t.TempDir())

	tests := []struct {
		name       string
		query      string
		rows       int
		precipMean float64
	}{
		{"all stations", "/api/view", 3, 40},
		{"single day", "/api/view?start=2024-03-01&end=2024-03-01", 2, 40},
		{"single station", "/api/view?station=Sede", 2, 20},
		{"empty range", "/api/view?start=2025-01-01&end=2025-01-31", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v analysis.View
			if err := json.Unmarshal(get(t, srv, tt.query, 200), &v); err != nil {
				t.Fatal(err)
			}
			if v.Rows != tt.rows {
				t.Errorf("Rows = %d, want %d", v.Rows, tt.rows)
			}
			if tt.rows > 0 && v.Daily[0].PrecipMean != tt.precipMean {
				t.Errorf("PrecipMean = %v, want %v", v.Daily[0].PrecipMean, tt.precipMean)
			}
		})
	}
}

func TestViewEndpointDividesByReportingStations(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	seed(t, s)
	// Configured but never reported.
	if err := s.UpsertStations([]models.Station{{StationID: "80985", Name: "Santa Ernestina T10", Latitude: -12.6, Longitude: -55.8}}); err != nil {
		t.Fatal(err)
	}
	srv := api.NewServer(s, api.Config{Dir: t.TempDir(), GrowerID: growerID, Thresholds: alerts.DefaultThresholds})

	var v analysis.View
	if err := json.Unmarshal(get(t, srv, "/api/view?start=2024-03-01&end=2024-03-01", 200), &v); err != nil {
		t.Fatal(err)
	}
	if len(v.Daily) != 1 || v.Daily[0].PrecipMean != 40 {
		t.Errorf("daily rain mean = %+v, want 40", v.Daily)
	}
}

func TestViewEndpointRejectsBadDates(t *testing.T) {
	t.Parallel()
	srv := newServer(t, t.TempDir())
	get(t, srv, "/api/view?start=01/03/2024", 400)
	get(t, srv, "/api/view?start=2024-03-02&end=2024-03-01", 400)
}

func TestDayEndpoint(t *testing.T) {
	t.Parallel()
	srv := newServer(t, t.TempDir())

	var d analysis.DayDetail
	if err := json.Unmarshal(get(t, srv, "/api/day?date=2024-03-01&station=Sede", 200), &d); err != nil {
		t.Fatal(err)
	}
	if len(d.Spray.Hours) != 24 {
		t.Errorf("spray window has %d hours, want 24", len(d.Spray.Hours))
	}

	get(t, srv, "/api/day?date=2024-04-01", 404)
	get(t, srv, "/api/day", 400)
}

func TestMapEndpoint(t *testing.T) {
	t.Parallel()
	srv := newServer(t, t.TempDir())

	var layer geo.Layer
	if err := json.Unmarshal(get(t, srv, "/api/map?metric=chuva&start=2024-03-01&end=2024-03-01", 200), &layer); err != nil {
		t.Fatal(err)
	}
	if layer.Metric != "chuva" || len(layer.Stations) != 2 || len(layer.Fields) != 1 {
		t.Fatalf("unexpected layer %+v", layer)
	}
	if v := layer.Fields[0].Value; v == nil || *v < 20 || *v > 60 {
		t.Errorf("field estimate %v outside station range", v)
	}
	if layer.Period != "Período: 01/03/2024 a 01/03/2024" {
		t.Errorf("Period = %q", layer.Period)
	}

	get(t, srv, "/api/map?metric=granizo", 400)
}

func TestForecastEndpoint(t *testing.T) {
	t.Parallel()
	srv := newServer(t, t.TempDir())

	var f models.Forecasts
	if err := json.Unmarshal(get(t, srv, "/api/forecast", 200), &f); err != nil {
		t.Fatal(err)
	}
	if len(f.Daily["Sede"]) != 1 || len(f.Daily[analysis.AverageLabel]) != 1 {
		t.Errorf("unexpected forecasts %+v", f.Daily)
	}
}

func TestAlertsEndpoint(t *testing.T) {
	t.Parallel()
	srv := newServer(t, t.TempDir())

	var stored struct {
		RunID  string              `json:"run_id"`
		Alerts []store.AlertRecord `json:"alerts"`
	}
	if err := json.Unmarshal(get(t, srv, "/api/alerts", 200), &stored); err != nil {
		t.Fatal(err)
	}
	if stored.RunID != "run-1" || len(stored.Alerts) != 2 {
		t.Fatalf("unexpected stored alerts %+v", stored)
	}

	if err := json.Unmarshal(get(t, srv, "/api/alerts?source=forecast", 200), &stored); err != nil {
		t.Fatal(err)
	}
	if len(stored.Alerts) != 1 || stored.Alerts[0].Kind != "temp_high" {
		t.Errorf("unexpected forecast alerts %+v", stored.Alerts)
	}

	var computed struct {
		Historical []alerts.MonthGroup `json:"historical"`
		Forecast   []models.Alert      `json:"forecast"`
	}
	if err := json.Unmarshal(get(t, srv, "/api/alerts?start=2024-03-02&end=2024-03-31", 200), &computed); err != nil {
		t.Fatal(err)
	}
	if len(computed.Historical) != 0 {
		t.Errorf("expected no historical alerts after the rain day, got %+v", computed.Historical)
	}
	if len(computed.Forecast) != 1 {
		t.Errorf("expected the forecast alert, got %+v", computed.Forecast)
	}
}

func TestAlertsEndpointFollowsPageFilter(t *testing.T) {
	t.Parallel()
	srv := newServer(t, t.TempDir())

	tests := []struct {
		name    string
		station string
		want    int
	}{
		{"all stations", "all", 1},
		{"station without rain alert", "Sede", 0},
		{"station with rain alert", "Santa Ernestina T05", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var computed struct {
				Historical []alerts.MonthGroup `json:"historical"`
			}
			// The dashboard always sends start and end, empty when unset.
			if err := json.Unmarshal(get(t, srv, "/api/alerts?start=&end=&station="+url.QueryEscape(tt.station), 200), &computed); err != nil {
				t.Fatal(err)
			}
			if len(computed.Historical) != tt.want {
				t.Errorf("historical groups = %d, want %d", len(computed.Historical), tt.want)
			}
		})
	}
}

func TestIngestEndpoint(t *testing.T) {
	t.Parallel()
	srv := newServer(t, t.TempDir())

	var resp struct {
		RunID     string                   `json:"run_id"`
		Endpoints []store.IngestRunSummary `json:"endpoints"`
	}
	if err := json.Unmarshal(get(t, srv, "/api/ingest", 200), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Endpoints) != 1 || resp.Endpoints[0].RecordsStored != 3 || resp.Endpoints[0].SuccessRuns != 1 {
		t.Errorf("unexpected ingest summary %+v", resp.Endpoints)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	srv := newServer(t, t.TempDir())
	get(t, srv, "/health", 200)

	body := string(get(t, srv, "/metrics", 200))
	if !strings.Contains(body, "climareport_http_requests_total") {
		t.Error("expected request counter in metrics output")
	}
}
