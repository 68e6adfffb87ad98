package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/lox/climareport/internal/alerts"
	"github.com/lox/climareport/internal/analysis"
	"github.com/lox/climareport/internal/geo"
	"github.com/lox/climareport/internal/models"
	"github.com/lox/climareport/internal/report"
	"github.com/lox/climareport/internal/store"
)

const dateLayout = "2006-01-02"

// openEnd bounds queries whose filter has no end date.
var openEnd = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

func parseDate(r *http.Request, key string) (time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: want YYYY-MM-DD", key, v)
	}
	return t, nil
}

func parseFilter(r *http.Request) (analysis.Filter, error) {
	var f analysis.Filter
	var err error
	if f.Start, err = parseDate(r, "start"); err != nil {
		return f, err
	}
	if f.End, err = parseDate(r, "end"); err != nil {
		return f, err
	}
	if !f.Start.IsZero() && !f.End.IsZero() && f.End.Before(f.Start) {
		return f, fmt.Errorf("end %s is before start %s", f.End.Format(dateLayout), f.Start.Format(dateLayout))
	}
	f.Station = r.URL.Query().Get("station")
	return f, nil
}

// rows loads the cached observations covering f. The filter itself is
// applied by the analysis functions.
func (s *Server) rows(f analysis.Filter) ([]models.ObservationRow, error) {
	var start time.Time
	end := openEnd
	if !f.Start.IsZero() {
		start = f.Start.AddDate(0, 0, -1)
	}
	if !f.End.IsZero() {
		end = f.End.AddDate(0, 0, 2)
	}
	return s.store.Observations(start, end)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	version, err := s.store.MigrationVersion()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	runID, err := s.store.LatestRunID()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"status":         "ok",
		"schema_version": version,
		"run_id":         runID,
	})
}

func (s *Server) handleAPIView(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	reporting, err := s.store.ObservedStations()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	rows, err := s.rows(f)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, analysis.BuildView(rows, f, analysis.ViewOptions{
		StationCount:   len(reporting),
		RadiationSince: s.cfg.RadiationSince,
	}))
}

func (s *Server) handleAPIDay(w http.ResponseWriter, r *http.Request) {
	day, err := parseDate(r, "date")
	if err != nil || day.IsZero() {
		http.Error(w, "date parameter required as YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	f := analysis.Filter{Start: day, End: day, Station: r.URL.Query().Get("station")}
	rows, err := s.rows(f)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	detail, ok := analysis.BuildDayDetail(analysis.Apply(rows, f), day.Format(dateLayout))
	if !ok {
		http.Error(w, "no observations for "+day.Format(dateLayout), http.StatusNotFound)
		return
	}
	writeJSON(w, detail)
}

func (s *Server) handleAPIMap(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	// The map always shows every station.
	f.Station = ""

	metric := r.URL.Query().Get("metric")
	if metric == "" {
		metric = geo.MetricOrder[0]
	}
	if _, ok := geo.Metrics[metric]; !ok {
		http.Error(w, fmt.Sprintf("unknown metric %q", metric), http.StatusBadRequest)
		return
	}

	stations, err := s.store.Stations()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	fields, err := s.store.Fields(s.cfg.GrowerID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	rows, err := s.rows(f)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	rows = analysis.Apply(rows, f)
	if f.Start.IsZero() || f.End.IsZero() {
		if first, last, ok := analysis.Span(rows); ok {
			if f.Start.IsZero() {
				f.Start = first
			}
			if f.End.IsZero() {
				f.End = last
			}
		}
	}

	layer, err := geo.BuildLayer(metric, rows, stations, fields, f.Start, f.End)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, layer)
}

func (s *Server) handleAPIForecast(w http.ResponseWriter, r *http.Request) {
	stations, err := s.store.Stations()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	f, err := s.store.LatestForecasts()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	order := make([]string, 0, len(stations))
	for _, st := range stations {
		order = append(order, st.Name)
	}
	writeJSON(w, report.WithAverage(f, order))
}

func (s *Server) runID(r *http.Request) (string, error) {
	if id := r.URL.Query().Get("run"); id != "" {
		return id, nil
	}
	return s.store.LatestRunID()
}

// handleAPIAlerts lists a run's stored alerts. With a start or end date it
// recomputes alerts for that filter instead.
func (s *Server) handleAPIAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Has("start") || q.Has("end") {
		s.handleComputedAlerts(w, r)
		return
	}

	runID, err := s.runID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	list, err := s.store.GetAlerts(runID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if source := r.URL.Query().Get("source"); source != "" {
		kept := list[:0]
		for _, a := range list {
			if a.Source == source {
				kept = append(kept, a)
			}
		}
		list = kept
	}
	if list == nil {
		list = []store.AlertRecord{}
	}
	writeJSON(w, map[string]any{"run_id": runID, "alerts": list})
}

func (s *Server) handleComputedAlerts(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rows, err := s.rows(f)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	forecasts, err := s.store.LatestForecasts()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	historical := alerts.Historical(analysis.Apply(rows, f), s.cfg.Thresholds)
	if historical == nil {
		historical = []alerts.MonthGroup{}
	}
	upcoming := alerts.Forecast(forecasts, s.cfg.Thresholds)
	if upcoming == nil {
		upcoming = []models.Alert{}
	}
	writeJSON(w, map[string]any{"historical": historical, "forecast": upcoming})
}

func (s *Server) handleAPIIngest(w http.ResponseWriter, r *http.Request) {
	runID, err := s.runID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	summary, err := s.store.GetIngestSummary(runID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if summary == nil {
		summary = []store.IngestRunSummary{}
	}
	payloads, err := s.store.GetRawPayloadStats()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"run_id":       runID,
		"endpoints":    summary,
		"raw_payloads": payloads,
	})
}
