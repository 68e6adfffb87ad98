package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/climareport/internal/alerts"
	"github.com/lox/climareport/internal/metrics"
	"github.com/lox/climareport/internal/store"
)

type Config struct {
	Port string
	// Dir holds the rendered artifacts served at /.
	Dir            string
	GrowerID       int64
	Thresholds     alerts.Thresholds
	RadiationSince time.Time
}

// Server serves the rendered report and recomputes its aggregates for
// arbitrary filters from the stored observation cache.
type Server struct {
	store *store.Store
	cfg   Config
}

func NewServer(store *store.Store, cfg Config) *Server {
	return &Server{store: store, cfg: cfg}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	route(mux, "/", http.FileServer(http.Dir(s.cfg.Dir)))
	route(mux, "/health", http.HandlerFunc(s.handleHealth))
	route(mux, "/api/view", http.HandlerFunc(s.handleAPIView))
	route(mux, "/api/day", http.HandlerFunc(s.handleAPIDay))
	route(mux, "/api/map", http.HandlerFunc(s.handleAPIMap))
	route(mux, "/api/forecast", http.HandlerFunc(s.handleAPIForecast))
	route(mux, "/api/alerts", http.HandlerFunc(s.handleAPIAlerts))
	route(mux, "/api/ingest", http.HandlerFunc(s.handleAPIIngest))
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func route(mux *http.ServeMux, pattern string, h http.Handler) {
	labels := prometheus.Labels{"handler": pattern}
	mux.Handle(pattern, promhttp.InstrumentHandlerDuration(
		metrics.HTTPRequestDuration.MustCurryWith(labels),
		promhttp.InstrumentHandlerCounter(metrics.HTTPRequestsTotal.MustCurryWith(labels), h),
	))
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.cfg.Port,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
