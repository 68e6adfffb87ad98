package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpstreamCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "climareport_upstream_calls_total",
			Help: "Total farm data API calls",
		},
		[]string{"endpoint", "status"},
	)

	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "climareport_upstream_latency_seconds",
			Help:    "Farm data API call latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 180},
		},
		[]string{"endpoint"},
	)

	Reauthentications = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "climareport_reauthentications_total",
			Help: "Session refreshes triggered by 401/403 responses",
		},
	)

	WindowsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "climareport_history_windows_failed_total",
			Help: "History windows that contributed no records because of an error",
		},
		[]string{"station"},
	)

	RecordsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "climareport_records_fetched_total",
			Help: "Raw hourly records returned by the history endpoint",
		},
		[]string{"station"},
	)

	RowsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "climareport_rows_ingested_total",
			Help: "Cleaned observation rows kept after validation",
		},
		[]string{"station"},
	)

	RowsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "climareport_rows_dropped_total",
			Help: "Rows dropped during normalization or validation",
		},
		[]string{"reason"},
	)

	FieldGroupsNulled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "climareport_field_groups_nulled_total",
			Help: "Times a validation rule nulled a field group",
		},
		[]string{"rule"},
	)

	ForecastsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "climareport_forecasts_ingested_total",
			Help: "Forecast entries kept per station and horizon",
		},
		[]string{"station", "kind"},
	)

	FieldsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "climareport_fields_skipped_total",
			Help: "Fields skipped because their border could not be parsed",
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "climareport_http_requests_total",
			Help: "Report server requests by handler and status code",
		},
		[]string{"handler", "code", "method"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "climareport_http_request_duration_seconds",
			Help:    "Report server request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler", "method"},
	)
)
