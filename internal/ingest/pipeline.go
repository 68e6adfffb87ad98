package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lox/climareport/internal/analysis"
	"github.com/lox/climareport/internal/metrics"
	"github.com/lox/climareport/internal/models"
	"github.com/lox/climareport/internal/store"
)

// DefaultHistoryDays is how far back history is fetched, ending yesterday.
const DefaultHistoryDays = 730

type PipelineConfig struct {
	GrowerID        int64
	Stations        []models.Station
	Region          Region
	HistoryDays     int
	ArchivePayloads bool
}

// Result is everything one run acquired. Rows are read back from the store
// after every station has been ingested.
type Result struct {
	RunID     string
	Start     time.Time
	End       time.Time
	Stations  []models.Station
	Rows      []models.ObservationRow
	Forecasts models.Forecasts
	Fields    []models.FieldGeometry
}

// Pipeline runs one acquisition: forecasts, field borders, then history per
// station, sequentially.
type Pipeline struct {
	client    *Client
	store     *store.Store
	validator *Validator
	cfg       PipelineConfig
	now       func() time.Time
}

func NewPipeline(client *Client, st *store.Store, cfg PipelineConfig) *Pipeline {
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = DefaultHistoryDays
	}
	return &Pipeline{
		client:    client,
		store:     st,
		validator: NewValidator(cfg.Region),
		cfg:       cfg,
		now:       time.Now,
	}
}

// HistoryRange returns the inclusive day range ending yesterday in the
// client's report timezone.
func (p *Pipeline) HistoryRange() (time.Time, time.Time) {
	local := p.now().In(p.client.cfg.Location)
	end := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	return end.AddDate(0, 0, -p.cfg.HistoryDays), end
}

// Run acquires and stores everything for a report. Only authentication
// failures and store errors abort it.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	res := &Result{
		RunID:     uuid.NewString(),
		Stations:  p.cfg.Stations,
		Forecasts: models.NewForecasts(),
	}
	res.Start, res.End = p.HistoryRange()
	log.Printf("pipeline: run %s for %d stations, %s to %s", res.RunID, len(p.cfg.Stations),
		res.Start.Format(dateLayout), res.End.Format(dateLayout))

	if p.cfg.ArchivePayloads {
		p.client.OnPayload(func(endpoint, stationID string, fetchedAt time.Time, body []byte) {
			if _, err := p.store.StoreRawPayload(res.RunID, endpoint, stationID, fetchedAt, body); err != nil {
				log.Printf("pipeline: archive %s payload: %v", endpoint, err)
			}
		})
		defer p.client.OnPayload(nil)
	}

	if err := p.store.UpsertStations(p.cfg.Stations); err != nil {
		return nil, fmt.Errorf("store stations: %w", err)
	}

	if err := p.ingestForecasts(ctx, res); err != nil {
		return nil, err
	}
	if err := p.ingestFields(ctx, res); err != nil {
		return nil, err
	}
	if err := p.ingestHistory(ctx, res); err != nil {
		return nil, err
	}

	// Rows are shifted back four hours, so read one day either side.
	rows, err := p.store.Observations(res.Start.AddDate(0, 0, -1), res.End.AddDate(0, 0, 2))
	if err != nil {
		return nil, fmt.Errorf("read observations: %w", err)
	}
	res.Rows = p.keepConfigured(rows)
	log.Printf("pipeline: run %s complete: %d rows, %d fields", res.RunID, len(res.Rows), len(res.Fields))
	return res, nil
}

// keepConfigured drops cached rows from stations no longer in the station list.
func (p *Pipeline) keepConfigured(rows []models.ObservationRow) []models.ObservationRow {
	ids := make(map[string]bool, len(p.cfg.Stations))
	for _, st := range p.cfg.Stations {
		ids[st.StationID] = true
	}
	out := rows[:0]
	for _, r := range rows {
		if ids[r.StationID] {
			out = append(out, r)
		}
	}
	return out
}

func (p *Pipeline) ingestForecasts(ctx context.Context, res *Result) error {
	for _, st := range p.cfg.Stations {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := st.StationID

		run, _ := p.store.StartIngestRun(res.RunID, EndpointDailyForecast, &id)
		daily := p.client.FetchDailyForecast(ctx, st)
		p.completeForecastRun(run, len(daily))
		metrics.ForecastsIngested.WithLabelValues(st.Name, "daily").Add(float64(len(daily)))
		res.Forecasts.Daily[st.Name] = daily

		run, _ = p.store.StartIngestRun(res.RunID, EndpointHourlyForecast, &id)
		hourly := p.client.FetchHourlyForecast(ctx, st)
		analysis.ClassifyHourly(hourly)
		p.completeForecastRun(run, len(hourly))
		metrics.ForecastsIngested.WithLabelValues(st.Name, "hourly").Add(float64(len(hourly)))
		res.Forecasts.Hourly[st.Name] = hourly
	}
	if err := p.store.SaveForecasts(res.RunID, res.Forecasts, p.now()); err != nil {
		return fmt.Errorf("store forecasts: %w", err)
	}
	return nil
}

func (p *Pipeline) completeForecastRun(run *store.IngestRun, n int) {
	if run == nil {
		return
	}
	run.RecordsParsed = sql.NullInt64{Int64: int64(n), Valid: true}
	run.RecordsStored = run.RecordsParsed
	run.Success = n > 0
	if n == 0 {
		run.ErrorMessage = sql.NullString{String: "no forecast entries", Valid: true}
	}
	if err := p.store.CompleteIngestRun(run); err != nil {
		log.Printf("pipeline: complete ingest run: %v", err)
	}
}

func (p *Pipeline) ingestFields(ctx context.Context, res *Result) error {
	run, _ := p.store.StartIngestRun(res.RunID, EndpointBorders, nil)
	fields, err := p.client.FetchFields(ctx, p.cfg.GrowerID)
	if run != nil {
		run.Success = err == nil
		run.RecordsStored = sql.NullInt64{Int64: int64(len(fields)), Valid: true}
		if err != nil {
			run.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
		}
		p.store.CompleteIngestRun(run)
	}
	if err != nil {
		return fmt.Errorf("fetch fields: %w", err)
	}
	if err := p.store.ReplaceFields(p.cfg.GrowerID, fields); err != nil {
		return fmt.Errorf("store fields: %w", err)
	}
	res.Fields = fields
	return nil
}

func (p *Pipeline) ingestHistory(ctx context.Context, res *Result) error {
	var all []models.ObservationRow
	var runs []*store.IngestRun
	for _, st := range p.cfg.Stations {
		id := st.StationID
		run, _ := p.store.StartIngestRun(res.RunID, EndpointHistory, &id)

		raw, failed, err := p.client.FetchHistory(ctx, st.StationID, res.Start, res.End)
		if err != nil {
			if run != nil {
				run.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
				p.store.CompleteIngestRun(run)
			}
			if errors.Is(err, ErrAuth) {
				return fmt.Errorf("history %s: %w", st.Name, err)
			}
			return err
		}

		rows, unparsed := Normalize(raw, st)
		kept, stats := p.validator.Validate(st, rows)
		p.recordValidation(st, unparsed, stats)

		if run != nil {
			run.RecordsParsed = sql.NullInt64{Int64: int64(len(raw)), Valid: true}
			run.RecordsStored = sql.NullInt64{Int64: int64(len(kept)), Valid: true}
			run.RecordsDropped = sql.NullInt64{Int64: int64(unparsed + stats.Dropped), Valid: true}
			run.WindowsFailed = sql.NullInt64{Int64: int64(failed), Valid: true}
			run.Success = failed == 0
			runs = append(runs, run)
		}
		all = append(all, kept...)
	}

	SortRows(all)
	n, err := p.store.InsertObservations(all)
	for _, run := range runs {
		if err != nil {
			run.Success = false
			run.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
		}
		p.store.CompleteIngestRun(run)
	}
	if err != nil {
		return fmt.Errorf("store observations: %w", err)
	}
	log.Printf("pipeline: stored %d observation rows", n)
	return nil
}

func (p *Pipeline) recordValidation(st models.Station, unparsed int, stats ValidationStats) {
	for _, rule := range p.validator.Rules() {
		if n := stats.Nulled[rule]; n > 0 {
			metrics.FieldGroupsNulled.WithLabelValues(rule).Add(float64(n))
			log.Printf("validate: station %s: %s nulled %d rows", st.Name, rule, n)
		}
	}
	metrics.RowsDropped.WithLabelValues("timestamp").Add(float64(unparsed))
	metrics.RowsDropped.WithLabelValues("missing_required").Add(float64(stats.Dropped))
	metrics.RowsIngested.WithLabelValues(st.Name).Add(float64(stats.Kept))
	log.Printf("validate: station %s: kept %d, dropped %d unparseable and %d incomplete rows",
		st.Name, stats.Kept, unparsed, stats.Dropped)
}
