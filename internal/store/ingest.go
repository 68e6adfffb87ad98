package store

import (
	"database/sql"
	"time"
)

// IngestRun audits one upstream fetch of a report run.
type IngestRun struct {
	ID             int64
	RunID          string
	StartedAt      time.Time
	FinishedAt     sql.NullTime
	Endpoint       string // "history", "forecast/daily", "borders", ...
	StationID      sql.NullString
	RecordsParsed  sql.NullInt64
	RecordsStored  sql.NullInt64
	RecordsDropped sql.NullInt64
	WindowsFailed  sql.NullInt64
	Success        bool
	ErrorMessage   sql.NullString
}

// StartIngestRun creates a new ingest run record and returns it.
func (s *Store) StartIngestRun(runID, endpoint string, stationID *string) (*IngestRun, error) {
	run := &IngestRun{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
		Endpoint:  endpoint,
	}
	if stationID != nil {
		run.StationID = sql.NullString{String: *stationID, Valid: true}
	}

	result, err := s.db.Exec(`
		INSERT INTO ingest_runs (run_id, started_at, endpoint, station_id, success)
		VALUES (?, ?, ?, ?, FALSE)
	`, run.RunID, run.StartedAt, run.Endpoint, run.StationID)
	if err != nil {
		return nil, err
	}

	run.ID, err = result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return run, nil
}

// CompleteIngestRun updates the ingest run with results.
func (s *Store) CompleteIngestRun(run *IngestRun) error {
	if run == nil {
		return nil
	}

	run.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}

	_, err := s.db.Exec(`
		UPDATE ingest_runs SET
			finished_at = ?,
			records_parsed = ?,
			records_stored = ?,
			records_dropped = ?,
			windows_failed = ?,
			success = ?,
			error_message = ?
		WHERE id = ?
	`, run.FinishedAt, run.RecordsParsed, run.RecordsStored, run.RecordsDropped,
		run.WindowsFailed, run.Success, run.ErrorMessage, run.ID)
	return err
}

// IngestRunSummary totals one report run's fetches per endpoint.
type IngestRunSummary struct {
	Endpoint       string `json:"endpoint"`
	TotalRuns      int    `json:"total_runs"`
	SuccessRuns    int    `json:"success_runs"`
	FailedRuns     int    `json:"failed_runs"`
	RecordsStored  int64  `json:"records_stored"`
	RecordsDropped int64  `json:"records_dropped"`
	WindowsFailed  int64  `json:"windows_failed"`
}

// LatestRunID returns the run id of the most recent ingest, or "" if none.
func (s *Store) LatestRunID() (string, error) {
	var id string
	err := s.db.QueryRow(`SELECT run_id FROM ingest_runs ORDER BY started_at DESC, id DESC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return id, err
}

// GetIngestSummary returns per-endpoint totals for one report run.
func (s *Store) GetIngestSummary(runID string) ([]IngestRunSummary, error) {
	rows, err := s.db.Query(`
		SELECT
			endpoint,
			COUNT(*) as total_runs,
			SUM(CASE WHEN success THEN 1 ELSE 0 END) as success_runs,
			SUM(CASE WHEN NOT success THEN 1 ELSE 0 END) as failed_runs,
			COALESCE(SUM(records_stored), 0),
			COALESCE(SUM(records_dropped), 0),
			COALESCE(SUM(windows_failed), 0)
		FROM ingest_runs
		WHERE run_id = ?
		GROUP BY endpoint
		ORDER BY endpoint
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []IngestRunSummary
	for rows.Next() {
		var h IngestRunSummary
		if err := rows.Scan(&h.Endpoint, &h.TotalRuns, &h.SuccessRuns, &h.FailedRuns,
			&h.RecordsStored, &h.RecordsDropped, &h.WindowsFailed); err != nil {
			return nil, err
		}
		results = append(results, h)
	}
	return results, rows.Err()
}
