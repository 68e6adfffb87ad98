package store

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS stations (
    station_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    latitude REAL,
    longitude REAL,
    position INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS observations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    station_id TEXT NOT NULL,
    station_name TEXT NOT NULL,
    observed_at DATETIME NOT NULL,
    precip REAL,
    temp_avg REAL,
    temp_min REAL,
    temp_max REAL,
    humidity_avg REAL,
    humidity_min REAL,
    humidity_max REAL,
    wind_avg REAL,
    wind_gust REAL,
    wind_dir REAL,
    delta_t REAL,
    gfdi REAL,
    solar_radiation REAL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(station_id, observed_at)
);

CREATE INDEX IF NOT EXISTS idx_obs_time ON observations(observed_at);
`,
	},
	{
		Version:     2,
		Description: "Add forecasts and field geometry",
		SQL: `
CREATE TABLE IF NOT EXISTS forecasts (
    run_id TEXT NOT NULL,
    station_name TEXT NOT NULL,
    kind TEXT NOT NULL,
    fetched_at DATETIME NOT NULL,
    payload TEXT NOT NULL,
    PRIMARY KEY (run_id, station_name, kind)
);

CREATE TABLE IF NOT EXISTS fields (
    field_id INTEGER PRIMARY KEY,
    grower_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    centroid_lat REAL NOT NULL,
    centroid_lon REAL NOT NULL,
    geometry TEXT NOT NULL,
    updated_at DATETIME NOT NULL
);
`,
	},
	{
		Version:     3,
		Description: "Add ingest_runs and raw_payloads for auditing",
		SQL: `
CREATE TABLE IF NOT EXISTS ingest_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    started_at DATETIME NOT NULL,
    finished_at DATETIME,
    endpoint TEXT NOT NULL,
    station_id TEXT,
    records_parsed INTEGER,
    records_stored INTEGER,
    records_dropped INTEGER,
    windows_failed INTEGER,
    success BOOLEAN NOT NULL DEFAULT FALSE,
    error_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_ingest_runs_run ON ingest_runs(run_id);

CREATE TABLE IF NOT EXISTS raw_payloads (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT,
    fetched_at DATETIME NOT NULL,
    endpoint TEXT NOT NULL,
    station_id TEXT,
    payload_compressed BLOB NOT NULL,
    payload_hash TEXT NOT NULL UNIQUE
);
`,
	},
	{
		Version:     4,
		Description: "Add generated alerts",
		SQL: `
CREATE TABLE IF NOT EXISTS alerts (
    run_id TEXT NOT NULL,
    source TEXT NOT NULL,
    kind TEXT NOT NULL,
    date TEXT NOT NULL,
    station_name TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL,
    value REAL NOT NULL,
    PRIMARY KEY (run_id, source, kind, date, station_name)
);
`,
	},
}

func (s *Store) Migrate() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		log.Printf("migrations: applying %d - %s", m.Version, m.Description)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}

		log.Printf("migrations: completed %d", m.Version)
	}

	return nil
}

func (s *Store) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME
		)
	`)
	return err
}

func (s *Store) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (s *Store) MigrationVersion() (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}
