package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lox/climareport/internal/models"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens the SQLite database at path and applies migrations. An empty
// path opens a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	} else if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == "" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		db.Exec("PRAGMA journal_mode=WAL")
		db.Exec("PRAGMA busy_timeout=5000")
	}
	s := New(db)
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertStations records the configured stations, keeping their order.
func (s *Store) UpsertStations(stations []models.Station) error {
	for i, st := range stations {
		_, err := s.db.Exec(`
			INSERT INTO stations (station_id, name, latitude, longitude, position)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(station_id) DO UPDATE SET
				name = excluded.name,
				latitude = excluded.latitude,
				longitude = excluded.longitude,
				position = excluded.position
		`, st.StationID, st.Name, st.Latitude, st.Longitude, i)
		if err != nil {
			return fmt.Errorf("upsert station %s: %w", st.StationID, err)
		}
	}
	return nil
}

func (s *Store) Stations() ([]models.Station, error) {
	rows, err := s.db.Query(`SELECT station_id, name, latitude, longitude FROM stations ORDER BY position, station_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stations []models.Station
	for rows.Next() {
		var st models.Station
		if err := rows.Scan(&st.StationID, &st.Name, &st.Latitude, &st.Longitude); err != nil {
			return nil, err
		}
		stations = append(stations, st)
	}
	return stations, rows.Err()
}

// InsertObservations upserts cleaned rows in one transaction. A re-fetched
// hour replaces the stored values.
func (s *Store) InsertObservations(rows []models.ObservationRow) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO observations (station_id, station_name, observed_at, precip, temp_avg, temp_min, temp_max,
			humidity_avg, humidity_min, humidity_max, wind_avg, wind_gust, wind_dir, delta_t, gfdi, solar_radiation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(station_id, observed_at) DO UPDATE SET
			station_name = excluded.station_name,
			precip = excluded.precip,
			temp_avg = excluded.temp_avg,
			temp_min = excluded.temp_min,
			temp_max = excluded.temp_max,
			humidity_avg = excluded.humidity_avg,
			humidity_min = excluded.humidity_min,
			humidity_max = excluded.humidity_max,
			wind_avg = excluded.wind_avg,
			wind_gust = excluded.wind_gust,
			wind_dir = excluded.wind_dir,
			delta_t = excluded.delta_t,
			gfdi = excluded.gfdi,
			solar_radiation = excluded.solar_radiation
	`)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err := stmt.Exec(r.StationID, r.StationName, r.ObservedAt.UTC(), r.Precip, r.TempAvg, r.TempMin, r.TempMax,
			r.HumidityAvg, r.HumidityMin, r.HumidityMax, r.WindAvg, r.WindGust, r.WindDir, r.DeltaT, r.GFDI, r.SolarRadiation)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("insert observation %s %s: %w", r.StationID, r.ObservedAt.Format(time.RFC3339), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit observations: %w", err)
	}
	return len(rows), nil
}

// Observations returns rows with start <= observed_at <= end in timestamp
// order, ties in insertion order.
func (s *Store) Observations(start, end time.Time) ([]models.ObservationRow, error) {
	rows, err := s.db.Query(`
		SELECT station_id, station_name, observed_at, precip, temp_avg, temp_min, temp_max,
			humidity_avg, humidity_min, humidity_max, wind_avg, wind_gust, wind_dir, delta_t, gfdi, solar_radiation
		FROM observations
		WHERE observed_at >= ? AND observed_at <= ?
		ORDER BY observed_at, id
	`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ObservationRow
	for rows.Next() {
		var r models.ObservationRow
		if err := rows.Scan(&r.StationID, &r.StationName, &r.ObservedAt, &r.Precip, &r.TempAvg, &r.TempMin, &r.TempMax,
			&r.HumidityAvg, &r.HumidityMin, &r.HumidityMax, &r.WindAvg, &r.WindGust, &r.WindDir, &r.DeltaT, &r.GFDI, &r.SolarRadiation); err != nil {
			return nil, err
		}
		r.ObservedAt = r.ObservedAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// ObservedStations returns the names of known stations with at least one
// cached observation, sorted.
func (s *Store) ObservedStations() ([]string, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT o.station_name
		FROM observations o
		JOIN stations s ON s.station_id = o.station_id
		ORDER BY o.station_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

const (
	forecastDaily  = "daily"
	forecastHourly = "hourly"
)

// SaveForecasts stores each station's daily and hourly forecast as JSON
// under the run id.
func (s *Store) SaveForecasts(runID string, f models.Forecasts, fetchedAt time.Time) error {
	save := func(station, kind string, v any) error {
		payload, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s forecast for %s: %w", kind, station, err)
		}
		_, err = s.db.Exec(`
			INSERT INTO forecasts (run_id, station_name, kind, fetched_at, payload)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(run_id, station_name, kind) DO UPDATE SET
				fetched_at = excluded.fetched_at,
				payload = excluded.payload
		`, runID, station, kind, fetchedAt.UTC(), string(payload))
		return err
	}
	for station, daily := range f.Daily {
		if err := save(station, forecastDaily, daily); err != nil {
			return err
		}
	}
	for station, hourly := range f.Hourly {
		if err := save(station, forecastHourly, hourly); err != nil {
			return err
		}
	}
	return nil
}

// LatestForecasts returns the forecasts of the most recently fetched run.
func (s *Store) LatestForecasts() (models.Forecasts, error) {
	out := models.NewForecasts()
	rows, err := s.db.Query(`
		SELECT station_name, kind, payload FROM forecasts
		WHERE run_id = (SELECT run_id FROM forecasts ORDER BY fetched_at DESC LIMIT 1)
	`)
	if err != nil {
		return out, err
	}
	defer rows.Close()

	for rows.Next() {
		var station, kind, payload string
		if err := rows.Scan(&station, &kind, &payload); err != nil {
			return out, err
		}
		switch kind {
		case forecastDaily:
			var daily []models.DailyForecast
			if err := json.Unmarshal([]byte(payload), &daily); err != nil {
				return out, fmt.Errorf("decode daily forecast for %s: %w", station, err)
			}
			out.Daily[station] = daily
		case forecastHourly:
			var hourly []models.HourlyForecast
			if err := json.Unmarshal([]byte(payload), &hourly); err != nil {
				return out, fmt.Errorf("decode hourly forecast for %s: %w", station, err)
			}
			out.Hourly[station] = hourly
		}
	}
	return out, rows.Err()
}

// ReplaceFields stores the grower's field geometries, dropping fields that
// are no longer listed.
func (s *Store) ReplaceFields(growerID int64, fields []models.FieldGeometry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM fields WHERE grower_id = ?`, growerID); err != nil {
		tx.Rollback()
		return fmt.Errorf("clear fields: %w", err)
	}
	now := time.Now().UTC()
	for _, f := range fields {
		geom, err := json.Marshal(f.Geometry)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("encode field %d: %w", f.FieldID, err)
		}
		_, err = tx.Exec(`
			INSERT INTO fields (field_id, grower_id, name, centroid_lat, centroid_lon, geometry, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(field_id) DO UPDATE SET
				grower_id = excluded.grower_id,
				name = excluded.name,
				centroid_lat = excluded.centroid_lat,
				centroid_lon = excluded.centroid_lon,
				geometry = excluded.geometry,
				updated_at = excluded.updated_at
		`, f.FieldID, growerID, f.Name, f.Centroid[0], f.Centroid[1], string(geom), now)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert field %d: %w", f.FieldID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) Fields(growerID int64) ([]models.FieldGeometry, error) {
	rows, err := s.db.Query(`
		SELECT field_id, name, centroid_lat, centroid_lon, geometry
		FROM fields WHERE grower_id = ? ORDER BY field_id
	`, growerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := []models.FieldGeometry{}
	for rows.Next() {
		var f models.FieldGeometry
		var geom string
		if err := rows.Scan(&f.FieldID, &f.Name, &f.Centroid[0], &f.Centroid[1], &geom); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(geom), &f.Geometry); err != nil {
			return nil, fmt.Errorf("decode field %d geometry: %w", f.FieldID, err)
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}
