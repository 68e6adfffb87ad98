package store

import (
	"fmt"
	"time"

	"github.com/lox/climareport/internal/models"
)

const (
	AlertSourceHistorical = "historical"
	AlertSourceForecast   = "forecast"
)

// SaveAlerts records the alerts generated by a run. Re-saving the same alert
// updates its text and value.
func (s *Store) SaveAlerts(runID, source string, alerts []models.Alert) error {
	for _, a := range alerts {
		_, err := s.db.Exec(`
			INSERT INTO alerts (run_id, source, kind, date, station_name, title, description, value)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, source, kind, date, station_name) DO UPDATE SET
				title = excluded.title,
				description = excluded.description,
				value = excluded.value
		`, runID, source, string(a.Kind), a.Date.Format("2006-01-02"), a.Station, a.Title, a.Description, a.Value)
		if err != nil {
			return fmt.Errorf("save alert %s %s: %w", a.Kind, a.Station, err)
		}
	}
	return nil
}

// AlertRecord is a stored alert as listed by GetAlerts.
type AlertRecord struct {
	Source      string    `json:"source"`
	Kind        string    `json:"type"`
	Date        time.Time `json:"date"`
	Station     string    `json:"station"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Value       float64   `json:"value"`
}

// GetAlerts returns a run's stored alerts ordered by date and station.
func (s *Store) GetAlerts(runID string) ([]AlertRecord, error) {
	rows, err := s.db.Query(`
		SELECT source, kind, date, station_name, title, description, value
		FROM alerts
		WHERE run_id = ?
		ORDER BY date, station_name, source, kind
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AlertRecord
	for rows.Next() {
		var a AlertRecord
		var date string
		if err := rows.Scan(&a.Source, &a.Kind, &date, &a.Station, &a.Title, &a.Description, &a.Value); err != nil {
			return nil, err
		}
		if t, err := time.Parse("2006-01-02", date); err == nil {
			a.Date = t
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
