package store

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

// StoreRawPayload archives a compressed upstream response body.
// Returns the payload ID, or 0 if an identical body is already stored.
func (s *Store) StoreRawPayload(runID, endpoint, stationID string, fetchedAt time.Time, payload []byte) (int64, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		return 0, fmt.Errorf("compress payload: %w", err)
	}
	if err := gz.Close(); err != nil {
		return 0, fmt.Errorf("close gzip: %w", err)
	}

	hash := sha256.Sum256(payload)

	var station sql.NullString
	if stationID != "" {
		station = sql.NullString{String: stationID, Valid: true}
	}

	result, err := s.db.Exec(`
		INSERT INTO raw_payloads (run_id, fetched_at, endpoint, station_id, payload_compressed, payload_hash)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(payload_hash) DO NOTHING
	`, runID, fetchedAt.UTC(), endpoint, station, buf.Bytes(), hex.EncodeToString(hash[:]))
	if err != nil {
		return 0, fmt.Errorf("insert raw payload: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil || n == 0 {
		return 0, err
	}
	return result.LastInsertId()
}

// GetRawPayload retrieves and decompresses a stored payload by ID.
func (s *Store) GetRawPayload(id int64) ([]byte, error) {
	var compressed []byte
	err := s.db.QueryRow(`SELECT payload_compressed FROM raw_payloads WHERE id = ?`, id).
		Scan(&compressed)
	if err != nil {
		return nil, err
	}

	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("create gzip reader: %w", err)
	}
	defer gz.Close()

	return io.ReadAll(gz)
}

// RawPayloadStats contains storage statistics for raw payloads.
type RawPayloadStats struct {
	TotalCount      int            `json:"total_count"`
	TotalSizeBytes  int64          `json:"total_size_bytes"`
	CountByEndpoint map[string]int `json:"count_by_endpoint"`
}

func (s *Store) GetRawPayloadStats() (*RawPayloadStats, error) {
	stats := &RawPayloadStats{CountByEndpoint: make(map[string]int)}

	rows, err := s.db.Query(`
		SELECT endpoint, COUNT(*), COALESCE(SUM(LENGTH(payload_compressed)), 0)
		FROM raw_payloads
		GROUP BY endpoint
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var endpoint string
		var count int
		var size int64
		if err := rows.Scan(&endpoint, &count, &size); err != nil {
			return nil, err
		}
		stats.CountByEndpoint[endpoint] = count
		stats.TotalCount += count
		stats.TotalSizeBytes += size
	}
	return stats, rows.Err()
}

// CleanupOldRawPayloads deletes raw payloads fetched before the cutoff.
// Returns the number of deleted records.
func (s *Store) CleanupOldRawPayloads(before time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM raw_payloads WHERE fetched_at < ?`, before.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
