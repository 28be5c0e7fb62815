package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// ReadingEntry represents a single persisted reading returned by the API.
type ReadingEntry struct {
	EntityID   string    `json:"entity_id"`
	MetricKey  string    `json:"metric_key"`
	TSRaw      int64     `json:"ts_raw"`
	Timestamp  time.Time `json:"timestamp"`
	Value      float64   `json:"value"`
	SensorName *string   `json:"sensor_name"`
	HiveIDs    []int     `json:"hive_ids"`
	IngestedAt time.Time `json:"ingested_at"`
}

// Device is one distinct device present in the readings table.
type Device struct {
	EntityID   string  `json:"entity_id"`
	SensorName *string `json:"sensor_name"`
}

// Store provides read-only database access for the API service.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ListDevices returns the distinct devices with persisted readings.
func (s *Store) ListDevices(ctx context.Context) ([]Device, error) {
	rows, err := s.db.QueryContext(ctx, queryDistinctDevices)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		var d Device
		if err := rows.Scan(&d.EntityID, &d.SensorName); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

// GetReadings returns readings for the given device within the time window,
// ordered by timestamp ascending.
func (s *Store) GetReadings(ctx context.Context, entityID string, start, end time.Time) ([]ReadingEntry, error) {
	rows, err := s.db.QueryContext(ctx, queryReadingsByDevice, entityID, start, end)
	if err != nil {
		return nil, fmt.Errorf("get readings: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// LatestForHive returns the most recent reading per device/metric among the
// devices covering the given hive.
func (s *Store) LatestForHive(ctx context.Context, hiveID int) ([]ReadingEntry, error) {
	rows, err := s.db.QueryContext(ctx, queryLatestByHive, hiveID)
	if err != nil {
		return nil, fmt.Errorf("latest for hive: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]ReadingEntry, error) {
	var entries []ReadingEntry
	for rows.Next() {
		var (
			e        ReadingEntry
			hivesRaw string
		)
		if err := rows.Scan(
			&e.EntityID,
			&e.MetricKey,
			&e.TSRaw,
			&e.Timestamp,
			&e.Value,
			&e.SensorName,
			&hivesRaw,
			&e.IngestedAt,
		); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		if err := json.Unmarshal([]byte(hivesRaw), &e.HiveIDs); err != nil {
			return nil, fmt.Errorf("decode hive_ids: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
