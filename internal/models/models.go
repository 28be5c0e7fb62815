// Package models contains shared domain structs used across services.
package models

import (
	"encoding/json"
	"time"
)

// HealthResponse is returned by /healthz and /readyz endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// Reading is one raw observation produced by the payload normalizer,
// before timestamp resolution or enrichment.  Key and TS are nil when the
// upstream payload did not carry them (diagnostic rows keep both nil).
type Reading struct {
	EntityID string       `json:"entityId"`
	Key      *string      `json:"key"`
	TS       *json.Number `json:"ts"`
	Value    any          `json:"value"`
}

// ResolvedReading is a Reading whose timestamp has been unambiguously
// converted to absolute instants and whose value has been coerced to a
// number, enriched with the sensor name and hive membership from the
// registry.
type ResolvedReading struct {
	EntityID   string    `json:"entityId"`
	Key        string    `json:"key"`
	TSRaw      int64     `json:"ts"`
	TSUTC      time.Time `json:"datetime_utc"`
	TSLocal    time.Time `json:"datetime_local"`
	Value      float64   `json:"value"`
	SensorName string    `json:"sensorName"`
	HiveIDs    []int     `json:"beehiveIds"`
}

// InsertSummary reports the outcome of a dedup-aware batch insert.
// Duplicates are expected and are not errors.
type InsertSummary struct {
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Errors     int `json:"errors"`
}

// Add accumulates another summary into s.
func (s *InsertSummary) Add(other InsertSummary) {
	s.Inserted += other.Inserted
	s.Duplicates += other.Duplicates
	s.Errors += other.Errors
}

// StrPtr is a convenience for building Reading literals.
func StrPtr(s string) *string { return &s }

// NumPtr is a convenience for building Reading timestamps.
func NumPtr(n json.Number) *json.Number { return &n }
