// Package poller implements the adaptive polling pipeline: it drives the
// fixed-interval loop over the device groups, fetches and normalizes their
// time series, and persists resolved readings with per-key dedup.
package poller

// SQL queries for the polling service.
const (
	// queryInsertReading inserts one resolved reading.  The unique
	// constraint on (entity_id, metric_key, ts_raw) makes re-ingestion
	// idempotent: ON CONFLICT DO NOTHING silently absorbs duplicates and
	// RETURNING true lets us distinguish inserts from no-ops.
	queryInsertReading = `
INSERT INTO readings (entity_id, metric_key, ts_raw, ts_utc, value, sensor_name, hive_ids)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (entity_id, metric_key, ts_raw) DO NOTHING
RETURNING true`
)
