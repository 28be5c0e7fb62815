// Package api implements the HTTP handlers and data access for the
// read-only readings API.
package api

// SQL queries for the read API service.
const (
	// queryDistinctDevices returns one row per device present in the
	// readings table, with the sensor name the registry attached at
	// ingestion time.
	queryDistinctDevices = `
SELECT DISTINCT ON (entity_id) entity_id, sensor_name
FROM readings
ORDER BY entity_id, sensor_name`

	// queryReadingsByDevice returns readings for a device inside a time
	// window, ordered by timestamp ascending.  hive_ids is serialized to
	// JSON in SQL because the database/sql interface has no native array
	// scan.
	// Parameters: $1 = entity_id, $2 = start, $3 = end.
	queryReadingsByDevice = `
SELECT entity_id, metric_key, ts_raw, ts_utc, value, sensor_name,
       array_to_json(hive_ids)::text, ingested_at
FROM readings
WHERE entity_id = $1
  AND ts_utc >= $2
  AND ts_utc <= $3
ORDER BY ts_utc ASC`

	// queryLatestByHive returns the most recent reading per device and
	// metric among the devices covering a hive.
	// Parameter: $1 = hive id.
	queryLatestByHive = `
SELECT DISTINCT ON (entity_id, metric_key)
       entity_id, metric_key, ts_raw, ts_utc, value, sensor_name,
       array_to_json(hive_ids)::text, ingested_at
FROM readings
WHERE $1 = ANY (hive_ids)
ORDER BY entity_id, metric_key, ts_utc DESC`
)
