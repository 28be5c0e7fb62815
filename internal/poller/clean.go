package poller

import (
	"encoding/json"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nilstuerpedhbw/DigitalBeehive/internal/models"
	"github.com/nilstuerpedhbw/DigitalBeehive/internal/registry"
	"github.com/nilstuerpedhbw/DigitalBeehive/internal/timeparse"
)

type dedupKey struct {
	entityID string
	key      string
	tsRaw    int64
}

// CleanBatch turns raw normalizer rows into resolved readings ready for
// persistence and classification.  Dropped on the way: rows without a
// metric key, the beehiveId pseudo-metric, rows whose value or timestamp is
// not numeric, and in-batch duplicates of the (entity, key, ts) identity.
// The timestamp unit is decided once for the whole batch, and every kept
// row is enriched with sensor name and hive membership from the registry.
// Output is sorted by local time, then entity, then key.
func CleanBatch(rows []models.Reading, reg *registry.Registry, loc *time.Location) []models.ResolvedReading {
	unit := timeparse.DetectUnit(rows)
	seen := make(map[dedupKey]struct{}, len(rows))
	out := make([]models.ResolvedReading, 0, len(rows))

	for _, r := range rows {
		if r.Key == nil || r.TS == nil {
			continue
		}
		key := strings.TrimSpace(*r.Key)
		if key == "" || strings.EqualFold(key, "beehiveId") {
			continue
		}

		rawTS, err := timeparse.Parse(*r.TS)
		if err != nil {
			slog.Debug("dropping row with non-numeric timestamp",
				"entity_id", r.EntityID, "key", key, "ts", r.TS.String())
			continue
		}

		value, ok := numericValue(r.Value)
		if !ok {
			continue
		}

		k := dedupKey{entityID: r.EntityID, key: key, tsRaw: int64(rawTS)}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		utc := timeparse.Resolve(rawTS, unit)
		sensor, _ := reg.SensorForEntity(r.EntityID)

		out = append(out, models.ResolvedReading{
			EntityID:   r.EntityID,
			Key:        key,
			TSRaw:      k.tsRaw,
			TSUTC:      utc,
			TSLocal:    utc.In(loc),
			Value:      value,
			SensorName: sensor,
			HiveIDs:    reg.HivesForEntity(r.EntityID),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].TSLocal.Equal(out[j].TSLocal) {
			return out[i].TSLocal.Before(out[j].TSLocal)
		}
		if out[i].EntityID != out[j].EntityID {
			return out[i].EntityID < out[j].EntityID
		}
		return out[i].Key < out[j].Key
	})

	return out
}

// numericValue coerces a raw payload value to a float64.  Non-numeric
// values (status strings, diagnostics) do not survive cleaning.
func numericValue(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
