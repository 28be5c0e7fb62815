// Package normalize flattens the heterogeneous time-series payload shapes
// returned by the upstream platform into a uniform sequence of reading rows.
// The transform is pure: no row is filtered or discarded here, and an
// unrecognized payload becomes a single diagnostic row instead of an error,
// so callers can detect bad data without the fetch raising.
package normalize

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/nilstuerpedhbw/DigitalBeehive/internal/models"
)

// Shape classifies a decoded payload value.  Normalization pattern-matches
// over this closed set instead of branching on ad hoc type checks.
type Shape int

const (
	// ShapeList is a top-level sequence of records.
	ShapeList Shape = iota
	// ShapeSeriesMap maps metric names to a point, a point list, or a scalar.
	ShapeSeriesMap
	// ShapeNestedMap is a series map where at least one value is itself an
	// object; the normalizer recurses exactly one level into each entry.
	ShapeNestedMap
	// ShapeUnknown is anything else and yields one diagnostic row.
	ShapeUnknown
)

// Classify inspects a decoded JSON value and returns its shape.  The nested
// heuristic is deliberately loose ("any value is an object"): the upstream
// response shape is not guaranteed by a versioned contract, and some
// firmware wraps an extra object level around the series map.
func Classify(v any) Shape {
	switch t := v.(type) {
	case []any:
		return ShapeList
	case map[string]any:
		for _, inner := range t {
			if _, ok := inner.(map[string]any); ok {
				return ShapeNestedMap
			}
		}
		return ShapeSeriesMap
	default:
		return ShapeUnknown
	}
}

// Rows converts one raw time-series payload for one entity into reading
// rows.  Payloads that are not valid JSON produce a single diagnostic row.
func Rows(entityID string, payload json.RawMessage) []models.Reading {
	v, err := decode(payload)
	if err != nil {
		return []models.Reading{{
			EntityID: entityID,
			Value:    fmt.Sprintf("unexpected payload: %v", err),
		}}
	}

	if Classify(v) == ShapeNestedMap {
		// One level deeper, tagging every row with the original entity.
		// The beehiveId pseudo-series injected upstream is skipped.
		m := v.(map[string]any)
		var rows []models.Reading
		for _, key := range sortedKeys(m) {
			if strings.EqualFold(key, "beehiveId") {
				continue
			}
			rows = append(rows, normalizeValue(entityID, m[key])...)
		}
		return rows
	}
	return normalizeValue(entityID, v)
}

// normalizeValue flattens a list or series map into rows.  It never applies
// the nested-map recursion; that decision is made once, at the top level.
func normalizeValue(entityID string, v any) []models.Reading {
	var rows []models.Reading

	switch Classify(v) {
	case ShapeList:
		for _, item := range v.([]any) {
			if record, ok := item.(map[string]any); ok {
				rows = append(rows, models.Reading{
					EntityID: entityID,
					Key:      stringField(record, "key"),
					TS:       numberField(record, "ts"),
					Value:    record["value"],
				})
			} else {
				rows = append(rows, models.Reading{EntityID: entityID, Value: item})
			}
		}

	case ShapeSeriesMap, ShapeNestedMap:
		m := v.(map[string]any)
		for _, metric := range sortedKeys(m) {
			series := m[metric]
			if series == nil {
				continue
			}
			points, ok := series.([]any)
			if !ok {
				points = []any{series}
			}
			for _, p := range points {
				row := models.Reading{EntityID: entityID, Key: models.StrPtr(metric)}
				if point, ok := p.(map[string]any); ok {
					row.TS = numberField(point, "ts")
					row.Value = point["value"]
				} else {
					row.Value = p
				}
				rows = append(rows, row)
			}
		}

	default:
		rows = append(rows, models.Reading{
			EntityID: entityID,
			Value:    fmt.Sprintf("unexpected payload type: %s", typeName(v)),
		})
	}

	return rows
}

// decode parses the payload preserving number precision.
func decode(payload json.RawMessage) (any, error) {
	dec := json.NewDecoder(strings.NewReader(string(payload)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// sortedKeys returns the map keys in lexical order so row order is
// deterministic across runs.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// stringField extracts a string field, nil when absent or not a string.
func stringField(m map[string]any, field string) *string {
	if s, ok := m[field].(string); ok {
		return &s
	}
	return nil
}

// numberField extracts a numeric field as a json.Number.  String-encoded
// numbers are passed through; validity is the timestamp resolver's call.
func numberField(m map[string]any, field string) *json.Number {
	switch t := m[field].(type) {
	case json.Number:
		return models.NumPtr(t)
	case string:
		return models.NumPtr(json.Number(t))
	default:
		return nil
	}
}

// typeName names the runtime type of a decoded JSON value for diagnostics.
func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case string:
		return "string"
	case json.Number:
		return "number"
	default:
		return reflect.TypeOf(v).String()
	}
}
