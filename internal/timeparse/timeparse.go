// Package timeparse disambiguates raw numeric timestamps from the upstream
// platform, which mixes second and millisecond encodings depending on the
// device firmware.  The unit decision is made once per batch so a single
// result set never mixes units.
package timeparse

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nilstuerpedhbw/DigitalBeehive/internal/models"
)

// MillisThreshold is the unit heuristic boundary: raw values above it are
// treated as milliseconds.  Seconds-encoded timestamps will not cross it
// until the year 33658.
const MillisThreshold = 1e12

// ErrNotNumeric is returned when a raw timestamp cannot be interpreted as a
// number.  Rows carrying such timestamps are dropped from the resolved
// batch, not propagated with an undefined instant.
var ErrNotNumeric = errors.New("timestamp is not numeric")

// Unit is the encoding of a raw numeric timestamp.
type Unit int

const (
	Seconds Unit = iota
	Millis
)

func (u Unit) String() string {
	if u == Millis {
		return "ms"
	}
	return "s"
}

// Parse returns the numeric value of a raw timestamp.
func Parse(raw json.Number) (float64, error) {
	f, err := raw.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, raw.String())
	}
	return f, nil
}

// DetectUnit decides the timestamp unit for an entire batch: milliseconds
// if any parseable non-nil timestamp exceeds MillisThreshold, seconds
// otherwise.  Applying the decision batch-wide keeps one result set from
// mixing units when individual values straddle the threshold.
func DetectUnit(batch []models.Reading) Unit {
	for _, r := range batch {
		if r.TS == nil {
			continue
		}
		if f, err := Parse(*r.TS); err == nil && f > MillisThreshold {
			return Millis
		}
	}
	return Seconds
}

// Resolve converts a raw numeric timestamp to an absolute UTC instant under
// the given unit.  It is a pure function of its arguments; projection to a
// civil zone is the caller's concern.
func Resolve(raw float64, unit Unit) time.Time {
	if unit == Millis {
		return time.UnixMilli(int64(raw)).UTC()
	}
	sec := int64(raw)
	nsec := int64((raw - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}
