// Package anomaly classifies resolved readings against season-specific
// normal ranges.  Classifications are informational output, not a fault
// path: a reading without a registered range is skipped, never flagged.
package anomaly

import (
	"fmt"
	"time"

	"github.com/nilstuerpedhbw/DigitalBeehive/internal/models"
	"github.com/nilstuerpedhbw/DigitalBeehive/internal/registry"
)

// Status is the three-level classification band.
type Status int

const (
	StatusNormal Status = iota
	StatusWarning
	StatusCritical
)

func (s Status) String() string {
	switch s {
	case StatusCritical:
		return "CRITICAL"
	case StatusWarning:
		return "WARNING"
	default:
		return "OK"
	}
}

// Finding is one classified reading.
type Finding struct {
	Status Status
	Area   string
	Sensor string
	Metric string
	Value  float64
	Season registry.Season
	Range  registry.Range
	When   time.Time
}

// Message renders the finding as a human-readable alert line.
func (f Finding) Message() string {
	if f.Status == StatusNormal {
		return fmt.Sprintf("OK: %s %s = %v", f.Sensor, f.Metric, f.Value)
	}
	return fmt.Sprintf("%s: %s %s = %v (normal %v-%v, %s/%s)",
		f.Status, f.Sensor, f.Metric, f.Value, f.Range.Min, f.Range.Max, f.Area, f.Season)
}

// Classifier evaluates readings against the registry's normal ranges.
type Classifier struct {
	reg *registry.Registry
}

// New creates a Classifier.
func New(reg *registry.Registry) *Classifier {
	return &Classifier{reg: reg}
}

// Classify bands one reading.  The second return is false when no normal
// range is registered for the reading's sensor and metric in the reading's
// season; absence of reference data is not an anomaly.
func (c *Classifier) Classify(r models.ResolvedReading) (Finding, bool) {
	sensor := r.SensorName
	if sensor == "" {
		sensor = r.EntityID
	}

	season := registry.SeasonOf(int(r.TSLocal.Month()))
	rng, area, ok := c.reg.NormalRange(sensor, r.Key, season)
	if !ok {
		return Finding{}, false
	}

	f := Finding{
		Status: band(r.Value, rng),
		Area:   area,
		Sensor: sensor,
		Metric: r.Key,
		Value:  r.Value,
		Season: season,
		Range:  rng,
		When:   r.TSLocal,
	}
	return f, true
}

// CheckBatch classifies every reading that has a registered range.
func (c *Classifier) CheckBatch(rows []models.ResolvedReading) []Finding {
	var findings []Finding
	for _, r := range rows {
		if f, ok := c.Classify(r); ok {
			findings = append(findings, f)
		}
	}
	return findings
}

// band applies the three-level classification.  Critical is checked before
// Warning and includes the bounds themselves, so a value at exactly min or
// max classifies as Critical, not Warning.
func band(value float64, rng registry.Range) Status {
	delta := 0.1 * (rng.Max - rng.Min)
	switch {
	case value <= rng.Min || value >= rng.Max:
		return StatusCritical
	case value < rng.Min+delta || value > rng.Max-delta:
		return StatusWarning
	default:
		return StatusNormal
	}
}
