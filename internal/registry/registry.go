// Package registry provides the static device/sensor lookup tables and the
// seasonal normal ranges used for anomaly classification.  The registry is
// loaded once at startup from a JSON file and is immutable afterwards, so
// all lookups are safe for concurrent use.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Season is a calendar season used to key normal ranges.
type Season string

const (
	Winter Season = "Winter"
	Spring Season = "Spring"
	Summer Season = "Summer"
	Autumn Season = "Autumn"
)

// SeasonOf maps a civil month (1-12) to its season.
func SeasonOf(month int) Season {
	switch month {
	case 12, 1, 2:
		return Winter
	case 3, 4, 5:
		return Spring
	case 6, 7, 8:
		return Summer
	default:
		return Autumn
	}
}

// Group is one authorization-scoped collection of devices queried together.
type Group struct {
	Name      string `json:"name"`
	AuthGroup string `json:"authGroup"`
}

// Sensor describes one physical sensor and its platform identity.
type Sensor struct {
	Name     string `json:"name"`
	EntityID string `json:"entityId"`
	Type     string `json:"type"`
	Hives    []int  `json:"hives"`
}

// Range is a closed normal interval for a metric.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Area groups normal ranges by monitoring area.  Areas are an ordered list:
// range lookups scan them in file order and the first sensor/metric match
// wins.
type Area struct {
	Name string `json:"name"`
	// Sensors maps sensor name -> metric key -> season -> range.
	Sensors map[string]map[string]map[Season]Range `json:"sensors"`
}

// file is the on-disk registry document.
type file struct {
	Groups  []Group  `json:"groups"`
	Sensors []Sensor `json:"sensors"`
	Areas   []Area   `json:"areas"`
}

// Registry is the loaded, immutable lookup structure.
type Registry struct {
	groups         []Group
	sensorToEntity map[string]string
	entityToSensor map[string]string
	sensorHives    map[string][]int
	sensorType     map[string]string
	areas          []Area
}

// Load reads and validates the registry JSON file.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read %q: %w", path, err)
	}

	var doc file
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("registry: parse %q: %w", path, err)
	}
	if len(doc.Groups) == 0 {
		return nil, fmt.Errorf("registry: %q defines no device groups", path)
	}

	r := &Registry{
		groups:         doc.Groups,
		sensorToEntity: make(map[string]string, len(doc.Sensors)),
		entityToSensor: make(map[string]string, len(doc.Sensors)),
		sensorHives:    make(map[string][]int, len(doc.Sensors)),
		sensorType:     make(map[string]string, len(doc.Sensors)),
		areas:          doc.Areas,
	}

	for _, s := range doc.Sensors {
		name := strings.TrimSpace(s.Name)
		entity := strings.TrimSpace(s.EntityID)
		if name == "" || entity == "" {
			return nil, fmt.Errorf("registry: sensor with empty name or entityId")
		}
		if _, dup := r.sensorToEntity[name]; dup {
			return nil, fmt.Errorf("registry: duplicate sensor %q", name)
		}
		if _, dup := r.entityToSensor[entity]; dup {
			return nil, fmt.Errorf("registry: entity %q mapped to more than one sensor", entity)
		}
		r.sensorToEntity[name] = entity
		r.entityToSensor[entity] = name
		r.sensorHives[name] = s.Hives
		r.sensorType[name] = s.Type
	}

	return r, nil
}

// Groups returns the configured device groups in file order.
func (r *Registry) Groups() []Group {
	return r.groups
}

// EntityForSensor returns the platform entity ID for a sensor name.
func (r *Registry) EntityForSensor(name string) (string, bool) {
	id, ok := r.sensorToEntity[strings.TrimSpace(name)]
	return id, ok
}

// SensorForEntity returns the sensor name for a platform entity ID.
func (r *Registry) SensorForEntity(entityID string) (string, bool) {
	name, ok := r.entityToSensor[strings.TrimSpace(entityID)]
	return name, ok
}

// HivesForSensor returns the hive IDs covered by a sensor.  Unknown sensors
// yield an empty slice.
func (r *Registry) HivesForSensor(name string) []int {
	return r.sensorHives[strings.TrimSpace(name)]
}

// HivesForEntity returns the hive IDs covered by the sensor behind an
// entity ID.  Unknown entities yield an empty slice.
func (r *Registry) HivesForEntity(entityID string) []int {
	sensor, ok := r.SensorForEntity(entityID)
	if !ok {
		return nil
	}
	return r.HivesForSensor(sensor)
}

// TypeForSensor returns the hardware type label for a sensor.
func (r *Registry) TypeForSensor(name string) (string, bool) {
	t, ok := r.sensorType[strings.TrimSpace(name)]
	return t, ok
}

// NormalRange scans the areas in file order and returns the first range
// registered for (sensor, metric, season), along with the area name that
// provided it.  Absence of a range is not an error.
func (r *Registry) NormalRange(sensor, metric string, season Season) (Range, string, bool) {
	for _, area := range r.areas {
		metrics, ok := area.Sensors[sensor]
		if !ok {
			continue
		}
		seasons, ok := metrics[metric]
		if !ok {
			continue
		}
		rng, ok := seasons[season]
		if !ok {
			// Sensor/metric matched but the season is not configured;
			// first-match semantics stop the scan here.
			return Range{}, "", false
		}
		return rng, area.Name, true
	}
	return Range{}, "", false
}
