package export_test

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nilstuerpedhbw/DigitalBeehive/internal/export"
	"github.com/nilstuerpedhbw/DigitalBeehive/internal/models"
)

func TestWriteReadings(t *testing.T) {
	utc := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	rows := []models.ResolvedReading{
		{
			EntityID:   "ent-out-1",
			Key:        "temperature",
			TSRaw:      1700000000,
			TSUTC:      utc,
			TSLocal:    utc.In(berlin),
			Value:      12.5,
			SensorName: "outdoor_temp",
			HiveIDs:    []int{1, 2},
		},
		{
			EntityID: "ent-unknown",
			Key:      "humidity",
			TSRaw:    1700000300,
			TSUTC:    utc.Add(5 * time.Minute),
			TSLocal:  utc.Add(5 * time.Minute),
			Value:    55,
		},
	}

	path := filepath.Join(t.TempDir(), "weather_2023-11-14.csv")
	if err := export.WriteReadings(path, rows); err != nil {
		t.Fatalf("WriteReadings: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d records", len(records))
	}

	if records[0][0] != "datetime_local" || records[0][5] != "beehiveIds" {
		t.Errorf("unexpected header: %v", records[0])
	}

	first := records[1]
	if first[0] != "2023-11-14T23:13:20+01:00" {
		t.Errorf("local time not rendered in zone: %q", first[0])
	}
	if first[1] != "ent-out-1" || first[2] != "outdoor_temp" || first[3] != "temperature" {
		t.Errorf("unexpected identity columns: %v", first)
	}
	if first[4] != "12.5" || first[5] != "1;2" || first[7] != "1700000000" {
		t.Errorf("unexpected value columns: %v", first)
	}

	second := records[2]
	if second[2] != "" || second[5] != "" {
		t.Errorf("unenriched row must have empty sensor and hives: %v", second)
	}

	// No temp file left behind.
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file not cleaned up: %v", err)
	}
}

func TestWriteReadings_EmptyBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	if err := export.WriteReadings(path, nil); err != nil {
		t.Fatalf("WriteReadings: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	records, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected header only, got %d records", len(records))
	}
}

func TestPrune(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "2023-11-01")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	old := filepath.Join(sub, "weather_2023-11-01.csv")
	fresh := filepath.Join(root, "weather_today.csv")
	keepTxt := filepath.Join(sub, "notes.txt")
	for _, p := range []string{old, fresh, keepTxt} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}

	stale := time.Now().Add(-10 * 24 * time.Hour)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Chtimes(keepTxt, stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	removed, err := export.Prune(root, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removal, got %d", removed)
	}

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("stale csv should be gone")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh csv should survive")
	}
	if _, err := os.Stat(keepTxt); err != nil {
		t.Error("non-csv files are never pruned")
	}
	if _, err := os.Stat(sub); err != nil {
		t.Error("directories are left in place")
	}
}
