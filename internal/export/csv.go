// Package export writes cleaned readings to CSV files for offline analysis
// and prunes exports past the retention window.
package export

import (
	"encoding/csv"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nilstuerpedhbw/DigitalBeehive/internal/models"
)

// csvHeader is written as the first row of every CSV we produce.
var csvHeader = []string{
	"datetime_local", "entityId", "sensorName", "key",
	"value", "beehiveIds", "datetime_utc", "ts",
}

// WriteReadings atomically writes resolved readings as CSV.  It writes to a
// temporary file first, then renames it over the target to avoid partial
// files on crash.
func WriteReadings(path string, rows []models.ResolvedReading) error {
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp csv: %w", err)
	}

	w := csv.NewWriter(f)

	if err := w.Write(csvHeader); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write header: %w", err)
	}

	for _, row := range rows {
		record := []string{
			row.TSLocal.Format(time.RFC3339),
			row.EntityID,
			row.SensorName,
			row.Key,
			strconv.FormatFloat(row.Value, 'f', -1, 64),
			joinInts(row.HiveIDs),
			row.TSUTC.Format(time.RFC3339),
			strconv.FormatInt(row.TSRaw, 10),
		}
		if err := w.Write(record); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("csv flush: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp csv: %w", err)
	}

	return os.Rename(tmp, path)
}

// Prune deletes .csv files under root whose modification time is older than
// maxAge, and returns how many were removed.  Directories are left in place.
func Prune(root string, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".csv") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				slog.Warn("failed to remove old export", "path", path, "error", err)
				return nil
			}
			removed++
			slog.Debug("removed old export", "path", path)
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("prune %q: %w", root, err)
	}
	return removed, nil
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ";")
}
