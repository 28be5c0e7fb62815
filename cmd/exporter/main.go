// Service exporter is a one-shot job: it fetches the current day's sensor
// readings for every device group, writes one cleaned CSV per group into a
// dated directory, and prunes exports past the retention window.  Intended
// to run from cron once per day.
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nilstuerpedhbw/DigitalBeehive/internal/beehive"
	"github.com/nilstuerpedhbw/DigitalBeehive/internal/config"
	"github.com/nilstuerpedhbw/DigitalBeehive/internal/export"
	"github.com/nilstuerpedhbw/DigitalBeehive/internal/httpx"
	"github.com/nilstuerpedhbw/DigitalBeehive/internal/poller"
	"github.com/nilstuerpedhbw/DigitalBeehive/internal/registry"
)

func main() {
	cfg, err := config.LoadExporter()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.ParseLevel(cfg.LogLevel),
	})))

	reg, err := registry.Load(cfg.RegistryPath)
	if err != nil {
		slog.Error("failed to load registry", "error", err)
		os.Exit(1)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		slog.Error("invalid timezone", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	now := time.Now().In(loc)
	dayDir := filepath.Join(cfg.ExportDir, now.Format("2006-01-02"))
	if err := os.MkdirAll(dayDir, 0o755); err != nil {
		slog.Error("failed to create export directory", "dir", dayDir, "error", err)
		os.Exit(1)
	}

	client := httpx.NewClient(cfg.Timeout, cfg.MaxRetries)
	api := beehive.NewClient(client, cfg.BaseURL, cfg.APIKey)

	slog.Info("daily export started", "dir", dayDir, "groups", len(reg.Groups()))

	// Today from local midnight until now.  Groups are exported
	// independently; a failing group is logged and the rest continue.
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	ctx := context.Background()
	for _, g := range reg.Groups() {
		exportGroup(ctx, api, reg, loc, g, start, now, dayDir)
	}

	removed, err := export.Prune(cfg.ExportDir, time.Duration(cfg.RetentionDays)*24*time.Hour)
	if err != nil {
		slog.Error("export pruning failed", "error", err)
	} else if removed > 0 {
		slog.Info("old exports removed", "count", removed)
	}

	slog.Info("daily export finished")
}

func exportGroup(ctx context.Context, api beehive.API, reg *registry.Registry, loc *time.Location, g registry.Group, start, end time.Time, dayDir string) {
	log := slog.With("group", g.Name)
	log.Info("exporting group")

	raw, err := poller.FetchGroup(ctx, api, g, start, end)
	if err != nil {
		log.Error("group export failed", "error", err)
		return
	}

	rows := poller.CleanBatch(raw, reg, loc)

	filename := filepath.Join(dayDir, strings.ToLower(g.Name)+"_"+start.Format("2006-01-02")+".csv")
	if err := export.WriteReadings(filename, rows); err != nil {
		log.Error("csv write failed", "path", filename, "error", err)
		return
	}

	log.Info("group exported", "path", filename, "fetched", len(raw), "rows", len(rows))
}
