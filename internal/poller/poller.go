package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nilstuerpedhbw/DigitalBeehive/internal/anomaly"
	"github.com/nilstuerpedhbw/DigitalBeehive/internal/beehive"
	"github.com/nilstuerpedhbw/DigitalBeehive/internal/config"
	"github.com/nilstuerpedhbw/DigitalBeehive/internal/models"
	"github.com/nilstuerpedhbw/DigitalBeehive/internal/normalize"
	"github.com/nilstuerpedhbw/DigitalBeehive/internal/registry"
)

// Poller drives the adaptive polling loop.  It owns the consecutive-failure
// counter exclusively: group workers report success over a channel and the
// loop goroutine performs the single counter mutation per cycle.
type Poller struct {
	cfg        config.Poller
	api        beehive.API
	store      Persister
	reg        *registry.Registry
	loc        *time.Location
	classifier *anomaly.Classifier

	failures int
}

// New creates a Poller.
func New(cfg config.Poller, api beehive.API, store Persister, reg *registry.Registry, loc *time.Location) *Poller {
	return &Poller{
		cfg:        cfg,
		api:        api,
		store:      store,
		reg:        reg,
		loc:        loc,
		classifier: anomaly.New(reg),
	}
}

// Failures returns the current consecutive-failure count.  Only meaningful
// between cycles; exposed for tests and readiness reporting.
func (p *Poller) Failures() int {
	return p.failures
}

// Run executes poll cycles until ctx is cancelled.  The first cycle starts
// immediately, subsequent cycles on the configured interval.  Cancellation
// is honored between cycles only: a cycle already in flight completes (or
// times out) before Run returns, so group-level work is never chopped
// mid-insert by shutdown.
func (p *Poller) Run(ctx context.Context) {
	slog.Info("poller started",
		"interval", p.cfg.PollInterval,
		"base_lookback_min", p.cfg.BaseLookbackMinutes,
		"max_lookback_min", p.cfg.MaxLookbackMinutes,
		"groups", len(p.reg.Groups()),
	)

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	p.RunCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("poller stopped")
			return
		case <-ticker.C:
			p.RunCycle(ctx)
		}
	}
}

// RunCycle runs one poll cycle: compute the lookback window, poll every
// group concurrently, then adjust the failure counter once all groups have
// reported.  Group failures never abort the cycle.
func (p *Poller) RunCycle(ctx context.Context) {
	cycleID := uuid.NewString()[:8]
	lookback := lookbackMinutes(p.cfg.BaseLookbackMinutes, p.cfg.MaxLookbackMinutes, p.failures, p.cfg.PollInterval)

	end := time.Now().In(p.loc)
	start := end.Add(-time.Duration(lookback) * time.Minute)

	slog.Info("poll cycle started",
		"cycle", cycleID,
		"lookback_min", lookback,
		"consecutive_failures", p.failures,
	)

	// The cycle is shielded from caller cancellation so an external stop
	// lets in-flight group work finish; the deadline bounds a stuck cycle
	// to one interval.
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.PollInterval)
	defer cancel()

	groups := p.reg.Groups()
	results := make(chan bool, len(groups))
	for _, g := range groups {
		go func(g registry.Group) {
			results <- p.pollGroup(cctx, g, start, end, cycleID)
		}(g)
	}

	succeeded := 0
	for range groups {
		if <-results {
			succeeded++
		}
	}

	if succeeded == len(groups) {
		if p.failures > 0 {
			slog.Info("all groups succeeded again", "cycle", cycleID, "after_failures", p.failures)
		}
		p.failures = 0
	} else {
		p.failures++
		slog.Warn("poll cycle incomplete",
			"cycle", cycleID,
			"succeeded", succeeded,
			"groups", len(groups),
			"consecutive_failures", p.failures,
		)
	}
}

// pollGroup fetches, normalizes, persists, and classifies one device
// group.  Entity-level fetch errors become diagnostic rows and do not fail
// the group; only entity discovery failing fails the group as a whole.
func (p *Poller) pollGroup(ctx context.Context, g registry.Group, start, end time.Time, cycleID string) bool {
	log := slog.With("cycle", cycleID, "group", g.Name)

	raw, err := FetchGroup(ctx, p.api, g, start, end)
	if err != nil {
		log.Error("group poll failed", "error", err)
		return false
	}

	rows := CleanBatch(raw, p.reg, p.loc)
	log.Info("batch cleaned", "fetched", len(raw), "resolved", len(rows))

	sum := p.store.InsertBatch(ctx, rows)
	log.Info("readings persisted",
		"inserted", sum.Inserted,
		"duplicates", sum.Duplicates,
		"errors", sum.Errors,
	)

	for _, f := range p.classifier.CheckBatch(rows) {
		switch f.Status {
		case anomaly.StatusCritical:
			log.Warn("anomaly detected", "message", f.Message())
		case anomaly.StatusWarning:
			log.Info("reading near range bound", "message", f.Message())
		default:
			log.Debug("reading in range", "message", f.Message())
		}
	}

	return true
}

// FetchGroup lists a group's entities and normalizes each entity's time
// series for the window into raw reading rows.  A failing entity fetch
// yields one diagnostic row and the remaining entities are still queried.
// Shared with the export job.
func FetchGroup(ctx context.Context, api beehive.API, g registry.Group, start, end time.Time) ([]models.Reading, error) {
	ids, err := api.EntityIDs(ctx, g.AuthGroup)
	if err != nil {
		return nil, err
	}

	var rows []models.Reading
	for _, id := range ids {
		payload, err := api.TimeSeries(ctx, id, g.AuthGroup, start, end)
		if err != nil {
			slog.Error("time series fetch failed",
				"group", g.Name, "entity_id", id, "error", err)
			rows = append(rows, models.Reading{EntityID: id, Value: "error: " + err.Error()})
			continue
		}
		rows = append(rows, normalize.Rows(id, payload)...)
	}
	return rows, nil
}

// lookbackMinutes widens the query window proportionally to consecutive
// cross-group failures so data points missed during an outage are re-queried
// once the upstream recovers, clamped to [base, max].
func lookbackMinutes(base, max, failures int, interval time.Duration) int {
	lookback := base + failures*(int(interval.Seconds())/60)
	if lookback < base {
		lookback = base
	}
	if lookback > max {
		lookback = max
	}
	return lookback
}
