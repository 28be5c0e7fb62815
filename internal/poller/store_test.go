package poller

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/nilstuerpedhbw/DigitalBeehive/internal/db"
	"github.com/nilstuerpedhbw/DigitalBeehive/internal/models"
)

// testDB connects to the database named by TEST_DATABASE_URL, applies the
// migrations, and truncates the readings table.  Tests that need a real
// database are skipped when none is reachable.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping database test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, dsn)
	if err != nil {
		t.Skipf("database unreachable: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	if err := db.Migrate(dsn, "../../migrations"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := pool.ExecContext(ctx, "TRUNCATE readings"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return pool
}

func sampleReading(key string, tsRaw int64, value float64) models.ResolvedReading {
	utc := time.Unix(tsRaw, 0).UTC()
	return models.ResolvedReading{
		EntityID:   "ent-out-1",
		Key:        key,
		TSRaw:      tsRaw,
		TSUTC:      utc,
		TSLocal:    utc,
		Value:      value,
		SensorName: "outdoor_temp",
		HiveIDs:    []int{1, 2},
	}
}

func TestInsertBatch(t *testing.T) {
	pool := testDB(t)
	store := NewStore(pool)
	ctx := context.Background()

	rows := []models.ResolvedReading{
		sampleReading("temperature", 1700000000, 12.5),
		sampleReading("temperature", 1700000300, 12.6),
		sampleReading("humidity", 1700000000, 55),
	}

	sum := store.InsertBatch(ctx, rows)
	if sum.Inserted != 3 || sum.Duplicates != 0 || sum.Errors != 0 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	var count int
	if err := pool.QueryRowContext(ctx, "SELECT count(*) FROM readings").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 rows in table, got %d", count)
	}
}

func TestInsertBatch_Idempotent(t *testing.T) {
	pool := testDB(t)
	store := NewStore(pool)
	ctx := context.Background()

	rows := []models.ResolvedReading{
		sampleReading("temperature", 1700000000, 12.5),
		sampleReading("humidity", 1700000000, 55),
	}

	first := store.InsertBatch(ctx, rows)
	if first.Inserted != 2 {
		t.Fatalf("first pass: %+v", first)
	}

	// An overlapping lookback window re-delivers the same identities.
	second := store.InsertBatch(ctx, rows)
	if second.Inserted != 0 || second.Duplicates != 2 || second.Errors != 0 {
		t.Errorf("second pass should be all duplicates: %+v", second)
	}

	var count int
	if err := pool.QueryRowContext(ctx, "SELECT count(*) FROM readings").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 rows after replay, got %d", count)
	}
}

func TestInsertBatch_SameTimestampDifferentKey(t *testing.T) {
	pool := testDB(t)
	store := NewStore(pool)
	ctx := context.Background()

	rows := []models.ResolvedReading{
		sampleReading("temperature", 1700000000, 12.5),
		sampleReading("humidity", 1700000000, 55),
	}
	if sum := store.InsertBatch(ctx, rows); sum.Inserted != 2 {
		t.Errorf("distinct keys at one timestamp must both insert: %+v", sum)
	}
}

func TestInsertBatch_Empty(t *testing.T) {
	pool := testDB(t)
	store := NewStore(pool)

	sum := store.InsertBatch(context.Background(), nil)
	if sum.Inserted != 0 || sum.Duplicates != 0 || sum.Errors != 0 {
		t.Errorf("empty batch must yield zero counts: %+v", sum)
	}
}

func TestInsertBatch_NullableSensorName(t *testing.T) {
	pool := testDB(t)
	store := NewStore(pool)
	ctx := context.Background()

	r := sampleReading("temperature", 1700000000, 12.5)
	r.SensorName = ""
	r.HiveIDs = nil

	if sum := store.InsertBatch(ctx, []models.ResolvedReading{r}); sum.Inserted != 1 {
		t.Fatalf("insert: %+v", sum)
	}

	var name sql.NullString
	if err := pool.QueryRowContext(ctx,
		"SELECT sensor_name FROM readings WHERE entity_id = $1", r.EntityID,
	).Scan(&name); err != nil {
		t.Fatalf("select: %v", err)
	}
	if name.Valid {
		t.Errorf("expected NULL sensor_name, got %q", name.String)
	}
}
