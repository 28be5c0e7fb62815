package poller

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/nilstuerpedhbw/DigitalBeehive/internal/models"
)

// Persister abstracts reading persistence so the polling loop can be
// tested with a mock.
type Persister interface {
	InsertBatch(ctx context.Context, rows []models.ResolvedReading) models.InsertSummary
}

// Store persists resolved readings to PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// InsertBatch inserts each reading as an independent unit of work — no
// batch transaction, so one bad row never aborts the rest.  A duplicate key
// is expected (re-queried lookback windows overlap) and counted separately
// from true storage errors, which are logged with the offending row.  An
// empty batch is a no-op yielding all-zero counts.
func (s *Store) InsertBatch(ctx context.Context, rows []models.ResolvedReading) models.InsertSummary {
	var sum models.InsertSummary

	for _, row := range rows {
		hives := row.HiveIDs
		if hives == nil {
			// Column is NOT NULL; unknown entities carry an empty set.
			hives = []int{}
		}

		var inserted bool
		err := s.db.QueryRowContext(ctx, queryInsertReading,
			row.EntityID,
			row.Key,
			row.TSRaw,
			row.TSUTC,
			row.Value,
			nullStr(row.SensorName),
			hives,
		).Scan(&inserted)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			sum.Duplicates++
		case err != nil:
			sum.Errors++
			slog.Error("insert reading failed",
				"entity_id", row.EntityID,
				"key", row.Key,
				"ts", row.TSRaw,
				"value", row.Value,
				"error", err,
			)
		default:
			sum.Inserted++
		}
	}

	return sum
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
