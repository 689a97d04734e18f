package dedup

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/duckbot/internal/repo"
)

// SQL records processed events in the processed_events table. The unique
// index on (event_id, tenant, kind) resolves concurrent inserts; a row whose
// expiry has passed is reclaimed by exactly one caller.
type SQL struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQL returns a SQL store over db.
func NewSQL(db *gorm.DB, ttl time.Duration) *SQL {
	return &SQL{db: db, ttl: ttl, now: time.Now}
}

// WithClock overrides the time source. Intended for tests.
func (s *SQL) WithClock(now func() time.Time) *SQL {
	s.now = now
	return s
}

// Seen implements Store.
func (s *SQL) Seen(ctx context.Context, k Key) (bool, error) {
	if k.EventID == "" {
		return false, nil
	}
	now := s.now().UTC()
	err := repo.InsertProcessedEvent(ctx, s.db, k.EventID, k.Tenant, k.Kind, now, s.ttl)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repo.ErrDuplicate) {
		return false, err
	}
	reclaimed, err := repo.ReclaimExpiredProcessedEvent(ctx, s.db, k.EventID, k.Tenant, k.Kind, now, s.ttl)
	if err != nil {
		return false, err
	}
	return !reclaimed, nil
}

// Purge deletes expired rows and returns how many were removed.
func (s *SQL) Purge(ctx context.Context) (int64, error) {
	return repo.PurgeProcessedEvents(ctx, s.db, s.now().UTC())
}
