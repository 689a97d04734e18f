// Package repo implements the data persistence layer, backed by GORM. This
// file provides helpers for the ProcessedEvent model used by the durable
// event deduplicator.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/duckbot/internal/domain"
)

// InsertProcessedEvent records (eventID, tenant, kind) and returns
// ErrDuplicate when a row for the tuple already exists, expired or not.
func InsertProcessedEvent(ctx context.Context, db *gorm.DB, eventID, tenant, kind string, now time.Time, ttl time.Duration) error {
	rec := &domain.ProcessedEvent{
		ID:        uuid.NewString(),
		EventID:   eventID,
		Tenant:    tenant,
		Kind:      kind,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// ReclaimExpiredProcessedEvent renews an expired row for the tuple. It
// reports true only to the caller whose UPDATE matched, so concurrent
// reclaimers of one row see exactly one winner.
func ReclaimExpiredProcessedEvent(ctx context.Context, db *gorm.DB, eventID, tenant, kind string, now time.Time, ttl time.Duration) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.ProcessedEvent{}).
		Where("event_id = ? AND tenant = ? AND kind = ? AND expires_at <= ?", eventID, tenant, kind, now).
		Updates(map[string]any{"created_at": now, "expires_at": now.Add(ttl)})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// PurgeProcessedEvents deletes rows whose expiry is at or before now.
func PurgeProcessedEvents(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.ProcessedEvent{})
	return res.RowsAffected, res.Error
}
