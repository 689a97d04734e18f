// Package repo implements the data persistence layer, backed by GORM. This
// file provides the usage aggregates behind the stats command and the admin
// API. Each function is context-aware and excludes privileged accounts when
// asked to.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/duckbot/internal/domain"
)

// TurnStats aggregates every turn of one tenant.
//
// Fields:
//   - TotalTokens: sum of recorded token counts
//   - TotalTurns: number of turns
//   - DistinctUsers: number of distinct authors
//   - First / Last: earliest and latest turn time, nil when there are none
//   - AvgTokens: mean tokens per turn
//   - AvgResponseLength: mean reply length in characters
type TurnStats struct {
	TotalTokens       int64
	TotalTurns        int64
	DistinctUsers     int64
	First             *time.Time
	Last              *time.Time
	AvgTokens         float64
	AvgResponseLength float64
}

// QueryRow is one entry of the recent-queries listing.
type QueryRow struct {
	At       time.Time
	UserName string
	Message  string
}

// TenantStats computes TurnStats for tenant, skipping turns authored by any
// of excluded.
func TenantStats(ctx context.Context, db *gorm.DB, tenant string, excluded []string) (TurnStats, error) {
	var s TurnStats
	base := func() *gorm.DB {
		return excluding(db.WithContext(ctx).Model(&domain.Turn{}).Where("bot_type = ?", tenant), excluded)
	}

	row := base().Select(
		"CAST(COALESCE(SUM(tokens), 0) AS BIGINT), " +
			"COUNT(*), " +
			"COUNT(DISTINCT user_id), " +
			"CAST(COALESCE(AVG(tokens), 0) AS DOUBLE PRECISION), " +
			"CAST(COALESCE(AVG(LENGTH(response)), 0) AS DOUBLE PRECISION)",
	).Row()
	if err := row.Scan(&s.TotalTokens, &s.TotalTurns, &s.DistinctUsers, &s.AvgTokens, &s.AvgResponseLength); err != nil {
		return TurnStats{}, err
	}
	if s.TotalTurns == 0 {
		return s, nil
	}

	// Bounds via ORDER + LIMIT 1 (avoid MIN/MAX -> TEXT in SQLite)
	var first, last struct {
		Timestamp time.Time
	}
	if err := base().Select(`"timestamp"`).Clauses(oldestFirst()).Limit(1).Scan(&first).Error; err != nil {
		return TurnStats{}, err
	}
	if err := base().Select(`"timestamp"`).Clauses(newestFirst()).Limit(1).Scan(&last).Error; err != nil {
		return TurnStats{}, err
	}
	s.First, s.Last = &first.Timestamp, &last.Timestamp
	return s, nil
}

// RecentQueries returns up to limit most recent turns of tenant as
// (time, display name, message), newest first, skipping excluded authors.
func RecentQueries(ctx context.Context, db *gorm.DB, tenant string, limit int, excluded []string) ([]QueryRow, error) {
	var turns []domain.Turn
	q := excluding(db.WithContext(ctx).Model(&domain.Turn{}).Where("bot_type = ?", tenant), excluded).
		Clauses(newestFirst())
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&turns).Error; err != nil {
		return nil, err
	}
	out := make([]QueryRow, 0, len(turns))
	for _, t := range turns {
		out = append(out, QueryRow{At: t.CreatedAt, UserName: t.UserName, Message: t.Message})
	}
	return out, nil
}
