// Package repo implements the data persistence layer, backed by GORM. This
// file provides the conversation store: scope-keyed history retrieval,
// appends with per-(tenant, user) retention, and resets.
//
// Scope filtering:
//   - every scope matches bot_type, user_id and channel_id exactly;
//   - an unthreaded scope (direct or group) additionally requires
//     thread_ts IS NULL so channel threads never leak into it;
//   - a threaded scope requires thread_ts = <root ts>.
//
// Ordering is (timestamp, id) so turns created within one clock tick keep
// insertion order.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/duckbot/internal/domain"
)

func newestFirst() clause.OrderBy {
	return clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: "timestamp"}, Desc: true},
		{Column: clause.Column{Name: "id"}, Desc: true},
	}}
}

func oldestFirst() clause.OrderBy {
	return clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: "timestamp"}},
		{Column: clause.Column{Name: "id"}},
	}}
}

// scoped narrows q to the turns of exactly one scope.
func scoped(q *gorm.DB, key domain.ScopeKey) *gorm.DB {
	q = q.Where("bot_type = ? AND user_id = ? AND channel_id = ?", key.Tenant, key.User, key.Channel)
	if key.Threaded() {
		return q.Where("thread_ts = ?", key.Thread)
	}
	return q.Where("thread_ts IS NULL")
}

// excluding drops rows authored by any of users. An empty list is a no-op.
func excluding(q *gorm.DB, users []string) *gorm.DB {
	if len(users) == 0 {
		return q
	}
	return q.Where("user_id NOT IN ?", users)
}

// RetrieveTurns returns up to limit most recent turns of key, oldest first.
func RetrieveTurns(ctx context.Context, db *gorm.DB, key domain.ScopeKey, limit int) ([]domain.Turn, error) {
	var out []domain.Turn
	q := scoped(db.WithContext(ctx).Model(&domain.Turn{}), key).Clauses(newestFirst())
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// AppendTurn inserts t and then trims the oldest turns of (t.Tenant,
// t.UserID), across all scopes, until at most retention remain. Both steps
// run in one transaction. A non-positive retention disables trimming.
//
// On PostgreSQL appends for the same (tenant, user) are serialized with a
// transaction-scoped advisory lock; under READ COMMITTED two concurrent
// trims would otherwise count the same rows and delete the same oldest id.
func AppendTurn(ctx context.Context, db *gorm.DB, t *domain.Turn, retention int) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if retention > 0 && isPostgres(tx) {
			if err := lockUser(tx, t.Tenant, t.UserID); err != nil {
				return err
			}
		}
		if err := tx.Create(t).Error; err != nil {
			return err
		}
		if retention <= 0 {
			return nil
		}
		_, err := trimUser(tx, t.Tenant, t.UserID, retention)
		return err
	})
}

// lockUser blocks until tx holds the advisory lock for (tenant, user). The
// lock is released on commit or rollback.
func lockUser(tx *gorm.DB, tenant, user string) error {
	return tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", tenant+":"+user).Error
}

// trimUser deletes the oldest turns of (tenant, user) beyond keep.
func trimUser(tx *gorm.DB, tenant, user string, keep int) (int64, error) {
	var total int64
	if err := tx.Model(&domain.Turn{}).
		Where("bot_type = ? AND user_id = ?", tenant, user).
		Count(&total).Error; err != nil {
		return 0, err
	}
	excess := int(total) - keep
	if excess <= 0 {
		return 0, nil
	}

	var ids []uint
	if err := tx.Model(&domain.Turn{}).
		Where("bot_type = ? AND user_id = ?", tenant, user).
		Clauses(oldestFirst()).
		Limit(excess).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	res := tx.Where("id IN ?", ids).Delete(&domain.Turn{})
	return res.RowsAffected, res.Error
}

// ResetScope deletes every turn of key and returns how many were removed.
func ResetScope(ctx context.Context, db *gorm.DB, key domain.ScopeKey) (int64, error) {
	res := scoped(db.WithContext(ctx), key).Delete(&domain.Turn{})
	return res.RowsAffected, res.Error
}

// DeleteByUserName removes every turn recorded under a display name, across
// tenants. Operator tool for purging test users.
func DeleteByUserName(ctx context.Context, db *gorm.DB, name string) (int64, error) {
	res := db.WithContext(ctx).Where("user_name = ?", name).Delete(&domain.Turn{})
	return res.RowsAffected, res.Error
}

// CountUserTurns returns how many turns (tenant, user) has across all scopes.
func CountUserTurns(ctx context.Context, db *gorm.DB, tenant, user string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Turn{}).
		Where("bot_type = ? AND user_id = ?", tenant, user).
		Count(&n).Error
	return n, err
}
