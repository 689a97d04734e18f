// Package domain defines the persistence models and value types shared by the
// pipeline, the repository, and the HTTP layer. Persistent types are mapped
// with GORM; the column names follow the conversations table that earlier
// deployments created, so existing databases keep working after migration.
package domain

import "time"

// Turn is one request/reply exchange stored in the conversations table.
//
// Fields:
//   - ID: auto-incrementing primary key.
//   - Tenant: bot identity that produced the reply (column bot_type).
//   - UserID / UserName: author and the display name resolved at the time.
//   - LegacyThreadID: pre-threading column (thread_id). Always written with
//     the storage channel so older readers still see a sensible value.
//   - ChannelID: storage channel of the scope (user id for direct messages).
//   - ThreadTS: thread root for channel threads; nil for DM and group scopes.
//   - Message / Response: user text (mention stripped) and generated reply.
//   - Tokens: best-effort token count; 0 for fallback replies.
//   - CreatedAt: creation time (column timestamp).
//
// Turns are never updated. They are removed only by retention trimming,
// an explicit reset, or an operator purge.
type Turn struct {
	ID             uint      `json:"id"         gorm:"primaryKey;autoIncrement"`
	Tenant         string    `json:"tenant"     gorm:"column:bot_type;type:varchar(32);not null;default:'duck'"`
	UserID         string    `json:"user_id"    gorm:"column:user_id;type:varchar(64);not null"`
	UserName       string    `json:"user_name"  gorm:"column:user_name;type:varchar(255)"`
	LegacyThreadID string    `json:"-"          gorm:"column:thread_id;type:varchar(64);not null"`
	ChannelID      *string   `json:"channel_id" gorm:"column:channel_id;type:varchar(64)"`
	ThreadTS       *string   `json:"thread_ts,omitempty" gorm:"column:thread_ts;type:varchar(32)"`
	Message        string    `json:"message"    gorm:"column:message;type:text;not null"`
	Response       string    `json:"response"   gorm:"column:response;type:text;not null"`
	Tokens         int       `json:"tokens"     gorm:"column:tokens;not null;default:0"`
	CreatedAt      time.Time `json:"created_at" gorm:"column:timestamp"`
}

// TableName returns the database table name for Turn.
func (Turn) TableName() string { return "conversations" }

// Scope rebuilds the ScopeKey a stored turn belongs to.
func (t Turn) Scope() ScopeKey {
	k := ScopeKey{Tenant: t.Tenant, User: t.UserID}
	if t.ChannelID != nil {
		k.Channel = *t.ChannelID
	}
	if t.ThreadTS != nil {
		k.Thread = *t.ThreadTS
	}
	return k
}

// NewTurn builds an unsaved Turn for key. The legacy thread_id column is
// filled with the storage channel.
func NewTurn(key ScopeKey, userName, message, response string, tokens int, at time.Time) *Turn {
	ch := key.Channel
	t := &Turn{
		Tenant:         key.Tenant,
		UserID:         key.User,
		UserName:       userName,
		LegacyThreadID: key.Channel,
		ChannelID:      &ch,
		Message:        message,
		Response:       response,
		Tokens:         tokens,
		CreatedAt:      at.UTC(),
	}
	if key.Thread != "" {
		th := key.Thread
		t.ThreadTS = &th
	}
	return t
}

// SchemaMigration records one applied step of the ordered migration list.
type SchemaMigration struct {
	ID        string    `gorm:"type:varchar(64);primaryKey"`
	AppliedAt time.Time `gorm:"not null"`
}

// TableName implements the GORM tabler interface.
func (SchemaMigration) TableName() string { return "schema_migrations" }

// ProcessedEvent marks a webhook event as handled for one tenant and event
// kind. It backs the durable deduplicator; rows past ExpiresAt are treated as
// absent and may be purged.
type ProcessedEvent struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	EventID   string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_processed_event,priority:1"`
	Tenant    string    `gorm:"type:varchar(32);not null;uniqueIndex:ux_processed_event,priority:2"`
	Kind      string    `gorm:"type:varchar(32);not null;uniqueIndex:ux_processed_event,priority:3"`
	CreatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (ProcessedEvent) TableName() string { return "processed_events" }
