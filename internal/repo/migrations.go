package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/duckbot/internal/domain"
)

// legacyConversation is the conversations table as first deployed: direct
// messages only, thread_id holding the user id.
type legacyConversation struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	UserID    string    `gorm:"type:varchar(64);not null"`
	UserName  string    `gorm:"type:varchar(255)"`
	ThreadID  string    `gorm:"type:varchar(64);not null"`
	Message   string    `gorm:"type:text;not null"`
	Response  string    `gorm:"type:text;not null"`
	Timestamp time.Time `gorm:"column:timestamp"`
}

func (legacyConversation) TableName() string { return "conversations" }

type migration struct {
	id string
	up func(tx *gorm.DB) error
}

// addColumn adds a Turn field's column unless it already exists.
func addColumn(field string) func(tx *gorm.DB) error {
	return func(tx *gorm.DB) error {
		m := tx.Migrator()
		if m.HasColumn(&domain.Turn{}, field) {
			return nil
		}
		return m.AddColumn(&domain.Turn{}, field)
	}
}

// migrations is append-only. Every step is idempotent on its own so a
// database that was altered by hand still converges.
var migrations = []migration{
	{"0001_create_conversations", func(tx *gorm.DB) error {
		if tx.Migrator().HasTable("conversations") {
			return nil
		}
		return tx.Migrator().CreateTable(&legacyConversation{})
	}},
	{"0002_add_bot_type", addColumn("Tenant")},
	{"0003_add_channel_id", func(tx *gorm.DB) error {
		if err := addColumn("ChannelID")(tx); err != nil {
			return err
		}
		// pre-threading rows were direct messages keyed by user id
		return tx.Exec("UPDATE conversations SET channel_id = thread_id WHERE channel_id IS NULL").Error
	}},
	{"0004_add_thread_ts", addColumn("ThreadTS")},
	{"0005_add_tokens", addColumn("Tokens")},
	{"0006_index_scope", func(tx *gorm.DB) error {
		return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_conversations_scope ON conversations (bot_type, user_id, channel_id, "timestamp")`).Error
	}},
	{"0007_create_processed_events", func(tx *gorm.DB) error {
		return tx.AutoMigrate(&domain.ProcessedEvent{})
	}},
}

// MigrationIDs lists every known migration in application order.
func MigrationIDs() []string {
	out := make([]string, len(migrations))
	for i, m := range migrations {
		out[i] = m.id
	}
	return out
}

// Migrate applies every migration not yet recorded in schema_migrations and
// returns the ids it applied. Each step and its record commit together.
func Migrate(ctx context.Context, db *gorm.DB) ([]string, error) {
	db = db.WithContext(ctx)
	if err := db.AutoMigrate(&domain.SchemaMigration{}); err != nil {
		return nil, err
	}

	var done []domain.SchemaMigration
	if err := db.Find(&done).Error; err != nil {
		return nil, err
	}
	applied := make(map[string]struct{}, len(done))
	for _, d := range done {
		applied[d.ID] = struct{}{}
	}

	var ran []string
	for _, m := range migrations {
		if _, ok := applied[m.id]; ok {
			continue
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := m.up(tx); err != nil {
				return err
			}
			return tx.Create(&domain.SchemaMigration{ID: m.id, AppliedAt: time.Now().UTC()}).Error
		})
		if err != nil {
			return ran, &MigrationError{ID: m.id, Err: err}
		}
		ran = append(ran, m.id)
	}
	return ran, nil
}

// MigrationError names the step that failed.
type MigrationError struct {
	ID  string
	Err error
}

func (e *MigrationError) Error() string { return "migration " + e.ID + ": " + e.Err.Error() }

func (e *MigrationError) Unwrap() error { return e.Err }
