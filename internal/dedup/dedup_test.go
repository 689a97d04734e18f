package dedup

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tbourn/duckbot/internal/repo"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *clock { return &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)} }

func TestMemory_SecondSightingIsDuplicate(t *testing.T) {
	m := NewMemory(10, time.Hour)
	ctx := context.Background()
	k := Key{EventID: "e1", Tenant: "duck", Kind: "message"}

	if seen, _ := m.Seen(ctx, k); seen {
		t.Fatalf("first sighting reported as duplicate")
	}
	if seen, _ := m.Seen(ctx, k); !seen {
		t.Fatalf("second sighting not reported as duplicate")
	}
}

func TestMemory_KeyIncludesTenantAndKind(t *testing.T) {
	m := NewMemory(10, time.Hour)
	ctx := context.Background()
	_, _ = m.Seen(ctx, Key{EventID: "e1", Tenant: "duck", Kind: "message"})

	for _, k := range []Key{
		{EventID: "e1", Tenant: "goose", Kind: "message"},
		{EventID: "e1", Tenant: "duck", Kind: "app_mention"},
	} {
		if seen, _ := m.Seen(ctx, k); seen {
			t.Fatalf("%+v collided with a different key", k)
		}
	}
}

func TestMemory_EmptyIDNeverDeduplicated(t *testing.T) {
	m := NewMemory(10, time.Hour)
	k := Key{Tenant: "duck", Kind: "message"}
	for i := 0; i < 3; i++ {
		if seen, _ := m.Seen(context.Background(), k); seen {
			t.Fatalf("event without id deduplicated")
		}
	}
	if m.Len() != 0 {
		t.Fatalf("empty ids should not be stored")
	}
}

func TestMemory_TTLExpiry(t *testing.T) {
	c := newClock()
	m := NewMemory(10, time.Hour).WithClock(c.Now)
	ctx := context.Background()
	k := Key{EventID: "e1", Tenant: "duck", Kind: "message"}

	_, _ = m.Seen(ctx, k)
	c.Advance(59 * time.Minute)
	if seen, _ := m.Seen(ctx, k); !seen {
		t.Fatalf("entry expired early")
	}
	c.Advance(2 * time.Minute)
	if seen, _ := m.Seen(ctx, k); seen {
		t.Fatalf("expired entry still reported")
	}
	if seen, _ := m.Seen(ctx, k); !seen {
		t.Fatalf("re-recorded entry missing")
	}
}

func TestMemory_EvictsOldestOnlyAtCapacity(t *testing.T) {
	m := NewMemory(3, time.Hour)
	ctx := context.Background()
	key := func(i int) Key { return Key{EventID: strconv.Itoa(i), Tenant: "duck", Kind: "message"} }

	for i := 0; i < 4; i++ {
		_, _ = m.Seen(ctx, key(i))
	}
	if m.Len() != 3 {
		t.Fatalf("Len = %d; want 3", m.Len())
	}
	// 1..3 survive; only 0 was evicted.
	for i := 1; i < 4; i++ {
		if seen, _ := m.Seen(ctx, key(i)); !seen {
			t.Fatalf("key %d evicted; only the oldest should go", i)
		}
	}
	if seen, _ := m.Seen(ctx, key(0)); seen {
		t.Fatalf("oldest key survived eviction")
	}
}

func TestMemory_ConcurrentSingleWinner(t *testing.T) {
	m := NewMemory(1000, time.Hour)
	k := Key{EventID: "race", Tenant: "duck", Kind: "message"}

	var fresh int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if seen, _ := m.Seen(context.Background(), k); !seen {
				atomic.AddInt32(&fresh, 1)
			}
		}()
	}
	wg.Wait()
	if fresh != 1 {
		t.Fatalf("%d callers saw the event as new; want exactly 1", fresh)
	}
}

func newSQLStore(t *testing.T, c *clock) *SQL {
	t.Helper()
	db, err := repo.Open(filepath.Join(t.TempDir(), "dedup.db"), repo.Options{Silent: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })
	if _, err := repo.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewSQL(db, time.Hour).WithClock(c.Now)
}

func TestSQL_SeenAndExpiry(t *testing.T) {
	c := newClock()
	s := newSQLStore(t, c)
	ctx := context.Background()
	k := Key{EventID: "e1", Tenant: "duck", Kind: "message"}

	if seen, err := s.Seen(ctx, k); err != nil || seen {
		t.Fatalf("first = (%v, %v); want (false, nil)", seen, err)
	}
	if seen, err := s.Seen(ctx, k); err != nil || !seen {
		t.Fatalf("second = (%v, %v); want (true, nil)", seen, err)
	}
	if seen, _ := s.Seen(ctx, Key{EventID: "e1", Tenant: "goose", Kind: "message"}); seen {
		t.Fatalf("other tenant collided")
	}

	c.Advance(2 * time.Hour)
	if seen, _ := s.Seen(ctx, k); seen {
		t.Fatalf("expired row still counted as seen")
	}
	if seen, _ := s.Seen(ctx, k); !seen {
		t.Fatalf("reclaimed row not counted as seen")
	}
}

func TestSQL_Purge(t *testing.T) {
	c := newClock()
	s := newSQLStore(t, c)
	ctx := context.Background()
	_, _ = s.Seen(ctx, Key{EventID: "a", Tenant: "duck", Kind: "message"})
	c.Advance(2 * time.Hour)
	_, _ = s.Seen(ctx, Key{EventID: "b", Tenant: "duck", Kind: "message"})

	n, err := s.Purge(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Purge = (%d, %v); want (1, nil)", n, err)
	}
}

// fakeRedis mimics SET NX semantics in memory.
type fakeRedis struct {
	mu   sync.Mutex
	keys map[string]time.Duration
	err  error
}

func (f *fakeRedis) SetNX(_ context.Context, key string, _ interface{}, ttl time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func TestRedis_SetNX(t *testing.T) {
	fr := &fakeRedis{keys: map[string]time.Duration{}}
	r := NewRedis(fr, 30*time.Minute)
	ctx := context.Background()
	k := Key{EventID: "e1", Tenant: "goose", Kind: "app_mention"}

	if seen, _ := r.Seen(ctx, k); seen {
		t.Fatalf("first sighting reported as duplicate")
	}
	if seen, _ := r.Seen(ctx, k); !seen {
		t.Fatalf("second sighting not reported as duplicate")
	}
	if ttl, ok := fr.keys["dedup:goose:app_mention:e1"]; !ok || ttl != 30*time.Minute {
		t.Fatalf("key layout or ttl unexpected: %v", fr.keys)
	}
	if seen, _ := r.Seen(ctx, Key{Tenant: "goose", Kind: "message"}); seen {
		t.Fatalf("empty id deduplicated")
	}
}

func TestRedis_ErrorSurfaces(t *testing.T) {
	boom := errors.New("connection refused")
	r := NewRedis(&fakeRedis{keys: map[string]time.Duration{}, err: boom}, time.Minute)
	if _, err := r.Seen(context.Background(), Key{EventID: "e", Tenant: "duck", Kind: "message"}); !errors.Is(err, boom) {
		t.Fatalf("err = %v; want %v", err, boom)
	}
}
