package ratelimit

import (
	"strconv"
	"sync"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestWindow_500AllowedThen501Denied(t *testing.T) {
	c := &fakeClock{t: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
	w := New(500, time.Hour).WithClock(c.Now)

	for i := 1; i <= 500; i++ {
		if !w.Allow("U1") {
			t.Fatalf("request %d denied; want allowed", i)
		}
		c.Advance(time.Second)
	}
	if w.Allow("U1") {
		t.Fatalf("request 501 allowed; want denied")
	}
	if got := w.Remaining("U1"); got != 0 {
		t.Fatalf("Remaining = %d; want 0", got)
	}

	// Denied attempts are not recorded: after 61 minutes the window is empty.
	c.Advance(61 * time.Minute)
	if !w.Allow("U1") {
		t.Fatalf("not re-admitted after the window elapsed")
	}
	if got := w.Remaining("U1"); got != 499 {
		t.Fatalf("Remaining = %d; want 499", got)
	}
}

func TestWindow_OldestEntryAgesOut(t *testing.T) {
	c := &fakeClock{t: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
	w := New(3, time.Hour).WithClock(c.Now)

	w.Allow("U1") // 09:00
	c.Advance(10 * time.Minute)
	w.Allow("U1") // 09:10
	w.Allow("U1") // 09:10
	if w.Allow("U1") {
		t.Fatalf("limit not enforced")
	}
	c.Advance(50 * time.Minute) // 10:00, the 09:00 entry is now exactly one window old
	if !w.Allow("U1") {
		t.Fatalf("entry exactly one window old should be pruned")
	}
	if w.Allow("U1") {
		t.Fatalf("only one slot should have opened")
	}
}

func TestWindow_UsersAreIndependent(t *testing.T) {
	w := New(1, time.Hour)
	if !w.Allow("U1") || !w.Allow("U2") {
		t.Fatalf("each user has their own budget")
	}
	if w.Allow("U1") {
		t.Fatalf("U1 over budget")
	}
}

func TestWindow_IdleUsersSwept(t *testing.T) {
	c := &fakeClock{t: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
	w := New(10, time.Minute).WithClock(c.Now)
	for i := 0; i < 500; i++ {
		w.Allow("idle-" + strconv.Itoa(i))
	}
	c.Advance(2 * time.Minute)
	for i := 0; i < sweepEvery; i++ {
		w.Allow("active")
		if w.Remaining("active") == 0 {
			c.Advance(2 * time.Minute)
		}
	}
	if got := w.Users(); got > 1 {
		t.Fatalf("Users = %d; idle users should have been swept", got)
	}
}

func TestWindow_ConcurrentAllowNeverExceedsLimit(t *testing.T) {
	w := New(100, time.Hour)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 400; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if w.Allow("U1") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if allowed != 100 {
		t.Fatalf("allowed = %d; want exactly 100", allowed)
	}
}
