package services

import (
	"context"
	"sync"
)

// scopeLocks serializes work per scope key. Entries are reference counted
// and removed once nobody holds or waits on them, so the map only holds
// scopes with in-flight events. The zero value is ready to use.
type scopeLocks struct {
	mu    sync.Mutex
	locks map[string]*scopeLock
}

type scopeLock struct {
	ch   chan struct{} // 1-buffered; a token in the channel means held
	refs int
}

// lock acquires key or gives up when ctx is done. On success the returned
// func releases the lock.
func (s *scopeLocks) lock(ctx context.Context, key string) (func(), error) {
	s.mu.Lock()
	if s.locks == nil {
		s.locks = make(map[string]*scopeLock)
	}
	l, ok := s.locks[key]
	if !ok {
		l = &scopeLock{ch: make(chan struct{}, 1)}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			s.release(key, l)
		}, nil
	case <-ctx.Done():
		s.release(key, l)
		return nil, ctx.Err()
	}
}

func (s *scopeLocks) release(key string, l *scopeLock) {
	s.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, key)
	}
	s.mu.Unlock()
}

func (s *scopeLocks) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
