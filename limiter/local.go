package limiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalManager is an in-process token bucket per key, used when no Redis is
// configured. Limits are per instance only.
//
// A bucket idle for a whole window has refilled completely, so it is dropped
// on the next sweep; a fresh one behaves the same.
type LocalManager struct {
	mu        sync.Mutex
	limiters  map[string]*localEntry
	every     rate.Limit
	burst     int
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewLocalManager(limit int, window time.Duration) *LocalManager {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &LocalManager{
		limiters:  make(map[string]*localEntry),
		every:     rate.Every(window / time.Duration(limit)),
		burst:     limit,
		window:    window,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (m *LocalManager) Allow(_ context.Context, key string) (bool, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if now.Sub(m.lastSweep) >= m.window {
		m.sweep(now)
	}
	e, ok := m.limiters[key]
	if !ok {
		e = &localEntry{limiter: rate.NewLimiter(m.every, m.burst)}
		m.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1), nil
}

func (m *LocalManager) sweep(now time.Time) {
	for key, e := range m.limiters {
		if now.Sub(e.lastSeen) >= m.window {
			delete(m.limiters, key)
		}
	}
	m.lastSweep = now
}

// Len reports how many keys currently hold a bucket.
func (m *LocalManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.limiters)
}
