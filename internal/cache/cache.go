// Package cache keeps the pending-count summary between decisions.
package cache

import (
	"context"
	"sync"
	"time"

	"procurement/internal/model"
)

// StatsCache stores the last computed pending counts. A miss is reported
// with ok == false and a nil error.
//
// Writers read Generation before counting and pass it to Set. Invalidate
// bumps the generation, so a count taken before a decision is never stored
// after that decision's invalidation.
type StatsCache interface {
	Get(ctx context.Context) (stats model.ApprovalStats, ok bool, err error)
	Generation(ctx context.Context) (int64, error)
	Set(ctx context.Context, gen int64, stats model.ApprovalStats) error
	Invalidate(ctx context.Context) error
}

// Memory is a process-local StatsCache. A non-positive TTL disables caching.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.Mutex
	stats     model.ApprovalStats
	expiresAt time.Time
	valid     bool
	gen       int64
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, now: time.Now}
}

func (m *Memory) Get(_ context.Context) (model.ApprovalStats, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.valid || !m.now().Before(m.expiresAt) {
		return model.ApprovalStats{}, false, nil
	}
	return m.stats, true, nil
}

func (m *Memory) Generation(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen, nil
}

// Set stores stats unless the cache was invalidated after gen was read.
func (m *Memory) Set(_ context.Context, gen int64, stats model.ApprovalStats) error {
	if m.ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		return nil
	}
	m.stats = stats
	m.expiresAt = m.now().Add(m.ttl)
	m.valid = true
	return nil
}

func (m *Memory) Invalidate(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.valid = false
	m.gen++
	return nil
}
