package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type entry struct {
	count int
	last  time.Time
}

// MemoryLimiter keeps attempt counters in process memory. State is lost on
// restart and is not shared between instances.
type MemoryLimiter struct {
	opts    Options
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
	log     *zap.Logger
}

func NewMemoryLimiter(opts Options, log *zap.Logger) *MemoryLimiter {
	return &MemoryLimiter{
		opts:    opts.withDefaults(),
		entries: make(map[string]*entry),
		now:     time.Now,
		log:     log,
	}
}

// WithClock replaces the time source.
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	l.now = now
	return l
}

func (l *MemoryLimiter) Check(_ context.Context, key string) (time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok {
		l.entries[key] = &entry{last: now}
		return 0, nil
	}

	elapsed := now.Sub(e.last)
	if elapsed >= l.opts.Window {
		e.count = 0
		e.last = now
		return 0, nil
	}

	if e.count >= l.opts.MaxAttempts {
		return l.opts.Window - elapsed, nil
	}

	return 0, nil
}

func (l *MemoryLimiter) RecordFailure(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{}
		l.entries[key] = e
	}
	e.count++
	e.last = now

	return nil
}

func (l *MemoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[key]; ok {
		e.count = 0
		e.last = l.now()
	}

	return nil
}

// Sweep drops entries whose window has elapsed and returns how many were removed.
func (l *MemoryLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, e := range l.entries {
		if now.Sub(e.last) >= l.opts.Window {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// Run sweeps stale entries every interval until ctx is cancelled.
func (l *MemoryLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := l.Sweep(); removed > 0 {
				l.log.Debug("rate limiter sweep", zap.Int("removed", removed))
			}
		}
	}
}

func (l *MemoryLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
