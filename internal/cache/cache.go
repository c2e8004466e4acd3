// Package cache provides the in-process caches the dashboard reads through:
// a generic TTL/LRU store plus a manager that periodically sweeps expired
// entries out of every registered cache.
package cache

import (
	"log/slog"
	"sync"
	"time"
)

// Cache is the read-through store interface the server consumes.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner is implemented by caches whose expired entries can be swept.
// CleanExpired returns how many entries were removed.
type Cleaner interface {
	CleanExpired() int
}

// Manager owns the periodic sweep over every registered cache.
type Manager struct {
	caches      []Cleaner
	stopCleanup chan struct{}
	cleanupDone chan struct{}
	started     bool
	stopOnce    sync.Once
}

func NewManager() *Manager {
	return &Manager{
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a cache to the sweep. Call before StartCleanup.
func (m *Manager) Register(cache Cleaner) {
	m.caches = append(m.caches, cache)
}

// StartCleanup begins sweeping every interval until Stop is called.
func (m *Manager) StartCleanup(interval time.Duration) {
	m.started = true
	go m.sweep(interval)
}

func (m *Manager) sweep(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			evicted := 0
			for _, cache := range m.caches {
				evicted += cache.CleanExpired()
			}
			if evicted > 0 {
				slog.Debug("Swept expired cache entries",
					"evicted", evicted,
					"caches", len(m.caches))
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop halts the sweep and waits for it to exit. Safe to call more than
// once, and a no-op when StartCleanup was never called.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCleanup)
		if m.started {
			<-m.cleanupDone
		}
	})
}
