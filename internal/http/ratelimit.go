package http

import (
	"sync"
	"sync/atomic"
	"time"
)

// postLimitPerMinute caps form submissions per client. The dashboard serves
// one person; eleven slot saves plus a holiday toggle fit comfortably in
// thirty writes a minute, anything past that is a stuck script or a probe.
const postLimitPerMinute = 30

// rateLimiter counts writes per client IP over fixed one-minute windows.
type rateLimiter struct {
	mu           sync.Mutex
	windows      map[string]*clientWindow
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientWindow struct {
	start time.Time
	count int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		windows:     make(map[string]*clientWindow),
		stopCleanup: make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *rateLimiter) cleanupLoop() {
	ticker := time.NewTicker(2 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.dropIdleWindows()
		case <-rl.stopCleanup:
			return
		}
	}
}

// dropIdleWindows forgets clients that have been quiet for five minutes.
func (rl *rateLimiter) dropIdleWindows() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-5 * time.Minute)
	for ip, w := range rl.windows {
		if w.start.Before(cutoff) {
			delete(rl.windows, ip)
		}
	}
}

// stop shuts down the cleanup goroutine. Safe to call more than once.
func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// allow reports whether one more write from clientIP fits in its current
// window, recording a metrics hit when it does not.
func (rl *rateLimiter) allow(clientIP string, metrics *securityMetrics) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, ok := rl.windows[clientIP]
	if !ok || now.Sub(w.start) > time.Minute {
		rl.windows[clientIP] = &clientWindow{start: now, count: 1}
		return true
	}

	w.count++
	if w.count > postLimitPerMinute {
		if metrics != nil {
			atomic.AddInt64(&metrics.rateLimitHits, 1)
		}
		return false
	}
	return true
}
