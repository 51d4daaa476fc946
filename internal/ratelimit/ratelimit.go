// Package ratelimit bounds the rate of client operations per agent
// session, grounded on the teacher's internal/middleware.RateLimiter:
// the same fixed-window-per-key algorithm (read-first fast path,
// write-lock slow path on window rollover, periodic goroutine cleanup of
// stale windows) generalised from a fixed one-minute HTTP window to a
// configurable window sized for the broker's per-frame dispatch rate.
// The HTTP middleware wrapper and tenant-scoped key composition do not
// carry over: spec.md's broker has no HTTP surface and no tenant concept.
package ratelimit

import (
	"log/slog"
	"sync"
	"time"
)

// Config sets the window size and the request budget within it. A key's
// window starts at its first request and is replaced by a fresh one on
// the first request after Window has elapsed.
type Config struct {
	MaxRequests int
	Window      time.Duration
}

type window struct {
	count int
	start time.Time
}

// Limiter enforces Config's budget independently per key (an agent's
// public key). The zero value is not usable; construct with New.
type Limiter struct {
	mu       sync.RWMutex
	windows  map[string]*window
	cfg      Config
	logger   *slog.Logger
	stopOnce sync.Once
	stop     chan struct{}
}

// New constructs a Limiter and starts its background cleanup goroutine.
// The returned Limiter's Stop method must be called to release it.
func New(cfg Config, logger *slog.Logger) *Limiter {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 200
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	l := &Limiter{
		windows: make(map[string]*window),
		cfg:     cfg,
		logger:  logger,
		stop:    make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Stop halts the background cleanup goroutine. Idempotent.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Allow reports whether a request from key is within budget for the
// current window, incrementing the window's counter as a side effect.
func (l *Limiter) Allow(key string) bool {
	now := time.Now()

	l.mu.RLock()
	w, exists := l.windows[key]
	if exists && now.Sub(w.start) <= l.cfg.Window {
		w.count++
		count := w.count
		l.mu.RUnlock()
		if count > l.cfg.MaxRequests {
			l.logger.Warn("ratelimit: budget exceeded", "key", key, "count", count, "limit", l.cfg.MaxRequests)
			return false
		}
		return true
	}
	l.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, exists = l.windows[key]
	if exists && now.Sub(w.start) <= l.cfg.Window {
		w.count++
		return w.count <= l.cfg.MaxRequests
	}

	l.windows[key] = &window{count: 1, start: now}
	return true
}

// cleanupLoop periodically evicts windows for keys that have gone quiet,
// preventing unbounded growth from short-lived agent sessions.
func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(10 * l.cfg.Window)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			now := time.Now()
			for key, w := range l.windows {
				if now.Sub(w.start) > 4*l.cfg.Window {
					delete(l.windows, key)
				}
			}
			l.mu.Unlock()
		}
	}
}
