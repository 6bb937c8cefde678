package command

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter implements per-client command rate limiting
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*clientLimit
	config   RateLimitConfig
	stopOnce sync.Once
	stop     chan struct{}
}

type clientLimit struct {
	limiter *rate.Limiter
	lastCmd time.Time
}

// RateLimitConfig configures rate limiting behavior
type RateLimitConfig struct {
	PerSecond float64       // Sustained commands per second
	Burst     int           // Commands allowed at once
	IdleTTL   time.Duration // Forget clients idle this long
}

// DefaultRateLimitConfig fits a human pressing keys quickly
var DefaultRateLimitConfig = RateLimitConfig{
	PerSecond: 30,
	Burst:     30,
	IdleTTL:   5 * time.Minute,
}

// NewRateLimiter creates a rate limiter and starts its cleanup goroutine
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.PerSecond <= 0 {
		cfg.PerSecond = DefaultRateLimitConfig.PerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.PerSecond)
		if cfg.Burst < 1 {
			cfg.Burst = 1
		}
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultRateLimitConfig.IdleTTL
	}

	rl := &RateLimiter{
		clients: make(map[string]*clientLimit),
		config:  cfg,
		stop:    make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Allow checks if a client can execute a command
func (rl *RateLimiter) Allow(clientID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cl, ok := rl.clients[clientID]
	if !ok {
		cl = &clientLimit{limiter: rate.NewLimiter(rate.Limit(rl.config.PerSecond), rl.config.Burst)}
		rl.clients[clientID] = cl
	}
	cl.lastCmd = now
	return cl.limiter.AllowN(now, 1)
}

// Len returns the number of tracked clients
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Stop ends the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// cleanup removes idle clients every minute
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.evictIdle(now)
		}
	}
}

func (rl *RateLimiter) evictIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := now.Add(-rl.config.IdleTTL)
	for id, cl := range rl.clients {
		if cl.lastCmd.Before(cutoff) {
			delete(rl.clients, id)
		}
	}
}
