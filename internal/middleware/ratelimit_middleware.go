package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/surgeryquote_api/internal/metrics"
	"github.com/GTDGit/surgeryquote_api/internal/utils"
)

// Counter counts hits per key within a fixed window.
type Counter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimiter allows at most limit requests per client IP and window.
type RateLimiter struct {
	counter Counter
	scope   string
	limit   int
	window  time.Duration
}

// NewRateLimiter constructs a RateLimiter. A limit <= 0 disables it.
func NewRateLimiter(counter Counter, scope string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		counter: counter,
		scope:   scope,
		limit:   limit,
		window:  window,
	}
}

// Allow checks if ip can make another request. Counter failures let the
// request through.
func (r *RateLimiter) Allow(ctx context.Context, ip string) bool {
	if r.limit <= 0 {
		return true
	}
	n, err := r.counter.Hit(ctx, "ratelimit:"+r.scope+":"+ip, r.window)
	if err != nil {
		log.Warn().Err(err).Str("scope", r.scope).Msg("Rate limit counter unavailable")
		return true
	}
	return n <= int64(r.limit)
}

// Handle returns a Gin middleware that rejects requests over the limit with 429.
func (r *RateLimiter) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !r.Allow(c.Request.Context(), c.ClientIP()) {
			metrics.RateLimited.WithLabelValues(r.scope).Inc()
			log.Warn().Str("scope", r.scope).Str("ip", c.ClientIP()).Msg("Rate limit exceeded")
			c.Header("Retry-After", strconv.Itoa(int(r.window.Seconds())))
			utils.Error(c, http.StatusTooManyRequests, "TOO_MANY_REQUESTS", "Too many requests, try again later")
			c.Abort()
			return
		}
		c.Next()
	}
}

// MemoryCounter is an in-process Counter used when Redis is not shared
// between instances.
type MemoryCounter struct {
	mu       sync.Mutex
	attempts map[string]*attemptInfo
}

type attemptInfo struct {
	count   int64
	firstAt time.Time
	window  time.Duration
}

// NewMemoryCounter constructs a MemoryCounter that drops expired windows
// every cleanupEvery until ctx is done.
func NewMemoryCounter(ctx context.Context, cleanupEvery time.Duration) *MemoryCounter {
	m := &MemoryCounter{
		attempts: make(map[string]*attemptInfo),
	}
	go m.cleanup(ctx, cleanupEvery)
	return m
}

// Hit implements Counter.
func (m *MemoryCounter) Hit(_ context.Context, key string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	info, exists := m.attempts[key]
	// Reset if window expired
	if !exists || now.Sub(info.firstAt) > window {
		m.attempts[key] = &attemptInfo{count: 1, firstAt: now, window: window}
		return 1, nil
	}
	info.count++
	return info.count, nil
}

func (m *MemoryCounter) cleanup(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			now := time.Now()
			for key, info := range m.attempts {
				if now.Sub(info.firstAt) > info.window {
					delete(m.attempts, key)
				}
			}
			m.mu.Unlock()
		}
	}
}
