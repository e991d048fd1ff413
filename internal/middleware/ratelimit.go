package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/smartstudy/platform-api/pkg/config"
	appErrors "github.com/smartstudy/platform-api/pkg/errors"
	"github.com/smartstudy/platform-api/pkg/response"
)

// RateLimiter applies a fixed-window per-IP request cap. Counters live in
// Redis so multiple instances share the window; when Redis is unavailable
// an in-process fallback keeps the limit enforced on this instance.
type RateLimiter struct {
	client *redis.Client
	cfg    config.RateLimitConfig
	logger *zap.Logger

	mu      sync.Mutex
	windows map[string]*localWindow
}

type localWindow struct {
	count   int
	resetAt time.Time
}

// NewRateLimiter constructs a limiter. A nil client selects the in-memory
// fallback from the start.
func NewRateLimiter(client *redis.Client, cfg config.RateLimitConfig, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	if cfg.Max <= 0 {
		cfg.Max = 100
	}
	return &RateLimiter{
		client:  client,
		cfg:     cfg,
		logger:  logger,
		windows: make(map[string]*localWindow),
	}
}

// Handler returns the gin middleware.
func (l *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.cfg.Enabled {
			c.Next()
			return
		}

		allowed, err := l.allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			l.logger.Warn("rate limit check failed", zap.Error(err))
			allowed = l.allowLocal(c.ClientIP())
		}

		if !allowed {
			response.Error(c, appErrors.ErrRateLimited)
			c.Abort()
			return
		}
		c.Next()
	}
}

// allow increments the caller's counter for the current window. The key
// expires with the window so stale counters clean themselves up.
func (l *RateLimiter) allow(ctx context.Context, ip string) (bool, error) {
	if l.client == nil {
		return l.allowLocal(ip), nil
	}

	key := fmt.Sprintf("ratelimit:%s", ip)
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.cfg.Window).Err(); err != nil {
			return false, fmt.Errorf("rate limit expire: %w", err)
		}
	}
	return count <= int64(l.cfg.Max), nil
}

func (l *RateLimiter) allowLocal(ip string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	window, ok := l.windows[ip]
	if !ok || now.After(window.resetAt) {
		l.windows[ip] = &localWindow{count: 1, resetAt: now.Add(l.cfg.Window)}
		return true
	}
	window.count++
	return window.count <= l.cfg.Max
}
