package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/smartstudy/platform-api/pkg/config"
)

func TestRateLimiterLocalWindow(t *testing.T) {
	limiter := NewRateLimiter(nil, config.RateLimitConfig{Enabled: true, Max: 3, Window: time.Minute}, nil)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.allowLocal("1.2.3.4"))
	}
	assert.False(t, limiter.allowLocal("1.2.3.4"))
	assert.True(t, limiter.allowLocal("5.6.7.8"))
}

func TestRateLimiterWindowReset(t *testing.T) {
	limiter := NewRateLimiter(nil, config.RateLimitConfig{Enabled: true, Max: 1, Window: time.Minute}, nil)

	assert.True(t, limiter.allowLocal("1.2.3.4"))
	assert.False(t, limiter.allowLocal("1.2.3.4"))

	limiter.mu.Lock()
	limiter.windows["1.2.3.4"].resetAt = time.Now().Add(-time.Second)
	limiter.mu.Unlock()

	assert.True(t, limiter.allowLocal("1.2.3.4"))
}

func TestRateLimiterHandlerRejectsOverLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewRateLimiter(nil, config.RateLimitConfig{Enabled: true, Max: 2, Window: time.Minute}, nil)

	r := gin.New()
	r.Use(limiter.Handler())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRateLimiterDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewRateLimiter(nil, config.RateLimitConfig{Enabled: false, Max: 1, Window: time.Minute}, nil)

	r := gin.New()
	r.Use(limiter.Handler())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
