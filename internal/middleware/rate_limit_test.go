package middleware

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/campusconnect-api/internal/models"
)

func TestRateLimiterPerPrincipal(t *testing.T) {
	limiter := NewRateLimiter(1, 2)
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	guard := limiter.Middleware()

	lib := &models.JWTClaims{UserID: "F1", Role: models.RoleFaculty}
	assert.Equal(t, http.StatusNoContent, serveWithClaims(lib, "/action", "/action", guard))
	assert.Equal(t, http.StatusNoContent, serveWithClaims(lib, "/action", "/action", guard))
	assert.Equal(t, http.StatusTooManyRequests, serveWithClaims(lib, "/action", "/action", guard))

	other := &models.JWTClaims{UserID: "F2", Role: models.RoleFaculty}
	assert.Equal(t, http.StatusNoContent, serveWithClaims(other, "/action", "/action", guard))

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusNoContent, serveWithClaims(lib, "/action", "/action", guard))
}

func TestRateLimiterSweepsIdleVisitors(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.allow("user:F1"))
	now = now.Add(visitorIdleTTL + time.Minute)
	assert.True(t, limiter.allow("user:F2"))

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.NotContains(t, limiter.visitors, "user:F1")
	assert.Contains(t, limiter.visitors, "user:F2")
}

func TestRateLimiterDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var nilLimiter *RateLimiter
	for _, guard := range []gin.HandlerFunc{nilLimiter.Middleware(), NewRateLimiter(0, 1).Middleware()} {
		for i := 0; i < 5; i++ {
			assert.Equal(t, http.StatusNoContent, serveWithClaims(nil, "/action", "/action", guard))
		}
	}
}
