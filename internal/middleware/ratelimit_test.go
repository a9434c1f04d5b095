package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRateLimit поднимает miniredis и limiter с заданным лимитом.
func setupRateLimit(t *testing.T, limit int) (*RateLimitMiddleware, *miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	return NewRateLimitMiddleware(redisClient, limit, time.Minute), mr, redisClient
}

// doRequest прогоняет один запрос через limiter и возвращает recorder.
func doRequest(mw *RateLimitMiddleware, ip string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/checkout", nil)
	c.Request.RemoteAddr = ip + ":12345"

	mw.Handle()(c)
	return w
}

func TestRateLimitMiddleware_AllowsUnderLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mw, _, _ := setupRateLimit(t, 5)

	for i := 0; i < 5; i++ {
		w := doRequest(mw, "192.168.1.1")

		assert.NotEqual(t, http.StatusTooManyRequests, w.Code, "запрос %d должен пройти", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimitMiddleware_BlocksOverLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mw, _, _ := setupRateLimit(t, 3)

	for i := 0; i < 3; i++ {
		doRequest(mw, "192.168.1.1")
	}

	w := doRequest(mw, "192.168.1.1")

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRateLimitMiddleware_SeparateCountersPerIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mw, _, _ := setupRateLimit(t, 2)

	// Первый IP исчерпывает лимит
	doRequest(mw, "192.168.1.1")
	doRequest(mw, "192.168.1.1")
	blocked := doRequest(mw, "192.168.1.1")
	require.Equal(t, http.StatusTooManyRequests, blocked.Code)

	// Второй IP не задет
	w := doRequest(mw, "10.0.0.2")
	assert.NotEqual(t, http.StatusTooManyRequests, w.Code)
}

func TestRateLimitMiddleware_WindowExpiry(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mw, mr, _ := setupRateLimit(t, 1)

	doRequest(mw, "192.168.1.1")
	blocked := doRequest(mw, "192.168.1.1")
	require.Equal(t, http.StatusTooManyRequests, blocked.Code)

	// Окно истекло — счётчик сброшен
	mr.FastForward(2 * time.Minute)

	w := doRequest(mw, "192.168.1.1")
	assert.NotEqual(t, http.StatusTooManyRequests, w.Code)
}

// При недоступном Redis запросы пропускаются: лимиты не важнее витрины.
func TestRateLimitMiddleware_FailOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mw, mr, _ := setupRateLimit(t, 1)

	mr.Close()

	for i := 0; i < 5; i++ {
		w := doRequest(mw, "192.168.1.1")
		assert.NotEqual(t, http.StatusTooManyRequests, w.Code)
	}
}
