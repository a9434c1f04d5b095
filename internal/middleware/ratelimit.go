package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"example.com/storefront/pkg/logger"
)

// rateLimitScript атомарно увеличивает счётчик и ставит TTL окна.
var rateLimitScript = redis.NewScript(`
	local current = redis.call("INCR", KEYS[1])
	if current == 1 then
		redis.call("EXPIRE", KEYS[1], ARGV[1])
	end
	return current
`)

// RateLimitMiddleware ограничивает частоту запросов по IP.
// Счётчики в Redis (fixed window); при недоступном Redis запросы
// пропускаются — fail-open, витрина важнее лимитов.
type RateLimitMiddleware struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

// NewRateLimitMiddleware создаёт rate limiter.
func NewRateLimitMiddleware(redisClient *redis.Client, limit int, window time.Duration) *RateLimitMiddleware {
	if limit <= 0 {
		limit = 100
	}
	if window <= 0 {
		window = time.Minute
	}

	return &RateLimitMiddleware{
		redis:  redisClient,
		limit:  limit,
		window: window,
	}
}

// Handle возвращает Gin handler function для middleware.
func (m *RateLimitMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		log := logger.FromContext(ctx)

		key := "storefront:rate:" + c.ClientIP()

		windowSec := int(m.window.Seconds())
		current, err := rateLimitScript.Run(ctx, m.redis, []string{key}, windowSec).Int()
		if err != nil {
			log.Warn().Err(err).Msg("ошибка проверки rate limit, запрос пропущен")
			c.Next()
			return
		}

		remaining := m.limit - current
		if remaining < 0 {
			remaining = 0
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", m.limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(m.window).Unix()))

		if current > m.limit {
			log.Warn().
				Str("client_ip", c.ClientIP()).
				Int("limit", m.limit).
				Msg("Rate limit превышен")

			c.Header("Retry-After", fmt.Sprintf("%d", windowSec))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": fmt.Sprintf("Превышен лимит запросов. Попробуйте через %d секунд", windowSec),
			})
			return
		}

		c.Next()
	}
}
