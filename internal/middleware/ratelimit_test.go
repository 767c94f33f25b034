package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Feature: storefront, Property 10: Rate limiting blocks excessive requests
func TestProperty_RateLimitingBlocksExcessiveRequests(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("exactly the limit passes and the rest get 429", prop.ForAll(
		func(limit int, excess int) bool {
			mr := miniredis.RunT(t)
			redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			defer redisClient.Close()

			handler := RateLimitMiddleware(redisClient, RateLimitConfig{
				RequestsPerWindow: limit,
				Window:            time.Minute,
				KeyPrefix:         "test_rate_limit",
			}, zap.NewNop())(okHandler())

			passed, blocked := 0, 0
			for i := 0; i < limit+excess; i++ {
				req := httptest.NewRequest("POST", "/api/users/login", nil)
				req.RemoteAddr = "192.168.1.100:" + strconv.Itoa(40000+i)
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, req)

				switch w.Code {
				case http.StatusOK:
					passed++
				case http.StatusTooManyRequests:
					blocked++
					if w.Header().Get("Retry-After") == "" {
						return false
					}
				}
			}
			return passed == limit && blocked == excess
		},
		gen.IntRange(1, 20),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRateLimit_HeadersAndWindowReset(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer redisClient.Close()

	handler := RateLimitMiddleware(redisClient, RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute, KeyPrefix: "rl"}, zap.NewNop())(okHandler())
	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/", nil)
		req.RemoteAddr = "10.1.1.1:5555"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	w := do()
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	assert.True(t, mr.Exists("rl:ip:10.1.1.1"))

	do()
	assert.Equal(t, http.StatusTooManyRequests, do().Code)

	mr.FastForward(2 * time.Minute)
	assert.Equal(t, http.StatusOK, do().Code)
}

func TestRateLimit_FailsOpenWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer redisClient.Close()
	mr.Close()

	handler := RateLimitMiddleware(redisClient, RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, KeyPrefix: "rl"}, zap.NewNop())(okHandler())
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("POST", "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimit_WindowIsNotExtendedByLaterHits(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer redisClient.Close()

	handler := RateLimitMiddleware(redisClient, RateLimitConfig{RequestsPerWindow: 5, Window: time.Minute, KeyPrefix: "rl"}, zap.NewNop())(okHandler())
	hit := func() {
		req := httptest.NewRequest("POST", "/", nil)
		req.RemoteAddr = "10.2.2.2:1234"
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	hit()
	count, err := mr.Get("rl:ip:10.2.2.2")
	require.NoError(t, err)
	assert.Equal(t, "1", count)
	assert.Equal(t, time.Minute, mr.TTL("rl:ip:10.2.2.2"))

	mr.FastForward(40 * time.Second)
	hit()

	count, err = mr.Get("rl:ip:10.2.2.2")
	require.NoError(t, err)
	assert.Equal(t, "2", count)
	ttl := mr.TTL("rl:ip:10.2.2.2")
	assert.LessOrEqual(t, ttl, 20*time.Second)
	assert.Greater(t, ttl, time.Duration(0))
}
