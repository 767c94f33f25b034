package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerWindow int           // Number of requests allowed per window
	Window            time.Duration // Time window for rate limiting
	KeyPrefix         string        // Redis key prefix
}

// clientKey identifies the caller: the authenticated user when known,
// otherwise the client IP without its port.
func clientKey(r *http.Request) string {
	if userID, ok := GetUserID(r.Context()); ok {
		return "user:" + userID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

type windowCounter struct {
	rdb *redis.Client
	cfg RateLimitConfig
}

// hit counts one request against key and returns the running count and the
// time left in the window. The first hit creates the counter with its
// expiry (SET NX EX), so a key can never outlive its window.
func (c windowCounter) hit(ctx context.Context, key string) (int64, time.Duration, error) {
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SetNX(ctx, key, 0, c.cfg.Window)
		incr = p.Incr(ctx, key)
		ttl = p.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	left := ttl.Val()
	if left <= 0 {
		left = c.cfg.Window
	}
	return incr.Val(), left, nil
}

// RateLimitMiddleware applies a fixed-window limit per caller, counted in
// Redis so every instance shares it. When Redis is unreachable requests are
// let through.
func RateLimitMiddleware(redisClient *redis.Client, config RateLimitConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	counter := windowCounter{rdb: redisClient, cfg: config}
	limit := strconv.Itoa(config.RequestsPerWindow)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := config.KeyPrefix + ":" + clientKey(r)

			count, left, err := counter.hit(r.Context(), key)
			if err != nil {
				logger.Error("Rate limit check failed, allowing request", zap.String("key", key), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			remaining := max(config.RequestsPerWindow-int(count), 0)
			w.Header().Set("X-RateLimit-Limit", limit)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(left).Unix(), 10))

			if count > int64(config.RequestsPerWindow) {
				logger.Warn("Rate limit exceeded",
					zap.String("key", key),
					zap.Int64("count", count),
					zap.String("path", r.URL.Path),
				)
				w.Header().Set("Retry-After", strconv.Itoa(max(int(left.Round(time.Second).Seconds()), 1)))
				RespondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
