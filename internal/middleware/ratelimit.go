package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/authsession/internal/config"
	"github.com/iliyamo/authsession/internal/response"
)

// takeToken is the bucket step run atomically in Redis. The hash holds the
// token count n and the time ts of the last credited interval. It replies
// {1 or 0, tokens left, ms until the next token}.
var takeToken = redis.NewScript(`
local now, cap, step, every, ttl =
    tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5])

local n, ts = unpack(redis.call('HMGET', KEYS[1], 'n', 'ts'))
n, ts = tonumber(n) or cap, tonumber(ts) or now

local credited = math.floor(math.max(now - ts, 0) / every)
if credited > 0 then
    n, ts = math.min(cap, n + credited * step), ts + credited * every
end

local ok, wait = 0, 0
if n >= 1 then
    ok, n = 1, n - 1
else
    wait = every - (now - ts)
end

redis.call('HSET', KEYS[1], 'n', n, 'ts', ts)
redis.call('EXPIRE', KEYS[1], ttl)
return {ok, n, wait}
`)

// NewTokenBucket limits requests with a Redis-backed token bucket. With rate
// limiting disabled or no Redis client it is a pass-through; Redis errors
// fail open.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if log == nil {
		log = zap.NewNop()
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(cfg, c)
			args := []interface{}{
				time.Now().UnixMilli(),
				cfg.Capacity,
				cfg.RefillTokens,
				cfg.RefillInterval.Milliseconds(),
				int64(cfg.TTL / time.Second),
			}

			vals, err := takeToken.Run(c.Request().Context(), rdb, []string{key}, args...).Int64Slice()
			if err != nil || len(vals) != 3 {
				log.Warn("rate limiter unavailable, allowing request", zap.String("key", key), zap.Error(err))
				return next(c)
			}
			allowed, remaining, retryMs := vals[0] == 1, vals[1], vals[2]

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if !allowed {
				secs := int(math.Ceil(float64(retryMs) / 1000.0))
				if secs < 1 {
					secs = 1
				}
				h.Set("Retry-After", strconv.Itoa(secs))
				if cfg.Debug {
					log.Info("rate limited", zap.String("key", key), zap.Int64("retry_ms", retryMs))
				}
				return response.Error(c, http.StatusTooManyRequests, response.CodeRateLimited,
					fmt.Sprintf("Too many requests, retry in %ds", secs))
			}
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			return next(c)
		}
	}
}

// rateKey buckets by client IP, and by route too unless the strategy is
// "ip". The limited routes are all unauthenticated, so there is no user to
// key on.
func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	key := cfg.Prefix + ":ip:" + ip
	if strings.EqualFold(cfg.KeyStrategy, "ip") {
		return key
	}
	return key + ":route:" + c.Request().Method + " " + c.Path()
}
