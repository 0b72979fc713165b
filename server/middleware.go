package server

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
)

const (
	HeaderRequestID = "X-Request-ID"

	rateLimitPrefix  = "agentflow:ratelimit:"
	rateLimitTimeout = 500 * time.Millisecond
)

// requestLogger tags every request with an id and logs its outcome.
func requestLogger() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		id := c.Get(HeaderRequestID)
		if id == "" {
			id = xid.New().String()
		}
		c.Set(HeaderRequestID, id)

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = statusOf(err)
		}
		evt := log.Info()
		if status >= fiber.StatusInternalServerError {
			evt = log.Error().Err(err)
		}
		evt.Str("request_id", id).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
		return err
	}
}

// rateLimiter is a fixed-window limiter keyed by client address and path.
// Redis failures let the request through.
func rateLimiter(rdb *goredis.Client, limit int, window time.Duration) fiber.Handler {
	return func(c fiber.Ctx) error {
		if c.Path() == "/health" {
			return c.Next()
		}

		ctx, cancel := context.WithTimeout(context.Background(), rateLimitTimeout)
		defer cancel()

		key := rateLimitPrefix + c.IP() + ":" + c.Path()
		count, ttl, err := hit(ctx, rdb, key, window)
		if err != nil {
			log.Warn().Err(err).Msg("Rate limiter unavailable")
			return c.Next()
		}

		remaining := int64(limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))

		if count > int64(limit) {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(ttl.Seconds())))
			return fiber.NewError(fiber.StatusTooManyRequests, "Too many requests")
		}
		return c.Next()
	}
}

// hit counts one request against key. The increment and the window expiry
// run in one transaction so a counter can never be left without a TTL.
func hit(ctx context.Context, rdb *goredis.Client, key string, window time.Duration) (int64, time.Duration, error) {
	var incr *goredis.IntCmd
	var ttl *goredis.DurationCmd
	_, err := rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		ttl = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	d := ttl.Val()
	if d < 0 {
		d = window
	}
	return incr.Val(), d, nil
}
