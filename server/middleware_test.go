package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitedApp(rdb *goredis.Client, limit int, window time.Duration) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: errorHandler})
	app.Use(rateLimiter(rdb, limit, window))
	app.Get("/*", func(c fiber.Ctx) error { return c.SendString("ok") })
	return app
}

func get(t *testing.T, app *fiber.App, path string) *http.Response {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), fiber.TestConfig{Timeout: 5 * time.Second})
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func TestRateLimiterFailsOpen(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	defer rdb.Close()
	app := limitedApp(rdb, 1, time.Minute)

	for i := 0; i < 3; i++ {
		resp := get(t, app, "/anything")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, resp.Header.Get("X-RateLimit-Limit"))
	}
}

func testRedis(t *testing.T) *goredis.Client {
	t.Helper()
	url := os.Getenv("AGENTFLOW_TEST_REDIS_URL")
	if url == "" {
		t.Skip("AGENTFLOW_TEST_REDIS_URL not set")
	}
	opts, err := goredis.ParseURL(url)
	require.NoError(t, err)
	rdb := goredis.NewClient(opts)
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err())
	return rdb
}

func TestRateLimiterWindow(t *testing.T) {
	rdb := testRedis(t)
	path := "/limited-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := rdb.Keys(ctx, rateLimitPrefix+"*"+path).Result()
		if len(keys) > 0 {
			rdb.Del(ctx, keys...)
		}
	})
	app := limitedApp(rdb, 2, time.Minute)

	resp := get(t, app, path)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2", resp.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", resp.Header.Get("X-RateLimit-Remaining"))

	resp = get(t, app, path)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))

	resp = get(t, app, path)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderRetryAfter))

	resp = get(t, app, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode, "health is exempt")
}

func TestHitAlwaysSetsExpiry(t *testing.T) {
	rdb := testRedis(t)
	ctx := context.Background()
	key := rateLimitPrefix + "test:" + strconv.FormatInt(time.Now().UnixNano(), 10)
	t.Cleanup(func() { rdb.Del(context.Background(), key) })

	// a counter left behind without a TTL gets one on the next hit
	require.NoError(t, rdb.Set(ctx, key, 5, 0).Err())

	count, ttl, err := hit(ctx, rdb, key, 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(6), count)
	assert.Greater(t, ttl, time.Duration(0))

	stored, err := rdb.TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Greater(t, stored, time.Duration(0))

	// later hits keep the original window
	require.NoError(t, rdb.Expire(ctx, key, 10*time.Second).Err())
	_, ttl, err = hit(ctx, rdb, key, 30*time.Second)
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, 10*time.Second)
}
