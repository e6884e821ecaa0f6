package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "fmt"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/raffle-number-reservation/internal/config"
)

// captureWriter captures the response body while forwarding to the client.
type captureWriter struct {
    http.ResponseWriter
    status    int
    buf       bytes.Buffer
    truncated bool
    limit     int64
}

func (cw *captureWriter) WriteHeader(code int) {
    cw.status = code
    cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
    if cw.limit > 0 && int64(cw.buf.Len()+len(b)) > cw.limit {
        cw.truncated = true // too large to cache; still stream to the client
    } else {
        cw.buf.Write(b)
    }
    return cw.ResponseWriter.Write(b)
}

func cacheKey(prefix string, c echo.Context) string {
    sum := sha1.Sum([]byte(c.Path() + "?" + c.Request().URL.RawQuery))
    return fmt.Sprintf("%s:%x", prefix, sum[:])
}

// NewRedisCache returns middleware that serves cached JSON bodies for the
// configured read methods.  Only 200 responses that fit under MaxBodyBytes
// are stored.  When Redis is unavailable every request falls through to the
// handler, so the cache can never make the API less available than no cache.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc {
            return func(c echo.Context) error { return next(c) }
        }
    }
    ttl := cfg.TTL
    if ttl <= 0 {
        ttl = 5 * time.Second
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
                return next(c)
            }

            ctx := c.Request().Context()
            key := cacheKey(cfg.Prefix, c)

            if body, err := rdb.Get(ctx, key).Bytes(); err == nil && len(body) > 0 {
                c.Response().Header().Set("X-Cache", "HIT")
                return c.JSONBlob(http.StatusOK, body)
            }

            cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: int64(cfg.MaxBodyBytes)}
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")

            if err := next(c); err != nil {
                return err
            }

            if cw.status == http.StatusOK && !cw.truncated {
                // Detached context: the client may be gone by now, the cache write should still land.
                _ = rdb.SetEx(context.Background(), key, cw.buf.Bytes(), ttl).Err()
            }
            return nil
        }
    }
}
