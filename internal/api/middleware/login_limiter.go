package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/99minutos/admin-backend/internal/pkg/clock"
)

const limiterIdleTTL = 5 * time.Minute

type LoginLimiterConfig struct {
	// Rate is the number of attempts refilled per second; Burst the bucket size.
	Rate  float64
	Burst int
	// Skipper excludes requests that are not login attempts.
	Skipper func(c echo.Context) bool
	Clock   clock.Clock
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// LoginLimiter throttles login attempts with one token bucket per client IP.
// Idle buckets are purged as new clients arrive.
func LoginLimiter(cfg LoginLimiterConfig) echo.MiddlewareFunc {
	var (
		mu      sync.Mutex
		buckets = make(map[string]*bucket)
	)

	allow := func(ip string) bool {
		now := cfg.Clock.Now()

		mu.Lock()
		defer mu.Unlock()
		b, ok := buckets[ip]
		if !ok {
			for k, old := range buckets {
				if now.Sub(old.seen) > limiterIdleTTL {
					delete(buckets, k)
				}
			}
			b = &bucket{lim: rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst)}
			buckets[ip] = b
		}
		b.seen = now
		return b.lim.AllowN(now, 1)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}
			ip := c.RealIP()
			if ip == "" {
				ip = "unknown"
			}
			if !allow(ip) {
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many sign-in attempts, try again later")
			}
			return next(c)
		}
	}
}
