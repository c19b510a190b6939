package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ieraasyl/Storefront/pkg/utils"
	"github.com/rs/zerolog/log"
)

// RateLimitStore increments a per-client counter for the current window and
// returns the new count. *database.RedisDB implements it with INCR + EXPIRE
// on "ratelimit:{ip}:{endpoint}".
type RateLimitStore interface {
	IncrementRateLimit(ctx context.Context, ip, endpoint string, window time.Duration) (int64, error)
}

// RateLimiter is a fixed-window limiter keyed by client IP and endpoint.
// Counters live in Redis so every instance shares them.
type RateLimiter struct {
	store    RateLimitStore
	requests int
	window   time.Duration
}

// NewRateLimiter allows requests per window for each client.
//
//	limiter := middleware.NewRateLimiter(redisDB, cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.WindowDuration)
//	r.With(limiter.Limit("auth")).Post("/auth/google/callback", authHandler.GoogleCallback)
func NewRateLimiter(store RateLimitStore, requests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		store:    store,
		requests: requests,
		window:   window,
	}
}

// Limit returns middleware that counts requests under endpoint.
//
// Sets X-RateLimit-Limit and X-RateLimit-Remaining on every response and
// Retry-After on 429. If the store is unreachable the request is let
// through, so a Redis outage never locks users out of signing in.
func (rl *RateLimiter) Limit(endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ExtractClientIP(r)

			count, err := rl.store.IncrementRateLimit(r.Context(), ip, endpoint, rl.window)
			if err != nil {
				log.Error().Err(err).Str("ip", ip).Str("endpoint", endpoint).Msg("Failed to check rate limit")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requests))

			if count > int64(rl.requests) {
				log.Warn().
					Str("ip", ip).
					Str("endpoint", endpoint).
					Int64("count", count).
					Msg("Rate limit exceeded")

				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))

				const message = "Rate limit exceeded. Please try again later."
				if strings.HasPrefix(r.URL.Path, "/api/") {
					utils.RespondWithError(w, r, http.StatusTooManyRequests, message)
					return
				}
				http.Error(w, message, http.StatusTooManyRequests)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rl.requests-int(count)))
			next.ServeHTTP(w, r)
		})
	}
}
