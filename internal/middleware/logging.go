// Package middleware provides the HTTP middleware chain of the storefront:
// request logging, panic recovery, security headers, CORS, Prometheus
// metrics and Redis-backed rate limiting.
package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/ieraasyl/Storefront/internal/render"
	"github.com/ieraasyl/Storefront/pkg/utils"
	"github.com/rs/zerolog/log"
)

// CORS allows the configured origins to call the JSON API with credentials.
//
// Example:
//
//	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	})
}

// Logger logs every request with a correlation id. An incoming X-Request-ID
// is reused, otherwise a UUID is generated; either way it is echoed in the
// response and stored in the request context.
func Logger() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}

			r = r.WithContext(utils.WithRequestID(r.Context(), requestID))

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(ww, r)

			event := log.Info()
			if ww.Status() >= http.StatusInternalServerError {
				event = log.Error()
			}
			event.
				Str("request_id", requestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_ip", utils.ExtractClientIP(r)).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration_ms", time.Since(start)).
				Msg("Request completed")
		})
	}
}

// Recoverer turns a panic into a 500. API routes get a JSON error body,
// everything else the generic error page asking the user to refresh.
func Recoverer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				log.Error().
					Interface("error", rec).
					Str("request_id", utils.GetRequestID(r.Context())).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Msg("Panic recovered")

				if strings.HasPrefix(r.URL.Path, "/api/") {
					utils.RespondWithError(w, r, http.StatusInternalServerError, render.GenericErrorMessage)
					return
				}
				render.WriteError(w, http.StatusInternalServerError, render.GenericErrorMessage)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders sets the browser hardening headers. The CSP admits the
// Google Identity Services script and button frame, and product images from
// any HTTPS origin.
func SecurityHeaders() func(http.Handler) http.Handler {
	csp := strings.Join([]string{
		"default-src 'self'",
		"script-src 'self' https://accounts.google.com/gsi/client",
		"frame-src https://accounts.google.com/gsi/",
		"connect-src 'self' https://accounts.google.com/gsi/",
		"style-src 'self' 'unsafe-inline' https://accounts.google.com/gsi/style",
		"img-src 'self' https: data:",
	}, "; ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			w.Header().Set("Content-Security-Policy", csp)
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			next.ServeHTTP(w, r)
		})
	}
}
