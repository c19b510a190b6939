package middleware

import (
	"net"
	"net/http"

	"github.com/ieraasyl/Storefront/pkg/utils"
)

// RealIP sets RemoteAddr to the forwarded client address for requests that
// come from one of the trusted proxies. Without trusted proxies it is a
// no-op, so spoofed X-Forwarded-For headers never reach the rate limiter.
//
// Example:
//
//	trusted, _ := utils.ParseTrustedProxies(cfg.Server.TrustedProxies)
//	r.Use(middleware.RealIP(trusted))
func RealIP(trusted []*net.IPNet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(trusted) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.RemoteAddr = utils.ForwardedClientIP(r, trusted)
			next.ServeHTTP(w, r)
		})
	}
}
