package mw

import (
	"net/http"

	"github.com/MrSnakeDoc/aimarket/internal/logger"
	"github.com/MrSnakeDoc/aimarket/internal/utils"
)

// AllowOnlyCIDRS guards moderation routes by client address. An empty
// list disables the guard. Set trustProxy only when the origin is reachable
// through a trusted reverse proxy or tunnel.
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	m := utils.NewIPMatcher(allowed)
	if m.IsEmpty() {
		log.Warn("admin routes are not restricted by address")
		return func(next http.Handler) http.Handler { return next }
	}

	log.Debug("admin address guard enabled",
		logger.Strings("cidrs", allowed),
		logger.Bool("trust_proxy", trustProxy))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r, trustProxy)
			if !m.Allow(ip) {
				log.Info("admin request refused",
					logger.String("remote_ip", ip),
					logger.String("path", r.URL.Path))
				deny(w, http.StatusForbidden, "FORBIDDEN", "address not allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
