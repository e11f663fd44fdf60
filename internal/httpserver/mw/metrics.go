package mw

import (
	"net/http"

	"github.com/MrSnakeDoc/aimarket/internal/metrics"
)

// Metrics counts every served request by method and status class.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	if m == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(ww, r)
			m.HTTPRequest(r.Method, ww.code())
		})
	}
}
