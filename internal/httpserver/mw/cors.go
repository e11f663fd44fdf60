package mw

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// Headers and methods accepted from browsers. The header list matches what
// API gateway clients already send.
var (
	CORSAllowedHeaders = []string{"Content-Type", "X-Amz-Date", "Authorization", "X-Api-Key", "X-Amz-Security-Token"}
	CORSAllowedMethods = []string{http.MethodOptions, http.MethodPost, http.MethodGet, http.MethodPut, http.MethodDelete}
)

// CORS answers every OPTIONS request with 200 and decorates actual requests.
// An empty origin list allows any origin.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	preflight := cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   CORSAllowedMethods,
		AllowedHeaders:   CORSAllowedHeaders,
		ExposedHeaders:   []string{"X-Request-Id", "Location", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: false,
		MaxAge:           300,
	})

	// go-chi/cors only answers OPTIONS carrying Access-Control-Request-Method.
	// A bare OPTIONS still gets the permissive headers.
	bareOrigin := "*"
	if len(origins) == 1 {
		bareOrigin = origins[0]
	}
	methods := strings.Join(CORSAllowedMethods, ",")
	headers := strings.Join(CORSAllowedHeaders, ",")
	bare := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", bareOrigin)
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", headers)
			w.WriteHeader(http.StatusOK)
		})
	}

	return func(next http.Handler) http.Handler {
		return preflight(bare(next))
	}
}
