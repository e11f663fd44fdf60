package routes

import (
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/aimarket/internal/httpserver/deps"
	"github.com/MrSnakeDoc/aimarket/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/aimarket/internal/httpserver/mw"
	"github.com/MrSnakeDoc/aimarket/internal/metrics"
)

func init() { Register("listings", registerListings) }

// registerListings mounts the public part of the API.
func registerListings(r chi.Router, d deps.Deps) {
	r.Get("/aiapps", handlers.ListListings(d))
	r.Get("/aiapps/{id}", handlers.GetListing(d))

	r.With(submitGuards(d)...).Post("/aiapps", handlers.CreateListing(d))
}

func submitGuards(d deps.Deps) []Middleware {
	guards := []Middleware{BodyLimit(d)}
	if d.SubmitBurst > 0 {
		guards = append(guards, mw.RateLimit(mw.RateLimitConfig{
			Burst:      d.SubmitBurst,
			Refill:     d.SubmitRefillPerHr,
			Per:        time.Hour,
			MaxEntries: 10000,
			TrustProxy: d.TrustProxy,
			OnLimited:  func() { d.Metrics.ListingRejected(metrics.ReasonRateLimited) },
			Now:        d.TimeNow,
		}))
	}
	return guards
}
