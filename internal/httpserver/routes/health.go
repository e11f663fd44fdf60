package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/aimarket/internal/httpserver/deps"
	"github.com/MrSnakeDoc/aimarket/internal/httpserver/handlers"
)

func init() { Register("health", registerHealth) }

// registerHealth mounts the probes. Readiness reveals backend state, so it is
// kept to admin addresses like /metrics.
func registerHealth(r chi.Router, d deps.Deps) {
	r.Get("/healthz", handlers.Healthz(d))
	r.With(AdminAddresses(d)).Get("/readyz", handlers.Readyz(d))
}
