package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/aimarket/internal/httpserver/deps"
	"github.com/MrSnakeDoc/aimarket/internal/httpserver/handlers"
)

func init() { Register("admin", registerAdmin, AdminAddresses, AdminHosts, BodyLimit) }

// registerAdmin mounts moderation and metrics.
func registerAdmin(r chi.Router, d deps.Deps) {
	r.Put("/aiapps/{id}", handlers.UpdateListing(d))
	r.Delete("/aiapps/{id}", handlers.DeleteListing(d))
	r.Post("/aiapps/{id}/approve", handlers.ApproveListing(d))

	r.Get("/admin/aiapps", handlers.ListAllListings(d))
	r.Get("/admin/aiapps/{id}", handlers.GetAnyListing(d))

	r.Handle("/metrics", d.Metrics.Handler())
}
