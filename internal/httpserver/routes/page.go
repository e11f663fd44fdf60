package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/aimarket/internal/catalog"
	"github.com/MrSnakeDoc/aimarket/internal/httpserver/deps"
	"github.com/MrSnakeDoc/aimarket/internal/httpserver/handlers"
)

func init() { Register("catalog", registerPage) }

func registerPage(r chi.Router, d deps.Deps) {
	r.Get("/", handlers.Catalog(d))
	r.Handle(catalog.StaticPrefix+"*", handlers.Static())
}
