package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/aimarket/internal/httpserver/deps"
	"github.com/MrSnakeDoc/aimarket/internal/httpserver/mw"
	"github.com/MrSnakeDoc/aimarket/internal/logger"
)

type (
	Registrar  func(r chi.Router, d deps.Deps)
	Middleware = func(http.Handler) http.Handler
	// Guard builds a middleware once the dependencies are known.
	Guard func(d deps.Deps) Middleware
)

type entry struct {
	name   string
	reg    Registrar
	guards []Guard
}

var registry []entry

// Register adds a named route group. Guards wrap every route of the group.
func Register(name string, reg Registrar, guards ...Guard) {
	registry = append(registry, entry{name: name, reg: reg, guards: guards})
}

// Groups returns the registered group names in mount order.
func Groups() []string {
	names := make([]string, 0, len(registry))
	for _, e := range registry {
		names = append(names, e.name)
	}
	return names
}

// RegisterAll mounts every group. Called once from httpserver.NewRouter.
func RegisterAll(r chi.Router, d deps.Deps) {
	for _, e := range registry {
		if len(e.guards) == 0 {
			e.reg(r, d)
			continue
		}
		r.Group(func(g chi.Router) {
			for _, guard := range e.guards {
				g.Use(guard(d))
			}
			e.reg(g, d)
		})
	}
	d.Logger.Debug("routes mounted", logger.Strings("groups", Groups()))
}

// AdminAddresses limits a group to the configured admin CIDRs.
func AdminAddresses(d deps.Deps) Middleware {
	return mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger)
}

// AdminHosts limits a group to the configured Host headers.
func AdminHosts(d deps.Deps) Middleware {
	return mw.EnforceHost(d.AllowedHosts, d.Logger)
}

// BodyLimit caps request bodies at MaxBodyBytes (no cap when zero).
func BodyLimit(d deps.Deps) Middleware {
	if d.MaxBodyBytes <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.RequestSize(d.MaxBodyBytes)
}
