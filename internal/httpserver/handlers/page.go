package handlers

import (
	"bytes"
	"net/http"

	"github.com/MrSnakeDoc/aimarket/internal/catalog"
	"github.com/MrSnakeDoc/aimarket/internal/httpserver/deps"
)

// Catalog renders the public page, filtered by ?useCase=.
func Catalog(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listings, err := d.Listings.ListActive(r.Context())
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		var buf bytes.Buffer
		if err := catalog.RenderHTML(&buf, catalog.View(listings, r.URL.Query().Get("useCase"))); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)
	}
}

// Static serves the embedded page assets under catalog.StaticPrefix.
func Static() http.Handler {
	files := http.StripPrefix(catalog.StaticPrefix, http.FileServer(http.FS(catalog.Static)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=86400")
		files.ServeHTTP(w, r)
	})
}
