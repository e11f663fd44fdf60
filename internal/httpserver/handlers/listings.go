package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/aimarket/internal/domain"
	"github.com/MrSnakeDoc/aimarket/internal/httpserver/deps"
	"github.com/MrSnakeDoc/aimarket/internal/metrics"
)

// ListListings serves the public catalog: active listings only.
func ListListings(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listings, err := d.Listings.ListActive(r.Context())
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, listings)
	}
}

// ListAllListings is the moderation view, pending submissions included.
func ListAllListings(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listings, err := d.Listings.ListAll(r.Context())
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, listings)
	}
}

// GetListing returns one public listing. Pending ones answer 404.
func GetListing(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		l, err := d.Listings.Get(r.Context(), id)
		if err == nil && !l.Active {
			err = domain.NotFound(id)
		}
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}

// GetAnyListing returns a listing whatever its approval state.
func GetAnyListing(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, err := d.Listings.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}

// CreateListing stores a pending submission and answers 201 with the record.
func CreateListing(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.Listing
		if err := decodeJSON(r, &req); err != nil {
			d.Metrics.ListingRejected(metrics.ReasonValidation)
			writeError(w, d.Logger, err)
			return
		}
		created, err := d.Listings.Create(r.Context(), req)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		w.Header().Set("Location", "/aiapps/"+created.ID)
		writeJSON(w, http.StatusCreated, created)
	}
}

// UpdateListing shallow-merges the body into the stored listing.
func UpdateListing(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p domain.Patch
		if err := decodeJSON(r, &p); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		updated, err := d.Listings.Update(r.Context(), chi.URLParam(r, "id"), p)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func DeleteListing(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Listings.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type approveRequest struct {
	ApprovedBy string `json:"approvedBy"`
}

// ApproveListing flips a listing to active. The body is optional.
func ApproveListing(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req approveRequest
		if err := decodeOptionalJSON(r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		approved, err := d.Listings.Approve(r.Context(), chi.URLParam(r, "id"), req.ApprovedBy)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, approved)
	}
}
