package domain

import "time"

// Region is the geographic origin of a listed service.
type Region string

const (
	RegionFinland Region = "Finland"
	RegionEurope  Region = "Europe"
)

// Valid reports whether r is one of the known regions.
func (r Region) Valid() bool {
	switch r {
	case RegionFinland, RegionEurope:
		return true
	default:
		return false
	}
}

// Field length caps applied by Normalize (counted in runes after trimming).
const (
	MaxNameLen        = 40
	MaxDescriptionLen = 200
	MaxUseCaseLen     = 60
	MaxAddedByLen     = 100
	MaxEmailLen       = 100
)

// Listing is one AI-service marketplace entry.
//
// It is NOT tied to any storage backend. Every store (memory, redis, sql)
// converts to and from this structure.
type Listing struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is generated by the store on creation and never changes.
	ID string `json:"id"`

	// ─────────────────────────────
	// Public description
	// ─────────────────────────────

	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description"`

	// UseCase is free text, conventionally a comma separated tag list.
	// Example: "Chatbot, CRM"
	UseCase string `json:"useCase"`

	Region Region `json:"region"`

	// ImageKey is the logo URL. Empty means the default logo is shown.
	ImageKey string `json:"imageKey,omitempty"`

	// ─────────────────────────────
	// Provenance
	// ─────────────────────────────

	AddedBy      string `json:"addedBy"`
	AddedByEmail string `json:"addedByEmail"`

	// ─────────────────────────────
	// Moderation
	// ─────────────────────────────

	// Active is the approval flag. Only active listings are public.
	// Submissions always start inactive.
	Active bool `json:"active"`

	SubmittedAt time.Time  `json:"submittedAt"`
	ApprovedAt  *time.Time `json:"approvedAt,omitempty"`
	ApprovedBy  string     `json:"approvedBy,omitempty"`
}

// Clone returns a deep copy so callers never share mutable state with a store.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	c := *l
	if l.ApprovedAt != nil {
		t := *l.ApprovedAt
		c.ApprovedAt = &t
	}
	return &c
}

// IsFinnish reports whether the listing gets the Finland badge and sort priority.
func (l *Listing) IsFinnish() bool {
	return l != nil && l.Region == RegionFinland
}

// Patch is a partial listing used for shallow merges. Nil fields are left untouched.
// The id is deliberately absent: it can never be changed through an update.
type Patch struct {
	Name         *string    `json:"name,omitempty"`
	URL          *string    `json:"url,omitempty"`
	Description  *string    `json:"description,omitempty"`
	UseCase      *string    `json:"useCase,omitempty"`
	Region       *Region    `json:"region,omitempty"`
	ImageKey     *string    `json:"imageKey,omitempty"`
	AddedBy      *string    `json:"addedBy,omitempty"`
	AddedByEmail *string    `json:"addedByEmail,omitempty"`
	Active       *bool      `json:"active,omitempty"`
	SubmittedAt  *time.Time `json:"submittedAt,omitempty"`
	ApprovedAt   *time.Time `json:"approvedAt,omitempty"`
	ApprovedBy   *string    `json:"approvedBy,omitempty"`
}

// Empty reports whether the patch carries no field at all.
func (p Patch) Empty() bool {
	return p == Patch{}
}

// Apply merges the non-nil fields of p into l (last write wins).
func (p Patch) Apply(l *Listing) {
	if l == nil {
		return
	}
	if p.Name != nil {
		l.Name = *p.Name
	}
	if p.URL != nil {
		l.URL = *p.URL
	}
	if p.Description != nil {
		l.Description = *p.Description
	}
	if p.UseCase != nil {
		l.UseCase = *p.UseCase
	}
	if p.Region != nil {
		l.Region = *p.Region
	}
	if p.ImageKey != nil {
		l.ImageKey = *p.ImageKey
	}
	if p.AddedBy != nil {
		l.AddedBy = *p.AddedBy
	}
	if p.AddedByEmail != nil {
		l.AddedByEmail = *p.AddedByEmail
	}
	if p.Active != nil {
		l.Active = *p.Active
	}
	if p.SubmittedAt != nil {
		l.SubmittedAt = *p.SubmittedAt
	}
	if p.ApprovedAt != nil {
		t := *p.ApprovedAt
		l.ApprovedAt = &t
	}
	if p.ApprovedBy != nil {
		l.ApprovedBy = *p.ApprovedBy
	}
}
