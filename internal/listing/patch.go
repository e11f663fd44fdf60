package listing

import (
	"strings"

	"github.com/MrSnakeDoc/aimarket/internal/domain"
)

// validatePatch applies the submission rules to the fields an update carries.
// Absent fields are left alone; text fields are trimmed and truncated like on create.
func validatePatch(p domain.Patch) (domain.Patch, error) {
	text := []struct {
		field string
		value **string
		max   int
	}{
		{"name", &p.Name, domain.MaxNameLen},
		{"description", &p.Description, domain.MaxDescriptionLen},
		{"useCase", &p.UseCase, domain.MaxUseCaseLen},
		{"addedBy", &p.AddedBy, domain.MaxAddedByLen},
	}
	for _, t := range text {
		if *t.value == nil {
			continue
		}
		v := domain.Truncate(**t.value, t.max)
		if v == "" {
			return p, domain.Invalid(t.field, "must not be empty")
		}
		*t.value = &v
	}

	if p.URL != nil {
		u, ok := domain.NormalizeURL(*p.URL)
		if !ok {
			return p, domain.Invalid("url", "please enter a valid URL")
		}
		p.URL = &u
	}

	if p.ImageKey != nil {
		// same as create: an unusable logo is dropped, not refused
		img, ok := domain.NormalizeURL(*p.ImageKey)
		if !ok {
			img = ""
		}
		p.ImageKey = &img
	}

	if p.AddedByEmail != nil {
		email := *p.AddedByEmail
		if !domain.ValidEmail(email) {
			return p, domain.Invalid("addedByEmail", "please enter a valid email address")
		}
		email = domain.Truncate(email, domain.MaxEmailLen)
		p.AddedByEmail = &email
	}

	if p.Region != nil {
		r := domain.Region(strings.TrimSpace(string(*p.Region)))
		if !r.Valid() {
			return p, domain.Invalid("region", "please select a region")
		}
		p.Region = &r
	}

	return p, nil
}
