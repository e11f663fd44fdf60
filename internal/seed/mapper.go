package seed

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/aimarket/internal/domain"
)

// Defaults for provenance fields a seed entry may omit.
const (
	DefaultAddedBy      = "AI Marketplace Finland"
	DefaultAddedByEmail = "info@ai-marketplace.fi"
	Approver            = "seed"
)

// Map converts a seed file into normalized listings, stamped at now.
// Invalid entries are skipped and reported in the returned error, which is
// non-nil only alongside a possibly partial result.
func Map(file File, now time.Time) ([]*domain.Listing, error) {
	var (
		out  []*domain.Listing
		errs []error
	)

	for _, group := range file {
		for region, entries := range group {
			for _, entryMap := range entries {
				for name, e := range entryMap {
					l, err := mapEntry(region, name, e, now)
					if err != nil {
						errs = append(errs, fmt.Errorf("%s/%s: %w", region, name, err))
						continue
					}
					out = append(out, l)
				}
			}
		}
	}

	if len(out) == 0 && len(errs) == 0 {
		return nil, fmt.Errorf("no listings found in seed file")
	}
	return out, errors.Join(errs...)
}

func mapEntry(region, name string, e Entry, now time.Time) (*domain.Listing, error) {
	addedBy := e.AddedBy
	if addedBy == "" {
		addedBy = DefaultAddedBy
	}
	email := e.AddedByEmail
	if email == "" {
		email = DefaultAddedByEmail
	}

	l, err := domain.NewSubmission(domain.Submission{
		Name:         name,
		URL:          e.Href,
		Description:  e.Description,
		UseCase:      e.UseCase,
		Region:       region,
		ImageKey:     e.Icon,
		AddedBy:      addedBy,
		AddedByEmail: email,
	}, now)
	if err != nil {
		return nil, err
	}

	if e.Active == nil || *e.Active {
		at := now.UTC()
		l.Active = true
		l.ApprovedAt = &at
		l.ApprovedBy = Approver
	}
	return &l, nil
}
