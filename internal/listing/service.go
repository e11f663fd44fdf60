// Package listing is the query and write service behind the /aiapps API.
package listing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrSnakeDoc/aimarket/internal/domain"
	"github.com/MrSnakeDoc/aimarket/internal/logger"
	"github.com/MrSnakeDoc/aimarket/internal/metrics"
	"github.com/MrSnakeDoc/aimarket/internal/store"
)

// DefaultApprover is recorded when an approval names nobody.
const DefaultApprover = "admin"

// Options tunes a Service.
type Options struct {
	// StrictWrites re-validates create and update payloads on the server.
	// When false, payloads are stored as sent apart from id, active and timestamps.
	StrictWrites bool
	Logger       logger.Logger
	Metrics      *metrics.Metrics
	Now          func() time.Time
}

// Service applies the marketplace rules on top of a record store.
type Service struct {
	store   store.Store
	strict  bool
	log     logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewService wraps st.
func NewService(st store.Store, opts Options) *Service {
	s := &Service{
		store:   st,
		strict:  opts.StrictWrites,
		log:     opts.Logger,
		metrics: opts.Metrics,
		now:     opts.Now,
	}
	if s.log == nil {
		s.log = logger.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// ListActive returns the public catalog. Never nil.
func (s *Service) ListActive(ctx context.Context) ([]*domain.Listing, error) {
	listings, err := s.store.List(ctx, store.Filter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	if listings == nil {
		listings = []*domain.Listing{}
	}
	return listings, nil
}

// ListAll returns every listing, pending ones included (moderation view).
func (s *Service) ListAll(ctx context.Context) ([]*domain.Listing, error) {
	listings, err := s.store.List(ctx, store.Filter{})
	if err != nil {
		return nil, err
	}
	if listings == nil {
		listings = []*domain.Listing{}
	}
	return listings, nil
}

// Get returns any listing, active or not.
func (s *Service) Get(ctx context.Context, id string) (*domain.Listing, error) {
	return s.store.Get(ctx, id)
}

// Create stores a submission as a pending listing. Client supplied id,
// active flag, approval fields and submission time are discarded.
func (s *Service) Create(ctx context.Context, req domain.Listing) (*domain.Listing, error) {
	candidate := req
	if s.strict {
		normalized, err := domain.Normalize(submissionOf(req))
		if err != nil {
			s.reject(metrics.ReasonValidation, err)
			return nil, err
		}
		candidate = normalized
	}

	candidate.ID = ""
	candidate.Active = false
	candidate.ApprovedAt = nil
	candidate.ApprovedBy = ""
	candidate.SubmittedAt = s.now().UTC()

	created, err := s.store.Create(ctx, &candidate)
	if err != nil {
		s.reject(metrics.ReasonStorage, err)
		return nil, err
	}

	s.metrics.ListingCreated()
	s.log.Info("listing submitted",
		logger.ListingID(created.ID),
		logger.String("region", string(created.Region)))
	return created, nil
}

// Update shallow-merges p into the listing.
func (s *Service) Update(ctx context.Context, id string, p domain.Patch) (*domain.Listing, error) {
	if s.strict {
		checked, err := validatePatch(p)
		if err != nil {
			s.reject(metrics.ReasonValidation, err)
			return nil, err
		}
		p = checked
	}
	if p.Empty() {
		// nothing to merge; still report unknown ids
		return s.store.Get(ctx, id)
	}
	return s.store.Update(ctx, id, p)
}

// Delete removes the listing.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("listing deleted", logger.ListingID(id))
	return nil
}

// Approve publishes a pending listing.
func (s *Service) Approve(ctx context.Context, id, approvedBy string) (*domain.Listing, error) {
	approvedBy = strings.TrimSpace(approvedBy)
	if approvedBy == "" {
		approvedBy = DefaultApprover
	}
	active := true
	at := s.now().UTC()

	approved, err := s.store.Update(ctx, id, domain.Patch{
		Active:     &active,
		ApprovedAt: &at,
		ApprovedBy: &approvedBy,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("listing approved",
		logger.ListingID(id),
		logger.String("approved_by", approvedBy))
	return approved, nil
}

// Ping reports whether the record store answers.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) reject(reason string, err error) {
	s.metrics.ListingRejected(reason)
	if errors.Is(err, domain.ErrValidation) {
		s.log.Debug("listing rejected", logger.String("reason", reason), logger.Error(err))
		return
	}
	s.log.Error("listing write failed", logger.String("reason", reason), logger.Error(err))
}

func submissionOf(l domain.Listing) domain.Submission {
	return domain.Submission{
		Name:         l.Name,
		URL:          l.URL,
		Description:  l.Description,
		UseCase:      l.UseCase,
		Region:       string(l.Region),
		ImageKey:     l.ImageKey,
		AddedBy:      l.AddedBy,
		AddedByEmail: l.AddedByEmail,
	}
}
