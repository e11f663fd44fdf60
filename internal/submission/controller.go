// Package submission drives the "add your service" form: visibility, input
// validation, the per-client rate limit and dispatch to the listing API.
package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/aimarket/internal/domain"
	"github.com/MrSnakeDoc/aimarket/internal/logger"
)

// State of the form.
type State int

const (
	Hidden State = iota
	Visible
	Submitting
)

func (s State) String() string {
	switch s {
	case Hidden:
		return "hidden"
	case Visible:
		return "visible"
	case Submitting:
		return "submitting"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Alerts shown to the submitter.
const (
	AlertChallenge    = "Please complete the CAPTCHA"
	AlertSubmitFailed = "Failed to submit. Please try again later."
)

// ErrNotVisible is returned by Submit when the form is not open.
var ErrNotVisible = errors.New("submission form is not visible")

// Creator stores a new listing. The API client satisfies it.
type Creator interface {
	Create(ctx context.Context, l domain.Listing) (*domain.Listing, error)
}

// Challenge is an optional human check (CAPTCHA) completed before submitting.
type Challenge interface {
	Token() string
	Reset()
}

type Options struct {
	Limiter   *RateLimiter // nil means an in-memory limiter with defaults
	Challenge Challenge    // nil disables the check
	Logger    logger.Logger
	Now       func() time.Time
}

// Controller owns the form state. It is safe for concurrent use; a second
// Submit while one is in flight is refused with ErrNotVisible.
type Controller struct {
	mu    sync.Mutex
	state State
	form  domain.Submission
	alert string

	creator   Creator
	limiter   *RateLimiter
	challenge Challenge
	log       logger.Logger
	now       func() time.Time
}

func NewController(creator Creator, opts Options) *Controller {
	c := &Controller{
		creator:   creator,
		limiter:   opts.Limiter,
		challenge: opts.Challenge,
		log:       opts.Logger,
		now:       opts.Now,
	}
	if c.log == nil {
		c.log = logger.NewNop()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.limiter == nil {
		c.limiter = LoadRateLimiter(nil, DefaultMaxSubmissions, DefaultWindow, c.now(), c.log)
	}
	return c
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Alert is the message of the last failed submission, "" otherwise.
func (c *Controller) Alert() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alert
}

func (c *Controller) Form() domain.Submission {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.form
}

// SetForm replaces the field values.
func (c *Controller) SetForm(f domain.Submission) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form = f
}

// Toggle shows or hides the form. Field values survive a hide.
// It does nothing while a submission is in flight.
func (c *Controller) Toggle() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case Hidden:
		c.state = Visible
	case Visible:
		c.state = Hidden
		c.alert = ""
	}
	return c.state
}

// Submit validates the form and sends it.
//
// The checks run in order: challenge, rate limit, then domain.Normalize.
// A submission that passes them is counted against the rate limit before it
// is dispatched. On success the form is cleared and hidden; on any failure
// it stays visible with Alert set.
func (c *Controller) Submit(ctx context.Context) (*domain.Listing, error) {
	c.mu.Lock()
	if c.state != Visible {
		c.mu.Unlock()
		return nil, ErrNotVisible
	}
	c.state = Submitting
	c.alert = ""
	form := c.form
	c.mu.Unlock()

	created, alert, err := c.submit(ctx, form)
	if c.challenge != nil {
		c.challenge.Reset()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = Visible
		c.alert = alert
		return nil, err
	}
	c.state = Hidden
	c.form = domain.Submission{}
	return created, nil
}

func (c *Controller) submit(ctx context.Context, form domain.Submission) (*domain.Listing, string, error) {
	if c.challenge != nil && strings.TrimSpace(c.challenge.Token()) == "" {
		return nil, AlertChallenge, domain.Invalid("challenge", AlertChallenge)
	}

	now := c.now()
	if !c.limiter.Allow(now) {
		alert := fmt.Sprintf("Rate limit exceeded. Please try again later. Maximum %d submissions per hour.", c.limiter.max)
		return nil, alert, fmt.Errorf("%w: %d submissions in %s", domain.ErrRateLimited, c.limiter.max, c.limiter.window)
	}

	l, err := domain.NewSubmission(form, now)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return nil, verr.Reason, err
		}
		return nil, err.Error(), err
	}

	c.limiter.Record(now)
	c.limiter.Save()

	created, err := c.creator.Create(ctx, l)
	if err != nil {
		c.log.Warn("submission failed", logger.Error(err))
		alert := AlertSubmitFailed
		if errors.Is(err, domain.ErrRateLimited) {
			alert = "Rate limit exceeded. Please try again later."
		}
		return nil, alert, err
	}
	c.log.Info("submission sent", logger.ListingID(created.ID))
	return created, "", nil
}
