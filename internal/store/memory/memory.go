// Package memory is the single-process record store. Listings live in a map
// guarded by a RWMutex and are optionally mirrored to a JSON file so a restart
// does not lose submissions.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/MrSnakeDoc/aimarket/internal/domain"
	"github.com/MrSnakeDoc/aimarket/internal/events"
	"github.com/MrSnakeDoc/aimarket/internal/logger"
	"github.com/MrSnakeDoc/aimarket/internal/store"
)

// Options configures a memory store.
type Options struct {
	// Path of the JSON mirror. Empty disables persistence.
	Path      string
	Publisher events.Publisher
	Logger    logger.Logger
	// Now overrides the clock (tests).
	Now func() time.Time
}

// Store keeps listings in memory.
type Store struct {
	mu       sync.RWMutex
	listings map[string]*domain.Listing // ID -> Listing

	path string
	pub  events.Publisher
	log  logger.Logger
	now  func() time.Time
}

var _ store.Store = (*Store)(nil)

// New creates a memory store and loads the JSON mirror when it exists.
func New(opts Options) (*Store, error) {
	s := &Store{
		listings: make(map[string]*domain.Listing),
		path:     opts.Path,
		pub:      opts.Publisher,
		log:      opts.Logger,
		now:      opts.Now,
	}
	if s.pub == nil {
		s.pub = events.Discard{}
	}
	if s.log == nil {
		s.log = logger.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}

	if s.path != "" {
		if err := s.load(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return domain.Unavailable("read data file", err)
	}
	if len(data) == 0 {
		return nil
	}

	var listings []*domain.Listing
	if err := json.Unmarshal(data, &listings); err != nil {
		// keep the unreadable file aside instead of overwriting it on the next write
		backup := fmt.Sprintf("%s.corrupt-%d", s.path, s.now().Unix())
		renameErr := os.Rename(s.path, backup)
		s.log.Error("data file is corrupt, starting empty",
			logger.String("path", s.path),
			logger.String("backup", backup),
			logger.Error(errors.Join(err, renameErr)))
		return nil
	}
	for _, l := range listings {
		if l == nil || l.ID == "" {
			continue
		}
		s.listings[l.ID] = l
	}

	s.log.Info("listings loaded from disk",
		logger.String("path", s.path),
		logger.Int("count", len(s.listings)))
	return nil
}

// persist writes the whole collection through a temp file and rename.
// Caller must hold the write lock.
func (s *Store) persist() error {
	if s.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(s.snapshot(store.Filter{}), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal listings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".listings-*.json")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// snapshot returns sorted copies. Caller must hold a lock.
func (s *Store) snapshot(f store.Filter) []*domain.Listing {
	out := make([]*domain.Listing, 0, len(s.listings))
	for _, l := range s.listings {
		if f.Match(l) {
			out = append(out, l.Clone())
		}
	}
	store.SortListings(out)
	return out
}

// List returns the listings passing f.
func (s *Store) List(ctx context.Context, f store.Filter) ([]*domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshot(f), nil
}

// Get returns one listing by id.
func (s *Store) Get(ctx context.Context, id string) (*domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.listings[id]
	if !ok {
		return nil, domain.NotFound(id)
	}
	return l.Clone(), nil
}

// Create stores a new pending listing.
func (s *Store) Create(ctx context.Context, l *domain.Listing) (*domain.Listing, error) {
	created := store.PrepareCreate(l, s.now())

	s.mu.Lock()
	s.listings[created.ID] = created
	if err := s.persist(); err != nil {
		delete(s.listings, created.ID)
		s.mu.Unlock()
		return nil, domain.Unavailable("create", err)
	}
	s.mu.Unlock()

	s.pub.Publish(ctx, events.Inserted(created, s.now()))
	return created.Clone(), nil
}

// Update shallow-merges p into the stored listing.
func (s *Store) Update(ctx context.Context, id string, p domain.Patch) (*domain.Listing, error) {
	s.mu.Lock()
	current, ok := s.listings[id]
	if !ok {
		s.mu.Unlock()
		return nil, domain.NotFound(id)
	}

	updated := current.Clone()
	p.Apply(updated)
	s.listings[id] = updated
	if err := s.persist(); err != nil {
		s.listings[id] = current
		s.mu.Unlock()
		return nil, domain.Unavailable("update", err)
	}
	s.mu.Unlock()

	s.pub.Publish(ctx, events.Modified(current, updated, s.now()))
	return updated.Clone(), nil
}

// Delete removes a listing.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	current, ok := s.listings[id]
	if !ok {
		s.mu.Unlock()
		return domain.NotFound(id)
	}

	delete(s.listings, id)
	if err := s.persist(); err != nil {
		s.listings[id] = current
		s.mu.Unlock()
		return domain.Unavailable("delete", err)
	}
	s.mu.Unlock()

	s.pub.Publish(ctx, events.Removed(current, s.now()))
	return nil
}

// Ping always succeeds for the in-memory store.
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Count returns the number of stored listings, active or not.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.listings)
}
