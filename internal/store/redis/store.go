package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/aimarket/internal/domain"
	"github.com/MrSnakeDoc/aimarket/internal/events"
	"github.com/MrSnakeDoc/aimarket/internal/logger"
	"github.com/MrSnakeDoc/aimarket/internal/store"
)

// maxTxRetries bounds optimistic WATCH/MULTI retries on a contended listing.
const maxTxRetries = 50

// Store keeps listings in Redis: one JSON document per listing plus two ID
// sets (all and active) so List never scans the keyspace.
type Store struct {
	client *redis.Client
	pub    events.Publisher
	log    logger.Logger
	now    func() time.Time
}

var _ store.Store = (*Store)(nil)

// NewStore creates a new Redis store
func NewStore(client *redis.Client, pub events.Publisher, log logger.Logger) *Store {
	if pub == nil {
		pub = events.Discard{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Store{
		client: client,
		pub:    pub,
		log:    log,
		now:    time.Now,
	}
}

func encode(l *domain.Listing) ([]byte, error) {
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal listing: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*domain.Listing, error) {
	var l domain.Listing
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("failed to unmarshal listing: %w", err)
	}
	return &l, nil
}

// writeIndexes keeps both ID sets in line with l.
func writeIndexes(ctx context.Context, pipe redis.Pipeliner, l *domain.Listing) {
	pipe.SAdd(ctx, KeyAllListings, l.ID)
	if l.Active {
		pipe.SAdd(ctx, KeyActiveListings, l.ID)
	} else {
		pipe.SRem(ctx, KeyActiveListings, l.ID)
	}
}

// List retrieves the listings passing f
func (s *Store) List(ctx context.Context, f store.Filter) ([]*domain.Listing, error) {
	ids, err := s.client.SMembers(ctx, IndexKey(f.ActiveOnly)).Result()
	if err != nil {
		return nil, domain.Unavailable("list ids", err)
	}
	if len(ids) == 0 {
		return []*domain.Listing{}, nil
	}

	values, err := s.client.MGet(ctx, ListingKeys(ids)...).Result()
	if err != nil {
		return nil, domain.Unavailable("list documents", err)
	}

	listings := make([]*domain.Listing, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// index entry without document, removed concurrently
			continue
		}
		l, err := decode([]byte(raw))
		if err != nil {
			s.log.Warn("skipping undecodable listing",
				logger.ListingID(ids[i]),
				logger.Error(err))
			continue
		}
		if f.Match(l) {
			listings = append(listings, l)
		}
	}

	store.SortListings(listings)
	return listings, nil
}

// Get retrieves a listing from Redis by ID
func (s *Store) Get(ctx context.Context, id string) (*domain.Listing, error) {
	if !store.ValidID(id) {
		return nil, domain.NotFound(id)
	}
	return get(ctx, s.client, id)
}

func get(ctx context.Context, c redis.Cmdable, id string) (*domain.Listing, error) {
	data, err := c.Get(ctx, ListingKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.NotFound(id)
		}
		return nil, domain.Unavailable("get", err)
	}
	l, err := decode(data)
	if err != nil {
		return nil, domain.Unavailable("get", err)
	}
	return l, nil
}

// Create stores a new pending listing
func (s *Store) Create(ctx context.Context, l *domain.Listing) (*domain.Listing, error) {
	created := store.PrepareCreate(l, s.now())
	data, err := encode(created)
	if err != nil {
		return nil, err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, ListingKey(created.ID), data, 0)
		writeIndexes(ctx, pipe, created)
		return nil
	})
	if err != nil {
		return nil, domain.Unavailable("create", err)
	}

	s.pub.Publish(ctx, events.Inserted(created, s.now()))
	return created.Clone(), nil
}

// Update shallow-merges p into the stored listing under WATCH
func (s *Store) Update(ctx context.Context, id string, p domain.Patch) (*domain.Listing, error) {
	if !store.ValidID(id) {
		return nil, domain.NotFound(id)
	}

	var before, after *domain.Listing
	txf := func(tx *redis.Tx) error {
		current, err := get(ctx, tx, id)
		if err != nil {
			return err
		}
		updated := current.Clone()
		p.Apply(updated)
		data, err := encode(updated)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, ListingKey(id), data, 0)
			writeIndexes(ctx, pipe, updated)
			return nil
		})
		if err != nil {
			return err
		}
		before, after = current, updated
		return nil
	}

	if err := s.watch(ctx, "update", txf, id); err != nil {
		return nil, err
	}

	s.pub.Publish(ctx, events.Modified(before, after, s.now()))
	return after.Clone(), nil
}

// Delete removes a listing and its index entries
func (s *Store) Delete(ctx context.Context, id string) error {
	if !store.ValidID(id) {
		return domain.NotFound(id)
	}

	var removed *domain.Listing
	txf := func(tx *redis.Tx) error {
		current, err := get(ctx, tx, id)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, ListingKey(id))
			pipe.SRem(ctx, KeyAllListings, id)
			pipe.SRem(ctx, KeyActiveListings, id)
			return nil
		})
		if err != nil {
			return err
		}
		removed = current
		return nil
	}

	if err := s.watch(ctx, "delete", txf, id); err != nil {
		return err
	}

	s.pub.Publish(ctx, events.Removed(removed, s.now()))
	return nil
}

// watch runs txf optimistically, retrying when another writer touched the key.
func (s *Store) watch(ctx context.Context, op string, txf func(*redis.Tx) error, id string) error {
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, ListingKey(id))
		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrStorageUnavailable):
			return err
		default:
			return domain.Unavailable(op, err)
		}
	}
	return domain.Unavailable(op, fmt.Errorf("listing %s: too much contention", id))
}

// Ping checks the Redis connection
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return domain.Unavailable("ping", err)
	}
	return nil
}
