package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/aimarket/internal/domain"
	"github.com/MrSnakeDoc/aimarket/internal/logger"
	"github.com/MrSnakeDoc/aimarket/internal/store"
)

// Apply loads path into st when st holds no listing at all.
// It returns the number of listings written.
func Apply(ctx context.Context, st store.Store, path string, now time.Time, log logger.Logger) (int, error) {
	existing, err := st.List(ctx, store.Filter{})
	if err != nil {
		return 0, fmt.Errorf("seed: %w", err)
	}
	if len(existing) > 0 {
		log.Info("store not empty, seed skipped", logger.Int("listings", len(existing)))
		return 0, nil
	}

	file, err := NewLoader(path).Load()
	if err != nil {
		return 0, err
	}
	listings, mapErr := Map(file, now)
	if mapErr != nil {
		if len(listings) == 0 {
			return 0, mapErr
		}
		log.Warn("some seed entries were skipped", logger.Error(mapErr))
	}

	written := 0
	for _, l := range listings {
		if err := write(ctx, st, l); err != nil {
			return written, fmt.Errorf("seed %q: %w", l.Name, err)
		}
		written++
	}

	log.Info("store seeded", logger.String("file", path), logger.Int("listings", written))
	return written, nil
}

// write creates l and, since stores always create pending records,
// applies the approval in a second step.
func write(ctx context.Context, st store.Store, l *domain.Listing) error {
	created, err := st.Create(ctx, l)
	if err != nil {
		return err
	}
	if !l.Active {
		return nil
	}
	_, err = st.Update(ctx, created.ID, domain.Patch{
		Active:     &l.Active,
		ApprovedAt: l.ApprovedAt,
		ApprovedBy: &l.ApprovedBy,
	})
	return err
}
