package sql

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/MrSnakeDoc/aimarket/internal/domain"
	"github.com/MrSnakeDoc/aimarket/internal/events"
	"github.com/MrSnakeDoc/aimarket/internal/logger"
	"github.com/MrSnakeDoc/aimarket/internal/store"
	"github.com/MrSnakeDoc/aimarket/internal/store/storetest"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + store.NewID() + "?mode=memory&cache=shared"
	db, err := Open(DriverSQLite, dsn, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T, pub events.Publisher) store.Store {
		s, err := New(openTestDB(t), pub, logger.NewNop())
		require.NoError(t, err)
		return s
	})
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "whatever", logger.NewNop())
	assert.Error(t, err)
}

func TestActiveFilterIsPushedToSQL(t *testing.T) {
	db := openTestDB(t)
	s, err := New(db, nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		_, err := s.Create(ctx, &domain.Listing{Name: name, Region: domain.RegionEurope})
		require.NoError(t, err)
	}
	require.NoError(t, db.Model(&listingRow{}).Where("name = ?", "b").Update("active", true).Error)

	public, err := s.List(ctx, store.Filter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, "b", public[0].Name)
	assert.Equal(t, domain.RegionEurope, public[0].Region)
}

func TestRowRoundTripKeepsOptionalFields(t *testing.T) {
	s, err := New(openTestDB(t), nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	created, err := s.Create(ctx, &domain.Listing{
		Name:     "Acme",
		URL:      "https://acme.fi",
		ImageKey: "https://acme.fi/logo.png",
		Region:   domain.RegionFinland,
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://acme.fi/logo.png", got.ImageKey)
	assert.Nil(t, got.ApprovedAt)
	assert.Equal(t, time.UTC, got.SubmittedAt.Location())
	assert.WithinDuration(t, created.SubmittedAt, got.SubmittedAt, time.Millisecond)
}

func TestPingAfterClose(t *testing.T) {
	db := openTestDB(t)
	s, err := New(db, nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	assert.ErrorIs(t, s.Ping(context.Background()), domain.ErrStorageUnavailable)
	_, err = s.List(context.Background(), store.Filter{})
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}
