// Package sql is the relational record store, backed by gorm on postgres or
// an embedded sqlite database.
package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/MrSnakeDoc/aimarket/internal/domain"
	"github.com/MrSnakeDoc/aimarket/internal/events"
	"github.com/MrSnakeDoc/aimarket/internal/logger"
	"github.com/MrSnakeDoc/aimarket/internal/store"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// listingRow is the persisted shape of a listing.
type listingRow struct {
	ID           string `gorm:"primaryKey;size:36"`
	Name         string
	URL          string
	Description  string
	UseCase      string
	Region       string
	ImageKey     string
	AddedBy      string
	AddedByEmail string
	Active       bool `gorm:"index"`
	SubmittedAt  time.Time
	ApprovedAt   *time.Time
	ApprovedBy   string
}

func (listingRow) TableName() string { return "listings" }

func toRow(l *domain.Listing) listingRow {
	return listingRow{
		ID:           l.ID,
		Name:         l.Name,
		URL:          l.URL,
		Description:  l.Description,
		UseCase:      l.UseCase,
		Region:       string(l.Region),
		ImageKey:     l.ImageKey,
		AddedBy:      l.AddedBy,
		AddedByEmail: l.AddedByEmail,
		Active:       l.Active,
		SubmittedAt:  l.SubmittedAt.UTC(),
		ApprovedAt:   utcPtr(l.ApprovedAt),
		ApprovedBy:   l.ApprovedBy,
	}
}

func (r listingRow) listing() *domain.Listing {
	return &domain.Listing{
		ID:           r.ID,
		Name:         r.Name,
		URL:          r.URL,
		Description:  r.Description,
		UseCase:      r.UseCase,
		Region:       domain.Region(r.Region),
		ImageKey:     r.ImageKey,
		AddedBy:      r.AddedBy,
		AddedByEmail: r.AddedByEmail,
		Active:       r.Active,
		SubmittedAt:  r.SubmittedAt.UTC(),
		ApprovedAt:   utcPtr(r.ApprovedAt),
		ApprovedBy:   r.ApprovedBy,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// Open connects to driver at dsn with gorm logs routed to log.
func Open(driver, dsn string, log logger.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  newGormLogger(log, gormlogger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	if driver == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sqlite handle: %w", err)
		}
		// one writer at a time; also keeps a shared in-memory database alive
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	}
	return db, nil
}

// Store keeps listings in the "listings" table.
type Store struct {
	db  *gorm.DB
	pub events.Publisher
	log logger.Logger
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// New migrates the schema and returns the store.
func New(db *gorm.DB, pub events.Publisher, log logger.Logger) (*Store, error) {
	if pub == nil {
		pub = events.Discard{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	if err := db.AutoMigrate(&listingRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate listings table: %w", err)
	}
	return &Store{db: db, pub: pub, log: log, now: time.Now}, nil
}

// lockRow takes a row lock where the dialect supports it.
func lockRow(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == DriverPostgres {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func findRow(tx *gorm.DB, id string) (listingRow, error) {
	var row listingRow
	err := lockRow(tx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return row, domain.NotFound(id)
	}
	if err != nil {
		return row, domain.Unavailable("find", err)
	}
	return row, nil
}

func (s *Store) List(ctx context.Context, f store.Filter) ([]*domain.Listing, error) {
	q := s.db.WithContext(ctx).Model(&listingRow{})
	if f.ActiveOnly {
		q = q.Where("active = ?", true)
	}

	var rows []listingRow
	if err := q.Order("submitted_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, domain.Unavailable("list", err)
	}

	out := make([]*domain.Listing, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.listing())
	}
	store.SortListings(out)
	return out, nil
}

func (s *Store) Get(ctx context.Context, id string) (*domain.Listing, error) {
	if !store.ValidID(id) {
		return nil, domain.NotFound(id)
	}
	row, err := findRow(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	return row.listing(), nil
}

func (s *Store) Create(ctx context.Context, l *domain.Listing) (*domain.Listing, error) {
	created := store.PrepareCreate(l, s.now())
	row := toRow(created)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, domain.Unavailable("create", err)
	}

	s.pub.Publish(ctx, events.Inserted(created, s.now()))
	return created.Clone(), nil
}

func (s *Store) Update(ctx context.Context, id string, p domain.Patch) (*domain.Listing, error) {
	if !store.ValidID(id) {
		return nil, domain.NotFound(id)
	}

	var before, after *domain.Listing
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := findRow(tx, id)
		if err != nil {
			return err
		}
		before = row.listing()
		after = before.Clone()
		p.Apply(after)
		after.ID = id

		updated := toRow(after)
		if err := tx.Save(&updated).Error; err != nil {
			return domain.Unavailable("update", err)
		}
		return nil
	})
	if err != nil {
		return nil, wrap("update", err)
	}

	s.pub.Publish(ctx, events.Modified(before, after, s.now()))
	return after.Clone(), nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if !store.ValidID(id) {
		return domain.NotFound(id)
	}

	var removed *domain.Listing
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := findRow(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Where("id = ?", id).Delete(&listingRow{}).Error; err != nil {
			return domain.Unavailable("delete", err)
		}
		removed = row.listing()
		return nil
	})
	if err != nil {
		return wrap("delete", err)
	}

	s.pub.Publish(ctx, events.Removed(removed, s.now()))
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return domain.Unavailable("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return domain.Unavailable("ping", err)
	}
	return nil
}

// wrap leaves typed errors alone and marks transaction failures as unavailable.
func wrap(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrStorageUnavailable) {
		return err
	}
	return domain.Unavailable(op, err)
}
