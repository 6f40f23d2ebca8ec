package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/railzwaylabs/paybridge/internal/clock"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	gormprom "gorm.io/plugin/prometheus"
)

type cacheEntry struct {
	Namespace string     `gorm:"primaryKey;size:64"`
	CacheKey  string     `gorm:"primaryKey;size:191"`
	Value     string     `gorm:"type:text;not null"`
	ExpiresAt *time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (cacheEntry) TableName() string { return "paybridge_cache_entries" }

// SQL keeps entries in one table shared by every namespace.
type SQL struct {
	db        *gorm.DB
	namespace string
	ttl       time.Duration
	clock     clock.Clock
}

type SQLOptions struct {
	Driver string
	DSN    string
	// Metrics registers the gorm prometheus plugin on the default registry.
	Metrics bool
}

// OpenDB opens a gorm connection for driver with tracing enabled.
func OpenDB(opts SQLOptions) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch opts.Driver {
	case "postgres":
		dialector = postgres.Open(opts.DSN)
	case "mysql":
		dialector = mysql.Open(opts.DSN)
	case "sqlite":
		dialector = sqlite.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("storage: unsupported sql driver %q", opts.Driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", opts.Driver, err)
	}
	if err := db.Use(otelgorm.NewPlugin()); err != nil {
		return nil, err
	}
	if opts.Metrics {
		if err := db.Use(gormprom.New(gormprom.Config{
			DBName:          "paybridge",
			RefreshInterval: 15,
		})); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// NewSQL migrates the cache table and returns a store scoped to namespace.
func NewSQL(db *gorm.DB, namespace string, ttl time.Duration, c clock.Clock) (*SQL, error) {
	if err := db.AutoMigrate(&cacheEntry{}); err != nil {
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	if c == nil {
		c = clock.SystemClock{}
	}
	return &SQL{db: db, namespace: namespace, ttl: ttl, clock: c}, nil
}

func (s *SQL) Get(ctx context.Context, key string) (string, bool, error) {
	var row cacheEntry
	err := s.db.WithContext(ctx).
		Where("namespace = ? AND cache_key = ?", s.namespace, key).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if row.ExpiresAt != nil && !s.clock.Now(ctx).Before(*row.ExpiresAt) {
		return "", false, s.Remove(ctx, key)
	}
	return row.Value, true, nil
}

func (s *SQL) Set(ctx context.Context, key, value string) error {
	now := s.clock.Now(ctx)
	row := cacheEntry{Namespace: s.namespace, CacheKey: key, Value: value, UpdatedAt: now}
	if s.ttl > 0 {
		expires := now.Add(s.ttl)
		row.ExpiresAt = &expires
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&row).Error
}

func (s *SQL) Remove(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).
		Where("namespace = ? AND cache_key = ?", s.namespace, key).
		Delete(&cacheEntry{}).Error
}

func (s *SQL) ContainsKey(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

func (s *SQL) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).
		Where("namespace = ?", s.namespace).
		Delete(&cacheEntry{}).Error
}

// PurgeExpired deletes expired entries across every namespace and returns the
// number of rows removed.
func (s *SQL) PurgeExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", s.clock.Now(ctx)).
		Delete(&cacheEntry{})
	return result.RowsAffected, result.Error
}
