package storage

import (
	"context"
	"fmt"

	"github.com/railzwaylabs/paybridge/internal/clock"
	"github.com/railzwaylabs/paybridge/internal/config"
	"github.com/railzwaylabs/paybridge/internal/payment/domain"
	"github.com/railzwaylabs/paybridge/internal/redis"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("storage",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
	Clock     clock.Clock `optional:"true"`
}

// New builds the backend named by storage.driver.
func New(p Params) (domain.Storage, error) {
	cfg := p.Config.Storage
	log := p.Log.Named("storage")

	switch cfg.Driver {
	case "", "memory":
		log.Info("using in-memory storage")
		return NewMemory(cfg.TTL, p.Clock), nil
	case "redis":
		client, err := redis.NewClient(p.Lifecycle, p.Config, log)
		if err != nil {
			return nil, err
		}
		return NewRedis(client, cfg.Prefix, cfg.TTL), nil
	case "postgres", "mysql", "sqlite":
		db, err := OpenDB(SQLOptions{Driver: cfg.Driver, DSN: cfg.DSN, Metrics: true})
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(context.Context) error { return sqlDB.Close() },
		})
		store, err := NewSQL(db, cfg.Prefix, cfg.TTL, p.Clock)
		if err != nil {
			return nil, err
		}
		if cfg.TTL > 0 {
			startSweeper(p.Lifecycle, store, cfg.TTL, log)
		}
		log.Info("using sql storage", zap.String("driver", cfg.Driver))
		return store, nil
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}
