package storage

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

const minSweepInterval = time.Minute

type purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// startSweeper runs PurgeExpired every interval until the app stops.
func startSweeper(lc fx.Lifecycle, store purger, interval time.Duration, log *zap.Logger) {
	if interval < minSweepInterval {
		interval = minSweepInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						sweep(ctx, store, log)
					}
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}

func sweep(ctx context.Context, store purger, log *zap.Logger) {
	deleted, err := store.PurgeExpired(ctx)
	if err != nil {
		log.Warn("purge expired cache entries failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		log.Info("purged expired cache entries", zap.Int64("deleted", deleted))
	}
}
