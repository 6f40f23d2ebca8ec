package config

import (
	"github.com/railzwaylabs/paybridge/internal/observability/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module loads configuration from the supplied LoadOptions and watches the
// file once the logger exists.
var Module = fx.Module("config",
	fx.Provide(
		NewLoader,
		func(l *Loader) (Config, error) { return l.Load() },
		func(cfg Config) logger.Config {
			return logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Name: cfg.AppName}
		},
	),
	fx.Invoke(func(l *Loader, log *zap.Logger) {
		l.Watch(log, nil)
	}),
)
