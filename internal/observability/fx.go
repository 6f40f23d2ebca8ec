package observability

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/railzwaylabs/paybridge/internal/config"
	"github.com/railzwaylabs/paybridge/internal/observability/logger"
	"github.com/railzwaylabs/paybridge/internal/observability/metrics"
	"github.com/railzwaylabs/paybridge/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module wires logging, tracing and metrics from the loaded configuration.
var Module = fx.Module("observability",
	fx.Provide(
		newLogger,
		tracingConfig,
		metricsConfig,
		exporterConfig,
		prometheus.NewRegistry,
		func(r *prometheus.Registry) prometheus.Registerer { return r },
		// The default gatherer carries the runtime collectors and the gorm
		// plugin's database stats.
		func(r *prometheus.Registry) prometheus.Gatherer {
			return prometheus.Gatherers{r, prometheus.DefaultGatherer}
		},
		metrics.NewPaymentMetrics,
		metrics.NewMeterProvider,
		metrics.NewHTTPMetrics,
		tracing.NewProvider,
	),
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)

func newLogger(lc fx.Lifecycle, cfg logger.Config) (*zap.Logger, error) {
	log, err := logger.New(cfg)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(log)
	lc.Append(fx.StopHook(func() { _ = log.Sync() }))
	return log, nil
}

func tracingConfig(cfg config.Config) tracing.Config {
	return tracing.Config{
		Enabled:          cfg.Tracing.Enabled,
		ServiceName:      cfg.AppName,
		ServiceVersion:   config.Version,
		Environment:      cfg.Environment,
		Processor:        strings.ToLower(string(cfg.Processor.Provider)),
		ExporterEndpoint: cfg.Tracing.Endpoint,
		ExporterProtocol: cfg.Tracing.Protocol,
		SamplingRatio:    cfg.Tracing.SamplingRatio,
	}
}

func metricsConfig(cfg config.Config) metrics.Config {
	return metrics.Config{ServiceName: cfg.AppName, Environment: cfg.Environment}
}

func exporterConfig(cfg config.Config) metrics.ExporterConfig {
	return metrics.ExporterConfig{
		Enabled:  cfg.Metrics.OTLPEnabled,
		Endpoint: cfg.Metrics.OTLPEndpoint,
		Protocol: cfg.Metrics.OTLPProtocol,
		Interval: cfg.Metrics.Interval,
	}
}
