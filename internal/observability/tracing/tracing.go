package tracing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Span attribute keys shared by the orchestration service and adapters.
const (
	AttrProcessor = attribute.Key("paybridge.processor")
	AttrOperation = attribute.Key("paybridge.operation")
	AttrAttempts  = attribute.Key("paybridge.attempts")
	AttrErrorKind = attribute.Key("paybridge.error_kind")
)

const defaultSamplingRatio = 0.1

type Config struct {
	Enabled          bool
	ServiceName      string
	ServiceVersion   string
	Environment      string
	Processor        string
	ExporterEndpoint string
	ExporterProtocol string
	SamplingRatio    float64
}

// NewProvider installs the global tracer provider. Disabled tracing installs
// a noop provider and returns nil.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (*sdktrace.TracerProvider, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return nil, nil
	}
	if log == nil {
		log = zap.NewNop()
	}

	protocol := strings.ToLower(strings.TrimSpace(cfg.ExporterProtocol))
	endpoint := strings.TrimSpace(cfg.ExporterEndpoint)
	exporter, err := newExporter(protocol, endpoint)
	if err != nil {
		return nil, err
	}
	res, err := newResource(cfg)
	if err != nil {
		return nil, err
	}

	ratio := samplingRatio(cfg.SamplingRatio)
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
	otel.SetTracerProvider(provider)

	if lc != nil {
		lc.Append(fx.StopHook(func(ctx context.Context) error {
			log.Info("flushing processor traces")
			return provider.Shutdown(ctx)
		}))
	}
	log.Info("processor tracing enabled",
		zap.String("processor", cfg.Processor),
		zap.String("protocol", protocol),
		zap.String("endpoint", endpoint),
		zap.Float64("sampling_ratio", ratio),
	)
	return provider, nil
}

func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartProcessorCall opens the span wrapping one logical processor operation,
// retries included.
func StartProcessorCall(ctx context.Context, tracer trace.Tracer, processor, operation string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "processor."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(AttrProcessor.String(processor), AttrOperation.String(operation)),
	)
}

// EndProcessorCall records the attempt count and, on failure, the error kind.
// It does not end the span.
func EndProcessorCall(span trace.Span, attempts int, kind string, err error) {
	span.SetAttributes(AttrAttempts.Int(attempts))
	if err == nil {
		return
	}
	span.SetAttributes(AttrErrorKind.String(kind))
	span.RecordError(err)
	span.SetStatus(codes.Error, kind)
}

func newResource(cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.Environment),
	}
	if cfg.Processor != "" {
		attrs = append(attrs, AttrProcessor.String(cfg.Processor))
	}
	return resource.New(context.Background(), resource.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdktrace.SpanExporter, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch protocol {
	case "grpc", "":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(endpoint))
		}
		return otlptracegrpc.New(ctx, opts...)
	case "http", "http/protobuf":
		var opts []otlptracehttp.Option
		if endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("tracing: unsupported otlp protocol %q", protocol)
	}
}

func samplingRatio(v float64) float64 {
	switch {
	case v <= 0:
		return defaultSamplingRatio
	case v > 1:
		return 1
	default:
		return v
	}
}
