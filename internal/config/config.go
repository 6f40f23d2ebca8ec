package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/railzwaylabs/paybridge/internal/payment/provider"
)

// Config is the application configuration. Every key can be set in the YAML
// file or through PAYBRIDGE_<SECTION>_<KEY> environment variables.
type Config struct {
	AppName     string `mapstructure:"app_name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"oneof=development test staging production"`

	Log       LogConfig       `mapstructure:"log"`
	Processor provider.Config `mapstructure:"processor" validate:"-"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Server    ServerConfig    `mapstructure:"server"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Vault     VaultConfig     `mapstructure:"vault"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=memory redis postgres mysql sqlite"`
	// DSN is the gorm connection string for the sql drivers.
	DSN    string        `mapstructure:"dsn" validate:"required_if=Driver postgres,required_if=Driver mysql,required_if=Driver sqlite"`
	Prefix string        `mapstructure:"prefix"`
	TTL    time.Duration `mapstructure:"ttl" validate:"gte=0"`
	Redis  RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"gte=1,lte=10"`
	BaseDelay   time.Duration `mapstructure:"base_delay" validate:"gt=0"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" validate:"gt=0"`
}

type TracingConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	Endpoint      string  `mapstructure:"endpoint" validate:"required_if=Enabled true"`
	Protocol      string  `mapstructure:"protocol" validate:"oneof=grpc http"`
	SamplingRatio float64 `mapstructure:"sampling_ratio" validate:"gte=0,lte=1"`
}

type MetricsConfig struct {
	OTLPEnabled  bool          `mapstructure:"otlp_enabled"`
	OTLPEndpoint string        `mapstructure:"otlp_endpoint" validate:"required_if=OTLPEnabled true"`
	OTLPProtocol string        `mapstructure:"otlp_protocol" validate:"oneof=grpc http"`
	Interval     time.Duration `mapstructure:"interval"`
}

// VaultConfig holds the master key that opens enc: prefixed values.
type VaultConfig struct {
	Key string `mapstructure:"key"`
}

func defaults() map[string]any {
	return map[string]any{
		"app_name":                "paybridge",
		"environment":             "development",
		"log.level":               "info",
		"log.format":              "json",
		"processor.http_timeout":  30 * time.Second,
		"storage.driver":          "memory",
		"storage.prefix":          "paybridge:",
		"retry.max_attempts":      3,
		"retry.base_delay":        2 * time.Second,
		"server.addr":             ":8080",
		"server.read_timeout":     10 * time.Second,
		"server.write_timeout":    10 * time.Second,
		"server.shutdown_timeout": 15 * time.Second,
		"server.max_body_bytes":   int64(1 << 20),
		"tracing.protocol":        "grpc",
		"tracing.sampling_ratio":  1.0,
		"metrics.otlp_protocol":   "grpc",
		"metrics.interval":        time.Minute,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return strings.ToLower(field.Name)
		}
		return name
	})
	return v
}

// Validate checks the application sections and then the processor section.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config: %s failed %q validation", trimRoot(fe.Namespace()), fe.Tag())
		}
		return fmt.Errorf("config: %w", err)
	}
	if c.Storage.Driver == "redis" && strings.TrimSpace(c.Storage.Redis.Addr) == "" {
		return errors.New("config: storage.redis.addr is required for the redis driver")
	}
	return c.Processor.Validate()
}

// trimRoot drops the leading struct name from a validator namespace.
func trimRoot(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

// Version is stamped at build time with -ldflags "-X .../internal/config.Version=...".
var Version = "dev"
