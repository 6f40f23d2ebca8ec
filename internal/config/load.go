package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/railzwaylabs/paybridge/internal/security/vault"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const envPrefix = "PAYBRIDGE"

// LoadOptions points the loader at its inputs. Empty fields fall back to
// ./paybridge.yaml (or /etc/paybridge/paybridge.yaml) and ./.env.
type LoadOptions struct {
	File    string
	EnvFile string
}

// Loader keeps the viper instance so callers can watch the file afterwards.
type Loader struct {
	v    *viper.Viper
	opts LoadOptions
}

func NewLoader(opts LoadOptions) *Loader {
	return &Loader{v: viper.New(), opts: opts}
}

// Load reads configuration with the usual precedence: environment over file
// over defaults. Sealed values are opened and the result validated.
func Load(opts LoadOptions) (Config, error) {
	return NewLoader(opts).Load()
}

func (l *Loader) Load() (Config, error) {
	if err := loadDotEnv(l.opts.EnvFile); err != nil {
		return Config{}, err
	}

	v := l.v
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnvs(v, "", reflect.TypeOf(Config{})); err != nil {
		return Config{}, err
	}

	if l.opts.File != "" {
		v.SetConfigFile(l.opts.File)
	} else {
		v.SetConfigName("paybridge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/paybridge")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if l.opts.File != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := openSealed(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// File reports the configuration file in use, if any.
func (l *Loader) File() string {
	return l.v.ConfigFileUsed()
}

// Watch logs changes to the configuration file. Processor credentials are
// bound at start-up, so a change takes effect on the next restart.
func (l *Loader) Watch(log *zap.Logger, onChange func(fsnotify.Event)) {
	if l.v.ConfigFileUsed() == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		log.Info("configuration file changed; restart to apply",
			zap.String("file", e.Name),
			zap.String("op", e.Op.String()),
		)
		if onChange != nil {
			onChange(e)
		}
	})
	l.v.WatchConfig()
}

func loadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

// bindEnvs registers every mapstructure key so Unmarshal sees values that
// only exist in the environment. Optional provider sections are bound
// without defaults and stay nil unless a variable sets them.
func bindEnvs(v *viper.Viper, prefix string, t reflect.Type) error {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		ft := field.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct {
			if err := bindEnvs(v, key, ft); err != nil {
				return err
			}
			continue
		}
		if err := v.BindEnv(key); err != nil {
			return err
		}
	}
	return nil
}

// openSealed replaces every enc: string in cfg with its plaintext.
func openSealed(cfg *Config) error {
	var sealed []reflect.Value
	collectSealed(reflect.ValueOf(cfg).Elem(), &sealed)
	if len(sealed) == 0 {
		return nil
	}
	if cfg.Vault.Key == "" {
		return errors.New("config: sealed values present but vault.key is empty")
	}
	v, err := vault.New(cfg.Vault.Key)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	for _, field := range sealed {
		plain, err := v.Open(field.String())
		if err != nil {
			return fmt.Errorf("config: open sealed value: %w", err)
		}
		field.SetString(plain)
	}
	return nil
}

func collectSealed(v reflect.Value, out *[]reflect.Value) {
	switch v.Kind() {
	case reflect.Pointer:
		if !v.IsNil() {
			collectSealed(v.Elem(), out)
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if v.Type().Field(i).IsExported() {
				collectSealed(v.Field(i), out)
			}
		}
	case reflect.String:
		if v.CanSet() && vault.IsSealed(v.String()) {
			*out = append(*out, v)
		}
	}
}
