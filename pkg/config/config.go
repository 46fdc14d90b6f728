package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the wrapper around viper with extra helpers.
type Config struct {
	*viper.Viper

	mu            sync.Mutex
	sensitiveKeys map[string]struct{}
	onChange      []func()
	fileSet       bool
}

// Option is a functional option for New.
type Option func(*Config) error

// New creates a Config instance. Use options to customize behavior.
// Example:
//
//	cfg, err := config.New(
//	  config.WithDefaults(config.ClientDefaults()),
//	  config.WithFile("httpcore.yaml"),
//	  config.WithEnv("HTTPCORE"),
//	  config.WithPFlags(pflag.CommandLine),
//	)
func New(opts ...Option) (*Config, error) {
	cfg := &Config{
		Viper:         viper.New(),
		sensitiveKeys: map[string]struct{}{},
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("config: applying option: %w", err)
		}
	}

	if err := cfg.readConfigIfPossible(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readConfigIfPossible only treats a missing file as fatal when it was named
// explicitly through WithFile.
func (c *Config) readConfigIfPossible() error {
	err := c.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) && !c.fileSet {
		return nil
	}
	return fmt.Errorf("config: read: %w", err)
}

/* ---------------------------
   Options
----------------------------*/

// WithDefaults sets default values (applied first)
func WithDefaults(defaults map[string]any) Option {
	return func(c *Config) error {
		for k, v := range defaults {
			c.SetDefault(k, v)
		}
		return nil
	}
}

// WithFile sets an exact config file; its extension determines the format.
func WithFile(path string) Option {
	return func(c *Config) error {
		if path == "" {
			return nil
		}
		c.SetConfigFile(path)
		if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext != "" {
			c.SetConfigType(ext)
		}
		c.fileSet = true
		return nil
	}
}

// WithConfigNamePaths sets config name (without ext) and search paths.
func WithConfigNamePaths(name string, paths ...string) Option {
	return func(c *Config) error {
		if name != "" {
			c.SetConfigName(name)
		}
		if len(paths) == 0 {
			paths = []string{".", "./env", "/etc/httpcore"}
		}
		for _, p := range paths {
			c.AddConfigPath(p)
		}
		return nil
	}
}

// WithEnv enables environment variable overrides.
// prefix = "APP" means APP_HTTP_BASE_URL overrides http.base_url.
func WithEnv(prefix string) Option {
	return func(c *Config) error {
		if prefix != "" {
			c.SetEnvPrefix(prefix)
		}
		c.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
		c.AutomaticEnv()
		return nil
	}
}

// WithPFlags binds a pflag.FlagSet to viper. If flags are nil, we bind the default command line.
// The application defines the flags; flag names use the dotted config keys.
func WithPFlags(flags *pflag.FlagSet) Option {
	return func(c *Config) error {
		if flags == nil {
			flags = pflag.CommandLine
		}
		return c.BindPFlags(flags)
	}
}

// WithDotEnv reads KEY=VALUE lines from a .env file. Keys are lowercased and
// "__" becomes "." so HTTP__BASE_URL sets http.base_url. A missing file is ignored.
func WithDotEnv(path string) Option {
	return func(c *Config) error {
		if path == "" {
			path = ".env"
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil
		}
		values, err := godotenv.Read(path)
		if err != nil {
			return err
		}
		for k, v := range values {
			c.Set(strings.ReplaceAll(strings.ToLower(k), "__", "."), v)
		}
		return nil
	}
}

// WithWatch enables hot-reload. onChange runs after every reload.
func WithWatch(onChange func()) Option {
	return func(c *Config) error {
		if onChange != nil {
			c.onChange = append(c.onChange, onChange)
		}
		c.OnConfigChange(func(fsnotify.Event) {
			c.mu.Lock()
			callbacks := append([]func(){}, c.onChange...)
			c.mu.Unlock()
			for _, fn := range callbacks {
				fn()
			}
		})
		c.WatchConfig()
		return nil
	}
}

// OnChange registers another reload callback; only effective with WithWatch.
func (c *Config) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = append(c.onChange, fn)
	c.mu.Unlock()
}

// WithSensitiveKeys registers keys which should be redacted when printing/logging.
func WithSensitiveKeys(keys ...string) Option {
	return func(c *Config) error {
		for _, k := range keys {
			c.sensitiveKeys[strings.ToLower(k)] = struct{}{}
		}
		return nil
	}
}

/* ---------------------------
   Typed getters with defaults
----------------------------*/

// GetStringD returns string or def
func (c *Config) GetStringD(key, def string) string {
	if val := c.GetString(key); val != "" {
		return val
	}
	return def
}

// GetIntD returns int or def
func (c *Config) GetIntD(key string, def int) int {
	if c.IsSet(key) {
		return c.GetInt(key)
	}
	return def
}

// GetBoolD returns bool or def
func (c *Config) GetBoolD(key string, def bool) bool {
	if c.IsSet(key) {
		return c.GetBool(key)
	}
	return def
}

// GetDurationD returns time.Duration or def
func (c *Config) GetDurationD(key string, def time.Duration) time.Duration {
	if c.IsSet(key) {
		return c.GetDuration(key)
	}
	return def
}

// GetFloat64D returns float64 or def
func (c *Config) GetFloat64D(key string, def float64) float64 {
	if c.IsSet(key) {
		return c.GetFloat64(key)
	}
	return def
}

/* ---------------------------
   Validation & Utilities
----------------------------*/

// ValidateRequired ensures keys exist and are non-empty.
func (c *Config) ValidateRequired(keys ...string) error {
	var missing []string
	for _, k := range keys {
		if !c.IsSet(k) || c.GetString(k) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required keys: %s", strings.Join(missing, ", "))
	}
	return nil
}

// MaskedSettings returns the effective settings as flat dotted keys with
// sensitive values redacted. Safe to log.
func (c *Config) MaskedSettings() map[string]any {
	out := make(map[string]any)
	for _, k := range c.AllKeys() {
		if _, ok := c.sensitiveKeys[k]; ok {
			out[k] = "***REDACTED***"
			continue
		}
		out[k] = c.Get(k)
	}
	return out
}
