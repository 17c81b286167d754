// File: utils/config.go
package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config holds the runtime's tunables. Keys are the mapstructure tags; the
// environment overrides them with the AXON_ prefix (AXON_LOG_LEVEL).
type Config struct {
	// Logging
	LogLevel  string `mapstructure:"log_level"`  // zerolog level name
	LogFormat string `mapstructure:"log_format"` // "console" or "json"

	// Scheduler
	DefaultInboxSize int           `mapstructure:"default_inbox_size"` // 0 means unbounded
	ThreadQueueSize  int           `mapstructure:"thread_queue_size"`  // per-direction queue of threaded components
	TickIdleSleep    time.Duration `mapstructure:"tick_idle_sleep"`    // upper bound on an idle Run sleep

	// Services
	SelectorPollInterval time.Duration `mapstructure:"selector_poll_interval"`

	// Server
	HTTPAddr        string        `mapstructure:"http_addr"`
	Backplane       string        `mapstructure:"backplane"` // backplane the websocket bridge joins
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DefaultConfig returns a Config struct with default values.
func DefaultConfig() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "console",

		DefaultInboxSize: 0,
		ThreadQueueSize:  64,
		TickIdleSleep:    100 * time.Millisecond,

		SelectorPollInterval: 10 * time.Millisecond,

		HTTPAddr:        ":3001",
		Backplane:       "events",
		ShutdownTimeout: 5 * time.Second,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	switch c.LogFormat {
	case LogFormatConsole, LogFormatJSON:
	default:
		return fmt.Errorf("log_format %q: must be %q or %q", c.LogFormat, LogFormatConsole, LogFormatJSON)
	}
	if c.DefaultInboxSize < 0 {
		return fmt.Errorf("default_inbox_size %d: must not be negative", c.DefaultInboxSize)
	}
	if c.ThreadQueueSize < 1 {
		return fmt.Errorf("thread_queue_size %d: must be at least 1", c.ThreadQueueSize)
	}
	if c.TickIdleSleep <= 0 {
		return fmt.Errorf("tick_idle_sleep %s: must be positive", c.TickIdleSleep)
	}
	if c.SelectorPollInterval <= 0 {
		return fmt.Errorf("selector_poll_interval %s: must be positive", c.SelectorPollInterval)
	}
	if c.HTTPAddr == "" {
		return errors.New("http_addr: must not be empty")
	}
	if c.Backplane == "" {
		return errors.New("backplane: must not be empty")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout %s: must be positive", c.ShutdownTimeout)
	}
	return nil
}

// SetDefaults registers every default on v so that env overrides apply to
// keys that no config file mentions.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("default_inbox_size", d.DefaultInboxSize)
	v.SetDefault("thread_queue_size", d.ThreadQueueSize)
	v.SetDefault("tick_idle_sleep", d.TickIdleSleep)
	v.SetDefault("selector_poll_interval", d.SelectorPollInterval)
	v.SetDefault("http_addr", d.HTTPAddr)
	v.SetDefault("backplane", d.Backplane)
	v.SetDefault("shutdown_timeout", d.ShutdownTimeout)
}

// LoadConfig reads defaults, then the file at path if one is given (yaml,
// toml or json by extension), then AXON_ environment variables.
func LoadConfig(v *viper.Viper, path string) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return decode(v)
}

// WatchConfig calls onChange with the reloaded Config whenever the config
// file changes. Reloads that fail to decode or validate are reported through
// onError and otherwise ignored.
func WatchConfig(v *viper.Viper, onChange func(Config), onError func(error)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload %s: %w", e.Name, err))
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
