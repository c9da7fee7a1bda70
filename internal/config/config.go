// Package config loads server settings from defaults, a .env file, the
// environment and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix namespaces environment variables, e.g. TUGMATH_TICK_INTERVAL.
const EnvPrefix = "TUGMATH"

const defaultAddr = ":8080"

// Config is the resolved server configuration.
type Config struct {
	Addr            string        `mapstructure:"addr"`
	Port            string        `mapstructure:"port"`
	DBPath          string        `mapstructure:"db_path"`
	TickInterval    time.Duration `mapstructure:"tick_interval"`
	FeedbackWindow  time.Duration `mapstructure:"feedback_window"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	SessionMaxAge   time.Duration `mapstructure:"session_max_age"`
	LogLevel        string        `mapstructure:"log_level"`
	LogDev          bool          `mapstructure:"log_dev"`
	WebDir          string        `mapstructure:"web_dir"`
}

// New returns a viper instance with defaults and environment bindings. Flags
// can be bound on top with BindPFlag before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("addr", defaultAddr)
	v.SetDefault("port", "")
	// In-memory by default: matches do not outlive the process.
	v.SetDefault("db_path", ":memory:")
	v.SetDefault("tick_interval", time.Second)
	v.SetDefault("feedback_window", time.Second)
	v.SetDefault("cleanup_interval", time.Minute)
	v.SetDefault("session_max_age", time.Hour)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_dev", false)
	v.SetDefault("web_dir", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// Unprefixed names kept for existing deployments.
	v.BindEnv("port", "PORT")
	v.BindEnv("db_path", EnvPrefix+"_DB_PATH", "DB_PATH")
	return v
}

// LoadDotEnv reads KEY=VALUE pairs from path (".env" when empty) into the
// process environment. A missing file is not an error; variables already set
// are left alone.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load resolves v into a validated Config.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port != "" && cfg.Addr == defaultAddr {
		cfg.Addr = ":" + strings.TrimPrefix(cfg.Port, ":")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path must not be empty"))
	}
	for name, d := range map[string]time.Duration{
		"tick_interval":    c.TickInterval,
		"feedback_window":  c.FeedbackWindow,
		"cleanup_interval": c.CleanupInterval,
		"session_max_age":  c.SessionMaxAge,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if _, err := zap.ParseAtomicLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	return errors.Join(errs...)
}

// Logger builds the process logger: JSON in production, console when LogDev
// is set.
func (c Config) Logger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log_level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if c.LogDev {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}
