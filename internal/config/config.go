// Package config loads and validates runner configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/upload-runner/internal/engine"
)

// EnvPrefix namespaces environment overrides, e.g. UPLOAD_RUNNER_RUNNER_WORKERS.
const EnvPrefix = "UPLOAD_RUNNER"

// Config captures all runner configuration knobs loaded via Viper.
type Config struct {
	Runner    RunnerConfig    `mapstructure:"runner"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Debug     DebugConfig     `mapstructure:"debug"`
}

// RunnerConfig sizes the worker pool.
type RunnerConfig struct {
	Workers     int           `mapstructure:"workers"`
	QueueDepth  int           `mapstructure:"queue_depth"`
	FileTimeout time.Duration `mapstructure:"file_timeout"`
}

// HTTPConfig configures the upload clients.
type HTTPConfig struct {
	Timeout               time.Duration `mapstructure:"timeout"`
	PreRequestTimeout     time.Duration `mapstructure:"pre_request_timeout"`
	ResponseHeaderTimeout time.Duration `mapstructure:"response_header_timeout"`
	UserAgent             string        `mapstructure:"user_agent"`
}

// RateLimitConfig sets the token buckets.
type RateLimitConfig struct {
	GlobalRPS     float64  `mapstructure:"global_rps"`
	GlobalBurst   int      `mapstructure:"global_burst"`
	DefaultRPS    float64  `mapstructure:"default_rps"`
	DefaultBurst  int      `mapstructure:"default_burst"`
	StrictRPS     float64  `mapstructure:"strict_rps"`
	StrictBurst   int      `mapstructure:"strict_burst"`
	StrictTargets []string `mapstructure:"strict_targets"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// MetricsConfig enables the HTTP metrics endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// DebugConfig enables HTTP exchange dumps when DumpDir is set.
type DebugConfig struct {
	DumpDir string `mapstructure:"dump_dir"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("runner.workers", 8)
	v.SetDefault("runner.queue_depth", 100)
	v.SetDefault("runner.file_timeout", 180*time.Second)
	v.SetDefault("http.timeout", 180*time.Second)
	v.SetDefault("http.pre_request_timeout", 60*time.Second)
	v.SetDefault("http.response_header_timeout", 30*time.Second)
	v.SetDefault("http.user_agent", engine.DefaultUserAgent)
	v.SetDefault("ratelimit.global_rps", 10.0)
	v.SetDefault("ratelimit.global_burst", 20)
	v.SetDefault("ratelimit.default_rps", 2.0)
	v.SetDefault("ratelimit.default_burst", 5)
	v.SetDefault("ratelimit.strict_rps", 1.0)
	v.SetDefault("ratelimit.strict_burst", 3)
	v.SetDefault("ratelimit.strict_targets", []string{"vipergirls.to"})
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("debug.dump_dir", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	var errs []error
	if c.Runner.Workers <= 0 {
		errs = append(errs, errors.New("runner.workers must be > 0"))
	}
	if c.Runner.QueueDepth <= 0 {
		errs = append(errs, errors.New("runner.queue_depth must be > 0"))
	}
	if c.Runner.FileTimeout <= 0 {
		errs = append(errs, errors.New("runner.file_timeout must be > 0"))
	}
	if c.HTTP.Timeout <= 0 {
		errs = append(errs, errors.New("http.timeout must be > 0"))
	}
	if c.HTTP.PreRequestTimeout < 0 {
		errs = append(errs, errors.New("http.pre_request_timeout must be >= 0"))
	}
	if c.RateLimit.GlobalRPS <= 0 || c.RateLimit.DefaultRPS <= 0 || c.RateLimit.StrictRPS <= 0 {
		errs = append(errs, errors.New("ratelimit rps values must be > 0"))
	}
	if c.RateLimit.GlobalBurst <= 0 || c.RateLimit.DefaultBurst <= 0 || c.RateLimit.StrictBurst <= 0 {
		errs = append(errs, errors.New("ratelimit burst values must be > 0"))
	}
	return errors.Join(errs...)
}
