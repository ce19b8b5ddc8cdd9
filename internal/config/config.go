// Package config loads and validates research run configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures every knob the pipeline recognizes, loaded via Viper with
// file and environment overrides.
type Config struct {
	Research ResearchConfig `mapstructure:"research"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Search   SearchConfig   `mapstructure:"search"`
	Report   ReportConfig   `mapstructure:"report"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ResearchConfig bounds the breadth-first exploration.
type ResearchConfig struct {
	MaxInitialResults      int     `mapstructure:"max_initial_results"`
	MaxLevel2PerPage       int     `mapstructure:"max_level2_per_page"`
	MaxTotalPages          int     `mapstructure:"max_total_pages"`
	OverallDeadlineSeconds int     `mapstructure:"overall_deadline_seconds"`
	MinRelevance           float64 `mapstructure:"min_relevance"`
}

// HTTPConfig configures per-request fetch behavior.
type HTTPConfig struct {
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`
	MaxRetries            int    `mapstructure:"max_retries"`
	MaxBytesPerPage       int    `mapstructure:"max_bytes_per_page"`
	UserAgent             string `mapstructure:"user_agent"`
}

// CrawlerConfig governs concurrency and politeness.
type CrawlerConfig struct {
	MaxConcurrency       int `mapstructure:"max_concurrency"`
	PerHostMinIntervalMs int `mapstructure:"per_host_min_interval_ms"`
}

// SearchConfig selects the search endpoint.
type SearchConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

// ReportConfig sets output locations for the emitted reports.
type ReportConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

// ServerConfig controls the optional metrics/health HTTP listener.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from an optional file plus the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DEEPRESEARCH")
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
	v.SetDefault("research.max_initial_results", 20)
	v.SetDefault("research.max_level2_per_page", 10)
	v.SetDefault("research.max_total_pages", 0)
	v.SetDefault("research.overall_deadline_seconds", 120)
	v.SetDefault("research.min_relevance", 0.05)
	v.SetDefault("http.request_timeout_seconds", 30)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.max_bytes_per_page", 1_000_000)
	v.SetDefault("http.user_agent", "deepresearch-bot/0.1 (+https://github.com/probelab/deepresearch)")
	v.SetDefault("crawler.max_concurrency", 10)
	v.SetDefault("crawler.per_host_min_interval_ms", 500)
	v.SetDefault("search.endpoint", "https://html.duckduckgo.com/html/")
	v.SetDefault("report.output_dir", "research_output")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 9090)
	v.SetDefault("logging.development", true)
}

// Validate enforces option ranges before any network activity starts.
func (c Config) Validate() error {
	if c.Research.MaxInitialResults <= 0 {
		return fmt.Errorf("research.max_initial_results must be > 0")
	}
	if c.Research.MaxLevel2PerPage < 0 {
		return fmt.Errorf("research.max_level2_per_page must be >= 0")
	}
	if c.Research.MaxTotalPages < 0 {
		return fmt.Errorf("research.max_total_pages must be >= 0")
	}
	if c.Research.OverallDeadlineSeconds < 0 {
		return fmt.Errorf("research.overall_deadline_seconds must be >= 0")
	}
	if c.Research.MinRelevance < 0 || c.Research.MinRelevance > 1 {
		return fmt.Errorf("research.min_relevance must be within [0, 1]")
	}
	if c.HTTP.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("http.request_timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.HTTP.MaxBytesPerPage <= 0 {
		return fmt.Errorf("http.max_bytes_per_page must be > 0")
	}
	if c.Crawler.MaxConcurrency <= 0 {
		return fmt.Errorf("crawler.max_concurrency must be > 0")
	}
	if c.Crawler.PerHostMinIntervalMs < 0 {
		return fmt.Errorf("crawler.per_host_min_interval_ms must be >= 0")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when server is enabled")
	}
	return nil
}

// RequestTimeout returns the per-request deadline as a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.RequestTimeoutSeconds) * time.Second
}

// OverallDeadline returns the whole-run deadline as a duration.
func (c Config) OverallDeadline() time.Duration {
	return time.Duration(c.Research.OverallDeadlineSeconds) * time.Second
}

// PerHostMinInterval returns the politeness spacing as a duration.
func (c Config) PerHostMinInterval() time.Duration {
	return time.Duration(c.Crawler.PerHostMinIntervalMs) * time.Millisecond
}
