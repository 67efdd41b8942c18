package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv = "NEWSHEAT_CONFIG"
	envPrefix     = "NEWSHEAT_"
)

// Config holds every runtime setting of the heatmap service. Values are
// layered: compiled defaults, then an optional YAML file named by
// NEWSHEAT_CONFIG, then NEWSHEAT_* environment overrides.
type Config struct {
	HTTPPort int    `yaml:"http_port"`
	APIToken string `yaml:"api_token"`
	DBPath   string `yaml:"db_path"`
	LogLevel string `yaml:"log_level"`

	CacheTTLMillis int `yaml:"cache_ttl_ms"`
	MaxArticles    int `yaml:"max_articles"`

	StateLookbackHours   int `yaml:"state_lookback_hours"`
	StateRetentionDays   int `yaml:"state_retention_days"`
	HistoryRetentionDays int `yaml:"history_retention_days"`

	// RefreshInterval is a Go duration string ("5m"). Empty disables the
	// background refresher.
	RefreshInterval string `yaml:"refresh_interval"`

	LLM LLMConfig `yaml:"llm"`
}

// LLMConfig defines how to reach the labeling backend.
type LLMConfig struct {
	Provider      string `yaml:"provider"` // disabled, openai, anthropic, ollama
	Model         string `yaml:"model"`
	APIKey        string `yaml:"api_key"`
	BaseURL       string `yaml:"base_url"`
	MaxArticles   int    `yaml:"max_articles"`
	TimeoutMillis int    `yaml:"timeout_ms"`
}

// Default returns the compiled-in configuration.
func Default() Config {
	return Config{
		HTTPPort:             4600,
		DBPath:               "./data/newsheat.db",
		LogLevel:             "info",
		CacheTTLMillis:       15000,
		MaxArticles:          1500,
		StateLookbackHours:   96,
		StateRetentionDays:   10,
		HistoryRetentionDays: 14,
		LLM: LLMConfig{
			Provider:      "disabled",
			Model:         "gpt-4o-mini",
			MaxArticles:   450,
			TimeoutMillis: 8000,
		},
	}
}

// Load builds the effective configuration from defaults, the optional YAML
// file, and environment overrides. A broken config file is reported and
// skipped rather than fatal.
func Load() Config {
	cfg := Default()

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("config file unreadable, using defaults", "path", path, "error", err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				slog.Warn("config file unparsable, using defaults", "path", path, "error", err)
			} else {
				cfg = merge(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.clamp()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	envInt(&c.HTTPPort, "HTTP_PORT")
	envStr(&c.APIToken, "API_TOKEN")
	envStr(&c.DBPath, "DB_PATH")
	envStr(&c.LogLevel, "LOG_LEVEL")
	envInt(&c.CacheTTLMillis, "CACHE_TTL_MS")
	envInt(&c.MaxArticles, "MAX_ARTICLES")
	envInt(&c.StateLookbackHours, "STATE_LOOKBACK_HOURS")
	envInt(&c.StateRetentionDays, "STATE_RETENTION_DAYS")
	envInt(&c.HistoryRetentionDays, "HISTORY_RETENTION_DAYS")
	envStr(&c.RefreshInterval, "REFRESH_INTERVAL")

	envStr(&c.LLM.Provider, "LLM_PROVIDER")
	envStr(&c.LLM.Model, "LLM_MODEL")
	envStr(&c.LLM.APIKey, "LLM_API_KEY")
	envStr(&c.LLM.BaseURL, "LLM_BASE_URL")
	envInt(&c.LLM.MaxArticles, "LLM_MAX_ARTICLES")
	envInt(&c.LLM.TimeoutMillis, "LLM_TIMEOUT_MS")
}

// clamp pulls out-of-range values back to their defaults so a bad override
// degrades instead of breaking cache or retention math.
func (c *Config) clamp() {
	def := Default()
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		c.HTTPPort = def.HTTPPort
	}
	if c.CacheTTLMillis <= 0 {
		c.CacheTTLMillis = def.CacheTTLMillis
	}
	if c.MaxArticles <= 0 {
		c.MaxArticles = def.MaxArticles
	}
	if c.StateLookbackHours <= 0 {
		c.StateLookbackHours = def.StateLookbackHours
	}
	if c.StateRetentionDays <= 0 {
		c.StateRetentionDays = def.StateRetentionDays
	}
	if c.HistoryRetentionDays <= 0 {
		c.HistoryRetentionDays = def.HistoryRetentionDays
	}
	if c.LLM.MaxArticles <= 0 {
		c.LLM.MaxArticles = def.LLM.MaxArticles
	}
	if c.LLM.TimeoutMillis <= 0 {
		c.LLM.TimeoutMillis = def.LLM.TimeoutMillis
	}
}

// CacheTTL returns the heatmap result cache TTL.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMillis) * time.Millisecond
}

// LLMTimeout returns the labeling call deadline.
func (c Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutMillis) * time.Millisecond
}

// StateLookback returns how far back previous-state rows are considered.
func (c Config) StateLookback() time.Duration {
	return time.Duration(c.StateLookbackHours) * time.Hour
}

// StateRetention returns how long current-state rows are kept.
func (c Config) StateRetention() time.Duration {
	return time.Duration(c.StateRetentionDays) * 24 * time.Hour
}

// HistoryRetention returns how long history observations are kept.
func (c Config) HistoryRetention() time.Duration {
	return time.Duration(c.HistoryRetentionDays) * 24 * time.Hour
}

// RefreshEvery parses RefreshInterval. Zero means the refresher is off.
func (c Config) RefreshEvery() (time.Duration, error) {
	if c.RefreshInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.RefreshInterval)
	if err != nil {
		return 0, fmt.Errorf("parsing refresh_interval: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("refresh_interval must not be negative, got %s", d)
	}
	return d, nil
}

// SlogLevel maps the configured log level string onto slog's levels.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func merge(base, override Config) Config {
	if override.HTTPPort != 0 {
		base.HTTPPort = override.HTTPPort
	}
	if override.APIToken != "" {
		base.APIToken = override.APIToken
	}
	if override.DBPath != "" {
		base.DBPath = override.DBPath
	}
	if override.LogLevel != "" {
		base.LogLevel = override.LogLevel
	}
	if override.CacheTTLMillis != 0 {
		base.CacheTTLMillis = override.CacheTTLMillis
	}
	if override.MaxArticles != 0 {
		base.MaxArticles = override.MaxArticles
	}
	if override.StateLookbackHours != 0 {
		base.StateLookbackHours = override.StateLookbackHours
	}
	if override.StateRetentionDays != 0 {
		base.StateRetentionDays = override.StateRetentionDays
	}
	if override.HistoryRetentionDays != 0 {
		base.HistoryRetentionDays = override.HistoryRetentionDays
	}
	if override.RefreshInterval != "" {
		base.RefreshInterval = override.RefreshInterval
	}

	if override.LLM.Provider != "" {
		base.LLM.Provider = override.LLM.Provider
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if override.LLM.APIKey != "" {
		base.LLM.APIKey = override.LLM.APIKey
	}
	if override.LLM.BaseURL != "" {
		base.LLM.BaseURL = override.LLM.BaseURL
	}
	if override.LLM.MaxArticles != 0 {
		base.LLM.MaxArticles = override.LLM.MaxArticles
	}
	if override.LLM.TimeoutMillis != 0 {
		base.LLM.TimeoutMillis = override.LLM.TimeoutMillis
	}

	return base
}

func envStr(dst *string, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring non-numeric environment override", "key", envPrefix+key, "value", v)
		return
	}
	*dst = n
}
