// Package config loads the gateway's configuration via viper, with
// environment variable overrides under the SENTREL_ prefix.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full set of ENUMERATED options the gateway accepts.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`

	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	AuthRequired      bool     `mapstructure:"auth_required"`
	AllowedPublicKeys []string `mapstructure:"allowed_public_keys"`
	AllowedCORSOrigins []string `mapstructure:"allowed_cors_origins"`

	MaxRequestSize int   `mapstructure:"max_request_size"`
	ProjectIDs     []int `mapstructure:"project_ids"`

	OpenSearchHosts       []string `mapstructure:"opensearch_hosts"`
	OpenSearchUsername    string   `mapstructure:"opensearch_username"`
	OpenSearchPassword    string   `mapstructure:"opensearch_password"`
	OpenSearchUseSSL      bool     `mapstructure:"opensearch_use_ssl"`
	OpenSearchVerifyCerts bool     `mapstructure:"opensearch_verify_certs"`
	OpenSearchCACerts     string   `mapstructure:"opensearch_ca_certs"`
	OpenSearchIndexPrefix string   `mapstructure:"opensearch_index_prefix"`

	BatchSize           int `mapstructure:"batch_size"`
	BatchTimeoutSeconds int `mapstructure:"batch_timeout_seconds"`

	UseCelery bool `mapstructure:"use_celery"`
	NatsURL   string `mapstructure:"nats_url"`

	RateLimitEnabled  bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRequests int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`
	RedisURL          string        `mapstructure:"redis_url"`

	GeoIPDatabasePath string `mapstructure:"geoip_database_path"`
	EnableGeoIP       bool   `mapstructure:"enable_geoip"`
}

// Load reads configuration from an optional file plus SENTREL_-prefixed
// environment variables, applying the spec-enumerated defaults first.
//
// String-list fields accept either a JSON array or a comma-separated string
// from the environment -- a StringToSliceHookFunc-style split is applied
// manually below since these fields are post-processed rather than left to
// viper's default string-to-slice decoding. project_ids accepts a
// comma-separated string from the environment and an array from a config
// file; a JSON array in the environment is not accepted for it and fails
// the load at unmarshal time.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("app_name", "sentrel")
	v.SetDefault("debug", false)
	v.SetDefault("log_level", "INFO")

	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8000)

	v.SetDefault("auth_required", true)
	v.SetDefault("allowed_public_keys", []string{})
	v.SetDefault("allowed_cors_origins", []string{})

	v.SetDefault("max_request_size", 5*1024*1024)
	v.SetDefault("project_ids", []int{})

	v.SetDefault("opensearch_hosts", []string{"http://localhost:9200"})
	v.SetDefault("opensearch_use_ssl", false)
	v.SetDefault("opensearch_verify_certs", true)
	v.SetDefault("opensearch_index_prefix", "sentry-events")

	v.SetDefault("batch_size", 100)
	v.SetDefault("batch_timeout_seconds", 5)

	v.SetDefault("use_celery", true)
	v.SetDefault("nats_url", "nats://localhost:4222")

	v.SetDefault("rate_limit_enabled", true)
	v.SetDefault("rate_limit_requests", 1000)
	v.SetDefault("rate_limit_window", "60s")
	v.SetDefault("redis_url", "redis://localhost:6379/0")

	v.SetDefault("enable_geoip", false)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/sentrel")
	}

	v.SetEnvPrefix("SENTREL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			if configPath != "" {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.AllowedPublicKeys = splitStringList(v.GetString("allowed_public_keys"), cfg.AllowedPublicKeys)
	cfg.AllowedCORSOrigins = splitStringList(v.GetString("allowed_cors_origins"), cfg.AllowedCORSOrigins)
	cfg.OpenSearchHosts = splitStringList(v.GetString("opensearch_hosts"), cfg.OpenSearchHosts)

	if ids, err := splitIntList(v.GetString("project_ids"), cfg.ProjectIDs); err == nil {
		cfg.ProjectIDs = ids
	}

	if cfg.Debug && len(cfg.AllowedCORSOrigins) == 0 {
		cfg.AllowedCORSOrigins = []string{"*"}
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// splitStringList allows `allowed_public_keys=a,b,c` as a plain environment
// string, or `allowed_public_keys=["a","b"]` as a JSON array string, in
// addition to the structured form viper already unmarshals into existing.
// If the raw string is empty (or is not a valid JSON array despite its
// leading '['), existing (from file/array default) is returned unchanged.
func splitStringList(raw string, existing []string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return existing
	}
	if strings.HasPrefix(raw, "[") {
		var fromJSON []string
		if err := json.Unmarshal([]byte(raw), &fromJSON); err == nil {
			return fromJSON
		}
		return existing
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitIntList(raw string, existing []int) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "[") {
		return existing, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid project id %q: %w", p, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// validate enforces the minimal startup sanity checks; anything caught
// here becomes a ConfigError (fatal, exit 1) rather than surfacing later
// as a confusing runtime failure.
func validate(cfg *Config) error {
	if cfg.Port <= 0 {
		return fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.MaxRequestSize <= 0 {
		return fmt.Errorf("invalid max_request_size: %d", cfg.MaxRequestSize)
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("invalid batch_size: %d", cfg.BatchSize)
	}
	if len(cfg.OpenSearchHosts) == 0 {
		return errors.New("opensearch_hosts must not be empty")
	}
	return nil
}
