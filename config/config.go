package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// envBindings maps configuration keys to the environment variables that override them
var envBindings = map[string]string{
	"mircrew.username":     "MIRCREW_USERNAME",
	"mircrew.password":     "MIRCREW_PASSWORD",
	"mircrew.timeout":      "MIRCREW_TIMEOUT",
	"mircrew.max_retries":  "MIRCREW_MAX_RETRIES",
	"mircrew.base_url":     "MIRCREW_BASE_URL",
	"server.addr":          "MIRCREW_SERVER_ADDR",
	"logging.level":        "MIRCREW_LOG_LEVEL",
	"logging.format":       "MIRCREW_LOG_FORMAT",
	"qbittorrent.url":      "MIRCREW_QBITTORRENT_URL",
	"qbittorrent.password": "MIRCREW_QBITTORRENT_PASSWORD",
}

// Load loads the configuration from file and environment. Without an explicit
// path a missing config file is not an error, the environment alone may
// provide everything that is required.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", env, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in standard locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// Check current directory first
		v.AddConfigPath(".")

		// Check home directory
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".mircrew"))
		}

		// Check /etc
		v.AddConfigPath("/etc/mircrew/")
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	hooks := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		secondsToDurationHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hooks); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Forum defaults
	v.SetDefault("mircrew.base_url", "https://mircrew-releases.org")
	v.SetDefault("mircrew.timeout", 30*time.Second)
	v.SetDefault("mircrew.max_retries", 3)
	v.SetDefault("mircrew.cookie_prefix", "phpbb3_12hgm")

	// Server defaults
	v.SetDefault("server.addr", "127.0.0.1:8089")

	// qBittorrent defaults
	v.SetDefault("qbittorrent.enabled", false)
	v.SetDefault("qbittorrent.url", "http://localhost:8080")
	v.SetDefault("qbittorrent.category", "mircrew")
	v.SetDefault("qbittorrent.paused", false)
	v.SetDefault("qbittorrent.insecure_skip_verify", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.color", true)
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
}

// secondsToDurationHook decodes a bare number as a count of seconds
func secondsToDurationHook() mapstructure.DecodeHookFuncType {
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case float64:
			return time.Duration(v * float64(time.Second)), nil
		case string:
			if seconds, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return time.Duration(seconds * float64(time.Second)), nil
			}
		}
		return data, nil
	}
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	var missing []string
	if strings.TrimSpace(cfg.MirCrew.Username) == "" {
		missing = append(missing, envBindings["mircrew.username"])
	}
	if strings.TrimSpace(cfg.MirCrew.Password) == "" {
		missing = append(missing, envBindings["mircrew.password"])
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing credentials: set %s", strings.Join(missing, " and "))
	}

	base, err := url.Parse(cfg.MirCrew.BaseURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return fmt.Errorf("mircrew.base_url must be an absolute http(s) URL: %q", cfg.MirCrew.BaseURL)
	}

	if cfg.MirCrew.Timeout <= 0 {
		return fmt.Errorf("mircrew.timeout must be positive, got %s", cfg.MirCrew.Timeout)
	}

	if cfg.MirCrew.MaxRetries < 0 {
		return fmt.Errorf("mircrew.max_retries cannot be negative")
	}

	for _, endpoint := range cfg.MirCrew.LikeEndpoints {
		if !strings.Contains(endpoint, "{post}") {
			return fmt.Errorf("invalid mircrew.like_endpoints entry %q (must contain {post})", endpoint)
		}
	}

	if cfg.QBittorrent.Enabled && cfg.QBittorrent.URL == "" {
		return fmt.Errorf("qbittorrent.url is required when qbittorrent is enabled")
	}

	// Validate logging level
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}

	// Validate logging format
	validFormats := map[string]bool{
		"console": true,
		"json":    true,
	}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s", cfg.Logging.Format)
	}

	return nil
}
