package config

import "time"

// Config represents the complete configuration structure
type Config struct {
	MirCrew     MirCrewConfig     `mapstructure:"mircrew"`
	Server      ServerConfig      `mapstructure:"server"`
	QBittorrent QBittorrentConfig `mapstructure:"qbittorrent"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// MirCrewConfig holds the forum connection details and credentials
type MirCrewConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// MaxRetries is accepted for compatibility; requests are never retried
	MaxRetries    int      `mapstructure:"max_retries"`
	CookiePrefix  string   `mapstructure:"cookie_prefix"`
	LikeEndpoints []string `mapstructure:"like_endpoints"`
}

// ServerConfig configures the JSON tool server
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// QBittorrentConfig holds qBittorrent Web API connection details
type QBittorrentConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Category string `mapstructure:"category"`
	SavePath string `mapstructure:"save_path"`
	// Paused adds torrents without starting them
	Paused             bool `mapstructure:"paused"`
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
	// File enables a rotated log file next to stderr output
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}
