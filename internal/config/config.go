// Package config loads the server's TOML configuration file, mirroring
// the section layout of original_source/src/config/config.rs (server,
// dns, http, redis) while adding the geo/health/metrics sections this
// domain needs that the Rust original split into separate modules.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root of the TOML configuration file.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	DNS     DNSConfig     `toml:"dns"`
	HTTP    HTTPConfig    `toml:"http"`
	Redis   RedisConfig   `toml:"redis"`
	Geo     GeoConfig     `toml:"geo"`
	Health  HealthConfig  `toml:"health"`
	Metrics MetricsConfig `toml:"metrics"`
}

// ServerConfig carries process-wide ambient settings.
type ServerConfig struct {
	LogLevel string `toml:"log_level"`
}

// ZoneConfig describes one authoritative zone's SOA parameters.
type ZoneConfig struct {
	Master      string `toml:"master"`
	Responsible string `toml:"responsible"`
	Serial      uint32 `toml:"serial"`
	Refresh     uint32 `toml:"refresh"`
	Retry       uint32 `toml:"retry"`
	Expire      uint32 `toml:"expire"`
	MinimumTTL  uint32 `toml:"minimum_ttl"`
}

// DNSConfig configures the UDP/TCP listeners and the authority table.
type DNSConfig struct {
	Inets            []string              `toml:"inets"`
	TCPTimeout       time.Duration         `toml:"tcp_timeout"`
	DefaultTTL       uint32                `toml:"default_ttl"`
	Nameservers      []string              `toml:"nameservers"`
	FlattenResolvers []string              `toml:"flatten_resolvers"`
	Zones            map[string]ZoneConfig `toml:"zone"`
}

// ZoneExists reports whether name is a configured zone.
func (d DNSConfig) ZoneExists(name string) bool {
	_, ok := d.Zones[name]
	return ok
}

// HTTPConfig configures the control-plane HTTP listener.
type HTTPConfig struct {
	Inet        string `toml:"inet"`
	Workers     int    `toml:"workers"`
	RecordToken string `toml:"record_token"`
}

// RedisConfig configures the remote KV store backend pool: the primary
// connection, an optional ordered rescue list tried on primary failure,
// and the façade's front-cache timing.
type RedisConfig struct {
	Host                     string `toml:"host"`
	Port                     int    `toml:"port"`
	Password                 string `toml:"password"`
	Database                 int    `toml:"database"`
	PoolSize                 int    `toml:"pool_size"`
	MaxLifetimeSeconds       int    `toml:"max_lifetime_seconds"`
	IdleTimeoutSeconds       int    `toml:"idle_timeout_seconds"`
	ConnectionTimeoutSeconds int    `toml:"connection_timeout_seconds"`

	// DelinquencySeconds is how long a backend pool is skipped after a
	// failed operation before it's retried.
	DelinquencySeconds int `toml:"delinquency_seconds"`

	// CacheExpireSeconds/CacheRefreshSeconds drive the local cache
	// sweeper: Expire bounds how long an unaccessed entry survives,
	// Refresh is how stale RefreshedAt must be before it's re-fetched.
	CacheExpireSeconds  int `toml:"cache_expire_seconds"`
	CacheRefreshSeconds int `toml:"cache_refresh_seconds"`

	// Rescue lists additional backend pools tried, in order, after the
	// primary host/port above is delinquent.
	Rescue []RescueConfig `toml:"rescue"`
}

// RescueConfig describes one failover Redis backend in the rescue list.
type RescueConfig struct {
	Host                     string `toml:"host"`
	Port                     int    `toml:"port"`
	Password                 string `toml:"password"`
	Database                 int    `toml:"database"`
	PoolSize                 int    `toml:"pool_size"`
	MaxLifetimeSeconds       int    `toml:"max_lifetime_seconds"`
	IdleTimeoutSeconds       int    `toml:"idle_timeout_seconds"`
	ConnectionTimeoutSeconds int    `toml:"connection_timeout_seconds"`
}

// GeoConfig configures the MMDB reader and its background updater.
type GeoConfig struct {
	DatabasePath   string        `toml:"database_path"`
	UpdateURL      string        `toml:"update_url"`
	UpdateInterval time.Duration `toml:"update_interval"`
}

// HealthConfig configures the HTTP health prober.
type HealthConfig struct {
	Interval        time.Duration `toml:"interval"`
	Timeout         time.Duration `toml:"timeout"`
	MaxAttempts     int           `toml:"max_attempts"`
	UserAgent       string        `toml:"user_agent"`
	SlackWebhookURL string        `toml:"slack_webhook_url"`
}

// MetricsConfig configures the ambient Prometheus exporter.
type MetricsConfig struct {
	ListenAddr string `toml:"listen_addr"`
	Namespace  string `toml:"namespace"`
}

// Default returns a Config populated with sane production defaults for
// every section.
func Default() *Config {
	return &Config{
		Server: ServerConfig{LogLevel: "info"},
		DNS: DNSConfig{
			Inets:            []string{"0.0.0.0:53"},
			TCPTimeout:       5 * time.Second,
			DefaultTTL:       3600,
			Nameservers:      nil,
			FlattenResolvers: []string{"1.1.1.1:53", "8.8.8.8:53"},
			Zones:            map[string]ZoneConfig{},
		},
		HTTP: HTTPConfig{
			Inet:    "0.0.0.0:8080",
			Workers: 10,
		},
		Redis: RedisConfig{
			Host:                     "127.0.0.1",
			Port:                     6379,
			Database:                 0,
			PoolSize:                 10,
			MaxLifetimeSeconds:       3600,
			IdleTimeoutSeconds:       300,
			ConnectionTimeoutSeconds: 5,
			DelinquencySeconds:       30,
			CacheExpireSeconds:       300,
			CacheRefreshSeconds:      60,
		},
		Geo: GeoConfig{
			DatabasePath:   "/var/lib/authdns/geoip.mmdb",
			UpdateInterval: 24 * time.Hour,
		},
		Health: HealthConfig{
			Interval:    30 * time.Second,
			Timeout:     5 * time.Second,
			MaxAttempts: 3,
			UserAgent:   "authdns-healthcheck/1.0",
		},
		Metrics: MetricsConfig{
			ListenAddr: "0.0.0.0:9090",
			Namespace:  "authdns",
		},
	}
}

// Load reads and parses the TOML file at path, applying it over Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}
