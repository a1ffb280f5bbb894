// Package config loads the mirror's runtime configuration. It adapts the
// teacher's pkg/config loader (spf13/viper + joho/godotenv) to this spec's
// settings instead of Synnergy's network/consensus/VM sections: store
// directory, upstream URL, authority identity, telemetry peer URLs, and the
// timeouts enumerated in spec.md §5.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the unified configuration for a mirror daemon instance.
type Config struct {
	Store struct {
		Dir       string `mapstructure:"dir" json:"dir"`
		CacheSize int    `mapstructure:"cache_size" json:"cache_size"`
	} `mapstructure:"store" json:"store"`

	Upstream struct {
		URL string `mapstructure:"url" json:"url"`
	} `mapstructure:"upstream" json:"upstream"`

	Telemetry struct {
		PeerURLs            []string      `mapstructure:"peer_urls" json:"peer_urls"`
		StatusInterval      time.Duration `mapstructure:"status_interval" json:"status_interval"`
		StatusLiveness      time.Duration `mapstructure:"status_liveness" json:"status_liveness"`
		PeersInterval       time.Duration `mapstructure:"peers_interval" json:"peers_interval"`
		UnsupportedRecheck  time.Duration `mapstructure:"unsupported_recheck" json:"unsupported_recheck"`
		ConfigBackoffMin    time.Duration `mapstructure:"config_backoff_min" json:"config_backoff_min"`
		ConfigBackoffMax    time.Duration `mapstructure:"config_backoff_max" json:"config_backoff_max"`
		GeoBackoff          time.Duration `mapstructure:"geo_backoff" json:"geo_backoff"`
		CommitTimeWindow    int           `mapstructure:"commit_time_window" json:"commit_time_window"`
		BroadcastBufferSize int           `mapstructure:"broadcast_buffer_size" json:"broadcast_buffer_size"`
	} `mapstructure:"telemetry" json:"telemetry"`

	Sync struct {
		Backoff time.Duration `mapstructure:"backoff" json:"backoff"`
	} `mapstructure:"sync" json:"sync"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
	} `mapstructure:"logging" json:"logging"`
}

// Default returns a configuration populated with the timeouts spec.md §5
// fixes: 5s sync back-off, 60s status liveness, 5s status poll, 60s peers
// poll, 300s telemetry-unsupported recheck, 15s-120s config backoff (x1.67
// multiplier is applied by the backoff policy itself, see internal/telemetry),
// 60s geo backoff, N=16 commit-time window, 512-entry broadcast buffer.
func Default() Config {
	var c Config
	c.Store.CacheSize = 128
	c.Telemetry.StatusInterval = 5 * time.Second
	c.Telemetry.StatusLiveness = 60 * time.Second
	c.Telemetry.PeersInterval = 60 * time.Second
	c.Telemetry.UnsupportedRecheck = 300 * time.Second
	c.Telemetry.ConfigBackoffMin = 15 * time.Second
	c.Telemetry.ConfigBackoffMax = 120 * time.Second
	c.Telemetry.GeoBackoff = 60 * time.Second
	c.Telemetry.CommitTimeWindow = 16
	c.Telemetry.BroadcastBufferSize = 512
	c.Sync.Backoff = 5 * time.Second
	c.Logging.Level = "info"
	return c
}

// Load reads an optional .env file (teacher precedent: pkg/config.Load's
// viper.AutomaticEnv paired with godotenv) then a YAML config file at path,
// merging over the defaults. An empty path loads defaults plus environment
// overrides only.
func Load(path string) (Config, error) {
	cfg := Default()

	_ = godotenv.Load() // optional; absence is not an error

	v := viper.New()
	v.SetEnvPrefix("MIRROR")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
