package config

import (
	"time"

	"github.com/dmitrijs2005/gophguard/internal/common"
)

// Config holds runtime settings for the engine and its host.
type Config struct {
	GuardianURL string
	DataDir     string
	DeviceName  string

	CheckInterval       time.Duration
	CacheTTL            time.Duration
	PairingTimeout      time.Duration
	PairingPollInterval time.Duration
	RequestTimeout      time.Duration
	IdleThreshold       time.Duration

	LogLevel  string
	LogFormat string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.GuardianURL = "http://127.0.0.1:8080"
	c.DataDir = ".gophguard"
	c.DeviceName = "browser"
	c.CheckInterval = common.DefaultCheckInterval
	c.CacheTTL = common.DefaultCacheTTL
	c.PairingTimeout = common.DefaultPairingTimeout
	c.PairingPollInterval = common.DefaultPairingInterval
	c.RequestTimeout = common.DefaultRequestTimeout
	c.IdleThreshold = common.DefaultIdleThreshold
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// LoadConfig constructs a Config from defaults, environment, JSON and flags.
// Later sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
