package config

import (
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophguard/internal/flagx"
	"github.com/joho/godotenv"
)

const envPrefix = "GOPHGUARD_"

// parseEnv overlays Config with GOPHGUARD_* environment variables. When a
// dotenv file is given with -e/-env it is loaded first; variables already
// present in the process environment are not overridden by the file.
//
// Panics if the dotenv file cannot be read or a duration does not parse.
func parseEnv(cfg *Config) {
	if path := flagx.EnvFileFlags(); path != "" {
		if err := godotenv.Load(path); err != nil {
			panic(err)
		}
	}

	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(name string, dst *time.Duration) {
		v, ok := os.LookupEnv(envPrefix + name)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			panic(err)
		}
		*dst = d
	}

	str("GUARDIAN_URL", &cfg.GuardianURL)
	str("DATA_DIR", &cfg.DataDir)
	str("DEVICE_NAME", &cfg.DeviceName)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	dur("CHECK_INTERVAL", &cfg.CheckInterval)
	dur("CACHE_TTL", &cfg.CacheTTL)
	dur("PAIRING_TIMEOUT", &cfg.PairingTimeout)
	dur("PAIRING_POLL_INTERVAL", &cfg.PairingPollInterval)
	dur("REQUEST_TIMEOUT", &cfg.RequestTimeout)
	dur("IDLE_THRESHOLD", &cfg.IdleThreshold)
}
