package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/gophguard/internal/flagx"
	"github.com/dmitrijs2005/gophguard/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Only fields
// present in the file are applied.
type JsonConfig struct {
	GuardianURL         *string         `json:"guardian_url"`
	DataDir             *string         `json:"data_dir"`
	DeviceName          *string         `json:"device_name"`
	CheckInterval       *timex.Duration `json:"check_interval"`
	CacheTTL            *timex.Duration `json:"cache_ttl"`
	PairingTimeout      *timex.Duration `json:"pairing_timeout"`
	PairingPollInterval *timex.Duration `json:"pairing_poll_interval"`
	RequestTimeout      *timex.Duration `json:"request_timeout"`
	IdleThreshold       *timex.Duration `json:"idle_threshold"`
	LogLevel            *string         `json:"log_level"`
	LogFormat           *string         `json:"log_format"`
}

// parseJson overlays Config with values from the file named by -c/-config.
// Without the flag it does nothing. Panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	path := flagx.JsonConfigFlags()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}
	jc.apply(cfg)
}

func (jc *JsonConfig) apply(cfg *Config) {
	setStr := func(src *string, dst *string) {
		if src != nil {
			*dst = *src
		}
	}
	setDur := func(src *timex.Duration, dst *time.Duration) {
		if src != nil {
			*dst = src.Duration
		}
	}

	setStr(jc.GuardianURL, &cfg.GuardianURL)
	setStr(jc.DataDir, &cfg.DataDir)
	setStr(jc.DeviceName, &cfg.DeviceName)
	setStr(jc.LogLevel, &cfg.LogLevel)
	setStr(jc.LogFormat, &cfg.LogFormat)
	setDur(jc.CheckInterval, &cfg.CheckInterval)
	setDur(jc.CacheTTL, &cfg.CacheTTL)
	setDur(jc.PairingTimeout, &cfg.PairingTimeout)
	setDur(jc.PairingPollInterval, &cfg.PairingPollInterval)
	setDur(jc.RequestTimeout, &cfg.RequestTimeout)
	setDur(jc.IdleThreshold, &cfg.IdleThreshold)
}
