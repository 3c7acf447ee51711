// Package config loads runtime configuration for the GophGuard engine host.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Environment variables prefixed GOPHGUARD_, optionally loaded from a
//     dotenv file selected with -e or -env (see parseEnv).
//  3. Optional JSON file selected with -c or -config (see parseJson).
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-u string   base URL of the guardian service
//	-d string   data directory for local state and sealed credentials
//	-n string   device name shown to the guardian during pairing
//	-i int      periodic check interval (seconds)
//	-l string   log level (debug, info, warn, error)
//
// # JSON schema
//
// Durations use timex.Duration, so "10s" and integer nanoseconds both work:
//
//	{
//	  "guardian_url": "https://guardian.example",
//	  "data_dir": "/var/lib/gophguard",
//	  "device_name": "Kitchen laptop",
//	  "check_interval": "10s",
//	  "cache_ttl": "60s",
//	  "pairing_timeout": "300s",
//	  "pairing_poll_interval": "3s",
//	  "request_timeout": "10s",
//	  "idle_threshold": "5m",
//	  "log_level": "info",
//	  "log_format": "text"
//	}
package config
