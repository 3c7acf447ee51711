package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/gophguard/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-u string   guardian service base URL
//	-d string   data directory
//	-n string   device name
//	-i int      check interval in seconds
//	-l string   log level
//
// Only these flags are looked at (see flagx.FilterArgs). Panics on a parse
// error, e.g. a non-numeric interval.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-u", "-d", "-n", "-i", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.GuardianURL, "u", cfg.GuardianURL, "guardian service base URL")
	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	fs.StringVar(&cfg.DeviceName, "n", cfg.DeviceName, "device name used for pairing")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	checkInterval := fs.Int("i", int(cfg.CheckInterval.Seconds()), "check interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.CheckInterval = time.Duration(*checkInterval) * time.Second
}
