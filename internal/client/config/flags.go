package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/mbank/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   backend base URL
//	-i int      inactivity timeout in seconds
//	-d string   data directory
//	-l string   log level
//
// Only the flags above are passed to the flag set (flagx.FilterArgs), so the
// -c/-config flag read by the JSON loader does not interfere.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-i", "-d", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerBaseURL, "a", cfg.ServerBaseURL, "backend base URL")
	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "directory for the local database and device key")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level (debug, info, warn, error)")
	inactivity := fs.Int("i", int(cfg.InactivityTimeout.Seconds()), "inactivity timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.InactivityTimeout = time.Duration(*inactivity) * time.Second
}
