package config

import (
	"flag"
	"os"

	"github.com/teamvault/sharecore/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-s string   base URL of the backend API (default from Config)
//	-d string   sqlite DSN of the local cache (default from Config)
//	-v          enable debug logging
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-s", "-d", "-v"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerBaseURL, "s", cfg.ServerBaseURL, "base URL of the backend API")
	fs.StringVar(&cfg.CacheDSN, "d", cfg.CacheDSN, "sqlite DSN of the local key cache")
	fs.BoolVar(&cfg.Debug, "v", cfg.Debug, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
