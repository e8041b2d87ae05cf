package config

import (
	"flag"
	"os"
	"time"

	"github.com/ecodata/fieldsync/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-e string   URL of the form endpoint (default from Config)
//	-d string   data directory (default from Config)
//	-i int      online check interval in seconds (default from Config)
//	-t int      tracking interval in seconds (default from Config)
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-e", "-d", "-i", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.EndpointURL, "e", cfg.EndpointURL, "URL of the form endpoint")
	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	trackingInterval := fs.Int("t", int(cfg.TrackingInterval.Seconds()), "location tracking interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	cfg.TrackingInterval = time.Duration(*trackingInterval) * time.Second
}
