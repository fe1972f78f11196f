package config

import (
	"flag"
	"os"
	"time"

	"github.com/serenoapp/syncstore/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// The function filters os.Args to only the flags it knows about, using
// flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-i", "-r", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory for tenant databases")
	syncInterval := fs.Int("i", int(cfg.SyncInterval.Seconds()), "sync interval while busy (in seconds)")
	fs.IntVar(&cfg.MaxTries, "r", cfg.MaxTries, "retry ceiling before dead-lettering an op")
	deadLetterDays := fs.Int("t", int(cfg.DeadLetterTTL.Hours()/24), "dead-letter retention (in days)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.SyncInterval = time.Duration(*syncInterval) * time.Second
	cfg.DeadLetterTTL = time.Duration(*deadLetterDays) * 24 * time.Hour
}
