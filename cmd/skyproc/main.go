package main

import (
	"context"
	"fmt"
	"os"

	"skyproc/internal/cli"
	"skyproc/internal/config"
	"skyproc/internal/logging"
	"skyproc/internal/pipeline"
	"skyproc/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.Setup(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up file logging: %v\n", err)
		log = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	store, err := storage.New(cfg.Paths.DatabasePath)
	if err != nil {
		// Job history is a convenience, not a requirement.
		log.Warn("job database unavailable", "path", cfg.Paths.DatabasePath, "error", err)
		store = nil
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipe := pipeline.New(ctx, cfg.Processing.ParallelJobs, log, store, cfg)
	defer pipe.Stop()

	rootCmd := cli.NewRootCmd(cfg, log, store, pipe)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
