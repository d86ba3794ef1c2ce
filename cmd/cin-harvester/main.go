// ABOUTME: Standalone harvester that feeds a remote cin-gateway.
// ABOUTME: Polls the configured RSS feeds and submits fresh items over the webhook.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cin-network/cin-gateway/internal/config"
	"github.com/cin-network/cin-gateway/internal/harvester"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: cin-harvester <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  run      Harvest continuously")
		fmt.Println("  once     Run a single harvest cycle and exit")
		fmt.Println("  version  Print the version")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "run":
		err = runHarvest(ctx, false)
	case "once":
		err = runHarvest(ctx, true)
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runHarvest(ctx context.Context, once bool) error {
	configPath := os.Getenv("CIN_CONFIG")
	if configPath == "" {
		configPath = "harvester.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if len(cfg.Harvester.Feeds) == 0 {
		return fmt.Errorf("no feeds configured")
	}
	if cfg.Harvester.Endpoint == "" {
		return fmt.Errorf("harvester.endpoint is required")
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	feeds := make([]harvester.FeedConfig, 0, len(cfg.Harvester.Feeds))
	for _, f := range cfg.Harvester.Feeds {
		feeds = append(feeds, harvester.FeedConfig{URL: f.URL, Domain: f.Domain})
	}

	h := harvester.New(
		harvester.Config{
			CycleInterval:  cfg.Harvester.CycleInterval,
			MaxItemAge:     cfg.Harvester.MaxItemAge,
			BusyWait:       cfg.Harvester.BusyWait,
			BusyMaxTries:   cfg.Harvester.BusyMaxTries,
			SubmitInterval: cfg.Harvester.SubmitInterval,
		},
		[]harvester.ContentSource{harvester.NewRSSSource(feeds, logger)},
		harvester.NewClient(cfg.Harvester.Endpoint, cfg.Harvester.Token, 0),
		logger,
	)

	logger.Info("starting cin-harvester",
		"version", version,
		"endpoint", cfg.Harvester.Endpoint,
		"feeds", len(feeds),
		"cycle_interval", cfg.Harvester.CycleInterval,
	)

	if once {
		return h.RunCycle(ctx)
	}
	return h.Run(ctx)
}
