// ABOUTME: Entry point for the cin-gateway content server
// ABOUTME: Runs the ingestion webhook, pipeline, read API, and optional in-process harvester

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/cin-network/cin-gateway/internal/broadcast"
	"github.com/cin-network/cin-gateway/internal/config"
	"github.com/cin-network/cin-gateway/internal/gate"
	"github.com/cin-network/cin-gateway/internal/gateway"
	"github.com/cin-network/cin-gateway/internal/harvester"
	"github.com/cin-network/cin-gateway/internal/pipeline"
	"github.com/cin-network/cin-gateway/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
       _                          _
   ___(_)_ __         __ _  __ _| |_ _____      ____ _ _   _
  / __| | '_ \ _____ / _' |/ _' | __/ _ \ \ /\ / / _' | | | |
 | (__| | | | |_____| (_| | (_| | ||  __/\ V  V / (_| | |_| |
  \___|_|_| |_|      \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
                     |___/                             |___/
`

// getConfigPath returns the path to the gateway config file.
// Priority: CIN_CONFIG env var > XDG_CONFIG_HOME/cin/gateway.yaml > ~/.config/cin/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("CIN_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "cin", "gateway.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: cin-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the gateway server")
		fmt.Println("  health   Check gateway health")
		fmt.Println("  status   Show the processing gate status")
		fmt.Println("  version  Print the version")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "health":
		err = runHealth(ctx)
	case "status":
		err = runStatus(ctx)
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

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	// Startup info
	green := color.New(color.FgGreen)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Model:     %s\n", cfg.Generator.Model)
	if cfg.Harvester.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Harvester: %d feeds every %s\n", len(cfg.Harvester.Feeds), cfg.Harvester.CycleInterval)
	}
	fmt.Println()

	logger.Info("starting cin-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"database", cfg.Database.Path,
	)

	// Open the post store
	postStore, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening post store: %w", err)
	}
	defer postStore.Close()

	// Reclassify posts left in processing by a previous crash. At boot
	// no pipeline can be running, so every processing row is stale.
	reset, err := postStore.CleanupStaleProcessing(ctx, 0)
	if err != nil {
		return fmt.Errorf("startup cleanup: %w", err)
	}
	if reset > 0 {
		logger.Warn("reclassified posts stuck in processing", "count", reset)
	}

	processingGate := gate.New(logger)
	broadcaster := broadcast.New(logger)

	genCfg := pipeline.GeneratorConfig{
		BaseURL: cfg.Generator.BaseURL,
		APIKey:  cfg.Generator.APIKey,
		Model:   cfg.Generator.Model,
		Timeout: cfg.Generator.Timeout,
	}
	generator := pipeline.NewOpenAIGenerator(genCfg, logger)

	var verifier pipeline.Verifier
	if cfg.Verifier.Enabled {
		verifierCfg := genCfg
		if cfg.Verifier.Model != "" {
			verifierCfg.Model = cfg.Verifier.Model
		}
		verifier = pipeline.NewLLMVerifier(verifierCfg, logger)
		logger.Info("verification enabled", "model", verifierCfg.Model)
	}

	orchestrator := pipeline.NewOrchestrator(
		postStore,
		generator,
		pipeline.NewKeywordFilter(),
		verifier,
		broadcaster,
		logger,
	)

	server := gateway.New(gateway.Options{
		Addr:          cfg.Server.HTTPAddr,
		WebhookSecret: cfg.Webhook.Secret,
		Store:         postStore,
		Gate:          processingGate,
		Orchestrator:  orchestrator,
		Broadcaster:   broadcaster,
		Logger:        logger,
	})

	var wg sync.WaitGroup

	// Periodic sweep for posts that got stuck mid-pipeline.
	wg.Add(1)
	go func() {
		defer wg.Done()
		runCleanupSweep(ctx, postStore, cfg.Cleanup, logger)
	}()

	if cfg.Harvester.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runHarvester(ctx, cfg, logger)
		}()
	}

	err = server.Run(ctx)
	wg.Wait()
	return err
}

// runCleanupSweep periodically reclassifies posts stuck in processing
// for longer than the configured age.
func runCleanupSweep(ctx context.Context, s store.Store, cfg config.CleanupConfig, logger *slog.Logger) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := s.CleanupStaleProcessing(ctx, cfg.MaxAge)
			if err != nil {
				logger.Error("cleanup sweep failed", "error", err)
				continue
			}
			if count > 0 {
				logger.Warn("cleanup sweep reclassified stuck posts", "count", count)
			}
		}
	}
}

// runHarvester runs the in-process harvester against this gateway's own
// webhook endpoint.
func runHarvester(ctx context.Context, cfg *config.Config, logger *slog.Logger) {
	endpoint := cfg.Harvester.Endpoint
	if endpoint == "" {
		endpoint = localURL(cfg.Server.HTTPAddr, "/webhook/update")
	}

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
		harvester.NewClient(endpoint, cfg.Harvester.Token, 0),
		logger,
	)

	if err := h.Run(ctx); err != nil {
		logger.Error("harvester stopped", "error", err)
	}
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := localURL(cfg.Server.HTTPAddr, "/health")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func runStatus(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := localURL(cfg.Server.HTTPAddr, "/webhook/status")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("status check failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	fmt.Println(string(body))
	return nil
}

func localURL(addr, path string) string {
	host := addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	return "http://" + host + path
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
