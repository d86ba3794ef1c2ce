// ABOUTME: Harvest cycle driver: poll sources, filter stale and seen items, submit with backpressure.
// ABOUTME: Busy responses retry on a constant interval; everything else fails the item immediately.

package harvester

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"

	"github.com/cin-network/cin-gateway/internal/dedupe"
)

// Config tunes the harvest loop.
type Config struct {
	// CycleInterval is the pause between harvest cycles.
	CycleInterval time.Duration

	// MaxItemAge drops items published longer ago than this. Items with
	// no parseable publication date pass the check.
	MaxItemAge time.Duration

	// BusyWait is the constant pause between retries of a busy gateway.
	BusyWait time.Duration

	// BusyMaxTries is the total number of submission attempts per item,
	// including the first.
	BusyMaxTries uint

	// SubmitInterval spaces consecutive submissions so an accepted item
	// has a moment to clear the gate before the next one arrives.
	SubmitInterval time.Duration
}

// DefaultConfig returns the standard harvest tuning.
func DefaultConfig() Config {
	return Config{
		CycleInterval:  10 * time.Minute,
		MaxItemAge:     24 * time.Hour,
		BusyWait:       30 * time.Second,
		BusyMaxTries:   10,
		SubmitInterval: time.Second,
	}
}

// Harvester polls content sources and feeds fresh items to the gateway.
type Harvester struct {
	cfg       Config
	sources   []ContentSource
	submitter Submitter
	cache     *dedupe.Cache
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// New creates a Harvester over the given sources.
func New(cfg Config, sources []ContentSource, submitter Submitter, logger *slog.Logger) *Harvester {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CycleInterval <= 0 {
		cfg.CycleInterval = 10 * time.Minute
	}
	if cfg.BusyMaxTries == 0 {
		cfg.BusyMaxTries = 1
	}
	limit := rate.Inf
	if cfg.SubmitInterval > 0 {
		limit = rate.Every(cfg.SubmitInterval)
	}
	return &Harvester{
		cfg:       cfg,
		sources:   sources,
		submitter: submitter,
		cache:     dedupe.New(24*time.Hour, 4096),
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger.With("component", "harvester"),
	}
}

// Run executes harvest cycles until ctx is cancelled. The first cycle
// starts immediately.
func (h *Harvester) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.cfg.CycleInterval)
	defer ticker.Stop()

	for {
		if err := h.RunCycle(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			h.logger.Error("harvest cycle failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// CycleStats summarizes one harvest cycle.
type CycleStats struct {
	Polled     int
	Submitted  int
	Accepted   int
	Duplicates int
	Skipped    int
	Dropped    int
	Failed     int
}

// RunCycle polls every source once and submits the eligible items. It
// returns an error only for conditions that make further submissions
// pointless, such as a rejected webhook token.
func (h *Harvester) RunCycle(ctx context.Context) error {
	start := time.Now()
	var stats CycleStats

	for _, src := range h.sources {
		items, err := src.Poll(ctx)
		if err != nil {
			h.logger.Warn("source poll failed", "source", src.Name(), "error", err)
			continue
		}
		stats.Polled += len(items)

		for _, item := range items {
			if h.isStale(item) {
				stats.Skipped++
				continue
			}
			fp := dedupe.Fingerprint(item.Headline)
			if h.cache.Seen(fp) {
				stats.Skipped++
				continue
			}

			if err := h.limiter.Wait(ctx); err != nil {
				return err
			}
			stats.Submitted++
			if err := h.submitItem(ctx, item, fp, &stats); err != nil {
				return err
			}
		}
	}

	h.logger.Info("harvest cycle complete",
		"polled", stats.Polled,
		"submitted", stats.Submitted,
		"accepted", stats.Accepted,
		"duplicates", stats.Duplicates,
		"skipped", stats.Skipped,
		"dropped", stats.Dropped,
		"failed", stats.Failed,
		"duration", time.Since(start).Round(time.Millisecond))
	return nil
}

func (h *Harvester) isStale(item Item) bool {
	if h.cfg.MaxItemAge <= 0 || item.PublishedAt.IsZero() {
		return false
	}
	return time.Since(item.PublishedAt) > h.cfg.MaxItemAge
}

// submitItem delivers one item, retrying only while the gateway reports
// busy. The fingerprint is marked only for outcomes that settle the item
// for good: accepted, duplicate, or a validation rejection that can never
// succeed. Transient failures leave it unmarked so the next cycle retries.
func (h *Harvester) submitItem(ctx context.Context, item Item, fp string, stats *CycleStats) error {
	attempt := func() (*SubmitResult, error) {
		result, err := h.submitter.Submit(ctx, item)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, ErrBusy) {
			current := ""
			if result != nil {
				current = result.CurrentHeadline
			}
			h.logger.Debug("gateway busy, will retry",
				"headline", item.Headline,
				"current", current)
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	result, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(backoff.NewConstantBackOff(h.cfg.BusyWait)),
		backoff.WithMaxTries(h.cfg.BusyMaxTries))

	switch {
	case err == nil:
		h.cache.Mark(fp)
		if result.Status == "duplicate" {
			stats.Duplicates++
			h.logger.Debug("item already known", "headline", item.Headline)
		} else {
			stats.Accepted++
			h.logger.Info("item accepted", "headline", item.Headline, "post_id", result.PostID)
		}
		return nil

	case errors.Is(err, ErrBusy):
		stats.Dropped++
		h.logger.Warn("gateway stayed busy, dropping item",
			"headline", item.Headline,
			"tries", h.cfg.BusyMaxTries)
		return nil

	case errors.Is(err, ErrUnauthorized):
		// A bad token fails every item the same way. Abort the cycle.
		return err

	case errors.Is(err, ErrRejected):
		// The payload itself is invalid; resubmitting identical data
		// next cycle cannot help.
		h.cache.Mark(fp)
		stats.Failed++
		h.logger.Error("item rejected by gateway", "headline", item.Headline, "error", err)
		return nil

	default:
		stats.Failed++
		h.logger.Warn("submission failed", "headline", item.Headline, "error", err)
		return nil
	}
}
