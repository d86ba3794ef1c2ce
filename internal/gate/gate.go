// ABOUTME: Single-slot admission gate that models the generation agent as READY or BUSY.
// ABOUTME: Exactly one pipeline job may hold the gate at any instant; all others are turned away.

package gate

import (
	"log/slog"
	"sync"
	"time"
)

// Gate is a one-slot lock over the entire generation subsystem. Producers call
// TryAcquire before admitting work; the dispatcher that launched the pipeline
// is responsible for the matching Release.
//
// The gate holds no I/O and cannot fail — it can only contend.
type Gate struct {
	mu              sync.Mutex
	busy            bool
	currentHeadline string
	busySince       time.Time
	logger          *slog.Logger
}

// Snapshot is a read-only view of the gate state, safe to serialize.
type Snapshot struct {
	Ready           bool    `json:"ready"`
	Busy            bool    `json:"busy"`
	CurrentHeadline string  `json:"current_headline,omitempty"`
	BusySince       string  `json:"busy_since,omitempty"`
	ElapsedSeconds  float64 `json:"elapsed_seconds,omitempty"`
}

// New creates a gate in the READY state. Pass nil logger for default.
func New(logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{logger: logger.With("component", "gate")}
}

// TryAcquire atomically flips the gate to BUSY and records the headline being
// processed. Returns false without side effects if the gate is already held.
func (g *Gate) TryAcquire(headline string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.busy {
		return false
	}
	g.busy = true
	g.currentHeadline = headline
	g.busySince = time.Now().UTC()
	g.logger.Info("gate acquired", "headline", truncate(headline, 80))
	return true
}

// Release returns the gate to READY, clearing the held headline. Releasing an
// already-ready gate indicates a dispatch bug elsewhere; it is logged as a
// warning and otherwise ignored.
func (g *Gate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.busy {
		g.logger.Warn("release called while gate already ready; ignoring")
		return
	}
	g.logger.Info("gate released",
		"was_processing", truncate(g.currentHeadline, 80),
		"elapsed", time.Since(g.busySince).Round(time.Millisecond))
	g.busy = false
	g.currentHeadline = ""
	g.busySince = time.Time{}
}

// Busy reports whether a job currently holds the gate.
func (g *Gate) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy
}

// CurrentHeadline returns the headline of the job holding the gate, or "".
func (g *Gate) CurrentHeadline() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.currentHeadline
}

// Status returns a point-in-time snapshot of the gate.
func (g *Gate) Status() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	snap := Snapshot{
		Ready: !g.busy,
		Busy:  g.busy,
	}
	if g.busy {
		snap.CurrentHeadline = g.currentHeadline
		snap.BusySince = g.busySince.Format(time.RFC3339)
		snap.ElapsedSeconds = time.Since(g.busySince).Seconds()
	}
	return snap
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
