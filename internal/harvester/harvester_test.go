// ABOUTME: Tests for the harvest cycle: staleness, fingerprint dedup, and busy-retry backpressure.
// ABOUTME: Uses a scripted fake submitter; no network involved.

package harvester

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource returns a fixed batch of items.
type fakeSource struct {
	items []Item
}

func (f *fakeSource) Name() string                              { return "fake" }
func (f *fakeSource) Poll(ctx context.Context) ([]Item, error) { return f.items, nil }

// scriptedSubmitter replays a sequence of responses, repeating the last
// one once the script is exhausted.
type scriptedSubmitter struct {
	script []submitStep
	calls  int
}

type submitStep struct {
	result *SubmitResult
	err    error
}

func (s *scriptedSubmitter) Submit(ctx context.Context, item Item) (*SubmitResult, error) {
	step := s.script[len(s.script)-1]
	if s.calls < len(s.script) {
		step = s.script[s.calls]
	}
	s.calls++
	return step.result, step.err
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BusyWait = time.Millisecond
	cfg.SubmitInterval = 0
	return cfg
}

func freshItem(headline string) Item {
	return Item{
		Domain:      "Technology",
		Headline:    headline,
		Content:     "Body for " + headline,
		Link:        "https://example.com/story",
		PublishedAt: time.Now().UTC().Add(-time.Hour),
	}
}

func accepted() submitStep {
	return submitStep{result: &SubmitResult{Status: "accepted", PostID: "p1"}}
}

func busy() submitStep {
	return submitStep{
		result: &SubmitResult{Status: "busy", CurrentHeadline: "Other Story"},
		err:    fmt.Errorf("%w: processing", ErrBusy),
	}
}

func TestCycleSubmitsFreshItems(t *testing.T) {
	sub := &scriptedSubmitter{script: []submitStep{accepted()}}
	h := New(testConfig(), []ContentSource{&fakeSource{items: []Item{freshItem("Story A")}}}, sub, slog.Default())

	require.NoError(t, h.RunCycle(context.Background()))
	assert.Equal(t, 1, sub.calls)

	// The fingerprint is marked: the next cycle submits nothing.
	require.NoError(t, h.RunCycle(context.Background()))
	assert.Equal(t, 1, sub.calls)
}

func TestCycleSkipsStaleItems(t *testing.T) {
	stale := freshItem("Old Story")
	stale.PublishedAt = time.Now().UTC().Add(-48 * time.Hour)

	sub := &scriptedSubmitter{script: []submitStep{accepted()}}
	h := New(testConfig(), []ContentSource{&fakeSource{items: []Item{stale}}}, sub, slog.Default())

	require.NoError(t, h.RunCycle(context.Background()))
	assert.Zero(t, sub.calls)
}

func TestCycleAcceptsUndatedItems(t *testing.T) {
	undated := freshItem("No Date")
	undated.PublishedAt = time.Time{}

	sub := &scriptedSubmitter{script: []submitStep{accepted()}}
	h := New(testConfig(), []ContentSource{&fakeSource{items: []Item{undated}}}, sub, slog.Default())

	require.NoError(t, h.RunCycle(context.Background()))
	assert.Equal(t, 1, sub.calls)
}

func TestDuplicateResponseMarksFingerprint(t *testing.T) {
	sub := &scriptedSubmitter{script: []submitStep{
		{result: &SubmitResult{Status: "duplicate", Message: "Update already processed"}},
	}}
	h := New(testConfig(), []ContentSource{&fakeSource{items: []Item{freshItem("Known Story")}}}, sub, slog.Default())

	require.NoError(t, h.RunCycle(context.Background()))
	require.NoError(t, h.RunCycle(context.Background()))
	assert.Equal(t, 1, sub.calls, "a known headline is not resubmitted")
}

func TestBusyRetriesUntilAccepted(t *testing.T) {
	sub := &scriptedSubmitter{script: []submitStep{busy(), busy(), accepted()}}
	h := New(testConfig(), []ContentSource{&fakeSource{items: []Item{freshItem("Contended Story")}}}, sub, slog.Default())

	require.NoError(t, h.RunCycle(context.Background()))
	assert.Equal(t, 3, sub.calls)
}

func TestBusyExhaustsRetryBudgetAndDrops(t *testing.T) {
	sub := &scriptedSubmitter{script: []submitStep{busy()}}
	cfg := testConfig()
	cfg.BusyMaxTries = 10
	h := New(cfg, []ContentSource{&fakeSource{items: []Item{freshItem("Starved Story")}}}, sub, slog.Default())

	require.NoError(t, h.RunCycle(context.Background()))
	assert.Equal(t, 10, sub.calls, "attempts stop at the retry budget")

	// The dropped item was never marked: the next cycle tries again.
	require.NoError(t, h.RunCycle(context.Background()))
	assert.Equal(t, 20, sub.calls)
}

func TestUnauthorizedAbortsCycle(t *testing.T) {
	sub := &scriptedSubmitter{script: []submitStep{
		{result: &SubmitResult{Status: "error"}, err: fmt.Errorf("%w: invalid token", ErrUnauthorized)},
	}}
	items := []Item{freshItem("Story A"), freshItem("Story B")}
	h := New(testConfig(), []ContentSource{&fakeSource{items: items}}, sub, slog.Default())

	err := h.RunCycle(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 1, sub.calls, "remaining items are not attempted with a bad token")
}

func TestValidationRejectionIsNotRetried(t *testing.T) {
	sub := &scriptedSubmitter{script: []submitStep{
		{result: &SubmitResult{Status: "error"}, err: fmt.Errorf("%w: bad domain", ErrRejected)},
	}}
	h := New(testConfig(), []ContentSource{&fakeSource{items: []Item{freshItem("Malformed Story")}}}, sub, slog.Default())

	require.NoError(t, h.RunCycle(context.Background()))
	assert.Equal(t, 1, sub.calls)

	// Resubmitting identical data cannot succeed, so the item is settled.
	require.NoError(t, h.RunCycle(context.Background()))
	assert.Equal(t, 1, sub.calls)
}

func TestNetworkFailureLeavesItemRetryable(t *testing.T) {
	sub := &scriptedSubmitter{script: []submitStep{
		{err: errors.New("connection refused")},
	}}
	h := New(testConfig(), []ContentSource{&fakeSource{items: []Item{freshItem("Unreachable Story")}}}, sub, slog.Default())

	require.NoError(t, h.RunCycle(context.Background()))
	assert.Equal(t, 1, sub.calls)

	// Unmarked: the next cycle tries the same item again.
	require.NoError(t, h.RunCycle(context.Background()))
	assert.Equal(t, 2, sub.calls)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	sub := &scriptedSubmitter{script: []submitStep{accepted()}}
	cfg := testConfig()
	cfg.CycleInterval = time.Hour
	h := New(cfg, []ContentSource{&fakeSource{}}, sub, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
