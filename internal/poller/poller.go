// Package poller periodically fetches the GateKeeper decision log and feeds
// each result into the dashboard state.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/narvanalabs/gatekeeper-dashboard/internal/models"
	"github.com/narvanalabs/gatekeeper-dashboard/internal/state"
	"github.com/narvanalabs/gatekeeper-dashboard/web/api"
)

// DefaultInterval is the polling period used when none is configured.
const DefaultInterval = 2 * time.Second

// Fetcher retrieves the current decision log.
type Fetcher interface {
	FetchLogs(ctx context.Context) ([]models.LogEntry, error)
}

// Poller issues one fetch per tick. Fetches are not de-duplicated or
// cancelled when a newer one starts, and each result is applied to the
// store as soon as it completes.
type Poller struct {
	fetcher  Fetcher
	store    *state.Store
	interval time.Duration
	logger   *slog.Logger

	seq      atomic.Uint64
	inflight sync.WaitGroup

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
}

// New creates a Poller.
func New(fetcher Fetcher, store *state.Store, interval time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		fetcher:  fetcher,
		store:    store,
		interval: interval,
		logger:   logger.With("component", "poller"),
		stopChan: make(chan struct{}),
	}
}

// Start fetches once immediately and then once per interval until ctx is
// done or Stop is called. It blocks for the lifetime of the loop.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.stopChan = make(chan struct{})
	stop := p.stopChan
	p.inflight.Add(1)
	p.mu.Unlock()

	defer p.inflight.Done()
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	p.logger.Info("starting poller", "interval", p.interval)

	// In-flight fetches outlive the loop; only the ticker is torn down.
	reqCtx := context.WithoutCancel(ctx)

	p.spawn(reqCtx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped by context")
			return ctx.Err()
		case <-stop:
			p.logger.Info("poller stopped")
			return nil
		case <-ticker.C:
			p.spawn(reqCtx)
		}
	}
}

// Stop ends the ticker loop. Fetches already in flight still complete and
// apply their result.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		close(p.stopChan)
		p.running = false
	}
}

// Running reports whether the ticker loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Wait blocks until the loop has exited and all in-flight fetches have been
// applied, or ctx is done.
func (p *Poller) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Interval returns the polling period.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// PollOnce performs a single fetch, applies it and returns the resulting
// snapshot.
func (p *Poller) PollOnce(ctx context.Context) state.Snapshot {
	p.inflight.Add(1)
	defer p.inflight.Done()
	return p.poll(ctx)
}

func (p *Poller) spawn(ctx context.Context) {
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		p.poll(ctx)
	}()
}

func (p *Poller) poll(ctx context.Context) state.Snapshot {
	seq := p.seq.Add(1)
	pollID := uuid.NewString()
	prev := p.store.Snapshot().Status
	start := time.Now()

	entries, err := p.fetcher.FetchLogs(ctx)

	res := state.Result{
		Seq:        seq,
		Entries:    entries,
		Err:        err,
		StartedAt:  start,
		FinishedAt: time.Now(),
	}
	logger := p.logger.With("poll_id", pollID, "seq", seq, "duration", res.FinishedAt.Sub(start).String())

	switch {
	case err == nil:
		res.Outcome = state.OutcomeOK
		if prev != state.StatusConnected {
			logger.Info("upstream connected", "entries", len(entries))
		} else {
			logger.Debug("poll completed", "entries", len(entries))
		}
	case api.IsPayloadError(err):
		res.Outcome = state.OutcomeInvalidPayload
		logger.Warn("discarding upstream payload", "error", err)
	default:
		res.Outcome = state.OutcomeFailed
		if prev != state.StatusFailed {
			logger.Warn("poll failed", "error", err)
		} else {
			logger.Debug("poll failed", "error", err)
		}
	}

	return p.store.Apply(res)
}
