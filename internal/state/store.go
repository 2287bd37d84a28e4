// Package state holds the dashboard's current view of the GateKeeper
// decision log.
package state

import (
	"sync"
	"time"

	"github.com/narvanalabs/gatekeeper-dashboard/internal/aggregate"
	"github.com/narvanalabs/gatekeeper-dashboard/internal/models"
)

// Status is the connection state shown by the dashboard indicator.
type Status string

const (
	// StatusLoading indicates no poll has completed yet.
	StatusLoading Status = "loading"
	// StatusConnected indicates the last poll returned a valid array.
	StatusConnected Status = "connected"
	// StatusFailed indicates the last poll could not reach the upstream or
	// got an unusable response. Previously held entries are kept.
	StatusFailed Status = "failed"
	// StatusInvalidPayload indicates the last poll returned JSON that was
	// not an array. Held entries were discarded.
	StatusInvalidPayload Status = "invalid_payload"
)

// Outcome classifies a completed poll.
type Outcome int

const (
	// OutcomeOK means the poll returned an array of entries.
	OutcomeOK Outcome = iota
	// OutcomeInvalidPayload means the body was valid JSON but not an array.
	OutcomeInvalidPayload
	// OutcomeFailed means a transport error, non-2xx status or unparseable body.
	OutcomeFailed
)

// Result is one completed poll handed to the Store.
type Result struct {
	// Seq is the order in which the poll was issued. Results are applied in
	// completion order, so Seq may go backwards between applies.
	Seq        uint64
	Outcome    Outcome
	Entries    []models.LogEntry
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Snapshot is an immutable copy of the store's state. Entries must be
// treated as read-only.
type Snapshot struct {
	Version      uint64            `json:"version"`
	Status       Status            `json:"status"`
	Settled      bool              `json:"settled"`
	Entries      []models.LogEntry `json:"entries"`
	Summary      aggregate.Summary `json:"summary"`
	LastError    string            `json:"last_error,omitempty"`
	LastSeq      uint64            `json:"last_seq"`
	LastAttempt  *time.Time        `json:"last_attempt,omitempty"`
	LastSuccess  *time.Time        `json:"last_success,omitempty"`
	Polls        uint64            `json:"polls"`
	Failures     uint64            `json:"failures"`
	InvalidBatch uint64            `json:"invalid_payloads"`
}

// View is the coarse rendering state of the dashboard.
type View string

const (
	ViewLoading View = "loading"
	ViewEmpty   View = "empty"
	ViewData    View = "data"
)

// View reports whether the dashboard is still waiting for its first
// usable answer, has nothing to show, or has entries.
func (s Snapshot) View() View {
	switch {
	case len(s.Entries) > 0:
		return ViewData
	case !s.Settled:
		return ViewLoading
	default:
		return ViewEmpty
	}
}

// Healthy reports whether the last poll succeeded.
func (s Snapshot) Healthy() bool {
	return s.Status == StatusConnected
}

// Listener is notified after every applied result. Listeners run while the
// store is locked, so they must not block or call back into the Store.
type Listener func(Snapshot)

// Store is the single holder of dashboard state. The last result to be
// applied wins.
type Store struct {
	mu        sync.RWMutex
	snap      Snapshot
	listeners []Listener
}

// NewStore creates an empty store in the loading state.
func NewStore() *Store {
	return &Store{
		snap: Snapshot{
			Status:  StatusLoading,
			Entries: []models.LogEntry{},
			Summary: aggregate.Compute(nil),
		},
	}
}

// OnChange registers a listener for applied results.
func (s *Store) OnChange(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Apply folds a completed poll into the store and returns the new snapshot.
func (s *Store) Apply(r Result) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.snap
	next.Version++
	next.Polls++
	next.LastSeq = r.Seq
	if !r.FinishedAt.IsZero() {
		t := r.FinishedAt
		next.LastAttempt = &t
	}

	switch r.Outcome {
	case OutcomeOK:
		entries := r.Entries
		if entries == nil {
			entries = []models.LogEntry{}
		}
		next.Entries = entries
		next.Summary = aggregate.Compute(entries)
		next.Status = StatusConnected
		next.Settled = true
		next.LastError = ""
		next.LastSuccess = next.LastAttempt
	case OutcomeInvalidPayload:
		next.Entries = []models.LogEntry{}
		next.Summary = aggregate.Compute(nil)
		next.Status = StatusInvalidPayload
		next.Settled = true
		next.InvalidBatch++
		next.LastError = errString(r.Err)
	default:
		next.Status = StatusFailed
		next.Failures++
		next.LastError = errString(r.Err)
	}

	s.snap = next
	for _, l := range s.listeners {
		l(next)
	}
	return next
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
