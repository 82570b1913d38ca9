// Package services contains the outreach engine's application layer: the
// worker registry, the worker run loop, lead filtering, the campaign poller
// and the reply monitor.
package services

import (
	"errors"
	"sync"
	"time"

	"github.com/gramsender/gramsender-go/internal/domain/outreach"
	"github.com/gramsender/gramsender-go/internal/infrastructure/observability/logging"
)

// ErrComboActive is returned when a worker for the same account+campaign
// pair is already running.
var ErrComboActive = errors.New("worker already active for this account and campaign")

type workerEntry struct {
	state *outreach.WorkerState
	stop  chan struct{}
	// codeCh is non-nil only while the worker is parked waiting for a
	// verification code.
	codeCh chan string
}

// Registry tracks every worker the process has launched. It is the single
// source of truth for worker state and the rendezvous point between workers
// blocked on verification and the operator supplying codes.
type Registry struct {
	logger           *logging.ChanneledLogger
	verificationWait time.Duration

	mu      sync.Mutex
	workers map[string]*workerEntry
}

// NewRegistry creates a registry. verificationWait bounds how long a worker
// may stay parked waiting for an interactive code.
func NewRegistry(verificationWait time.Duration, logger *logging.ChanneledLogger) *Registry {
	return &Registry{
		logger:           logger,
		verificationWait: verificationWait,
		workers:          make(map[string]*workerEntry),
	}
}

// Register records a new worker. It fails when another non-terminal worker
// holds the same account+campaign combo.
func (r *Registry) Register(state *outreach.WorkerState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	combo := state.ComboKey()
	for _, entry := range r.workers {
		if entry.state.ComboKey() == combo && entry.state.Status.Active() {
			return ErrComboActive
		}
	}
	r.workers[state.ID] = &workerEntry{
		state: state,
		stop:  make(chan struct{}),
	}
	r.logger.Worker().Info("Worker registered",
		"workerId", state.ID, "account", state.Username, "campaignId", state.CampaignID)
	return nil
}

// Get returns a copy of the worker's state.
func (r *Registry) Get(id string) (outreach.WorkerState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.workers[id]
	if !ok {
		return outreach.WorkerState{}, false
	}
	return *entry.state, true
}

// List returns copies of every tracked worker's state.
func (r *Registry) List() []outreach.WorkerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]outreach.WorkerState, 0, len(r.workers))
	for _, entry := range r.workers {
		out = append(out, *entry.state)
	}
	return out
}

// Update applies fn to the worker's state under the registry lock. Terminal
// statuses are sticky: once completed, failed or stopped the status field
// no longer changes.
func (r *Registry) Update(id string, fn func(*outreach.WorkerState)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.workers[id]
	if !ok {
		return
	}
	prev := entry.state.Status
	fn(entry.state)
	if prev.Terminal() && entry.state.Status != prev {
		entry.state.Status = prev
	}
	entry.state.LastUpdate = time.Now().UTC().Format(time.RFC3339)
}

// Stop requests a cooperative stop. Returns false when the worker is
// unknown or already terminal.
func (r *Registry) Stop(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.workers[id]
	if !ok || entry.state.Status.Terminal() {
		return false
	}
	select {
	case <-entry.stop:
	default:
		close(entry.stop)
	}
	r.logger.Worker().Info("Stop requested", "workerId", id)
	return true
}

// StopChan returns the worker's stop channel, closed when a stop has been
// requested. Unknown ids get a closed channel.
func (r *Registry) StopChan(id string) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.workers[id]
	if !ok {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return entry.stop
}

// Stopped reports whether a stop has been requested for the worker.
func (r *Registry) Stopped(id string) bool {
	select {
	case <-r.StopChan(id):
		return true
	default:
		return false
	}
}

// ActiveCombo reports whether a non-terminal worker already holds the
// account+campaign pair.
func (r *Registry) ActiveCombo(username, campaignID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	combo := outreach.ComboKey(username, campaignID)
	for _, entry := range r.workers {
		if entry.state.ComboKey() == combo && entry.state.Status.Active() {
			return true
		}
	}
	return false
}

// AnyActive reports whether any worker is currently non-terminal. The reply
// monitor uses this to yield while campaigns run.
func (r *Registry) AnyActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.workers {
		if entry.state.Status.Active() {
			return true
		}
	}
	return false
}

// RequestVerification parks the calling worker until the operator supplies
// a code, the wait times out, or the worker is stopped. ok is false when no
// code arrived.
func (r *Registry) RequestVerification(id string) (code string, ok bool) {
	r.mu.Lock()
	entry, exists := r.workers[id]
	if !exists {
		r.mu.Unlock()
		return "", false
	}
	ch := make(chan string, 1)
	entry.codeCh = ch
	entry.state.PendingVerification = true
	stop := entry.stop
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		entry.codeCh = nil
		entry.state.PendingVerification = false
		r.mu.Unlock()
	}()

	timer := time.NewTimer(r.verificationWait)
	defer timer.Stop()
	select {
	case code = <-ch:
		return code, code != ""
	case <-timer.C:
		r.logger.Worker().Warn("Verification wait timed out", "workerId", id)
		return "", false
	case <-stop:
		return "", false
	}
}

// SupplyCode hands a verification code to a parked worker. Returns false
// when no worker with that id is waiting.
func (r *Registry) SupplyCode(id, code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.workers[id]
	if !ok || entry.codeCh == nil {
		return false
	}
	select {
	case entry.codeCh <- code:
		return true
	default:
		return false
	}
}

// Prune removes terminal workers older than maxAge, keeping the registry
// list bounded over long uptimes.
func (r *Registry) Prune(maxAge time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	for id, entry := range r.workers {
		if entry.state.Status.Terminal() && entry.state.StartedAt.Before(cutoff) {
			delete(r.workers, id)
		}
	}
}
