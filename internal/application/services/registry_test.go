package services

import (
	"testing"
	"time"

	"github.com/gramsender/gramsender-go/internal/domain/outreach"
)

func newTestRegistry(t *testing.T, wait time.Duration) *Registry {
	t.Helper()
	return NewRegistry(wait, testLogger(t))
}

func workerState(id, username, campaignID string, status outreach.WorkerStatus) *outreach.WorkerState {
	return &outreach.WorkerState{
		ID:         id,
		Username:   username,
		CampaignID: campaignID,
		Status:     status,
		StartedAt:  time.Now().UTC(),
	}
}

func TestRegistryRejectsActiveCombo(t *testing.T) {
	r := newTestRegistry(t, time.Second)

	if err := r.Register(workerState("w1", "acct", "c1", outreach.WorkerRunning)); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(workerState("w2", "acct", "c1", outreach.WorkerStarting)); err != ErrComboActive {
		t.Fatalf("duplicate combo: got %v, want ErrComboActive", err)
	}
	// A different campaign for the same account is fine.
	if err := r.Register(workerState("w3", "acct", "c2", outreach.WorkerStarting)); err != nil {
		t.Fatalf("different campaign: %v", err)
	}

	if !r.ActiveCombo("acct", "c1") {
		t.Error("ActiveCombo should report the running pair")
	}
	if r.ActiveCombo("acct", "c9") {
		t.Error("ActiveCombo reported an unknown pair")
	}
}

func TestRegistryComboFreedAfterTerminal(t *testing.T) {
	r := newTestRegistry(t, time.Second)

	if err := r.Register(workerState("w1", "acct", "c1", outreach.WorkerRunning)); err != nil {
		t.Fatalf("register: %v", err)
	}
	r.Update("w1", func(s *outreach.WorkerState) { s.Status = outreach.WorkerCompleted })

	if r.ActiveCombo("acct", "c1") {
		t.Error("completed worker should not hold the combo")
	}
	if err := r.Register(workerState("w2", "acct", "c1", outreach.WorkerStarting)); err != nil {
		t.Errorf("relaunch after completion: %v", err)
	}
}

func TestRegistryUpdateTerminalSticky(t *testing.T) {
	r := newTestRegistry(t, time.Second)
	if err := r.Register(workerState("w1", "acct", "c1", outreach.WorkerRunning)); err != nil {
		t.Fatalf("register: %v", err)
	}

	r.Update("w1", func(s *outreach.WorkerState) { s.Status = outreach.WorkerFailed })
	r.Update("w1", func(s *outreach.WorkerState) { s.Status = outreach.WorkerRunning })

	state, ok := r.Get("w1")
	if !ok {
		t.Fatal("worker vanished")
	}
	if state.Status != outreach.WorkerFailed {
		t.Errorf("terminal status overwritten: %s", state.Status)
	}
	if state.LastUpdate == "" {
		t.Error("LastUpdate not stamped")
	}
}

func TestRegistryStop(t *testing.T) {
	r := newTestRegistry(t, time.Second)
	if err := r.Register(workerState("w1", "acct", "c1", outreach.WorkerRunning)); err != nil {
		t.Fatalf("register: %v", err)
	}

	if r.Stopped("w1") {
		t.Error("fresh worker reported stopped")
	}
	if !r.Stop("w1") {
		t.Error("Stop returned false for a running worker")
	}
	if !r.Stopped("w1") {
		t.Error("worker not stopped after Stop")
	}
	// Stopping twice must not panic on the closed channel.
	if !r.Stop("w1") {
		t.Error("second Stop on a still non-terminal worker should succeed")
	}

	if r.Stop("unknown") {
		t.Error("Stop accepted an unknown id")
	}
	if !r.Stopped("unknown") {
		t.Error("unknown ids should read as stopped")
	}
}

func TestRegistryStopRejectsTerminal(t *testing.T) {
	r := newTestRegistry(t, time.Second)
	if err := r.Register(workerState("w1", "acct", "c1", outreach.WorkerRunning)); err != nil {
		t.Fatalf("register: %v", err)
	}
	r.Update("w1", func(s *outreach.WorkerState) { s.Status = outreach.WorkerCompleted })
	if r.Stop("w1") {
		t.Error("Stop accepted a terminal worker")
	}
}

func TestRegistryVerificationRoundTrip(t *testing.T) {
	r := newTestRegistry(t, 5*time.Second)
	if err := r.Register(workerState("w1", "acct", "c1", outreach.WorkerRunning)); err != nil {
		t.Fatalf("register: %v", err)
	}

	type result struct {
		code string
		ok   bool
	}
	done := make(chan result, 1)
	go func() {
		code, ok := r.RequestVerification("w1")
		done <- result{code, ok}
	}()

	// Wait for the worker to park.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if r.SupplyCode("w1", "123456") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("worker never parked for verification")
		}
		time.Sleep(5 * time.Millisecond)
	}

	res := <-done
	if !res.ok || res.code != "123456" {
		t.Fatalf("verification round trip: got (%q, %v)", res.code, res.ok)
	}

	state, _ := r.Get("w1")
	if state.PendingVerification {
		t.Error("PendingVerification not cleared after code delivery")
	}
}

func TestRegistryVerificationTimeout(t *testing.T) {
	r := newTestRegistry(t, 20*time.Millisecond)
	if err := r.Register(workerState("w1", "acct", "c1", outreach.WorkerRunning)); err != nil {
		t.Fatalf("register: %v", err)
	}

	code, ok := r.RequestVerification("w1")
	if ok || code != "" {
		t.Errorf("timed-out verification: got (%q, %v)", code, ok)
	}
}

func TestRegistrySupplyCodeWithoutWaiter(t *testing.T) {
	r := newTestRegistry(t, time.Second)
	if err := r.Register(workerState("w1", "acct", "c1", outreach.WorkerRunning)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if r.SupplyCode("w1", "123456") {
		t.Error("SupplyCode accepted a code with no worker waiting")
	}
	if r.SupplyCode("unknown", "123456") {
		t.Error("SupplyCode accepted an unknown worker")
	}
}

func TestRegistryPrune(t *testing.T) {
	r := newTestRegistry(t, time.Second)

	stale := workerState("old", "acct", "c1", outreach.WorkerRunning)
	stale.StartedAt = time.Now().Add(-48 * time.Hour)
	if err := r.Register(stale); err != nil {
		t.Fatalf("register stale: %v", err)
	}
	r.Update("old", func(s *outreach.WorkerState) { s.Status = outreach.WorkerCompleted })

	if err := r.Register(workerState("fresh", "acct", "c2", outreach.WorkerRunning)); err != nil {
		t.Fatalf("register fresh: %v", err)
	}

	r.Prune(24 * time.Hour)

	if _, ok := r.Get("old"); ok {
		t.Error("stale terminal worker survived prune")
	}
	if _, ok := r.Get("fresh"); !ok {
		t.Error("active worker removed by prune")
	}
	if len(r.List()) != 1 {
		t.Errorf("List length = %d, want 1", len(r.List()))
	}
}
