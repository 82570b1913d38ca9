package services

import (
	"context"
	"testing"
	"time"

	"github.com/gramsender/gramsender-go/internal/domain/events"
	"github.com/gramsender/gramsender-go/internal/domain/outreach"
	"github.com/gramsender/gramsender-go/internal/infrastructure/persistence/store"
)

type pollerHarness struct {
	*workerHarness
	accounts    *store.AccountRepository
	assignments *store.AssignmentRepository
	poller      *CampaignPoller
}

func newPollerHarness(t *testing.T) *pollerHarness {
	t.Helper()
	base := newWorkerHarness(t)
	logger := base.deps.Logger

	h := &pollerHarness{
		workerHarness: base,
		accounts:      store.NewAccountRepository(base.db, logger, ""),
		assignments:   store.NewAssignmentRepository(base.db, logger),
	}
	launcher := NewLauncher(base.deps)
	h.poller = NewCampaignPoller(base.campaigns, h.accounts, h.assignments,
		launcher, base.registry, events.Discard, logger, time.Minute)
	return h
}

// runningCampaign seeds a running campaign with one assigned account. The
// empty hashtag audience makes launched workers finish immediately.
func (h *pollerHarness) runningCampaign(t *testing.T, id, username string) {
	t.Helper()
	campaign := hashtagCampaign(id, 1)
	campaign.Status = outreach.CampaignRunning
	if err := h.campaigns.Upsert(campaign); err != nil {
		t.Fatalf("upsert campaign: %v", err)
	}
	if err := h.accounts.Upsert(outreach.AccountCredential{
		Username: username, SessionToken: testSessionToken,
	}); err != nil {
		t.Fatalf("upsert account: %v", err)
	}
	if err := h.assignments.Assign(id, username); err != nil {
		t.Fatalf("assign: %v", err)
	}
}

func waitForWorkers(t *testing.T, r *Registry, want int) []outreach.WorkerState {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		workers := r.List()
		if len(workers) == want || time.Now().After(deadline) {
			return workers
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPollerLaunchesAssignedWorkers(t *testing.T) {
	h := newPollerHarness(t)
	h.runningCampaign(t, "c1", "acct1")

	h.poller.Tick(context.Background())

	workers := waitForWorkers(t, h.registry, 1)
	if len(workers) != 1 {
		t.Fatalf("registered %d workers, want 1", len(workers))
	}
	if workers[0].Username != "acct1" || workers[0].CampaignID != "c1" {
		t.Errorf("launched wrong pair: %+v", workers[0])
	}
}

func TestPollerLaunchGraceBlocksRelaunch(t *testing.T) {
	h := newPollerHarness(t)
	h.runningCampaign(t, "c1", "acct1")

	h.poller.Tick(context.Background())
	// The first worker finishes instantly against the empty audience, so
	// only the grace window keeps the pair from immediate relaunch.
	h.poller.Tick(context.Background())

	if workers := waitForWorkers(t, h.registry, 1); len(workers) != 1 {
		t.Errorf("registered %d workers across two ticks, want 1", len(workers))
	}
}

func TestPollerIgnoresDraftCampaigns(t *testing.T) {
	h := newPollerHarness(t)
	campaign := hashtagCampaign("c1", 1)
	campaign.Status = outreach.CampaignDraft
	if err := h.campaigns.Upsert(campaign); err != nil {
		t.Fatalf("upsert campaign: %v", err)
	}
	if err := h.accounts.Upsert(outreach.AccountCredential{
		Username: "acct1", SessionToken: testSessionToken,
	}); err != nil {
		t.Fatalf("upsert account: %v", err)
	}
	if err := h.assignments.Assign("c1", "acct1"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	h.poller.Tick(context.Background())

	if workers := h.registry.List(); len(workers) != 0 {
		t.Errorf("draft campaign launched %d workers", len(workers))
	}
}

func TestPollerSkipsAccountsWithoutCredentials(t *testing.T) {
	h := newPollerHarness(t)
	campaign := hashtagCampaign("c1", 1)
	campaign.Status = outreach.CampaignRunning
	if err := h.campaigns.Upsert(campaign); err != nil {
		t.Fatalf("upsert campaign: %v", err)
	}
	if err := h.accounts.Upsert(outreach.AccountCredential{Username: "bare"}); err != nil {
		t.Fatalf("upsert account: %v", err)
	}
	if err := h.assignments.Assign("c1", "bare"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	h.poller.Tick(context.Background())

	if workers := h.registry.List(); len(workers) != 0 {
		t.Errorf("credential-less account launched %d workers", len(workers))
	}
}

func TestPollerSkipsMissingAccounts(t *testing.T) {
	h := newPollerHarness(t)
	campaign := hashtagCampaign("c1", 1)
	campaign.Status = outreach.CampaignRunning
	if err := h.campaigns.Upsert(campaign); err != nil {
		t.Fatalf("upsert campaign: %v", err)
	}
	if err := h.assignments.Assign("c1", "ghost"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	h.poller.Tick(context.Background())

	if workers := h.registry.List(); len(workers) != 0 {
		t.Errorf("missing account launched %d workers", len(workers))
	}
}

func TestPollerSkipsActiveCombos(t *testing.T) {
	h := newPollerHarness(t)
	h.runningCampaign(t, "c1", "acct1")
	if err := h.registry.Register(workerState("w0", "acct1", "c1", outreach.WorkerRunning)); err != nil {
		t.Fatalf("register: %v", err)
	}

	h.poller.Tick(context.Background())

	if workers := h.registry.List(); len(workers) != 1 {
		t.Errorf("active combo relaunched: %d workers", len(workers))
	}
}
