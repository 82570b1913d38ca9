package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gramsender/gramsender-go/internal/domain/events"
	"github.com/gramsender/gramsender-go/internal/domain/outreach"
	"github.com/gramsender/gramsender-go/internal/infrastructure/observability/logging"
	"github.com/gramsender/gramsender-go/internal/infrastructure/persistence/store"
)

// launchGrace is how long a freshly launched combo stays blocked from
// relaunch, covering the window before the worker registers as active.
const launchGrace = 2 * time.Minute

// CampaignPoller periodically scans for running campaigns and launches a
// worker for every assigned account that is not already working the pair.
type CampaignPoller struct {
	campaigns   *store.CampaignRepository
	accounts    *store.AccountRepository
	assignments *store.AssignmentRepository
	launcher    *Launcher
	registry    *Registry
	sink        events.Sink
	logger      *logging.ChanneledLogger
	interval    time.Duration

	mu               sync.Mutex
	recentlyLaunched map[string]time.Time
}

// NewCampaignPoller wires the poller. interval controls the scan cadence.
func NewCampaignPoller(
	campaigns *store.CampaignRepository,
	accounts *store.AccountRepository,
	assignments *store.AssignmentRepository,
	launcher *Launcher,
	registry *Registry,
	sink events.Sink,
	logger *logging.ChanneledLogger,
	interval time.Duration,
) *CampaignPoller {
	return &CampaignPoller{
		campaigns:        campaigns,
		accounts:         accounts,
		assignments:      assignments,
		launcher:         launcher,
		registry:         registry,
		sink:             sink,
		logger:           logger,
		interval:         interval,
		recentlyLaunched: make(map[string]time.Time),
	}
}

// Run loops until the context is cancelled.
func (p *CampaignPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	p.logger.Poller().Info("Campaign poller started", "interval", p.interval.String())
	for {
		select {
		case <-ctx.Done():
			p.logger.Poller().Info("Campaign poller stopped")
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick runs one scan pass. Exported so tests and manual triggers can drive
// the poller without the ticker.
func (p *CampaignPoller) Tick(ctx context.Context) {
	running, err := p.campaigns.ListByStatus(outreach.CampaignRunning)
	if err != nil {
		p.logger.Poller().Error("Failed to list running campaigns", "error", err)
		return
	}
	p.pruneLaunches()
	p.registry.Prune(24 * time.Hour)

	for _, campaign := range running {
		usernames, err := p.assignments.AccountsFor(campaign.ID)
		if err != nil {
			p.logger.Poller().Error("Failed to list assignments", "campaignId", campaign.ID, "error", err)
			continue
		}
		for _, username := range usernames {
			p.maybeLaunch(ctx, campaign, username)
		}
	}
}

func (p *CampaignPoller) maybeLaunch(ctx context.Context, campaign outreach.CampaignSpec, username string) {
	combo := outreach.ComboKey(username, campaign.ID)
	if p.registry.ActiveCombo(username, campaign.ID) || p.launchedRecently(combo) {
		return
	}
	cred, err := p.accounts.Get(username)
	if err != nil {
		p.logger.Poller().Error("Failed to load account", "account", username, "error", err)
		return
	}
	if cred == nil {
		p.logger.Poller().Warn("Assigned account does not exist", "account", username, "campaignId", campaign.ID)
		return
	}
	if !cred.HasCredentials() {
		p.logger.Poller().Warn("Skipping account without credentials",
			"account", username, "campaignId", campaign.ID)
		return
	}

	p.markLaunched(combo)
	workerID, err := p.launcher.Launch(ctx, *cred, campaign)
	if err != nil {
		if err == ErrComboActive {
			return
		}
		p.sink.Publish(events.New(events.TypeError, "", map[string]any{
			"message": fmt.Sprintf("[%s] Failed to start worker for campaign %s: %v", cred.Name(), campaign.Name, err),
		}))
		p.logger.Poller().Error("Worker launch failed",
			"account", username, "campaignId", campaign.ID, "error", err)
		return
	}
	p.logger.Poller().Info("Launched worker for running campaign",
		"workerId", workerID, "account", username, "campaign", campaign.Name)
}

func (p *CampaignPoller) launchedRecently(combo string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	at, ok := p.recentlyLaunched[combo]
	return ok && time.Since(at) < launchGrace
}

func (p *CampaignPoller) markLaunched(combo string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recentlyLaunched[combo] = time.Now()
}

func (p *CampaignPoller) pruneLaunches() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for combo, at := range p.recentlyLaunched {
		if time.Since(at) >= launchGrace {
			delete(p.recentlyLaunched, combo)
		}
	}
}
