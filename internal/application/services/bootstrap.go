package services

import (
	"context"
	"time"

	"github.com/gramsender/gramsender-go/internal/domain/outreach"
	"github.com/gramsender/gramsender-go/internal/infrastructure/security"
)

// Launcher turns an account+campaign pair into a registered, running
// worker goroutine.
type Launcher struct {
	deps WorkerDeps
}

// NewLauncher binds the shared worker dependencies.
func NewLauncher(deps WorkerDeps) *Launcher {
	return &Launcher{deps: deps}
}

// Launch registers a worker for the pair and starts its run loop. It
// returns the worker id, or ErrComboActive when the pair already runs.
func (l *Launcher) Launch(ctx context.Context, cred outreach.AccountCredential, campaign outreach.CampaignSpec) (string, error) {
	state := &outreach.WorkerState{
		ID:           security.GenerateULID(),
		Username:     cred.Username,
		AccountName:  cred.Name(),
		CampaignID:   campaign.ID,
		CampaignName: campaign.Name,
		LeadSource:   campaign.TargetMode.Label(),
		Status:       outreach.WorkerStarting,
		StartedAt:    time.Now().UTC(),
	}
	if err := l.deps.Registry.Register(state); err != nil {
		return "", err
	}
	worker := NewWorker(state.ID, cred, campaign, l.deps)
	go worker.Run(ctx)
	l.deps.Logger.Worker().Info("Worker launched",
		"workerId", state.ID, "account", cred.Username, "campaign", campaign.Name)
	return state.ID, nil
}
