// Package container provides dependency injection for all singleton services
package container

import (
	"fmt"

	"github.com/gramsender/gramsender-go/internal/application/services"
	"github.com/gramsender/gramsender-go/internal/infrastructure/fingerprint"
	"github.com/gramsender/gramsender-go/internal/infrastructure/inference"
	"github.com/gramsender/gramsender-go/internal/infrastructure/leads"
	"github.com/gramsender/gramsender-go/internal/infrastructure/messaging"
	"github.com/gramsender/gramsender-go/internal/infrastructure/notifications"
	"github.com/gramsender/gramsender-go/internal/infrastructure/observability/logging"
	"github.com/gramsender/gramsender-go/internal/infrastructure/persistence/database"
	"github.com/gramsender/gramsender-go/internal/infrastructure/persistence/store"
	"github.com/gramsender/gramsender-go/internal/infrastructure/platform"
	"github.com/gramsender/gramsender-go/internal/infrastructure/session"
	"github.com/gramsender/gramsender-go/internal/infrastructure/webhook"
	"github.com/gramsender/gramsender-go/pkg/config"
)

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	Logger *logging.ChanneledLogger
	DB     *database.DB

	// Repositories
	Accounts    *store.AccountRepository
	Campaigns   *store.CampaignRepository
	Assignments *store.AssignmentRepository
	Sends       *store.SendRepository
	Replies     *store.ReplyRepository
	Settings    *store.SettingsRepository

	// Platform access
	Fingerprints *fingerprint.Provider
	Sessions     *session.Manager
	Detector     *inference.Detector
	Leads        *leads.Store

	// Engine services
	Registry     *services.Registry
	Dedup        services.DedupSet
	Launcher     *services.Launcher
	Poller       *services.CampaignPoller
	ReplyMonitor *services.ReplyMonitor

	// Outbound surfaces
	Broadcaster *messaging.Broadcaster
	Webhooks    *webhook.Sink
	Notifier    notifications.Service
}

// NewContainer creates and wires all singleton services
func NewContainer(logger *logging.ChanneledLogger) (*Container, error) {
	db, err := openDatabase(logger)
	if err != nil {
		return nil, err
	}
	if err := store.CreateTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	c := &Container{
		Logger:      logger,
		DB:          db,
		Accounts:    store.NewAccountRepository(db, logger, config.EncryptionKey),
		Campaigns:   store.NewCampaignRepository(db, logger),
		Assignments: store.NewAssignmentRepository(db, logger),
		Sends:       store.NewSendRepository(db, logger),
		Replies:     store.NewReplyRepository(db, logger),
		Settings:    store.NewSettingsRepository(db, logger),
	}

	c.Fingerprints = fingerprint.NewProvider(config.SessionsDir, logger)
	c.Sessions = session.NewManager(c.dialer(), c.Fingerprints, logger, session.Options{
		SessionsDir:     config.SessionsDir,
		FallbackProxies: config.FallbackProxies,
		TwoFactorCode:   config.TwoFactorCode,
		EncryptionKey:   config.EncryptionKey,
	})
	c.Detector = inference.NewDetector(config.InferenceAPIKey, config.InferenceAPIBase, logger)
	c.Leads = leads.NewStore(config.LeadsDir, logger)

	c.Broadcaster = messaging.NewBroadcaster(logger)
	c.Webhooks = webhook.NewSink(config.WebhookTimeout, logger)
	c.refreshWebhookSettings()
	c.Notifier = notifications.NewService(config.ResendAPIKey, config.AlertFromAddr, config.AlertEmail, logger)

	c.Registry = services.NewRegistry(config.VerificationWaitTimeout, logger)
	c.Dedup = services.NewDedupSet(config.RedisAddr, config.RedisPassword, logger)

	deps := services.WorkerDeps{
		Sessions:           c.Sessions,
		Fingerprints:       c.Fingerprints,
		Registry:           c.Registry,
		Dedup:              c.Dedup,
		Detector:           c.Detector,
		Leads:              c.Leads,
		Sends:              c.Sends,
		Campaigns:          c.Campaigns,
		Webhooks:           c.Webhooks,
		Notifier:           c.Notifier,
		Sink:               c.Broadcaster,
		Logger:             logger,
		LeadLookupDelayMin: config.LeadLookupDelayMin,
		LeadLookupDelayMax: config.LeadLookupDelayMax,
	}
	c.Launcher = services.NewLauncher(deps)
	c.Poller = services.NewCampaignPoller(
		c.Campaigns, c.Accounts, c.Assignments, c.Launcher, c.Registry,
		c.Broadcaster, logger, config.CampaignPollInterval,
	)
	c.ReplyMonitor = services.NewReplyMonitor(
		c.Accounts, c.Campaigns, c.Sends, c.Replies, c.Sessions, c.Registry,
		c.Webhooks, c.Broadcaster, logger, config.ReplyPollInterval,
	)

	return c, nil
}

// dialer constructs a fresh platform client per account, with a random
// mobile user agent and the account's fingerprint headers attached to
// every request.
func (c *Container) dialer() platform.Dialer {
	return platform.DialerFunc(func(username string) (platform.Client, error) {
		ua, _ := platform.RandomUserAgent()
		headerFn := func() map[string]string {
			profile, err := c.Fingerprints.ProfileFor(username)
			if err != nil {
				return nil
			}
			return c.Fingerprints.HeadersFor(profile)
		}
		return platform.NewRESTClient(
			config.PlatformBaseURL,
			config.PlatformRequestTimeout,
			ua,
			headerFn,
			c.Logger.Platform(),
		)
	})
}

// RefreshWebhookSettings reloads persisted webhook settings into the sink.
// Called at startup and whenever an operator saves new settings.
func (c *Container) RefreshWebhookSettings() {
	c.refreshWebhookSettings()
}

func (c *Container) refreshWebhookSettings() {
	settings, err := c.Settings.Load()
	if err != nil {
		c.Logger.System().Warn("Failed to load global settings", "error", err)
	}
	c.Webhooks.GlobalURL = settings.GlobalWebhookURL
	c.Webhooks.Secret = settings.WebhookSecret
	c.Webhooks.EnabledEvents = settings.WebhookEvents
	if c.Webhooks.GlobalURL == "" {
		c.Webhooks.GlobalURL = config.GlobalWebhookURL
		c.Webhooks.Secret = config.WebhookSecret
		c.Webhooks.EnabledEvents = config.WebhookEvents
	}
}

func openDatabase(logger *logging.ChanneledLogger) (*database.DB, error) {
	driver := config.DBDriver
	dsn := config.DBPath
	if config.LibSQLURL != "" {
		driver = "libsql"
		dsn = config.LibSQLURL
	}
	db, err := database.NewConnectionWithLogger(driver, dsn, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// Close releases held resources.
func (c *Container) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
