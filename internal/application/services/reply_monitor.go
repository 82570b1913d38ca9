package services

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/gramsender/gramsender-go/internal/domain/events"
	"github.com/gramsender/gramsender-go/internal/domain/outreach"
	"github.com/gramsender/gramsender-go/internal/infrastructure/observability/logging"
	"github.com/gramsender/gramsender-go/internal/infrastructure/persistence/store"
	"github.com/gramsender/gramsender-go/internal/infrastructure/platform"
	"github.com/gramsender/gramsender-go/internal/infrastructure/session"
)

// ReplyMonitor scans accounts' unread direct threads for new counterparty
// messages, records them, and announces them as leads. It yields entirely
// while any worker runs so monitoring never competes with outreach traffic.
type ReplyMonitor struct {
	accounts  *store.AccountRepository
	campaigns *store.CampaignRepository
	sends     *store.SendRepository
	replies   *store.ReplyRepository
	sessions  *session.Manager
	registry  *Registry
	webhooks  webhookSender
	sink      events.Sink
	logger    *logging.ChanneledLogger
	interval  time.Duration

	// cached sessions, one per account, reused across passes.
	cache map[string]*session.Session
	// sleep is swapped in tests.
	sleep func(time.Duration)
}

// webhookSender is the slice of the webhook sink the monitor needs.
type webhookSender interface {
	Send(campaignURL, event, campaignID string, payload map[string]any)
}

// NewReplyMonitor wires the monitor. interval controls the scan cadence.
func NewReplyMonitor(
	accounts *store.AccountRepository,
	campaigns *store.CampaignRepository,
	sends *store.SendRepository,
	replies *store.ReplyRepository,
	sessions *session.Manager,
	registry *Registry,
	webhooks webhookSender,
	sink events.Sink,
	logger *logging.ChanneledLogger,
	interval time.Duration,
) *ReplyMonitor {
	return &ReplyMonitor{
		accounts:  accounts,
		campaigns: campaigns,
		sends:     sends,
		replies:   replies,
		sessions:  sessions,
		registry:  registry,
		webhooks:  webhooks,
		sink:      sink,
		logger:    logger,
		interval:  interval,
		cache:     make(map[string]*session.Session),
		sleep:     time.Sleep,
	}
}

// Run loops until the context is cancelled.
func (m *ReplyMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	m.logger.Replies().Info("Reply monitor started", "interval", m.interval.String())
	for {
		select {
		case <-ctx.Done():
			m.logger.Replies().Info("Reply monitor stopped")
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick runs one scan pass over every credentialed account.
func (m *ReplyMonitor) Tick(ctx context.Context) {
	if m.registry.AnyActive() {
		m.logger.Replies().Debug("Workers active, skipping reply pass")
		return
	}
	accounts, err := m.accounts.List()
	if err != nil {
		m.logger.Replies().Error("Failed to list accounts", "error", err)
		return
	}
	for _, cred := range accounts {
		if ctx.Err() != nil {
			return
		}
		if !cred.HasCredentials() {
			continue
		}
		m.scanAccount(ctx, cred)
		m.sleep(2 * time.Second)
	}
}

func (m *ReplyMonitor) scanAccount(ctx context.Context, cred outreach.AccountCredential) {
	sess, err := m.sessionFor(ctx, cred)
	if err != nil {
		m.logger.WithAccount(logging.ChannelReplies, cred.Username).Warn("Login failed", "error", err)
		return
	}
	myID := sess.Client.UserID()
	if myID == "" {
		return
	}
	threads, err := sess.Client.DirectThreads(ctx, 10, true)
	if err != nil {
		m.logger.WithAccount(logging.ChannelReplies, cred.Username).Warn("Thread fetch failed", "error", err)
		// Force a fresh login next pass.
		delete(m.cache, cred.Username)
		return
	}
	for _, thread := range threads {
		m.scanThread(ctx, cred, sess, myID, thread)
	}
}

func (m *ReplyMonitor) sessionFor(ctx context.Context, cred outreach.AccountCredential) (*session.Session, error) {
	if sess, ok := m.cache[cred.Username]; ok {
		return sess, nil
	}
	sess, err := m.sessions.Login(ctx, cred, nil)
	if err != nil {
		return nil, err
	}
	m.cache[cred.Username] = sess
	return sess, nil
}

func (m *ReplyMonitor) scanThread(ctx context.Context, cred outreach.AccountCredential, sess *session.Session, myID string, thread platform.Thread) {
	lastRead := thread.LastSeenAt[myID]
	messages, err := sess.Client.DirectMessages(ctx, thread.ID, 10)
	if err != nil {
		return
	}
	for _, msg := range messages {
		if msg.UserID == myID || msg.UserID == "" {
			continue
		}
		if msg.Timestamp.Unix() <= lastRead {
			continue
		}
		if seen, err := m.replies.Seen(msg.ID); err != nil || seen {
			continue
		}
		kind := outreach.ReplyInbound
		if msg.IsReply || msg.RepliedToText != "" {
			kind = outreach.ReplyDirect
		}
		// Inbox items carry only the sender's numeric id; the username comes
		// from our own send records, or the thread title for cold inbound.
		campaignID, sentTo, err := m.sends.LatestSendToUser(msg.UserID)
		if err != nil {
			m.logger.Replies().Warn("Campaign attribution failed", "senderId", msg.UserID, "error", err)
		}
		replier := msg.Username
		if replier == "" {
			replier = sentTo
		}
		if replier == "" {
			replier = thread.Title
		}
		record := outreach.ReplyRecord{
			AccountUsername: cred.Username,
			AccountName:     cred.Name(),
			CampaignID:      campaignID,
			ThreadID:        thread.ID,
			ThreadTitle:     thread.Title,
			SenderUserID:    msg.UserID,
			SenderUsername:  replier,
			Text:            msg.Text,
			RepliedToText:   msg.RepliedToText,
			MessageID:       msg.ID,
			Kind:            kind,
			DetectedAt:      time.Now().UTC(),
		}
		if err := m.replies.Record(record); err != nil {
			m.logger.Database().Warn("Failed to record reply", "messageId", msg.ID, "error", err)
			continue
		}
		m.sink.Publish(events.New(events.TypeNewReply, "", map[string]any{
			"account_username": cred.Username,
			"account_name":     cred.Name(),
			"thread_title":     thread.Title,
			"replier_username": replier,
			"reply_text":       clipText(msg.Text, 200),
			"message_type":     string(kind),
		}))
		m.notifyWebhook(campaignID, cred.Username, thread.ID, replier, msg.Text, msg.RepliedToText, kind)
		m.logger.Replies().Info("New reply detected",
			"account", cred.Username, "replier", replier, "kind", string(kind), "campaignId", campaignID)
	}
}

func (m *ReplyMonitor) notifyWebhook(campaignID, accountUsername, threadID, replier, text, repliedTo string, kind outreach.ReplyKind) {
	campaignURL := ""
	if campaignID != "" {
		if campaign, err := m.campaigns.Get(campaignID); err == nil && campaign != nil {
			campaignURL = campaign.WebhookURL
		}
	}
	m.webhooks.Send(campaignURL, "new_lead", campaignID, map[string]any{
		"account_username":        accountUsername,
		"replier_username":        replier,
		"reply_text":              clipText(text, 1000),
		"replied_to_message_text": clipText(repliedTo, 1000),
		"message_type":            string(kind),
		"thread_id":               threadID,
	})
}

// clipText shortens s to at most n bytes without splitting a rune.
func clipText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
