package services

import (
	"context"
	"testing"
	"time"

	"github.com/gramsender/gramsender-go/internal/domain/events"
	"github.com/gramsender/gramsender-go/internal/domain/outreach"
	"github.com/gramsender/gramsender-go/internal/infrastructure/fingerprint"
	"github.com/gramsender/gramsender-go/internal/infrastructure/persistence/database"
	"github.com/gramsender/gramsender-go/internal/infrastructure/persistence/store"
	"github.com/gramsender/gramsender-go/internal/infrastructure/platform"
	"github.com/gramsender/gramsender-go/internal/infrastructure/session"
)

type webhookCall struct {
	campaignURL string
	event       string
	campaignID  string
	payload     map[string]any
}

type webhookRecorder struct {
	calls []webhookCall
}

func (r *webhookRecorder) Send(campaignURL, event, campaignID string, payload map[string]any) {
	r.calls = append(r.calls, webhookCall{campaignURL, event, campaignID, payload})
}

type monitorHarness struct {
	fake      *platform.Fake
	monitor   *ReplyMonitor
	registry  *Registry
	accounts  *store.AccountRepository
	campaigns *store.CampaignRepository
	sends     *store.SendRepository
	replies   *store.ReplyRepository
	webhooks  *webhookRecorder
	events    []events.Event
}

func newMonitorHarness(t *testing.T) *monitorHarness {
	t.Helper()
	logger := testLogger(t)

	db, err := database.NewConnection("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := store.CreateTables(db); err != nil {
		t.Fatalf("create tables: %v", err)
	}

	h := &monitorHarness{
		fake:      &platform.Fake{},
		registry:  NewRegistry(time.Second, logger),
		accounts:  store.NewAccountRepository(db, logger, ""),
		campaigns: store.NewCampaignRepository(db, logger),
		sends:     store.NewSendRepository(db, logger),
		replies:   store.NewReplyRepository(db, logger),
		webhooks:  &webhookRecorder{},
	}

	dialer := platform.DialerFunc(func(username string) (platform.Client, error) {
		return h.fake, nil
	})
	fingerprints := fingerprint.NewProvider(t.TempDir(), logger)
	sessions := session.NewManager(dialer, fingerprints, logger, session.Options{
		SessionsDir: t.TempDir(),
	})

	sink := events.SinkFunc(func(ev events.Event) { h.events = append(h.events, ev) })
	h.monitor = NewReplyMonitor(h.accounts, h.campaigns, h.sends, h.replies,
		sessions, h.registry, h.webhooks, sink, logger, time.Minute)
	h.monitor.sleep = func(time.Duration) {}

	if err := h.accounts.Upsert(outreach.AccountCredential{
		Username:     "acct",
		SessionToken: testSessionToken,
	}); err != nil {
		t.Fatalf("upsert account: %v", err)
	}
	return h
}

// seedThread scripts one unread thread for the monitored account, whose own
// user id is 900 and whose read watermark sits at unix time 100.
func (h *monitorHarness) seedThread(messages ...platform.Message) {
	h.fake.ID = "900"
	h.fake.Threads = []platform.Thread{{
		ID:         "t1",
		Title:      "replier1",
		LastSeenAt: map[string]int64{"900": 100},
	}}
	h.fake.Messages = map[string][]platform.Message{"t1": messages}
}

func TestReplyMonitorDetectsReply(t *testing.T) {
	h := newMonitorHarness(t)

	if err := h.campaigns.Upsert(outreach.CampaignSpec{
		ID: "c1", Name: "Camp", WebhookURL: "https://example.com/hook",
	}); err != nil {
		t.Fatalf("upsert campaign: %v", err)
	}
	if err := h.sends.Record(outreach.SendRecord{
		CampaignID: "c1", AccountUsername: "acct",
		RecipientUsername: "replier1", RecipientUserID: "501",
	}); err != nil {
		t.Fatalf("seed send: %v", err)
	}

	// Inbox items carry only numeric sender ids, like the real client.
	h.seedThread(
		// Our own message, skipped.
		platform.Message{ID: "m1", UserID: "900", Text: "hi", Timestamp: time.Unix(150, 0)},
		// Already read, skipped.
		platform.Message{ID: "m2", UserID: "501", Text: "old", Timestamp: time.Unix(50, 0)},
		// The new reply.
		platform.Message{ID: "m3", UserID: "501", Text: "sounds great!",
			Timestamp: time.Unix(200, 0), IsReply: true},
	)

	h.monitor.Tick(context.Background())

	recs, err := h.replies.ListRecent(10)
	if err != nil {
		t.Fatalf("list replies: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("recorded %d replies, want 1", len(recs))
	}
	rec := recs[0]
	if rec.SenderUsername != "replier1" {
		t.Errorf("SenderUsername = %q, want the recorded send's recipient", rec.SenderUsername)
	}
	if rec.Text != "sounds great!" {
		t.Errorf("recorded wrong message: %+v", rec)
	}
	if rec.SenderUserID != "501" {
		t.Errorf("SenderUserID = %q, want 501", rec.SenderUserID)
	}
	if rec.Kind != outreach.ReplyDirect {
		t.Errorf("kind = %s, want reply", rec.Kind)
	}
	if rec.CampaignID != "c1" {
		t.Errorf("campaign attribution = %q, want c1", rec.CampaignID)
	}

	if len(h.webhooks.calls) != 1 {
		t.Fatalf("webhook calls = %d, want 1", len(h.webhooks.calls))
	}
	call := h.webhooks.calls[0]
	if call.event != "new_lead" || call.campaignID != "c1" {
		t.Errorf("webhook call = %+v", call)
	}
	if call.campaignURL != "https://example.com/hook" {
		t.Errorf("webhook URL = %q, want the campaign's", call.campaignURL)
	}
	if call.payload["replier_username"] != "replier1" {
		t.Errorf("webhook payload = %v", call.payload)
	}

	if len(h.events) != 1 || h.events[0].Type != events.TypeNewReply {
		t.Errorf("events = %v, want one new_reply", h.events)
	}
}

func TestReplyMonitorClassifiesInbound(t *testing.T) {
	h := newMonitorHarness(t)
	h.seedThread(platform.Message{
		ID: "m1", UserID: "501", Text: "hey there",
		Timestamp: time.Unix(200, 0),
	})

	h.monitor.Tick(context.Background())

	recs, err := h.replies.ListRecent(10)
	if err != nil {
		t.Fatalf("list replies: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("recorded %d replies, want 1", len(recs))
	}
	if recs[0].Kind != outreach.ReplyInbound {
		t.Errorf("kind = %s, want inbound", recs[0].Kind)
	}
	if recs[0].CampaignID != "" {
		t.Errorf("unattributed message got campaign %q", recs[0].CampaignID)
	}
	// With no send on record, the replier name falls back to the thread title.
	if recs[0].SenderUsername != "replier1" {
		t.Errorf("SenderUsername = %q, want the thread title", recs[0].SenderUsername)
	}
}

func TestReplyMonitorSkipsSeenMessages(t *testing.T) {
	h := newMonitorHarness(t)
	h.seedThread(platform.Message{
		ID: "m1", UserID: "501", Text: "hello",
		Timestamp: time.Unix(200, 0),
	})

	h.monitor.Tick(context.Background())
	h.monitor.Tick(context.Background())

	recs, err := h.replies.ListRecent(10)
	if err != nil {
		t.Fatalf("list replies: %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("recorded %d replies across two passes, want 1", len(recs))
	}
}

func TestReplyMonitorYieldsToActiveWorkers(t *testing.T) {
	h := newMonitorHarness(t)
	h.seedThread(platform.Message{
		ID: "m1", UserID: "501", Text: "hello",
		Timestamp: time.Unix(200, 0),
	})
	if err := h.registry.Register(workerState("w1", "acct", "c1", outreach.WorkerRunning)); err != nil {
		t.Fatalf("register worker: %v", err)
	}

	h.monitor.Tick(context.Background())

	if recs, _ := h.replies.ListRecent(10); len(recs) != 0 {
		t.Errorf("monitor scanned %d replies while a worker was active", len(recs))
	}
	if h.fake.ProbeCalls != 0 {
		t.Error("monitor logged in while a worker was active")
	}
}

func TestClipTextKeepsRunesWhole(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"héllo", 2, "h"},
		{"日本語", 4, "日"},
		{"", 5, ""},
	}
	for _, tt := range tests {
		if got := clipText(tt.in, tt.n); got != tt.want {
			t.Errorf("clipText(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestReplyMonitorSkipsAccountsWithoutCredentials(t *testing.T) {
	h := newMonitorHarness(t)
	if err := h.accounts.Upsert(outreach.AccountCredential{Username: "bare"}); err != nil {
		t.Fatalf("upsert account: %v", err)
	}
	h.seedThread()

	h.monitor.Tick(context.Background())

	// Only the credentialed account is scanned; one session was dialed.
	if got := len(h.monitor.cache); got != 1 {
		t.Errorf("cached sessions = %d, want 1", got)
	}
	if _, ok := h.monitor.cache["acct"]; !ok {
		t.Error("credentialed account was not scanned")
	}
}
