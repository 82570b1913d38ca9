package store

import (
	"log/slog"
	"testing"
	"time"

	"github.com/gramsender/gramsender-go/internal/domain/outreach"
	"github.com/gramsender/gramsender-go/internal/infrastructure/observability/logging"
	"github.com/gramsender/gramsender-go/internal/infrastructure/persistence/database"
)

func testDB(t *testing.T) (*database.DB, *logging.ChanneledLogger) {
	t.Helper()
	cfg := logging.DefaultLoggerConfig()
	cfg.OutputToFile = false
	cfg.OutputToConsole = false
	cfg.DefaultLevel = slog.LevelError
	logger, err := logging.NewChanneledLogger(cfg)
	if err != nil {
		t.Fatalf("NewChanneledLogger: %v", err)
	}

	db, err := database.NewConnection("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := CreateTables(db); err != nil {
		t.Fatalf("create tables: %v", err)
	}
	return db, logger
}

func TestAccountRepositoryRoundTrip(t *testing.T) {
	db, logger := testDB(t)
	repo := NewAccountRepository(db, logger, "operator passphrase")

	cred := outreach.AccountCredential{
		Username:     "acct",
		DisplayName:  "Main",
		Password:     "hunter2",
		SessionToken: "tok:abc:27:csrf",
		Proxy:        "socks5://1.2.3.4:1080",
	}
	if err := repo.Upsert(cred); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := repo.Get("acct")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil")
	}
	if got.Password != cred.Password || got.SessionToken != cred.SessionToken || got.Proxy != cred.Proxy {
		t.Errorf("secrets did not round trip: %+v", got)
	}
	if got.DisplayName != "Main" {
		t.Errorf("DisplayName = %q", got.DisplayName)
	}

	// Secrets must not be stored in the clear.
	var stored string
	if err := db.QueryRow(`SELECT password_enc FROM accounts WHERE username = ?`, "acct").Scan(&stored); err != nil {
		t.Fatalf("raw read: %v", err)
	}
	if stored == cred.Password {
		t.Error("password stored in plaintext")
	}
}

func TestAccountRepositoryGetMissing(t *testing.T) {
	db, logger := testDB(t)
	repo := NewAccountRepository(db, logger, "")

	got, err := repo.Get("nobody")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("missing account returned %+v", got)
	}
}

func TestAccountRepositoryUpsertReplacesAndDelete(t *testing.T) {
	db, logger := testDB(t)
	repo := NewAccountRepository(db, logger, "")

	if err := repo.Upsert(outreach.AccountCredential{Username: "acct", Password: "old"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := repo.Upsert(outreach.AccountCredential{Username: "acct", Password: "new"}); err != nil {
		t.Fatalf("re-Upsert: %v", err)
	}

	list, err := repo.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Password != "new" {
		t.Errorf("List = %+v, want single updated row", list)
	}

	if err := repo.Delete("acct"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := repo.Get("acct"); got != nil {
		t.Error("account survived delete")
	}
}

func TestCampaignRepositoryRoundTrip(t *testing.T) {
	db, logger := testDB(t)
	repo := NewCampaignRepository(db, logger)

	campaign := outreach.CampaignSpec{
		ID:                   "c1",
		Name:                 "Spring Push",
		TargetMode:           outreach.TargetImportedList,
		TargetInput:          "alice,bob",
		Status:               outreach.CampaignDraft,
		MessageQuota:         50,
		DailyLimit:           25,
		LeadCount:            2,
		FollowersThreshold:   100,
		CountryFilterEnabled: true,
		BioFilterEnabled:     true,
		BioKeywords:          []string{"fitness", "coach"},
		GenderFilter:         "female",
		MessageTemplates:     []string{"Hey {firstname}", "[Hi|Hello] {firstname}"},
		FollowUps: []outreach.FollowUp{
			{Message: "Bump", DelayValue: 2, DelayUnit: "days"},
		},
		WebhookURL: "https://example.com/hook",
	}
	if err := repo.Upsert(campaign); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := repo.Get("c1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil")
	}
	if got.TargetMode != outreach.TargetImportedList || got.MessageQuota != 50 {
		t.Errorf("scalar fields lost: %+v", got)
	}
	if len(got.BioKeywords) != 2 || got.BioKeywords[1] != "coach" {
		t.Errorf("BioKeywords = %v", got.BioKeywords)
	}
	if len(got.MessageTemplates) != 2 {
		t.Errorf("MessageTemplates = %v", got.MessageTemplates)
	}
	if len(got.FollowUps) != 1 || got.FollowUps[0].DelayUnit != "days" {
		t.Errorf("FollowUps = %+v", got.FollowUps)
	}
	if !got.CountryFilterEnabled || !got.BioFilterEnabled {
		t.Error("filter flags lost")
	}
}

func TestCampaignRepositoryStoresModeAsInteger(t *testing.T) {
	db, logger := testDB(t)
	repo := NewCampaignRepository(db, logger)

	spec := outreach.CampaignSpec{
		ID:         "c1",
		Name:       "Followers Run",
		Status:     outreach.CampaignDraft,
		TargetMode: outreach.TargetFollowersOf,
	}
	if err := repo.Upsert(spec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	var raw int
	if err := db.QueryRow(`SELECT target_mode FROM campaigns WHERE id = 'c1'`).Scan(&raw); err != nil {
		t.Fatalf("raw scan: %v", err)
	}
	if raw != int(outreach.TargetFollowersOf) {
		t.Errorf("target_mode column = %d, want %d", raw, int(outreach.TargetFollowersOf))
	}

	got, err := repo.Get("c1")
	if err != nil || got == nil {
		t.Fatalf("Get: %v %v", got, err)
	}
	if got.TargetMode != outreach.TargetFollowersOf {
		t.Errorf("TargetMode = %v, want %v", got.TargetMode, outreach.TargetFollowersOf)
	}
}

func TestCampaignRepositoryStatusAndCounters(t *testing.T) {
	db, logger := testDB(t)
	repo := NewCampaignRepository(db, logger)

	for _, c := range []outreach.CampaignSpec{
		{ID: "c1", Name: "A", Status: outreach.CampaignRunning},
		{ID: "c2", Name: "B", Status: outreach.CampaignDraft},
	} {
		if err := repo.Upsert(c); err != nil {
			t.Fatalf("Upsert %s: %v", c.ID, err)
		}
	}

	running, err := repo.ListByStatus(outreach.CampaignRunning)
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	if len(running) != 1 || running[0].ID != "c1" {
		t.Errorf("running = %+v", running)
	}

	if err := repo.UpdateStatus("c2", outreach.CampaignRunning); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if running, _ = repo.ListByStatus(outreach.CampaignRunning); len(running) != 2 {
		t.Errorf("after update, running = %d campaigns", len(running))
	}

	if err := repo.AddMessagesSent("c1", 3); err != nil {
		t.Fatalf("AddMessagesSent: %v", err)
	}
	if err := repo.AddMessagesSent("c1", 2); err != nil {
		t.Fatalf("AddMessagesSent: %v", err)
	}
	got, _ := repo.Get("c1")
	if got.MessagesSent != 5 {
		t.Errorf("MessagesSent = %d, want 5", got.MessagesSent)
	}

	if err := repo.Delete("c1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := repo.Get("c1"); got != nil {
		t.Error("campaign survived delete")
	}
}

func TestAssignmentRepository(t *testing.T) {
	db, logger := testDB(t)
	repo := NewAssignmentRepository(db, logger)

	if err := repo.Assign("c1", "acct1"); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if err := repo.Assign("c1", "acct2"); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	// Re-assigning the same pair is idempotent.
	if err := repo.Assign("c1", "acct1"); err != nil {
		t.Fatalf("duplicate Assign: %v", err)
	}

	accounts, err := repo.AccountsFor("c1")
	if err != nil {
		t.Fatalf("AccountsFor: %v", err)
	}
	if len(accounts) != 2 {
		t.Errorf("AccountsFor = %v, want 2 accounts", accounts)
	}

	if err := repo.Unassign("c1", "acct2"); err != nil {
		t.Fatalf("Unassign: %v", err)
	}
	accounts, _ = repo.AccountsFor("c1")
	if len(accounts) != 1 || accounts[0] != "acct1" {
		t.Errorf("after unassign, AccountsFor = %v", accounts)
	}

	all, err := repo.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all["c1"]) != 1 {
		t.Errorf("All = %v", all)
	}
}

func TestSendRepositoryLatestSendToUser(t *testing.T) {
	db, logger := testDB(t)
	repo := NewSendRepository(db, logger)

	base := time.Now().UTC().Add(-time.Hour)
	sends := []outreach.SendRecord{
		{CampaignID: "old", AccountUsername: "acct", RecipientUsername: "lead", RecipientUserID: "501", SentAt: base},
		{CampaignID: "new", AccountUsername: "acct", RecipientUsername: "lead", RecipientUserID: "501", SentAt: base.Add(30 * time.Minute)},
		{CampaignID: "other", AccountUsername: "acct", RecipientUsername: "someone", RecipientUserID: "502", SentAt: base.Add(45 * time.Minute)},
	}
	for _, s := range sends {
		if err := repo.Record(s); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	campaignID, username, err := repo.LatestSendToUser("501")
	if err != nil {
		t.Fatalf("LatestSendToUser: %v", err)
	}
	if campaignID != "new" {
		t.Errorf("LatestSendToUser campaign = %q, want the most recent send's campaign", campaignID)
	}
	if username != "lead" {
		t.Errorf("LatestSendToUser username = %q, want lead", username)
	}

	campaignID, username, err = repo.LatestSendToUser("999")
	if err != nil {
		t.Fatalf("LatestSendToUser unknown: %v", err)
	}
	if campaignID != "" || username != "" {
		t.Errorf("unknown recipient attributed to %q/%q", campaignID, username)
	}
}

func TestSendRepositoryListsAndCount(t *testing.T) {
	db, logger := testDB(t)
	repo := NewSendRepository(db, logger)

	now := time.Now().UTC()
	records := []outreach.SendRecord{
		{CampaignID: "c1", AccountUsername: "acct", RecipientUsername: "a", MessageType: "initial", SentAt: now},
		{CampaignID: "c1", AccountUsername: "acct", RecipientUsername: "a", MessageType: "follow_up", FollowUpIndex: 1, SentAt: now.Add(time.Second)},
		{CampaignID: "c2", AccountUsername: "acct", RecipientUsername: "b", MessageType: "initial", SentAt: now.Add(2 * time.Second)},
	}
	for _, s := range records {
		if err := repo.Record(s); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	byCampaign, err := repo.ListByCampaign("c1", 0)
	if err != nil {
		t.Fatalf("ListByCampaign: %v", err)
	}
	if len(byCampaign) != 2 {
		t.Fatalf("ListByCampaign = %d records, want 2", len(byCampaign))
	}
	if byCampaign[0].MessageType != "follow_up" {
		t.Error("ListByCampaign not newest-first")
	}

	recent, err := repo.ListRecent(2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 2 || recent[0].CampaignID != "c2" {
		t.Errorf("ListRecent = %+v", recent)
	}

	// Only initial sends count toward the daily cap.
	count, err := repo.CountToday("acct")
	if err != nil {
		t.Fatalf("CountToday: %v", err)
	}
	if count != 2 {
		t.Errorf("CountToday = %d, want 2", count)
	}
}

func TestReplyRepositorySeenAndList(t *testing.T) {
	db, logger := testDB(t)
	repo := NewReplyRepository(db, logger)

	seen, err := repo.Seen("m1")
	if err != nil {
		t.Fatalf("Seen: %v", err)
	}
	if seen {
		t.Error("unknown message reported seen")
	}

	rec := outreach.ReplyRecord{
		AccountUsername: "acct",
		CampaignID:      "c1",
		ThreadID:        "t1",
		SenderUsername:  "lead",
		Text:            "sounds great",
		MessageID:       "m1",
		Kind:            outreach.ReplyDirect,
		DetectedAt:      time.Now().UTC(),
	}
	if err := repo.Record(rec); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if seen, _ = repo.Seen("m1"); !seen {
		t.Error("recorded message not reported seen")
	}

	list, err := repo.ListRecent(10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("ListRecent = %d records, want 1", len(list))
	}
	if list[0].SenderUsername != "lead" || list[0].Kind != outreach.ReplyDirect {
		t.Errorf("reply = %+v", list[0])
	}
}

func TestSettingsRepositoryRoundTrip(t *testing.T) {
	db, logger := testDB(t)
	repo := NewSettingsRepository(db, logger)

	// Empty store yields defaults.
	settings, err := repo.Load()
	if err != nil {
		t.Fatalf("Load empty: %v", err)
	}
	if settings.GlobalWebhookURL != "" {
		t.Errorf("empty store returned %+v", settings)
	}

	want := GlobalSettings{
		GlobalWebhookURL: "https://example.com/hook",
		WebhookSecret:    "s3cret",
		WebhookEvents:    []string{"message_sent", "new_lead"},
		AlertEmail:       "ops@example.com",
	}
	if err := repo.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := repo.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.GlobalWebhookURL != want.GlobalWebhookURL || got.WebhookSecret != want.WebhookSecret {
		t.Errorf("Load = %+v", got)
	}
	if len(got.WebhookEvents) != 2 || got.AlertEmail != want.AlertEmail {
		t.Errorf("Load = %+v", got)
	}

	// Saving again overwrites.
	want.AlertEmail = "new@example.com"
	if err := repo.Save(want); err != nil {
		t.Fatalf("re-Save: %v", err)
	}
	if got, _ = repo.Load(); got.AlertEmail != "new@example.com" {
		t.Errorf("overwrite lost: %+v", got)
	}
}
