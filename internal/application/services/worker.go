package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gramsender/gramsender-go/internal/domain/events"
	"github.com/gramsender/gramsender-go/internal/domain/outreach"
	"github.com/gramsender/gramsender-go/internal/infrastructure/fingerprint"
	"github.com/gramsender/gramsender-go/internal/infrastructure/inference"
	"github.com/gramsender/gramsender-go/internal/infrastructure/leads"
	"github.com/gramsender/gramsender-go/internal/infrastructure/notifications"
	"github.com/gramsender/gramsender-go/internal/infrastructure/observability/logging"
	"github.com/gramsender/gramsender-go/internal/infrastructure/persistence/store"
	"github.com/gramsender/gramsender-go/internal/infrastructure/platform"
	"github.com/gramsender/gramsender-go/internal/infrastructure/session"
	"github.com/gramsender/gramsender-go/internal/infrastructure/webhook"
)

// WorkerDeps carries the shared services a worker needs. One instance is
// built by the container and reused for every launch.
type WorkerDeps struct {
	Sessions     *session.Manager
	Fingerprints *fingerprint.Provider
	Registry     *Registry
	Dedup        DedupSet
	Detector     *inference.Detector
	Leads        *leads.Store
	Sends        *store.SendRepository
	Campaigns    *store.CampaignRepository
	Webhooks     *webhook.Sink
	Notifier     notifications.Service
	Sink         events.Sink
	Logger       *logging.ChanneledLogger

	// LeadLookupDelayMin/Max bound the pause between imported-lead lookups,
	// in seconds.
	LeadLookupDelayMin float64
	LeadLookupDelayMax float64
}

// Worker runs one campaign on one account until the message quota is
// reached, the lead source is exhausted, or a stop is requested.
type Worker struct {
	id       string
	cred     outreach.AccountCredential
	campaign outreach.CampaignSpec
	deps     WorkerDeps
	filters  *FilterSet

	sess *session.Session
	sent int
	// completed guards the exactly-once terminal event.
	completed bool
	// done closes when Run returns, releasing lead producers blocked on a
	// send the consumer will never take.
	done chan struct{}

	// sleep is swapped in tests to skip real waits.
	sleep func(time.Duration)
	rng   *rand.Rand
}

// NewWorker builds a worker for one account+campaign pair. The caller is
// responsible for registering its state before Run.
func NewWorker(id string, cred outreach.AccountCredential, campaign outreach.CampaignSpec, deps WorkerDeps) *Worker {
	return &Worker{
		id:       id,
		cred:     cred,
		campaign: campaign,
		deps:     deps,
		filters:  NewFilterSet(campaign, deps.Detector),
		done:     make(chan struct{}),
		sleep:    time.Sleep,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (w *Worker) log() *logging.ChanneledLogger { return w.deps.Logger }

func (w *Worker) emit(t events.Type, payload map[string]any) {
	if w.deps.Sink != nil {
		w.deps.Sink.Publish(events.New(t, w.id, payload))
	}
}

func (w *Worker) update(msg string) {
	w.emit(events.TypeLog, map[string]any{"message": fmt.Sprintf("[%s] %s", w.cred.Name(), msg)})
	w.deps.Registry.Update(w.id, func(s *outreach.WorkerState) { s.LastUpdate = msg })
}

func (w *Worker) fail(msg string) {
	w.emit(events.TypeError, map[string]any{"message": fmt.Sprintf("[%s] %s", w.cred.Name(), msg)})
	w.deps.Registry.Update(w.id, func(s *outreach.WorkerState) { s.Errors++ })
}

func (w *Worker) progress(pct int) {
	if pct > 100 {
		pct = 100
	}
	w.emit(events.TypeProgress, map[string]any{"progress": pct})
	w.deps.Registry.Update(w.id, func(s *outreach.WorkerState) { s.Progress = pct })
}

// complete emits the terminal event exactly once and settles worker and
// campaign status.
func (w *Worker) complete(success bool) {
	if w.completed {
		return
	}
	w.completed = true

	status := outreach.WorkerCompleted
	if !success {
		status = outreach.WorkerFailed
	}
	if w.deps.Registry.Stopped(w.id) {
		status = outreach.WorkerStopped
	}
	w.deps.Registry.Update(w.id, func(s *outreach.WorkerState) {
		s.Status = status
		s.MessagesSent = w.sent
	})
	w.emit(events.TypeComplete, map[string]any{
		"success":       success,
		"messages_sent": w.sent,
	})

	if w.sent > 0 {
		if err := w.deps.Campaigns.AddMessagesSent(w.campaign.ID, w.sent); err != nil {
			w.log().Worker().Warn("Failed to update campaign counters", "campaignId", w.campaign.ID, "error", err)
		}
	}
	campaignStatus := outreach.CampaignCompleted
	if !success {
		campaignStatus = outreach.CampaignFailed
	}
	if status == outreach.WorkerStopped {
		campaignStatus = outreach.CampaignDraft
	}
	if err := w.deps.Campaigns.UpdateStatus(w.campaign.ID, campaignStatus); err != nil {
		w.log().Worker().Warn("Failed to update campaign status", "campaignId", w.campaign.ID, "error", err)
	}
	if w.deps.Notifier != nil {
		if err := w.deps.Notifier.SendCampaignCompleteAlert(w.campaign.Name, w.cred.Username, w.sent, success); err != nil {
			w.log().Webhook().Warn("Campaign completion alert failed", "error", err)
		}
	}
	w.log().WithWorker(logging.ChannelWorker, w.id).Info("Worker finished",
		"status", string(status), "sent", w.sent)
}

// codeRequester surfaces a verification demand to the operator and blocks
// on the registry's bounded wait.
func (w *Worker) codeRequester() session.CodeRequester {
	return func(username string, method platform.ChallengeMethod) (string, bool) {
		w.emit(events.TypeNeed2FA, map[string]any{
			"username": username,
			"method":   string(method),
		})
		if w.deps.Notifier != nil {
			if err := w.deps.Notifier.SendVerificationAlert(username, string(method)); err != nil {
				w.log().Webhook().Warn("Verification alert failed", "error", err)
			}
		}
		return w.deps.Registry.RequestVerification(w.id)
	}
}

// Run executes the full campaign loop. It always terminates through
// complete(), whatever the path out.
func (w *Worker) Run(ctx context.Context) {
	start := time.Now()
	defer close(w.done)
	defer func() {
		if r := recover(); r != nil {
			w.fail(fmt.Sprintf("Critical error: %v", r))
			w.complete(false)
		}
	}()

	w.deps.Registry.Update(w.id, func(s *outreach.WorkerState) { s.Status = outreach.WorkerRunning })
	w.update("Logging in...")

	sess, err := w.deps.Sessions.Login(ctx, w.cred, w.codeRequester())
	if err != nil {
		w.fail("Login failed: " + err.Error())
		w.complete(false)
		return
	}
	w.sess = sess
	w.update("Login successful")
	w.deps.Webhooks.Send(w.campaign.WebhookURL, "campaign_started", w.campaign.ID, map[string]any{
		"account_username": w.cred.Username,
		"target_mode":      w.campaign.TargetMode.Label(),
		"message_count":    w.campaign.MessageQuota,
	})

	leadCh, total, err := w.resolveLeads(ctx)
	if err != nil {
		if outreach.IsKind(err, outreach.KindNoLeads) {
			w.update("No targets found")
			w.progress(100)
			w.complete(true)
			return
		}
		w.fail("Target discovery failed: " + err.Error())
		w.complete(false)
		return
	}

	processed := 0
	for lead := range leadCh {
		if w.stopped(ctx) {
			w.update("Operation cancelled")
			w.complete(true)
			return
		}
		if total > 0 {
			w.progress(processed * 100 / total)
		}
		processed++

		if !w.deps.Dedup.CheckAndAdd(lead.UserID) {
			continue
		}
		if w.processLead(ctx, lead) {
			if w.campaign.MessageQuota > 0 && w.sent >= w.campaign.MessageQuota {
				w.update(fmt.Sprintf("Reached target of %d messages", w.campaign.MessageQuota))
				break
			}
			w.sleep(w.uniform(2, 5))
		}
	}

	w.update(fmt.Sprintf("Completed. Sent %d messages.", w.sent))
	w.progress(100)
	w.deps.Webhooks.Send(w.campaign.WebhookURL, "worker_completed", w.campaign.ID, map[string]any{
		"account_username": w.cred.Username,
		"messages_sent":    w.sent,
		"target_reached":   w.campaign.MessageQuota > 0 && w.sent >= w.campaign.MessageQuota,
		"duration_seconds": time.Since(start).Seconds(),
	})
	w.complete(true)
}

func (w *Worker) stopped(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	return w.deps.Registry.Stopped(w.id)
}

func (w *Worker) uniform(lo, hi float64) time.Duration {
	return time.Duration((lo + w.rng.Float64()*(hi-lo)) * float64(time.Second))
}

// withReauth retries fn after a transparent re-authentication when the
// session expires mid-operation, at most twice, spacing requests after each
// re-login. Rate limits get a bounded wait and one more try.
func (w *Worker) withReauth(ctx context.Context, op string, fn func() error) error {
	const maxRetries = 2
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if attempt == maxRetries {
			break
		}
		switch {
		case outreach.IsKind(err, outreach.KindLoginRequired):
			w.fail(fmt.Sprintf("Session expired during %s, re-authenticating...", op))
			if rerr := w.sess.Revalidate(ctx, w.codeRequester()); rerr != nil {
				w.fail(fmt.Sprintf("Failed to re-authenticate during %s", op))
				return err
			}
			w.sleep(w.uniform(3, 6))
		case outreach.IsKind(err, outreach.KindRateLimited):
			wait := w.uniform(45, 90)
			w.update(fmt.Sprintf("Rate limited. Waiting %ds...", int(wait.Seconds())))
			w.sleep(wait)
		default:
			return err
		}
	}
	return err
}

// resolveLeads fans the campaign's target mode into a lead channel plus a
// best-effort total for progress reporting.
func (w *Worker) resolveLeads(ctx context.Context) (<-chan outreach.Lead, int, error) {
	switch w.campaign.TargetMode {
	case outreach.TargetHashtag:
		w.update(fmt.Sprintf("Searching for users with hashtag #%s...", w.campaign.TargetInput))
		summaries, err := w.hashtagAuthors(ctx)
		if err != nil {
			return nil, 0, err
		}
		return w.channelOf(summaries), len(summaries), nil
	case outreach.TargetFollowersOf, outreach.TargetFollowingOf:
		summaries, err := w.seedAudience(ctx)
		if err != nil {
			return nil, 0, err
		}
		return w.channelOf(summaries), len(summaries), nil
	case outreach.TargetImportedList:
		return w.importedLeads(ctx)
	}
	return nil, 0, fmt.Errorf("invalid targeting mode %d", w.campaign.TargetMode)
}

func (w *Worker) channelOf(summaries []platform.UserSummary) <-chan outreach.Lead {
	ch := make(chan outreach.Lead)
	go func() {
		defer close(ch)
		for _, s := range summaries {
			select {
			case ch <- outreach.Lead{UserID: s.ID, Username: s.Username, FullName: s.FullName}:
			case <-w.done:
				return
			}
		}
	}()
	return ch
}

func (w *Worker) hashtagAuthors(ctx context.Context) ([]platform.UserSummary, error) {
	var authors []platform.UserSummary
	err := w.withReauth(ctx, "hashtag search", func() error {
		var err error
		authors, err = w.sess.Client.HashtagRecentAuthors(ctx, w.campaign.TargetInput, 50)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(authors) == 0 {
		return nil, outreach.NewPlatformError(outreach.KindNoLeads, "hashtag search", nil)
	}
	return dedupSummaries(authors), nil
}

// seedAudience collects followers or followings of every seed account in
// the comma-separated target input.
func (w *Worker) seedAudience(ctx context.Context) ([]platform.UserSummary, error) {
	var all []platform.UserSummary
	seeds := splitTargets(w.campaign.TargetInput)
	for i, seed := range seeds {
		if w.stopped(ctx) {
			break
		}
		relation := "followers"
		if w.campaign.TargetMode == outreach.TargetFollowingOf {
			relation = "following"
		}
		w.update(fmt.Sprintf("Getting %s of @%s...", relation, seed))

		var info *platform.UserInfo
		err := w.withReauth(ctx, "seed lookup", func() error {
			var err error
			info, err = w.sess.Client.UserInfoByUsername(ctx, seed)
			return err
		})
		if err != nil {
			if outreach.IsKind(err, outreach.KindTargetNotFound) {
				w.update(fmt.Sprintf("User @%s not found", seed))
				continue
			}
			w.fail(fmt.Sprintf("Error resolving @%s: %v", seed, err))
			continue
		}

		var batch []platform.UserSummary
		err = w.withReauth(ctx, "audience fetch", func() error {
			var err error
			if w.campaign.TargetMode == outreach.TargetFollowingOf {
				batch, err = w.sess.Client.UserFollowing(ctx, info.ID, 100)
			} else {
				batch, err = w.sess.Client.UserFollowers(ctx, info.ID, 100)
			}
			return err
		})
		if err != nil {
			w.fail(fmt.Sprintf("Error fetching %s of @%s: %v", relation, seed, err))
			continue
		}
		all = append(all, batch...)
		w.update(fmt.Sprintf("Found %d %s from @%s", len(batch), relation, seed))
		if len(seeds) > 1 && i < len(seeds)-1 {
			w.sleep(w.uniform(5, 10))
		}
	}
	if len(all) == 0 {
		return nil, outreach.NewPlatformError(outreach.KindNoLeads, "seed audience", nil)
	}
	return dedupSummaries(all), nil
}

// importedLeads streams imported-list leads, looking each username up with
// a ramped delay that stretches while the platform pushes back.
func (w *Worker) importedLeads(ctx context.Context) (<-chan outreach.Lead, int, error) {
	if !w.deps.Leads.Exists(w.campaign.ID) && w.campaign.TargetInput != "" {
		n, err := w.deps.Leads.CreateFromTargetInput(w.campaign.ID, w.campaign.TargetInput)
		if err != nil {
			return nil, 0, err
		}
		w.update(fmt.Sprintf("Created leads list with %d usernames", n))
	}
	rows, err := w.deps.Leads.Load(w.campaign.ID)
	if err != nil || len(rows) == 0 {
		return nil, 0, outreach.NewPlatformError(outreach.KindNoLeads, "load leads", err)
	}
	total := w.campaign.LeadCount
	if total == 0 {
		total = len(rows)
	}
	w.update(fmt.Sprintf("Processing %d leads...", total))

	ch := make(chan outreach.Lead)
	go func() {
		defer close(ch)
		consecutiveErrors := 0
		for i, row := range rows {
			if w.stopped(ctx) {
				return
			}
			if i == 0 {
				w.sleep(w.uniform(2, 4))
			} else {
				lo := w.deps.LeadLookupDelayMin + float64(consecutiveErrors*5)
				hi := w.deps.LeadLookupDelayMax + float64(consecutiveErrors*10)
				w.sleep(w.uniform(lo, hi))
			}

			var info *platform.UserInfo
			err := w.withReauth(ctx, "lead lookup", func() error {
				var err error
				info, err = w.sess.Client.UserInfoByUsername(ctx, row.Username)
				return err
			})
			if err != nil {
				consecutiveErrors++
				if outreach.IsKind(err, outreach.KindRateLimited) {
					backoff := time.Duration(60+consecutiveErrors*30) * time.Second
					if backoff > 300*time.Second {
						backoff = 300 * time.Second
					}
					w.update(fmt.Sprintf("Rate limited. Waiting %ds before continuing...", int(backoff.Seconds())))
					w.sleep(backoff)
				} else {
					w.log().Worker().Debug("Lead skipped", "username", row.Username, "error", err)
				}
				continue
			}
			consecutiveErrors = 0
			lead := outreach.Lead{
				UserID:            info.ID,
				Username:          info.Username,
				FullName:          info.FullName,
				Biography:         info.Biography,
				FollowerCount:     info.FollowerCount,
				Country:           info.City,
				ProfilePicURL:     info.ProfilePicURL,
				ImportedFirstName: row.FirstName,
				ImportedFullName:  row.FullName,
			}
			select {
			case ch <- lead:
			case <-w.done:
				return
			}
		}
	}()
	return ch, total, nil
}

// processLead runs the filter pipeline and delivery chain for one lead.
// It returns true when the initial message was delivered.
func (w *Worker) processLead(ctx context.Context, lead outreach.Lead) bool {
	// Enumerated leads carry only an identity; enrich before filtering.
	if lead.FollowerCount == 0 && lead.Biography == "" {
		var info *platform.UserInfo
		err := w.withReauth(ctx, "profile lookup", func() error {
			var err error
			info, err = w.sess.Client.UserInfoByID(ctx, lead.UserID)
			return err
		})
		if err != nil {
			w.fail(fmt.Sprintf("Error with %s: %v", lead.Username, err))
			return false
		}
		lead.FullName = info.FullName
		lead.Biography = info.Biography
		lead.FollowerCount = info.FollowerCount
		lead.Country = info.City
		lead.ProfilePicURL = info.ProfilePicURL
	}
	w.update(fmt.Sprintf("User: %s - Followers: %d", lead.Username, lead.FollowerCount))

	if skip, reason := w.filters.Evaluate(ctx, lead); skip {
		w.update(fmt.Sprintf("Skipping %s - %s", lead.Username, reason))
		return false
	}

	firstname := w.resolveFirstName(ctx, lead)
	template := w.campaign.MessageTemplates[w.rng.Intn(len(w.campaign.MessageTemplates))]
	message := ApplySpintax(template, firstname)

	w.update(fmt.Sprintf("Sending DM to @%s...", lead.Username))
	result, err := w.deliver(ctx, lead, message)
	if err != nil {
		w.fail(fmt.Sprintf("Failed to send DM to @%s: %v", lead.Username, err))
		return false
	}
	w.recordSend(lead, result, message, "initial", 0)
	w.sent++
	w.deps.Registry.Update(w.id, func(s *outreach.WorkerState) { s.MessagesSent = w.sent })
	w.emit(events.TypeMessageSent, map[string]any{
		"recipient_username": lead.Username,
		"recipient_user_id":  lead.UserID,
		"message":            message,
	})
	w.update(fmt.Sprintf("Message #%d sent successfully to @%s", w.sent, lead.Username))
	w.deps.Webhooks.Send(w.campaign.WebhookURL, "message_sent", w.campaign.ID, map[string]any{
		"account_username":   w.cred.Username,
		"recipient_username": lead.Username,
		"message_type":       "initial",
		"cumulative_sent":    w.sent,
	})

	w.sendFollowUps(ctx, lead, firstname, result)
	return true
}

// resolveFirstName picks the personalization name by priority: imported
// value, model extraction, platform profile, then handle heuristic.
func (w *Worker) resolveFirstName(ctx context.Context, lead outreach.Lead) string {
	if lead.ImportedFirstName != "" {
		return lead.ImportedFirstName
	}
	if w.deps.Detector != nil && w.deps.Detector.Enabled() {
		fullName := lead.ImportedFullName
		if fullName == "" {
			fullName = lead.FullName
		}
		if name := w.deps.Detector.ExtractFirstName(ctx, fullName, lead.Username); name != "" {
			return name
		}
	}
	if name := (platform.UserInfo{FullName: lead.FullName}).FirstName(); name != "" {
		return name
	}
	return inference.FallbackFirstName(lead.Username)
}

// deliver attempts the four-method fallback chain. The structured endpoints
// carry the transparent re-auth retry; the raw alternates are single-shot.
func (w *Worker) deliver(ctx context.Context, lead outreach.Lead, message string) (*platform.SendResult, error) {
	w.pauseBeforeDM()
	if err := w.sess.Revalidate(ctx, w.codeRequester()); err != nil {
		return nil, err
	}

	var lastErr error
	rateLimited := false
	note := func(err error) {
		lastErr = err
		if outreach.IsKind(err, outreach.KindRateLimited) || outreach.LooksRateLimited(err) {
			rateLimited = true
		}
	}

	var result *platform.SendResult
	err := w.withReauth(ctx, "send DM", func() error {
		var err error
		result, err = w.sess.Client.DirectSend(ctx, lead.UserID, message)
		return err
	})
	if err == nil {
		return result, nil
	}
	note(err)

	err = w.withReauth(ctx, "send DM via text endpoint", func() error {
		var err error
		result, err = w.sess.Client.DirectSendText(ctx, lead.UserID, message)
		return err
	})
	if err == nil {
		w.update(fmt.Sprintf("DM sent to @%s (via text endpoint)", lead.Username))
		return result, nil
	}
	note(err)

	form := map[string]string{
		"recipient_users": recipientUsers(lead.UserID),
		"client_context":  uuid.NewString(),
		"message":         message,
		"action":          "send_item",
	}
	if resp, err := w.sess.Client.PrivateRequest(ctx, "direct_v1/threads/broadcast/text/", form); err == nil {
		w.update(fmt.Sprintf("DM sent to @%s (via raw endpoint)", lead.Username))
		return resultFromResponse(resp), nil
	} else {
		note(err)
	}

	threadForm := map[string]string{
		"recipient_users": recipientUsers(lead.UserID),
		"client_context":  uuid.NewString(),
	}
	if resp, err := w.sess.Client.PrivateRequest(ctx, "direct_v1/threads/", threadForm); err == nil {
		if threadID, _ := resp["thread_id"].(string); threadID != "" {
			itemForm := map[string]string{
				"text":           message,
				"client_context": uuid.NewString(),
				"action":         "send_item",
			}
			if _, err := w.sess.Client.PrivateRequest(ctx, "direct_v1/threads/"+threadID+"/items/", itemForm); err == nil {
				w.update(fmt.Sprintf("DM sent to @%s (via thread)", lead.Username))
				return &platform.SendResult{ThreadID: threadID}, nil
			} else {
				note(err)
			}
		}
	} else {
		note(err)
	}

	if rateLimited {
		w.fail("RATE LIMIT / RESTRICTION: all DM methods failed. Increase delays or rest the account.")
		if w.deps.Notifier != nil {
			if err := w.deps.Notifier.SendRateLimitAlert(w.cred.Username, w.campaign.Name, fmt.Sprint(lastErr)); err != nil {
				w.log().Webhook().Warn("Rate limit alert failed", "error", err)
			}
		}
	}
	return nil, outreach.NewPlatformError(outreach.KindDeliveryFailed, "deliver", lastErr)
}

// sendFollowUps issues each scheduled follow-up after its delay. Failures
// are logged per follow-up and never abort the run.
func (w *Worker) sendFollowUps(ctx context.Context, lead outreach.Lead, firstname string, initial *platform.SendResult) {
	for i, fu := range w.campaign.FollowUps {
		if w.stopped(ctx) {
			return
		}
		if d := fu.Delay(); d > 0 {
			w.update(fmt.Sprintf("Waiting %s before follow-up %d to @%s", d, i+1, lead.Username))
			w.sleep(d)
		}
		text := ApplySpintax(fu.Message, firstname)
		w.pauseBeforeDM()
		if err := w.sess.Revalidate(ctx, w.codeRequester()); err != nil {
			w.update(fmt.Sprintf("Follow-up %d to @%s failed: %v", i+1, lead.Username, err))
			continue
		}
		var result *platform.SendResult
		err := w.withReauth(ctx, fmt.Sprintf("send follow-up %d", i+1), func() error {
			var err error
			result, err = w.sess.Client.DirectSend(ctx, lead.UserID, text)
			return err
		})
		if err != nil {
			w.update(fmt.Sprintf("Follow-up %d to @%s failed: %v", i+1, lead.Username, err))
			continue
		}
		w.sent++
		w.deps.Registry.Update(w.id, func(s *outreach.WorkerState) { s.MessagesSent = w.sent })
		if result == nil || result.ThreadID == "" {
			result = initial
		}
		w.recordSend(lead, result, text, "follow_up", i+1)
		w.emit(events.TypeMessageSent, map[string]any{
			"recipient_username": lead.Username,
			"recipient_user_id":  lead.UserID,
			"message":            text,
			"follow_up":          i + 1,
		})
		w.update(fmt.Sprintf("Follow-up %d sent to @%s", i+1, lead.Username))
		w.deps.Webhooks.Send(w.campaign.WebhookURL, "message_sent", w.campaign.ID, map[string]any{
			"account_username":   w.cred.Username,
			"recipient_username": lead.Username,
			"message_type":       "follow_up",
			"cumulative_sent":    w.sent,
		})
	}
}

func (w *Worker) recordSend(lead outreach.Lead, result *platform.SendResult, message, messageType string, followUpIndex int) {
	threadID := ""
	if result != nil {
		threadID = result.ThreadID
	}
	rec := outreach.SendRecord{
		CampaignID:        w.campaign.ID,
		CampaignName:      w.campaign.Name,
		AccountUsername:   w.cred.Username,
		AccountName:       w.cred.Name(),
		RecipientUsername: lead.Username,
		RecipientUserID:   lead.UserID,
		ThreadID:          threadID,
		LeadSource:        w.campaign.TargetMode.Label(),
		LeadTarget:        w.campaign.TargetInput,
		MessagePreview:    message,
		MessageType:       messageType,
		FollowUpIndex:     followUpIndex,
		SentAt:            time.Now().UTC(),
	}
	if err := w.deps.Sends.Record(rec); err != nil {
		w.log().Database().Warn("Failed to record send", "recipient", lead.Username, "error", err)
	}
}

func (w *Worker) profile() *fingerprint.Profile {
	profile, err := w.deps.Fingerprints.ProfileFor(w.cred.Username)
	if err != nil {
		return nil
	}
	return profile
}

// pauseBeforeDM applies the fingerprint provider's human-timing delay for
// a direct message through the worker's own sleep hook.
func (w *Worker) pauseBeforeDM() {
	if profile := w.profile(); profile != nil {
		w.sleep(w.deps.Fingerprints.DelayBefore(profile, fingerprint.RequestDM))
	}
}

func recipientUsers(userID string) string {
	if n, err := strconv.ParseInt(userID, 10, 64); err == nil {
		b, _ := json.Marshal([][]int64{{n}})
		return string(b)
	}
	b, _ := json.Marshal([][]string{{userID}})
	return string(b)
}

func resultFromResponse(resp map[string]any) *platform.SendResult {
	result := &platform.SendResult{}
	if payload, ok := resp["payload"].(map[string]any); ok {
		result.ThreadID, _ = payload["thread_id"].(string)
		result.ItemID, _ = payload["item_id"].(string)
	}
	if result.ThreadID == "" {
		result.ThreadID, _ = resp["thread_id"].(string)
	}
	return result
}

func splitTargets(input string) []string {
	var out []string
	for _, part := range strings.Split(input, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func dedupSummaries(in []platform.UserSummary) []platform.UserSummary {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s.ID]; ok {
			continue
		}
		seen[s.ID] = struct{}{}
		out = append(out, s)
	}
	return out
}
