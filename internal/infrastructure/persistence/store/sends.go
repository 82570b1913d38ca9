package store

import (
	"database/sql"
	"time"

	"github.com/gramsender/gramsender-go/internal/domain/outreach"
	"github.com/gramsender/gramsender-go/internal/infrastructure/observability/logging"
	"github.com/gramsender/gramsender-go/internal/infrastructure/persistence/database"
	"github.com/gramsender/gramsender-go/internal/infrastructure/security"
)

// SendRepository stores delivered messages for reply attribution and
// operator reporting.
type SendRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSendRepository creates a new instance of the repository.
func NewSendRepository(db *database.DB, logger *logging.ChanneledLogger) *SendRepository {
	return &SendRepository{db: db, logger: logger}
}

// Record persists one delivered message. A missing id is generated.
func (r *SendRepository) Record(s outreach.SendRecord) error {
	const query = `
		INSERT INTO sends (
			id, campaign_id, campaign_name, account_username, account_name,
			recipient_username, recipient_user_id, thread_id,
			lead_source, lead_target, message_preview, message_type, follow_up_index, sent_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if s.ID == "" {
		s.ID = security.GenerateULID()
	}
	if s.SentAt.IsZero() {
		s.SentAt = time.Now().UTC()
	}
	preview := s.MessagePreview
	if len(preview) > 500 {
		preview = preview[:500]
	}

	start := time.Now()
	_, err := r.db.Exec(query,
		s.ID, s.CampaignID, s.CampaignName, s.AccountUsername, s.AccountName,
		s.RecipientUsername, s.RecipientUserID, s.ThreadID,
		s.LeadSource, s.LeadTarget, preview, s.MessageType, s.FollowUpIndex, s.SentAt)
	if err != nil {
		r.logger.Database().Error("Failed to record send",
			"error", err.Error(), "campaignId", s.CampaignID, "recipient", s.RecipientUsername)
		return err
	}
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start))
	return nil
}

// LatestSendToUser returns the campaign id and recorded username of the most
// recent send to a recipient user id, both empty when none exists. Inbox
// messages carry only numeric sender ids, so attribution keys on the id.
func (r *SendRepository) LatestSendToUser(recipientUserID string) (string, string, error) {
	const query = `
		SELECT campaign_id, recipient_username FROM sends
		WHERE recipient_user_id = ?
		ORDER BY sent_at DESC LIMIT 1`

	var campaignID, username string
	err := r.db.QueryRow(query, recipientUserID).Scan(&campaignID, &username)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", "", nil
		}
		r.logger.Database().Error("Failed to look up campaign for recipient",
			"error", err.Error(), "recipientId", recipientUserID)
		return "", "", err
	}
	return campaignID, username, nil
}

const sendColumns = `
	id, campaign_id, campaign_name, account_username, account_name,
	recipient_username, recipient_user_id, thread_id,
	lead_source, lead_target, message_preview, message_type, follow_up_index, sent_at`

// ListByCampaign returns sends for one campaign, newest first.
func (r *SendRepository) ListByCampaign(campaignID string, limit int) ([]outreach.SendRecord, error) {
	query := `SELECT ` + sendColumns + ` FROM sends WHERE campaign_id = ? ORDER BY sent_at DESC LIMIT ?`
	return r.query(query, campaignID, limitOrDefault(limit))
}

// ListRecent returns the most recent sends across all campaigns.
func (r *SendRepository) ListRecent(limit int) ([]outreach.SendRecord, error) {
	query := `SELECT ` + sendColumns + ` FROM sends ORDER BY sent_at DESC LIMIT ?`
	return r.query(query, limitOrDefault(limit))
}

// CountToday returns how many initial sends an account made since local
// midnight, for daily-cap enforcement.
func (r *SendRepository) CountToday(accountUsername string) (int, error) {
	const query = `
		SELECT COUNT(*) FROM sends
		WHERE account_username = ? AND message_type = 'initial' AND sent_at >= ?`

	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var count int
	if err := r.db.QueryRow(query, accountUsername, midnight).Scan(&count); err != nil {
		r.logger.Database().Error("Failed to count daily sends",
			"error", err.Error(), "username", accountUsername)
		return 0, err
	}
	return count, nil
}

func (r *SendRepository) query(query string, args ...any) ([]outreach.SendRecord, error) {
	start := time.Now()
	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Database().Error("Failed to query sends", "error", err.Error())
		return nil, err
	}
	defer rows.Close()

	var sends []outreach.SendRecord
	for rows.Next() {
		var s outreach.SendRecord
		err := rows.Scan(
			&s.ID, &s.CampaignID, &s.CampaignName, &s.AccountUsername, &s.AccountName,
			&s.RecipientUsername, &s.RecipientUserID, &s.ThreadID,
			&s.LeadSource, &s.LeadTarget, &s.MessagePreview, &s.MessageType, &s.FollowUpIndex, &s.SentAt)
		if err != nil {
			return nil, err
		}
		sends = append(sends, s)
	}
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start))
	return sends, rows.Err()
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}
