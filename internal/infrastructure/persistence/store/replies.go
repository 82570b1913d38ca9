package store

import (
	"time"

	"github.com/gramsender/gramsender-go/internal/domain/outreach"
	"github.com/gramsender/gramsender-go/internal/infrastructure/observability/logging"
	"github.com/gramsender/gramsender-go/internal/infrastructure/persistence/database"
	"github.com/gramsender/gramsender-go/internal/infrastructure/security"
)

// ReplyRepository stores detected replies and inbound messages.
type ReplyRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewReplyRepository creates a new instance of the repository.
func NewReplyRepository(db *database.DB, logger *logging.ChanneledLogger) *ReplyRepository {
	return &ReplyRepository{db: db, logger: logger}
}

// Record persists one detected reply. A missing id is generated.
func (r *ReplyRepository) Record(reply outreach.ReplyRecord) error {
	const query = `
		INSERT INTO replies (
			id, account_username, account_name, campaign_id,
			thread_id, thread_title, sender_user_id, sender_username,
			reply_text, replied_to_text, message_id, message_type, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if reply.ID == "" {
		reply.ID = security.GenerateULID()
	}
	if reply.DetectedAt.IsZero() {
		reply.DetectedAt = time.Now().UTC()
	}

	start := time.Now()
	_, err := r.db.Exec(query,
		reply.ID, reply.AccountUsername, reply.AccountName, reply.CampaignID,
		reply.ThreadID, clip(reply.ThreadTitle, 200), reply.SenderUserID, reply.SenderUsername,
		clip(reply.Text, 2000), clip(reply.RepliedToText, 2000), reply.MessageID,
		string(reply.Kind), reply.DetectedAt)
	if err != nil {
		r.logger.Database().Error("Failed to record reply",
			"error", err.Error(), "account", reply.AccountUsername, "sender", reply.SenderUsername)
		return err
	}
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start))
	return nil
}

// Seen reports whether a platform message id was already recorded, so a
// monitor pass never duplicates a reply.
func (r *ReplyRepository) Seen(messageID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM replies WHERE message_id = ?`
	var count int
	if err := r.db.QueryRow(query, messageID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListRecent returns the most recent replies, newest first.
func (r *ReplyRepository) ListRecent(limit int) ([]outreach.ReplyRecord, error) {
	const query = `
		SELECT id, account_username, account_name, campaign_id,
		       thread_id, thread_title, sender_user_id, sender_username,
		       reply_text, replied_to_text, message_id, message_type, created_at
		FROM replies ORDER BY created_at DESC LIMIT ?`

	rows, err := r.db.Query(query, limitOrDefault(limit))
	if err != nil {
		r.logger.Database().Error("Failed to list replies", "error", err.Error())
		return nil, err
	}
	defer rows.Close()

	var replies []outreach.ReplyRecord
	for rows.Next() {
		var reply outreach.ReplyRecord
		var kind string
		err := rows.Scan(
			&reply.ID, &reply.AccountUsername, &reply.AccountName, &reply.CampaignID,
			&reply.ThreadID, &reply.ThreadTitle, &reply.SenderUserID, &reply.SenderUsername,
			&reply.Text, &reply.RepliedToText, &reply.MessageID, &kind, &reply.DetectedAt)
		if err != nil {
			return nil, err
		}
		reply.Kind = outreach.ReplyKind(kind)
		replies = append(replies, reply)
	}
	return replies, rows.Err()
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
