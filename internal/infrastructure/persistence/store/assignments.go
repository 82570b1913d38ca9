package store

import (
	"github.com/gramsender/gramsender-go/internal/infrastructure/observability/logging"
	"github.com/gramsender/gramsender-go/internal/infrastructure/persistence/database"
)

// AssignmentRepository stores which accounts run which campaigns.
type AssignmentRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewAssignmentRepository creates a new instance of the repository.
func NewAssignmentRepository(db *database.DB, logger *logging.ChanneledLogger) *AssignmentRepository {
	return &AssignmentRepository{db: db, logger: logger}
}

// Assign binds an account to a campaign. Idempotent.
func (r *AssignmentRepository) Assign(campaignID, username string) error {
	const query = `
		INSERT INTO assignments (campaign_id, account_username) VALUES (?, ?)
		ON CONFLICT(campaign_id, account_username) DO NOTHING`
	_, err := r.db.Exec(query, campaignID, username)
	if err != nil {
		r.logger.Database().Error("Failed to assign account",
			"error", err.Error(), "campaignId", campaignID, "username", username)
	}
	return err
}

// Unassign removes an account from a campaign.
func (r *AssignmentRepository) Unassign(campaignID, username string) error {
	const query = `DELETE FROM assignments WHERE campaign_id = ? AND account_username = ?`
	_, err := r.db.Exec(query, campaignID, username)
	return err
}

// AccountsFor lists the usernames assigned to a campaign.
func (r *AssignmentRepository) AccountsFor(campaignID string) ([]string, error) {
	const query = `SELECT account_username FROM assignments WHERE campaign_id = ? ORDER BY account_username`
	rows, err := r.db.Query(query, campaignID)
	if err != nil {
		r.logger.Database().Error("Failed to list assignments", "error", err.Error(), "campaignId", campaignID)
		return nil, err
	}
	defer rows.Close()

	var usernames []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		usernames = append(usernames, u)
	}
	return usernames, rows.Err()
}

// All returns every assignment as campaign id -> usernames.
func (r *AssignmentRepository) All() (map[string][]string, error) {
	const query = `SELECT campaign_id, account_username FROM assignments`
	rows, err := r.db.Query(query)
	if err != nil {
		r.logger.Database().Error("Failed to list all assignments", "error", err.Error())
		return nil, err
	}
	defer rows.Close()

	assignments := make(map[string][]string)
	for rows.Next() {
		var campaignID, username string
		if err := rows.Scan(&campaignID, &username); err != nil {
			return nil, err
		}
		assignments[campaignID] = append(assignments[campaignID], username)
	}
	return assignments, rows.Err()
}
