package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/gramsender/gramsender-go/internal/domain/outreach"
	"github.com/gramsender/gramsender-go/internal/infrastructure/observability/logging"
	"github.com/gramsender/gramsender-go/internal/infrastructure/persistence/database"
)

// CampaignRepository stores campaign specifications. Template and follow-up
// lists are serialized as JSON columns.
type CampaignRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewCampaignRepository creates a new instance of the repository.
func NewCampaignRepository(db *database.DB, logger *logging.ChanneledLogger) *CampaignRepository {
	return &CampaignRepository{db: db, logger: logger}
}

// Upsert inserts or replaces a campaign.
func (r *CampaignRepository) Upsert(c outreach.CampaignSpec) error {
	const query = `
		INSERT INTO campaigns (
			id, name, status, target_mode, target_input,
			message_quota, daily_limit, lead_count,
			followers_threshold, country_filter_enabled, bio_filter_enabled,
			bio_keywords, gender_filter, message_templates, follow_ups,
			webhook_url, messages_sent, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			target_mode = excluded.target_mode,
			target_input = excluded.target_input,
			message_quota = excluded.message_quota,
			daily_limit = excluded.daily_limit,
			lead_count = excluded.lead_count,
			followers_threshold = excluded.followers_threshold,
			country_filter_enabled = excluded.country_filter_enabled,
			bio_filter_enabled = excluded.bio_filter_enabled,
			bio_keywords = excluded.bio_keywords,
			gender_filter = excluded.gender_filter,
			message_templates = excluded.message_templates,
			follow_ups = excluded.follow_ups,
			webhook_url = excluded.webhook_url,
			messages_sent = excluded.messages_sent,
			updated_at = CURRENT_TIMESTAMP`

	keywords, _ := json.Marshal(c.BioKeywords)
	templates, _ := json.Marshal(c.MessageTemplates)
	followUps, _ := json.Marshal(c.FollowUps)

	start := time.Now()
	_, err := r.db.Exec(query,
		c.ID, c.Name, string(c.Status), int(c.TargetMode), c.TargetInput,
		c.MessageQuota, c.DailyLimit, c.LeadCount,
		c.FollowersThreshold, boolToInt(c.CountryFilterEnabled), boolToInt(c.BioFilterEnabled),
		string(keywords), c.GenderFilter, string(templates), string(followUps),
		c.WebhookURL, c.MessagesSent)
	if err != nil {
		r.logger.Database().Error("Failed to upsert campaign", "error", err.Error(), "id", c.ID)
		return err
	}
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start))
	return nil
}

const campaignColumns = `
	id, name, status, target_mode, target_input,
	message_quota, daily_limit, lead_count,
	followers_threshold, country_filter_enabled, bio_filter_enabled,
	bio_keywords, gender_filter, message_templates, follow_ups,
	webhook_url, messages_sent`

// Get retrieves a campaign by id. Returns nil when not found.
func (r *CampaignRepository) Get(id string) (*outreach.CampaignSpec, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = ?`

	row := r.db.QueryRow(query, id)
	c, err := r.scan(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Database().Error("Failed to load campaign", "error", err.Error(), "id", id)
		return nil, err
	}
	return c, nil
}

// List retrieves all campaigns.
func (r *CampaignRepository) List() ([]outreach.CampaignSpec, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns ORDER BY created_at DESC`
	return r.query(query)
}

// ListByStatus retrieves all campaigns with the given status.
func (r *CampaignRepository) ListByStatus(status outreach.CampaignStatus) ([]outreach.CampaignSpec, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE status = ? ORDER BY created_at DESC`
	return r.query(query, string(status))
}

func (r *CampaignRepository) query(query string, args ...any) ([]outreach.CampaignSpec, error) {
	start := time.Now()
	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Database().Error("Failed to query campaigns", "error", err.Error())
		return nil, err
	}
	defer rows.Close()

	var campaigns []outreach.CampaignSpec
	for rows.Next() {
		c, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *c)
	}
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start))
	return campaigns, rows.Err()
}

// UpdateStatus transitions a campaign's lifecycle status.
func (r *CampaignRepository) UpdateStatus(id string, status outreach.CampaignStatus) error {
	const query = `UPDATE campaigns SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	_, err := r.db.Exec(query, string(status), id)
	if err != nil {
		r.logger.Database().Error("Failed to update campaign status",
			"error", err.Error(), "id", id, "status", status)
		return err
	}
	r.logger.Database().Info("Campaign status updated", "id", id, "status", status)
	return nil
}

// AddMessagesSent increments the campaign's cumulative send counter.
func (r *CampaignRepository) AddMessagesSent(id string, delta int) error {
	const query = `UPDATE campaigns SET messages_sent = messages_sent + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	_, err := r.db.Exec(query, delta, id)
	if err != nil {
		r.logger.Database().Error("Failed to increment messages sent", "error", err.Error(), "id", id)
	}
	return err
}

// Delete removes a campaign and its assignments.
func (r *CampaignRepository) Delete(id string) error {
	if _, err := r.db.Exec(`DELETE FROM assignments WHERE campaign_id = ?`, id); err != nil {
		return err
	}
	_, err := r.db.Exec(`DELETE FROM campaigns WHERE id = ?`, id)
	if err != nil {
		r.logger.Database().Error("Failed to delete campaign", "error", err.Error(), "id", id)
	}
	return err
}

func (r *CampaignRepository) scan(row rowScanner) (*outreach.CampaignSpec, error) {
	var c outreach.CampaignSpec
	var status, keywords, templates, followUps string
	var mode, countryFilter, bioFilter int
	err := row.Scan(
		&c.ID, &c.Name, &status, &mode, &c.TargetInput,
		&c.MessageQuota, &c.DailyLimit, &c.LeadCount,
		&c.FollowersThreshold, &countryFilter, &bioFilter,
		&keywords, &c.GenderFilter, &templates, &followUps,
		&c.WebhookURL, &c.MessagesSent)
	if err != nil {
		return nil, err
	}
	c.Status = outreach.CampaignStatus(status)
	c.TargetMode = outreach.TargetMode(mode)
	c.CountryFilterEnabled = countryFilter != 0
	c.BioFilterEnabled = bioFilter != 0
	if err := json.Unmarshal([]byte(keywords), &c.BioKeywords); err != nil {
		r.logger.Database().Warn("Malformed bio_keywords column", "id", c.ID, "error", err.Error())
	}
	if err := json.Unmarshal([]byte(templates), &c.MessageTemplates); err != nil {
		r.logger.Database().Warn("Malformed message_templates column", "id", c.ID, "error", err.Error())
	}
	if err := json.Unmarshal([]byte(followUps), &c.FollowUps); err != nil {
		r.logger.Database().Warn("Malformed follow_ups column", "id", c.ID, "error", err.Error())
	}
	return &c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
