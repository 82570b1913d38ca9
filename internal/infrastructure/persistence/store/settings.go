package store

import (
	"database/sql"
	"encoding/json"

	"github.com/gramsender/gramsender-go/internal/infrastructure/observability/logging"
	"github.com/gramsender/gramsender-go/internal/infrastructure/persistence/database"
)

// GlobalSettings are operator-editable runtime settings that override the
// environment defaults.
type GlobalSettings struct {
	GlobalWebhookURL string   `json:"globalWebhookUrl"`
	WebhookSecret    string   `json:"webhookSecret"`
	WebhookEvents    []string `json:"webhookEvents"`
	AlertEmail       string   `json:"alertEmail"`
}

const globalSettingsKey = "global"

// SettingsRepository stores operator settings as a JSON value per key.
type SettingsRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSettingsRepository creates a new instance of the repository.
func NewSettingsRepository(db *database.DB, logger *logging.ChanneledLogger) *SettingsRepository {
	return &SettingsRepository{db: db, logger: logger}
}

// Load returns the stored global settings, zero-valued when none exist.
func (r *SettingsRepository) Load() (GlobalSettings, error) {
	const query = `SELECT value FROM settings WHERE key = ?`

	var raw string
	var settings GlobalSettings
	err := r.db.QueryRow(query, globalSettingsKey).Scan(&raw)
	if err != nil {
		if err == sql.ErrNoRows {
			return settings, nil
		}
		r.logger.Database().Error("Failed to load settings", "error", err.Error())
		return settings, err
	}
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		r.logger.Database().Warn("Malformed settings value, using defaults", "error", err.Error())
	}
	return settings, nil
}

// Save stores the global settings.
func (r *SettingsRepository) Save(settings GlobalSettings) error {
	const query = `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`

	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(query, globalSettingsKey, string(raw))
	if err != nil {
		r.logger.Database().Error("Failed to save settings", "error", err.Error())
	}
	return err
}
