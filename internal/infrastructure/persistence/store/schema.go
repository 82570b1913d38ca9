// Package store provides the concrete SQL-based repositories for accounts,
// campaigns, assignments, sent messages and detected replies.
package store

import (
	"github.com/gramsender/gramsender-go/internal/infrastructure/persistence/database"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		username TEXT PRIMARY KEY,
		display_name TEXT DEFAULT '',
		password_enc TEXT DEFAULT '',
		session_token_enc TEXT DEFAULT '',
		proxy_enc TEXT DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS campaigns (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'draft',
		target_mode TEXT NOT NULL,
		target_input TEXT NOT NULL,
		message_quota INTEGER NOT NULL DEFAULT 0,
		daily_limit INTEGER NOT NULL DEFAULT 0,
		lead_count INTEGER NOT NULL DEFAULT 0,
		followers_threshold INTEGER NOT NULL DEFAULT 0,
		country_filter_enabled INTEGER NOT NULL DEFAULT 0,
		bio_filter_enabled INTEGER NOT NULL DEFAULT 0,
		bio_keywords TEXT DEFAULT '[]',
		gender_filter TEXT DEFAULT 'all',
		message_templates TEXT DEFAULT '[]',
		follow_ups TEXT DEFAULT '[]',
		webhook_url TEXT DEFAULT '',
		messages_sent INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS assignments (
		campaign_id TEXT NOT NULL,
		account_username TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (campaign_id, account_username)
	)`,
	`CREATE TABLE IF NOT EXISTS sends (
		id TEXT PRIMARY KEY,
		campaign_id TEXT NOT NULL,
		campaign_name TEXT DEFAULT '',
		account_username TEXT NOT NULL,
		account_name TEXT DEFAULT '',
		recipient_username TEXT NOT NULL,
		recipient_user_id TEXT DEFAULT '',
		thread_id TEXT DEFAULT '',
		lead_source TEXT DEFAULT '',
		lead_target TEXT DEFAULT '',
		message_preview TEXT DEFAULT '',
		message_type TEXT NOT NULL DEFAULT 'initial',
		follow_up_index INTEGER NOT NULL DEFAULT 0,
		sent_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sends_recipient ON sends (recipient_username, sent_at)`,
	`CREATE TABLE IF NOT EXISTS replies (
		id TEXT PRIMARY KEY,
		account_username TEXT NOT NULL,
		account_name TEXT DEFAULT '',
		campaign_id TEXT DEFAULT '',
		thread_id TEXT DEFAULT '',
		thread_title TEXT DEFAULT '',
		sender_user_id TEXT DEFAULT '',
		sender_username TEXT DEFAULT '',
		reply_text TEXT DEFAULT '',
		replied_to_text TEXT DEFAULT '',
		message_id TEXT DEFAULT '',
		message_type TEXT NOT NULL DEFAULT 'reply',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL DEFAULT ''
	)`,
}

// CreateTables creates all engine tables if they do not exist.
func CreateTables(db *database.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
