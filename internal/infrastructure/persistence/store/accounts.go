package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/gramsender/gramsender-go/internal/domain/outreach"
	"github.com/gramsender/gramsender-go/internal/infrastructure/observability/logging"
	"github.com/gramsender/gramsender-go/internal/infrastructure/persistence/database"
	"github.com/gramsender/gramsender-go/internal/infrastructure/security"
)

// AccountRepository stores account credentials with authentication material
// encrypted at rest.
type AccountRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
	encKey string
}

// NewAccountRepository creates a repository encrypting secrets with a key
// derived from passphrase.
func NewAccountRepository(db *database.DB, logger *logging.ChanneledLogger, passphrase string) *AccountRepository {
	encKey := ""
	if passphrase != "" {
		encKey = security.DeriveKey(passphrase)
	}
	return &AccountRepository{db: db, logger: logger, encKey: encKey}
}

func (r *AccountRepository) seal(plain string) (string, error) {
	if plain == "" || r.encKey == "" {
		return plain, nil
	}
	return security.Encrypt(plain, r.encKey)
}

func (r *AccountRepository) open(sealed string) string {
	if sealed == "" || r.encKey == "" {
		return sealed
	}
	plain, err := security.Decrypt(sealed, r.encKey)
	if err != nil {
		r.logger.Database().Error("Failed to decrypt account secret", "error", err.Error())
		return ""
	}
	return plain
}

// Upsert inserts or replaces an account.
func (r *AccountRepository) Upsert(cred outreach.AccountCredential) error {
	const query = `
		INSERT INTO accounts (username, display_name, password_enc, session_token_enc, proxy_enc)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			display_name = excluded.display_name,
			password_enc = excluded.password_enc,
			session_token_enc = excluded.session_token_enc,
			proxy_enc = excluded.proxy_enc`

	password, err := r.seal(cred.Password)
	if err != nil {
		return fmt.Errorf("failed to encrypt password: %w", err)
	}
	token, err := r.seal(cred.SessionToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt session token: %w", err)
	}
	proxy, err := r.seal(cred.Proxy)
	if err != nil {
		return fmt.Errorf("failed to encrypt proxy: %w", err)
	}

	start := time.Now()
	_, err = r.db.Exec(query, cred.Username, cred.DisplayName, password, token, proxy)
	if err != nil {
		r.logger.Database().Error("Failed to upsert account", "error", err.Error(), "username", cred.Username)
		return err
	}
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start))
	return nil
}

// Get retrieves one account with decrypted secrets. Returns nil when the
// account does not exist.
func (r *AccountRepository) Get(username string) (*outreach.AccountCredential, error) {
	const query = `
		SELECT username, display_name, password_enc, session_token_enc, proxy_enc
		FROM accounts WHERE username = ?`

	row := r.db.QueryRow(query, username)
	cred, err := r.scan(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Database().Error("Failed to load account", "error", err.Error(), "username", username)
		return nil, err
	}
	return cred, nil
}

// List retrieves all accounts with decrypted secrets.
func (r *AccountRepository) List() ([]outreach.AccountCredential, error) {
	const query = `
		SELECT username, display_name, password_enc, session_token_enc, proxy_enc
		FROM accounts ORDER BY username`

	start := time.Now()
	rows, err := r.db.Query(query)
	if err != nil {
		r.logger.Database().Error("Failed to list accounts", "error", err.Error())
		return nil, err
	}
	defer rows.Close()

	var creds []outreach.AccountCredential
	for rows.Next() {
		cred, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, *cred)
	}
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start))
	return creds, rows.Err()
}

// Delete removes an account.
func (r *AccountRepository) Delete(username string) error {
	const query = `DELETE FROM accounts WHERE username = ?`
	_, err := r.db.Exec(query, username)
	if err != nil {
		r.logger.Database().Error("Failed to delete account", "error", err.Error(), "username", username)
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *AccountRepository) scan(row rowScanner) (*outreach.AccountCredential, error) {
	var cred outreach.AccountCredential
	var password, token, proxy string
	if err := row.Scan(&cred.Username, &cred.DisplayName, &password, &token, &proxy); err != nil {
		return nil, err
	}
	cred.Password = r.open(password)
	cred.SessionToken = r.open(token)
	cred.Proxy = r.open(proxy)
	return &cred, nil
}
