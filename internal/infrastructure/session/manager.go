// Package session implements the per-account login state machine: restore a
// saved session, else authenticate by opaque token, else username/password
// with retries, proxy fallback, and interactive verification handling.
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gramsender/gramsender-go/internal/domain/outreach"
	"github.com/gramsender/gramsender-go/internal/infrastructure/fingerprint"
	"github.com/gramsender/gramsender-go/internal/infrastructure/observability/logging"
	"github.com/gramsender/gramsender-go/internal/infrastructure/platform"
	"github.com/gramsender/gramsender-go/internal/infrastructure/security"
)

// CodeRequester obtains a verification code from an external actor. It
// returns ok=false when no code could be obtained within bounds.
type CodeRequester func(username string, method platform.ChallengeMethod) (code string, ok bool)

// passwordBackoff is the retry schedule for transient server errors during
// password login.
var passwordBackoff = []time.Duration{30 * time.Second, 60 * time.Second, 120 * time.Second}

// Options configures a session Manager.
type Options struct {
	SessionsDir     string
	FallbackProxies []string
	TwoFactorCode   string
	EncryptionKey   string
}

// Manager owns session restoration and authentication for all accounts.
type Manager struct {
	dialer       platform.Dialer
	fingerprints *fingerprint.Provider
	logger       *logging.ChanneledLogger
	opts         Options
	encKey       string

	// sleep is swapped in tests to skip real backoff waits.
	sleep func(time.Duration)
}

// Session is one authenticated client bound to an account.
type Session struct {
	Username string
	Client   platform.Client

	mgr  *Manager
	cred outreach.AccountCredential
}

// NewManager creates a session manager persisting session blobs under
// opts.SessionsDir, encrypted with a key derived from opts.EncryptionKey.
func NewManager(dialer platform.Dialer, fingerprints *fingerprint.Provider, logger *logging.ChanneledLogger, opts Options) *Manager {
	encKey := ""
	if opts.EncryptionKey != "" {
		encKey = security.DeriveKey(opts.EncryptionKey)
	}
	return &Manager{
		dialer:       dialer,
		fingerprints: fingerprints,
		logger:       logger,
		opts:         opts,
		encKey:       encKey,
		sleep:        time.Sleep,
	}
}

func (m *Manager) sessionPath(username string) string {
	return filepath.Join(m.opts.SessionsDir, fmt.Sprintf("%s.session.json", username))
}

// Login runs the full state machine for one account. codeFn resolves
// interactive verification; pass nil to treat any challenge as a failure.
func (m *Manager) Login(ctx context.Context, cred outreach.AccountCredential, codeFn CodeRequester) (*Session, error) {
	log := m.logger.WithAccount(logging.ChannelAuth, cred.Username)

	client, err := m.dialer.Dial(cred.Username)
	if err != nil {
		return nil, outreach.NewPlatformError(outreach.KindUnknown, "dial", err)
	}
	if cred.Proxy != "" {
		if err := client.SetProxy(cred.Proxy); err != nil {
			log.Warn("Failed to apply account proxy", "error", err)
		}
	}

	sess := &Session{Username: cred.Username, Client: client, mgr: m, cred: cred}

	if m.tryLoadSaved(ctx, sess) {
		log.Info("Restored saved session")
		_ = client.PostLoginWarm(ctx)
		return sess, nil
	}

	if cred.SessionToken != "" {
		if m.trySessionToken(ctx, sess) {
			log.Info("Authenticated by session token")
			m.persistSession(sess)
			_ = client.PostLoginWarm(ctx)
			return sess, nil
		}
		log.Warn("Session token login failed, falling back to password")
	}

	if cred.Password == "" {
		return nil, outreach.NewPlatformError(outreach.KindCredentialsInvalid, "login",
			fmt.Errorf("no password and no usable session token for %s", cred.Username))
	}

	if err := m.passwordLogin(ctx, sess, codeFn); err != nil {
		m.discardIdentity(cred.Username)
		return nil, err
	}
	return sess, nil
}

// tryLoadSaved restores a persisted session blob and validates it with a
// probe. Any failure falls through to the next stage.
func (m *Manager) tryLoadSaved(ctx context.Context, sess *Session) bool {
	path := m.sessionPath(sess.Username)
	raw, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	blob := raw
	if m.encKey != "" {
		decrypted, err := security.Decrypt(string(raw), m.encKey)
		if err != nil {
			m.logger.Auth().Warn("Failed to decrypt saved session, discarding",
				"account", sess.Username, "error", err)
			_ = os.Remove(path)
			return false
		}
		blob = []byte(decrypted)
	}
	if err := sess.Client.RestoreSession(blob); err != nil {
		return false
	}
	return sess.Client.Probe(ctx) == nil
}

// trySessionToken attempts the token directly, then its decomposed
// user-id:token:version:csrf form via cookie injection.
func (m *Manager) trySessionToken(ctx context.Context, sess *Session) bool {
	token := strings.TrimSpace(sess.cred.SessionToken)
	if len(token) < 30 {
		return false
	}

	if err := sess.Client.LoginByToken(ctx, token); err == nil {
		if sess.Client.Probe(ctx) == nil {
			return true
		}
	}

	parts := strings.Split(token, ":")
	if len(parts) < 4 {
		return false
	}
	userID, sessionToken, csrf := parts[0], parts[1], parts[3]

	if err := sess.Client.LoginByToken(ctx, sessionToken); err == nil {
		if sess.Client.Probe(ctx) == nil {
			return true
		}
	}

	if err := sess.Client.InjectSessionCookies(userID, sessionToken, csrf); err != nil {
		return false
	}
	return sess.Client.Probe(ctx) == nil
}

// passwordLogin runs up to three attempts with fixed backoff, escalating to
// challenge resolution, proxy fallback, or a terminal failure.
func (m *Manager) passwordLogin(ctx context.Context, sess *Session, codeFn CodeRequester) error {
	log := m.logger.WithAccount(logging.ChannelAuth, sess.Username)

	profile, err := m.fingerprints.ProfileFor(sess.Username)
	if err != nil {
		return outreach.NewPlatformError(outreach.KindUnknown, "fingerprint", err)
	}

	var lastErr error
	for attempt := 0; attempt < len(passwordBackoff); attempt++ {
		if err := ctx.Err(); err != nil {
			return outreach.NewPlatformError(outreach.KindUnknown, "login", err)
		}

		if attempt > 0 {
			m.sleep(m.fingerprints.DelayBefore(profile, fingerprint.RequestLogin))
		}
		_ = sess.Client.PreLoginSync(ctx)

		err := sess.Client.Login(ctx, sess.cred.Username, sess.cred.Password, m.opts.TwoFactorCode)
		if err == nil {
			m.persistSession(sess)
			m.reloadSession(sess)
			_ = sess.Client.PostLoginWarm(ctx)
			log.Info("Password login succeeded", "attempt", attempt+1)
			return nil
		}
		lastErr = err

		switch outreach.Kind(err) {
		case outreach.KindChallengeRequired:
			if m.resolveChallenge(ctx, sess, codeFn) {
				m.persistSession(sess)
				m.reloadSession(sess)
				return nil
			}
			return outreach.NewPlatformError(outreach.KindChallengeRequired, "login",
				fmt.Errorf("verification unresolved for %s: %w", sess.cred.Username, err))
		case outreach.KindLoginRequired:
			return err
		case outreach.KindCredentialsInvalid:
			return err
		case outreach.KindTransientAuth:
			if attempt < len(passwordBackoff)-1 {
				wait := passwordBackoff[attempt]
				log.Warn("Transient login failure, backing off",
					"attempt", attempt+1, "wait", wait, "error", err)
				m.sleep(wait)
				continue
			}
		case outreach.KindBlacklisted, outreach.KindTargetNotFound:
			if len(m.opts.FallbackProxies) > 0 {
				log.Warn("Login blocked, trying fallback proxies", "error", err)
				if proxySess, perr := m.loginWithFallbackProxies(ctx, sess); perr == nil {
					*sess = *proxySess
					return nil
				} else if outreach.IsKind(perr, outreach.KindChallengeRequired) {
					return perr
				}
			}
		}
		break
	}

	return lastErr
}

// resolveChallenge tries email delivery first, then SMS. Either success
// authenticates the session.
func (m *Manager) resolveChallenge(ctx context.Context, sess *Session, codeFn CodeRequester) bool {
	if codeFn == nil {
		return false
	}
	for _, method := range []platform.ChallengeMethod{platform.ChallengeEmail, platform.ChallengeSMS} {
		if err := sess.Client.RequestChallengeCode(ctx, sess.cred.Username, method); err != nil {
			continue
		}
		code, ok := codeFn(sess.cred.Username, method)
		if !ok || code == "" {
			continue
		}
		if err := sess.Client.SubmitChallengeCode(ctx, sess.cred.Username, method, code); err == nil {
			m.logger.Auth().Info("Verification resolved",
				"account", sess.cred.Username, "method", method)
			return true
		}
	}
	return false
}

// loginWithFallbackProxies attempts each configured proxy with a fresh
// client, trying socks5 then http for bare host:port forms.
func (m *Manager) loginWithFallbackProxies(ctx context.Context, sess *Session) (*Session, error) {
	var lastErr error
	for i, raw := range m.opts.FallbackProxies {
		if i > 0 {
			m.sleep(time.Second)
		}
		var candidates []string
		if strings.Contains(raw, "://") {
			candidates = []string{raw}
		} else {
			for _, protocol := range []string{"socks5", "http"} {
				if u, err := formatProxy(raw, protocol); err == nil {
					candidates = append(candidates, u)
				}
			}
		}
		for _, proxyURL := range candidates {
			proxySess, err := m.loginThroughProxy(ctx, sess.cred, proxyURL)
			if err == nil {
				return proxySess, nil
			}
			if outreach.IsKind(err, outreach.KindChallengeRequired) {
				return nil, err
			}
			lastErr = err
		}
	}
	if lastErr == nil {
		lastErr = outreach.NewPlatformError(outreach.KindBlacklisted, "proxy_login",
			fmt.Errorf("no usable fallback proxy for %s", sess.cred.Username))
	}
	return nil, lastErr
}

func (m *Manager) loginThroughProxy(ctx context.Context, cred outreach.AccountCredential, proxyURL string) (*Session, error) {
	client, err := m.dialer.Dial(cred.Username)
	if err != nil {
		return nil, outreach.NewPlatformError(outreach.KindUnknown, "dial", err)
	}
	if err := client.SetProxy(proxyURL); err != nil {
		return nil, outreach.NewPlatformError(outreach.KindUnknown, "proxy_login", err)
	}
	m.sleep(2 * time.Second)
	if err := client.Login(ctx, cred.Username, cred.Password, m.opts.TwoFactorCode); err != nil {
		return nil, err
	}
	proxySess := &Session{Username: cred.Username, Client: client, mgr: m, cred: cred}
	m.persistSession(proxySess)
	_ = client.PostLoginWarm(ctx)
	m.reloadSession(proxySess)
	m.logger.Auth().Info("Authenticated through fallback proxy",
		"account", cred.Username, "proxy", proxyURL)
	return proxySess, nil
}

// formatProxy expands host:port or host:port:user:pass into a full URL.
func formatProxy(raw, protocol string) (string, error) {
	parts := strings.Split(raw, ":")
	switch len(parts) {
	case 2:
		return fmt.Sprintf("%s://%s:%s", protocol, parts[0], parts[1]), nil
	case 4:
		return fmt.Sprintf("%s://%s:%s@%s:%s", protocol, parts[2], parts[3], parts[0], parts[1]), nil
	default:
		return "", fmt.Errorf("invalid proxy format: %s", raw)
	}
}

// persistSession saves the session blob, encrypted when a key is configured.
func (m *Manager) persistSession(sess *Session) {
	blob, err := sess.Client.ExportSession()
	if err != nil {
		m.logger.Auth().Warn("Failed to export session", "account", sess.Username, "error", err)
		return
	}
	if err := os.MkdirAll(m.opts.SessionsDir, 0700); err != nil {
		m.logger.Auth().Warn("Failed to create sessions dir", "error", err)
		return
	}
	data := blob
	if m.encKey != "" {
		encrypted, err := security.Encrypt(string(blob), m.encKey)
		if err != nil {
			m.logger.Auth().Warn("Failed to encrypt session", "account", sess.Username, "error", err)
			return
		}
		data = []byte(encrypted)
	}
	if err := os.WriteFile(m.sessionPath(sess.Username), data, 0600); err != nil {
		m.logger.Auth().Warn("Failed to persist session", "account", sess.Username, "error", err)
	}
}

// reloadSession round-trips the persisted blob back through the client to
// normalize internal state after a fresh login.
func (m *Manager) reloadSession(sess *Session) {
	raw, err := os.ReadFile(m.sessionPath(sess.Username))
	if err != nil {
		return
	}
	blob := raw
	if m.encKey != "" {
		decrypted, err := security.Decrypt(string(raw), m.encKey)
		if err != nil {
			return
		}
		blob = []byte(decrypted)
	}
	_ = sess.Client.RestoreSession(blob)
}

// discardIdentity rotates the fingerprint and deletes the persisted session
// after an unrecoverable login failure.
func (m *Manager) discardIdentity(username string) {
	_ = m.fingerprints.Rotate(username)
	if err := os.Remove(m.sessionPath(username)); err != nil && !os.IsNotExist(err) {
		m.logger.Auth().Warn("Failed to remove stale session", "account", username, "error", err)
	}
}

// Revalidate is called by a worker before a sensitive operation. It attempts
// a lightweight relogin first and falls back to the full state machine,
// deleting the stale session blob.
func (s *Session) Revalidate(ctx context.Context, codeFn CodeRequester) error {
	if err := s.Client.Relogin(ctx); err == nil {
		return nil
	}
	s.mgr.logger.WithAccount(logging.ChannelAuth, s.Username).Warn("Relogin failed, re-authenticating")
	if err := os.Remove(s.mgr.sessionPath(s.Username)); err != nil && !os.IsNotExist(err) {
		s.mgr.logger.Auth().Warn("Failed to remove stale session", "account", s.Username, "error", err)
	}
	fresh, err := s.mgr.Login(ctx, s.cred, codeFn)
	if err != nil {
		return err
	}
	s.Client = fresh.Client
	return nil
}
