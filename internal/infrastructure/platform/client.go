// Package platform abstracts the social platform's private mobile API behind
// a client interface so the engine can run against the real endpoint or a
// scripted fake.
package platform

import "context"

// Client is one authenticated (or authenticating) connection for a single
// account. Implementations are not safe for concurrent use; each worker owns
// its own client.
type Client interface {
	// SetProxy routes all subsequent requests through the given proxy URL
	// (http, https, socks5).
	SetProxy(proxyURL string) error

	// PreLoginSync emulates the mobile app's launcher sync performed before
	// a credential login.
	PreLoginSync(ctx context.Context) error

	// Login authenticates with username/password. verificationCode may be
	// empty when two-factor is not configured.
	Login(ctx context.Context, username, password, verificationCode string) error

	// LoginByToken authenticates with an opaque session token.
	LoginByToken(ctx context.Context, token string) error

	// InjectSessionCookies installs a decomposed session (user id, token,
	// csrf) directly, bypassing the login endpoints.
	InjectSessionCookies(userID, token, csrf string) error

	// RequestChallengeCode asks the platform to deliver a verification code
	// over the given method.
	RequestChallengeCode(ctx context.Context, username string, method ChallengeMethod) error

	// SubmitChallengeCode completes interactive verification with a code the
	// operator supplied.
	SubmitChallengeCode(ctx context.Context, username string, method ChallengeMethod, code string) error

	// Probe performs a lightweight authenticated request proving the session
	// is live.
	Probe(ctx context.Context) error

	// PostLoginWarm emulates the mobile app's feed fetches after login.
	PostLoginWarm(ctx context.Context) error

	// Relogin performs a lightweight re-login with the current settings.
	Relogin(ctx context.Context) error

	// UserID returns the authenticated account's user id, empty before login.
	UserID() string

	// ExportSession serializes the full session state for persistence.
	ExportSession() ([]byte, error)

	// RestoreSession loads previously exported session state.
	RestoreSession(data []byte) error

	UserInfoByUsername(ctx context.Context, username string) (*UserInfo, error)
	UserInfoByID(ctx context.Context, userID string) (*UserInfo, error)
	UserFollowers(ctx context.Context, userID string, amount int) ([]UserSummary, error)
	UserFollowing(ctx context.Context, userID string, amount int) ([]UserSummary, error)
	HashtagRecentAuthors(ctx context.Context, hashtag string, amount int) ([]UserSummary, error)

	// DirectSend is the primary structured send.
	DirectSend(ctx context.Context, userID, text string) (*SendResult, error)
	// DirectSendText is the alternate structured send endpoint.
	DirectSendText(ctx context.Context, userID, text string) (*SendResult, error)
	// PrivateRequest issues a raw form POST against a private API endpoint
	// and returns the decoded response body.
	PrivateRequest(ctx context.Context, endpoint string, form map[string]string) (map[string]any, error)

	DirectThreads(ctx context.Context, amount int, unreadOnly bool) ([]Thread, error)
	DirectMessages(ctx context.Context, threadID string, amount int) ([]Message, error)
}

// Dialer creates a fresh unauthenticated client for an account. The session
// manager uses it for initial logins and for proxy-fallback attempts that
// need a clean connection.
type Dialer interface {
	Dial(username string) (Client, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(username string) (Client, error)

func (f DialerFunc) Dial(username string) (Client, error) { return f(username) }
