package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	xproxy "golang.org/x/net/proxy"

	"github.com/gramsender/gramsender-go/internal/domain/outreach"
)

// RESTClient talks to the platform's private mobile API over HTTPS.
type RESTClient struct {
	baseURL   string
	userAgent string
	headerFn  func() map[string]string
	logger    *slog.Logger

	httpClient *http.Client
	transport  *http.Transport
	jar        *cookiejar.Jar

	userID string
	csrf   string
}

// NewRESTClient builds a client against baseURL. headerFn, when non-nil, is
// consulted on every request for spoofed device metadata headers.
func NewRESTClient(baseURL string, timeout time.Duration, userAgent string, headerFn func() map[string]string, logger *slog.Logger) (*RESTClient, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	transport := &http.Transport{
		MaxIdleConns:        4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 15 * time.Second,
	}
	return &RESTClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		headerFn:  headerFn,
		logger:    logger,
		transport: transport,
		jar:       jar,
		httpClient: &http.Client{
			Timeout:   timeout,
			Jar:       jar,
			Transport: transport,
		},
	}, nil
}

// SetProxy routes subsequent requests through the given proxy URL.
func (c *RESTClient) SetProxy(proxyURL string) error {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("invalid proxy url %q: %w", proxyURL, err)
	}
	switch u.Scheme {
	case "socks5", "socks4":
		var auth *xproxy.Auth
		if u.User != nil {
			pw, _ := u.User.Password()
			auth = &xproxy.Auth{User: u.User.Username(), Password: pw}
		}
		dialer, err := xproxy.SOCKS5("tcp", u.Host, auth, xproxy.Direct)
		if err != nil {
			return fmt.Errorf("failed to create socks dialer: %w", err)
		}
		c.transport.Proxy = nil
		if cd, ok := dialer.(xproxy.ContextDialer); ok {
			c.transport.DialContext = cd.DialContext
		} else {
			c.transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	case "http", "https":
		c.transport.DialContext = nil
		c.transport.Proxy = http.ProxyURL(u)
	default:
		return fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
	return nil
}

// UserID returns the authenticated account's user id.
func (c *RESTClient) UserID() string { return c.userID }

func (c *RESTClient) request(ctx context.Context, op, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return outreach.NewPlatformError(outreach.KindUnknown, op, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-US")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	}
	if c.csrf != "" {
		req.Header.Set("X-CSRFToken", c.csrf)
	}
	if c.headerFn != nil {
		for k, v := range c.headerFn() {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return outreach.NewPlatformError(outreach.KindTransientAuth, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return outreach.NewPlatformError(outreach.KindUnknown, op, err)
	}

	if err := classify(op, resp.StatusCode, raw); err != nil {
		c.logger.Debug("Platform request failed",
			"op", op, "path", path, "status", resp.StatusCode, "error", err)
		return err
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return outreach.NewPlatformError(outreach.KindUnknown, op, fmt.Errorf("decode response: %w", err))
		}
	}
	return nil
}

// classify maps an HTTP response to the engine's error taxonomy. The body
// inspection is best effort; the platform's failure phrasing is not a stable
// contract.
func classify(op string, status int, body []byte) error {
	if status >= 200 && status < 300 {
		var envelope struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &envelope) == nil && envelope.Status == "fail" {
			if err := classifyMessage(op, envelope.Message); err != nil {
				return err
			}
			return outreach.NewPlatformError(outreach.KindUnknown, op, fmt.Errorf("request failed: %s", truncate(envelope.Message, 200)))
		}
		return nil
	}

	text := strings.ToLower(string(body))
	switch {
	case status == http.StatusTooManyRequests:
		return outreach.NewPlatformError(outreach.KindRateLimited, op, fmt.Errorf("http 429: %s", truncate(text, 120)))
	case status == http.StatusUnauthorized:
		return outreach.NewPlatformError(outreach.KindLoginRequired, op, fmt.Errorf("http 401: %s", truncate(text, 120)))
	case status >= 500:
		return outreach.NewPlatformError(outreach.KindTransientAuth, op, fmt.Errorf("http %d: %s", status, truncate(text, 120)))
	case status == http.StatusBadRequest || status == http.StatusForbidden:
		if err := classifyMessage(op, text); err != nil {
			return err
		}
		return outreach.NewPlatformError(outreach.KindUnknown, op, fmt.Errorf("http %d: %s", status, truncate(text, 200)))
	default:
		return outreach.NewPlatformError(outreach.KindUnknown, op, fmt.Errorf("http %d: %s", status, truncate(text, 200)))
	}
}

func classifyMessage(op, message string) error {
	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "challenge_required") || strings.Contains(msg, "checkpoint"):
		return outreach.NewPlatformError(outreach.KindChallengeRequired, op, fmt.Errorf("%s", truncate(msg, 200)))
	case strings.Contains(msg, "login_required"):
		return outreach.NewPlatformError(outreach.KindLoginRequired, op, fmt.Errorf("%s", truncate(msg, 200)))
	case strings.Contains(msg, "bad_password") || strings.Contains(msg, "invalid_user") || strings.Contains(msg, "incorrect"):
		return outreach.NewPlatformError(outreach.KindCredentialsInvalid, op, fmt.Errorf("%s", truncate(msg, 200)))
	case outreach.LooksRateLimited(fmt.Errorf("%s", msg)):
		return outreach.NewPlatformError(outreach.KindRateLimited, op, fmt.Errorf("%s", truncate(msg, 200)))
	case strings.Contains(msg, "blacklist") || strings.Contains(msg, "ip address"):
		return outreach.NewPlatformError(outreach.KindBlacklisted, op, fmt.Errorf("%s", truncate(msg, 200)))
	case strings.Contains(msg, "user not found") || strings.Contains(msg, "can't find an account"):
		return outreach.NewPlatformError(outreach.KindTargetNotFound, op, fmt.Errorf("%s", truncate(msg, 200)))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// PreLoginSync emulates the launcher sync the mobile app issues before login.
func (c *RESTClient) PreLoginSync(ctx context.Context) error {
	form := url.Values{}
	form.Set("id", uuid.NewString())
	form.Set("server_config_retrieval", "1")
	return c.request(ctx, "pre_login_sync", http.MethodPost, "/api/v1/launcher/sync/", form, nil)
}

// Login authenticates with username and password.
func (c *RESTClient) Login(ctx context.Context, username, password, verificationCode string) error {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	form.Set("device_id", uuid.NewString())
	form.Set("login_attempt_count", "0")
	if verificationCode != "" {
		form.Set("verification_code", verificationCode)
	}
	var resp struct {
		LoggedInUser struct {
			PK json.Number `json:"pk"`
		} `json:"logged_in_user"`
	}
	if err := c.request(ctx, "login", http.MethodPost, "/api/v1/accounts/login/", form, &resp); err != nil {
		return err
	}
	c.userID = resp.LoggedInUser.PK.String()
	c.captureCSRF()
	return nil
}

// LoginByToken authenticates with an opaque session token.
func (c *RESTClient) LoginByToken(ctx context.Context, token string) error {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return outreach.NewPlatformError(outreach.KindUnknown, "login_by_token", err)
	}
	c.jar.SetCookies(base, []*http.Cookie{{Name: "sessionid", Value: token, Path: "/"}})
	// The token's leading segment is the user id in the composite form.
	if i := strings.Index(token, "%3A"); i > 0 {
		c.userID = token[:i]
	} else if i := strings.Index(token, ":"); i > 0 {
		c.userID = token[:i]
	}
	if err := c.Probe(ctx); err != nil {
		return err
	}
	c.captureCSRF()
	return nil
}

// InjectSessionCookies installs a decomposed session directly.
func (c *RESTClient) InjectSessionCookies(userID, token, csrf string) error {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return outreach.NewPlatformError(outreach.KindUnknown, "inject_cookies", err)
	}
	c.jar.SetCookies(base, []*http.Cookie{
		{Name: "sessionid", Value: token, Path: "/"},
		{Name: "csrftoken", Value: csrf, Path: "/"},
		{Name: "ds_user_id", Value: userID, Path: "/"},
	})
	c.userID = userID
	c.csrf = csrf
	return nil
}

// RequestChallengeCode asks the platform to deliver a verification code.
func (c *RESTClient) RequestChallengeCode(ctx context.Context, username string, method ChallengeMethod) error {
	form := url.Values{}
	form.Set("username", username)
	if method == ChallengeSMS {
		form.Set("choice", "0")
	} else {
		form.Set("choice", "1")
	}
	return c.request(ctx, "challenge_request", http.MethodPost, "/api/v1/challenge/", form, nil)
}

// SubmitChallengeCode completes interactive verification.
func (c *RESTClient) SubmitChallengeCode(ctx context.Context, username string, method ChallengeMethod, code string) error {
	form := url.Values{}
	form.Set("username", username)
	form.Set("security_code", code)
	return c.request(ctx, "challenge_submit", http.MethodPost, "/api/v1/challenge/", form, nil)
}

// Probe validates the session with a lightweight timeline fetch.
func (c *RESTClient) Probe(ctx context.Context) error {
	return c.request(ctx, "probe", http.MethodGet, "/api/v1/feed/timeline/", nil, nil)
}

// PostLoginWarm emulates the app's cold-start feed fetches, reels tray first.
func (c *RESTClient) PostLoginWarm(ctx context.Context) error {
	_ = c.request(ctx, "reels_tray", http.MethodGet, "/api/v1/feed/reels_tray/", nil, nil)
	return c.request(ctx, "timeline", http.MethodGet, "/api/v1/feed/timeline/", nil, nil)
}

// Relogin re-authenticates reusing the current session cookies.
func (c *RESTClient) Relogin(ctx context.Context) error {
	form := url.Values{}
	form.Set("_uuid", uuid.NewString())
	return c.request(ctx, "relogin", http.MethodPost, "/api/v1/accounts/relogin/", form, nil)
}

func (c *RESTClient) captureCSRF() {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return
	}
	for _, ck := range c.jar.Cookies(base) {
		if ck.Name == "csrftoken" {
			c.csrf = ck.Value
		}
		if ck.Name == "ds_user_id" && c.userID == "" {
			c.userID = ck.Value
		}
	}
}

// UserInfoByUsername fetches the enriched profile for a handle.
func (c *RESTClient) UserInfoByUsername(ctx context.Context, username string) (*UserInfo, error) {
	var resp struct {
		User UserInfo `json:"user"`
	}
	path := fmt.Sprintf("/api/v1/users/%s/usernameinfo/", url.PathEscape(username))
	if err := c.request(ctx, "user_info_by_username", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// UserInfoByID fetches the enriched profile for a user id.
func (c *RESTClient) UserInfoByID(ctx context.Context, userID string) (*UserInfo, error) {
	var resp struct {
		User UserInfo `json:"user"`
	}
	path := fmt.Sprintf("/api/v1/users/%s/info/", url.PathEscape(userID))
	if err := c.request(ctx, "user_info", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// UserFollowers enumerates up to amount followers of the given user.
func (c *RESTClient) UserFollowers(ctx context.Context, userID string, amount int) ([]UserSummary, error) {
	return c.friendships(ctx, "user_followers", userID, "followers", amount)
}

// UserFollowing enumerates up to amount accounts the given user follows.
func (c *RESTClient) UserFollowing(ctx context.Context, userID string, amount int) ([]UserSummary, error) {
	return c.friendships(ctx, "user_following", userID, "following", amount)
}

func (c *RESTClient) friendships(ctx context.Context, op, userID, direction string, amount int) ([]UserSummary, error) {
	var resp struct {
		Users []UserSummary `json:"users"`
	}
	path := fmt.Sprintf("/api/v1/friendships/%s/%s/?count=%d", url.PathEscape(userID), direction, amount)
	if err := c.request(ctx, op, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// HashtagRecentAuthors returns the authors of recent posts under a hashtag.
func (c *RESTClient) HashtagRecentAuthors(ctx context.Context, hashtag string, amount int) ([]UserSummary, error) {
	var resp struct {
		Items []struct {
			User UserSummary `json:"user"`
		} `json:"items"`
	}
	path := fmt.Sprintf("/api/v1/feed/tag/%s/?count=%d", url.PathEscape(hashtag), amount)
	if err := c.request(ctx, "hashtag_recent", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(resp.Items))
	users := make([]UserSummary, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.User.ID == "" || seen[item.User.ID] {
			continue
		}
		seen[item.User.ID] = true
		users = append(users, item.User)
	}
	return users, nil
}

// DirectSend is the primary structured direct message send.
func (c *RESTClient) DirectSend(ctx context.Context, userID, text string) (*SendResult, error) {
	form := url.Values{}
	form.Set("recipient_users", fmt.Sprintf("[[%s]]", userID))
	form.Set("client_context", uuid.NewString())
	form.Set("text", text)
	form.Set("action", "send_item")
	var resp struct {
		Payload SendResult `json:"payload"`
	}
	if err := c.request(ctx, "direct_send", http.MethodPost, "/api/v1/direct_v2/threads/broadcast/text/", form, &resp); err != nil {
		return nil, err
	}
	return &resp.Payload, nil
}

// DirectSendText is the alternate structured send against the v1 endpoint.
func (c *RESTClient) DirectSendText(ctx context.Context, userID, text string) (*SendResult, error) {
	form := url.Values{}
	form.Set("recipient_users", fmt.Sprintf("[[%s]]", userID))
	form.Set("client_context", uuid.NewString())
	form.Set("message", text)
	form.Set("action", "send_item")
	var resp struct {
		Payload SendResult `json:"payload"`
	}
	if err := c.request(ctx, "direct_send_text", http.MethodPost, "/api/v1/direct_v1/threads/broadcast/text/", form, &resp); err != nil {
		return nil, err
	}
	return &resp.Payload, nil
}

// PrivateRequest issues a raw form POST against a private API endpoint.
func (c *RESTClient) PrivateRequest(ctx context.Context, endpoint string, formValues map[string]string) (map[string]any, error) {
	form := url.Values{}
	for k, v := range formValues {
		form.Set(k, v)
	}
	var resp map[string]any
	path := "/api/v1/" + strings.TrimLeft(endpoint, "/")
	if err := c.request(ctx, "private_request", http.MethodPost, path, form, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// DirectThreads fetches the inbox, optionally restricted to unread threads.
func (c *RESTClient) DirectThreads(ctx context.Context, amount int, unreadOnly bool) ([]Thread, error) {
	path := fmt.Sprintf("/api/v1/direct_v2/inbox/?thread_message_limit=1&limit=%d", amount)
	if unreadOnly {
		path += "&selected_filter=unread"
	}
	var resp struct {
		Inbox struct {
			Threads []struct {
				ThreadID    string `json:"thread_id"`
				ThreadTitle string `json:"thread_title"`
				LastSeenAt  map[string]struct {
					Timestamp string `json:"timestamp"`
				} `json:"last_seen_at"`
			} `json:"threads"`
		} `json:"inbox"`
	}
	if err := c.request(ctx, "direct_threads", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	threads := make([]Thread, 0, len(resp.Inbox.Threads))
	for _, t := range resp.Inbox.Threads {
		thread := Thread{ID: t.ThreadID, Title: t.ThreadTitle, LastSeenAt: make(map[string]int64)}
		for user, seen := range t.LastSeenAt {
			// Watermarks arrive as microsecond strings.
			if us, err := strconv.ParseInt(seen.Timestamp, 10, 64); err == nil {
				thread.LastSeenAt[user] = us / 1_000_000
			}
		}
		threads = append(threads, thread)
	}
	return threads, nil
}

// DirectMessages fetches the most recent messages in a thread.
func (c *RESTClient) DirectMessages(ctx context.Context, threadID string, amount int) ([]Message, error) {
	path := fmt.Sprintf("/api/v1/direct_v2/threads/%s/?limit=%d", url.PathEscape(threadID), amount)
	var resp struct {
		Thread struct {
			Items []struct {
				ItemID    string      `json:"item_id"`
				UserID    json.Number `json:"user_id"`
				Text      string      `json:"text"`
				Timestamp string      `json:"timestamp"`
				RepliedTo *struct {
					Text string `json:"text"`
				} `json:"replied_to_message"`
			} `json:"items"`
		} `json:"thread"`
	}
	if err := c.request(ctx, "direct_messages", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	messages := make([]Message, 0, len(resp.Thread.Items))
	for _, item := range resp.Thread.Items {
		msg := Message{
			ID:       item.ItemID,
			ThreadID: threadID,
			UserID:   item.UserID.String(),
			Text:     item.Text,
		}
		if us, err := strconv.ParseInt(item.Timestamp, 10, 64); err == nil {
			msg.Timestamp = time.Unix(us/1_000_000, 0)
		}
		if item.RepliedTo != nil {
			msg.IsReply = true
			msg.RepliedToText = item.RepliedTo.Text
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

type sessionState struct {
	UserID    string            `json:"userId"`
	CSRF      string            `json:"csrf"`
	UserAgent string            `json:"userAgent"`
	Cookies   map[string]string `json:"cookies"`
}

// ExportSession serializes cookies and identity for persistence.
func (c *RESTClient) ExportSession() ([]byte, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	state := sessionState{
		UserID:    c.userID,
		CSRF:      c.csrf,
		UserAgent: c.userAgent,
		Cookies:   make(map[string]string),
	}
	for _, ck := range c.jar.Cookies(base) {
		state.Cookies[ck.Name] = ck.Value
	}
	return json.Marshal(state)
}

// RestoreSession loads previously exported session state.
func (c *RESTClient) RestoreSession(data []byte) error {
	var state sessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to decode session state: %w", err)
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return err
	}
	cookies := make([]*http.Cookie, 0, len(state.Cookies))
	for name, value := range state.Cookies {
		cookies = append(cookies, &http.Cookie{Name: name, Value: value, Path: "/"})
	}
	c.jar.SetCookies(base, cookies)
	c.userID = state.UserID
	c.csrf = state.CSRF
	if state.UserAgent != "" {
		c.userAgent = state.UserAgent
	}
	return nil
}
