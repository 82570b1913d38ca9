package platform

import (
	"context"
	"fmt"
	"sync"
)

// Fake is a scriptable in-memory Client for tests. Zero value behaves as a
// healthy authenticated client with no users.
type Fake struct {
	mu sync.Mutex

	// Scripted behavior. Nil hooks succeed.
	LoginErr        error
	LoginByTokenErr error
	ProbeErr        error
	ReloginErr      error
	ChallengeCodes  map[string]bool // accepted codes

	// DirectSendErrs and DirectSendTextErrs are consumed one error per call;
	// nil entries succeed. After a slice is exhausted, calls succeed.
	DirectSendErrs     []error
	DirectSendTextErrs []error
	PrivateRequestErr  error
	PrivateRequestResp map[string]any

	Users     map[string]*UserInfo     // by username
	UsersByID map[string]*UserInfo     // by user id
	Followers map[string][]UserSummary // by seed user id
	Following map[string][]UserSummary
	Hashtags  map[string][]UserSummary
	Threads   []Thread
	Messages  map[string][]Message // by thread id

	ID string // authenticated user id

	// Call record.
	LoginCalls     int
	ProbeCalls     int
	ReloginCalls   int
	SentMessages   []SentMessage
	ProxiesApplied []string
}

// SentMessage records one successful delivery through the fake.
type SentMessage struct {
	UserID string
	Text   string
	Via    string
}

var _ Client = (*Fake)(nil)

func (f *Fake) SetProxy(proxyURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ProxiesApplied = append(f.ProxiesApplied, proxyURL)
	return nil
}

func (f *Fake) PreLoginSync(ctx context.Context) error { return nil }

func (f *Fake) Login(ctx context.Context, username, password, verificationCode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LoginCalls++
	return f.LoginErr
}

func (f *Fake) LoginByToken(ctx context.Context, token string) error {
	return f.LoginByTokenErr
}

func (f *Fake) InjectSessionCookies(userID, token, csrf string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ID = userID
	return nil
}

func (f *Fake) RequestChallengeCode(ctx context.Context, username string, method ChallengeMethod) error {
	return nil
}

func (f *Fake) SubmitChallengeCode(ctx context.Context, username string, method ChallengeMethod, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ChallengeCodes != nil && f.ChallengeCodes[code] {
		return nil
	}
	return fmt.Errorf("challenge code rejected")
}

func (f *Fake) Probe(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ProbeCalls++
	return f.ProbeErr
}

func (f *Fake) PostLoginWarm(ctx context.Context) error { return nil }

func (f *Fake) Relogin(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ReloginCalls++
	return f.ReloginErr
}

func (f *Fake) UserID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ID == "" {
		return "1"
	}
	return f.ID
}

func (f *Fake) ExportSession() ([]byte, error) { return []byte(`{"fake":true}`), nil }

func (f *Fake) RestoreSession(data []byte) error { return nil }

func (f *Fake) UserInfoByUsername(ctx context.Context, username string) (*UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.Users[username]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("user not found: %s", username)
}

func (f *Fake) UserInfoByID(ctx context.Context, userID string) (*UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.UsersByID[userID]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("user not found: %s", userID)
}

func (f *Fake) UserFollowers(ctx context.Context, userID string, amount int) ([]UserSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return capped(f.Followers[userID], amount), nil
}

func (f *Fake) UserFollowing(ctx context.Context, userID string, amount int) ([]UserSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return capped(f.Following[userID], amount), nil
}

func (f *Fake) HashtagRecentAuthors(ctx context.Context, hashtag string, amount int) ([]UserSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return capped(f.Hashtags[hashtag], amount), nil
}

func capped(users []UserSummary, amount int) []UserSummary {
	if amount > 0 && len(users) > amount {
		return users[:amount]
	}
	return users
}

func (f *Fake) DirectSend(ctx context.Context, userID, text string) (*SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.DirectSendErrs) > 0 {
		err := f.DirectSendErrs[0]
		f.DirectSendErrs = f.DirectSendErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	f.SentMessages = append(f.SentMessages, SentMessage{UserID: userID, Text: text, Via: "direct_send"})
	return &SendResult{ThreadID: "thread-" + userID, ItemID: fmt.Sprintf("item-%d", len(f.SentMessages))}, nil
}

func (f *Fake) DirectSendText(ctx context.Context, userID, text string) (*SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.DirectSendTextErrs) > 0 {
		err := f.DirectSendTextErrs[0]
		f.DirectSendTextErrs = f.DirectSendTextErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	f.SentMessages = append(f.SentMessages, SentMessage{UserID: userID, Text: text, Via: "direct_send_text"})
	return &SendResult{ThreadID: "thread-" + userID, ItemID: fmt.Sprintf("item-%d", len(f.SentMessages))}, nil
}

func (f *Fake) PrivateRequest(ctx context.Context, endpoint string, form map[string]string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PrivateRequestErr != nil {
		return nil, f.PrivateRequestErr
	}
	if f.PrivateRequestResp != nil {
		return f.PrivateRequestResp, nil
	}
	return map[string]any{"status": "ok"}, nil
}

func (f *Fake) DirectThreads(ctx context.Context, amount int, unreadOnly bool) ([]Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if amount > 0 && len(f.Threads) > amount {
		return f.Threads[:amount], nil
	}
	return f.Threads, nil
}

func (f *Fake) DirectMessages(ctx context.Context, threadID string, amount int) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.Messages[threadID]
	if amount > 0 && len(msgs) > amount {
		return msgs[:amount], nil
	}
	return msgs, nil
}
