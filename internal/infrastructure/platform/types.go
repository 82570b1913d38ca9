package platform

import "time"

// UserInfo is the platform's enriched profile for one user.
type UserInfo struct {
	ID            string `json:"pk"`
	Username      string `json:"username"`
	FullName      string `json:"full_name"`
	Biography     string `json:"biography"`
	FollowerCount int    `json:"follower_count"`
	IsPrivate     bool   `json:"is_private"`
	ProfilePicURL string `json:"profile_pic_url"`
	PublicEmail   string `json:"public_email"`
	Category      string `json:"category"`
	City          string `json:"city_name"`
}

// FirstName splits the leading token off the profile's full name.
func (u UserInfo) FirstName() string {
	for i := 0; i < len(u.FullName); i++ {
		if u.FullName[i] == ' ' {
			return u.FullName[:i]
		}
	}
	return u.FullName
}

// UserSummary is the minimal identity returned by follower/following/hashtag
// enumeration.
type UserSummary struct {
	ID       string `json:"pk"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

// SendResult identifies a delivered direct message.
type SendResult struct {
	ThreadID string `json:"thread_id"`
	ItemID   string `json:"item_id"`
}

// Thread is one direct conversation with per-participant read watermarks.
type Thread struct {
	ID string `json:"thread_id"`
	// Title is the counterparty-facing thread title.
	Title string `json:"thread_title"`
	// LastSeenAt maps participant user id to the unix timestamp of the last
	// message that participant has read.
	LastSeenAt map[string]int64 `json:"last_seen_at"`
}

// Message is one direct message inside a thread.
type Message struct {
	ID            string    `json:"item_id"`
	ThreadID      string    `json:"thread_id"`
	UserID        string    `json:"user_id"`
	Username      string    `json:"username"`
	Text          string    `json:"text"`
	Timestamp     time.Time `json:"timestamp"`
	RepliedToText string    `json:"replied_to_text"`
	IsReply       bool      `json:"is_reply"`
}

// ChallengeMethod selects the out-of-band verification delivery channel.
type ChallengeMethod string

const (
	ChallengeEmail ChallengeMethod = "email"
	ChallengeSMS   ChallengeMethod = "sms"
)
