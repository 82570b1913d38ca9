// Package outreach defines the core entities of the outreach engine:
// accounts, campaigns, leads, worker state, and recorded sends/replies.
package outreach

import "time"

// TargetMode selects how a campaign discovers leads.
type TargetMode int

const (
	TargetHashtag TargetMode = iota
	TargetFollowersOf
	TargetFollowingOf
	TargetImportedList
)

// Label returns the lead-source label recorded with sends.
func (m TargetMode) Label() string {
	switch m {
	case TargetHashtag:
		return "hashtag"
	case TargetFollowersOf:
		return "followers"
	case TargetFollowingOf:
		return "following"
	case TargetImportedList:
		return "imported_list"
	}
	return "unknown"
}

// CampaignStatus is the externally visible lifecycle of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignRunning   CampaignStatus = "running"
	CampaignCompleted CampaignStatus = "completed"
	CampaignFailed    CampaignStatus = "failed"
)

// AccountCredential is an account's identity and authentication material.
// It is owned by the account store and read-only to the engine.
type AccountCredential struct {
	Username     string `json:"username"`
	DisplayName  string `json:"displayName,omitempty"`
	Password     string `json:"password,omitempty"`
	SessionToken string `json:"sessionToken,omitempty"`
	Proxy        string `json:"proxy,omitempty"`
	SessionPath  string `json:"sessionPath,omitempty"`
}

// HasCredentials reports whether the account can be logged in at all.
func (a AccountCredential) HasCredentials() bool {
	return a.Password != "" || a.SessionToken != ""
}

// Name returns the display name, falling back to the username.
func (a AccountCredential) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Username
}

// FollowUp is a scheduled secondary message sent after the initial send.
type FollowUp struct {
	Message    string `json:"message"`
	DelayValue int    `json:"delayValue"`
	DelayUnit  string `json:"delayUnit"` // minutes | hours | days
}

// Delay converts the follow-up's delay to a duration. Unknown units fall
// back to hours, matching the stored default.
func (f FollowUp) Delay() time.Duration {
	v := f.DelayValue
	if v < 0 {
		v = 0
	}
	switch f.DelayUnit {
	case "minutes":
		return time.Duration(v) * time.Minute
	case "days":
		return time.Duration(v) * 24 * time.Hour
	default:
		return time.Duration(v) * time.Hour
	}
}

// CampaignSpec describes one outreach campaign.
type CampaignSpec struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	TargetMode  TargetMode     `json:"targetMode"`
	TargetInput string         `json:"targetInput"`
	Status      CampaignStatus `json:"status"`

	MessageQuota int `json:"messageQuota"`
	DailyLimit   int `json:"dailyLimit"`
	LeadCount    int `json:"leadCount"`

	FollowersThreshold   int      `json:"followersThreshold"`
	CountryFilterEnabled bool     `json:"countryFilterEnabled"`
	BioFilterEnabled     bool     `json:"bioFilterEnabled"`
	BioKeywords          []string `json:"bioKeywords"`
	GenderFilter         string   `json:"genderFilter"` // all | male | female

	MessageTemplates []string   `json:"messageTemplates"`
	FollowUps        []FollowUp `json:"followUps"`

	WebhookURL   string `json:"webhookUrl,omitempty"`
	MessagesSent int    `json:"messagesSent"`
}

// Lead is a discovered candidate recipient. Leads are transient; the
// engine produces them lazily and consumes each at most once.
type Lead struct {
	UserID        string `json:"userId"`
	Username      string `json:"username"`
	FullName      string `json:"fullName,omitempty"`
	Biography     string `json:"biography,omitempty"`
	FollowerCount int    `json:"followerCount"`
	Country       string `json:"country,omitempty"`
	ProfilePicURL string `json:"profilePicUrl,omitempty"`

	// ImportedFirstName is set only for imported-list leads that carried
	// an explicit first name.
	ImportedFirstName string `json:"importedFirstName,omitempty"`
	ImportedFullName  string `json:"importedFullName,omitempty"`
}

// WorkerStatus is the lifecycle of one worker run. completed, failed and
// stopped are terminal; a worker never transitions out of them.
type WorkerStatus string

const (
	WorkerStarting  WorkerStatus = "starting"
	WorkerRunning   WorkerStatus = "running"
	WorkerError     WorkerStatus = "error"
	WorkerCompleted WorkerStatus = "completed"
	WorkerFailed    WorkerStatus = "failed"
	WorkerStopped   WorkerStatus = "stopped"
)

// Active reports whether the status counts as non-terminal for combo
// deduplication and reply-monitor back-pressure.
func (s WorkerStatus) Active() bool {
	return s == WorkerStarting || s == WorkerRunning
}

// Terminal reports whether the status can never change again.
func (s WorkerStatus) Terminal() bool {
	return s == WorkerCompleted || s == WorkerFailed || s == WorkerStopped
}

// WorkerState is the mutable record of one (account, campaign) run. It is
// created by the bootstrap routine and mutated only by its owning worker
// and the stop command.
type WorkerState struct {
	ID           string       `json:"id"`
	Username     string       `json:"username"`
	AccountName  string       `json:"accountName"`
	CampaignID   string       `json:"campaignId"`
	CampaignName string       `json:"campaignName"`
	LeadSource   string       `json:"leadSource"`
	Status       WorkerStatus `json:"status"`
	MessagesSent int          `json:"messagesSent"`
	Errors       int          `json:"errors"`
	Progress     int          `json:"progress"`
	LastUpdate   string       `json:"lastUpdate,omitempty"`
	StartedAt    time.Time    `json:"startedAt"`

	// PendingVerification marks a worker blocked on an interactive code.
	PendingVerification bool `json:"pendingVerification,omitempty"`
}

// ComboKey identifies the (account, campaign) pair, the unit of worker
// deduplication.
func (w WorkerState) ComboKey() string {
	return ComboKey(w.Username, w.CampaignID)
}

// ComboKey builds the deduplication key for an account+campaign pair.
func ComboKey(username, campaignID string) string {
	return username + ":" + campaignID
}

// SendRecord is one delivered message, persisted for reply attribution.
type SendRecord struct {
	ID                string    `json:"id"`
	CampaignID        string    `json:"campaignId"`
	CampaignName      string    `json:"campaignName"`
	AccountUsername   string    `json:"accountUsername"`
	AccountName       string    `json:"accountName"`
	RecipientUsername string    `json:"recipientUsername"`
	RecipientUserID   string    `json:"recipientUserId"`
	ThreadID          string    `json:"threadId"`
	LeadSource        string    `json:"leadSource"`
	LeadTarget        string    `json:"leadTarget"`
	MessagePreview    string    `json:"messagePreview"`
	MessageType       string    `json:"messageType"` // initial | follow_up
	FollowUpIndex     int       `json:"followUpIndex"`
	SentAt            time.Time `json:"sentAt"`
}

// ReplyKind classifies a detected inbound message.
type ReplyKind string

const (
	// ReplyDirect is a reply to a tracked prior message.
	ReplyDirect ReplyKind = "reply"
	// ReplyInbound is a new, unprompted message from the counterparty.
	ReplyInbound ReplyKind = "inbound"
)

// ReplyRecord is one detected reply or inbound message.
type ReplyRecord struct {
	ID              string    `json:"id"`
	AccountUsername string    `json:"accountUsername"`
	AccountName     string    `json:"accountName"`
	CampaignID      string    `json:"campaignId,omitempty"`
	ThreadID        string    `json:"threadId"`
	ThreadTitle     string    `json:"threadTitle,omitempty"`
	SenderUserID    string    `json:"senderUserId"`
	SenderUsername  string    `json:"senderUsername"`
	Text            string    `json:"text"`
	RepliedToText   string    `json:"repliedToText,omitempty"`
	MessageID       string    `json:"messageId"`
	Kind            ReplyKind `json:"kind"`
	DetectedAt      time.Time `json:"detectedAt"`
}
