package outreach

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindExtraction(t *testing.T) {
	base := errors.New("login_required")
	err := NewPlatformError(KindLoginRequired, "probe", base)

	if Kind(err) != KindLoginRequired {
		t.Errorf("Kind = %v, want login_required", Kind(err))
	}
	if !IsKind(err, KindLoginRequired) {
		t.Error("IsKind missed the kind")
	}
	if IsKind(err, KindRateLimited) {
		t.Error("IsKind matched the wrong kind")
	}
	if !errors.Is(err, base) {
		t.Error("wrapped error lost its chain")
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("outer context: %w", NewPlatformError(KindRateLimited, "send", nil))
	if Kind(err) != KindRateLimited {
		t.Errorf("Kind through fmt.Errorf = %v, want rate_limited", Kind(err))
	}
}

func TestKindOfPlainError(t *testing.T) {
	if Kind(errors.New("boom")) != KindUnknown {
		t.Error("plain error should be unknown kind")
	}
	if Kind(nil) != KindUnknown {
		t.Error("nil error should be unknown kind")
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want bool
	}{
		{KindTransientAuth, true},
		{KindLoginRequired, true},
		{KindRateLimited, true},
		{KindCredentialsInvalid, false},
		{KindChallengeRequired, false},
		{KindBlacklisted, false},
		{KindNoLeads, false},
		{KindUnknown, false},
	}
	for _, tt := range tests {
		if got := tt.kind.Retryable(); got != tt.want {
			t.Errorf("%s.Retryable() = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestLooksRateLimited(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("Please wait a few minutes before you try again"), true},
		{errors.New("HTTP 429 from endpoint"), true},
		{errors.New("feedback_required"), true},
		{errors.New("checkpoint logic (code 1545041)"), true},
		{errors.New("user not found"), false},
		{NewPlatformError(KindRateLimited, "send", nil), true},
	}
	for _, tt := range tests {
		if got := LooksRateLimited(tt.err); got != tt.want {
			t.Errorf("LooksRateLimited(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestLooksLikeChallenge(t *testing.T) {
	if !LooksLikeChallenge(errors.New("challenge_required")) {
		t.Error("challenge phrasing not recognized")
	}
	if !LooksLikeChallenge(NewPlatformError(KindChallengeRequired, "login", nil)) {
		t.Error("structured challenge kind not recognized")
	}
	if LooksLikeChallenge(errors.New("boom")) {
		t.Error("unrelated error flagged as challenge")
	}
}
