package outreach

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the closed set of failure categories the engine dispatches
// on. Retry wrappers branch on kind, never on error message text.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindTransientAuth covers recoverable server-side login failures.
	KindTransientAuth
	// KindLoginRequired signals an expired or invalidated session.
	KindLoginRequired
	// KindChallengeRequired means the platform demands an interactive
	// verification code before proceeding.
	KindChallengeRequired
	// KindCredentialsInvalid is terminal: the stored credentials are wrong.
	KindCredentialsInvalid
	// KindRateLimited means back off and continue; never terminal on the
	// first occurrence.
	KindRateLimited
	// KindBlacklisted covers IP/account blacklist responses that warrant a
	// proxy fallback.
	KindBlacklisted
	// KindTargetNotFound means the requested target does not exist; the
	// worker skips it.
	KindTargetNotFound
	// KindNoLeads means discovery produced nothing; the run ends cleanly.
	KindNoLeads
	// KindDeliveryFailed means every delivery method was exhausted for one
	// recipient; the run continues with the next target.
	KindDeliveryFailed
)

// Retryable reports whether an operation failing with this kind may be
// attempted again within its bounded retry budget.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindTransientAuth, KindLoginRequired, KindRateLimited:
		return true
	}
	return false
}

func (k ErrorKind) String() string {
	switch k {
	case KindTransientAuth:
		return "transient_auth"
	case KindLoginRequired:
		return "login_required"
	case KindChallengeRequired:
		return "challenge_required"
	case KindCredentialsInvalid:
		return "credentials_invalid"
	case KindRateLimited:
		return "rate_limited"
	case KindBlacklisted:
		return "blacklisted"
	case KindTargetNotFound:
		return "target_not_found"
	case KindNoLeads:
		return "no_leads"
	case KindDeliveryFailed:
		return "delivery_failed"
	}
	return "unknown"
}

// PlatformError carries a kind alongside the underlying platform failure.
type PlatformError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *PlatformError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *PlatformError) Unwrap() error { return e.Err }

// NewPlatformError wraps err with an operation name and kind.
func NewPlatformError(kind ErrorKind, op string, err error) *PlatformError {
	return &PlatformError{Kind: kind, Op: op, Err: err}
}

// Kind extracts the error kind from err's chain, or KindUnknown.
func Kind(err error) ErrorKind {
	var pe *PlatformError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return Kind(err) == kind
}

// Retryable reports whether err's kind permits a bounded retry.
func Retryable(err error) bool {
	return Kind(err).Retryable()
}

// rateLimitSignatures are the best-effort phrasings the platform uses for
// throttling. This is a heuristic layer, not a guaranteed classifier; the
// structured KindRateLimited from the client takes precedence.
var rateLimitSignatures = []string{
	"rate limit",
	"too many",
	"please wait",
	"429",
	"feedback_required",
	"1545041",
}

// LooksRateLimited inspects an arbitrary error for rate-limit signatures,
// used when the platform client could not classify the failure itself.
func LooksRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if IsKind(err, KindRateLimited) {
		return true
	}
	s := strings.ToLower(err.Error())
	for _, sig := range rateLimitSignatures {
		if strings.Contains(s, sig) {
			return true
		}
	}
	return false
}

// LooksLikeChallenge inspects an error for challenge/verification phrasing
// surfacing from deep inside the platform client.
func LooksLikeChallenge(err error) bool {
	if err == nil {
		return false
	}
	if IsKind(err, KindChallengeRequired) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "challenge") || strings.Contains(s, "submit_phone")
}
