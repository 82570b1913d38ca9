package services

import (
	"context"
	"strings"

	"github.com/gramsender/gramsender-go/internal/domain/outreach"
	"github.com/gramsender/gramsender-go/internal/infrastructure/inference"
)

// allowedCountries is the campaign country filter's allow-list. Matching is
// case-insensitive and substring-tolerant in both directions so "United
// States of America" and "USA" both pass.
var allowedCountries = []string{
	"US", "USA", "United States", "United States Of America",
	"CA", "Canada", "GB", "UK", "United Kingdom", "England", "Scotland", "Wales",
	"AU", "Australia", "NZ", "New Zealand", "DE", "Germany", "FR", "France",
	"IT", "Italy", "ES", "Spain", "NL", "Netherlands", "BE", "Belgium",
	"CH", "Switzerland", "AT", "Austria", "SE", "Sweden", "NO", "Norway",
	"DK", "Denmark", "FI", "Finland", "IE", "Ireland", "JP", "Japan",
	"KR", "South Korea", "SG", "Singapore", "HK", "Hong Kong",
}

// CountryAllowed reports whether the country name or code is on the
// allow-list. Empty input is not allowed; callers decide whether a missing
// country should pass (the filter pipeline only checks non-empty values).
func CountryAllowed(country string) bool {
	normalized := strings.TrimSpace(country)
	if normalized == "" {
		return false
	}
	// Title-casing before the case-sensitive substring pass keeps short
	// codes like "US" from matching inside unrelated names.
	normalized = titleCase(normalized)
	for _, allowed := range allowedCountries {
		if normalized == allowed ||
			strings.Contains(allowed, normalized) || strings.Contains(normalized, allowed) {
			return true
		}
	}
	return false
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// BioContainsKeywords reports whether the bio contains any keyword,
// case-insensitive. An empty bio or empty keyword list passes vacuously.
func BioContainsKeywords(bio string, keywords []string) bool {
	if strings.TrimSpace(bio) == "" || len(keywords) == 0 {
		return true
	}
	bioLower := strings.ToLower(strings.TrimSpace(bio))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(bioLower, kw) {
			return true
		}
	}
	return false
}

// FilterSet evaluates a campaign's audience filters against one lead.
type FilterSet struct {
	campaign outreach.CampaignSpec
	detector *inference.Detector
}

// NewFilterSet binds a campaign's filter settings to a gender detector. The
// detector may be nil when gender filtering is off or inference is not
// configured.
func NewFilterSet(campaign outreach.CampaignSpec, detector *inference.Detector) *FilterSet {
	return &FilterSet{campaign: campaign, detector: detector}
}

// Evaluate runs the pipeline in fixed order: follower threshold, country,
// bio keywords, gender. It returns skip=true with a short reason at the
// first failing filter. Gender skips only on a confident disagreement;
// unknown or low-confidence verdicts pass.
func (f *FilterSet) Evaluate(ctx context.Context, lead outreach.Lead) (skip bool, reason string) {
	if lead.FollowerCount < f.campaign.FollowersThreshold {
		return true, "followers below threshold"
	}
	if f.campaign.CountryFilterEnabled && lead.Country != "" && !CountryAllowed(lead.Country) {
		return true, "country not allowed"
	}
	if f.campaign.BioFilterEnabled && !BioContainsKeywords(lead.Biography, f.campaign.BioKeywords) {
		return true, "bio missing keywords"
	}
	if f.campaign.GenderFilter != "" && f.campaign.GenderFilter != "all" {
		verdict := f.detectGender(ctx, lead)
		if verdict.Gender != "unknown" && verdict.Gender != f.campaign.GenderFilter && verdict.Confident() {
			return true, "gender mismatch (" + verdict.Gender + ")"
		}
	}
	return false, ""
}

func (f *FilterSet) detectGender(ctx context.Context, lead outreach.Lead) inference.Verdict {
	if f.detector != nil && f.detector.Enabled() {
		firstName := lead.ImportedFirstName
		return f.detector.DetectGender(ctx, lead.Username, lead.ProfilePicURL, lead.FullName, firstName, lead.Biography)
	}
	gender := inference.GenderFromName(lead.FullName, lead.ImportedFirstName)
	verdict := inference.Verdict{Gender: gender, Sources: []string{"name"}}
	if gender != "unknown" {
		verdict.Confidence = 0.5
	}
	return verdict
}
