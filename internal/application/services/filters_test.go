package services

import (
	"context"
	"testing"

	"github.com/gramsender/gramsender-go/internal/domain/outreach"
)

func TestCountryAllowed(t *testing.T) {
	tests := []struct {
		country string
		want    bool
	}{
		{"United States", true},
		{"united states", true},
		{"United States of America", true},
		{"Canada", true},
		{"Germany", true},
		{"Hong Kong", true},
		{"", false},
		{"Russia", false},
		{"Brazil", false},
		{"India", false},
	}
	for _, tt := range tests {
		if got := CountryAllowed(tt.country); got != tt.want {
			t.Errorf("CountryAllowed(%q) = %v, want %v", tt.country, got, tt.want)
		}
	}
}

func TestBioContainsKeywords(t *testing.T) {
	tests := []struct {
		name     string
		bio      string
		keywords []string
		want     bool
	}{
		{"empty bio passes", "", []string{"fitness"}, true},
		{"no keywords passes", "anything here", nil, true},
		{"match", "Fitness coach and mom", []string{"fitness"}, true},
		{"case insensitive", "FITNESS coach", []string{"fitness"}, true},
		{"no match", "travel photographer", []string{"fitness", "coach"}, false},
		{"second keyword matches", "life coach", []string{"fitness", "coach"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BioContainsKeywords(tt.bio, tt.keywords); got != tt.want {
				t.Errorf("BioContainsKeywords(%q, %v) = %v, want %v", tt.bio, tt.keywords, got, tt.want)
			}
		})
	}
}

func TestFilterSetEvaluate(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		campaign   outreach.CampaignSpec
		lead       outreach.Lead
		wantSkip   bool
		wantReason string
	}{
		{
			name:     "passes with no filters",
			campaign: outreach.CampaignSpec{},
			lead:     outreach.Lead{Username: "someone"},
			wantSkip: false,
		},
		{
			name:       "follower threshold",
			campaign:   outreach.CampaignSpec{FollowersThreshold: 100},
			lead:       outreach.Lead{Username: "tiny", FollowerCount: 40},
			wantSkip:   true,
			wantReason: "followers below threshold",
		},
		{
			name:       "country filter blocks",
			campaign:   outreach.CampaignSpec{CountryFilterEnabled: true},
			lead:       outreach.Lead{Username: "abroad", Country: "Brazil"},
			wantSkip:   true,
			wantReason: "country not allowed",
		},
		{
			name:     "country filter ignores missing country",
			campaign: outreach.CampaignSpec{CountryFilterEnabled: true},
			lead:     outreach.Lead{Username: "nowhere"},
			wantSkip: false,
		},
		{
			name:       "bio filter blocks",
			campaign:   outreach.CampaignSpec{BioFilterEnabled: true, BioKeywords: []string{"fitness"}},
			lead:       outreach.Lead{Username: "other", Biography: "travel and food"},
			wantSkip:   true,
			wantReason: "bio missing keywords",
		},
		{
			name:     "bio filter passes empty bio",
			campaign: outreach.CampaignSpec{BioFilterEnabled: true, BioKeywords: []string{"fitness"}},
			lead:     outreach.Lead{Username: "quiet"},
			wantSkip: false,
		},
		{
			name:     "gender mismatch skips on confident verdict",
			campaign: outreach.CampaignSpec{GenderFilter: "female"},
			lead:     outreach.Lead{Username: "marco1", FullName: "Marco"},
			wantSkip: true,
		},
		{
			name:     "gender match passes",
			campaign: outreach.CampaignSpec{GenderFilter: "female"},
			lead:     outreach.Lead{Username: "anna1", FullName: "Anna"},
			wantSkip: false,
		},
		{
			name:     "unknown gender passes",
			campaign: outreach.CampaignSpec{GenderFilter: "female"},
			lead:     outreach.Lead{Username: "xyz", FullName: "Qt"},
			wantSkip: false,
		},
		{
			name:     "gender filter all passes everyone",
			campaign: outreach.CampaignSpec{GenderFilter: "all"},
			lead:     outreach.Lead{Username: "marco2", FullName: "Marco"},
			wantSkip: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filters := NewFilterSet(tt.campaign, nil)
			skip, reason := filters.Evaluate(ctx, tt.lead)
			if skip != tt.wantSkip {
				t.Fatalf("skip = %v (reason %q), want %v", skip, reason, tt.wantSkip)
			}
			if tt.wantReason != "" && reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", reason, tt.wantReason)
			}
		})
	}
}
