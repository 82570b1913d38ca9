// Package inference provides best-effort name and gender inference for
// discovered leads, backed by a vision-capable chat completion API.
package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/gramsender/gramsender-go/internal/infrastructure/observability/logging"
)

// Verdict is a best-effort gender inference with a confidence score and a
// source tag. An unavailable detector degrades to {"unknown", 0}.
type Verdict struct {
	Gender     string   `json:"gender"` // male | female | unknown
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources,omitempty"`
}

// Confident reports whether the verdict is strong enough to act on.
func (v Verdict) Confident() bool {
	return v.Gender != "unknown" && v.Confidence >= 0.5
}

// Unknown is the verdict of a disabled or failed detector.
var Unknown = Verdict{Gender: "unknown", Confidence: 0}

// Detector infers gender and first names from profile data. All calls
// degrade gracefully: a failed or disabled detector yields Unknown verdicts
// and empty names, never errors the caller has to handle.
type Detector struct {
	apiKey     string
	apiBase    string
	httpClient *http.Client
	cache      *bigcache.BigCache
	logger     *logging.ChanneledLogger
}

// NewDetector creates a detector. An empty apiKey disables API calls; the
// name heuristic still works.
func NewDetector(apiKey, apiBase string, logger *logging.ChanneledLogger) *Detector {
	if apiBase == "" {
		apiBase = "https://api.x.ai/v1"
	}
	cache, err := bigcache.New(context.Background(), bigcache.DefaultConfig(12*time.Hour))
	if err != nil {
		logger.System().Warn("Failed to create inference cache, running uncached", "error", err)
		cache = nil
	}
	return &Detector{
		apiKey:     apiKey,
		apiBase:    strings.TrimRight(apiBase, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      cache,
		logger:     logger,
	}
}

// Enabled reports whether the inference API is configured.
func (d *Detector) Enabled() bool { return d.apiKey != "" }

// DetectGender runs all available signals and returns the most confident
// verdict. When multiple sources agree the confidence is boosted by 0.2.
// Verdicts are cached per username.
func (d *Detector) DetectGender(ctx context.Context, username, profilePicURL, fullName, firstName, bio string) Verdict {
	if cached, ok := d.cachedVerdict(username); ok {
		return cached
	}

	var results []Verdict

	if bio != "" {
		if v := d.analyzeBio(ctx, bio); v.Gender != "unknown" {
			results = append(results, v)
		}
	}
	if profilePicURL != "" && d.Enabled() {
		if v := d.analyzePicture(ctx, profilePicURL); v.Gender != "unknown" {
			results = append(results, v)
		}
	}
	if g := GenderFromName(fullName, firstName); g != "unknown" {
		results = append(results, Verdict{Gender: g, Confidence: 0.5, Sources: []string{"name"}})
	}

	verdict := combine(results)
	d.storeVerdict(username, verdict)
	return verdict
}

func combine(results []Verdict) Verdict {
	if len(results) == 0 {
		return Unknown
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Confidence > results[j].Confidence
	})
	best := results[0]
	if len(results) > 1 {
		agree := true
		var sources []string
		for _, r := range results {
			if r.Gender != best.Gender {
				agree = false
			}
			sources = append(sources, r.Sources...)
		}
		best.Sources = sources
		if agree {
			best.Confidence = min(1.0, best.Confidence+0.2)
		}
	}
	return best
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

var pronounSets = map[string][]string{
	"male":   {"he/him", " he ", " him ", " his ", "himself"},
	"female": {"she/her", " she ", " her ", " hers ", "herself"},
}

// analyzeBio checks for explicit pronouns first, then falls back to the
// chat API for gendered-language analysis.
func (d *Detector) analyzeBio(ctx context.Context, bio string) Verdict {
	bioLower := strings.ToLower(bio)
	for _, gender := range []string{"male", "female"} {
		for _, pronoun := range pronounSets[gender] {
			if strings.Contains(bioLower, pronoun) {
				return Verdict{Gender: gender, Confidence: 0.9, Sources: []string{"bio_pronouns"}}
			}
		}
	}

	if !d.Enabled() {
		return Unknown
	}

	prompt := fmt.Sprintf(`Analyze this social profile bio and determine if the language suggests the person is male, female, or if it's unclear.

Look for pronouns, gendered language patterns and explicit gender mentions.

Bio: %q

Respond ONLY with valid JSON in this exact format:
{"gender": "male" or "female" or "unknown", "confidence": 0.0 to 1.0}`, bio)

	verdict, err := d.completeJSON(ctx, "grok-beta", []any{prompt})
	if err != nil {
		d.logger.System().Debug("Bio inference failed", "error", err)
		return Unknown
	}
	verdict.Sources = []string{"bio_ai"}
	return verdict
}

// analyzePicture downloads and normalizes the profile picture, then asks the
// vision model for a verdict.
func (d *Detector) analyzePicture(ctx context.Context, picURL string) Verdict {
	imageData, err := fetchProfilePicture(ctx, picURL)
	if err != nil {
		d.logger.System().Debug("Profile picture fetch failed", "error", err)
		return Unknown
	}

	prompt := `Analyze this profile picture and determine the person's likely gender based on visual presentation.

Respond ONLY with valid JSON in this exact format:
{"gender": "male" or "female" or "unknown", "confidence": 0.0 to 1.0}`

	content := []any{
		map[string]any{"type": "text", "text": prompt},
		map[string]any{"type": "image_url", "image_url": map[string]string{
			"url": "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(imageData),
		}},
	}

	verdict, err := d.completeJSON(ctx, "grok-2-vision-1212", content)
	if err != nil {
		d.logger.System().Debug("Picture inference failed", "error", err)
		return Unknown
	}
	verdict.Sources = []string{"profile_picture"}
	return verdict
}

// ExtractFirstName asks the model for a first name given the full name and
// handle. Returns empty on any failure.
func (d *Detector) ExtractFirstName(ctx context.Context, fullName, username string) string {
	if !d.Enabled() || (fullName == "" && username == "") {
		return ""
	}

	if name, ok := d.cachedName(username); ok {
		return name
	}

	prompt := fmt.Sprintf(`Given this person's full name and/or username, reply with ONLY their first name (one word, capitalized). No explanation.
Full name: %s
Username: %s`, orUnknown(fullName), orUnknown(username))

	content, err := d.complete(ctx, "grok-2-1212", []any{prompt}, 30, 0.1)
	if err != nil {
		d.logger.System().Debug("First name inference failed", "error", err)
		return ""
	}
	fields := strings.Fields(strings.TrimSpace(content))
	if len(fields) == 0 {
		return ""
	}
	name := strings.Title(strings.ToLower(fields[0]))
	d.storeName(username, name)
	return name
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (d *Detector) complete(ctx context.Context, model string, content []any, maxTokens int, temperature float64) (string, error) {
	var messageContent any
	if len(content) == 1 {
		messageContent = content[0]
	} else {
		messageContent = content
	}
	payload := map[string]any{
		"model":       model,
		"messages":    []map[string]any{{"role": "user", "content": messageContent}},
		"max_tokens":  maxTokens,
		"temperature": temperature,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.apiBase+"/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+d.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("inference API returned status %d", resp.StatusCode)
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("inference API returned no choices")
	}
	return decoded.Choices[0].Message.Content, nil
}

// completeJSON runs a completion and parses the model's JSON verdict,
// tolerating markdown code fences.
func (d *Detector) completeJSON(ctx context.Context, model string, content []any) (Verdict, error) {
	text, err := d.complete(ctx, model, content, 200, 0.3)
	if err != nil {
		return Unknown, err
	}

	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		parts := strings.SplitN(text, "```", 3)
		if len(parts) >= 2 {
			text = strings.TrimPrefix(strings.TrimSpace(parts[1]), "json")
		}
	}
	text = strings.TrimSpace(text)

	var parsed struct {
		Gender     string  `json:"gender"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		// Fall back to keyword spotting on malformed model output.
		lower := strings.ToLower(text)
		if strings.Contains(lower, "female") || strings.Contains(lower, "woman") {
			return Verdict{Gender: "female", Confidence: 0.6}, nil
		}
		if strings.Contains(lower, "male") || strings.Contains(lower, "man") {
			return Verdict{Gender: "male", Confidence: 0.6}, nil
		}
		return Unknown, fmt.Errorf("unparseable verdict: %w", err)
	}

	gender := strings.ToLower(parsed.Gender)
	if gender != "male" && gender != "female" {
		gender = "unknown"
	}
	return Verdict{Gender: gender, Confidence: parsed.Confidence}, nil
}

func (d *Detector) cachedVerdict(username string) (Verdict, bool) {
	if d.cache == nil || username == "" {
		return Unknown, false
	}
	raw, err := d.cache.Get("gender:" + username)
	if err != nil {
		return Unknown, false
	}
	var v Verdict
	if json.Unmarshal(raw, &v) != nil {
		return Unknown, false
	}
	return v, true
}

func (d *Detector) storeVerdict(username string, v Verdict) {
	if d.cache == nil || username == "" {
		return
	}
	if raw, err := json.Marshal(v); err == nil {
		_ = d.cache.Set("gender:"+username, raw)
	}
}

func (d *Detector) cachedName(username string) (string, bool) {
	if d.cache == nil || username == "" {
		return "", false
	}
	raw, err := d.cache.Get("name:" + username)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

func (d *Detector) storeName(username, name string) {
	if d.cache == nil || username == "" || name == "" {
		return
	}
	_ = d.cache.Set("name:"+username, []byte(name))
}

// ConfidenceLabel formats a confidence for operator-facing log lines.
func ConfidenceLabel(confidence float64) string {
	return strconv.FormatFloat(confidence*100, 'f', 0, 64) + "%"
}
