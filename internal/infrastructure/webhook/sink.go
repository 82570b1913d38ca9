// Package webhook delivers campaign lifecycle and reply events to operator
// endpoints over HTTP POST.
package webhook

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gramsender/gramsender-go/internal/infrastructure/observability/logging"
)

// Sink posts JSON payloads to webhook URLs, fire-and-forget. Failures are
// logged and never propagate to the engine.
type Sink struct {
	httpClient *http.Client
	logger     *logging.ChanneledLogger

	// GlobalURL receives events with no per-campaign URL when the event
	// name is listed in EnabledEvents.
	GlobalURL     string
	Secret        string
	EnabledEvents []string
}

// NewSink creates a sink with the given request timeout.
func NewSink(timeout time.Duration, logger *logging.ChanneledLogger) *Sink {
	return &Sink{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// globalEnabled reports whether the global URL subscribes to the event.
func (s *Sink) globalEnabled(event string) bool {
	for _, e := range s.EnabledEvents {
		if e == event {
			return true
		}
	}
	return false
}

// Send posts one event. campaignURL takes precedence; when it is empty the
// global URL is used if it subscribes to the event. Runs asynchronously.
func (s *Sink) Send(campaignURL, event, campaignID string, payload map[string]any) {
	url := campaignURL
	secret := ""
	if url == "" {
		if s.GlobalURL == "" || !s.globalEnabled(event) {
			return
		}
		url = s.GlobalURL
		secret = s.Secret
	}

	body := map[string]any{
		"event":       event,
		"campaign_id": campaignID,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"app_version": "1.0",
	}
	for k, v := range payload {
		body[k] = v
	}
	if secret != "" {
		body["secret"] = secret
	}

	go s.post(url, event, campaignID, body)
}

func (s *Sink) post(url, event, campaignID string, body map[string]any) {
	raw, err := json.Marshal(body)
	if err != nil {
		s.logger.Webhook().Error("Failed to marshal webhook payload", "event", event, "error", err)
		return
	}

	resp, err := s.httpClient.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		s.logger.Webhook().Warn("Webhook delivery failed",
			"event", event, "campaignId", campaignID, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		s.logger.Webhook().Warn("Webhook endpoint returned error",
			"event", event, "campaignId", campaignID, "status", resp.StatusCode)
		return
	}
	s.logger.Webhook().Debug("Webhook delivered", "event", event, "campaignId", campaignID)
}
