// Package notifications provides the email client for operator alerts.
package notifications

import (
	"fmt"

	"github.com/resendlabs/resend-go"

	"github.com/gramsender/gramsender-go/internal/infrastructure/observability/logging"
)

// Service defines the interface for sending alerts, allowing for mock
// implementations in tests.
type Service interface {
	SendVerificationAlert(account, method string) error
	SendRateLimitAlert(account, campaignName, detail string) error
	SendCampaignCompleteAlert(campaignName, account string, sent int, success bool) error
}

// ResendClient is the concrete implementation of the alert Service using the
// Resend API.
type ResendClient struct {
	client    *resend.Client
	fromEmail string
	toEmail   string
	logger    *logging.ChanneledLogger
}

// NewService creates a new alert service client, returning the Service
// interface. Returns nil when no API key or recipient is configured, in
// which case callers skip alerting.
func NewService(apiKey, fromEmail, toEmail string, logger *logging.ChanneledLogger) Service {
	if apiKey == "" || toEmail == "" {
		return nil
	}
	if fromEmail == "" {
		fromEmail = "alerts@gramsender.app"
	}
	return &ResendClient{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		toEmail:   toEmail,
		logger:    logger,
	}
}

func (c *ResendClient) send(subject, html string) error {
	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("GramSender <%s>", c.fromEmail),
		To:      []string{c.toEmail},
		Subject: subject,
		Html:    html,
	}
	if _, err := c.client.Emails.Send(params); err != nil {
		c.logger.System().Warn("Failed to send alert email", "subject", subject, "error", err)
		return fmt.Errorf("failed to send alert email via Resend: %w", err)
	}
	return nil
}

// SendVerificationAlert tells the operator an account is blocked on an
// interactive verification code.
func (c *ResendClient) SendVerificationAlert(account, method string) error {
	subject := fmt.Sprintf("Verification needed for @%s", account)
	html := fmt.Sprintf(
		`<p>Account <strong>@%s</strong> hit an interactive verification challenge.</p>
<p>The platform sent a code via <strong>%s</strong>. Supply it in the dashboard within 5 minutes or the worker will fail the login.</p>`,
		account, method)
	return c.send(subject, html)
}

// SendRateLimitAlert warns the operator an account looks rate limited.
func (c *ResendClient) SendRateLimitAlert(account, campaignName, detail string) error {
	subject := fmt.Sprintf("Rate limit suspected on @%s", account)
	html := fmt.Sprintf(
		`<p>All delivery methods failed for <strong>@%s</strong> (campaign %s) with rate-limit symptoms.</p>
<p>Detail: %s</p>
<p>Consider increasing delays or resting the account for 24-48h.</p>`,
		account, campaignName, detail)
	return c.send(subject, html)
}

// SendCampaignCompleteAlert reports a finished worker run.
func (c *ResendClient) SendCampaignCompleteAlert(campaignName, account string, sent int, success bool) error {
	outcome := "completed"
	if !success {
		outcome = "failed"
	}
	subject := fmt.Sprintf("Campaign %s %s on @%s", campaignName, outcome, account)
	html := fmt.Sprintf(
		`<p>Worker for campaign <strong>%s</strong> on account <strong>@%s</strong> %s.</p>
<p>Messages sent: %d</p>`,
		campaignName, account, outcome, sent)
	return c.send(subject, html)
}
