package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/worksched/internal/model"
)

// NotificationChannel represents a channel for sending alert notifications
type NotificationChannel interface {
	Send(ctx context.Context, alert *model.Alert) error
}

// WebhookChannel posts alerts as JSON to a URL
type WebhookChannel struct {
	logger     *zap.Logger
	url        string
	headers    map[string]string
	httpClient *http.Client
}

// NewWebhookChannel creates a webhook channel. A zero timeout means 10s.
func NewWebhookChannel(url string, headers map[string]string, timeout time.Duration, logger *zap.Logger) *WebhookChannel {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookChannel{
		logger:  logger.Named("webhook"),
		url:     url,
		headers: headers,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Send posts the alert
func (c *WebhookChannel) Send(ctx context.Context, alert *model.Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	c.logger.Debug("Posting alert",
		zap.String("url", c.url),
		zap.String("alert_id", alert.ID))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook failed with status: %d", resp.StatusCode)
	}
	return nil
}

// EmailConfig holds SMTP settings for the email channel
type EmailConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	Recipients []string
}

// EmailChannel mails alerts over SMTP
type EmailChannel struct {
	logger *zap.Logger
	config EmailConfig
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailChannel creates an email channel
func NewEmailChannel(config EmailConfig, logger *zap.Logger) *EmailChannel {
	return &EmailChannel{
		logger: logger.Named("email"),
		config: config,
		send:   smtp.SendMail,
	}
}

// Send mails the alert to every configured recipient
func (c *EmailChannel) Send(ctx context.Context, alert *model.Alert) error {
	if len(c.config.Recipients) == 0 {
		return fmt.Errorf("email channel has no recipients")
	}

	var auth smtp.Auth
	if c.config.Username != "" {
		auth = smtp.PlainAuth("", c.config.Username, c.config.Password, c.config.Host)
	}

	addr := fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)
	if err := c.send(addr, auth, c.config.From, c.config.Recipients, formatEmail(c.config.From, c.config.Recipients, alert)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	c.logger.Debug("Alert mailed",
		zap.String("alert_id", alert.ID),
		zap.Int("recipients", len(c.config.Recipients)))
	return nil
}

func formatEmail(from string, to []string, alert *model.Alert) []byte {
	subject := fmt.Sprintf("[%s] %s", strings.ToUpper(string(alert.Severity)), alert.Type)
	return []byte(fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"Content-Type: text/plain; charset=UTF-8\r\n"+
		"\r\n"+
		"%s\r\n\r\nPlan: %s\r\nRaised: %s\r\n",
		from,
		strings.Join(to, ", "),
		subject,
		alert.Message,
		alert.Fingerprint,
		alert.CreatedAt.Format(time.RFC1123)))
}
