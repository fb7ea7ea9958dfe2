package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/t77yq/worksched/internal/model"
)

func testAlert() *model.Alert {
	return &model.Alert{
		ID:          "alert-1",
		RuleID:      "rule-1",
		Type:        model.AlertTypePlanInfeasible,
		Severity:    model.AlertSeverityCritical,
		Fingerprint: "fp-1",
		Message:     "Plan infeasible: plan infeasible finishes 2026-01-09T16:00:00Z",
		CreatedAt:   time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
	}
}

type recordingChannel struct {
	alerts chan *model.Alert
}

func (c *recordingChannel) Send(ctx context.Context, alert *model.Alert) error {
	c.alerts <- alert
	return nil
}

func TestWebhookChannel_Send(t *testing.T) {
	var got model.Alert
	var token string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		token = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	ch := NewWebhookChannel(server.URL, map[string]string{"Authorization": "Bearer s3cret"}, time.Second, zaptest.NewLogger(t))
	require.NoError(t, ch.Send(context.Background(), testAlert()))

	assert.Equal(t, "alert-1", got.ID)
	assert.Equal(t, model.AlertTypePlanInfeasible, got.Type)
	assert.Equal(t, "Bearer s3cret", token)
}

func TestWebhookChannel_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	ch := NewWebhookChannel(server.URL, nil, 0, zaptest.NewLogger(t))
	err := ch.Send(context.Background(), testAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestEmailChannel_Send(t *testing.T) {
	ch := NewEmailChannel(EmailConfig{
		Host:       "smtp.example.com",
		Port:       587,
		Username:   "bot",
		Password:   "pw",
		From:       "scheduler@example.com",
		Recipients: []string{"pm@example.com", "crew@example.com"},
	}, zaptest.NewLogger(t))

	var addr string
	var to []string
	var msg string
	ch.send = func(a string, auth smtp.Auth, from string, recipients []string, body []byte) error {
		addr, to, msg = a, recipients, string(body)
		assert.NotNil(t, auth)
		assert.Equal(t, "scheduler@example.com", from)
		return nil
	}

	require.NoError(t, ch.Send(context.Background(), testAlert()))
	assert.Equal(t, "smtp.example.com:587", addr)
	assert.Equal(t, []string{"pm@example.com", "crew@example.com"}, to)
	assert.Contains(t, msg, "Subject: [CRITICAL] plan_infeasible\r\n")
	assert.Contains(t, msg, "To: pm@example.com, crew@example.com\r\n")
	assert.True(t, strings.Contains(msg, "Plan: fp-1"))
}

func TestEmailChannel_NoRecipients(t *testing.T) {
	ch := NewEmailChannel(EmailConfig{Host: "localhost", Port: 25}, zaptest.NewLogger(t))
	assert.Error(t, ch.Send(context.Background(), testAlert()))
}
