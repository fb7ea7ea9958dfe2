package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/t77yq/worksched/internal/model"
)

const (
	alertStream      = "ALERTS"
	defaultDedupeTTL = 24 * time.Hour
	pruneInterval    = time.Minute
)

// AlertSubject is the subject alerts of type t are published on.
func AlertSubject(t model.AlertType) string {
	return "alert." + string(t)
}

// DefaultRules covers every verdict that is not on track plus any
// unscheduled task.
func DefaultRules() []*model.AlertRule {
	return []*model.AlertRule{
		{Name: "Plan off track", Type: model.AlertTypePlanOffTrack, Severity: model.AlertSeverityWarning},
		{Name: "Plan infeasible", Type: model.AlertTypePlanInfeasible, Severity: model.AlertSeverityCritical},
		{Name: "No availability", Type: model.AlertTypeNoAvailability, Severity: model.AlertSeverityCritical},
		{Name: "Unscheduled tasks", Type: model.AlertTypeUnscheduledTasks, Severity: model.AlertSeverityWarning},
	}
}

// AlertManager turns plan results into alerts. A rule fires at most once
// per plan fingerprint within the dedupe window.
type AlertManager struct {
	logger    *zap.Logger
	js        nats.JetStreamContext
	rules     sync.Map
	fired     sync.Map // ruleID/fingerprint -> time.Time
	dedupeTTL time.Duration
	chanMu    sync.RWMutex
	channels  map[string]NotificationChannel
	stop      chan struct{}
	once      sync.Once
	sub       *nats.Subscription
}

// NewAlertManager creates a new alert manager
func NewAlertManager(logger *zap.Logger, js nats.JetStreamContext) *AlertManager {
	return &AlertManager{
		logger:    logger.Named("alert-manager"),
		js:        js,
		dedupeTTL: defaultDedupeTTL,
		channels:  make(map[string]NotificationChannel),
		stop:      make(chan struct{}),
	}
}

// Start ensures the alert stream and subscribes to plan results
func (m *AlertManager) Start(ctx context.Context) error {
	stream, err := m.js.StreamInfo(alertStream)
	if err != nil && err != nats.ErrStreamNotFound {
		return fmt.Errorf("failed to get stream info: %w", err)
	}

	if stream == nil {
		_, err = m.js.AddStream(&nats.StreamConfig{
			Name:     alertStream,
			Subjects: []string{"alert.*"},
			Storage:  nats.FileStorage,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
	}

	sub, err := m.js.Subscribe(SubjectResult, m.handleResult, nats.DeliverNew())
	if err != nil {
		return fmt.Errorf("failed to subscribe to plan results: %w", err)
	}
	m.sub = sub

	go m.pruneLoop(ctx)

	m.logger.Info("Alert manager started")

	return nil
}

// Stop stops the alert manager
func (m *AlertManager) Stop() {
	m.once.Do(func() {
		if m.sub != nil {
			_ = m.sub.Unsubscribe()
		}
		close(m.stop)
	})
}

// AddChannel registers a notification channel under name. Every published
// alert is also sent to every channel.
func (m *AlertManager) AddChannel(name string, ch NotificationChannel) {
	m.chanMu.Lock()
	defer m.chanMu.Unlock()
	m.channels[name] = ch
}

// GetRule returns a rule by ID
func (m *AlertManager) GetRule(id string) (*model.AlertRule, error) {
	value, ok := m.rules.Load(id)
	if !ok {
		return nil, fmt.Errorf("rule not found: %s", id)
	}
	return value.(*model.AlertRule), nil
}

// AddRule adds a new alert rule
func (m *AlertManager) AddRule(rule *model.AlertRule) error {
	if rule.Type == "" {
		return fmt.Errorf("rule %q has no type", rule.Name)
	}
	if rule.Threshold < 0 {
		return fmt.Errorf("rule %q has negative threshold", rule.Name)
	}
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = rule.CreatedAt
	m.rules.Store(rule.ID, rule)
	return nil
}

// UpdateRule updates an existing alert rule
func (m *AlertManager) UpdateRule(rule *model.AlertRule) error {
	existing, ok := m.rules.Load(rule.ID)
	if !ok {
		return fmt.Errorf("rule not found: %s", rule.ID)
	}
	rule.CreatedAt = existing.(*model.AlertRule).CreatedAt
	rule.UpdatedAt = time.Now()
	m.rules.Store(rule.ID, rule)
	return nil
}

// DeleteRule deletes an alert rule
func (m *AlertManager) DeleteRule(id string) error {
	if _, ok := m.rules.Load(id); !ok {
		return fmt.Errorf("rule not found: %s", id)
	}
	m.rules.Delete(id)
	return nil
}

func (m *AlertManager) handleResult(msg *nats.Msg) {
	var summary model.ResultSummary
	if err := json.Unmarshal(msg.Data, &summary); err != nil {
		m.logger.Error("Failed to unmarshal plan result", zap.Error(err))
		return
	}

	for _, alert := range m.Evaluate(summary) {
		if err := m.publish(alert); err != nil {
			m.logger.Error("Failed to publish alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err))
		}
		m.notify(alert)
	}
}

func (m *AlertManager) notify(alert *model.Alert) {
	m.chanMu.RLock()
	defer m.chanMu.RUnlock()

	for name, ch := range m.channels {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := ch.Send(ctx, alert)
		cancel()
		if err != nil {
			m.logger.Error("Failed to send alert notification",
				zap.String("channel", name),
				zap.String("alert_id", alert.ID),
				zap.Error(err))
		}
	}
}

// Evaluate returns the alerts summary raises that have not already fired
// for the same plan.
func (m *AlertManager) Evaluate(summary model.ResultSummary) []*model.Alert {
	var alerts []*model.Alert
	now := time.Now()

	m.rules.Range(func(key, value interface{}) bool {
		rule := value.(*model.AlertRule)
		if !matches(rule, summary) {
			return true
		}

		dedupeKey := rule.ID + "/" + summary.Fingerprint
		if _, loaded := m.fired.LoadOrStore(dedupeKey, now); loaded {
			return true
		}

		alerts = append(alerts, &model.Alert{
			ID:          uuid.New().String(),
			RuleID:      rule.ID,
			Type:        rule.Type,
			Severity:    rule.Severity,
			Fingerprint: summary.Fingerprint,
			Message:     fmt.Sprintf("%s: plan %s finishes %s", rule.Name, summary.Verdict, summary.FinishTime.Format(time.RFC3339)),
			Data: map[string]interface{}{
				"request_id":  summary.RequestID,
				"verdict":     string(summary.Verdict),
				"unscheduled": len(summary.Unscheduled),
			},
			CreatedAt: now,
		})
		return true
	})

	return alerts
}

func matches(rule *model.AlertRule, summary model.ResultSummary) bool {
	switch rule.Type {
	case model.AlertTypePlanOffTrack:
		return summary.Verdict == model.VerdictOffTrack
	case model.AlertTypePlanInfeasible:
		return summary.Verdict == model.VerdictInfeasible
	case model.AlertTypeNoAvailability:
		return summary.Verdict == model.VerdictNoAvailability
	case model.AlertTypeUnscheduledTasks:
		return len(summary.Unscheduled) > rule.Threshold
	}
	return false
}

func (m *AlertManager) publish(alert *model.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	if _, err := m.js.Publish(AlertSubject(alert.Type), data); err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}

	m.logger.Info("Alert created",
		zap.String("id", alert.ID),
		zap.String("rule_id", alert.RuleID),
		zap.String("type", string(alert.Type)),
		zap.String("severity", string(alert.Severity)),
		zap.String("fingerprint", alert.Fingerprint))

	return nil
}

func (m *AlertManager) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.prune(now)
		}
	}
}

// prune forgets dedupe entries older than the window so a plan that is
// still failing a day later alerts again.
func (m *AlertManager) prune(now time.Time) int {
	removed := 0
	m.fired.Range(func(key, value interface{}) bool {
		if now.Sub(value.(time.Time)) > m.dedupeTTL {
			m.fired.Delete(key)
			removed++
		}
		return true
	})
	if removed > 0 {
		m.logger.Debug("Pruned alert dedupe entries", zap.Int("count", removed))
	}
	return removed
}
