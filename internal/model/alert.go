package model

import "time"

// AlertSeverity represents the severity level of an alert
type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "info"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityCritical AlertSeverity = "critical"
)

// AlertType represents the type of alert
type AlertType string

const (
	AlertTypePlanOffTrack     AlertType = "plan_off_track"
	AlertTypePlanInfeasible   AlertType = "plan_infeasible"
	AlertTypeNoAvailability   AlertType = "no_availability"
	AlertTypeUnscheduledTasks AlertType = "unscheduled_tasks"
)

// AlertRule decides which plan verdicts raise alerts. Threshold applies to
// unscheduled-task rules: the alert fires when more tasks than that are
// unscheduled.
type AlertRule struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Type      AlertType     `json:"type"`
	Severity  AlertSeverity `json:"severity"`
	Threshold int           `json:"threshold,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Alert represents an alert raised about a computed plan
type Alert struct {
	ID          string                 `json:"id"`
	RuleID      string                 `json:"rule_id"`
	Type        AlertType              `json:"type"`
	Severity    AlertSeverity          `json:"severity"`
	Fingerprint string                 `json:"fingerprint"`
	Message     string                 `json:"message"`
	Data        map[string]interface{} `json:"data,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}
