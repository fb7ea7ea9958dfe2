package model

import "time"

// RunStats summarises one engine computation
type RunStats struct {
	TaskCount        int     `json:"task_count"`
	PlacedCount      int     `json:"placed_count"`
	UnscheduledCount int     `json:"unscheduled_count"`
	WorkerCount      int     `json:"worker_count"`
	AvailableWorkers int     `json:"available_workers"`
	PlacedHours      float64 `json:"placed_hours"`
	EstimatedCost    float64 `json:"estimated_cost"`
	HorizonDays      int     `json:"horizon_days"`
}

// HostStats represents host resource usage of the scheduling service
type HostStats struct {
	CPUUsage    float64   `json:"cpu_usage"`
	MemoryUsage float64   `json:"memory_usage"`
	CollectedAt time.Time `json:"collected_at"`
}

// ResultSummary is the announcement of one computed plan
type ResultSummary struct {
	RequestID   string    `json:"request_id"`
	Fingerprint string    `json:"fingerprint"`
	Verdict     Verdict   `json:"verdict"`
	FinishTime  time.Time `json:"finish_time"`
	Unscheduled []TaskID  `json:"unscheduled,omitempty"`
	Stats       RunStats  `json:"stats"`
	Duration    float64   `json:"duration_ms"`
	ComputedAt  time.Time `json:"computed_at"`
}

// Summarize builds the announcement of result.
func Summarize(requestID string, result *SchedulingResult, took time.Duration, at time.Time) ResultSummary {
	return ResultSummary{
		RequestID:   requestID,
		Fingerprint: result.Fingerprint,
		Verdict:     result.Verdict,
		FinishTime:  result.FinishTime,
		Unscheduled: result.Unscheduled,
		Stats:       result.Stats,
		Duration:    float64(took) / float64(time.Millisecond),
		ComputedAt:  at,
	}
}

// SchedulerMetrics is the periodic metrics snapshot of the service
type SchedulerMetrics struct {
	Timestamp      time.Time       `json:"timestamp"`
	Host           HostStats       `json:"host"`
	Runs           int             `json:"runs"`
	Verdicts       map[Verdict]int `json:"verdicts"`
	PlacedHours    float64         `json:"placed_hours"`
	UnscheduledSum int             `json:"unscheduled_tasks"`
	AvgDurationMs  float64         `json:"avg_duration_ms"`
	LastRun        *ResultSummary  `json:"last_run,omitempty"`
}
