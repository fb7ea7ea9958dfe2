package model

import "time"

// PlacementStatus is the status of one output placement
type PlacementStatus string

const (
	PlacementConfirmed   PlacementStatus = "confirmed"
	PlacementTentative   PlacementStatus = "tentative"
	PlacementUnscheduled PlacementStatus = "unscheduled"
)

// Verdict is the feasibility verdict of a whole plan
type Verdict string

const (
	VerdictOnTrack        Verdict = "on_track"
	VerdictOffTrack       Verdict = "off_track"
	VerdictInfeasible     Verdict = "infeasible"
	VerdictNoAvailability Verdict = "no_availability"
)

// ScheduledTask is one worker session of a placed task. A task needing
// several workers or spanning several sessions yields several records.
type ScheduledTask struct {
	TaskID               TaskID          `json:"task_id"`
	Title                string          `json:"title,omitempty"`
	WorkerID             string          `json:"worker_id"`
	Session              int             `json:"session"`
	StartTime            time.Time       `json:"start_time"`
	EndTime              time.Time       `json:"end_time"`
	TargetCompletionDate time.Time       `json:"target_completion_date"`
	LatestCompletionDate time.Time       `json:"latest_completion_date"`
	Status               PlacementStatus `json:"status"`
	Reason               string          `json:"reason,omitempty"`
}

// Hours returns the worker time consumed by this record.
func (s ScheduledTask) Hours() float64 {
	if s.Status == PlacementUnscheduled {
		return 0
	}
	return s.EndTime.Sub(s.StartTime).Hours()
}

// SuggestionKind names an entry of the remediation catalog
type SuggestionKind string

const (
	SuggestAddWorker    SuggestionKind = "add_worker"
	SuggestExtendHours  SuggestionKind = "extend_hours"
	SuggestRelaxTempo   SuggestionKind = "relax_tempo"
	SuggestRelaxPresets SuggestionKind = "relax_presets"
	SuggestSwitchFlow   SuggestionKind = "switch_flow"
)

// RemediationSuggestion is a corrective action with an optional what-if preview
type RemediationSuggestion struct {
	Kind        SuggestionKind    `json:"kind"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Preview     *SchedulingResult `json:"preview,omitempty"`
}

// SchedulingResult is the full output of one computation
type SchedulingResult struct {
	Fingerprint    string                  `json:"fingerprint"`
	ScheduledTasks []ScheduledTask         `json:"scheduled_tasks"`
	FinishTime     time.Time               `json:"finish_time"`
	Verdict        Verdict                 `json:"verdict"`
	OnTrack        bool                    `json:"on_track"`
	Feasible       bool                    `json:"feasible"`
	Unscheduled    []TaskID                `json:"unscheduled,omitempty"`
	CriticalPath   []TaskID                `json:"critical_path,omitempty"`
	Suggestions    []RemediationSuggestion `json:"suggestions,omitempty"`
	Stats          RunStats                `json:"stats"`
}

// TasksForWorker returns the records assigned to workerID in result order.
func (r *SchedulingResult) TasksForWorker(workerID string) []ScheduledTask {
	var out []ScheduledTask
	for _, st := range r.ScheduledTasks {
		if st.WorkerID == workerID && st.Status != PlacementUnscheduled {
			out = append(out, st)
		}
	}
	return out
}

// WorkerHours sums placed hours per worker.
func (r *SchedulingResult) WorkerHours() map[string]float64 {
	hours := make(map[string]float64)
	for _, st := range r.ScheduledTasks {
		if st.WorkerID == "" || st.Status == PlacementUnscheduled {
			continue
		}
		hours[st.WorkerID] += st.Hours()
	}
	return hours
}
