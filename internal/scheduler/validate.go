package scheduler

import (
	"fmt"
	"time"

	"github.com/t77yq/worksched/internal/model"
)

const defaultSafetyMarginDays = 90

// runPlan is the normalized form of one request. Everything the algorithm
// needs is resolved here once so the placement code never re-checks inputs.
type runPlan struct {
	inputs           model.SchedulingInputs
	loc              *time.Location
	quantum          time.Duration
	targetDeadline   time.Time
	dropDeadDeadline time.Time
	lastDay          time.Time
}

// normalize validates in and returns a normalized plan. The caller's value
// is never modified.
func (e *Engine) normalize(in model.SchedulingInputs) (*runPlan, error) {
	if in.TargetCompletionDate.IsZero() {
		return nil, &ValidationError{Field: "target_completion_date", Message: "a target completion date is required"}
	}
	if in.PlanningStart.IsZero() {
		return nil, &ValidationError{Field: "planning_start", Message: "a planning start time is required"}
	}
	if len(in.Workers) == 0 {
		return nil, &ValidationError{Field: "workers", Message: "at least one worker is required"}
	}
	if len(in.Tasks) == 0 {
		return nil, &ValidationError{Field: "tasks", Message: "there is nothing to schedule"}
	}

	in = in.Clone()

	tz := in.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, &ValidationError{Field: "timezone", Message: fmt.Sprintf("unknown timezone %q", tz)}
	}
	in.Timezone = tz

	if in.DropDeadDate.IsZero() {
		in.DropDeadDate = in.TargetCompletionDate
	}
	target := civilDay(in.TargetCompletionDate, loc)
	dropDead := civilDay(in.DropDeadDate, loc)
	if dropDead.Before(target) {
		return nil, &ValidationError{Field: "drop_dead_date", Message: "drop-dead date precedes the target completion date"}
	}

	if in.Tempo == "" {
		in.Tempo = e.config.DefaultTempo
	}
	switch in.Tempo {
	case model.TempoFastTrack, model.TempoSteady, model.TempoExtended:
	default:
		return nil, &ValidationError{Field: "tempo", Message: fmt.Sprintf("unknown tempo %q", in.Tempo)}
	}

	if in.Granularity == "" {
		in.Granularity = e.config.DefaultGranularity
	}
	switch in.Granularity {
	case model.GranularityQuick, model.GranularityStandard, model.GranularityDetailed:
	default:
		return nil, &ValidationError{Field: "granularity", Message: fmt.Sprintf("unknown granularity %q", in.Granularity)}
	}

	if in.FlowMethod == "" {
		in.FlowMethod = model.FlowSinglePiece
	}
	switch in.FlowMethod {
	case model.FlowSinglePiece, model.FlowBatch:
	default:
		return nil, &ValidationError{Field: "flow_method", Message: fmt.Sprintf("unknown flow method %q", in.FlowMethod)}
	}

	if in.SafetyMarginDays < 0 {
		return nil, &ValidationError{Field: "safety_margin_days", Message: "must not be negative"}
	}
	if in.SafetyMarginDays == 0 {
		in.SafetyMarginDays = e.config.SafetyMarginDays
	}
	if in.SiteConstraints.QuietHours.IsZero() {
		in.SiteConstraints.QuietHours = e.config.QuietHours
	}

	if err := validateWorkers(in.Workers); err != nil {
		return nil, err
	}
	if err := validateTasks(in.Tasks); err != nil {
		return nil, err
	}

	return &runPlan{
		inputs:           in,
		loc:              loc,
		quantum:          in.Granularity.Quantum(),
		targetDeadline:   target.AddDate(0, 0, 1),
		dropDeadDeadline: dropDead.AddDate(0, 0, 1),
		lastDay:          dropDead.AddDate(0, 0, in.SafetyMarginDays),
	}, nil
}

func validateWorkers(workers []model.Worker) error {
	seen := make(map[string]bool, len(workers))
	configured := false
	for i := range workers {
		w := &workers[i]
		field := fmt.Sprintf("workers[%d]", i)
		if w.ID == "" {
			return &ValidationError{Field: field, Message: "worker id is required"}
		}
		if seen[w.ID] {
			return &ValidationError{Field: field, Message: "duplicate worker id " + w.ID}
		}
		seen[w.ID] = true
		if w.Type == "" {
			w.Type = model.WorkerTypeHelper
		}
		if w.Type != model.WorkerTypeOwner && w.Type != model.WorkerTypeHelper {
			return &ValidationError{Field: field, Message: fmt.Sprintf("unknown worker type %q", w.Type)}
		}
		if w.WeekendsOnly && w.WeekdaysAfterFivePm {
			return &ValidationError{Field: field, Message: "weekends-only and weekdays-after-five-pm are mutually exclusive"}
		}
		if w.MaxTotalHours < 0 {
			return &ValidationError{Field: field, Message: "max total hours must not be negative"}
		}
		if w.HasAvailabilityConfig() {
			configured = true
		}
	}
	if !configured {
		return &ValidationError{Field: "workers", Message: "no availability is configured for any worker"}
	}
	return nil
}

func validateTasks(tasks []model.Task) error {
	for i := range tasks {
		t := &tasks[i]
		field := fmt.Sprintf("tasks[%d]", i)
		if t.ID == "" {
			return &ValidationError{Field: field, Message: "task id is required"}
		}
		if n, ok := t.TagInt(model.TagWorkers); ok {
			t.WorkersNeeded = n
		}
		switch {
		case t.EstimatedHours < 0, t.Estimates.Low < 0, t.Estimates.Medium < 0, t.Estimates.High < 0:
			return &ValidationError{Field: field, Message: "hours must not be negative"}
		case t.MinContiguousHours < 0:
			return &ValidationError{Field: field, Message: "minimum contiguous hours must not be negative"}
		case t.WorkersNeeded < 0:
			return &ValidationError{Field: field, Message: "workers needed must not be negative"}
		case t.Confidence < 0 || t.Confidence > 1:
			return &ValidationError{Field: field, Message: "confidence must be between 0 and 1"}
		}
	}
	return nil
}
