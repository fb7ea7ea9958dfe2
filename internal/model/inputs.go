package model

import "time"

// Tempo selects which percentile estimate is used for every task in a run
type Tempo string

const (
	TempoFastTrack Tempo = "fast_track"
	TempoSteady    Tempo = "steady"
	TempoExtended  Tempo = "extended"
)

// FlowMethod is the flow-optimization method used to derive space/step edges
type FlowMethod string

const (
	FlowSinglePiece FlowMethod = "single_piece_flow"
	FlowBatch       FlowMethod = "batch_flow"
)

// Granularity controls the planning time quantum
type Granularity string

const (
	GranularityQuick    Granularity = "quick"
	GranularityStandard Granularity = "standard"
	GranularityDetailed Granularity = "detailed"
)

// Quantum returns the placement time step for the granularity.
func (g Granularity) Quantum() time.Duration {
	switch g {
	case GranularityQuick:
		return time.Hour
	case GranularityDetailed:
		return 15 * time.Minute
	default:
		return 30 * time.Minute
	}
}

// WorkWindow restricts site work on one day type. The zero value imposes
// no restriction.
type WorkWindow struct {
	Start  ClockTime `json:"start" yaml:"start"`
	End    ClockTime `json:"end" yaml:"end"`
	Closed bool      `json:"closed,omitempty" yaml:"closed,omitempty"`
}

// IsZero reports whether the window is unrestricted.
func (w WorkWindow) IsZero() bool {
	return w.Start == 0 && w.End == 0 && !w.Closed
}

// SiteConstraints are the site-level rules every worker is subject to
type SiteConstraints struct {
	WeekdayHours     WorkWindow  `json:"weekday_hours" yaml:"weekday_hours"`
	WeekendHours     WorkWindow  `json:"weekend_hours" yaml:"weekend_hours"`
	NightWorkAllowed bool        `json:"night_work_allowed" yaml:"night_work_allowed"`
	NoiseCurfew      *ClockTime  `json:"noise_curfew,omitempty" yaml:"noise_curfew,omitempty"`
	QuietHours       ClockWindow `json:"quiet_hours" yaml:"quiet_hours"`
}

// SchedulingInputs is the immutable input bundle for one computation
type SchedulingInputs struct {
	PlanningStart        time.Time       `json:"planning_start" yaml:"planning_start"`
	TargetCompletionDate time.Time       `json:"target_completion_date" yaml:"target_completion_date"`
	DropDeadDate         time.Time       `json:"drop_dead_date" yaml:"drop_dead_date"`
	Timezone             string          `json:"timezone" yaml:"timezone"`
	Tasks                []Task          `json:"tasks" yaml:"tasks"`
	Workers              []Worker        `json:"workers" yaml:"workers"`
	SiteConstraints      SiteConstraints `json:"site_constraints" yaml:"site_constraints"`
	BlackoutDates        []time.Time     `json:"blackout_dates,omitempty" yaml:"blackout_dates,omitempty"`
	Tempo                Tempo           `json:"tempo" yaml:"tempo"`
	FlowMethod           FlowMethod      `json:"flow_method" yaml:"flow_method"`
	Granularity          Granularity     `json:"granularity" yaml:"granularity"`
	SafetyMarginDays     int             `json:"safety_margin_days,omitempty" yaml:"safety_margin_days,omitempty"`
	PreferHelpers        bool            `json:"prefer_helpers,omitempty" yaml:"prefer_helpers,omitempty"`
	PreviewRemediations  bool            `json:"preview_remediations,omitempty" yaml:"preview_remediations,omitempty"`
}

// Clone returns a deep copy so remediation can modify inputs without
// touching the caller's value.
func (in SchedulingInputs) Clone() SchedulingInputs {
	c := in
	c.Tasks = make([]Task, len(in.Tasks))
	for i, t := range in.Tasks {
		c.Tasks[i] = t.Clone()
	}
	c.Workers = make([]Worker, len(in.Workers))
	for i, w := range in.Workers {
		c.Workers[i] = w.Clone()
	}
	c.BlackoutDates = append([]time.Time(nil), in.BlackoutDates...)
	if in.SiteConstraints.NoiseCurfew != nil {
		curfew := *in.SiteConstraints.NoiseCurfew
		c.SiteConstraints.NoiseCurfew = &curfew
	}
	return c
}
