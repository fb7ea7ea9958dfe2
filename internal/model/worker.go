package model

// WorkerType distinguishes the project owner from helpers
type WorkerType string

const (
	WorkerTypeOwner  WorkerType = "owner"
	WorkerTypeHelper WorkerType = "helper"
)

// AvailabilitySlot is an explicit per-date override
type AvailabilitySlot struct {
	Start     ClockTime `json:"start" yaml:"start"`
	End       ClockTime `json:"end" yaml:"end"`
	Available bool      `json:"available" yaml:"available"`
}

// Worker represents a person that can be assigned task time
type Worker struct {
	ID                  string                        `json:"id" yaml:"id"`
	Name                string                        `json:"name" yaml:"name"`
	Type                WorkerType                    `json:"type" yaml:"type"`
	WorkingHours        ClockWindow                   `json:"working_hours" yaml:"working_hours"`
	WeekendsOnly        bool                          `json:"weekends_only,omitempty" yaml:"weekends_only,omitempty"`
	WeekdaysAfterFivePm bool                          `json:"weekdays_after_five_pm,omitempty" yaml:"weekdays_after_five_pm,omitempty"`
	Availability        map[string][]AvailabilitySlot `json:"availability,omitempty" yaml:"availability,omitempty"`
	MaxTotalHours       float64                       `json:"max_total_hours,omitempty" yaml:"max_total_hours,omitempty"`
	CostPerHour         float64                       `json:"cost_per_hour,omitempty" yaml:"cost_per_hour,omitempty"`
}

// HasAvailabilityConfig reports whether any source of availability is set.
func (w *Worker) HasAvailabilityConfig() bool {
	if !w.WorkingHours.IsZero() || w.WeekdaysAfterFivePm {
		return true
	}
	for _, slots := range w.Availability {
		for _, s := range slots {
			if s.Available {
				return true
			}
		}
	}
	return false
}

// Clone returns a deep copy of the worker.
func (w Worker) Clone() Worker {
	c := w
	if w.Availability != nil {
		c.Availability = make(map[string][]AvailabilitySlot, len(w.Availability))
		for k, v := range w.Availability {
			c.Availability[k] = append([]AvailabilitySlot(nil), v...)
		}
	}
	return c
}
