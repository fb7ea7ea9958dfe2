package model

import (
	"strconv"
	"strings"
)

// TaskID identifies a task within one scheduling run
type TaskID string

// Tag prefixes understood by the engine and the flow helper
const (
	TagSpace      = "space:"
	TagStep       = "step:"
	TagSpaceOrder = "space-order:"
	TagWorkers    = "workers:"
)

// Estimates holds the 10th/50th/90th percentile duration estimates in hours
type Estimates struct {
	Low    float64 `json:"low" yaml:"low"`
	Medium float64 `json:"medium" yaml:"medium"`
	High   float64 `json:"high" yaml:"high"`
}

// IsZero reports whether no percentile estimate was supplied.
func (e Estimates) IsZero() bool {
	return e.Low == 0 && e.Medium == 0 && e.High == 0
}

// Task represents a unit of work to be placed on worker time
type Task struct {
	ID                 TaskID    `json:"id" yaml:"id"`
	Title              string    `json:"title" yaml:"title"`
	EstimatedHours     float64   `json:"estimated_hours" yaml:"estimated_hours"`
	Estimates          Estimates `json:"estimates,omitempty" yaml:"estimates,omitempty"`
	MinContiguousHours float64   `json:"min_contiguous_hours,omitempty" yaml:"min_contiguous_hours,omitempty"`
	Dependencies       []TaskID  `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Tags               []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
	Confidence         float64   `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	WorkersNeeded      int       `json:"workers_needed" yaml:"workers_needed"`
}

// TagValue returns the value of the first tag carrying prefix.
func (t *Task) TagValue(prefix string) (string, bool) {
	for _, tag := range t.Tags {
		if strings.HasPrefix(tag, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(tag, prefix)), true
		}
	}
	return "", false
}

// TagInt returns the integer value of the first tag carrying prefix.
func (t *Task) TagInt(prefix string) (int, bool) {
	v, ok := t.TagValue(prefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Space returns the physical sub-area the task belongs to, if tagged.
func (t *Task) Space() string {
	v, _ := t.TagValue(TagSpace)
	return v
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	c := t
	c.Dependencies = append([]TaskID(nil), t.Dependencies...)
	c.Tags = append([]string(nil), t.Tags...)
	return c
}

// TaskStatus represents where a task is in the placement state machine
type TaskStatus string

const (
	TaskStatusBlocked     TaskStatus = "blocked"
	TaskStatusReady       TaskStatus = "ready"
	TaskStatusPlaced      TaskStatus = "placed"
	TaskStatusFinished    TaskStatus = "finished"
	TaskStatusUnscheduled TaskStatus = "unscheduled"
)
