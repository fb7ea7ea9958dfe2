package scheduler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/t77yq/worksched/internal/model"
)

var (
	// ErrValidation is returned when the inputs are rejected before computation
	ErrValidation = errors.New("invalid scheduling inputs")

	// ErrInvalidDependency is returned when a dependency references a missing task
	ErrInvalidDependency = errors.New("invalid task dependency")

	// ErrCyclicDependency is returned when a dependency cycle is detected
	ErrCyclicDependency = errors.New("cyclic task dependency")

	// ErrUnknownSuggestion is returned for a remediation kind outside the catalog
	ErrUnknownSuggestion = errors.New("unknown remediation suggestion")

	// ErrSuggestionNotApplicable is returned when a suggestion cannot change the inputs
	ErrSuggestionNotApplicable = errors.New("remediation suggestion not applicable")
)

// ValidationError describes a rejected input field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// Is lets errors.Is match ErrValidation
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// InvalidDependencyError names the task and the dependency that does not exist
type InvalidDependencyError struct {
	TaskID    model.TaskID
	MissingID model.TaskID
}

func (e *InvalidDependencyError) Error() string {
	return fmt.Sprintf("task %s depends on unknown task %s", e.TaskID, e.MissingID)
}

// Is lets errors.Is match ErrInvalidDependency
func (e *InvalidDependencyError) Is(target error) bool {
	return target == ErrInvalidDependency
}

// CyclicDependencyError carries the detected cycle in dependency order
type CyclicDependencyError struct {
	Cycle []model.TaskID
}

func (e *CyclicDependencyError) Error() string {
	parts := make([]string, len(e.Cycle))
	for i, id := range e.Cycle {
		parts[i] = string(id)
	}
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(parts, " -> "))
}

// Is lets errors.Is match ErrCyclicDependency
func (e *CyclicDependencyError) Is(target error) bool {
	return target == ErrCyclicDependency
}

// ErrorKind classifies err for callers that serialise errors.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrCyclicDependency):
		return "cyclic_dependency"
	case errors.Is(err, ErrInvalidDependency):
		return "invalid_dependency"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrUnknownSuggestion), errors.Is(err, ErrSuggestionNotApplicable):
		return "remediation"
	default:
		return "internal"
	}
}
