package scheduler

import (
	"time"

	"github.com/t77yq/worksched/internal/model"
)

// assessFeasibility compares the computed finish against the deadlines.
func assessFeasibility(finish time.Time, unscheduled int, availableWorkers int, needsWorkers bool, plan *runPlan) model.Verdict {
	switch {
	case availableWorkers == 0 && needsWorkers:
		return model.VerdictNoAvailability
	case unscheduled > 0 || finish.After(plan.dropDeadDeadline):
		return model.VerdictInfeasible
	case finish.After(plan.targetDeadline):
		return model.VerdictOffTrack
	default:
		return model.VerdictOnTrack
	}
}
