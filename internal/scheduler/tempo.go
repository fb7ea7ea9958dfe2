package scheduler

import (
	"math"
	"time"

	"github.com/t77yq/worksched/internal/model"
)

// SelectHours picks the duration estimate for t under tempo. Tasks without
// percentile estimates keep their caller-adjusted EstimatedHours.
func SelectHours(t model.Task, tempo model.Tempo) float64 {
	if t.Estimates.IsZero() {
		return t.EstimatedHours
	}
	var hours float64
	switch tempo {
	case model.TempoFastTrack:
		hours = t.Estimates.Low
	case model.TempoExtended:
		hours = t.Estimates.High
	default:
		hours = t.Estimates.Medium
	}
	if hours > 0 {
		return hours
	}
	if t.Estimates.Medium > 0 {
		return t.Estimates.Medium
	}
	return t.EstimatedHours
}

// SelectDurations runs the tempo selection once for every task and rounds
// each duration up to a whole planning quantum.
func SelectDurations(tasks []model.Task, tempo model.Tempo, quantum time.Duration) map[model.TaskID]time.Duration {
	durations := make(map[model.TaskID]time.Duration, len(tasks))
	for _, t := range tasks {
		durations[t.ID] = roundUp(hoursToDuration(SelectHours(t, tempo)), quantum)
	}
	return durations
}

func hoursToDuration(h float64) time.Duration {
	return time.Duration(math.Round(h * float64(time.Hour)))
}

func roundUp(d, quantum time.Duration) time.Duration {
	if d <= 0 || quantum <= 0 {
		return d
	}
	n := d / quantum
	if d%quantum != 0 {
		n++
	}
	return n * quantum
}
