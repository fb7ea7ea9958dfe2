package scheduler

import (
	"time"

	"github.com/t77yq/worksched/internal/model"
)

// completionBounds holds the backward-pass figures of one task
type completionBounds struct {
	target time.Time
	latest time.Time
	slack  time.Duration
}

// backwardPass walks the graph in reverse topological order. A terminal
// task must finish by the deadline itself; any other task must finish
// early enough for its tightest dependent to still fit its placed span.
func backwardPass(g *TaskGraph, spans map[model.TaskID]time.Duration, ends map[model.TaskID]time.Time, targetDeadline, dropDeadDeadline time.Time) map[model.TaskID]*completionBounds {
	bounds := make(map[model.TaskID]*completionBounds, len(g.Order))

	for i := len(g.Order) - 1; i >= 0; i-- {
		id := g.Order[i]
		b := &completionBounds{target: targetDeadline, latest: dropDeadDeadline}
		for _, succ := range g.Adj[id] {
			sb := bounds[succ]
			if t := sb.target.Add(-spans[succ]); t.Before(b.target) {
				b.target = t
			}
			if l := sb.latest.Add(-spans[succ]); l.Before(b.latest) {
				b.latest = l
			}
		}
		if end, ok := ends[id]; ok {
			b.slack = b.target.Sub(end)
		}
		bounds[id] = b
	}
	return bounds
}

// criticalPath returns the placed tasks sharing the minimal slack, in
// topological order.
func criticalPath(g *TaskGraph, bounds map[model.TaskID]*completionBounds, ends map[model.TaskID]time.Time) []model.TaskID {
	first := true
	var minSlack time.Duration
	for _, id := range g.Order {
		if _, placed := ends[id]; !placed {
			continue
		}
		if first || bounds[id].slack < minSlack {
			minSlack = bounds[id].slack
			first = false
		}
	}

	var path []model.TaskID
	for _, id := range g.Order {
		if _, placed := ends[id]; placed && bounds[id].slack == minSlack {
			path = append(path, id)
		}
	}
	return path
}
