// Package flow derives the dependency edges implied by a flow-optimization
// method from the space:/step: tags a caller puts on its tasks.
package flow

import (
	"math"
	"sort"

	"github.com/t77yq/worksched/internal/model"
)

// Layout is the space/step arrangement found in a task list
type Layout struct {
	Spaces []string                        // ordered by space-order tag, then first appearance
	Steps  []int                           // distinct step numbers, ascending
	Cells  map[string]map[int]model.TaskID // space -> step -> task
}

// BuildLayout collects every task carrying both a space: and a step: tag.
func BuildLayout(tasks []model.Task) *Layout {
	l := &Layout{Cells: make(map[string]map[int]model.TaskID)}
	spaceOrder := make(map[string]int)
	firstSeen := make(map[string]int)
	stepSet := make(map[int]bool)

	for i := range tasks {
		t := &tasks[i]
		space := t.Space()
		step, ok := t.TagInt(model.TagStep)
		if space == "" || !ok {
			continue
		}
		if _, known := l.Cells[space]; !known {
			l.Cells[space] = make(map[int]model.TaskID)
			firstSeen[space] = i
			spaceOrder[space] = math.MaxInt
			l.Spaces = append(l.Spaces, space)
		}
		if order, ok := t.TagInt(model.TagSpaceOrder); ok && order < spaceOrder[space] {
			spaceOrder[space] = order
		}
		if _, dup := l.Cells[space][step]; !dup {
			l.Cells[space][step] = t.ID
		}
		stepSet[step] = true
	}

	sort.SliceStable(l.Spaces, func(i, j int) bool {
		a, b := l.Spaces[i], l.Spaces[j]
		if spaceOrder[a] != spaceOrder[b] {
			return spaceOrder[a] < spaceOrder[b]
		}
		return firstSeen[a] < firstSeen[b]
	})
	for step := range stepSet {
		l.Steps = append(l.Steps, step)
	}
	sort.Ints(l.Steps)
	return l
}

// Empty reports whether no task carries space and step tags.
func (l *Layout) Empty() bool {
	return len(l.Spaces) == 0
}

// Sequence returns the order in which the method drives the tagged tasks.
// Single-piece flow finishes a space before starting the next; batch flow
// moves every space through a step before any space starts the next one.
func (l *Layout) Sequence(method model.FlowMethod) []model.TaskID {
	var seq []model.TaskID
	if method == model.FlowBatch {
		for _, step := range l.Steps {
			for _, space := range l.Spaces {
				if id, ok := l.Cells[space][step]; ok {
					seq = append(seq, id)
				}
			}
		}
		return seq
	}
	for _, space := range l.Spaces {
		for _, step := range l.Steps {
			if id, ok := l.Cells[space][step]; ok {
				seq = append(seq, id)
			}
		}
	}
	return seq
}

// Edges maps each tagged task to the predecessor the method gives it.
func (l *Layout) Edges(method model.FlowMethod) map[model.TaskID]model.TaskID {
	seq := l.Sequence(method)
	edges := make(map[model.TaskID]model.TaskID, len(seq))
	for i := 1; i < len(seq); i++ {
		edges[seq[i]] = seq[i-1]
	}
	return edges
}

// Apply returns a copy of tasks with the method's edges added.
func Apply(tasks []model.Task, method model.FlowMethod) []model.Task {
	return Rewire(tasks, "", method)
}

// Rewire returns a copy of tasks where the edges implied by from are
// replaced with those implied by to. Edges the caller added for other
// reasons are kept. An empty from only adds.
func Rewire(tasks []model.Task, from, to model.FlowMethod) []model.Task {
	layout := BuildLayout(tasks)
	var remove map[model.TaskID]model.TaskID
	if from != "" {
		remove = layout.Edges(from)
	}
	add := layout.Edges(to)

	out := make([]model.Task, len(tasks))
	for i, t := range tasks {
		c := t.Clone()
		deps := make([]model.TaskID, 0, len(c.Dependencies)+1)
		seen := make(map[model.TaskID]bool)
		for _, dep := range c.Dependencies {
			if old, ok := remove[c.ID]; ok && old == dep {
				continue
			}
			if !seen[dep] {
				seen[dep] = true
				deps = append(deps, dep)
			}
		}
		if dep, ok := add[c.ID]; ok && !seen[dep] {
			deps = append(deps, dep)
		}
		c.Dependencies = deps
		out[i] = c
	}
	return out
}

// Other returns the alternative flow method.
func Other(method model.FlowMethod) model.FlowMethod {
	if method == model.FlowBatch {
		return model.FlowSinglePiece
	}
	return model.FlowBatch
}
