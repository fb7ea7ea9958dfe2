package scheduler

import (
	"sort"

	"github.com/t77yq/worksched/internal/model"
)

// SelectionStrategy ranks the candidates that could staff a task starting
// at the same instant. The placer tries combinations in the returned order.
// Candidates arrive in worker id order.
type SelectionStrategy interface {
	Order(candidates []*workerState) []*workerState
}

// IDOrderStrategy keeps worker id order
type IDOrderStrategy struct{}

// Order implements SelectionStrategy
func (IDOrderStrategy) Order(candidates []*workerState) []*workerState {
	return candidates
}

// HelpersFirstStrategy consumes helpers before owners, keeping id order
// within each group
type HelpersFirstStrategy struct{}

// Order implements SelectionStrategy
func (HelpersFirstStrategy) Order(candidates []*workerState) []*workerState {
	ordered := append([]*workerState(nil), candidates...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].worker.Type != model.WorkerTypeOwner && ordered[j].worker.Type == model.WorkerTypeOwner
	})
	return ordered
}

func strategyFor(preferHelpers bool) SelectionStrategy {
	if preferHelpers {
		return HelpersFirstStrategy{}
	}
	return IDOrderStrategy{}
}
