package scheduler

import (
	"container/heap"
	"time"

	"github.com/t77yq/worksched/internal/model"
)

// stateMachine tracks every task through blocked, ready, placed, finished
// and unscheduled. Tasks are released to the ready queue once all of their
// dependencies reached a terminal state, and become ready at the latest
// dependency end time.
type stateMachine struct {
	graph   *TaskGraph
	status  map[model.TaskID]model.TaskStatus
	running endHeap
	pending map[model.TaskID]int
	readyAt map[model.TaskID]time.Time
	queue   *ReadyQueue
	clock   time.Time
}

func newStateMachine(g *TaskGraph, start time.Time) *stateMachine {
	sm := &stateMachine{
		graph:   g,
		status:  make(map[model.TaskID]model.TaskStatus, len(g.Order)),
		pending: make(map[model.TaskID]int, len(g.Order)),
		readyAt: make(map[model.TaskID]time.Time, len(g.Order)),
		queue:   &ReadyQueue{},
		clock:   start,
	}
	for _, id := range g.Order {
		sm.pending[id] = len(g.RevAdj[id])
		sm.readyAt[id] = start
		sm.status[id] = model.TaskStatusBlocked
	}
	for _, id := range g.Roots {
		sm.release(id)
	}
	return sm
}

// next pops the earliest ready task and advances model time to its ready
// instant, finishing every placed task that ended on or before it.
func (sm *stateMachine) next() readyItem {
	item := sm.queue.pop()
	if item.readyAt.After(sm.clock) {
		sm.clock = item.readyAt
	}
	for sm.running.Len() > 0 && !sm.running[0].end.After(sm.clock) {
		done := heap.Pop(&sm.running).(placedEnd)
		sm.status[done.id] = model.TaskStatusFinished
	}
	return item
}

// failedDependency reports the first dependency of id, in declaration order,
// that ended unscheduled.
func (sm *stateMachine) failedDependency(id model.TaskID) (model.TaskID, bool) {
	for _, dep := range sm.graph.RevAdj[id] {
		if sm.status[dep] == model.TaskStatusUnscheduled {
			return dep, true
		}
	}
	return "", false
}

func (sm *stateMachine) markPlaced(id model.TaskID, end time.Time) {
	sm.status[id] = model.TaskStatusPlaced
	heap.Push(&sm.running, placedEnd{id: id, end: end})
	sm.resolve(id, end, true)
}

func (sm *stateMachine) markUnscheduled(id model.TaskID) {
	sm.status[id] = model.TaskStatusUnscheduled
	sm.resolve(id, time.Time{}, false)
}

func (sm *stateMachine) resolve(id model.TaskID, end time.Time, placed bool) {
	for _, dependent := range sm.graph.Adj[id] {
		if placed && end.After(sm.readyAt[dependent]) {
			sm.readyAt[dependent] = end
		}
		sm.pending[dependent]--
		if sm.pending[dependent] == 0 {
			sm.release(dependent)
		}
	}
}

func (sm *stateMachine) release(id model.TaskID) {
	sm.status[id] = model.TaskStatusReady
	sm.queue.push(sm.graph.Tasks[id], sm.graph.Index[id], sm.readyAt[id])
}

type placedEnd struct {
	id  model.TaskID
	end time.Time
}

// endHeap orders placed tasks by end time
type endHeap []placedEnd

func (h endHeap) Len() int            { return len(h) }
func (h endHeap) Less(i, j int) bool  { return h[i].end.Before(h[j].end) }
func (h endHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *endHeap) Push(x interface{}) { *h = append(*h, x.(placedEnd)) }
func (h *endHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
