package scheduler

import (
	"container/heap"

	"github.com/t77yq/worksched/internal/model"
)

// TaskGraph is the validated dependency DAG of one run.
type TaskGraph struct {
	Tasks  map[model.TaskID]*model.Task
	Index  map[model.TaskID]int            // position in the input list
	Adj    map[model.TaskID][]model.TaskID // task -> tasks that depend on it
	RevAdj map[model.TaskID][]model.TaskID // task -> its dependencies
	Roots  []model.TaskID                  // tasks with no dependencies
	Leaves []model.TaskID                  // tasks nothing depends on
	Order  []model.TaskID                  // stable topological order
}

// BuildTaskGraph validates the task list and builds the adjacency maps once.
// Dependency references are checked before cycles so that a missing task is
// reported as such rather than as a broken cycle.
func BuildTaskGraph(tasks []model.Task) (*TaskGraph, error) {
	g := &TaskGraph{
		Tasks:  make(map[model.TaskID]*model.Task, len(tasks)),
		Index:  make(map[model.TaskID]int, len(tasks)),
		Adj:    make(map[model.TaskID][]model.TaskID),
		RevAdj: make(map[model.TaskID][]model.TaskID),
	}

	for i := range tasks {
		t := &tasks[i]
		if _, dup := g.Tasks[t.ID]; dup {
			return nil, &ValidationError{Field: "tasks", Message: "duplicate task id " + string(t.ID)}
		}
		g.Tasks[t.ID] = t
		g.Index[t.ID] = i
	}

	for i := range tasks {
		t := &tasks[i]
		seen := make(map[model.TaskID]bool, len(t.Dependencies))
		for _, dep := range t.Dependencies {
			if _, ok := g.Tasks[dep]; !ok {
				return nil, &InvalidDependencyError{TaskID: t.ID, MissingID: dep}
			}
			if seen[dep] {
				continue
			}
			seen[dep] = true
			g.Adj[dep] = append(g.Adj[dep], t.ID)
			g.RevAdj[t.ID] = append(g.RevAdj[t.ID], dep)
		}
	}

	for i := range tasks {
		id := tasks[i].ID
		if len(g.RevAdj[id]) == 0 {
			g.Roots = append(g.Roots, id)
		}
		if len(g.Adj[id]) == 0 {
			g.Leaves = append(g.Leaves, id)
		}
	}

	if cycle := g.DetectCycle(tasks); cycle != nil {
		return nil, &CyclicDependencyError{Cycle: cycle}
	}

	g.Order = g.topoSort(tasks)
	return g, nil
}

// DetectCycle returns a cycle path if one exists, or nil if the graph is
// acyclic. DFS with white/gray/black coloring, visiting tasks in input order.
func (g *TaskGraph) DetectCycle(tasks []model.Task) []model.TaskID {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[model.TaskID]int, len(g.Tasks))
	parent := make(map[model.TaskID]model.TaskID)

	var dfs func(node model.TaskID) []model.TaskID
	dfs = func(node model.TaskID) []model.TaskID {
		color[node] = gray
		for _, next := range g.Adj[node] {
			if color[next] == gray {
				cycle := []model.TaskID{next, node}
				cur := node
				for cur != next {
					cur = parent[cur]
					cycle = append(cycle, cur)
				}
				for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
					cycle[i], cycle[j] = cycle[j], cycle[i]
				}
				return cycle
			}
			if color[next] == white {
				parent[next] = node
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
		}
		color[node] = black
		return nil
	}

	for i := range tasks {
		id := tasks[i].ID
		if color[id] == white {
			if cycle := dfs(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// topoSort is Kahn's algorithm; among simultaneously ready tasks the one
// earliest in the input list goes first.
func (g *TaskGraph) topoSort(tasks []model.Task) []model.TaskID {
	inDegree := make(map[model.TaskID]int, len(tasks))
	ready := &indexHeap{}
	for i := range tasks {
		id := tasks[i].ID
		inDegree[id] = len(g.RevAdj[id])
		if inDegree[id] == 0 {
			heap.Push(ready, i)
		}
	}

	order := make([]model.TaskID, 0, len(tasks))
	for ready.Len() > 0 {
		id := tasks[heap.Pop(ready).(int)].ID
		order = append(order, id)
		for _, succ := range g.Adj[id] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				heap.Push(ready, g.Index[succ])
			}
		}
	}
	return order
}

// TaskCount returns the number of tasks in the graph.
func (g *TaskGraph) TaskCount() int {
	return len(g.Tasks)
}

type indexHeap []int

func (h indexHeap) Len() int            { return len(h) }
func (h indexHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *indexHeap) Push(x interface{}) { *h = append(*h, x.(int)) }
func (h *indexHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
