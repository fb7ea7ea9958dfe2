package scheduler

import (
	"container/heap"
	"math"
	"time"

	"github.com/t77yq/worksched/internal/model"
)

// readyItem is a task whose dependencies have all been resolved
type readyItem struct {
	id         model.TaskID
	readyAt    time.Time
	spaceOrder int
	index      int
}

// ReadyQueue orders ready tasks by model time, then space priority, then
// input order.
type ReadyQueue struct {
	items []readyItem
}

// Len returns the length of the queue
func (q *ReadyQueue) Len() int {
	return len(q.items)
}

// Less compares two ready tasks
func (q *ReadyQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if !a.readyAt.Equal(b.readyAt) {
		return a.readyAt.Before(b.readyAt)
	}
	if a.spaceOrder != b.spaceOrder {
		return a.spaceOrder < b.spaceOrder
	}
	return a.index < b.index
}

// Swap swaps two items in the queue
func (q *ReadyQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
}

// Push adds an item to the queue
func (q *ReadyQueue) Push(x interface{}) {
	q.items = append(q.items, x.(readyItem))
}

// Pop removes and returns the last item
func (q *ReadyQueue) Pop() interface{} {
	old := q.items
	n := len(old)
	item := old[n-1]
	q.items = old[:n-1]
	return item
}

// push adds a task that just became ready.
func (q *ReadyQueue) push(t *model.Task, index int, readyAt time.Time) {
	order, ok := t.TagInt(model.TagSpaceOrder)
	if !ok {
		order = math.MaxInt
	}
	heap.Push(q, readyItem{id: t.ID, readyAt: readyAt, spaceOrder: order, index: index})
}

// pop removes the next task to place.
func (q *ReadyQueue) pop() readyItem {
	return heap.Pop(q).(readyItem)
}
