package scheduler

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/worksched/internal/model"
)

// workerState is the per-run mutable view of one worker: the open
// intervals not yet consumed and the hours already placed.
type workerState struct {
	worker model.Worker
	free   []Interval
	budget time.Duration // zero means uncapped
	used   time.Duration
}

func (w *workerState) canAfford(d time.Duration) bool {
	return w.budget == 0 || w.used+d <= w.budget
}

// runFrom returns how long w stays free starting at t.
func (w *workerState) runFrom(t time.Time) time.Duration {
	i := sort.Search(len(w.free), func(i int) bool { return w.free[i].End.After(t) })
	if i == len(w.free) || !w.free[i].Contains(t) {
		return 0
	}
	return w.free[i].End.Sub(t)
}

func (w *workerState) consume(sessions []Interval) {
	for _, s := range sessions {
		w.free = subtractInterval(w.free, s)
		w.used += s.Duration()
	}
}

// placement is the outcome of placing one task
type placement struct {
	workers  []*workerState
	sessions []Interval
}

func (p placement) start() time.Time {
	return p.sessions[0].Start
}

func (p placement) end() time.Time {
	return p.sessions[len(p.sessions)-1].End
}

// placer searches worker time for ready tasks. It owns the worker states
// of exactly one computation.
type placer struct {
	logger   *zap.Logger
	workers  []*workerState // sorted by worker id
	strategy SelectionStrategy
}

func newPlacer(workers []*workerState, strategy SelectionStrategy, logger *zap.Logger) *placer {
	sorted := append([]*workerState(nil), workers...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].worker.ID < sorted[j].worker.ID
	})
	return &placer{
		logger:   logger,
		workers:  sorted,
		strategy: strategy,
	}
}

// place finds the earliest common window for needed workers starting no
// earlier than readyAt. At each candidate start every combination is tried
// in strategy order before moving on. Unattended and zero-length tasks occupy calendar
// time only. The returned reason is set when no slot exists.
func (p *placer) place(dur, minSession time.Duration, readyAt time.Time, needed int) (placement, string) {
	if needed == 0 || dur <= 0 {
		return placement{sessions: []Interval{{Start: readyAt, End: readyAt.Add(dur)}}}, ""
	}
	if needed > len(p.workers) {
		return placement{}, fmt.Sprintf("requires %d workers, roster has %d", needed, len(p.workers))
	}

	firstNeed := minSession
	if firstNeed > dur {
		firstNeed = dur
	}

	for _, t := range p.candidateStarts(readyAt) {
		var eligible []*workerState
		for _, w := range p.workers {
			if !w.canAfford(dur) || w.runFrom(t) < firstNeed {
				continue
			}
			if _, ok := splitSessions(trimBefore(w.free, t), dur, minSession); !ok {
				continue
			}
			eligible = append(eligible, w)
		}
		if len(eligible) < needed {
			continue
		}

		chosen, sessions, ok := staff(p.strategy.Order(eligible), needed, t, dur, minSession)
		if !ok {
			continue
		}
		for _, w := range chosen {
			w.consume(sessions)
		}
		return placement{workers: chosen, sessions: sessions}, ""
	}

	return placement{}, "no feasible slot within horizon"
}

// staff walks combinations of needed workers in the given order and returns
// the first whose shared free time from t can carry the task.
func staff(ordered []*workerState, needed int, t time.Time, dur, minSession time.Duration) ([]*workerState, []Interval, bool) {
	picked := make([]*workerState, 0, needed)

	var search func(from int, common []Interval) ([]Interval, bool)
	search = func(from int, common []Interval) ([]Interval, bool) {
		if len(picked) == needed {
			return splitSessions(common, dur, minSession)
		}
		for i := from; len(ordered)-i >= needed-len(picked); i++ {
			free := trimBefore(ordered[i].free, t)
			if len(picked) > 0 {
				free = intersectIntervals(common, free)
			}
			if _, ok := splitSessions(free, dur, minSession); !ok {
				continue
			}
			picked = append(picked, ordered[i])
			if sessions, ok := search(i+1, free); ok {
				return sessions, true
			}
			picked = picked[:len(picked)-1]
		}
		return nil, false
	}

	sessions, ok := search(0, nil)
	if !ok {
		return nil, nil, false
	}
	return picked, sessions, true
}

// candidateStarts lists readyAt and every later free-interval start across
// all workers, ascending and de-duplicated.
func (p *placer) candidateStarts(readyAt time.Time) []time.Time {
	starts := []time.Time{readyAt}
	for _, w := range p.workers {
		for _, iv := range w.free {
			if iv.Start.After(readyAt) {
				starts = append(starts, iv.Start)
			}
		}
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	out := starts[:0]
	for i, t := range starts {
		if i > 0 && t.Equal(out[len(out)-1]) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// splitSessions carries dur across the free intervals. Every session is at
// least minSession long except the final remainder, and intervals too short
// to host a session are skipped.
func splitSessions(free []Interval, dur, minSession time.Duration) ([]Interval, bool) {
	var sessions []Interval
	remaining := dur
	for _, iv := range free {
		length := iv.Duration()
		if length <= 0 {
			continue
		}
		if remaining <= length {
			sessions = append(sessions, Interval{Start: iv.Start, End: iv.Start.Add(remaining)})
			return sessions, true
		}
		if length >= minSession {
			sessions = append(sessions, iv)
			remaining -= length
		}
	}
	return nil, false
}
