package scheduler

import (
	"sort"
	"time"
)

// Interval is a half-open [Start, End) span of time.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns the length of the interval.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Contains reports whether t falls inside the interval.
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// normalizeIntervals sorts and merges overlapping or touching intervals and
// drops empty ones.
func normalizeIntervals(in []Interval) []Interval {
	var out []Interval
	sorted := make([]Interval, 0, len(in))
	for _, iv := range in {
		if iv.End.After(iv.Start) {
			sorted = append(sorted, iv)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})
	for _, iv := range sorted {
		if n := len(out); n > 0 && !iv.Start.After(out[n-1].End) {
			if iv.End.After(out[n-1].End) {
				out[n-1].End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// subtractInterval removes cut from a normalized list.
func subtractInterval(in []Interval, cut Interval) []Interval {
	out := make([]Interval, 0, len(in)+1)
	for _, iv := range in {
		if !cut.Start.Before(iv.End) || !cut.End.After(iv.Start) {
			out = append(out, iv)
			continue
		}
		if cut.Start.After(iv.Start) {
			out = append(out, Interval{Start: iv.Start, End: cut.Start})
		}
		if cut.End.Before(iv.End) {
			out = append(out, Interval{Start: cut.End, End: iv.End})
		}
	}
	return out
}

// intersectIntervals returns the common parts of two normalized lists.
func intersectIntervals(a, b []Interval) []Interval {
	var out []Interval
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		start := maxTime(a[i].Start, b[j].Start)
		end := minTime(a[i].End, b[j].End)
		if end.After(start) {
			out = append(out, Interval{Start: start, End: end})
		}
		if a[i].End.Before(b[j].End) {
			i++
		} else {
			j++
		}
	}
	return out
}

// trimBefore drops everything earlier than t.
func trimBefore(in []Interval, t time.Time) []Interval {
	out := make([]Interval, 0, len(in))
	for _, iv := range in {
		if !iv.End.After(t) {
			continue
		}
		if iv.Start.Before(t) {
			iv.Start = t
		}
		out = append(out, iv)
	}
	return out
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// span is a [start, end) range of minutes within one clock day.
type span struct {
	start, end int
}

func normalizeSpans(in []span) []span {
	var out []span
	sorted := make([]span, 0, len(in))
	for _, s := range in {
		if s.end > s.start {
			sorted = append(sorted, s)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].start < sorted[j].start })
	for _, s := range sorted {
		if n := len(out); n > 0 && s.start <= out[n-1].end {
			if s.end > out[n-1].end {
				out[n-1].end = s.end
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

func subtractSpans(in []span, cuts []span) []span {
	out := in
	for _, c := range cuts {
		next := make([]span, 0, len(out)+1)
		for _, s := range out {
			if c.start >= s.end || c.end <= s.start {
				next = append(next, s)
				continue
			}
			if c.start > s.start {
				next = append(next, span{s.start, c.start})
			}
			if c.end < s.end {
				next = append(next, span{c.end, s.end})
			}
		}
		out = next
	}
	return out
}

func clipSpans(in []span, allowed []span) []span {
	var out []span
	for _, s := range in {
		for _, a := range allowed {
			start, end := s.start, s.end
			if a.start > start {
				start = a.start
			}
			if a.end < end {
				end = a.end
			}
			if end > start {
				out = append(out, span{start, end})
			}
		}
	}
	return normalizeSpans(out)
}
