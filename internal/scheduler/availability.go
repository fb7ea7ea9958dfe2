package scheduler

import (
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/worksched/internal/model"
)

const (
	eveningStart = 17 * 60
	eveningEnd   = 21 * 60
	dayWorkStart = 6 * 60
	dayWorkEnd   = 22 * 60
)

// AvailabilityResolver expands worker calendars into open intervals over
// the planning horizon.
type AvailabilityResolver struct {
	logger   *zap.Logger
	loc      *time.Location
	start    time.Time
	firstDay time.Time
	lastDay  time.Time
	site     model.SiteConstraints
	blackout map[string]bool
}

// NewAvailabilityResolver creates a resolver for the horizon
// [start, lastDay] in loc. lastDay is inclusive.
func NewAvailabilityResolver(loc *time.Location, start, lastDay time.Time, site model.SiteConstraints, blackouts []time.Time, logger *zap.Logger) *AvailabilityResolver {
	blackout := make(map[string]bool, len(blackouts))
	for _, d := range blackouts {
		blackout[model.DateKey(civilDay(d, loc))] = true
	}
	return &AvailabilityResolver{
		logger:   logger.Named("availability"),
		loc:      loc,
		start:    start,
		firstDay: civilDay(start.In(loc), loc),
		lastDay:  civilDay(lastDay, loc),
		site:     site,
		blackout: blackout,
	}
}

// Resolve returns the ordered, non-overlapping open intervals of w. A worker
// with nothing open yields an empty, non-nil slice.
func (r *AvailabilityResolver) Resolve(w model.Worker) []Interval {
	intervals := []Interval{}
	for day := r.firstDay; !day.After(r.lastDay); day = day.AddDate(0, 0, 1) {
		for _, s := range r.daySpans(w, day) {
			intervals = append(intervals, Interval{
				Start: model.ClockTime(s.start).On(day, r.loc),
				End:   model.ClockTime(s.end).On(day, r.loc),
			})
		}
	}
	intervals = trimBefore(normalizeIntervals(intervals), r.start)

	r.logger.Debug("Resolved worker availability",
		zap.String("worker_id", w.ID),
		zap.Int("intervals", len(intervals)))
	if intervals == nil {
		return []Interval{}
	}
	return intervals
}

// HorizonDays returns the number of calendar days covered.
func (r *AvailabilityResolver) HorizonDays() int {
	days := 0
	for day := r.firstDay; !day.After(r.lastDay); day = day.AddDate(0, 0, 1) {
		days++
	}
	return days
}

func (r *AvailabilityResolver) daySpans(w model.Worker, day time.Time) []span {
	key := model.DateKey(day)
	if r.blackout[key] {
		return nil
	}

	weekend := isWeekend(day)
	var spans []span
	if slots, ok := w.Availability[key]; ok {
		spans = overrideSpans(slots)
	} else {
		spans = presetSpans(w, weekend)
	}
	if len(spans) == 0 {
		return nil
	}

	if !r.site.QuietHours.IsZero() {
		spans = subtractSpans(spans, windowSpans(r.site.QuietHours.Start, r.site.QuietHours.End))
	}
	if r.site.NoiseCurfew != nil {
		spans = subtractSpans(spans, []span{{int(*r.site.NoiseCurfew), model.MinutesPerDay}})
	}
	if !r.site.NightWorkAllowed {
		spans = clipSpans(spans, []span{{dayWorkStart, dayWorkEnd}})
	}

	window := r.site.WeekdayHours
	if weekend {
		window = r.site.WeekendHours
	}
	if window.Closed {
		return nil
	}
	if !window.IsZero() {
		spans = clipSpans(spans, windowSpans(window.Start, window.End))
	}
	return normalizeSpans(spans)
}

// presetSpans applies the coarse availability preset for one day.
func presetSpans(w model.Worker, weekend bool) []span {
	wh := w.WorkingHours
	switch {
	case w.WeekendsOnly:
		if !weekend || wh.IsZero() {
			return nil
		}
		return windowSpans(wh.Start, wh.End)
	case w.WeekdaysAfterFivePm:
		if weekend {
			return nil
		}
		start, end := eveningStart, eveningEnd
		if !wh.IsZero() && !wh.Wraps() {
			if int(wh.Start) > start {
				start = int(wh.Start)
			}
			if int(wh.End) > eveningStart {
				end = int(wh.End)
			}
		}
		return normalizeSpans([]span{{start, end}})
	default:
		if wh.IsZero() {
			return nil
		}
		return windowSpans(wh.Start, wh.End)
	}
}

// overrideSpans replaces the preset with the explicit slots of a date.
func overrideSpans(slots []model.AvailabilitySlot) []span {
	var open, closed []span
	for _, s := range slots {
		if s.Available {
			open = append(open, windowSpans(s.Start, s.End)...)
		} else {
			closed = append(closed, windowSpans(s.Start, s.End)...)
		}
	}
	return normalizeSpans(subtractSpans(normalizeSpans(open), closed))
}

// windowSpans turns a clock window into same-day spans, splitting a window
// that wraps past midnight.
func windowSpans(start, end model.ClockTime) []span {
	if end > start {
		return []span{{int(start), int(end)}}
	}
	return normalizeSpans([]span{{int(start), model.MinutesPerDay}, {0, int(end)}})
}

func isWeekend(day time.Time) bool {
	wd := day.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// civilDay returns midnight of t's calendar date in loc. The date is read
// from t as given so that a bare date decoded as UTC keeps its day.
func civilDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
