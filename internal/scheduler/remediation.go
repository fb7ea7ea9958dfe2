package scheduler

import (
	"fmt"

	"github.com/t77yq/worksched/internal/flow"
	"github.com/t77yq/worksched/internal/model"
)

const extraHours = 2 * 60

var defaultWorkingHours = model.ClockWindow{Start: 8 * 60, End: 17 * 60}

// catalog is the fixed remediation order.
var catalog = []model.SuggestionKind{
	model.SuggestAddWorker,
	model.SuggestExtendHours,
	model.SuggestRelaxTempo,
	model.SuggestRelaxPresets,
	model.SuggestSwitchFlow,
}

// applySuggestion returns a modified copy of normalized inputs. It fails
// with ErrSuggestionNotApplicable when the change would be a no-op.
func applySuggestion(kind model.SuggestionKind, in model.SchedulingInputs) (model.SchedulingInputs, model.RemediationSuggestion, error) {
	out := in.Clone()
	s := model.RemediationSuggestion{Kind: kind}

	switch kind {
	case model.SuggestAddWorker:
		helper := model.Worker{
			ID:           uniqueWorkerID(out.Workers),
			Name:         "Additional helper",
			Type:         model.WorkerTypeHelper,
			WorkingHours: widestWorkingHours(out.Workers),
		}
		out.Workers = append(out.Workers, helper)
		s.Title = "Add a worker"
		s.Description = fmt.Sprintf("Add one helper working %s-%s every day.", helper.WorkingHours.Start, helper.WorkingHours.End)

	case model.SuggestExtendHours:
		changed := false
		for i := range out.Workers {
			wh := &out.Workers[i].WorkingHours
			if !wh.IsZero() && !wh.Wraps() && wh.End < model.MinutesPerDay {
				wh.End = extendEnd(wh.End)
				changed = true
			}
		}
		for _, w := range []*model.WorkWindow{&out.SiteConstraints.WeekdayHours, &out.SiteConstraints.WeekendHours} {
			if !w.IsZero() && !w.Closed && w.End > w.Start {
				w.End = extendEnd(w.End)
			}
		}
		if !changed {
			return in, s, ErrSuggestionNotApplicable
		}
		s.Title = "Extend daily working hours"
		s.Description = "Extend every worker's working day by two hours."

	case model.SuggestRelaxTempo:
		switch out.Tempo {
		case model.TempoExtended:
			out.Tempo = model.TempoSteady
		case model.TempoSteady:
			out.Tempo = model.TempoFastTrack
		default:
			return in, s, ErrSuggestionNotApplicable
		}
		s.Title = "Relax the tempo"
		s.Description = fmt.Sprintf("Plan with %s duration estimates instead of %s.", out.Tempo, in.Tempo)

	case model.SuggestRelaxPresets:
		changed := false
		for i := range out.Workers {
			w := &out.Workers[i]
			if !w.WeekendsOnly && !w.WeekdaysAfterFivePm {
				continue
			}
			w.WeekendsOnly = false
			w.WeekdaysAfterFivePm = false
			if w.WorkingHours.IsZero() {
				w.WorkingHours = defaultWorkingHours
			}
			changed = true
		}
		if !changed {
			return in, s, ErrSuggestionNotApplicable
		}
		s.Title = "Relax weekend-only and evening-only availability"
		s.Description = "Let preset-restricted workers use their working hours every day."

	case model.SuggestSwitchFlow:
		if flow.BuildLayout(out.Tasks).Empty() {
			return in, s, ErrSuggestionNotApplicable
		}
		to := flow.Other(out.FlowMethod)
		out.Tasks = flow.Rewire(out.Tasks, out.FlowMethod, to)
		out.FlowMethod = to
		s.Title = "Switch flow-optimization method"
		s.Description = fmt.Sprintf("Re-sequence spaces using %s instead of %s.", to, in.FlowMethod)

	default:
		return in, s, fmt.Errorf("%w: %s", ErrUnknownSuggestion, kind)
	}

	return out, s, nil
}

func extendEnd(end model.ClockTime) model.ClockTime {
	end += extraHours
	if end > model.MinutesPerDay {
		end = model.MinutesPerDay
	}
	return end
}

func uniqueWorkerID(workers []model.Worker) string {
	taken := make(map[string]bool, len(workers))
	for _, w := range workers {
		taken[w.ID] = true
	}
	for n := 1; ; n++ {
		id := fmt.Sprintf("extra-helper-%d", n)
		if !taken[id] {
			return id
		}
	}
}

// widestWorkingHours picks the longest non-wrapping daily window in the
// roster, falling back to a standard day.
func widestWorkingHours(workers []model.Worker) model.ClockWindow {
	best := defaultWorkingHours
	bestLen := model.ClockTime(-1)
	for _, w := range workers {
		wh := w.WorkingHours
		if wh.IsZero() || wh.Wraps() {
			continue
		}
		if l := wh.End - wh.Start; l > bestLen {
			best, bestLen = wh, l
		}
	}
	return best
}
