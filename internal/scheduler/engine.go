package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/t77yq/worksched/internal/model"
)

// EngineConfig holds the defaults applied to inputs that leave them unset
type EngineConfig struct {
	SafetyMarginDays   int
	DefaultTempo       model.Tempo
	DefaultGranularity model.Granularity
	QuietHours         model.ClockWindow
}

// DefaultEngineConfig returns the built-in defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		SafetyMarginDays:   defaultSafetyMarginDays,
		DefaultTempo:       model.TempoSteady,
		DefaultGranularity: model.GranularityStandard,
	}
}

// Engine turns SchedulingInputs into a SchedulingResult. It holds no
// mutable state, so one Engine may serve concurrent callers.
type Engine struct {
	logger *zap.Logger
	config EngineConfig
}

// NewEngine creates a new scheduling engine
func NewEngine(config EngineConfig, logger *zap.Logger) *Engine {
	defaults := DefaultEngineConfig()
	if config.SafetyMarginDays <= 0 {
		config.SafetyMarginDays = defaults.SafetyMarginDays
	}
	if config.DefaultTempo == "" {
		config.DefaultTempo = defaults.DefaultTempo
	}
	if config.DefaultGranularity == "" {
		config.DefaultGranularity = defaults.DefaultGranularity
	}
	return &Engine{
		logger: logger.Named("engine"),
		config: config,
	}
}

// Compute validates inputs, places every task and evaluates the plan.
// Validation, missing dependency and cycle errors are returned before any
// placement work; per-task placement failures are reported in the result.
func (e *Engine) Compute(inputs model.SchedulingInputs) (*model.SchedulingResult, error) {
	plan, err := e.normalize(inputs)
	if err != nil {
		return nil, err
	}
	result, err := e.run(plan)
	if err != nil {
		return nil, err
	}

	if !result.OnTrack {
		result.Suggestions = e.suggest(plan)
	}

	e.logger.Info("Schedule computed",
		zap.String("fingerprint", result.Fingerprint),
		zap.String("verdict", string(result.Verdict)),
		zap.Int("placed", result.Stats.PlacedCount),
		zap.Int("unscheduled", result.Stats.UnscheduledCount),
		zap.Time("finish_time", result.FinishTime),
		zap.Int("suggestions", len(result.Suggestions)))

	return result, nil
}

// Validate runs the boundary checks and builds the dependency graph
// without placing anything.
func (e *Engine) Validate(inputs model.SchedulingInputs) (*TaskGraph, error) {
	plan, err := e.normalize(inputs)
	if err != nil {
		return nil, err
	}
	return BuildTaskGraph(plan.inputs.Tasks)
}

// Remediate re-runs the engine with one catalog change applied and returns
// the preview. The inputs themselves are not modified.
func (e *Engine) Remediate(inputs model.SchedulingInputs, kind model.SuggestionKind) (*model.SchedulingResult, error) {
	plan, err := e.normalize(inputs)
	if err != nil {
		return nil, err
	}
	modified, _, err := applySuggestion(kind, plan.inputs)
	if err != nil {
		return nil, err
	}
	preview, err := e.normalize(modified)
	if err != nil {
		return nil, err
	}
	return e.run(preview)
}

// Suggestions lists the applicable catalog entries for inputs without
// computing previews.
func (e *Engine) Suggestions(inputs model.SchedulingInputs) ([]model.RemediationSuggestion, error) {
	plan, err := e.normalize(inputs)
	if err != nil {
		return nil, err
	}
	var out []model.RemediationSuggestion
	for _, kind := range catalog {
		if _, s, err := applySuggestion(kind, plan.inputs); err == nil {
			out = append(out, s)
		}
	}
	return out, nil
}

func (e *Engine) suggest(plan *runPlan) []model.RemediationSuggestion {
	var out []model.RemediationSuggestion
	for _, kind := range catalog {
		modified, s, err := applySuggestion(kind, plan.inputs)
		if err != nil {
			continue
		}
		if plan.inputs.PreviewRemediations {
			previewPlan, err := e.normalize(modified)
			if err == nil {
				s.Preview, err = e.run(previewPlan)
			}
			if err != nil {
				e.logger.Warn("Failed to compute remediation preview",
					zap.String("kind", string(kind)),
					zap.Error(err))
				s.Preview = nil
			}
		}
		out = append(out, s)
	}
	return out
}

// run performs graph build, availability expansion, tempo selection,
// placement, the backward pass and the feasibility verdict for one plan.
func (e *Engine) run(plan *runPlan) (*model.SchedulingResult, error) {
	in := plan.inputs
	graph, err := BuildTaskGraph(in.Tasks)
	if err != nil {
		return nil, err
	}

	resolver := NewAvailabilityResolver(plan.loc, in.PlanningStart, plan.lastDay, in.SiteConstraints, in.BlackoutDates, e.logger)
	states := make([]*workerState, 0, len(in.Workers))
	costs := make(map[string]float64, len(in.Workers))
	available := 0
	for _, w := range in.Workers {
		free := resolver.Resolve(w)
		if len(free) > 0 {
			available++
		}
		costs[w.ID] = w.CostPerHour
		states = append(states, &workerState{
			worker: w,
			free:   free,
			budget: hoursToDuration(w.MaxTotalHours),
		})
	}

	durations := SelectDurations(in.Tasks, in.Tempo, plan.quantum)
	p := newPlacer(states, strategyFor(in.PreferHelpers), e.logger)
	sm := newStateMachine(graph, in.PlanningStart)

	placements := make(map[model.TaskID]placement)
	reasons := make(map[model.TaskID]string)
	for sm.queue.Len() > 0 {
		item := sm.next()
		task := graph.Tasks[item.id]

		if blocker, blocked := sm.failedDependency(item.id); blocked {
			reasons[item.id] = fmt.Sprintf("dependency %s unscheduled", blocker)
			sm.markUnscheduled(item.id)
			continue
		}

		minSession := roundUp(hoursToDuration(task.MinContiguousHours), plan.quantum)
		if minSession < plan.quantum {
			minSession = plan.quantum
		}
		pl, reason := p.place(durations[item.id], minSession, item.readyAt, task.WorkersNeeded)
		if reason != "" {
			e.logger.Warn("Task could not be placed",
				zap.String("task_id", string(item.id)),
				zap.String("reason", reason))
			reasons[item.id] = reason
			sm.markUnscheduled(item.id)
			continue
		}

		e.logger.Debug("Task placed",
			zap.String("task_id", string(item.id)),
			zap.Time("start", pl.start()),
			zap.Time("end", pl.end()),
			zap.Int("workers", len(pl.workers)),
			zap.Int("sessions", len(pl.sessions)))
		placements[item.id] = pl
		sm.markPlaced(item.id, pl.end())
	}

	spans := make(map[model.TaskID]time.Duration, len(in.Tasks))
	ends := make(map[model.TaskID]time.Time, len(placements))
	for id, d := range durations {
		spans[id] = d
	}
	for id, pl := range placements {
		spans[id] = pl.end().Sub(pl.start())
		ends[id] = pl.end()
	}
	bounds := backwardPass(graph, spans, ends, plan.targetDeadline, plan.dropDeadDeadline)

	result := &model.SchedulingResult{
		ScheduledTasks: []model.ScheduledTask{},
		CriticalPath:   criticalPath(graph, bounds, ends),
	}
	needsWorkers := false
	for _, id := range graph.Order {
		task := graph.Tasks[id]
		if task.WorkersNeeded > 0 {
			needsWorkers = true
		}
		b := bounds[id]
		pl, ok := placements[id]
		if !ok {
			result.Unscheduled = append(result.Unscheduled, id)
			continue
		}
		if pl.end().After(result.FinishTime) {
			result.FinishTime = pl.end()
		}
		if len(pl.workers) == 0 {
			result.ScheduledTasks = append(result.ScheduledTasks, scheduledRecord(task, "", 0, pl.sessions[0], b))
			continue
		}
		for i, s := range pl.sessions {
			for _, w := range pl.workers {
				rec := scheduledRecord(task, w.worker.ID, i, s, b)
				result.ScheduledTasks = append(result.ScheduledTasks, rec)
				result.Stats.PlacedHours += rec.Hours()
				result.Stats.EstimatedCost += rec.Hours() * costs[w.worker.ID]
			}
		}
	}
	sortRecords(result.ScheduledTasks, graph)

	for _, id := range result.Unscheduled {
		b := bounds[id]
		result.ScheduledTasks = append(result.ScheduledTasks, model.ScheduledTask{
			TaskID:               id,
			Title:                graph.Tasks[id].Title,
			TargetCompletionDate: b.target,
			LatestCompletionDate: b.latest,
			Status:               model.PlacementUnscheduled,
			Reason:               reasons[id],
		})
	}

	result.Verdict = assessFeasibility(result.FinishTime, len(result.Unscheduled), available, needsWorkers, plan)
	result.OnTrack = result.Verdict == model.VerdictOnTrack
	result.Feasible = result.OnTrack || result.Verdict == model.VerdictOffTrack
	result.Stats.TaskCount = len(in.Tasks)
	result.Stats.PlacedCount = len(placements)
	result.Stats.UnscheduledCount = len(result.Unscheduled)
	result.Stats.WorkerCount = len(in.Workers)
	result.Stats.AvailableWorkers = available
	result.Stats.HorizonDays = resolver.HorizonDays()

	fp, err := Fingerprint(result)
	if err != nil {
		return nil, err
	}
	result.Fingerprint = fp
	return result, nil
}

func scheduledRecord(task *model.Task, workerID string, session int, iv Interval, b *completionBounds) model.ScheduledTask {
	return model.ScheduledTask{
		TaskID:               task.ID,
		Title:                task.Title,
		WorkerID:             workerID,
		Session:              session,
		StartTime:            iv.Start,
		EndTime:              iv.End,
		TargetCompletionDate: b.target,
		LatestCompletionDate: b.latest,
		Status:               model.PlacementTentative,
	}
}

// sortRecords orders placements by start time, then topological position,
// then worker id.
func sortRecords(records []model.ScheduledTask, g *TaskGraph) {
	pos := make(map[model.TaskID]int, len(g.Order))
	for i, id := range g.Order {
		pos[id] = i
	}
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.StartTime.Equal(b.StartTime) {
			return a.StartTime.Before(b.StartTime)
		}
		if pos[a.TaskID] != pos[b.TaskID] {
			return pos[a.TaskID] < pos[b.TaskID]
		}
		return a.WorkerID < b.WorkerID
	})
}

// Fingerprint is the blake3 hash of the placement-relevant part of a result.
// Confirmed placements hash like tentative ones, so a committed result keeps
// the fingerprint it was computed with.
func Fingerprint(r *model.SchedulingResult) (string, error) {
	tasks := make([]model.ScheduledTask, len(r.ScheduledTasks))
	for i, st := range r.ScheduledTasks {
		if st.Status == model.PlacementConfirmed {
			st.Status = model.PlacementTentative
		}
		tasks[i] = st
	}
	data, err := json.Marshal(struct {
		ScheduledTasks []model.ScheduledTask `json:"scheduled_tasks"`
		FinishTime     time.Time             `json:"finish_time"`
		Verdict        model.Verdict         `json:"verdict"`
	}{tasks, r.FinishTime.UTC(), r.Verdict})
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	hasher := blake3.New()
	if _, err := hasher.Write(data); err != nil {
		return "", fmt.Errorf("failed to hash result: %w", err)
	}
	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

// IsInputError reports whether err was caused by the caller's inputs.
func IsInputError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidDependency) || errors.Is(err, ErrCyclicDependency)
}
