package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t77yq/worksched/internal/model"
)

func at(day, h int) time.Time {
	return time.Date(2026, time.January, day, h, 0, 0, 0, time.UTC)
}

func sampleResult() *model.SchedulingResult {
	return &model.SchedulingResult{
		ScheduledTasks: []model.ScheduledTask{
			{TaskID: "a", Title: "Strip wallpaper", WorkerID: "w2", StartTime: at(5, 8), EndTime: at(5, 12), Status: model.PlacementTentative},
			{TaskID: "cure", WorkerID: "", StartTime: at(5, 12), EndTime: at(6, 12), Status: model.PlacementTentative},
			{TaskID: "b", Title: "Paint", WorkerID: "w1", StartTime: at(6, 12), EndTime: at(6, 16), Status: model.PlacementTentative},
			{TaskID: "c", Title: "Trim", WorkerID: "w2", StartTime: at(6, 8), EndTime: at(6, 10), Status: model.PlacementTentative},
			{TaskID: "d", Title: "Lift", Status: model.PlacementUnscheduled, Reason: "requires 3 workers, roster has 2"},
		},
		FinishTime:   at(6, 16),
		Verdict:      model.VerdictInfeasible,
		Unscheduled:  []model.TaskID{"d"},
		CriticalPath: []model.TaskID{"b"},
		Suggestions: []model.RemediationSuggestion{
			{Kind: model.SuggestAddWorker, Title: "Add a worker", Description: "Add one helper.",
				Preview: &model.SchedulingResult{FinishTime: at(6, 12), Verdict: model.VerdictOnTrack}},
		},
		Stats: model.RunStats{TaskCount: 5, PlacedCount: 4, PlacedHours: 10},
	}
}

func TestBuildAgendas(t *testing.T) {
	agendas := BuildAgendas(sampleResult())

	require.Len(t, agendas, 2)
	assert.Equal(t, "w1", agendas[0].WorkerID)
	assert.Equal(t, 4.0, agendas[0].Hours)

	w2 := agendas[1]
	assert.Equal(t, "w2", w2.WorkerID)
	require.Len(t, w2.Tasks, 2)
	assert.Equal(t, model.TaskID("a"), w2.Tasks[0].TaskID)
	assert.Equal(t, model.TaskID("c"), w2.Tasks[1].TaskID)
	assert.Equal(t, 6.0, w2.Hours)
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	WriteText(&buf, sampleResult(), time.UTC)
	out := buf.String()

	assert.Contains(t, out, "INFEASIBLE")
	assert.Contains(t, out, "Mon 2026-01-05")
	assert.Contains(t, out, "Tue 2026-01-06")
	assert.Contains(t, out, "08:00-12:00")
	assert.Contains(t, out, "Strip wallpaper (a)")
	assert.Contains(t, out, "(unattended)")
	assert.Contains(t, out, "Lift (d): requires 3 workers, roster has 2")
	assert.Contains(t, out, "Add a worker: Add one helper.")
	assert.Contains(t, out, "would finish Tue 2026-01-06 12:00 (on_track)")
	assert.Contains(t, out, "Placed:  4 of 5 tasks, 10.0 worker hours")
}

func TestWriteAgenda(t *testing.T) {
	var buf bytes.Buffer
	WriteAgenda(&buf, BuildAgendas(sampleResult())[1], time.UTC)
	out := buf.String()

	assert.Contains(t, out, "w2")
	assert.Contains(t, out, "6.0 hours")
	assert.Contains(t, out, "Trim (c)")
	assert.NotContains(t, out, "Paint")
}
