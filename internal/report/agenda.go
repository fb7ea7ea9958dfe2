package report

import (
	"sort"

	"github.com/t77yq/worksched/internal/model"
)

// Agenda lists the placements of one worker, in start order
type Agenda struct {
	WorkerID string                `json:"worker_id"`
	Tasks    []model.ScheduledTask `json:"tasks"`
	Hours    float64               `json:"hours"`
}

// BuildAgendas splits a result into one agenda per assigned worker, ordered
// by worker id. Unattended and unscheduled records belong to no agenda.
func BuildAgendas(result *model.SchedulingResult) []Agenda {
	hours := result.WorkerHours()
	agendas := make([]Agenda, 0, len(hours))
	for workerID, h := range hours {
		tasks := result.TasksForWorker(workerID)
		sort.SliceStable(tasks, func(i, j int) bool {
			return tasks[i].StartTime.Before(tasks[j].StartTime)
		})
		agendas = append(agendas, Agenda{WorkerID: workerID, Tasks: tasks, Hours: h})
	}
	sort.Slice(agendas, func(i, j int) bool {
		return agendas[i].WorkerID < agendas[j].WorkerID
	})
	return agendas
}
