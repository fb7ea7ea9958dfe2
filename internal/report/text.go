// Package report renders scheduling results for people: a day-by-day
// plan and per-worker agendas.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/t77yq/worksched/internal/model"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	sectionStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	goodStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	badStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

const (
	dayFormat   = "Mon 2006-01-02"
	clockFormat = "15:04"
)

func verdictLabel(v model.Verdict) string {
	label := strings.ToUpper(strings.ReplaceAll(string(v), "_", " "))
	switch v {
	case model.VerdictOnTrack:
		return goodStyle.Render(label)
	case model.VerdictOffTrack:
		return warnStyle.Render(label)
	default:
		return badStyle.Render(label)
	}
}

// WriteText prints the plan grouped by calendar day in loc.
func WriteText(out io.Writer, result *model.SchedulingResult, loc *time.Location) {
	if loc == nil {
		loc = time.UTC
	}

	fmt.Fprintln(out, titleStyle.Render("Schedule")+" "+verdictLabel(result.Verdict))
	if !result.FinishTime.IsZero() {
		fmt.Fprintf(out, "  Finish:  %s\n", result.FinishTime.In(loc).Format(dayFormat+" "+clockFormat))
	}
	fmt.Fprintf(out, "  Placed:  %d of %d tasks, %.1f worker hours\n",
		result.Stats.PlacedCount, result.Stats.TaskCount, result.Stats.PlacedHours)
	if result.Stats.EstimatedCost > 0 {
		fmt.Fprintf(out, "  Cost:    %.2f\n", result.Stats.EstimatedCost)
	}
	if len(result.CriticalPath) > 0 {
		fmt.Fprintf(out, "  Critical: %s\n", joinIDs(result.CriticalPath))
	}

	currentDay := ""
	for _, st := range result.ScheduledTasks {
		if st.Status == model.PlacementUnscheduled {
			continue
		}
		day := st.StartTime.In(loc).Format(dayFormat)
		if day != currentDay {
			fmt.Fprintln(out)
			fmt.Fprintln(out, sectionStyle.Render(day))
			currentDay = day
		}
		fmt.Fprintf(out, "  %s  %-12s %s\n", span(st, loc), workerLabel(st.WorkerID), taskLabel(st))
	}

	if len(result.Unscheduled) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, sectionStyle.Render("Unscheduled"))
		for _, st := range result.ScheduledTasks {
			if st.Status == model.PlacementUnscheduled {
				fmt.Fprintf(out, "  • %s: %s\n", taskLabel(st), st.Reason)
			}
		}
	}

	if len(result.Suggestions) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, sectionStyle.Render("Suggestions"))
		for _, s := range result.Suggestions {
			fmt.Fprintf(out, "  • %s: %s\n", s.Title, s.Description)
			if s.Preview != nil {
				fmt.Fprintf(out, "      ◦ would finish %s (%s)\n",
					s.Preview.FinishTime.In(loc).Format(dayFormat+" "+clockFormat), s.Preview.Verdict)
			}
		}
	}
}

// WriteAgenda prints one worker's agenda.
func WriteAgenda(out io.Writer, agenda Agenda, loc *time.Location) {
	if loc == nil {
		loc = time.UTC
	}
	fmt.Fprintf(out, "%s (%.1f hours)\n", titleStyle.Render(agenda.WorkerID), agenda.Hours)
	for _, st := range agenda.Tasks {
		fmt.Fprintf(out, "  %s %s  %s\n", st.StartTime.In(loc).Format(dayFormat), span(st, loc), taskLabel(st))
	}
}

func span(st model.ScheduledTask, loc *time.Location) string {
	return st.StartTime.In(loc).Format(clockFormat) + "-" + st.EndTime.In(loc).Format(clockFormat)
}

func workerLabel(id string) string {
	if id == "" {
		return "(unattended)"
	}
	return id
}

func taskLabel(st model.ScheduledTask) string {
	if st.Title == "" || st.Title == string(st.TaskID) {
		return string(st.TaskID)
	}
	return fmt.Sprintf("%s (%s)", st.Title, st.TaskID)
}

func joinIDs(ids []model.TaskID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, " → ")
}
