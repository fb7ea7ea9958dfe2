package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t77yq/worksched/internal/model"
)

const chainYAML = `
planning_start: 2026-01-05T08:00:00Z
target_completion_date: 2026-01-09
timezone: UTC
site_constraints:
  weekend_hours:
    closed: true
workers:
  - id: w1
    name: Sam
    type: owner
    working_hours:
      start: "08:00"
      end: "16:00"
tasks:
  - id: a
    title: Strip wallpaper
    estimated_hours: 4
    workers_needed: 1
  - id: b
    title: Patch walls
    estimated_hours: 4
    workers_needed: 1
    dependencies: [a]
  - id: c
    title: Paint
    estimated_hours: 4
    workers_needed: 1
    dependencies: [b]
`

const flowYAML = `
planning_start: 2026-01-05T08:00:00Z
target_completion_date: 2026-01-09
workers:
  - id: w1
    name: Sam
    type: owner
    working_hours:
      start: "08:00"
      end: "16:00"
tasks:
  - {id: k1, title: Prime kitchen, estimated_hours: 2, workers_needed: 1, tags: ["space:kitchen", "step:1"]}
  - {id: k2, title: Paint kitchen, estimated_hours: 2, workers_needed: 1, tags: ["space:kitchen", "step:2"]}
  - {id: b1, title: Prime bath, estimated_hours: 2, workers_needed: 1, tags: ["space:bath", "step:1"]}
  - {id: b2, title: Paint bath, estimated_hours: 2, workers_needed: 1, tags: ["space:bath", "step:2"]}
`

func writeInputs(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inputs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPlanCommand(t *testing.T) {
	path := writeInputs(t, chainYAML)

	t.Run("text report", func(t *testing.T) {
		out, err := run(t, "plan", "-f", path)
		require.NoError(t, err)
		assert.Contains(t, out, "ON TRACK")
		assert.Contains(t, out, "Mon 2026-01-05")
		assert.Contains(t, out, "08:00-12:00")
		assert.Contains(t, out, "Paint (c)")
		assert.Contains(t, out, "3 of 3 tasks")
	})

	t.Run("json", func(t *testing.T) {
		out, err := run(t, "plan", "-f", path, "--json")
		require.NoError(t, err)

		var result model.SchedulingResult
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.Equal(t, model.VerdictOnTrack, result.Verdict)
		assert.Equal(t, time.Date(2026, 1, 6, 12, 0, 0, 0, time.UTC), result.FinishTime.UTC())
		assert.Len(t, result.Fingerprint, 64)
	})

	t.Run("agendas", func(t *testing.T) {
		out, err := run(t, "plan", "-f", path, "--agendas")
		require.NoError(t, err)
		assert.Contains(t, out, "w1 (12.0 hours)")
	})

	t.Run("unknown tempo", func(t *testing.T) {
		_, err := run(t, "plan", "-f", path, "--tempo", "leisurely")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "[validation]")
	})

	t.Run("unknown flow", func(t *testing.T) {
		_, err := run(t, "plan", "-f", path, "--flow", "waterfall")
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := run(t, "plan", "-f", filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})
}

func TestPlanCommand_Flow(t *testing.T) {
	path := writeInputs(t, flowYAML)

	startOf := func(t *testing.T, args ...string) map[model.TaskID]time.Time {
		out, err := run(t, append([]string{"plan", "-f", path, "--json"}, args...)...)
		require.NoError(t, err)
		var result model.SchedulingResult
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		starts := make(map[model.TaskID]time.Time)
		for _, st := range result.ScheduledTasks {
			starts[st.TaskID] = st.StartTime.UTC()
		}
		return starts
	}

	single := startOf(t, "--flow", "single_piece_flow")
	assert.Equal(t, 10, single["k2"].Hour())
	assert.Equal(t, 12, single["b1"].Hour())

	batch := startOf(t, "--flow", "batch_flow")
	assert.Equal(t, 10, batch["b1"].Hour())
	assert.Equal(t, 12, batch["k2"].Hour())
}

func TestValidateCommand(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		out, err := run(t, "validate", "-f", writeInputs(t, chainYAML))
		require.NoError(t, err)
		assert.Contains(t, out, "OK: 3 tasks, 1 workers")
		assert.Contains(t, out, "  1. a")
		assert.Contains(t, out, "  3. c")
	})

	t.Run("cycle", func(t *testing.T) {
		cyclic := writeInputs(t, `
planning_start: 2026-01-05T08:00:00Z
target_completion_date: 2026-01-09
workers:
  - {id: w1, name: Sam, type: owner, working_hours: {start: "08:00", end: "16:00"}}
tasks:
  - {id: a, estimated_hours: 1, workers_needed: 1, dependencies: [b]}
  - {id: b, estimated_hours: 1, workers_needed: 1, dependencies: [a]}
`)
		_, err := run(t, "validate", "-f", cyclic)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "[cyclic_dependency]")
	})

	t.Run("file flag required", func(t *testing.T) {
		_, err := run(t, "validate")
		require.Error(t, err)
	})
}

func TestSuggestCommand(t *testing.T) {
	out, err := run(t, "suggest", "-f", writeInputs(t, chainYAML))
	require.NoError(t, err)
	assert.Contains(t, out, "add_worker")
	assert.Contains(t, out, "relax_tempo")
	assert.NotContains(t, out, "switch_flow")

	out, err = run(t, "suggest", "-f", writeInputs(t, flowYAML))
	require.NoError(t, err)
	assert.Contains(t, out, "switch_flow")
}
