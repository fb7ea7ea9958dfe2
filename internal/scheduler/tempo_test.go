package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/t77yq/worksched/internal/model"
)

func TestSelectHours(t *testing.T) {
	task := model.Task{ID: "t", EstimatedHours: 5, Estimates: model.Estimates{Low: 2, Medium: 4, High: 9}}

	assert.Equal(t, 2.0, SelectHours(task, model.TempoFastTrack))
	assert.Equal(t, 4.0, SelectHours(task, model.TempoSteady))
	assert.Equal(t, 9.0, SelectHours(task, model.TempoExtended))

	t.Run("no estimates keeps estimated hours", func(t *testing.T) {
		plain := model.Task{ID: "p", EstimatedHours: 3}
		assert.Equal(t, 3.0, SelectHours(plain, model.TempoFastTrack))
		assert.Equal(t, 3.0, SelectHours(plain, model.TempoExtended))
	})

	t.Run("missing percentile falls back to medium", func(t *testing.T) {
		partial := model.Task{ID: "p", EstimatedHours: 3, Estimates: model.Estimates{Medium: 6}}
		assert.Equal(t, 6.0, SelectHours(partial, model.TempoFastTrack))
		assert.Equal(t, 6.0, SelectHours(partial, model.TempoExtended))
	})
}

func TestSelectDurations(t *testing.T) {
	tasks := []model.Task{
		{ID: "a", EstimatedHours: 1.1},
		{ID: "b", EstimatedHours: 2},
		{ID: "c"},
	}

	got := SelectDurations(tasks, model.TempoSteady, 30*time.Minute)
	assert.Equal(t, 90*time.Minute, got["a"])
	assert.Equal(t, 2*time.Hour, got["b"])
	assert.Equal(t, time.Duration(0), got["c"])

	got = SelectDurations(tasks, model.TempoSteady, time.Hour)
	assert.Equal(t, 2*time.Hour, got["a"])
}
