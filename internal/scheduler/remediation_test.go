package scheduler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t77yq/worksched/internal/model"
)

func TestApplySuggestion(t *testing.T) {
	base := chainInputs()
	base.Tempo = model.TempoExtended

	t.Run("add worker", func(t *testing.T) {
		out, s, err := applySuggestion(model.SuggestAddWorker, base)
		require.NoError(t, err)
		require.Len(t, out.Workers, 2)
		assert.Equal(t, "extra-helper-1", out.Workers[1].ID)
		assert.Equal(t, model.WorkerTypeHelper, out.Workers[1].Type)
		assert.Equal(t, window("08:00", "16:00"), out.Workers[1].WorkingHours)
		assert.Equal(t, model.SuggestAddWorker, s.Kind)
		assert.Len(t, base.Workers, 1)
	})

	t.Run("extend hours caps at midnight", func(t *testing.T) {
		in := base.Clone()
		in.Workers[0].WorkingHours = window("14:00", "23:00")

		out, _, err := applySuggestion(model.SuggestExtendHours, in)
		require.NoError(t, err)
		assert.Equal(t, model.ClockTime(model.MinutesPerDay), out.Workers[0].WorkingHours.End)

		_, _, err = applySuggestion(model.SuggestExtendHours, out)
		assert.ErrorIs(t, err, ErrSuggestionNotApplicable)
	})

	t.Run("relax tempo steps down", func(t *testing.T) {
		out, _, err := applySuggestion(model.SuggestRelaxTempo, base)
		require.NoError(t, err)
		assert.Equal(t, model.TempoSteady, out.Tempo)

		out, _, err = applySuggestion(model.SuggestRelaxTempo, out)
		require.NoError(t, err)
		assert.Equal(t, model.TempoFastTrack, out.Tempo)

		_, _, err = applySuggestion(model.SuggestRelaxTempo, out)
		assert.ErrorIs(t, err, ErrSuggestionNotApplicable)
	})

	t.Run("relax presets", func(t *testing.T) {
		in := base.Clone()
		in.Workers[0] = model.Worker{ID: "w1", WeekdaysAfterFivePm: true}

		out, _, err := applySuggestion(model.SuggestRelaxPresets, in)
		require.NoError(t, err)
		assert.False(t, out.Workers[0].WeekdaysAfterFivePm)
		assert.Equal(t, defaultWorkingHours, out.Workers[0].WorkingHours)
		assert.True(t, in.Workers[0].WeekdaysAfterFivePm)

		_, _, err = applySuggestion(model.SuggestRelaxPresets, base)
		assert.ErrorIs(t, err, ErrSuggestionNotApplicable)
	})

	t.Run("switch flow needs tagged tasks", func(t *testing.T) {
		_, _, err := applySuggestion(model.SuggestSwitchFlow, base)
		assert.ErrorIs(t, err, ErrSuggestionNotApplicable)

		in := base.Clone()
		in.FlowMethod = model.FlowSinglePiece
		in.Tasks = []model.Task{
			{ID: "k1", Tags: []string{"space:kitchen", "step:1"}},
			{ID: "k2", Tags: []string{"space:kitchen", "step:2"}, Dependencies: deps("k1")},
			{ID: "b1", Tags: []string{"space:bath", "step:1"}, Dependencies: deps("k2")},
			{ID: "b2", Tags: []string{"space:bath", "step:2"}, Dependencies: deps("b1")},
		}

		out, _, err := applySuggestion(model.SuggestSwitchFlow, in)
		require.NoError(t, err)
		assert.Equal(t, model.FlowBatch, out.FlowMethod)
		assert.Equal(t, deps("b1"), out.Tasks[1].Dependencies)
		assert.Equal(t, deps("k1"), out.Tasks[2].Dependencies)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, _, err := applySuggestion("teleport", base)
		assert.True(t, errors.Is(err, ErrUnknownSuggestion))
	})
}

func TestEngine_Remediate(t *testing.T) {
	engine := newTestEngine(t)
	in := chainInputs()
	in.TargetCompletionDate = at(2, 0, 0)
	in.DropDeadDate = at(30, 0, 0)

	original, err := engine.Compute(in)
	require.NoError(t, err)

	preview, err := engine.Remediate(in, model.SuggestExtendHours)
	require.NoError(t, err)
	assert.True(t, preview.FinishTime.Before(original.FinishTime))
	assert.NotEqual(t, original.Fingerprint, preview.Fingerprint)
	assert.Empty(t, preview.Suggestions)

	_, err = engine.Remediate(in, model.SuggestRelaxPresets)
	assert.ErrorIs(t, err, ErrSuggestionNotApplicable)

	in.Tasks = nil
	_, err = engine.Remediate(in, model.SuggestAddWorker)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestEngine_Suggestions(t *testing.T) {
	engine := newTestEngine(t)

	suggestions, err := engine.Suggestions(chainInputs())
	require.NoError(t, err)

	kinds := make([]model.SuggestionKind, 0, len(suggestions))
	for _, s := range suggestions {
		kinds = append(kinds, s.Kind)
		assert.Nil(t, s.Preview)
	}
	assert.Equal(t, []model.SuggestionKind{model.SuggestAddWorker, model.SuggestExtendHours, model.SuggestRelaxTempo}, kinds)
}
