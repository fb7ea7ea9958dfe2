package scheduler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t77yq/worksched/internal/model"
)

func deps(ids ...model.TaskID) []model.TaskID {
	return ids
}

func TestBuildTaskGraph(t *testing.T) {
	t.Run("stable topological order", func(t *testing.T) {
		tasks := []model.Task{
			{ID: "c"},
			{ID: "a"},
			{ID: "b", Dependencies: deps("c")},
		}

		g, err := BuildTaskGraph(tasks)
		require.NoError(t, err)
		assert.Equal(t, []model.TaskID{"c", "a", "b"}, g.Order)
		assert.Equal(t, []model.TaskID{"c", "a"}, g.Roots)
		assert.Equal(t, []model.TaskID{"a", "b"}, g.Leaves)
		assert.Equal(t, 3, g.TaskCount())
	})

	t.Run("duplicate dependencies collapse", func(t *testing.T) {
		tasks := []model.Task{
			{ID: "a"},
			{ID: "b", Dependencies: deps("a", "a")},
		}

		g, err := BuildTaskGraph(tasks)
		require.NoError(t, err)
		assert.Equal(t, []model.TaskID{"a"}, g.RevAdj["b"])
		assert.Equal(t, []model.TaskID{"b"}, g.Adj["a"])
	})

	t.Run("missing dependency", func(t *testing.T) {
		tasks := []model.Task{
			{ID: "a", Dependencies: deps("ghost")},
		}

		_, err := BuildTaskGraph(tasks)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidDependency))

		var depErr *InvalidDependencyError
		require.True(t, errors.As(err, &depErr))
		assert.Equal(t, model.TaskID("a"), depErr.TaskID)
		assert.Equal(t, model.TaskID("ghost"), depErr.MissingID)
	})

	t.Run("cycle", func(t *testing.T) {
		tasks := []model.Task{
			{ID: "A", Dependencies: deps("B")},
			{ID: "B", Dependencies: deps("C")},
			{ID: "C", Dependencies: deps("A")},
		}

		_, err := BuildTaskGraph(tasks)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrCyclicDependency))

		var cycleErr *CyclicDependencyError
		require.True(t, errors.As(err, &cycleErr))
		assert.Subset(t, cycleErr.Cycle, []model.TaskID{"A", "B", "C"})
		assert.Contains(t, err.Error(), "A")
	})

	t.Run("self dependency", func(t *testing.T) {
		_, err := BuildTaskGraph([]model.Task{{ID: "a", Dependencies: deps("a")}})
		assert.True(t, errors.Is(err, ErrCyclicDependency))
	})

	t.Run("duplicate id", func(t *testing.T) {
		_, err := BuildTaskGraph([]model.Task{{ID: "a"}, {ID: "a"}})
		assert.True(t, errors.Is(err, ErrValidation))
	})
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "cyclic_dependency", ErrorKind(&CyclicDependencyError{Cycle: deps("a")}))
	assert.Equal(t, "invalid_dependency", ErrorKind(&InvalidDependencyError{TaskID: "a", MissingID: "b"}))
	assert.Equal(t, "validation", ErrorKind(&ValidationError{Field: "tasks", Message: "empty"}))
	assert.Equal(t, "remediation", ErrorKind(ErrSuggestionNotApplicable))
	assert.Equal(t, "internal", ErrorKind(errors.New("boom")))
}
