package chain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ramble-hpc/ramble/internal/chain"
	"github.com/ramble-hpc/ramble/internal/expset"
	"github.com/ramble-hpc/ramble/internal/model"
)

func newSet(t *testing.T) *expset.Set {
	t.Helper()
	s, err := expset.New(expset.LayerContext{Vars: model.Binding{
		"batch_submit": model.Str("sbatch"),
		"mpi_command":  model.Str("mpirun"),
	}})
	require.NoError(t, err)
	require.NoError(t, s.SetApplicationContext("basic", expset.LayerContext{}))
	require.NoError(t, s.SetWorkloadContext("basic", "test_wl", expset.LayerContext{}))
	return s
}

func TestChainOrderingBeforeAndAfterRoot(t *testing.T) {
	s := newSet(t)

	children, err := s.SetExperimentContext("basic", "test_wl", expset.ExperimentContext{
		NameTemplate: "test1",
	})
	require.NoError(t, err)
	require.Len(t, children, 1)

	roots, err := s.SetExperimentContext("basic", "test_wl", expset.ExperimentContext{
		LayerContext: expset.LayerContext{
			Chained: []model.ChainEntry{
				{Name: "basic.test_wl.test1", Command: "run-before", Order: model.BeforeRoot},
				{Name: "basic.test_wl.test1", Command: "run-after", Order: model.AfterRoot},
			},
		},
		NameTemplate: "series2_4",
	})
	require.NoError(t, err)
	require.Len(t, roots, 1)
	root := roots[0]
	// experiment_run_dir is reserved, so it is bound by the engine rather
	// than declared in a user scope.
	root.Binding["experiment_run_dir"] = model.Str("/work/basic/test_wl/series2_4")

	b := &chain.Builder{Set: s}
	result, err := b.Build(root)
	require.NoError(t, err)
	require.Equal(t, []string{"chain.0.basic.test_wl.test1", "basic.test_wl.series2_4", "chain.1.basic.test_wl.test1"}, result.ChainOrder)
	require.Equal(t, "run-before", result.Commands["chain.0.basic.test_wl.test1"])
	require.Equal(t, "run-after", result.Commands["chain.1.basic.test_wl.test1"])

	_, ok := s.Get("chain.0.basic.test_wl.test1")
	require.True(t, ok)
	_, ok = s.Get("chain.1.basic.test_wl.test1")
	require.True(t, ok)
}

func TestChainCycleDetected(t *testing.T) {
	s := newSet(t)

	a, err := s.SetExperimentContext("basic", "test_wl", expset.ExperimentContext{
		LayerContext: expset.LayerContext{Chained: []model.ChainEntry{
			{Name: "basic.test_wl.b", Command: "run-b"},
		}},
		NameTemplate: "a",
	})
	require.NoError(t, err)

	_, err = s.SetExperimentContext("basic", "test_wl", expset.ExperimentContext{
		LayerContext: expset.LayerContext{Chained: []model.ChainEntry{
			{Name: "basic.test_wl.a", Command: "run-a"},
		}},
		NameTemplate: "b",
	})
	require.NoError(t, err)

	b := &chain.Builder{Set: s}
	_, err = b.Build(a[0])
	require.Error(t, err)
	var chainErr *model.ChainError
	require.ErrorAs(t, err, &chainErr)
	require.Equal(t, "cycle", chainErr.Kind)
}

func TestChainEntryMissingCommandFails(t *testing.T) {
	s := newSet(t)
	_, err := s.SetExperimentContext("basic", "test_wl", expset.ExperimentContext{
		NameTemplate: "test1",
	})
	require.NoError(t, err)

	roots, err := s.SetExperimentContext("basic", "test_wl", expset.ExperimentContext{
		LayerContext: expset.LayerContext{Chained: []model.ChainEntry{
			{Name: "basic.test_wl.test1"},
		}},
		NameTemplate: "series3",
	})
	require.NoError(t, err)

	b := &chain.Builder{Set: s}
	_, err = b.Build(roots[0])
	require.Error(t, err)
	var chainErr *model.ChainError
	require.ErrorAs(t, err, &chainErr)
	require.Equal(t, "invalid-entry", chainErr.Kind)
}

func TestChainUnknownReferenceFails(t *testing.T) {
	s := newSet(t)
	roots, err := s.SetExperimentContext("basic", "test_wl", expset.ExperimentContext{
		LayerContext: expset.LayerContext{Chained: []model.ChainEntry{
			{Name: "basic.test_wl.does_not_exist", Command: "run"},
		}},
		NameTemplate: "series4",
	})
	require.NoError(t, err)

	b := &chain.Builder{Set: s}
	_, err = b.Build(roots[0])
	require.Error(t, err)
	var chainErr *model.ChainError
	require.ErrorAs(t, err, &chainErr)
	require.Equal(t, "invalid-entry", chainErr.Kind)
}
