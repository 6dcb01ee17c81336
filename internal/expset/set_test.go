package expset_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ramble-hpc/ramble/internal/expand"
	"github.com/ramble-hpc/ramble/internal/expset"
	"github.com/ramble-hpc/ramble/internal/model"
)

func names(exps []*model.Experiment) []string {
	out := make([]string, len(exps))
	for i, e := range exps {
		out[i] = e.QualifiedName()
	}
	sort.Strings(out)
	return out
}

func newTestSet(t *testing.T) *expset.Set {
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

func TestSingleExperimentVector(t *testing.T) {
	s := newTestSet(t)
	exps, err := s.SetExperimentContext("basic", "test_wl", expset.ExperimentContext{
		LayerContext: expset.LayerContext{Vars: model.Binding{
			"n_nodes":             model.Seq(model.Int(2), model.Int(4)),
			"processes_per_node": model.Int(2),
			"n_ranks":             model.Tmpl("{processes_per_node}*{n_nodes}"),
		}},
		NameTemplate: "series1_{n_ranks}",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"basic.test_wl.series1_4", "basic.test_wl.series1_8"}, names(exps))
}

func TestMatrixProduct(t *testing.T) {
	s := newTestSet(t)
	exps, err := s.SetExperimentContext("basic", "test_wl", expset.ExperimentContext{
		LayerContext: expset.LayerContext{Vars: model.Binding{
			"processes_per_node": model.Seq(model.Int(1), model.Int(4), model.Int(6)),
			"n_nodes":             model.Seq(model.Int(2), model.Int(4)),
			"n_ranks":             model.Tmpl("{processes_per_node}*{n_nodes}"),
		}},
		NameTemplate: "series1_{n_ranks}",
		Matrices:     [][]string{{"n_nodes", "processes_per_node"}},
	})
	require.NoError(t, err)
	require.Len(t, exps, 6)
}

func TestWhereExclude(t *testing.T) {
	s := newTestSet(t)
	seq := make([]model.Value, 5)
	for i := 0; i < 5; i++ {
		seq[i] = model.Int(int64(i + 1))
	}
	exps, err := s.SetExperimentContext("basic", "test_wl", expset.ExperimentContext{
		LayerContext: expset.LayerContext{Vars: model.Binding{
			"n_nodes": model.Seq(seq...),
		}},
		NameTemplate: "series1_{n_nodes}",
		Excludes: []model.Exclude{
			{Where: []string{"{n_nodes} > 2 and {n_nodes} < 5"}},
		},
	})
	require.NoError(t, err)
	require.Equal(t, []string{
		"basic.test_wl.series1_1",
		"basic.test_wl.series1_2",
		"basic.test_wl.series1_5",
	}, names(exps))
}

func TestLengthMismatchFails(t *testing.T) {
	s := newTestSet(t)
	_, err := s.SetExperimentContext("basic", "test_wl", expset.ExperimentContext{
		LayerContext: expset.LayerContext{Vars: model.Binding{
			"a": model.Seq(model.Int(1), model.Int(2)),
			"b": model.Seq(model.Int(1), model.Int(2), model.Int(3)),
		}},
		NameTemplate: "exp_{a}_{b}",
	})
	require.Error(t, err)
	var declErr *model.DeclarationError
	require.ErrorAs(t, err, &declErr)
	require.Equal(t, "length-mismatch", declErr.Kind)
}

func TestDuplicateNameFails(t *testing.T) {
	s := newTestSet(t)
	_, err := s.SetExperimentContext("basic", "test_wl", expset.ExperimentContext{
		LayerContext: expset.LayerContext{Vars: model.Binding{
			"a": model.Seq(model.Int(1), model.Int(1)),
		}},
		NameTemplate: "fixed_name",
	})
	require.Error(t, err)
	var declErr *model.DeclarationError
	require.ErrorAs(t, err, &declErr)
	require.Equal(t, "duplicate-name", declErr.Kind)
}

func TestReservedNameRejected(t *testing.T) {
	_, err := expset.New(expset.LayerContext{Vars: model.Binding{"command": model.Str("x")}})
	require.Error(t, err)
	var declErr *model.DeclarationError
	require.ErrorAs(t, err, &declErr)
	require.Equal(t, "reserved-name", declErr.Kind)
}

func TestRequiredKeyMissingFails(t *testing.T) {
	s, err := expset.New(expset.LayerContext{})
	require.NoError(t, err)
	require.NoError(t, s.SetApplicationContext("basic", expset.LayerContext{}))
	require.NoError(t, s.SetWorkloadContext("basic", "test_wl", expset.LayerContext{}))
	_, err = s.SetExperimentContext("basic", "test_wl", expset.ExperimentContext{
		NameTemplate: "missing_required",
	})
	require.Error(t, err)
	var declErr *model.DeclarationError
	require.ErrorAs(t, err, &declErr)
	require.Equal(t, "required-key", declErr.Kind)
}

func TestUnknownNameInMatrixFails(t *testing.T) {
	s := newTestSet(t)
	_, err := s.SetExperimentContext("basic", "test_wl", expset.ExperimentContext{
		LayerContext: expset.LayerContext{Vars: model.Binding{
			"a": model.Seq(model.Int(1), model.Int(2)),
		}},
		NameTemplate: "exp_{a}",
		Matrices:     [][]string{{"a", "does_not_exist"}},
	})
	require.Error(t, err)
	var declErr *model.DeclarationError
	require.ErrorAs(t, err, &declErr)
	require.Equal(t, "unknown-name", declErr.Kind)
}

func TestCrossExperimentReference(t *testing.T) {
	s := newTestSet(t)
	_, err := s.SetExperimentContext("basic", "test_wl", expset.ExperimentContext{
		LayerContext: expset.LayerContext{Vars: model.Binding{
			"n_nodes":    model.Seq(model.Int(2), model.Int(4)),
			"test_var":   model.Str("success"),
			"n_ranks":    model.Tmpl("2*{n_nodes}"),
		}},
		NameTemplate: "series1_{n_ranks}",
	})
	require.NoError(t, err)

	s2 := newTestSet(t)
	require.NoError(t, s2.SetApplicationContext("basic", expset.LayerContext{}))
	require.NoError(t, s2.SetWorkloadContext("basic", "test_wl", expset.LayerContext{}))
	for _, e := range s.Experiments() {
		require.NoError(t, s2.Register(e))
	}
	_, err = s2.SetExperimentContext("basic", "test_wl", expset.ExperimentContext{
		LayerContext: expset.LayerContext{Vars: model.Binding{
			"test_var": model.Str("success"),
			"matches":  model.Tmpl("test_var in basic.test_wl.series1_4"),
		}},
		NameTemplate: "series2_4",
	})
	require.NoError(t, err)
	exp, ok := s2.Get("basic.test_wl.series2_4")
	require.True(t, ok)
	x := expand.New(exp.Binding, s2)
	out, err := x.Expand("{matches}", nil, true)
	require.NoError(t, err)
	require.Equal(t, "success", out)
}
