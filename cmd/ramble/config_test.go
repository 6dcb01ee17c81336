package main

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ramble-hpc/ramble/internal/expset"
	"github.com/ramble-hpc/ramble/internal/model"
)

func TestToValueScalars(t *testing.T) {
	require.Equal(t, model.Str("gromacs"), toValue("gromacs"))
	require.Equal(t, model.Tmpl("{n_nodes}*{processes_per_node}"), toValue("{n_nodes}*{processes_per_node}"))
	require.Equal(t, model.Int(4), toValue(4))
	require.Equal(t, model.Int(4), toValue(int64(4)))
	require.Equal(t, model.Float(1.5), toValue(1.5))
	require.Equal(t, model.Bool(true), toValue(true))
}

func TestToValueSequence(t *testing.T) {
	got := toValue([]any{1, 2, 4})
	want := model.Seq(model.Int(1), model.Int(2), model.Int(4))
	require.Equal(t, want, got)
}

func TestToValueFallsBackToStringRepr(t *testing.T) {
	type custom struct{ X int }
	got := toValue(custom{X: 1})
	require.Equal(t, model.Str("{1}"), got)
}

func TestToBindingConvertsEveryKey(t *testing.T) {
	b := toBinding(rawVars{
		"n_nodes":    2,
		"batch_sub":  "{mpi_command}",
		"experiment": "series1",
	})
	require.Equal(t, model.Int(2), b["n_nodes"])
	require.Equal(t, model.Tmpl("{mpi_command}"), b["batch_sub"])
	require.Equal(t, model.Str("series1"), b["experiment"])
}

func TestToChainOrderValidTokens(t *testing.T) {
	require.Equal(t, model.BeforeChain, toChainOrder("before_chain"))
	require.Equal(t, model.BeforeRoot, toChainOrder("before_root"))
	require.Equal(t, model.AfterRoot, toChainOrder("after_root"))
	require.Equal(t, model.AfterChain, toChainOrder("after_chain"))
}

func TestToChainOrderDefaultsToAfterRoot(t *testing.T) {
	require.Equal(t, model.AfterRoot, toChainOrder(""))
	require.Equal(t, model.AfterRoot, toChainOrder("bogus"))
}

func TestWorkspaceLayerContextExtractsTopLevelScope(t *testing.T) {
	cfg := &workspaceConfig{}
	cfg.Ramble.Variables = rawVars{"batch_submit": "sbatch"}
	cfg.Ramble.EnvVars = rawVars{"OMP_NUM_THREADS": 4}

	lc := workspaceLayerContext(cfg)
	require.Equal(t, model.Str("sbatch"), lc.Vars["batch_submit"])
	require.Equal(t, model.Int(4), lc.EnvVars["OMP_NUM_THREADS"])
}

func TestPopulateSetMaterializesExperiments(t *testing.T) {
	cfg := &workspaceConfig{}
	cfg.Ramble.Variables = rawVars{
		"batch_submit": "sbatch",
		"mpi_command":  "mpirun",
	}
	cfg.Ramble.Applications = map[string]applicationConfig{
		"gromacs": {
			Workloads: map[string]workloadConfig{
				"water_gmx50": {
					Experiments: map[string]experimentConfig{
						"series1": {
							Variables: rawVars{
								"n_nodes": []any{1, 2},
							},
							NameSuffix: "series1_{n_nodes}",
						},
					},
				},
			},
		},
	}

	set, err := newEngineSetForTest(cfg)
	require.NoError(t, err)

	got := names(set.Experiments())
	require.Equal(t, []string{"gromacs.water_gmx50.series1_1", "gromacs.water_gmx50.series1_2"}, got)
}

func TestPopulateSetWiresModifiersAndChainedEntries(t *testing.T) {
	cfg := &workspaceConfig{}
	cfg.Ramble.Variables = rawVars{
		"batch_submit": "sbatch",
		"mpi_command":  "mpirun",
	}
	cfg.Ramble.Applications = map[string]applicationConfig{
		"gromacs": {
			Workloads: map[string]workloadConfig{
				"water_gmx50": {
					Experiments: map[string]experimentConfig{
						"series1": {
							Modifiers: []modifierRefConfig{{Name: "allocation", Mode: "shared"}},
							Chained: []chainEntryConfig{{
								Name:      "gromacs.water_gmx50.warmup",
								Command:   "{experiment_run_dir}/warmup.sh",
								Order:     "before_root",
								Variables: rawVars{"n_nodes": 1},
							}},
						},
					},
				},
			},
		},
	}

	set, err := newEngineSetForTest(cfg)
	require.NoError(t, err)

	exp, ok := set.Get("gromacs.water_gmx50.series1")
	require.True(t, ok)
	require.Equal(t, []model.ModifierInstance{{Name: "allocation", Mode: "shared"}}, exp.Modifiers)
	require.Len(t, exp.Chained, 1)
	require.Equal(t, model.BeforeRoot, exp.Chained[0].Order)
	require.Equal(t, model.Int(1), exp.Chained[0].Variables["n_nodes"])
}

// newEngineSetForTest builds the Set the same way runSetup/runAnalyze do,
// without going through engine.New (no workspace root needed for this
// level of test).
func newEngineSetForTest(cfg *workspaceConfig) (*expset.Set, error) {
	set, err := expset.New(workspaceLayerContext(cfg))
	if err != nil {
		return nil, err
	}
	if err := populateSet(set, cfg); err != nil {
		return nil, err
	}
	return set, nil
}

func names(exps []*model.Experiment) []string {
	out := make([]string, len(exps))
	for i, e := range exps {
		out[i] = e.QualifiedName()
	}
	sort.Strings(out)
	return out
}
