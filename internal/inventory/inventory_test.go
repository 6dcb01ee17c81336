package inventory_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ramble-hpc/ramble/internal/inventory"
	"github.com/ramble-hpc/ramble/internal/model"
)

func newExperiment() *model.Experiment {
	return &model.Experiment{
		Application: "basic",
		Workload:    "test_wl",
		Name:        "series1_4",
		Binding: model.Binding{
			"n_ranks":            model.Int(4),
			"experiment_run_dir": model.Str("/work/basic/test_wl/series1_4"),
			"workspace_name":     model.Str("my_workspace"),
		},
		Modifiers:  []model.ModifierInstance{{Name: "timer"}},
		ChainOrder: []string{"basic.test_wl.series1_4"},
	}
}

func TestBuildStripsWorkspaceRootAndWorkspaceName(t *testing.T) {
	exp := newExperiment()
	snap := inventory.Build(exp, "/work", nil, nil, nil)

	require.Equal(t, "/basic/test_wl/series1_4", snap.Variables["experiment_run_dir"])
	_, ok := snap.Variables["workspace_name"]
	require.False(t, ok)
	require.Equal(t, []string{"timer/default"}, snap.Modifiers)
}

func TestComputeIsDeterministic(t *testing.T) {
	exp := newExperiment()
	snap1 := inventory.Build(exp, "/work", nil, nil, nil)
	snap2 := inventory.Build(exp, "/work", nil, nil, nil)

	h1, err := inventory.Compute(snap1)
	require.NoError(t, err)
	h2, err := inventory.Compute(snap2)
	require.NoError(t, err)
	require.Equal(t, h1, h2)
	require.Len(t, h1, 64)
}

func TestComputeChangesWithContent(t *testing.T) {
	exp := newExperiment()
	snap1 := inventory.Build(exp, "/work", nil, nil, nil)
	h1, err := inventory.Compute(snap1)
	require.NoError(t, err)

	exp.Binding["n_ranks"] = model.Int(8)
	snap2 := inventory.Build(exp, "/work", nil, nil, nil)
	h2, err := inventory.Compute(snap2)
	require.NoError(t, err)

	require.NotEqual(t, h1, h2)
}

func TestNewRunIDIsUnique(t *testing.T) {
	a := inventory.NewRunID()
	b := inventory.NewRunID()
	require.NotEqual(t, a, b)
	require.Len(t, a, 26)
}
