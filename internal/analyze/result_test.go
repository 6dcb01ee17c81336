package analyze_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ramble-hpc/ramble/internal/analyze"
	"github.com/ramble-hpc/ramble/internal/model"
)

func basicExperiment() *model.Experiment {
	return &model.Experiment{
		Application: "gromacs",
		Workload:    "water_gmx50",
		Name:        "series1_4",
		ChainOrder:  []string{"gromacs.water_gmx50.series1_4"},
		Binding: model.Binding{
			"n_ranks": model.Str("4"),
			"command": model.Tmpl("mpirun -n {n_ranks} gmx_mpi"),
		},
	}
}

func TestBuildResultSuccessCarriesFOMsAndVariables(t *testing.T) {
	exp := basicExperiment()
	a := analyze.New(
		[]model.FOMDef{{Name: "walltime", LogFile: "out.log", Regex: `walltime: (?P<val>[0-9.]+)`, Group: "val"}},
		nil, nil,
	)
	require.NoError(t, a.ScanFile("out.log", strings.NewReader("walltime: 3.2\n")))

	res := analyze.BuildResult(exp, a, true, false)
	require.Equal(t, "gromacs.water_gmx50.series1_4", res.Name)
	require.Equal(t, analyze.StatusSuccess, res.Status)
	require.Equal(t, []string{"gromacs.water_gmx50.series1_4"}, res.ExperimentChain)
	require.Equal(t, "4", res.Variables["n_ranks"])
	require.Equal(t, "mpirun -n {n_ranks} gmx_mpi", res.RawVariables["command"])
	require.Len(t, res.Contexts, 1)
}

func TestBuildResultFailureOmitsFOMsByDefault(t *testing.T) {
	exp := basicExperiment()
	a := analyze.New(nil, nil, nil)

	res := analyze.BuildResult(exp, a, false, false)
	require.Equal(t, analyze.StatusFailed, res.Status)
	require.Nil(t, res.Variables)
	require.Nil(t, res.Contexts)
}

func TestBuildResultFailureWithAlwaysPrintFOMsStillCarriesThem(t *testing.T) {
	exp := basicExperiment()
	a := analyze.New(nil, nil, nil)

	res := analyze.BuildResult(exp, a, false, true)
	require.Equal(t, analyze.StatusFailed, res.Status)
	require.NotNil(t, res.Variables)
	require.Equal(t, "4", res.Variables["n_ranks"])
}

func TestMarshalJSONDocumentRoundTripsStatus(t *testing.T) {
	exp := basicExperiment()
	a := analyze.New(nil, nil, nil)
	res := analyze.BuildResult(exp, a, true, false)

	b, err := res.MarshalJSONDocument()
	require.NoError(t, err)
	require.Contains(t, string(b), `"RAMBLE_STATUS": "SUCCESS"`)
}

func TestMarshalYAMLDocumentContainsStatus(t *testing.T) {
	exp := basicExperiment()
	a := analyze.New(nil, nil, nil)
	res := analyze.BuildResult(exp, a, false, false)

	b, err := res.MarshalYAMLDocument()
	require.NoError(t, err)
	require.Contains(t, string(b), "RAMBLE_STATUS: FAILED")
}

func TestRenderTextIncludesNameAndFOMs(t *testing.T) {
	exp := basicExperiment()
	a := analyze.New(
		[]model.FOMDef{{Name: "walltime", LogFile: "out.log", Regex: `walltime: (?P<val>[0-9.]+)`, Group: "val", Units: "s"}},
		nil, nil,
	)
	require.NoError(t, a.ScanFile("out.log", strings.NewReader("walltime: 3.2\n")))
	res := analyze.BuildResult(exp, a, true, false)

	out := res.RenderText()
	require.Contains(t, out, "gromacs.water_gmx50.series1_4")
	require.Contains(t, out, "walltime = 3.2 s")
}
