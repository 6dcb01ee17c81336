package engine_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ramble-hpc/ramble/internal/engine"
	"github.com/ramble-hpc/ramble/internal/expset"
	"github.com/ramble-hpc/ramble/internal/model"
)

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	e, err := engine.New("/work", expset.LayerContext{Vars: model.Binding{
		"batch_submit": model.Str("sbatch"),
		"mpi_command":  model.Str("mpirun"),
	}}, engine.NewLogger())
	require.NoError(t, err)
	return e
}

func TestTransactionLifecycle(t *testing.T) {
	e := newEngine(t)

	_, err := e.RequireOpenTransaction()
	require.Error(t, err)

	tx, err := e.Begin("/work/run1")
	require.NoError(t, err)
	require.Equal(t, "/work/run1", tx.Root())

	got, err := e.RequireOpenTransaction()
	require.NoError(t, err)
	require.Same(t, tx, got)

	_, err = e.Begin("/work/run2")
	require.Error(t, err)

	require.NoError(t, tx.Commit())
	_, err = e.RequireOpenTransaction()
	require.Error(t, err)

	require.Error(t, tx.Commit())
}

func TestTransactionAbortReleasesLock(t *testing.T) {
	e := newEngine(t)
	tx, err := e.Begin("/work/run1")
	require.NoError(t, err)
	require.NoError(t, tx.Abort())

	tx2, err := e.Begin("/work/run2")
	require.NoError(t, err)
	require.Equal(t, "/work/run2", tx2.Root())
}

func TestLoggerNilSafe(t *testing.T) {
	var l *engine.Logger
	l.Log(engine.EventChainCycle, "should not panic", nil)
	require.Nil(t, l.Events())
}

func TestLoggerRecordsEvents(t *testing.T) {
	l := engine.NewLogger()
	l.Log(engine.EventImplicitZip, "formed implicit zip over n_nodes, n_ranks", map[string]string{"experiment": "basic.test_wl.series1_4"})
	events := l.Events()
	require.Len(t, events, 1)
	require.Equal(t, engine.EventImplicitZip, events[0].Kind)
}
