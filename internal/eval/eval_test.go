package eval_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ramble-hpc/ramble/internal/eval"
	"github.com/ramble-hpc/ramble/internal/model"
)

func bindings(kv ...any) model.Binding {
	b := model.Binding{}
	for i := 0; i < len(kv); i += 2 {
		b[kv[i].(string)] = kv[i+1].(model.Value)
	}
	return b
}

func TestArithmetic(t *testing.T) {
	v, err := eval.EvalString("{processes_per_node}*{n_nodes}", bindings("processes_per_node", model.Int(2), "n_nodes", model.Int(4)), nil)
	require.Error(t, err) // braces aren't part of the expression grammar; expand.go strips them first
	_ = v

	v, err = eval.EvalString("2*4", nil, nil)
	require.NoError(t, err)
	require.Equal(t, int64(8), v.Scalar)

	v, err = eval.EvalString("2**10", nil, nil)
	require.NoError(t, err)
	require.Equal(t, int64(1024), v.Scalar)

	v, err = eval.EvalString("7/2", nil, nil)
	require.NoError(t, err)
	require.Equal(t, 3.5, v.Scalar)
}

func TestComparisonChain(t *testing.T) {
	v, err := eval.EvalString("1 < 2 < 3", nil, nil)
	require.NoError(t, err)
	require.Equal(t, true, v.Scalar)

	v, err = eval.EvalString("1 < 2 < 1", nil, nil)
	require.NoError(t, err)
	require.Equal(t, false, v.Scalar)
}

func TestBoolOps(t *testing.T) {
	v, err := eval.EvalString("n_nodes > 2 and n_nodes < 5", bindings("n_nodes", model.Int(3)), nil)
	require.NoError(t, err)
	require.Equal(t, true, v.Scalar)

	v, err = eval.EvalString("n_nodes > 2 and n_nodes < 5", bindings("n_nodes", model.Int(5)), nil)
	require.NoError(t, err)
	require.Equal(t, false, v.Scalar)
}

func TestRange(t *testing.T) {
	v, err := eval.EvalString("range(3)", nil, nil)
	require.NoError(t, err)
	require.True(t, v.IsSequence())
	require.Equal(t, 3, v.Len())
	require.Equal(t, int64(0), v.Sequence[0].Scalar)
	require.Equal(t, int64(2), v.Sequence[2].Scalar)
}

func TestStringOperandInBinOpFails(t *testing.T) {
	_, err := eval.EvalString(`1 + "x"`, nil, nil)
	require.Error(t, err)
	var evErr *model.EvaluatorError
	require.ErrorAs(t, err, &evErr)
}

func TestUnsupportedCallFails(t *testing.T) {
	_, err := eval.EvalString("foo(1)", nil, nil)
	require.Error(t, err)
}

type fakeResolver struct {
	values map[string]model.Value
}

func (f fakeResolver) ResolveIn(namespace, variable string) (model.Value, error) {
	return f.values[namespace+"."+variable], nil
}

func TestCrossExperimentIn(t *testing.T) {
	r := fakeResolver{values: map[string]model.Value{"basic.test_wl.series1_4.test_var": model.Str("success")}}
	v, err := eval.EvalString("test_var in basic.test_wl.series1_4", bindings("test_var", model.Str("placeholder")), r)
	require.NoError(t, err)
	require.Equal(t, "success", v.Scalar)
}

func TestUnaryNegation(t *testing.T) {
	v, err := eval.EvalString("-5 + 2", nil, nil)
	require.NoError(t, err)
	require.Equal(t, int64(-3), v.Scalar)
}
