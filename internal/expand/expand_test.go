package expand_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ramble-hpc/ramble/internal/expand"
	"github.com/ramble-hpc/ramble/internal/model"
)

func TestExpandScalarAndArithmetic(t *testing.T) {
	b := model.Binding{
		"processes_per_node": model.Int(2),
		"n_nodes":             model.Int(4),
		"n_ranks":             model.Tmpl("{processes_per_node}*{n_nodes}"),
	}
	x := expand.New(b, nil)

	out, err := x.Expand("{n_ranks}", nil, true)
	require.NoError(t, err)
	require.Equal(t, "8", out)
}

func TestExpandPassthrough(t *testing.T) {
	x := expand.New(model.Binding{}, nil)
	out, err := x.Expand("hello {missing}", nil, true)
	require.NoError(t, err)
	require.Equal(t, "hello {missing}", out)
}

func TestExpandPassthroughDisallowedFails(t *testing.T) {
	x := expand.New(model.Binding{}, nil)
	_, err := x.Expand("hello {missing}", nil, false)
	require.Error(t, err)
	var expErr *model.ExpansionError
	require.ErrorAs(t, err, &expErr)
	require.Equal(t, "missing", expErr.Variable)
}

func TestExpandIdempotent(t *testing.T) {
	x := expand.New(model.Binding{"x": model.Int(3)}, nil)
	once, err := x.Expand("value is {x}", nil, true)
	require.NoError(t, err)
	twice, err := x.Expand(once, nil, true)
	require.NoError(t, err)
	require.Equal(t, once, twice)
}

func TestExpandLeavesInvalidArithmeticUnchanged(t *testing.T) {
	b := model.Binding{"x": model.Str("not-a-number")}
	x := expand.New(b, nil)
	out, err := x.Expand("{x}+1", nil, true)
	require.NoError(t, err)
	require.Equal(t, "not-a-number+1", out)
}

func TestExpandWhereExclusionPredicate(t *testing.T) {
	x := expand.New(model.Binding{"n_nodes": model.Int(3)}, nil)
	out, err := x.Expand("{n_nodes} > 2 and {n_nodes} < 5", nil, true)
	require.NoError(t, err)
	require.Equal(t, "true", out)
}
