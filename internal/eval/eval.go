// Package eval implements the restricted arithmetic/boolean/membership
// mini-language of spec §4.1: a hand-written recursive-descent parser
// (parse.go) over a typed AST (ast.go), evaluated by a pure tree-walker
// (this file). It deliberately does not import github.com/expr-lang/expr
// (present in the teacher's go.mod) — see DESIGN.md for why the grammar
// is bespoke rather than reused.
package eval

import (
	"fmt"
	"math"

	"github.com/ramble-hpc/ramble/internal/model"
)

// Resolver looks up a variable's value inside another, named experiment,
// implementing the "x in a.b.c" cross-experiment reference (spec §4.1,
// §4.3 "Cross-experiment references"). internal/expset.Set implements
// this; eval never imports expset directly, avoiding an import cycle.
type Resolver interface {
	ResolveIn(namespace, variable string) (model.Value, error)
}

// Eval evaluates an already-parsed expression against a variable binding,
// using resolver (which may be nil if no "in" expression is reachable) to
// satisfy cross-experiment references. Eval never mutates bindings.
func Eval(node Node, bindings model.Binding, resolver Resolver) (model.Value, error) {
	switch n := node.(type) {
	case Number:
		if n.IsFloat {
			return model.Float(n.Float), nil
		}
		return model.Int(n.Int), nil
	case Bool:
		return model.Bool(n.Value), nil
	case Str:
		return model.Str(n.Value), nil
	case Name:
		if v, ok := bindings[n.Ident]; ok {
			return v, nil
		}
		return model.Value{}, &model.EvaluatorError{Kind: "syntax", Expr: n.Ident, Detail: "undefined name"}
	case Attribute:
		path, err := attributePath(n)
		if err != nil {
			return model.Value{}, err
		}
		return model.Value{}, &model.EvaluatorError{Kind: "syntax", Expr: path, Detail: "bare attribute path is only valid as the right-hand side of 'in'"}
	case UnaryOp:
		return evalUnary(n, bindings, resolver)
	case BinOp:
		return evalBinOp(n, bindings, resolver)
	case Compare:
		return evalCompare(n, bindings, resolver)
	case BoolOp:
		return evalBoolOp(n, bindings, resolver)
	case Call:
		return evalCall(n, bindings, resolver)
	default:
		return model.Value{}, &model.EvaluatorError{Kind: "math", Expr: fmt.Sprintf("%T", node), Detail: "unsupported AST node"}
	}
}

// EvalString parses and evaluates src in one call.
func EvalString(src string, bindings model.Binding, resolver Resolver) (model.Value, error) {
	node, err := Parse(src)
	if err != nil {
		return model.Value{}, &model.EvaluatorError{Kind: "syntax", Expr: src, Detail: err.Error()}
	}
	return Eval(node, bindings, resolver)
}

func attributePath(n Attribute) (string, error) {
	base, ok := n.Base.(Name)
	if ok {
		return base.Ident + "." + n.Attr, nil
	}
	parentAttr, ok := n.Base.(Attribute)
	if !ok {
		return "", &model.EvaluatorError{Kind: "syntax", Expr: n.Attr, Detail: "malformed attribute path"}
	}
	parentPath, err := attributePath(parentAttr)
	if err != nil {
		return "", err
	}
	return parentPath + "." + n.Attr, nil
}

func asNumber(v model.Value) (float64, bool, error) {
	if v.Kind != model.KindScalar {
		return 0, false, &model.EvaluatorError{Kind: "syntax", Expr: v.AsString(), Detail: "expected numeric operand"}
	}
	switch n := v.Scalar.(type) {
	case int64:
		return float64(n), false, nil
	case int:
		return float64(n), false, nil
	case float64:
		return n, true, nil
	case bool:
		if n {
			return 1, false, nil
		}
		return 0, false, nil
	default:
		return 0, false, &model.EvaluatorError{Kind: "syntax", Expr: v.AsString(), Detail: "string operand where numeric required"}
	}
}

func numValue(f float64, isFloat bool) model.Value {
	if isFloat {
		return model.Float(f)
	}
	return model.Int(int64(f))
}

func evalUnary(n UnaryOp, bindings model.Binding, r Resolver) (model.Value, error) {
	operand, err := Eval(n.Operand, bindings, r)
	if err != nil {
		return model.Value{}, err
	}
	switch n.Op {
	case "-":
		f, isFloat, err := asNumber(operand)
		if err != nil {
			return model.Value{}, err
		}
		return numValue(-f, isFloat), nil
	case "not":
		return model.Bool(!truthy(operand)), nil
	default:
		return model.Value{}, &model.EvaluatorError{Kind: "math", Expr: n.Op, Detail: "unsupported unary operator"}
	}
}

func evalBinOp(n BinOp, bindings model.Binding, r Resolver) (model.Value, error) {
	left, err := Eval(n.Left, bindings, r)
	if err != nil {
		return model.Value{}, err
	}
	right, err := Eval(n.Right, bindings, r)
	if err != nil {
		return model.Value{}, err
	}
	lf, lFloat, err := asNumber(left)
	if err != nil {
		return model.Value{}, err
	}
	rf, rFloat, err := asNumber(right)
	if err != nil {
		return model.Value{}, err
	}
	isFloat := lFloat || rFloat
	switch n.Op {
	case "+":
		return numValue(lf+rf, isFloat), nil
	case "-":
		return numValue(lf-rf, isFloat), nil
	case "*":
		return numValue(lf*rf, isFloat), nil
	case "/":
		if rf == 0 {
			return model.Value{}, &model.EvaluatorError{Kind: "math", Expr: "/", Detail: "division by zero"}
		}
		return model.Float(lf / rf), nil // true division, spec §4.1
	case "**":
		return numValue(math.Pow(lf, rf), isFloat || rf < 0), nil
	default:
		return model.Value{}, &model.EvaluatorError{Kind: "math", Expr: n.Op, Detail: "unsupported binary operator"}
	}
}

func evalBoolOp(n BoolOp, bindings model.Binding, r Resolver) (model.Value, error) {
	left, err := Eval(n.Left, bindings, r)
	if err != nil {
		return model.Value{}, err
	}
	switch n.Op {
	case "and":
		if !truthy(left) {
			return model.Bool(false), nil
		}
		right, err := Eval(n.Right, bindings, r)
		if err != nil {
			return model.Value{}, err
		}
		return model.Bool(truthy(right)), nil
	case "or":
		if truthy(left) {
			return model.Bool(true), nil
		}
		right, err := Eval(n.Right, bindings, r)
		if err != nil {
			return model.Value{}, err
		}
		return model.Bool(truthy(right)), nil
	default:
		return model.Value{}, &model.EvaluatorError{Kind: "math", Expr: n.Op, Detail: "unsupported boolean operator"}
	}
}

// evalCompare evaluates a chained comparison left-to-right with
// short-circuit AND (spec §4.1). "in" is handled separately: it is only
// valid as a lone comparison ("<name> in a.b.c"), and resolves to the
// referenced experiment's variable value itself rather than a boolean
// (original_source's _eval_comp_in, expander.py lines 471-489).
func evalCompare(n Compare, bindings model.Binding, r Resolver) (model.Value, error) {
	if len(n.Ops) == 1 && n.Ops[0].Op == "in" {
		return evalCompIn(n.Left, n.Ops[0], r)
	}

	left, err := Eval(n.Left, bindings, r)
	if err != nil {
		return model.Value{}, err
	}
	for _, op := range n.Ops {
		if op.Op == "in" {
			return model.Value{}, &model.EvaluatorError{Kind: "syntax", Expr: op.InNamespace, Detail: "'in' may not be chained with other comparisons"}
		}
		right, err := Eval(op.Right, bindings, r)
		if err != nil {
			return model.Value{}, err
		}
		result, err := compareValues(op.Op, left, right)
		if err != nil {
			return model.Value{}, err
		}
		if !result {
			return model.Bool(false), nil
		}
		left = right
	}
	return model.Bool(true), nil
}

func evalCompIn(left Node, op CompareOp, r Resolver) (model.Value, error) {
	ident, ok := left.(Name)
	if !ok {
		return model.Value{}, &model.EvaluatorError{Kind: "syntax", Expr: op.InNamespace, Detail: "'in' requires a bare identifier on the left"}
	}
	if r == nil {
		return model.Value{}, &model.EvaluatorError{Kind: "syntax", Expr: op.InNamespace, Detail: "no experiment resolver available"}
	}
	v, err := r.ResolveIn(op.InNamespace, ident.Ident)
	if err != nil {
		return model.Value{}, &model.EvaluatorError{Kind: "syntax", Expr: op.InNamespace, Detail: err.Error()}
	}
	return v, nil
}

func compareValues(op string, left, right model.Value) (bool, error) {
	lf, lIsNum, lErr := tryNumber(left)
	rf, rIsNum, rErr := tryNumber(right)
	if lErr == nil && rErr == nil && lIsNum && rIsNum {
		switch op {
		case "==":
			return lf == rf, nil
		case "!=":
			return lf != rf, nil
		case "<":
			return lf < rf, nil
		case "<=":
			return lf <= rf, nil
		case ">":
			return lf > rf, nil
		case ">=":
			return lf >= rf, nil
		}
	}
	ls, rs := left.AsString(), right.AsString()
	switch op {
	case "==":
		return ls == rs, nil
	case "!=":
		return ls != rs, nil
	default:
		return false, &model.EvaluatorError{Kind: "syntax", Expr: op, Detail: "ordering comparison requires numeric operands"}
	}
}

func tryNumber(v model.Value) (float64, bool, error) {
	if v.Kind != model.KindScalar {
		return 0, false, nil
	}
	switch n := v.Scalar.(type) {
	case int64:
		return float64(n), true, nil
	case int:
		return float64(n), true, nil
	case float64:
		return n, true, nil
	default:
		return 0, false, nil
	}
}

func truthy(v model.Value) bool {
	switch v.Kind {
	case model.KindScalar:
		switch s := v.Scalar.(type) {
		case bool:
			return s
		case int64:
			return s != 0
		case float64:
			return s != 0
		case string:
			return s != ""
		}
	case model.KindSequence:
		return len(v.Sequence) > 0
	}
	return false
}

// evalCall evaluates the only permitted call form, range(...) (spec
// §4.1). range(n) yields 0..n-1; range(a, b) yields a..b-1.
func evalCall(n Call, bindings model.Binding, r Resolver) (model.Value, error) {
	if n.Func != "range" {
		return model.Value{}, &model.EvaluatorError{Kind: "syntax", Expr: n.Func, Detail: "only range(...) calls are permitted"}
	}
	args := make([]int64, len(n.Args))
	for i, a := range n.Args {
		v, err := Eval(a, bindings, r)
		if err != nil {
			return model.Value{}, err
		}
		f, _, err := asNumber(v)
		if err != nil {
			return model.Value{}, err
		}
		args[i] = int64(f)
	}
	var start, end int64
	switch len(args) {
	case 1:
		start, end = 0, args[0]
	case 2:
		start, end = args[0], args[1]
	default:
		return model.Value{}, &model.EvaluatorError{Kind: "syntax", Expr: "range", Detail: "range() takes 1 or 2 arguments"}
	}
	var seq []model.Value
	for i := start; i < end; i++ {
		seq = append(seq, model.Int(i))
	}
	return model.Seq(seq...), nil
}
