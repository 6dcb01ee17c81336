// Package model defines Ramble's core data types: variable values and
// bindings, the scope stack, experiments, executables, chains, inputs and
// figures of merit.
package model

import "fmt"

// Kind tags the representation a Value carries.
type Kind int

// Value variants. A Value is exactly one of these, never a raw host type,
// so expansion can switch on Kind instead of probing interface{} shapes.
const (
	KindScalar Kind = iota
	KindTemplate
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindTemplate:
		return "template"
	case KindSequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// Value is a tagged variant over Ramble's three kinds of variable value:
// a literal scalar, a template string that may contain {name} placeholders,
// or an ordered sequence of further Values.
type Value struct {
	Kind     Kind
	Scalar   any // string | int64 | float64 | bool, valid when Kind == KindScalar
	Template string
	Sequence []Value
}

// Str builds a scalar string Value.
func Str(s string) Value { return Value{Kind: KindScalar, Scalar: s} }

// Int builds a scalar integer Value.
func Int(n int64) Value { return Value{Kind: KindScalar, Scalar: n} }

// Float builds a scalar float Value.
func Float(f float64) Value { return Value{Kind: KindScalar, Scalar: f} }

// Bool builds a scalar boolean Value.
func Bool(b bool) Value { return Value{Kind: KindScalar, Scalar: b} }

// Tmpl builds a template-string Value. If s has no "{" it is equivalent to
// Str(s) as far as expansion is concerned, but callers that know a string
// came from a YAML document should prefer Tmpl so the expander always gets
// a chance to look for placeholders.
func Tmpl(s string) Value { return Value{Kind: KindTemplate, Template: s} }

// Seq builds a sequence Value.
func Seq(vs ...Value) Value { return Value{Kind: KindSequence, Sequence: vs} }

// IsSequence reports whether v is a sequence.
func (v Value) IsSequence() bool { return v.Kind == KindSequence }

// Len returns the sequence length, or -1 if v is not a sequence.
func (v Value) Len() int {
	if v.Kind != KindSequence {
		return -1
	}
	return len(v.Sequence)
}

// AsString renders v's scalar or template payload as a string for display
// or re-interpolation; it does not recursively expand templates.
func (v Value) AsString() string {
	switch v.Kind {
	case KindScalar:
		return fmt.Sprintf("%v", v.Scalar)
	case KindTemplate:
		return v.Template
	case KindSequence:
		out := "["
		for i, e := range v.Sequence {
			if i > 0 {
				out += ", "
			}
			out += e.AsString()
		}
		return out + "]"
	default:
		return ""
	}
}

// Equal reports structural equality, used by the experiment-set exclusion
// filter to compare a bound tuple value against a literal exclusion value.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return v.AsString() == o.AsString()
	}
	switch v.Kind {
	case KindScalar:
		return fmt.Sprintf("%v", v.Scalar) == fmt.Sprintf("%v", o.Scalar)
	case KindTemplate:
		return v.Template == o.Template
	case KindSequence:
		if len(v.Sequence) != len(o.Sequence) {
			return false
		}
		for i := range v.Sequence {
			if !v.Sequence[i].Equal(o.Sequence[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Binding is a mapping from identifier to value. Scopes are merged by
// copying outer bindings first and letting inner scopes overwrite them.
type Binding map[string]Value

// Clone returns a shallow copy of b.
func (b Binding) Clone() Binding {
	out := make(Binding, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Merge returns a new Binding with over's entries taking precedence over b's.
func (b Binding) Merge(over Binding) Binding {
	out := b.Clone()
	for k, v := range over {
		out[k] = v
	}
	return out
}
