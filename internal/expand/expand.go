// Package expand implements Ramble's recursive string-template renderer
// (spec §4.2). It is grounded on the teacher's runner.InterpolateString /
// InterpolateMap two-pass "substitute placeholders, then try to evaluate
// as an expression" structure, generalized from a flat map[string]any
// environment and "${{ ... }}" placeholder syntax to a layered
// model.Binding and "{name}" placeholder syntax.
package expand

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ramble-hpc/ramble/internal/eval"
	"github.com/ramble-hpc/ramble/internal/model"
)

// placeholderRegex matches "{name}" and bare "{}" positional placeholders.
var placeholderRegex = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_.]*)?\}`)

// Expander renders templates against a layered binding. It caches the
// first-time expansion of a fixed set of derived accessor names (spec
// §4.2 final paragraph), the way the teacher's model.Step caches its
// compiled "if" expression program.
type Expander struct {
	Binding  model.Binding
	Resolver eval.Resolver
	// Logger, when set, records a passthrough-fallback event each time an
	// unresolved placeholder is left in place rather than erroring (spec
	// "Logging / diagnostics"). Nil (the zero value) disables logging.
	Logger model.Logger

	derivedCache map[string]string
}

// New builds an Expander over the given fully-merged binding.
func New(b model.Binding, resolver eval.Resolver) *Expander {
	return &Expander{Binding: b, Resolver: resolver, derivedCache: map[string]string{}}
}

// Expand renders template, recursively expanding any bound placeholders
// first, then evaluating the fully-expanded result as an expression when
// it is placeholder-free (spec §4.2 steps 1-5). extra overrides/augments
// the Expander's own binding for this call only.
func (x *Expander) Expand(template string, extra model.Binding, allowPassthrough bool) (string, error) {
	return x.expandDepth(template, extra, allowPassthrough, map[string]bool{})
}

func (x *Expander) lookup(name string, extra model.Binding) (model.Value, bool) {
	if extra != nil {
		if v, ok := extra[name]; ok {
			return v, true
		}
	}
	v, ok := x.Binding[name]
	return v, ok
}

func (x *Expander) expandDepth(template string, extra model.Binding, allowPassthrough bool, inflight map[string]bool) (string, error) {
	var firstErr error
	allResolved := true

	result := placeholderRegex.ReplaceAllStringFunc(template, func(match string) string {
		sub := placeholderRegex.FindStringSubmatch(match)
		name := sub[1]
		if name == "" {
			// Positional "{}" placeholder: preserved verbatim (spec §4.2 step 2).
			allResolved = false
			return match
		}
		if inflight[name] {
			// Defensive cycle guard; templates are not specified to be
			// recursive but a malformed declaration could reference itself.
			allResolved = false
			return match
		}
		v, ok := x.lookup(name, extra)
		if !ok {
			if allowPassthrough {
				allResolved = false
				if x.Logger != nil {
					x.Logger.Log(model.EventPassthrough, fmt.Sprintf("left %q unresolved as passthrough", name), map[string]string{"name": name, "template": template})
				}
				return match
			}
			if firstErr == nil {
				firstErr = &model.ExpansionError{Kind: "unresolved", Template: template, Variable: name}
			}
			return match
		}

		inflight[name] = true
		expandedValue, err := x.expandValue(v, extra, allowPassthrough, inflight)
		delete(inflight, name)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return match
		}

		if strings.ContainsAny(expandedValue, "{}") {
			allResolved = false
		}

		if !strings.ContainsAny(expandedValue, "{}") {
			if evaluated, ok := tryEvaluate(expandedValue, x.Binding.Merge(extra), x.Resolver); ok {
				return evaluated
			}
		}
		return expandedValue
	})

	if firstErr != nil {
		return "", firstErr
	}

	if allResolved && !strings.ContainsAny(result, "{}") {
		if evaluated, ok := tryEvaluate(result, x.Binding.Merge(extra), x.Resolver); ok {
			return evaluated, nil
		}
	}

	return result, nil
}

// expandValue recursively expands a bound Value's string form before it is
// substituted into the caller's template (spec §4.2 step 2, depth-first).
func (x *Expander) expandValue(v model.Value, extra model.Binding, allowPassthrough bool, inflight map[string]bool) (string, error) {
	switch v.Kind {
	case model.KindScalar:
		return v.AsString(), nil
	case model.KindTemplate:
		return x.expandDepth(v.Template, extra, allowPassthrough, inflight)
	case model.KindSequence:
		return v.AsString(), nil
	default:
		return "", nil
	}
}

// tryEvaluate attempts to evaluate a fully placeholder-free string as an
// expression; on any evaluator failure it returns ok=false so the caller
// leaves the string as-is (spec §4.2: "Syntax errors in arithmetic must
// not prevent the string from being returned unchanged").
func tryEvaluate(s string, bindings model.Binding, resolver eval.Resolver) (string, bool) {
	if strings.TrimSpace(s) == "" {
		return "", false
	}
	v, err := eval.EvalString(s, bindings, resolver)
	if err != nil {
		return "", false
	}
	return formatValue(v), true
}

func formatValue(v model.Value) string {
	switch s := v.Scalar.(type) {
	case float64:
		// Trim trailing zeroes the way a numeric-looking template result
		// should render, without adopting Go's %v exponent notation.
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return v.AsString()
	}
}

// ExpandAsList evaluates template as an expression and, if the result is
// a sequence (e.g. a bare "range(...)" call), returns the sequence;
// otherwise it returns the original template unchanged (spec §4.2
// "expandAsList"). One enclosing pair of braces is removed before
// evaluation and bare names resolve against x.Binding; "{name}"
// placeholders left inside the template are not substituted, and such a
// template is never reported as a sequence.
func (x *Expander) ExpandAsList(template string) ([]model.Value, string, bool) {
	trimmed := strings.TrimSpace(template)
	if !placeholderRegex.MatchString(trimmed) && !strings.Contains(trimmed, "(") {
		return nil, template, false
	}
	v, err := eval.EvalString(stripBraces(trimmed), x.Binding, x.Resolver)
	if err == nil && v.IsSequence() {
		return v.Sequence, template, true
	}
	return nil, template, false
}

// stripBraces removes a single pair of enclosing "{" "}" from a template
// so its body can be fed to the expression evaluator directly, used when
// a binding's value is itself exactly one placeholder wrapping a call
// like "{range(5)}".
func stripBraces(s string) string {
	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		return s[1 : len(s)-1]
	}
	return s
}
