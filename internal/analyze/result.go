package analyze

import (
	"encoding/json"
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
	"gopkg.in/yaml.v3"

	"github.com/ramble-hpc/ramble/internal/expand"
	"github.com/ramble-hpc/ramble/internal/model"
)

// Status is the experiment's overall outcome (spec §4.7).
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Result is the per-experiment analysis document (spec §4.7): always
// carries name/EXPERIMENT_CHAIN/RAMBLE_STATUS; carries the remaining
// fields only on success, or when alwaysPrintFOMs is requested.
type Result struct {
	Name            string            `json:"name" yaml:"name"`
	ExperimentChain []string          `json:"EXPERIMENT_CHAIN" yaml:"EXPERIMENT_CHAIN"`
	Status          Status            `json:"RAMBLE_STATUS" yaml:"RAMBLE_STATUS"`
	Variables       map[string]string `json:"RAMBLE_VARIABLES,omitempty" yaml:"RAMBLE_VARIABLES,omitempty"`
	RawVariables    map[string]string `json:"RAMBLE_RAW_VARIABLES,omitempty" yaml:"RAMBLE_RAW_VARIABLES,omitempty"`
	Contexts        []ContextEntry    `json:"CONTEXTS,omitempty" yaml:"CONTEXTS,omitempty"`
}

// BuildResult assembles exp's result document from an Analyzer that has
// finished scanning every log file (spec §4.7 "Emit a result document").
func BuildResult(exp *model.Experiment, a *Analyzer, success bool, alwaysPrintFOMs bool) Result {
	status := StatusFailed
	if success {
		status = StatusSuccess
	}

	res := Result{
		Name:            exp.QualifiedName(),
		ExperimentChain: exp.ChainOrder,
		Status:          status,
	}

	if success || alwaysPrintFOMs {
		res.Variables = expandedVariables(exp)
		res.RawVariables = rawVariables(exp)
		res.Contexts = a.ContextFOMs()
	}
	return res
}

func expandedVariables(exp *model.Experiment) map[string]string {
	x := expand.New(exp.Binding, nil)
	out := make(map[string]string, len(exp.Binding))
	for k, v := range exp.Binding {
		if v.Kind == model.KindTemplate {
			if s, err := x.Expand(v.Template, nil, true); err == nil {
				out[k] = s
				continue
			}
		}
		out[k] = v.AsString()
	}
	return out
}

func rawVariables(exp *model.Experiment) map[string]string {
	// The pre-expansion form is identical to the bound template text for
	// template-kind values; scalar/sequence values have no separate raw
	// form, so both views coincide for them (spec §4.7 RAMBLE_RAW_VARIABLES).
	out := make(map[string]string, len(exp.Binding))
	for k, v := range exp.Binding {
		if v.Kind == model.KindTemplate {
			out[k] = v.Template
			continue
		}
		out[k] = v.AsString()
	}
	return out
}

// MarshalJSONDocument renders res as indented JSON (spec §6 "--format json").
func (r Result) MarshalJSONDocument() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// MarshalYAMLDocument renders res as YAML (spec §6 "--format yaml").
func (r Result) MarshalYAMLDocument() ([]byte, error) {
	return yaml.Marshal(r)
}

// RenderText renders res as a human-readable report using lipgloss
// styling (spec §6 "--format text"): a static string built in one pass,
// with no event loop.
func (r Result) RenderText() string {
	statusStyle := lipgloss.NewStyle().Bold(true)
	if r.Status == StatusSuccess {
		statusStyle = statusStyle.Foreground(lipgloss.Color("2"))
	} else {
		statusStyle = statusStyle.Foreground(lipgloss.Color("1"))
	}

	// Long captured values (stdout snippets, wide paths) are trimmed to the
	// terminal width rather than wrapping mid-table; 0 width (piped output)
	// disables trimming (treeview.Trimmer's "no viewport constraint" case).
	maxValueLen := DetectViewportWidth() - 20
	if maxValueLen < 0 {
		maxValueLen = 0
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", r.Name, statusStyle.Render(string(r.Status)))
	if len(r.ExperimentChain) > 1 {
		fmt.Fprintf(&b, "  chain: %s\n", strings.Join(r.ExperimentChain, " -> "))
	}
	for _, ctx := range r.Contexts {
		fmt.Fprintf(&b, "  [%s]\n", ctx.Name)
		for _, fom := range ctx.FOMs {
			unit := ""
			if fom.Units != "" {
				unit = " " + fom.Units
			}
			fmt.Fprintf(&b, "    %s = %s%s\n", fom.Name, TrimValue(fom.Value, maxValueLen), unit)
		}
	}
	return b.String()
}
