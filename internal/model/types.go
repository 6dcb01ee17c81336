package model

// ReservedNames holds identifiers that may never be set in a user scope
// (spec §3 "Variable Binding"). The engine's own bookkeeping keys are
// included so user declarations can never shadow them.
var ReservedNames = map[string]bool{
	"command":            true,
	"spack_env":          true,
	"experiment_run_dir": true,
	"experiment_index":   true,
	"env_namespace":      true,
	"workspace_name":     true,
}

// RequiredNames holds identifiers that must be bound by the time an
// experiment is materialized (spec §3, §4.3 step 8). Plugins may extend
// this set at init time via registry.RequireVariable; the base set is
// fixed by the engine.
var RequiredNames = map[string]bool{
	"batch_submit": true,
	"mpi_command":  true,
}

// CaptureMode controls how an executable's stdout/stderr is redirected.
type CaptureMode int

const (
	CaptureNone CaptureMode = iota
	CaptureStdout
	CaptureStdoutAppend
	CaptureStderr
	CaptureStderrAppend
	CaptureBoth
	CaptureBothAppend
)

// RedirectOperator returns the shell redirection token for a CaptureMode,
// or "" for CaptureNone (spec §4.5 step 3).
func (m CaptureMode) RedirectOperator() string {
	switch m {
	case CaptureStdout:
		return ">"
	case CaptureStdoutAppend:
		return ">>"
	case CaptureStderr:
		return "2>"
	case CaptureStderrAppend:
		return "2>>"
	case CaptureBoth:
		return "&>"
	case CaptureBothAppend:
		return "&>>"
	default:
		return ""
	}
}

// Executable is a named command template that a workload (or an
// experiment's internals.custom_executables) contributes to the run order
// (spec §3 "Executable").
type Executable struct {
	Name      string
	Template  string
	MPI       bool
	Redirect  string // log-file template the captured output is written to
	Capture   CaptureMode
}

// IsBuiltin reports whether the executable name is a synthetic
// "builtin::func" application-builtin reference (spec §3);
// "modifier_builtin::mod::func" names are reported by IsModifierBuiltin.
func (e Executable) IsBuiltin() bool {
	return len(e.Name) > 9 && e.Name[:9] == "builtin::"
}

// IsModifierBuiltin reports whether the executable name is a synthetic
// "modifier_builtin::mod::func" reference.
func (e Executable) IsModifierBuiltin() bool {
	return len(e.Name) > 18 && e.Name[:18] == "modifier_builtin::"
}

// ChainOrder is one of the four ordering tokens a ChainEntry may declare
// (spec §3 "Chain Entry").
type ChainOrder string

const (
	BeforeChain ChainOrder = "before_chain"
	BeforeRoot  ChainOrder = "before_root"
	AfterRoot   ChainOrder = "after_root"
	AfterChain  ChainOrder = "after_chain"
)

// ValidChainOrders is the allowed set for ChainEntry.Order validation
// (spec §4.4).
var ValidChainOrders = map[ChainOrder]bool{
	BeforeChain: true,
	BeforeRoot:  true,
	AfterRoot:   true,
	AfterChain: true,
}

// ChainEntry references another experiment to run before or after the
// current one, with an invocation command template and optional variable
// overrides (spec §3 "Chain Entry").
type ChainEntry struct {
	Name      string // experiment name this entry references, possibly qualified
	Command   string // invocation command template
	Order     ChainOrder
	Variables Binding // overrides applied to the cloned child experiment
}

// Input is a fetchable artifact a workload declares (spec §3 "Input").
type Input struct {
	URL         string
	Digest      string
	Subdir      string
	Expand      bool
	Extension   string
}

// FOMDef is a figure-of-merit definition attached to a log file (spec §3
// "Figure-of-Merit (FOM) Definition").
type FOMDef struct {
	Name     string // name template, may reference regex capture groups
	LogFile  string // log-file path template
	Regex    string // must contain a named capture group matching Group
	Group    string // named capture group supplying the value
	Units    string
	Contexts []string // context-group names scoping this FOM
	Origin   string   // application or modifier name that defined it
	OriginType string // "application" | "modifier"
}

// ContextDef defines a named log-scanning context (spec §3 "Context
// Definition").
type ContextDef struct {
	Name    string
	LogFile string
	Regex   string // matched against a whole line
	Format  string // format string over the regex's named groups
}

// SuccessCriterion is either a regex matched against a log line, or an
// application-defined predicate evaluated after all files are consumed
// (spec §4.7).
type SuccessCriterion struct {
	Name     string
	LogFile  string // non-empty for regex-on-line criteria
	Regex    string
	Function string // non-empty for application-defined predicate criteria; name registered in the plugin registry
	found    bool
}

// Found reports whether this criterion has matched.
func (s *SuccessCriterion) Found() bool { return s.found }

// MarkFound records that this criterion matched a line.
func (s *SuccessCriterion) MarkFound() { s.found = true }

// ModifierInstance is a reference to a modifier plugin attached to an
// experiment, together with the active mode selected from among the
// modifier's declared variable/env/command modification sets (supplemented
// from original_source/modifier.py; see SPEC_FULL.md).
type ModifierInstance struct {
	Name string
	Mode string // defaults to "default" when unset
}

// EffectiveMode returns the instance's mode, defaulting to "default".
func (m ModifierInstance) EffectiveMode() string {
	if m.Mode == "" {
		return "default"
	}
	return m.Mode
}

// Internals carries per-scope overrides to the executable list and custom
// executable definitions (spec §3 "Scope Stack").
type Internals struct {
	CustomExecutables map[string]Executable
	Executables        []string // explicit ordering override; empty means workload order
}

// ExplicitZip names a set of variables that must be iterated in lock-step
// (spec §4.3 step 4).
type ExplicitZip struct {
	Name      string
	Variables []string
}

// MatrixEntry is one dimension of a matrix product: either a zip name or a
// bare variable name, treated as a singleton zip (spec §4.3 step 5).
type MatrixEntry = string

// VariablesExclude names value-lists to exclude (spec §4.3 step 7a). A
// tuple matches when every variable named in Values holds one of its
// listed values, so the lists always combine as a full product; Matrix is
// kept from the declaration but the exclusion filter does not consult it.
type VariablesExclude struct {
	Values map[string][]Value
	Matrix []string
}

// Exclude is one exclusion rule: either a VariablesExclude or a list of
// "where" predicate templates (spec §4.3 step 7).
type Exclude struct {
	Variables *VariablesExclude
	Where     []string
}

// Experiment is a fully-bound concrete run (spec §3 "Experiment").
type Experiment struct {
	Application string
	Workload    string
	Name        string // experiment name component (post-expansion)

	Binding     Binding
	Chained     []ChainEntry // this experiment's own chain declarations (spec §4.4)
	ChainOrder  []string     // fully-qualified names, in run order (root entry included)
	Modifiers   []ModifierInstance
	Executables []Executable
	Inputs      []Input
	Internals   Internals

	RunDir string // experiment_run_dir, set at materialization and rewritten for chained children

	Hash string // content digest, set by inventory.Compute
}

// QualifiedName is the application.workload.experiment triple that
// globally and uniquely names an experiment (spec §3).
func (e *Experiment) QualifiedName() string {
	return e.Application + "." + e.Workload + "." + e.Name
}

// Clone performs a deep-enough copy for chain-builder cloning: Binding is
// cloned, slices are copied, Hash is reset (the clone has different
// contents once overrides are applied).
func (e *Experiment) Clone() *Experiment {
	out := *e
	out.Binding = e.Binding.Clone()
	out.Chained = append([]ChainEntry(nil), e.Chained...)
	out.ChainOrder = append([]string(nil), e.ChainOrder...)
	out.Modifiers = append([]ModifierInstance(nil), e.Modifiers...)
	out.Executables = append([]Executable(nil), e.Executables...)
	out.Inputs = append([]Input(nil), e.Inputs...)
	out.Hash = ""
	return &out
}
