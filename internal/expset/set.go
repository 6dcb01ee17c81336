// Package expset implements the Experiment Set / Cross-Product Builder
// (spec §4.3). It is grounded on the teacher's runner.Executor.ExecuteJob
// scope-merging (pipeline → job variable/env layering) and
// model.Step.ExpandFor's "expand a vector into N bound iteration contexts"
// shape, generalized from a single for-loop to zips/matrices/exclusions.
package expset

import (
	"fmt"
	"sort"

	"github.com/ramble-hpc/ramble/internal/expand"
	"github.com/ramble-hpc/ramble/internal/model"
)

// LayerContext is the per-scope contribution a workspace, application,
// workload, or experiment declaration makes (spec §3 "Scope Stack").
type LayerContext struct {
	Vars      model.Binding
	EnvVars   model.Binding
	Internals model.Internals
	Template  string
	Chained   []model.ChainEntry
	Modifiers []model.ModifierInstance
}

// ExperimentContext extends LayerContext with the experiment-level-only
// fields (spec §4.3 entry point 3).
type ExperimentContext struct {
	LayerContext
	NameTemplate string
	ExplicitZips []model.ExplicitZip
	Matrices     [][]string
	Excludes     []model.Exclude
}

type workloadScope struct {
	ctx LayerContext
}

type applicationScope struct {
	ctx       LayerContext
	workloads map[string]*workloadScope
}

// Set is the engine's live experiment table: the merged scope stack plus
// every materialized experiment, keyed by qualified name (spec §4.3).
type Set struct {
	Workspace    LayerContext
	applications map[string]*applicationScope
	experiments  map[string]*model.Experiment
	order        []string
	Warnings     []string
	// Logger, when set, records implicit-zip-formed and
	// experiment-excluded diagnostic events (spec "Logging /
	// diagnostics").
	Logger model.Logger
}

// New creates an empty Set over the given workspace-level defaults.
func New(workspace LayerContext) (*Set, error) {
	if err := validateReserved(workspace.Vars); err != nil {
		return nil, err
	}
	return &Set{
		Workspace:    workspace,
		applications: map[string]*applicationScope{},
		experiments:  map[string]*model.Experiment{},
	}, nil
}

func validateReserved(vars model.Binding) error {
	for name := range vars {
		if model.ReservedNames[name] {
			return &model.DeclarationError{Kind: "reserved-name", Variable: name, Detail: "reserved identifiers may not appear in user scopes"}
		}
	}
	return nil
}

// SetApplicationContext registers (or replaces) an application-level scope
// (spec §4.3 entry point 1).
func (s *Set) SetApplicationContext(name string, ctx LayerContext) error {
	if err := validateReserved(ctx.Vars); err != nil {
		return err
	}
	app, ok := s.applications[name]
	if !ok {
		app = &applicationScope{workloads: map[string]*workloadScope{}}
		s.applications[name] = app
	}
	app.ctx = ctx
	return nil
}

// SetWorkloadContext registers (or replaces) a workload-level scope under
// application appName (spec §4.3 entry point 2).
func (s *Set) SetWorkloadContext(appName, name string, ctx LayerContext) error {
	if err := validateReserved(ctx.Vars); err != nil {
		return err
	}
	app, ok := s.applications[appName]
	if !ok {
		return &model.DeclarationError{Kind: "unknown-name", Experiment: appName, Detail: "application not registered; call SetApplicationContext first"}
	}
	wl, ok := app.workloads[name]
	if !ok {
		wl = &workloadScope{}
		app.workloads[name] = wl
	}
	wl.ctx = ctx
	return nil
}

func (s *Set) mergedScope(appName, wlName string) (LayerContext, error) {
	app, ok := s.applications[appName]
	if !ok {
		return LayerContext{}, &model.DeclarationError{Kind: "unknown-name", Experiment: appName, Detail: "unknown application"}
	}
	wl, ok := app.workloads[wlName]
	if !ok {
		return LayerContext{}, &model.DeclarationError{Kind: "unknown-name", Experiment: appName + "." + wlName, Detail: "unknown workload"}
	}
	merged := LayerContext{
		Vars:    s.Workspace.Vars.Clone().Merge(app.ctx.Vars).Merge(wl.ctx.Vars),
		EnvVars: s.Workspace.EnvVars.Clone().Merge(app.ctx.EnvVars).Merge(wl.ctx.EnvVars),
	}
	return merged, nil
}

// ResolveIn implements eval.Resolver: it looks up a variable's fully
// expanded value inside another, already-materialized experiment (spec
// §4.1's Compare(In) node, §4.3 "Cross-experiment references").
func (s *Set) ResolveIn(namespace, variable string) (model.Value, error) {
	exp, ok := s.experiments[namespace]
	if !ok {
		return model.Value{}, fmt.Errorf("experiment %q does not exist", namespace)
	}
	v, ok := exp.Binding[variable]
	if !ok {
		return model.Value{}, fmt.Errorf("variable %q not bound in experiment %q", variable, namespace)
	}
	x := expand.New(exp.Binding, s)
	x.Logger = s.Logger
	rendered, err := x.Expand(v.AsString(), nil, true)
	if err != nil {
		return model.Value{}, err
	}
	return model.Str(rendered), nil
}

// Experiments returns every materialized experiment in render order.
func (s *Set) Experiments() []*model.Experiment {
	out := make([]*model.Experiment, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.experiments[name])
	}
	return out
}

// Get looks up an experiment by its fully qualified name.
func (s *Set) Get(qualifiedName string) (*model.Experiment, bool) {
	e, ok := s.experiments[qualifiedName]
	return e, ok
}

// Register adds an experiment to the set under its QualifiedName, as
// SetExperimentContext does for every materialized experiment; chain
// clones go through RegisterNamed instead (spec §4.4).
func (s *Set) Register(e *model.Experiment) error {
	name := e.QualifiedName()
	if _, exists := s.experiments[name]; exists {
		return &model.DeclarationError{Kind: "duplicate-name", Experiment: name, Detail: "experiment name already registered"}
	}
	s.experiments[name] = e
	s.order = append(s.order, name)
	return nil
}

// RegisterNamed adds an experiment under an explicit key rather than its
// own QualifiedName, used by internal/chain to register chain-clone
// children whose "chain.<idx>.<name>" identity does not follow the
// application.workload.name scheme (spec §4.4).
func (s *Set) RegisterNamed(name string, e *model.Experiment) error {
	if _, exists := s.experiments[name]; exists {
		return &model.DeclarationError{Kind: "duplicate-name", Experiment: name, Detail: "experiment name already registered"}
	}
	s.experiments[name] = e
	s.order = append(s.order, name)
	return nil
}

func (s *Set) warn(msg string) {
	s.Warnings = append(s.Warnings, msg)
}

// sortedKeys returns m's keys sorted, for deterministic iteration over
// binding maps (spec §5 "experiments are produced in tuple-iteration
// order").
func sortedKeys(m model.Binding) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
