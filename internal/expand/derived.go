package expand

import "fmt"

// Derived accessor names cached on first expansion (spec §4.2 final
// paragraph, supplemented from original_source/expander.py — see
// SPEC_FULL.md "SUPPLEMENTED FEATURES").
const (
	AppNameKey        = "application_name"
	WorkloadNameKey   = "workload_name"
	ExperimentNameKey = "experiment_name"
	EnvNamespaceKey   = "env_namespace"
)

// ApplicationNamespace returns "{app}".
func ApplicationNamespace(app string) string { return app }

// WorkloadNamespace returns "{app}.{wl}".
func WorkloadNamespace(app, wl string) string { return app + "." + wl }

// ExperimentNamespace returns "{app}.{wl}.{exp}".
func ExperimentNamespace(app, wl, exp string) string { return app + "." + wl + "." + exp }

// namedDerived computes one of the cached named accessors on first use and
// memoizes it on the Expander, mirroring the teacher's compile-once-cache
// idiom for model.Step.ifProgram.
func (x *Expander) namedDerived(key string, compute func() string) string {
	if v, ok := x.derivedCache[key]; ok {
		return v
	}
	v := compute()
	x.derivedCache[key] = v
	return v
}

// ApplicationName returns the cached application_name accessor.
func (x *Expander) ApplicationName(app string) string {
	return x.namedDerived(AppNameKey, func() string { return app })
}

// WorkloadName returns the cached workload_name accessor.
func (x *Expander) WorkloadName(wl string) string {
	return x.namedDerived(WorkloadNameKey, func() string { return wl })
}

// ExperimentName returns the cached experiment_name accessor.
func (x *Expander) ExperimentName(exp string) string {
	return x.namedDerived(ExperimentNameKey, func() string { return exp })
}

// EnvNamespace returns the cached env_namespace accessor: the
// concatenation of env_name and workload_name (spec §4.2).
func (x *Expander) EnvNamespace(envName, workloadName string) string {
	return x.namedDerived(EnvNamespaceKey, func() string { return envName + workloadName })
}

// ExperimentRunDir computes the canonical experiment_run_dir accessor
// under a workspace root, following the application/workload/experiment
// namespace layout (supplemented from original_source/expander.py).
func ExperimentRunDir(workspaceRoot, app, wl, exp string) string {
	return fmt.Sprintf("%s/experiments/%s/%s/%s", workspaceRoot, app, wl, exp)
}

// ExperimentInputDir computes the canonical experiment_input_dir accessor.
func ExperimentInputDir(workspaceRoot, app, wl string) string {
	return fmt.Sprintf("%s/inputs/%s/%s", workspaceRoot, app, wl)
}
