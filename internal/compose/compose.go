// Package compose implements the Command Composer (spec §4.5): it turns a
// chain-resolved experiment's ordered executables into the final shell
// command text bound to "command", composes environment-variable
// modification scripts, and materializes workspace templates into the
// experiment's run directory.
//
// Grounded on the teacher's runner.Executor.executeSteps / executeStep /
// executeCommand (ordered, per-step command emission via interpolation)
// and runner.InterpolateMap — generalized from "build and run a command"
// to "build command text only": process execution itself is out of scope
// (delegated to the host workspace driver per spec §5).
package compose

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ramble-hpc/ramble/internal/eval"
	"github.com/ramble-hpc/ramble/internal/expand"
	"github.com/ramble-hpc/ramble/internal/model"
)

// BuiltinSource supplies the command lines a builtin executable or
// modifier builtin contributes, and the pre/post command lists a modifier
// attaches to a named executable (spec §4.5 step 3, §9 "Builtin
// generators"). internal/registry implements this; compose never imports
// registry directly, keeping the composition algorithm independent of
// plugin discovery.
type BuiltinSource interface {
	ApplicationBuiltin(application, funcName string, binding model.Binding) ([]string, error)
	ModifierBuiltin(modifier, funcName string, binding model.Binding) ([]string, error)
	// ModifierCommands returns the pre/post command templates modifier
	// contributes to executableName, or two nil slices if the modifier's
	// applies_to_executable glob does not match; matching itself is the
	// registry's responsibility.
	ModifierCommands(modifier, executableName string) (pre, post []string)
	// ApplicationArchivePatterns returns application's declared archive
	// glob patterns (original_source's application.py archive_patterns).
	ApplicationArchivePatterns(application string) []string
	// ModifierArchivePatterns returns modifier's declared archive glob
	// patterns.
	ModifierArchivePatterns(modifier string) []string
	// ModifierRequiredPackages returns modifier's declared package-manager
	// requirements (modifier.py's package_manager_requirements).
	ModifierRequiredPackages(modifier string) []string
}

// Composer runs the inject-commands phase over a chain-resolved experiment.
type Composer struct {
	Builtins BuiltinSource
	Resolver eval.Resolver
	// Logger, when set, is threaded into every Expander this Composer
	// builds so passthrough-fallback events surface during composition.
	Logger model.Logger
}

// InjectCommands builds the full "command" text for exp, in this order:
// chain-prepend invocations, log truncation, every resolved executable's
// emitted commands (in workload order, or internals.executables when
// set), and chain-append invocations (spec §4.5 "Inject-commands").
func (c *Composer) InjectCommands(exp *model.Experiment, order, prependCommands, appendCommands []string) (string, error) {
	x := expand.New(exp.Binding, c.Resolver)
	x.Logger = c.Logger

	logs, err := distinctLogs(x, exp.Executables)
	if err != nil {
		return "", err
	}

	var lines []string
	lines = append(lines, prependCommands...)
	for _, log := range logs {
		lines = append(lines, fmt.Sprintf("rm -f %q", log), fmt.Sprintf("touch %q", log))
	}

	names := order
	if len(exp.Internals.Executables) > 0 {
		names = exp.Internals.Executables
	}

	byName := map[string]model.Executable{}
	for _, e := range exp.Executables {
		byName[e.Name] = e
	}
	for n, e := range exp.Internals.CustomExecutables {
		byName[n] = e
	}

	for _, name := range names {
		ex, ok := byName[name]
		if !ok {
			return "", fmt.Errorf("unresolved executable %q in run order", name)
		}

		switch {
		case ex.IsModifierBuiltin():
			parts := strings.SplitN(strings.TrimPrefix(ex.Name, "modifier_builtin::"), "::", 2)
			if len(parts) != 2 {
				return "", fmt.Errorf("malformed modifier builtin reference %q", ex.Name)
			}
			cmds, err := c.Builtins.ModifierBuiltin(parts[0], parts[1], exp.Binding)
			if err != nil {
				return "", err
			}
			expanded, err := expandEach(x, cmds, name)
			if err != nil {
				return "", err
			}
			lines = append(lines, expanded...)

		case ex.IsBuiltin():
			funcName := strings.TrimPrefix(ex.Name, "builtin::")
			cmds, err := c.Builtins.ApplicationBuiltin(exp.Application, funcName, exp.Binding)
			if err != nil {
				return "", err
			}
			expanded, err := expandEach(x, cmds, name)
			if err != nil {
				return "", err
			}
			lines = append(lines, expanded...)

		default:
			var pre, post []string
			for _, mod := range exp.Modifiers {
				p, q := c.Builtins.ModifierCommands(mod.Name, name)
				pre = append(pre, p...)
				post = append(post, q...)
			}
			expandedPre, err := expandEach(x, pre, name)
			if err != nil {
				return "", err
			}
			lines = append(lines, expandedPre...)

			cmd, err := commandLine(x, ex, name)
			if err != nil {
				return "", err
			}
			if cmd != "" {
				lines = append(lines, cmd)
			}

			expandedPost, err := expandEach(x, post, name)
			if err != nil {
				return "", err
			}
			lines = append(lines, expandedPost...)
		}
	}

	lines = append(lines, appendCommands...)
	return strings.Join(lines, "\n"), nil
}

// commandLine renders one non-builtin executable's invocation:
// "[mpi_command ]template[ <op> \"<log>\"]" (spec §4.5 step 3).
func commandLine(x *expand.Expander, ex model.Executable, execName string) (string, error) {
	tmpl, err := x.Expand(ex.Template, model.Binding{"executable_name": model.Str(execName)}, true)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if ex.MPI {
		mpi, err := x.Expand("{mpi_command}", nil, true)
		if err != nil {
			return "", err
		}
		b.WriteString(mpi)
		b.WriteString(" ")
	}
	b.WriteString(tmpl)

	if op := ex.Capture.RedirectOperator(); op != "" && ex.Redirect != "" {
		log, err := x.Expand(ex.Redirect, nil, true)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, " %s %q", op, log)
	}
	return b.String(), nil
}

// expandEach expands each raw command template, binding executable_name
// for the duration of the call.
func expandEach(x *expand.Expander, cmds []string, execName string) ([]string, error) {
	out := make([]string, 0, len(cmds))
	extra := model.Binding{"executable_name": model.Str(execName)}
	for _, c := range cmds {
		expanded, err := x.Expand(c, extra, true)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded)
	}
	return out, nil
}

// ArchivePatterns resolves and expands the glob patterns exp's application
// and attached modifiers declare for post-run archiving (original_source's
// application.py archive_patterns; spec SUPPLEMENTED FEATURES "Archive
// patterns"). Copying matched files into the per-run archive directory is
// the external workspace driver's job (out of scope); this only resolves
// the pattern list so the driver, and the inventory record, have it.
func ArchivePatterns(exp *model.Experiment, builtins BuiltinSource, resolver eval.Resolver) ([]string, error) {
	x := expand.New(exp.Binding, resolver)
	var out []string
	expandAll := func(patterns []string) error {
		for _, p := range patterns {
			rendered, err := x.Expand(p, nil, true)
			if err != nil {
				return err
			}
			out = append(out, rendered)
		}
		return nil
	}
	if err := expandAll(builtins.ApplicationArchivePatterns(exp.Application)); err != nil {
		return nil, err
	}
	for _, mod := range exp.Modifiers {
		if err := expandAll(builtins.ModifierArchivePatterns(mod.Name)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// RequiredPackages collects exp's attached modifiers' declared
// package-manager requirements, deduplicated and sorted (modifier.py's
// package_manager_requirements). Resolving or installing them is out of
// scope (Non-goal); the list is carried through to the inventory as an
// informational field.
func RequiredPackages(exp *model.Experiment, builtins BuiltinSource) []string {
	seen := map[string]bool{}
	var out []string
	for _, mod := range exp.Modifiers {
		for _, pkg := range builtins.ModifierRequiredPackages(mod.Name) {
			if !seen[pkg] {
				seen[pkg] = true
				out = append(out, pkg)
			}
		}
	}
	sort.Strings(out)
	return out
}

// distinctLogs returns the sorted, expanded set of non-builtin redirect
// targets so they can be truncated once up front (spec §4.5 step 2).
func distinctLogs(x *expand.Expander, execs []model.Executable) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, e := range execs {
		if e.IsBuiltin() || e.IsModifierBuiltin() || e.Redirect == "" {
			continue
		}
		log, err := x.Expand(e.Redirect, nil, true)
		if err != nil {
			return nil, err
		}
		if !seen[log] {
			seen[log] = true
			out = append(out, log)
		}
	}
	sort.Strings(out)
	return out, nil
}
