// Package registry implements the plugin registry (spec §6 "External
// Interfaces", design note 1): explicit init()-time registration of
// Application and Modifier implementations — no reflection-based plugin
// discovery — plus a concurrent declaration loader that parses every
// workspace YAML document before a deterministic, sorted merge.
package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/ramble-hpc/ramble/internal/model"
)

// Application is the interface every application plugin implements
// (spec §3 "Application", §6).
type Application interface {
	Name() string
	Descriptor() ApplicationDescriptor
	// Builtin dispatches a "builtin::<func>" executable reference to the
	// command lines it contributes (spec §4.5 step 3).
	Builtin(funcName string, binding model.Binding) ([]string, error)
}

// Modifier is the interface every modifier plugin implements (spec §3
// "Modifier", §6).
type Modifier interface {
	Name() string
	Descriptor() ModifierDescriptor
	Builtin(funcName string, binding model.Binding) ([]string, error)
	// Commands returns the pre/post command templates this modifier
	// contributes to executableName, or two nil slices if its
	// applies_to_executable glob does not match (spec §4.5, the
	// compose.BuiltinSource contract).
	Commands(executableName string) (pre, post []string)
}

// ApplicationDescriptor is an application's static, YAML-decoded
// declaration (spec §3 "Application").
type ApplicationDescriptor struct {
	Workloads map[string]WorkloadDescriptor `yaml:"workloads"`
	Variables model.Binding                 `yaml:"variables"`
	// Builtins maps a builtin function name (the part after "builtin::")
	// to the command lines it contributes (spec §4.5 step 3). Declarative
	// applications carry their builtin bodies here instead of Go code.
	Builtins map[string][]string `yaml:"builtins"`
	// ArchivePatterns names glob patterns of files to copy into the
	// per-run archive directory after execution (original_source's
	// application.py archive_patterns; spec SUPPLEMENTED FEATURES).
	ArchivePatterns []string `yaml:"archive_patterns"`
}

// WorkloadDescriptor is one workload's static declaration.
type WorkloadDescriptor struct {
	Executables []model.Executable        `yaml:"executables"`
	Inputs      []model.Input             `yaml:"inputs"`
	FOMs        []model.FOMDef            `yaml:"figures_of_merit"`
	Contexts    []model.ContextDef        `yaml:"contexts"`
	Criteria    []*model.SuccessCriterion `yaml:"success_criteria"`
	Variables   model.Binding             `yaml:"variables"`
}

// ModifierDescriptor is a modifier's static declaration.
type ModifierDescriptor struct {
	Modes        []string            `yaml:"modes"`
	Variables    model.Binding       `yaml:"variables"`
	AppliesTo    string              `yaml:"applies_to_executable"` // glob over executable name; "*" when empty
	Builtins     map[string][]string `yaml:"builtins"`
	PreCommands  []string            `yaml:"pre_commands"`
	PostCommands []string            `yaml:"post_commands"`
	// ArchivePatterns names glob patterns of files this modifier
	// contributes to the per-run archive directory (application.py's
	// archive_patterns, also declarable by modifiers per modifier.py).
	ArchivePatterns []string `yaml:"archive_patterns"`
	// RequiredPackages names package-manager requirements this modifier
	// declares (modifier.py's package_manager_requirements). Resolving
	// them is out of scope; the list is carried through to the inventory
	// as an informational field.
	RequiredPackages []string `yaml:"required_packages"`
}

var (
	applications = map[string]Application{}
	modifiers    = map[string]Modifier{}
)

// RegisterApplication adds app to the registry, called from an
// application plugin's init() (spec §6 "no reflection-based discovery").
func RegisterApplication(app Application) {
	applications[app.Name()] = app
}

// RegisterModifier adds mod to the registry, called from a modifier
// plugin's init().
func RegisterModifier(mod Modifier) {
	modifiers[mod.Name()] = mod
}

// RequireVariable extends model.RequiredNames at init time, letting a
// plugin declare its own mandatory bindings (spec §3, design note 1).
func RequireVariable(name string) {
	model.RequiredNames[name] = true
}

// LookupApplication returns a registered application by name.
func LookupApplication(name string) (Application, bool) {
	app, ok := applications[name]
	return app, ok
}

// LookupModifier returns a registered modifier by name.
func LookupModifier(name string) (Modifier, bool) {
	mod, ok := modifiers[name]
	return mod, ok
}

// Applications returns every registered application name, sorted.
func Applications() []string {
	out := make([]string, 0, len(applications))
	for name := range applications {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Modifiers returns every registered modifier name, sorted.
func Modifiers() []string {
	out := make([]string, 0, len(modifiers))
	for name := range modifiers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Declaration is one parsed workspace YAML document: its path and decoded
// content (spec §4.3 entry points: application/workload/experiment scope
// declarations, plus cross-cutting workspace defaults).
type Declaration struct {
	Path string
	Doc  map[string]any
}

// LoadDeclarations reads and parses every *.yaml/*.yml file directly
// under dir concurrently (golang.org/x/sync/errgroup, spec §5 "loading
// plugin declarations from multiple independent YAML documents"), then
// returns them sorted by filename so the caller's single-threaded merge
// is deterministic regardless of filesystem enumeration or goroutine
// completion order.
func LoadDeclarations(ctx context.Context, dir string) ([]Declaration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading declarations directory %q: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	decls := make([]Declaration, len(names))
	g, _ := errgroup.WithContext(ctx)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			path := filepath.Join(dir, name)
			b, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %q: %w", path, err)
			}
			var doc map[string]any
			if err := yaml.Unmarshal(b, &doc); err != nil {
				return fmt.Errorf("parsing %q: %w", path, err)
			}
			decls[i] = Declaration{Path: path, Doc: doc}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return decls, nil
}
