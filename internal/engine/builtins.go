package engine

// RegistryBuiltins adapts the package-level plugin registry
// (internal/registry) to compose.BuiltinSource, so internal/compose never
// imports internal/registry directly (DESIGN.md "internal/compose").
import (
	"fmt"

	"github.com/ramble-hpc/ramble/internal/model"
	"github.com/ramble-hpc/ramble/internal/registry"
)

// RegistryBuiltins implements compose.BuiltinSource over the registered
// applications and modifiers.
type RegistryBuiltins struct{}

// ApplicationBuiltin dispatches to the named application's Builtin method.
func (RegistryBuiltins) ApplicationBuiltin(application, funcName string, binding model.Binding) ([]string, error) {
	app, ok := registry.LookupApplication(application)
	if !ok {
		return nil, fmt.Errorf("no registered application %q for builtin::%s", application, funcName)
	}
	return app.Builtin(funcName, binding)
}

// ModifierBuiltin dispatches to the named modifier's Builtin method.
func (RegistryBuiltins) ModifierBuiltin(modifier, funcName string, binding model.Binding) ([]string, error) {
	mod, ok := registry.LookupModifier(modifier)
	if !ok {
		return nil, fmt.Errorf("no registered modifier %q for modifier_builtin::%s::%s", modifier, modifier, funcName)
	}
	return mod.Builtin(funcName, binding)
}

// ModifierCommands dispatches to the named modifier's Commands method,
// returning two nil slices for an unregistered modifier rather than an
// error: a missing modifier simply contributes nothing to the command
// sequence (spec §4.5).
func (RegistryBuiltins) ModifierCommands(modifier, executableName string) ([]string, []string) {
	mod, ok := registry.LookupModifier(modifier)
	if !ok {
		return nil, nil
	}
	return mod.Commands(executableName)
}

// ApplicationArchivePatterns returns application's declared archive glob
// patterns, or nil if it is unregistered.
func (RegistryBuiltins) ApplicationArchivePatterns(application string) []string {
	app, ok := registry.LookupApplication(application)
	if !ok {
		return nil
	}
	return app.Descriptor().ArchivePatterns
}

// ModifierArchivePatterns returns modifier's declared archive glob
// patterns, or nil if it is unregistered.
func (RegistryBuiltins) ModifierArchivePatterns(modifier string) []string {
	mod, ok := registry.LookupModifier(modifier)
	if !ok {
		return nil
	}
	return mod.Descriptor().ArchivePatterns
}

// ModifierRequiredPackages returns modifier's declared package-manager
// requirements, or nil if it is unregistered.
func (RegistryBuiltins) ModifierRequiredPackages(modifier string) []string {
	mod, ok := registry.LookupModifier(modifier)
	if !ok {
		return nil
	}
	return mod.Descriptor().RequiredPackages
}
