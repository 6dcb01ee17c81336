package registry

import (
	"fmt"
	"path"

	"github.com/ramble-hpc/ramble/internal/model"
)

// GenericApplication adapts a YAML-decoded ApplicationDescriptor into the
// Application interface, for declarations that carry no Go-specific
// builtin logic beyond the command lines listed under Builtins (spec §6
// design note 1: registration is still explicit — the loader calls
// RegisterApplication once per parsed document — only the interface body
// is data-driven rather than hand-written Go).
type GenericApplication struct {
	name       string
	descriptor ApplicationDescriptor
}

// NewGenericApplication builds a GenericApplication named name from descriptor.
func NewGenericApplication(name string, descriptor ApplicationDescriptor) GenericApplication {
	return GenericApplication{name: name, descriptor: descriptor}
}

func (a GenericApplication) Name() string                     { return a.name }
func (a GenericApplication) Descriptor() ApplicationDescriptor { return a.descriptor }

// Builtin looks funcName up in the descriptor's Builtins table.
func (a GenericApplication) Builtin(funcName string, _ model.Binding) ([]string, error) {
	cmds, ok := a.descriptor.Builtins[funcName]
	if !ok {
		return nil, fmt.Errorf("application %q declares no builtin %q", a.name, funcName)
	}
	return cmds, nil
}

// GenericModifier adapts a YAML-decoded ModifierDescriptor into the
// Modifier interface, the modifier counterpart of GenericApplication.
type GenericModifier struct {
	name       string
	descriptor ModifierDescriptor
}

// NewGenericModifier builds a GenericModifier named name from descriptor.
func NewGenericModifier(name string, descriptor ModifierDescriptor) GenericModifier {
	return GenericModifier{name: name, descriptor: descriptor}
}

func (m GenericModifier) Name() string                  { return m.name }
func (m GenericModifier) Descriptor() ModifierDescriptor { return m.descriptor }

func (m GenericModifier) Builtin(funcName string, _ model.Binding) ([]string, error) {
	cmds, ok := m.descriptor.Builtins[funcName]
	if !ok {
		return nil, fmt.Errorf("modifier %q declares no builtin %q", m.name, funcName)
	}
	return cmds, nil
}

// Commands returns the descriptor's PreCommands/PostCommands when
// executableName matches AppliesTo (an empty AppliesTo matches every
// executable), or two nil slices otherwise (spec §4.5).
func (m GenericModifier) Commands(executableName string) ([]string, []string) {
	glob := m.descriptor.AppliesTo
	if glob == "" {
		glob = "*"
	}
	matched, err := path.Match(glob, executableName)
	if err != nil || !matched {
		return nil, nil
	}
	return m.descriptor.PreCommands, m.descriptor.PostCommands
}
