// Package chain implements the Chain Builder (spec §4.4): given a root
// experiment's declared chain entries, it produces the root's run order
// and clones one child experiment per entry into the experiment set.
//
// It is grounded on the teacher's runner.resolveDependencyChain (a
// visited-set DFS over job dependencies, runner/linter.go) and
// runner.Linter.validateDependencies (reference validation ahead of
// execution), generalized from a single-pass dependency walk to an
// iterative two-visit DFS that distinguishes "currently being expanded"
// ancestors (for cycle detection) from "fully expanded" descendants.
package chain

import (
	"fmt"

	"github.com/ramble-hpc/ramble/internal/expand"
	"github.com/ramble-hpc/ramble/internal/expset"
	"github.com/ramble-hpc/ramble/internal/model"
)

// Result is the outcome of building one root experiment's chain.
type Result struct {
	ChainOrder []string          // chain_prepend + [root] + chain_append
	Prepend    []string          // chain_prepend alone, in final order
	Append     []string          // chain_append alone, in final order
	Commands   map[string]string // chain-qualified name -> expanded invocation command
}

// stackEntry is one DFS frame: a chain declaration paired with the
// qualified name of the child experiment it references.
type stackEntry struct {
	childName string
	def       model.ChainEntry
}

// Builder runs the Chain Builder against a populated experiment set.
type Builder struct {
	Set *expset.Set
	// Logger, when set, records a chain-cycle-detected diagnostic event
	// whenever checkCycle rejects a chain entry that references an
	// in-progress ancestor (spec "Logging / diagnostics"); rejections of
	// unknown experiment references are not logged.
	Logger model.Logger
}

// Build walks root's chain declarations (and, recursively, those of every
// referenced child) and returns the total run order (spec §4.4). The
// order is also stored as ChainOrder on root and on every chained clone.
func (b *Builder) Build(root *model.Experiment) (*Result, error) {
	if len(root.Chained) == 0 {
		root.ChainOrder = []string{root.QualifiedName()}
		return &Result{ChainOrder: []string{root.QualifiedName()}, Commands: map[string]string{}}, nil
	}

	rootName := root.QualifiedName()
	inStack := map[string]bool{rootName: true}

	var stack []stackEntry
	for i := len(root.Chained) - 1; i >= 0; i-- {
		def := root.Chained[i]
		if err := validateEntry(def); err != nil {
			return nil, err
		}
		if err := checkCycle(b.Set, def.Name, inStack, b.Logger); err != nil {
			return nil, err
		}
		stack = append(stack, stackEntry{childName: def.Name, def: def})
	}

	var prepend, appendList []string
	commands := map[string]string{}
	chainIdx := 0

	for len(stack) > 0 {
		top := stack[len(stack)-1]

		if inStack[top.childName] {
			// Second visit: this child's own subtree (if any) has already
			// been expanded. Clone it, apply overrides, and place it.
			stack = stack[:len(stack)-1]

			child, ok := b.Set.Get(top.childName)
			if !ok {
				return nil, &model.ChainError{Kind: "invalid-entry", Entry: top.childName, Detail: "chain entry references unknown experiment"}
			}

			order := top.def.Order
			if order == "" {
				order = model.AfterRoot
			}

			suffix := fmt.Sprintf("%d.%s", chainIdx, top.childName)
			chainIdx++
			qualified := "chain." + suffix

			clone := child.Clone()
			for name, val := range top.def.Variables {
				clone.Binding[name] = val
			}
			runDir := ""
			if base, ok := root.Binding["experiment_run_dir"]; ok {
				runDir = fmt.Sprintf("%s/chained_experiments/%s", base.AsString(), suffix)
			}
			clone.Binding["experiment_run_dir"] = model.Str(runDir)
			clone.Binding["experiment_name"] = model.Str(qualified)
			clone.Name = qualified

			x := expand.New(clone.Binding, b.Set)
			x.Logger = b.Logger
			cmd, err := x.Expand(top.def.Command, nil, true)
			if err != nil {
				return nil, &model.ChainError{Kind: "invalid-entry", Entry: qualified, Detail: err.Error()}
			}
			commands[qualified] = cmd

			if err := b.Set.RegisterNamed(qualified, clone); err != nil {
				return nil, err
			}

			switch order {
			case model.BeforeChain:
				prepend = append([]string{qualified}, prepend...)
			case model.BeforeRoot:
				prepend = append(prepend, qualified)
			case model.AfterRoot:
				appendList = append([]string{qualified}, appendList...)
			case model.AfterChain:
				appendList = append(appendList, qualified)
			}

			delete(inStack, top.childName)
			continue
		}

		child, ok := b.Set.Get(top.childName)
		if !ok {
			return nil, &model.ChainError{Kind: "invalid-entry", Entry: top.childName, Detail: "chain entry references unknown experiment"}
		}
		inStack[top.childName] = true

		for i := len(child.Chained) - 1; i >= 0; i-- {
			def := child.Chained[i]
			if err := validateEntry(def); err != nil {
				return nil, err
			}
			if err := checkCycle(b.Set, def.Name, inStack, b.Logger); err != nil {
				return nil, err
			}
			stack = append(stack, stackEntry{childName: def.Name, def: def})
		}
	}

	order := append([]string(nil), prepend...)
	order = append(order, rootName)
	order = append(order, appendList...)

	root.ChainOrder = order
	for name := range commands {
		if e, ok := b.Set.Get(name); ok {
			e.ChainOrder = order
		}
	}

	return &Result{
		ChainOrder: order,
		Prepend:    prepend,
		Append:     appendList,
		Commands:   commands,
	}, nil
}

func checkCycle(set *expset.Set, childName string, inStack map[string]bool, logger model.Logger) error {
	if inStack[childName] {
		ancestors := make([]string, 0, len(inStack))
		for name := range inStack {
			ancestors = append(ancestors, name)
		}
		if logger != nil {
			logger.Log(model.EventChainCycle, fmt.Sprintf("chain cycle detected at %q", childName), map[string]string{"entry": childName})
		}
		return &model.ChainError{Kind: "cycle", Ancestors: ancestors, Entry: childName}
	}
	if _, ok := set.Get(childName); !ok {
		return &model.ChainError{Kind: "invalid-entry", Entry: childName, Detail: "chain entry references unknown experiment"}
	}
	return nil
}

func validateEntry(def model.ChainEntry) error {
	if def.Name == "" {
		return &model.ChainError{Kind: "invalid-entry", Detail: `chain entry missing "name"`}
	}
	if def.Command == "" {
		return &model.ChainError{Kind: "invalid-entry", Entry: def.Name, Detail: `chain entry missing "command"`}
	}
	if def.Order != "" && !model.ValidChainOrders[def.Order] {
		return &model.ChainError{Kind: "invalid-order", Entry: def.Name, Detail: fmt.Sprintf("order %q is not one of the allowed values", def.Order)}
	}
	return nil
}
