package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/titpetric/cli"
	"gopkg.in/yaml.v3"

	"github.com/ramble-hpc/ramble/internal/chain"
	"github.com/ramble-hpc/ramble/internal/compose"
	"github.com/ramble-hpc/ramble/internal/engine"
	"github.com/ramble-hpc/ramble/internal/inventory"
	"github.com/ramble-hpc/ramble/internal/model"
	"github.com/ramble-hpc/ramble/internal/registry"
)

// declarationDoc is one parsed application-or-modifier YAML file under
// --declarations (spec §6 "Declaration inputs"). A file declares exactly
// one of the two.
type declarationDoc struct {
	Application *struct {
		Name string `yaml:"name"`
		registry.ApplicationDescriptor `yaml:",inline"`
	} `yaml:"application"`
	Modifier *struct {
		Name string `yaml:"name"`
		registry.ModifierDescriptor `yaml:",inline"`
	} `yaml:"modifier"`
}

// Setup provides the cli.Command that expands declared experiments,
// resolves their chains, composes run commands, and materializes each
// run directory (spec §4.3-§4.6 end to end).
func Setup() *cli.Command {
	opts := NewOptions()

	return &cli.Command{
		Name:  "setup",
		Title: "Expand experiments and materialize run directories",
		Bind: func(fs *pflag.FlagSet) {
			opts.Bind(fs)
		},
		Run: func(ctx context.Context, args []string) error {
			return runSetup(ctx, opts)
		},
	}
}

func runSetup(ctx context.Context, opts *Options) error {
	cfg, err := loadWorkspaceConfig(opts.WorkspaceFile)
	if err != nil {
		return err
	}

	if opts.DeclarationsDir != "" {
		if err := loadAndRegisterDeclarations(ctx, opts.DeclarationsDir); err != nil {
			return err
		}
	}

	logger := engine.NewLogger()
	eng, err := engine.New(opts.WorkspaceRoot, workspaceLayerContext(cfg), logger)
	if err != nil {
		return err
	}
	eng.Set.Logger = logger
	if err := populateSet(eng.Set, cfg); err != nil {
		return err
	}

	// Snapshot before chaining: chain.Builder registers clones into the
	// same Set as it runs, so ranging over a live Experiments() call would
	// also visit clones before they have executables attached.
	roots := append([]*model.Experiment(nil), eng.Set.Experiments()...)
	for _, exp := range roots {
		if err := attachDescriptor(exp); err != nil {
			return err
		}
	}

	builder := &chain.Builder{Set: eng.Set, Logger: logger}
	chainResults := map[string]*chain.Result{}
	for _, exp := range roots {
		result, err := builder.Build(exp)
		if err != nil {
			return err
		}
		chainResults[exp.QualifiedName()] = result
	}

	tx, err := eng.Begin(opts.WorkspaceRoot)
	if err != nil {
		return err
	}

	composer := &compose.Composer{Builtins: engine.RegistryBuiltins{}, Resolver: eng.Set, Logger: logger}
	const experimentsScriptRel = "experiments"
	runID := inventory.NewRunID()

	for _, exp := range eng.Set.Experiments() {
		relRunDir := filepath.Join("experiments", strings.ReplaceAll(exp.QualifiedName(), ".", string(filepath.Separator)))
		runDir := filepath.Join(tx.Root(), relRunDir)
		exp.RunDir = runDir
		exp.Binding["experiment_run_dir"] = model.Str(runDir)

		result := chainResults[exp.QualifiedName()]
		var order []string
		for _, e := range exp.Executables {
			order = append(order, e.Name)
		}

		var prepend, appendCmds []string
		if result != nil {
			for _, name := range result.Prepend {
				prepend = append(prepend, result.Commands[name])
			}
			for _, name := range result.Append {
				appendCmds = append(appendCmds, result.Commands[name])
			}
		}

		cmdText, err := composer.InjectCommands(exp, order, prepend, appendCmds)
		if err != nil {
			tx.Abort()
			return err
		}
		exp.Binding["command"] = model.Str(cmdText)

		archiveID := inventory.NewArchiveID()
		archiveDir, err := inventory.EnsureArchiveDir(tx, relRunDir, archiveID)
		if err != nil {
			tx.Abort()
			return err
		}
		exp.Binding["experiment_archive_dir"] = model.Str(archiveDir)

		if err := compose.MaterializeTemplates(tx, relRunDir, cfg.templates(), exp.Binding, eng.Set, experimentsScriptRel); err != nil {
			tx.Abort()
			return err
		}

		archivePatterns, err := compose.ArchivePatterns(exp, composer.Builtins, eng.Set)
		if err != nil {
			tx.Abort()
			return err
		}
		requiredPackages := compose.RequiredPackages(exp, composer.Builtins)

		snap := inventory.Build(exp, opts.WorkspaceRoot, nil, archivePatterns, requiredPackages)
		hash, err := inventory.Compute(snap)
		if err != nil {
			tx.Abort()
			return err
		}
		exp.Hash = hash
		if err := inventory.WriteFile(tx, filepath.Join(relRunDir, "ramble_inventory.json"), snap, hash, runID, archiveID); err != nil {
			tx.Abort()
			return err
		}

		if opts.Debug {
			fmt.Fprintf(os.Stderr, "setup: %s -> %s\n", exp.QualifiedName(), runDir)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	for _, w := range eng.Set.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	return nil
}

// attachDescriptor binds exp.Executables/Inputs from its application's
// registered workload descriptor: expset materializes variable bindings
// only, leaving the executable/input surface to the plugin registry
// (spec §3 "Application"/"Workload").
func attachDescriptor(exp *model.Experiment) error {
	app, ok := registry.LookupApplication(exp.Application)
	if !ok {
		return fmt.Errorf("no registered application %q for experiment %q%s", exp.Application, exp.QualifiedName(), suggestionSuffix(registry.SuggestApplication(exp.Application)))
	}
	wl, ok := app.Descriptor().Workloads[exp.Workload]
	if !ok {
		return fmt.Errorf("application %q declares no workload %q", exp.Application, exp.Workload)
	}
	exp.Executables = append([]model.Executable(nil), wl.Executables...)
	exp.Inputs = append([]model.Input(nil), wl.Inputs...)
	return nil
}

// suggestionSuffix renders candidates as a " (did you mean: ...)" error
// message suffix, or "" when there are none.
func suggestionSuffix(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	return fmt.Sprintf(" (did you mean: %s?)", strings.Join(candidates, ", "))
}

// loadAndRegisterDeclarations parses every YAML file under dir (fanned
// out concurrently by registry.LoadDeclarations) and registers the
// application or modifier it declares.
func loadAndRegisterDeclarations(ctx context.Context, dir string) error {
	decls, err := registry.LoadDeclarations(ctx, dir)
	if err != nil {
		return err
	}
	for _, d := range decls {
		b, err := os.ReadFile(d.Path)
		if err != nil {
			return err
		}
		var doc declarationDoc
		if err := yaml.Unmarshal(b, &doc); err != nil {
			return fmt.Errorf("parsing declaration %q: %w", d.Path, err)
		}
		switch {
		case doc.Application != nil:
			registry.RegisterApplication(registry.NewGenericApplication(doc.Application.Name, doc.Application.ApplicationDescriptor))
		case doc.Modifier != nil:
			registry.RegisterModifier(registry.NewGenericModifier(doc.Modifier.Name, doc.Modifier.ModifierDescriptor))
		default:
			return fmt.Errorf("declaration %q declares neither an application nor a modifier", d.Path)
		}
	}
	return nil
}
