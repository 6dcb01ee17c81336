package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/titpetric/cli"

	"github.com/ramble-hpc/ramble/internal/analyze"
	"github.com/ramble-hpc/ramble/internal/chain"
	"github.com/ramble-hpc/ramble/internal/engine"
	"github.com/ramble-hpc/ramble/internal/eval"
	"github.com/ramble-hpc/ramble/internal/expand"
	"github.com/ramble-hpc/ramble/internal/model"
	"github.com/ramble-hpc/ramble/internal/registry"
)

// Analyze provides the cli.Command that re-expands the workspace's
// declared experiments (to recover their FOM/context/criteria surface
// and run directories) and scans each one's logs, printing a result
// document per experiment (spec §4.7).
func Analyze() *cli.Command {
	opts := NewOptions()

	return &cli.Command{
		Name:  "analyze",
		Title: "Scan experiment logs and report figures of merit",
		Bind: func(fs *pflag.FlagSet) {
			opts.Bind(fs)
		},
		Run: func(ctx context.Context, args []string) error {
			return runAnalyze(ctx, opts)
		},
	}
}

func runAnalyze(ctx context.Context, opts *Options) error {
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

	roots := append([]*model.Experiment(nil), eng.Set.Experiments()...)
	for _, exp := range roots {
		if err := attachDescriptor(exp); err != nil {
			return err
		}
	}
	builder := &chain.Builder{Set: eng.Set, Logger: logger}
	for _, exp := range roots {
		if _, err := builder.Build(exp); err != nil {
			return err
		}
	}

	for _, exp := range eng.Set.Experiments() {
		runDir := filepath.Join(opts.WorkspaceRoot, "experiments", strings.ReplaceAll(exp.QualifiedName(), ".", string(filepath.Separator)))
		exp.RunDir = runDir
		exp.Binding["experiment_run_dir"] = model.Str(runDir)

		res, err := analyzeExperiment(exp, eng.Set, logger)
		if err != nil {
			return err
		}

		if err := printResult(res, opts.Format); err != nil {
			return err
		}
	}
	return nil
}

// analyzeExperiment builds an Analyzer from exp's application's workload
// descriptor, scans every distinct declared log file found in exp.RunDir,
// and assembles the result document.
func analyzeExperiment(exp *model.Experiment, resolver eval.Resolver, logger model.Logger) (analyze.Result, error) {
	app, ok := registry.LookupApplication(exp.Application)
	if !ok {
		return analyze.Result{}, fmt.Errorf("no registered application %q for experiment %q%s", exp.Application, exp.QualifiedName(), suggestionSuffix(registry.SuggestApplication(exp.Application)))
	}
	wl, ok := app.Descriptor().Workloads[exp.Workload]
	if !ok {
		return analyze.Result{}, fmt.Errorf("application %q declares no workload %q", exp.Application, exp.Workload)
	}

	// Declarative criteria with no LogFile name a Go predicate function
	// this generic loader has no way to resolve; skip rather than fail.
	var criteria []*model.SuccessCriterion
	for _, c := range wl.Criteria {
		if c.LogFile != "" {
			criteria = append(criteria, c)
		}
	}

	a := analyze.New(wl.FOMs, wl.Contexts, criteria)
	a.Logger = logger

	x := expand.New(exp.Binding, resolver)
	logFiles := map[string]bool{}
	for _, f := range wl.FOMs {
		logFiles[f.LogFile] = true
	}
	for _, c := range wl.Contexts {
		logFiles[c.LogFile] = true
	}
	for _, c := range criteria {
		logFiles[c.LogFile] = true
	}

	for tmpl := range logFiles {
		expanded, err := x.Expand(tmpl, nil, true)
		if err != nil {
			return analyze.Result{}, err
		}
		path := filepath.Join(exp.RunDir, filepath.Base(expanded))
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return analyze.Result{}, err
		}
		scanErr := a.ScanFile(tmpl, f)
		f.Close()
		if scanErr != nil {
			return analyze.Result{}, scanErr
		}
	}

	success, err := a.Finish()
	if err != nil {
		return analyze.Result{}, err
	}

	return analyze.BuildResult(exp, a, success, false), nil
}

func printResult(res analyze.Result, format string) error {
	switch format {
	case "json":
		b, err := res.MarshalJSONDocument()
		if err != nil {
			return err
		}
		fmt.Println(string(b))
	case "yaml":
		b, err := res.MarshalYAMLDocument()
		if err != nil {
			return err
		}
		fmt.Print(string(b))
	default:
		fmt.Print(res.RenderText())
	}
	return nil
}
