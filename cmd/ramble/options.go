package main

import "github.com/titpetric/cli"

// Options holds the flags shared by every ramble subcommand, bound once
// per invocation (teacher's Options/Bind pattern, options.go).
type Options struct {
	WorkspaceFile   string
	DeclarationsDir string
	WorkspaceRoot   string
	Shell           string
	Format          string
	Debug           bool

	FlagSet *cli.FlagSet
}

func NewOptions() *Options {
	return &Options{}
}

func (o *Options) Bind(fs *cli.FlagSet) {
	fs.StringVarP(&o.WorkspaceFile, "file", "f", "ramble.yaml", "Path to workspace configuration file")
	fs.StringVar(&o.DeclarationsDir, "declarations", "", "Directory of application/modifier YAML declarations")
	fs.StringVarP(&o.WorkspaceRoot, "workspace", "w", ".", "Workspace root directory for run output")
	fs.StringVar(&o.Shell, "shell", "sh", "Shell dialect name (sh|csh|fish|bat); no subcommand emits env-var commands")
	fs.StringVar(&o.Format, "format", "text", "Result output format (json|yaml|text)")
	fs.BoolVar(&o.Debug, "debug", false, "Print each experiment's run directory during setup")

	o.FlagSet = fs
}
