package compose

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ramble-hpc/ramble/internal/engine"
	"github.com/ramble-hpc/ramble/internal/eval"
	"github.com/ramble-hpc/ramble/internal/expand"
	"github.com/ramble-hpc/ramble/internal/model"
)

// MaterializeTemplates renders each workspace template through the
// expander into tx.Root()/relRunDir with execute permissions, and appends
// the expanded batch_submit invocation to tx.Root()/experimentsScriptRel,
// the workspace's master experiments script (spec §4.5 "Template
// materialization"). It is the final compose phase: by the time it runs,
// the caller has already bound InjectCommands' result into binding as
// "command".
//
// tx must be the engine's currently open transaction (spec §5): every
// directory creation and file write below is gated on tx.EnsureOpen, so a
// stale or already-closed transaction can never reach the filesystem.
func MaterializeTemplates(tx *engine.Transaction, relRunDir string, templates map[string]string, binding model.Binding, resolver eval.Resolver, experimentsScriptRel string) error {
	if err := tx.EnsureOpen(); err != nil {
		return err
	}

	runDir := filepath.Join(tx.Root(), relRunDir)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("creating experiment run directory: %w", err)
	}

	x := expand.New(binding, resolver)
	x.Logger = tx.Logger()

	for name, content := range templates {
		rendered, err := x.Expand(content, nil, true)
		if err != nil {
			return fmt.Errorf("rendering template %q: %w", name, err)
		}
		path := filepath.Join(runDir, name)
		if err := os.WriteFile(path, []byte(rendered), 0o755); err != nil {
			return fmt.Errorf("writing template %q: %w", name, err)
		}
	}

	if experimentsScriptRel == "" {
		return nil
	}
	batchSubmit, ok := binding["batch_submit"]
	if !ok {
		return nil
	}
	expanded, err := x.Expand(batchSubmit.AsString(), nil, true)
	if err != nil {
		return fmt.Errorf("expanding batch_submit: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(tx.Root(), experimentsScriptRel), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening experiments script: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(expanded + "\n"); err != nil {
		return fmt.Errorf("appending to experiments script: %w", err)
	}
	return nil
}
