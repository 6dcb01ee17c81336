// Package inventory implements content-addressed experiment hashing and
// ULID-based run/archive directory naming (spec §4.6).
//
// The teacher itself carries no inventory/hashing concern; this package
// is enrichment drawn from the rest of the pack per SPEC_FULL.md §4.6,
// which pairs run/archive directory naming with
// github.com/oklog/ulid/v2 (already a pack dependency, the conventional
// choice for sortable, collision-resistant run identifiers). Digest
// computation needs no third-party canonical-JSON library: Go's own
// encoding/json.Marshal always emits map keys in sorted order, so a
// Snapshot built from pre-sorted slices and maps is already canonical.
package inventory

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/ramble-hpc/ramble/internal/engine"
	"github.com/ramble-hpc/ramble/internal/model"
)

// Snapshot is the set of attribute bags an experiment's content hash is
// computed over (spec §4.6 "what is hashed"): variables (with the
// workspace root path stripped and workspace_name dropped), the modifier
// stack, the chained experiment names (sorted, not in run order),
// internals overrides, resolved environment
// variable sets, and the declared archive/required-package surface
// (SUPPLEMENTED FEATURES).
type Snapshot struct {
	Variables        map[string]string `json:"variables"`
	Modifiers        []string          `json:"modifiers"`
	Chained          []string          `json:"chained_experiments"`
	Internals        map[string]any    `json:"internals"`
	EnvVars          map[string]string `json:"env_vars"`
	ArchivePatterns  []string          `json:"archive_patterns"`
	RequiredPackages []string          `json:"required_packages"`
}

// Build assembles exp's Snapshot. workspaceRoot is stripped from any
// variable or env-var value that embeds it, and "workspace_name" is
// dropped entirely: neither the workspace's absolute location nor its
// display name changes what experiment is being run (spec §4.6).
// archivePatterns and requiredPackages are the application/modifier
// archive-pattern and required-package lists resolved by
// internal/compose.ArchivePatterns and internal/compose.RequiredPackages.
func Build(exp *model.Experiment, workspaceRoot string, envVars model.Binding, archivePatterns, requiredPackages []string) Snapshot {
	vars := map[string]string{}
	for name, v := range exp.Binding {
		if name == "workspace_name" {
			continue
		}
		vars[name] = stripRoot(v.AsString(), workspaceRoot)
	}

	env := map[string]string{}
	for name, v := range envVars {
		env[name] = stripRoot(v.AsString(), workspaceRoot)
	}

	mods := make([]string, 0, len(exp.Modifiers))
	for _, m := range exp.Modifiers {
		mods = append(mods, m.Name+"/"+m.EffectiveMode())
	}
	sort.Strings(mods)

	chained := append([]string(nil), exp.ChainOrder...)
	sort.Strings(chained)

	customNames := make([]string, 0, len(exp.Internals.CustomExecutables))
	for n := range exp.Internals.CustomExecutables {
		customNames = append(customNames, n)
	}
	sort.Strings(customNames)

	internals := map[string]any{
		"executables":        append([]string(nil), exp.Internals.Executables...),
		"custom_executables": customNames,
	}

	return Snapshot{
		Variables:        vars,
		Modifiers:        mods,
		Chained:          chained,
		Internals:        internals,
		EnvVars:          env,
		ArchivePatterns:  append([]string(nil), archivePatterns...),
		RequiredPackages: append([]string(nil), requiredPackages...),
	}
}

func stripRoot(s, root string) string {
	if root == "" {
		return s
	}
	return strings.ReplaceAll(s, root, "")
}

// Compute returns the hex-encoded SHA-256 digest of snap's canonical JSON
// representation (spec §4.6 "content digest").
func Compute(snap Snapshot) (string, error) {
	b, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// NewRunID returns a fresh ULID string identifying one setup invocation
// (spec §4.6 "run directory naming"). The run directory itself is named
// deterministically from the experiment's qualified name so repeated
// setups overwrite in place; NewRunID instead distinguishes which
// invocation last wrote it, recorded alongside the content hash in
// ramble_inventory.json.
func NewRunID() string {
	return ulid.Make().String()
}

// NewArchiveID returns a fresh ULID string suitable for naming a per-run
// archive directory (spec §4.6 "per-run archive directory"); distinct
// from NewRunID only in intent.
func NewArchiveID() string {
	return ulid.Make().String()
}

// EnsureArchiveDir creates and returns the absolute path of the per-run
// archive directory tx.Root()/relRunDir/archive/archiveID (spec §5's
// write-confined "per-run archive directory"). tx must be the engine's
// currently open transaction. The external workspace driver copies
// ArchivePatterns matches into it after execution; this only reserves the
// directory and records its identity.
func EnsureArchiveDir(tx *engine.Transaction, relRunDir, archiveID string) (string, error) {
	if err := tx.EnsureOpen(); err != nil {
		return "", err
	}
	dir := filepath.Join(tx.Root(), relRunDir, "archive", archiveID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating archive directory: %w", err)
	}
	return dir, nil
}

// WriteFile writes snap and its digest, together with the ids identifying
// this run and its archive directory, as ramble_inventory.json at
// tx.Root()/relPath (spec §4.6 "write-inventory"). tx must be the
// engine's currently open transaction (spec §5).
func WriteFile(tx *engine.Transaction, relPath string, snap Snapshot, hash, runID, archiveID string) error {
	if err := tx.EnsureOpen(); err != nil {
		return err
	}

	doc := struct {
		Hash      string   `json:"hash"`
		RunID     string   `json:"run_id"`
		ArchiveID string   `json:"archive_id"`
		Snapshot  Snapshot `json:"snapshot"`
	}{Hash: hash, RunID: runID, ArchiveID: archiveID, Snapshot: snap}

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(tx.Root(), relPath), b, 0o644)
}
