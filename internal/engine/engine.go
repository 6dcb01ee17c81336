// Package engine implements the Engine handle (SPEC_FULL.md design note
// "Global workspace state") and the coarse write-transaction model (spec
// §5): a read root and a writable root directory, a *Logger, and the
// experiment set (which carries the scope stack), threaded through every
// operation. The plugin registry is not held here: it is package-level
// state in internal/registry, reached through RegistryBuiltins.
//
// Grounded on the teacher's runner.ExecutionContext (runner/execution_context.go):
// one struct carrying every piece of state a pipeline run needs, passed
// by pointer and derived per job rather than read from package globals.
// Engine generalizes this from "per-job execution state copied at each
// nesting depth" to "one long-lived per-workspace handle" that
// expset/chain/compose/inventory all take by reference, with a
// Begin/Commit/Abort transaction gating writes (spec §5).
package engine

import (
	"fmt"
	"sync"

	"github.com/ramble-hpc/ramble/internal/expset"
)

// Engine is the long-lived handle every CLI subcommand operates against.
type Engine struct {
	ReadRoot  string // workspace root for reads
	WriteRoot string // set once a Transaction is open; empty otherwise
	Logger    *Logger
	Set       *expset.Set

	mu          sync.Mutex
	transaction *Transaction
}

// New builds an Engine rooted at readRoot, with a fresh experiment set
// over the given workspace-level defaults.
func New(readRoot string, workspace expset.LayerContext, logger *Logger) (*Engine, error) {
	set, err := expset.New(workspace)
	if err != nil {
		return nil, err
	}
	return &Engine{ReadRoot: readRoot, Logger: logger, Set: set}, nil
}

// Transaction models Begin/Commit/Abort around one engine run (spec §5):
// all directory creation and file writes in compose/inventory take a
// *Transaction and fail if called outside one.
type Transaction struct {
	engine    *Engine
	writeRoot string
	done      bool
}

// Begin opens a write transaction rooted at writeRoot. Only one
// transaction may be open on an Engine at a time.
func (e *Engine) Begin(writeRoot string) (*Transaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.transaction != nil {
		return nil, fmt.Errorf("a transaction is already open on this engine")
	}
	tx := &Transaction{engine: e, writeRoot: writeRoot}
	e.transaction = tx
	e.WriteRoot = writeRoot
	return tx, nil
}

// Root returns the transaction's writable root directory.
func (t *Transaction) Root() string { return t.writeRoot }

// Logger returns the owning engine's diagnostic logger, so compose and
// inventory's write entry points can log through the same transaction
// they write under without threading a second handle.
func (t *Transaction) Logger() *Logger { return t.engine.Logger }

// EnsureOpen reports an error unless t is still the engine's active
// transaction (spec §5): called by compose/inventory's file-writing entry
// points so a closed or superseded transaction can never be used to write.
func (t *Transaction) EnsureOpen() error {
	got, err := t.engine.RequireOpenTransaction()
	if err != nil {
		return err
	}
	if got != t {
		return fmt.Errorf("transaction is not the engine's active transaction")
	}
	return nil
}

// Commit closes the transaction successfully.
func (t *Transaction) Commit() error { return t.close() }

// Abort closes the transaction without attempting to undo any writes
// already made: the model is coarse, not ACID (spec §5) — it only
// releases the engine's transaction lock so a new one can begin.
func (t *Transaction) Abort() error { return t.close() }

func (t *Transaction) close() error {
	t.engine.mu.Lock()
	defer t.engine.mu.Unlock()
	if t.done {
		return fmt.Errorf("transaction already closed")
	}
	if t.engine.transaction != t {
		return fmt.Errorf("transaction is not the engine's active transaction")
	}
	t.done = true
	t.engine.transaction = nil
	t.engine.WriteRoot = ""
	return nil
}

// RequireOpenTransaction returns the engine's active transaction, or an
// error if none is open. compose.MaterializeTemplates and
// inventory.WriteFile/EnsureArchiveDir call it (via Transaction.EnsureOpen)
// to enforce "writes only happen inside a transaction" (spec §5) in code,
// not just caller convention.
func (e *Engine) RequireOpenTransaction() (*Transaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.transaction == nil {
		return nil, fmt.Errorf("no open transaction: writes must happen between Engine.Begin and Transaction.Commit/Abort")
	}
	return e.transaction, nil
}
