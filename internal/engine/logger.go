package engine

// Logger is structured, timestamped event logging for one engine run,
// modeled on the teacher's eventlog.Logger (eventlog/types.go's Event /
// RunMetadata / Log shapes: typed event records rather than bare
// fmt.Println, nil-receiver-safe so an unconfigured caller can skip
// logging without a nil check at every call site). Generalized from
// CI-step events (pass/fail/skip, captured stdout) to Ramble diagnostic
// events: passthrough fallback taken, implicit zip formed, duplicate
// FOM-context entry skipped, chain cycle detected (spec §0 AMBIENT STACK).
//
// EventKind and the event constants live in internal/model (see
// model.Logger) so internal/expand, internal/expset, internal/chain, and
// internal/analyze can log through *Logger without importing this
// package, which would cycle back through internal/expset.
import (
	"sync"
	"time"

	"github.com/ramble-hpc/ramble/internal/model"
)

// EventKind is an alias of model.EventKind, kept so existing callers can
// write engine.EventKind/engine.EventPassthrough etc.
type EventKind = model.EventKind

const (
	EventPassthrough  = model.EventPassthrough
	EventImplicitZip  = model.EventImplicitZip
	EventDuplicateFOM = model.EventDuplicateFOM
	EventChainCycle   = model.EventChainCycle
	EventExcluded     = model.EventExcluded
)

// Event is one structured log entry.
type Event struct {
	Kind      EventKind
	Message   string
	Timestamp time.Time
	Fields    map[string]string
}

// Logger accumulates Events for one engine run. A nil *Logger silently
// discards every call, so callers never need a nil check before logging.
type Logger struct {
	mu     sync.Mutex
	events []Event
}

// NewLogger returns an empty Logger.
func NewLogger() *Logger {
	return &Logger{}
}

// Log records an event.
func (l *Logger) Log(kind EventKind, message string, fields map[string]string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, Event{Kind: kind, Message: message, Timestamp: time.Now(), Fields: fields})
}

// Events returns a copy of every event logged so far, in order.
func (l *Logger) Events() []Event {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}
