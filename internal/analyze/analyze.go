// Package analyze implements the Log Analyzer (spec §4.7): a
// line-oriented state machine that streams each experiment's log files,
// tracks active named contexts, extracts figures of merit scoped by the
// most recently activated context, evaluates success criteria, and
// assembles the per-experiment result document.
//
// Grounded on the teacher's colors/rendering conventions for the
// human-readable text output (charm.land/lipgloss/v2, already a teacher
// dependency) and on original_source/lib/ramble/ramble/application.py's
// FOM-extraction pass for the exact state semantics: a context only
// scopes FOMs discovered after it activates, and a FOM with no declared
// context lands under the pseudo-context "null" (spec §4.7).
package analyze

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/ramble-hpc/ramble/internal/model"
)

// nullContext is the pseudo-context name FOMs with no declared context
// are recorded under (spec §4.7).
const nullContext = "null"

// FOMValue is one recorded figure-of-merit reading.
type FOMValue struct {
	Name       string
	Value      string
	Units      string
	Origin     string
	OriginType string
}

// Analyzer runs the Log Analyzer over one experiment's declared FOMs,
// contexts, and success criteria.
type Analyzer struct {
	FOMs       []model.FOMDef
	Contexts   []model.ContextDef
	Criteria   []*model.SuccessCriterion
	Predicates map[string]func(fomValues map[string]map[string]FOMValue) bool // non-file success criteria, keyed by Function name

	// Logger, when set, records a duplicate-FOM-context-skipped diagnostic
	// event each time recordContext dedupes a repeat context value (spec
	// "Logging / diagnostics").
	Logger model.Logger

	activeContexts map[string]string // context name -> current display value
	fomValues      map[string]map[string]FOMValue
	seenContexts   map[string]bool // dedupes CONTEXTS entries by display value (fixes the duplicate-context bug, DESIGN.md)
	contextOrder   []string
}

// New builds an Analyzer for one experiment's declared log-scanning
// surface.
func New(foms []model.FOMDef, contexts []model.ContextDef, criteria []*model.SuccessCriterion) *Analyzer {
	return &Analyzer{
		FOMs:           foms,
		Contexts:       contexts,
		Criteria:       criteria,
		activeContexts: map[string]string{},
		fomValues:      map[string]map[string]FOMValue{},
		seenContexts:   map[string]bool{},
	}
}

// ScanFile streams logFile's lines against every FOM/context/criterion
// attached to that file (spec §4.7 steps 1-3).
func (a *Analyzer) ScanFile(logFile string, r io.Reader) error {
	foms := a.fomsFor(logFile)
	contexts := a.contextsFor(logFile)
	criteria := a.criteriaFor(logFile)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		for _, c := range criteria {
			if !c.Found() {
				re, err := regexp.Compile(c.Regex)
				if err != nil {
					return fmt.Errorf("compiling success criterion %q regex: %w", c.Name, err)
				}
				if re.MatchString(line) {
					c.MarkFound()
				}
			}
		}

		for _, cd := range contexts {
			// A context regex must match the whole line (model.ContextDef).
			re, err := regexp.Compile("^(?:" + cd.Regex + ")$")
			if err != nil {
				return fmt.Errorf("compiling context %q regex: %w", cd.Name, err)
			}
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			display := formatGroups(cd.Format, re, m)
			a.activeContexts[cd.Name] = display
			a.recordContext(display)
		}

		for _, fd := range foms {
			re, err := regexp.Compile(fd.Regex)
			if err != nil {
				return fmt.Errorf("compiling FOM %q regex: %w", fd.Name, err)
			}
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			groupIdx := indexOf(re.SubexpNames(), fd.Group)
			if groupIdx < 0 || groupIdx >= len(m) {
				continue
			}
			name := formatGroups(fd.Name, re, m)
			value := m[groupIdx]

			targets := fd.Contexts
			if len(targets) == 0 {
				targets = []string{nullContext}
			}
			for _, ctxName := range targets {
				display := nullContext
				if ctxName != nullContext {
					if v, ok := a.activeContexts[ctxName]; ok {
						display = v
					}
				}
				a.record(display, FOMValue{Name: name, Value: value, Units: fd.Units, Origin: fd.Origin, OriginType: fd.OriginType})
			}
		}
	}
	return scanner.Err()
}

func (a *Analyzer) record(display string, v FOMValue) {
	if a.fomValues[display] == nil {
		a.fomValues[display] = map[string]FOMValue{}
	}
	a.fomValues[display][v.Name] = v
	a.recordContext(display)
}

// recordContext dedupes CONTEXTS entries by display value: the original
// implementation could append the same display value twice when a
// context regex matched again with an identical value; this fixes that
// (DESIGN.md "Open Questions resolved").
func (a *Analyzer) recordContext(display string) {
	if a.seenContexts[display] {
		if a.Logger != nil {
			a.Logger.Log(model.EventDuplicateFOM, fmt.Sprintf("skipped duplicate context entry %q", display), map[string]string{"context": display})
		}
		return
	}
	a.seenContexts[display] = true
	a.contextOrder = append(a.contextOrder, display)
}

func (a *Analyzer) fomsFor(logFile string) []model.FOMDef {
	var out []model.FOMDef
	for _, f := range a.FOMs {
		if f.LogFile == logFile {
			out = append(out, f)
		}
	}
	return out
}

func (a *Analyzer) contextsFor(logFile string) []model.ContextDef {
	var out []model.ContextDef
	for _, c := range a.Contexts {
		if c.LogFile == logFile {
			out = append(out, c)
		}
	}
	return out
}

func (a *Analyzer) criteriaFor(logFile string) []*model.SuccessCriterion {
	var out []*model.SuccessCriterion
	for _, c := range a.Criteria {
		if c.LogFile == logFile {
			out = append(out, c)
		}
	}
	return out
}

// Finish evaluates non-file (predicate) success criteria and reports
// whether the experiment succeeded: at least one FOM was captured and
// every success criterion is satisfied (spec §4.7).
func (a *Analyzer) Finish() (success bool, err error) {
	for _, c := range a.Criteria {
		if c.LogFile != "" {
			continue
		}
		fn, ok := a.Predicates[c.Function]
		if !ok {
			return false, fmt.Errorf("no registered predicate for success criterion %q (function %q)", c.Name, c.Function)
		}
		if fn(a.fomValues) {
			c.MarkFound()
		}
	}

	capturedAny := len(a.fomValues) > 0
	allSatisfied := true
	for _, c := range a.Criteria {
		if !c.Found() {
			allSatisfied = false
			break
		}
	}
	return capturedAny && allSatisfied, nil
}

func formatGroups(tmpl string, re *regexp.Regexp, m []string) string {
	names := re.SubexpNames()
	out := tmpl
	for i, name := range names {
		if name == "" || i >= len(m) {
			continue
		}
		out = strings.ReplaceAll(out, "{"+name+"}", m[i])
	}
	return out
}

func indexOf(names []string, target string) int {
	for i, n := range names {
		if n == target {
			return i
		}
	}
	return -1
}

// ContextFOMs returns one entry per distinct context display value seen,
// in first-occurrence order, each carrying its FOM table sorted by name
// (spec §4.7 "CONTEXTS array").
func (a *Analyzer) ContextFOMs() []ContextEntry {
	out := make([]ContextEntry, 0, len(a.contextOrder))
	for _, display := range a.contextOrder {
		foms := a.fomValues[display]
		names := make([]string, 0, len(foms))
		for n := range foms {
			names = append(names, n)
		}
		sort.Strings(names)
		vals := make([]FOMValue, 0, len(names))
		for _, n := range names {
			vals = append(vals, foms[n])
		}
		out = append(out, ContextEntry{Name: display, FOMs: vals})
	}
	return out
}

// ContextEntry is one CONTEXTS array element.
type ContextEntry struct {
	Name string
	FOMs []FOMValue
}
