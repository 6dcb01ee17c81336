package expset

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ramble-hpc/ramble/internal/expand"
	"github.com/ramble-hpc/ramble/internal/model"
)

// zipDim is one dimension of the render universe's Cartesian product: a
// named group of variables iterated in lock-step, with a fixed
// cardinality (spec §4.3 steps 3-5).
type zipDim struct {
	name string
	vars []string
	card int
}

// SetExperimentContext materializes the Cartesian/zipped/matrixed set of
// concrete experiments described by ec, under the already-registered
// application/workload scope (spec §4.3 entry point 3 and its eight-step
// algorithm).
func (s *Set) SetExperimentContext(appName, wlName string, ec ExperimentContext) ([]*model.Experiment, error) {
	if err := validateReserved(ec.Vars); err != nil {
		return nil, err
	}

	base, err := s.mergedScope(appName, wlName)
	if err != nil {
		return nil, err
	}
	merged := LayerContext{
		Vars:    base.Vars.Merge(ec.Vars),
		EnvVars: base.EnvVars.Merge(ec.EnvVars),
	}

	vectors, err := s.discoverVectors(merged.Vars)
	if err != nil {
		return nil, err
	}

	explicitZipOf := map[string]string{} // var -> zip name
	zipGroups := map[string]zipDim{}
	for _, ez := range ec.ExplicitZips {
		length := -1
		for _, v := range ez.Variables {
			seq, ok := vectors[v]
			if !ok {
				return nil, &model.DeclarationError{Kind: "non-sequence", Experiment: appName + "." + wlName, Variable: v, Detail: "variable referenced in explicit zip is not a sequence"}
			}
			if prev, taken := explicitZipOf[v]; taken && prev != ez.Name {
				return nil, &model.DeclarationError{Kind: "zip-membership", Experiment: appName + "." + wlName, Variable: v, Detail: fmt.Sprintf("variable already belongs to zip %q", prev)}
			}
			explicitZipOf[v] = ez.Name
			if length == -1 {
				length = len(seq)
			} else if length != len(seq) {
				return nil, lengthMismatch(appName+"."+wlName, ez.Variables, vectors)
			}
		}
		zipGroups[ez.Name] = zipDim{name: ez.Name, vars: ez.Variables, card: length}
	}

	// Step 5: resolve matrix dimensions, consuming zip groups and bare vars.
	usedInMatrix := map[string]bool{}
	var dims []zipDim
	for _, matrix := range ec.Matrices {
		for _, entry := range matrix {
			if zd, ok := zipGroups[entry]; ok {
				dims = append(dims, zd)
				for _, v := range zd.vars {
					usedInMatrix[v] = true
				}
				continue
			}
			seq, ok := vectors[entry]
			if !ok {
				return nil, &model.DeclarationError{Kind: "unknown-name", Experiment: appName + "." + wlName, Variable: entry, Detail: "unknown name in matrix"}
			}
			dims = append(dims, zipDim{name: entry, vars: []string{entry}, card: len(seq)})
			usedInMatrix[entry] = true
		}
	}

	// Step 3/4: implicit zip over everything not explicitly zipped and not
	// consumed by a matrix entry.
	var freeVars []string
	for v := range vectors {
		if explicitZipOf[v] != "" || usedInMatrix[v] {
			continue
		}
		freeVars = append(freeVars, v)
	}
	sort.Strings(freeVars)

	if len(freeVars) > 0 {
		length := len(vectors[freeVars[0]])
		for _, v := range freeVars {
			if len(vectors[v]) != length {
				return nil, lengthMismatch(appName+"."+wlName, freeVars, vectors)
			}
		}
		dims = append(dims, zipDim{name: "__implicit__", vars: freeVars, card: length})
		if s.Logger != nil {
			s.Logger.Log(model.EventImplicitZip, fmt.Sprintf("formed implicit zip over %s", strings.Join(freeVars, ", ")), map[string]string{"experiment": appName + "." + wlName})
		}
	}

	tuples := cartesianProduct(dims)

	var results []*model.Experiment
	seenNames := map[string]bool{}
	for _, tuple := range tuples {
		overlay := model.Binding{}
		for _, dim := range dims {
			idx := tuple[dim.name]
			for _, v := range dim.vars {
				overlay[v] = vectors[v][idx]
			}
		}
		tupleBinding := merged.Vars.Merge(overlay)

		x := expand.New(tupleBinding, s)
		x.Logger = s.Logger
		name, err := x.Expand(ec.NameTemplate, nil, false)
		if err != nil {
			return nil, &model.ExpansionError{Kind: "syntax", Template: ec.NameTemplate, Detail: err.Error()}
		}
		qualified := appName + "." + wlName + "." + name
		if seenNames[qualified] {
			return nil, &model.DeclarationError{Kind: "duplicate-name", Experiment: qualified, Detail: "experiment name is not unique"}
		}

		excluded, err := s.isExcluded(ec.Excludes, tupleBinding, overlay)
		if err != nil {
			return nil, err
		}
		if excluded {
			if s.Logger != nil {
				s.Logger.Log(model.EventExcluded, fmt.Sprintf("excluded %s by a variables/where rule", qualified), map[string]string{"experiment": qualified})
			}
			continue
		}
		seenNames[qualified] = true

		exp := &model.Experiment{
			Application: appName,
			Workload:    wlName,
			Name:        name,
			Binding:     tupleBinding,
			Chained:     append([]model.ChainEntry(nil), ec.Chained...),
			Modifiers:   append([]model.ModifierInstance(nil), ec.Modifiers...),
			Internals:   ec.Internals,
		}

		if err := requireKeys(exp); err != nil {
			return nil, err
		}

		if err := s.Register(exp); err != nil {
			return nil, err
		}
		results = append(results, exp)
	}

	return results, nil
}

func requireKeys(e *model.Experiment) error {
	for key := range model.RequiredNames {
		if _, ok := e.Binding[key]; !ok {
			return &model.DeclarationError{Kind: "required-key", Experiment: e.QualifiedName(), Variable: key, Detail: "required identifier not bound"}
		}
	}
	return nil
}

func lengthMismatch(experiment string, vars []string, vectors map[string][]model.Value) error {
	lengths := map[string]int{}
	for _, v := range vars {
		lengths[v] = len(vectors[v])
	}
	return &model.DeclarationError{Kind: "length-mismatch", Experiment: experiment, Detail: "zipped variables have mismatched lengths", Lengths: lengths}
}

// discoverVectors runs expandAsList over every bound variable, returning
// the set of names that resolve to a sequence (spec §4.3 step 2).
func (s *Set) discoverVectors(vars model.Binding) (map[string][]model.Value, error) {
	out := map[string][]model.Value{}
	x := expand.New(vars, s)
	x.Logger = s.Logger
	for _, name := range sortedKeys(vars) {
		v := vars[name]
		switch v.Kind {
		case model.KindSequence:
			out[name] = v.Sequence
		case model.KindTemplate:
			if seq, _, ok := x.ExpandAsList(v.Template); ok {
				out[name] = seq
			}
		}
	}
	return out, nil
}

// cartesianProduct returns every combination of indices across dims, each
// represented as a map from dimension name to its chosen index, in
// deterministic tuple-iteration order (spec §5).
func cartesianProduct(dims []zipDim) []map[string]int {
	if len(dims) == 0 {
		return []map[string]int{{}}
	}
	result := []map[string]int{{}}
	for _, dim := range dims {
		var next []map[string]int
		for _, partial := range result {
			for i := 0; i < dim.card; i++ {
				tuple := make(map[string]int, len(partial)+1)
				for k, v := range partial {
					tuple[k] = v
				}
				tuple[dim.name] = i
				next = append(next, tuple)
			}
		}
		result = next
	}
	return result
}
