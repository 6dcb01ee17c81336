package expset

import (
	"github.com/ramble-hpc/ramble/internal/expand"
	"github.com/ramble-hpc/ramble/internal/model"
)

// isExcluded applies spec §4.3 step 7: a tuple is excluded if any "where"
// predicate evaluates truthy, or any "variables" exclusion matches the
// tuple's current bindings.
func (s *Set) isExcluded(excludes []model.Exclude, binding model.Binding, overlay model.Binding) (bool, error) {
	x := expand.New(binding, s)
	x.Logger = s.Logger
	for _, ex := range excludes {
		for _, where := range ex.Where {
			out, err := x.Expand(where, nil, false)
			if err != nil {
				return false, err
			}
			if out == "true" {
				return true, nil
			}
		}
		if ex.Variables != nil && variablesExcludeMatches(ex.Variables, overlay) {
			return true, nil
		}
	}
	return false, nil
}

// variablesExcludeMatches reports whether the tuple's overlay values for
// every named variable in ve.Values match one of that variable's listed
// exclusion values (spec §4.3 step 7a: combined as an AND across the
// named variables, i.e. a product of per-variable exclusion sets).
func variablesExcludeMatches(ve *model.VariablesExclude, overlay model.Binding) bool {
	if len(ve.Values) == 0 {
		return false
	}
	for name, excludedValues := range ve.Values {
		current, ok := overlay[name]
		if !ok {
			return false
		}
		matched := false
		for _, ev := range excludedValues {
			if current.Equal(ev) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}
