package registry

import "strings"

// Suggest returns every name in candidates that contains pattern as a
// case-insensitive substring, sorted as they were given. Grounded on the
// teacher's fuzzy_match.go findFuzzyMatches (CLI job-name suggestion on a
// "no such job" error), generalized from job names within a pipeline to
// application/modifier names within the registry.
func Suggest(candidates []string, pattern string) []string {
	lowerPattern := strings.ToLower(pattern)
	var out []string
	for _, name := range candidates {
		if strings.Contains(strings.ToLower(name), lowerPattern) {
			out = append(out, name)
		}
	}
	return out
}

// SuggestApplication finds registered application names that look like
// name, for use in an "unknown application" error message.
func SuggestApplication(name string) []string {
	return Suggest(Applications(), name)
}

// SuggestModifier finds registered modifier names that look like name,
// for use in an "unknown modifier" error message.
func SuggestModifier(name string) []string {
	return Suggest(Modifiers(), name)
}
