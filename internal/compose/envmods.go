package compose

import "sort"

// EnvAction is one environment-variable modification instruction declared
// by a license, application, or modifier scope (spec §4.5 "Environment
// variable modifications").
type EnvAction struct {
	Kind      string // "set" | "unset" | "append" | "prepend"
	Var       string
	Value     string
	Group     string // "vars" | "paths"; governs the default join separator
	Separator string // overrides the group default when non-empty
}

// EnvScope is one layer's env modifications. Scopes are applied in
// ascending precedence: license-scope before experiment-scope, highest
// precedence last (spec §4.5).
type EnvScope struct {
	Name    string
	Actions []EnvAction
}

// ComposeEnv folds scopes, in order, into one set of resolved variable
// values and unsets, then renders them as shell commands for the given
// dialect (spec §6 "shell choice": sh, csh, fish, bat).
func ComposeEnv(scopes []EnvScope, shell string) []string {
	values := map[string]string{}
	unset := map[string]bool{}

	for _, scope := range scopes {
		for _, a := range scope.Actions {
			switch a.Kind {
			case "set":
				values[a.Var] = a.Value
				delete(unset, a.Var)
			case "unset":
				unset[a.Var] = true
				delete(values, a.Var)
			case "append":
				values[a.Var] = joinNonEmpty(values[a.Var], a.Value, separator(a))
				delete(unset, a.Var)
			case "prepend":
				values[a.Var] = joinNonEmpty(a.Value, values[a.Var], separator(a))
				delete(unset, a.Var)
			}
		}
	}

	var lines []string
	for _, name := range sortedStringKeys(unset) {
		lines = append(lines, unsetCommand(shell, name))
	}
	for _, name := range sortedValueKeys(values) {
		lines = append(lines, setCommand(shell, name, values[name]))
	}
	return lines
}

func separator(a EnvAction) string {
	if a.Separator != "" {
		return a.Separator
	}
	if a.Group == "paths" {
		return ":"
	}
	return " "
}

func joinNonEmpty(a, b, sep string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + sep + b
	}
}

func setCommand(shell, name, value string) string {
	switch shell {
	case "csh":
		return "setenv " + name + " " + quote(value)
	case "fish":
		return "set -x " + name + " " + quote(value)
	case "bat":
		return "set " + name + "=" + value
	default:
		return "export " + name + "=" + quote(value)
	}
}

func unsetCommand(shell, name string) string {
	switch shell {
	case "csh":
		return "unsetenv " + name
	case "fish":
		return "set -e " + name
	case "bat":
		return "set " + name + "="
	default:
		return "unset " + name
	}
}

func quote(s string) string {
	return "\"" + s + "\""
}

func sortedStringKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedValueKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
