// Workspace configuration loading: a ramble.yaml document is decoded into
// workspaceConfig and layered onto an expset.Set the way the teacher's
// Options.Bind layers pflag values onto a single run's configuration —
// generalized here from flags to a nested YAML scope stack (workspace →
// application → workload → experiment, spec §3 "Scope Stack").
package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ramble-hpc/ramble/internal/expset"
	"github.com/ramble-hpc/ramble/internal/model"
)

type rawVars map[string]any

// experimentConfig is one experiment-context declaration under a
// workload (spec §4.3 entry point 3).
type experimentConfig struct {
	Variables   rawVars             `yaml:"variables"`
	Zips        map[string][]string `yaml:"zips"`
	Matrices    [][]string          `yaml:"matrices"`
	Modifiers   []modifierRefConfig `yaml:"modifiers"`
	Chained     []chainEntryConfig  `yaml:"chained_experiments"`
	Executables []string            `yaml:"executables"`
	NameSuffix  string              `yaml:"name"`
}

type modifierRefConfig struct {
	Name string `yaml:"name"`
	Mode string `yaml:"mode"`
}

type chainEntryConfig struct {
	Name      string  `yaml:"name"`
	Command   string  `yaml:"command"`
	Order     string  `yaml:"order"`
	Variables rawVars `yaml:"variables"`
}

type workloadConfig struct {
	Variables   rawVars                     `yaml:"variables"`
	Experiments map[string]experimentConfig `yaml:"experiments"`
}

type applicationConfig struct {
	Variables rawVars                   `yaml:"variables"`
	Workloads map[string]workloadConfig `yaml:"workloads"`
}

type workspaceConfig struct {
	Ramble struct {
		Variables    rawVars                      `yaml:"variables"`
		EnvVars      rawVars                      `yaml:"env_vars"`
		Shell        string                       `yaml:"shell"`
		Applications map[string]applicationConfig `yaml:"applications"`
		Templates    map[string]string            `yaml:"templates"`
	} `yaml:"ramble"`
}

// templates returns the workspace's template name -> content map, used by
// compose.MaterializeTemplates (spec §4.5 "Template materialization").
func (c *workspaceConfig) templates() map[string]string {
	return c.Ramble.Templates
}

func loadWorkspaceConfig(path string) (*workspaceConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workspace config %q: %w", path, err)
	}
	var cfg workspaceConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing workspace config %q: %w", path, err)
	}
	return &cfg, nil
}

// toBinding converts a raw YAML variable map into a model.Binding: any
// string containing "{" becomes a template Value so the expander looks
// for placeholders in it, other scalars keep their native kind, and a
// sequence becomes a sequence Value whose elements are converted by the
// same rules (spec §3 "Variable Binding").
func toBinding(raw rawVars) model.Binding {
	out := model.Binding{}
	for k, v := range raw {
		out[k] = toValue(v)
	}
	return out
}

func toValue(v any) model.Value {
	switch t := v.(type) {
	case string:
		if strings.Contains(t, "{") {
			return model.Tmpl(t)
		}
		return model.Str(t)
	case int:
		return model.Int(int64(t))
	case int64:
		return model.Int(t)
	case float64:
		return model.Float(t)
	case bool:
		return model.Bool(t)
	case []any:
		vs := make([]model.Value, 0, len(t))
		for _, e := range t {
			vs = append(vs, toValue(e))
		}
		return model.Seq(vs...)
	default:
		return model.Str(fmt.Sprintf("%v", t))
	}
}

func toChainOrder(s string) model.ChainOrder {
	switch model.ChainOrder(s) {
	case model.BeforeChain, model.BeforeRoot, model.AfterRoot, model.AfterChain:
		return model.ChainOrder(s)
	default:
		return model.AfterRoot
	}
}

// workspaceLayerContext extracts cfg's workspace-level scope, used to
// construct the engine's Set.
func workspaceLayerContext(cfg *workspaceConfig) expset.LayerContext {
	return expset.LayerContext{
		Vars:    toBinding(cfg.Ramble.Variables),
		EnvVars: toBinding(cfg.Ramble.EnvVars),
	}
}

// populateSet layers every application/workload/experiment scope cfg
// declares onto an already-constructed set (spec §4.3).
func populateSet(set *expset.Set, cfg *workspaceConfig) error {
	for appName, appCfg := range cfg.Ramble.Applications {
		if err := set.SetApplicationContext(appName, expset.LayerContext{Vars: toBinding(appCfg.Variables)}); err != nil {
			return err
		}

		for wlName, wlCfg := range appCfg.Workloads {
			if err := set.SetWorkloadContext(appName, wlName, expset.LayerContext{Vars: toBinding(wlCfg.Variables)}); err != nil {
				return err
			}

			for expName, expCfg := range wlCfg.Experiments {
				nameTemplate := expName
				if expCfg.NameSuffix != "" {
					nameTemplate = expCfg.NameSuffix
				}

				var mods []model.ModifierInstance
				for _, m := range expCfg.Modifiers {
					mods = append(mods, model.ModifierInstance{Name: m.Name, Mode: m.Mode})
				}

				var chained []model.ChainEntry
				for _, c := range expCfg.Chained {
					chained = append(chained, model.ChainEntry{
						Name:      c.Name,
						Command:   c.Command,
						Order:     toChainOrder(c.Order),
						Variables: toBinding(c.Variables),
					})
				}

				var zips []model.ExplicitZip
				for zipName, vars := range expCfg.Zips {
					zips = append(zips, model.ExplicitZip{Name: zipName, Variables: vars})
				}

				ec := expset.ExperimentContext{
					LayerContext: expset.LayerContext{
						Vars:      toBinding(expCfg.Variables),
						Modifiers: mods,
						Chained:   chained,
						Internals: model.Internals{Executables: expCfg.Executables},
					},
					NameTemplate: nameTemplate,
					ExplicitZips: zips,
					Matrices:     expCfg.Matrices,
				}

				if _, err := set.SetExperimentContext(appName, wlName, ec); err != nil {
					return err
				}
			}
		}
	}

	return nil
}
