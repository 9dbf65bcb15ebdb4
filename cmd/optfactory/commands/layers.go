package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-optfactory"
	"github.com/goliatone/go-optfactory/hclvalues"
)

// layerFlags select the value files and overrides stacked over the schema
// defaults, weakest first: system, project, user, then --set.
type layerFlags struct {
	system  string
	project string
	user    string
	sets    []string
}

func (l *layerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&l.system, "system", "", "system values file (weakest layer)")
	cmd.Flags().StringVarP(&l.project, "values", "f", "", "project values file")
	cmd.Flags().StringVar(&l.user, "user", "", "user values file")
	cmd.Flags().StringArrayVar(&l.sets, "set", nil, "override a value, e.g. --set server.port=9000 (repeatable)")
}

func (l *layerFlags) stack() (*optfactory.Stack, error) {
	system, err := readValues(l.system)
	if err != nil {
		return nil, err
	}
	project, err := readValues(l.project)
	if err != nil {
		return nil, err
	}
	user, err := readValues(l.user)
	if err != nil {
		return nil, err
	}
	cli, err := parseSets(l.sets)
	if err != nil {
		return nil, err
	}
	return optfactory.SystemProjectUserCLI(system, project, user, cli)
}

// files lists the values files given on the command line.
func (l *layerFlags) files() []string {
	var out []string
	for _, path := range []string{l.system, l.project, l.user} {
		if path != "" {
			out = append(out, path)
		}
	}
	return out
}

// readValues reads a YAML (or JSON) values file, or HCL when the file ends
// in .hcl.
func readValues(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	if strings.EqualFold(filepath.Ext(path), ".hcl") {
		values, err := hclvalues.Load(path)
		if err != nil {
			return nil, fmt.Errorf("parse values %s: %w", path, err)
		}
		return values, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read values %s: %w", path, err)
	}
	values, err := optfactory.LoadYAML(data)
	if err != nil {
		return nil, fmt.Errorf("parse values %s: %w", path, err)
	}
	return values, nil
}

// parseSets turns key=value pairs into a nested mapping. Values are parsed
// as YAML scalars, so 8080 is an int and true a bool.
func parseSets(sets []string) (map[string]any, error) {
	out := map[string]any{}
	for _, set := range sets {
		key, raw, ok := strings.Cut(set, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q: expected key=value", set)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("invalid --set %q: %w", set, err)
		}
		segments := strings.Split(key, ".")
		current := out
		for _, segment := range segments[:len(segments)-1] {
			next, ok := current[segment].(map[string]any)
			if !ok {
				next = map[string]any{}
				current[segment] = next
			}
			current = next
		}
		current[segments[len(segments)-1]] = value
	}
	return out, nil
}
