package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/oncobeam/rtflow/rt"
)

// machineTables is the on-disk shape of the substitution tables.
type machineTables struct {
	Mappings map[string]string `yaml:"mappings"` // fromName -> toName
	Defaults map[string]string `yaml:"defaults"` // modelName -> machineName
}

// LoadMachineTables reads the machine-name substitution tables from a YAML
// file. An empty path returns an empty mapping, which substitutes nothing.
func LoadMachineTables(path string) (rt.MachineMapping, error) {
	if path == "" {
		return rt.MachineMapping{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return rt.MachineMapping{}, fmt.Errorf("failed to read machine tables: %w", err)
	}

	var tables machineTables
	if err := yaml.Unmarshal(data, &tables); err != nil {
		return rt.MachineMapping{}, fmt.Errorf("failed to parse machine tables %s: %w", path, err)
	}

	return rt.MachineMapping{
		Renames:  tables.Mappings,
		Defaults: tables.Defaults,
	}, nil
}
