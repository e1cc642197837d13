package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ParamsFile is the YAML seed applied to the parameter store at boot. Only
// keys present in the file are applied; omitted keys keep their defaults.
type ParamsFile struct {
	Thresholds map[string]float64 `yaml:"thresholds"`
	Allowlist  []string           `yaml:"allowlist"`
}

// LoadParamsFile parses a parameter seed file.
func LoadParamsFile(path string) (*ParamsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read params file: %w", err)
	}
	var pf ParamsFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("config: parse params file %s: %w", path, err)
	}
	return &pf, nil
}
