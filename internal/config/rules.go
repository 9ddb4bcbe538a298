package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/preston-bernstein/ftbuilder/internal/domain/rules"
)

// RuleSet is the on-disk form of the active constraints.
type RuleSet struct {
	Constraints []rules.Constraint `yaml:"constraints"`
}

// LoadRules reads a YAML rule set. An empty path yields no constraints.
func LoadRules(path string) ([]rules.Constraint, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	list, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("rules %s: %w", path, err)
	}
	return list, nil
}

// ParseRules decodes a YAML rule set, rejecting unknown fields.
func ParseRules(data []byte) ([]rules.Constraint, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var set RuleSet
	if err := dec.Decode(&set); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	return set.Constraints, nil
}
