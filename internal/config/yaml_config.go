package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModelsConfig represents the structure of the models.yaml file.
// Rosters and pricing change more often than deployments, so they live outside env vars.
type ModelsConfig struct {
	Rosters RostersConfig `yaml:"rosters"`
	Models  []ModelConfig `yaml:"models"`
}

// RostersConfig names the two model rosters used by the orchestration engine.
type RostersConfig struct {
	Full     []string `yaml:"full"`
	Fallback []string `yaml:"fallback"` // Must be a strict subset of Full
}

// ModelConfig holds per-model pricing used to compute evaluation cost.
type ModelConfig struct {
	Name        string  `yaml:"name"`
	InputPer1K  float64 `yaml:"input_per_1k"`  // USD per 1K prompt tokens
	OutputPer1K float64 `yaml:"output_per_1k"` // USD per 1K completion tokens
}

// DefaultModels returns the built-in roster used when no models file is present.
func DefaultModels() *ModelsConfig {
	return &ModelsConfig{
		Rosters: RostersConfig{
			Full:     []string{"gpt-4o", "claude-3-5-sonnet", "gemini-1.5-pro", "sonar"},
			Fallback: []string{"gpt-4o", "claude-3-5-sonnet"},
		},
		Models: []ModelConfig{
			{Name: "gpt-4o", InputPer1K: 0.0025, OutputPer1K: 0.01},
			{Name: "claude-3-5-sonnet", InputPer1K: 0.003, OutputPer1K: 0.015},
			{Name: "gemini-1.5-pro", InputPer1K: 0.00125, OutputPer1K: 0.005},
			{Name: "sonar", InputPer1K: 0.001, OutputPer1K: 0.001},
		},
	}
}

// LoadModels loads the roster file at path.
// Returns the built-in defaults without error if the file doesn't exist.
func LoadModels(path string) (*ModelsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultModels(), nil
		}
		return nil, err
	}

	var cfg ModelsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid models config %s: %w", path, err)
	}

	return &cfg, nil
}

// Validate checks that both rosters are set and that fallback is a strict subset of full.
func (c *ModelsConfig) Validate() error {
	if len(c.Rosters.Full) == 0 {
		return errors.New("rosters.full must not be empty")
	}
	if len(c.Rosters.Fallback) == 0 {
		return errors.New("rosters.fallback must not be empty")
	}

	full := make(map[string]bool, len(c.Rosters.Full))
	for _, m := range c.Rosters.Full {
		if full[m] {
			return fmt.Errorf("rosters.full lists %q twice", m)
		}
		full[m] = true
	}
	for _, m := range c.Rosters.Fallback {
		if !full[m] {
			return fmt.Errorf("fallback model %q is not in rosters.full", m)
		}
	}
	if len(c.Rosters.Fallback) >= len(c.Rosters.Full) {
		return errors.New("rosters.fallback must be a strict subset of rosters.full")
	}
	return nil
}

// GetModel finds a model's pricing by name.
func (c *ModelsConfig) GetModel(name string) *ModelConfig {
	if c == nil {
		return nil
	}
	for i := range c.Models {
		if c.Models[i].Name == name {
			return &c.Models[i]
		}
	}
	return nil
}
