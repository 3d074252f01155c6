package config

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/moolen/riskgraph/internal/learning"
)

// Load layers, lowest priority first: Default(), the YAML file at path (if
// path is non-empty), then overrides keyed by dotted yaml path such as
// "learn.score". The result is validated.
func Load(path string, overrides map[string]interface{}) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config from %q: %w", path, err)
		}
	}
	for key, value := range overrides {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("failed to apply override %q: %w", key, err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to parse config from %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadExpertNetwork reads a hand-drawn network definition.
func LoadExpertNetwork(path string) (*learning.ExpertNetwork, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load network definition from %q: %w", path, err)
	}

	var x learning.ExpertNetwork
	if err := k.UnmarshalWithConf("", &x, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to parse network definition from %q: %w", path, err)
	}
	if err := validate.Struct(&x); err != nil {
		return nil, fmt.Errorf("network definition %q: %w", path, formatValidationError(err))
	}
	return &x, nil
}
