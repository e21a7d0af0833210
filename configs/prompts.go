package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// PromptConfig is the structure of prompts.yaml.
type PromptConfig struct {
	Version   string            `yaml:"version"`
	System    string            `yaml:"system"`
	MaxTokens int               `yaml:"max_tokens"`
	Artifacts map[string]string `yaml:"artifacts"`
}

// LoadPrompts reads the prompt templates from path, or the embedded
// defaults when path is empty.
func LoadPrompts(path string) (*PromptConfig, error) {
	data := defaultPrompts
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read prompts file %s: %w", path, err)
		}
		data = raw
	}

	var cfg PromptConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse prompts yaml: %w", err)
	}
	if len(cfg.Artifacts) == 0 {
		return nil, fmt.Errorf("prompts yaml defines no artifact templates")
	}
	return &cfg, nil
}
