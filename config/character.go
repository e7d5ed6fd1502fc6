package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/plugmesh/core"
)

// LoadCharacter reads a YAML or JSON character file.
func LoadCharacter(path string) (*core.Character, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading character: %w", err)
	}

	return ParseCharacter(data)
}

// ParseCharacter decodes and validates a character. A missing id is derived
// from the name.
func ParseCharacter(data []byte) (*core.Character, error) {
	var c core.Character
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("loading character: %w", err)
	}

	if err := validateCharacter(&c); err != nil {
		return nil, fmt.Errorf("loading character: %w", err)
	}

	if c.ID == "" {
		c.ID = core.DeterministicID(c.Name)
	}

	return &c, nil
}

func validateCharacter(c *core.Character) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("name is required")
	}

	seen := make(map[string]struct{}, len(c.Plugins))

	for i, p := range c.Plugins {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("plugin %d name is required", i)
		}

		if _, dup := seen[p]; dup {
			return fmt.Errorf("duplicate plugin: %s", p)
		}

		seen[p] = struct{}{}
	}

	return nil
}
