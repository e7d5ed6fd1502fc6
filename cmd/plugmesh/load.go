package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/hupe1980/plugmesh/config"
	"github.com/hupe1980/plugmesh/core"
)

// loadInputs reads the configuration and the character named by the flags.
func loadInputs(cmd *cobra.Command) (*config.Config, *core.Character, error) {
	cfgPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}

	charPath, _ := cmd.Flags().GetString("character")
	if charPath == "" {
		charPath = cfg.Character
	}

	if charPath == "" {
		return nil, nil, errors.New("no character file given, use --character or set character in the configuration")
	}

	character, err := config.LoadCharacter(charPath)
	if err != nil {
		return nil, nil, err
	}

	return cfg, character, nil
}
