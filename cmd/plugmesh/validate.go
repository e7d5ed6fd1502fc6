package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/plugmesh"
)

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and character without starting the agent",
		RunE:  runValidate,
	}
}

func runValidate(cmd *cobra.Command, _ []string) error {
	cfg, character, err := loadInputs(cmd)
	if err != nil {
		return err
	}

	known := plugmesh.DefaultCatalog().Names()

	var unknown []string

	for _, p := range character.Plugins {
		if !slices.Contains(known, p) {
			unknown = append(unknown, p)
		}
	}

	if len(unknown) > 0 {
		return fmt.Errorf("unknown plugins: %s (available: %s)", strings.Join(unknown, ", "), strings.Join(known, ", "))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "character %q (id %s) is valid\n", character.Name, character.ID)
	fmt.Fprintf(out, "plugins: %s\n", strings.Join(character.Plugins, ", "))
	fmt.Fprintf(out, "knowledge items: %d\n", len(character.Knowledge))
	fmt.Fprintf(out, "server address: %s\n", cfg.Server.Addr)

	return nil
}
