package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "plugmesh",
		Short:        "Run plugin-driven conversational agents",
		SilenceUsage: true,
	}
	root.Version = version
	root.SetVersionTemplate("{{.Version}}\n")
	root.PersistentFlags().StringP("config", "c", "", "path to a YAML configuration file")
	root.PersistentFlags().String("character", "", "path to a character file (overrides the configuration)")
	root.AddCommand(runCmd())
	root.AddCommand(validateCmd())

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
