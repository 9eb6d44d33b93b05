package root

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the workspaces operator CLI. Subcommands are attached in wire.go.
var rootCmd = &cobra.Command{
	Use:           "workspaces",
	Short:         "Workspaces operator CLI",
	Long:          "Operator utilities for tenant workspace provisioning (store bootstrap, request lifecycle, credentials, dev tokens).",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// Root returns the mutable root command for wiring from subpackages.
func Root() *cobra.Command {
	return rootCmd
}
