package root

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the RepairHero admin CLI. Subcommands
// (tenant, user, role, apikey, migrate) are attached here.
var rootCmd = &cobra.Command{
	Use:           "repairctl",
	Short:         "RepairHero admin CLI",
	Long:          "Administrative utilities for RepairHero (tenant/user/role management, API keys, migrations).",
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
