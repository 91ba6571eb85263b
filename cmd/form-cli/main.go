// file: cmd/form-cli/main.go
package main

import (
	"os"

	"github.com/spf13/cobra"

	"ui-conditions/cmd/form-cli/cmd"
)

var rootCmd = &cobra.Command{
	Use:   "form-cli",
	Short: "A CLI for validating and testing UI condition forms offline.",
	Long: `form-cli loads form documents (layout, conditions, current parameters and
dataset metadata), lints their condition definitions, evaluates them against
sample values and runs test suites that pin down the expected control states
and validation messages.`,
	// If a subcommand is not provided, default to showing help.
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	cmd.AddCommands(rootCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra prints the error, so we just need to exit
		os.Exit(1)
	}
}
