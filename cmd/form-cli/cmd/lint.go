// file: cmd/form-cli/cmd/lint.go
package cmd

import (
	"github.com/spf13/cobra"
)

var lintCmd = &cobra.Command{
	Use:   "lint --forms <dir>",
	Short: "Validate the structure of all form files in a directory",
	Long: `The lint command recursively walks a directory to find all .yaml, .yml and .json
form files, skipping *_test directories. Each file is parsed and every condition
definition is checked: exactly one kind per definition, required keys present,
exactly one of and/or/condition per node and no empty and/or lists. Operators
that are not registered are reported as warnings, since they evaluate as true.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		formsDir, _ := cmd.Flags().GetString("forms")
		if formsDir == "" {
			return cmd.Help()
		}

		t, err := newTester(false, 0)
		if err != nil {
			return err
		}
		t.Out = cmd.OutOrStdout()
		return t.Lint(formsDir)
	},
}

func init() {
	lintCmd.Flags().StringP("forms", "f", "", "Path to the root directory for forms (required)")
	lintCmd.MarkFlagRequired("forms")
}
