// file: cmd/form-cli/cmd/scaffold.go
package cmd

import (
	"github.com/spf13/cobra"
)

var scaffoldCmd = &cobra.Command{
	Use:   "scaffold <path-to-form.yaml>",
	Short: "Generate a test directory for a given form file",
	Long: `The scaffold command evaluates a form against its currentParameters and writes
a '_test/baseline.json' case pinning the resulting control states and validation
messages. Copy and edit the baseline to cover other parameter values.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		noOverwrite, _ := cmd.Flags().GetBool("no-overwrite")

		t, err := newTester(false, 0)
		if err != nil {
			return err
		}
		t.Out = cmd.OutOrStdout()
		return t.Scaffold(args[0], noOverwrite)
	},
}

func init() {
	scaffoldCmd.Flags().Bool("no-overwrite", false, "Fail instead of replacing an existing baseline case")
}
