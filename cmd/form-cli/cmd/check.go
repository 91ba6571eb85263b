// file: cmd/form-cli/cmd/check.go
package cmd

import (
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check --form <form.yaml> [--values <values.json>]",
	Short: "Evaluate a single form and print control states and messages",
	Long: `The check command evaluates one form for rapid iteration and debugging. The
form's currentParameters are used as values, overlaid with the values file when
one is given. It runs the visibility, enablement and enum passes, validates every
control and prints the resulting states and messages.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		formPath, _ := cmd.Flags().GetString("form")
		valuesPath, _ := cmd.Flags().GetString("values")
		outputFormat, _ := cmd.Flags().GetString("output")

		if formPath == "" {
			return cmd.Help()
		}

		t, err := newTester(false, 0)
		if err != nil {
			return err
		}
		t.Out = cmd.OutOrStdout()
		if _, err := t.Check(formPath, valuesPath, outputFormat == "json"); err != nil {
			return err
		}
		printMetrics(cmd, t)
		return nil
	},
}

func init() {
	checkCmd.Flags().String("form", "", "Path to a single form file (required)")
	checkCmd.Flags().String("values", "", "Path to a JSON or YAML file of parameter values")
	checkCmd.Flags().StringP("output", "o", "pretty", "Output format: pretty, json")
	checkCmd.MarkFlagRequired("form")
}
