// file: cmd/form-cli/cmd/test.go
package cmd

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"ui-conditions/internal/tester"
)

var testCmd = &cobra.Command{
	Use:   "test --forms <dir>",
	Short: "Run all test suites for forms in a directory",
	Long: `The test command discovers and runs all test suites. A test suite is a directory
named 'my_form_test/' that corresponds to a 'my_form.yaml' file. Every *.json
case in the suite sets parameter values, optionally lists the properties to
validate, and declares the expected control states and validation messages.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		formsDir, _ := cmd.Flags().GetString("forms")
		outputFormat, _ := cmd.Flags().GetString("output")
		verbose, _ := cmd.Flags().GetBool("verbose")
		parallel, _ := cmd.Flags().GetInt("parallel")

		if formsDir == "" {
			return cmd.Help()
		}

		t, err := newTester(verbose, parallel)
		if err != nil {
			return err
		}
		if outputFormat == "json" {
			t.Out = cmd.ErrOrStderr()
		} else {
			t.Out = cmd.OutOrStdout()
			fmt.Fprintf(t.Out, "▶ RUNNING TESTS in %s\n\n", formsDir)
		}

		summary, err := t.RunBatchTest(formsDir)

		if outputFormat == "json" {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			if encodeErr := encoder.Encode(summary); encodeErr != nil {
				return encodeErr
			}
		} else {
			printSummaryPretty(cmd, summary)
		}
		printMetrics(cmd, t)

		if err != nil {
			return err
		}

		if summary.Failed > 0 {
			return fmt.Errorf("tests failed")
		}
		return nil
	},
}

func init() {
	testCmd.Flags().StringP("forms", "f", "", "Path to the root directory for forms (required)")
	testCmd.Flags().StringP("output", "o", "pretty", "Output format: pretty, json")
	testCmd.Flags().BoolP("verbose", "v", false, "Show detailed output for failures")
	testCmd.Flags().IntP("parallel", "p", 4, "Number of parallel test workers (0 = sequential)")
	testCmd.MarkFlagRequired("forms")
}

// printSummaryPretty is a helper to print the test summary in a human-readable format.
func printSummaryPretty(cmd *cobra.Command, summary tester.TestSummary) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "--- SUMMARY ---")
	fmt.Fprintf(out, "Total Tests: %d, Passed: %d, Failed: %d\n",
		summary.Total, summary.Passed, summary.Failed)
	fmt.Fprintf(out, "Duration: %dms\n", summary.DurationMs)

	if summary.Failed > 0 {
		fmt.Fprintln(out, "\n--- FAILURES ---")
		for _, result := range summary.Results {
			if !result.Passed {
				fmt.Fprintf(out, "✖ %s (%s)\n", result.File, result.Form)
				fmt.Fprintf(out, "  Error: %s\n", result.Error)
				if result.Details != "" {
					fmt.Fprintf(out, "  Details: %s\n", strings.ReplaceAll(result.Details, "\n", "\n  "))
				}
			}
		}
	}
}
