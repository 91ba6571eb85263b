// file: internal/tester/types.go

package tester

import (
	"ui-conditions/internal/conditions"
)

// TestCase is one case file from a form's _test directory.
// Values are laid over the form's currentParameters before the run.
type TestCase struct {
	Values map[string]any `json:"values"`

	// Property ids to validate, e.g. "limit" or "sort_order[1][0]".
	// Empty means validate every control.
	Validate []string `json:"validate,omitempty"`

	Expect Expectation `json:"expect"`
}

// Expectation describes the outcome a case must produce.
// States are checked only for the names listed. Errors, when present, must
// match the session's messages exactly; null or absent skips the check.
type Expectation struct {
	States map[string]conditions.State        `json:"states,omitempty"`
	Errors map[string]conditions.ErrorMessage `json:"errors"`
}

// TestResult represents the outcome of a single test case.
type TestResult struct {
	Form       string `json:"form"`
	File       string `json:"file"`
	Passed     bool   `json:"passed"`
	Error      string `json:"error,omitempty"`
	Details    string `json:"details,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// TestSummary aggregates all test results for a batch run.
type TestSummary struct {
	Total      int          `json:"total"`
	Passed     int          `json:"passed"`
	Failed     int          `json:"failed"`
	DurationMs int64        `json:"duration_ms"`
	Results    []TestResult `json:"results"`
}

// TestGroup represents a single form file and all its associated test cases.
type TestGroup struct {
	FormPath  string
	TestDir   string
	TestFiles []string
}

// TestJob is used for parallel execution of test cases.
type TestJob struct {
	Suite    *suite
	TestFile string
}

// CheckReport is what Check prints for a form and a set of values.
type CheckReport struct {
	Form     string                             `json:"form"`
	Session  string                             `json:"session"`
	States   map[string]conditions.State        `json:"states"`
	Enums    map[string][]any                   `json:"enums,omitempty"`
	Messages map[string]conditions.ErrorMessage `json:"messages"`
}
