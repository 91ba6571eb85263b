// file: internal/tester/tester.go

package tester

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gopkg.in/yaml.v3"

	"ui-conditions/internal/conditions"
	"ui-conditions/internal/logger"
	"ui-conditions/internal/metrics"
)

// Tester holds the configuration and logic for the form-cli utility.
type Tester struct {
	Logger          *logger.Logger
	Verbose         bool
	ParallelWorkers int

	// Engine settings applied to every form; Metrics may be nil.
	Options conditions.Options
	Metrics *metrics.Metrics

	Out io.Writer
}

// New creates a new Tester instance.
func New(log *logger.Logger, verbose bool, parallel int) *Tester {
	return &Tester{
		Logger:          log,
		Verbose:         verbose,
		ParallelWorkers: parallel,
		Out:             os.Stdout,
	}
}

func (t *Tester) printf(format string, args ...any) {
	fmt.Fprintf(t.Out, format, args...)
}

// suite is a loaded form with its compiled index, shared by all of its cases.
type suite struct {
	path   string
	doc    *conditions.FormDocument
	engine *conditions.Engine
	index  *conditions.DefinitionIndex
}

func (t *Tester) loader() *conditions.FormLoader {
	return conditions.NewFormLoader(t.Logger, nil)
}

func (t *Tester) loadSuite(formPath string) (*suite, error) {
	doc, err := t.loader().LoadFromFile(formPath)
	if err != nil {
		return nil, err
	}
	// Attach column parents once so sessions built concurrently only read them.
	conditions.ParseControls(doc.UIItems)
	engine := conditions.NewEngine(t.Logger, t.Metrics, t.Options)
	return &suite{
		path:   formPath,
		doc:    doc,
		engine: engine,
		index:  engine.BuildIndex(doc.Conditions),
	}, nil
}

// Lint validates every form file under formsDir. Unknown operators are
// reported but do not fail the lint, since they evaluate permissively.
func (t *Tester) Lint(formsDir string) error {
	t.printf("▶ LINTING forms in %s\n\n", formsDir)
	var failed bool
	var count int

	loader := t.loader()
	err := filepath.Walk(formsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && strings.HasSuffix(info.Name(), "_test") {
			return filepath.SkipDir
		}
		if info.IsDir() || !conditions.IsFormFile(path) {
			return nil
		}
		count++
		doc, err := loader.LoadFromFile(path)
		if err != nil {
			t.printf("✖ FAIL: %s\n  Error: %v\n", path, err)
			failed = true
			return nil
		}
		t.printf("✓ PASS: %s\n", path)
		for _, op := range loader.UnknownOperators(doc) {
			t.printf("  ⚠ unknown operator %q evaluates as true\n", op)
		}
		return nil
	})

	if err != nil {
		return fmt.Errorf("walk error: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("no form files found in %s", formsDir)
	}
	if failed {
		return fmt.Errorf("linting failed")
	}
	t.printf("\nLinting complete. All files are valid.\n")
	return nil
}

// Scaffold creates the _test directory of a form with a baseline case that
// pins the states and messages produced by its currentParameters.
func (t *Tester) Scaffold(formPath string, noOverwrite bool) error {
	if !conditions.IsFormFile(formPath) {
		return fmt.Errorf("scaffold requires a path to a .yaml, .yml or .json form file")
	}

	testDir := strings.TrimSuffix(formPath, filepath.Ext(formPath)) + "_test"
	casePath := filepath.Join(testDir, "baseline.json")
	if _, err := os.Stat(casePath); err == nil && noOverwrite {
		return fmt.Errorf("test case already exists: %s (use without --no-overwrite to proceed)", casePath)
	}

	s, err := t.loadSuite(formPath)
	if err != nil {
		return fmt.Errorf("could not load form %s: %w", formPath, err)
	}

	t.printf("📋 Form Analysis:\n")
	for _, kind := range conditions.Kinds {
		if n := s.index.Count(kind); n > 0 {
			t.printf("   ✓ %d %s definition(s)\n", n, kind)
		}
	}
	t.printf("\n")

	session := t.newSession(s, nil)
	states := s.engine.ValidateConditions(session, s.index)
	session.SetControlStates(states)
	s.engine.ValidateAll(session, s.index)

	tc := TestCase{
		Values: map[string]any{},
		Expect: Expectation{
			States: make(map[string]conditions.State),
			Errors: make(map[string]conditions.ErrorMessage),
		},
	}
	for _, c := range session.Controls() {
		if st := states.State(conditions.Property(c.Name)); st != "" {
			tc.Expect.States[c.Name] = st
		}
	}
	for id, msg := range session.ErrorMessages() {
		tc.Expect.Errors[id.String()] = msg
	}

	data, err := json.MarshalIndent(tc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode baseline: %w", err)
	}
	if err := os.MkdirAll(testDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", testDir, err)
	}
	if err := os.WriteFile(casePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", casePath, err)
	}

	t.printf("✓ Created %s\n", casePath)
	t.printf("  Edit \"values\" and \"expect\" to cover new behavior, then run the test command.\n")
	return nil
}

// Check runs a form against its currentParameters, overlaid with the
// values file when one is given, and prints states and messages.
func (t *Tester) Check(formPath, valuesPath string, asJSON bool) (*CheckReport, error) {
	s, err := t.loadSuite(formPath)
	if err != nil {
		return nil, fmt.Errorf("could not load form %s: %w", formPath, err)
	}

	var overlay map[string]any
	if valuesPath != "" {
		if overlay, err = loadValues(valuesPath); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	session := t.newSession(s, overlay)
	states := s.engine.ValidateConditions(session, s.index)
	session.SetControlStates(states)
	s.engine.ValidateAll(session, s.index)
	duration := time.Since(start)

	report := &CheckReport{
		Form:     s.doc.ID,
		Session:  session.ID,
		States:   make(map[string]conditions.State),
		Enums:    make(map[string][]any),
		Messages: make(map[string]conditions.ErrorMessage),
	}
	for _, c := range session.Controls() {
		id := conditions.Property(c.Name)
		if st := states.State(id); st != "" {
			report.States[c.Name] = st
		}
		if enum, ok := states.Enum(id); ok {
			report.Enums[c.Name] = enum
		}
	}
	for id, msg := range session.ErrorMessages() {
		report.Messages[id.String()] = msg
	}

	if asJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode report: %w", err)
		}
		t.printf("%s\n", data)
		return report, nil
	}

	t.printf("▶ Running Check on form: %s\n\n", formPath)
	t.printf("Session: %s\n", report.Session)
	t.printf("Processing Time: %v\n", duration)
	t.printf("\n--- States ---\n")
	for _, name := range sortedKeys(report.States) {
		t.printf("%s: %s\n", name, report.States[name])
	}
	for _, name := range sortedKeys(report.Enums) {
		t.printf("%s enum: %v\n", name, report.Enums[name])
	}
	t.printf("\n--- Messages ---\n")
	if len(report.Messages) == 0 {
		t.printf("(none)\n")
	}
	for _, id := range sortedKeys(report.Messages) {
		msg := report.Messages[id]
		t.printf("%s [%s]: %s\n", id, msg.Type, msg.Text)
	}
	return report, nil
}

// RunBatchTest discovers every form with a _test directory under formsDir
// and runs its cases.
func (t *Tester) RunBatchTest(formsDir string) (TestSummary, error) {
	startTime := time.Now()
	testGroups, err := t.collectTestGroups(formsDir)
	if err != nil {
		return TestSummary{}, fmt.Errorf("failed to collect test groups: %w", err)
	}
	var summary TestSummary
	if t.ParallelWorkers > 0 {
		summary = t.runTestsParallel(testGroups)
	} else {
		summary = t.runTestsSequential(testGroups)
	}
	summary.DurationMs = time.Since(startTime).Milliseconds()
	return summary, nil
}

func (t *Tester) runTestsSequential(groups []TestGroup) TestSummary {
	summary := TestSummary{}
	for _, group := range groups {
		t.printf("=== FORM: %s ===\n", group.FormPath)
		s, err := t.loadSuite(group.FormPath)
		for _, testFile := range group.TestFiles {
			baseName := filepath.Base(testFile)
			var result TestResult
			if err != nil {
				result = TestResult{Form: group.FormPath, File: baseName, Error: fmt.Sprintf("could not load form: %v", err)}
			} else {
				result = t.runSingleTestCase(s, testFile)
			}
			summary.add(result)
			if result.Passed {
				t.printf("  ✓ %s (%dms)\n", baseName, result.DurationMs)
			} else {
				t.printf("  ✖ %s (%dms)\n", baseName, result.DurationMs)
				if t.Verbose && result.Error != "" {
					t.printf("    Error: %s\n", result.Error)
					if result.Details != "" {
						t.printf("    Details: %s\n", result.Details)
					}
				}
			}
		}
		t.printf("\n")
	}
	return summary
}

func (t *Tester) runTestsParallel(groups []TestGroup) TestSummary {
	jobs := make(chan TestJob, 100)
	results := make(chan TestResult, 100)
	var wg sync.WaitGroup
	for i := 0; i < t.ParallelWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results <- t.runSingleTestCase(j.Suite, j.TestFile)
			}
		}()
	}
	go func() {
		for _, group := range groups {
			s, err := t.loadSuite(group.FormPath)
			for _, testFile := range group.TestFiles {
				if err != nil {
					results <- TestResult{Form: group.FormPath, File: filepath.Base(testFile), Error: fmt.Sprintf("could not load form: %v", err)}
					continue
				}
				jobs <- TestJob{Suite: s, TestFile: testFile}
			}
		}
		close(jobs)
	}()
	go func() {
		wg.Wait()
		close(results)
	}()
	summary := TestSummary{}
	for result := range results {
		summary.add(result)
	}
	sort.SliceStable(summary.Results, func(i, j int) bool {
		a, b := summary.Results[i], summary.Results[j]
		if a.Form != b.Form {
			return a.Form < b.Form
		}
		return a.File < b.File
	})
	return summary
}

func (s *TestSummary) add(result TestResult) {
	s.Total++
	s.Results = append(s.Results, result)
	if result.Passed {
		s.Passed++
	} else {
		s.Failed++
	}
}

// runSingleTestCase runs one case on a fresh session of the suite's form.
func (t *Tester) runSingleTestCase(s *suite, casePath string) (result TestResult) {
	start := time.Now()
	result = TestResult{Form: s.path, File: filepath.Base(casePath)}
	defer func() { result.DurationMs = time.Since(start).Milliseconds() }()

	tc, err := loadTestCase(casePath)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	session := t.newSession(s, tc.Values)
	states := s.engine.ValidateConditions(session, s.index)
	session.SetControlStates(states)

	if len(tc.Validate) == 0 {
		s.engine.ValidateAll(session, s.index)
	}
	for _, name := range tc.Validate {
		id, err := conditions.ParsePropertyID(name)
		if err != nil {
			result.Error = fmt.Sprintf("invalid validate entry: %v", err)
			return result
		}
		if _, err := s.engine.ValidateInput(id, session, s.index); err != nil {
			result.Error = fmt.Sprintf("validation of %s failed: %v", name, err)
			return result
		}
	}

	var mismatches []string
	for _, name := range sortedKeys(tc.Expect.States) {
		want := tc.Expect.States[name]
		id, err := conditions.ParsePropertyID(name)
		if err != nil {
			result.Error = fmt.Sprintf("invalid expected state key: %v", err)
			return result
		}
		if got := states.State(id); !stateMatches(got, want) {
			mismatches = append(mismatches, fmt.Sprintf("state of %s: got %q, want %q", name, got, want))
		}
	}

	// "errors" absent from the case means messages are not checked.
	if tc.Expect.Errors != nil {
		got := make(map[string]conditions.ErrorMessage)
		for id, msg := range session.ErrorMessages() {
			got[id.String()] = msg
		}
		if diff := cmp.Diff(tc.Expect.Errors, got, cmpopts.EquateEmpty()); diff != "" {
			mismatches = append(mismatches, "messages mismatch (-want +got):\n"+diff)
		}
	}

	if len(mismatches) > 0 {
		result.Error = "expectation mismatch"
		result.Details = strings.Join(mismatches, "\n")
		return result
	}
	result.Passed = true
	return result
}

// stateMatches treats an uncomputed state as the default visible/enabled.
func stateMatches(got, want conditions.State) bool {
	if got == want {
		return true
	}
	return got == "" && (want == conditions.StateVisible || want == conditions.StateEnabled)
}

func (t *Tester) newSession(s *suite, overlay map[string]any) *conditions.FormSession {
	session := conditions.NewFormSessionFromDocument(t.Logger, s.doc)
	for name, v := range overlay {
		session.UpdatePropertyValue(conditions.Property(name), v)
	}
	return session
}

func (t *Tester) collectTestGroups(formsDir string) ([]TestGroup, error) {
	var testGroups []TestGroup
	err := filepath.Walk(formsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && strings.HasSuffix(info.Name(), "_test") {
			return filepath.SkipDir
		}
		if info.IsDir() || !conditions.IsFormFile(path) {
			return nil
		}
		testDir := strings.TrimSuffix(path, filepath.Ext(path)) + "_test"
		if _, err := os.Stat(testDir); os.IsNotExist(err) {
			return nil
		}
		testFiles, _ := filepath.Glob(filepath.Join(testDir, "*.json"))
		if len(testFiles) > 0 {
			testGroups = append(testGroups, TestGroup{
				FormPath:  path,
				TestDir:   testDir,
				TestFiles: testFiles,
			})
		}
		return nil
	})
	return testGroups, err
}

func loadTestCase(path string) (*TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read test case %s: %w", path, err)
	}
	var tc TestCase
	if err := json.Unmarshal(data, &tc); err != nil {
		return nil, fmt.Errorf("could not parse test case %s: %w", path, err)
	}
	return &tc, nil
}

// loadValues reads a values map from a JSON or YAML file.
func loadValues(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read values file %s: %w", path, err)
	}
	var values map[string]any
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		err = json.Unmarshal(data, &values)
	} else {
		err = yaml.Unmarshal(data, &values)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse values file %s: %w", path, err)
	}
	return values, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
