// file: internal/conditions/loader_test.go

package conditions

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ui-conditions/internal/logger"
)

const sortFormYAML = `
id: sort
uiItems:
  - itemType: panel
    items:
      - itemType: control
        control:
          name: mode
          controlType: oneofselect
      - itemType: control
        control:
          name: sort_order
          label: Sort keys
          controlType: structuretable
          required: true
          subControls:
            - name: field
              controlType: selectcolumn
            - name: order
              controlType: toggletext
  - itemType: tabs
    tabs:
      - text: Advanced
        content:
          itemType: panel
          items:
            - itemType: control
              control:
                name: limit
                controlType: numberfield
conditions:
  - visible:
      parameter_refs: [limit]
      evaluate:
        condition:
          op: equals
          parameter_ref: mode
          value: custom
  - validation:
      fail_message:
        type: error
        focus_parameter_ref: sort_order
        message:
          default: Only ascending order is allowed
      evaluate:
        condition:
          op: equals
          parameter_ref: sort_order[1]
          value: Ascending
  - validation:
      fail_message:
        type: warning
        default: Limit should be positive
      evaluate:
        condition:
          op: greaterThan
          parameter_ref: limit
          value: 0
currentParameters:
  mode: default
  limit: 10
  sort_order:
    - [Na, Ascending]
    - [Drug, Descending]
datasetMetadata:
  - name: input
    fields:
      - name: Na
        type: double
        metadata:
          measure: range
          modeling_role: input
`

const sortFormJSON = `{
  "id": "sort-json",
  "uiItems": [{"itemType": "control", "control": {"name": "mode", "controlType": "textfield"}}],
  "conditions": [
    {"enabled": {"parameter_refs": ["mode"], "evaluate": {"condition": {"op": "isNotEmpty", "parameter_ref": "mode"}}}}
  ],
  "currentParameters": {"mode": "x"}
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFormLoader_LoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "sort.yaml", sortFormYAML)
	loader := NewFormLoader(logger.NewNopLogger(), nil)

	doc, err := loader.LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}
	if doc.ID != "sort" || doc.Path != path {
		t.Errorf("doc = %s at %s", doc.ID, doc.Path)
	}
	if len(doc.Conditions) != 3 {
		t.Fatalf("conditions = %d, want 3", len(doc.Conditions))
	}
	if got := doc.Conditions[1].Validation.FailMessage.Text(); got != "Only ascending order is allowed" {
		t.Errorf("nested message text = %q", got)
	}
	if doc.CurrentParameters["limit"] != float64(10) {
		t.Errorf("limit = %#v, want float64 10", doc.CurrentParameters["limit"])
	}
	if doc.DatasetMetadata[0].Fields[0].Metadata.ModelingRole != "input" {
		t.Errorf("dataset metadata = %+v", doc.DatasetMetadata)
	}

	var names []string
	for _, c := range ParseControls(doc.UIItems) {
		names = append(names, c.Name)
	}
	if diff := cmp.Diff([]string{"mode", "sort_order", "limit"}, names); diff != "" {
		t.Errorf("controls mismatch (-want +got):\n%s", diff)
	}
}

func TestFormLoader_EndToEnd(t *testing.T) {
	loader := NewFormLoader(logger.NewNopLogger(), nil)
	doc, err := loader.Parse([]byte(sortFormYAML), ".yaml")
	if err != nil {
		t.Fatal(err)
	}

	e := newTestEngine()
	idx := e.BuildIndex(doc.Conditions)
	s := NewFormSessionFromDocument(logger.NewNopLogger(), doc)

	states := e.ValidateConditions(s, idx)
	if got := states.State(Property("limit")); got != StateHidden {
		t.Errorf("limit state = %q, want hidden", got)
	}

	msg, err := e.ValidateInput(Property("sort_order").WithRow(1).WithCol(1), s, idx)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Text != "Only ascending order is allowed" || msg.Type != MessageError {
		t.Errorf("cell message = %v", msg)
	}

	s.UpdatePropertyValue(Property("limit"), -1)
	msg, _ = e.ValidateInput(Property("limit"), s, idx)
	if msg != (ErrorMessage{Type: MessageWarning, Text: "Limit should be positive"}) {
		t.Errorf("limit message = %v", msg)
	}
}

func TestFormLoader_JSON(t *testing.T) {
	loader := NewFormLoader(logger.NewNopLogger(), nil)
	doc, err := loader.Parse([]byte(sortFormJSON), ".json")
	if err != nil {
		t.Fatal(err)
	}
	if doc.ID != "sort-json" || doc.Conditions[0].Enabled == nil {
		t.Errorf("doc = %+v", doc)
	}
}

func TestFormLoader_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
		wantMsg string
	}{
		{
			name:    "two kinds",
			content: "conditions:\n  - visible: {parameter_refs: [a], evaluate: {condition: {op: isEmpty, parameter_ref: a}}}\n    enabled: {parameter_refs: [a], evaluate: {condition: {op: isEmpty, parameter_ref: a}}}\n",
			wantErr: ErrMalformedDefinition,
		},
		{
			name:    "empty and",
			content: "conditions:\n  - visible: {parameter_refs: [a], evaluate: {and: []}}\n",
			wantErr: ErrMalformedExpression,
		},
		{
			name:    "unknown item type",
			content: "uiItems:\n  - itemType: carousel\n",
			wantErr: ErrMalformedDefinition,
		},
		{
			name:    "control without name",
			content: "uiItems:\n  - itemType: control\n    control: {controlType: textfield}\n",
			wantErr: ErrMalformedDefinition,
		},
		{
			name:    "bad yaml",
			content: "conditions: [",
			wantMsg: "failed to parse YAML",
		},
	}

	loader := NewFormLoader(logger.NewNopLogger(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.Parse([]byte(tt.content), ".yaml")
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestFormLoader_UnknownOperators(t *testing.T) {
	loader := NewFormLoader(logger.NewNopLogger(), nil)
	doc, err := loader.Parse([]byte(`
conditions:
  - visible:
      parameter_refs: [a]
      evaluate:
        or:
          - condition: {op: isPurple, parameter_ref: a}
          - condition: {op: isPurple, parameter_ref: b}
          - condition: {op: equals, parameter_ref: a, value: x}
  - filter:
      parameter_ref: cols
      evaluate:
        condition: {op: dmShape, value: round}
`), ".yml")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"isPurple", "dmShape"}, loader.UnknownOperators(doc)); diff != "" {
		t.Errorf("UnknownOperators() mismatch (-want +got):\n%s", diff)
	}
}

func TestFormLoader_LoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", sortFormYAML)
	writeFile(t, dir, "nested/b.json", sortFormJSON)
	writeFile(t, dir, "a_test/case.json", `{"values": {}}`)
	writeFile(t, dir, "notes.txt", "ignored")

	docs, err := NewFormLoader(logger.NewNopLogger(), nil).LoadFromDirectory(dir)
	if err != nil {
		t.Fatalf("LoadFromDirectory() error: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("loaded %d documents, want 2", len(docs))
	}

	if _, err := NewFormLoader(logger.NewNopLogger(), nil).LoadFromDirectory(t.TempDir()); err == nil {
		t.Error("expected an error for an empty directory")
	}
}
