// file: internal/conditions/resolver_test.go

package conditions

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// testCatalog is a minimal ControlCatalog over a fixed set of controls.
type testCatalog map[string]*Control

func (c testCatalog) Control(id PropertyID) *Control {
	ctl, ok := c[id.Name]
	if !ok {
		return nil
	}
	if col, hasCol := id.Col(); hasCol && col < len(ctl.SubControls) {
		return ctl.SubControls[col]
	}
	return ctl
}

func (c testCatalog) Controls() []*Control {
	out := make([]*Control, 0, len(c))
	for _, ctl := range c {
		out = append(out, ctl)
	}
	return out
}

func TestResolveParam(t *testing.T) {
	values := map[string]any{
		"age":  "5",
		"keys": []any{[]any{"Na", "Ascending"}, []any{"Drug", "Descending"}},
		"pair": []any{"first", "second"},
		"none": nil,
	}
	catalog := testCatalog{
		"keys": {Name: "keys", ControlType: ControlStructureTable},
		"pair": {Name: "pair", ControlType: ControlStructureEditor},
	}

	tests := []struct {
		name          string
		ref           string
		coords        *CellCoordinates
		wantValue     any
		wantUndefined bool
		wantID        string
	}{
		{name: "plain value", ref: "age", wantValue: "5", wantID: "age"},
		{name: "explicit null", ref: "none", wantValue: nil, wantID: "none"},
		{name: "cell", ref: "keys[1]", coords: Cell(0, 1), wantValue: "Ascending", wantID: "keys[0][1]"},
		{name: "second row cell", ref: "keys[1]", coords: Cell(1, 1), wantValue: "Descending", wantID: "keys[1][1]"},
		{name: "missing row", ref: "keys[1]", coords: Cell(4, 1), wantUndefined: true, wantID: "keys[4][1]"},
		{name: "whole column", ref: "keys[0]", wantValue: []any{"Na", "Drug"}, wantID: "keys[0]"},
		{name: "structure by column", ref: "pair", coords: ColumnOnly(1), wantValue: "second", wantID: "pair[1]"},
		{name: "structure out of range", ref: "pair", coords: ColumnOnly(7), wantUndefined: true, wantID: "pair[7]"},
		{
			name:      "table ignores column-only coords",
			ref:       "keys",
			coords:    ColumnOnly(1),
			wantValue: values["keys"],
			wantID:    "keys",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := resolveParam(MustParseParamRef(tt.ref), values, catalog, tt.coords)
			if err != nil {
				t.Fatalf("resolveParam() unexpected error: %v", err)
			}
			if info.Undefined != tt.wantUndefined {
				t.Errorf("Undefined = %v, want %v", info.Undefined, tt.wantUndefined)
			}
			if diff := cmp.Diff(tt.wantValue, info.Value); diff != "" {
				t.Errorf("Value mismatch (-want +got):\n%s", diff)
			}
			if info.ID.String() != tt.wantID {
				t.Errorf("ID = %s, want %s", info.ID, tt.wantID)
			}
		})
	}
}

func TestResolveParam_Missing(t *testing.T) {
	_, err := resolveParam(MustParseParamRef("ghost"), map[string]any{}, nil, nil)
	if !errors.Is(err, ErrParameterNotFound) {
		t.Fatalf("expected ErrParameterNotFound, got %v", err)
	}
}

func TestResolveParam_Control(t *testing.T) {
	catalog := testCatalog{"pw": {Name: "pw", Label: "Password", ControlType: ControlPasswordField}}
	info, err := resolveParam(MustParseParamRef("pw"), map[string]any{"pw": "x"}, catalog, nil)
	if err != nil {
		t.Fatal(err)
	}
	if info.ControlType() != ControlPasswordField {
		t.Errorf("ControlType() = %q", info.ControlType())
	}
	if info.Label() != "Password" {
		t.Errorf("Label() = %q", info.Label())
	}
}
