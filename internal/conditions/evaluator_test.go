// file: internal/conditions/evaluator_test.go

package conditions

import (
	"errors"
	"testing"

	"ui-conditions/internal/logger"
)

func newTestEvaluator() *Evaluator {
	return NewEvaluator(logger.NewNopLogger(), nil, "")
}

func evalInfo(kind Kind, values map[string]any) *EvalInfo {
	return &EvalInfo{Kind: kind, Values: NormalizeValues(values)}
}

func TestEvaluate_Combinators(t *testing.T) {
	e := newTestEvaluator()
	values := map[string]any{"a": "x", "b": "", "n": 3}

	tests := []struct {
		name string
		node *Node
		want EvalResult
	}{
		{"single true", leaf(OpIsNotEmpty, "a", nil), True},
		{"single false", leaf(OpIsNotEmpty, "b", nil), False},
		{"and all true", &Node{And: []*Node{leaf(OpIsNotEmpty, "a", nil), leaf(OpGreaterThan, "n", 1)}}, True},
		{"and one false", &Node{And: []*Node{leaf(OpIsNotEmpty, "a", nil), leaf(OpIsNotEmpty, "b", nil)}}, False},
		{"or one true", &Node{Or: []*Node{leaf(OpIsNotEmpty, "b", nil), leaf(OpEquals, "a", "x")}}, True},
		{"or all false", &Node{Or: []*Node{leaf(OpIsNotEmpty, "b", nil), leaf(OpEquals, "a", "y")}}, False},
		{
			name: "nested",
			node: &Node{And: []*Node{
				{Or: []*Node{leaf(OpIsEmpty, "a", nil), leaf(OpLessThan, "n", 5)}},
				leaf(OpIsEmpty, "b", nil),
			}},
			want: True,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(tt.node, evalInfo(KindVisible, values))
			if err != nil {
				t.Fatalf("Evaluate() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEvaluate_FailurePropagation(t *testing.T) {
	e := newTestEvaluator()
	failure := ErrorMessage{Type: MessageError, Text: "bad pairing"}
	e.Operators().Register("fails", OperatorFunc(func(*ParamInfo, *ParamInfo, Literal, *OpContext) EvalResult {
		return Failure(failure)
	}))
	values := map[string]any{"a": "x", "b": ""}

	t.Run("and returns the failure", func(t *testing.T) {
		node := &Node{And: []*Node{leaf(OpIsNotEmpty, "a", nil), leaf("fails", "a", nil)}}
		got, err := e.Evaluate(node, evalInfo(KindValidation, values))
		if err != nil {
			t.Fatal(err)
		}
		msg, ok := got.Failure()
		if !ok || msg != failure {
			t.Errorf("Evaluate() = %s, want failure %v", got, failure)
		}
	})

	t.Run("and stops at false before a failure", func(t *testing.T) {
		node := &Node{And: []*Node{leaf(OpIsNotEmpty, "b", nil), leaf("fails", "a", nil)}}
		got, _ := e.Evaluate(node, evalInfo(KindValidation, values))
		if got != False {
			t.Errorf("Evaluate() = %s, want false", got)
		}
	})

	t.Run("or does not treat a failure as true", func(t *testing.T) {
		node := &Node{Or: []*Node{leaf("fails", "a", nil), leaf(OpIsNotEmpty, "b", nil)}}
		got, _ := e.Evaluate(node, evalInfo(KindValidation, values))
		if got != False {
			t.Errorf("Evaluate() = %s, want false", got)
		}
	})
}

func TestEvaluate_Errors(t *testing.T) {
	e := newTestEvaluator()
	values := map[string]any{"a": "x"}

	tests := []struct {
		name    string
		node    *Node
		wantErr error
	}{
		{"missing parameter", leaf(OpIsEmpty, "ghost", nil), ErrParameterNotFound},
		{"missing second parameter", leaf2(OpEquals, "a", "ghost"), ErrParameterNotFound},
		{"empty node", &Node{}, ErrMalformedExpression},
		{"empty and", &Node{And: []*Node{}}, ErrMalformedExpression},
		{"error inside and", &Node{And: []*Node{leaf(OpIsNotEmpty, "a", nil), leaf(OpIsEmpty, "ghost", nil)}}, ErrParameterNotFound},
		{"leaf without parameter", &Node{Condition: &Condition{Op: OpIsEmpty}}, ErrMalformedExpression},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(tt.node, evalInfo(KindVisible, values))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Evaluate() error = %v, want %v", err, tt.wantErr)
			}
			if got != True {
				t.Errorf("Evaluate() on error = %s, want true", got)
			}
		})
	}
}

func TestEvaluate_UnknownOperatorPasses(t *testing.T) {
	e := newTestEvaluator()
	var recorded []string
	info := evalInfo(KindEnabled, map[string]any{"a": ""})
	info.unsupported = func(op string) { recorded = append(recorded, op) }

	got, err := e.Evaluate(leaf("isPurple", "a", nil), info)
	if err != nil {
		t.Fatal(err)
	}
	if got != True {
		t.Errorf("unknown operator = %s, want true", got)
	}
	if len(recorded) != 1 || recorded[0] != "isPurple" {
		t.Errorf("recorded = %v", recorded)
	}
}

func TestEvaluate_RequiredCompanionWarning(t *testing.T) {
	e := newTestEvaluator()
	node := leaf2(OpNotEquals, "start", "end")
	values := map[string]any{"start": "a", "end": ""}
	catalog := testCatalog{"end": {Name: "end", Label: "End date"}}

	t.Run("validation warns", func(t *testing.T) {
		info := evalInfo(KindValidation, values)
		info.Controls = catalog
		info.Required = []string{"end"}
		got, err := e.Evaluate(node, info)
		if err != nil {
			t.Fatal(err)
		}
		want := ErrorMessage{Type: MessageWarning, Text: "Required parameter 'End date' has no value"}
		if msg, ok := got.Failure(); !ok || msg != want {
			t.Errorf("Evaluate() = %s, want %v", got, want)
		}
	})

	t.Run("other kinds run the operator", func(t *testing.T) {
		info := evalInfo(KindVisible, values)
		info.Required = []string{"end"}
		got, _ := e.Evaluate(node, info)
		if got != True {
			t.Errorf("Evaluate() = %s, want true", got)
		}
	})

	t.Run("filled companion runs the operator", func(t *testing.T) {
		info := evalInfo(KindValidation, map[string]any{"start": "a", "end": "a"})
		info.Required = []string{"end"}
		got, _ := e.Evaluate(node, info)
		if got != False {
			t.Errorf("Evaluate() = %s, want false", got)
		}
	})
}

func TestEvaluate_TableColumn(t *testing.T) {
	e := newTestEvaluator()
	values := map[string]any{
		"sort_order": []any{[]any{"Na", "Ascending"}, []any{"Drug", "Descending"}},
	}
	node := leaf(OpEquals, "sort_order[1]", "Ascending")

	tests := []struct {
		coords *CellCoordinates
		want   EvalResult
	}{
		{Cell(0, 1), True},
		{Cell(1, 1), False},
	}
	for _, tt := range tests {
		info := evalInfo(KindValidation, values)
		info.Coords = tt.coords
		got, err := e.Evaluate(node, info)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("row %d: Evaluate() = %s, want %s", tt.coords.RowIndex, got, tt.want)
		}
	}
}

func TestEvaluate_FieldConditions(t *testing.T) {
	e := newTestEvaluator()
	field := Field{Name: "Age", Type: "integer", Metadata: FieldMetadata{Measure: "range", ModelingRole: "input"}}

	tests := []struct {
		op    string
		value any
		want  EvalResult
	}{
		{FieldOpType, "integer", True},
		{FieldOpType, []any{"string", "integer"}, True},
		{FieldOpType, "string", False},
		{FieldOpMeasurement, "range", True},
		{FieldOpRole, "target", False},
		{"dmColor", "red", True},
	}
	for _, tt := range tests {
		got, err := e.Evaluate(&Node{Condition: &Condition{Op: tt.op, Value: tt.value}}, &EvalInfo{Kind: KindFilter, Field: &field})
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("%s %v = %s, want %s", tt.op, tt.value, got, tt.want)
		}
	}
}
