// file: internal/conditions/operators_test.go

package conditions

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"ui-conditions/internal/logger"
)

func param(value any) *ParamInfo {
	return &ParamInfo{Ref: ParamRef{Name: "p"}, Value: NormalizeValue(value)}
}

func undefinedParam() *ParamInfo {
	return &ParamInfo{Ref: ParamRef{Name: "p"}, Undefined: true}
}

func typedParam(value any, controlType string) *ParamInfo {
	p := param(value)
	p.Control = &Control{Name: "p", ControlType: controlType}
	return p
}

func lit(v any) Literal {
	return Literal{Value: NormalizeValue(v), Set: v != nil}
}

func testOpContext() *OpContext {
	return &OpContext{Logger: logger.NewNopLogger()}
}

func runOp(t *testing.T, name string, p, p2 *ParamInfo, l Literal, ctx *OpContext) EvalResult {
	t.Helper()
	op, ok := NewOperatorRegistry().Lookup(name)
	if !ok {
		t.Fatalf("operator %s not registered", name)
	}
	return op.Evaluate(p, p2, l, ctx)
}

func TestEmptinessOperators(t *testing.T) {
	tests := []struct {
		name      string
		param     *ParamInfo
		wantEmpty bool
	}{
		{"undefined", undefinedParam(), true},
		{"null", param(nil), true},
		{"empty string", param(""), true},
		{"blank string", param("   "), true},
		{"string", param("5"), false},
		{"zero", param(0), false},
		{"empty list", param([]any{}), true},
		{"list", param([]any{"a"}), false},
		{"empty map", param(map[string]any{}), true},
		{"false", param(false), true},
		{"true", param(true), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := runOp(t, OpIsEmpty, tt.param, nil, Literal{}, testOpContext()); got != Bool(tt.wantEmpty) {
				t.Errorf("isEmpty = %s, want %v", got, tt.wantEmpty)
			}
			if got := runOp(t, OpIsNotEmpty, tt.param, nil, Literal{}, testOpContext()); got != Bool(!tt.wantEmpty) {
				t.Errorf("isNotEmpty = %s, want %v", got, !tt.wantEmpty)
			}
		})
	}
}

func TestEqualityOperators(t *testing.T) {
	tests := []struct {
		name      string
		param     *ParamInfo
		param2    *ParamInfo
		literal   Literal
		wantEqual bool
	}{
		{"trimmed strings", param(" Ascending "), nil, lit("Ascending"), true},
		{"different strings", param("a"), nil, lit("b"), false},
		{"numbers", param(5), nil, lit(5.0), true},
		{"number vs string", param(5), nil, lit("5"), false},
		{"booleans", param(true), nil, lit(true), true},
		{"deep lists", param([]any{"a", []any{1}}), nil, lit([]any{"a", []any{1}}), true},
		{"list order", param([]any{"a", "b"}), nil, lit([]any{"b", "a"}), false},
		{"null vs unset", param(nil), nil, Literal{}, true},
		{"null vs value", param(nil), nil, lit("x"), false},
		{"undefined vs unset", undefinedParam(), nil, Literal{}, true},
		{"second parameter", param("x"), param("x"), Literal{}, true},
		{"second parameter differs", param("x"), param("y"), lit("x"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := runOp(t, OpEquals, tt.param, tt.param2, tt.literal, testOpContext()); got != Bool(tt.wantEqual) {
				t.Errorf("equals = %s, want %v", got, tt.wantEqual)
			}
			if got := runOp(t, OpNotEquals, tt.param, tt.param2, tt.literal, testOpContext()); got != Bool(!tt.wantEqual) {
				t.Errorf("notEquals = %s, want %v", got, !tt.wantEqual)
			}
		})
	}

	t.Run("password fields never compare", func(t *testing.T) {
		pw := typedParam("secret", ControlPasswordField)
		for _, op := range []string{OpEquals, OpNotEquals} {
			if got := runOp(t, op, pw, nil, lit("other"), testOpContext()); got != True {
				t.Errorf("%s on passwordfield = %s, want true", op, got)
			}
		}
	})
}

func TestContainsOperators(t *testing.T) {
	tests := []struct {
		name         string
		param        *ParamInfo
		literal      Literal
		wantContains bool
	}{
		{"substring", param("hello world"), lit("lo w"), true},
		{"missing substring", param("hello"), lit("xyz"), false},
		{"non string target", param("5"), lit(5), false},
		{"list member", param([]any{"a", "b"}), lit("b"), true},
		{"nested list member", param([]any{"a", []any{"b", []any{"c"}}}), lit("c"), true},
		{"list non member", param([]any{"a"}), lit("z"), false},
		{"number", param(5), lit(5), false},
		{"no target", param("abc"), Literal{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := runOp(t, OpContains, tt.param, nil, tt.literal, testOpContext()); got != Bool(tt.wantContains) {
				t.Errorf("contains = %s, want %v", got, tt.wantContains)
			}
			if got := runOp(t, OpNotContains, tt.param, nil, tt.literal, testOpContext()); got != Bool(!tt.wantContains) {
				t.Errorf("notContains = %s, want %v", got, !tt.wantContains)
			}
		})
	}
}

func TestContainsUnsupportedControl(t *testing.T) {
	for _, controlType := range []string{ControlCheckbox, ControlNumberField, ControlPasswordField} {
		t.Run(controlType, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			var recorded []string
			ctx := &OpContext{
				Logger:      logger.New(zap.New(core)),
				unsupported: func(op string) { recorded = append(recorded, op) },
			}

			got := runOp(t, OpContains, typedParam([]any{"a"}, controlType), nil, lit("zzz"), ctx)
			if got != True {
				t.Errorf("contains on %s = %s, want true", controlType, got)
			}
			if n := logs.FilterMessage("operator not supported for control type, condition passes").Len(); n != 1 {
				t.Errorf("logged %d warnings, want exactly 1", n)
			}
			if len(recorded) != 1 || recorded[0] != OpContains {
				t.Errorf("recorded = %v", recorded)
			}
		})
	}
}

func TestBoundOperators(t *testing.T) {
	tests := []struct {
		name    string
		param   *ParamInfo
		param2  *ParamInfo
		literal Literal
		wantGT  bool
		wantLT  bool
	}{
		{"greater", param(5), nil, lit(3), true, false},
		{"less", param(1), nil, lit(3), false, true},
		{"equal", param(3), nil, lit(3), false, false},
		{"null sentinel", param(5), nil, lit("null"), true, true},
		{"string bound", param(5), nil, lit("3"), false, false},
		{"no bound", param(5), nil, Literal{}, true, true},
		{"string value", param("5"), nil, lit(3), false, false},
		{"boolean value", param(true), nil, lit(3), false, false},
		{"undefined value", undefinedParam(), nil, lit(3), true, true},
		{"null value", param(nil), nil, lit(3), true, true},
		{"second parameter", param(5), param(7), Literal{}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := runOp(t, OpGreaterThan, tt.param, tt.param2, tt.literal, testOpContext()); got != Bool(tt.wantGT) {
				t.Errorf("greaterThan = %s, want %v", got, tt.wantGT)
			}
			if got := runOp(t, OpLessThan, tt.param, tt.param2, tt.literal, testOpContext()); got != Bool(tt.wantLT) {
				t.Errorf("lessThan = %s, want %v", got, tt.wantLT)
			}
		})
	}
}

var testFields = FlattenFields([]DatasetSchema{
	{Name: "0", Fields: []Field{
		{Name: "Age", Type: "integer", Metadata: FieldMetadata{Measure: "range", ModelingRole: "input"}},
		{Name: "Drug", Type: "string", Metadata: FieldMetadata{Measure: "set", ModelingRole: "target"}},
	}},
})

func TestColumnExistenceOperators(t *testing.T) {
	values := map[string]any{
		"renames": []any{[]any{"Age", "New"}, []any{"Drug", "New"}, []any{"Na", "Other"}},
	}

	tests := []struct {
		name         string
		param        *ParamInfo
		coords       *CellCoordinates
		wantNotExist bool
		wantExists   bool
	}{
		{"dataset field", param("Age"), nil, false, true},
		{"unknown field", param("Height"), nil, true, false},
		{"empty value", param(""), nil, true, true},
		{"structured reference", param(map[string]any{"field_name": "Drug", "link_ref": "0"}), nil, false, true},
		{"structured reference other schema", param(map[string]any{"field_name": "Drug", "link_ref": "1"}), nil, true, false},
		{"skip value", param("Age"), &CellCoordinates{SkipVal: "Age"}, true, true},
		{
			name:         "duplicate in another row",
			param:        &ParamInfo{Ref: MustParseParamRef("renames[1]"), Value: "New"},
			coords:       Cell(0, 1),
			wantNotExist: false,
			wantExists:   false,
		},
		{
			name:         "unique in its column",
			param:        &ParamInfo{Ref: MustParseParamRef("renames[1]"), Value: "Other"},
			coords:       Cell(2, 1),
			wantNotExist: true,
			wantExists:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := &OpContext{Fields: testFields, Values: values, Coords: tt.coords, Logger: logger.NewNopLogger()}
			if got := runOp(t, OpColNotExists, tt.param, nil, Literal{}, ctx); got != Bool(tt.wantNotExist) {
				t.Errorf("colNotExists = %s, want %v", got, tt.wantNotExist)
			}
			if got := runOp(t, OpColDoesExists, tt.param, nil, Literal{}, ctx); got != Bool(tt.wantExists) {
				t.Errorf("colDoesExists = %s, want %v", got, tt.wantExists)
			}
		})
	}
}

func TestCellNotEmpty(t *testing.T) {
	table := &Control{Name: "t", ControlType: ControlStructureTable}

	tests := []struct {
		name   string
		param  *ParamInfo
		coords *CellCoordinates
		want   EvalResult
	}{
		{"filled cell", &ParamInfo{Ref: MustParseParamRef("t[0]"), Value: "x", Control: table}, Cell(0, 0), True},
		{"blank cell", &ParamInfo{Ref: MustParseParamRef("t[0]"), Value: "  ", Control: table}, Cell(0, 0), False},
		{"absent cell", &ParamInfo{Ref: MustParseParamRef("t[0]"), Undefined: true, Control: table}, Cell(3, 0), False},
		{"null cell", &ParamInfo{Ref: MustParseParamRef("t[0]"), Value: nil, Control: table}, Cell(0, 0), False},
		{"whole column filled", &ParamInfo{Ref: MustParseParamRef("t[0]"), Value: []any{"a", 1.0}, Control: table}, nil, True},
		{"whole column with gap", &ParamInfo{Ref: MustParseParamRef("t[0]"), Value: []any{"a", ""}, Control: table}, nil, False},
		{"not a structure", typedParam("", "textfield"), nil, True},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := &OpContext{Coords: tt.coords, Logger: logger.NewNopLogger()}
			if got := runOp(t, OpCellNotEmpty, tt.param, nil, Literal{}, ctx); got != tt.want {
				t.Errorf("cellNotEmpty = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMetadataOperators(t *testing.T) {
	tests := []struct {
		op    string
		field string
		value any
		want  EvalResult
	}{
		{OpDMMeasurementEquals, "Age", "range", True},
		{OpDMMeasurementEquals, "Drug", "range", False},
		{OpDMMeasurementNotEquals, "Drug", "range", True},
		{OpDMTypeEquals, "Age", "integer", True},
		{OpDMTypeNotEquals, "Age", "integer", False},
		{OpDMTypeNotEquals, "Drug", []any{"integer", "real"}, True},
		{OpDMRoleEquals, "Drug", "target", True},
		{OpDMRoleNotEquals, "Drug", "target", False},
		{OpDMMeasurementEquals, "Missing", "range", False},
		{OpDMMeasurementNotEquals, "Missing", "range", True},
	}

	for _, tt := range tests {
		t.Run(tt.op+"/"+tt.field, func(t *testing.T) {
			ctx := &OpContext{Fields: testFields, Logger: logger.NewNopLogger()}
			if got := runOp(t, tt.op, param(tt.field), nil, lit(tt.value), ctx); got != tt.want {
				t.Errorf("%s(%s, %v) = %s, want %s", tt.op, tt.field, tt.value, got, tt.want)
			}
		})
	}
}

func TestIsDateTime(t *testing.T) {
	tests := []struct {
		name   string
		param  *ParamInfo
		format Literal
		want   EvalResult
	}{
		{"date", param("2024-02-29"), Literal{}, True},
		{"date time", param("2024-02-29T10:20:30"), Literal{}, True},
		{"date time zone", param("2024-02-29T10:20:30.123Z"), Literal{}, True},
		{"invalid day", param("2023-02-29"), Literal{}, False},
		{"garbage", param("yesterday"), Literal{}, False},
		{"empty", param(""), Literal{}, True},
		{"undefined", undefinedParam(), Literal{}, True},
		{"number", param(20240229), Literal{}, False},
		{"time", param("10:20:30Z"), lit("time"), True},
		{"time with offset", param("10:20:30+02:00"), lit("time"), True},
		{"time without zone", param("10:20:30"), lit("time"), False},
		{"moment format", param("29/02/2024"), lit("DD/MM/YYYY"), True},
		{"moment format mismatch", param("2024-02-29"), lit("DD/MM/YYYY"), False},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := runOp(t, OpIsDateTime, tt.param, nil, tt.format, testOpContext()); got != tt.want {
				t.Errorf("isDateTime = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestOperatorRegistry(t *testing.T) {
	r := NewOperatorRegistry()
	if len(r.Names()) != 18 {
		t.Errorf("built-in operators = %d, want 18", len(r.Names()))
	}
	r.Register("always", OperatorFunc(func(*ParamInfo, *ParamInfo, Literal, *OpContext) EvalResult { return False }))
	op, ok := r.Lookup("always")
	if !ok {
		t.Fatal("registered operator not found")
	}
	if got := op.Evaluate(param("x"), nil, Literal{}, testOpContext()); got != False {
		t.Errorf("custom operator = %s", got)
	}
}

func TestGoLayout(t *testing.T) {
	tests := map[string]string{
		"YYYY-MM-DD":         "2006-01-02",
		"DD/MM/YY":           "02/01/06",
		"HH:mm:ss":           "15:04:05",
		"h:mm A":             "3:04 PM",
		"MMMM D, YYYY":       "January 2, 2006",
		"HH:mm:ss.SSSZ":      "15:04:05.000-07:00",
		"YYYY-MM-DD[T]HH:mm": "2006-01-02T15:04",
	}
	for in, want := range tests {
		if got := GoLayout(in); got != want {
			t.Errorf("GoLayout(%q) = %q, want %q", in, got, want)
		}
	}
}
