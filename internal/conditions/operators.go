// file: internal/conditions/operators.go

package conditions

import (
	"sort"
	"strings"
	"sync"

	"ui-conditions/internal/logger"
)

// Built-in operator names.
const (
	OpIsEmpty                = "isEmpty"
	OpIsNotEmpty             = "isNotEmpty"
	OpEquals                 = "equals"
	OpNotEquals              = "notEquals"
	OpContains               = "contains"
	OpNotContains            = "notContains"
	OpGreaterThan            = "greaterThan"
	OpLessThan               = "lessThan"
	OpColNotExists           = "colNotExists"
	OpColDoesExists          = "colDoesExists"
	OpCellNotEmpty           = "cellNotEmpty"
	OpDMMeasurementEquals    = "dmMeasurementEquals"
	OpDMMeasurementNotEquals = "dmMeasurementNotEquals"
	OpDMTypeEquals           = "dmTypeEquals"
	OpDMTypeNotEquals        = "dmTypeNotEquals"
	OpDMRoleEquals           = "dmRoleEquals"
	OpDMRoleNotEquals        = "dmRoleNotEquals"
	OpIsDateTime             = "isDateTime"
)

// Field operators used by filter definitions; they test one dataset field.
const (
	FieldOpType        = "dmType"
	FieldOpMeasurement = "dmMeasurement"
	FieldOpRole        = "dmRole"
)

// Literal is the optional value operand of a condition.
type Literal struct {
	Value any
	Set   bool
}

// OpContext carries what operators need beyond their operands.
type OpContext struct {
	Kind   Kind
	Values map[string]any
	Fields []Field
	Coords *CellCoordinates
	Logger *logger.Logger

	unsupported func(op string)
}

// Unsupported logs that op cannot be applied to controlType and records it.
// Callers return the permissive result.
func (c *OpContext) Unsupported(op, controlType string) {
	if c.Logger != nil {
		c.Logger.Warn("operator not supported for control type, condition passes",
			"op", op,
			"controlType", controlType)
	}
	if c.unsupported != nil {
		c.unsupported(op)
	}
}

// Operator evaluates one condition. param2 is nil when the condition has no
// parameter_2_ref. Implementations must return a result for every input.
type Operator interface {
	Evaluate(param *ParamInfo, param2 *ParamInfo, lit Literal, ctx *OpContext) EvalResult
}

// OperatorFunc adapts a function to the Operator interface.
type OperatorFunc func(param *ParamInfo, param2 *ParamInfo, lit Literal, ctx *OpContext) EvalResult

func (f OperatorFunc) Evaluate(param *ParamInfo, param2 *ParamInfo, lit Literal, ctx *OpContext) EvalResult {
	return f(param, param2, lit, ctx)
}

// OperatorRegistry maps operator names to implementations.
type OperatorRegistry struct {
	mu  sync.RWMutex
	ops map[string]Operator
}

// NewOperatorRegistry returns a registry holding the built-in operators.
func NewOperatorRegistry() *OperatorRegistry {
	r := &OperatorRegistry{ops: make(map[string]Operator)}
	builtins := map[string]OperatorFunc{
		OpIsEmpty:                isEmptyOp,
		OpIsNotEmpty:             isNotEmptyOp,
		OpEquals:                 equalsOp,
		OpNotEquals:              notEqualsOp,
		OpContains:               containsOp,
		OpNotContains:            notContainsOp,
		OpGreaterThan:            greaterThanOp,
		OpLessThan:               lessThanOp,
		OpColNotExists:           colNotExistsOp,
		OpColDoesExists:          colDoesExistsOp,
		OpCellNotEmpty:           cellNotEmptyOp,
		OpDMMeasurementEquals:    dmOp(fieldMeasure, true),
		OpDMMeasurementNotEquals: dmOp(fieldMeasure, false),
		OpDMTypeEquals:           dmOp(fieldType, true),
		OpDMTypeNotEquals:        dmOp(fieldType, false),
		OpDMRoleEquals:           dmOp(fieldRole, true),
		OpDMRoleNotEquals:        dmOp(fieldRole, false),
		OpIsDateTime:             isDateTimeOp,
	}
	for name, op := range builtins {
		r.ops[name] = op
	}
	return r
}

// Register adds or replaces an operator.
func (r *OperatorRegistry) Register(name string, op Operator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[name] = op
}

func (r *OperatorRegistry) Lookup(name string) (Operator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[name]
	return op, ok
}

// Names returns the registered operator names, sorted.
func (r *OperatorRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// operand returns the second operand: param2's value when present, else the literal.
func operand(param2 *ParamInfo, lit Literal) (any, bool) {
	if param2 != nil {
		return param2.Value, !param2.Undefined
	}
	return lit.Value, lit.Set
}

func isEmptyOp(param *ParamInfo, _ *ParamInfo, _ Literal, _ *OpContext) EvalResult {
	return Bool(paramIsEmpty(param))
}

func isNotEmptyOp(param *ParamInfo, _ *ParamInfo, _ Literal, _ *OpContext) EvalResult {
	return Bool(!paramIsEmpty(param))
}

func paramIsEmpty(param *ParamInfo) bool {
	switch param.kind() {
	case kindUndefined:
		return true
	case kindString:
		return strings.TrimSpace(param.Value.(string)) == ""
	case kindNumber:
		return false
	case kindBoolean:
		return !param.Value.(bool)
	default:
		return isEmptyValue(param.Value, false)
	}
}

func equalsOp(param *ParamInfo, param2 *ParamInfo, lit Literal, _ *OpContext) EvalResult {
	if param.ControlType() == ControlPasswordField {
		return True
	}
	return Bool(paramEquals(param, param2, lit))
}

func notEqualsOp(param *ParamInfo, param2 *ParamInfo, lit Literal, _ *OpContext) EvalResult {
	if param.ControlType() == ControlPasswordField {
		return True
	}
	return Bool(!paramEquals(param, param2, lit))
}

func paramEquals(param *ParamInfo, param2 *ParamInfo, lit Literal) bool {
	target, set := operand(param2, lit)
	switch param.kind() {
	case kindUndefined:
		return !set || target == nil
	case kindObject:
		if param.Value == nil {
			return target == nil
		}
		return deepEqual(param.Value, target)
	default:
		return valuesEqual(param.Value, target)
	}
}

func containsOp(param *ParamInfo, param2 *ParamInfo, lit Literal, ctx *OpContext) EvalResult {
	if !containsSupported(param, OpContains, ctx) {
		return True
	}
	return Bool(paramContains(param, param2, lit))
}

func notContainsOp(param *ParamInfo, param2 *ParamInfo, lit Literal, ctx *OpContext) EvalResult {
	if !containsSupported(param, OpNotContains, ctx) {
		return True
	}
	return Bool(!paramContains(param, param2, lit))
}

func containsSupported(param *ParamInfo, op string, ctx *OpContext) bool {
	switch ct := param.ControlType(); ct {
	case ControlCheckbox, ControlNumberField, ControlPasswordField:
		ctx.Unsupported(op, ct)
		return false
	}
	return true
}

func paramContains(param *ParamInfo, param2 *ParamInfo, lit Literal) bool {
	target, set := operand(param2, lit)
	if !set {
		return false
	}
	switch v := param.Value.(type) {
	case string:
		s, ok := target.(string)
		return ok && strings.Contains(v, s)
	case []any:
		return flattenContains(v, target)
	}
	return false
}

func greaterThanOp(param *ParamInfo, param2 *ParamInfo, lit Literal, _ *OpContext) EvalResult {
	return compareBound(param, param2, lit, func(a, b float64) bool { return a > b })
}

func lessThanOp(param *ParamInfo, param2 *ParamInfo, lit Literal, _ *OpContext) EvalResult {
	return compareBound(param, param2, lit, func(a, b float64) bool { return a < b })
}

// compareBound applies a numeric bound. A missing value or bound passes, the
// literal "null" disables the bound, and any non-number operand fails.
func compareBound(param *ParamInfo, param2 *ParamInfo, lit Literal, cmpFn func(a, b float64) bool) EvalResult {
	switch param.kind() {
	case kindUndefined:
		return True
	case kindNumber:
	case kindObject:
		if param.Value == nil {
			return True
		}
		return False
	default:
		return False
	}

	target, set := operand(param2, lit)
	if !set || target == nil {
		return True
	}
	if s, ok := target.(string); ok && s == "null" {
		return True
	}
	bound, ok := toFloat(target)
	if !ok {
		return False
	}
	v, _ := toFloat(param.Value)
	return Bool(cmpFn(v, bound))
}

func colNotExistsOp(param *ParamInfo, _ *ParamInfo, _ Literal, ctx *OpContext) EvalResult {
	if isEmptyValue(param.Value, param.Undefined) {
		return True
	}
	if ctx.Coords != nil && ctx.Coords.SkipVal != nil && valuesEqual(param.Value, ctx.Coords.SkipVal) {
		return True
	}
	if _, found := findField(ctx.Fields, param.Value); found {
		return False
	}
	if param.Ref.HasColumn && ctx.Coords.hasRow() {
		for row, v := range columnValues(ctx.Values[param.Ref.Name], param.Ref.Column) {
			if row != ctx.Coords.RowIndex && valuesEqual(v, param.Value) {
				return False
			}
		}
	}
	return True
}

func colDoesExistsOp(param *ParamInfo, _ *ParamInfo, _ Literal, ctx *OpContext) EvalResult {
	if isEmptyValue(param.Value, param.Undefined) {
		return True
	}
	_, found := findField(ctx.Fields, param.Value)
	return Bool(found)
}

func cellNotEmptyOp(param *ParamInfo, _ *ParamInfo, _ Literal, ctx *OpContext) EvalResult {
	if !param.Control.IsStructure() {
		ctx.Unsupported(OpCellNotEmpty, param.ControlType())
		return True
	}
	if param.Ref.HasColumn && !ctx.Coords.hasRow() {
		cells, _ := param.Value.([]any)
		for _, cell := range cells {
			if !cellFilled(cell) {
				return False
			}
		}
		return True
	}
	if param.Undefined {
		return False
	}
	return Bool(cellFilled(param.Value))
}

func cellFilled(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(val) != ""
	}
	return true
}

// fieldMatches accepts a field name or a {field_name, link_ref} reference.
func fieldMatches(f Field, ref any) bool {
	switch r := ref.(type) {
	case string:
		name := strings.TrimSpace(r)
		return f.Name == name
	case map[string]any:
		name, _ := r["field_name"].(string)
		if name == "" || f.OrigName != name {
			return false
		}
		link, _ := r["link_ref"].(string)
		return link == "" || f.Schema == link
	}
	return false
}

func findField(fields []Field, ref any) (Field, bool) {
	for _, f := range fields {
		if fieldMatches(f, ref) {
			return f, true
		}
	}
	return Field{}, false
}

func fieldMeasure(f Field) string { return f.Metadata.Measure }
func fieldType(f Field) string    { return f.Type }
func fieldRole(f Field) string    { return f.Metadata.ModelingRole }

// dmOp builds the metadata indirection operators: the parameter value names a
// dataset field whose attribute is compared with the literal. A field that
// cannot be found never equals anything.
func dmOp(attr func(Field) string, equal bool) OperatorFunc {
	return func(param *ParamInfo, param2 *ParamInfo, lit Literal, ctx *OpContext) EvalResult {
		field, found := findField(ctx.Fields, param.Value)
		if !found {
			return Bool(!equal)
		}
		target, _ := operand(param2, lit)
		return Bool(attrMatches(attr(field), target) == equal)
	}
}

// attrMatches compares a metadata attribute with a string or a list of strings.
func attrMatches(attr string, target any) bool {
	switch t := target.(type) {
	case string:
		return attr == t
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && s == attr {
				return true
			}
		}
	}
	return false
}

// fieldOperators test a single dataset field for filter definitions.
var fieldOperators = map[string]func(Field) string{
	FieldOpType:        fieldType,
	FieldOpMeasurement: fieldMeasure,
	FieldOpRole:        fieldRole,
}

func isDateTimeOp(param *ParamInfo, _ *ParamInfo, lit Literal, _ *OpContext) EvalResult {
	if isEmptyValue(param.Value, param.Undefined) {
		return True
	}
	s, ok := param.Value.(string)
	if !ok {
		return False
	}
	format, _ := lit.Value.(string)
	return Bool(validDateTime(s, format))
}
