// file: internal/conditions/evaluator.go

package conditions

import (
	"fmt"

	"ui-conditions/internal/logger"
)

// EvalInfo is the context of one expression evaluation.
type EvalInfo struct {
	Kind     Kind
	Values   map[string]any
	Controls ControlCatalog
	Fields   []Field
	Coords   *CellCoordinates
	Required []string

	// Field is the dataset field under test in filter evaluations.
	Field *Field

	unsupported func(op string)
}

func (info *EvalInfo) isRequired(name string) bool {
	for _, r := range info.Required {
		if r == name {
			return true
		}
	}
	return false
}

// Evaluator walks expression trees and dispatches leaves to operators.
type Evaluator struct {
	logger          *logger.Logger
	operators       *OperatorRegistry
	requiredMessage string
}

// NewEvaluator creates an Evaluator. A nil registry uses the built-in operators.
func NewEvaluator(log *logger.Logger, ops *OperatorRegistry, requiredMessage string) *Evaluator {
	if ops == nil {
		ops = NewOperatorRegistry()
	}
	if requiredMessage == "" {
		requiredMessage = DefaultRequiredMessage
	}
	return &Evaluator{logger: log, operators: ops, requiredMessage: requiredMessage}
}

// DefaultRequiredMessage is used when no template is configured.
const DefaultRequiredMessage = "Required parameter '%s' has no value"

func (e *Evaluator) Operators() *OperatorRegistry {
	return e.operators
}

// Evaluate returns the result of node. Errors are structural or resolution
// errors; user-input failures are reported as Failure results.
func (e *Evaluator) Evaluate(node *Node, info *EvalInfo) (EvalResult, error) {
	if node == nil {
		return True, fmt.Errorf("%w: missing node", ErrMalformedExpression)
	}

	switch {
	case node.And != nil && node.Or == nil && node.Condition == nil:
		return e.evaluateAnd(node.And, info)
	case node.Or != nil && node.And == nil && node.Condition == nil:
		return e.evaluateOr(node.Or, info)
	case node.Condition != nil && node.And == nil && node.Or == nil:
		return e.evaluateCondition(node.Condition, info)
	default:
		return True, fmt.Errorf("%w: node must have exactly one of and, or, condition", ErrMalformedExpression)
	}
}

// evaluateAnd stops at the first false and returns the first failure as is.
func (e *Evaluator) evaluateAnd(children []*Node, info *EvalInfo) (EvalResult, error) {
	if len(children) == 0 {
		return True, fmt.Errorf("%w: empty and", ErrMalformedExpression)
	}
	for i, child := range children {
		res, err := e.Evaluate(child, info)
		if err != nil {
			return True, err
		}
		if res.IsFalse() {
			e.logger.Debug("and short-circuited", "index", i)
			return False, nil
		}
		if _, failed := res.Failure(); failed {
			return res, nil
		}
	}
	return True, nil
}

// evaluateOr stops only at a boolean true; failures do not count as true.
func (e *Evaluator) evaluateOr(children []*Node, info *EvalInfo) (EvalResult, error) {
	if len(children) == 0 {
		return True, fmt.Errorf("%w: empty or", ErrMalformedExpression)
	}
	for i, child := range children {
		res, err := e.Evaluate(child, info)
		if err != nil {
			return True, err
		}
		if res.IsTrue() {
			e.logger.Debug("or short-circuited", "index", i)
			return True, nil
		}
	}
	return False, nil
}

func (e *Evaluator) evaluateCondition(cond *Condition, info *EvalInfo) (EvalResult, error) {
	if info.Field != nil {
		return e.evaluateFieldCondition(cond, *info.Field), nil
	}

	ref, ref2, err := cond.paramRefs()
	if err != nil {
		return True, err
	}
	if ref == nil {
		return True, fmt.Errorf("%w: condition %q without parameter_ref", ErrMalformedExpression, cond.Op)
	}

	param, err := resolveParam(*ref, info.Values, info.Controls, info.Coords)
	if err != nil {
		return True, err
	}

	var param2 *ParamInfo
	if ref2 != nil {
		p2, err := resolveParam(*ref2, info.Values, info.Controls, info.Coords)
		if err != nil {
			return True, err
		}
		if info.Kind == KindValidation && info.isRequired(ref2.Name) && isEmptyValue(p2.Value, p2.Undefined) {
			e.logger.Debug("companion parameter required but empty", "parameter", ref2.String())
			return Failure(ErrorMessage{
				Type: MessageWarning,
				Text: fmt.Sprintf(e.requiredMessage, p2.Label()),
			}), nil
		}
		param2 = &p2
	}

	op, ok := e.operators.Lookup(cond.Op)
	if !ok {
		e.logger.Warn("unknown operator, condition passes", "op", cond.Op, "parameter", ref.String())
		if info.unsupported != nil {
			info.unsupported(cond.Op)
		}
		return True, nil
	}

	ctx := &OpContext{
		Kind:        info.Kind,
		Values:      info.Values,
		Fields:      info.Fields,
		Coords:      info.Coords,
		Logger:      e.logger,
		unsupported: info.unsupported,
	}
	lit := Literal{Value: cond.Value, Set: cond.Value != nil}

	result := op.Evaluate(&param, param2, lit, ctx)

	e.logger.Debug("condition evaluation result",
		"op", cond.Op,
		"parameter", ref.String(),
		"value", param.Value,
		"expected", cond.Value,
		"result", result.String())

	return result, nil
}

func (e *Evaluator) evaluateFieldCondition(cond *Condition, field Field) EvalResult {
	attr, ok := fieldOperators[cond.Op]
	if !ok {
		e.logger.Warn("unknown field operator, field passes", "op", cond.Op, "field", field.Name)
		return True
	}
	return Bool(attrMatches(attr(field), cond.Value))
}

// paramRefs returns the compiled references, parsing them on the fly for
// conditions built without the parser.
func (c *Condition) paramRefs() (*ParamRef, *ParamRef, error) {
	ref, ref2 := c.ref, c.ref2
	if ref == nil && c.ParameterRef != "" {
		r, err := ParseParamRef(c.ParameterRef)
		if err != nil {
			return nil, nil, err
		}
		ref = &r
	}
	if ref2 == nil && c.Parameter2Ref != "" {
		r, err := ParseParamRef(c.Parameter2Ref)
		if err != nil {
			return nil, nil, err
		}
		ref2 = &r
	}
	return ref, ref2, nil
}
