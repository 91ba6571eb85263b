// file: internal/conditions/types.go

package conditions

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrMalformedDefinition = errors.New("malformed condition definition")
	ErrMalformedExpression = errors.New("malformed condition expression")
	ErrParameterNotFound   = errors.New("parameter not found in property values")
	ErrUnknownControl      = errors.New("unknown control")
)

// Kind names the variant of a condition definition.
type Kind string

const (
	KindVisible      Kind = "visible"
	KindEnabled      Kind = "enabled"
	KindValidation   Kind = "validation"
	KindFilteredEnum Kind = "filtered_enum"
	KindFilter       Kind = "filter"
)

// Kinds lists every definition kind in pass order.
var Kinds = []Kind{KindVisible, KindEnabled, KindFilteredEnum, KindValidation, KindFilter}

// ConditionDefinition is a tagged variant: exactly one field is set.
type ConditionDefinition struct {
	Visible      *StateCondition        `json:"visible,omitempty" yaml:"visible,omitempty"`
	Enabled      *StateCondition        `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Validation   *ValidationCondition   `json:"validation,omitempty" yaml:"validation,omitempty"`
	FilteredEnum *FilteredEnumCondition `json:"filtered_enum,omitempty" yaml:"filtered_enum,omitempty"`
	Filter       *FilterCondition       `json:"filter,omitempty" yaml:"filter,omitempty"`
}

// StateCondition drives the visible/enabled state of the referenced controls.
type StateCondition struct {
	ParameterRefs []string `json:"parameter_refs" yaml:"parameter_refs"`
	Evaluate      *Node    `json:"evaluate" yaml:"evaluate"`

	refs []ParamRef
}

// ValidationCondition produces FailMessage when Evaluate is false.
type ValidationCondition struct {
	FailMessage FailMessage `json:"fail_message" yaml:"fail_message"`
	Evaluate    *Node       `json:"evaluate" yaml:"evaluate"`
}

// FilteredEnumCondition restricts Target's candidate values while Evaluate holds.
type FilteredEnumCondition struct {
	Target   EnumTarget `json:"target" yaml:"target"`
	Evaluate *Node      `json:"evaluate" yaml:"evaluate"`
}

type EnumTarget struct {
	ParameterRef string `json:"parameter_ref" yaml:"parameter_ref"`
	Values       []any  `json:"values" yaml:"values"`

	ref ParamRef
}

// FilterCondition restricts the dataset fields offered by a column picker.
// Leaves are evaluated once per field and carry no parameter references.
type FilterCondition struct {
	ParameterRef string `json:"parameter_ref" yaml:"parameter_ref"`
	Evaluate     *Node  `json:"evaluate" yaml:"evaluate"`
}

type FailMessage struct {
	Type              string       `json:"type" yaml:"type"`
	FocusParameterRef string       `json:"focus_parameter_ref,omitempty" yaml:"focus_parameter_ref,omitempty"`
	Message           *MessageText `json:"message,omitempty" yaml:"message,omitempty"`
	Default           string       `json:"default,omitempty" yaml:"default,omitempty"`
}

type MessageText struct {
	Default     string `json:"default" yaml:"default"`
	ResourceKey string `json:"resource_key,omitempty" yaml:"resource_key,omitempty"`
}

// Text returns the default message text; resource keys are resolved by the view layer.
func (f FailMessage) Text() string {
	if f.Message != nil && f.Message.Default != "" {
		return f.Message.Default
	}
	return f.Default
}

// ErrorMessage converts the fail message into the value stored per control.
func (f FailMessage) ErrorMessage() ErrorMessage {
	t := MessageType(f.Type)
	if t == "" {
		t = MessageError
	}
	return ErrorMessage{Type: t, Text: f.Text()}
}

// Kind reports which variant is set.
func (d *ConditionDefinition) Kind() (Kind, error) {
	if d == nil {
		return "", fmt.Errorf("%w: nil definition", ErrMalformedDefinition)
	}
	var kinds []Kind
	if d.Visible != nil {
		kinds = append(kinds, KindVisible)
	}
	if d.Enabled != nil {
		kinds = append(kinds, KindEnabled)
	}
	if d.Validation != nil {
		kinds = append(kinds, KindValidation)
	}
	if d.FilteredEnum != nil {
		kinds = append(kinds, KindFilteredEnum)
	}
	if d.Filter != nil {
		kinds = append(kinds, KindFilter)
	}
	switch len(kinds) {
	case 0:
		return "", fmt.Errorf("%w: no visible, enabled, validation, filtered_enum or filter key", ErrMalformedDefinition)
	case 1:
		return kinds[0], nil
	default:
		return "", fmt.Errorf("%w: mutually exclusive keys %v", ErrMalformedDefinition, kinds)
	}
}

// Expression returns the evaluate tree of the variant for kind.
func (d *ConditionDefinition) Expression(kind Kind) *Node {
	switch kind {
	case KindVisible:
		if d.Visible != nil {
			return d.Visible.Evaluate
		}
	case KindEnabled:
		if d.Enabled != nil {
			return d.Enabled.Evaluate
		}
	case KindValidation:
		if d.Validation != nil {
			return d.Validation.Evaluate
		}
	case KindFilteredEnum:
		if d.FilteredEnum != nil {
			return d.FilteredEnum.Evaluate
		}
	case KindFilter:
		if d.Filter != nil {
			return d.Filter.Evaluate
		}
	}
	return nil
}

// stateTargets returns the compiled parameter_refs of a visible/enabled definition.
func (d *ConditionDefinition) stateTargets(kind Kind) []ParamRef {
	switch kind {
	case KindVisible:
		return d.Visible.refs
	case KindEnabled:
		return d.Enabled.refs
	}
	return nil
}

// Node is one expression tree node: exactly one of And, Or, Condition.
type Node struct {
	And       []*Node    `json:"and,omitempty" yaml:"and,omitempty"`
	Or        []*Node    `json:"or,omitempty" yaml:"or,omitempty"`
	Condition *Condition `json:"condition,omitempty" yaml:"condition,omitempty"`
}

type Condition struct {
	Op            string `json:"op" yaml:"op"`
	ParameterRef  string `json:"parameter_ref,omitempty" yaml:"parameter_ref,omitempty"`
	Parameter2Ref string `json:"parameter_2_ref,omitempty" yaml:"parameter_2_ref,omitempty"`
	Value         any    `json:"value,omitempty" yaml:"value,omitempty"`

	ref  *ParamRef
	ref2 *ParamRef
}

// MessageType classifies an ErrorMessage.
type MessageType string

const (
	MessageError   MessageType = "error"
	MessageWarning MessageType = "warning"
	MessageInfo    MessageType = "info"
)

type ErrorMessage struct {
	Type MessageType `json:"type" yaml:"type"`
	Text string      `json:"text" yaml:"text"`
}

// DefaultMessage is the cleared state of a control's message.
func DefaultMessage() ErrorMessage {
	return ErrorMessage{Type: MessageInfo, Text: ""}
}

// IsDefault reports whether the message is the cleared info message.
func (m ErrorMessage) IsDefault() bool {
	return m.Type == MessageInfo && m.Text == ""
}

// EvalResult is either a boolean or a structured failure.
type EvalResult struct {
	value   bool
	failure *ErrorMessage
}

var (
	True  = EvalResult{value: true}
	False = EvalResult{value: false}
)

func Bool(b bool) EvalResult {
	return EvalResult{value: b}
}

func Failure(msg ErrorMessage) EvalResult {
	return EvalResult{failure: &msg}
}

// IsTrue is true only for a boolean true result.
func (r EvalResult) IsTrue() bool {
	return r.failure == nil && r.value
}

// IsFalse is true only for a boolean false result.
func (r EvalResult) IsFalse() bool {
	return r.failure == nil && !r.value
}

// Failure returns the structured failure, if any.
func (r EvalResult) Failure() (ErrorMessage, bool) {
	if r.failure == nil {
		return ErrorMessage{}, false
	}
	return *r.failure, true
}

func (r EvalResult) String() string {
	if r.failure != nil {
		return fmt.Sprintf("%s(%q)", r.failure.Type, r.failure.Text)
	}
	return strconv.FormatBool(r.value)
}

// PropertyID identifies a control's value location, optionally a column or a cell.
// The zero row/col flags mean the whole control.
type PropertyID struct {
	Name string

	row    int
	col    int
	hasRow bool
	hasCol bool
}

func Property(name string) PropertyID {
	return PropertyID{Name: name}
}

// WithCol qualifies the id with a column index.
func (id PropertyID) WithCol(col int) PropertyID {
	id.col = col
	id.hasCol = true
	return id
}

// WithRow qualifies the id with a row index.
func (id PropertyID) WithRow(row int) PropertyID {
	id.row = row
	id.hasRow = true
	return id
}

// Base drops any row/column qualification.
func (id PropertyID) Base() PropertyID {
	return PropertyID{Name: id.Name}
}

func (id PropertyID) Row() (int, bool) { return id.row, id.hasRow }
func (id PropertyID) Col() (int, bool) { return id.col, id.hasCol }

// IsCell reports whether both row and column are set.
func (id PropertyID) IsCell() bool { return id.hasRow && id.hasCol }

func (id PropertyID) String() string {
	s := id.Name
	if id.hasRow {
		s += "[" + strconv.Itoa(id.row) + "]"
	}
	if id.hasCol {
		s += "[" + strconv.Itoa(id.col) + "]"
	}
	return s
}

// CellCoordinates addresses one table cell during evaluation.
// NoRow marks column-only coordinates.
type CellCoordinates struct {
	RowIndex int
	ColIndex int
	NoRow    bool
	SkipVal  any
}

func Cell(row, col int) *CellCoordinates {
	return &CellCoordinates{RowIndex: row, ColIndex: col}
}

func ColumnOnly(col int) *CellCoordinates {
	return &CellCoordinates{ColIndex: col, NoRow: true}
}

func (c *CellCoordinates) hasRow() bool {
	return c != nil && !c.NoRow
}

// Control types with special handling.
const (
	ControlCheckbox            = "checkbox"
	ControlNumberField         = "numberfield"
	ControlPasswordField       = "passwordfield"
	ControlStructureTable      = "structuretable"
	ControlStructureListEditor = "structurelisteditor"
	ControlStructureEditor     = "structureeditor"
)

// Control is the metadata of one form control.
type Control struct {
	Name        string     `json:"name" yaml:"name"`
	Label       string     `json:"label,omitempty" yaml:"label,omitempty"`
	ControlType string     `json:"controlType" yaml:"controlType"`
	Role        string     `json:"role,omitempty" yaml:"role,omitempty"`
	Required    bool       `json:"required,omitempty" yaml:"required,omitempty"`
	DateFormat  string     `json:"dateFormat,omitempty" yaml:"dateFormat,omitempty"`
	TimeFormat  string     `json:"timeFormat,omitempty" yaml:"timeFormat,omitempty"`
	Values      []any      `json:"values,omitempty" yaml:"values,omitempty"`
	SubControls []*Control `json:"subControls,omitempty" yaml:"subControls,omitempty"`

	parent *Control
}

// DisplayLabel falls back to the name when no label is configured.
func (c *Control) DisplayLabel() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Name
}

// IsTable reports whether the control stores a list of rows.
func (c *Control) IsTable() bool {
	if c == nil {
		return false
	}
	switch c.ControlType {
	case ControlStructureTable, ControlStructureListEditor:
		return true
	}
	return false
}

// IsStructure reports whether the control is row- or column-structured.
func (c *Control) IsStructure() bool {
	return c.IsTable() || (c != nil && c.ControlType == ControlStructureEditor)
}

// Parent returns the table control owning a column sub-control.
func (c *Control) Parent() *Control {
	return c.parent
}

// DatasetSchema is one input schema of dataset metadata.
type DatasetSchema struct {
	Name   string  `json:"name" yaml:"name"`
	Fields []Field `json:"fields" yaml:"fields"`
}

type Field struct {
	Name     string        `json:"name" yaml:"name"`
	OrigName string        `json:"origName,omitempty" yaml:"origName,omitempty"`
	Schema   string        `json:"schema,omitempty" yaml:"schema,omitempty"`
	Type     string        `json:"type" yaml:"type"`
	Metadata FieldMetadata `json:"metadata" yaml:"metadata"`
}

type FieldMetadata struct {
	Measure      string `json:"measure,omitempty" yaml:"measure,omitempty"`
	ModelingRole string `json:"modeling_role,omitempty" yaml:"modeling_role,omitempty"`
}

// FlattenFields lists the fields of all schemas. With more than one schema,
// names are qualified as "schema.field" and OrigName keeps the plain name.
func FlattenFields(schemas []DatasetSchema) []Field {
	var fields []Field
	multi := len(schemas) > 1
	for i, schema := range schemas {
		schemaName := schema.Name
		if schemaName == "" {
			schemaName = strconv.Itoa(i)
		}
		for _, f := range schema.Fields {
			out := f
			if out.OrigName == "" {
				out.OrigName = f.Name
			}
			if out.Schema == "" {
				out.Schema = schemaName
			}
			if multi {
				out.Name = schemaName + "." + out.OrigName
			}
			fields = append(fields, out)
		}
	}
	return fields
}
