// file: internal/conditions/orchestrator.go

package conditions

import (
	"fmt"
	"time"

	"ui-conditions/config"
	"ui-conditions/internal/logger"
	"ui-conditions/internal/metrics"
)

// Options tune the engine.
type Options struct {
	RequiredMessage   string
	DefaultDateFormat string
	DefaultTimeFormat string
	// MaxTableRows bounds the rows visited per table in one pass; 0 is unlimited.
	MaxTableRows int
}

func OptionsFromConfig(cfg config.ConditionsConfig) Options {
	return Options{
		RequiredMessage:   cfg.RequiredMessage,
		DefaultDateFormat: cfg.DefaultDateFormat,
		DefaultTimeFormat: cfg.DefaultTimeFormat,
		MaxTableRows:      cfg.MaxTableRows,
	}
}

// Control roles with a built-in format check.
const (
	RoleDate = "date"
	RoleTime = "time"
)

// Engine orchestrates the state, enum and validation passes of a form.
type Engine struct {
	logger    *logger.Logger
	metrics   *metrics.Metrics
	evaluator *Evaluator
	opts      Options
}

// NewEngine creates an engine with the built-in operators. m may be nil.
func NewEngine(log *logger.Logger, m *metrics.Metrics, opts Options) *Engine {
	if opts.RequiredMessage == "" {
		opts.RequiredMessage = DefaultRequiredMessage
	}
	if opts.DefaultDateFormat == "" {
		opts.DefaultDateFormat = "YYYY-MM-DD"
	}
	if opts.DefaultTimeFormat == "" {
		opts.DefaultTimeFormat = "HH:mm:ss"
	}
	return &Engine{
		logger:    log,
		metrics:   m,
		evaluator: NewEvaluator(log, NewOperatorRegistry(), opts.RequiredMessage),
		opts:      opts,
	}
}

// Operators exposes the registry for custom operators.
func (e *Engine) Operators() *OperatorRegistry {
	return e.evaluator.Operators()
}

// BuildIndex parses every definition. Malformed definitions are logged and skipped.
func (e *Engine) BuildIndex(defs []*ConditionDefinition) *DefinitionIndex {
	idx := NewDefinitionIndex(e.logger)
	for i, def := range defs {
		kind, err := def.Kind()
		if err == nil {
			err = ParseConditions(idx, def, kind)
		}
		if err != nil {
			e.logger.Warn("skipping malformed condition", "index", i, "error", err)
			if e.metrics != nil {
				e.metrics.IncDefinitionErrors(string(kind))
			}
		}
	}
	if e.metrics != nil {
		for _, kind := range Kinds {
			e.metrics.SetDefinitionsActive(string(kind), float64(idx.Count(kind)))
		}
	}
	return idx
}

func (e *Engine) evalInfo(kind Kind, c Controller, values map[string]any, fields []Field, coords *CellCoordinates) *EvalInfo {
	return &EvalInfo{
		Kind:        kind,
		Values:      values,
		Controls:    c,
		Fields:      fields,
		Coords:      coords,
		Required:    c.RequiredParameters(),
		unsupported: e.recordUnsupported,
	}
}

func (e *Engine) recordUnsupported(op string) {
	if e.metrics != nil {
		e.metrics.IncUnsupported(op)
	}
}

func (e *Engine) observe(kind Kind, res EvalResult, err error) {
	if e.metrics == nil {
		return
	}
	switch {
	case err != nil:
		e.metrics.IncDefinitionErrors(string(kind))
		return
	case res.IsTrue():
		e.metrics.IncEvaluations(string(kind), "true")
	case res.IsFalse():
		e.metrics.IncEvaluations(string(kind), "false")
	default:
		e.metrics.IncEvaluations(string(kind), "failure")
	}
}

func (e *Engine) observePass(pass string, start time.Time) {
	if e.metrics != nil {
		e.metrics.ObservePassDuration(pass, time.Since(start))
	}
}

// rowsOf returns the row indexes visited for a table value.
func (e *Engine) rowsOf(name string, value any) int {
	rows := rowCount(value)
	if e.opts.MaxTableRows > 0 && rows > e.opts.MaxTableRows {
		e.logger.Warn("table exceeds row limit, extra rows skipped",
			"control", name, "rows", rows, "limit", e.opts.MaxTableRows)
		rows = e.opts.MaxTableRows
	}
	return rows
}

type evaluation struct {
	entry  Entry
	coords *CellCoordinates
}

type evaluationKey struct {
	def    *ConditionDefinition
	row    int
	hasRow bool
}

// evaluations lists the (definition, coordinates) pairs of a pass in index
// order. Column keys expand to one evaluation per row; group definitions
// reached from several keys are visited once per row.
func (e *Engine) evaluations(kind Kind, idx *DefinitionIndex, values map[string]any) []evaluation {
	var out []evaluation
	seen := make(map[evaluationKey]struct{})
	visit := func(entry Entry, coords *CellCoordinates) {
		k := evaluationKey{def: entry.Definition}
		if coords.hasRow() {
			k.row, k.hasRow = coords.RowIndex, true
		}
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, evaluation{entry: entry, coords: coords})
	}

	for _, key := range idx.Keys(kind) {
		ref, err := ParseParamRef(key)
		if err != nil {
			continue
		}
		value, ok := values[ref.Name]
		if !ok {
			e.logger.Debug("skipping definitions for absent control", "kind", kind, "key", key)
			continue
		}
		rows := 0
		if ref.HasColumn {
			rows = e.rowsOf(ref.Name, value)
		}
		for _, entry := range idx.Find(kind, key) {
			if !ref.HasColumn {
				visit(entry, nil)
				continue
			}
			for row := 0; row < rows; row++ {
				visit(entry, Cell(row, ref.Column))
			}
		}
	}
	return out
}

// targetID addresses target, narrowed to the current row for column targets.
func targetID(target ParamRef, coords *CellCoordinates) PropertyID {
	id := target.PropertyID()
	if target.HasColumn && coords.hasRow() {
		id = id.WithRow(coords.RowIndex)
	}
	return id
}

// ValidateConditions runs the visibility, enablement and filtered-enum passes
// over a fresh state tree and stores it on the controller.
func (e *Engine) ValidateConditions(c Controller, idx *DefinitionIndex) ControlStates {
	values := c.PropertyValues()
	fields := FlattenFields(c.DatasetMetadata())
	states := make(ControlStates)

	e.runStatePass(KindVisible, c, idx, values, fields, states)
	e.runStatePass(KindEnabled, c, idx, values, fields, states)
	e.runEnumPass(c, idx, values, fields, states)

	c.SetControlStates(states)
	return states
}

func (e *Engine) runStatePass(kind Kind, c Controller, idx *DefinitionIndex, values map[string]any, fields []Field, states ControlStates) {
	defer e.observePass(string(kind), time.Now())

	for _, ev := range e.evaluations(kind, idx, values) {
		def := ev.entry.Definition
		res, err := e.evaluator.Evaluate(def.Expression(kind), e.evalInfo(kind, c, values, fields, ev.coords))
		e.observe(kind, res, err)
		if err != nil {
			e.logger.Warn("condition evaluation failed, state unchanged",
				"kind", kind, "params", ev.entry.Params, "error", err)
			continue
		}
		if _, failed := res.Failure(); failed {
			continue
		}

		for _, target := range def.stateTargets(kind) {
			id := targetID(target, ev.coords)
			if kind == KindVisible {
				states.applyVisible(id, res.IsTrue())
			} else {
				states.applyEnabled(id, res.IsTrue())
			}
		}
	}
}

// runEnumPass stores the candidate values of every filtered enum whose
// condition holds. The last holding definition wins.
func (e *Engine) runEnumPass(c Controller, idx *DefinitionIndex, values map[string]any, fields []Field, states ControlStates) {
	defer e.observePass(string(KindFilteredEnum), time.Now())

	for _, ev := range e.evaluations(KindFilteredEnum, idx, values) {
		def := ev.entry.Definition
		res, err := e.evaluator.Evaluate(def.FilteredEnum.Evaluate, e.evalInfo(KindFilteredEnum, c, values, fields, ev.coords))
		e.observe(KindFilteredEnum, res, err)
		if err != nil {
			e.logger.Warn("filtered enum evaluation failed, values unchanged",
				"params", ev.entry.Params, "error", err)
			continue
		}
		if res.IsTrue() {
			states.applyEnum(targetID(def.FilteredEnum.Target.ref, ev.coords), def.FilteredEnum.Target.Values)
		}
	}
}

// EvaluateDefinition evaluates def at coords. A false validation becomes its
// fail message. On a resolution or structural error the result is True.
func (e *Engine) EvaluateDefinition(def *ConditionDefinition, c Controller, coords *CellCoordinates) (EvalResult, error) {
	kind, err := def.Kind()
	if err != nil {
		return True, err
	}
	values := c.PropertyValues()
	fields := FlattenFields(c.DatasetMetadata())
	return e.evaluateDefinition(def, kind, c, values, fields, coords)
}

func (e *Engine) evaluateDefinition(def *ConditionDefinition, kind Kind, c Controller, values map[string]any, fields []Field, coords *CellCoordinates) (EvalResult, error) {
	res, err := e.evaluator.Evaluate(def.Expression(kind), e.evalInfo(kind, c, values, fields, coords))
	e.observe(kind, res, err)
	if err != nil {
		return True, err
	}
	if kind == KindValidation && res.IsFalse() {
		return Failure(def.Validation.FailMessage.ErrorMessage()), nil
	}
	return res, nil
}

// EvaluateInput evaluates def for the value at id. When id names a whole
// table and def references its columns, every row is evaluated and the first
// non-true result is returned.
func (e *Engine) EvaluateInput(def *ConditionDefinition, id PropertyID, c Controller) (EvalResult, error) {
	kind, err := def.Kind()
	if err != nil {
		return True, err
	}
	values := c.PropertyValues()
	fields := FlattenFields(c.DatasetMetadata())

	for _, coords := range e.inputCoords(def, kind, id, c, values) {
		res, err := e.evaluateDefinition(def, kind, c, values, fields, coords)
		if err != nil || !res.IsTrue() {
			return res, err
		}
	}
	return True, nil
}

// inputCoords returns the coordinates def is evaluated at for id.
func (e *Engine) inputCoords(def *ConditionDefinition, kind Kind, id PropertyID, c Controller, values map[string]any) []*CellCoordinates {
	col, ok := columnOf(def, kind, id.Name)
	if !ok {
		return []*CellCoordinates{structureCoords(id, c)}
	}
	if row, hasRow := id.Row(); hasRow {
		return []*CellCoordinates{cellCoords(c, id.Name, row, col)}
	}
	rows := e.rowsOf(id.Name, values[id.Name])
	coords := make([]*CellCoordinates, 0, rows)
	for row := 0; row < rows; row++ {
		coords = append(coords, cellCoords(c, id.Name, row, col))
	}
	return coords
}

// structureCoords returns column-only coordinates for a column of a
// non-table structure control, nil for anything else.
func structureCoords(id PropertyID, c Controller) *CellCoordinates {
	col, hasCol := id.Col()
	if _, hasRow := id.Row(); !hasCol || hasRow {
		return nil
	}
	if c.Control(id.Base()).IsTable() {
		return nil
	}
	return ColumnOnly(col)
}

// cellCoords addresses a cell of table name. The cell's value as the form
// was opened is carried as SkipVal so colNotExists ignores it.
func cellCoords(c Controller, name string, row, col int) *CellCoordinates {
	coords := Cell(row, col)
	if src, ok := c.(InitialValueSource); ok {
		if v, found := src.InitialPropertyValue(Property(name).WithRow(row).WithCol(col)); found {
			coords.SkipVal = v
		}
	}
	return coords
}

// columnOf finds the first column of control name that def's expression references.
func columnOf(def *ConditionDefinition, kind Kind, name string) (int, bool) {
	col, found := 0, false
	walkConditions(def.Expression(kind), func(cond *Condition) {
		if found {
			return
		}
		ref, _, err := cond.paramRefs()
		if err == nil && ref != nil && ref.Name == name && ref.HasColumn {
			col, found = ref.Column, true
		}
	})
	return col, found
}

func walkConditions(n *Node, fn func(*Condition)) {
	if n == nil {
		return
	}
	for _, child := range n.And {
		walkConditions(child, fn)
	}
	for _, child := range n.Or {
		walkConditions(child, fn)
	}
	if n.Condition != nil {
		fn(n.Condition)
	}
}

// ValidateInput runs the validations keyed to id, then the required and
// date/time checks, and writes the resulting message. Group validations
// mirror their outcome onto the other participants.
func (e *Engine) ValidateInput(id PropertyID, c Controller, idx *DefinitionIndex) (ErrorMessage, error) {
	start := time.Now()
	defer e.observePass(string(KindValidation), start)

	control := c.Control(id)
	if control == nil {
		return DefaultMessage(), fmt.Errorf("%w: %s", ErrUnknownControl, id)
	}

	values := c.PropertyValues()
	fields := FlattenFields(c.DatasetMetadata())
	msg := DefaultMessage()
	failed := false

	seen := make(map[*ConditionDefinition]struct{})
	for _, key := range e.validationKeys(id, idx) {
		for _, entry := range idx.Find(KindValidation, key) {
			if _, ok := seen[entry.Definition]; ok {
				continue
			}
			seen[entry.Definition] = struct{}{}

			res, coords, err := e.validateEntry(entry, key, id, c, values, fields)
			if err != nil {
				e.logger.Warn("validation skipped", "control", id.String(), "params", entry.Params, "error", err)
				continue
			}
			fail, isFailure := res.Failure()
			if entry.IsGroup() {
				e.propagateGroup(entry, id, coords, fail, isFailure, c, values)
			}
			if isFailure {
				msg, failed = fail, true
				break
			}
		}
		if failed {
			break
		}
	}

	if !failed {
		msg = e.fallbackMessage(id, control, c, values)
	}

	c.UpdateErrorMessage(id, msg)
	if e.metrics != nil && !msg.IsDefault() {
		e.metrics.IncMessages(string(msg.Type))
	}
	return msg, nil
}

// validationKeys returns the keys whose definitions apply to id: the plain
// control key and, for tables, the column keys narrowed to id's column.
func (e *Engine) validationKeys(id PropertyID, idx *DefinitionIndex) []string {
	col, hasCol := id.Col()
	var keys []string
	for _, key := range idx.KeysFor(KindValidation, id.Name) {
		ref, err := ParseParamRef(key)
		if err != nil {
			continue
		}
		if hasCol && ref.HasColumn && ref.Column != col {
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// validateEntry evaluates a validation for id, once per row when it is keyed
// to a column of a whole table. The first failure wins.
func (e *Engine) validateEntry(entry Entry, key string, id PropertyID, c Controller, values map[string]any, fields []Field) (EvalResult, *CellCoordinates, error) {
	ref, err := ParseParamRef(key)
	if err != nil {
		return True, nil, err
	}
	if !ref.HasColumn {
		coords := structureCoords(id, c)
		res, err := e.evaluateDefinition(entry.Definition, KindValidation, c, values, fields, coords)
		return res, coords, err
	}

	var rows []int
	if row, ok := id.Row(); ok {
		rows = []int{row}
	} else {
		n := e.rowsOf(id.Name, values[id.Name])
		for row := 0; row < n; row++ {
			rows = append(rows, row)
		}
	}

	var last *CellCoordinates
	for _, row := range rows {
		coords := cellCoords(c, ref.Name, row, ref.Column)
		res, err := e.evaluateDefinition(entry.Definition, KindValidation, c, values, fields, coords)
		if err != nil {
			return True, coords, err
		}
		if _, failed := res.Failure(); failed {
			return res, coords, nil
		}
		last = coords
	}
	return True, last, nil
}

// propagateGroup mirrors a group validation outcome onto the participants
// other than the edited control. A required participant with no value keeps
// its required message; a passing group clears only its own message.
func (e *Engine) propagateGroup(entry Entry, edited PropertyID, coords *CellCoordinates, fail ErrorMessage, failed bool, c Controller, values map[string]any) {
	own := entry.Definition.Validation.FailMessage.ErrorMessage()
	editedCol, editedHasCol := edited.Col()
	for _, name := range entry.Params {
		ref, err := ParseParamRef(name)
		if err != nil {
			continue
		}
		pid := targetID(ref, coords)
		if pid == edited || (ref.Name == edited.Name && ref.HasColumn == editedHasCol && ref.Column == editedCol) {
			continue
		}

		if required := e.requiredMessage(pid, c, values); !required.IsDefault() {
			c.UpdateErrorMessage(pid, required)
			continue
		}
		if failed {
			c.UpdateErrorMessage(pid, fail)
			continue
		}
		if current := c.ErrorMessage(pid); current == own || current == fail {
			c.UpdateErrorMessage(pid, DefaultMessage())
		}
	}
}

// fallbackMessage applies the required and date/time checks once every
// validation passed.
func (e *Engine) fallbackMessage(id PropertyID, control *Control, c Controller, values map[string]any) ErrorMessage {
	if msg := e.requiredMessage(id, c, values); !msg.IsDefault() {
		return msg
	}

	value, ok := valueAt(values, id)
	if !ok || isEmptyValue(value, false) {
		return DefaultMessage()
	}
	s, isString := value.(string)

	switch control.Role {
	case RoleDate:
		format := control.DateFormat
		if format == "" {
			format = e.opts.DefaultDateFormat
		}
		if !isString || !validDateTime(s, format) {
			return ErrorMessage{Type: MessageError, Text: fmt.Sprintf("Invalid date format. Expected %s", format)}
		}
	case RoleTime:
		format := control.TimeFormat
		if format == "" {
			format = e.opts.DefaultTimeFormat
		}
		if !isString || !validDateTime(s, format) {
			return ErrorMessage{Type: MessageError, Text: fmt.Sprintf("Invalid time format. Expected %s", format)}
		}
	}
	return DefaultMessage()
}

// requiredMessage returns the required error for id when its control is
// required and has no value, the default message otherwise.
func (e *Engine) requiredMessage(id PropertyID, c Controller, values map[string]any) ErrorMessage {
	control := c.Control(id)
	// a cell or column is required only through its own column control
	whole := id == id.Base()
	required := control != nil && control.Required && (whole || control.Parent() != nil)
	if !required && whole {
		for _, name := range c.RequiredParameters() {
			if name == id.Name {
				required = true
				break
			}
		}
	}
	if !required {
		return DefaultMessage()
	}

	value, ok := valueAt(values, id)
	if ok && !isEmptyValue(value, false) {
		return DefaultMessage()
	}
	label := id.Name
	if control != nil {
		label = control.DisplayLabel()
	}
	return ErrorMessage{Type: MessageError, Text: fmt.Sprintf(e.opts.RequiredMessage, label)}
}

// ValidateAll validates every control of the catalog and returns the
// non-default messages by control.
func (e *Engine) ValidateAll(c Controller, idx *DefinitionIndex) map[PropertyID]ErrorMessage {
	out := make(map[PropertyID]ErrorMessage)
	for _, control := range c.Controls() {
		id := Property(control.Name)
		msg, err := e.ValidateInput(id, c, idx)
		if err != nil {
			e.logger.Warn("control validation failed", "control", control.Name, "error", err)
			continue
		}
		if !msg.IsDefault() {
			out[id] = msg
		}
	}
	return out
}

// FilterConditions returns a copy of the dataset metadata holding only the
// fields accepted by every filter definition keyed to id.
func (e *Engine) FilterConditions(id PropertyID, idx *DefinitionIndex, c Controller) []DatasetSchema {
	var entries []Entry
	entries = append(entries, idx.Find(KindFilter, id.Name)...)
	if col, ok := id.Col(); ok {
		entries = append(entries, idx.Find(KindFilter, ParamRef{Name: id.Name, Column: col, HasColumn: true}.String())...)
	}

	schemas := c.DatasetMetadata()
	out := make([]DatasetSchema, 0, len(schemas))
	for i, schema := range schemas {
		flat := FlattenFields([]DatasetSchema{schema})
		kept := DatasetSchema{Name: schema.Name, Fields: make([]Field, 0, len(schema.Fields))}
		for j, field := range schema.Fields {
			if e.acceptField(entries, flat[j]) {
				kept.Fields = append(kept.Fields, field)
			}
		}
		e.logger.Debug("filtered dataset schema",
			"control", id.String(), "schema", i, "fields", len(schema.Fields), "kept", len(kept.Fields))
		out = append(out, kept)
	}
	return out
}

func (e *Engine) acceptField(entries []Entry, field Field) bool {
	for _, entry := range entries {
		res, err := e.evaluator.Evaluate(entry.Definition.Filter.Evaluate, &EvalInfo{Kind: KindFilter, Field: &field})
		e.observe(KindFilter, res, err)
		if err != nil {
			e.logger.Warn("filter evaluation failed, field kept", "field", field.Name, "error", err)
			continue
		}
		if !res.IsTrue() {
			return false
		}
	}
	return true
}
