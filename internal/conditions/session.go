// file: internal/conditions/session.go

package conditions

import (
	"sort"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"ui-conditions/internal/logger"
)

// FormSession is the in-memory Controller of one open form. A session is
// not safe for concurrent use; separate sessions are independent.
type FormSession struct {
	ID string

	logger   *logger.Logger
	values   map[string]any
	initial  map[string]any
	controls []*Control
	byName   map[string]*Control
	datasets []DatasetSchema
	states   ControlStates
	messages map[PropertyID]ErrorMessage
	required []string
}

// NewFormSession creates a session over controls with initial values.
func NewFormSession(log *logger.Logger, controls []*Control, values map[string]any, datasets []DatasetSchema) *FormSession {
	id := uuid.NewString()
	s := &FormSession{
		ID:       id,
		logger:   log.With("session", id),
		values:   NormalizeValues(values),
		initial:  NormalizeValues(values),
		controls: controls,
		byName:   make(map[string]*Control, len(controls)),
		datasets: datasets,
		states:   make(ControlStates),
		messages: make(map[PropertyID]ErrorMessage),
	}
	for _, c := range controls {
		s.byName[c.Name] = c
		for _, sub := range c.SubControls {
			if sub != nil && sub.parent != c {
				sub.parent = c
			}
		}
		if c.Required {
			s.required = append(s.required, c.Name)
		}
	}
	s.logger.Debug("form session created", "controls", len(controls), "values", len(values))
	return s
}

// NewFormSessionFromDocument builds the catalog, required list and values of doc.
func NewFormSessionFromDocument(log *logger.Logger, doc *FormDocument) *FormSession {
	s := NewFormSession(log, ParseControls(doc.UIItems), doc.CurrentParameters, doc.DatasetMetadata)
	s.required = ParseRequiredParameters(doc.UIItems)
	return s
}

func (s *FormSession) PropertyValue(id PropertyID) (any, bool) {
	v, ok := valueAt(s.values, id)
	if !ok {
		return nil, false
	}
	return NormalizeValue(v), true
}

func (s *FormSession) PropertyValues() map[string]any {
	return NormalizeValues(s.values)
}

// InitialPropertyValue reads id from the values the session was opened with.
func (s *FormSession) InitialPropertyValue(id PropertyID) (any, bool) {
	return valueAt(s.initial, id)
}

// UpdatePropertyValue writes value at id. Writing a cell grows the table as needed.
func (s *FormSession) UpdatePropertyValue(id PropertyID, value any) {
	value = NormalizeValue(value)
	row, hasRow := id.Row()
	col, hasCol := id.Col()

	switch {
	case hasRow && hasCol:
		rows, _ := s.values[id.Name].([]any)
		for len(rows) <= row {
			rows = append(rows, []any{})
		}
		cols, _ := rows[row].([]any)
		for len(cols) <= col {
			cols = append(cols, nil)
		}
		cols[col] = value
		rows[row] = cols
		s.values[id.Name] = rows
	case hasCol:
		flat, _ := s.values[id.Name].([]any)
		if isRowList(flat) {
			s.logger.Warn("column write without row ignored", "property", id.String())
			return
		}
		for len(flat) <= col {
			flat = append(flat, nil)
		}
		flat[col] = value
		s.values[id.Name] = flat
	default:
		s.values[id.Name] = value
	}
}

// SetPropertyValues replaces all values.
func (s *FormSession) SetPropertyValues(values map[string]any) {
	s.values = NormalizeValues(values)
}

// Control returns the control of id, or its column sub-control for column ids.
func (s *FormSession) Control(id PropertyID) *Control {
	c, ok := s.byName[id.Name]
	if !ok {
		return nil
	}
	if col, hasCol := id.Col(); hasCol && col < len(c.SubControls) && c.SubControls[col] != nil {
		return c.SubControls[col]
	}
	return c
}

func (s *FormSession) Controls() []*Control {
	return s.controls
}

func (s *FormSession) DatasetMetadata() []DatasetSchema {
	return s.datasets
}

// DatasetMetadataFields lists the fields of every schema.
func (s *FormSession) DatasetMetadataFields() []Field {
	return FlattenFields(s.datasets)
}

func (s *FormSession) ControlStates() ControlStates {
	return s.states.Clone()
}

func (s *FormSession) SetControlStates(states ControlStates) {
	s.states = states.Clone()
}

func (s *FormSession) UpdateErrorMessage(id PropertyID, msg ErrorMessage) {
	if msg.IsDefault() {
		delete(s.messages, id)
		return
	}
	s.messages[id] = msg
}

func (s *FormSession) ErrorMessage(id PropertyID) ErrorMessage {
	if msg, ok := s.messages[id]; ok {
		return msg
	}
	return DefaultMessage()
}

// ErrorMessages returns a copy of every non-default message.
func (s *FormSession) ErrorMessages() map[PropertyID]ErrorMessage {
	out := make(map[PropertyID]ErrorMessage, len(s.messages))
	for id, msg := range s.messages {
		out[id] = msg
	}
	return out
}

func (s *FormSession) RequiredParameters() []string {
	out := make([]string, len(s.required))
	copy(out, s.required)
	return out
}

func (s *FormSession) SetRequiredParameters(names []string) {
	s.required = append([]string(nil), names...)
}

// SessionSnapshot is the serializable view of a session.
type SessionSnapshot struct {
	ID       string                  `json:"id"`
	Values   map[string]any          `json:"values"`
	States   ControlStates           `json:"states"`
	Messages map[string]ErrorMessage `json:"messages"`
}

func (s *FormSession) Snapshot() SessionSnapshot {
	messages := make(map[string]ErrorMessage, len(s.messages))
	for id, msg := range s.messages {
		messages[id.String()] = msg
	}
	return SessionSnapshot{
		ID:       s.ID,
		Values:   s.PropertyValues(),
		States:   s.ControlStates(),
		Messages: messages,
	}
}

// MarshalSnapshot encodes the session snapshot as JSON.
func (s *FormSession) MarshalSnapshot() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}

// MessageIDs returns the ids carrying a message, sorted by their string form.
func (s *FormSession) MessageIDs() []PropertyID {
	ids := make([]PropertyID, 0, len(s.messages))
	for id := range s.messages {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}
