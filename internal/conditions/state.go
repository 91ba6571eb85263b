// file: internal/conditions/state.go

package conditions

// State is the computed display state of a control, column or cell.
type State string

const (
	StateVisible  State = "visible"
	StateHidden   State = "hidden"
	StateEnabled  State = "enabled"
	StateDisabled State = "disabled"
)

// ControlState is one node of the state tree: control, then column, then row.
type ControlState struct {
	Value State                 `json:"value,omitempty" yaml:"value,omitempty"`
	Enum  []any                 `json:"enum,omitempty" yaml:"enum,omitempty"`
	Cols  map[int]*ControlState `json:"col,omitempty" yaml:"col,omitempty"`
	Rows  map[int]*ControlState `json:"row,omitempty" yaml:"row,omitempty"`
}

func (s *ControlState) clone() *ControlState {
	if s == nil {
		return nil
	}
	out := &ControlState{Value: s.Value}
	if s.Enum != nil {
		out.Enum = make([]any, len(s.Enum))
		for i, v := range s.Enum {
			out.Enum[i] = NormalizeValue(v)
		}
	}
	if s.Cols != nil {
		out.Cols = make(map[int]*ControlState, len(s.Cols))
		for k, v := range s.Cols {
			out.Cols[k] = v.clone()
		}
	}
	if s.Rows != nil {
		out.Rows = make(map[int]*ControlState, len(s.Rows))
		for k, v := range s.Rows {
			out.Rows[k] = v.clone()
		}
	}
	return out
}

// ControlStates is the state tree of a form keyed by control name.
type ControlStates map[string]*ControlState

func (s ControlStates) Clone() ControlStates {
	out := make(ControlStates, len(s))
	for k, v := range s {
		out[k] = v.clone()
	}
	return out
}

// path returns the nodes from the control down to id, creating them when
// create is set. Missing nodes end the path early otherwise.
func (s ControlStates) path(id PropertyID, create bool) []*ControlState {
	node, ok := s[id.Name]
	if !ok {
		if !create {
			return nil
		}
		node = &ControlState{}
		s[id.Name] = node
	}
	nodes := []*ControlState{node}

	col, hasCol := id.Col()
	if !hasCol {
		return nodes
	}
	child, ok := node.Cols[col]
	if !ok {
		if !create {
			return nodes
		}
		if node.Cols == nil {
			node.Cols = make(map[int]*ControlState)
		}
		child = &ControlState{}
		node.Cols[col] = child
	}
	nodes = append(nodes, child)

	row, hasRow := id.Row()
	if !hasRow {
		return nodes
	}
	cell, ok := child.Rows[row]
	if !ok {
		if !create {
			return nodes
		}
		if child.Rows == nil {
			child.Rows = make(map[int]*ControlState)
		}
		cell = &ControlState{}
		child.Rows[row] = cell
	}
	return append(nodes, cell)
}

func (s ControlStates) node(id PropertyID) *ControlState {
	nodes := s.path(id, true)
	return nodes[len(nodes)-1]
}

// State returns the effective state of id. Hidden anywhere on the path wins,
// then disabled, then the most specific value. "" means nothing was computed.
func (s ControlStates) State(id PropertyID) State {
	var effective State
	for _, n := range s.path(id, false) {
		switch n.Value {
		case StateHidden:
			return StateHidden
		case StateDisabled:
			effective = StateDisabled
		case StateEnabled, StateVisible:
			if effective != StateDisabled {
				effective = n.Value
			}
		}
	}
	return effective
}

// Enum returns the most specific filtered enum stored for id.
func (s ControlStates) Enum(id PropertyID) ([]any, bool) {
	var enum []any
	found := false
	for _, n := range s.path(id, false) {
		if n.Enum != nil {
			enum, found = n.Enum, true
		}
	}
	return enum, found
}

// applyVisible merges a visibility result. The latest result wins.
func (s ControlStates) applyVisible(id PropertyID, visible bool) {
	n := s.node(id)
	if visible {
		n.Value = StateVisible
		return
	}
	n.Value = StateHidden
}

// applyEnabled merges an enablement result. Controls hidden by the
// visibility pass are left alone; otherwise the latest result wins.
func (s ControlStates) applyEnabled(id PropertyID, enabled bool) {
	if s.State(id) == StateHidden {
		return
	}
	n := s.node(id)
	if enabled {
		n.Value = StateEnabled
		return
	}
	n.Value = StateDisabled
}

func (s ControlStates) applyEnum(id PropertyID, values []any) {
	n := s.node(id)
	n.Enum = make([]any, len(values))
	copy(n.Enum, values)
}
