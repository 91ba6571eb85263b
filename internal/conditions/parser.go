// file: internal/conditions/parser.go

package conditions

import (
	"fmt"
)

// UI item types of a form layout tree.
const (
	ItemControl        = "control"
	ItemPanel          = "panel"
	ItemTabs           = "tabs"
	ItemAdditionalLink = "additionalLink"
)

// UIItem is one node of a form layout: a control, or a container of items.
type UIItem struct {
	ItemType string   `json:"itemType" yaml:"itemType"`
	Control  *Control `json:"control,omitempty" yaml:"control,omitempty"`
	Label    string   `json:"label,omitempty" yaml:"label,omitempty"`
	Items    []UIItem `json:"items,omitempty" yaml:"items,omitempty"`
	Tabs     []UITab  `json:"tabs,omitempty" yaml:"tabs,omitempty"`
}

type UITab struct {
	Text    string `json:"text" yaml:"text"`
	Group   string `json:"group,omitempty" yaml:"group,omitempty"`
	Content UIItem `json:"content" yaml:"content"`
}

// ParseConditions indexes def under every parameter its expression
// references. A definition naming several parameters is reachable from each,
// and every entry carries the full parameter list.
func ParseConditions(idx *DefinitionIndex, def *ConditionDefinition, kind Kind) error {
	got, params, err := compileDefinition(def)
	if err != nil {
		return err
	}
	if got != kind {
		return fmt.Errorf("%w: expected %s definition, got %s", ErrMalformedDefinition, kind, got)
	}

	for _, name := range params {
		idx.Add(kind, name, Entry{Params: params, Definition: def})
	}
	return nil
}

// compileDefinition validates the structure of def, parses its parameter
// references once and normalizes its literal values. It returns the
// definition kind and the keys it is indexed under.
func compileDefinition(def *ConditionDefinition) (Kind, []string, error) {
	kind, err := def.Kind()
	if err != nil {
		return "", nil, err
	}

	c := &refCollector{seen: make(map[string]struct{})}
	if err := compileNode(def.Expression(kind), kind, c); err != nil {
		return kind, nil, fmt.Errorf("%s evaluate: %w", kind, err)
	}

	switch kind {
	case KindVisible, KindEnabled:
		sc := def.Visible
		if kind == KindEnabled {
			sc = def.Enabled
		}
		if len(sc.ParameterRefs) == 0 {
			return kind, nil, fmt.Errorf("%w: %s requires parameter_refs", ErrMalformedDefinition, kind)
		}
		refs := make([]ParamRef, 0, len(sc.ParameterRefs))
		for _, raw := range sc.ParameterRefs {
			ref, err := ParseParamRef(raw)
			if err != nil {
				return kind, nil, fmt.Errorf("%s parameter_refs: %w", kind, err)
			}
			refs = append(refs, ref)
		}
		sc.refs = refs

	case KindValidation:
		fm := def.Validation.FailMessage
		if fm.Text() == "" {
			return kind, nil, fmt.Errorf("%w: validation requires fail_message with default text", ErrMalformedDefinition)
		}
		switch MessageType(fm.Type) {
		case "", MessageError, MessageWarning, MessageInfo:
		default:
			return kind, nil, fmt.Errorf("%w: unknown fail_message type %q", ErrMalformedDefinition, fm.Type)
		}
		if fm.FocusParameterRef != "" {
			ref, err := ParseParamRef(fm.FocusParameterRef)
			if err != nil {
				return kind, nil, fmt.Errorf("focus_parameter_ref: %w", err)
			}
			c.add(ref)
		}

	case KindFilteredEnum:
		ref, err := ParseParamRef(def.FilteredEnum.Target.ParameterRef)
		if err != nil {
			return kind, nil, fmt.Errorf("filtered_enum target: %w", err)
		}
		def.FilteredEnum.Target.ref = ref
		for i, v := range def.FilteredEnum.Target.Values {
			def.FilteredEnum.Target.Values[i] = NormalizeValue(v)
		}

	case KindFilter:
		ref, err := ParseParamRef(def.Filter.ParameterRef)
		if err != nil {
			return kind, nil, fmt.Errorf("filter: %w", err)
		}
		// filter leaves test dataset fields, so the definition is keyed by its owner
		return kind, []string{ref.String()}, nil
	}

	if len(c.names) == 0 {
		return kind, nil, fmt.Errorf("%w: %s expression references no parameters", ErrMalformedDefinition, kind)
	}
	return kind, c.names, nil
}

type refCollector struct {
	names []string
	seen  map[string]struct{}
}

func (c *refCollector) add(ref ParamRef) {
	key := ref.String()
	if _, ok := c.seen[key]; ok {
		return
	}
	c.seen[key] = struct{}{}
	c.names = append(c.names, key)
}

func compileNode(n *Node, kind Kind, c *refCollector) error {
	if n == nil {
		return fmt.Errorf("%w: missing node", ErrMalformedExpression)
	}

	variants := 0
	if n.And != nil {
		variants++
	}
	if n.Or != nil {
		variants++
	}
	if n.Condition != nil {
		variants++
	}
	if variants != 1 {
		return fmt.Errorf("%w: node must have exactly one of and, or, condition (found %d)", ErrMalformedExpression, variants)
	}

	switch {
	case n.And != nil:
		return compileChildren("and", n.And, kind, c)
	case n.Or != nil:
		return compileChildren("or", n.Or, kind, c)
	}

	cond := n.Condition
	if cond.Op == "" {
		return fmt.Errorf("%w: condition without op", ErrMalformedExpression)
	}
	cond.Value = NormalizeValue(cond.Value)

	if kind == KindFilter {
		return nil
	}
	if cond.ParameterRef == "" {
		return fmt.Errorf("%w: condition %q without parameter_ref", ErrMalformedExpression, cond.Op)
	}
	ref, err := ParseParamRef(cond.ParameterRef)
	if err != nil {
		return err
	}
	cond.ref = &ref
	c.add(ref)

	if cond.Parameter2Ref != "" {
		ref2, err := ParseParamRef(cond.Parameter2Ref)
		if err != nil {
			return fmt.Errorf("parameter_2_ref: %w", err)
		}
		cond.ref2 = &ref2
		c.add(ref2)
	}
	return nil
}

func compileChildren(op string, children []*Node, kind Kind, c *refCollector) error {
	if len(children) == 0 {
		return fmt.Errorf("%w: empty %s", ErrMalformedExpression, op)
	}
	for i, child := range children {
		if err := compileNode(child, kind, c); err != nil {
			return fmt.Errorf("%s[%d]: %w", op, i, err)
		}
	}
	return nil
}

// ParseControls flattens a layout tree into its controls in layout order.
// Column sub-controls stay attached to their table.
func ParseControls(items []UIItem) []*Control {
	var controls []*Control
	walkItems(items, func(c *Control) {
		for _, sub := range c.SubControls {
			if sub != nil && sub.parent != c {
				sub.parent = c
			}
		}
		controls = append(controls, c)
	})
	return controls
}

// ParseRequiredParameters returns the names of the controls flagged required.
func ParseRequiredParameters(items []UIItem) []string {
	var required []string
	walkItems(items, func(c *Control) {
		if c.Required {
			required = append(required, c.Name)
		}
	})
	return required
}

func walkItems(items []UIItem, fn func(*Control)) {
	for i := range items {
		walkItem(&items[i], fn)
	}
}

func walkItem(item *UIItem, fn func(*Control)) {
	if item.Control != nil {
		fn(item.Control)
	}
	walkItems(item.Items, fn)
	for i := range item.Tabs {
		walkItem(&item.Tabs[i].Content, fn)
	}
}
