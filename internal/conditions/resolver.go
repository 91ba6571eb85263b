// file: internal/conditions/resolver.go

package conditions

import (
	"fmt"
)

// ParamInfo is a resolved parameter reference handed to operators.
// Undefined distinguishes an absent cell from an explicit null.
type ParamInfo struct {
	Ref       ParamRef
	ID        PropertyID
	Value     any
	Undefined bool
	Control   *Control
}

// ControlType returns the type of the owning control, "" when unknown.
func (p ParamInfo) ControlType() string {
	if p.Control == nil {
		return ""
	}
	return p.Control.ControlType
}

// Label is the display label of the owning control.
func (p ParamInfo) Label() string {
	if p.Control == nil {
		return p.Ref.Name
	}
	return p.Control.DisplayLabel()
}

func (p ParamInfo) kind() valueKind {
	return kindOf(p.Value, p.Undefined)
}

// resolveParam looks up ref in values.
//
//   - "name[N]" with a row in coords resolves the cell value[row][N]
//   - "name[N]" without a row resolves the whole column across rows
//   - "name" with column-only coords on a flat structure indexes it by column
//   - "name" otherwise resolves the whole value
//
// A control missing from values is a configuration error.
func resolveParam(ref ParamRef, values map[string]any, catalog ControlCatalog, coords *CellCoordinates) (ParamInfo, error) {
	raw, ok := values[ref.Name]
	if !ok {
		return ParamInfo{}, fmt.Errorf("%w: %s", ErrParameterNotFound, ref)
	}

	info := ParamInfo{Ref: ref, ID: Property(ref.Name)}
	if catalog != nil {
		info.Control = catalog.Control(Property(ref.Name))
	}

	if ref.HasColumn {
		info.ID = info.ID.WithCol(ref.Column)
		if coords.hasRow() {
			info.ID = info.ID.WithRow(coords.RowIndex)
			v, found := cellValue(raw, coords.RowIndex, ref.Column)
			info.Value, info.Undefined = v, !found
			return info, nil
		}
		info.Value = columnValues(raw, ref.Column)
		return info, nil
	}

	if coords != nil && coords.NoRow && !info.Control.IsTable() {
		if flat, ok := raw.([]any); ok && !isRowList(flat) {
			info.ID = info.ID.WithCol(coords.ColIndex)
			if coords.ColIndex >= 0 && coords.ColIndex < len(flat) {
				info.Value = flat[coords.ColIndex]
			} else {
				info.Undefined = true
			}
			return info, nil
		}
	}

	info.Value = raw
	return info, nil
}

// isRowList reports whether a sequence is a list of rows.
func isRowList(list []any) bool {
	if len(list) == 0 {
		return false
	}
	_, ok := list[0].([]any)
	return ok
}

// rowCount is the number of rows of a table-shaped value.
func rowCount(v any) int {
	rows, ok := tableRows(v)
	if !ok {
		return 0
	}
	return len(rows)
}

// valueAt reads the value addressed by id from a property snapshot.
func valueAt(values map[string]any, id PropertyID) (any, bool) {
	raw, ok := values[id.Name]
	if !ok {
		return nil, false
	}
	row, hasRow := id.Row()
	col, hasCol := id.Col()
	switch {
	case hasRow && hasCol:
		return cellValue(raw, row, col)
	case hasCol:
		if flat, ok := raw.([]any); ok && !isRowList(flat) {
			if col < len(flat) {
				return flat[col], true
			}
			return nil, false
		}
		return columnValues(raw, col), true
	}
	return raw, true
}
