// file: internal/conditions/paramref.go

package conditions

import (
	"fmt"
	"strconv"
	"strings"
)

// ParamRef is a parsed parameter reference: a control name, optionally
// qualified with a table column as in "keys[1]".
type ParamRef struct {
	Name      string
	Column    int
	HasColumn bool
}

// ParseParamRef parses "name" or "name[N]".
// Examples:
//
//	"age"      -> {Name: "age"}
//	"keys[1]"  -> {Name: "keys", Column: 1, HasColumn: true}
//	"keys[]"   -> error
//	"[2]"      -> error
func ParseParamRef(ref string) (ParamRef, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ParamRef{}, fmt.Errorf("%w: empty parameter reference", ErrMalformedExpression)
	}

	open := strings.IndexByte(ref, '[')
	if open < 0 {
		if strings.ContainsRune(ref, ']') {
			return ParamRef{}, fmt.Errorf("%w: unbalanced bracket in %q", ErrMalformedExpression, ref)
		}
		return ParamRef{Name: ref}, nil
	}

	if !strings.HasSuffix(ref, "]") || open == 0 {
		return ParamRef{}, fmt.Errorf("%w: invalid column reference %q", ErrMalformedExpression, ref)
	}

	name := ref[:open]
	index := ref[open+1 : len(ref)-1]
	col, err := strconv.Atoi(index)
	if err != nil || col < 0 {
		return ParamRef{}, fmt.Errorf("%w: column index %q in %q must be a non-negative integer", ErrMalformedExpression, index, ref)
	}

	return ParamRef{Name: name, Column: col, HasColumn: true}, nil
}

// MustParseParamRef panics on malformed input; for literals in tests and fixtures.
func MustParseParamRef(ref string) ParamRef {
	p, err := ParseParamRef(ref)
	if err != nil {
		panic(err)
	}
	return p
}

func (r ParamRef) String() string {
	if r.HasColumn {
		return r.Name + "[" + strconv.Itoa(r.Column) + "]"
	}
	return r.Name
}

// PropertyID returns the id of the referenced control or column.
func (r ParamRef) PropertyID() PropertyID {
	id := Property(r.Name)
	if r.HasColumn {
		id = id.WithCol(r.Column)
	}
	return id
}

// BaseName returns the control name of a raw reference, or the input itself if it does not parse.
func BaseName(ref string) string {
	p, err := ParseParamRef(ref)
	if err != nil {
		return ref
	}
	return p.Name
}

// ParsePropertyID parses the String form of a PropertyID: "name",
// "name[col]" or "name[row][col]".
func ParsePropertyID(s string) (PropertyID, error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '[')
	if open < 0 {
		if s == "" || strings.ContainsRune(s, ']') {
			return PropertyID{}, fmt.Errorf("%w: invalid property id %q", ErrMalformedExpression, s)
		}
		return Property(s), nil
	}
	if open == 0 || !strings.HasSuffix(s, "]") {
		return PropertyID{}, fmt.Errorf("%w: invalid property id %q", ErrMalformedExpression, s)
	}

	parts := strings.Split(s[open+1:len(s)-1], "][")
	if len(parts) > 2 {
		return PropertyID{}, fmt.Errorf("%w: too many indexes in %q", ErrMalformedExpression, s)
	}
	idx := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return PropertyID{}, fmt.Errorf("%w: index %q in %q must be a non-negative integer", ErrMalformedExpression, p, s)
		}
		idx[i] = n
	}

	id := Property(s[:open])
	if len(idx) == 1 {
		return id.WithCol(idx[0]), nil
	}
	return id.WithRow(idx[0]).WithCol(idx[1]), nil
}
