// Package extract implements cost-based term extraction over a saturated
// e-graph: a worklist fixpoint that records the best known cost per
// equivalence class and reconstructs the chosen representative term.
package extract

import (
	"strconv"
	"strings"
)

// Term is an s-expression shaped tree: an operator name with ordered
// children, or a bare literal with no children.
type Term struct {
	Op       string
	Children []*Term
}

// String renders the term in s-expression form.
func (t *Term) String() string {
	if t == nil {
		return "()"
	}
	if len(t.Children) == 0 {
		return t.Op
	}
	var sb strings.Builder
	sb.WriteByte('(')
	sb.WriteString(t.Op)
	for _, c := range t.Children {
		sb.WriteByte(' ')
		sb.WriteString(c.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// TermAttributes decodes an attribute-bearing term of the shape
// Attributes(AttributeMap(k1, v1, k2, v2, ...)), possibly wrapped in
// further layers. Keys at even positions pair with values at odd
// positions; pairs that are not a string key and integer value are
// dropped. Any unrecognized shape yields an empty map, never an error.
func TermAttributes(t *Term) map[string]int64 {
	attrs := make(map[string]int64)
	m := findAttributeMap(t)
	if m == nil {
		return attrs
	}
	for i := 0; i+1 < len(m.Children); i += 2 {
		key := unquote(m.Children[i].Op)
		if key == "" {
			continue
		}
		val, err := strconv.ParseInt(m.Children[i+1].Op, 10, 64)
		if err != nil {
			continue
		}
		attrs[key] = val
	}
	return attrs
}

func findAttributeMap(t *Term) *Term {
	if t == nil {
		return nil
	}
	if t.Op == "AttributeMap" {
		return t
	}
	for _, c := range t.Children {
		if m := findAttributeMap(c); m != nil {
			return m
		}
	}
	return nil
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
