package analyzer

import (
	"go/token"
	"go/types"

	"golang.org/x/tools/go/ssa"
)

// resolveLHS resolves the left-hand side of an assignment (spec
// §4.4.1's "resolve(is_right=false, ...)"), including the return-slot
// and field-wrapped special cases graph.go's assignment translation
// introduces.
func (g *graph) resolveLHS(l lhs) int {
	base := 0
	if !l.ReturnSlot {
		base = g.resolveValue(l.Value, false)
	}
	if l.Field >= 0 {
		base = g.stepField(base, l.Field, false)
	}
	return base
}

// resolveValue is the field-sensitive place resolver of spec §4.4.1,
// adapted to golang.org/x/tools/go/ssa's already-nested addressing
// instructions instead of an explicit projection list: *ssa.FieldAddr
// and *ssa.IndexAddr recurse like Field projections, *ssa.UnOp{Op:
// token.MUL} recurses like a Deref projection, and anything else is a
// fresh root (a leaf node), exactly as a freshly-seen MIR local would
// be.
func (g *graph) resolveValue(v ssa.Value, isRight bool) int {
	switch t := v.(type) {
	case *ssa.FieldAddr:
		base := g.resolveValue(t.X, isRight)
		return g.stepFieldTyped(base, t.Field, isRight, fieldType(t.X.Type(), t.Field))
	case *ssa.IndexAddr:
		base := g.resolveValue(t.X, isRight)
		return g.stepFieldTyped(base, 0, isRight, elemType(t.X.Type()))
	case *ssa.UnOp:
		if t.Op == token.MUL {
			base := g.resolveValue(t.X, isRight)
			return g.stepDeref(base)
		}
	}
	return g.leafNode(v)
}

// stepField walks into field i of base, materializing a child node
// from the Type Oracle if it doesn't exist yet, inheriting the
// parent's alive timestamp -- spec §4.4.1's Field(i, T) case. The
// child's type is unknown here (used only for the return-slot/
// aggregate paths), so a newly materialized child is always a tracked,
// need-drop raw pointer (see stepFieldTyped).
func (g *graph) stepField(base, field int, isRight bool) int {
	return g.stepFieldTyped(base, field, isRight, nil)
}

func (g *graph) stepFieldTyped(base, field int, isRight bool, ft types.Type) int {
	if isRight && g.nodes[base].alias[0] != base {
		base = g.nodes[base].alias[0]
	}
	if child, ok := g.nodes[base].sons[field]; ok {
		return child
	}
	var needDrop, soSo bool
	var k kind
	if ft != nil {
		needDrop, soSo, k = needsDrop(ft), tracked(ft), classifyKind(ft)
	} else {
		// return-slot / aggregate field of unknown static type: be
		// conservative and track it, matching the spec's default of
		// treating unclassified fields as tracked pointers.
		needDrop, soSo, k = true, true, kindRawPtr
	}
	n := newNode(g.nodes[base].index, len(g.nodes), needDrop, soSo)
	n.kind = k
	n.alive = g.nodes[base].alive
	n.fieldInfo = append(append([]int{}, g.nodes[base].fieldInfo...), field)
	g.nodes = append(g.nodes, n)
	g.nodes[base].sons[field] = n.id
	return n.id
}

// stepDeref materializes a fresh pointee node the first time a
// pointer-typed node is dereferenced, exactly as spec §4.4.1's Deref
// case.
func (g *graph) stepDeref(base int) int {
	if g.nodes[base].alias[0] == base && !g.nodes[base].isRef() {
		n := newNode(len(g.nodes), len(g.nodes), true, true)
		n.kind = kindRawPtr
		n.alive = g.nodes[base].alive
		g.nodes = append(g.nodes, n)
		g.nodes[base].alias[0] = n.id
	}
	return g.nodes[base].alias[0]
}

func fieldType(t types.Type, field int) types.Type {
	st, ok := derefStruct(t)
	if !ok || field < 0 || field >= st.NumFields() {
		return nil
	}
	return st.Field(field).Type()
}

func derefStruct(t types.Type) (*types.Struct, bool) {
	if p, ok := t.Underlying().(*types.Pointer); ok {
		t = p.Elem()
	}
	st, ok := t.Underlying().(*types.Struct)
	return st, ok
}

func elemType(t types.Type) types.Type {
	if p, ok := t.Underlying().(*types.Pointer); ok {
		t = p.Elem()
	}
	switch u := t.Underlying().(type) {
	case *types.Array:
		return u.Elem()
	case *types.Slice:
		return u.Elem()
	}
	return nil
}
