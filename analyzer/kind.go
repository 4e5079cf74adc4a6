package analyzer

import (
	"go/types"
	"strings"
)

// kind classifies a Go type the way the Type Oracle classifies a MIR
// type: non-pointer, raw-pointer, tuple, reference-counted-container,
// or reference. Go has no first-class Rc/RefCell, so the rc-like
// classification instead recognizes the small set of standard-library
// types named by the corner-case ADT filter (isCornerADT): sync.Once,
// the sync/atomic types, and weak.Pointer.
type kind int

const (
	kindPlain kind = iota
	kindRawPtr
	kindTuple
	kindRCLike
	kindRef
)

func classifyKind(t types.Type) kind {
	if isCornerADT(t.String()) {
		return kindRCLike
	}
	switch t.Underlying().(type) {
	case *types.Pointer:
		return kindRawPtr
	case *types.Tuple:
		return kindTuple
	case *types.Slice, *types.Map, *types.Chan:
		// shared, GC-owned referents: borrows, not owners, matching
		// the spec's reference kind (dropping a slice/map/chan slot
		// never frees what it points at).
		return kindRef
	}
	return kindPlain
}

// isScalarOnly reports whether t is a primitive or a composite built
// purely from primitives -- the data so_so prunes because it cannot
// alias or leak. Mirrors tools.rs::so_so.
func isScalarOnly(t types.Type) bool {
	switch u := t.Underlying().(type) {
	case *types.Basic:
		switch u.Info() & (types.IsBoolean | types.IsInteger | types.IsFloat) {
		case 0:
			return false
		default:
			return true
		}
	case *types.Array:
		return isScalarOnly(u.Elem())
	case *types.Struct:
		for i := 0; i < u.NumFields(); i++ {
			if !isScalarOnly(u.Field(i).Type()) {
				return false
			}
		}
		return true
	case *types.Tuple:
		for i := 0; i < u.Len(); i++ {
			if !isScalarOnly(u.At(i).Type()) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// tracked reports whether a slot of type t participates in drop
// analysis at all (the "so_so" predicate of the spec).
func tracked(t types.Type) bool {
	if t == nil {
		return true
	}
	return !isScalarOnly(t)
}

// needsDrop approximates rustc's needs_drop oracle: a type needs drop
// if it (or anything it contains) is a pointer, an interface, a
// channel, a map, a slice backed by heap storage, or a named type with
// a Close/Free/Release/Destroy method -- i.e. it owns a resource that
// isn't reclaimed by the garbage collector alone.
func needsDrop(t types.Type) bool {
	if t == nil {
		return false
	}
	switch u := t.Underlying().(type) {
	case *types.Pointer, *types.Chan, *types.Map, *types.Slice, *types.Interface:
		return true
	case *types.Array:
		return needsDrop(u.Elem()) || hasDropLikeMethod(t)
	case *types.Struct:
		for i := 0; i < u.NumFields(); i++ {
			if needsDrop(u.Field(i).Type()) {
				return true
			}
		}
		return hasDropLikeMethod(t)
	}
	return hasDropLikeMethod(t)
}

func hasDropLikeMethod(t types.Type) bool {
	named, ok := t.(*types.Named)
	if !ok {
		return false
	}
	for i := 0; i < named.NumMethods(); i++ {
		if isDropLikeName(named.Method(i).Name()) {
			return true
		}
	}
	return false
}

// isDropLikeName implements the §6 drop-like substring filter, used
// both to gate analysis output and to reconstruct drop terminators
// from ordinary method calls (see graph.go's translateInstr).
func isDropLikeName(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range []string{"drop", "dealloc", "release", "destroy", "close", "free"} {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// isCornerADT implements the rc-like ADT filter of §6: types whose
// "drop" is a refcount decrement, not a deallocation.
func isCornerADT(printedType string) bool {
	for _, s := range []string{"sync.Once", "sync/atomic.", "weak.Pointer"} {
		if strings.Contains(printedType, s) {
			return true
		}
	}
	return false
}
