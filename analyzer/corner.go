package analyzer

import (
	"golang.org/x/tools/go/ssa"
)

// shouldCheck implements the §6 name-based gate: bug output is
// suppressed for functions recognized as destructors themselves,
// matching corner_handle.rs's should_check. Calls into such functions
// are the ones evalCall lets through with a single tracked value.
func shouldCheck(fn *ssa.Function) bool {
	return !isDropLikeName(fn.Name())
}

// isCornerCaseCallee recognizes, by name rather than by the original's
// fragile numeric DefId index (spec §9's own open question), the
// three callees corner_handle.rs hardcodes as opaque no-ops: a
// mutable-closure call, an iterator's Next, and a pointer-arithmetic
// intrinsic. Go's closest analogues are an indirect call through a
// *ssa.MakeClosure value, a method literally named Next, and
// unsafe.Pointer arithmetic via the unsafe/reflect packages.
func isCornerCaseCallee(fn *ssa.Function) bool {
	if fn == nil {
		return false
	}
	switch fn.Name() {
	case "Next":
		return true
	}
	if pkg := fn.Pkg; pkg != nil {
		path := pkg.Pkg.Path()
		if path == "unsafe" || path == "reflect" {
			switch fn.Name() {
			case "Add", "Pointer", "Call", "CallSlice":
				return true
			}
		}
	}
	return false
}

// isCornerCaseValue recognizes an indirect call dispatched through a
// value produced by *ssa.MakeClosure -- Go's analogue of the Rust
// original's "mutable-closure call" corner case, where the callee
// identity isn't statically a *ssa.Function at all.
func isCornerCaseValue(v ssa.Value) bool {
	switch v.(type) {
	case *ssa.MakeClosure:
		return true
	}
	return false
}
