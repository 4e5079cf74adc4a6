package analyzer

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/k0kubun/pp"
	"github.com/mattn/go-colorable"
)

// debugOut is stderr wrapped for ANSI color on Windows consoles, the
// same trick knil.go's debug path uses so -debug output stays readable
// in a non-colorable terminal host.
var debugOut = colorable.NewColorableStderr()

// dumpGraph pretty-prints a function's node vector and block graph
// with k0kubun/pp when -debug is set, giving a human a fighting chance
// at reading the alias graph that produced a given verdict.
func dumpGraph(fn string, g *graph) {
	fmt.Fprintf(debugOut, "== %s ==\n", fn)
	if _, err := pp.Fprintln(debugOut, g.nodes); err != nil {
		fmt.Fprintln(debugOut, err)
	}
}

// dumpSoftErrors spews the accumulated summary-replay soft failures of
// spec §7 -- github.com/davecgh/go-spew's deep, cycle-safe formatting
// is a better fit here than pp's, since a malformed-summary error wraps
// an *ssa.Function whose String() alone omits the argument index/bound
// detail pp would otherwise need a custom formatter for.
func dumpSoftErrors(fn string, errs []error) {
	if len(errs) == 0 {
		return
	}
	fmt.Fprintf(debugOut, "== %s: soft errors ==\n", fn)
	spew.Fdump(debugOut, errs)
}

// debugEnabled is set from the -debug flag registered in analyzer.go's
// Analyzer.Flags before run starts.
var debugEnabled bool
