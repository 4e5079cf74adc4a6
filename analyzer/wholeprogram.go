package analyzer

import (
	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/ssa"
)

// RunWholeProgram is the entrypoint for the CLI's -wholeprogram mode
// (cmd/safedrop): given packages of a fully built program and a call
// graph built by golang.org/x/tools/go/pointer, it analyzes every
// package-level function of pkgs and the anonymous functions nested in
// them (methods, which are not package members, are not visited)
// exactly as the go/analysis driver (analyzer.go) does, except that a
// dynamic dispatch with exactly one call-graph target is resolved to
// that target (dynamicCallees, in engine.go) before evalCall falls back
// to the name/value-shape corner-case checks. There is no analysis.Pass in this mode, so findings
// surface only through the textual report of spec §6.
func RunWholeProgram(pkgs []*ssa.Package, cg *callgraph.Graph) {
	fm := newFuncCache()
	seen := map[*ssa.Function]bool{}
	var all []*ssa.Function
	for _, pkg := range pkgs {
		if pkg == nil {
			continue
		}
		for _, member := range pkg.Members {
			if fn, ok := member.(*ssa.Function); ok {
				collectFuncs(fn, seen, &all)
			}
		}
	}
	for _, fn := range all {
		if fn.Blocks == nil {
			continue
		}
		analyzeWholeProgramFunc(fm, cg, fn)
	}
}

func collectFuncs(fn *ssa.Function, seen map[*ssa.Function]bool, out *[]*ssa.Function) {
	if fn == nil || seen[fn] {
		return
	}
	seen[fn] = true
	*out = append(*out, fn)
	for _, anon := range fn.AnonFuncs {
		collectFuncs(anon, seen, out)
	}
}

func analyzeWholeProgramFunc(fm *funcCache, cg *callgraph.Graph, fn *ssa.Function) {
	g := newGraph(fn)
	g.callGraph = cg
	g.solveSCC()
	if len(g.blocks) > 0 {
		g.safedropCheck(nil, fm, 0)
	}
	fm.commit(nil, fn, g.returnResults)

	outputWarning(fn, g.bugs)
	if debugEnabled {
		dumpGraph(fn.String(), g)
		dumpSoftErrors(fn.String(), g.softErrors)
	}
}
