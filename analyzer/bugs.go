package analyzer

import (
	"fmt"
	"go/token"
	"os"
	"sort"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/ssa"
	"honnef.co/go/tools/analysis/report"
)

// mergeResults is the Summary & Bug Recorder of spec §3/§4.4.3: at
// every leaf block it folds the current alias graph's
// parameter/return-rooted relations into the function's running
// ReturnResults, deduplicated via g.returnSet so that repeated path
// exploration doesn't grow the summary unboundedly. An unwind
// (cleanup) leaf still contributes alias relations but never
// contributes to Dead: a parameter only dropped on the unwind path is not dead
// on the normal-return path a caller actually observes (tools.rs::
// merge_results, is_cleanup == false gate).
func (g *graph) mergeResults(isCleanup bool) {
	if !isCleanup {
		for root := 0; root <= g.argSize && root < len(g.nodes); root++ {
			if g.nodes[root].isPtr() && !g.nodes[root].isAlive() {
				g.returnResults.Dead[root] = true
			}
		}
	}

	for _, n := range g.nodes {
		if !n.soSo || n.index < 0 || n.index > g.argSize {
			continue
		}
		for _, aliasID := range n.alias {
			if aliasID == n.id {
				continue
			}
			target := g.nodes[aliasID]
			if !target.soSo || target.index < 0 || target.index > g.argSize {
				continue
			}
			key := [2]int{n.id, target.id}
			if g.returnSet[key] {
				continue
			}
			g.returnSet[key] = true
			g.returnResults.Assignments = append(g.returnResults.Assignments, returnAssign{
				LeftIndex:     n.index,
				Left:          append([]int{}, n.fieldInfo...),
				LeftSoSo:      n.soSo,
				LeftNeedDrop:  n.needDrop,
				RightIndex:    target.index,
				Right:         append([]int{}, target.fieldInfo...),
				RightSoSo:     target.soSo,
				RightNeedDrop: target.needDrop,
			})
		}
	}
}

// outputWarning prints the textual report spec §6 mandates to stdout,
// one line per distinct finding, sorted as plain strings (category,
// then function, then position text) for reproducible output across
// runs of the same build.
func outputWarning(fn *ssa.Function, bugs *bugRecords) {
	if bugs.isBugFree() {
		return
	}
	fset := fn.Prog.Fset
	var lines []string

	for _, pos := range bugs.dfBugs {
		lines = append(lines, fmt.Sprintf("[double free] %s: possible double free at %s", fn, fset.Position(pos)))
	}
	for _, pos := range bugs.dfBugsUnwind {
		lines = append(lines, fmt.Sprintf("[double free] %s: possible double free on the unwind path at %s", fn, fset.Position(pos)))
	}
	for pos := range bugs.uafBugs {
		lines = append(lines, fmt.Sprintf("[use after free] %s: possible use after free at %s", fn, fset.Position(pos)))
	}
	if bugs.dpBug {
		lines = append(lines, fmt.Sprintf("[dangling pointer] %s: may return a dangling pointer", fn))
	}
	if bugs.dpBugUnwind {
		lines = append(lines, fmt.Sprintf("[dangling pointer] %s: may leave a dangling pointer live across an unwind", fn))
	}

	sort.Strings(lines)
	for _, l := range lines {
		fmt.Fprintln(os.Stdout, l)
	}
}

// atPos adapts a bare token.Pos to honnef.co/go/tools/analysis/report's
// Positioner interface, which ast.Node satisfies but a raw token.Pos
// does not.
type atPos token.Pos

func (p atPos) Pos() token.Pos { return token.Pos(p) }

// reportDiagnostics feeds the same findings into go/analysis's
// diagnostic machinery via honnef.co/go/tools/analysis/report, giving
// IDE/go vet-style integrations (and golangci-lint, see plugin/) a
// structured surface alongside the textual report.
func reportDiagnostics(pass *analysis.Pass, fn *ssa.Function, bugs *bugRecords) {
	if bugs.isBugFree() {
		return
	}
	for _, pos := range bugs.dfBugs {
		report.Report(pass, atPos(pos), fmt.Sprintf("possible double free in %s", fn.Name()))
	}
	for _, pos := range bugs.dfBugsUnwind {
		report.Report(pass, atPos(pos), fmt.Sprintf("possible double free on the unwind path in %s", fn.Name()))
	}
	for pos := range bugs.uafBugs {
		report.Report(pass, atPos(pos), fmt.Sprintf("possible use after free in %s", fn.Name()))
	}
	if bugs.dpBug {
		report.Report(pass, atPos(fn.Pos()), fmt.Sprintf("%s may return a dangling pointer", fn.Name()))
	}
	if bugs.dpBugUnwind {
		report.Report(pass, atPos(fn.Pos()), fmt.Sprintf("%s may leave a dangling pointer live across an unwind", fn.Name()))
	}
}
