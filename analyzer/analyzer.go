// Package analyzer implements the five-component pipeline of a
// SafeDrop-style ownership analyzer realized over golang.org/x/tools/
// go/ssa: a Type Oracle (kind.go), a Graph Builder (graph.go, place.go),
// an SCC Condenser (scc.go), an Alias/Liveness Engine (engine.go), and a
// Summary & Bug Recorder (bugs.go), wired together by the go/analysis
// Analyzer below.
package analyzer

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/buildssa"
	"golang.org/x/tools/go/ssa"
)

// Analyzer is the primary entrypoint: a standard golang.org/x/tools/go/
// analysis.Analyzer, runnable directly through singlechecker (see
// cmd/safedrop) or loaded into golangci-lint (see plugin/).
var Analyzer = &analysis.Analyzer{
	Name:     "safedrop",
	Doc:      "reports double frees, use-after-frees, and functions that may return a dangling pointer across an ownership transfer",
	Run:      run,
	Requires: []*analysis.Analyzer{buildssa.Analyzer},
	FactTypes: []analysis.Fact{
		new(returnResultsFact),
	},
}

func init() {
	Analyzer.Flags.BoolVar(&debugEnabled, "debug", false, "dump alias graphs and summary-replay soft errors to stderr")
}

// run schedules one goroutine per source function (spec §5: "parallel
// across functions, single-threaded within a function"), sharing one
// funcCache per pass across them so a callee summary computed for one
// caller is replayed, rather than expanded again, by callers that look
// it up afterwards.
func run(pass *analysis.Pass) (interface{}, error) {
	ssaInput, ok := pass.ResultOf[buildssa.Analyzer].(*buildssa.SSA)
	if !ok {
		return nil, nil
	}

	fm := newFuncCache()
	// reportMu guards only the parts of go/analysis's Pass that aren't
	// already made safe by funcCache's own locking (ExportObjectFact/
	// ImportObjectFact): emitting diagnostics and the textual report.
	// The actual per-function graph construction and traversal runs
	// fully in parallel.
	var reportMu sync.Mutex
	eg, ctx := errgroup.WithContext(context.Background())

	for _, fn := range ssaInput.SrcFuncs {
		fn := fn
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			analyzeFunc(pass, fm, &reportMu, fn)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return nil, nil
}

// analyzeFunc builds a fresh graph for fn, runs the SCC condenser and
// the alias/liveness engine over it, and surfaces whatever bugs survive
// through both the textual report (§6) and the analysis.Diagnostic
// channel. funcCache's cached summary for fn, if any (from fn having
// already been expanded as someone else's callee), accelerates nothing
// here: every source function gets its own independent traversal so its
// own bug records are always produced, but the resulting summary is
// still committed back for anyone who calls fn and hasn't been analyzed
// yet.
func analyzeFunc(pass *analysis.Pass, fm *funcCache, reportMu *sync.Mutex, fn *ssa.Function) {
	if fn.Blocks == nil {
		return
	}

	g := newGraph(fn)
	g.solveSCC()
	if len(g.blocks) > 0 {
		g.safedropCheck(pass, fm, 0)
	}
	fm.commit(pass, fn, g.returnResults)

	reportMu.Lock()
	defer reportMu.Unlock()
	outputWarning(fn, g.bugs)
	reportDiagnostics(pass, fn, g.bugs)
	if debugEnabled {
		dumpGraph(fn.String(), g)
		dumpSoftErrors(fn.String(), g.softErrors)
	}
}
