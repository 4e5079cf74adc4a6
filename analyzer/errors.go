package analyzer

import (
	"golang.org/x/tools/go/ssa"
	"golang.org/x/xerrors"
)

// errSummaryReplay wraps the soft failures spec §7 calls out explicitly
// as non-fatal: a cached callee summary whose Assignments/Dead
// reference an argument index this call site doesn't have (a stale or
// malformed cache entry) must not abort analysis of the caller. These
// are recorded rather than returned, since golang.org/x/tools/go/
// analysis has no channel for a per-callsite warning short of a
// diagnostic, and emitting one for an internal bookkeeping miss would
// be noise for the function's own user.
type errSummaryReplay struct {
	Callee *ssa.Function
	Index  int
	Bound  int
}

func (e *errSummaryReplay) Error() string {
	return xerrors.Errorf("safedrop: summary replay for %s referenced argument index %d, have %d: %w",
		e.Callee, e.Index, e.Bound, errMalformedSummary).Error()
}

func (e *errSummaryReplay) Unwrap() error { return errMalformedSummary }

var errMalformedSummary = xerrors.New("malformed callee summary")

// newSummaryReplayError builds the soft-failure value replaySummary
// appends to graph.softErrors (analyzer.go's analyzeFunc dumps these
// through spew in -debug mode instead of failing the pass).
func newSummaryReplayError(callee *ssa.Function, index, bound int) error {
	return &errSummaryReplay{Callee: callee, Index: index, Bound: bound}
}
