package analyzer

import (
	"sync"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/ssa"
)

// returnResultsFact rides go/analysis's own fact export/import
// mechanism -- exactly the pattern the teacher (Matts966/knil) already
// uses for its functionInfo fact -- to give the process-wide FuncMap
// cache of spec §3/§5 a concurrency-safe, durable-for-the-compilation-
// unit backing store for free, instead of hand-rolling one.
type returnResultsFact struct {
	Results returnResults
}

func (*returnResultsFact) AFact() {}

// funcCache is the FuncMap of spec §3: a two-tier cache (an in-memory
// map guarded by a mutex for same-pass callees not yet exported as a
// fact, plus go/analysis object facts for anything durable) and an
// in-progress set that breaks mutual recursion, per spec §9 "Summary
// caching across recursion". Safe for concurrent use by the errgroup
// of goroutines analyzer.run spawns, one per top-level function.
type funcCache struct {
	mu         sync.Mutex
	local      map[*ssa.Function]returnResults
	inProgress map[*ssa.Function]bool
}

func newFuncCache() *funcCache {
	return &funcCache{
		local:      map[*ssa.Function]returnResults{},
		inProgress: map[*ssa.Function]bool{},
	}
}

// lookup implements "readers must tolerate a missing entry even for a
// callee currently being analyzed elsewhere" (spec §5): a miss simply
// means "not cached, schedule local analysis".
func (c *funcCache) lookup(pass *analysis.Pass, fn *ssa.Function) (returnResults, bool) {
	c.mu.Lock()
	rr, ok := c.local[fn]
	c.mu.Unlock()
	if ok {
		return rr, true
	}

	obj := fn.Object()
	if obj == nil || pass == nil {
		return returnResults{}, false
	}
	var fact returnResultsFact
	c.mu.Lock()
	imported := pass.ImportObjectFact(obj, &fact)
	c.mu.Unlock()
	if imported {
		return fact.Results, true
	}
	return returnResults{}, false
}

// tryEnter returns false if fn is already being expanded, on this call
// chain or by another goroutine sharing the cache, i.e. the
// recursive-expansion guard of §9: "a caller that finds the callee
// in-progress skips the call (treating it as a conservative no-op)".
func (c *funcCache) tryEnter(fn *ssa.Function) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inProgress[fn] {
		return false
	}
	c.inProgress[fn] = true
	return true
}

func (c *funcCache) leave(fn *ssa.Function) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inProgress, fn)
}

// commit is idempotent-write, as required by §5: re-analyzing the
// same callee and overwriting its entry is harmless, since both
// analyses converge (up to set ordering) to an equal summary.
func (c *funcCache) commit(pass *analysis.Pass, fn *ssa.Function, rr returnResults) {
	c.mu.Lock()
	c.local[fn] = rr
	c.mu.Unlock()

	obj := fn.Object()
	if obj == nil || pass == nil {
		return
	}
	c.mu.Lock()
	pass.ExportObjectFact(obj, &returnResultsFact{Results: rr})
	c.mu.Unlock()
}
