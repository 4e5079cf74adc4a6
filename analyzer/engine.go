package analyzer

import (
	"go/token"
	"sort"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/ssa"
)

// safedropCheck is the recursive traversal driver of spec §4.4: one
// call per condensed block, exploring every successor path under a
// snapshot/restore discipline so that one branch's alias mutations
// never leak into a sibling branch.
func (g *graph) safedropCheck(pass *analysis.Pass, fm *funcCache, bbIndex int) {
	g.visitTimes++
	if g.overVisited() {
		return
	}

	root := g.fatherBlock[bbIndex]
	current := g.blocks[root]
	moveSet := map[int]bool{}

	g.aliasCheck(root, moveSet)
	g.callAliasCheck(pass, fm, root, moveSet)
	g.dropCheck(root, current.isCleanup)
	for _, sub := range current.subBlocks {
		g.aliasCheck(sub, moveSet)
		g.callAliasCheck(pass, fm, sub, moveSet)
		g.dropCheck(sub, current.isCleanup)
	}

	if len(current.next) == 0 {
		if shouldCheck(g.fn) {
			g.bugCheck(current)
		}
		g.mergeResults(current.isCleanup)
		return
	}

	nextIndices := sortedKeys(current.next)

	loopFlag := true
	var ansBool int64
	sTarget := 0
	var discrTarget int
	var switchTargets *switchRecord

	if current.switchStmt != nil && len(current.subBlocks) == 0 {
		sr := current.switchStmt
		if sr.Discr != nil {
			place := g.resolveValue(sr.Discr, false)
			discrRoot := g.nodes[place].alias[0]
			if cb, ok := g.constantBool[discrRoot]; ok {
				loopFlag = false
				ansBool = cb
			} else if discrRoot != place {
				discrTarget = discrRoot
				switchTargets = sr
			}
		}
		if !loopFlag {
			if ansBool == sr.Value {
				sTarget = sr.TargetTrue
			} else {
				sTarget = sr.TargetFalse
			}
		}
	}

	switch {
	case len(current.next) == 1:
		g.safedropCheck(pass, fm, nextIndices[0])
	case !loopFlag:
		g.safedropCheck(pass, fm, sTarget)
	case switchTargets != nil:
		for _, target := range []int{switchTargets.TargetTrue, switchTargets.TargetFalse} {
			if g.overVisited() {
				continue
			}
			backupNodes := g.snapshotNodes()
			backupConst := g.snapshotConstantBool()
			value := switchTargets.Value
			if target == switchTargets.TargetFalse {
				value = 99999
			}
			g.constantBool[discrTarget] = value
			g.safedropCheck(pass, fm, target)
			g.nodes = backupNodes
			g.constantBool = backupConst
		}
	default:
		for _, idx := range nextIndices {
			if g.overVisited() {
				continue
			}
			backupNodes := g.snapshotNodes()
			backupConst := g.snapshotConstantBool()
			g.safedropCheck(pass, fm, idx)
			g.nodes = backupNodes
			g.constantBool = backupConst
		}
	}
}

// aliasCheck replays one block's assignments (spec §4.4.1/§4.4.2):
// discriminant reads only redirect alias[0], ordinary assignments run
// the use-after-free check on their right-hand side, refresh the
// left-hand side's liveness, and merge alias sets.
func (g *graph) aliasCheck(bbIndex int, moveSet map[int]bool) {
	bn := g.blocks[bbIndex]
	for _, cb := range bn.constBinds {
		nodeID := g.resolveValue(cb.Addr, false)
		g.constantBool[nodeID] = cb.Value
	}

	for _, a := range bn.assignments {
		l := g.resolveLHS(a.Left)
		r := g.resolveValue(a.Right, true)

		if a.Tag == tagDiscriminant {
			g.nodes[l].alias[0] = r
			continue
		}

		g.uafCheck(r, a.Pos, g.rootIndexOf(a.Right), false)
		g.fillAlive(l, a.Tick)

		if a.Tag == tagBoxInit {
			base, ok := g.nodes[l].sons[0]
			if ok {
				g.nodes[base].alive = a.Tick
				g.nodes[base+1].alive = a.Tick
				g.nodes[base+2].alive = a.Tick
			}
		}

		g.mergeAlias(moveSet, l, r)
	}
}

// dropCheck replays one block's reconstructed drop terminators (spec
// §4.4.2), flagging a double-free the moment a drop target is found
// already dead. isCleanup marks drops reached only via the function's
// panic-recovery block, so a double free found here lands in
// dfBugsUnwind rather than dfBugs.
func (g *graph) dropCheck(bbIndex int, isCleanup bool) {
	bn := g.blocks[bbIndex]
	for _, d := range bn.drops {
		place := g.resolveValue(d.Place, false)
		g.deadNode(place, d.Tick, d.Pos, false, isCleanup)
	}
}

// callAliasCheck replays one block's calls (spec §4.4.4).
func (g *graph) callAliasCheck(pass *analysis.Pass, fm *funcCache, bbIndex int, moveSet map[int]bool) {
	bn := g.blocks[bbIndex]
	for _, cr := range bn.calls {
		g.evalCall(pass, fm, moveSet, cr, cr.Tick)
	}
}

// evalCall is the per-call evaluation of spec §4.4.4: resolve dest and
// args, gate on how many are tracked, then either replay a cached
// callee summary, recursively analyze an uncached callee, or fall back
// to the conservative single-right-set heuristic when no MIR is
// available.
func (g *graph) evalCall(pass *analysis.Pass, fm *funcCache, moveSet map[int]bool, cr callRecord, lifeBegin int) {
	common := cr.Instr.Common()
	if common == nil {
		return
	}

	dest := g.resolveCallDest(cr.Instr)
	g.nodes[dest].alive = lifeBegin

	mergeVec := []int{dest}
	soSoFlag := 0
	if g.nodes[dest].soSo {
		soSoFlag++
	}

	for _, arg := range common.Args {
		if _, ok := arg.(*ssa.Const); ok {
			mergeVec = append(mergeVec, 0)
			continue
		}
		r := g.resolveValue(arg, true)
		g.uafCheck(r, cr.Pos, 0, true)
		mergeVec = append(mergeVec, r)
		if g.nodes[r].soSo {
			soSoFlag++
		}
	}

	callee := common.StaticCallee()
	if callee == nil {
		// Dynamic dispatch (an interface method or a call through a
		// closure/func value): in -wholeprogram mode, resolve it by
		// call-graph identity rather than guessing from the value's
		// shape -- the corner-case-by-name/value heuristics below are
		// the fallback for the ordinary per-package go/analysis mode,
		// which has no whole-program call graph to consult.
		if callees := g.dynamicCallees(cr.Instr); len(callees) == 1 {
			callee = callees[0]
		}
	}

	// should_check(callee) == false in the original means "callee is
	// itself a destructor"; a single tracked value is enough to justify
	// tracing into a call recognized as a drop, where ordinary calls
	// need at least two (matching corner_handle.rs's should_check, not
	// its inverted gloss in the distilled prose).
	calleeIsDrop := callee != nil && isDropLikeName(callee.Name())
	if !(soSoFlag > 1 || (soSoFlag > 0 && calleeIsDrop)) {
		return
	}

	if callee != nil && callee.Blocks != nil {
		g.replayOrExpand(pass, fm, callee, mergeVec, moveSet, cr.Pos)
		return
	}

	// IR unavailable: external function, intrinsic, or a dynamic
	// dispatch the call graph couldn't resolve to exactly one target.
	if callee != nil && isCornerCaseCallee(callee) {
		return
	}
	if common.Value != nil && isCornerCaseValue(common.Value) {
		return
	}
	if g.nodes[dest].soSo && g.nodes[dest].isPtr() {
		var rightSet []int
		for _, a := range mergeVec[1:] {
			if g.nodes[a].soSo {
				rightSet = append(rightSet, a)
			}
		}
		if len(rightSet) == 1 {
			g.mergeAlias(moveSet, dest, rightSet[0])
		}
	}
}

// resolveCallDest resolves a call instruction's own "place": for a
// value-producing call this is just resolveValue of the instruction
// itself; *ssa.Go and *ssa.Defer produce no value (Value() returns
// nil), so they get a synthetic throwaway node, matching the spirit of
// the original's always-present dest slot.
func (g *graph) resolveCallDest(instr ssa.CallInstruction) int {
	if v := instr.Value(); v != nil {
		return g.resolveValue(v, false)
	}
	return g.syntheticNode(instr)
}

// dynamicCallees resolves a call instruction's possible targets through
// the whole-program call graph, when one was supplied (-wholeprogram
// mode only). Returns nil in the ordinary per-package analysis mode.
func (g *graph) dynamicCallees(instr ssa.CallInstruction) []*ssa.Function {
	if g.callGraph == nil {
		return nil
	}
	node := g.callGraph.Nodes[g.fn]
	if node == nil {
		return nil
	}
	var out []*ssa.Function
	for _, e := range node.Out {
		if e.Site == instr {
			out = append(out, e.Callee.Func)
		}
	}
	return out
}

func (g *graph) syntheticNode(instr ssa.Instruction) int {
	if g.instrNode == nil {
		g.instrNode = map[ssa.Instruction]int{}
	}
	if id, ok := g.instrNode[instr]; ok {
		return id
	}
	id := len(g.nodes)
	n := newNode(id, id, false, false)
	g.nodes = append(g.nodes, n)
	g.instrNode[instr] = id
	return id
}

// replayOrExpand replays a cached callee summary, or analyzes an
// uncached callee on demand and caches the result -- the interprocedural
// half of spec §4.4.4/§5. An in-progress callee (mutual recursion) is
// skipped as a conservative no-op.
func (g *graph) replayOrExpand(pass *analysis.Pass, fm *funcCache, callee *ssa.Function, mergeVec []int, moveSet map[int]bool, pos token.Pos) {
	if rr, ok := fm.lookup(pass, callee); ok {
		g.replaySummary(callee, rr, mergeVec, moveSet, pos)
		return
	}
	if !fm.tryEnter(callee) {
		return
	}
	defer fm.leave(callee)

	child := newGraph(callee)
	child.solveSCC()
	if len(child.blocks) > 0 {
		child.safedropCheck(pass, fm, 0)
	}
	rr := child.returnResults
	fm.commit(pass, callee, rr)
	g.replaySummary(callee, rr, mergeVec, moveSet, pos)
}

// replaySummary applies a callee's ReturnResults against this call's
// actual argument/dest nodes (spec §4.4.3/§7): an assignment or dead
// index referencing an argument slot this call site doesn't have is a
// malformed-summary condition -- a stale fact from a previous build, or
// a callee whose signature changed underneath a cached entry. It's
// recorded as a soft error and skipped rather than causing a panic.
func (g *graph) replaySummary(callee *ssa.Function, rr returnResults, mergeVec []int, moveSet map[int]bool, pos token.Pos) {
	for _, assign := range rr.Assignments {
		if !assign.valuable() {
			continue
		}
		if assign.LeftIndex < 0 || assign.LeftIndex >= len(mergeVec) {
			g.softErrors = append(g.softErrors, newSummaryReplayError(callee, assign.LeftIndex, len(mergeVec)))
			continue
		}
		if assign.RightIndex < 0 || assign.RightIndex >= len(mergeVec) {
			g.softErrors = append(g.softErrors, newSummaryReplayError(callee, assign.RightIndex, len(mergeVec)))
			continue
		}
		g.mergeSummary(moveSet, assign, mergeVec)
	}
	for _, deadIdx := range sortedDeadKeys(rr.Dead) {
		if deadIdx < 0 || deadIdx >= len(mergeVec) {
			g.softErrors = append(g.softErrors, newSummaryReplayError(callee, deadIdx, len(mergeVec)))
			continue
		}
		g.deadNode(mergeVec[deadIdx], 99999, pos, false, false)
	}
}

// mergeAlias merges right's alias set into left's, growing left's
// field tree to mirror any of right's fields it doesn't already have
// (spec §4.4.1's merge_alias / tools.rs's merge_alias).
func (g *graph) mergeAlias(moveSet map[int]bool, left, right int) {
	if g.nodes[left].index == g.nodes[right].index {
		return
	}
	if moveSet[left] {
		g.nodes[left].alias = append(g.nodes[left].alias, g.nodes[right].alias...)
	} else {
		moveSet[left] = true
		g.nodes[left].alias = append([]int{}, g.nodes[right].alias...)
	}

	for _, field := range sortedFields(g.nodes[right].sons) {
		rightSon := g.nodes[right].sons[field]
		lSon, ok := g.nodes[left].sons[field]
		if !ok {
			n := newNode(g.nodes[left].index, len(g.nodes), g.nodes[rightSon].needDrop, g.nodes[rightSon].soSo)
			n.kind = g.nodes[rightSon].kind
			n.alive = g.nodes[left].alive
			n.fieldInfo = append(append([]int{}, g.nodes[left].fieldInfo...), field)
			g.nodes = append(g.nodes, n)
			g.nodes[left].sons[field] = n.id
			lSon = n.id
		}
		g.mergeAlias(moveSet, lSon, rightSon)
	}
}

// mergeSummary walks a cached callee's field-path alias relation down
// from the caller's actual left/right argument nodes, materializing any
// field it doesn't find yet (tools.rs's merge), then merges the two
// resulting leaves.
func (g *graph) mergeSummary(moveSet map[int]bool, assign returnAssign, argVec []int) {
	leftInit := argVec[assign.LeftIndex]
	rightInit := argVec[assign.RightIndex]
	leftSSA := leftInit
	rightSSA := rightInit

	for _, idx := range assign.Left {
		if child, ok := g.nodes[leftSSA].sons[idx]; ok {
			leftSSA = child
			continue
		}
		n := newNode(leftInit, len(g.nodes), assign.LeftNeedDrop, assign.LeftSoSo)
		n.kind = kindRawPtr
		n.alive = g.nodes[leftSSA].alive
		n.fieldInfo = append(append([]int{}, g.nodes[leftSSA].fieldInfo...), idx)
		g.nodes = append(g.nodes, n)
		g.nodes[leftSSA].sons[idx] = n.id
		leftSSA = n.id
	}

	for _, idx := range assign.Right {
		if g.nodes[rightSSA].alias[0] != rightSSA {
			rightSSA = g.nodes[rightSSA].alias[0]
			rightInit = g.nodes[rightSSA].index
		}
		if child, ok := g.nodes[rightSSA].sons[idx]; ok {
			rightSSA = child
			continue
		}
		n := newNode(rightInit, len(g.nodes), assign.RightNeedDrop, assign.RightSoSo)
		n.kind = kindRawPtr
		n.alive = g.nodes[rightSSA].alive
		n.fieldInfo = append(append([]int{}, g.nodes[rightSSA].fieldInfo...), idx)
		g.nodes = append(g.nodes, n)
		g.nodes[rightSSA].sons[idx] = n.id
		rightSSA = n.id
	}

	g.mergeAlias(moveSet, leftSSA, rightSSA)
}

// deadNode marks drop as dropped, recursing through its alias set and,
// unless aliasFlag (we arrived here via an alias rather than a direct
// drop), its field tree -- spec §4.4.2's recursive kill, grounded on
// tools.rs's dead_node. A corner-case ADT (sync.Once, an atomic, a weak
// pointer) is never considered droppable. A slot whose alive tick is
// at or after lifeBegin was (re)written at or after this drop's own
// tick and is left alive. isCleanup routes a double free found
// here to dfBugsUnwind instead of dfBugs.
func (g *graph) deadNode(drop, lifeBegin int, pos token.Pos, aliasFlag, isCleanup bool) {
	nd := g.nodes[drop]
	if nd.isCorner() {
		return
	}
	if g.dfCheck(drop, pos, isCleanup) {
		return
	}

	if nd.alias[0] != drop {
		for _, a := range append([]int{}, nd.alias...) {
			if a == drop || g.nodes[a].isRef() {
				continue
			}
			g.deadNode(a, lifeBegin, pos, true, isCleanup)
		}
	}

	if !aliasFlag {
		for _, field := range sortedFields(nd.sons) {
			son := nd.sons[field]
			if nd.isTuple() && !g.nodes[son].needDrop {
				continue
			}
			g.deadNode(son, lifeBegin, pos, false, isCleanup)
		}
	}

	if g.nodes[drop].alive < lifeBegin && g.nodes[drop].soSo {
		g.nodes[drop].alive = -1
	}
}

// dfCheck records (and reports) a double-free the first time drop is
// found already dead, deduplicated per root index as spec §9 requires.
// isCleanup splits the record into dfBugsUnwind so a double free found
// only on the panic-recovery path is never conflated with one found on
// the normal-return path.
func (g *graph) dfCheck(drop int, pos token.Pos, isCleanup bool) bool {
	nd := g.nodes[drop]
	if nd.isAlive() {
		return false
	}
	bucket := g.bugs.dfBugs
	if isCleanup {
		bucket = g.bugs.dfBugsUnwind
	}
	if _, ok := bucket[nd.index]; !ok {
		bucket[nd.index] = pos
	}
	return true
}

// fillAlive refreshes a node's (and its still-unset aliases', and its
// whole field tree's) liveness timestamp in one assignment's wake,
// grounded on tools.rs's fill_alive. Safe without a visited set: sons
// form a strict tree by construction (every son is either an existing
// child or a newly appended one), so this always terminates.
func (g *graph) fillAlive(n, alive int) {
	g.nodes[n].alive = alive
	for _, a := range g.nodes[n].alias {
		if g.nodes[a].alive == -1 {
			g.nodes[a].alive = alive
		}
	}
	for _, field := range sortedFields(g.nodes[n].sons) {
		g.fillAlive(g.nodes[n].sons[field], alive)
	}
}

// existDead reports whether n, or anything reachable from it through
// alias links or field sons, is currently dead -- spec §4.4.5's
// use-after-free / dangling-pointer-at-return primitive, grounded on
// tools.rs's exist_dead. dangling restricts the "dead" test to pointer-
// kinded nodes, matching the dangling-pointer-at-return check's
// narrower scope relative to the general use-after-free check.
func (g *graph) existDead(n int, visited map[int]bool, dangling bool) bool {
	nd := g.nodes[n]
	dead := !nd.isAlive()
	condition := (dangling && nd.isPtr()) || !dangling
	if dead && condition {
		return true
	}

	visited[n] = true
	if nd.alias[0] != n {
		for _, a := range nd.alias {
			if a != n && !visited[a] && g.existDead(a, visited, dangling) {
				return true
			}
		}
	}
	for _, field := range sortedFields(nd.sons) {
		son := nd.sons[field]
		if !visited[son] && g.existDead(son, visited, dangling) {
			return true
		}
	}
	return false
}

// uafCheck is the use-after-free leaf check of spec §4.4.5: reading a
// dangling pointer's own address without dereferencing or passing it
// anywhere is permitted; dereferencing it, or passing it as a call
// argument, is not.
func (g *graph) uafCheck(used int, pos token.Pos, origin int, isCallArg bool) {
	nd := g.nodes[used]
	if !nd.soSo {
		return
	}
	if nd.isPtr() && nd.index == origin && !isCallArg {
		return
	}
	if g.existDead(used, map[int]bool{}, false) {
		g.bugs.uafBugs[pos] = true
	}
}

// dpCheck is the dangling-pointer-at-return check of spec §4.4.5.
func (g *graph) dpCheck(local int) bool {
	return g.existDead(local, map[int]bool{}, local != 0)
}

// bugCheck runs dpCheck over the return slot and (for a cleanup path,
// only over) the parameters, at every leaf block -- spec §4.4.5's
// final-state bug recording.
func (g *graph) bugCheck(current *blockNode) {
	if !current.isCleanup {
		if g.nodes[0].soSo && g.dpCheck(0) {
			g.bugs.dpBug = true
			return
		}
		for i := 0; i < g.argSize; i++ {
			if g.nodes[i+1].isPtr() && g.dpCheck(i+1) {
				g.bugs.dpBug = true
			}
		}
		return
	}
	for i := 0; i < g.argSize; i++ {
		if g.nodes[i+1].isPtr() && g.dpCheck(i+1) {
			g.bugs.dpBugUnwind = true
		}
	}
}

// rootIndexOf finds the root local of a place -- its identity before
// any Field/Deref projection is applied, matching MIR's Place::local
// (which is always the undecorated root, unlike our node.index which
// can change across a Deref boundary).
func (g *graph) rootIndexOf(v ssa.Value) int {
	base := baseValue(v)
	id := g.leafNode(base)
	return g.nodes[id].index
}

func baseValue(v ssa.Value) ssa.Value {
	for {
		switch t := v.(type) {
		case *ssa.FieldAddr:
			v = t.X
		case *ssa.IndexAddr:
			v = t.X
		case *ssa.UnOp:
			if t.Op == token.MUL {
				v = t.X
				continue
			}
			return v
		default:
			return v
		}
	}
}

// snapshotNodes deep-copies the node vector so a branch's exploration
// can be rolled back without corrupting a sibling branch's view (spec
// §4.4.6's snapshot/restore).
func (g *graph) snapshotNodes() []*node {
	out := make([]*node, len(g.nodes))
	for i, n := range g.nodes {
		cp := *n
		cp.alias = append([]int{}, n.alias...)
		cp.fieldInfo = append([]int{}, n.fieldInfo...)
		cp.sons = make(map[int]int, len(n.sons))
		for k, v := range n.sons {
			cp.sons[k] = v
		}
		out[i] = &cp
	}
	return out
}

func (g *graph) snapshotConstantBool() map[int]int64 {
	out := make(map[int]int64, len(g.constantBool))
	for k, v := range g.constantBool {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func sortedDeadKeys(m map[int]bool) []int { return sortedKeys(m) }

func sortedFields(m map[int]int) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
