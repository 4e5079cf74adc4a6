package analyzer

import (
	"go/constant"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/ssa"
)

// assignTag mirrors the spec's assignment type tag (§3).
type assignTag int

const (
	tagAlias       assignTag = iota // 0: copy, borrow, address-of, cast, aggregate field
	tagMove                         // 1: move (behaviorally identical to tagAlias in the engine, kept for fidelity)
	tagBoxInit                      // 2: heap allocation immediately initialized
	tagDiscriminant                 // 3: discriminant-style read, redirects alias[0] only
)

// lhs is the left-hand side of a translated assignment. Most
// assignments target an ordinary addressable ssa.Value (Value set);
// assignments into the synthetic return slot or into one field of an
// aggregate/closure object carry Field >= 0, stepped after resolving
// Value (or node 0, for ReturnSlot).
type lhs struct {
	Value      ssa.Value
	ReturnSlot bool
	Field      int // -1: no extra step
}

func directLHS(v ssa.Value) lhs           { return lhs{Value: v, Field: -1} }
func fieldLHS(v ssa.Value, field int) lhs { return lhs{Value: v, Field: field} }
func returnLHS(field int) lhs             { return lhs{ReturnSlot: true, Field: field} }

// assignment is the self-defined assignment structure of spec §3 /
// graph.rs's Assignment. Tick is this assignment's position in the
// function-wide instruction order (see graph.nextTick): the original
// gates liveness at block granularity because MIR's Drop always
// terminates its own block, giving consecutive drops of one place
// distinct life-begin values for free. An ordinary Go call doesn't
// terminate its block, so two drop-like calls on the same place often
// land in one *ssa.BasicBlock; block-granularity liveness would then
// never observe the first drop as "earlier" than the second. Stamping
// every assignment/call/drop with its own monotonic tick at build time,
// and gating life-begin comparisons on that instead of the block id,
// restores the intra-block ordering the original gets from Drop
// terminators, at the cost of the original's SCC-wide collapsing (which
// protected a narrower case: a value dropped and reassigned within the
// same loop iteration). See DESIGN.md.
type assignment struct {
	Left  lhs
	Right ssa.Value
	Tag   assignTag
	Pos   token.Pos
	Tick  int
}

// callRecord captures a call/go/defer terminator for later
// interprocedural evaluation (§4.4.4).
type callRecord struct {
	Pos   token.Pos
	Instr ssa.CallInstruction
	Tick  int
}

// dropRecord captures a reconstructed drop (DESIGN.md, "Drop
// reconstruction"): a call recognized, by the drop-like name filter,
// as relinquishing ownership of its receiver/first argument.
type dropRecord struct {
	Pos   token.Pos
	Place ssa.Value
	Tick  int
}

// switchRecord is the two-way SwitchInt abstraction of spec §4.4.6,
// reconstructed from an `*ssa.If` over an equality/inequality
// comparison -- see eqSwitch.
type switchRecord struct {
	Discr       ssa.Value // nil if not a place comparison
	Value       int64
	TargetTrue  int
	TargetFalse int
}

type constBind struct {
	Addr  ssa.Value
	Value int64
}

// blockNode is a condensed CFG block (spec §3's BlockNode). Before SCC
// condensation every blockNode corresponds to exactly one
// *ssa.BasicBlock; after condensation, an SCC's entry block absorbs
// its members into subBlocks.
type blockNode struct {
	id         int
	isCleanup  bool
	next       map[int]bool
	assignments []assignment
	calls      []callRecord
	drops      []dropRecord
	switchStmt *switchRecord
	subBlocks  []int
	constBinds []constBind
}

func newBlockNode(id int, isCleanup bool) *blockNode {
	return &blockNode{id: id, isCleanup: isCleanup, next: map[int]bool{}}
}

func (b *blockNode) addNext(i int) { b.next[i] = true }

// graph is the per-function SafeDropGraph of spec §3.
type graph struct {
	fn      *ssa.Function
	span    token.Pos
	nodes   []*node
	blocks  []*blockNode
	argSize int

	fatherBlock  []int
	constantBool map[int]int64
	count        int

	returnResults returnResults
	returnSet     map[[2]int]bool

	bugs       *bugRecords
	visitTimes int

	valueNode map[ssa.Value]int
	instrNode map[ssa.Instruction]int

	softErrors []error

	// callGraph is non-nil only in the -wholeprogram CLI mode (see
	// wholeprogram.go), where it lets evalCall resolve a dynamic
	// dispatch's actual callee(s) by call-graph identity instead of
	// falling back to the name/value-shape corner-case heuristics.
	callGraph *callgraph.Graph

	// tickCounter hands out the monotonically increasing Tick stamped
	// on every assignment/callRecord/dropRecord at build time, in
	// fn.Blocks order. See the assignment doc comment above.
	tickCounter int
}

// nextTick returns the next instruction-order tick, starting at 0.
func (g *graph) nextTick() int {
	t := g.tickCounter
	g.tickCounter++
	return t
}

const visitCap = 10000

// overVisited reports whether the per-function path-exploration budget
// (spec §4.4, §7) has been exhausted.
func (g *graph) overVisited() bool { return g.visitTimes > visitCap }

// newGraph runs the Graph Builder (spec §4.2) over fn, producing an
// initialized node vector and block vector. fn.Blocks == nil (no MIR
// available, e.g. an external or intrinsic function) yields an empty
// graph, matching the "functions with zero basic blocks" boundary
// behavior of §8.
func newGraph(fn *ssa.Function) *graph {
	g := &graph{
		fn:           fn,
		span:         fn.Pos(),
		constantBool: map[int]int64{},
		returnResults: newReturnResults(0),
		returnSet:     map[[2]int]bool{},
		bugs:          newBugRecords(),
		valueNode:     map[ssa.Value]int{},
	}

	g.nodes = append(g.nodes, g.makeReturnNode())
	for _, p := range fn.Params {
		id := len(g.nodes)
		g.nodes = append(g.nodes, g.leafNodeForType(id, p.Type()))
		g.valueNode[p] = id
	}
	for _, fv := range fn.FreeVars {
		id := len(g.nodes)
		g.nodes = append(g.nodes, g.leafNodeForType(id, fv.Type()))
		g.valueNode[fv] = id
	}
	g.argSize = len(g.nodes) - 1
	g.returnResults.ArgSize = g.argSize

	if fn.Blocks == nil {
		return g
	}

	for _, b := range fn.Blocks {
		g.fatherBlock = append(g.fatherBlock, b.Index)
	}
	for _, b := range fn.Blocks {
		g.blocks = append(g.blocks, g.buildBlock(b))
	}
	return g
}

func (g *graph) makeReturnNode() *node {
	results := g.fn.Signature.Results()
	n := newNode(0, 0, false, false)
	switch results.Len() {
	case 0:
		// no return value: untracked, never dangling.
	case 1:
		t := results.At(0).Type()
		n.needDrop = needsDrop(t)
		n.soSo = tracked(t)
		n.kind = classifyKind(t)
	default:
		n.kind = kindTuple
		for i := 0; i < results.Len(); i++ {
			t := results.At(i).Type()
			n.needDrop = n.needDrop || needsDrop(t)
			n.soSo = n.soSo || tracked(t)
		}
	}
	return n
}

func (g *graph) leafNodeForType(id int, t types.Type) *node {
	n := newNode(id, id, needsDrop(t), tracked(t))
	n.kind = classifyKind(t)
	return n
}

// leafNode returns (allocating if necessary) the node for a
// non-address ssa.Value that isn't reached by any further projection:
// a fresh root, analogous to a freshly declared MIR local.
func (g *graph) leafNode(v ssa.Value) int {
	if id, ok := g.valueNode[v]; ok {
		return id
	}
	id := len(g.nodes)
	n := g.leafNodeForType(id, v.Type())
	if alloc, ok := v.(*ssa.Alloc); ok && alloc.Heap {
		g.nodes = append(g.nodes, n)
		g.materializeBox(id)
	} else {
		g.nodes = append(g.nodes, n)
	}
	g.valueNode[v] = id
	return id
}

// materializeBox builds the three-level field tree a heap allocation
// carries beneath it, exactly as graph.rs's ShallowInitBox handling
// does for Box::new.
func (g *graph) materializeBox(root int) {
	if _, ok := g.nodes[root].sons[0]; ok {
		return
	}
	base := g.nodes[root].alive
	n0 := newNode(root, len(g.nodes), false, true)
	n0.fieldInfo = append(append([]int{}, g.nodes[root].fieldInfo...), 0)
	n0.alive = base
	g.nodes = append(g.nodes, n0)

	n1 := newNode(root, len(g.nodes), false, true)
	n1.fieldInfo = append(append([]int{}, n0.fieldInfo...), 0)
	n1.alive = base
	g.nodes = append(g.nodes, n1)

	n2 := newNode(root, len(g.nodes), false, true)
	n2.fieldInfo = append(append([]int{}, n1.fieldInfo...), 0)
	n2.kind = kindRawPtr
	n2.alive = base
	g.nodes = append(g.nodes, n2)

	g.nodes[root].sons[0] = n0.id
	n0.sons[0] = n1.id
	n1.sons[0] = n2.id
}

func (g *graph) buildBlock(b *ssa.BasicBlock) *blockNode {
	bn := newBlockNode(b.Index, b == g.fn.Recover)
	for _, instr := range b.Instrs {
		g.translateInstr(bn, instr)
	}
	for _, s := range b.Succs {
		bn.addNext(s.Index)
	}
	bn.switchStmt = eqSwitch(b)
	return bn
}

// translateInstr appends zero or more assignments/calls/drops derived
// from a single SSA instruction, per the Rvalue translation table of
// spec §4.2.
func (g *graph) translateInstr(bn *blockNode, instr ssa.Instruction) {
	switch v := instr.(type) {
	case *ssa.Store:
		g.translateStore(bn, v)
	case ssa.CallInstruction:
		bn.calls = append(bn.calls, callRecord{Pos: instr.Pos(), Instr: v, Tick: g.nextTick()})
		if common := v.Common(); common != nil {
			if callee := common.StaticCallee(); callee != nil && isDropLikeName(callee.Name()) {
				if place := dropReceiver(common); place != nil {
					bn.drops = append(bn.drops, dropRecord{Pos: instr.Pos(), Place: place, Tick: g.nextTick()})
				}
			}
		}
	case *ssa.Return:
		g.translateReturn(bn, v)
	}
}

func dropReceiver(c *ssa.CallCommon) ssa.Value {
	if c.IsInvoke() {
		return c.Value
	}
	if len(c.Args) > 0 {
		return c.Args[0]
	}
	return nil
}

func (g *graph) translateReturn(bn *blockNode, ret *ssa.Return) {
	switch len(ret.Results) {
	case 0:
		return
	case 1:
		bn.assignments = append(bn.assignments, assignment{
			Left: returnLHS(-1), Right: unwrapValue(ret.Results[0]), Tag: tagAlias, Pos: ret.Pos(), Tick: g.nextTick(),
		})
	default:
		for i, r := range ret.Results {
			bn.assignments = append(bn.assignments, assignment{
				Left: returnLHS(i), Right: unwrapValue(r), Tag: tagAlias, Pos: ret.Pos(), Tick: g.nextTick(),
			})
		}
	}
}

func (g *graph) translateStore(bn *blockNode, st *ssa.Store) {
	if c, ok := st.Val.(*ssa.Const); ok {
		if v, ok := constIntOrBool(c); ok {
			bn.constBinds = append(bn.constBinds, constBind{Addr: st.Addr, Value: v})
		}
		return
	}

	if assert, ok := st.Val.(*ssa.TypeAssert); ok && !assert.CommaOk {
		bn.assignments = append(bn.assignments, assignment{
			Left: directLHS(st.Addr), Right: assert.X, Tag: tagDiscriminant, Pos: st.Pos(), Tick: g.nextTick(),
		})
		return
	}

	tag := tagAlias
	if alloc, ok := st.Addr.(*ssa.Alloc); ok && alloc.Heap {
		tag = tagBoxInit
	}

	switch val := st.Val.(type) {
	case *ssa.Aggregate:
		for i, elem := range val.Vals {
			if _, ok := elem.(*ssa.Const); ok {
				continue
			}
			bn.assignments = append(bn.assignments, assignment{
				Left: fieldLHS(st.Addr, i), Right: unwrapValue(elem), Tag: tagAlias, Pos: st.Pos(), Tick: g.nextTick(),
			})
		}
	case *ssa.MakeClosure:
		for i, binding := range val.Bindings {
			if _, ok := binding.(*ssa.Const); ok {
				continue
			}
			bn.assignments = append(bn.assignments, assignment{
				Left: fieldLHS(st.Addr, i), Right: unwrapValue(binding), Tag: tagAlias, Pos: st.Pos(), Tick: g.nextTick(),
			})
		}
	default:
		bn.assignments = append(bn.assignments, assignment{
			Left: directLHS(st.Addr), Right: unwrapValue(st.Val), Tag: tag, Pos: st.Pos(), Tick: g.nextTick(),
		})
	}
}

// unwrapValue peels cast-like wrappers (spec §4.2's Cast handling) down
// to the underlying operand.
func unwrapValue(v ssa.Value) ssa.Value {
	for {
		switch c := v.(type) {
		case *ssa.ChangeType:
			v = c.X
		case *ssa.Convert:
			v = c.X
		case *ssa.MakeInterface:
			v = c.X
		case *ssa.ChangeInterface:
			v = c.X
		case *ssa.Slice:
			v = c.X
		default:
			return v
		}
	}
}

// constIntOrBool mirrors graph.rs's const-value translation: only
// integer and boolean constants are recorded for path-sensitive
// filtering (try_to_scalar / try_eval_usize / try_to_bool in the
// original); anything else is discarded.
func constIntOrBool(c *ssa.Const) (int64, bool) {
	return constantInt64(c)
}

// constantInt64 extracts an integer or boolean constant's value as an
// int64 (true => 1, false => 0), used both for const-bind recording
// and for switch-target matching.
func constantInt64(c *ssa.Const) (int64, bool) {
	if c.Value == nil {
		return 0, false
	}
	switch c.Value.Kind() {
	case constant.Bool:
		if constant.BoolVal(c.Value) {
			return 1, true
		}
		return 0, true
	case constant.Int:
		if i, ok := constant.Int64Val(c.Value); ok {
			return i, true
		}
	}
	return 0, false
}

// eqSwitch mirrors knil.go's eq() helper, adapted to produce our
// switchRecord abstraction instead of a nilness fact: if b ends with
// an equality/inequality comparison against a constant, returns the
// compared place, the constant value, and the two successor indices
// ordered (match, otherwise).
func eqSwitch(b *ssa.BasicBlock) *switchRecord {
	if len(b.Instrs) == 0 {
		return nil
	}
	ifInstr, ok := b.Instrs[len(b.Instrs)-1].(*ssa.If)
	if !ok {
		return nil
	}
	binop, ok := ifInstr.Cond.(*ssa.BinOp)
	if !ok {
		return nil
	}
	var place ssa.Value
	var constOperand *ssa.Const
	if c, ok := binop.Y.(*ssa.Const); ok {
		place, constOperand = binop.X, c
	} else if c, ok := binop.X.(*ssa.Const); ok {
		place, constOperand = binop.Y, c
	} else {
		return nil
	}
	val, ok := constantInt64(constOperand)
	if !ok {
		return nil
	}
	sr := &switchRecord{Discr: place, Value: val}
	switch binop.Op {
	case token.EQL:
		sr.TargetTrue, sr.TargetFalse = b.Succs[0].Index, b.Succs[1].Index
	case token.NEQ:
		sr.TargetTrue, sr.TargetFalse = b.Succs[1].Index, b.Succs[0].Index
	default:
		return nil
	}
	return sr
}
