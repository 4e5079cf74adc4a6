package analyzer

import (
	"go/token"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
)

// newTestGraph builds a *graph with a preset node vector, bypassing
// newGraph's ssa.Function-driven construction so the engine's node-level
// invariants can be exercised directly.
func newTestGraph(nodes ...*node) *graph {
	return &graph{nodes: nodes, bugs: newBugRecords()}
}

// TestDeadNodePropagatesThroughMustAlias checks spec §8 invariant 5:
// dropping a node kills every must-alias of it that isn't a reference.
func TestDeadNodePropagatesThroughMustAlias(t *testing.T) {
	a := newNode(0, 0, true, true)
	a.kind = kindRawPtr
	b := newNode(1, 1, true, true)
	b.kind = kindRawPtr
	b.alias = []int{a.id} // b is a must-alias copy of a, not a's own id

	g := newTestGraph(a, b)
	g.deadNode(b.id, 1, token.NoPos, false, false)

	assert.Equal(t, -1, a.alive)
	assert.Equal(t, -1, b.alive)
}

// TestDeadNodeSkipsReferenceAlias checks that deadNode never kills a
// reference-kind node reached through an owner's alias set: dropping an
// owner whose alias[0] points at a reference-kind node must leave that
// node alive.
func TestDeadNodeSkipsReferenceAlias(t *testing.T) {
	owner := newNode(0, 0, true, true)
	owner.kind = kindRawPtr
	ref := newNode(1, 1, true, true)
	ref.kind = kindRef
	owner.alias = []int{ref.id}

	g := newTestGraph(owner, ref)
	g.deadNode(owner.id, 1, token.NoPos, false, false)

	assert.Equal(t, -1, owner.alive)
	assert.Equal(t, 0, ref.alive, "a reference must never be killed by the owner that points at it")
}

// TestDeadNodeRCLikeIsNoOp checks spec §8's "Drop of an rc-like node is
// a no-op on liveness".
func TestDeadNodeRCLikeIsNoOp(t *testing.T) {
	once := newNode(0, 0, false, true)
	once.kind = kindRCLike

	g := newTestGraph(once)
	g.deadNode(once.id, 1, token.NoPos, false, false)
	g.deadNode(once.id, 2, token.NoPos, false, false)

	assert.Equal(t, 0, once.alive)
	assert.Empty(t, g.bugs.dfBugs)
}

// TestDoubleFreeDedupPerRoot drops the same node twice: the first drop
// only establishes deadness, the second is where the double free is
// actually detected and recorded, keyed by root index (spec §8
// scenario 1, §9 "Bug deduplication"). A third drop must not overwrite
// the recorded span.
func TestDoubleFreeDedupPerRoot(t *testing.T) {
	r := newNode(5, 0, true, true)
	r.kind = kindRawPtr

	g := newTestGraph(r)
	g.deadNode(r.id, 1, token.Pos(100), false, false)
	assert.Empty(t, g.bugs.dfBugs, "a node that wasn't already dead is not a double free")

	g.deadNode(r.id, 2, token.Pos(200), false, false)
	assert.Equal(t, token.Pos(200), g.bugs.dfBugs[5])

	g.deadNode(r.id, 3, token.Pos(300), false, false)
	assert.Equal(t, token.Pos(200), g.bugs.dfBugs[5], "only the first detected double free per root is kept")
}

// TestDeadNodeUnwindRoutesToSeparateBucket checks that a double free
// found while isCleanup is set is recorded in dfBugsUnwind, never
// dfBugs, and that the two buckets dedup independently per root.
func TestDeadNodeUnwindRoutesToSeparateBucket(t *testing.T) {
	r := newNode(5, 0, true, true)
	r.kind = kindRawPtr

	g := newTestGraph(r)
	g.deadNode(r.id, 1, token.Pos(100), false, true)
	assert.Empty(t, g.bugs.dfBugs)
	assert.Empty(t, g.bugs.dfBugsUnwind)

	g.deadNode(r.id, 2, token.Pos(200), false, true)
	assert.Empty(t, g.bugs.dfBugs, "an unwind-path double free must never land in the normal-return bucket")
	assert.Equal(t, token.Pos(200), g.bugs.dfBugsUnwind[5])
}

// TestMergeAliasOverwriteThenAccumulate checks spec §4.4.3: the first
// alias assignment to a left node in a block overwrites, subsequent
// assignments accumulate.
func TestMergeAliasOverwriteThenAccumulate(t *testing.T) {
	left := newNode(0, 0, true, true)
	right1 := newNode(1, 1, true, true)
	right2 := newNode(2, 2, true, true)

	g := newTestGraph(left, right1, right2)
	moveSet := map[int]bool{}

	g.mergeAlias(moveSet, left.id, right1.id)
	assert.Equal(t, []int{right1.id}, left.alias)

	g.mergeAlias(moveSet, left.id, right2.id)
	assert.Equal(t, []int{right1.id, right2.id}, left.alias)
}

// TestMergeAliasGrowsFieldTree checks that merging a right node with
// field children materializes mirrored children under the left node
// (spec §4.4.3).
func TestMergeAliasGrowsFieldTree(t *testing.T) {
	left := newNode(0, 0, true, true)
	right := newNode(1, 1, true, true)
	rightChild := newNode(1, 2, true, true)
	rightChild.kind = kindRawPtr
	right.sons[0] = rightChild.id

	g := newTestGraph(left, right, rightChild)
	g.mergeAlias(map[int]bool{}, left.id, right.id)

	leftChildID, ok := left.sons[0]
	assert.True(t, ok)
	leftChild := g.nodes[leftChildID]
	assert.Equal(t, rightChild.kind, leftChild.kind)
	assert.Equal(t, rightChild.needDrop, leftChild.needDrop)
}

// TestReturnResultsRoundTrip checks spec §8's "Analyzing the same
// function twice with an empty cache yields equal summaries up to
// set-ordering": two summaries built in different insertion order but
// containing the same facts must compare equal once sorted.
func TestReturnResultsRoundTrip(t *testing.T) {
	a := newReturnResults(2)
	a.Assignments = append(a.Assignments,
		returnAssign{LeftIndex: 1, RightIndex: 2, LeftSoSo: true, RightSoSo: true},
		returnAssign{LeftIndex: 2, RightIndex: 1, LeftSoSo: true, RightSoSo: true},
	)
	a.Dead[1] = true

	b := newReturnResults(2)
	b.Assignments = append(b.Assignments,
		returnAssign{LeftIndex: 2, RightIndex: 1, LeftSoSo: true, RightSoSo: true},
		returnAssign{LeftIndex: 1, RightIndex: 2, LeftSoSo: true, RightSoSo: true},
	)
	b.Dead[1] = true

	less := func(x, y returnAssign) bool {
		if x.LeftIndex != y.LeftIndex {
			return x.LeftIndex < y.LeftIndex
		}
		return x.RightIndex < y.RightIndex
	}
	sortAssignments := cmpopts.SortSlices(less)
	if diff := cmp.Diff(a, b, sortAssignments); diff != "" {
		t.Fatalf("summaries differ up to ordering (-a +b):\n%s", diff)
	}
}
