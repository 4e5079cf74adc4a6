package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// buildTestBlocks wires up a tiny four-block CFG by hand:
//
//	0 -> 1 -> 2 -> 1 (loop), 2 -> 3 (exit)
//
// blocks 1 and 2 form a strongly-connected component with entry 1.
func buildTestBlocks() *graph {
	g := &graph{}
	for i := 0; i < 4; i++ {
		g.blocks = append(g.blocks, newBlockNode(i, false))
		g.fatherBlock = append(g.fatherBlock, i)
	}
	g.blocks[0].addNext(1)
	g.blocks[1].addNext(2)
	g.blocks[2].addNext(1)
	g.blocks[2].addNext(3)
	return g
}

// TestSCCCondensation checks spec §8 invariants 3 and 4: father_block
// is idempotent, and no next edge remains from a block to another
// member of its own SCC after condensation.
func TestSCCCondensation(t *testing.T) {
	g := buildTestBlocks()
	g.solveSCC()

	assert.Equal(t, 0, g.fatherBlock[0])
	assert.Equal(t, 1, g.fatherBlock[1])
	assert.Equal(t, 1, g.fatherBlock[2])
	assert.Equal(t, 3, g.fatherBlock[3])

	for _, b := range g.fatherBlock {
		assert.Equal(t, g.fatherBlock[b], g.fatherBlock[g.fatherBlock[b]], "father_block must be idempotent")
	}

	entry := g.blocks[g.fatherBlock[1]]
	assert.Equal(t, []int{2}, entry.subBlocks)
	assert.Equal(t, map[int]bool{3: true}, entry.next)

	for b := range entry.next {
		assert.NotEqual(t, g.fatherBlock[b], g.fatherBlock[1], "no next edge may stay within the same SCC")
	}

	leaf := g.blocks[3]
	assert.Empty(t, leaf.next)
}
