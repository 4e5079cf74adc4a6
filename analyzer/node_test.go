package analyzer

import (
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNewNodeInvariants checks spec §8 invariant 2: every node belongs
// to its own alias set, and a freshly built node's alive timestamp
// satisfies invariant 1 (alive == -1 or alive >= 0).
func TestNewNodeInvariants(t *testing.T) {
	n := newNode(3, 3, true, true)
	assert.Equal(t, []int{3}, n.alias)
	assert.Contains(t, n.alias, n.id)
	assert.GreaterOrEqual(t, n.alive, 0)
	assert.True(t, n.isAlive())
}

func TestReturnAssignValuable(t *testing.T) {
	valuable := returnAssign{LeftSoSo: true, RightSoSo: true}
	assert.True(t, valuable.valuable())

	notValuable := returnAssign{LeftSoSo: true, RightSoSo: false}
	assert.False(t, notValuable.valuable())
}

// TestBugRecordsDedup mirrors spec §9's "Bug deduplication": only the
// first double-free span per root index is kept.
func TestBugRecordsDedup(t *testing.T) {
	bugs := newBugRecords()
	assert.True(t, bugs.isBugFree())

	first := token.Pos(10)
	second := token.Pos(20)
	if _, ok := bugs.dfBugs[1]; !ok {
		bugs.dfBugs[1] = first
	}
	if _, ok := bugs.dfBugs[1]; !ok {
		bugs.dfBugs[1] = second
	}

	assert.Equal(t, first, bugs.dfBugs[1])
	assert.False(t, bugs.isBugFree())
}
