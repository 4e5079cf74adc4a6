package analyzer

import "go/token"

// node represents a storage slot: a local, a parameter, the synthetic
// return slot, or a field reached through a chain of derefs/field
// projections from one of those roots. See spec §3.
type node struct {
	index int // identity of the root local this node descends from
	id    int // position in the node vector

	needDrop bool
	soSo     bool // "tracked": participates in drop analysis
	kind     kind

	// alias[0] is the deref target for pointer/reference nodes, or
	// the node's own id for everything else. Further elements record
	// must-alias equivalence accumulated from moves/copies/borrows
	// merged within the same block.
	alias []int

	// alive is -1 when the slot has been dropped, otherwise the Tick
	// at which the slot most recently became live.
	alive int

	sons      map[int]int
	fieldInfo []int
}

func newNode(index, id int, needDrop, soSo bool) *node {
	return &node{
		index:    index,
		id:       id,
		needDrop: needDrop,
		soSo:     soSo,
		alias:    []int{id},
		alive:    0,
		sons:     map[int]int{},
	}
}

func (n *node) isAlive() bool  { return n.alive > -1 }
func (n *node) isTuple() bool  { return n.kind == kindTuple }
func (n *node) isPtr() bool    { return n.kind == kindRawPtr || n.kind == kindRef }
func (n *node) isRef() bool    { return n.kind == kindRef }
func (n *node) isCorner() bool { return n.kind == kindRCLike }

// returnAssign is a field-path-to-field-path alias relation that
// survived to a callee's return, restricted to endpoints rooted in a
// parameter or the return slot (spec invariant 6).
type returnAssign struct {
	LeftIndex      int
	Left           []int
	LeftSoSo       bool
	LeftNeedDrop   bool
	RightIndex     int
	Right          []int
	RightSoSo      bool
	RightNeedDrop  bool
}

func (a returnAssign) valuable() bool { return a.LeftSoSo && a.RightSoSo }

// returnResults is the externally observable summary of a callee: the
// ReturnResults of spec §3. It must be safe to encode/decode as a
// go/analysis fact (see facts.go), so every field is exported and
// built only from gob-friendly types.
type returnResults struct {
	ArgSize     int
	Assignments []returnAssign
	Dead        map[int]bool
}

func newReturnResults(argSize int) returnResults {
	return returnResults{ArgSize: argSize, Dead: map[int]bool{}}
}

// bugRecords accumulates the findings for one function, deduplicated
// exactly as spec §9 "Bug deduplication" describes.
type bugRecords struct {
	dfBugs       map[int]token.Pos // root index -> first double-free span
	dfBugsUnwind map[int]token.Pos
	uafBugs      map[token.Pos]bool
	dpBug        bool
	dpBugUnwind  bool
}

func newBugRecords() *bugRecords {
	return &bugRecords{
		dfBugs:       map[int]token.Pos{},
		dfBugsUnwind: map[int]token.Pos{},
		uafBugs:      map[token.Pos]bool{},
	}
}

func (b *bugRecords) isBugFree() bool {
	return len(b.dfBugs) == 0 && len(b.dfBugsUnwind) == 0 && len(b.uafBugs) == 0 && !b.dpBug && !b.dpBugUnwind
}
