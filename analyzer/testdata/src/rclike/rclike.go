package rclike

import "sync"

// Cell aliases sync.Once so its printed type still matches the rc-like
// ADT filter of §6: sync.Once's real guard is an internal refcount via
// Do, not single ownership, so closing it repeatedly must never be
// flagged as a double free.
type Cell = sync.Once

func closeCell(c *Cell) {}

// DoubleCloseRCLike calls a drop-like-named function on the same
// sync.Once twice. Exercises spec §8's "Drop of an rc-like node is a
// no-op on liveness".
func DoubleCloseRCLike() {
	c := &Cell{}
	closeCell(c)
	closeCell(c)
}
