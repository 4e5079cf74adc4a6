package doublefree

type Resource struct {
	handle int
}

func (r *Resource) Close() {}

// DoubleClose drops the same resource twice in straight-line code: no
// branch, no loop, just two sequential calls in one block.
func DoubleClose() {
	r := &Resource{}
	r.Close()
	r.Close() // want `possible double free in DoubleClose`
}

// DoubleCloseDeferred frees once through a direct call and once more
// through a deferred call that runs at the same scope.
func DoubleCloseDeferred() {
	r := &Resource{}
	defer r.Close()
	r.Close() // want `possible double free in DoubleCloseDeferred`
}
