package safe

type Resource struct {
	handle int
}

func (r *Resource) Close() {}

// ClosedOnce frees its resource exactly once.
func ClosedOnce() {
	r := &Resource{}
	r.Close()
}

// ReturnsFresh never touches the resource it hands back.
func ReturnsFresh() *Resource {
	return &Resource{}
}

func helperA(r *Resource) {
	helperB(r)
}

// helperB frees the pointer it is handed, so its parameter is dead when
// it returns and it is reported as leaving a dangling pointer.
func helperB(r *Resource) { // want `helperB may return a dangling pointer`
	r.Close()
}

// ClosedThroughHelpers closes its resource via a chain of helper calls
// rather than directly. helperA takes a single tracked argument and is
// not drop-like, so evalCall's tracked-count gate skips the call: no
// summary is replayed and nothing is reported here.
func ClosedThroughHelpers() {
	r := &Resource{}
	helperA(r)
}
