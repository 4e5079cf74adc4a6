package conditional

type Resource struct {
	handle int
}

func (r *Resource) Close() {}

// ConditionalDoubleFree only double-frees its resource down the true
// branch; the false branch is safe. Exercises the snapshot/restore
// discipline that keeps branch exploration from leaking into siblings.
func ConditionalDoubleFree(cond bool) {
	r := &Resource{}
	r.Close()
	if cond {
		r.Close() // want `possible double free in ConditionalDoubleFree`
	}
}

// ConditionalSafe closes its one resource exactly once on each branch,
// never twice on the same one.
func ConditionalSafe(cond bool) {
	r := &Resource{}
	if cond {
		r.Close()
	} else {
		r.Close()
	}
}
