package switchcase

type Resource struct {
	handle int
}

func (r *Resource) Close() {}

// BranchOnlyDoubleFree frees its resource on the v == 0 branch and then
// unconditionally again below: a double free only when v == 0, safe
// otherwise. v is unknown at analysis time, so both branches must be
// explored under the snapshot/restore discipline of spec §4.4.6, and
// the finding is attributed to the branch that actually dies.
func BranchOnlyDoubleFree(v int) {
	r := &Resource{}
	if v == 0 {
		r.Close()
	}
	r.Close() // want `possible double free in BranchOnlyDoubleFree`
}
