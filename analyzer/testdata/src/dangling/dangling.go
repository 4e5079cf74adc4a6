package dangling

type Resource struct {
	handle int
}

func (r *Resource) Close() {}

// Dangling closes its only resource and then hands the caller a pointer
// to it anyway.
func Dangling() *Resource { // want `Dangling may return a dangling pointer`
	r := &Resource{}
	r.Close()
	return r
}
