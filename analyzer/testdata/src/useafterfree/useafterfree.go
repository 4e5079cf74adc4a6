package useafterfree

type Resource struct {
	handle int
}

func (r *Resource) Close() {}

func Use(r *Resource) {}

// PassAfterClose passes a closed resource to another function: reading
// its own address is fine, but handing it to a callee is not.
func PassAfterClose() {
	r := &Resource{}
	r.Close()
	Use(r) // want `possible use after free in PassAfterClose`
}

type Box struct {
	Inner *Resource
}

func (b *Box) Close() {}

// FieldAfterClose closes a container and then reaches into one of its
// fields, which is just as dead as the container itself.
func FieldAfterClose() {
	b := &Box{Inner: &Resource{}}
	b.Close()
	Use(b.Inner) // want `possible use after free in FieldAfterClose`
}
