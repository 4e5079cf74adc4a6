package tuple

import "errors"

type Resource struct {
	handle int
}

func (r *Resource) Close() {}

// OpenThenClose returns a resource alongside an error after already
// closing it: the multi-value return slot is classified as a tuple
// (spec §4.1's kind=tuple), and dangling-pointer detection must still
// reach into it instead of only ever looking at a single return value.
func OpenThenClose() (*Resource, error) { // want `OpenThenClose may return a dangling pointer`
	r := &Resource{}
	r.Close()
	return r, errors.New("already closed")
}

// OpenSafe returns a fresh, unclosed resource alongside a nil error.
func OpenSafe() (*Resource, error) {
	r := &Resource{}
	return r, nil
}
