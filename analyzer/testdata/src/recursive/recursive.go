package recursive

type Resource struct {
	handle int
}

func (r *Resource) Close() {}

// isEven and isOdd are mutually recursive and both safe: neither frees
// either resource it's handed, they only inspect an unrelated counter.
// Two tracked pointer arguments push evalCall's soSoFlag above 1, so
// each call is actually expanded rather than skipped outright, and
// expanding isEven's callee isOdd tries to expand isEven again.
// Exercises the in-progress guard of spec §9 "Summary caching across
// recursion" -- without it, this recurses forever.
func isEven(r, other *Resource, n int) bool {
	if n == 0 {
		return true
	}
	return isOdd(r, other, n-1)
}

func isOdd(r, other *Resource, n int) bool {
	if n == 0 {
		return false
	}
	return isEven(r, other, n-1)
}

// CheckParity calls into the mutually recursive pair and then closes
// both resources exactly once: no bug should surface even though both
// callees were analyzed through the recursive-expansion path.
func CheckParity(n int) bool {
	r := &Resource{}
	other := &Resource{}
	even := isEven(r, other, n)
	r.Close()
	other.Close()
	return even
}
