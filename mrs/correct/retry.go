package correct

import "fmt"

// RetryWithDegradation runs op over a descending parameter sequence
// and returns the first accepted result together with the parameter
// that produced it. A step may reject its result (finite=false) to
// trigger the next degradation step; a step error aborts immediately.
//
// The sequence bounds the loop, so termination is guaranteed by
// construction.
func RetryWithDegradation[T any](params []int, op func(int) (T, bool, error)) (T, int, error) {
	var zero T
	if len(params) == 0 {
		return zero, 0, fmt.Errorf("%w: empty parameter sequence", ErrRetryExhausted)
	}
	for _, p := range params {
		out, ok, err := op(p)
		if err != nil {
			return zero, p, err
		}
		if ok {
			return out, p, nil
		}
	}
	return zero, params[len(params)-1], ErrRetryExhausted
}

// descending returns the integer sequence from hi down to lo inclusive.
func descending(hi, lo int) []int {
	if lo < 1 {
		lo = 1
	}
	if hi < lo {
		hi = lo
	}
	out := make([]int, 0, hi-lo+1)
	for p := hi; p >= lo; p-- {
		out = append(out, p)
	}
	return out
}
