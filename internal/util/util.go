// Package util holds small helpers shared across packages.
package util

// Ptr returns a pointer to v. Handy for optional struct fields set from
// literals.
func Ptr[T any](v T) *T {
	return &v
}

// AbsFloat64 returns the absolute value of x.
func AbsFloat64(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
