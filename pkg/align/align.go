package align

import "golang.org/x/exp/constraints"

// AlignUp returns the smallest multiple of align that is greater than or equal to value.
// It panics if align is zero or if the result does not fit in T.
func AlignUp[T constraints.Unsigned](value, align T) T {
	if align == 0 {
		panic("align: alignment is zero")
	}
	end := value + align - 1
	if end < value {
		panic("align: result overflows")
	}
	return end / align * align
}

// AlignDown returns the largest multiple of align that is less than or equal to value.
// It panics if align is zero.
func AlignDown[T constraints.Unsigned](value, align T) T {
	if align == 0 {
		panic("align: alignment is zero")
	}
	return value / align * align
}
