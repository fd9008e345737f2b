package utils

type number interface {
	~int | ~int32 | ~int64 | ~float64
}

func Abs[T number](v T) T {
	if v < 0 {
		return -v
	}
	return v
}

// Clamp 把 v 限制在 [lo, hi]
func Clamp[T number](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
