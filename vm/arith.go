package vm

import "math"

// ---------------------------------------------------------------------------
// Arithmetic and comparison primitives
// ---------------------------------------------------------------------------

// Integer division truncates toward zero. The host traps on
// MinInt / -1 while the guest semantics wrap, so that case is explicit.
// Callers check for a zero divisor first.

func divInt32(x, y int32) int32 {
	if x == math.MinInt32 && y == -1 {
		return x
	}
	return x / y
}

func remInt32(x, y int32) int32 {
	if x == math.MinInt32 && y == -1 {
		return 0
	}
	return x % y
}

func divInt64(x, y int64) int64 {
	if x == math.MinInt64 && y == -1 {
		return x
	}
	return x / y
}

func remInt64(x, y int64) int64 {
	if x == math.MinInt64 && y == -1 {
		return 0
	}
	return x % y
}

// Shift counts are masked to the operand width.

func shlInt32(x, c int32) int32   { return x << (uint32(c) & 31) }
func shrInt32(x, c int32) int32   { return x >> (uint32(c) & 31) }
func ushrInt32(x, c int32) int32  { return int32(uint32(x) >> (uint32(c) & 31)) }
func shlInt64(x int64, c int32) int64  { return x << (uint32(c) & 63) }
func shrInt64(x int64, c int32) int64  { return x >> (uint32(c) & 63) }
func ushrInt64(x int64, c int32) int64 { return int64(uint64(x) >> (uint32(c) & 63)) }

// fmod64 is truncated floating remainder: the result has the sign of the
// dividend and NaN propagates.
func fmod64(x, y float64) float64 { return math.Mod(x, y) }

// compareLong yields the three-way ordering of two longs.
func compareLong(x, y int64) int32 {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

// compareFloatGreater orders two floats with NaN sorting greater than
// every value: the result is 1 whenever either operand is NaN.
func compareFloatGreater(x, y float32) int32 {
	switch {
	case x < y:
		return -1
	case x == y:
		return 0
	default:
		return 1
	}
}

// compareFloatLess orders two floats with NaN sorting less than every
// value: the result is -1 whenever either operand is NaN.
func compareFloatLess(x, y float32) int32 {
	switch {
	case x > y:
		return 1
	case x == y:
		return 0
	default:
		return -1
	}
}

func compareDoubleGreater(x, y float64) int32 {
	switch {
	case x < y:
		return -1
	case x == y:
		return 0
	default:
		return 1
	}
}

func compareDoubleLess(x, y float64) int32 {
	switch {
	case x > y:
		return 1
	case x == y:
		return 0
	default:
		return -1
	}
}

// Saturating float-to-integer conversions: NaN maps to zero, out-of-range
// values clamp to the nearest representable extreme.

func float2Int32(v float32) int32 {
	switch {
	case v != v:
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}

func float2Int64(v float32) int64 {
	switch {
	case v != v:
		return 0
	case v >= math.MaxInt64:
		return math.MaxInt64
	case v <= math.MinInt64:
		return math.MinInt64
	}
	return int64(v)
}

func double2Int32(v float64) int32 {
	switch {
	case v != v:
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}

func double2Int64(v float64) int64 {
	switch {
	case v != v:
		return 0
	case v >= math.MaxInt64:
		return math.MaxInt64
	case v <= math.MinInt64:
		return math.MinInt64
	}
	return int64(v)
}
