package vm

import (
	"math"
	"testing"
)

// ---------------------------------------------------------------------------
// Integer division and remainder
// ---------------------------------------------------------------------------

func TestIntDivisionTruncatesTowardZero(t *testing.T) {
	cases := []struct {
		x, y, want int32
	}{
		{-7, 2, -3},
		{7, 2, 3},
		{-7, -2, 3},
		{7, -2, -3},
		{0, 5, 0},
	}
	for _, c := range cases {
		if got := divInt32(c.x, c.y); got != c.want {
			t.Errorf("divInt32(%d, %d) = %d, want %d", c.x, c.y, got, c.want)
		}
	}
}

func TestIntRemainderSign(t *testing.T) {
	if got := remInt32(-7, 2); got != -1 {
		t.Errorf("remInt32(-7, 2) = %d, want -1", got)
	}
	if got := remInt32(7, -2); got != 1 {
		t.Errorf("remInt32(7, -2) = %d, want 1", got)
	}
}

func TestMinIntDividedByMinusOneWraps(t *testing.T) {
	if got := divInt32(math.MinInt32, -1); got != math.MinInt32 {
		t.Errorf("divInt32(MinInt32, -1) = %d, want %d", got, int32(math.MinInt32))
	}
	if got := remInt32(math.MinInt32, -1); got != 0 {
		t.Errorf("remInt32(MinInt32, -1) = %d, want 0", got)
	}
	if got := divInt64(math.MinInt64, -1); got != math.MinInt64 {
		t.Errorf("divInt64(MinInt64, -1) = %d, want %d", got, int64(math.MinInt64))
	}
	if got := remInt64(math.MinInt64, -1); got != 0 {
		t.Errorf("remInt64(MinInt64, -1) = %d, want 0", got)
	}
}

// ---------------------------------------------------------------------------
// Shift masking
// ---------------------------------------------------------------------------

func TestShiftCountsAreMasked(t *testing.T) {
	if got := shlInt32(1, 33); got != 2 {
		t.Errorf("shlInt32(1, 33) = %d, want 2", got)
	}
	if got := shrInt32(-8, 34); got != -2 {
		t.Errorf("shrInt32(-8, 34) = %d, want -2", got)
	}
	if got := ushrInt32(-1, 28); got != 15 {
		t.Errorf("ushrInt32(-1, 28) = %d, want 15", got)
	}
	if got := shlInt64(1, 65); got != 2 {
		t.Errorf("shlInt64(1, 65) = %d, want 2", got)
	}
	if got := ushrInt64(-1, 60); got != 15 {
		t.Errorf("ushrInt64(-1, 60) = %d, want 15", got)
	}
}

// ---------------------------------------------------------------------------
// Float comparisons
// ---------------------------------------------------------------------------

func TestFloatCompareNaNVariants(t *testing.T) {
	nan := float32(math.NaN())
	if got := compareFloatGreater(nan, 0); got != 1 {
		t.Errorf("compareFloatGreater(NaN, 0) = %d, want 1", got)
	}
	if got := compareFloatGreater(0, nan); got != 1 {
		t.Errorf("compareFloatGreater(0, NaN) = %d, want 1", got)
	}
	if got := compareFloatLess(nan, 0); got != -1 {
		t.Errorf("compareFloatLess(NaN, 0) = %d, want -1", got)
	}
	if got := compareFloatLess(0, nan); got != -1 {
		t.Errorf("compareFloatLess(0, NaN) = %d, want -1", got)
	}
}

func TestFloatCompareOrdering(t *testing.T) {
	if got := compareFloatGreater(1, 2); got != -1 {
		t.Errorf("compareFloatGreater(1, 2) = %d, want -1", got)
	}
	if got := compareFloatGreater(2, 2); got != 0 {
		t.Errorf("compareFloatGreater(2, 2) = %d, want 0", got)
	}
	if got := compareFloatLess(3, 2); got != 1 {
		t.Errorf("compareFloatLess(3, 2) = %d, want 1", got)
	}
	nan := math.NaN()
	if got := compareDoubleGreater(nan, nan); got != 1 {
		t.Errorf("compareDoubleGreater(NaN, NaN) = %d, want 1", got)
	}
	if got := compareDoubleLess(1, 1); got != 0 {
		t.Errorf("compareDoubleLess(1, 1) = %d, want 0", got)
	}
}

func TestLongCompare(t *testing.T) {
	if got := compareLong(-1, 1); got != -1 {
		t.Errorf("compareLong(-1, 1) = %d, want -1", got)
	}
	if got := compareLong(5, 5); got != 0 {
		t.Errorf("compareLong(5, 5) = %d, want 0", got)
	}
	if got := compareLong(math.MaxInt64, math.MinInt64); got != 1 {
		t.Errorf("compareLong(max, min) = %d, want 1", got)
	}
}

// ---------------------------------------------------------------------------
// Saturating conversions
// ---------------------------------------------------------------------------

func TestFloatToIntSaturates(t *testing.T) {
	if got := float2Int32(float32(math.NaN())); got != 0 {
		t.Errorf("float2Int32(NaN) = %d, want 0", got)
	}
	if got := float2Int32(1e10); got != math.MaxInt32 {
		t.Errorf("float2Int32(1e10) = %d, want MaxInt32", got)
	}
	if got := float2Int32(-1e10); got != math.MinInt32 {
		t.Errorf("float2Int32(-1e10) = %d, want MinInt32", got)
	}
	if got := double2Int64(math.Inf(1)); got != math.MaxInt64 {
		t.Errorf("double2Int64(+Inf) = %d, want MaxInt64", got)
	}
	if got := double2Int64(math.Inf(-1)); got != math.MinInt64 {
		t.Errorf("double2Int64(-Inf) = %d, want MinInt64", got)
	}
	if got := double2Int32(-3.9); got != -3 {
		t.Errorf("double2Int32(-3.9) = %d, want -3", got)
	}
}
