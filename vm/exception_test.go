package vm

import "testing"

// ---------------------------------------------------------------------------
// Handler ranges
// ---------------------------------------------------------------------------

func TestHandlerCoversHalfOpenRange(t *testing.T) {
	h := Handler{Start: 4, End: 10, HandlerBCI: 20}
	cases := []struct {
		bci  int
		want bool
	}{
		{3, false}, {4, true}, {9, true}, {10, false},
	}
	for _, c := range cases {
		if got := h.Covers(c.bci); got != c.want {
			t.Errorf("Covers(%d) = %v, want %v", c.bci, got, c.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Exhaustion sub-table
// ---------------------------------------------------------------------------

func TestStackOverflowTableAdmitsBySymbolicName(t *testing.T) {
	meta := NewMeta()
	pool := NewConstantPool()
	cpiArith := pool.AddClass(meta.Arithmetic)
	cpiSOE := pool.AddClass(meta.StackOverflow)
	cpiThrow := pool.AddClass(meta.Throwable)

	handlers := []Handler{
		{Start: 0, End: 4, HandlerBCI: 40, CatchCPI: cpiArith}, // excluded
		{Start: 4, End: 8, HandlerBCI: 50, CatchCPI: cpiSOE},
		{Start: 8, End: 12, HandlerBCI: 60, CatchCPI: cpiThrow},
		{Start: 12, End: 16, HandlerBCI: 70}, // catch-all
	}
	triples := buildStackOverflowTable(handlers, pool)
	if len(triples) != 9 {
		t.Fatalf("table has %d words, want 9", len(triples))
	}

	cases := []struct {
		bci  int
		want int
	}{
		{0, -1}, // only the excluded entry covers it
		{4, 50},
		{8, 60},
		{12, 70},
		{16, -1},
	}
	for _, c := range cases {
		if got := lookupStackOverflowHandler(triples, c.bci); got != c.want {
			t.Errorf("lookup(%d) = %d, want %d", c.bci, got, c.want)
		}
	}
}

func TestStackOverflowTableFirstMatchWins(t *testing.T) {
	meta := NewMeta()
	pool := NewConstantPool()
	cpiSOE := pool.AddClass(meta.StackOverflow)

	handlers := []Handler{
		{Start: 0, End: 10, HandlerBCI: 30, CatchCPI: cpiSOE},
		{Start: 0, End: 10, HandlerBCI: 40},
	}
	triples := buildStackOverflowTable(handlers, pool)
	if got := lookupStackOverflowHandler(triples, 5); got != 30 {
		t.Errorf("lookup(5) = %d, want the first entry's handler 30", got)
	}
}

func TestStackOverflowTableEmptyWithoutHandlers(t *testing.T) {
	triples := buildStackOverflowTable(nil, NewConstantPool())
	if len(triples) != 0 {
		t.Errorf("table has %d words, want 0", len(triples))
	}
	if got := lookupStackOverflowHandler(triples, 0); got != -1 {
		t.Errorf("lookup on empty table = %d, want -1", got)
	}
}
