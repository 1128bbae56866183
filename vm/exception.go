package vm

import "fmt"

// ---------------------------------------------------------------------------
// Guest failure propagation (uses Go panic/recover)
// ---------------------------------------------------------------------------

// Thrown wraps a guest failure object as it unwinds host frames. It is
// raised with panic and recovered at each activation boundary, where the
// handler table decides whether the activation catches it.
type Thrown struct {
	Guest *Object

	// Abort bypasses handler search entirely; the frame releases its
	// monitors and the failure propagates to the caller.
	Abort bool
}

// Error makes Thrown usable as an ordinary error once it escapes the
// outermost activation.
func (t *Thrown) Error() string {
	if t.Guest == nil {
		return "guest failure"
	}
	if t.Guest.Message != "" {
		return fmt.Sprintf("%s: %s", t.Guest.Class.Name, t.Guest.Message)
	}
	return t.Guest.Class.Name
}

// ---------------------------------------------------------------------------
// Handler tables
// ---------------------------------------------------------------------------

// Handler is one entry of a method's exception table: a half-open
// protected range [Start, End), a handler offset, and an optional catch
// type. CatchCPI zero means catch-all.
type Handler struct {
	Start      int
	End        int
	HandlerBCI int
	CatchCPI   uint16
}

// IsCatchAll reports whether the entry matches any failure class.
func (h Handler) IsCatchAll() bool { return h.CatchCPI == 0 }

// Covers reports whether the faulting offset lies in the protected range.
func (h Handler) Covers(bci int) bool { return h.Start <= bci && bci < h.End }

// stackOverflowNames are the symbolic catch types that can observe a
// stack-exhaustion failure; entries naming one of these (or catch-all
// entries) are admitted to the exhaustion sub-table without resolving
// anything.
var stackOverflowNames = map[string]bool{
	"StackOverflowError":  true,
	"VirtualMachineError": true,
	"Error":               true,
	"Throwable":           true,
}

// buildStackOverflowTable precomputes the flat (start, end, handler)
// triples consulted on stack exhaustion. No catch types are kept: the
// exhaustion path performs no type test and must not allocate or resolve.
func buildStackOverflowTable(handlers []Handler, pool *ConstantPool) []int {
	var triples []int
	for _, h := range handlers {
		if h.IsCatchAll() || (pool != nil && stackOverflowNames[pool.ClassNameAt(h.CatchCPI)]) {
			triples = append(triples, h.Start, h.End, h.HandlerBCI)
		}
	}
	return triples
}

// lookupStackOverflowHandler scans the precomputed triple table for the
// first range covering bci and returns the handler offset, or -1.
func lookupStackOverflowHandler(triples []int, bci int) int {
	for i := 0; i+2 < len(triples); i += 3 {
		if triples[i] <= bci && bci < triples[i+1] {
			return triples[i+2]
		}
	}
	return -1
}
