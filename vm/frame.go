package vm

import (
	"fmt"
	"math"
)

// ---------------------------------------------------------------------------
// Frames
// ---------------------------------------------------------------------------

type slotTag uint8

const (
	tagPrim slotTag = iota
	tagRef
	tagRetAddr
)

// Frame is one method activation: fixed local and stack slot arrays plus
// the recoverable instruction offset. Slots hold either raw primitive
// bits or a reference; the tag is determined by the instruction that
// reads the slot and is only inspected dynamically by the generic stack
// shuffles, which must preserve it.
type Frame struct {
	method *Method
	depth  int

	prims []uint64
	refs  []*Object
	tags  []slotTag

	stackBase int

	// bci is published before every trap-capable instruction so handler
	// search sees the faulting offset.
	bci int

	// jsr tracks observed subroutine return targets, allocated only for
	// activations that actually execute jsr/ret.
	jsr map[int][]int
}

// NewFrame allocates an activation for m at the given call depth.
func NewFrame(m *Method, depth int) *Frame {
	n := m.MaxLocals + m.MaxStack
	return &Frame{
		method:    m,
		depth:     depth,
		prims:     make([]uint64, n),
		refs:      make([]*Object, n),
		tags:      make([]slotTag, n),
		stackBase: m.MaxLocals,
	}
}

// Method returns the activation's method.
func (f *Frame) Method() *Method { return f.method }

// BCI returns the last published instruction offset.
func (f *Frame) BCI() int { return f.bci }

func (f *Frame) setPrim(i int, bits uint64) {
	f.prims[i] = bits
	f.refs[i] = nil
	f.tags[i] = tagPrim
}

func (f *Frame) setRef(i int, o *Object) {
	f.prims[i] = 0
	f.refs[i] = o
	f.tags[i] = tagRef
}

// ---------------------------------------------------------------------------
// Operand stack access (slot indices are relative to the stack base)
// ---------------------------------------------------------------------------

func (f *Frame) PutInt(slot int, v int32)  { f.setPrim(f.stackBase+slot, uint64(uint32(v))) }
func (f *Frame) PeekInt(slot int) int32    { return int32(uint32(f.prims[f.stackBase+slot])) }
func (f *Frame) PutFloat(slot int, v float32) {
	f.setPrim(f.stackBase+slot, uint64(math.Float32bits(v)))
}
func (f *Frame) PeekFloat(slot int) float32 {
	return math.Float32frombits(uint32(f.prims[f.stackBase+slot]))
}

// PutLong stores a long in slot and slot+1; the bits live in the lower
// slot and the upper slot is cleared.
func (f *Frame) PutLong(slot int, v int64) {
	f.setPrim(f.stackBase+slot, uint64(v))
	f.setPrim(f.stackBase+slot+1, 0)
}
func (f *Frame) PeekLong(slot int) int64 { return int64(f.prims[f.stackBase+slot]) }

func (f *Frame) PutDouble(slot int, v float64) {
	f.setPrim(f.stackBase+slot, math.Float64bits(v))
	f.setPrim(f.stackBase+slot+1, 0)
}
func (f *Frame) PeekDouble(slot int) float64 {
	return math.Float64frombits(f.prims[f.stackBase+slot])
}

func (f *Frame) PutRef(slot int, o *Object) { f.setRef(f.stackBase+slot, o) }

func (f *Frame) PeekRef(slot int) *Object {
	i := f.stackBase + slot
	if f.tags[i] != tagRef {
		panic(fmt.Sprintf("frame: slot %d read as reference but holds %v", slot, f.tags[i]))
	}
	return f.refs[i]
}

// PeekAndReleaseRef reads a reference slot and clears it so no stale
// strong reference outlives its last use on the stack.
func (f *Frame) PeekAndReleaseRef(slot int) *Object {
	o := f.PeekRef(slot)
	f.refs[f.stackBase+slot] = nil
	return o
}

// PutRetAddr stores a subroutine return address.
func (f *Frame) PutRetAddr(slot int, bci int) {
	i := f.stackBase + slot
	f.prims[i] = uint64(bci)
	f.refs[i] = nil
	f.tags[i] = tagRetAddr
}

// Raw slot access, legal only for the generic stack shuffles.

func (f *Frame) rawPeek(slot int) (uint64, *Object, slotTag) {
	i := f.stackBase + slot
	return f.prims[i], f.refs[i], f.tags[i]
}

func (f *Frame) rawPut(slot int, bits uint64, ref *Object, tag slotTag) {
	i := f.stackBase + slot
	f.prims[i] = bits
	f.refs[i] = ref
	f.tags[i] = tag
}

// ClearStack drops every stack slot; used when transferring control to an
// exception handler.
func (f *Frame) ClearStack() {
	for i := f.stackBase; i < len(f.prims); i++ {
		f.prims[i] = 0
		f.refs[i] = nil
		f.tags[i] = tagPrim
	}
}

// PeekValue boxes the value of the given kind whose lowest slot is slot.
func (f *Frame) PeekValue(k Kind, slot int) Value {
	switch k {
	case KindLong:
		return LongValue(f.PeekLong(slot))
	case KindDouble:
		return DoubleValue(f.PeekDouble(slot))
	case KindFloat:
		return FloatValue(f.PeekFloat(slot))
	case KindRef:
		return RefValue(f.PeekAndReleaseRef(slot))
	default:
		return IntValue(f.PeekInt(slot))
	}
}

// PutValue unboxes v into the stack at slot and returns the slot count.
func (f *Frame) PutValue(slot int, v Value) int {
	switch v.K {
	case KindLong:
		f.PutLong(slot, v.Long())
	case KindDouble:
		f.PutDouble(slot, v.Double())
	case KindFloat:
		f.PutFloat(slot, v.Float())
	case KindRef:
		f.PutRef(slot, v.Ref)
	case KindVoid:
		return 0
	default:
		f.PutInt(slot, v.Int())
	}
	return v.K.SlotCount()
}

// ---------------------------------------------------------------------------
// Local variable access
// ---------------------------------------------------------------------------

func (f *Frame) GetLocalInt(i int) int32     { return int32(uint32(f.prims[i])) }
func (f *Frame) SetLocalInt(i int, v int32)  { f.setPrim(i, uint64(uint32(v))) }
func (f *Frame) GetLocalFloat(i int) float32 { return math.Float32frombits(uint32(f.prims[i])) }
func (f *Frame) SetLocalFloat(i int, v float32) {
	f.setPrim(i, uint64(math.Float32bits(v)))
}
func (f *Frame) GetLocalLong(i int) int64 { return int64(f.prims[i]) }
func (f *Frame) SetLocalLong(i int, v int64) {
	f.setPrim(i, uint64(v))
	f.setPrim(i+1, 0)
}
func (f *Frame) GetLocalDouble(i int) float64 { return math.Float64frombits(f.prims[i]) }
func (f *Frame) SetLocalDouble(i int, v float64) {
	f.setPrim(i, math.Float64bits(v))
	f.setPrim(i+1, 0)
}
func (f *Frame) GetLocalRef(i int) *Object    { return f.refs[i] }
func (f *Frame) SetLocalRef(i int, o *Object) { f.setRef(i, o) }

// GetLocalRetAddr reads a subroutine return address out of a local.
func (f *Frame) GetLocalRetAddr(i int) int {
	if f.tags[i] != tagRetAddr {
		panic(fmt.Sprintf("frame: local %d read as return address but holds %v", i, f.tags[i]))
	}
	return int(f.prims[i])
}

// SetLocalRetAddr stores a subroutine return address into a local.
func (f *Frame) SetLocalRetAddr(i int, bci int) {
	f.prims[i] = uint64(bci)
	f.refs[i] = nil
	f.tags[i] = tagRetAddr
}

// SetLocalValue unboxes v into locals starting at i and returns the slot
// count.
func (f *Frame) SetLocalValue(i int, v Value) int {
	switch v.K {
	case KindLong:
		f.SetLocalLong(i, v.Long())
	case KindDouble:
		f.SetLocalDouble(i, v.Double())
	case KindFloat:
		f.SetLocalFloat(i, v.Float())
	case KindRef:
		f.SetLocalRef(i, v.Ref)
	case KindVoid:
		return 0
	default:
		f.SetLocalInt(i, v.Int())
	}
	return v.K.SlotCount()
}

// ---------------------------------------------------------------------------
// Subroutine return-target tracking
// ---------------------------------------------------------------------------

// recordRetTarget notes that the ret at retBCI observed target. The map
// is allocated on first use.
func (f *Frame) recordRetTarget(retBCI, target int) {
	if f.jsr == nil {
		f.jsr = make(map[int][]int)
	}
	for _, t := range f.jsr[retBCI] {
		if t == target {
			return
		}
	}
	f.jsr[retBCI] = append(f.jsr[retBCI], target)
}
