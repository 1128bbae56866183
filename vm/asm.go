package vm

import (
	"encoding/binary"
	"fmt"
)

// ---------------------------------------------------------------------------
// Method assembler
// ---------------------------------------------------------------------------

// Label is a forward-patchable code position.
type Label int

type fixup struct {
	at    int // operand offset to patch
	base  int // instruction offset the branch is relative to
	label Label
	wide  bool // 4-byte operand
}

type handlerFixup struct {
	start, end, handler Label
	catchCPI            uint16
}

// Assembler builds a method body: bytecode, pool, and handler table.
// Branch targets are labels, marked before or after the jump that uses
// them and patched at Assemble time.
type Assembler struct {
	method    *Method
	pool      *ConstantPool
	code      []byte
	maxStack  int
	maxLocals int

	labels   []int
	fixups   []fixup
	handlers []handlerFixup
}

// NewAssembler starts a body for m with a fresh pool.
func NewAssembler(m *Method) *Assembler {
	maxLocals := m.ArgSlots()
	return &Assembler{
		method:    m,
		pool:      NewConstantPool(),
		maxStack:  8,
		maxLocals: maxLocals,
	}
}

// Pool returns the pool under construction.
func (a *Assembler) Pool() *ConstantPool { return a.pool }

// SetMaxStack overrides the default operand stack size.
func (a *Assembler) SetMaxStack(n int) *Assembler {
	a.maxStack = n
	return a
}

// SetMaxLocals overrides the local slot count.
func (a *Assembler) SetMaxLocals(n int) *Assembler {
	a.maxLocals = n
	return a
}

// Here returns the current code offset.
func (a *Assembler) Here() int { return len(a.code) }

// Emit appends a bare opcode.
func (a *Assembler) Emit(op Opcode) *Assembler {
	a.code = append(a.code, byte(op))
	return a
}

// EmitByte appends an opcode with one operand byte.
func (a *Assembler) EmitByte(op Opcode, operand byte) *Assembler {
	a.code = append(a.code, byte(op), operand)
	return a
}

// EmitInt8 appends an opcode with a signed byte operand (bipush).
func (a *Assembler) EmitInt8(op Opcode, v int8) *Assembler {
	return a.EmitByte(op, byte(v))
}

// EmitInt16 appends an opcode with a signed 16-bit operand (sipush).
func (a *Assembler) EmitInt16(op Opcode, v int16) *Assembler {
	a.code = append(a.code, byte(op), byte(uint16(v)>>8), byte(uint16(v)))
	return a
}

// EmitCPI appends an instruction referencing a pool entry. The ldc
// short form and the trailing operand bytes of invokeinterface and
// invokedynamic are handled here.
func (a *Assembler) EmitCPI(op Opcode, cpi uint16) *Assembler {
	if op == OpLdc {
		if cpi > 0xff {
			op = OpLdcW
		} else {
			return a.EmitByte(OpLdc, byte(cpi))
		}
	}
	a.code = append(a.code, byte(op), byte(cpi>>8), byte(cpi))
	switch op {
	case OpInvokeInterface:
		a.code = append(a.code, 1, 0)
	case OpInvokeDynamic:
		a.code = append(a.code, 0, 0)
	}
	return a
}

// EmitNewArray appends a newarray with the element code for kind.
func (a *Assembler) EmitNewArray(kind Kind) *Assembler {
	var code byte
	switch kind {
	case KindBool:
		code = 4
	case KindChar:
		code = 5
	case KindFloat:
		code = 6
	case KindDouble:
		code = 7
	case KindByte:
		code = 8
	case KindShort:
		code = 9
	case KindInt:
		code = 10
	case KindLong:
		code = 11
	default:
		panic(fmt.Sprintf("asm: no element code for %s", kind))
	}
	return a.EmitByte(OpNewArray, code)
}

// EmitIInc appends an iinc.
func (a *Assembler) EmitIInc(local int, delta int8) *Assembler {
	a.code = append(a.code, byte(OpIInc), byte(local), byte(delta))
	return a
}

// EmitWideIInc appends a wide iinc with 16-bit index and delta.
func (a *Assembler) EmitWideIInc(local int, delta int16) *Assembler {
	a.code = append(a.code, byte(OpWide), byte(OpIInc),
		byte(local>>8), byte(local),
		byte(uint16(delta)>>8), byte(uint16(delta)))
	return a
}

// EmitWideLocal appends a wide load/store with a 16-bit local index.
func (a *Assembler) EmitWideLocal(op Opcode, local int) *Assembler {
	a.code = append(a.code, byte(OpWide), byte(op), byte(local>>8), byte(local))
	return a
}

// NewLabel creates an unbound label.
func (a *Assembler) NewLabel() Label {
	a.labels = append(a.labels, -1)
	return Label(len(a.labels) - 1)
}

// Mark binds a label to the current offset.
func (a *Assembler) Mark(l Label) *Assembler {
	a.labels[l] = len(a.code)
	return a
}

// EmitJump appends a branch to a label.
func (a *Assembler) EmitJump(op Opcode, l Label) *Assembler {
	base := len(a.code)
	wide := op == OpGotoW || op == OpJsrW
	a.code = append(a.code, byte(op))
	if wide {
		a.code = append(a.code, 0, 0, 0, 0)
	} else {
		a.code = append(a.code, 0, 0)
	}
	a.fixups = append(a.fixups, fixup{at: base + 1, base: base, label: l, wide: wide})
	return a
}

// SwitchPair is one lookupswitch case.
type SwitchPair struct {
	Key    int32
	Target Label
}

// pad4 aligns the next operand to a 4-byte boundary within the code
// array, matching how the stream decodes switch operands.
func (a *Assembler) pad4() {
	for len(a.code)%4 != 0 {
		a.code = append(a.code, 0)
	}
}

func (a *Assembler) emitSwitchWord(base int, l Label) {
	a.fixups = append(a.fixups, fixup{at: len(a.code), base: base, label: l, wide: true})
	a.code = append(a.code, 0, 0, 0, 0)
}

func (a *Assembler) emitS32(v int32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v))
	a.code = append(a.code, buf[:]...)
}

// EmitTableSwitch appends a tableswitch covering [low, low+len(targets)).
func (a *Assembler) EmitTableSwitch(def Label, low int32, targets []Label) *Assembler {
	base := len(a.code)
	a.code = append(a.code, byte(OpTableSwitch))
	a.pad4()
	a.emitSwitchWord(base, def)
	a.emitS32(low)
	a.emitS32(low + int32(len(targets)) - 1)
	for _, t := range targets {
		a.emitSwitchWord(base, t)
	}
	return a
}

// EmitLookupSwitch appends a lookupswitch; pairs must be sorted by key.
func (a *Assembler) EmitLookupSwitch(def Label, pairs []SwitchPair) *Assembler {
	base := len(a.code)
	a.code = append(a.code, byte(OpLookupSwitch))
	a.pad4()
	a.emitSwitchWord(base, def)
	a.emitS32(int32(len(pairs)))
	for _, p := range pairs {
		a.emitS32(p.Key)
		a.emitSwitchWord(base, p.Target)
	}
	return a
}

// Guard records a handler entry for the range [start, end) with an
// optional catch type; catchCPI zero is catch-all.
func (a *Assembler) Guard(start, end, handler Label, catchCPI uint16) *Assembler {
	a.handlers = append(a.handlers, handlerFixup{start: start, end: end, handler: handler, catchCPI: catchCPI})
	return a
}

func (a *Assembler) labelPos(l Label) int {
	pos := a.labels[l]
	if pos < 0 {
		panic(fmt.Sprintf("asm: unbound label %d in %s", l, a.method))
	}
	return pos
}

// Assemble patches every fixup and attaches the body to the method.
func (a *Assembler) Assemble() *Method {
	for _, f := range a.fixups {
		off := a.labelPos(f.label) - f.base
		if f.wide {
			binary.BigEndian.PutUint32(a.code[f.at:], uint32(int32(off)))
		} else {
			if off < -0x8000 || off > 0x7fff {
				panic(fmt.Sprintf("asm: branch offset %d out of range in %s", off, a.method))
			}
			binary.BigEndian.PutUint16(a.code[f.at:], uint16(int16(off)))
		}
	}
	handlers := make([]Handler, 0, len(a.handlers))
	for _, h := range a.handlers {
		handlers = append(handlers, Handler{
			Start:      a.labelPos(h.start),
			End:        a.labelPos(h.end),
			HandlerBCI: a.labelPos(h.handler),
			CatchCPI:   h.catchCPI,
		})
	}
	a.method.SetCode(a.code, a.maxStack, a.maxLocals, a.pool, handlers)
	return a.method
}
