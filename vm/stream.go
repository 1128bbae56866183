package vm

import "encoding/binary"

// ---------------------------------------------------------------------------
// Bytecode stream
// ---------------------------------------------------------------------------

// BytecodeStream decodes instructions out of an immutable code array.
// All multi-byte operands are big-endian. The stream itself carries no
// cursor; callers pass the instruction offset explicitly.
type BytecodeStream struct {
	code []byte
}

// NewBytecodeStream wraps a code array. The array must not be mutated
// afterwards; specialization state lives in a side table, never in the
// bytes themselves.
func NewBytecodeStream(code []byte) *BytecodeStream {
	return &BytecodeStream{code: code}
}

// Len returns the code length in bytes.
func (bs *BytecodeStream) Len() int { return len(bs.code) }

// CurrentBC returns the opcode at bci.
func (bs *BytecodeStream) CurrentBC(bci int) Opcode { return Opcode(bs.code[bci]) }

// NextBCI returns the offset of the instruction following the one at bci,
// accounting for variable-length instructions.
func (bs *BytecodeStream) NextBCI(bci int) int {
	op := Opcode(bs.code[bci])
	switch op {
	case OpWide:
		if Opcode(bs.code[bci+1]) == OpIInc {
			return bci + 6
		}
		return bci + 4
	case OpTableSwitch:
		ts := bs.TableSwitchAt(bci)
		return ts.end
	case OpLookupSwitch:
		ls := bs.LookupSwitchAt(bci)
		return ls.end
	}
	return bci + int(opTable[op].length)
}

func (bs *BytecodeStream) readU8(at int) int  { return int(bs.code[at]) }
func (bs *BytecodeStream) readS8(at int) int  { return int(int8(bs.code[at])) }
func (bs *BytecodeStream) readU16(at int) int { return int(binary.BigEndian.Uint16(bs.code[at:])) }
func (bs *BytecodeStream) readS16(at int) int { return int(int16(binary.BigEndian.Uint16(bs.code[at:]))) }
func (bs *BytecodeStream) readS32(at int) int { return int(int32(binary.BigEndian.Uint32(bs.code[at:]))) }

// ReadCPI returns the constant-pool index operand of the instruction at bci.
func (bs *BytecodeStream) ReadCPI(bci int) uint16 {
	if Opcode(bs.code[bci]) == OpLdc {
		return uint16(bs.code[bci+1])
	}
	return binary.BigEndian.Uint16(bs.code[bci+1:])
}

// ReadSigned8 returns the bipush operand.
func (bs *BytecodeStream) ReadSigned8(bci int) int32 { return int32(int8(bs.code[bci+1])) }

// ReadSigned16 returns the sipush operand.
func (bs *BytecodeStream) ReadSigned16(bci int) int32 {
	return int32(int16(binary.BigEndian.Uint16(bs.code[bci+1:])))
}

// ReadLocalIndex returns the local-variable operand of the instruction at
// bci, honoring a wide prefix.
func (bs *BytecodeStream) ReadLocalIndex(bci int) int {
	if Opcode(bs.code[bci]) == OpWide {
		return bs.readU16(bci + 2)
	}
	return bs.readU8(bci + 1)
}

// ReadIncrement returns the iinc delta at bci, honoring a wide prefix.
func (bs *BytecodeStream) ReadIncrement(bci int) int32 {
	if Opcode(bs.code[bci]) == OpWide {
		return int32(int16(binary.BigEndian.Uint16(bs.code[bci+4:])))
	}
	return int32(int8(bs.code[bci+2]))
}

// ReadBranchDest returns the absolute target of the branch at bci. The
// wide goto/jsr forms carry 32-bit offsets; everything else 16-bit.
func (bs *BytecodeStream) ReadBranchDest(bci int) int {
	op := Opcode(bs.code[bci])
	if op == OpGotoW || op == OpJsrW {
		return bci + bs.readS32(bci+1)
	}
	return bci + bs.readS16(bci+1)
}

// alignUp4 rounds to the next 4-byte boundary, as switch operands require.
func alignUp4(n int) int { return (n + 3) &^ 3 }

// ---------------------------------------------------------------------------
// Switch decoding
// ---------------------------------------------------------------------------

// TableSwitch is a decoded tableswitch instruction.
type TableSwitch struct {
	bs       *BytecodeStream
	bci      int
	defOff   int
	Low      int32
	High     int32
	targets  int // offset of the first target word
	end      int
}

// TableSwitchAt decodes the tableswitch at bci.
func (bs *BytecodeStream) TableSwitchAt(bci int) TableSwitch {
	base := alignUp4(bci + 1)
	low := int32(bs.readS32(base + 4))
	high := int32(bs.readS32(base + 8))
	targets := base + 12
	return TableSwitch{
		bs:      bs,
		bci:     bci,
		defOff:  bs.readS32(base),
		Low:     low,
		High:    high,
		targets: targets,
		end:     targets + 4*int(high-low+1),
	}
}

// DefaultTarget returns the absolute default target.
func (ts TableSwitch) DefaultTarget() int { return ts.bci + ts.defOff }

// TargetAt returns the absolute target for key, which must lie in
// [Low, High].
func (ts TableSwitch) TargetAt(key int32) int {
	return ts.bci + ts.bs.readS32(ts.targets+4*int(key-ts.Low))
}

// LookupSwitch is a decoded lookupswitch instruction.
type LookupSwitch struct {
	bs     *BytecodeStream
	bci    int
	defOff int
	npairs int
	pairs  int // offset of the first (key, target) pair
	end    int
}

// LookupSwitchAt decodes the lookupswitch at bci.
func (bs *BytecodeStream) LookupSwitchAt(bci int) LookupSwitch {
	base := alignUp4(bci + 1)
	npairs := bs.readS32(base + 4)
	pairs := base + 8
	return LookupSwitch{
		bs:     bs,
		bci:    bci,
		defOff: bs.readS32(base),
		npairs: npairs,
		pairs:  pairs,
		end:    pairs + 8*npairs,
	}
}

// DefaultTarget returns the absolute default target.
func (ls LookupSwitch) DefaultTarget() int { return ls.bci + ls.defOff }

func (ls LookupSwitch) keyAt(i int) int32    { return int32(ls.bs.readS32(ls.pairs + 8*i)) }
func (ls LookupSwitch) targetAt(i int) int   { return ls.bci + ls.bs.readS32(ls.pairs+8*i+4) }

// NumPairs returns the number of match pairs.
func (ls LookupSwitch) NumPairs() int { return ls.npairs }

// Target binary-searches the sorted keys and returns the absolute target
// for key, or the default target if no pair matches.
func (ls LookupSwitch) Target(key int32) int {
	lo, hi := 0, ls.npairs-1
	for lo <= hi {
		mid := (lo + hi) / 2
		k := ls.keyAt(mid)
		switch {
		case key < k:
			hi = mid - 1
		case key > k:
			lo = mid + 1
		default:
			return ls.targetAt(mid)
		}
	}
	return ls.DefaultTarget()
}
