package vm

import "fmt"

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single bytecode instruction.
type Opcode byte

// Constants
const (
	OpNop       Opcode = 0x00 // no operation
	OpAConstNull Opcode = 0x01 // push null
	OpIConstM1  Opcode = 0x02 // push int -1
	OpIConst0   Opcode = 0x03 // push int 0
	OpIConst1   Opcode = 0x04 // push int 1
	OpIConst2   Opcode = 0x05 // push int 2
	OpIConst3   Opcode = 0x06 // push int 3
	OpIConst4   Opcode = 0x07 // push int 4
	OpIConst5   Opcode = 0x08 // push int 5
	OpLConst0   Opcode = 0x09 // push long 0
	OpLConst1   Opcode = 0x0a // push long 1
	OpFConst0   Opcode = 0x0b // push float 0
	OpFConst1   Opcode = 0x0c // push float 1
	OpFConst2   Opcode = 0x0d // push float 2
	OpDConst0   Opcode = 0x0e // push double 0
	OpDConst1   Opcode = 0x0f // push double 1
	OpBIPush    Opcode = 0x10 // push 8-bit signed integer
	OpSIPush    Opcode = 0x11 // push 16-bit signed integer
	OpLdc       Opcode = 0x12 // push pool constant (8-bit index)
	OpLdcW      Opcode = 0x13 // push pool constant (16-bit index)
	OpLdc2W     Opcode = 0x14 // push wide pool constant (16-bit index)
)

// Local loads
const (
	OpILoad  Opcode = 0x15 // load int local (8-bit index)
	OpLLoad  Opcode = 0x16 // load long local
	OpFLoad  Opcode = 0x17 // load float local
	OpDLoad  Opcode = 0x18 // load double local
	OpALoad  Opcode = 0x19 // load reference local
	OpILoad0 Opcode = 0x1a
	OpILoad1 Opcode = 0x1b
	OpILoad2 Opcode = 0x1c
	OpILoad3 Opcode = 0x1d
	OpLLoad0 Opcode = 0x1e
	OpLLoad1 Opcode = 0x1f
	OpLLoad2 Opcode = 0x20
	OpLLoad3 Opcode = 0x21
	OpFLoad0 Opcode = 0x22
	OpFLoad1 Opcode = 0x23
	OpFLoad2 Opcode = 0x24
	OpFLoad3 Opcode = 0x25
	OpDLoad0 Opcode = 0x26
	OpDLoad1 Opcode = 0x27
	OpDLoad2 Opcode = 0x28
	OpDLoad3 Opcode = 0x29
	OpALoad0 Opcode = 0x2a
	OpALoad1 Opcode = 0x2b
	OpALoad2 Opcode = 0x2c
	OpALoad3 Opcode = 0x2d
)

// Array loads
const (
	OpIALoad Opcode = 0x2e
	OpLALoad Opcode = 0x2f
	OpFALoad Opcode = 0x30
	OpDALoad Opcode = 0x31
	OpAALoad Opcode = 0x32
	OpBALoad Opcode = 0x33
	OpCALoad Opcode = 0x34
	OpSALoad Opcode = 0x35
)

// Local stores
const (
	OpIStore  Opcode = 0x36 // store int local (8-bit index)
	OpLStore  Opcode = 0x37
	OpFStore  Opcode = 0x38
	OpDStore  Opcode = 0x39
	OpAStore  Opcode = 0x3a
	OpIStore0 Opcode = 0x3b
	OpIStore1 Opcode = 0x3c
	OpIStore2 Opcode = 0x3d
	OpIStore3 Opcode = 0x3e
	OpLStore0 Opcode = 0x3f
	OpLStore1 Opcode = 0x40
	OpLStore2 Opcode = 0x41
	OpLStore3 Opcode = 0x42
	OpFStore0 Opcode = 0x43
	OpFStore1 Opcode = 0x44
	OpFStore2 Opcode = 0x45
	OpFStore3 Opcode = 0x46
	OpDStore0 Opcode = 0x47
	OpDStore1 Opcode = 0x48
	OpDStore2 Opcode = 0x49
	OpDStore3 Opcode = 0x4a
	OpAStore0 Opcode = 0x4b
	OpAStore1 Opcode = 0x4c
	OpAStore2 Opcode = 0x4d
	OpAStore3 Opcode = 0x4e
)

// Array stores
const (
	OpIAStore Opcode = 0x4f
	OpLAStore Opcode = 0x50
	OpFAStore Opcode = 0x51
	OpDAStore Opcode = 0x52
	OpAAStore Opcode = 0x53
	OpBAStore Opcode = 0x54
	OpCAStore Opcode = 0x55
	OpSAStore Opcode = 0x56
)

// Stack shuffles
const (
	OpPop    Opcode = 0x57
	OpPop2   Opcode = 0x58
	OpDup    Opcode = 0x59
	OpDupX1  Opcode = 0x5a
	OpDupX2  Opcode = 0x5b
	OpDup2   Opcode = 0x5c
	OpDup2X1 Opcode = 0x5d
	OpDup2X2 Opcode = 0x5e
	OpSwap   Opcode = 0x5f
)

// Arithmetic
const (
	OpIAdd  Opcode = 0x60
	OpLAdd  Opcode = 0x61
	OpFAdd  Opcode = 0x62
	OpDAdd  Opcode = 0x63
	OpISub  Opcode = 0x64
	OpLSub  Opcode = 0x65
	OpFSub  Opcode = 0x66
	OpDSub  Opcode = 0x67
	OpIMul  Opcode = 0x68
	OpLMul  Opcode = 0x69
	OpFMul  Opcode = 0x6a
	OpDMul  Opcode = 0x6b
	OpIDiv  Opcode = 0x6c
	OpLDiv  Opcode = 0x6d
	OpFDiv  Opcode = 0x6e
	OpDDiv  Opcode = 0x6f
	OpIRem  Opcode = 0x70
	OpLRem  Opcode = 0x71
	OpFRem  Opcode = 0x72
	OpDRem  Opcode = 0x73
	OpINeg  Opcode = 0x74
	OpLNeg  Opcode = 0x75
	OpFNeg  Opcode = 0x76
	OpDNeg  Opcode = 0x77
	OpIShl  Opcode = 0x78
	OpLShl  Opcode = 0x79
	OpIShr  Opcode = 0x7a
	OpLShr  Opcode = 0x7b
	OpIUShr Opcode = 0x7c
	OpLUShr Opcode = 0x7d
	OpIAnd  Opcode = 0x7e
	OpLAnd  Opcode = 0x7f
	OpIOr   Opcode = 0x80
	OpLOr   Opcode = 0x81
	OpIXor  Opcode = 0x82
	OpLXor  Opcode = 0x83
	OpIInc  Opcode = 0x84 // increment local (8-bit index, 8-bit delta)
)

// Conversions
const (
	OpI2L Opcode = 0x85
	OpI2F Opcode = 0x86
	OpI2D Opcode = 0x87
	OpL2I Opcode = 0x88
	OpL2F Opcode = 0x89
	OpL2D Opcode = 0x8a
	OpF2I Opcode = 0x8b
	OpF2L Opcode = 0x8c
	OpF2D Opcode = 0x8d
	OpD2I Opcode = 0x8e
	OpD2L Opcode = 0x8f
	OpD2F Opcode = 0x90
	OpI2B Opcode = 0x91
	OpI2C Opcode = 0x92
	OpI2S Opcode = 0x93
)

// Comparisons
const (
	OpLCmp  Opcode = 0x94
	OpFCmpL Opcode = 0x95 // NaN sorts less
	OpFCmpG Opcode = 0x96 // NaN sorts greater
	OpDCmpL Opcode = 0x97
	OpDCmpG Opcode = 0x98
)

// Branches
const (
	OpIfEq     Opcode = 0x99 // all conditionals: 16-bit relative offset
	OpIfNe     Opcode = 0x9a
	OpIfLt     Opcode = 0x9b
	OpIfGe     Opcode = 0x9c
	OpIfGt     Opcode = 0x9d
	OpIfLe     Opcode = 0x9e
	OpIfICmpEq Opcode = 0x9f
	OpIfICmpNe Opcode = 0xa0
	OpIfICmpLt Opcode = 0xa1
	OpIfICmpGe Opcode = 0xa2
	OpIfICmpGt Opcode = 0xa3
	OpIfICmpLe Opcode = 0xa4
	OpIfACmpEq Opcode = 0xa5
	OpIfACmpNe Opcode = 0xa6
	OpGoto     Opcode = 0xa7
	OpJsr      Opcode = 0xa8 // jump to subroutine, pushes return address
	OpRet      Opcode = 0xa9 // return from subroutine (8-bit local index)
)

// Switches
const (
	OpTableSwitch  Opcode = 0xaa // aligned, variable length
	OpLookupSwitch Opcode = 0xab // aligned, variable length, sorted pairs
)

// Returns
const (
	OpIReturn Opcode = 0xac
	OpLReturn Opcode = 0xad
	OpFReturn Opcode = 0xae
	OpDReturn Opcode = 0xaf
	OpAReturn Opcode = 0xb0
	OpReturn  Opcode = 0xb1
)

// Field and invoke sites
const (
	OpGetStatic       Opcode = 0xb2 // 16-bit pool index
	OpPutStatic       Opcode = 0xb3
	OpGetField        Opcode = 0xb4
	OpPutField        Opcode = 0xb5
	OpInvokeVirtual   Opcode = 0xb6
	OpInvokeSpecial   Opcode = 0xb7
	OpInvokeStatic    Opcode = 0xb8
	OpInvokeInterface Opcode = 0xb9 // 16-bit pool index + count + zero
	OpInvokeDynamic   Opcode = 0xba // 16-bit pool index + two zero bytes
)

// Objects and arrays
const (
	OpNew             Opcode = 0xbb
	OpNewArray        Opcode = 0xbc // 8-bit primitive element code
	OpANewArray       Opcode = 0xbd
	OpArrayLength     Opcode = 0xbe
	OpAThrow          Opcode = 0xbf
	OpCheckCast       Opcode = 0xc0
	OpInstanceOf      Opcode = 0xc1
	OpMonitorEnter    Opcode = 0xc2
	OpMonitorExit     Opcode = 0xc3
	OpWide            Opcode = 0xc4 // widens the following local-index instruction
	OpMultiANewArray  Opcode = 0xc5 // 16-bit pool index + 8-bit dimension count
	OpIfNull          Opcode = 0xc6
	OpIfNonNull       Opcode = 0xc7
	OpGotoW           Opcode = 0xc8 // 32-bit relative offset
	OpJsrW            Opcode = 0xc9
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

type opFlag uint8

const (
	opTrap   opFlag = 1 << iota // publishes bci before executing; may fault
	opBranch                    // computes its successor directly
	opInvoke                    // call site, subject to quickening
)

type opInfo struct {
	name   string
	length int8 // -1: variable, computed by the stream
	effect int8 // declared stack effect; field/invoke sites report extra
	flags  opFlag
}

var opTable = [256]opInfo{
	OpNop:        {"nop", 1, 0, 0},
	OpAConstNull: {"aconst_null", 1, 1, 0},
	OpIConstM1:   {"iconst_m1", 1, 1, 0},
	OpIConst0:    {"iconst_0", 1, 1, 0},
	OpIConst1:    {"iconst_1", 1, 1, 0},
	OpIConst2:    {"iconst_2", 1, 1, 0},
	OpIConst3:    {"iconst_3", 1, 1, 0},
	OpIConst4:    {"iconst_4", 1, 1, 0},
	OpIConst5:    {"iconst_5", 1, 1, 0},
	OpLConst0:    {"lconst_0", 1, 2, 0},
	OpLConst1:    {"lconst_1", 1, 2, 0},
	OpFConst0:    {"fconst_0", 1, 1, 0},
	OpFConst1:    {"fconst_1", 1, 1, 0},
	OpFConst2:    {"fconst_2", 1, 1, 0},
	OpDConst0:    {"dconst_0", 1, 2, 0},
	OpDConst1:    {"dconst_1", 1, 2, 0},
	OpBIPush:     {"bipush", 2, 1, 0},
	OpSIPush:     {"sipush", 3, 1, 0},
	OpLdc:        {"ldc", 2, 1, opTrap},
	OpLdcW:       {"ldc_w", 3, 1, opTrap},
	OpLdc2W:      {"ldc2_w", 3, 2, opTrap},

	OpILoad:  {"iload", 2, 1, 0},
	OpLLoad:  {"lload", 2, 2, 0},
	OpFLoad:  {"fload", 2, 1, 0},
	OpDLoad:  {"dload", 2, 2, 0},
	OpALoad:  {"aload", 2, 1, 0},
	OpILoad0: {"iload_0", 1, 1, 0},
	OpILoad1: {"iload_1", 1, 1, 0},
	OpILoad2: {"iload_2", 1, 1, 0},
	OpILoad3: {"iload_3", 1, 1, 0},
	OpLLoad0: {"lload_0", 1, 2, 0},
	OpLLoad1: {"lload_1", 1, 2, 0},
	OpLLoad2: {"lload_2", 1, 2, 0},
	OpLLoad3: {"lload_3", 1, 2, 0},
	OpFLoad0: {"fload_0", 1, 1, 0},
	OpFLoad1: {"fload_1", 1, 1, 0},
	OpFLoad2: {"fload_2", 1, 1, 0},
	OpFLoad3: {"fload_3", 1, 1, 0},
	OpDLoad0: {"dload_0", 1, 2, 0},
	OpDLoad1: {"dload_1", 1, 2, 0},
	OpDLoad2: {"dload_2", 1, 2, 0},
	OpDLoad3: {"dload_3", 1, 2, 0},
	OpALoad0: {"aload_0", 1, 1, 0},
	OpALoad1: {"aload_1", 1, 1, 0},
	OpALoad2: {"aload_2", 1, 1, 0},
	OpALoad3: {"aload_3", 1, 1, 0},

	OpIALoad: {"iaload", 1, -1, opTrap},
	OpLALoad: {"laload", 1, 0, opTrap},
	OpFALoad: {"faload", 1, -1, opTrap},
	OpDALoad: {"daload", 1, 0, opTrap},
	OpAALoad: {"aaload", 1, -1, opTrap},
	OpBALoad: {"baload", 1, -1, opTrap},
	OpCALoad: {"caload", 1, -1, opTrap},
	OpSALoad: {"saload", 1, -1, opTrap},

	OpIStore:  {"istore", 2, -1, 0},
	OpLStore:  {"lstore", 2, -2, 0},
	OpFStore:  {"fstore", 2, -1, 0},
	OpDStore:  {"dstore", 2, -2, 0},
	OpAStore:  {"astore", 2, -1, 0},
	OpIStore0: {"istore_0", 1, -1, 0},
	OpIStore1: {"istore_1", 1, -1, 0},
	OpIStore2: {"istore_2", 1, -1, 0},
	OpIStore3: {"istore_3", 1, -1, 0},
	OpLStore0: {"lstore_0", 1, -2, 0},
	OpLStore1: {"lstore_1", 1, -2, 0},
	OpLStore2: {"lstore_2", 1, -2, 0},
	OpLStore3: {"lstore_3", 1, -2, 0},
	OpFStore0: {"fstore_0", 1, -1, 0},
	OpFStore1: {"fstore_1", 1, -1, 0},
	OpFStore2: {"fstore_2", 1, -1, 0},
	OpFStore3: {"fstore_3", 1, -1, 0},
	OpDStore0: {"dstore_0", 1, -2, 0},
	OpDStore1: {"dstore_1", 1, -2, 0},
	OpDStore2: {"dstore_2", 1, -2, 0},
	OpDStore3: {"dstore_3", 1, -2, 0},
	OpAStore0: {"astore_0", 1, -1, 0},
	OpAStore1: {"astore_1", 1, -1, 0},
	OpAStore2: {"astore_2", 1, -1, 0},
	OpAStore3: {"astore_3", 1, -1, 0},

	OpIAStore: {"iastore", 1, -3, opTrap},
	OpLAStore: {"lastore", 1, -4, opTrap},
	OpFAStore: {"fastore", 1, -3, opTrap},
	OpDAStore: {"dastore", 1, -4, opTrap},
	OpAAStore: {"aastore", 1, -3, opTrap},
	OpBAStore: {"bastore", 1, -3, opTrap},
	OpCAStore: {"castore", 1, -3, opTrap},
	OpSAStore: {"sastore", 1, -3, opTrap},

	OpPop:    {"pop", 1, -1, 0},
	OpPop2:   {"pop2", 1, -2, 0},
	OpDup:    {"dup", 1, 1, 0},
	OpDupX1:  {"dup_x1", 1, 1, 0},
	OpDupX2:  {"dup_x2", 1, 1, 0},
	OpDup2:   {"dup2", 1, 2, 0},
	OpDup2X1: {"dup2_x1", 1, 2, 0},
	OpDup2X2: {"dup2_x2", 1, 2, 0},
	OpSwap:   {"swap", 1, 0, 0},

	OpIAdd:  {"iadd", 1, -1, 0},
	OpLAdd:  {"ladd", 1, -2, 0},
	OpFAdd:  {"fadd", 1, -1, 0},
	OpDAdd:  {"dadd", 1, -2, 0},
	OpISub:  {"isub", 1, -1, 0},
	OpLSub:  {"lsub", 1, -2, 0},
	OpFSub:  {"fsub", 1, -1, 0},
	OpDSub:  {"dsub", 1, -2, 0},
	OpIMul:  {"imul", 1, -1, 0},
	OpLMul:  {"lmul", 1, -2, 0},
	OpFMul:  {"fmul", 1, -1, 0},
	OpDMul:  {"dmul", 1, -2, 0},
	OpIDiv:  {"idiv", 1, -1, opTrap},
	OpLDiv:  {"ldiv", 1, -2, opTrap},
	OpFDiv:  {"fdiv", 1, -1, 0},
	OpDDiv:  {"ddiv", 1, -2, 0},
	OpIRem:  {"irem", 1, -1, opTrap},
	OpLRem:  {"lrem", 1, -2, opTrap},
	OpFRem:  {"frem", 1, -1, 0},
	OpDRem:  {"drem", 1, -2, 0},
	OpINeg:  {"ineg", 1, 0, 0},
	OpLNeg:  {"lneg", 1, 0, 0},
	OpFNeg:  {"fneg", 1, 0, 0},
	OpDNeg:  {"dneg", 1, 0, 0},
	OpIShl:  {"ishl", 1, -1, 0},
	OpLShl:  {"lshl", 1, -1, 0},
	OpIShr:  {"ishr", 1, -1, 0},
	OpLShr:  {"lshr", 1, -1, 0},
	OpIUShr: {"iushr", 1, -1, 0},
	OpLUShr: {"lushr", 1, -1, 0},
	OpIAnd:  {"iand", 1, -1, 0},
	OpLAnd:  {"land", 1, -2, 0},
	OpIOr:   {"ior", 1, -1, 0},
	OpLOr:   {"lor", 1, -2, 0},
	OpIXor:  {"ixor", 1, -1, 0},
	OpLXor:  {"lxor", 1, -2, 0},
	OpIInc:  {"iinc", 3, 0, 0},

	OpI2L: {"i2l", 1, 1, 0},
	OpI2F: {"i2f", 1, 0, 0},
	OpI2D: {"i2d", 1, 1, 0},
	OpL2I: {"l2i", 1, -1, 0},
	OpL2F: {"l2f", 1, -1, 0},
	OpL2D: {"l2d", 1, 0, 0},
	OpF2I: {"f2i", 1, 0, 0},
	OpF2L: {"f2l", 1, 1, 0},
	OpF2D: {"f2d", 1, 1, 0},
	OpD2I: {"d2i", 1, -1, 0},
	OpD2L: {"d2l", 1, 0, 0},
	OpD2F: {"d2f", 1, -1, 0},
	OpI2B: {"i2b", 1, 0, 0},
	OpI2C: {"i2c", 1, 0, 0},
	OpI2S: {"i2s", 1, 0, 0},

	OpLCmp:  {"lcmp", 1, -3, 0},
	OpFCmpL: {"fcmpl", 1, -1, 0},
	OpFCmpG: {"fcmpg", 1, -1, 0},
	OpDCmpL: {"dcmpl", 1, -3, 0},
	OpDCmpG: {"dcmpg", 1, -3, 0},

	OpIfEq:     {"ifeq", 3, -1, opBranch},
	OpIfNe:     {"ifne", 3, -1, opBranch},
	OpIfLt:     {"iflt", 3, -1, opBranch},
	OpIfGe:     {"ifge", 3, -1, opBranch},
	OpIfGt:     {"ifgt", 3, -1, opBranch},
	OpIfLe:     {"ifle", 3, -1, opBranch},
	OpIfICmpEq: {"if_icmpeq", 3, -2, opBranch},
	OpIfICmpNe: {"if_icmpne", 3, -2, opBranch},
	OpIfICmpLt: {"if_icmplt", 3, -2, opBranch},
	OpIfICmpGe: {"if_icmpge", 3, -2, opBranch},
	OpIfICmpGt: {"if_icmpgt", 3, -2, opBranch},
	OpIfICmpLe: {"if_icmple", 3, -2, opBranch},
	OpIfACmpEq: {"if_acmpeq", 3, -2, opBranch},
	OpIfACmpNe: {"if_acmpne", 3, -2, opBranch},
	OpGoto:     {"goto", 3, 0, opBranch},
	OpJsr:      {"jsr", 3, 1, opBranch},
	OpRet:      {"ret", 2, 0, opBranch},

	OpTableSwitch:  {"tableswitch", -1, -1, opBranch},
	OpLookupSwitch: {"lookupswitch", -1, -1, opBranch},

	OpIReturn: {"ireturn", 1, -1, 0},
	OpLReturn: {"lreturn", 1, -2, 0},
	OpFReturn: {"freturn", 1, -1, 0},
	OpDReturn: {"dreturn", 1, -2, 0},
	OpAReturn: {"areturn", 1, -1, 0},
	OpReturn:  {"return", 1, 0, 0},

	OpGetStatic: {"getstatic", 3, 0, opTrap},
	OpPutStatic: {"putstatic", 3, 0, opTrap},
	OpGetField:  {"getfield", 3, 0, opTrap},
	OpPutField:  {"putfield", 3, 0, opTrap},

	OpInvokeVirtual:   {"invokevirtual", 3, 0, opTrap | opInvoke},
	OpInvokeSpecial:   {"invokespecial", 3, 0, opTrap | opInvoke},
	OpInvokeStatic:    {"invokestatic", 3, 0, opTrap | opInvoke},
	OpInvokeInterface: {"invokeinterface", 5, 0, opTrap | opInvoke},
	OpInvokeDynamic:   {"invokedynamic", 5, 0, opTrap | opInvoke},

	OpNew:            {"new", 3, 1, opTrap},
	OpNewArray:       {"newarray", 2, 0, opTrap},
	OpANewArray:      {"anewarray", 3, 0, opTrap},
	OpArrayLength:    {"arraylength", 1, 0, opTrap},
	OpAThrow:         {"athrow", 1, -1, opTrap},
	OpCheckCast:      {"checkcast", 3, 0, opTrap},
	OpInstanceOf:     {"instanceof", 3, 0, opTrap},
	OpMonitorEnter:   {"monitorenter", 1, -1, opTrap},
	OpMonitorExit:    {"monitorexit", 1, -1, opTrap},
	OpWide:           {"wide", -1, 0, 0},
	OpMultiANewArray: {"multianewarray", 4, 0, opTrap},
	OpIfNull:         {"ifnull", 3, -1, opBranch},
	OpIfNonNull:      {"ifnonnull", 3, -1, opBranch},
	OpGotoW:          {"goto_w", 5, 0, opBranch},
	OpJsrW:           {"jsr_w", 5, 1, opBranch},
}

// Name returns the mnemonic for an opcode.
func (op Opcode) Name() string {
	info := opTable[op]
	if info.name == "" {
		return fmt.Sprintf("op_%#02x", byte(op))
	}
	return info.name
}

func stackEffectOf(op Opcode) int { return int(opTable[op].effect) }

// canTrap reports whether the instruction may fault and therefore must
// publish its offset to the frame before executing.
func canTrap(op Opcode) bool { return opTable[op].flags&opTrap != 0 }

func isBranch(op Opcode) bool { return opTable[op].flags&opBranch != 0 }

func isInvoke(op Opcode) bool { return opTable[op].flags&opInvoke != 0 }
