package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Disassembler
// ---------------------------------------------------------------------------

// Disassemble renders a method body as one instruction per line.
func Disassemble(m *Method) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (stack=%d, locals=%d)\n", m, m.MaxStack, m.MaxLocals)
	bs := NewBytecodeStream(m.Code)
	for bci := 0; bci < bs.Len(); bci = bs.NextBCI(bci) {
		sb.WriteString(disasmOne(m, bs, bci))
		sb.WriteByte('\n')
	}
	for _, h := range m.Handlers {
		catch := "any"
		if !h.IsCatchAll() && m.Pool != nil {
			catch = m.Pool.ClassNameAt(h.CatchCPI)
		}
		fmt.Fprintf(&sb, "  handler [%d, %d) -> %d catch %s\n", h.Start, h.End, h.HandlerBCI, catch)
	}
	return sb.String()
}

func disasmOne(m *Method, bs *BytecodeStream, bci int) string {
	op := bs.CurrentBC(bci)
	head := fmt.Sprintf("%5d: %s", bci, op.Name())
	switch op {
	case OpBIPush:
		return fmt.Sprintf("%s %d", head, bs.ReadSigned8(bci))
	case OpSIPush:
		return fmt.Sprintf("%s %d", head, bs.ReadSigned16(bci))
	case OpLdc, OpLdcW, OpLdc2W:
		return fmt.Sprintf("%s %s", head, poolOperand(m, bs.ReadCPI(bci)))
	case OpILoad, OpLLoad, OpFLoad, OpDLoad, OpALoad,
		OpIStore, OpLStore, OpFStore, OpDStore, OpAStore, OpRet:
		return fmt.Sprintf("%s %d", head, bs.ReadLocalIndex(bci))
	case OpIInc:
		return fmt.Sprintf("%s %d %+d", head, bs.ReadLocalIndex(bci), bs.ReadIncrement(bci))
	case OpIfEq, OpIfNe, OpIfLt, OpIfGe, OpIfGt, OpIfLe,
		OpIfICmpEq, OpIfICmpNe, OpIfICmpLt, OpIfICmpGe, OpIfICmpGt, OpIfICmpLe,
		OpIfACmpEq, OpIfACmpNe, OpIfNull, OpIfNonNull,
		OpGoto, OpJsr, OpGotoW, OpJsrW:
		return fmt.Sprintf("%s %d", head, bs.ReadBranchDest(bci))
	case OpTableSwitch:
		ts := bs.TableSwitchAt(bci)
		var sb strings.Builder
		fmt.Fprintf(&sb, "%s [%d..%d]", head, ts.Low, ts.High)
		for k := ts.Low; k <= ts.High; k++ {
			fmt.Fprintf(&sb, " %d:%d", k, ts.TargetAt(k))
		}
		fmt.Fprintf(&sb, " default:%d", ts.DefaultTarget())
		return sb.String()
	case OpLookupSwitch:
		ls := bs.LookupSwitchAt(bci)
		var sb strings.Builder
		sb.WriteString(head)
		for i := 0; i < ls.NumPairs(); i++ {
			fmt.Fprintf(&sb, " %d:%d", ls.keyAt(i), ls.targetAt(i))
		}
		fmt.Fprintf(&sb, " default:%d", ls.DefaultTarget())
		return sb.String()
	case OpGetStatic, OpPutStatic, OpGetField, OpPutField,
		OpInvokeVirtual, OpInvokeSpecial, OpInvokeStatic, OpInvokeInterface, OpInvokeDynamic,
		OpNew, OpANewArray, OpCheckCast, OpInstanceOf:
		return fmt.Sprintf("%s %s", head, poolOperand(m, bs.ReadCPI(bci)))
	case OpMultiANewArray:
		return fmt.Sprintf("%s %s dims=%d", head, poolOperand(m, bs.ReadCPI(bci)), m.Code[bci+3])
	case OpNewArray:
		return fmt.Sprintf("%s %s", head, arrayKindFromCode(int(m.Code[bci+1])))
	case OpWide:
		inner := bs.CurrentBC(bci + 1)
		if inner == OpIInc {
			return fmt.Sprintf("%s %s %d %+d", head, inner.Name(), bs.ReadLocalIndex(bci), bs.ReadIncrement(bci))
		}
		return fmt.Sprintf("%s %s %d", head, inner.Name(), bs.ReadLocalIndex(bci))
	}
	return head
}

func poolOperand(m *Method, cpi uint16) string {
	if m.Pool == nil {
		return fmt.Sprintf("#%d", cpi)
	}
	e := m.Pool.EntryAt(cpi)
	switch e.Tag {
	case PoolInt:
		return fmt.Sprintf("#%d <%d>", cpi, e.IntVal)
	case PoolLong:
		return fmt.Sprintf("#%d <%dL>", cpi, e.LongVal)
	case PoolFloat:
		return fmt.Sprintf("#%d <%gF>", cpi, e.FloatVal)
	case PoolDouble:
		return fmt.Sprintf("#%d <%g>", cpi, e.DoubleVal)
	case PoolString:
		return fmt.Sprintf("#%d <%q>", cpi, e.StrVal)
	case PoolClass:
		return fmt.Sprintf("#%d <%s>", cpi, e.ClassName)
	case PoolMethodRef, PoolInvokeDynamic:
		if e.Method != nil {
			return fmt.Sprintf("#%d <%s>", cpi, e.Method)
		}
	case PoolFieldRef:
		if e.Field != nil {
			return fmt.Sprintf("#%d <%s>", cpi, e.Field)
		}
	}
	return fmt.Sprintf("#%d", cpi)
}
