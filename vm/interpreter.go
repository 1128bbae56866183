package vm

import "fmt"

// ---------------------------------------------------------------------------
// Dispatch loop
// ---------------------------------------------------------------------------

// runMethod drives one activation: execute until a failure unwinds to
// this frame, search the handler table, resume at the handler or rethrow
// to the caller.
func (e *Engine) runMethod(fr *Frame, mn *methodNode) Value {
	curBCI, top := 0, 0
	for {
		res, thrown := e.runFrom(fr, mn, curBCI, top)
		if thrown == nil {
			return res
		}
		if thrown.Abort {
			// Forced termination bypasses handler search entirely.
			e.monitors.AbortFrame(fr)
			panic(thrown)
		}
		if thrown == e.soe {
			// Stack exhaustion takes the preallocated, type-test-free
			// path: the sub-table was computed when the method node was
			// built and the failure value already exists.
			h := lookupStackOverflowHandler(mn.soeTable, fr.bci)
			if h < 0 {
				panic(thrown)
			}
			fr.ClearStack()
			fr.PutRef(0, thrown.Guest)
			curBCI, top = h, 1
			continue
		}
		h := e.findHandler(mn, fr.bci, thrown.Guest.Class)
		if h < 0 {
			panic(thrown)
		}
		fr.ClearStack()
		fr.PutRef(0, thrown.Guest)
		curBCI, top = h, 1
	}
}

// findHandler returns the handler offset of the first table entry whose
// range covers bci and whose catch type is assignable from cls, or -1.
func (e *Engine) findHandler(mn *methodNode, bci int, cls *Class) int {
	for i, h := range mn.method.Handlers {
		if !h.Covers(bci) {
			continue
		}
		if h.IsCatchAll() {
			return h.HandlerBCI
		}
		catch := mn.catchClass(i)
		if catch != nil && catch.IsAssignableFrom(cls) {
			return h.HandlerBCI
		}
	}
	return -1
}

// branchTo accounts for loop back-edges before transferring control.
func (e *Engine) branchTo(mn *methodNode, curBCI, target int) int {
	if target <= curBCI {
		mn.backEdges.Add(1)
		if e.profile != nil {
			e.profile.BackEdge(mn.method.String(), target)
		}
	}
	return target
}

func (e *Engine) nullCheck(o *Object) *Object {
	if o == nil {
		e.meta.Throw(e.meta.NullPointer, "")
	}
	return o
}

func b2i(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// runFrom executes from (startBCI, startTop) until the activation returns
// or a failure unwinds out of it.
func (e *Engine) runFrom(fr *Frame, mn *methodNode, startBCI, startTop int) (res Value, thrown *Thrown) {
	defer func() {
		if r := recover(); r != nil {
			if t, ok := r.(*Thrown); ok {
				thrown = t
				return
			}
			panic(r)
		}
	}()

	bs := mn.stream
	m := fr.method
	curBCI, top := startBCI, startTop

	for {
		if e.controller != nil {
			if v, ok := e.controller.PollEarlyReturn(fr); ok {
				if m.Return == KindVoid {
					return Value{}, nil
				}
				return v, nil
			}
		}

		op := bs.CurrentBC(curBCI)
		if canTrap(op) {
			fr.bci = curBCI
		}
		extra := 0

		switch op {
		case OpNop:

		// -- constants ----------------------------------------------------

		case OpAConstNull:
			fr.PutRef(top, nil)
		case OpIConstM1, OpIConst0, OpIConst1, OpIConst2, OpIConst3, OpIConst4, OpIConst5:
			fr.PutInt(top, int32(op)-int32(OpIConst0))
		case OpLConst0, OpLConst1:
			fr.PutLong(top, int64(op)-int64(OpLConst0))
		case OpFConst0, OpFConst1, OpFConst2:
			fr.PutFloat(top, float32(op-OpFConst0))
		case OpDConst0, OpDConst1:
			fr.PutDouble(top, float64(op-OpDConst0))
		case OpBIPush:
			fr.PutInt(top, bs.ReadSigned8(curBCI))
		case OpSIPush:
			fr.PutInt(top, bs.ReadSigned16(curBCI))

		case OpLdc, OpLdcW, OpLdc2W:
			entry := m.Pool.EntryAt(bs.ReadCPI(curBCI))
			switch entry.Tag {
			case PoolInt:
				fr.PutInt(top, entry.IntVal)
			case PoolFloat:
				fr.PutFloat(top, entry.FloatVal)
			case PoolLong:
				fr.PutLong(top, entry.LongVal)
			case PoolDouble:
				fr.PutDouble(top, entry.DoubleVal)
			case PoolString:
				fr.PutRef(top, e.meta.NewString(entry.StrVal))
			default:
				e.meta.Throw(e.meta.IncompatibleClassChange,
					fmt.Sprintf("%s: unloadable constant at %d", m, curBCI))
			}

		// -- local loads --------------------------------------------------

		case OpILoad:
			fr.PutInt(top, fr.GetLocalInt(bs.ReadLocalIndex(curBCI)))
		case OpLLoad:
			fr.PutLong(top, fr.GetLocalLong(bs.ReadLocalIndex(curBCI)))
		case OpFLoad:
			fr.PutFloat(top, fr.GetLocalFloat(bs.ReadLocalIndex(curBCI)))
		case OpDLoad:
			fr.PutDouble(top, fr.GetLocalDouble(bs.ReadLocalIndex(curBCI)))
		case OpALoad:
			fr.PutRef(top, fr.GetLocalRef(bs.ReadLocalIndex(curBCI)))
		case OpILoad0, OpILoad1, OpILoad2, OpILoad3:
			fr.PutInt(top, fr.GetLocalInt(int(op-OpILoad0)))
		case OpLLoad0, OpLLoad1, OpLLoad2, OpLLoad3:
			fr.PutLong(top, fr.GetLocalLong(int(op-OpLLoad0)))
		case OpFLoad0, OpFLoad1, OpFLoad2, OpFLoad3:
			fr.PutFloat(top, fr.GetLocalFloat(int(op-OpFLoad0)))
		case OpDLoad0, OpDLoad1, OpDLoad2, OpDLoad3:
			fr.PutDouble(top, fr.GetLocalDouble(int(op-OpDLoad0)))
		case OpALoad0, OpALoad1, OpALoad2, OpALoad3:
			fr.PutRef(top, fr.GetLocalRef(int(op-OpALoad0)))

		// -- array loads --------------------------------------------------

		case OpIALoad, OpFALoad, OpBALoad, OpCALoad, OpSALoad:
			idx := fr.PeekInt(top - 1)
			arr := e.nullCheck(fr.PeekAndReleaseRef(top - 2))
			v := e.heap.GetElem(arr, idx)
			if op == OpFALoad {
				fr.PutFloat(top-2, v.Float())
			} else {
				fr.PutInt(top-2, v.Int())
			}
		case OpLALoad, OpDALoad:
			idx := fr.PeekInt(top - 1)
			arr := e.nullCheck(fr.PeekAndReleaseRef(top - 2))
			v := e.heap.GetElem(arr, idx)
			if op == OpLALoad {
				fr.PutLong(top-2, v.Long())
			} else {
				fr.PutDouble(top-2, v.Double())
			}
		case OpAALoad:
			idx := fr.PeekInt(top - 1)
			arr := e.nullCheck(fr.PeekAndReleaseRef(top - 2))
			v := e.heap.GetElem(arr, idx)
			if v.Ref != nil && v.Ref.Foreign {
				mn.invalidateNoForeign()
			}
			fr.PutRef(top-2, v.Ref)

		// -- local stores -------------------------------------------------

		case OpIStore:
			fr.SetLocalInt(bs.ReadLocalIndex(curBCI), fr.PeekInt(top-1))
		case OpLStore:
			fr.SetLocalLong(bs.ReadLocalIndex(curBCI), fr.PeekLong(top-2))
		case OpFStore:
			fr.SetLocalFloat(bs.ReadLocalIndex(curBCI), fr.PeekFloat(top-1))
		case OpDStore:
			fr.SetLocalDouble(bs.ReadLocalIndex(curBCI), fr.PeekDouble(top-2))
		case OpAStore:
			e.storeRefOrRetAddr(fr, bs.ReadLocalIndex(curBCI), top)
		case OpIStore0, OpIStore1, OpIStore2, OpIStore3:
			fr.SetLocalInt(int(op-OpIStore0), fr.PeekInt(top-1))
		case OpLStore0, OpLStore1, OpLStore2, OpLStore3:
			fr.SetLocalLong(int(op-OpLStore0), fr.PeekLong(top-2))
		case OpFStore0, OpFStore1, OpFStore2, OpFStore3:
			fr.SetLocalFloat(int(op-OpFStore0), fr.PeekFloat(top-1))
		case OpDStore0, OpDStore1, OpDStore2, OpDStore3:
			fr.SetLocalDouble(int(op-OpDStore0), fr.PeekDouble(top-2))
		case OpAStore0, OpAStore1, OpAStore2, OpAStore3:
			e.storeRefOrRetAddr(fr, int(op-OpAStore0), top)

		// -- array stores -------------------------------------------------

		case OpIAStore, OpFAStore, OpBAStore, OpCAStore, OpSAStore:
			idx := fr.PeekInt(top - 2)
			arr := e.nullCheck(fr.PeekAndReleaseRef(top - 3))
			var v Value
			switch op {
			case OpFAStore:
				v = FloatValue(fr.PeekFloat(top - 1))
			case OpBAStore:
				raw := fr.PeekInt(top - 1)
				if arr.Class.ElemKind == KindBool {
					v = IntValue(raw & 1)
				} else {
					v = IntValue(int32(int8(raw)))
				}
			case OpCAStore:
				v = IntValue(int32(uint16(fr.PeekInt(top - 1))))
			case OpSAStore:
				v = IntValue(int32(int16(fr.PeekInt(top - 1))))
			default:
				v = IntValue(fr.PeekInt(top - 1))
			}
			e.heap.SetElem(arr, idx, v)
		case OpLAStore, OpDAStore:
			idx := fr.PeekInt(top - 3)
			arr := e.nullCheck(fr.PeekAndReleaseRef(top - 4))
			if op == OpLAStore {
				e.heap.SetElem(arr, idx, LongValue(fr.PeekLong(top-2)))
			} else {
				e.heap.SetElem(arr, idx, DoubleValue(fr.PeekDouble(top-2)))
			}
		case OpAAStore:
			v := fr.PeekAndReleaseRef(top - 1)
			idx := fr.PeekInt(top - 2)
			arr := e.nullCheck(fr.PeekAndReleaseRef(top - 3))
			e.heap.SetElem(arr, idx, RefValue(v))

		// -- stack shuffles (tag-preserving) ------------------------------

		case OpPop:
			fr.rawPut(top-1, 0, nil, tagPrim)
		case OpPop2:
			fr.rawPut(top-1, 0, nil, tagPrim)
			fr.rawPut(top-2, 0, nil, tagPrim)
		case OpDup:
			b, r, t := fr.rawPeek(top - 1)
			fr.rawPut(top, b, r, t)
		case OpDupX1:
			b1, r1, t1 := fr.rawPeek(top - 1)
			b2, r2, t2 := fr.rawPeek(top - 2)
			fr.rawPut(top, b1, r1, t1)
			fr.rawPut(top-1, b2, r2, t2)
			fr.rawPut(top-2, b1, r1, t1)
		case OpDupX2:
			b1, r1, t1 := fr.rawPeek(top - 1)
			b2, r2, t2 := fr.rawPeek(top - 2)
			b3, r3, t3 := fr.rawPeek(top - 3)
			fr.rawPut(top, b1, r1, t1)
			fr.rawPut(top-1, b2, r2, t2)
			fr.rawPut(top-2, b3, r3, t3)
			fr.rawPut(top-3, b1, r1, t1)
		case OpDup2:
			b1, r1, t1 := fr.rawPeek(top - 1)
			b2, r2, t2 := fr.rawPeek(top - 2)
			fr.rawPut(top+1, b1, r1, t1)
			fr.rawPut(top, b2, r2, t2)
		case OpDup2X1:
			b1, r1, t1 := fr.rawPeek(top - 1)
			b2, r2, t2 := fr.rawPeek(top - 2)
			b3, r3, t3 := fr.rawPeek(top - 3)
			fr.rawPut(top+1, b1, r1, t1)
			fr.rawPut(top, b2, r2, t2)
			fr.rawPut(top-1, b3, r3, t3)
			fr.rawPut(top-2, b1, r1, t1)
			fr.rawPut(top-3, b2, r2, t2)
		case OpDup2X2:
			b1, r1, t1 := fr.rawPeek(top - 1)
			b2, r2, t2 := fr.rawPeek(top - 2)
			b3, r3, t3 := fr.rawPeek(top - 3)
			b4, r4, t4 := fr.rawPeek(top - 4)
			fr.rawPut(top+1, b1, r1, t1)
			fr.rawPut(top, b2, r2, t2)
			fr.rawPut(top-1, b3, r3, t3)
			fr.rawPut(top-2, b4, r4, t4)
			fr.rawPut(top-3, b1, r1, t1)
			fr.rawPut(top-4, b2, r2, t2)
		case OpSwap:
			b1, r1, t1 := fr.rawPeek(top - 1)
			b2, r2, t2 := fr.rawPeek(top - 2)
			fr.rawPut(top-1, b2, r2, t2)
			fr.rawPut(top-2, b1, r1, t1)

		// -- arithmetic ---------------------------------------------------

		case OpIAdd:
			fr.PutInt(top-2, fr.PeekInt(top-2)+fr.PeekInt(top-1))
		case OpISub:
			fr.PutInt(top-2, fr.PeekInt(top-2)-fr.PeekInt(top-1))
		case OpIMul:
			fr.PutInt(top-2, fr.PeekInt(top-2)*fr.PeekInt(top-1))
		case OpIDiv:
			y := fr.PeekInt(top - 1)
			if y == 0 {
				e.meta.Throw(e.meta.Arithmetic, "/ by zero")
			}
			fr.PutInt(top-2, divInt32(fr.PeekInt(top-2), y))
		case OpIRem:
			y := fr.PeekInt(top - 1)
			if y == 0 {
				e.meta.Throw(e.meta.Arithmetic, "/ by zero")
			}
			fr.PutInt(top-2, remInt32(fr.PeekInt(top-2), y))
		case OpINeg:
			fr.PutInt(top-1, -fr.PeekInt(top-1))

		case OpLAdd:
			fr.PutLong(top-4, fr.PeekLong(top-4)+fr.PeekLong(top-2))
		case OpLSub:
			fr.PutLong(top-4, fr.PeekLong(top-4)-fr.PeekLong(top-2))
		case OpLMul:
			fr.PutLong(top-4, fr.PeekLong(top-4)*fr.PeekLong(top-2))
		case OpLDiv:
			y := fr.PeekLong(top - 2)
			if y == 0 {
				e.meta.Throw(e.meta.Arithmetic, "/ by zero")
			}
			fr.PutLong(top-4, divInt64(fr.PeekLong(top-4), y))
		case OpLRem:
			y := fr.PeekLong(top - 2)
			if y == 0 {
				e.meta.Throw(e.meta.Arithmetic, "/ by zero")
			}
			fr.PutLong(top-4, remInt64(fr.PeekLong(top-4), y))
		case OpLNeg:
			fr.PutLong(top-2, -fr.PeekLong(top-2))

		case OpFAdd:
			fr.PutFloat(top-2, fr.PeekFloat(top-2)+fr.PeekFloat(top-1))
		case OpFSub:
			fr.PutFloat(top-2, fr.PeekFloat(top-2)-fr.PeekFloat(top-1))
		case OpFMul:
			fr.PutFloat(top-2, fr.PeekFloat(top-2)*fr.PeekFloat(top-1))
		case OpFDiv:
			fr.PutFloat(top-2, fr.PeekFloat(top-2)/fr.PeekFloat(top-1))
		case OpFRem:
			fr.PutFloat(top-2, fmod32(fr.PeekFloat(top-2), fr.PeekFloat(top-1)))
		case OpFNeg:
			fr.PutFloat(top-1, -fr.PeekFloat(top-1))

		case OpDAdd:
			fr.PutDouble(top-4, fr.PeekDouble(top-4)+fr.PeekDouble(top-2))
		case OpDSub:
			fr.PutDouble(top-4, fr.PeekDouble(top-4)-fr.PeekDouble(top-2))
		case OpDMul:
			fr.PutDouble(top-4, fr.PeekDouble(top-4)*fr.PeekDouble(top-2))
		case OpDDiv:
			fr.PutDouble(top-4, fr.PeekDouble(top-4)/fr.PeekDouble(top-2))
		case OpDRem:
			fr.PutDouble(top-4, fmod64(fr.PeekDouble(top-4), fr.PeekDouble(top-2)))
		case OpDNeg:
			fr.PutDouble(top-2, -fr.PeekDouble(top-2))

		case OpIShl:
			fr.PutInt(top-2, shlInt32(fr.PeekInt(top-2), fr.PeekInt(top-1)))
		case OpIShr:
			fr.PutInt(top-2, shrInt32(fr.PeekInt(top-2), fr.PeekInt(top-1)))
		case OpIUShr:
			fr.PutInt(top-2, ushrInt32(fr.PeekInt(top-2), fr.PeekInt(top-1)))
		case OpLShl:
			fr.PutLong(top-3, shlInt64(fr.PeekLong(top-3), fr.PeekInt(top-1)))
		case OpLShr:
			fr.PutLong(top-3, shrInt64(fr.PeekLong(top-3), fr.PeekInt(top-1)))
		case OpLUShr:
			fr.PutLong(top-3, ushrInt64(fr.PeekLong(top-3), fr.PeekInt(top-1)))

		case OpIAnd:
			fr.PutInt(top-2, fr.PeekInt(top-2)&fr.PeekInt(top-1))
		case OpIOr:
			fr.PutInt(top-2, fr.PeekInt(top-2)|fr.PeekInt(top-1))
		case OpIXor:
			fr.PutInt(top-2, fr.PeekInt(top-2)^fr.PeekInt(top-1))
		case OpLAnd:
			fr.PutLong(top-4, fr.PeekLong(top-4)&fr.PeekLong(top-2))
		case OpLOr:
			fr.PutLong(top-4, fr.PeekLong(top-4)|fr.PeekLong(top-2))
		case OpLXor:
			fr.PutLong(top-4, fr.PeekLong(top-4)^fr.PeekLong(top-2))

		case OpIInc:
			idx := bs.ReadLocalIndex(curBCI)
			fr.SetLocalInt(idx, fr.GetLocalInt(idx)+bs.ReadIncrement(curBCI))

		// -- conversions --------------------------------------------------

		case OpI2L:
			fr.PutLong(top-1, int64(fr.PeekInt(top-1)))
		case OpI2F:
			fr.PutFloat(top-1, float32(fr.PeekInt(top-1)))
		case OpI2D:
			fr.PutDouble(top-1, float64(fr.PeekInt(top-1)))
		case OpL2I:
			fr.PutInt(top-2, int32(fr.PeekLong(top-2)))
		case OpL2F:
			fr.PutFloat(top-2, float32(fr.PeekLong(top-2)))
		case OpL2D:
			fr.PutDouble(top-2, float64(fr.PeekLong(top-2)))
		case OpF2I:
			fr.PutInt(top-1, float2Int32(fr.PeekFloat(top-1)))
		case OpF2L:
			fr.PutLong(top-1, float2Int64(fr.PeekFloat(top-1)))
		case OpF2D:
			fr.PutDouble(top-1, float64(fr.PeekFloat(top-1)))
		case OpD2I:
			fr.PutInt(top-2, double2Int32(fr.PeekDouble(top-2)))
		case OpD2L:
			fr.PutLong(top-2, double2Int64(fr.PeekDouble(top-2)))
		case OpD2F:
			fr.PutFloat(top-2, float32(fr.PeekDouble(top-2)))
		case OpI2B:
			fr.PutInt(top-1, int32(int8(fr.PeekInt(top-1))))
		case OpI2C:
			fr.PutInt(top-1, int32(uint16(fr.PeekInt(top-1))))
		case OpI2S:
			fr.PutInt(top-1, int32(int16(fr.PeekInt(top-1))))

		// -- comparisons --------------------------------------------------

		case OpLCmp:
			fr.PutInt(top-4, compareLong(fr.PeekLong(top-4), fr.PeekLong(top-2)))
		case OpFCmpL:
			fr.PutInt(top-2, compareFloatLess(fr.PeekFloat(top-2), fr.PeekFloat(top-1)))
		case OpFCmpG:
			fr.PutInt(top-2, compareFloatGreater(fr.PeekFloat(top-2), fr.PeekFloat(top-1)))
		case OpDCmpL:
			fr.PutInt(top-4, compareDoubleLess(fr.PeekDouble(top-4), fr.PeekDouble(top-2)))
		case OpDCmpG:
			fr.PutInt(top-4, compareDoubleGreater(fr.PeekDouble(top-4), fr.PeekDouble(top-2)))

		// -- branches -----------------------------------------------------

		case OpIfEq, OpIfNe, OpIfLt, OpIfGe, OpIfGt, OpIfLe:
			v := fr.PeekInt(top - 1)
			top--
			if intZeroBranch(op, v) {
				curBCI = e.branchTo(mn, curBCI, bs.ReadBranchDest(curBCI))
			} else {
				curBCI += 3
			}
			continue
		case OpIfICmpEq, OpIfICmpNe, OpIfICmpLt, OpIfICmpGe, OpIfICmpGt, OpIfICmpLe:
			x := fr.PeekInt(top - 2)
			y := fr.PeekInt(top - 1)
			top -= 2
			if intCmpBranch(op, x, y) {
				curBCI = e.branchTo(mn, curBCI, bs.ReadBranchDest(curBCI))
			} else {
				curBCI += 3
			}
			continue
		case OpIfACmpEq, OpIfACmpNe:
			x := fr.PeekAndReleaseRef(top - 2)
			y := fr.PeekAndReleaseRef(top - 1)
			top -= 2
			if (x == y) == (op == OpIfACmpEq) {
				curBCI = e.branchTo(mn, curBCI, bs.ReadBranchDest(curBCI))
			} else {
				curBCI += 3
			}
			continue
		case OpIfNull, OpIfNonNull:
			x := fr.PeekAndReleaseRef(top - 1)
			top--
			if (x == nil) == (op == OpIfNull) {
				curBCI = e.branchTo(mn, curBCI, bs.ReadBranchDest(curBCI))
			} else {
				curBCI += 3
			}
			continue

		case OpGoto, OpGotoW:
			curBCI = e.branchTo(mn, curBCI, bs.ReadBranchDest(curBCI))
			continue

		case OpJsr, OpJsrW:
			next := curBCI + 3
			if op == OpJsrW {
				next = curBCI + 5
			}
			fr.PutRetAddr(top, next)
			top++
			curBCI = e.branchTo(mn, curBCI, bs.ReadBranchDest(curBCI))
			continue

		case OpRet:
			idx := bs.ReadLocalIndex(curBCI)
			target := fr.GetLocalRetAddr(idx)
			fr.recordRetTarget(curBCI, target)
			curBCI = e.branchTo(mn, curBCI, target)
			continue

		// -- switches -----------------------------------------------------

		case OpTableSwitch:
			key := fr.PeekInt(top - 1)
			top--
			ts := bs.TableSwitchAt(curBCI)
			target := ts.DefaultTarget()
			if key >= ts.Low && key <= ts.High {
				target = ts.TargetAt(key)
			}
			curBCI = e.branchTo(mn, curBCI, target)
			continue

		case OpLookupSwitch:
			key := fr.PeekInt(top - 1)
			top--
			curBCI = e.branchTo(mn, curBCI, bs.LookupSwitchAt(curBCI).Target(key))
			continue

		// -- returns ------------------------------------------------------

		case OpIReturn:
			return IntValue(fr.PeekInt(top - 1)), nil
		case OpLReturn:
			return LongValue(fr.PeekLong(top - 2)), nil
		case OpFReturn:
			return FloatValue(fr.PeekFloat(top - 1)), nil
		case OpDReturn:
			return DoubleValue(fr.PeekDouble(top - 2)), nil
		case OpAReturn:
			return RefValue(fr.PeekAndReleaseRef(top - 1)), nil
		case OpReturn:
			return Value{}, nil

		// -- field sites --------------------------------------------------

		case OpGetField, OpGetStatic, OpPutField, OpPutStatic:
			node := mn.lookup(curBCI)
			if node == nil {
				node = e.quickenFieldAccess(mn, m, op, curBCI, bs.ReadCPI(curBCI))
			}
			extra = e.executeFieldNode(fr, mn, node, top)

		// -- invoke sites -------------------------------------------------

		case OpInvokeVirtual, OpInvokeSpecial, OpInvokeStatic, OpInvokeInterface:
			node := mn.lookup(curBCI)
			if node == nil {
				node = e.quickenInvoke(mn, m, op, curBCI, bs.ReadCPI(curBCI))
			}
			extra = e.executeInvokeNode(fr, mn, node, top)

		case OpInvokeDynamic:
			node := mn.lookup(curBCI)
			if node == nil {
				// Dynamic call-site resolution may run arbitrary guest
				// code, so it happens outside the site lock.
				node = e.quickenInvokeDynamic(mn, m, curBCI, bs.ReadCPI(curBCI))
			}
			extra = e.executeInvokeNode(fr, mn, node, top)

		// -- objects and arrays -------------------------------------------

		case OpNew:
			fr.PutRef(top, e.alloc.NewObject(e.resolveClassAt(m, bs.ReadCPI(curBCI))))

		case OpNewArray:
			kind := arrayKindFromCode(int(m.Code[curBCI+1]))
			fr.PutRef(top-1, e.alloc.NewArray(kind, fr.PeekInt(top-1)))

		case OpANewArray:
			comp := e.resolveClassAt(m, bs.ReadCPI(curBCI))
			fr.PutRef(top-1, e.alloc.NewRefArray(comp, fr.PeekInt(top-1)))

		case OpMultiANewArray:
			c := e.resolveClassAt(m, bs.ReadCPI(curBCI))
			dims := int(m.Code[curBCI+3])
			dimVals := make([]int32, dims)
			for i := 0; i < dims; i++ {
				dimVals[i] = fr.PeekInt(top - dims + i)
			}
			fr.PutRef(top-dims, e.alloc.NewMultiArray(c.Component, dimVals))
			extra = 1 - dims

		case OpArrayLength:
			arr := e.nullCheck(fr.PeekAndReleaseRef(top - 1))
			fr.PutInt(top-1, e.heap.ArrayLength(arr))

		case OpAThrow:
			panic(&Thrown{Guest: e.nullCheck(fr.PeekAndReleaseRef(top - 1))})

		case OpCheckCast:
			node := mn.lookup(curBCI)
			if node == nil {
				node = e.quickenCast(mn, m, op, curBCI, bs.ReadCPI(curBCI))
			}
			obj := fr.PeekRef(top - 1)
			if obj != nil && !node.class.IsAssignableFrom(obj.Class) {
				e.meta.Throw(e.meta.ClassCast,
					fmt.Sprintf("class %s cannot be cast to class %s", obj.Class.Name, node.class.Name))
			}

		case OpInstanceOf:
			node := mn.lookup(curBCI)
			if node == nil {
				node = e.quickenCast(mn, m, op, curBCI, bs.ReadCPI(curBCI))
			}
			obj := fr.PeekAndReleaseRef(top - 1)
			fr.PutInt(top-1, b2i(obj != nil && node.class.IsAssignableFrom(obj.Class)))

		case OpMonitorEnter:
			e.monitors.Enter(fr, e.nullCheck(fr.PeekAndReleaseRef(top-1)))
		case OpMonitorExit:
			e.monitors.Exit(fr, e.nullCheck(fr.PeekAndReleaseRef(top-1)))

		// -- wide forms ---------------------------------------------------

		case OpWide:
			inner := bs.CurrentBC(curBCI + 1)
			idx := bs.ReadLocalIndex(curBCI)
			switch inner {
			case OpILoad:
				fr.PutInt(top, fr.GetLocalInt(idx))
			case OpLLoad:
				fr.PutLong(top, fr.GetLocalLong(idx))
			case OpFLoad:
				fr.PutFloat(top, fr.GetLocalFloat(idx))
			case OpDLoad:
				fr.PutDouble(top, fr.GetLocalDouble(idx))
			case OpALoad:
				fr.PutRef(top, fr.GetLocalRef(idx))
			case OpIStore:
				fr.SetLocalInt(idx, fr.PeekInt(top-1))
			case OpLStore:
				fr.SetLocalLong(idx, fr.PeekLong(top-2))
			case OpFStore:
				fr.SetLocalFloat(idx, fr.PeekFloat(top-1))
			case OpDStore:
				fr.SetLocalDouble(idx, fr.PeekDouble(top-2))
			case OpAStore:
				e.storeRefOrRetAddr(fr, idx, top)
			case OpIInc:
				fr.SetLocalInt(idx, fr.GetLocalInt(idx)+bs.ReadIncrement(curBCI))
			case OpRet:
				target := fr.GetLocalRetAddr(idx)
				fr.recordRetTarget(curBCI, target)
				curBCI = e.branchTo(mn, curBCI, target)
				continue
			default:
				panic(fmt.Sprintf("vm: %s cannot be widened", inner.Name()))
			}
			top += stackEffectOf(inner)
			curBCI = bs.NextBCI(curBCI)
			continue

		default:
			panic(fmt.Sprintf("vm: unknown opcode %s at %d in %s", op.Name(), curBCI, m))
		}

		top += stackEffectOf(op) + extra
		curBCI = bs.NextBCI(curBCI)
	}
}

// storeRefOrRetAddr implements astore, which may move either a reference
// or a subroutine return address into a local.
func (e *Engine) storeRefOrRetAddr(fr *Frame, idx, top int) {
	bits, ref, tag := fr.rawPeek(top - 1)
	if tag == tagRetAddr {
		fr.SetLocalRetAddr(idx, int(bits))
	} else {
		fr.SetLocalRef(idx, ref)
	}
	fr.rawPut(top-1, 0, nil, tagPrim)
}

func intZeroBranch(op Opcode, v int32) bool {
	switch op {
	case OpIfEq:
		return v == 0
	case OpIfNe:
		return v != 0
	case OpIfLt:
		return v < 0
	case OpIfGe:
		return v >= 0
	case OpIfGt:
		return v > 0
	default:
		return v <= 0
	}
}

func intCmpBranch(op Opcode, x, y int32) bool {
	switch op {
	case OpIfICmpEq:
		return x == y
	case OpIfICmpNe:
		return x != y
	case OpIfICmpLt:
		return x < y
	case OpIfICmpGe:
		return x >= y
	case OpIfICmpGt:
		return x > y
	default:
		return x <= y
	}
}

// arrayKindFromCode maps the newarray element code to a kind.
func arrayKindFromCode(code int) Kind {
	switch code {
	case 4:
		return KindBool
	case 5:
		return KindChar
	case 6:
		return KindFloat
	case 7:
		return KindDouble
	case 8:
		return KindByte
	case 9:
		return KindShort
	case 10:
		return KindInt
	case 11:
		return KindLong
	}
	panic(fmt.Sprintf("vm: bad newarray element code %d", code))
}

func (e *Engine) resolveClassAt(m *Method, cpi uint16) *Class {
	c := m.Pool.ResolveClass(cpi)
	if c == nil {
		e.meta.Throw(e.meta.NoClassDef, m.Pool.ClassNameAt(cpi))
	}
	return c
}

// ---------------------------------------------------------------------------
// Specialized node execution
// ---------------------------------------------------------------------------

// executeFieldNode performs a quickened field access and returns its net
// stack effect; the declared effect of field opcodes is zero because the
// real effect depends on the field's kind.
func (e *Engine) executeFieldNode(fr *Frame, mn *methodNode, node *quickNode, top int) int {
	f := node.field
	slots := f.Kind.SlotCount()
	switch node.kind {
	case qGetStatic:
		v := e.heap.GetField(nil, f)
		e.noteForeignResult(mn, v)
		return fr.PutValue(top, v)
	case qGetField:
		recv := e.nullCheck(fr.PeekAndReleaseRef(top - 1))
		if recv.Foreign {
			mn.invalidateNoForeign()
		}
		v := e.heap.GetField(recv, f)
		e.noteForeignResult(mn, v)
		return -1 + fr.PutValue(top-1, v)
	case qPutStatic:
		e.heap.SetField(nil, f, fr.PeekValue(f.Kind, top-slots))
		return -slots
	case qPutField:
		v := fr.PeekValue(f.Kind, top-slots)
		recv := e.nullCheck(fr.PeekAndReleaseRef(top - slots - 1))
		if recv.Foreign {
			mn.invalidateNoForeign()
		}
		e.heap.SetField(recv, f, v)
		return -slots - 1
	}
	panic(fmt.Sprintf("vm: %s is not a field node", node.kind))
}

// executeInvokeNode performs a quickened call and returns its net stack
// effect. The node was installed under the site lock but always runs
// outside it.
func (e *Engine) executeInvokeNode(fr *Frame, mn *methodNode, node *quickNode, top int) int {
	switch node.kind {
	case qInlineGetter:
		recv := e.nullCheck(fr.PeekRef(top - 1))
		if recv.Foreign {
			// The receiver does not belong to this object model; give
			// the site back its general call node and go through it.
			return e.executeInvokeNode(fr, mn, e.revertInlinedAccessor(mn, node), top)
		}
		fr.PeekAndReleaseRef(top - 1)
		v := e.heap.GetField(recv, node.field)
		e.noteForeignResult(mn, v)
		return -1 + fr.PutValue(top-1, v)

	case qInlineSetter:
		slots := node.field.Kind.SlotCount()
		recv := e.nullCheck(fr.PeekRef(top - slots - 1))
		if recv.Foreign {
			return e.executeInvokeNode(fr, mn, e.revertInlinedAccessor(mn, node), top)
		}
		v := fr.PeekValue(node.field.Kind, top-slots)
		fr.PeekAndReleaseRef(top - slots - 1)
		e.heap.SetField(recv, node.field, v)
		return -slots - 1
	}

	base := top - node.argSlots
	target := node.method
	var recv *Object
	slot := base
	if !target.IsStatic() {
		recv = e.nullCheck(fr.PeekAndReleaseRef(slot))
		slot++
		switch node.kind {
		case qInvokeVirtual:
			target = recv.Class.LookupVirtual(node.method.VSlot)
		case qInvokeInterface:
			t := recv.Class.FindMethod(node.method.Name, node.method.Sig)
			if t == nil || t.IsAbstract() {
				e.meta.Throw(e.meta.AbstractMethod, node.method.String())
			}
			target = t
		}
	}
	args := make([]Value, 0, len(target.Params))
	for _, p := range target.Params {
		args = append(args, fr.PeekValue(p, slot))
		slot += p.SlotCount()
	}

	res := e.invokeMethod(fr.depth+1, target, recv, args)
	e.noteForeignResult(mn, res)
	ret := 0
	if node.returnKind != KindVoid {
		ret = fr.PutValue(base, res)
	}
	return ret - node.argSlots
}

// noteForeignResult flips the method's fast-path latch when a foreign
// object flows in.
func (e *Engine) noteForeignResult(mn *methodNode, v Value) {
	if v.K == KindRef && v.Ref != nil && v.Ref.Foreign {
		mn.invalidateNoForeign()
	}
}

func fmod32(x, y float32) float32 { return float32(fmod64(float64(x), float64(y))) }
