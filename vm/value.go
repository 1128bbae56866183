package vm

import (
	"fmt"
	"math"
)

// ---------------------------------------------------------------------------
// Kinds and boxed values
// ---------------------------------------------------------------------------

// Kind classifies a value as it appears in method signatures, field
// declarations, and array components. Sub-int kinds (byte, short, char,
// bool) are stored sign- or zero-extended in an int slot and only matter
// for array element truncation.
type Kind uint8

const (
	KindVoid Kind = iota
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindRef
	KindByte
	KindShort
	KindChar
	KindBool
)

// SlotCount reports how many frame slots a value of this kind occupies.
func (k Kind) SlotCount() int {
	if k == KindLong || k == KindDouble {
		return 2
	}
	if k == KindVoid {
		return 0
	}
	return 1
}

func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindRef:
		return "ref"
	case KindByte:
		return "byte"
	case KindShort:
		return "short"
	case KindChar:
		return "char"
	case KindBool:
		return "bool"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Value is the boxed representation used at call boundaries and in the
// public API. Inside a frame values live in raw tagged slots; boxing only
// happens when crossing into or out of an activation.
type Value struct {
	K    Kind
	Bits uint64
	Ref  *Object
}

// NilValue is the null reference.
var NilValue = Value{K: KindRef}

func IntValue(v int32) Value     { return Value{K: KindInt, Bits: uint64(uint32(v))} }
func LongValue(v int64) Value    { return Value{K: KindLong, Bits: uint64(v)} }
func FloatValue(v float32) Value { return Value{K: KindFloat, Bits: uint64(math.Float32bits(v))} }
func DoubleValue(v float64) Value {
	return Value{K: KindDouble, Bits: math.Float64bits(v)}
}
func RefValue(o *Object) Value { return Value{K: KindRef, Ref: o} }

func (v Value) Int() int32      { return int32(uint32(v.Bits)) }
func (v Value) Long() int64     { return int64(v.Bits) }
func (v Value) Float() float32  { return math.Float32frombits(uint32(v.Bits)) }
func (v Value) Double() float64 { return math.Float64frombits(v.Bits) }
func (v Value) Object() *Object { return v.Ref }

// IsNil reports whether this is a null reference.
func (v Value) IsNil() bool { return v.K == KindRef && v.Ref == nil }

func (v Value) String() string {
	switch v.K {
	case KindVoid:
		return "void"
	case KindInt, KindByte, KindShort, KindChar, KindBool:
		return fmt.Sprintf("%d", v.Int())
	case KindLong:
		return fmt.Sprintf("%dL", v.Long())
	case KindFloat:
		return fmt.Sprintf("%gF", v.Float())
	case KindDouble:
		return fmt.Sprintf("%g", v.Double())
	case KindRef:
		if v.Ref == nil {
			return "null"
		}
		return v.Ref.String()
	}
	return "?"
}
