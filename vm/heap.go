package vm

import (
	"fmt"
	"sync"
)

// ---------------------------------------------------------------------------
// Allocation service
// ---------------------------------------------------------------------------

// Allocator creates guest objects and arrays. Implementations raise guest
// failures (negative array sizes, exhaustion) as thrown values.
type Allocator interface {
	NewObject(c *Class) *Object
	NewArray(elem Kind, length int32) *Object
	NewRefArray(component *Class, length int32) *Object
	NewMultiArray(component *Class, dims []int32) *Object
}

// Heap is the typed field and element access service. It performs its own
// null, bounds, and store checks unless the caller states it already has.
type Heap interface {
	GetField(obj *Object, f *Field) Value
	SetField(obj *Object, f *Field, v Value)
	GetElem(arr *Object, idx int32) Value
	SetElem(arr *Object, idx int32, v Value)
	ArrayLength(arr *Object) int32
}

// ---------------------------------------------------------------------------
// Reference implementation
// ---------------------------------------------------------------------------

// SimpleHeap is the in-process Allocator and Heap backed by host memory.
// Array classes are interned per element type.
type SimpleHeap struct {
	meta *Meta

	mu         sync.Mutex
	primArrays map[Kind]*Class
	refArrays  map[*Class]*Class
}

// NewSimpleHeap creates a heap bound to the given built-in classes.
func NewSimpleHeap(meta *Meta) *SimpleHeap {
	return &SimpleHeap{
		meta:       meta,
		primArrays: make(map[Kind]*Class),
		refArrays:  make(map[*Class]*Class),
	}
}

// ArrayClassFor interns the array class for an element type.
func (h *SimpleHeap) ArrayClassFor(elem Kind, component *Class) *Class {
	h.mu.Lock()
	defer h.mu.Unlock()
	if elem == KindRef {
		c := h.refArrays[component]
		if c == nil {
			c = NewArrayClass(component, KindRef)
			h.refArrays[component] = c
		}
		return c
	}
	c := h.primArrays[elem]
	if c == nil {
		c = NewArrayClass(nil, elem)
		h.primArrays[elem] = c
	}
	return c
}

func (h *SimpleHeap) NewObject(c *Class) *Object {
	n := c.instanceSlotCount()
	fields := make([]Value, n)
	for k := c; k != nil; k = k.Super {
		for _, f := range k.Fields {
			if !f.IsStatic() {
				fields[f.Slot] = zeroValue(f.Kind)
			}
		}
	}
	return &Object{Class: c, Fields: fields}
}

func (h *SimpleHeap) newArray(class *Class, elem Kind, length int32) *Object {
	if length < 0 {
		h.meta.Throw(h.meta.NegativeArraySize, fmt.Sprintf("%d", length))
	}
	elems := make([]Value, length)
	for i := range elems {
		elems[i] = zeroValue(elem)
	}
	return &Object{Class: class, Elems: elems}
}

func (h *SimpleHeap) NewArray(elem Kind, length int32) *Object {
	return h.newArray(h.ArrayClassFor(elem, nil), elem, length)
}

func (h *SimpleHeap) NewRefArray(component *Class, length int32) *Object {
	return h.newArray(h.ArrayClassFor(KindRef, component), KindRef, length)
}

func (h *SimpleHeap) NewMultiArray(component *Class, dims []int32) *Object {
	if len(dims) == 0 {
		panic("heap: multianewarray with no dimensions")
	}
	if len(dims) == 1 {
		if component.IsArray() && component.ElemKind != KindRef {
			return h.NewArray(component.ElemKind, dims[0])
		}
		return h.NewRefArray(component, dims[0])
	}
	outer := h.NewRefArray(component, dims[0])
	inner := component.Component
	for i := range outer.Elems {
		outer.Elems[i] = RefValue(h.NewMultiArray(inner, dims[1:]))
	}
	return outer
}

func (h *SimpleHeap) GetField(obj *Object, f *Field) Value {
	if f.IsStatic() {
		return f.Class.Statics[f.Slot]
	}
	return obj.Fields[f.Slot]
}

func (h *SimpleHeap) SetField(obj *Object, f *Field, v Value) {
	if f.IsStatic() {
		f.Class.Statics[f.Slot] = v
		return
	}
	obj.Fields[f.Slot] = v
}

func (h *SimpleHeap) checkBounds(arr *Object, idx int32) {
	if idx < 0 || int(idx) >= len(arr.Elems) {
		h.meta.Throw(h.meta.IndexOutOfBounds,
			fmt.Sprintf("Index %d out of bounds for length %d", idx, len(arr.Elems)))
	}
}

func (h *SimpleHeap) GetElem(arr *Object, idx int32) Value {
	h.checkBounds(arr, idx)
	return arr.Elems[idx]
}

func (h *SimpleHeap) SetElem(arr *Object, idx int32, v Value) {
	h.checkBounds(arr, idx)
	if arr.Class.ElemKind == KindRef && v.Ref != nil {
		if comp := arr.Class.Component; comp != nil && !comp.IsAssignableFrom(v.Ref.Class) {
			h.meta.Throw(h.meta.ArrayStore, v.Ref.Class.Name)
		}
	}
	arr.Elems[idx] = v
}

func (h *SimpleHeap) ArrayLength(arr *Object) int32 { return arr.Length() }

var (
	_ Allocator = (*SimpleHeap)(nil)
	_ Heap      = (*SimpleHeap)(nil)
)
