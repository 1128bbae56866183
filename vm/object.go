package vm

import "fmt"

// ---------------------------------------------------------------------------
// Heap objects
// ---------------------------------------------------------------------------

// Object is a guest heap object. Plain instances carry field storage
// indexed by Field.Slot; arrays carry element storage instead. Foreign
// marks objects that do not belong to this runtime's object model and
// invalidates the interpreter's speculative fast path.
type Object struct {
	Class  *Class
	Fields []Value
	Elems  []Value

	Foreign bool

	// Message carries the payload of fault objects and interned string
	// constants.
	Message string
}

// IsArray reports whether the object is an array instance.
func (o *Object) IsArray() bool { return o.Class != nil && o.Class.IsArray() }

// Length returns the element count of an array object.
func (o *Object) Length() int32 { return int32(len(o.Elems)) }

func (o *Object) String() string {
	if o == nil {
		return "null"
	}
	if o.IsArray() {
		return fmt.Sprintf("%s[%d]", o.Class.Name, len(o.Elems))
	}
	if o.Message != "" {
		return fmt.Sprintf("%s(%q)", o.Class.Name, o.Message)
	}
	return fmt.Sprintf("%s@%p", o.Class.Name, o)
}
