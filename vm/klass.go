package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Access flags
// ---------------------------------------------------------------------------

// AccessFlags carry the declared modifiers of a class, method, or field.
type AccessFlags uint16

const (
	AccPublic    AccessFlags = 0x0001
	AccPrivate   AccessFlags = 0x0002
	AccProtected AccessFlags = 0x0004
	AccStatic    AccessFlags = 0x0008
	AccFinal     AccessFlags = 0x0010
	AccSuper     AccessFlags = 0x0020 // class: alternate invokespecial selection
	AccInterface AccessFlags = 0x0200
	AccAbstract  AccessFlags = 0x0400
)

func (f AccessFlags) Has(flag AccessFlags) bool { return f&flag != 0 }

// ---------------------------------------------------------------------------
// Classes
// ---------------------------------------------------------------------------

// Class describes a guest class: its hierarchy position, field layout,
// declared methods, and (for arrays) the component type. Classes are built
// by the collaborator that owns loading; once Seal is called the virtual
// dispatch table is fixed.
type Class struct {
	Name       string
	Super      *Class
	Interfaces []*Class
	Flags      AccessFlags

	// Arrays only.
	Component *Class
	ElemKind  Kind

	// OldFormat marks classes from binary formats that predate private
	// interface methods; interface calls on private targets are a link
	// error for them.
	OldFormat bool

	Fields  []*Field
	Methods []*Method
	Statics []Value

	vtable []*Method
	sealed bool
}

// NewClass creates an unsealed class.
func NewClass(name string, super *Class, flags AccessFlags) *Class {
	return &Class{Name: name, Super: super, Flags: flags}
}

// NewArrayClass creates a sealed array class with the given element kind
// and (for reference arrays) component class.
func NewArrayClass(component *Class, elemKind Kind) *Class {
	name := "[" + kindChar(elemKind)
	if elemKind == KindRef && component != nil {
		name = "[L" + component.Name + ";"
	}
	return &Class{Name: name, Component: component, ElemKind: elemKind, sealed: true}
}

func (c *Class) IsArray() bool     { return c.ElemKind != KindVoid && c.Name != "" && c.Name[0] == '[' }
func (c *Class) IsInterface() bool { return c.Flags.Has(AccInterface) }
func (c *Class) IsFinal() bool     { return c.Flags.Has(AccFinal) }
func (c *Class) HasSuperFlag() bool { return c.Flags.Has(AccSuper) }

// AddInterface declares that the class implements i.
func (c *Class) AddInterface(i *Class) { c.Interfaces = append(c.Interfaces, i) }

// instanceSlotCount returns the number of instance field slots including
// inherited ones.
func (c *Class) instanceSlotCount() int {
	n := 0
	for k := c; k != nil; k = k.Super {
		for _, f := range k.Fields {
			if !f.IsStatic() {
				n++
			}
		}
	}
	return n
}

// NewField declares a field and assigns its storage slot.
func (c *Class) NewField(name string, kind Kind, flags AccessFlags) *Field {
	f := &Field{Name: name, Class: c, Kind: kind, Flags: flags}
	if f.IsStatic() {
		f.Slot = len(c.Statics)
		c.Statics = append(c.Statics, zeroValue(kind))
	} else {
		f.Slot = c.instanceSlotCount()
	}
	c.Fields = append(c.Fields, f)
	return f
}

// NewMethod declares a method with the given signature. The body is
// attached later with SetCode or SetNative.
func (c *Class) NewMethod(name string, params []Kind, ret Kind, flags AccessFlags) *Method {
	m := &Method{
		Name:   name,
		Class:  c,
		Flags:  flags,
		Params: params,
		Return: ret,
		Sig:    sigOf(params, ret),
		VSlot:  -1,
		ISlot:  -1,
	}
	c.Methods = append(c.Methods, m)
	return m
}

// Seal fixes the class layout and builds the virtual dispatch table.
// Interface classes get interface slots instead.
func (c *Class) Seal() {
	if c.sealed {
		return
	}
	if c.Super != nil {
		c.Super.Seal()
	}
	if c.IsInterface() {
		for i, m := range c.Methods {
			if !m.IsStatic() && !m.IsPrivate() {
				m.ISlot = i
			}
		}
		c.sealed = true
		return
	}
	if c.Super != nil {
		c.vtable = append(c.vtable, c.Super.vtable...)
	}
	for _, m := range c.Methods {
		if m.IsStatic() || m.IsPrivate() || m.IsConstructor() {
			continue
		}
		placed := false
		for slot, existing := range c.vtable {
			if existing.Name == m.Name && existing.Sig == m.Sig {
				c.vtable[slot] = m
				m.VSlot = slot
				placed = true
				break
			}
		}
		if !placed {
			m.VSlot = len(c.vtable)
			c.vtable = append(c.vtable, m)
		}
	}
	c.sealed = true
}

// VTable returns the sealed virtual dispatch table.
func (c *Class) VTable() []*Method { return c.vtable }

// LookupVirtual returns the method occupying a vtable slot.
func (c *Class) LookupVirtual(slot int) *Method { return c.vtable[slot] }

// FindMethod looks up a declared or inherited method by name and
// signature, searching the superclass chain, then interfaces.
func (c *Class) FindMethod(name, sig string) *Method {
	for k := c; k != nil; k = k.Super {
		for _, m := range k.Methods {
			if m.Name == name && m.Sig == sig {
				return m
			}
		}
	}
	for _, i := range c.Interfaces {
		if m := i.FindMethod(name, sig); m != nil {
			return m
		}
	}
	if c.Super != nil {
		for _, i := range c.Super.Interfaces {
			if m := i.FindMethod(name, sig); m != nil {
				return m
			}
		}
	}
	return nil
}

// implementsInterface walks the interface graph transitively.
func (c *Class) implementsInterface(iface *Class) bool {
	for k := c; k != nil; k = k.Super {
		for _, i := range k.Interfaces {
			if i == iface || i.implementsInterface(iface) {
				return true
			}
		}
	}
	return false
}

// IsAssignableFrom reports whether a value of class sub may be stored
// where a value of class c is expected.
func (c *Class) IsAssignableFrom(sub *Class) bool {
	if sub == nil {
		return false
	}
	if c == sub {
		return true
	}
	if c.IsArray() && sub.IsArray() {
		if c.ElemKind != sub.ElemKind {
			return false
		}
		if c.ElemKind == KindRef {
			return c.Component.IsAssignableFrom(sub.Component)
		}
		return true
	}
	if c.IsInterface() {
		return sub.implementsInterface(c)
	}
	for k := sub.Super; k != nil; k = k.Super {
		if k == c {
			return true
		}
	}
	return false
}

// IsStrictSuperclassOf reports whether c is a proper superclass of sub.
func (c *Class) IsStrictSuperclassOf(sub *Class) bool {
	for k := sub.Super; k != nil; k = k.Super {
		if k == c {
			return true
		}
	}
	return false
}

func (c *Class) String() string { return c.Name }

// ---------------------------------------------------------------------------
// Methods
// ---------------------------------------------------------------------------

// NativeFunc is a method body implemented in the host.
type NativeFunc func(e *Engine, recv *Object, args []Value) Value

// Method is a guest method: signature, flags, and either a bytecode body
// or a native body.
type Method struct {
	Name   string
	Class  *Class
	Flags  AccessFlags
	Params []Kind
	Return Kind
	Sig    string

	Code      []byte
	MaxStack  int
	MaxLocals int
	Pool      *ConstantPool
	Handlers  []Handler

	VSlot int // virtual dispatch slot, -1 if none
	ISlot int // interface dispatch slot, -1 if none

	// PolySignature marks call targets that adapt their arguments
	// dynamically and must be dispatched through a handle node.
	PolySignature bool

	Native NativeFunc

	// Getter/Setter mark trivially foldable accessor bodies.
	Getter *Field
	Setter *Field
}

func (m *Method) IsStatic() bool      { return m.Flags.Has(AccStatic) }
func (m *Method) IsFinal() bool       { return m.Flags.Has(AccFinal) }
func (m *Method) IsPrivate() bool     { return m.Flags.Has(AccPrivate) }
func (m *Method) IsAbstract() bool    { return m.Flags.Has(AccAbstract) }
func (m *Method) IsConstructor() bool { return m.Name == "<init>" }

// SetCode attaches a bytecode body.
func (m *Method) SetCode(code []byte, maxStack, maxLocals int, pool *ConstantPool, handlers []Handler) {
	m.Code = code
	m.MaxStack = maxStack
	m.MaxLocals = maxLocals
	m.Pool = pool
	m.Handlers = handlers
}

// SetNative attaches a host body.
func (m *Method) SetNative(fn NativeFunc) { m.Native = fn }

// ArgSlots returns the number of stack slots the call consumes, receiver
// included for instance methods.
func (m *Method) ArgSlots() int {
	n := 0
	if !m.IsStatic() {
		n++
	}
	for _, p := range m.Params {
		n += p.SlotCount()
	}
	return n
}

// ReturnSlots returns the number of stack slots the result occupies.
func (m *Method) ReturnSlots() int { return m.Return.SlotCount() }

func (m *Method) String() string {
	return fmt.Sprintf("%s.%s%s", m.Class.Name, m.Name, m.Sig)
}

// ---------------------------------------------------------------------------
// Fields
// ---------------------------------------------------------------------------

// Field is a guest field with its assigned storage slot.
type Field struct {
	Name  string
	Class *Class
	Kind  Kind
	Flags AccessFlags
	Slot  int
}

func (f *Field) IsStatic() bool { return f.Flags.Has(AccStatic) }
func (f *Field) IsFinal() bool  { return f.Flags.Has(AccFinal) }

func (f *Field) String() string {
	return fmt.Sprintf("%s.%s:%s", f.Class.Name, f.Name, f.Kind)
}

// ---------------------------------------------------------------------------
// Signatures
// ---------------------------------------------------------------------------

func kindChar(k Kind) string {
	switch k {
	case KindVoid:
		return "V"
	case KindInt:
		return "I"
	case KindLong:
		return "J"
	case KindFloat:
		return "F"
	case KindDouble:
		return "D"
	case KindRef:
		return "A"
	case KindByte:
		return "B"
	case KindShort:
		return "S"
	case KindChar:
		return "C"
	case KindBool:
		return "Z"
	}
	return "?"
}

func sigOf(params []Kind, ret Kind) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, p := range params {
		sb.WriteString(kindChar(p))
	}
	sb.WriteByte(')')
	sb.WriteString(kindChar(ret))
	return sb.String()
}

func zeroValue(k Kind) Value {
	if k == KindRef {
		return NilValue
	}
	return Value{K: k}
}
