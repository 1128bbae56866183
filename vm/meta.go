package vm

// ---------------------------------------------------------------------------
// Built-in guest classes
// ---------------------------------------------------------------------------

// Meta holds the bootstrapped guest classes the interpreter itself needs:
// the failure hierarchy, the string class, and the object root. Handler
// matching is real assignability against these classes.
type Meta struct {
	Object    *Class
	String    *Class
	Throwable *Class
	Exception *Class
	Error     *Class

	NullPointer             *Class
	Arithmetic              *Class
	ClassCast               *Class
	IndexOutOfBounds        *Class
	ArrayStore              *Class
	NegativeArraySize       *Class
	IncompatibleClassChange *Class
	NoSuchMethod            *Class
	NoSuchField             *Class
	NoClassDef              *Class
	IllegalAccess           *Class
	AbstractMethod          *Class
	VirtualMachine          *Class
	StackOverflow           *Class
	OutOfMemory             *Class
}

// NewMeta bootstraps the built-in hierarchy.
func NewMeta() *Meta {
	m := &Meta{}
	m.Object = NewClass("Object", nil, AccPublic)
	m.String = NewClass("String", m.Object, AccPublic|AccFinal)
	m.Throwable = NewClass("Throwable", m.Object, AccPublic)
	m.Exception = NewClass("Exception", m.Throwable, AccPublic)
	m.Error = NewClass("Error", m.Throwable, AccPublic)

	m.NullPointer = NewClass("NullPointerException", m.Exception, AccPublic)
	m.Arithmetic = NewClass("ArithmeticException", m.Exception, AccPublic)
	m.ClassCast = NewClass("ClassCastException", m.Exception, AccPublic)
	m.IndexOutOfBounds = NewClass("IndexOutOfBoundsException", m.Exception, AccPublic)
	m.ArrayStore = NewClass("ArrayStoreException", m.Exception, AccPublic)
	m.NegativeArraySize = NewClass("NegativeArraySizeException", m.Exception, AccPublic)

	m.IncompatibleClassChange = NewClass("IncompatibleClassChangeError", m.Error, AccPublic)
	m.NoSuchMethod = NewClass("NoSuchMethodError", m.IncompatibleClassChange, AccPublic)
	m.NoSuchField = NewClass("NoSuchFieldError", m.IncompatibleClassChange, AccPublic)
	m.NoClassDef = NewClass("NoClassDefFoundError", m.Error, AccPublic)
	m.IllegalAccess = NewClass("IllegalAccessError", m.IncompatibleClassChange, AccPublic)
	m.AbstractMethod = NewClass("AbstractMethodError", m.IncompatibleClassChange, AccPublic)

	m.VirtualMachine = NewClass("VirtualMachineError", m.Error, AccPublic|AccAbstract)
	m.StackOverflow = NewClass("StackOverflowError", m.VirtualMachine, AccPublic)
	m.OutOfMemory = NewClass("OutOfMemoryError", m.VirtualMachine, AccPublic)

	for _, c := range m.Classes() {
		c.Seal()
	}
	return m
}

// Classes returns every bootstrapped class, for registration in loaders.
func (m *Meta) Classes() []*Class {
	return []*Class{
		m.Object, m.String, m.Throwable, m.Exception, m.Error,
		m.NullPointer, m.Arithmetic, m.ClassCast, m.IndexOutOfBounds,
		m.ArrayStore, m.NegativeArraySize, m.IncompatibleClassChange,
		m.NoSuchMethod, m.NoSuchField, m.NoClassDef, m.IllegalAccess,
		m.AbstractMethod, m.VirtualMachine, m.StackOverflow, m.OutOfMemory,
	}
}

// NewFault creates a failure instance of class with a message payload.
func (m *Meta) NewFault(class *Class, msg string) *Object {
	return &Object{Class: class, Message: msg}
}

// Throw raises a failure as a guest thrown value.
func (m *Meta) Throw(class *Class, msg string) {
	panic(&Thrown{Guest: m.NewFault(class, msg)})
}

// NewString interns a string constant as a guest object.
func (m *Meta) NewString(s string) *Object {
	return &Object{Class: m.String, Message: s}
}
