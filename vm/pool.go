package vm

// ---------------------------------------------------------------------------
// Constant pool
// ---------------------------------------------------------------------------

// PoolTag discriminates constant-pool entries.
type PoolTag uint8

const (
	PoolInt PoolTag = iota + 1
	PoolLong
	PoolFloat
	PoolDouble
	PoolString
	PoolClass
	PoolMethodRef
	PoolFieldRef
	PoolInvokeDynamic
)

// PoolEntry is one constant-pool slot. Reference entries are pre-linked
// by the loader; a nil target means the symbolic reference did not
// resolve and surfaces as a link error at the use site.
type PoolEntry struct {
	Tag PoolTag

	IntVal    int32
	LongVal   int64
	FloatVal  float32
	DoubleVal float64
	StrVal    string

	// ClassName is the symbolic name, available without resolution.
	ClassName string

	Class  *Class
	Method *Method
	Field  *Field
}

// Resolver turns constant-pool indices into concrete entities. Resolution
// is idempotent; the collaborator caches. A nil result means the symbolic
// reference has no target.
type Resolver interface {
	ResolveClass(cpi uint16) *Class
	ResolveMethod(cpi uint16) (m *Method, holder *Class)
	ResolveField(cpi uint16) (f *Field, holder *Class)
	ResolveInvokeDynamic(cpi uint16) *Method
}

// ConstantPool is the reference Resolver: a 1-based entry table with
// pre-linked targets. Index 0 is reserved so that a zero index can mean
// "no entry" (catch-all handlers).
type ConstantPool struct {
	entries []PoolEntry
}

// NewConstantPool creates an empty pool.
func NewConstantPool() *ConstantPool {
	return &ConstantPool{entries: make([]PoolEntry, 1)}
}

func (cp *ConstantPool) add(e PoolEntry) uint16 {
	cp.entries = append(cp.entries, e)
	return uint16(len(cp.entries) - 1)
}

func (cp *ConstantPool) AddInt(v int32) uint16     { return cp.add(PoolEntry{Tag: PoolInt, IntVal: v}) }
func (cp *ConstantPool) AddLong(v int64) uint16    { return cp.add(PoolEntry{Tag: PoolLong, LongVal: v}) }
func (cp *ConstantPool) AddFloat(v float32) uint16 { return cp.add(PoolEntry{Tag: PoolFloat, FloatVal: v}) }
func (cp *ConstantPool) AddDouble(v float64) uint16 {
	return cp.add(PoolEntry{Tag: PoolDouble, DoubleVal: v})
}
func (cp *ConstantPool) AddString(s string) uint16 { return cp.add(PoolEntry{Tag: PoolString, StrVal: s}) }

func (cp *ConstantPool) AddClass(c *Class) uint16 {
	return cp.add(PoolEntry{Tag: PoolClass, Class: c, ClassName: c.Name})
}

// AddClassName adds an unresolved class reference.
func (cp *ConstantPool) AddClassName(name string) uint16 {
	return cp.add(PoolEntry{Tag: PoolClass, ClassName: name})
}

// AddMethodRef adds a method reference with its symbolic holder class.
// The holder may differ from the method's declaring class.
func (cp *ConstantPool) AddMethodRef(holder *Class, m *Method) uint16 {
	e := PoolEntry{Tag: PoolMethodRef, Class: holder, Method: m}
	if holder != nil {
		e.ClassName = holder.Name
	}
	return cp.add(e)
}

// AddFieldRef adds a field reference with its symbolic holder class.
func (cp *ConstantPool) AddFieldRef(holder *Class, f *Field) uint16 {
	e := PoolEntry{Tag: PoolFieldRef, Class: holder, Field: f}
	if holder != nil {
		e.ClassName = holder.Name
	}
	return cp.add(e)
}

// AddInvokeDynamic adds a dynamic call-site entry whose bootstrap has
// already produced the target.
func (cp *ConstantPool) AddInvokeDynamic(m *Method) uint16 {
	return cp.add(PoolEntry{Tag: PoolInvokeDynamic, Method: m})
}

// Len returns the entry count including the reserved zero slot.
func (cp *ConstantPool) Len() int { return len(cp.entries) }

// EntryAt returns the entry at cpi.
func (cp *ConstantPool) EntryAt(cpi uint16) PoolEntry { return cp.entries[cpi] }

// ClassNameAt returns the symbolic class name at cpi without resolving,
// or "" when the entry has none.
func (cp *ConstantPool) ClassNameAt(cpi uint16) string {
	if int(cpi) >= len(cp.entries) {
		return ""
	}
	return cp.entries[cpi].ClassName
}

func (cp *ConstantPool) ResolveClass(cpi uint16) *Class { return cp.entries[cpi].Class }

func (cp *ConstantPool) ResolveMethod(cpi uint16) (*Method, *Class) {
	e := cp.entries[cpi]
	return e.Method, e.Class
}

func (cp *ConstantPool) ResolveField(cpi uint16) (*Field, *Class) {
	e := cp.entries[cpi]
	return e.Field, e.Class
}

func (cp *ConstantPool) ResolveInvokeDynamic(cpi uint16) *Method {
	return cp.entries[cpi].Method
}

var _ Resolver = (*ConstantPool)(nil)
