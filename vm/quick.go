package vm

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// Specialized nodes
// ---------------------------------------------------------------------------

type quickKind uint8

const (
	qInvokeStatic quickKind = iota
	qInvokeSpecial
	qInvokeVirtual
	qInvokeInterface
	qInvokeHandle
	qInvokeDynamic
	qGetField
	qPutField
	qGetStatic
	qPutStatic
	qInlineGetter
	qInlineSetter
	qCheckCast
	qInstanceOf
)

var quickKindNames = [...]string{
	qInvokeStatic:    "invoke_static",
	qInvokeSpecial:   "invoke_special",
	qInvokeVirtual:   "invoke_virtual",
	qInvokeInterface: "invoke_interface",
	qInvokeHandle:    "invoke_handle",
	qInvokeDynamic:   "invoke_dynamic",
	qGetField:        "get_field",
	qPutField:        "put_field",
	qGetStatic:       "get_static",
	qPutStatic:       "put_static",
	qInlineGetter:    "inline_getter",
	qInlineSetter:    "inline_setter",
	qCheckCast:       "check_cast",
	qInstanceOf:      "instance_of",
}

func (k quickKind) String() string { return quickKindNames[k] }

// quickNode is one specialized call, field, or cast site. The small fixed
// set of strategies per site family is dispatched by tag.
type quickNode struct {
	kind quickKind
	bci  int

	method *Method // invoke targets
	field  *Field  // field sites and inlined accessors
	class  *Class  // cast sites

	argSlots   int
	returnKind Kind
}

// ---------------------------------------------------------------------------
// Per-method specialization state
// ---------------------------------------------------------------------------

// methodNode holds everything the engine attaches to a method: the
// decoded stream, the specialization side table, the precomputed
// stack-exhaustion handler triples, lazily resolved catch types, and the
// profiling counters. The code bytes themselves are never patched; a
// site's specialization lives entirely in the side table.
type methodNode struct {
	method *Method
	stream *BytecodeStream

	mu    sync.Mutex
	sites map[int]uint16
	nodes []*quickNode

	resolvedCatch map[int]*Class

	soeTable []int

	backEdges atomic.Int64

	// foreignSeen is a one-way latch: it starts unset and is set the
	// first time a foreign object is observed flowing through this
	// method. It is never cleared.
	foreignSeen atomic.Bool
}

func newMethodNode(m *Method) *methodNode {
	return &methodNode{
		method:   m,
		stream:   NewBytecodeStream(m.Code),
		sites:    make(map[int]uint16),
		soeTable: buildStackOverflowTable(m.Handlers, m.Pool),
	}
}

// noForeignObjects reports whether the speculative fast path is still
// valid for this method.
func (n *methodNode) noForeignObjects() bool { return !n.foreignSeen.Load() }

func (n *methodNode) invalidateNoForeign() { n.foreignSeen.Store(true) }

// lookup returns the specialized node installed at bci, or nil.
func (n *methodNode) lookup(bci int) *quickNode {
	n.mu.Lock()
	defer n.mu.Unlock()
	if idx, ok := n.sites[bci]; ok {
		return n.nodes[idx]
	}
	return nil
}

// installOrReuse installs the node the factory builds at bci, unless a
// racing installer got there first, in which case the existing node is
// returned and the factory never runs. The caller executes the returned
// node outside the lock.
func (n *methodNode) installOrReuse(bci int, factory func() *quickNode) *quickNode {
	n.mu.Lock()
	defer n.mu.Unlock()
	if idx, ok := n.sites[bci]; ok {
		return n.nodes[idx]
	}
	node := factory()
	n.installLocked(bci, node)
	return node
}

// adoptOrInstall is the variant for sites whose resolution must run
// outside the lock: the caller resolves first, then offers the node. If
// someone beat us to it, trust them and discard ours.
func (n *methodNode) adoptOrInstall(bci int, node *quickNode) *quickNode {
	n.mu.Lock()
	defer n.mu.Unlock()
	if idx, ok := n.sites[bci]; ok {
		return n.nodes[idx]
	}
	n.installLocked(bci, node)
	return node
}

func (n *methodNode) installLocked(bci int, node *quickNode) {
	if len(n.nodes) > 0xffff {
		panic(fmt.Sprintf("vm: specialization table overflow in %s", n.method))
	}
	node.bci = bci
	n.sites[bci] = uint16(len(n.nodes))
	n.nodes = append(n.nodes, node)
}

// requicken replaces the node installed at bci. The site index is
// unchanged, so concurrent readers switch over atomically at their next
// lookup.
func (n *methodNode) requicken(bci int, node *quickNode) *quickNode {
	n.mu.Lock()
	defer n.mu.Unlock()
	idx, ok := n.sites[bci]
	if !ok {
		n.installLocked(bci, node)
		return node
	}
	node.bci = bci
	n.nodes[idx] = node
	return node
}

// siteCount returns the number of installed specializations.
func (n *methodNode) siteCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.nodes)
}

// catchClass resolves the catch type of handler index hi, caching the
// result after first use. A nil result means catch-all.
func (n *methodNode) catchClass(hi int) *Class {
	h := n.method.Handlers[hi]
	if h.IsCatchAll() {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.resolvedCatch == nil {
		n.resolvedCatch = make(map[int]*Class)
	}
	if c, ok := n.resolvedCatch[hi]; ok {
		return c
	}
	c := n.method.Pool.ResolveClass(h.CatchCPI)
	n.resolvedCatch[hi] = c
	return c
}
