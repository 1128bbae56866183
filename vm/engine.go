package vm

import (
	"sync"

	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Engine
// ---------------------------------------------------------------------------

// Options configure an Engine.
type Options struct {
	// MaxFrameDepth bounds activation nesting. Exceeding it raises the
	// preallocated stack-exhaustion failure.
	MaxFrameDepth int

	// InlineFieldAccessors folds trivial getter/setter targets into
	// direct field access nodes at their call sites.
	InlineFieldAccessors bool
}

// DefaultOptions returns the stock configuration.
func DefaultOptions() Options {
	return Options{
		MaxFrameDepth:        2048,
		InlineFieldAccessors: true,
	}
}

// ProfileSink receives execution profile events. Implementations must be
// safe for concurrent use.
type ProfileSink interface {
	BackEdge(method string, bci int)
	Quickened(method string, bci int, kind string)
}

// Controller can inject an early-return request; the loop consults it at
// instruction boundaries and substitutes the result for the activation.
type Controller interface {
	PollEarlyReturn(fr *Frame) (Value, bool)
}

// Engine executes bytecode methods. One engine may run the same method
// from many goroutines; the per-method specialization tables are the only
// shared mutable state and are installed under their own lock.
type Engine struct {
	opts       Options
	meta       *Meta
	alloc      Allocator
	heap       Heap
	monitors   Monitors
	profile    ProfileSink
	controller Controller
	log        commonlog.Logger

	// soe is preallocated so the exhaustion path never allocates.
	soe *Thrown

	mu    sync.Mutex
	nodes map[*Method]*methodNode
}

// NewEngine creates an engine with the reference heap and monitor
// services.
func NewEngine(opts Options) *Engine {
	meta := NewMeta()
	heap := NewSimpleHeap(meta)
	e := &Engine{
		opts:     opts,
		meta:     meta,
		alloc:    heap,
		heap:     heap,
		monitors: NewMonitorRegistry(),
		log:      commonlog.GetLogger("javelin.vm"),
		nodes:    make(map[*Method]*methodNode),
	}
	e.soe = &Thrown{Guest: meta.NewFault(meta.StackOverflow, "")}
	return e
}

// Meta returns the built-in guest classes.
func (e *Engine) Meta() *Meta { return e.meta }

// Heap returns the heap access service.
func (e *Engine) Heap() Heap { return e.heap }

// Allocator returns the allocation service.
func (e *Engine) Allocator() Allocator { return e.alloc }

// Monitors returns the intrinsic-lock service.
func (e *Engine) Monitors() Monitors { return e.monitors }

// SetProfileSink attaches a profile event receiver.
func (e *Engine) SetProfileSink(p ProfileSink) { e.profile = p }

// SetController attaches an early-return controller.
func (e *Engine) SetController(c Controller) { e.controller = c }

// SetServices replaces the allocation, heap, and monitor services.
func (e *Engine) SetServices(alloc Allocator, heap Heap, monitors Monitors) {
	if alloc != nil {
		e.alloc = alloc
	}
	if heap != nil {
		e.heap = heap
	}
	if monitors != nil {
		e.monitors = monitors
	}
}

// nodeFor returns the method's specialization table, creating it on first
// use.
func (e *Engine) nodeFor(m *Method) *methodNode {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := e.nodes[m]
	if n == nil {
		n = newMethodNode(m)
		e.nodes[m] = n
	}
	return n
}

// Execute runs a method to completion and returns its result, or the
// guest failure that escaped the outermost activation.
func (e *Engine) Execute(m *Method, recv *Object, args []Value) (v Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			if t, ok := r.(*Thrown); ok {
				v, err = NilValue, t
				return
			}
			panic(r)
		}
	}()
	return e.invokeMethod(0, m, recv, args), nil
}

// invokeMethod builds an activation and runs it. Guest failures propagate
// as thrown values.
func (e *Engine) invokeMethod(depth int, m *Method, recv *Object, args []Value) Value {
	if depth >= e.opts.MaxFrameDepth {
		panic(e.soe)
	}
	if m.Native != nil {
		return m.Native(e, recv, args)
	}
	if m.IsAbstract() || m.Code == nil {
		e.meta.Throw(e.meta.AbstractMethod, m.String())
	}
	node := e.nodeFor(m)
	fr := NewFrame(m, depth)
	i := 0
	if !m.IsStatic() {
		fr.SetLocalRef(0, recv)
		if recv != nil && recv.Foreign {
			node.invalidateNoForeign()
		}
		i = 1
	}
	for _, a := range args {
		if a.K == KindRef && a.Ref != nil && a.Ref.Foreign {
			node.invalidateNoForeign()
		}
		i += fr.SetLocalValue(i, a)
	}
	return e.runMethod(fr, node)
}
