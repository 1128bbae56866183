package vm

import (
	"sync"
	"sync/atomic"
	"testing"
)

func bareMethodNode() *methodNode {
	c := NewClass("NodeHost", nil, AccPublic)
	m := c.NewMethod("body", nil, KindVoid, AccPublic|AccStatic)
	m.SetCode([]byte{byte(OpReturn)}, 1, 0, NewConstantPool(), nil)
	return newMethodNode(m)
}

// ---------------------------------------------------------------------------
// Site installation
// ---------------------------------------------------------------------------

func TestInstallOrReuseRunsFactoryOnce(t *testing.T) {
	mn := bareMethodNode()
	var built atomic.Int32
	factory := func() *quickNode {
		built.Add(1)
		return &quickNode{kind: qInvokeStatic}
	}

	const workers = 8
	nodes := make([]*quickNode, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			nodes[i] = mn.installOrReuse(4, factory)
		}(i)
	}
	wg.Wait()

	if got := built.Load(); got != 1 {
		t.Errorf("factory ran %d times, want 1", got)
	}
	for i := 1; i < workers; i++ {
		if nodes[i] != nodes[0] {
			t.Fatal("racing installers observed different nodes")
		}
	}
	if got := mn.siteCount(); got != 1 {
		t.Errorf("site count = %d, want 1", got)
	}
}

func TestAdoptOrInstallPrefersExisting(t *testing.T) {
	mn := bareMethodNode()
	first := &quickNode{kind: qInvokeDynamic}
	second := &quickNode{kind: qInvokeDynamic}

	if got := mn.adoptOrInstall(2, first); got != first {
		t.Fatal("empty site should adopt the offered node")
	}
	if got := mn.adoptOrInstall(2, second); got != first {
		t.Error("occupied site should keep the racing winner")
	}
	if got := mn.siteCount(); got != 1 {
		t.Errorf("site count = %d, want 1", got)
	}
}

func TestRequickenReplacesInPlace(t *testing.T) {
	mn := bareMethodNode()
	old := mn.installOrReuse(6, func() *quickNode { return &quickNode{kind: qInlineGetter} })
	idx := mn.sites[6]

	repl := mn.requicken(6, &quickNode{kind: qInvokeSpecial})
	if repl == old {
		t.Fatal("requicken returned the replaced node")
	}
	if got := mn.lookup(6); got != repl {
		t.Error("lookup still sees the replaced node")
	}
	if mn.sites[6] != idx {
		t.Error("replacement changed the site index")
	}
	if got := mn.siteCount(); got != 1 {
		t.Errorf("site count = %d, want 1", got)
	}
}

func TestForeignLatchIsOneWay(t *testing.T) {
	mn := bareMethodNode()
	if !mn.noForeignObjects() {
		t.Fatal("fresh method node should start on the fast path")
	}
	mn.invalidateNoForeign()
	mn.invalidateNoForeign()
	if mn.noForeignObjects() {
		t.Error("latch should stay flipped")
	}
}

// ---------------------------------------------------------------------------
// Accessor folding
// ---------------------------------------------------------------------------

// buildGetterFixture wires a private getter behind an invokespecial site.
func buildGetterFixture(e *Engine) (caller *Method, box *Class, fv *Field) {
	box = NewClass("Box", e.Meta().Object, AccPublic)
	fv = box.NewField("value", KindInt, AccPrivate)
	get := box.NewMethod("value", nil, KindInt, AccPrivate)
	get.Getter = fv
	ga := NewAssembler(get)
	ga.Emit(OpALoad0).
		EmitCPI(OpGetField, ga.Pool().AddFieldRef(box, fv)).
		Emit(OpIReturn).
		Assemble()
	box.Seal()

	host := NewClass("Caller", e.Meta().Object, AccPublic)
	caller = host.NewMethod("read", []Kind{KindRef}, KindInt, AccPublic|AccStatic)
	a := NewAssembler(caller)
	cpi := a.Pool().AddMethodRef(box, get)
	a.Emit(OpALoad0).
		EmitCPI(OpInvokeSpecial, cpi).
		Emit(OpIReturn).
		Assemble()
	return caller, box, fv
}

func TestGetterFoldsIntoFieldAccess(t *testing.T) {
	e := newEngineT()
	caller, box, fv := buildGetterFixture(e)

	obj := e.Allocator().NewObject(box)
	e.Heap().SetField(obj, fv, IntValue(13))

	res, err := e.Execute(caller, nil, []Value{RefValue(obj)})
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Int(); got != 13 {
		t.Errorf("read() = %d, want 13", got)
	}

	node := e.nodeFor(caller).lookup(1)
	if node == nil || node.kind != qInlineGetter {
		t.Fatalf("call site holds %v, want a folded getter", node)
	}
}

func TestGetterFoldingRevertsOnForeignReceiver(t *testing.T) {
	e := newEngineT()
	caller, box, fv := buildGetterFixture(e)

	// Prime the site with a well-behaved receiver.
	obj := e.Allocator().NewObject(box)
	e.Heap().SetField(obj, fv, IntValue(13))
	if _, err := e.Execute(caller, nil, []Value{RefValue(obj)}); err != nil {
		t.Fatal(err)
	}

	foreign := e.Allocator().NewObject(box)
	foreign.Foreign = true
	e.Heap().SetField(foreign, fv, IntValue(29))

	res, err := e.Execute(caller, nil, []Value{RefValue(foreign)})
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Int(); got != 29 {
		t.Errorf("read(foreign) = %d, want 29", got)
	}

	mn := e.nodeFor(caller)
	node := mn.lookup(1)
	if node == nil || node.kind != qInvokeSpecial {
		t.Fatalf("call site holds %v, want the reverted general call", node)
	}
	if mn.noForeignObjects() {
		t.Error("foreign receiver should flip the fast-path latch")
	}
	if got := mn.siteCount(); got != 1 {
		t.Errorf("site count = %d, want 1", got)
	}
}

func TestFoldingDisabledByOption(t *testing.T) {
	e := NewEngine(Options{MaxFrameDepth: 128, InlineFieldAccessors: false})
	caller, box, fv := buildGetterFixture(e)

	obj := e.Allocator().NewObject(box)
	e.Heap().SetField(obj, fv, IntValue(13))
	res, err := e.Execute(caller, nil, []Value{RefValue(obj)})
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Int(); got != 13 {
		t.Errorf("read() = %d, want 13", got)
	}

	node := e.nodeFor(caller).lookup(1)
	if node == nil || node.kind != qInvokeSpecial {
		t.Errorf("call site holds %v, want a plain direct call", node)
	}
}

// ---------------------------------------------------------------------------
// Dynamic call sites
// ---------------------------------------------------------------------------

func TestInvokeDynamicAdoptsBootstrapResult(t *testing.T) {
	e := newEngineT()
	host := NewClass("Dyn", e.Meta().Object, AccPublic)
	target := host.NewMethod("answer", nil, KindInt, AccPublic|AccStatic)
	NewAssembler(target).EmitInt8(OpBIPush, 17).Emit(OpIReturn).Assemble()

	m := host.NewMethod("call", nil, KindInt, AccPublic|AccStatic)
	a := NewAssembler(m)
	cpi := a.Pool().AddInvokeDynamic(target)
	a.EmitCPI(OpInvokeDynamic, cpi).
		Emit(OpIReturn).
		Assemble()

	res, err := e.Execute(m, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Int(); got != 17 {
		t.Errorf("call() = %d, want 17", got)
	}
	node := e.nodeFor(m).lookup(0)
	if node == nil || node.kind != qInvokeDynamic {
		t.Errorf("call site holds %v, want a dynamic call node", node)
	}
}
