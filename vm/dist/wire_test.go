package dist

import (
	"testing"

	"github.com/chazu/javelin/vm"
)

type mapRegistry map[string]*vm.Class

func (r mapRegistry) ClassByName(name string) *vm.Class { return r[name] }

// buildSource assembles a method that exercises constants, a field
// reference, a call, and a handler, so the chunk's pool carries every
// symbolic entry family.
func buildSource(t *testing.T, e *vm.Engine) (*vm.Method, *vm.Class) {
	t.Helper()
	counter := vm.NewClass("Counter", e.Meta().Object, vm.AccPublic)
	fc := counter.NewField("count", vm.KindInt, vm.AccPublic|vm.AccStatic)
	bump := counter.NewMethod("bump", []vm.Kind{vm.KindInt}, vm.KindInt, vm.AccPublic|vm.AccStatic)
	ba := vm.NewAssembler(bump)
	cpiF := ba.Pool().AddFieldRef(counter, fc)
	ba.Emit(vm.OpILoad0).
		EmitCPI(vm.OpPutStatic, cpiF).
		EmitCPI(vm.OpGetStatic, cpiF).
		Emit(vm.OpIReturn).
		Assemble()
	counter.Seal()

	host := vm.NewClass("Main", e.Meta().Object, vm.AccPublic)
	m := host.NewMethod("main", nil, vm.KindInt, vm.AccPublic|vm.AccStatic)
	a := vm.NewAssembler(m)
	cpiBump := a.Pool().AddMethodRef(counter, bump)
	cpiArith := a.Pool().AddClass(e.Meta().Arithmetic)
	start, end, h := a.NewLabel(), a.NewLabel(), a.NewLabel()
	a.Mark(start).
		EmitCPI(vm.OpLdc, a.Pool().AddInt(40)).
		EmitCPI(vm.OpInvokeStatic, cpiBump).
		Emit(vm.OpIConst0).
		Emit(vm.OpIDiv).
		Mark(end).
		Emit(vm.OpIReturn).
		Mark(h).
		Emit(vm.OpPop).
		EmitInt8(vm.OpBIPush, 41).
		Emit(vm.OpIReturn).
		Guard(start, end, h, cpiArith).
		Assemble()
	host.Seal()
	return m, counter
}

// ---------------------------------------------------------------------------
// Round trip
// ---------------------------------------------------------------------------

func TestChunkRoundTripLinksAndExecutes(t *testing.T) {
	src := vm.NewEngine(vm.DefaultOptions())
	m, _ := buildSource(t, src)

	chunk, err := FromMethod(m)
	if err != nil {
		t.Fatal(err)
	}
	data, err := MarshalChunk(chunk)
	if err != nil {
		t.Fatal(err)
	}
	back, err := UnmarshalChunk(data)
	if err != nil {
		t.Fatal(err)
	}
	if err := VerifyChunk(back); err != nil {
		t.Fatal(err)
	}

	// Link into a fresh engine with its own class universe.
	dst := vm.NewEngine(vm.DefaultOptions())
	counter := vm.NewClass("Counter", dst.Meta().Object, vm.AccPublic)
	fc := counter.NewField("count", vm.KindInt, vm.AccPublic|vm.AccStatic)
	bump := counter.NewMethod("bump", []vm.Kind{vm.KindInt}, vm.KindInt, vm.AccPublic|vm.AccStatic)
	ba := vm.NewAssembler(bump)
	cpiF := ba.Pool().AddFieldRef(counter, fc)
	ba.Emit(vm.OpILoad0).
		EmitCPI(vm.OpPutStatic, cpiF).
		EmitCPI(vm.OpGetStatic, cpiF).
		Emit(vm.OpIReturn).
		Assemble()
	counter.Seal()

	reg := mapRegistry{"Counter": counter}
	for _, c := range dst.Meta().Classes() {
		reg[c.Name] = c
	}

	owner := vm.NewClass("Main", dst.Meta().Object, vm.AccPublic)
	linked, err := Link(back, owner, reg)
	if err != nil {
		t.Fatal(err)
	}
	owner.Seal()

	// The guarded division by zero lands in the handler, which returns 41.
	res, err := dst.Execute(linked, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Int(); got != 41 {
		t.Errorf("main() = %d, want 41", got)
	}
	if got := counter.Statics[fc.Slot].Int(); got != 40 {
		t.Errorf("linked call left static = %d, want 40", got)
	}
}

func TestProgramRoundTrip(t *testing.T) {
	src := vm.NewEngine(vm.DefaultOptions())
	m, _ := buildSource(t, src)
	chunk, err := FromMethod(m)
	if err != nil {
		t.Fatal(err)
	}

	p := &Program{Main: "main", Class: "Main", Methods: []Chunk{*chunk}}
	data, err := MarshalProgram(p)
	if err != nil {
		t.Fatal(err)
	}
	back, err := UnmarshalProgram(data)
	if err != nil {
		t.Fatal(err)
	}
	if back.Main != "main" || back.Class != "Main" || len(back.Methods) != 1 {
		t.Fatalf("program round trip lost shape: %+v", back)
	}
	if err := VerifyChunk(&back.Methods[0]); err != nil {
		t.Error(err)
	}
}

// ---------------------------------------------------------------------------
// Integrity
// ---------------------------------------------------------------------------

func TestTamperedChunkIsRejected(t *testing.T) {
	src := vm.NewEngine(vm.DefaultOptions())
	m, _ := buildSource(t, src)
	chunk, err := FromMethod(m)
	if err != nil {
		t.Fatal(err)
	}

	chunk.Code = append([]byte(nil), chunk.Code...)
	chunk.Code[0] ^= 0xff

	if err := VerifyChunk(chunk); err == nil {
		t.Error("tampered code passed verification")
	}
	owner := vm.NewClass("Main", nil, vm.AccPublic)
	if _, err := Link(chunk, owner, mapRegistry{}); err == nil {
		t.Error("tampered chunk linked")
	}
}

func TestSealRecomputesHash(t *testing.T) {
	src := vm.NewEngine(vm.DefaultOptions())
	m, _ := buildSource(t, src)
	chunk, err := FromMethod(m)
	if err != nil {
		t.Fatal(err)
	}
	old := chunk.Hash

	chunk.MaxStack++
	if err := SealChunk(chunk); err != nil {
		t.Fatal(err)
	}
	if chunk.Hash == old {
		t.Error("reseal after mutation kept the stale hash")
	}
	if err := VerifyChunk(chunk); err != nil {
		t.Error(err)
	}
}

func TestLinkKeepsUnresolvedReferencesSymbolic(t *testing.T) {
	src := vm.NewEngine(vm.DefaultOptions())
	m, _ := buildSource(t, src)
	chunk, err := FromMethod(m)
	if err != nil {
		t.Fatal(err)
	}
	back, err := UnmarshalChunk(mustMarshal(t, chunk))
	if err != nil {
		t.Fatal(err)
	}

	// An empty registry resolves nothing; linking still succeeds and the
	// unresolved references surface as link errors at first use.
	owner := vm.NewClass("Main", nil, vm.AccPublic)
	linked, err := Link(back, owner, mapRegistry{})
	if err != nil {
		t.Fatal(err)
	}
	if linked.Pool == nil {
		t.Fatal("linked method has no pool")
	}

	dst := vm.NewEngine(vm.DefaultOptions())
	_, execErr := dst.Execute(linked, nil, nil)
	if execErr == nil {
		t.Error("unresolved call executed without a link error")
	}
}

func mustMarshal(t *testing.T, c *Chunk) []byte {
	t.Helper()
	data, err := MarshalChunk(c)
	if err != nil {
		t.Fatal(err)
	}
	return data
}
