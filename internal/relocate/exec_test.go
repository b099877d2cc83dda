package relocate

import (
	"strings"
	"testing"

	"reloc/internal/effects"
	"reloc/internal/hook"
	"reloc/internal/layout"
	"reloc/internal/source"
	"reloc/internal/types"
)

const poisonWord = 0xDDDDDDDDDDDDDDDD

// newSelfRefWorld builds the classic self-pointing value: a struct whose
// second field holds its own address, repaired by its callback after
// every move.
func newSelfRefWorld(t *testing.T) (*Arena, *hook.Analyzer, *HookRegistry, types.TypeID) {
	t.Helper()
	in := types.NewInterner(nil)
	u64 := in.Intern(types.MakeUint(types.Width64))

	self := in.RegisterStruct(in.Strings.Intern("SelfRef"), source.Span{})
	in.SetStructFields(self, []types.StructField{
		{Name: in.Strings.Intern("data"), Type: u64},
		{Name: in.Strings.Intern("self"), Type: in.Intern(types.MakePointer(self))},
	})
	in.SetStructCallback(self, types.CallbackInfo{
		Quals:   types.QualSetOf(types.QualMut, types.QualReadOnly, types.QualImmutable),
		Effects: effects.Top(),
	})

	engine := layout.New(layout.X86_64LinuxGNU(), in)
	arena := NewArena(engine, 4096)
	an := hook.NewAnalyzer(in)

	reg := NewHookRegistry()
	reg.Register(self, func(new, old Ref) {
		if old.FieldNamed("self").Ptr() == old.Addr() {
			new.FieldNamed("self").SetPtr(new.Addr())
		}
	})
	return arena, an, reg, self
}

func mustAlloc(t *testing.T, a *Arena, id types.TypeID) Addr {
	t.Helper()
	addr, err := a.Alloc(id)
	if err != nil {
		t.Fatal(err)
	}
	return addr
}

func TestRelocateRepairsSelfPointer(t *testing.T) {
	arena, an, reg, self := newSelfRefWorld(t)

	old := mustAlloc(t, arena, self)
	v := NewRef(arena, self, old)
	v.FieldNamed("data").SetWord(42)
	v.FieldNamed("self").SetPtr(old)

	dst := mustAlloc(t, arena, self)
	if err := Relocate(arena, an, reg, self, types.QualMut, old, dst); err != nil {
		t.Fatal(err)
	}

	moved := NewRef(arena, self, dst)
	if got := moved.FieldNamed("data").Word(); got != 42 {
		t.Fatalf("data = %d, want 42", got)
	}
	if got := moved.FieldNamed("self").Ptr(); got != dst {
		t.Fatalf("self = %d, want repaired to %d", got, dst)
	}

	// The old storage is retired without destruction logic.
	if got := arena.Load(old, 8); got != poisonWord {
		t.Fatalf("old storage = %#x, want poison", got)
	}
	if reg.TotalCalls() != 1 {
		t.Fatalf("callback ran %d times, want exactly once", reg.TotalCalls())
	}
}

func TestRelocateLeavesExternalPointersAlone(t *testing.T) {
	in := types.NewInterner(nil)
	u64 := in.Intern(types.MakeUint(types.Width64))

	other := in.RegisterStruct(in.Strings.Intern("Other"), source.Span{})
	in.SetStructFields(other, []types.StructField{
		{Name: in.Strings.Intern("v"), Type: u64},
	})
	holder := in.RegisterStruct(in.Strings.Intern("Holder"), source.Span{})
	in.SetStructFields(holder, []types.StructField{
		{Name: in.Strings.Intern("p"), Type: in.Intern(types.MakePointer(other))},
	})

	engine := layout.New(layout.X86_64LinuxGNU(), in)
	arena := NewArena(engine, 1024)
	an := hook.NewAnalyzer(in)
	reg := NewHookRegistry()

	target := mustAlloc(t, arena, other)
	NewRef(arena, other, target).FieldNamed("v").SetWord(7)

	old := mustAlloc(t, arena, holder)
	NewRef(arena, holder, old).FieldNamed("p").SetPtr(target)

	dst := mustAlloc(t, arena, holder)
	if err := Relocate(arena, an, reg, holder, types.QualMut, old, dst); err != nil {
		t.Fatal(err)
	}

	// The pointer value moved bitwise; the pointee was not touched.
	if got := NewRef(arena, holder, dst).FieldNamed("p").Ptr(); got != target {
		t.Fatalf("p = %d, want %d", got, target)
	}
	if got := NewRef(arena, other, target).FieldNamed("v").Word(); got != 7 {
		t.Fatalf("pointee = %d, want 7", got)
	}
	if reg.TotalCalls() != 0 {
		t.Fatalf("hookless relocation invoked %d callbacks", reg.TotalCalls())
	}
}

// buildChainWorld declares C (callback), B {c C} (callback), A {b B}
// (callback) so the invocation order across a relocation is observable.
func buildChainWorld(t *testing.T) (*Arena, *hook.Analyzer, *HookRegistry, types.TypeID, *[]string) {
	t.Helper()
	in := types.NewInterner(nil)
	u64 := in.Intern(types.MakeUint(types.Width64))
	cb := types.CallbackInfo{Quals: types.QualSetOf(types.QualMut), Effects: effects.Top()}

	c := in.RegisterStruct(in.Strings.Intern("C"), source.Span{})
	in.SetStructFields(c, []types.StructField{{Name: in.Strings.Intern("x"), Type: u64}})
	in.SetStructCallback(c, cb)

	b := in.RegisterStruct(in.Strings.Intern("B"), source.Span{})
	in.SetStructFields(b, []types.StructField{{Name: in.Strings.Intern("c"), Type: c}})
	in.SetStructCallback(b, cb)

	a := in.RegisterStruct(in.Strings.Intern("A"), source.Span{})
	in.SetStructFields(a, []types.StructField{{Name: in.Strings.Intern("b"), Type: b}})
	in.SetStructCallback(a, cb)

	engine := layout.New(layout.X86_64LinuxGNU(), in)
	arena := NewArena(engine, 1024)
	an := hook.NewAnalyzer(in)

	var order []string
	reg := NewHookRegistry()
	reg.Register(c, func(new, old Ref) { order = append(order, "C") })
	reg.Register(b, func(new, old Ref) { order = append(order, "B") })
	reg.Register(a, func(new, old Ref) { order = append(order, "A") })
	return arena, an, reg, a, &order
}

func TestRelocateRunsChildrenBeforeParent(t *testing.T) {
	arena, an, reg, a, order := buildChainWorld(t)

	old := mustAlloc(t, arena, a)
	dst := mustAlloc(t, arena, a)
	if err := Relocate(arena, an, reg, a, types.QualMut, old, dst); err != nil {
		t.Fatal(err)
	}

	if got := strings.Join(*order, ""); got != "CBA" {
		t.Fatalf("invocation order = %q, want CBA", got)
	}
	if reg.TotalCalls() != 3 {
		t.Fatalf("TotalCalls = %d, want 3", reg.TotalCalls())
	}
}

func TestRelocateArrayAscendingIndex(t *testing.T) {
	in := types.NewInterner(nil)
	u64 := in.Intern(types.MakeUint(types.Width64))

	elem := in.RegisterStruct(in.Strings.Intern("Elem"), source.Span{})
	in.SetStructFields(elem, []types.StructField{{Name: in.Strings.Intern("x"), Type: u64}})
	in.SetStructCallback(elem, types.CallbackInfo{
		Quals:   types.QualSetOf(types.QualMut),
		Effects: effects.Top(),
	})
	arr := in.Intern(types.MakeArray(elem, 3))

	engine := layout.New(layout.X86_64LinuxGNU(), in)
	arena := NewArena(engine, 1024)
	an := hook.NewAnalyzer(in)

	var oldAddrs []Addr
	reg := NewHookRegistry()
	reg.Register(elem, func(new, old Ref) { oldAddrs = append(oldAddrs, old.Addr()) })

	old := mustAlloc(t, arena, arr)
	dst := mustAlloc(t, arena, arr)
	if err := Relocate(arena, an, reg, arr, types.QualMut, old, dst); err != nil {
		t.Fatal(err)
	}

	if len(oldAddrs) != 3 {
		t.Fatalf("element callback ran %d times, want 3", len(oldAddrs))
	}
	for i := 1; i < len(oldAddrs); i++ {
		if oldAddrs[i] <= oldAddrs[i-1] {
			t.Fatalf("elements visited out of order: %v", oldAddrs)
		}
	}
}

func TestRelocateHooklessIsZeroCost(t *testing.T) {
	in := types.NewInterner(nil)
	u64 := in.Intern(types.MakeUint(types.Width64))

	pod := in.RegisterStruct(in.Strings.Intern("POD"), source.Span{})
	in.SetStructFields(pod, []types.StructField{
		{Name: in.Strings.Intern("x"), Type: u64},
		{Name: in.Strings.Intern("y"), Type: u64},
	})

	engine := layout.New(layout.X86_64LinuxGNU(), in)
	arena := NewArena(engine, 1024)
	an := hook.NewAnalyzer(in)
	reg := NewHookRegistry()

	slotA := mustAlloc(t, arena, pod)
	slotB := mustAlloc(t, arena, pod)
	NewRef(arena, pod, slotA).FieldNamed("x").SetWord(1)

	from, to := slotA, slotB
	for i := 0; i < 10000; i++ {
		if err := Relocate(arena, an, reg, pod, types.QualMut, from, to); err != nil {
			t.Fatal(err)
		}
		from, to = to, from
	}
	if reg.TotalCalls() != 0 {
		t.Fatalf("hookless relocation invoked %d callbacks over 10k moves", reg.TotalCalls())
	}
}

func TestRelocateRejectsDisabledHook(t *testing.T) {
	in := types.NewInterner(nil)
	u64 := in.Intern(types.MakeUint(types.Width64))

	pinned := in.RegisterStruct(in.Strings.Intern("Pinned"), source.Span{})
	in.SetStructFields(pinned, []types.StructField{{Name: in.Strings.Intern("x"), Type: u64}})
	in.SetStructCallback(pinned, types.CallbackInfo{
		Quals:    types.QualSetOf(types.QualMut),
		Effects:  effects.Top(),
		Disabled: true,
	})

	engine := layout.New(layout.X86_64LinuxGNU(), in)
	arena := NewArena(engine, 256)
	an := hook.NewAnalyzer(in)

	old := mustAlloc(t, arena, pinned)
	dst := mustAlloc(t, arena, pinned)
	err := Relocate(arena, an, NewHookRegistry(), pinned, types.QualMut, old, dst)
	if err == nil || !strings.Contains(err.Error(), "disabled") {
		t.Fatalf("err = %v, want disabled-hook failure", err)
	}
}

func TestRelocateRejectsUncoveredQualifier(t *testing.T) {
	arena, an, reg, a, _ := buildChainWorld(t)

	old := mustAlloc(t, arena, a)
	dst := mustAlloc(t, arena, a)
	err := Relocate(arena, an, reg, a, types.QualReadOnly, old, dst)
	if err == nil || !strings.Contains(err.Error(), "readonly") {
		t.Fatalf("err = %v, want readonly gating failure", err)
	}
}

func TestSwapExchangesAndRepairs(t *testing.T) {
	arena, an, reg, self := newSelfRefWorld(t)

	x := mustAlloc(t, arena, self)
	y := mustAlloc(t, arena, self)
	vx := NewRef(arena, self, x)
	vx.FieldNamed("data").SetWord(1)
	vx.FieldNamed("self").SetPtr(x)
	vy := NewRef(arena, self, y)
	vy.FieldNamed("data").SetWord(2)
	vy.FieldNamed("self").SetPtr(y)

	if err := Swap(arena, an, reg, self, types.QualMut, x, y); err != nil {
		t.Fatal(err)
	}

	if got := NewRef(arena, self, x).FieldNamed("data").Word(); got != 2 {
		t.Fatalf("x.data = %d, want 2", got)
	}
	if got := NewRef(arena, self, y).FieldNamed("data").Word(); got != 1 {
		t.Fatalf("y.data = %d, want 1", got)
	}
	if got := NewRef(arena, self, x).FieldNamed("self").Ptr(); got != x {
		t.Fatalf("x.self = %d, want %d", got, x)
	}
	if got := NewRef(arena, self, y).FieldNamed("self").Ptr(); got != y {
		t.Fatalf("y.self = %d, want %d", got, y)
	}
	// Three full relocations, one callback each.
	if reg.TotalCalls() != 3 {
		t.Fatalf("TotalCalls = %d, want 3", reg.TotalCalls())
	}
}

func TestReadOnlyStorageAndUnsafeMutWindow(t *testing.T) {
	arena, an, reg, self := newSelfRefWorld(t)

	old := mustAlloc(t, arena, self)
	v := NewRef(arena, self, old)
	v.FieldNamed("data").SetWord(9)
	v.FieldNamed("self").SetPtr(old)

	dst := mustAlloc(t, arena, self)
	arena.MarkReadOnly(dst, 16)

	// A direct write to frozen storage faults.
	func() {
		defer func() {
			r := recover()
			f, ok := r.(*Fault)
			if !ok || f.Kind != FaultReadOnly {
				t.Fatalf("recover = %v, want read-only fault", r)
			}
		}()
		arena.Store(dst, 8, 1)
	}()

	// Inside the window the destination is writable, so the callback's
	// repair of an immutable destination goes through.
	arena.WithUnsafeMut(dst, 16, func() {
		if err := Relocate(arena, an, reg, self, types.QualImmutable, old, dst); err != nil {
			t.Fatal(err)
		}
	})
	if got := NewRef(arena, self, dst).FieldNamed("self").Ptr(); got != dst {
		t.Fatalf("self = %d, want %d", got, dst)
	}

	// The window is gone; the storage is frozen again.
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatal("write after window succeeded")
			}
		}()
		arena.Store(dst, 8, 1)
	}()
}

func TestArenaOutOfBoundsFault(t *testing.T) {
	in := types.NewInterner(nil)
	engine := layout.New(layout.X86_64LinuxGNU(), in)
	arena := NewArena(engine, 32)

	defer func() {
		r := recover()
		f, ok := r.(*Fault)
		if !ok || f.Kind != FaultOOB {
			t.Fatalf("recover = %v, want OOB fault", r)
		}
	}()
	arena.Load(Addr(28), 8)
}

func TestArenaAllocAligns(t *testing.T) {
	in := types.NewInterner(nil)
	u8 := in.Intern(types.MakeUint(types.Width8))
	u64 := in.Intern(types.MakeUint(types.Width64))

	engine := layout.New(layout.X86_64LinuxGNU(), in)
	arena := NewArena(engine, 256)

	if _, err := arena.Alloc(u8); err != nil {
		t.Fatal(err)
	}
	addr, err := arena.Alloc(u64)
	if err != nil {
		t.Fatal(err)
	}
	if addr%8 != 0 {
		t.Fatalf("u64 allocated at %d, not 8-aligned", addr)
	}
	if addr == NilAddr {
		t.Fatal("Alloc returned NilAddr")
	}
}
