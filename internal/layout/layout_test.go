package layout

import (
	"errors"
	"testing"

	"reloc/internal/source"
	"reloc/internal/types"
)

func newEngine(t *testing.T) (*Engine, *types.Interner) {
	t.Helper()
	in := types.NewInterner(nil)
	return New(X86_64LinuxGNU(), in), in
}

func TestScalarLayouts(t *testing.T) {
	e, in := newEngine(t)
	b := in.Builtins()

	cases := []struct {
		id    types.TypeID
		size  int
		align int
	}{
		{b.Unit, 0, 1},
		{b.Bool, 1, 1},
		{in.Intern(types.MakeUint(types.Width8)), 1, 1},
		{in.Intern(types.MakeInt(types.Width32)), 4, 4},
		{in.Intern(types.MakeFloat(types.Width64)), 8, 8},
		// Width-any numerics and strings are pointer sized.
		{b.Int, 8, 8},
		{b.String, 8, 8},
	}
	for _, tc := range cases {
		l, err := e.LayoutOf(tc.id)
		if err != nil {
			t.Fatalf("LayoutOf(%d): %v", tc.id, err)
		}
		if l.Size != tc.size || l.Align != tc.align {
			t.Errorf("type %d: size=%d align=%d, want %d/%d", tc.id, l.Size, l.Align, tc.size, tc.align)
		}
	}
}

func TestStructLayoutPadding(t *testing.T) {
	e, in := newEngine(t)
	u8 := in.Intern(types.MakeUint(types.Width8))
	u64 := in.Intern(types.MakeUint(types.Width64))

	id := in.RegisterStruct(in.Strings.Intern("Mixed"), source.Span{})
	in.SetStructFields(id, []types.StructField{
		{Name: in.Strings.Intern("flag"), Type: u8},
		{Name: in.Strings.Intern("word"), Type: u64},
		{Name: in.Strings.Intern("tail"), Type: u8},
	})

	l, err := e.LayoutOf(id)
	if err != nil {
		t.Fatal(err)
	}
	wantOffsets := []int{0, 8, 16}
	for i, off := range l.FieldOffsets {
		if off != wantOffsets[i] {
			t.Errorf("field %d offset = %d, want %d", i, off, wantOffsets[i])
		}
	}
	if l.Size != 24 || l.Align != 8 {
		t.Fatalf("size=%d align=%d, want 24/8", l.Size, l.Align)
	}

	off, err := e.FieldOffset(id, 1)
	if err != nil || off != 8 {
		t.Fatalf("FieldOffset(1) = %d, %v", off, err)
	}
	if _, err := e.FieldOffset(id, 5); err == nil {
		t.Fatal("FieldOffset out of range succeeded")
	}
}

func TestArrayLayoutStride(t *testing.T) {
	e, in := newEngine(t)
	u16 := in.Intern(types.MakeUint(types.Width16))
	arr := in.Intern(types.MakeArray(u16, 10))

	l, err := e.LayoutOf(arr)
	if err != nil {
		t.Fatal(err)
	}
	if l.Size != 20 || l.Align != 2 {
		t.Fatalf("size=%d align=%d, want 20/2", l.Size, l.Align)
	}
}

func TestPointerBreaksRecursion(t *testing.T) {
	e, in := newEngine(t)
	node := in.RegisterStruct(in.Strings.Intern("Node"), source.Span{})
	in.SetStructFields(node, []types.StructField{
		{Name: in.Strings.Intern("value"), Type: in.Builtins().Int},
		{Name: in.Strings.Intern("next"), Type: in.Intern(types.MakePointer(node))},
	})

	l, err := e.LayoutOf(node)
	if err != nil {
		t.Fatalf("self-referential via pointer should be sized: %v", err)
	}
	if l.Size != 16 {
		t.Fatalf("size = %d, want 16", l.Size)
	}
}

func TestDirectRecursionIsUnsized(t *testing.T) {
	e, in := newEngine(t)
	a := in.RegisterStruct(in.Strings.Intern("A"), source.Span{})
	b := in.RegisterStruct(in.Strings.Intern("B"), source.Span{})
	in.SetStructFields(a, []types.StructField{{Name: in.Strings.Intern("b"), Type: b}})
	in.SetStructFields(b, []types.StructField{{Name: in.Strings.Intern("a"), Type: a}})

	_, err := e.LayoutOf(a)
	if err == nil {
		t.Fatal("mutually recursive value types got a layout")
	}
	var lerr *Error
	if !errors.As(err, &lerr) || lerr.Kind != ErrRecursiveUnsized {
		t.Fatalf("err = %v, want ErrRecursiveUnsized", err)
	}
	if len(lerr.Cycle) == 0 {
		t.Fatal("cycle path empty")
	}
}

func TestLayoutIsCached(t *testing.T) {
	e, in := newEngine(t)
	id := in.RegisterStruct(in.Strings.Intern("S"), source.Span{})
	in.SetStructFields(id, []types.StructField{
		{Name: in.Strings.Intern("x"), Type: in.Builtins().Int},
	})

	l1, err := e.LayoutOf(id)
	if err != nil {
		t.Fatal(err)
	}
	l2, err := e.LayoutOf(id)
	if err != nil {
		t.Fatal(err)
	}
	if l1.Size != l2.Size || l1.Align != l2.Align {
		t.Fatal("cached layout differs")
	}
}
