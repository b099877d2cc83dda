package relocate

import (
	"fmt"

	"reloc/internal/types"
)

// Ref is a typed view of a value inside an Arena. Callbacks receive the
// new and old instances as Refs; field and element projection follow the
// layout engine's offsets.
type Ref struct {
	arena *Arena
	t     types.TypeID
	addr  Addr
}

// NewRef builds a typed view at addr.
func NewRef(a *Arena, t types.TypeID, addr Addr) Ref {
	return Ref{arena: a, t: t, addr: addr}
}

func (r Ref) Addr() Addr         { return r.addr }
func (r Ref) Type() types.TypeID { return r.t }
func (r Ref) Arena() *Arena      { return r.arena }

// Field projects the i-th declared field of a struct value.
func (r Ref) Field(i int) Ref {
	off, err := r.arena.Engine.FieldOffset(r.t, i)
	if err != nil {
		panic(fmt.Errorf("ref: %w", err))
	}
	fields := r.arena.Engine.Types.StructFields(r.t)
	return Ref{arena: r.arena, t: fields[i].Type, addr: r.addr + Addr(off)}
}

// FieldNamed projects a struct field by name. Test convenience.
func (r Ref) FieldNamed(name string) Ref {
	typesIn := r.arena.Engine.Types
	fields := typesIn.StructFields(r.t)
	for i, f := range fields {
		if got, ok := typesIn.Strings.Lookup(f.Name); ok && got == name {
			return r.Field(i)
		}
	}
	panic(fmt.Errorf("ref: no field %q on %s", name, types.Label(typesIn, r.t)))
}

// Index projects the i-th element of a fixed array value.
func (r Ref) Index(i int) Ref {
	tt, ok := r.arena.Engine.Types.Lookup(r.t)
	if !ok || tt.Kind != types.KindArray {
		panic(fmt.Errorf("ref: index on non-array type#%d", r.t))
	}
	stride := r.elemStride(tt.Elem)
	return Ref{arena: r.arena, t: tt.Elem, addr: r.addr + Addr(stride*i)}
}

func (r Ref) elemStride(elem types.TypeID) int {
	l, err := r.arena.Engine.LayoutOf(elem)
	if err != nil {
		panic(fmt.Errorf("ref: %w", err))
	}
	align := l.Align
	if align <= 0 {
		align = 1
	}
	size := l.Size
	if rem := size % align; rem != 0 {
		size += align - rem
	}
	return size
}

func (r Ref) size() int {
	l, err := r.arena.Engine.LayoutOf(r.t)
	if err != nil {
		panic(fmt.Errorf("ref: %w", err))
	}
	return l.Size
}

// Word loads the scalar value (integer, float bits, bool, pointer).
func (r Ref) Word() uint64 {
	return r.arena.Load(r.addr, r.size())
}

// SetWord stores the scalar value, honoring read-only ranges.
func (r Ref) SetWord(v uint64) {
	r.arena.Store(r.addr, r.size(), v)
}

// Ptr loads a pointer-typed field as an arena address.
func (r Ref) Ptr() Addr {
	return Addr(r.Word())
}

// SetPtr stores an arena address into a pointer-typed field.
func (r Ref) SetPtr(addr Addr) {
	r.SetWord(uint64(addr))
}
