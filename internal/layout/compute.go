package layout

import (
	"fortio.org/safecast"

	"reloc/internal/types"
)

type computeState struct {
	visiting map[types.TypeID]int
	stack    []types.TypeID
}

func (e *Engine) compute(id types.TypeID, st *computeState) (TypeLayout, error) {
	if id == types.NoTypeID {
		return TypeLayout{Size: 0, Align: 1}, nil
	}
	tt, ok := e.Types.Lookup(id)
	if !ok {
		return TypeLayout{Size: 0, Align: 1}, nil
	}

	switch tt.Kind {
	case types.KindUnit:
		return TypeLayout{Size: 0, Align: 1}, nil

	case types.KindBool:
		return TypeLayout{Size: 1, Align: 1}, nil

	case types.KindInt, types.KindUint, types.KindFloat:
		if tt.Width == types.WidthAny {
			return e.ptrLayout(), nil
		}
		return scalarLayoutBytes(int(tt.Width) / 8), nil

	case types.KindString, types.KindPointer, types.KindReference:
		return e.ptrLayout(), nil

	case types.KindArray:
		return e.arrayLayout(tt.Elem, tt.Count, st)

	case types.KindStruct:
		return e.structLayout(id, st)

	default:
		return TypeLayout{Size: 0, Align: 1}, nil
	}
}

func (e *Engine) arrayLayout(elem types.TypeID, length uint32, st *computeState) (TypeLayout, error) {
	el, err := e.compute(elem, st)
	if err != nil {
		return TypeLayout{}, err
	}
	align := el.Align
	if align <= 0 {
		align = 1
	}
	stride := roundUp(el.Size, align)
	n, convErr := safecast.Conv[int](length)
	if convErr != nil {
		return TypeLayout{}, &Error{Kind: ErrLengthConversion, Type: elem, Err: convErr}
	}
	return TypeLayout{Size: stride * n, Align: align}, nil
}

func (e *Engine) structLayout(id types.TypeID, st *computeState) (TypeLayout, error) {
	if depth, revisiting := st.visiting[id]; revisiting {
		cycle := append([]types.TypeID(nil), st.stack[depth:]...)
		return TypeLayout{}, &Error{Kind: ErrRecursiveUnsized, Type: id, Cycle: cycle}
	}
	st.visiting[id] = len(st.stack)
	st.stack = append(st.stack, id)
	defer func() {
		delete(st.visiting, id)
		st.stack = st.stack[:len(st.stack)-1]
	}()

	info, ok := e.Types.StructInfo(id)
	if !ok || info == nil || len(info.Fields) == 0 {
		return TypeLayout{Size: 0, Align: 1}, nil
	}
	fields := info.Fields
	offsets := make([]int, len(fields))

	size := 0
	align := 1
	for i := range fields {
		fl, err := e.compute(fields[i].Type, st)
		if err != nil {
			return TypeLayout{}, err
		}
		fAlign := fl.Align
		if fAlign <= 0 {
			fAlign = 1
		}
		size = roundUp(size, fAlign)
		offsets[i] = size
		size += fl.Size
		align = maxInt(align, fAlign)
	}
	size = roundUp(size, align)
	return TypeLayout{
		Size:         size,
		Align:        align,
		FieldOffsets: offsets,
	}, nil
}

func (e *Engine) ptrLayout() TypeLayout {
	ptrSize := e.Target.PtrSize
	ptrAlign := e.Target.PtrAlign
	if ptrSize <= 0 {
		ptrSize = 8
	}
	if ptrAlign <= 0 {
		ptrAlign = ptrSize
	}
	return TypeLayout{Size: ptrSize, Align: ptrAlign}
}

func scalarLayoutBytes(size int) TypeLayout {
	if size <= 0 {
		return TypeLayout{Size: 0, Align: 1}
	}
	return TypeLayout{Size: size, Align: size}
}

func roundUp(n, align int) int {
	if align <= 1 {
		return n
	}
	r := n % align
	if r == 0 {
		return n
	}
	return n + (align - r)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
