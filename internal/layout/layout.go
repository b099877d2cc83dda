// Package layout computes byte-level layout (size, alignment, field
// offsets) for relocatable value types. The relocation arena uses these
// offsets to address members during hook execution; the bitwise-copy step
// of a relocation moves exactly Size bytes.
package layout

import (
	"reloc/internal/types"
)

// TypeLayout is the layout of a type for a specific Target.
type TypeLayout struct {
	Size  int
	Align int

	// Struct-only:
	FieldOffsets []int
}

// Engine computes and caches memory layout for types.
type Engine struct {
	Target Target
	Types  *types.Interner

	cache *cache
}

// New creates a layout Engine for the specified target.
func New(target Target, typesIn *types.Interner) *Engine {
	return &Engine{
		Target: target,
		Types:  typesIn,
		cache:  newCache(),
	}
}

// LayoutOf computes and caches the layout of a type.
func (e *Engine) LayoutOf(id types.TypeID) (TypeLayout, error) {
	if e == nil || e.Types == nil {
		return TypeLayout{Size: 0, Align: 1}, nil
	}
	if e.cache == nil {
		e.cache = newCache()
	}
	if l, ok := e.cache.get(id); ok {
		return l, nil
	}
	st := &computeState{visiting: make(map[types.TypeID]int, 8)}
	l, err := e.compute(id, st)
	if err != nil {
		return TypeLayout{}, err
	}
	e.cache.put(id, &l)
	return l, nil
}

// FieldOffset returns the byte offset of field index inside the struct.
func (e *Engine) FieldOffset(id types.TypeID, field int) (int, error) {
	l, err := e.LayoutOf(id)
	if err != nil {
		return 0, err
	}
	if field < 0 || field >= len(l.FieldOffsets) {
		return 0, &Error{Kind: ErrBadField, Type: id, Value: int64(field)}
	}
	return l.FieldOffsets[field], nil
}
