package types

import (
	"fmt"
	"slices"

	"fortio.org/safecast"

	"reloc/internal/effects"
	"reloc/internal/source"
)

// StructField describes a single field inside a nominal struct type.
type StructField struct {
	Name source.StringID
	Type TypeID
	Decl source.Span
}

// CallbackInfo is a post-move callback declaration attached to a struct.
// At most one per struct; Quals lists the qualified receiver forms the
// callback body is defined for.
type CallbackInfo struct {
	Quals    QualSet
	Disabled bool
	Effects  effects.Classification
	Decl     source.Span
}

// StructInfo stores metadata for a struct type.
type StructInfo struct {
	Name     source.StringID
	Decl     source.Span
	Fields   []StructField
	Callback *CallbackInfo
}

// RegisterStruct allocates a nominal struct type slot and returns its TypeID.
func (in *Interner) RegisterStruct(name source.StringID, decl source.Span) TypeID {
	slot := in.appendStructInfo(StructInfo{Name: name, Decl: decl})
	return in.internRaw(Type{Kind: KindStruct, Payload: slot})
}

// SetStructFields stores the resolved field descriptors for the struct type.
func (in *Interner) SetStructFields(typeID TypeID, fields []StructField) {
	info := in.structInfo(typeID)
	if info == nil {
		return
	}
	info.Fields = cloneStructFields(fields)
}

// SetStructCallback attaches the post-move callback declaration.
func (in *Interner) SetStructCallback(typeID TypeID, cb CallbackInfo) {
	info := in.structInfo(typeID)
	if info == nil {
		return
	}
	c := cb
	info.Callback = &c
}

// StructInfo returns metadata for the provided struct TypeID.
func (in *Interner) StructInfo(typeID TypeID) (*StructInfo, bool) {
	info := in.structInfo(typeID)
	if info == nil {
		return nil, false
	}
	return info, true
}

// StructFields returns a copy of struct fields for the TypeID.
func (in *Interner) StructFields(typeID TypeID) []StructField {
	info := in.structInfo(typeID)
	if info == nil || len(info.Fields) == 0 {
		return nil
	}
	return cloneStructFields(info.Fields)
}

// StructCallback returns the callback declaration, if any.
func (in *Interner) StructCallback(typeID TypeID) (*CallbackInfo, bool) {
	info := in.structInfo(typeID)
	if info == nil || info.Callback == nil {
		return nil, false
	}
	return info.Callback, true
}

// FindStruct returns the struct TypeID registered under the given name.
func (in *Interner) FindStruct(name source.StringID) (TypeID, bool) {
	if in == nil || name == source.NoStringID {
		return NoTypeID, false
	}
	for id := TypeID(1); int(id) < len(in.types); id++ {
		if in.types[id].Kind != KindStruct {
			continue
		}
		info := in.structInfo(id)
		if info != nil && info.Name == name {
			return id, true
		}
	}
	return NoTypeID, false
}

// Structs returns every registered struct TypeID in registration order.
func (in *Interner) Structs() []TypeID {
	if in == nil {
		return nil
	}
	out := make([]TypeID, 0, len(in.structs))
	for id := TypeID(1); int(id) < len(in.types); id++ {
		if in.types[id].Kind == KindStruct {
			out = append(out, id)
		}
	}
	return out
}

func (in *Interner) structInfo(typeID TypeID) *StructInfo {
	if typeID == NoTypeID {
		return nil
	}
	tt, ok := in.Lookup(typeID)
	if !ok || tt.Kind != KindStruct {
		return nil
	}
	if tt.Payload == 0 || int(tt.Payload) >= len(in.structs) {
		return nil
	}
	return &in.structs[tt.Payload]
}

func (in *Interner) appendStructInfo(info StructInfo) uint32 {
	if in.structs == nil {
		in.structs = append(in.structs, StructInfo{})
	}
	in.structs = append(in.structs, StructInfo{
		Name:     info.Name,
		Decl:     info.Decl,
		Fields:   cloneStructFields(info.Fields),
		Callback: info.Callback,
	})
	slot, err := safecast.Conv[uint32](len(in.structs) - 1)
	if err != nil {
		panic(fmt.Errorf("struct info overflow: %w", err))
	}
	return slot
}

func cloneStructFields(fields []StructField) []StructField {
	if len(fields) == 0 {
		return nil
	}
	return slices.Clone(fields)
}
