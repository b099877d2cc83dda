package types

import (
	"fmt"

	"reloc/internal/source"
)

// Label returns a user-friendly label for a TypeID.
func Label(typesIn *Interner, id TypeID) string {
	return labelDepth(typesIn, id, 0)
}

func labelDepth(typesIn *Interner, id TypeID, depth int) string {
	if id == NoTypeID {
		return "?"
	}
	if depth > 6 {
		return "..."
	}
	if typesIn == nil {
		return "?"
	}
	tt, ok := typesIn.Lookup(id)
	if !ok {
		return "?"
	}
	switch tt.Kind {
	case KindUnit:
		return "()"
	case KindBool:
		return "bool"
	case KindString:
		return "str"
	case KindInt:
		return formatIntType(tt.Width, true)
	case KindUint:
		return formatIntType(tt.Width, false)
	case KindFloat:
		return formatFloatType(tt.Width)
	case KindPointer:
		return "ptr " + labelDepth(typesIn, tt.Elem, depth+1)
	case KindReference:
		if tt.Mutable {
			return "ref mut " + labelDepth(typesIn, tt.Elem, depth+1)
		}
		return "ref " + labelDepth(typesIn, tt.Elem, depth+1)
	case KindArray:
		return fmt.Sprintf("array %d %s", tt.Count, labelDepth(typesIn, tt.Elem, depth+1))
	case KindStruct:
		info, ok := typesIn.StructInfo(id)
		if !ok || info == nil {
			return "?"
		}
		return lookupNameFallback(typesIn.Strings, info.Name)
	default:
		return "?"
	}
}

func lookupNameFallback(stringsIn *source.Interner, id source.StringID) string {
	if stringsIn == nil {
		return "?"
	}
	name, ok := stringsIn.Lookup(id)
	if !ok || name == "" {
		return "?"
	}
	return name
}

func formatIntType(width Width, signed bool) string {
	prefix := "i"
	if !signed {
		prefix = "u"
	}
	if width == WidthAny {
		if signed {
			return "int"
		}
		return "uint"
	}
	return fmt.Sprintf("%s%d", prefix, width)
}

func formatFloatType(width Width) string {
	if width == WidthAny {
		return "float"
	}
	return fmt.Sprintf("f%d", width)
}
