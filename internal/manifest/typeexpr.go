package manifest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"reloc/internal/types"
)

var errUnknownType = errors.New("unknown type")

// parseTypeExpr resolves a field type expression against the interner.
//
// Grammar, whitespace separated:
//
//	expr  := "ptr" expr | "ref" ["mut"] expr | "array" N expr | prim | Name
//	prim  := unit | bool | str | i8..i64 | u8..u64 | int | uint | f32 | f64
//
// Struct names resolve against registered declarations; referencing an
// undeclared name is an error, never an implicit forward type.
func parseTypeExpr(typesIn *types.Interner, expr string) (types.TypeID, error) {
	toks := strings.Fields(expr)
	if len(toks) == 0 {
		return types.NoTypeID, fmt.Errorf("empty type expression")
	}
	id, rest, err := parseTokens(typesIn, toks)
	if err != nil {
		return types.NoTypeID, err
	}
	if len(rest) != 0 {
		return types.NoTypeID, fmt.Errorf("trailing tokens %q in type expression %q", strings.Join(rest, " "), expr)
	}
	return id, nil
}

func parseTokens(typesIn *types.Interner, toks []string) (types.TypeID, []string, error) {
	if len(toks) == 0 {
		return types.NoTypeID, nil, fmt.Errorf("incomplete type expression")
	}
	head, rest := toks[0], toks[1:]
	switch head {
	case "ptr":
		elem, rest, err := parseTokens(typesIn, rest)
		if err != nil {
			return types.NoTypeID, nil, err
		}
		return typesIn.Intern(types.MakePointer(elem)), rest, nil

	case "ref":
		mutable := false
		if len(rest) > 0 && rest[0] == "mut" {
			mutable = true
			rest = rest[1:]
		}
		elem, rest, err := parseTokens(typesIn, rest)
		if err != nil {
			return types.NoTypeID, nil, err
		}
		return typesIn.Intern(types.MakeReference(elem, mutable)), rest, nil

	case "array":
		if len(rest) == 0 {
			return types.NoTypeID, nil, fmt.Errorf("array needs a length")
		}
		n, err := strconv.ParseUint(rest[0], 10, 32)
		if err != nil {
			return types.NoTypeID, nil, fmt.Errorf("bad array length %q: %w", rest[0], err)
		}
		elem, rest, err := parseTokens(typesIn, rest[1:])
		if err != nil {
			return types.NoTypeID, nil, err
		}
		return typesIn.Intern(types.MakeArray(elem, uint32(n))), rest, nil
	}

	if id, ok := parsePrimitive(typesIn, head); ok {
		return id, rest, nil
	}

	nameID := typesIn.Strings.Intern(norm.NFC.String(head))
	if id, ok := typesIn.FindStruct(nameID); ok {
		return id, rest, nil
	}
	return types.NoTypeID, nil, fmt.Errorf("%w %q", errUnknownType, head)
}

func parsePrimitive(typesIn *types.Interner, tok string) (types.TypeID, bool) {
	b := typesIn.Builtins()
	switch tok {
	case "unit":
		return b.Unit, true
	case "bool":
		return b.Bool, true
	case "str":
		return b.String, true
	case "int":
		return b.Int, true
	case "uint":
		return b.Uint, true
	case "float":
		return b.Float, true
	}
	var mk func(types.Width) types.Type
	switch tok[0] {
	case 'i':
		mk = types.MakeInt
	case 'u':
		mk = types.MakeUint
	case 'f':
		mk = types.MakeFloat
	default:
		return types.NoTypeID, false
	}
	var w types.Width
	switch tok[1:] {
	case "8":
		w = types.Width8
	case "16":
		w = types.Width16
	case "32":
		w = types.Width32
	case "64":
		w = types.Width64
	default:
		return types.NoTypeID, false
	}
	if mk == nil || (tok[0] == 'f' && w < types.Width32) {
		return types.NoTypeID, false
	}
	return typesIn.Intern(mk(w)), true
}
