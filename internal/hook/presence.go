package hook

import (
	"reloc/internal/types"
)

type presenceState uint8

const (
	presenceUnknown presenceState = iota
	presenceComputing
	presenceFalse
	presenceTrue
)

// HasElaborateMove reports whether relocating a value of the given type
// requires any hook invocation: the type declares a post-move callback
// (disabled declarations count, so relocation can be rejected rather than
// silently elided), or some member reachable without indirection does.
//
// Pointers and references are indirection: relocating the pointer moves
// the address value, not the pointee, so traversal stops there. That also
// makes the walk terminate on cyclic graphs, since value types can only
// contain themselves through indirection.
//
// The answer is memoized per Analyzer, so it is referentially stable for
// the duration of a compilation.
func (a *Analyzer) HasElaborateMove(id types.TypeID) bool {
	switch a.presence[id] {
	case presenceTrue:
		return true
	case presenceFalse:
		return false
	case presenceComputing:
		// Direct value cycle: no finite layout exists, the layout engine
		// rejects the type separately. Answer false to terminate.
		return false
	}
	a.presence[id] = presenceComputing
	res := a.computePresence(id)
	if res {
		a.presence[id] = presenceTrue
	} else {
		a.presence[id] = presenceFalse
	}
	return res
}

func (a *Analyzer) computePresence(id types.TypeID) bool {
	tt, ok := a.Types.Lookup(id)
	if !ok {
		return false
	}
	switch tt.Kind {
	case types.KindArray:
		return a.HasElaborateMove(tt.Elem)
	case types.KindStruct:
		if _, declared := a.Types.StructCallback(id); declared {
			return true
		}
		for _, f := range a.Types.StructFields(id) {
			if a.HasElaborateMove(f.Type) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
