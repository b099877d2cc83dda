// Package effects models the classification lattice attached to post-move
// hooks: whether the hook may throw, whether it may allocate, and which
// memory-safety class its body is checked under. Classifications of
// synthesized hooks are computed as the pointwise meet over every callback
// the hook invokes.
package effects

import "fmt"

// SafetyClass orders memory-safety guarantees from strongest to weakest.
type SafetyClass uint8

const (
	// SafetySafe bodies are fully checked.
	SafetySafe SafetyClass = iota
	// SafetyTrusted bodies carry a manually audited guarantee.
	SafetyTrusted
	// SafetyUnchecked bodies may perform arbitrary unsafe operations.
	SafetyUnchecked
)

func (s SafetyClass) String() string {
	switch s {
	case SafetySafe:
		return "safe"
	case SafetyTrusted:
		return "trusted"
	case SafetyUnchecked:
		return "unchecked"
	default:
		return fmt.Sprintf("SafetyClass(%d)", s)
	}
}

// ParseSafety maps the manifest spelling onto a SafetyClass.
func ParseSafety(s string) (SafetyClass, bool) {
	switch s {
	case "safe":
		return SafetySafe, true
	case "trusted":
		return SafetyTrusted, true
	case "unchecked":
		return SafetyUnchecked, true
	default:
		return SafetyUnchecked, false
	}
}

// Classification is one point of the effect lattice.
type Classification struct {
	Nothrow   bool
	AllocFree bool
	Safety    SafetyClass
}

// Top is the identity of Meet: the classification of an empty hook.
func Top() Classification {
	return Classification{Nothrow: true, AllocFree: true, Safety: SafetySafe}
}

// Meet combines two classifications pointwise: logical AND on the boolean
// attributes, weakest class on safety.
func Meet(a, b Classification) Classification {
	out := Classification{
		Nothrow:   a.Nothrow && b.Nothrow,
		AllocFree: a.AllocFree && b.AllocFree,
		Safety:    a.Safety,
	}
	if b.Safety > out.Safety {
		out.Safety = b.Safety
	}
	return out
}

// Satisfies reports whether c meets or exceeds every attribute the demand
// requires. A demand with Nothrow=false places no constraint on throwing,
// and so on pointwise.
func (c Classification) Satisfies(demand Classification) bool {
	if demand.Nothrow && !c.Nothrow {
		return false
	}
	if demand.AllocFree && !c.AllocFree {
		return false
	}
	return c.Safety <= demand.Safety
}

func (c Classification) String() string {
	nothrow := "throws"
	if c.Nothrow {
		nothrow = "nothrow"
	}
	alloc := "allocates"
	if c.AllocFree {
		alloc = "allocfree"
	}
	return fmt.Sprintf("%s %s %s", nothrow, alloc, c.Safety)
}
