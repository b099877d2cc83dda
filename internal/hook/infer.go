package hook

import (
	"reloc/internal/effects"
	"reloc/internal/types"
)

// Infer computes the effect classification of a plan: the pointwise meet
// over the declared classifications of every callback the plan invokes,
// children first. An empty plan sits at the top of the lattice.
//
// A relocation site demanding a stricter class than the inferred one is
// rejected at the call site (see internal/relocate), so the weakest
// reachable callback bounds where a type may be relocated from.
func Infer(p *Plan, typesIn *types.Interner) effects.Classification {
	cls := effects.Top()
	if p == nil {
		return cls
	}
	for i := range p.Steps {
		st := &p.Steps[i]
		switch st.Kind {
		case StepField, StepArray:
			cls = effects.Meet(cls, Infer(st.Child, typesIn))
		case StepCallback:
			if cb, ok := typesIn.StructCallback(p.Type); ok {
				cls = effects.Meet(cls, cb.Effects)
			}
		}
	}
	return cls
}
