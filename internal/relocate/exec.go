package relocate

import (
	"fmt"

	"reloc/internal/hook"
	"reloc/internal/types"
)

// Relocate moves the value of type t from old to new: bitwise copy first,
// then the synthesized hook exactly once, then the old storage is retired
// without running any destruction logic. This is the sequence every
// compiler-emitted relocation and every manual relocate utility must
// follow.
func Relocate(a *Arena, an *hook.Analyzer, reg *HookRegistry, t types.TypeID, q types.Qual, old, new Addr) error {
	plan, genErr := an.HookFor(t, q)
	if genErr != nil {
		return fmt.Errorf("relocate %s: %w", types.Label(an.Types, t), genErr)
	}
	if plan.DisabledBy != types.NoTypeID {
		return fmt.Errorf("relocate %s: post-move hook disabled by %s",
			types.Label(an.Types, t), types.Label(an.Types, plan.DisabledBy))
	}
	l, err := a.Engine.LayoutOf(t)
	if err != nil {
		return fmt.Errorf("relocate %s: %w", types.Label(an.Types, t), err)
	}

	a.copyRaw(new, old, l.Size)
	if !plan.Empty() {
		runPlan(plan, NewRef(a, t, new), NewRef(a, t, old), reg)
	}
	a.poison(old, l.Size)
	return nil
}

// Swap exchanges two values of type t through a fresh temporary. Each of
// the three moves is a full relocation, hook included, mirroring the
// generic swap utility the mechanism obligates.
func Swap(a *Arena, an *hook.Analyzer, reg *HookRegistry, t types.TypeID, q types.Qual, x, y Addr) error {
	tmp, err := a.Alloc(t)
	if err != nil {
		return fmt.Errorf("swap: %w", err)
	}
	if err := Relocate(a, an, reg, t, q, x, tmp); err != nil {
		return err
	}
	if err := Relocate(a, an, reg, t, q, y, x); err != nil {
		return err
	}
	return Relocate(a, an, reg, t, q, tmp, y)
}

// runPlan executes the hook plan: children in declaration order, the
// type's own callback last.
func runPlan(p *hook.Plan, newRef, oldRef Ref, reg *HookRegistry) {
	for i := range p.Steps {
		st := &p.Steps[i]
		switch st.Kind {
		case hook.StepField:
			runPlan(st.Child, newRef.Field(st.Field), oldRef.Field(st.Field), reg)
		case hook.StepArray:
			for j := 0; j < int(st.Count); j++ {
				runPlan(st.Child, newRef.Index(j), oldRef.Index(j), reg)
			}
		case hook.StepCallback:
			reg.invoke(p.Type, newRef, oldRef)
		}
	}
}
