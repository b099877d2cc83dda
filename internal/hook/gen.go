package hook

import (
	"fmt"

	"reloc/internal/source"
	"reloc/internal/types"
)

// Analyzer synthesizes hook plans and memoizes derived per-type facts.
// It is not safe for concurrent use; the driver gives each worker its own.
type Analyzer struct {
	Types *types.Interner

	presence map[types.TypeID]presenceState
	plans    map[planKey]*Plan
	building map[planKey]bool
}

type planKey struct {
	id types.TypeID
	q  types.Qual
}

func NewAnalyzer(typesIn *types.Interner) *Analyzer {
	return &Analyzer{
		Types:    typesIn,
		presence: make(map[types.TypeID]presenceState, 32),
		plans:    make(map[planKey]*Plan, 32),
		building: make(map[planKey]bool, 8),
	}
}

// GenError is a fatal hook-synthesis failure: the requested qualified
// variant cannot exist.
type GenError struct {
	// Type is the type whose callback does not cover the qualifier.
	Type types.TypeID
	// Root is the type the hook was requested for.
	Root types.TypeID
	Qual types.Qual
	// Decl points at the offending callback declaration.
	Decl source.Span
}

func (e *GenError) Error() string {
	return fmt.Sprintf("type#%d declares a post-move callback unusable for %s relocation (required by type#%d)",
		e.Type, e.Qual, e.Root)
}

// HookFor synthesizes the hook plan for the (type, qualifier) pair.
//
// Field hooks come first, in declaration order, the type's own callback
// last. Children before parents is a hard invariant: a parent callback may
// recompute state from a child's already-stable address.
//
// When some reachable callback is not declared for the qualifier, no
// usable hook exists and HookFor fails; relocating such an instance is a
// compile-time error at the call site, never a silent fallback.
func (a *Analyzer) HookFor(id types.TypeID, q types.Qual) (*Plan, *GenError) {
	return a.generate(id, q, id)
}

func (a *Analyzer) generate(id types.TypeID, q types.Qual, root types.TypeID) (*Plan, *GenError) {
	key := planKey{id: id, q: q}
	if p, ok := a.plans[key]; ok {
		return p, nil
	}
	if a.building[key] {
		// Direct value cycle: the layout engine rejects the type
		// separately. Break it with an empty plan to terminate.
		p := &Plan{Type: id, Qual: q, Name: hookName(a.Types, id, q)}
		p.Effects = Infer(p, a.Types)
		return p, nil
	}
	a.building[key] = true
	p, genErr := a.build(id, q, root)
	delete(a.building, key)
	if genErr != nil {
		return nil, genErr
	}
	a.plans[key] = p
	return p, nil
}

func (a *Analyzer) build(id types.TypeID, q types.Qual, root types.TypeID) (*Plan, *GenError) {
	p := &Plan{
		Type: id,
		Qual: q,
		Name: hookName(a.Types, id, q),
	}
	if !a.HasElaborateMove(id) {
		p.Effects = Infer(p, a.Types)
		return p, nil
	}

	tt, ok := a.Types.Lookup(id)
	if !ok {
		p.Effects = Infer(p, a.Types)
		return p, nil
	}

	switch tt.Kind {
	case types.KindArray:
		child, genErr := a.generate(tt.Elem, q, root)
		if genErr != nil {
			return nil, genErr
		}
		p.Steps = append(p.Steps, Step{
			Kind:  StepArray,
			Count: tt.Count,
			Elem:  tt.Elem,
			Child: child,
		})
		p.DisabledBy = child.DisabledBy

	case types.KindStruct:
		fields := a.Types.StructFields(id)
		for i, f := range fields {
			if !a.HasElaborateMove(f.Type) {
				continue
			}
			child, genErr := a.generate(f.Type, q, root)
			if genErr != nil {
				return nil, genErr
			}
			p.Steps = append(p.Steps, Step{
				Kind:      StepField,
				Field:     i,
				FieldType: f.Type,
				Child:     child,
			})
			if p.DisabledBy == types.NoTypeID {
				p.DisabledBy = child.DisabledBy
			}
		}
		if cb, declared := a.Types.StructCallback(id); declared {
			if !cb.Quals.Has(q) {
				return nil, &GenError{Type: id, Root: root, Qual: q, Decl: cb.Decl}
			}
			p.Steps = append(p.Steps, Step{Kind: StepCallback})
			p.HasCallback = true
			if cb.Disabled && p.DisabledBy == types.NoTypeID {
				p.DisabledBy = id
			}
		}
	}

	p.Effects = Infer(p, a.Types)
	return p, nil
}
