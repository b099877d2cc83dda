package relocate

import (
	"fmt"

	"reloc/internal/diag"
	"reloc/internal/effects"
	"reloc/internal/hook"
	"reloc/internal/source"
	"reloc/internal/types"
)

// Site is one point where the compiler relocates a value by bitwise copy:
// collapsing a temporary, returning a local by value, or any optimization
// that elides a copy-construct/destroy pair.
type Site struct {
	Span source.Span
	Type types.TypeID
	Qual types.Qual
	// Demand is the effect classification the calling context requires of
	// the hook. The zero Demand (throws/allocates/unchecked) demands
	// nothing.
	Demand effects.Classification
	// Context labels the site in diagnostics, e.g. "return-value collapse".
	Context string
}

// NoDemand is the demand that constrains nothing: the site tolerates a
// throwing, allocating, unchecked hook.
func NoDemand() effects.Classification {
	return effects.Classification{Safety: effects.SafetyUnchecked}
}

// Emission is the checked decision for a site.
type Emission struct {
	Site Site
	// Elided means the presence trait is false for the type: the compiler
	// omits the hook call entirely.
	Elided bool
	// Hook is the plan to invoke after the bitwise copy, nil when elided.
	Hook *hook.Plan
}

// PlanRelocation validates a relocation site and decides what the
// relocation must execute. Failures are reported as diagnostics; the
// second result is false when the site must not compile. There is no
// runtime error path: once a site checks out, hook invocation cannot fail.
func PlanRelocation(an *hook.Analyzer, site Site, r diag.Reporter) (Emission, bool) {
	typesIn := an.Types
	label := types.Label(typesIn, site.Type)

	if !an.HasElaborateMove(site.Type) {
		return Emission{Site: site, Elided: true}, true
	}

	plan, genErr := an.HookFor(site.Type, site.Qual)
	if genErr != nil {
		msg := fmt.Sprintf("cannot relocate %s %s: no post-move hook usable for %s instances",
			site.Qual, label, site.Qual)
		notes := []diag.Note{{
			Span: genErr.Decl,
			Msg:  fmt.Sprintf("callback on %s is not declared for %s", types.Label(typesIn, genErr.Type), site.Qual),
		}}
		r.Report(diag.RelocMissingQualifiedHook, diag.SevError, site.Span, msg, notes)
		return Emission{Site: site}, false
	}

	if plan.DisabledBy != types.NoTypeID {
		msg := fmt.Sprintf("cannot relocate %s: post-move hook is disabled", label)
		var notes []diag.Note
		if cb, ok := typesIn.StructCallback(plan.DisabledBy); ok {
			notes = append(notes, diag.Note{
				Span: cb.Decl,
				Msg:  fmt.Sprintf("disabled on %s", types.Label(typesIn, plan.DisabledBy)),
			})
		}
		r.Report(diag.RelocDisabledHook, diag.SevError, site.Span, msg, notes)
		return Emission{Site: site}, false
	}

	if !plan.Effects.Satisfies(site.Demand) {
		msg := fmt.Sprintf("relocating %s requires (%s) but its hook is (%s)",
			label, site.Demand, plan.Effects)
		r.Report(diag.RelocEffectMismatch, diag.SevError, site.Span, msg, nil)
		return Emission{Site: site}, false
	}

	return Emission{Site: site, Hook: plan}, true
}
