package driver

import (
	"reloc/internal/hook"
	"reloc/internal/manifest"
	"reloc/internal/types"
)

// QualPlan is the synthesis outcome for one qualified variant.
type QualPlan struct {
	Qual    string `json:"qual"`
	Name    string `json:"name,omitempty"`
	Steps   string `json:"steps,omitempty"`
	Effects string `json:"effects,omitempty"`
	// Error holds the gating failure when no usable hook exists for this
	// qualifier.
	Error string `json:"error,omitempty"`
	// Disabled names the type whose disabled callback poisons the plan.
	Disabled string `json:"disabled_by,omitempty"`
}

// HookSummary describes the derived move artifacts of one declared type.
type HookSummary struct {
	Type types.TypeID `json:"-"`
	Name string       `json:"type"`
	// HasElaborateMove is the externally observable presence trait.
	HasElaborateMove bool       `json:"has_elaborate_move"`
	Callbacks        int        `json:"callbacks"`
	Plans            []QualPlan `json:"plans,omitempty"`
}

// Summarize derives hook reports for every declared type, all qualifiers.
func Summarize(an *hook.Analyzer, g *manifest.Graph) []HookSummary {
	out := make([]HookSummary, 0, len(g.Declared))
	for _, id := range g.Declared {
		s := HookSummary{
			Type:             id,
			Name:             types.Label(g.Types, id),
			HasElaborateMove: an.HasElaborateMove(id),
		}
		if !s.HasElaborateMove {
			out = append(out, s)
			continue
		}
		for _, q := range types.Quals() {
			plan, genErr := an.HookFor(id, q)
			qp := QualPlan{Qual: q.String()}
			if genErr != nil {
				qp.Error = genErr.Error()
				s.Plans = append(s.Plans, qp)
				continue
			}
			qp.Name = plan.Name
			qp.Steps = plan.StepList()
			qp.Effects = plan.Effects.String()
			if plan.DisabledBy != types.NoTypeID {
				qp.Disabled = types.Label(g.Types, plan.DisabledBy)
			}
			if q == types.QualMut {
				s.Callbacks = plan.Callbacks()
			}
			s.Plans = append(s.Plans, qp)
		}
		out = append(out, s)
	}
	return out
}
