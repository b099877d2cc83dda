package hook

import (
	"fmt"
	"strings"

	"reloc/internal/effects"
	"reloc/internal/types"
)

// StepKind enumerates the actions a synthesized hook performs, in order.
type StepKind uint8

const (
	// StepField runs the field type's hook on (new.field, old.field).
	StepField StepKind = iota
	// StepArray runs the element hook once per element, ascending index.
	StepArray
	// StepCallback invokes the type's own post-move callback as
	// new.callback(old).
	StepCallback
)

func (k StepKind) String() string {
	switch k {
	case StepField:
		return "field"
	case StepArray:
		return "array"
	case StepCallback:
		return "callback"
	default:
		return fmt.Sprintf("StepKind(%d)", k)
	}
}

// Step is one action inside a hook plan.
type Step struct {
	Kind StepKind

	// StepField:
	Field     int // index into the struct's declared fields
	FieldType types.TypeID

	// StepArray:
	Count uint32
	Elem  types.TypeID

	// StepField and StepArray:
	Child *Plan
}

// Plan is the synthesized hook for one (type, qualifier) pair. It is a
// derived artifact: deterministically regenerated from the type's member
// list, never stored beyond an Analyzer's lifetime.
type Plan struct {
	Type types.TypeID
	Qual types.Qual
	Name string

	// Steps is empty when the presence trait is false; call sites elide
	// the hook invocation entirely in that case.
	Steps []Step

	// HasCallback reports whether the final step invokes the type's own
	// callback.
	HasCallback bool

	// DisabledBy names the reachable type whose callback is disabled,
	// poisoning every relocation of this type. NoTypeID when clean.
	DisabledBy types.TypeID

	// Effects is the meet over every callback the plan invokes.
	Effects effects.Classification
}

// Empty reports whether the hook has nothing to do.
func (p *Plan) Empty() bool {
	return p == nil || len(p.Steps) == 0
}

// Callbacks counts the callback invocations the plan performs, children
// included (array steps count element callbacks once per element).
func (p *Plan) Callbacks() int {
	if p == nil {
		return 0
	}
	n := 0
	for i := range p.Steps {
		st := &p.Steps[i]
		switch st.Kind {
		case StepCallback:
			n++
		case StepField:
			n += st.Child.Callbacks()
		case StepArray:
			n += int(st.Count) * st.Child.Callbacks()
		}
	}
	return n
}

// String renders the plan as an indented step listing for CLI output.
func (p *Plan) String() string {
	if p == nil {
		return "<nil>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)", p.Name, p.Effects)
	writeSteps(&b, p.Steps, 1)
	return b.String()
}

// StepList renders only the step tree, one step per line, without the
// plan header.
func (p *Plan) StepList() string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	writeSteps(&b, p.Steps, 0)
	return strings.TrimPrefix(b.String(), "\n")
}

func writeSteps(b *strings.Builder, steps []Step, depth int) {
	indent := strings.Repeat("  ", depth)
	for i := range steps {
		st := &steps[i]
		switch st.Kind {
		case StepField:
			fmt.Fprintf(b, "\n%sfield #%d -> %s", indent, st.Field, st.Child.Name)
			writeSteps(b, st.Child.Steps, depth+1)
		case StepArray:
			fmt.Fprintf(b, "\n%seach of %d -> %s", indent, st.Count, st.Child.Name)
			writeSteps(b, st.Child.Steps, depth+1)
		case StepCallback:
			fmt.Fprintf(b, "\n%sown callback", indent)
		}
	}
}

func hookName(typesIn *types.Interner, id types.TypeID, q types.Qual) string {
	label := types.Label(typesIn, id)
	switch q {
	case types.QualReadOnly:
		return "__xpostmove$ro$" + label
	case types.QualImmutable:
		return "__xpostmove$imm$" + label
	default:
		return "__xpostmove$" + label
	}
}
