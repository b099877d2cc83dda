package types

import "fmt"

// Qual is the qualification a value instance is relocated under.
type Qual uint8

const (
	// QualMut is the unqualified (mutable) form.
	QualMut Qual = iota
	// QualReadOnly instances may be read through shared views but not written.
	QualReadOnly
	// QualImmutable instances are never written after construction.
	QualImmutable
)

func (q Qual) String() string {
	switch q {
	case QualMut:
		return "mut"
	case QualReadOnly:
		return "readonly"
	case QualImmutable:
		return "immutable"
	default:
		return fmt.Sprintf("Qual(%d)", q)
	}
}

// ParseQual maps the manifest spelling onto a Qual.
func ParseQual(s string) (Qual, bool) {
	switch s {
	case "mut":
		return QualMut, true
	case "readonly":
		return QualReadOnly, true
	case "immutable":
		return QualImmutable, true
	default:
		return QualMut, false
	}
}

// Quals returns every qualifier, in declaration order.
func Quals() []Qual {
	return []Qual{QualMut, QualReadOnly, QualImmutable}
}

// QualSet is a bitmask of qualifiers a callback declaration covers.
type QualSet uint8

// QualSetOf builds a set from individual qualifiers.
func QualSetOf(quals ...Qual) QualSet {
	var s QualSet
	for _, q := range quals {
		s |= 1 << q
	}
	return s
}

func (s QualSet) Has(q Qual) bool {
	return s&(1<<q) != 0
}

func (s QualSet) Empty() bool {
	return s == 0
}
