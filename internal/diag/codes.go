package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Manifest loading (1xxx)
	ManifestInfo           Code = 1000
	ManifestDecode         Code = 1001
	ManifestDuplicateType  Code = 1002
	ManifestBadTypeExpr    Code = 1003
	ManifestUnknownType    Code = 1004
	ManifestBadQualifier   Code = 1005
	ManifestBadSafety      Code = 1006
	ManifestEmptyGraph     Code = 1007
	ManifestDuplicateField Code = 1008
	ManifestRecursiveType  Code = 1009

	// Hook synthesis and relocation checking (4xxx)
	RelocInfo                 Code = 4000
	RelocThrowingCallback     Code = 4006
	RelocMissingQualifiedHook Code = 4007
	RelocDisabledHook         Code = 4008
	RelocEffectMismatch       Code = 4009
	RelocIndirectCallbackOnly Code = 4010
)

func (c Code) String() string {
	switch {
	case c == UnknownCode:
		return "UNK0000"
	case c >= 1000 && c < 2000:
		return fmt.Sprintf("MAN%04d", uint16(c))
	case c >= 4000 && c < 5000:
		return fmt.Sprintf("RLC%04d", uint16(c))
	default:
		return fmt.Sprintf("DIA%04d", uint16(c))
	}
}

// Name returns the short human label used in pretty output.
func (c Code) Name() string {
	switch c {
	case ManifestDecode:
		return "manifest-decode"
	case ManifestDuplicateType:
		return "duplicate-type"
	case ManifestBadTypeExpr:
		return "bad-type-expr"
	case ManifestUnknownType:
		return "unknown-type"
	case ManifestBadQualifier:
		return "bad-qualifier"
	case ManifestBadSafety:
		return "bad-safety"
	case ManifestEmptyGraph:
		return "empty-graph"
	case ManifestDuplicateField:
		return "duplicate-field"
	case ManifestRecursiveType:
		return "recursive-type"
	case RelocThrowingCallback:
		return "throwing-callback"
	case RelocMissingQualifiedHook:
		return "missing-qualified-hook"
	case RelocDisabledHook:
		return "disabled-hook"
	case RelocEffectMismatch:
		return "effect-mismatch"
	case RelocIndirectCallbackOnly:
		return "indirect-callback-only"
	default:
		return c.String()
	}
}
