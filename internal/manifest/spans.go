package manifest

import (
	"bytes"

	"reloc/internal/source"
)

// spanIndex maps decoded array-table entries back to byte spans in the
// manifest text. toml.Unmarshal keeps array tables in document order, so
// the i-th decoded entry corresponds to the i-th header occurrence.
type spanIndex struct {
	typeSpans     []source.Span
	callbackSpans map[int]source.Span // type index -> [type.callback] span
	siteSpans     []source.Span
}

func scanSpans(file *source.File) *spanIndex {
	idx := &spanIndex{callbackSpans: make(map[int]source.Span)}

	var offset uint32
	currentType := -1
	for _, line := range bytes.Split(file.Content, []byte("\n")) {
		trimmed := bytes.TrimSpace(line)
		lineStart := offset + uint32(len(line)-len(bytes.TrimLeft(line, " \t")))
		span := source.Span{
			File:  file.ID,
			Start: lineStart,
			End:   lineStart + uint32(len(trimmed)),
		}
		name, array := headerName(trimmed)
		switch {
		case array && name == "type":
			idx.typeSpans = append(idx.typeSpans, span)
			currentType = len(idx.typeSpans) - 1
		case !array && name == "type.callback":
			if currentType >= 0 {
				idx.callbackSpans[currentType] = span
			}
		case array && name == "site":
			idx.siteSpans = append(idx.siteSpans, span)
		}
		offset += uint32(len(line)) + 1
	}
	return idx
}

// headerName parses a table header line, tolerating the whitespace TOML
// allows inside the brackets and around dots (`[[ type ]]`,
// `[ type . callback ]`). Empty name means the line is not a header.
func headerName(trimmed []byte) (name string, array bool) {
	inner := trimmed
	switch {
	case bytes.HasPrefix(inner, []byte("[[")) && bytes.HasSuffix(inner, []byte("]]")) && len(inner) >= 4:
		inner = inner[2 : len(inner)-2]
		array = true
	case bytes.HasPrefix(inner, []byte("[")) && bytes.HasSuffix(inner, []byte("]")) && len(inner) >= 2:
		inner = inner[1 : len(inner)-1]
	default:
		return "", false
	}
	parts := bytes.Split(inner, []byte("."))
	for i, p := range parts {
		p = bytes.TrimSpace(p)
		if len(p) == 0 {
			return "", false
		}
		parts[i] = p
	}
	return string(bytes.Join(parts, []byte("."))), array
}

func (s *spanIndex) typeSpan(i int, fallback source.Span) source.Span {
	if s == nil || i < 0 || i >= len(s.typeSpans) {
		return fallback
	}
	return s.typeSpans[i]
}

func (s *spanIndex) callbackSpan(i int, fallback source.Span) source.Span {
	if s == nil {
		return fallback
	}
	if sp, ok := s.callbackSpans[i]; ok {
		return sp
	}
	return fallback
}

func (s *spanIndex) siteSpan(i int, fallback source.Span) source.Span {
	if s == nil || i < 0 || i >= len(s.siteSpans) {
		return fallback
	}
	return s.siteSpans[i]
}

// spanForLine points at the 1-based line, for decode errors.
func spanForLine(file *source.File, line int) source.Span {
	if line <= 0 {
		return source.Span{File: file.ID}
	}
	var start uint32
	if line > 1 {
		if line-2 >= len(file.LineIdx) {
			return source.Span{File: file.ID}
		}
		start = file.LineIdx[line-2] + 1
	}
	end := uint32(len(file.Content))
	if line-1 < len(file.LineIdx) {
		end = file.LineIdx[line-1]
	}
	return source.Span{File: file.ID, Start: start, End: end}
}
