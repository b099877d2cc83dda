package manifest

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/unicode/norm"

	"reloc/internal/diag"
	"reloc/internal/effects"
	"reloc/internal/relocate"
	"reloc/internal/source"
	"reloc/internal/types"
)

// Load decodes and resolves the manifest file. The boolean result is false
// when errors were reported; a partially resolved Graph may still be
// returned for tooling that wants to inspect what did load.
func Load(fs *source.FileSet, fileID source.FileID, r diag.Reporter) (*Graph, bool) {
	file := fs.Get(fileID)
	fileSpan := source.Span{File: fileID, Start: 0, End: 0}

	var doc graphDoc
	if err := toml.Unmarshal(file.Content, &doc); err != nil {
		span := fileSpan
		var perr toml.ParseError
		if errors.As(err, &perr) {
			span = spanForLine(file, perr.Position.Line)
		}
		r.Report(diag.ManifestDecode, diag.SevError, span, fmt.Sprintf("manifest decode failed: %v", err), nil)
		return nil, false
	}

	if len(doc.Types) == 0 {
		r.Report(diag.ManifestEmptyGraph, diag.SevWarning, fileSpan, "manifest declares no value types", nil)
	}

	sc := scanSpans(file)
	ld := &loader{
		reporter: r,
		types:    types.NewInterner(source.NewInterner()),
		spans:    sc,
		fileSpan: fileSpan,
	}
	g := ld.resolve(&doc)
	return g, !ld.failed
}

type loader struct {
	reporter diag.Reporter
	types    *types.Interner
	spans    *spanIndex
	fileSpan source.Span
	failed   bool
}

func (ld *loader) errorf(code diag.Code, span source.Span, format string, args ...any) {
	ld.failed = true
	ld.reporter.Report(code, diag.SevError, span, fmt.Sprintf(format, args...), nil)
}

func (ld *loader) resolve(doc *graphDoc) *Graph {
	g := &Graph{
		Name:  doc.Graph.Name,
		Types: ld.types,
	}

	// First pass: register every struct so field expressions can refer to
	// types declared later in the document.
	ids := make([]types.TypeID, len(doc.Types))
	for i := range doc.Types {
		decl := &doc.Types[i]
		name := norm.NFC.String(decl.Name)
		span := ld.spans.typeSpan(i, ld.fileSpan)
		nameID := ld.types.Strings.Intern(name)
		if _, dup := ld.types.FindStruct(nameID); dup {
			ld.errorf(diag.ManifestDuplicateType, span, "duplicate type %q", name)
			ids[i] = types.NoTypeID
			continue
		}
		ids[i] = ld.types.RegisterStruct(nameID, span)
		g.Declared = append(g.Declared, ids[i])
	}

	// Second pass: fields and callback declarations.
	for i := range doc.Types {
		if ids[i] == types.NoTypeID {
			continue
		}
		ld.resolveType(&doc.Types[i], ids[i], i)
	}

	for i := range doc.Sites {
		if site, ok := ld.resolveSite(&doc.Sites[i], i); ok {
			g.Sites = append(g.Sites, site)
		}
	}
	return g
}

func (ld *loader) resolveType(decl *typeDecl, id types.TypeID, idx int) {
	span := ld.spans.typeSpan(idx, ld.fileSpan)

	seen := make(map[source.StringID]bool, len(decl.Fields))
	fields := make([]types.StructField, 0, len(decl.Fields))
	for _, f := range decl.Fields {
		fieldName := ld.types.Strings.Intern(norm.NFC.String(f.Name))
		if seen[fieldName] {
			ld.errorf(diag.ManifestDuplicateField, span, "duplicate field %q on type %q", f.Name, decl.Name)
			continue
		}
		seen[fieldName] = true
		ft, err := parseTypeExpr(ld.types, f.Type)
		if err != nil {
			code := diag.ManifestBadTypeExpr
			if errors.Is(err, errUnknownType) {
				code = diag.ManifestUnknownType
			}
			ld.errorf(code, span, "field %q of %q: %v", f.Name, decl.Name, err)
			continue
		}
		fields = append(fields, types.StructField{Name: fieldName, Type: ft, Decl: span})
	}
	ld.types.SetStructFields(id, fields)

	if decl.Callback == nil {
		return
	}
	cbSpan := ld.spans.callbackSpan(idx, span)
	cb := types.CallbackInfo{Decl: cbSpan}

	quals := decl.Callback.Quals
	if len(quals) == 0 {
		quals = []string{"mut"}
	}
	for _, qs := range quals {
		q, ok := types.ParseQual(qs)
		if !ok {
			ld.errorf(diag.ManifestBadQualifier, cbSpan, "unknown qualifier %q on callback of %q", qs, decl.Name)
			continue
		}
		cb.Quals |= types.QualSetOf(q)
	}

	nothrow := true
	if decl.Callback.Nothrow != nil {
		nothrow = *decl.Callback.Nothrow
	}
	if !nothrow {
		// The callback runs between the bitwise copy and the release of
		// the old storage; there is nothing an unwinder could restore.
		ld.errorf(diag.RelocThrowingCallback, cbSpan,
			"post-move callback of %q must be declared nothrow", decl.Name)
	}

	safety := effects.SafetySafe
	if decl.Callback.Safety != "" {
		s, ok := effects.ParseSafety(decl.Callback.Safety)
		if !ok {
			ld.errorf(diag.ManifestBadSafety, cbSpan, "unknown safety class %q on callback of %q", decl.Callback.Safety, decl.Name)
		} else {
			safety = s
		}
	}

	cb.Effects = effects.Classification{
		Nothrow:   nothrow,
		AllocFree: decl.Callback.AllocFree,
		Safety:    safety,
	}
	cb.Disabled = decl.Callback.Disabled
	ld.types.SetStructCallback(id, cb)
}

func (ld *loader) resolveSite(decl *siteDecl, idx int) (relocate.Site, bool) {
	span := ld.spans.siteSpan(idx, ld.fileSpan)

	nameID := ld.types.Strings.Intern(norm.NFC.String(decl.Type))
	id, ok := ld.types.FindStruct(nameID)
	if !ok {
		ld.errorf(diag.ManifestUnknownType, span, "site references undeclared type %q", decl.Type)
		return relocate.Site{}, false
	}

	q := types.QualMut
	if decl.Qual != "" {
		parsed, ok := types.ParseQual(decl.Qual)
		if !ok {
			ld.errorf(diag.ManifestBadQualifier, span, "unknown qualifier %q on site for %q", decl.Qual, decl.Type)
			return relocate.Site{}, false
		}
		q = parsed
	}

	// The zero demand constrains nothing.
	demand := effects.Classification{Safety: effects.SafetyUnchecked}
	if decl.Demand != nil {
		demand.Nothrow = decl.Demand.Nothrow
		demand.AllocFree = decl.Demand.AllocFree
		if decl.Demand.Safety != "" {
			s, ok := effects.ParseSafety(decl.Demand.Safety)
			if !ok {
				ld.errorf(diag.ManifestBadSafety, span, "unknown safety class %q on site for %q", decl.Demand.Safety, decl.Type)
				return relocate.Site{}, false
			}
			demand.Safety = s
		} else {
			demand.Safety = effects.SafetyUnchecked
		}
	}

	return relocate.Site{
		Span:    span,
		Type:    id,
		Qual:    q,
		Demand:  demand,
		Context: decl.Context,
	}, true
}
