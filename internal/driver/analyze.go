// Package driver orchestrates manifest loading, hook analysis, and
// relocation-site checking, for one file or a directory batch.
package driver

import (
	"errors"
	"fmt"

	"reloc/internal/diag"
	"reloc/internal/hook"
	"reloc/internal/layout"
	"reloc/internal/manifest"
	"reloc/internal/relocate"
	"reloc/internal/source"
	"reloc/internal/types"
)

// Options tunes a single-file analysis.
type Options struct {
	MaxDiagnostics int
	Target         layout.Target
	// Cache, when non-nil, short-circuits analysis of unchanged files.
	Cache *DiskCache
}

func (o Options) withDefaults() Options {
	if o.MaxDiagnostics <= 0 {
		o.MaxDiagnostics = 100
	}
	if o.Target.PtrSize == 0 {
		o.Target = layout.X86_64LinuxGNU()
	}
	return o
}

// FileResult is everything one manifest analysis produced. Each result
// owns its FileSet; spans in Bag resolve against it.
type FileResult struct {
	Path    string
	FileID  source.FileID
	FileSet *source.FileSet
	Graph   *manifest.Graph
	Bag     *diag.Bag

	Summaries []HookSummary

	// Checked counts validated relocation sites, Elided the subset that
	// needed no hook at all.
	Checked int
	Elided  int

	// FromCache marks results reconstructed from the disk cache.
	FromCache bool
}

// AnalyzeFile loads one manifest and runs the full analysis.
func AnalyzeFile(path string, opts Options) (*FileResult, error) {
	opts = opts.withDefaults()

	fs := source.NewFileSet()
	fileID, err := fs.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	if opts.Cache != nil {
		if res, ok, err := opts.Cache.Get(fs, fileID, path); err == nil && ok {
			return res, nil
		}
	}

	res := analyzeLoaded(fs, fileID, path, opts)

	if opts.Cache != nil {
		if err := opts.Cache.Put(res); err != nil {
			// Cache failures degrade to a cold run next time.
			res.Bag.Add(diag.New(diag.SevInfo, diag.RelocInfo,
				source.Span{File: fileID}, fmt.Sprintf("disk cache write failed: %v", err)))
		}
	}
	return res, nil
}

// AnalyzeVirtual runs the same analysis over in-memory content. Tests and
// stdin use this path; it never touches the disk cache.
func AnalyzeVirtual(name string, content []byte, opts Options) *FileResult {
	opts = opts.withDefaults()
	fs := source.NewFileSet()
	fileID := fs.AddVirtual(name, content)
	return analyzeLoaded(fs, fileID, name, opts)
}

func analyzeLoaded(fs *source.FileSet, fileID source.FileID, path string, opts Options) *FileResult {
	bag := diag.NewBag(opts.MaxDiagnostics)
	reporter := diag.BagReporter{Bag: bag}

	res := &FileResult{
		Path:    path,
		FileID:  fileID,
		FileSet: fs,
		Bag:     bag,
	}

	g, ok := manifest.Load(fs, fileID, reporter)
	res.Graph = g
	if g == nil || !ok && bag.HasErrors() && len(g.Declared) == 0 {
		bag.Sort()
		bag.Dedup()
		return res
	}

	an := hook.NewAnalyzer(g.Types)
	engine := layout.New(opts.Target, g.Types)

	// Layout sanity: a value type that contains itself without
	// indirection has no finite size and cannot be relocated at all.
	for _, id := range g.Declared {
		if _, err := engine.LayoutOf(id); err != nil {
			var lerr *layout.Error
			span := structSpan(g.Types, id)
			if errors.As(err, &lerr) && lerr.Kind == layout.ErrRecursiveUnsized {
				reporter.Report(diag.ManifestRecursiveType, diag.SevError, span,
					fmt.Sprintf("value type %s contains itself without indirection", types.Label(g.Types, id)), nil)
			} else {
				reporter.Report(diag.ManifestRecursiveType, diag.SevError, span,
					fmt.Sprintf("layout of %s failed: %v", types.Label(g.Types, id), err), nil)
			}
		}
	}

	sites := g.Sites
	if len(sites) == 0 {
		sites = defaultSites(g)
	}
	for _, site := range sites {
		em, ok := relocate.PlanRelocation(an, site, reporter)
		if !ok {
			continue
		}
		res.Checked++
		if em.Elided {
			res.Elided++
		}
	}

	res.Summaries = Summarize(an, g)
	lintIndirectOnlyCallbacks(g, reporter)

	bag.Sort()
	bag.Dedup()
	return res
}

// defaultSites checks every declared type under the unqualified form with
// no effect demand, so a siteless manifest still validates its graph.
func defaultSites(g *manifest.Graph) []relocate.Site {
	sites := make([]relocate.Site, 0, len(g.Declared))
	for _, id := range g.Declared {
		sites = append(sites, relocate.Site{
			Span:    structSpan(g.Types, id),
			Type:    id,
			Qual:    types.QualMut,
			Demand:  relocate.NoDemand(),
			Context: "graph check",
		})
	}
	return sites
}

func structSpan(typesIn *types.Interner, id types.TypeID) source.Span {
	if info, ok := typesIn.StructInfo(id); ok {
		return info.Decl
	}
	return source.Span{}
}

// lintIndirectOnlyCallbacks warns about callback declarations that can
// never run: the type is only ever reached behind a pointer or reference
// and no relocation site targets it directly. Interaction with
// open-hierarchy reference types is deferred; such declarations are
// ignored rather than resolved.
func lintIndirectOnlyCallbacks(g *manifest.Graph, r diag.Reporter) {
	direct := make(map[types.TypeID]bool)
	indirect := make(map[types.TypeID]bool)

	var walk func(id types.TypeID, behindPtr bool)
	walk = func(id types.TypeID, behindPtr bool) {
		tt, ok := g.Types.Lookup(id)
		if !ok {
			return
		}
		switch tt.Kind {
		case types.KindPointer, types.KindReference:
			walk(tt.Elem, true)
		case types.KindArray:
			walk(tt.Elem, behindPtr)
		case types.KindStruct:
			if behindPtr {
				indirect[id] = true
				return // pointee's own members are not part of this value
			}
			if direct[id] {
				return // already walked; also terminates recursive graphs
			}
			direct[id] = true
			for _, f := range g.Types.StructFields(id) {
				walk(f.Type, false)
			}
		}
	}
	for _, id := range g.Declared {
		for _, f := range g.Types.StructFields(id) {
			walk(f.Type, false)
		}
	}
	for _, site := range g.Sites {
		direct[site.Type] = true
	}

	for _, id := range g.Declared {
		cb, declared := g.Types.StructCallback(id)
		if !declared || direct[id] || !indirect[id] {
			continue
		}
		r.Report(diag.RelocIndirectCallbackOnly, diag.SevWarning, cb.Decl,
			fmt.Sprintf("post-move callback of %s is only reachable behind indirection and will never run",
				types.Label(g.Types, id)), nil)
	}
}
