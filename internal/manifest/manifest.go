// Package manifest loads value-type graph manifests: TOML documents
// declaring structs, their fields, post-move callback declarations, and
// the relocation sites to check. Loading produces a populated type
// interner plus resolved sites; every problem is reported through the
// diagnostics pipeline rather than as a Go error.
package manifest

import (
	"reloc/internal/relocate"
	"reloc/internal/types"
)

// Graph is a loaded and resolved type-graph manifest.
type Graph struct {
	Name  string
	Types *types.Interner
	Sites []relocate.Site

	// Declared lists struct TypeIDs in manifest order.
	Declared []types.TypeID
}

// Raw TOML shapes. Field order in array tables follows document order,
// which keeps the span scanner aligned with the decoded slices.

type graphDoc struct {
	Graph graphSection `toml:"graph"`
	Types []typeDecl   `toml:"type"`
	Sites []siteDecl   `toml:"site"`
}

type graphSection struct {
	Name string `toml:"name"`
}

type typeDecl struct {
	Name     string        `toml:"name"`
	Fields   []fieldDecl   `toml:"fields"`
	Callback *callbackDecl `toml:"callback"`
}

type fieldDecl struct {
	Name string `toml:"name"`
	Type string `toml:"type"`
}

type callbackDecl struct {
	Quals     []string `toml:"quals"`
	Nothrow   *bool    `toml:"nothrow"`
	AllocFree bool     `toml:"allocfree"`
	Safety    string   `toml:"safety"`
	Disabled  bool     `toml:"disabled"`
}

type siteDecl struct {
	Type    string      `toml:"type"`
	Qual    string      `toml:"qual"`
	Context string      `toml:"context"`
	Demand  *demandDecl `toml:"demand"`
}

type demandDecl struct {
	Nothrow   bool   `toml:"nothrow"`
	AllocFree bool   `toml:"allocfree"`
	Safety    string `toml:"safety"`
}
