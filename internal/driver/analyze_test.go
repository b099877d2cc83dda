package driver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"reloc/internal/diag"
)

const bufferManifest = `
[graph]
name = "buffers"

[[type]]
name = "Cursor"
fields = [ { name = "pos", type = "u64" } ]
[type.callback]
allocfree = true
safety = "trusted"

[[type]]
name = "Buffer"
fields = [
  { name = "len", type = "u64" },
  { name = "cursor", type = "Cursor" },
]

[[type]]
name = "Plain"
fields = [ { name = "x", type = "u64" } ]

[[site]]
type = "Buffer"
qual = "mut"
context = "return-value collapse"

[[site]]
type = "Plain"
qual = "mut"
context = "temporary collapse"
`

func hasCode(bag *diag.Bag, code diag.Code) bool {
	for _, d := range bag.Items() {
		if d.Code == code {
			return true
		}
	}
	return false
}

func TestAnalyzeVirtualCountsSites(t *testing.T) {
	res := AnalyzeVirtual("buffers.toml", []byte(bufferManifest), Options{})
	if res.Bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", res.Bag.Items())
	}
	if res.Checked != 2 {
		t.Fatalf("Checked = %d, want 2", res.Checked)
	}
	// Plain has no reachable callback, so its site compiles to nothing.
	if res.Elided != 1 {
		t.Fatalf("Elided = %d, want 1", res.Elided)
	}
	if len(res.Summaries) != 3 {
		t.Fatalf("summaries = %d, want 3", len(res.Summaries))
	}
}

func TestAnalyzeVirtualSummaries(t *testing.T) {
	res := AnalyzeVirtual("buffers.toml", []byte(bufferManifest), Options{})

	byName := make(map[string]HookSummary, len(res.Summaries))
	for _, s := range res.Summaries {
		byName[s.Name] = s
	}

	buf, ok := byName["Buffer"]
	if !ok || !buf.HasElaborateMove {
		t.Fatalf("Buffer summary = %+v", buf)
	}
	if buf.Callbacks != 1 {
		t.Fatalf("Buffer callbacks = %d, want 1 (Cursor's)", buf.Callbacks)
	}
	// Cursor's callback covers mut only; the other variants carry errors.
	mutOK, roErr := false, false
	for _, p := range buf.Plans {
		switch p.Qual {
		case "mut":
			mutOK = p.Error == ""
		case "readonly":
			roErr = p.Error != ""
		}
	}
	if !mutOK || !roErr {
		t.Fatalf("plans = %+v", buf.Plans)
	}

	plain := byName["Plain"]
	if plain.HasElaborateMove {
		t.Fatalf("Plain should have no elaborate move: %+v", plain)
	}
}

func TestAnalyzeVirtualDefaultSites(t *testing.T) {
	content := `
[[type]]
name = "Plain"
fields = [ { name = "x", type = "u64" } ]
`
	res := AnalyzeVirtual("plain.toml", []byte(content), Options{})
	if res.Bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", res.Bag.Items())
	}
	// Siteless manifests still validate every declared type once.
	if res.Checked != 1 || res.Elided != 1 {
		t.Fatalf("Checked/Elided = %d/%d, want 1/1", res.Checked, res.Elided)
	}
}

func TestAnalyzeVirtualFailedLoadDeduplicates(t *testing.T) {
	// Inline site tables carry no [[site]] headers, so both unknown-type
	// errors fall back to the whole-file span and must collapse to one
	// even on the failed-load exit.
	content := `site = [ { type = "U" }, { type = "U" } ]`
	res := AnalyzeVirtual("bad.toml", []byte(content), Options{})
	if !res.Bag.HasErrors() {
		t.Fatal("undeclared site type passed analysis")
	}
	unknown := 0
	for _, d := range res.Bag.Items() {
		if d.Code == diag.ManifestUnknownType {
			unknown++
		}
	}
	if unknown != 1 {
		t.Fatalf("unknown-type diagnostics = %d, want 1 after dedup", unknown)
	}
}

func TestAnalyzeVirtualRejectsRecursiveType(t *testing.T) {
	content := `
[[type]]
name = "R"
fields = [ { name = "again", type = "R" } ]
`
	res := AnalyzeVirtual("rec.toml", []byte(content), Options{})
	if !res.Bag.HasErrors() {
		t.Fatal("recursive value type passed analysis")
	}
	if !hasCode(res.Bag, diag.ManifestRecursiveType) {
		t.Fatalf("diagnostics = %v, want recursive-type", res.Bag.Items())
	}
}

func TestAnalyzeVirtualMutuallyRecursiveTypes(t *testing.T) {
	// Analysis continues past the recursive-layout error, so every later
	// pass (summaries, lints) must terminate on the cyclic graph too.
	content := `
[[type]]
name = "A"
fields = [ { name = "b", type = "B" } ]
[type.callback]

[[type]]
name = "B"
fields = [ { name = "a", type = "A" } ]
[type.callback]

[[type]]
name = "Held"
fields = [ { name = "x", type = "u64" } ]
[type.callback]

[[type]]
name = "Holder"
fields = [ { name = "h", type = "ptr Held" } ]
`
	res := AnalyzeVirtual("mutual.toml", []byte(content), Options{})
	if !hasCode(res.Bag, diag.ManifestRecursiveType) {
		t.Fatalf("diagnostics = %v, want recursive-type", res.Bag.Items())
	}
	if !hasCode(res.Bag, diag.RelocIndirectCallbackOnly) {
		t.Fatalf("diagnostics = %v, want indirect-callback-only for Held", res.Bag.Items())
	}
}

func TestAnalyzeVirtualEffectMismatchSite(t *testing.T) {
	content := `
[[type]]
name = "T"
fields = [ { name = "x", type = "u64" } ]
[type.callback]
safety = "unchecked"

[[site]]
type = "T"
[site.demand]
safety = "safe"
`
	res := AnalyzeVirtual("mismatch.toml", []byte(content), Options{})
	if !hasCode(res.Bag, diag.RelocEffectMismatch) {
		t.Fatalf("diagnostics = %v, want effect-mismatch", res.Bag.Items())
	}
}

func TestAnalyzeVirtualIndirectOnlyLint(t *testing.T) {
	content := `
[[type]]
name = "Leaf"
fields = [ { name = "x", type = "u64" } ]
[type.callback]

[[type]]
name = "Owner"
fields = [ { name = "p", type = "ptr Leaf" } ]
`
	res := AnalyzeVirtual("indirect.toml", []byte(content), Options{})
	if !hasCode(res.Bag, diag.RelocIndirectCallbackOnly) {
		t.Fatalf("diagnostics = %v, want indirect-callback-only warning", res.Bag.Items())
	}

	// A direct site for Leaf silences the lint.
	withSite := content + "\n[[site]]\ntype = \"Leaf\"\n"
	res = AnalyzeVirtual("direct.toml", []byte(withSite), Options{})
	if hasCode(res.Bag, diag.RelocIndirectCallbackOnly) {
		t.Fatalf("lint fired despite a direct site: %v", res.Bag.Items())
	}
}

func TestAnalyzeFileAndDir(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "a.toml")
	alsoGood := filepath.Join(dir, "b.toml")
	for _, p := range []string{good, alsoGood} {
		if err := os.WriteFile(p, []byte(bufferManifest), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	res, err := AnalyzeFile(good, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Path != good || res.Checked != 2 {
		t.Fatalf("result = %+v", res)
	}

	results, err := AnalyzeDir(context.Background(), dir, Options{}, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	// Results are file ordered, not completion ordered.
	if results[0].Path != good || results[1].Path != alsoGood {
		t.Fatalf("order = %s, %s", results[0].Path, results[1].Path)
	}
}

func TestListManifestsSortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"z.toml", "a.toml", "skip.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(""), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	files, err := ListManifests(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("files = %v", files)
	}
	if filepath.Base(files[0]) != "a.toml" || filepath.Base(files[1]) != "z.toml" {
		t.Fatalf("order = %v", files)
	}
}
