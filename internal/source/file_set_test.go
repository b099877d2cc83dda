package source

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileSetAddVirtualAndResolve(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("test.toml", []byte("first\nsecond line\nthird"))

	f := fs.Get(id)
	if f.Flags&FileVirtual == 0 {
		t.Fatal("virtual flag not set")
	}

	// "second" starts at offset 6.
	start, end := fs.Resolve(Span{File: id, Start: 6, End: 12})
	if start.Line != 2 || start.Col != 1 {
		t.Fatalf("start = %d:%d, want 2:1", start.Line, start.Col)
	}
	if end.Line != 2 || end.Col != 7 {
		t.Fatalf("end = %d:%d, want 2:7", end.Line, end.Col)
	}

	if got := f.GetLine(2); got != "second line" {
		t.Fatalf("GetLine(2) = %q", got)
	}
	if got := f.GetLine(99); got != "" {
		t.Fatalf("GetLine(99) = %q, want empty", got)
	}
}

func TestFileSetLoadNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.toml")
	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte("[graph]\r\nname = \"g\"\r\n")...)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	fs := NewFileSet()
	id, err := fs.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	f := fs.Get(id)
	if f.Flags&FileHadBOM == 0 {
		t.Error("BOM flag not recorded")
	}
	if f.Flags&FileNormalizedCRLF == 0 {
		t.Error("CRLF flag not recorded")
	}
	if string(f.Content) != "[graph]\nname = \"g\"\n" {
		t.Fatalf("content not normalized: %q", f.Content)
	}

	got, ok := fs.GetByPath(path)
	if !ok || got.ID != id {
		t.Fatalf("GetByPath did not find the loaded file")
	}
}

func TestFileSetHashChangesWithContent(t *testing.T) {
	fs := NewFileSet()
	a := fs.AddVirtual("a", []byte("one"))
	b := fs.AddVirtual("b", []byte("two"))
	if fs.Get(a).Hash == fs.Get(b).Hash {
		t.Fatal("different content produced equal hashes")
	}
}
