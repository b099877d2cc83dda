package driver

import (
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"reloc/internal/diag"
	"reloc/internal/source"
)

// Bump when diskPayload changes shape.
const diskCacheSchemaVersion uint16 = 1

// DiskCache memoizes per-manifest analysis results, keyed by content
// hash. A manifest is self-contained, so a matching hash means the
// whole result can be replayed. Thread-safe for concurrent access.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// diskNote is a span-plus-message pair, offsets relative to the file.
type diskNote struct {
	Start uint32
	End   uint32
	Msg   string
}

type diskDiag struct {
	Severity uint8
	Code     uint16
	Message  string
	Start    uint32
	End      uint32
	Notes    []diskNote
}

type diskPayload struct {
	Schema uint16

	GraphName string
	Diags     []diskDiag
	Summaries []HookSummary
	Checked   int
	Elided    int
}

// OpenDiskCache initializes a disk cache at the standard user location.
func OpenDiskCache(app string) (*DiskCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, app)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

func (c *DiskCache) pathFor(key [32]byte) string {
	// Subdirectory keeps hand-inspection and cleanup easy.
	return filepath.Join(c.dir, "manifests", hex.EncodeToString(key[:])+".mp")
}

// Get replays a cached result for the already-loaded file. The returned
// result resolves its spans against fs; Graph is not cached and stays
// nil on a hit.
func (c *DiskCache) Get(fs *source.FileSet, fileID source.FileID, path string) (*FileResult, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	file := fs.Get(fileID)
	if file == nil {
		return nil, false, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(file.Hash))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	var payload diskPayload
	if err := msgpack.NewDecoder(f).Decode(&payload); err != nil {
		return nil, false, err
	}
	if payload.Schema != diskCacheSchemaVersion {
		return nil, false, nil
	}

	bag := diag.NewBag(len(payload.Diags) + 1)
	for _, d := range payload.Diags {
		dd := diag.Diagnostic{
			Severity: diag.Severity(d.Severity),
			Code:     diag.Code(d.Code),
			Message:  d.Message,
			Primary:  source.Span{File: fileID, Start: d.Start, End: d.End},
		}
		for _, n := range d.Notes {
			dd.Notes = append(dd.Notes, diag.Note{
				Span: source.Span{File: fileID, Start: n.Start, End: n.End},
				Msg:  n.Msg,
			})
		}
		bag.Add(dd)
	}

	return &FileResult{
		Path:      path,
		FileID:    fileID,
		FileSet:   fs,
		Bag:       bag,
		Summaries: payload.Summaries,
		Checked:   payload.Checked,
		Elided:    payload.Elided,
		FromCache: true,
	}, true, nil
}

// Put serializes a fresh result. Write is atomic: temp file, then rename.
func (c *DiskCache) Put(res *FileResult) error {
	if c == nil || res == nil {
		return nil
	}
	file := res.FileSet.Get(res.FileID)
	if file == nil {
		return nil
	}

	payload := diskPayload{
		Schema:    diskCacheSchemaVersion,
		Summaries: res.Summaries,
		Checked:   res.Checked,
		Elided:    res.Elided,
	}
	if res.Graph != nil {
		payload.GraphName = res.Graph.Name
	}
	for _, d := range res.Bag.Items() {
		dd := diskDiag{
			Severity: uint8(d.Severity),
			Code:     uint16(d.Code),
			Message:  d.Message,
			Start:    d.Primary.Start,
			End:      d.Primary.End,
		}
		for _, n := range d.Notes {
			dd.Notes = append(dd.Notes, diskNote{Start: n.Span.Start, End: n.Span.End, Msg: n.Msg})
		}
		payload.Diags = append(payload.Diags, dd)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(file.Hash)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if err := msgpack.NewEncoder(f).Encode(&payload); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// DropAll invalidates the whole cache, useful after format changes.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return os.RemoveAll(old)
}
