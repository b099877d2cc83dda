package driver

import (
	"context"
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Stage identifies how far a batch worker got with one file.
type Stage uint8

const (
	StageQueued Stage = iota
	StageAnalyze
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageQueued:
		return "queued"
	case StageAnalyze:
		return "analyzing"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	}
	return "unknown"
}

// Event is a batch progress notification consumed by the UI.
type Event struct {
	Path  string
	Stage Stage
	Err   error
}

// ListManifests returns every *.toml file under dir, sorted for a
// deterministic processing order.
func ListManifests(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".toml") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// AnalyzeDir analyzes every manifest under dir in parallel. Results come
// back in file order regardless of completion order; events, when a
// channel is provided, stream completion progress to the UI.
func AnalyzeDir(ctx context.Context, dir string, opts Options, jobs int, events chan<- Event) ([]*FileResult, error) {
	files, err := ListManifests(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	// Slots are per-goroutine, no mutex needed.
	results := make([]*FileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(files)))

	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			emit(events, Event{Path: path, Stage: StageAnalyze})
			res, err := AnalyzeFile(path, opts)
			if err != nil {
				emit(events, Event{Path: path, Stage: StageFailed, Err: err})
				return err
			}
			results[i] = res
			emit(events, Event{Path: path, Stage: StageDone})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func emit(events chan<- Event, ev Event) {
	if events == nil {
		return
	}
	events <- ev
}
