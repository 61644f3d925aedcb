package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"
	"github.com/michaelscutari/dupe/internal/entry"
	"github.com/michaelscutari/dupe/internal/pathutil"
)

// ErrRoot is returned when the scan root cannot be used.
var ErrRoot = errors.New("invalid scan root")

const entryBufferSize = 256

// Walker yields candidate files below a root directory.
type Walker struct {
	root    string
	opts    *ScanOptions
	started atomic.Bool
}

// NewWalker resolves and checks root. The returned error wraps ErrRoot when
// root is missing, not a directory, or cannot be opened.
func NewWalker(root string, opts *ScanOptions) (*Walker, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRoot, err)
	}
	root = pathutil.Normalize(root)

	// The root itself may be a link; everything below it is walked without
	// following links.
	if info, err := os.Lstat(root); err == nil && info.Mode()&os.ModeSymlink != 0 {
		if resolved, err := filepath.EvalSymlinks(root); err == nil {
			root = resolved
		}
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrRoot, root)
	}

	f, err := os.Open(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRoot, err)
	}
	f.Close()

	return &Walker{root: root, opts: opts}, nil
}

// Root returns the resolved root directory.
func (w *Walker) Root() string {
	return w.root
}

// Entries returns the lazy sequence of candidate files. The sequence can be
// consumed once; later iterations yield nothing. Stopping early cancels the
// underlying walk.
func (w *Walker) Entries(ctx context.Context) iter.Seq[entry.FileEntry] {
	return func(yield func(entry.FileEntry) bool) {
		if !w.started.CompareAndSwap(false, true) {
			return
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		out := make(chan entry.FileEntry, entryBufferSize)
		go func() {
			defer close(out)
			w.run(ctx, out)
		}()

		for e := range out {
			if !yield(e) {
				cancel()
				for range out {
				}
				return
			}
		}
	}
}

// Walk is a shorthand for NewWalker followed by Entries.
func Walk(ctx context.Context, root string, opts *ScanOptions) (iter.Seq[entry.FileEntry], error) {
	w, err := NewWalker(root, opts)
	if err != nil {
		return nil, err
	}
	return w.Entries(ctx), nil
}

func (w *Walker) run(ctx context.Context, out chan<- entry.FileEntry) {
	conf := fastwalk.Config{Follow: false, NumWorkers: w.opts.Workers}

	walkFn := func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return fs.SkipAll
		}

		if err != nil {
			w.opts.report(path, entry.PhaseWalk, err)
			if d != nil && d.IsDir() && path != w.root {
				return fastwalk.SkipDir
			}
			return nil
		}

		if path == w.root {
			return nil
		}

		if d.IsDir() {
			if w.opts.ShouldPrune(d.Name(), path) {
				return fastwalk.SkipDir
			}
			return nil
		}

		if entry.KindFromMode(d.Type()) != entry.KindFile || !w.opts.Match(path) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			w.opts.report(path, entry.PhaseStat, err)
			return nil
		}
		// Info can observe a replacement made after the directory was read.
		if entry.KindFromMode(info.Mode()) != entry.KindFile {
			return nil
		}

		e := entry.FileEntry{
			Path:          path,
			Size:          uint64(info.Size()),
			ModTimeMillis: entry.MillisFromTime(info.ModTime()),
		}

		select {
		case out <- e:
			return nil
		case <-ctx.Done():
			return fs.SkipAll
		}
	}

	if err := fastwalk.Walk(&conf, w.root, walkFn); err != nil && ctx.Err() == nil {
		w.opts.report(w.root, entry.PhaseWalk, err)
	}
}
