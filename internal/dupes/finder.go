package dupes

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/michaelscutari/dupe/internal/digest"
	"github.com/michaelscutari/dupe/internal/entry"
	"github.com/michaelscutari/dupe/internal/scan"
	"github.com/sirupsen/logrus"
)

// StageFunc is called when the pipeline moves to another phase.
type StageFunc func(stage string)

// FileFunc is called for every candidate file produced by the walk.
type FileFunc func(entry.FileEntry)

// Stats holds pipeline counters.
type Stats struct {
	Files         int64 // files that passed the extension filter
	Candidates    int64 // files in size buckets with two or more members
	PartialHashed int64
	FullHashed    int64
	Groups        int64
	Errors        int64
	BytesRead     int64
}

// SizeBuckets maps an exact byte length to the paths having it.
type SizeBuckets map[uint64][]string

// DigestGroups maps a digest to the paths sharing it.
type DigestGroups map[string][]string

// FullGroup is a full-content digest group. Every member has the same size
// because equal content implies equal length.
type FullGroup struct {
	Size  uint64
	Paths []string
}

// Finder runs the duplicate detection pipeline.
type Finder struct {
	opts    scan.ScanOptions
	onError scan.ErrorFunc
	alg     *digest.Algorithm
	log     *logrus.Entry

	onFile  FileFunc
	onStage StageFunc

	errMu sync.Mutex

	files         atomic.Int64
	candidates    atomic.Int64
	partialHashed atomic.Int64
	fullHashed    atomic.Int64
	groups        atomic.Int64
	errors        atomic.Int64
	bytesRead     atomic.Int64
}

// NewFinder creates a finder. opts is copied; its OnError callback still
// receives every skipped entry.
func NewFinder(opts *scan.ScanOptions, log *logrus.Entry) (*Finder, error) {
	if opts == nil {
		opts = scan.DefaultOptions()
	}
	alg, err := digest.Lookup(opts.Algorithm)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	f := &Finder{
		opts:    *opts,
		onError: opts.OnError,
		alg:     alg,
		log:     log,
	}
	f.opts.OnError = f.handleError
	return f, nil
}

// SetFileFunc sets a callback for candidate files.
func (f *Finder) SetFileFunc(fn FileFunc) {
	f.onFile = fn
}

// SetStageFunc sets a callback for stage changes.
func (f *Finder) SetStageFunc(fn StageFunc) {
	f.onStage = fn
}

// Algorithm returns the digest algorithm in use.
func (f *Finder) Algorithm() *digest.Algorithm {
	return f.alg
}

// Stats returns current counters (safe for concurrent access).
func (f *Finder) Stats() Stats {
	return Stats{
		Files:         f.files.Load(),
		Candidates:    f.candidates.Load(),
		PartialHashed: f.partialHashed.Load(),
		FullHashed:    f.fullHashed.Load(),
		Groups:        f.groups.Load(),
		Errors:        f.errors.Load(),
		BytesRead:     f.bytesRead.Load(),
	}
}

func (f *Finder) handleError(e entry.ScanError) {
	f.errors.Add(1)
	f.log.WithFields(logrus.Fields{
		"path":  e.Path,
		"phase": e.Phase,
	}).Debug(e.Message)

	if f.onError == nil {
		return
	}
	f.errMu.Lock()
	defer f.errMu.Unlock()
	f.onError(e)
}

func (f *Finder) stage(s string) {
	if f.onStage != nil {
		f.onStage(s)
	}
}

// Walk returns the lazy sequence of candidate files below root.
func (f *Finder) Walk(ctx context.Context, root string) (iter.Seq[entry.FileEntry], error) {
	w, err := scan.NewWalker(root, &f.opts)
	if err != nil {
		return nil, err
	}
	f.log.WithField("root", w.Root()).Debug("walking")

	entries := w.Entries(ctx)
	return func(yield func(entry.FileEntry) bool) {
		for e := range entries {
			f.files.Add(1)
			if f.onFile != nil {
				f.onFile(e)
			}
			if !yield(e) {
				return
			}
		}
	}, nil
}

// BucketBySize drains entries into buckets keyed by byte length and drops
// buckets with fewer than two paths. Paths within a bucket are sorted.
func (f *Finder) BucketBySize(entries iter.Seq[entry.FileEntry]) SizeBuckets {
	buckets := make(SizeBuckets)
	for e := range entries {
		buckets[e.Size] = append(buckets[e.Size], e.Path)
	}
	total := len(buckets)

	for size, paths := range buckets {
		if len(paths) < 2 {
			delete(buckets, size)
			continue
		}
		slices.Sort(paths)
		f.candidates.Add(int64(len(paths)))
	}

	f.log.WithFields(logrus.Fields{
		"sizes":   total,
		"buckets": len(buckets),
	}).Debug("size bucketing done")
	return buckets
}

// PartialGroups fingerprints the paths of one size bucket and returns the
// groups with two or more members. Unreadable files are left out.
func (f *Finder) PartialGroups(ctx context.Context, size uint64, paths []string) DigestGroups {
	headLen, _, hasTail := digest.Window(size)
	windowLen := headLen
	if hasTail {
		windowLen += digest.ChunkSize
	}

	results := hashAll(ctx, paths, f.opts.Workers, func(path string) (string, error) {
		d, err := digest.Partial(path, size, f.alg)
		if err != nil {
			return "", err
		}
		f.partialHashed.Add(1)
		f.bytesRead.Add(windowLen)
		return d, nil
	}, func(path string, err error) {
		f.handleError(entry.ScanError{Path: path, Phase: entry.PhasePartial, Message: err.Error()})
	})

	return groupResults(paths, results)
}

// Verify computes full digests for every partial group with two or more
// members and adds the results to full.
func (f *Finder) Verify(ctx context.Context, size uint64, partial DigestGroups, full map[string]*FullGroup) {
	for _, key := range sortedKeys(partial) {
		paths := partial[key]
		if len(paths) < 2 {
			continue
		}

		results := hashAll(ctx, paths, f.opts.Workers, func(path string) (string, error) {
			d, err := digest.Full(path, size, f.alg)
			if err != nil {
				return "", err
			}
			f.fullHashed.Add(1)
			f.bytesRead.Add(int64(size))
			return d, nil
		}, func(path string, err error) {
			f.handleError(entry.ScanError{Path: path, Phase: entry.PhaseFull, Message: err.Error()})
		})

		for i, r := range results {
			if !r.ok {
				continue
			}
			g, ok := full[r.digest]
			if !ok {
				g = &FullGroup{Size: size}
				full[r.digest] = g
			}
			g.Paths = append(g.Paths, paths[i])
		}
	}
}

// Assemble turns full digest groups with two or more members into duplicate
// groups, largest files first.
func Assemble(full map[string]*FullGroup) []entry.DuplicateGroup {
	var groups []entry.DuplicateGroup
	for d, g := range full {
		if len(g.Paths) < 2 {
			continue
		}
		groups = append(groups, entry.DuplicateGroup{
			Digest: d,
			Paths:  slices.Clone(g.Paths),
			Size:   g.Size,
		})
	}
	slices.SortFunc(groups, func(a, b entry.DuplicateGroup) int {
		if c := cmp.Compare(b.Size, a.Size); c != 0 {
			return c
		}
		return cmp.Compare(a.Digest, b.Digest)
	})
	return groups
}

// Run executes the whole pipeline below root. A bad root is returned as an
// error wrapping scan.ErrRoot; every other failure only drops the file involved.
func (f *Finder) Run(ctx context.Context, root string) ([]entry.DuplicateGroup, error) {
	f.stage("scan")
	entries, err := f.Walk(ctx, root)
	if err != nil {
		return nil, err
	}
	buckets := f.BucketBySize(entries)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.stage("hash")
	full := make(map[string]*FullGroup)
	for _, size := range sortedSizes(buckets) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		partial := f.PartialGroups(ctx, size, buckets[size])
		f.Verify(ctx, size, partial, full)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.stage("assemble")
	groups := Assemble(full)
	f.groups.Store(int64(len(groups)))

	st := f.Stats()
	f.log.WithFields(logrus.Fields{
		"files":   st.Files,
		"partial": st.PartialHashed,
		"full":    st.FullHashed,
		"groups":  st.Groups,
		"errors":  st.Errors,
	}).Debug("duplicate search done")

	return groups, nil
}

// Collect drains the walk below root into a slice.
func (f *Finder) Collect(ctx context.Context, root string) ([]entry.FileEntry, error) {
	f.stage("scan")
	entries, err := f.Walk(ctx, root)
	if err != nil {
		return nil, err
	}

	var out []entry.FileEntry
	for e := range entries {
		out = append(out, e)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scan interrupted: %w", err)
	}
	slices.SortFunc(out, func(a, b entry.FileEntry) int {
		return cmp.Compare(a.Path, b.Path)
	})
	return out, nil
}

func groupResults(paths []string, results []hashResult) DigestGroups {
	groups := make(DigestGroups)
	for i, r := range results {
		if !r.ok {
			continue
		}
		groups[r.digest] = append(groups[r.digest], paths[i])
	}
	for d, members := range groups {
		if len(members) < 2 {
			delete(groups, d)
		}
	}
	return groups
}

func sortedKeys(groups DigestGroups) []string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func sortedSizes(buckets SizeBuckets) []uint64 {
	sizes := make([]uint64, 0, len(buckets))
	for s := range buckets {
		sizes = append(sizes, s)
	}
	slices.Sort(sizes)
	return sizes
}
