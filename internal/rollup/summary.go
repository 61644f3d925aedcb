package rollup

import (
	"cmp"
	"path/filepath"
	"slices"
	"strings"

	"github.com/michaelscutari/dupe/internal/entry"
)

// Summary totals a set of duplicate groups.
type Summary struct {
	Groups      int64
	DupeFiles   int64 // files belonging to some group
	TotalBytes  int64 // bytes held by all members
	Reclaimable int64 // bytes freed by keeping one member per group
}

// GroupTotal returns the bytes held by every member of g.
func GroupTotal(g entry.DuplicateGroup) int64 {
	return int64(g.Size) * int64(len(g.Paths))
}

// GroupReclaimable returns the bytes freed by keeping a single member of g.
func GroupReclaimable(g entry.DuplicateGroup) int64 {
	if len(g.Paths) < 2 {
		return 0
	}
	return int64(g.Size) * int64(len(g.Paths)-1)
}

// Summarize totals groups.
func Summarize(groups []entry.DuplicateGroup) Summary {
	var s Summary
	for _, g := range groups {
		s.Groups++
		s.DupeFiles += int64(len(g.Paths))
		s.TotalBytes += GroupTotal(g)
		s.Reclaimable += GroupReclaimable(g)
	}
	return s
}

// DirRollup is the redundant data found below one directory.
type DirRollup struct {
	Path        string
	Copies      int64 // redundant copies below Path
	Reclaimable int64
}

// ByDirectory attributes every member but the first of each group to its
// directory and to each ancestor up to root. Paths outside root only count
// toward their own ancestors. Results are ordered by reclaimable bytes, then path.
func ByDirectory(root string, groups []entry.DuplicateGroup) []DirRollup {
	root = filepath.Clean(root)
	acc := make(map[string]*DirRollup)

	add := func(dir string, size int64) {
		r, ok := acc[dir]
		if !ok {
			r = &DirRollup{Path: dir}
			acc[dir] = r
		}
		r.Copies++
		r.Reclaimable += size
	}

	for _, g := range groups {
		if len(g.Paths) < 2 {
			continue
		}
		for _, p := range g.Paths[1:] {
			dir := filepath.Dir(filepath.Clean(p))
			for {
				add(dir, int64(g.Size))
				if dir == root || !within(root, dir) {
					break
				}
				parent := filepath.Dir(dir)
				if parent == dir {
					break
				}
				dir = parent
			}
		}
	}

	out := make([]DirRollup, 0, len(acc))
	for _, r := range acc {
		out = append(out, *r)
	}
	slices.SortFunc(out, func(a, b DirRollup) int {
		if c := cmp.Compare(b.Reclaimable, a.Reclaimable); c != 0 {
			return c
		}
		return cmp.Compare(a.Path, b.Path)
	})
	return out
}

func within(root, path string) bool {
	if root == string(filepath.Separator) {
		return true
	}
	return path == root || strings.HasPrefix(path, root+string(filepath.Separator))
}
