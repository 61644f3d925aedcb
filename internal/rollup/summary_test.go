package rollup

import (
	"testing"

	"github.com/michaelscutari/dupe/internal/entry"
)

func TestSummarize(t *testing.T) {
	groups := []entry.DuplicateGroup{
		{Digest: "a", Size: 100, Paths: []string{"/r/1", "/r/2", "/r/3"}},
		{Digest: "b", Size: 10, Paths: []string{"/r/4", "/r/5"}},
	}

	s := Summarize(groups)
	if s.Groups != 2 || s.DupeFiles != 5 {
		t.Fatalf("unexpected counts: %+v", s)
	}
	if s.TotalBytes != 320 {
		t.Fatalf("expected 320 total bytes, got %d", s.TotalBytes)
	}
	if s.Reclaimable != 210 {
		t.Fatalf("expected 210 reclaimable bytes, got %d", s.Reclaimable)
	}

	if got := GroupReclaimable(entry.DuplicateGroup{Size: 5, Paths: []string{"/x"}}); got != 0 {
		t.Fatalf("single member group should reclaim nothing, got %d", got)
	}
	if empty := Summarize(nil); empty != (Summary{}) {
		t.Fatalf("expected zero summary, got %+v", empty)
	}
}

func TestByDirectory(t *testing.T) {
	groups := []entry.DuplicateGroup{
		{Digest: "a", Size: 100, Paths: []string{"/r/keep.pdf", "/r/x/copy.pdf", "/r/x/y/copy.pdf"}},
		{Digest: "b", Size: 7, Paths: []string{"/r/x/b.pdf", "/r/z/b.pdf"}},
	}

	dirs := ByDirectory("/r", groups)
	byPath := make(map[string]DirRollup)
	for _, d := range dirs {
		byPath[d.Path] = d
	}

	tests := []struct {
		path        string
		copies      int64
		reclaimable int64
	}{
		{"/r", 3, 207},
		{"/r/x", 2, 200},
		{"/r/x/y", 1, 100},
		{"/r/z", 1, 7},
	}
	for _, tt := range tests {
		got, ok := byPath[tt.path]
		if !ok {
			t.Fatalf("missing rollup for %s", tt.path)
		}
		if got.Copies != tt.copies || got.Reclaimable != tt.reclaimable {
			t.Fatalf("%s: got %+v, want copies=%d reclaimable=%d", tt.path, got, tt.copies, tt.reclaimable)
		}
	}
	if len(dirs) != len(tests) {
		t.Fatalf("expected %d rollups, got %d", len(tests), len(dirs))
	}
	if dirs[0].Path != "/r" {
		t.Fatalf("expected root first, got %s", dirs[0].Path)
	}
}
