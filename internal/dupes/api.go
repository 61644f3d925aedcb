package dupes

import (
	"context"

	"github.com/michaelscutari/dupe/internal/entry"
	"github.com/michaelscutari/dupe/internal/logging"
	"github.com/michaelscutari/dupe/internal/scan"
)

// These entry points use the fixed defaults: pdf files, hidden, Android and
// data directories pruned, md5 digests. Results are plain records; callers
// convert them to whatever representation they need.

// Scan returns every document below root.
func Scan(root string) ([]string, error) {
	files, err := ScanWithInfo(root)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	return paths, nil
}

// ScanWithInfo returns every document below root with its size and
// modification time.
func ScanWithInfo(root string) ([]entry.FileEntry, error) {
	f, err := NewFinder(scan.DefaultOptions(), logging.Component(logging.Discard(), "dupes"))
	if err != nil {
		return nil, err
	}
	return f.Collect(context.Background(), root)
}

// FindDuplicates returns the groups of byte-identical documents below root.
func FindDuplicates(root string) ([]entry.DuplicateGroup, error) {
	f, err := NewFinder(scan.DefaultOptions(), logging.Component(logging.Discard(), "dupes"))
	if err != nil {
		return nil, err
	}
	return f.Run(context.Background(), root)
}
