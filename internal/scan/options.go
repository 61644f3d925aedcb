package scan

import (
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"

	"github.com/michaelscutari/dupe/internal/digest"
	"github.com/michaelscutari/dupe/internal/entry"
	"github.com/michaelscutari/dupe/internal/pathutil"
)

// DefaultExtension is the document extension selected by the walker.
const DefaultExtension = "pdf"

// DefaultExcludeNames lists directory names that are never descended into.
var DefaultExcludeNames = []string{"Android", "data"}

// ErrorFunc receives entries skipped during a scan. It may be called from
// several goroutines at once.
type ErrorFunc func(entry.ScanError)

// ScanOptions configures the scanning behavior.
type ScanOptions struct {
	// Workers is the number of concurrent directory readers and file hashers.
	Workers int

	// Extension selects regular files by extension, without the dot.
	Extension string

	// ExcludeNames are directory names pruned before descending.
	ExcludeNames []string

	// ExcludePatterns are regular expressions for paths to skip.
	ExcludePatterns []*regexp.Regexp

	// Algorithm names the digest used by both fingerprint phases.
	Algorithm string

	// OnError is notified of every skipped entry.
	OnError ErrorFunc
}

// DefaultOptions returns sensible defaults for scanning.
func DefaultOptions() *ScanOptions {
	return &ScanOptions{
		Workers:      runtime.NumCPU(),
		Extension:    DefaultExtension,
		ExcludeNames: slices.Clone(DefaultExcludeNames),
		Algorithm:    digest.DefaultAlgorithm,
	}
}

// WithWorkers sets the number of workers.
func (o *ScanOptions) WithWorkers(n int) *ScanOptions {
	if n < 1 {
		n = 1
	}
	o.Workers = n
	return o
}

// WithExtension sets the target extension.
func (o *ScanOptions) WithExtension(ext string) *ScanOptions {
	o.Extension = strings.TrimPrefix(ext, ".")
	return o
}

// WithExcludeNames replaces the excluded directory names.
func (o *ScanOptions) WithExcludeNames(names ...string) *ScanOptions {
	o.ExcludeNames = names
	return o
}

// WithAlgorithm sets the digest algorithm name.
func (o *ScanOptions) WithAlgorithm(name string) *ScanOptions {
	o.Algorithm = name
	return o
}

// WithErrorFunc sets the callback for skipped entries.
func (o *ScanOptions) WithErrorFunc(f ErrorFunc) *ScanOptions {
	o.OnError = f
	return o
}

// AddExcludePattern adds a pattern to exclude.
func (o *ScanOptions) AddExcludePattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	o.ExcludePatterns = append(o.ExcludePatterns, re)
	return nil
}

// ShouldExclude checks if a path matches any exclude pattern.
func (o *ScanOptions) ShouldExclude(path string) bool {
	for _, re := range o.ExcludePatterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// ShouldPrune reports whether the directory at path, named name, is skipped
// along with everything below it.
func (o *ScanOptions) ShouldPrune(name, path string) bool {
	if pathutil.IsHidden(name) {
		return true
	}
	if slices.Contains(o.ExcludeNames, name) {
		return true
	}
	return o.ShouldExclude(path)
}

// Match reports whether a regular file at path is a candidate. Hidden files
// are dropped like hidden directories.
func (o *ScanOptions) Match(path string) bool {
	if pathutil.IsHidden(filepath.Base(path)) {
		return false
	}
	return pathutil.HasExtension(path, o.Extension) && !o.ShouldExclude(path)
}

func (o *ScanOptions) report(path string, phase entry.Phase, err error) {
	if o.OnError == nil {
		return
	}
	o.OnError(entry.ScanError{Path: path, Phase: phase, Message: err.Error()})
}
