package entry

import (
	"os"
	"time"
)

// Kind represents the type of filesystem entry.
type Kind uint8

const (
	KindFile    Kind = 0
	KindDir     Kind = 1
	KindSymlink Kind = 2
	KindOther   Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	case KindSymlink:
		return "symlink"
	default:
		return "other"
	}
}

// KindFromMode derives the Kind from an os.FileMode.
func KindFromMode(mode os.FileMode) Kind {
	switch {
	case mode.IsRegular():
		return KindFile
	case mode.IsDir():
		return KindDir
	case mode&os.ModeSymlink != 0:
		return KindSymlink
	default:
		return KindOther
	}
}

// FileEntry is a candidate file found during traversal.
type FileEntry struct {
	Path          string
	Size          uint64
	ModTimeMillis int64 // 0 if unavailable
}

// ModTime returns the modification time, or the zero time if unknown.
func (e FileEntry) ModTime() time.Time {
	if e.ModTimeMillis == 0 {
		return time.Time{}
	}
	return time.UnixMilli(e.ModTimeMillis)
}

// MillisFromTime converts a modification time to milliseconds since the epoch.
// Times before the epoch and the zero time map to 0.
func MillisFromTime(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	ms := t.UnixMilli()
	if ms < 0 {
		return 0
	}
	return ms
}

// DuplicateGroup is a set of two or more paths with identical content.
type DuplicateGroup struct {
	Digest string   `json:"digest"`
	Paths  []string `json:"paths"`
	Size   uint64   `json:"size"` // size of each member
}

// Phase names the pipeline stage that produced a ScanError.
type Phase string

const (
	PhaseWalk    Phase = "walk"
	PhaseStat    Phase = "stat"
	PhasePartial Phase = "partial"
	PhaseFull    Phase = "full"
)

// ScanError represents an error encountered during scanning.
type ScanError struct {
	Path    string
	Phase   Phase
	Message string
}

// ScanMeta holds metadata about a duplicate report.
type ScanMeta struct {
	RootPath    string
	Algorithm   string
	StartTime   time.Time
	EndTime     time.Time
	FileCount   int64 // files matching the extension filter
	GroupCount  int64
	DupeFiles   int64 // files that belong to some group
	Reclaimable int64 // bytes freed by keeping one file per group
	ErrorCount  int64
}
