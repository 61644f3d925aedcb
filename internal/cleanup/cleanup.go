package cleanup

import (
	"cmp"
	"fmt"
	"os"
	"slices"
	"time"
)

// Member is a file of a duplicate group as shown for selection.
type Member struct {
	Path    string
	Size    int64
	ModTime time.Time // zero if unknown
}

// Selection is a set of paths marked for deletion.
type Selection map[string]bool

// SortNewestFirst orders members by modification time, newest first. Members
// with equal times keep path order.
func SortNewestFirst(members []Member) {
	slices.SortStableFunc(members, func(a, b Member) int {
		if c := b.ModTime.Compare(a.ModTime); c != 0 {
			return c
		}
		return cmp.Compare(a.Path, b.Path)
	})
}

// SelectAllExceptNewest marks every member except the most recently modified.
func SelectAllExceptNewest(members []Member) Selection {
	return selectAllExcept(members, func(a, b Member) bool { return a.ModTime.After(b.ModTime) })
}

// SelectAllExceptOldest marks every member except the least recently modified.
func SelectAllExceptOldest(members []Member) Selection {
	return selectAllExcept(members, func(a, b Member) bool { return a.ModTime.Before(b.ModTime) })
}

// selectAllExcept keeps the first member for which better holds against all
// others and marks the rest.
func selectAllExcept(members []Member, better func(a, b Member) bool) Selection {
	sel := make(Selection)
	if len(members) == 0 {
		return sel
	}
	keep := 0
	for i := 1; i < len(members); i++ {
		if better(members[i], members[keep]) {
			keep = i
		}
	}
	for i, m := range members {
		if i != keep {
			sel[m.Path] = true
		}
	}
	return sel
}

// Toggle flips the selection state of path.
func (s Selection) Toggle(path string) {
	if s[path] {
		delete(s, path)
		return
	}
	s[path] = true
}

// Paths returns the selected paths in lexical order.
func (s Selection) Paths() []string {
	out := make([]string, 0, len(s))
	for p, ok := range s {
		if ok {
			out = append(out, p)
		}
	}
	slices.Sort(out)
	return out
}

// SelectionSize returns the total size of the selected members.
func SelectionSize(members []Member, sel Selection) int64 {
	var total int64
	for _, m := range members {
		if sel[m.Path] {
			total += m.Size
		}
	}
	return total
}

// DeleteError records a file that could not be removed.
type DeleteError struct {
	Path string
	Err  error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("delete %s: %v", e.Path, e.Err)
}

func (e *DeleteError) Unwrap() error {
	return e.Err
}

// DeleteFiles removes every path and returns how many were deleted. A failure
// is recorded and the remaining paths are still attempted.
func DeleteFiles(paths []string) (int, []error) {
	deleted := 0
	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil {
			errs = append(errs, &DeleteError{Path: p, Err: err})
			continue
		}
		deleted++
	}
	return deleted, errs
}
