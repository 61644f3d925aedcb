package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/michaelscutari/dupe/internal/entry"
)

// GroupRow is a stored duplicate group.
type GroupRow struct {
	ID          int64
	Digest      string
	Size        int64 // size of each member
	Count       int64
	Reclaimable int64 // Size * (Count - 1)
}

// Member is a file of a stored group.
type Member struct {
	Path    string
	Size    int64
	ModTime time.Time // zero if unknown
}

// ErrGroupNotFound is returned when a digest has no stored group.
var ErrGroupNotFound = errors.New("group not found")

// LoadGroups loads groups ordered by sortBy: "reclaim" (default), "size"
// or "count". A non-positive limit loads every group.
func LoadGroups(db *sql.DB, sortBy string, limit int) ([]GroupRow, error) {
	orderClause := "reclaimable DESC, digest ASC"
	switch sortBy {
	case "size":
		orderClause = "size DESC, digest ASC"
	case "count":
		orderClause = "member_count DESC, digest ASC"
	case "reclaim", "":
	}
	if limit <= 0 {
		limit = -1
	}

	query := fmt.Sprintf(`
		SELECT id, digest, size, member_count, size * (member_count - 1) AS reclaimable
		FROM dup_groups
		ORDER BY %s
		LIMIT ?
	`, orderClause)

	rows, err := db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cache := getGroupCache(db)
	var groups []GroupRow
	for rows.Next() {
		var g GroupRow
		if err := rows.Scan(&g.ID, &g.Digest, &g.Size, &g.Count, &g.Reclaimable); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		cache.Set(g.Digest, g.ID)
		groups = append(groups, g)
	}

	return groups, rows.Err()
}

// LoadMembers loads the files of a group in stored order. Modification times
// come from the files table.
func LoadMembers(db *sql.DB, groupID int64) ([]Member, error) {
	rows, err := db.Query(`
		SELECT m.path, g.size, COALESCE(f.mtime, 0)
		FROM group_members m
		JOIN dup_groups g ON g.id = m.group_id
		LEFT JOIN files f ON f.path = m.path
		WHERE m.group_id = ?
		ORDER BY m.position
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		var mtime int64
		if err := rows.Scan(&m.Path, &m.Size, &mtime); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		if mtime > 0 {
			m.ModTime = time.UnixMilli(mtime)
		}
		members = append(members, m)
	}

	return members, rows.Err()
}

// GroupByDigest returns the stored group with the given digest.
func GroupByDigest(db *sql.DB, digest string) (*GroupRow, error) {
	var id int64
	cache := getGroupCache(db)
	if cachedID, ok := cache.Get(digest); ok {
		id = cachedID
	} else if err := db.QueryRow(`SELECT id FROM dup_groups WHERE digest = ?`, digest).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	} else {
		cache.Set(digest, id)
	}

	var g GroupRow
	err := db.QueryRow(`
		SELECT id, digest, size, member_count, size * (member_count - 1)
		FROM dup_groups WHERE id = ?
	`, id).Scan(&g.ID, &g.Digest, &g.Size, &g.Count, &g.Reclaimable)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// LoadGroupsFull loads every group with its member paths, largest first.
func LoadGroupsFull(db *sql.DB) ([]entry.DuplicateGroup, error) {
	rows, err := db.Query(`
		SELECT g.digest, g.size, m.path
		FROM dup_groups g
		JOIN group_members m ON m.group_id = g.id
		ORDER BY g.size DESC, g.digest ASC, m.position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var groups []entry.DuplicateGroup
	for rows.Next() {
		var d, p string
		var size int64
		if err := rows.Scan(&d, &size, &p); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		if n := len(groups); n == 0 || groups[n-1].Digest != d {
			groups = append(groups, entry.DuplicateGroup{Digest: d, Size: uint64(size)})
		}
		last := &groups[len(groups)-1]
		last.Paths = append(last.Paths, p)
	}
	return groups, rows.Err()
}

// LoadErrors returns up to limit sampled scan errors.
func LoadErrors(db *sql.DB, limit int) ([]entry.ScanError, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`SELECT path, phase, message FROM scan_errors ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []entry.ScanError
	for rows.Next() {
		var e entry.ScanError
		var phase string
		if err := rows.Scan(&e.Path, &phase, &e.Message); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		e.Phase = entry.Phase(phase)
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetScanMeta retrieves scan metadata.
func GetScanMeta(db *sql.DB) (*entry.ScanMeta, error) {
	var m entry.ScanMeta
	var startTime, endTime int64

	err := db.QueryRow(`
		SELECT root_path, algorithm, start_time, COALESCE(end_time, 0), file_count, group_count, dupe_files, reclaimable, error_count
		FROM scan_meta WHERE id = 1
	`).Scan(&m.RootPath, &m.Algorithm, &startTime, &endTime, &m.FileCount, &m.GroupCount, &m.DupeFiles, &m.Reclaimable, &m.ErrorCount)

	if err != nil {
		return nil, err
	}

	m.StartTime = time.Unix(startTime, 0)
	if endTime > 0 {
		m.EndTime = time.Unix(endTime, 0)
	}

	return &m, nil
}
