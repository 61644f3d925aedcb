package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/michaelscutari/dupe/internal/entry"
	"github.com/sirupsen/logrus"
)

const insertFileSQL = `INSERT INTO files (path, size, mtime) VALUES (?, ?, ?)`
const insertErrorSQL = `INSERT INTO scan_errors (path, phase, message) VALUES (?, ?, ?)`
const insertGroupSQL = `INSERT INTO dup_groups (digest, size, member_count) VALUES (?, ?, ?)`
const insertMemberSQL = `INSERT INTO group_members (group_id, path, position) VALUES (?, ?, ?)`

const maxErrorsSampled = 1000

// Ingester batches candidate files and skipped entries and writes them to the
// database while the pipeline runs.
type Ingester struct {
	db              *sql.DB
	fileCh          <-chan entry.FileEntry
	errorCh         <-chan entry.ScanError
	batchSize       int
	flushIntervalMs int
	maxErrors       int
	cancelFunc      context.CancelFunc
	log             *logrus.Entry

	fileBatch   []entry.FileEntry
	errorBatch  []entry.ScanError
	errorCount  int64
	errorCapped bool

	fileCount  int64
	totalBytes int64

	fileStmt  *sql.Stmt
	errorStmt *sql.Stmt
}

// Progress holds current ingestion progress.
type Progress struct {
	Files      int64
	Errors     int64
	TotalBytes int64
}

// NewIngester creates a new ingester. A positive maxErrors cancels the scan
// through cancelFunc once that many errors have arrived.
func NewIngester(db *sql.DB, fileCh <-chan entry.FileEntry, errorCh <-chan entry.ScanError, batchSize, flushIntervalMs, maxErrors int, cancelFunc context.CancelFunc, log *logrus.Entry) *Ingester {
	if batchSize < 1 {
		batchSize = 1
	}
	if flushIntervalMs < 1 {
		flushIntervalMs = 100
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Ingester{
		db:              db,
		fileCh:          fileCh,
		errorCh:         errorCh,
		batchSize:       batchSize,
		flushIntervalMs: flushIntervalMs,
		maxErrors:       maxErrors,
		cancelFunc:      cancelFunc,
		log:             log,
		fileBatch:       make([]entry.FileEntry, 0, batchSize),
		errorBatch:      make([]entry.ScanError, 0, 100),
	}
}

// Run consumes both channels and batches them to the database.
// It returns when both channels are closed.
func (ing *Ingester) Run(ctx context.Context) error {
	var err error
	ing.fileStmt, err = ing.db.Prepare(insertFileSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare file statement: %w", err)
	}
	defer ing.fileStmt.Close()

	ing.errorStmt, err = ing.db.Prepare(insertErrorSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare error statement: %w", err)
	}
	defer ing.errorStmt.Close()

	ticker := time.NewTicker(time.Duration(ing.flushIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	ing.log.WithFields(logrus.Fields{
		"batch":    ing.batchSize,
		"interval": ing.flushIntervalMs,
	}).Debug("ingester started")

	fileCh := ing.fileCh
	errorCh := ing.errorCh

	for fileCh != nil || errorCh != nil {
		select {
		case <-ctx.Done():
			ing.log.WithField("pending", len(ing.fileBatch)).Debug("ingester cancelled")
			return ing.flush()

		case f, ok := <-fileCh:
			if !ok {
				fileCh = nil
				continue
			}
			atomic.AddInt64(&ing.fileCount, 1)
			atomic.AddInt64(&ing.totalBytes, int64(f.Size))
			ing.fileBatch = append(ing.fileBatch, f)
			if len(ing.fileBatch) >= ing.batchSize {
				if err := ing.flushFiles(); err != nil {
					return err
				}
			}

		case e, ok := <-errorCh:
			if !ok {
				errorCh = nil
				continue
			}
			n := atomic.AddInt64(&ing.errorCount, 1)
			if ing.maxErrors > 0 && n >= int64(ing.maxErrors) {
				if ing.cancelFunc != nil {
					ing.cancelFunc()
				}
			}
			// Only sample first N errors to bound memory
			if !ing.errorCapped {
				ing.errorBatch = append(ing.errorBatch, e)
				if n >= maxErrorsSampled {
					ing.errorCapped = true
					if err := ing.flushErrors(); err != nil {
						return err
					}
				}
			}

		case <-ticker.C:
			if err := ing.flush(); err != nil {
				return err
			}
		}
	}

	ing.log.Debug("ingester inputs closed")
	return ing.flush()
}

func (ing *Ingester) flush() error {
	if err := ing.flushFiles(); err != nil {
		return err
	}
	return ing.flushErrors()
}

func (ing *Ingester) flushFiles() error {
	if len(ing.fileBatch) == 0 {
		return nil
	}

	batchLen := len(ing.fileBatch)
	flushStart := time.Now()

	tx, err := ing.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt := tx.Stmt(ing.fileStmt)
	for _, f := range ing.fileBatch {
		if _, err := stmt.Exec(f.Path, int64(f.Size), f.ModTimeMillis); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert file %q: %w", f.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	ing.log.WithFields(logrus.Fields{
		"files": batchLen,
		"took":  time.Since(flushStart),
	}).Trace("flushed files")

	ing.fileBatch = ing.fileBatch[:0]
	return nil
}

func (ing *Ingester) flushErrors() error {
	if len(ing.errorBatch) == 0 {
		return nil
	}

	tx, err := ing.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin error transaction: %w", err)
	}

	stmt := tx.Stmt(ing.errorStmt)
	for _, e := range ing.errorBatch {
		if _, err := stmt.Exec(e.Path, string(e.Phase), e.Message); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert error for %q: %w", e.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit error transaction: %w", err)
	}

	ing.errorBatch = ing.errorBatch[:0]
	return nil
}

// ErrorCount returns the total number of errors received.
func (ing *Ingester) ErrorCount() int64 {
	return atomic.LoadInt64(&ing.errorCount)
}

// Progress returns current progress (safe for concurrent access).
func (ing *Ingester) Progress() Progress {
	return Progress{
		Files:      atomic.LoadInt64(&ing.fileCount),
		Errors:     atomic.LoadInt64(&ing.errorCount),
		TotalBytes: atomic.LoadInt64(&ing.totalBytes),
	}
}

// WriteGroups stores duplicate groups in one transaction. Member positions
// follow the order of each group's paths.
func WriteGroups(db *sql.DB, groups []entry.DuplicateGroup) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin group transaction: %w", err)
	}

	groupStmt, err := tx.Prepare(insertGroupSQL)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare group statement: %w", err)
	}
	defer groupStmt.Close()

	memberStmt, err := tx.Prepare(insertMemberSQL)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare member statement: %w", err)
	}
	defer memberStmt.Close()

	for _, g := range groups {
		res, err := groupStmt.Exec(g.Digest, int64(g.Size), len(g.Paths))
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert group %s: %w", g.Digest, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to read group id: %w", err)
		}
		for i, p := range g.Paths {
			if _, err := memberStmt.Exec(id, p, i); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to insert member %q: %w", p, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit group transaction: %w", err)
	}
	return nil
}

// InitScanMeta records the start of a scan.
func InitScanMeta(db *sql.DB, rootPath, algorithm string, start time.Time) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO scan_meta (id, root_path, algorithm, start_time)
		VALUES (1, ?, ?, ?)
	`, rootPath, algorithm, start.Unix())
	return err
}

// FinalizeScanMeta records the totals of a finished scan.
func FinalizeScanMeta(db *sql.DB, m entry.ScanMeta) error {
	_, err := db.Exec(`
		UPDATE scan_meta SET
			end_time = ?,
			file_count = ?,
			group_count = ?,
			dupe_files = ?,
			reclaimable = ?,
			error_count = ?
		WHERE id = 1
	`, m.EndTime.Unix(), m.FileCount, m.GroupCount, m.DupeFiles, m.Reclaimable, m.ErrorCount)
	return err
}

// RemoveMembers drops deleted paths from the report. Groups left with fewer
// than two members are removed and the scan totals are recomputed.
func RemoveMembers(db *sql.DB, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, p := range paths {
		if _, err := tx.Exec(`DELETE FROM group_members WHERE path = ?`, p); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to remove member %q: %w", p, err)
		}
		if _, err := tx.Exec(`DELETE FROM files WHERE path = ?`, p); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to remove file %q: %w", p, err)
		}
	}

	stmts := []string{
		`UPDATE dup_groups SET member_count = (
			SELECT COUNT(*) FROM group_members m WHERE m.group_id = dup_groups.id
		)`,
		`DELETE FROM group_members WHERE group_id IN (SELECT id FROM dup_groups WHERE member_count < 2)`,
		`DELETE FROM dup_groups WHERE member_count < 2`,
		`UPDATE scan_meta SET
			file_count = (SELECT COUNT(*) FROM files),
			group_count = (SELECT COUNT(*) FROM dup_groups),
			dupe_files = (SELECT COALESCE(SUM(member_count), 0) FROM dup_groups),
			reclaimable = (SELECT COALESCE(SUM(size * (member_count - 1)), 0) FROM dup_groups)
		WHERE id = 1`,
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to update groups: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	getGroupCache(db).Reset()
	return nil
}
