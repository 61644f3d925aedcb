package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/michaelscutari/dupe/internal/db"
	"github.com/michaelscutari/dupe/internal/dupes"
	"github.com/michaelscutari/dupe/internal/entry"
	"github.com/michaelscutari/dupe/internal/pathutil"
	"github.com/michaelscutari/dupe/internal/rollup"
	"github.com/michaelscutari/dupe/internal/scan"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	_ "modernc.org/sqlite"
)

const (
	reportPrefix = "dupe-"
	reportSuffix = ".db"
	latestName   = "latest.db"
	lockName     = ".dupe.lock"
)

// ErrLocked is returned when another scan holds the output directory lock.
var ErrLocked = errors.New("another scan is in progress")

// ProgressFunc is called periodically with current pipeline counters.
type ProgressFunc func(stats dupes.Stats)

// StageFunc is called when the scan stage changes.
type StageFunc func(stage string)

// Result describes a finished scan.
type Result struct {
	Path   string // report file, empty when nothing was saved
	Groups []entry.DuplicateGroup
	Meta   entry.ScanMeta
}

// Manager handles the report lifecycle including locking and retention.
type Manager struct {
	outputDir    string
	retention    int
	maxErrors    int
	lockFile     *os.File
	progressFunc ProgressFunc
	stageFunc    StageFunc
	indexMode    string
	sqliteTmpDir string
	log          *logrus.Entry
}

// NewManager creates a new report manager.
func NewManager(outputDir string, retention int, log *logrus.Entry) *Manager {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Manager{
		outputDir: outputDir,
		retention: retention,
		log:       log,
	}
}

// SetProgressFunc sets a callback for progress updates during scan.
func (m *Manager) SetProgressFunc(f ProgressFunc) {
	m.progressFunc = f
}

// SetStageFunc sets a callback for scan stage updates.
func (m *Manager) SetStageFunc(f StageFunc) {
	m.stageFunc = f
}

// SetIndexMode sets the index build mode: memory|disk|skip.
func (m *Manager) SetIndexMode(mode string) {
	m.indexMode = mode
}

// SetSQLiteTmpDir sets the temp directory for SQLite during index build.
func (m *Manager) SetSQLiteTmpDir(dir string) {
	m.sqliteTmpDir = dir
}

// SetMaxErrors stops the scan once n entries were skipped. Zero means no limit.
func (m *Manager) SetMaxErrors(n int) {
	m.maxErrors = n
}

func (m *Manager) stage(s string) {
	if m.stageFunc != nil {
		m.stageFunc(s)
	}
}

// RunScan finds duplicates below root and stores them in a new report.
func (m *Manager) RunScan(ctx context.Context, root string, opts *scan.ScanOptions) (*Result, error) {
	if opts == nil {
		opts = scan.DefaultOptions()
	}

	// Ensure output directory exists
	if err := os.MkdirAll(m.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := m.acquireLock(); err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer m.releaseLock()

	tempPath := filepath.Join(m.outputDir, fmt.Sprintf(".dupe-temp-%d.db", time.Now().UnixNano()))
	database, err := sql.Open("sqlite", tempPath)
	if err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	fail := func(format string, err error) (*Result, error) {
		database.Close()
		os.Remove(tempPath)
		return nil, fmt.Errorf(format, err)
	}

	if err := db.InitSchema(database); err != nil {
		return fail("failed to initialize schema: %w", err)
	}
	if err := db.ApplyWritePragmas(database); err != nil {
		return fail("failed to apply pragmas: %w", err)
	}

	res, err := m.scanInto(ctx, database, root, opts)
	if err != nil {
		return fail("scan failed: %w", err)
	}

	// Build indexes
	if m.indexMode == "" {
		m.indexMode = "memory"
	}
	if m.indexMode != "skip" {
		m.stage("indexes")
		if err := db.ApplyIndexPragmas(database, m.indexMode == "disk", m.sqliteTmpDir); err != nil {
			return fail("failed to apply index pragmas: %w", err)
		}
		if err := db.BuildIndexes(database); err != nil {
			return fail("failed to build indexes: %w", err)
		}
	}

	m.stage("finalize")
	if err := db.Finalize(database); err != nil {
		return fail("failed to finalize database: %w", err)
	}
	database.Close()

	// Atomic rename to final location
	finalName := fmt.Sprintf("%s%s%s", reportPrefix, time.Now().Format("20060102-150405"), reportSuffix)
	finalPath := filepath.Join(m.outputDir, finalName)
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("failed to rename database: %w", err)
	}
	res.Path = finalPath

	// Update latest.db symlink atomically via temp symlink + rename
	latestPath := filepath.Join(m.outputDir, latestName)
	tempLink := filepath.Join(m.outputDir, ".latest.db.tmp")
	os.Remove(tempLink)
	if err := os.Symlink(finalName, tempLink); err == nil {
		if err := os.Rename(tempLink, latestPath); err != nil {
			os.Remove(tempLink)
			m.log.WithError(err).Warn("failed to update latest.db symlink")
		}
	} else {
		m.log.WithError(err).Warn("failed to create latest.db symlink")
	}

	if err := m.pruneOldReports(); err != nil {
		m.log.WithError(err).Warn("failed to prune old reports")
	}

	m.log.WithFields(logrus.Fields{
		"report": finalPath,
		"groups": len(res.Groups),
	}).Info("report saved")
	return res, nil
}

// scanInto runs the pipeline while an ingester streams candidate files and
// skipped entries into database, then stores the groups and totals.
func (m *Manager) scanInto(ctx context.Context, database *sql.DB, root string, opts *scan.ScanOptions) (*Result, error) {
	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}
	absRoot = pathutil.Normalize(absRoot)

	fileCh := make(chan entry.FileEntry, 1024)
	errorCh := make(chan entry.ScanError, 256)

	userOnError := opts.OnError
	fopts := *opts
	fopts.OnError = func(e entry.ScanError) {
		if userOnError != nil {
			userOnError(e)
		}
		select {
		case errorCh <- e:
		case <-scanCtx.Done():
		}
	}
	finder, err := dupes.NewFinder(&fopts, m.log.WithField("component", "dupes"))
	if err != nil {
		return nil, err
	}
	if err := db.InitScanMeta(database, absRoot, finder.Algorithm().Name, start); err != nil {
		return nil, fmt.Errorf("failed to init scan meta: %w", err)
	}

	ing := db.NewIngester(database, fileCh, errorCh, 1000, 200, m.maxErrors, cancel, m.log.WithField("component", "db"))

	var ingErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if ingErr = ing.Run(scanCtx); ingErr != nil {
			cancel()
		}
	}()

	finder.SetFileFunc(func(e entry.FileEntry) {
		select {
		case fileCh <- e:
		case <-scanCtx.Done():
		}
	})
	finder.SetStageFunc(func(s string) { m.stage(s) })

	progressDone := make(chan struct{})
	if m.progressFunc != nil {
		go func() {
			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-progressDone:
					return
				case <-ticker.C:
					m.progressFunc(finder.Stats())
				}
			}
		}()
	}

	groups, runErr := finder.Run(scanCtx, root)
	close(progressDone)
	close(fileCh)
	close(errorCh)
	wg.Wait()

	if runErr != nil {
		if ingErr != nil {
			return nil, ingErr
		}
		if ctx.Err() == nil && errors.Is(runErr, context.Canceled) {
			return nil, fmt.Errorf("stopped after %d errors: %w", ing.ErrorCount(), runErr)
		}
		return nil, runErr
	}
	if ingErr != nil {
		return nil, ingErr
	}

	m.stage("write")
	if err := db.WriteGroups(database, groups); err != nil {
		return nil, err
	}

	sum := rollup.Summarize(groups)
	meta := entry.ScanMeta{
		RootPath:    absRoot,
		Algorithm:   finder.Algorithm().Name,
		StartTime:   start,
		EndTime:     time.Now(),
		FileCount:   finder.Stats().Files,
		GroupCount:  sum.Groups,
		DupeFiles:   sum.DupeFiles,
		Reclaimable: sum.Reclaimable,
		ErrorCount:  ing.ErrorCount(),
	}
	if err := db.FinalizeScanMeta(database, meta); err != nil {
		return nil, fmt.Errorf("failed to finalize scan meta: %w", err)
	}

	return &Result{Groups: groups, Meta: meta}, nil
}

func (m *Manager) acquireLock() error {
	lockPath := filepath.Join(m.outputDir, lockName)
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return err
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return ErrLocked
	}

	m.lockFile = f
	return nil
}

func (m *Manager) releaseLock() {
	if m.lockFile != nil {
		unix.Flock(int(m.lockFile.Fd()), unix.LOCK_UN)
		m.lockFile.Close()
		m.lockFile = nil
	}
}

func (m *Manager) pruneOldReports() error {
	if m.retention <= 0 {
		return nil
	}

	reports, err := m.ListReports()
	if err != nil {
		return err
	}

	// Names carry the timestamp, so sorted order is chronological
	for len(reports) > m.retention {
		if err := os.Remove(reports[0]); err != nil {
			return fmt.Errorf("failed to remove %s: %w", filepath.Base(reports[0]), err)
		}
		reports = reports[1:]
	}

	return nil
}

// GetLatest returns the path to the latest report.
func (m *Manager) GetLatest() (string, error) {
	latestPath := filepath.Join(m.outputDir, latestName)
	resolved, err := filepath.EvalSymlinks(latestPath)
	if err != nil {
		return "", fmt.Errorf("no latest report found: %w", err)
	}
	return resolved, nil
}

// ListReports returns all available reports sorted by date.
func (m *Manager) ListReports() ([]string, error) {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return nil, err
	}

	var reports []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), reportPrefix) && strings.HasSuffix(e.Name(), reportSuffix) {
			reports = append(reports, filepath.Join(m.outputDir, e.Name()))
		}
	}

	sort.Strings(reports)
	return reports, nil
}
