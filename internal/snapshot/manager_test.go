package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/michaelscutari/dupe/internal/db"
	"github.com/michaelscutari/dupe/internal/logging"
	"github.com/michaelscutari/dupe/internal/scan"
)

func writeFile(t *testing.T, root, rel, data string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
}

func TestManagerRunScanCreatesLatestAndRetention(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.pdf", "hello")
	writeFile(t, root, "copy/a.pdf", "hello")

	outDir := t.TempDir()
	mgr := NewManager(outDir, 1, logging.Component(logging.Discard(), "snapshot"))
	opts := scan.DefaultOptions().WithWorkers(1)

	ctx := context.Background()
	first, err := mgr.RunScan(ctx, root, opts)
	if err != nil {
		t.Fatalf("first scan: %v", err)
	}
	if _, err := os.Stat(first.Path); err != nil {
		t.Fatalf("first db missing: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(first.Path), "dupe-") {
		t.Fatalf("unexpected report name %s", first.Path)
	}
	if len(first.Groups) != 1 || first.Meta.Reclaimable != 5 {
		t.Fatalf("unexpected result: %+v", first)
	}

	latest := filepath.Join(outDir, "latest.db")
	if info, err := os.Lstat(latest); err == nil && (info.Mode()&os.ModeSymlink != 0) {
		resolved, err := mgr.GetLatest()
		if err != nil {
			t.Fatalf("resolve latest: %v", err)
		}
		firstResolved, err := filepath.EvalSymlinks(first.Path)
		if err != nil {
			t.Fatalf("resolve first db: %v", err)
		}
		if resolved != firstResolved {
			t.Fatalf("latest does not point to first db: %s", resolved)
		}
	}

	time.Sleep(1100 * time.Millisecond)

	second, err := mgr.RunScan(ctx, root, opts)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if _, err := os.Stat(second.Path); err != nil {
		t.Fatalf("second db missing: %v", err)
	}

	if _, err := os.Stat(first.Path); err == nil {
		t.Fatalf("expected first db to be pruned")
	}
	reports, err := mgr.ListReports()
	if err != nil {
		t.Fatalf("list reports: %v", err)
	}
	if len(reports) != 1 || reports[0] != second.Path {
		t.Fatalf("expected only the second report, got %v", reports)
	}
}

func TestManagerReportContents(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "x/one.pdf", "same content")
	writeFile(t, root, "y/two.pdf", "same content")
	writeFile(t, root, "z/other.pdf", "different!!!")
	writeFile(t, root, "notes.txt", "same content")

	mgr := NewManager(t.TempDir(), 0, logging.Component(logging.Discard(), "snapshot"))
	var stages []string
	mgr.SetStageFunc(func(s string) { stages = append(stages, s) })

	res, err := mgr.RunScan(context.Background(), root, scan.DefaultOptions().WithAlgorithm("sha256"))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(stages) == 0 || stages[len(stages)-1] != "finalize" {
		t.Fatalf("unexpected stages %v", stages)
	}

	database, err := sql.Open("sqlite", res.Path)
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer database.Close()

	meta, err := db.GetScanMeta(database)
	if err != nil {
		t.Fatalf("get meta: %v", err)
	}
	if meta.Algorithm != "sha256" || meta.FileCount != 3 || meta.GroupCount != 1 || meta.DupeFiles != 2 {
		t.Fatalf("unexpected meta: %+v", meta)
	}

	groups, err := db.LoadGroupsFull(database)
	if err != nil {
		t.Fatalf("load groups: %v", err)
	}
	if len(groups) != 1 || len(groups[0].Paths) != 2 || groups[0].Digest != res.Groups[0].Digest {
		t.Fatalf("unexpected groups: %+v", groups)
	}
}

func TestManagerRejectsBadRoot(t *testing.T) {
	outDir := t.TempDir()
	mgr := NewManager(outDir, 0, logging.Component(logging.Discard(), "snapshot"))

	_, err := mgr.RunScan(context.Background(), filepath.Join(outDir, "missing"), nil)
	if !errors.Is(err, scan.ErrRoot) {
		t.Fatalf("expected ErrRoot, got %v", err)
	}
	reports, err := mgr.ListReports()
	if err != nil {
		t.Fatalf("list reports: %v", err)
	}
	if len(reports) != 0 {
		t.Fatalf("expected no reports, got %v", reports)
	}
}

func TestManagerLockIsExclusive(t *testing.T) {
	outDir := t.TempDir()
	holder := NewManager(outDir, 0, nil)
	if err := holder.acquireLock(); err != nil {
		t.Fatalf("acquire lock: %v", err)
	}
	defer holder.releaseLock()

	other := NewManager(outDir, 0, logging.Component(logging.Discard(), "snapshot"))
	_, err := other.RunScan(context.Background(), t.TempDir(), nil)
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}
