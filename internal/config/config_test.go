package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/michaelscutari/dupe/internal/digest"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.ini"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Scan.Extension != "pdf" || cfg.Digest.Algorithm != "md5" || cfg.Report.Retention != 5 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	opts, err := cfg.ScanOptions()
	if err != nil {
		t.Fatalf("scan options: %v", err)
	}
	if !opts.ShouldPrune("Android", "/r/Android") {
		t.Fatalf("default excludes should apply")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dupe.ini")
	data := `
[scan]
extension = .epub
exclude = Backups, node_modules
exclude_patterns = /tmp-[0-9]+/
workers = 3

[digest]
algorithm = blake3

[report]
out = /var/lib/dupe
retention = 2

[log]
verbose = true
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Scan.Extension != "epub" || cfg.Scan.Workers != 3 || len(cfg.Scan.Exclude) != 2 {
		t.Fatalf("unexpected scan config: %+v", cfg.Scan)
	}
	if cfg.Scan.Exclude[1] != "node_modules" {
		t.Fatalf("expected trimmed exclude names, got %q", cfg.Scan.Exclude)
	}
	if cfg.Digest.Algorithm != "blake3" || cfg.Report.Out != "/var/lib/dupe" || cfg.Report.Retention != 2 || !cfg.Log.Verbose {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	opts, err := cfg.ScanOptions()
	if err != nil {
		t.Fatalf("scan options: %v", err)
	}
	if opts.Workers != 3 || opts.Algorithm != "blake3" {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if opts.ShouldPrune("Android", "/r/Android") || !opts.ShouldPrune("Backups", "/r/Backups") {
		t.Fatalf("exclude names should replace the defaults")
	}
	if opts.Match("/r/tmp-1/book.epub") || !opts.Match("/r/book.EPUB") {
		t.Fatalf("unexpected match results")
	}
}

func TestLoadRejectsUnknownAlgorithm(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dupe.ini")
	if err := os.WriteFile(path, []byte("[digest]\nalgorithm = crc7\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); !errors.Is(err, digest.ErrUnknownAlgorithm) {
		t.Fatalf("expected ErrUnknownAlgorithm, got %v", err)
	}
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dupe.ini")
	cfg := Default()
	cfg.Scan.Exclude = []string{"Android", "data", "cache"}
	cfg.Digest.Algorithm = "sha256"
	cfg.Report.MaxErrors = 50
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Digest.Algorithm != "sha256" || len(got.Scan.Exclude) != 3 || got.Report.MaxErrors != 50 {
		t.Fatalf("unexpected config: %+v", got)
	}
}
