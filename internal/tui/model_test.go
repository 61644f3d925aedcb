package tui

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/michaelscutari/dupe/internal/db"
	"github.com/michaelscutari/dupe/internal/entry"
	"github.com/michaelscutari/dupe/internal/logging"

	tea "github.com/charmbracelet/bubbletea"
	_ "modernc.org/sqlite"
)

func setupReport(t *testing.T) (*sql.DB, []string) {
	t.Helper()
	dir := t.TempDir()
	database, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	database.SetMaxOpenConns(1)
	t.Cleanup(func() { database.Close() })

	if err := db.InitSchema(database); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	if err := db.InitScanMeta(database, dir, "md5", time.Now()); err != nil {
		t.Fatalf("init meta: %v", err)
	}

	var paths []string
	base := time.Unix(1700000000, 0)
	for i, name := range []string{"old.pdf", "mid.pdf", "new.pdf"} {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("same"), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
		mtime := base.Add(time.Duration(i) * time.Hour).UnixMilli()
		if _, err := database.Exec(`INSERT INTO files (path, size, mtime) VALUES (?, ?, ?)`, p, 4, mtime); err != nil {
			t.Fatalf("insert file: %v", err)
		}
		paths = append(paths, p)
	}

	groups := []entry.DuplicateGroup{{Digest: "d41d8cd98f00b204e9800998ecf8427e", Size: 4, Paths: paths}}
	if err := db.WriteGroups(database, groups); err != nil {
		t.Fatalf("write groups: %v", err)
	}
	if err := db.FinalizeScanMeta(database, entry.ScanMeta{EndTime: time.Now(), FileCount: 3, GroupCount: 1, DupeFiles: 3, Reclaimable: 8}); err != nil {
		t.Fatalf("finalize meta: %v", err)
	}
	return database, paths
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends a key and runs the resulting command once.
func press(t *testing.T, m *Model, k string) {
	t.Helper()
	_, cmd := m.Update(key(k))
	if cmd != nil {
		m.Update(cmd())
	}
}

func TestModelKeepNewestAndDelete(t *testing.T) {
	database, paths := setupReport(t)
	m := NewModel(database, logging.Component(logging.Discard(), "tui"))
	m.Update(m.Init()())
	if m.err != nil {
		t.Fatalf("load: %v", m.err)
	}
	if len(m.groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(m.groups))
	}

	press(t, m, "enter")
	if m.mode != modeMembers || len(m.members) != 3 {
		t.Fatalf("expected member view with 3 members, mode=%d members=%d", m.mode, len(m.members))
	}
	if m.members[0].Path != paths[2] {
		t.Fatalf("expected newest member first, got %s", m.members[0].Path)
	}

	press(t, m, "n")
	if len(m.selection) != 2 || m.selection[paths[2]] {
		t.Fatalf("expected all but newest selected, got %v", m.selection.Paths())
	}
	if m.selectionSize() != 8 {
		t.Fatalf("expected 8 selected bytes, got %d", m.selectionSize())
	}

	press(t, m, "x")
	if m.mode != modeConfirm {
		t.Fatalf("expected confirmation prompt")
	}
	press(t, m, "y")
	if m.mode != modeGroups {
		t.Fatalf("expected group view after delete, got mode %d", m.mode)
	}

	for _, p := range paths[:2] {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("expected %s to be deleted", p)
		}
	}
	if _, err := os.Stat(paths[2]); err != nil {
		t.Fatalf("newest copy should remain: %v", err)
	}

	// deleting down to one copy dissolves the group
	press(t, m, "r")
	if len(m.groups) != 0 {
		t.Fatalf("expected no groups left, got %+v", m.groups)
	}
}

func TestModelRefusesToDeleteEveryCopy(t *testing.T) {
	database, paths := setupReport(t)
	m := NewModel(database, logging.Component(logging.Discard(), "tui"))
	m.Update(m.Init()())
	press(t, m, "enter")

	for range paths {
		press(t, m, " ")
		press(t, m, "j")
	}
	if len(m.selection) != 3 {
		t.Fatalf("expected every member selected, got %v", m.selection.Paths())
	}
	press(t, m, "x")
	if m.mode != modeMembers {
		t.Fatalf("expected to stay in member view, got mode %d", m.mode)
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("%s should not be deleted: %v", p, err)
		}
	}

	press(t, m, "c")
	if len(m.selection) != 0 {
		t.Fatalf("expected cleared selection")
	}
	press(t, m, "o")
	if len(m.selection) != 2 || m.selection[paths[0]] {
		t.Fatalf("expected all but oldest selected, got %v", m.selection.Paths())
	}
}
