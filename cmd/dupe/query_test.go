package main

import (
	"bytes"
	"database/sql"
	"testing"

	"github.com/michaelscutari/dupe/internal/db"
	"github.com/michaelscutari/dupe/internal/entry"

	_ "modernc.org/sqlite"
)

func TestDumpGroups(t *testing.T) {
	database, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	database.SetMaxOpenConns(1)
	defer database.Close()

	if err := db.InitSchema(database); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	groups := []entry.DuplicateGroup{
		{Digest: "bbbb", Size: 500, Paths: []string{"/r/x.pdf", "/r/y.pdf"}},
		{Digest: "aaaa", Size: 100, Paths: []string{"/r/a.pdf", "/r/b.pdf"}},
	}
	if err := db.WriteGroups(database, groups); err != nil {
		t.Fatalf("write groups: %v", err)
	}

	var buf bytes.Buffer
	if err := dumpGroups(&buf, database); err != nil {
		t.Fatalf("dump: %v", err)
	}
	want := "bbbb\t500\t/r/x.pdf\n" +
		"bbbb\t500\t/r/y.pdf\n" +
		"aaaa\t100\t/r/a.pdf\n" +
		"aaaa\t100\t/r/b.pdf\n"
	if buf.String() != want {
		t.Fatalf("unexpected dump:\n%s", buf.String())
	}
}
