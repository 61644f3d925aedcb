package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/michaelscutari/dupe/internal/db"
	"github.com/michaelscutari/dupe/internal/digest"
	"github.com/michaelscutari/dupe/internal/dupes"
	"github.com/michaelscutari/dupe/internal/entry"
	"github.com/michaelscutari/dupe/internal/logging"
	"github.com/michaelscutari/dupe/internal/scan"

	_ "modernc.org/sqlite"
)

func main() {
	dir := flag.String("dir", ".", "Directory to probe")
	ext := flag.String("ext", scan.DefaultExtension, "Document extension to match")
	workers := flag.Int("workers", 8, "Concurrent hash workers")
	algos := flag.String("algos", digest.DefaultAlgorithm, "Comma-separated digest algorithms to compare, or \"all\"")
	sqliteOut := flag.String("sqlite-out", "", "Also time writing the groups to a temp report in this directory")
	verbose := flag.Bool("verbose", false, "Log skipped files")
	flag.Parse()

	log := logging.New(os.Stderr, *verbose)
	ctx := context.Background()

	// Walk and bucket once; every algorithm hashes the same candidates.
	opts := scan.DefaultOptions().WithWorkers(*workers).WithExtension(*ext)
	finder, err := dupes.NewFinder(opts, logging.Component(log, "dupes"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	start := time.Now()
	entries, err := finder.Walk(ctx, *dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "walk error: %v\n", err)
		os.Exit(1)
	}
	buckets := finder.BucketBySize(entries)
	walkDur := time.Since(start)
	st := finder.Stats()

	fmt.Printf("dir=%s ext=%s workers=%d\n", *dir, *ext, *workers)
	fmt.Printf("walk+bucket: %v files=%d candidates=%d buckets=%d skipped=%d\n",
		walkDur, st.Files, st.Candidates, len(buckets), st.Errors)
	if walkDur.Seconds() > 0 {
		fmt.Printf("throughput:  %.0f files/sec\n", float64(st.Files)/walkDur.Seconds())
	}

	var lastGroups []entry.DuplicateGroup
	names := strings.Split(*algos, ",")
	if *algos == "all" {
		names = digest.Names()
	}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		f, err := dupes.NewFinder(scan.DefaultOptions().WithWorkers(*workers).WithExtension(*ext).WithAlgorithm(name), logging.Component(log, "dupes"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

		var partialDur, fullDur time.Duration
		full := make(map[string]*dupes.FullGroup)
		for size, paths := range buckets {
			t0 := time.Now()
			partial := f.PartialGroups(ctx, size, paths)
			t1 := time.Now()
			f.Verify(ctx, size, partial, full)
			partialDur += t1.Sub(t0)
			fullDur += time.Since(t1)
		}
		t0 := time.Now()
		groups := dupes.Assemble(full)
		assembleDur := time.Since(t0)
		hs := f.Stats()

		fmt.Printf("\n[%s]\n", f.Algorithm().Name)
		fmt.Printf("partial:  %v files=%d\n", partialDur, hs.PartialHashed)
		fmt.Printf("full:     %v files=%d\n", fullDur, hs.FullHashed)
		fmt.Printf("assemble: %v groups=%d\n", assembleDur, len(groups))
		fmt.Printf("read:     %s errors=%d\n", humanize.Bytes(uint64(hs.BytesRead)), hs.Errors)
		if total := partialDur + fullDur; total.Seconds() > 0 {
			fmt.Printf("hashing:  %s/sec\n", humanize.Bytes(uint64(float64(hs.BytesRead)/total.Seconds())))
		}
		lastGroups = groups
	}

	if *sqliteOut != "" {
		if err := benchReport(*sqliteOut, lastGroups); err != nil {
			fmt.Fprintf(os.Stderr, "report error: %v\n", err)
			os.Exit(1)
		}
	}
}

func benchReport(outDir string, groups []entry.DuplicateGroup) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}
	dbPath := filepath.Join(outDir, fmt.Sprintf(".dupebench-%d.db", time.Now().UnixNano()))
	database, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}
	defer func() {
		database.Close()
		os.Remove(dbPath)
	}()

	if err := db.InitSchema(database); err != nil {
		return err
	}
	if err := db.ApplyWritePragmas(database); err != nil {
		return err
	}

	start := time.Now()
	if err := db.WriteGroups(database, groups); err != nil {
		return err
	}
	writeDur := time.Since(start)

	start = time.Now()
	if err := db.BuildIndexes(database); err != nil {
		return err
	}
	indexDur := time.Since(start)

	members := 0
	for _, g := range groups {
		members += len(g.Paths)
	}
	fmt.Printf("\nsqlite: groups=%d members=%d write=%v index=%v\n", len(groups), members, writeDur, indexDur)
	return nil
}
