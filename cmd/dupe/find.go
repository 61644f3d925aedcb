package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/michaelscutari/dupe/internal/dupes"
	"github.com/michaelscutari/dupe/internal/entry"
	"github.com/michaelscutari/dupe/internal/logging"
	"github.com/michaelscutari/dupe/internal/rollup"
	"github.com/michaelscutari/dupe/internal/snapshot"
	"github.com/spf13/cobra"
)

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Find duplicate documents",
	Long: `Find groups of byte-identical documents below a root directory.
With --save the groups are stored in a SQLite report for later browsing.`,
	RunE: runFind,
}

var (
	findFlags     scanFlags
	findSave      bool
	findOut       string
	findRetention int
	findMaxErrors int
	findDirs      int
	findQuiet     bool
	findProgress  time.Duration
	findIndexMode string
	findSQLiteTmp string
)

func init() {
	findFlags.register(findCmd, true)
	findCmd.Flags().BoolVar(&findSave, "save", false, "Save the result as a report")
	findCmd.Flags().StringVarP(&findOut, "out", "o", "", "Output directory for reports (default from config, ./data)")
	findCmd.Flags().IntVar(&findRetention, "retention", -1, "Number of reports to retain (0 = unlimited, default from config)")
	findCmd.Flags().IntVar(&findMaxErrors, "max-errors", -1, "Stop after N skipped files when saving (0 = unlimited)")
	findCmd.Flags().IntVar(&findDirs, "dirs", 0, "Also print the N directories holding the most redundant data")
	findCmd.Flags().BoolVarP(&findQuiet, "quiet", "q", false, "Print only the summary")
	findCmd.Flags().DurationVar(&findProgress, "progress-interval", 30*time.Second, "Emit progress lines to stderr at this interval when not a TTY (0 to disable)")
	findCmd.Flags().StringVar(&findIndexMode, "index-mode", "memory", "Index build mode: memory|disk|skip")
	findCmd.Flags().StringVar(&findSQLiteTmp, "sqlite-tmp-dir", "", "Directory for SQLite temp files during index build")
}

func runFind(cmd *cobra.Command, args []string) error {
	opts, err := findFlags.options(cmd)
	if err != nil {
		return err
	}

	switch findIndexMode {
	case "memory", "disk", "skip":
	default:
		return fmt.Errorf("invalid index mode %q (expected memory|disk|skip)", findIndexMode)
	}

	ctx, stop := signalContext()
	defer stop()

	fmt.Fprintf(os.Stderr, "Searching %s for duplicate .%s files...\n", findFlags.root, opts.Extension)
	startTime := time.Now()

	var groups []entry.DuplicateGroup
	var reportPath string
	var stats dupes.Stats

	if findSave {
		out := findOut
		if out == "" {
			out = cfg.Report.Out
		}
		outDir, err := filepath.Abs(out)
		if err != nil {
			return fmt.Errorf("failed to resolve output path: %w", err)
		}
		retention := findRetention
		if retention < 0 {
			retention = cfg.Report.Retention
		}
		maxErrors := findMaxErrors
		if maxErrors < 0 {
			maxErrors = cfg.Report.MaxErrors
		}

		mgr := snapshot.NewManager(outDir, retention, logging.Component(logger, "snapshot"))
		mgr.SetIndexMode(findIndexMode)
		mgr.SetMaxErrors(maxErrors)
		if findSQLiteTmp != "" {
			mgr.SetSQLiteTmpDir(findSQLiteTmp)
		}

		var last atomic.Pointer[dupes.Stats]
		mgr.SetProgressFunc(func(s dupes.Stats) { last.Store(&s) })
		prog := startProgress(func() dupes.Stats {
			if s := last.Load(); s != nil {
				return *s
			}
			return dupes.Stats{}
		}, findProgress)
		mgr.SetStageFunc(prog.setStage)

		res, err := mgr.RunScan(ctx, findFlags.root, opts)
		prog.stop()
		if err != nil {
			return findError(err)
		}
		groups, reportPath = res.Groups, res.Path
		if s := last.Load(); s != nil {
			stats = *s
		}
		stats.Files = res.Meta.FileCount
		stats.Errors = res.Meta.ErrorCount
	} else {
		finder, err := dupes.NewFinder(opts, logging.Component(logger, "dupes"))
		if err != nil {
			return err
		}
		prog := startProgress(finder.Stats, findProgress)
		finder.SetStageFunc(prog.setStage)

		groups, err = finder.Run(ctx, findFlags.root)
		prog.stop()
		if err != nil {
			return findError(err)
		}
		stats = finder.Stats()
	}

	if !findQuiet {
		printGroups(groups)
	}

	sum := rollup.Summarize(groups)
	fmt.Printf("\nSummary:\n")
	fmt.Printf("  Documents:   %s\n", humanize.Comma(stats.Files))
	fmt.Printf("  Groups:      %s\n", humanize.Comma(sum.Groups))
	fmt.Printf("  Duplicates:  %s files (%s)\n", humanize.Comma(sum.DupeFiles), humanize.Bytes(uint64(sum.TotalBytes)))
	fmt.Printf("  Reclaimable: %s\n", humanize.Bytes(uint64(sum.Reclaimable)))
	if stats.Errors > 0 {
		fmt.Printf("  Skipped:     %s (use --verbose for details)\n", humanize.Comma(stats.Errors))
	}
	fmt.Printf("  Elapsed:     %s\n", time.Since(startTime).Round(time.Millisecond))
	if reportPath != "" {
		fmt.Printf("  Report:      %s\n", reportPath)
	}

	if findDirs > 0 && len(groups) > 0 {
		root, err := filepath.Abs(findFlags.root)
		if err != nil {
			root = findFlags.root
		}
		if resolved, err := filepath.EvalSymlinks(root); err == nil {
			root = resolved
		}
		dirs := rollup.ByDirectory(root, groups)
		if len(dirs) > findDirs {
			dirs = dirs[:findDirs]
		}
		fmt.Printf("\nDirectories:\n")
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "RECLAIM\tCOPIES\tPATH\n")
		for _, d := range dirs {
			fmt.Fprintf(w, "%s\t%s\t%s\n", humanize.Bytes(uint64(d.Reclaimable)), humanize.Comma(d.Copies), d.Path)
		}
		w.Flush()
	}

	return nil
}

func findError(err error) error {
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "Search canceled.")
		return nil
	}
	return fmt.Errorf("search failed: %w", err)
}

func printGroups(groups []entry.DuplicateGroup) {
	for i, g := range groups {
		if i > 0 {
			fmt.Println()
		}
		fmt.Printf("%s  %s x %d  (reclaim %s)\n",
			g.Digest, humanize.Bytes(g.Size), len(g.Paths), humanize.Bytes(uint64(rollup.GroupReclaimable(g))))
		for _, p := range g.Paths {
			fmt.Printf("  %s\n", p)
		}
	}
}
