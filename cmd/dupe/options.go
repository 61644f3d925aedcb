package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/michaelscutari/dupe/internal/digest"
	"github.com/michaelscutari/dupe/internal/logging"
	"github.com/michaelscutari/dupe/internal/scan"
	"github.com/michaelscutari/dupe/internal/snapshot"
	"github.com/spf13/cobra"
)

// scanFlags are the traversal flags shared by list and find.
type scanFlags struct {
	root       string
	extension  string
	excludeDir []string
	exclude    []string
	workers    int
	algo       string
}

func (f *scanFlags) register(cmd *cobra.Command, withDigest bool) {
	cmd.Flags().StringVarP(&f.root, "root", "r", ".", "Root directory to scan")
	cmd.Flags().StringVar(&f.extension, "ext", scan.DefaultExtension, "Document extension to match (case-insensitive)")
	cmd.Flags().StringSliceVar(&f.excludeDir, "exclude-dir", nil, "Directory names to prune, replacing the defaults (can be repeated)")
	cmd.Flags().StringSliceVarP(&f.exclude, "exclude", "e", nil, "Regex patterns to exclude (can be repeated)")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "Number of worker goroutines (0 = config or CPU count)")
	if withDigest {
		cmd.Flags().StringVarP(&f.algo, "algo", "a", "", "Digest algorithm: "+strings.Join(digest.Names(), ", "))
	}
}

// options merges the config file with flags; flags set on the command line win.
func (f *scanFlags) options(cmd *cobra.Command) (*scan.ScanOptions, error) {
	opts, err := cfg.ScanOptions()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if cmd.Flags().Changed("ext") {
		opts.WithExtension(f.extension)
	}
	if cmd.Flags().Changed("exclude-dir") {
		opts.WithExcludeNames(f.excludeDir...)
	}
	if f.workers > 0 {
		opts.WithWorkers(f.workers)
	}
	if f.algo != "" {
		opts.WithAlgorithm(f.algo)
	}
	for _, pattern := range f.exclude {
		if err := opts.AddExcludePattern(pattern); err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
	}
	return opts, nil
}

// signalContext is cancelled on the first interrupt; a second one exits.
func signalContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		if _, ok := <-sigCh; !ok {
			return
		}
		fmt.Fprintln(os.Stderr, "\nCanceling... (press Ctrl+C again to force)")
		cancel()
		if _, ok := <-sigCh; ok {
			os.Exit(130)
		}
	}()
	return ctx, func() {
		signal.Stop(sigCh)
		close(sigCh)
		cancel()
	}
}

// resolveReport accepts a report file or an output directory, in which case
// the directory's latest report is used.
func resolveReport(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to open report: %w", err)
	}
	if !info.IsDir() {
		return path, nil
	}
	return snapshot.NewManager(path, 0, logging.Component(logger, "snapshot")).GetLatest()
}
