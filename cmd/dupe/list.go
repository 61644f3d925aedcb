package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/michaelscutari/dupe/internal/dupes"
	"github.com/michaelscutari/dupe/internal/logging"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List candidate documents",
	Long: `List every document below a root directory that passes the extension
filter, skipping hidden and excluded directories.`,
	RunE: runList,
}

var (
	listFlags scanFlags
	listInfo  bool
)

func init() {
	listFlags.register(listCmd, false)
	listCmd.Flags().BoolVarP(&listInfo, "info", "i", false, "Include size and modification time")
}

func runList(cmd *cobra.Command, args []string) error {
	opts, err := listFlags.options(cmd)
	if err != nil {
		return err
	}

	finder, err := dupes.NewFinder(opts, logging.Component(logger, "dupes"))
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	files, err := finder.Collect(ctx, listFlags.root)
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	if !listInfo {
		for _, f := range files {
			fmt.Println(f.Path)
		}
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SIZE\tMODIFIED\tPATH\n")
	var total uint64
	for _, f := range files {
		modified := "-"
		if !f.ModTime().IsZero() {
			modified = f.ModTime().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", humanize.Bytes(f.Size), modified, f.Path)
		total += f.Size
	}
	w.Flush()
	fmt.Fprintf(os.Stderr, "%s documents, %s\n", humanize.Comma(int64(len(files))), humanize.Bytes(total))

	return nil
}
