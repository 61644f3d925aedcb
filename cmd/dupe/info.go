package main

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/michaelscutari/dupe/internal/db"
	"github.com/spf13/cobra"

	_ "modernc.org/sqlite"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Display report metadata",
	Long:  `Print metadata about a duplicate report including timestamps and statistics.`,
	RunE:  runInfo,
}

var (
	infoDB     string
	infoErrors int
)

func init() {
	infoCmd.Flags().StringVarP(&infoDB, "db", "d", "./data/latest.db", "Path to a report file or report directory")
	infoCmd.Flags().IntVar(&infoErrors, "errors", 0, "Also list up to N sampled skipped files")
}

func runInfo(cmd *cobra.Command, args []string) error {
	path, err := resolveReport(infoDB)
	if err != nil {
		return err
	}
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if err := db.ApplyReadPragmas(database, true); err != nil {
		return fmt.Errorf("failed to apply pragmas: %w", err)
	}

	meta, err := db.GetScanMeta(database)
	if err != nil {
		return fmt.Errorf("failed to read scan metadata: %w", err)
	}

	fmt.Printf("Report Information\n")
	fmt.Printf("==================\n\n")
	fmt.Printf("Root Path:    %s\n", meta.RootPath)
	fmt.Printf("Algorithm:    %s\n", meta.Algorithm)
	fmt.Printf("Start Time:   %s\n", meta.StartTime.Format(time.RFC3339))
	if !meta.EndTime.IsZero() {
		fmt.Printf("End Time:     %s\n", meta.EndTime.Format(time.RFC3339))
		fmt.Printf("Duration:     %s\n", meta.EndTime.Sub(meta.StartTime).Round(time.Millisecond))
	}
	fmt.Printf("\nStatistics\n")
	fmt.Printf("----------\n")
	fmt.Printf("Documents:    %s\n", humanize.Comma(meta.FileCount))
	fmt.Printf("Groups:       %s\n", humanize.Comma(meta.GroupCount))
	fmt.Printf("Duplicates:   %s\n", humanize.Comma(meta.DupeFiles))
	fmt.Printf("Reclaimable:  %s\n", humanize.Bytes(uint64(meta.Reclaimable)))
	if meta.ErrorCount > 0 {
		fmt.Printf("Skipped:      %s\n", humanize.Comma(meta.ErrorCount))
	}

	if infoErrors > 0 && meta.ErrorCount > 0 {
		errs, err := db.LoadErrors(database, infoErrors)
		if err != nil {
			return fmt.Errorf("failed to read scan errors: %w", err)
		}
		fmt.Printf("\nSkipped Files\n")
		fmt.Printf("-------------\n")
		for _, e := range errs {
			fmt.Printf("[%s] %s: %s\n", e.Phase, e.Path, e.Message)
		}
	}

	return nil
}
