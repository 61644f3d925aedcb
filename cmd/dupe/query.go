package main

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/michaelscutari/dupe/internal/db"
	"github.com/spf13/cobra"

	_ "modernc.org/sqlite"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query a report non-interactively",
	Long:  `Query a duplicate report and output groups for scripting.`,
	RunE:  runQuery,
}

var (
	queryDB      string
	querySort    string
	queryLimit   int
	queryDigest  string
	queryMembers bool
	queryAll     bool
)

func init() {
	queryCmd.Flags().StringVarP(&queryDB, "db", "d", "./data/latest.db", "Path to a report file or report directory")
	queryCmd.Flags().StringVarP(&querySort, "sort", "s", "reclaim", "Sort by: reclaim, size, count")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 20, "Maximum number of groups (0 = all)")
	queryCmd.Flags().StringVar(&queryDigest, "digest", "", "Show only the group with this digest")
	queryCmd.Flags().BoolVarP(&queryMembers, "members", "m", false, "List the files of each group")
	queryCmd.Flags().BoolVar(&queryAll, "all", false, "Print every member of every group as digest, size and path lines")
}

func runQuery(cmd *cobra.Command, args []string) error {
	switch querySort {
	case "reclaim", "size", "count":
	default:
		return fmt.Errorf("invalid sort %q (expected reclaim|size|count)", querySort)
	}

	path, err := resolveReport(queryDB)
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

	if queryAll {
		return dumpGroups(os.Stdout, database)
	}

	var groups []db.GroupRow
	if queryDigest != "" {
		g, err := db.GroupByDigest(database, queryDigest)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		groups = []db.GroupRow{*g}
	} else {
		groups, err = db.LoadGroups(database, querySort, queryLimit)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "RECLAIM\tSIZE\tCOUNT\tDIGEST\n")
	for _, g := range groups {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			humanize.Bytes(uint64(g.Reclaimable)),
			humanize.Bytes(uint64(g.Size)),
			humanize.Comma(g.Count),
			g.Digest,
		)
		if !queryMembers {
			continue
		}
		members, err := db.LoadMembers(database, g.ID)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		for _, m := range members {
			fmt.Fprintf(w, "\t\t\t  %s\n", m.Path)
		}
	}
	w.Flush()

	return nil
}

// dumpGroups writes one tab-separated line per member, largest groups first.
func dumpGroups(w io.Writer, database *sql.DB) error {
	groups, err := db.LoadGroupsFull(database)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	for _, g := range groups {
		for _, p := range g.Paths {
			fmt.Fprintf(w, "%s\t%d\t%s\n", g.Digest, g.Size, p)
		}
	}
	return nil
}
