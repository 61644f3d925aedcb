package main

import (
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/michaelscutari/dupe/internal/db"
	"github.com/michaelscutari/dupe/internal/logging"
	"github.com/michaelscutari/dupe/internal/tui"
	"github.com/spf13/cobra"

	tea "github.com/charmbracelet/bubbletea"
	_ "modernc.org/sqlite"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse a report interactively",
	Long: `Open an interactive TUI to browse duplicate groups, select copies
and delete them. Deleted files are removed from the report.`,
	RunE: runTUI,
}

var (
	tuiDB  string
	tuiLog string
)

func init() {
	tuiCmd.Flags().StringVarP(&tuiDB, "db", "d", "./data/latest.db", "Path to a report file or report directory")
	tuiCmd.Flags().StringVar(&tuiLog, "log", "", "Write log records to this file while the TUI runs")
}

func runTUI(cmd *cobra.Command, args []string) error {
	path, err := resolveReport(tuiDB)
	if err != nil {
		return err
	}
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if err := db.ApplyReadPragmas(database, false); err != nil {
		return fmt.Errorf("failed to apply pragmas: %w", err)
	}

	// The TUI owns the terminal, so records go to a file or nowhere.
	var w io.Writer = io.Discard
	if tuiLog != "" {
		f, err := os.OpenFile(tuiLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		w = f
	}
	log := logging.New(w, verbose || cfg.Log.Verbose)

	model := tui.NewModel(database, logging.Component(log, "tui"))
	p := tea.NewProgram(model, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}
