package tui

import (
	"database/sql"

	"github.com/michaelscutari/dupe/internal/cleanup"
	"github.com/michaelscutari/dupe/internal/db"
	"github.com/michaelscutari/dupe/internal/entry"
	"github.com/sirupsen/logrus"

	tea "github.com/charmbracelet/bubbletea"
)

// SortColumn represents the current group sort field.
type SortColumn int

const (
	SortByReclaim SortColumn = iota
	SortBySize
	SortByCount
)

func (s SortColumn) String() string {
	switch s {
	case SortBySize:
		return "size"
	case SortByCount:
		return "count"
	default:
		return "reclaim"
	}
}

type viewMode int

const (
	modeGroups viewMode = iota
	modeMembers
	modeConfirm
)

const groupLimit = 5000

// Model holds the TUI state.
type Model struct {
	db  *sql.DB
	log *logrus.Entry

	scanMeta    *entry.ScanMeta
	groups      []db.GroupRow
	groupCursor int
	sort        SortColumn

	group     *db.GroupRow
	members   []cleanup.Member
	selection cleanup.Selection
	cursor    int

	mode   viewMode
	width  int
	height int
	status string
	err    error
}

// NewModel creates a new TUI model over an open report.
func NewModel(database *sql.DB, log *logrus.Entry) *Model {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Model{
		db:        database,
		log:       log,
		sort:      SortByReclaim,
		selection: make(cleanup.Selection),
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.loadInitialData
}

type dataLoadedMsg struct {
	scanMeta *entry.ScanMeta
	groups   []db.GroupRow
	err      error
}

func (m *Model) loadInitialData() tea.Msg {
	meta, err := db.GetScanMeta(m.db)
	if err != nil {
		return dataLoadedMsg{err: err}
	}

	groups, err := db.LoadGroups(m.db, m.sort.String(), groupLimit)
	if err != nil {
		return dataLoadedMsg{err: err}
	}

	return dataLoadedMsg{
		scanMeta: meta,
		groups:   groups,
	}
}

type groupsLoadedMsg struct {
	groups []db.GroupRow
	err    error
}

func (m *Model) loadGroups() tea.Cmd {
	return func() tea.Msg {
		groups, err := db.LoadGroups(m.db, m.sort.String(), groupLimit)
		return groupsLoadedMsg{groups: groups, err: err}
	}
}

type membersLoadedMsg struct {
	group   db.GroupRow
	members []cleanup.Member
	err     error
}

func (m *Model) loadMembers(g db.GroupRow) tea.Cmd {
	return func() tea.Msg {
		rows, err := db.LoadMembers(m.db, g.ID)
		if err != nil {
			return membersLoadedMsg{err: err}
		}
		members := make([]cleanup.Member, len(rows))
		for i, r := range rows {
			members[i] = cleanup.Member{Path: r.Path, Size: r.Size, ModTime: r.ModTime}
		}
		cleanup.SortNewestFirst(members)
		return membersLoadedMsg{group: g, members: members}
	}
}

type deletedMsg struct {
	deleted int
	failed  []error
	err     error
}

// deleteSelected removes the selected files and drops them from the report.
func (m *Model) deleteSelected() tea.Cmd {
	paths := m.selection.Paths()
	return func() tea.Msg {
		deleted, failed := cleanup.DeleteFiles(paths)

		bad := make(map[string]bool, len(failed))
		for _, err := range failed {
			if de, ok := err.(*cleanup.DeleteError); ok {
				bad[de.Path] = true
			}
			m.log.WithError(err).Warn("delete failed")
		}
		removed := make([]string, 0, deleted)
		for _, p := range paths {
			if !bad[p] {
				removed = append(removed, p)
			}
		}

		if err := db.RemoveMembers(m.db, removed); err != nil {
			return deletedMsg{err: err}
		}
		m.log.WithFields(logrus.Fields{
			"deleted": deleted,
			"failed":  len(failed),
		}).Info("deleted duplicates")
		return deletedMsg{deleted: deleted, failed: failed}
	}
}

func (m *Model) helpLine() string {
	switch m.mode {
	case modeConfirm:
		return "y: delete selected files | n/Esc: cancel"
	case modeMembers:
		return "↑/↓ move | Space: toggle | n: keep newest | o: keep oldest | c: clear | x: delete | Backspace: back | q: quit"
	default:
		return "↑/↓ move | Enter: open | r/s/c: sort | q: quit"
	}
}

func (m *Model) selectionSize() int64 {
	return cleanup.SelectionSize(m.members, m.selection)
}

// selectsEveryCopy reports whether deleting the selection would leave the
// group without any copy.
func (m *Model) selectsEveryCopy() bool {
	if len(m.members) == 0 {
		return false
	}
	for _, mem := range m.members {
		if !m.selection[mem.Path] {
			return false
		}
	}
	return true
}
