package tui

import (
	"fmt"

	"github.com/michaelscutari/dupe/internal/cleanup"
	"github.com/michaelscutari/dupe/internal/db"

	tea "github.com/charmbracelet/bubbletea"
)

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case dataLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.scanMeta = msg.scanMeta
		m.setGroups(msg.groups)
		return m, nil

	case groupsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.setGroups(msg.groups)
		return m, nil

	case membersLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		g := msg.group
		m.group = &g
		m.members = msg.members
		m.selection = make(cleanup.Selection)
		m.cursor = 0
		m.mode = modeMembers
		return m, nil

	case deletedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.status = fmt.Sprintf("Deleted %d files", msg.deleted)
		if len(msg.failed) > 0 {
			m.status += fmt.Sprintf(", %d failed: %v", len(msg.failed), msg.failed[0])
		}
		m.mode = modeGroups
		m.group = nil
		m.members = nil
		m.selection = make(cleanup.Selection)
		return m, m.loadInitialData
	}

	return m, nil
}

func (m *Model) setGroups(groups []db.GroupRow) {
	m.groups = groups
	if m.groupCursor >= len(m.groups) {
		m.groupCursor = max(0, len(m.groups)-1)
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeConfirm:
		return m.handleConfirmKey(msg)
	case modeMembers:
		return m.handleMemberKey(msg)
	default:
		return m.handleGroupKey(msg)
	}
}

func (m *Model) handleGroupKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "enter", "l", "right":
		if len(m.groups) > 0 && m.groupCursor < len(m.groups) {
			m.status = ""
			return m, m.loadMembers(m.groups[m.groupCursor])
		}
		return m, nil

	case "r":
		m.sort = SortByReclaim
		return m, m.loadGroups()

	case "s":
		m.sort = SortBySize
		return m, m.loadGroups()

	case "c":
		m.sort = SortByCount
		return m, m.loadGroups()
	}

	m.groupCursor = moveCursor(m.groupCursor, len(m.groups), msg.String())
	return m, nil
}

func (m *Model) handleMemberKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "backspace", "h", "left", "esc":
		m.mode = modeGroups
		m.group = nil
		m.members = nil
		m.selection = make(cleanup.Selection)
		m.status = ""
		return m, nil

	case " ", "space":
		if len(m.members) > 0 && m.cursor < len(m.members) {
			m.selection.Toggle(m.members[m.cursor].Path)
		}
		return m, nil

	case "n":
		m.selection = cleanup.SelectAllExceptNewest(m.members)
		return m, nil

	case "o":
		m.selection = cleanup.SelectAllExceptOldest(m.members)
		return m, nil

	case "c":
		m.selection = make(cleanup.Selection)
		return m, nil

	case "x", "delete":
		if len(m.selection) == 0 {
			m.status = "Nothing selected"
			return m, nil
		}
		if m.selectsEveryCopy() {
			m.status = "Keep at least one copy"
			return m, nil
		}
		m.status = ""
		m.mode = modeConfirm
		return m, nil
	}

	m.cursor = moveCursor(m.cursor, len(m.members), msg.String())
	return m, nil
}

func (m *Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		return m, m.deleteSelected()
	case "ctrl+c":
		return m, tea.Quit
	case "n", "N", "esc", "q":
		m.mode = modeMembers
		return m, nil
	}
	return m, nil
}

func moveCursor(cursor, n int, key string) int {
	switch key {
	case "up", "k":
		cursor--
	case "down", "j":
		cursor++
	case "home", "g":
		cursor = 0
	case "end", "G":
		cursor = n - 1
	case "pgup":
		cursor -= 10
	case "pgdown":
		cursor += 10
	default:
		return cursor
	}
	if cursor >= n {
		cursor = n - 1
	}
	if cursor < 0 {
		cursor = 0
	}
	return cursor
}
