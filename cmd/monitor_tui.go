// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	gridColumns    = 8
	gridPageSize   = 32
	gridPages      = 512 / gridPageSize
	maxLogEntries  = 100
	commandsWidth  = 30
	visibleLogRows = 8
)

// Focus states
const (
	focusCommandList = iota
	focusArgsInput
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// monitorModel is the Bubble Tea model for the monitor TUI
type monitorModel struct {
	session  *session
	connInfo string

	commands  list.Model
	argsInput textinput.Model
	focused   int

	// Channel grid
	page       int
	grid       gridMsg
	haveGrid   bool
	refreshing bool
	lastError  error

	log []logEntry

	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type monitorTickMsg time.Time

// gridMsg carries a read back of the transmit buffer.
type gridMsg struct {
	first  int
	tx     bool
	values []byte
}

type gridErrMsg struct {
	err error
}

type resultMsg struct {
	args   []string
	output string
	err    error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialMonitorModel(s *session, connInfo string) monitorModel {
	ti := textinput.New()
	ti.Placeholder = "arguments"
	ti.CharLimit = 64
	ti.Width = 24

	items := make([]list.Item, len(deviceCommands))
	for i, d := range deviceCommands {
		items[i] = d
	}
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	commands := list.New(items, delegate, commandsWidth-2, 14)
	commands.Title = "Commands"
	commands.SetShowStatusBar(false)
	commands.SetShowHelp(false)
	commands.SetFilteringEnabled(false)

	return monitorModel{
		session:   s,
		connInfo:  connInfo,
		commands:  commands,
		argsInput: ti,
		focused:   focusCommandList,
		width:     80,
		height:    24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), monitorTickCmd())
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(monitorRefresh, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) refreshCmd() tea.Cmd {
	s := m.session
	first := 1 + m.page*gridPageSize
	return func() tea.Msg {
		g, err := s.snapshot(first, gridPageSize)
		if err != nil {
			return gridErrMsg{err: err}
		}
		return g
	}
}

func (m monitorModel) runCmd(args []string) tea.Cmd {
	s := m.session
	return func() tea.Msg {
		out, err := s.run(args)
		return resultMsg{args: args, output: out, err: err}
	}
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case monitorTickMsg:
		cmds := []tea.Cmd{monitorTickCmd()}
		if !m.refreshing {
			m.refreshing = true
			cmds = append(cmds, m.refreshCmd())
		}
		return m, tea.Batch(cmds...)

	case gridMsg:
		m.refreshing = false
		m.grid = msg
		m.haveGrid = true
		if m.lastError != nil {
			m.addLogEntry("Transmitter responding again", false)
			m.lastError = nil
		}

	case gridErrMsg:
		m.refreshing = false
		// Log the first failure only, the tick keeps retrying.
		if m.lastError == nil {
			m.addLogEntry(fmt.Sprintf("Refresh failed: %v", msg.err), true)
		}
		m.lastError = msg.err

	case resultMsg:
		line := strings.Join(msg.args, " ")
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("%s: %v", line, msg.err), true)
		} else {
			m.addLogEntry(fmt.Sprintf("%s: %s", line, msg.output), false)
		}
		return m, m.refreshCmd()
	}

	if m.focused == focusCommandList {
		var cmd tea.Cmd
		m.commands, cmd = m.commands.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m monitorModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	case "q":
		if m.focused == focusCommandList {
			m.quitting = true
			return m, tea.Quit
		}

	case "tab", "shift+tab":
		if m.focused == focusCommandList {
			m.focused = focusArgsInput
			return m, m.argsInput.Focus()
		}
		m.focused = focusCommandList
		m.argsInput.Blur()
		return m, nil

	case "enter":
		return m.handleEnter()

	case "[":
		if m.focused == focusCommandList {
			m.page = (m.page + gridPages - 1) % gridPages
			return m, m.refreshCmd()
		}

	case "]":
		if m.focused == focusCommandList {
			m.page = (m.page + 1) % gridPages
			return m, m.refreshCmd()
		}
	}

	var cmd tea.Cmd
	if m.focused == focusArgsInput {
		m.argsInput, cmd = m.argsInput.Update(msg)
	} else {
		m.commands, cmd = m.commands.Update(msg)
	}
	return m, cmd
}

func (m monitorModel) handleEnter() (tea.Model, tea.Cmd) {
	d, ok := m.commands.SelectedItem().(deviceCommand)
	if !ok {
		return m, nil
	}
	args := append([]string{d.name}, strings.Fields(m.argsInput.Value())...)
	m.argsInput.Reset()
	return m, m.runCmd(args)
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	offStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	s.WriteString(titleStyle.Render("DMX SENDER MONITOR"))
	s.WriteString(" ")
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | q=quit Tab=switch [ ]=page", m.connInfo)))
	s.WriteString("\n\n")

	listBox, inputBox := boxStyle, boxStyle
	if m.focused == focusCommandList {
		listBox = focusedBoxStyle
	} else {
		inputBox = focusedBoxStyle
	}
	left := lipgloss.JoinVertical(lipgloss.Left,
		listBox.Width(commandsWidth).Render(m.commands.View()),
		inputBox.Width(commandsWidth).Render(m.argsInput.View()),
	)

	right := boxStyle.Render(m.renderGrid(labelStyle, valueStyle, offStyle, headerStyle))
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right))
	s.WriteString("\n")
	s.WriteString(m.renderEventLog(headerStyle, boxStyle))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m monitorModel) renderGrid(labelStyle, valueStyle, offStyle, headerStyle lipgloss.Style) string {
	var s strings.Builder

	first := 1 + m.page*gridPageSize
	s.WriteString(labelStyle.Render(fmt.Sprintf("Channels %d-%d", first, first+gridPageSize-1)))
	s.WriteString("  ")
	switch {
	case !m.haveGrid:
		s.WriteString(headerStyle.Render("waiting"))
	case m.grid.tx:
		s.WriteString(valueStyle.Render("TX ON"))
	default:
		s.WriteString(offStyle.Render("TX OFF"))
	}
	s.WriteString("\n\n")

	if !m.haveGrid || m.grid.first != first {
		s.WriteString(headerStyle.Render("  (reading...)"))
		return s.String()
	}

	for i, v := range m.grid.values {
		s.WriteString(headerStyle.Render(fmt.Sprintf("%3d:", first+i)))
		s.WriteString(valueStyle.Render(fmt.Sprintf("%3d ", v)))
		if (i+1)%gridColumns == 0 {
			s.WriteString("\n")
		}
	}
	return s.String()
}

func (m monitorModel) renderEventLog(headerStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	infoStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	start := len(m.log) - visibleLogRows
	if start < 0 {
		start = 0
	}

	if len(m.log) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	}
	for _, entry := range m.log[start:] {
		icon, style := "i", infoStyle
		if entry.isError {
			icon, style = "x", errorStyle
		}
		s.WriteString(fmt.Sprintf("%s %s %s\n",
			headerStyle.Render(entry.timestamp.Format("15:04:05.000")),
			style.Render(icon),
			entry.message))
	}

	return boxStyle.Width(m.width - 4).Render(strings.TrimRight(s.String(), "\n"))
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.log = append(m.log, logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.log) > maxLogEntries {
		m.log = m.log[len(m.log)-maxLogEntries:]
	}
}

func (m *monitorModel) updateListSize() {
	listHeight := m.height - visibleLogRows - 12
	if listHeight < 6 {
		listHeight = 6
	}
	m.commands.SetSize(commandsWidth-2, listHeight)
}
