// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/soomctl/pkg/actions"
	"github.com/Thermoquad/soomctl/pkg/device"
	"github.com/Thermoquad/soomctl/pkg/profile"
	"github.com/Thermoquad/soomctl/pkg/soomfon"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const commandTimeout = 5 * time.Second

// Focus states
const (
	focusProfileList = iota
	focusBrightnessInput
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// profileItem is a stored profile in the list
type profileItem struct {
	id       string
	name     string
	controls int
	active   bool
}

// Implement list.Item interface
func (p profileItem) Title() string {
	if p.active {
		return "● " + p.name
	}
	return p.name
}
func (p profileItem) Description() string { return fmt.Sprintf("%d controls", p.controls) }
func (p profileItem) FilterValue() string { return p.name }

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	backend controlBackend
	logPath string

	// Profiles
	profiles    []profileItem
	profileList list.Model

	// Pad
	status     device.Status
	retry      time.Duration
	lastAction *actionResultMsg

	// Monitoring (shared with the monitor view)
	stats         *soomfon.Statistics
	eventLog      []logEntry
	maxLogEntries int

	// Control
	brightnessInput textinput.Model
	spinner         spinner.Model
	focusedField    int

	// UI state
	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

type profilesLoadedMsg struct {
	items []profileItem
	err   error
}

type commandDoneMsg struct {
	action string
	done   string
	err    error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(backend controlBackend, brightness int, logPath string) controlModel {
	ti := textinput.New()
	ti.Placeholder = strconv.Itoa(brightness)
	ti.CharLimit = 3
	ti.Width = 6

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = warningStyle

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	profileList := list.New([]list.Item{}, delegate, 30, 10)
	profileList.Title = "Profiles"
	profileList.SetShowStatusBar(false)
	profileList.SetShowHelp(false)
	profileList.SetFilteringEnabled(false)

	return controlModel{
		backend:         backend,
		logPath:         logPath,
		profileList:     profileList,
		status:          device.Status{State: device.StateDisconnected},
		stats:           soomfon.NewStatistics(),
		eventLog:        make([]logEntry, 0),
		maxLogEntries:   100,
		brightnessInput: ti,
		spinner:         sp,
		focusedField:    focusProfileList,
		width:           80,
		height:          24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return tea.Batch(
		controlTickCmd(),
		m.spinner.Tick,
		loadProfilesCmd(m.backend),
		tea.EnterAltScreen,
	)
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

// loadProfilesCmd reads the store off the UI goroutine
func loadProfilesCmd(backend controlBackend) tea.Cmd {
	return func() tea.Msg {
		profiles, err := backend.Profiles()
		if err != nil {
			return profilesLoadedMsg{err: err}
		}
		active, _ := backend.ActiveProfile()
		return profilesLoadedMsg{items: profileItems(profiles, active)}
	}
}

// profileItems converts profiles to list items, marking the active one by name
func profileItems(profiles []*profile.Profile, active string) []profileItem {
	items := make([]profileItem, 0, len(profiles))
	for _, p := range profiles {
		items = append(items, profileItem{
			id:       p.ID,
			name:     p.Name,
			controls: len(p.Buttons) + len(p.Encoders),
			active:   active != "" && p.Name == active,
		})
	}
	return items
}

func switchProfileCmd(backend controlBackend, item profileItem) tea.Cmd {
	return func() tea.Msg {
		err := backend.SwitchProfile(item.id)
		return commandDoneMsg{action: "Profile switch", done: "Bound profile " + item.name, err: err}
	}
}

func setBrightnessCmd(backend controlBackend, level int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		err := backend.SetBrightness(ctx, level)
		return commandDoneMsg{action: "Brightness", done: fmt.Sprintf("Brightness set to %d", level), err: err}
	}
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case controlTickMsg:
		m.stats.CalculateRates()
		return m, controlTickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case profilesLoadedMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Failed to load profiles: %v", msg.err), true)
			break
		}
		m.profiles = msg.items
		m.updateProfileList()

	case commandDoneMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("%s failed: %v", msg.action, msg.err), true)
		} else {
			m.addLogEntry(msg.done, false)
		}
		cmds = append(cmds, loadProfilesCmd(m.backend))

	case statusMsg:
		prev := m.status.State
		m.status = device.Status(msg)
		if m.status.State != prev {
			if m.status.State == device.StateError {
				m.addLogEntry("Device error: "+m.status.LastError, true)
			} else {
				m.addLogEntry("Device "+m.status.State.String(), false)
			}
		}

	case connectAttemptMsg:
		if msg.err != nil {
			m.retry = msg.retry
			m.addLogEntry(fmt.Sprintf("Connect failed: %v (retry in %s)", msg.err, msg.retry), true)
		} else {
			m.retry = 0
			m.addLogEntry("Connected to "+displayName(msg.info), false)
		}

	case reportMsg:
		m.stats.Update(msg.data, msg.validationErrors)
		for _, err := range msg.validationErrors {
			m.addLogEntry(err.Message, true)
		}

	case eventMsg:
		m.addLogEntry(soomfon.FormatEvent(msg.event), false)

	case actionResultMsg:
		m.lastAction = &msg
		if msg.result.Success {
			m.addLogEntry(fmt.Sprintf("%s: %s", msg.kind, firstLine(msg.result.Message)), false)
		} else {
			m.addLogEntry(fmt.Sprintf("%s failed: %s", msg.kind, msg.result.Error), true)
		}
		if msg.kind == actions.KindProfile {
			cmds = append(cmds, loadProfilesCmd(m.backend))
		}
	}

	// Update child components
	var cmd tea.Cmd
	if m.focusedField == focusBrightnessInput {
		m.brightnessInput, cmd = m.brightnessInput.Update(msg)
		cmds = append(cmds, cmd)
	}
	if m.focusedField == focusProfileList {
		m.profileList, cmd = m.profileList.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "q":
		if m.focusedField != focusBrightnessInput {
			m.quitting = true
			return m, tea.Quit
		}

	case "tab":
		return m.cycleFocus(1), nil

	case "shift+tab":
		return m.cycleFocus(-1), nil

	case "x":
		if m.focusedField != focusBrightnessInput {
			if m.backend.IsExecuting() {
				m.backend.CancelAction()
				m.addLogEntry("Action cancelled", false)
			}
			return m, nil
		}

	case "r":
		if m.focusedField != focusBrightnessInput {
			return m, loadProfilesCmd(m.backend)
		}

	case "enter":
		return m.handleEnter()
	}

	// Pass through to focused component
	var cmd tea.Cmd
	switch m.focusedField {
	case focusBrightnessInput:
		m.brightnessInput, cmd = m.brightnessInput.Update(msg)
	case focusProfileList:
		m.profileList, cmd = m.profileList.Update(msg)
	}
	return m, cmd
}

func (m controlModel) cycleFocus(delta int) controlModel {
	const maxFocus = focusBrightnessInput
	m.focusedField = (m.focusedField + delta + maxFocus + 1) % (maxFocus + 1)

	if m.focusedField == focusBrightnessInput {
		m.brightnessInput.Focus()
	} else {
		m.brightnessInput.Blur()
	}
	return m
}

func (m controlModel) handleEnter() (tea.Model, tea.Cmd) {
	switch m.focusedField {
	case focusProfileList:
		item, ok := m.profileList.SelectedItem().(profileItem)
		if !ok {
			return m, nil
		}
		return m, switchProfileCmd(m.backend, item)

	case focusBrightnessInput:
		level, err := parseBrightness(m.brightnessInput.Value())
		if err != nil {
			m.addLogEntry(err.Error(), true)
			return m, nil
		}
		if m.status.State != device.StateInitialized {
			m.addLogEntry("Cannot set brightness: pad not ready", true)
			return m, nil
		}
		m.brightnessInput.SetValue("")
		return m, setBrightnessCmd(m.backend, level)
	}
	return m, nil
}

// parseBrightness validates a typed brightness level
func parseBrightness(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("enter a brightness level")
	}
	level, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid brightness %q", s)
	}
	if level < soomfon.MinBrightness || level > soomfon.MaxBrightness {
		return 0, fmt.Errorf("brightness must be %d-%d", soomfon.MinBrightness, soomfon.MaxBrightness)
	}
	return level, nil
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	focusedBoxStyle := boxStyle.BorderForeground(lipgloss.Color("12"))

	var s strings.Builder
	s.WriteString(titleStyle.Render("SOOMCTL - CONTROL"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("Device: %04x:%04x | Tab: focus | Enter: apply | x: cancel action | r: reload | q: quit | log: %s",
		vendorID, productID, m.logPath)))
	s.WriteString("\n\n")

	s.WriteString(m.renderStatusLine())
	s.WriteString("\n\n")

	// Left: profile list, right: pad panel
	listBox := boxStyle
	if m.focusedField == focusProfileList {
		listBox = focusedBoxStyle
	}
	left := listBox.Render(m.profileList.View())

	panelBox := boxStyle
	if m.focusedField == focusBrightnessInput {
		panelBox = focusedBoxStyle
	}
	right := panelBox.Width(m.panelWidth()).Render(m.renderPadPanel())

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right))
	s.WriteString("\n")

	s.WriteString(m.renderStatisticsBar())
	s.WriteString("\n\n")

	s.WriteString(labelStyle.Render("Event Log:"))
	s.WriteString("\n")
	logHeight := m.height - lipgloss.Height(s.String()) - 3
	s.WriteString(boxStyle.Width(m.width - 4).Render(renderLog(m.eventLog, logHeight)))

	return s.String()
}

func (m controlModel) renderStatusLine() string {
	var b strings.Builder
	switch m.status.State {
	case device.StateInitialized:
		b.WriteString(renderState(m.status))
	case device.StateError:
		b.WriteString(renderState(m.status))
	default:
		b.WriteString(m.spinner.View())
		b.WriteString(warningStyle.Render(" " + m.status.State.String()))
		if m.retry > 0 {
			b.WriteString(headerStyle.Render(fmt.Sprintf(" (retry in %s)", m.retry)))
		}
	}
	if m.status.Device != nil {
		b.WriteString(headerStyle.Render("  " + displayName(*m.status.Device)))
	}

	b.WriteString("   ")
	b.WriteString(labelStyle.Render("Profile: "))
	if name, ok := m.backend.ActiveProfile(); ok {
		b.WriteString(valueStyle.Render(name))
	} else {
		b.WriteString(warningStyle.Render("none"))
	}
	return b.String()
}

func (m controlModel) renderPadPanel() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("%s %s\n",
		labelStyle.Render("Brightness:"), valueStyle.Render(fmt.Sprintf("%d%%", m.status.Brightness))))
	b.WriteString(fmt.Sprintf("%s %s\n",
		labelStyle.Render("Polling:"), valueStyle.Render(strconv.FormatBool(m.status.Polling))))

	engine := valueStyle.Render("idle")
	if m.backend.IsExecuting() {
		engine = warningStyle.Render("running")
	}
	b.WriteString(fmt.Sprintf("%s %s\n\n", labelStyle.Render("Engine:"), engine))

	b.WriteString(labelStyle.Render("Set brightness: "))
	b.WriteString(m.brightnessInput.View())
	b.WriteString("\n\n")

	b.WriteString(labelStyle.Render("Last action: "))
	if m.lastAction == nil {
		b.WriteString(headerStyle.Render("none"))
	} else {
		a := m.lastAction
		line := fmt.Sprintf("%s via %s (%d ms)", a.kind, soomfon.FormatEvent(a.event), a.result.DurationMS)
		if a.result.Success {
			b.WriteString(valueStyle.Render(line))
		} else {
			b.WriteString(errorStyle.Render(line))
			b.WriteString("\n")
			b.WriteString(errorStyle.Render(a.result.Error))
		}
	}
	return b.String()
}

func (m controlModel) renderStatisticsBar() string {
	return headerStyle.Render(fmt.Sprintf("Reports: %d | Events: %d (%d buttons, %d encoders) | Anomalies: %d | %.1f reports/s",
		m.stats.TotalReports, m.stats.Events, m.stats.ButtonEvents, m.stats.EncoderEvents,
		m.stats.Anomalies, m.stats.ReportRate))
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *controlModel) addLogEntry(message string, isError bool) {
	entry := logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m *controlModel) updateProfileList() {
	items := make([]list.Item, len(m.profiles))
	for i, p := range m.profiles {
		items[i] = p
	}
	m.profileList.SetItems(items)
}

func (m *controlModel) updateListSize() {
	// Adjust list size based on terminal size
	listHeight := m.height / 3
	if listHeight < 5 {
		listHeight = 5
	}
	m.profileList.SetSize(28, listHeight)
}

func (m controlModel) panelWidth() int {
	w := m.width - 36
	if w < 30 {
		w = 30
	}
	return w
}

// displayName names a pad for the status line
func displayName(info device.Info) string {
	if info.Product != "" {
		return info.Product
	}
	return fmt.Sprintf("%04x:%04x", info.VendorID, info.ProductID)
}

// firstLine returns the first line of s
func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
