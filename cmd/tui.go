// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/soomctl/pkg/device"
	"github.com/Thermoquad/soomctl/pkg/soomfon"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Log entry shown in the event pane
type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info
}

// TUI model
type model struct {
	vendorID      uint16
	productID     uint16
	showAll       bool
	stats         *soomfon.Statistics
	eventLog      []logEntry
	maxLogEntries int
	status        device.Status
	lastEvent     *timedEvent
	width         int
	height        int
	quitting      bool
}

// Messages
type tickMsg time.Time
type reportMsg rawReport
type eventMsg timedEvent
type statusMsg device.Status

// formatUptime formats a duration in milliseconds to a human-friendly string
func formatUptime(ms uint64) string {
	if ms == 0 {
		return "0 seconds"
	}

	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	plural := func(n uint64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func initialModel(vid, pid uint16, showAll bool) model {
	return model{
		vendorID:      vid,
		productID:     pid,
		showAll:       showAll,
		stats:         soomfon.NewStatistics(),
		eventLog:      make([]logEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.addLogEntry("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd()

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

	case reportMsg:
		m.stats.Update(msg.data, msg.validationErrors)
		if len(msg.validationErrors) > 0 {
			for _, err := range msg.validationErrors {
				m.addLogEntry(err.Message, true)
			}
		} else if m.showAll {
			m.addLogEntry(soomfon.FormatRaw(msg.data), false)
		}

	case eventMsg:
		ev := timedEvent(msg)
		m.lastEvent = &ev
		m.addLogEntry(soomfon.FormatEvent(ev.event), false)
	}

	return m, nil
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

// Styles shared by the monitor and control views
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// renderState colours a connection state
func renderState(st device.Status) string {
	switch st.State {
	case device.StateInitialized:
		return valueStyle.Render("✓ " + st.State.String())
	case device.StateError:
		return errorStyle.Render("✗ " + st.State.String())
	default:
		return warningStyle.Render("⏳ " + st.State.String())
	}
}

// renderLog renders the newest entries that fit in height lines
func renderLog(entries []logEntry, height int) string {
	if height < 5 {
		height = 5
	}
	if len(entries) == 0 {
		return headerStyle.Render("  (no events yet)")
	}

	start := len(entries) - height
	if start < 0 {
		start = 0
	}

	var b strings.Builder
	for _, entry := range entries[start:] {
		timestamp := entry.timestamp.Format("15:04:05.000")
		if entry.isError {
			b.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), errorStyle.Render("✗ "+entry.message)))
		} else {
			b.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), warningStyle.Render("ℹ "+entry.message)))
		}
	}
	return b.String()
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("SOOMCTL - MONITOR"))
	s.WriteString("\n")
	mode := "Events and errors"
	if m.showAll {
		mode = "All reports"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("Device: %04x:%04x | Mode: %s | 'r' reset stats | 'q' quit",
		m.vendorID, m.productID, mode)))
	s.WriteString("\n\n")

	s.WriteString(renderState(m.status))
	if m.status.Device != nil && m.status.Device.Product != "" {
		s.WriteString(headerStyle.Render(" " + m.status.Device.Product))
	}
	s.WriteString("\n\n")

	// Statistics
	m.stats.CalculateRates()
	var eventPercent float64
	if m.stats.TotalReports > 0 {
		eventPercent = float64(m.stats.Events) * 100.0 / float64(m.stats.TotalReports)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Reports:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.TotalReports)),
		labelStyle.Render("Events:"), valueStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.Events, eventPercent)),
		labelStyle.Render("Heartbeats:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.Heartbeats)),
	))
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
		labelStyle.Render("Buttons:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.ButtonEvents)),
		labelStyle.Render("Encoders:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.EncoderEvents)),
	))

	if m.stats.Anomalies > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s (%s: %d, %s: %d, %s: %d, %s: %d)\n",
			labelStyle.Render("Anomalies:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.Anomalies)),
			headerStyle.Render("short"), m.stats.ShortPackets,
			headerStyle.Render("bad header"), m.stats.BadHeaders,
			headerStyle.Render("unknown"), m.stats.UnknownEvents,
			headerStyle.Render("bad state"), m.stats.InvalidStates,
		))
	}

	elapsed := uint64(time.Since(m.stats.StartTime).Milliseconds())
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		labelStyle.Render("Report Rate:"), valueStyle.Render(fmt.Sprintf("%.1f/s", m.stats.ReportRate)),
		labelStyle.Render("Event Rate:"), valueStyle.Render(fmt.Sprintf("%.1f/s", m.stats.EventRate)),
		labelStyle.Render("Session:"), valueStyle.Render(formatUptime(elapsed)),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	if m.lastEvent != nil {
		s.WriteString(labelStyle.Render("Last Event: "))
		s.WriteString(valueStyle.Render(soomfon.FormatEvent(m.lastEvent.event)))
		s.WriteString(headerStyle.Render(" at " + m.lastEvent.timestamp.Format("15:04:05.000")))
		s.WriteString("\n\n")
	}

	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")
	s.WriteString(boxStyle.Width(m.width - 4).Render(renderLog(m.eventLog, m.height-16)))

	return s.String()
}
