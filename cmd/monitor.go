// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/soomctl/pkg/device"
	"github.com/Thermoquad/soomctl/pkg/soomfon"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Show input events and detect malformed reports",
	Long: `Connect to the pad, poll for input and display every decoded button and
encoder event, with report validation and statistics.

Each inbound report is checked for anomalies:
  - Short reports
  - Bad ACK header or signature
  - Unknown event ids
  - Unexpected state bytes

By default heartbeats and raw reports are hidden. Use --show-all to print
every report as hex. Periodic statistics summaries are printed at
--stats-interval in text mode.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&showAll, "show-all", false, "Show every raw report (not just events and errors)")
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	monitorCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

// rawReport is one inbound report with its validation outcome
type rawReport struct {
	timestamp        time.Time
	data             []byte
	validationErrors []soomfon.ValidationError
}

// timedEvent is a decoded event with its arrival time
type timedEvent struct {
	timestamp time.Time
	event     soomfon.Event
}

// monitorFeed moves manager callbacks onto channels so hooks never block
type monitorFeed struct {
	reports chan rawReport
	events  chan timedEvent
	status  chan device.Status
}

func newMonitorFeed(m *device.Manager) *monitorFeed {
	f := &monitorFeed{
		reports: make(chan rawReport, 256),
		events:  make(chan timedEvent, 64),
		status:  make(chan device.Status, 16),
	}
	m.OnRaw(func(data []byte) {
		r := rawReport{
			timestamp:        time.Now(),
			data:             append([]byte(nil), data...),
			validationErrors: soomfon.ValidateAck(data),
		}
		select {
		case f.reports <- r:
		default:
		}
	})
	m.OnEvent(func(ev soomfon.Event) {
		select {
		case f.events <- timedEvent{timestamp: time.Now(), event: ev}:
		default:
		}
	})
	m.OnStateChange(func(st device.Status) {
		select {
		case f.status <- st:
		default:
		}
	})
	return f
}

func runMonitor(cmd *cobra.Command, args []string) error {
	_, settings, err := OpenStore()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, closeManager := OpenManager(managerConfig(settings))
	defer closeManager()

	feed := newMonitorFeed(m)
	go newConnectionManager(m).run(ctx)

	if useTUI {
		return runTUIMode(ctx, feed)
	}
	return runTextMode(ctx, feed)
}

// printValidationErrors prints the anomalies found in a report
func printValidationErrors(r rawReport) {
	timestamp := r.timestamp.Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;33mVALIDATION ERROR:\033[0m %s\n", timestamp, soomfon.FormatRaw(r.data))
	for i, err := range r.validationErrors {
		fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
	}
	fmt.Println()
}

// printStatus prints a connection state change
func printStatus(st device.Status) {
	timestamp := time.Now().Format("15:04:05.000")
	line := fmt.Sprintf("[%s] \033[1;36mDEVICE:\033[0m %s", timestamp, st.State)
	if st.Device != nil && st.Device.Product != "" {
		line += " (" + st.Device.Product + ")"
	}
	if st.LastError != "" {
		line += ": " + st.LastError
	}
	fmt.Println(line)
}

// runTextMode prints events and anomalies as they arrive
func runTextMode(ctx context.Context, feed *monitorFeed) error {
	fmt.Printf("soomctl - Monitor\n")
	fmt.Printf("Device: %04x:%04x\n", vendorID, productID)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All reports\n")
	} else {
		fmt.Printf("Mode: Events and errors\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := soomfon.NewStatistics()

	interval := time.Duration(statsInterval) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	statsTicker := time.NewTicker(interval)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			fmt.Print(stats.String())
			return nil

		case r := <-feed.reports:
			stats.Update(r.data, r.validationErrors)
			if len(r.validationErrors) > 0 {
				printValidationErrors(r)
			} else if showAll {
				fmt.Printf("[%s] %s\n", r.timestamp.Format("15:04:05.000"), soomfon.FormatRaw(r.data))
			}

		case ev := <-feed.events:
			fmt.Println(soomfon.FormatTimestampedEvent(ev.timestamp, ev.event))

		case st := <-feed.status:
			printStatus(st)

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}

// runTUIMode runs the monitor in the terminal UI
func runTUIMode(ctx context.Context, feed *monitorFeed) error {
	p := tea.NewProgram(initialModel(vendorID, productID, showAll), tea.WithContext(ctx))

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case r := <-feed.reports:
				p.Send(reportMsg(r))
			case ev := <-feed.events:
				p.Send(eventMsg(ev))
			case st := <-feed.status:
				p.Send(statusMsg(st))
			}
		}
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}
