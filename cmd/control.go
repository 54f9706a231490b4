// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/soomctl/pkg/actions"
	"github.com/Thermoquad/soomctl/pkg/binder"
	"github.com/Thermoquad/soomctl/pkg/device"
	"github.com/Thermoquad/soomctl/pkg/profile"
	"github.com/Thermoquad/soomctl/pkg/soomfon"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for the pad and its profiles",
	Long: `Run the pad's bound actions with an interactive terminal UI.

Features:
  - Live connection state with automatic reconnection
  - Profile list; Enter binds the selected profile
  - Brightness control
  - Input event and action result log
  - Report statistics

Tab switches between the profile list and the brightness input.
'x' cancels the running action.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
	addDaemonFlags(controlCmd)
}

// controlBackend is what the control TUI drives
type controlBackend interface {
	Profiles() ([]*profile.Profile, error)
	ActiveProfile() (string, bool)
	SwitchProfile(idOrName string) error
	SetBrightness(ctx context.Context, level int) error
	CancelAction()
	IsExecuting() bool
}

// Profiles lists stored profiles
func (d *daemon) Profiles() ([]*profile.Profile, error) {
	return d.store.List()
}

// ActiveProfile returns the bound profile's name
func (d *daemon) ActiveProfile() (string, bool) {
	return d.binder.ProfileName()
}

// SetBrightness changes the pad brightness
func (d *daemon) SetBrightness(ctx context.Context, level int) error {
	return d.manager.SetBrightness(ctx, level)
}

// CancelAction cancels the running action
func (d *daemon) CancelAction() {
	d.engine.Cancel()
}

// IsExecuting reports whether an action is running
func (d *daemon) IsExecuting() bool {
	return d.engine.IsExecuting()
}

func runControl(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The TUI owns the terminal; keep logs out of it
	logs, err := os.CreateTemp("", "soomctl-control-*.log")
	if err != nil {
		return err
	}
	defer logs.Close()
	level, _ := parseLogLevel(logLevel)
	slog.SetDefault(slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: level})))

	d, err := newDaemon(ctx, daemonConfig)
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.bindStartup(profileName); err != nil {
		return err
	}

	feed := newMonitorFeed(d.manager)
	results := make(chan binder.Dispatch, 16)
	d.router.OnResult(func(dp binder.Dispatch) {
		select {
		case results <- dp:
		default:
		}
	})
	attempts := make(chan connectAttemptMsg, 4)
	applyImages := d.conn.onStatus
	d.conn.onStatus = func(info device.Info, err error, retry time.Duration) {
		applyImages(info, err, retry)
		select {
		case attempts <- connectAttemptMsg{info: info, err: err, retry: retry}:
		default:
		}
	}

	p := tea.NewProgram(initialControlModel(d, d.Settings().Brightness, logs.Name()), tea.WithContext(ctx))

	// Forward pad activity into the TUI
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
			case dp := <-results:
				p.Send(actionResultMsg{kind: dp.Action.Kind(), event: dp.Event, result: dp.Result})
			case a := <-attempts:
				p.Send(a)
			}
		}
	}()

	go d.conn.run(ctx)

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

// actionResultMsg reports a finished bound action
type actionResultMsg struct {
	kind   actions.Kind
	event  soomfon.Event
	result actions.Result
}

// connectAttemptMsg reports one connection attempt
type connectAttemptMsg struct {
	info  device.Info
	err   error
	retry time.Duration
}
