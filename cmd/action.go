// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/Thermoquad/soomctl/pkg/actions"
	"github.com/Thermoquad/soomctl/pkg/profile"
	"github.com/spf13/cobra"
)

var actionJSON bool

var actionCmd = &cobra.Command{
	Use:   "action",
	Short: "Work with actions",
}

var actionRunCmd = &cobra.Command{
	Use:   "run <action>",
	Short: "Run a single action",
	Long: `Run one action without the pad and print its result.

The action is an envelope with a "type" field and the action's settings:

  soomctl action run '{"type":"keyboard","keys":"ctrl+c"}'
  soomctl action run @volume-up.json
  soomctl action run @lock.cbor
  echo '{"type":"text","text":"hello"}' | soomctl action run -

Ctrl+C cancels the running action.`,
	Args: cobra.ExactArgs(1),
	RunE: runActionRun,
}

func init() {
	rootCmd.AddCommand(actionCmd)
	actionCmd.AddCommand(actionRunCmd)
	actionRunCmd.Flags().BoolVar(&actionJSON, "json", false, "Print the result as JSON")
}

// readAction parses an inline envelope, @file (JSON or .cbor) or - for stdin
func readAction(arg string, stdin io.Reader) (actions.Action, error) {
	switch {
	case arg == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, err
		}
		return actions.UnmarshalAction(data)

	case strings.HasPrefix(arg, "@"):
		path := arg[1:]
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(filepath.Ext(path), ".cbor") {
			return actions.UnmarshalActionCBOR(data)
		}
		return actions.UnmarshalAction(data)

	default:
		return actions.UnmarshalAction([]byte(arg))
	}
}

// storeSwitcher records profile switches in settings when no daemon is
// running to rebind
type storeSwitcher struct {
	store *profile.Store
}

func (s storeSwitcher) SwitchProfile(idOrName string) error {
	p, err := s.store.Find(idOrName)
	if err != nil {
		return err
	}
	settings, err := s.store.LoadSettings()
	if err != nil {
		return err
	}
	settings.ActiveProfileID = p.ID
	return s.store.SaveSettings(settings)
}

// formatResult renders a result for the terminal
func formatResult(r actions.Result) string {
	status := "\033[1;32mOK\033[0m"
	if !r.Success {
		status = "\033[1;31mFAILED\033[0m"
	}
	line := fmt.Sprintf("%s (%d ms)", status, r.DurationMS)
	if r.Message != "" {
		line += "\n" + strings.TrimRight(r.Message, "\n")
	}
	if r.Error != "" {
		line += "\nError: " + r.Error
	}
	return line
}

func runActionRun(cmd *cobra.Command, args []string) error {
	a, err := readAction(args[0], os.Stdin)
	if err != nil {
		return err
	}

	store, settings, err := OpenStore()
	if err != nil {
		return err
	}
	set, err := newHandlers(settings, storeSwitcher{store: store})
	if err != nil {
		return err
	}
	engine := actions.NewEngine(set)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		engine.Cancel()
	}()

	result := engine.Execute(ctx, a)

	if actionJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		fmt.Println(formatResult(result))
	}

	if !result.Success {
		return fmt.Errorf("%s action failed", a.Kind())
	}
	return nil
}
