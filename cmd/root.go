// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Thermoquad/soomctl/pkg/soomfon"
	"github.com/spf13/cobra"
)

var (
	// Device selection flags
	vendorID  uint16
	productID uint16

	// Configuration flags
	configDir string
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "soomctl",
	Short: "SOOMFON macro pad driver and action runner",
	Long: `soomctl - drive a SOOMFON-style USB macro pad and run actions from its controls.

The pad has six LCD buttons, three physical buttons and three rotary encoders.
soomctl talks to it over its vendor USB interface, decodes button and encoder
events, and runs the actions bound to them in the active profile.

Configuration lives in the config directory (default: $XDG_CONFIG_HOME/soomctl):
  settings.json          brightness, long press threshold, integrations
  profiles/*.json|cbor   control to action bindings

The Home Assistant token is read from settings, then the SOOMCTL_HA_TOKEN
environment variable, or prompted interactively when neither is set.`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

func init() {
	rootCmd.PersistentFlags().Uint16Var(&vendorID, "vid", soomfon.VendorID, "USB vendor id")
	rootCmd.PersistentFlags().Uint16Var(&productID, "pid", soomfon.ProductID, "USB product id")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Configuration directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

// setupLogging installs the default slog handler on stderr
func setupLogging(cmd *cobra.Command, args []string) error {
	level, err := parseLogLevel(logLevel)
	if err != nil {
		return err
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	return nil
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: use debug, info, warn or error", s)
	}
	return level, nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
