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

	"github.com/Thermoquad/soomctl/pkg/device"
	"github.com/Thermoquad/soomctl/pkg/profile"
	"github.com/spf13/cobra"
)

var (
	profileName           string
	listenAddr            string
	longPressMS           int
	releaseAfterLongPress bool
	startBrightness       int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run actions bound to the pad's controls",
	Long: `Connect to the pad and run the action bound to each button press,
release, long press and encoder turn in the selected profile.

The profile is chosen with --profile (id or name) or taken from the
active profile in settings. A "profile" action switches it while running.
The pad is reconnected automatically when it is unplugged.

With --listen the HTTP API is served as well.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addDaemonFlags(runCmd)
	runCmd.Flags().StringVar(&listenAddr, "listen", "", "Also serve the HTTP API on this address")
}

// addDaemonFlags registers the flags shared by run and serve
func addDaemonFlags(c *cobra.Command) {
	c.Flags().StringVar(&profileName, "profile", "", "Profile id or name (default: active profile)")
	c.Flags().IntVar(&longPressMS, "long-press", 0, "Long press threshold in ms (default: from settings)")
	c.Flags().BoolVar(&releaseAfterLongPress, "release-after-long-press", true, "Still report the release that ends a long press")
	c.Flags().IntVar(&startBrightness, "brightness", -1, "Brightness on connect (default: from settings)")
}

// daemonConfig applies the daemon flags over settings
func daemonConfig(settings profile.Settings) device.Config {
	cfg := managerConfig(settings)
	if longPressMS > 0 {
		cfg.LongPress.Threshold = time.Duration(longPressMS) * time.Millisecond
	}
	cfg.LongPress.ReleaseAfterLongPress = releaseAfterLongPress
	if startBrightness >= 0 {
		cfg.Brightness = startBrightness
	}
	return cfg
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := newDaemon(ctx, daemonConfig)
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.bindStartup(profileName); err != nil {
		return err
	}
	if name, ok := d.binder.ProfileName(); ok {
		fmt.Printf("Profile: %s\n", name)
	}
	fmt.Printf("Device: %04x:%04x\n", vendorID, productID)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	errCh := make(chan error, 1)
	if listenAddr != "" {
		go func() {
			errCh <- d.serveAPI(ctx, listenAddr)
		}()
	}

	go d.conn.run(ctx)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			stop()
			return fmt.Errorf("API server: %w", err)
		}
	}
	slog.Info("shutting down")
	return nil
}
