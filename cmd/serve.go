// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	serveAddr   string
	autoConnect bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP and WebSocket API",
	Long: `Serve the pad over HTTP:

  GET    /status                 device state, engine state, bound profile
  GET    /devices                attached pads
  POST   /device/connect         connect, initialize and start polling
  POST   /device/disconnect
  PUT    /device/brightness      {"level": 0-100}
  PUT    /buttons/{index}/image  raw image body
  DELETE /buttons/{index}
  DELETE /buttons
  POST   /actions/execute        action envelope {"type": ..., ...}
  POST   /actions/cancel
  GET    /actions/history
  DELETE /actions/history
  GET    /events                 WebSocket notification stream (?topics=a,b)

Unless --auto-connect is set, clients connect the pad through the API.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addDaemonFlags(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8765", "Listen address")
	serveCmd.Flags().BoolVar(&autoConnect, "auto-connect", false, "Keep the pad connected")
}

func runServe(cmd *cobra.Command, args []string) error {
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
	if autoConnect {
		go d.conn.run(ctx)
	}

	if err := d.serveAPI(ctx, serveAddr); err != nil {
		return fmt.Errorf("API server: %w", err)
	}
	return nil
}
